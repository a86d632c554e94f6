package queryir

import "github.com/agent-next/behavior-driven-testing/internal/ir"

// Query is a read of one ledger table. Only this package implements it.
type Query interface {
	queryNode()
}

// Predicate is a row condition. Only this package implements it.
type Predicate interface {
	predicateNode()
}

// Select reads Columns from one ledger table:
//
//	Select{
//	  From:    "entries",
//	  Columns: []string{"scenario_id", "status"},
//	  Filter: And{Predicates: []Predicate{
//	    Equals{Field: "run_id", Value: ir.IRString("run-1")},
//	    In{Field: "status", Values: []ir.IRValue{ir.IRString("failed"), ir.IRString("pending")}},
//	  }},
//	}
//
// reads the failed and pending entries of run-1. Rows always come back in
// the table's fixed order (entries by run position); callers cannot
// choose another.
type Select struct {
	From    string
	Columns []string
	Filter  Predicate // nil reads every row
}

func (Select) queryNode() {}

// Equals holds when Field equals Value.
type Equals struct {
	Field string
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// In holds when Field equals any of Values. An empty Values set matches
// nothing.
type In struct {
	Field  string
	Values []ir.IRValue
}

func (In) predicateNode() {}

// And holds when every operand holds. No operands matches everything.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

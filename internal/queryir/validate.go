package queryir

import (
	"fmt"
	"slices"

	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

// Tables lists the ledger tables a query may read and their columns.
var Tables = map[string][]string{
	"runs": {"seq", "id", "model_name", "model_hash", "strategy", "scenarios", "created_at"},
	"entries": {
		"scenario_id", "context_key", "scenario", "run_id", "position",
		"priority", "status", "reason", "last_observed", "last_seq",
	},
	"events":  {"seq", "scenario_id", "from_status", "to_status", "reason", "source", "at"},
	"impacts": {"feature_id", "category", "before", "after", "verification", "migration_note", "differences"},
}

// ValidationResult contains the problems found in a query.
type ValidationResult struct {
	// Valid is true when Problems is empty.
	Valid bool

	// Problems lists every rule the query breaks, in traversal order.
	Problems []string
}

// Validate checks a query against the ledger tables.
//
// Rules:
//  1. From names a table in Tables
//  2. Columns is non-empty and every column exists
//  3. Every predicate field exists
//  4. No NULL literals; no array or object literals
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{
		problems: []string{},
	}
	v.validateQuery(query)

	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
	columns  []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addProblem("nil query")
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	default:
		v.addProblem("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	cols, ok := Tables[sel.From]
	if !ok {
		v.addProblem("unknown table %q", sel.From)
		return
	}
	v.columns = cols

	if len(sel.Columns) == 0 {
		v.addProblem("empty column list (SELECT *) - columns must be explicit")
	}
	for _, c := range sel.Columns {
		v.checkField(c)
	}

	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) checkField(field string) {
	if !slices.Contains(v.columns, field) {
		v.addProblem("unknown column %q", field)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
		// no filter
	case Equals:
		v.validateEquals(pred)
	case *Equals:
		v.validateEquals(*pred)
	case In:
		v.validateIn(pred)
	case *In:
		v.validateIn(*pred)
	case And:
		v.validateAnd(pred)
	case *And:
		v.validateAnd(*pred)
	default:
		v.addProblem("unknown predicate type: %T", p)
	}
}

func (v *validator) validateEquals(eq Equals) {
	v.checkField(eq.Field)
	v.checkLiteral(eq.Field, eq.Value)
}

func (v *validator) validateIn(in In) {
	v.checkField(in.Field)
	for _, val := range in.Values {
		v.checkLiteral(in.Field, val)
	}
}

func (v *validator) validateAnd(and And) {
	for _, sub := range and.Predicates {
		v.validatePredicate(sub)
	}
}

func (v *validator) checkLiteral(field string, val ir.IRValue) {
	switch val.(type) {
	case nil, ir.IRNull:
		v.addProblem("field %q compared to NULL", field)
	case ir.IRArray, ir.IRObject:
		v.addProblem("field %q compared to a %s literal", field, ir.KindOf(val))
	}
}

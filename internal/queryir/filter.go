package queryir

import (
	"strconv"

	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

// EntryColumns are the entries columns in the order backends scan them.
var EntryColumns = Tables["entries"]

// EntryFilter selects ledger entries. Zero fields do not filter.
type EntryFilter struct {
	RunID      string
	Statuses   []ir.Status
	Priorities []ir.Tier
}

// Predicate builds the filter's predicate. A zero filter yields an empty
// And, which matches every entry.
func (f EntryFilter) Predicate() Predicate {
	var preds []Predicate
	if f.RunID != "" {
		preds = append(preds, Equals{Field: "run_id", Value: ir.IRString(f.RunID)})
	}
	if len(f.Statuses) > 0 {
		vals := make([]ir.IRValue, len(f.Statuses))
		for i, s := range f.Statuses {
			vals[i] = ir.IRString(s)
		}
		preds = append(preds, In{Field: "status", Values: vals})
	}
	if len(f.Priorities) > 0 {
		vals := make([]ir.IRValue, len(f.Priorities))
		for i, p := range f.Priorities {
			vals[i] = ir.IRString(p)
		}
		preds = append(preds, In{Field: "priority", Values: vals})
	}
	return And{Predicates: preds}
}

// Query builds a Select over every entries column.
func (f EntryFilter) Query() Select {
	return Select{
		From:    "entries",
		Columns: EntryColumns,
		Filter:  f.Predicate(),
	}
}

// Filter returns the entries matching the filter, keeping input order.
func (f EntryFilter) Filter(entries []ir.LedgerEntry) []ir.LedgerEntry {
	p := f.Predicate()
	var out []ir.LedgerEntry
	for _, e := range entries {
		if Match(p, e) {
			out = append(out, e)
		}
	}
	return out
}

// Match evaluates a predicate against one ledger entry in memory. Unknown
// fields never match.
func Match(p Predicate, e ir.LedgerEntry) bool {
	switch pred := p.(type) {
	case nil:
		return true
	case Equals:
		return matchEquals(pred, e)
	case *Equals:
		return matchEquals(*pred, e)
	case In:
		return matchIn(pred, e)
	case *In:
		return matchIn(*pred, e)
	case And:
		return matchAnd(pred, e)
	case *And:
		return matchAnd(*pred, e)
	default:
		return false
	}
}

func matchEquals(eq Equals, e ir.LedgerEntry) bool {
	v, ok := entryField(e, eq.Field)
	return ok && ir.Equal(v, eq.Value)
}

func matchIn(in In, e ir.LedgerEntry) bool {
	v, ok := entryField(e, in.Field)
	if !ok {
		return false
	}
	for _, want := range in.Values {
		if ir.Equal(v, want) {
			return true
		}
	}
	return false
}

func matchAnd(and And, e ir.LedgerEntry) bool {
	for _, sub := range and.Predicates {
		if !Match(sub, e) {
			return false
		}
	}
	return true
}

// entryField reads a column value from an entry as the SQL backend would
// see it.
func entryField(e ir.LedgerEntry, field string) (ir.IRValue, bool) {
	switch field {
	case "scenario_id":
		return ir.IRString(e.Scenario.ID), true
	case "context_key":
		return ir.IRString(e.Scenario.ContextKey), true
	case "run_id":
		return ir.IRString(e.RunID), true
	case "position":
		return ir.IRInt(e.Position), true
	case "priority":
		return ir.IRString(e.Scenario.Priority), true
	case "status":
		return ir.IRString(e.Status), true
	case "reason":
		return ir.IRString(e.Reason), true
	case "last_seq":
		return ir.IRInt(e.LastSeq), true
	default:
		return nil, false
	}
}

// String renders the filter for log lines.
func (f EntryFilter) String() string {
	s := "run=" + strconv.Quote(f.RunID)
	for _, st := range f.Statuses {
		s += " status=" + string(st)
	}
	for _, p := range f.Priorities {
		s += " priority=" + string(p)
	}
	return s
}

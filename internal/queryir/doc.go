// Package queryir provides an abstract query representation for filtered
// reads of the scenario ledger.
//
// Report filters build an EntryFilter; a backend evaluates it. The SQLite
// store compiles it through internal/querysql, and harness assertions
// evaluate the same predicates over report entries with Match.
//
//	[bdt report --status/--priority] → [EntryFilter] → [SQL backend]
//	[harness entries assertion]      →               → [Match]
//
// # Fragment
//
// The fragment is deliberately small:
//   - Select(from, filter, columns) over one ledger table
//   - Predicates: Equals, In, And
//   - Explicit column lists (no SELECT *)
//
// It excludes NULL comparisons, joins, aggregation and OR across fields.
// In covers the one disjunction the filters need (any of several statuses).
//
// # Sealed interfaces
//
// Query and Predicate are sealed with marker methods so backends can
// switch exhaustively over them.
//
// All literal values are ir.IRValue types. Floats never appear.
package queryir

// Package engine derives test scenarios from a dimension model and tracks
// them in a coverage ledger.
//
// Generation:
//
//  1. NewGenerator validates the model and closes its guard rules once
//     (Evaluator).
//  2. Generate enumerates tuples for a strategy: exhaustive, pairwise or
//     priority-bucketed.
//  3. Every tuple becomes an ir.Scenario with a content-addressed id, a
//     context key, branch outcomes and a priority tier (Assign).
//
// A dimension for which no concrete value fits the rest of a tuple
// collapses to the wildcard "*". Wildcards appear only there; a declared
// wildcard value is never enumerated alongside concrete ones.
//
// Output order is canonical and independent of scheduling: dimensions in
// declaration order, values in declaration order, wildcard last. The
// exhaustive walk runs its first-dimension slices in parallel and
// concatenates them in order.
//
// Engine is the facade used by the CLI and the harness. It registers each
// generation as a ledger run and builds release reports from the ledger.
package engine

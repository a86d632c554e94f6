// Package harness provides conformance testing for coverage models.
//
// A run file names a model, a generation strategy, the results a test
// runner reports, and what the generated scenarios and the final coverage
// report must look like. The harness executes it against the real engine
// and a SQLite ledger, then evaluates the assertions.
//
// # Run File Format
//
//	name: checkout_release
//	description: "P0 scenario left pending blocks release"
//	model: ../models/checkout.yaml
//	strategy: exhaustive
//	run_id: run-checkout
//	steps:
//	  - record: auth_authenticated_credits_sufficient
//	    status: passed
//	  - trace: { auth: unauthenticated, credits: exact }
//	    status: failed
//	    reason: "login redirect loop"
//	    source: ci
//	  - record: auth_guest_credits_sufficient
//	    status: passed
//	    expect_error: UNKNOWN_SCENARIO
//	impacts: ../impacts/release.yaml
//	assertions:
//	  - type: scenario_count
//	    count: 4
//	  - type: coverage
//	    coverage: { total: 4, covered: 1, pending: 2, failed: 1, skipped: 0 }
//	  - type: release_blocking
//	    blocking: true
//
// # Assertion Types
//
//   - scenario_count: exactly N scenarios were generated
//   - contains / excludes: a context key was or was not generated
//   - order: context keys appear in the given relative order
//   - status: a scenario's final ledger status
//   - priority / bucket: a scenario's priority or priority-bucketed tier
//   - omitted: a combination left out of a priority-bucketed run
//   - coverage: the completion counts of the active run
//   - release_blocking: the release verdict and, optionally, the blockers
//   - entries: the entries selected by statuses and priorities
//
// # Deterministic Testing
//
// Every run executes with:
//   - A fixed run id (from run_id, or "test-run-default")
//   - A deterministic seq clock (testutil.DeterministicClock)
//   - A fixed time source (testutil.TimeSource)
//   - A fresh in-memory SQLite database
//
// so golden snapshots (see RunWithGolden) are byte-identical across runs.
package harness

package ir

import "time"

// NOTE: These are ledger-layer records. Seq is a logical receipt order
// assigned by the ledger; At is the wall-clock observation time and is
// never used for ordering.

// LedgerEntry is the current state of one scenario in the ledger.
type LedgerEntry struct {
	Scenario     Scenario  `json:"scenario"`
	RunID        string    `json:"run_id"`
	Position     int       `json:"position"` // index in the run's canonical order
	Status       Status    `json:"status"`
	Reason       string    `json:"reason,omitempty"`
	LastObserved time.Time `json:"last_observed,omitzero"`
	LastSeq      int64     `json:"last_seq"`
}

// Covered reports whether the entry counts toward coverage: passed, or
// skipped with a reason.
func (e LedgerEntry) Covered() bool {
	return e.Status == StatusPassed || (e.Status == StatusSkipped && e.Reason != "")
}

// LedgerEvent is one append-only status change.
type LedgerEvent struct {
	Seq        int64     `json:"seq"`
	ScenarioID string    `json:"scenario_id"`
	From       Status    `json:"from"`
	To         Status    `json:"to"`
	Reason     string    `json:"reason,omitempty"`
	Source     string    `json:"source,omitempty"` // reporting runner, free text
	At         time.Time `json:"at"`
}

// Run describes one generation run registered in the ledger.
type Run struct {
	ID        string    `json:"id"`
	ModelName string    `json:"model_name"`
	ModelHash string    `json:"model_hash"`
	Strategy  string    `json:"strategy"`
	Scenarios int       `json:"scenarios"`
	CreatedAt time.Time `json:"created_at"`
}

// ImpactCategory classifies a before/after behavior change.
type ImpactCategory string

const (
	ImpactNone       ImpactCategory = "none"
	ImpactChanged    ImpactCategory = "changed"
	ImpactBreaking   ImpactCategory = "breaking"
	ImpactNew        ImpactCategory = "new"
	ImpactRefactored ImpactCategory = "refactored"
)

// ImpactRecord is the classified impact of a change on one feature.
type ImpactRecord struct {
	FeatureID     string         `json:"feature_id"`
	Before        IRValue        `json:"-"`
	After         IRValue        `json:"-"`
	BeforeJSON    string         `json:"before,omitempty"`
	AfterJSON     string         `json:"after,omitempty"`
	Category      ImpactCategory `json:"category"`
	Verification  string         `json:"verification"`
	MigrationNote string         `json:"migration_note,omitempty"`
	Differences   []string       `json:"differences,omitempty"`
}

// Unresolved reports whether the record blocks release: a breaking change
// without a migration note.
func (r ImpactRecord) Unresolved() bool {
	return r.Category == ImpactBreaking && r.MigrationNote == ""
}

package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

// ErrNoEntry is returned by Store.ApplyRecord for a scenario with no
// persisted entry.
var ErrNoEntry = errors.New("no ledger entry for scenario")

// SeqSource draws the seq of a new event. floor is the highest seq already
// persisted; the result must exceed it.
type SeqSource func(floor int64) int64

// Store is the durable backing of a Ledger. The ledger writes through to
// the store before it updates memory, so a failed write leaves both
// unchanged.
//
// Implementations must make each Save call atomic: either every record it
// carries persists or none does.
type Store interface {
	// SaveRun records a run and upserts the entries of every scenario it
	// generated.
	SaveRun(ctx context.Context, run ir.Run, entries []ir.LedgerEntry) error

	// ApplyRecord applies obs to the persisted entry of obs.ScenarioID,
	// not to any copy the caller holds, and appends the resulting event
	// in the same atomic step. Several ledgers may share one store, so
	// the entry read, the seq draw and both writes must not interleave
	// with another ApplyRecord. It returns the entry as written and the
	// event, which is nil for a repeat of the current status and reason.
	ApplyRecord(ctx context.Context, obs Observation, at time.Time, next SeqSource) (ir.LedgerEntry, *ir.LedgerEvent, error)

	// LoadEntries returns every entry.
	LoadEntries(ctx context.Context) ([]ir.LedgerEntry, error)

	// LoadEvents returns history in seq order. An empty scenarioID returns
	// the history of every scenario.
	LoadEvents(ctx context.Context, scenarioID string) ([]ir.LedgerEvent, error)

	// LoadRuns returns runs in the order they were saved.
	LoadRuns(ctx context.Context) ([]ir.Run, error)

	// SaveImpact upserts an impact record by feature id.
	SaveImpact(ctx context.Context, rec ir.ImpactRecord) error

	// LoadImpacts returns impact records ordered by feature id.
	LoadImpacts(ctx context.Context) ([]ir.ImpactRecord, error)

	// Reset deletes every run, entry, event and impact record.
	Reset(ctx context.Context) error
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/agent-next/behavior-driven-testing/internal/ir"
	"github.com/agent-next/behavior-driven-testing/internal/ledger"
)

// SaveRun records a run and upserts the entry of every scenario it
// generated, in one transaction.
//
// A run id saved twice replaces the earlier row and moves to the end of the
// run order. Entries are keyed by scenario id, so a scenario shared with an
// earlier run is overwritten with the status the ledger carried forward.
func (s *Store) SaveRun(ctx context.Context, run ir.Run, entries []ir.LedgerEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save run: begin tx: %w", err)
	}
	defer tx.Rollback()

	// DELETE then INSERT so the run takes a fresh seq
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, run.ID); err != nil {
		return fmt.Errorf("save run: delete existing: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, model_name, model_hash, strategy, scenarios, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.ModelName,
		run.ModelHash,
		run.Strategy,
		run.Scenarios,
		formatTime(run.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("save run: insert run: %w", err)
	}

	for _, entry := range entries {
		if err := upsertEntry(ctx, tx, entry); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save run: commit: %w", err)
	}
	return nil
}

// ApplyRecord applies an observation to the persisted entry in one
// immediate transaction. The entry read, the MAX(seq) floor and both
// writes hold SQLite's write lock, so a second bdt process on the same
// file waits on the busy timeout instead of interleaving.
func (s *Store) ApplyRecord(ctx context.Context, obs ledger.Observation, at time.Time, next ledger.SeqSource) (ir.LedgerEntry, *ir.LedgerEvent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ir.LedgerEntry{}, nil, fmt.Errorf("apply record: begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT scenario_id, context_key, scenario, run_id, position, priority, status, reason, last_observed, last_seq
		FROM entries
		WHERE scenario_id = ?
	`, obs.ScenarioID)
	if err != nil {
		return ir.LedgerEntry{}, nil, fmt.Errorf("apply record: load entry %s: %w", obs.ScenarioID, err)
	}
	current, err := collectEntries(rows)
	if err != nil {
		return ir.LedgerEntry{}, nil, fmt.Errorf("apply record: %w", err)
	}
	if len(current) == 0 {
		return ir.LedgerEntry{}, nil, ledger.ErrNoEntry
	}

	var floor int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM events`).Scan(&floor); err != nil {
		return ir.LedgerEntry{}, nil, fmt.Errorf("apply record: read last seq: %w", err)
	}

	entry, ev := ledger.Transition(current[0], obs, at, func() int64 { return next(floor) })
	if err := upsertEntry(ctx, tx, entry); err != nil {
		return ir.LedgerEntry{}, nil, fmt.Errorf("apply record: %w", err)
	}
	if ev != nil {
		if err := insertEvent(ctx, tx, *ev); err != nil {
			return ir.LedgerEntry{}, nil, fmt.Errorf("apply record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return ir.LedgerEntry{}, nil, fmt.Errorf("apply record: commit: %w", err)
	}
	return entry, ev, nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, ev ir.LedgerEvent) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO events (seq, scenario_id, from_status, to_status, reason, source, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		ev.Seq,
		ev.ScenarioID,
		string(ev.From),
		string(ev.To),
		ev.Reason,
		ev.Source,
		formatTime(ev.At),
	)
	if err != nil {
		return fmt.Errorf("insert event %d: %w", ev.Seq, err)
	}
	return nil
}

func upsertEntry(ctx context.Context, tx *sql.Tx, entry ir.LedgerEntry) error {
	scJSON, err := marshalScenario(entry.Scenario)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entries
		(scenario_id, context_key, scenario, run_id, position, priority, status, reason, last_observed, last_seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(scenario_id) DO UPDATE SET
			context_key   = excluded.context_key,
			scenario      = excluded.scenario,
			run_id        = excluded.run_id,
			position      = excluded.position,
			priority      = excluded.priority,
			status        = excluded.status,
			reason        = excluded.reason,
			last_observed = excluded.last_observed,
			last_seq      = excluded.last_seq
	`,
		entry.Scenario.ID,
		entry.Scenario.ContextKey,
		scJSON,
		entry.RunID,
		entry.Position,
		string(entry.Scenario.Priority),
		string(entry.Status),
		entry.Reason,
		formatTime(entry.LastObserved),
		entry.LastSeq,
	)
	if err != nil {
		return fmt.Errorf("upsert entry %s: %w", entry.Scenario.ID, err)
	}
	return nil
}

// SaveImpact upserts an impact record by feature id. Before and After are
// stored as snapshot JSON.
func (s *Store) SaveImpact(ctx context.Context, rec ir.ImpactRecord) error {
	before, after := rec.BeforeJSON, rec.AfterJSON
	var err error
	if before == "" && rec.Before != nil {
		if before, err = ir.MarshalSnapshot(rec.Before); err != nil {
			return fmt.Errorf("save impact %s: before: %w", rec.FeatureID, err)
		}
	}
	if after == "" && rec.After != nil {
		if after, err = ir.MarshalSnapshot(rec.After); err != nil {
			return fmt.Errorf("save impact %s: after: %w", rec.FeatureID, err)
		}
	}
	diffs, err := marshalDifferences(rec.Differences)
	if err != nil {
		return fmt.Errorf("save impact %s: %w", rec.FeatureID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO impacts
		(feature_id, category, before, after, verification, migration_note, differences)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(feature_id) DO UPDATE SET
			category       = excluded.category,
			before         = excluded.before,
			after          = excluded.after,
			verification   = excluded.verification,
			migration_note = excluded.migration_note,
			differences    = excluded.differences
	`,
		rec.FeatureID,
		string(rec.Category),
		before,
		after,
		rec.Verification,
		rec.MigrationNote,
		diffs,
	)
	if err != nil {
		return fmt.Errorf("save impact %s: %w", rec.FeatureID, err)
	}
	return nil
}

// Reset deletes every run, entry, event and impact record in one
// transaction.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("reset: begin tx: %w", err)
	}
	defer tx.Rollback()

	// events first: they reference entries
	for _, table := range []string{"events", "entries", "runs", "impacts"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset: clear %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("reset: commit: %w", err)
	}
	return nil
}

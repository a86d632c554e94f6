package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/agent-next/behavior-driven-testing/internal/ir"
	"github.com/agent-next/behavior-driven-testing/internal/queryir"
	"github.com/agent-next/behavior-driven-testing/internal/querysql"
)

// LoadEntries returns every entry ordered by scenario id.
func (s *Store) LoadEntries(ctx context.Context) ([]ir.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scenario_id, context_key, scenario, run_id, position, priority, status, reason, last_observed, last_seq
		FROM entries
		ORDER BY scenario_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	return collectEntries(rows)
}

// QueryEntries returns the entries matching a filter, in run position
// order. The filter compiles to parameterized SQL.
func (s *Store) QueryEntries(ctx context.Context, filter queryir.EntryFilter) ([]ir.LedgerEntry, error) {
	query, params, err := querysql.NewSQLCompiler().Compile(filter.Query())
	if err != nil {
		return nil, fmt.Errorf("compile entry filter: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query entries (%s): %w", filter, err)
	}
	return collectEntries(rows)
}

func collectEntries(rows *sql.Rows) ([]ir.LedgerEntry, error) {
	defer rows.Close()

	entries := []ir.LedgerEntry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// scanEntry scans a row selected with queryir.EntryColumns order.
func scanEntry(rows *sql.Rows) (ir.LedgerEntry, error) {
	var entry ir.LedgerEntry
	var id, key, scJSON, priority, status, observed string

	if err := rows.Scan(
		&id, &key, &scJSON, &entry.RunID, &entry.Position,
		&priority, &status, &entry.Reason, &observed, &entry.LastSeq,
	); err != nil {
		return ir.LedgerEntry{}, fmt.Errorf("scan entry: %w", err)
	}

	sc, err := unmarshalScenario(scJSON)
	if err != nil {
		return ir.LedgerEntry{}, fmt.Errorf("entry %s: %w", id, err)
	}
	if sc.ID != id || sc.ContextKey != key || string(sc.Priority) != priority {
		return ir.LedgerEntry{}, fmt.Errorf("entry %s: scenario column disagrees with row", id)
	}
	entry.Scenario = sc
	entry.Status = ir.Status(status)

	if entry.LastObserved, err = parseTime(observed); err != nil {
		return ir.LedgerEntry{}, fmt.Errorf("entry %s: %w", id, err)
	}
	return entry, nil
}

// LoadEvents returns history in seq order. An empty scenarioID returns the
// history of every scenario.
func (s *Store) LoadEvents(ctx context.Context, scenarioID string) ([]ir.LedgerEvent, error) {
	query := `
		SELECT seq, scenario_id, from_status, to_status, reason, source, at
		FROM events`
	var args []any
	if scenarioID != "" {
		query += ` WHERE scenario_id = ?`
		args = append(args, scenarioID)
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []ir.LedgerEvent{}
	for rows.Next() {
		var ev ir.LedgerEvent
		var from, to, at string
		if err := rows.Scan(&ev.Seq, &ev.ScenarioID, &from, &to, &ev.Reason, &ev.Source, &at); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.From = ir.Status(from)
		ev.To = ir.Status(to)
		if ev.At, err = parseTime(at); err != nil {
			return nil, fmt.Errorf("event %d: %w", ev.Seq, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// LoadRuns returns runs in the order they were saved.
func (s *Store) LoadRuns(ctx context.Context) ([]ir.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, model_name, model_hash, strategy, scenarios, created_at
		FROM runs
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []ir.Run{}
	for rows.Next() {
		var run ir.Run
		var created string
		if err := rows.Scan(&run.ID, &run.ModelName, &run.ModelHash, &run.Strategy, &run.Scenarios, &created); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("run %s: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LoadImpacts returns impact records ordered by feature id. Before and After
// are decoded from their snapshot JSON.
func (s *Store) LoadImpacts(ctx context.Context) ([]ir.ImpactRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT feature_id, category, before, after, verification, migration_note, differences
		FROM impacts
		ORDER BY feature_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query impacts: %w", err)
	}
	defer rows.Close()

	recs := []ir.ImpactRecord{}
	for rows.Next() {
		var rec ir.ImpactRecord
		var category, diffs string
		if err := rows.Scan(
			&rec.FeatureID, &category, &rec.BeforeJSON, &rec.AfterJSON,
			&rec.Verification, &rec.MigrationNote, &diffs,
		); err != nil {
			return nil, fmt.Errorf("scan impact: %w", err)
		}
		rec.Category = ir.ImpactCategory(category)
		if rec.Before, err = ir.ParseSnapshot(rec.BeforeJSON); err != nil {
			return nil, fmt.Errorf("impact %s: before: %w", rec.FeatureID, err)
		}
		if rec.After, err = ir.ParseSnapshot(rec.AfterJSON); err != nil {
			return nil, fmt.Errorf("impact %s: after: %w", rec.FeatureID, err)
		}
		if rec.Differences, err = unmarshalDifferences(diffs); err != nil {
			return nil, fmt.Errorf("impact %s: %w", rec.FeatureID, err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate impacts: %w", err)
	}
	return recs, nil
}

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agent-next/behavior-driven-testing/internal/engine"
	"github.com/agent-next/behavior-driven-testing/internal/ir"
	"github.com/agent-next/behavior-driven-testing/internal/ledger"
	"github.com/agent-next/behavior-driven-testing/internal/queryir"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Database   string
	Statuses   []string
	Priorities []string
}

// ImpactRow is one impact record in CLI output.
type ImpactRow struct {
	FeatureID     string            `json:"feature_id"`
	Category      ir.ImpactCategory `json:"category"`
	Verification  string            `json:"verification"`
	MigrationNote string            `json:"migration_note,omitempty"`
	Differences   []string          `json:"differences,omitempty"`
}

// ReportResult holds the output of the report command.
type ReportResult struct {
	RunID           string            `json:"run_id"`
	Model           string            `json:"model,omitempty"`
	Strategy        string            `json:"strategy,omitempty"`
	Filter          string            `json:"filter,omitempty"`
	Scenarios       []EntryRow        `json:"scenarios"`
	Coverage        ledger.Completion `json:"coverage"`
	Impacts         []ImpactRow       `json:"impacts,omitempty"`
	ReleaseBlocking bool              `json:"release_blocking"`
	Blockers        []engine.Blocker  `json:"blockers,omitempty"`
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Report coverage of the active run",
		Long: `Report the coverage of the active run and whether it blocks release.

A run blocks release while any P0 scenario is pending, or while any
breaking impact has no migration note. --status and --priority narrow the
scenario list; coverage and blockers always cover the whole run.

Exit codes:
  0 - Release is not blocked
  1 - Release is blocked
  2 - Command error (no run, database unavailable, etc.)

Examples:
  bdt report --db ./bdt.db
  bdt report --db ./bdt.db --status pending,failed --priority P0
  bdt report --db ./bdt.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd.Context(), opts, cmd)
		},
	}

	addDatabaseFlag(cmd, &opts.Database)
	cmd.Flags().StringSliceVar(&opts.Statuses, "status", nil, "only list scenarios with these statuses")
	cmd.Flags().StringSliceVar(&opts.Priorities, "priority", nil, "only list scenarios with these priorities")

	return cmd
}

func runReport(ctx context.Context, opts *ReportOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	filter, err := entryFilter(opts.Statuses, opts.Priorities)
	if err != nil {
		return commandError(formatter, "invalid filter", err)
	}

	sess, err := openSession(ctx, opts.RootOptions, formatter, opts.Database)
	if err != nil {
		return err
	}
	defer sess.Close()

	l := sess.ledger()
	if l.ActiveRun() == "" {
		return noRunError(formatter)
	}

	report, err := sess.engine.Report(ctx)
	if err != nil {
		return commandError(formatter, "failed to build report", err)
	}

	result := ReportResult{
		RunID:           report.RunID,
		Coverage:        report.Coverage,
		ReleaseBlocking: report.ReleaseBlocking,
		Blockers:        report.Blockers,
		Scenarios:       []EntryRow{},
	}

	runs, err := l.Runs(ctx)
	if err != nil {
		return commandError(formatter, "failed to load runs", err)
	}
	for _, run := range runs {
		if run.ID == report.RunID {
			result.Model = run.ModelName
			result.Strategy = run.Strategy
		}
	}

	entries := report.Scenarios
	if len(filter.Statuses) > 0 || len(filter.Priorities) > 0 {
		filter.RunID = report.RunID
		result.Filter = filter.String()
		entries, err = sess.store.QueryEntries(ctx, filter)
		if err != nil {
			return commandError(formatter, "failed to query entries",
				ir.NewStoreUnavailableError("query_entries", err))
		}
	}
	for _, e := range entries {
		result.Scenarios = append(result.Scenarios, entryRow(e))
	}

	for _, rec := range report.Impacts {
		result.Impacts = append(result.Impacts, ImpactRow{
			FeatureID:     rec.FeatureID,
			Category:      rec.Category,
			Verification:  rec.Verification,
			MigrationNote: rec.MigrationNote,
			Differences:   rec.Differences,
		})
	}

	if formatter.JSON() {
		if result.ReleaseBlocking {
			return formatter.Failure(ErrCodeReleaseBlocked, "release blocked", result)
		}
		return formatter.Success(result)
	}

	outputReportText(formatter, result)
	if result.ReleaseBlocking {
		return NewExitError(ExitFailure, fmt.Sprintf("release blocked by %d item(s)", len(result.Blockers)))
	}
	return nil
}

// entryFilter builds a ledger entry filter from flag values.
func entryFilter(statuses, priorities []string) (queryir.EntryFilter, error) {
	var filter queryir.EntryFilter
	for _, s := range statuses {
		status, err := ir.ParseStatus(s)
		if err != nil {
			return filter, ir.NewConfigurationError("%v", err)
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	for _, p := range priorities {
		tier, err := ir.ParseTier(p)
		if err != nil {
			return filter, ir.NewConfigurationError("%v", err)
		}
		filter.Priorities = append(filter.Priorities, tier)
	}
	return filter, nil
}

func outputReportText(formatter *OutputFormatter, result ReportResult) {
	w := formatter.Writer
	c := result.Coverage

	fmt.Fprintf(w, "Run %s", result.RunID)
	if result.Model != "" {
		fmt.Fprintf(w, " (%s, %s)", result.Model, result.Strategy)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Coverage: %d/%d covered (%.0f%%), %d pending, %d failed, %d skipped\n",
		c.Covered, c.Total, c.Ratio()*100, c.Pending, c.Failed, c.Skipped)

	if formatter.Verbose {
		for _, tier := range ir.Tiers {
			tc := c.ByCategory[tier]
			if tc.Total == 0 {
				continue
			}
			fmt.Fprintf(w, "  %s: %d/%d covered\n", tier, tc.Covered, tc.Total)
		}
	}

	fmt.Fprintln(w)
	if result.Filter != "" {
		fmt.Fprintf(w, "Scenarios where %s:\n", result.Filter)
	} else {
		fmt.Fprintln(w, "Scenarios:")
	}
	for _, e := range result.Scenarios {
		fmt.Fprintf(w, "  %s %-8s %s\n", statusMark(e.Status), e.Status, e.Key)
	}

	if len(result.Impacts) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Impacts:")
		for _, rec := range result.Impacts {
			fmt.Fprintf(w, "  %-10s %s (%s)\n", rec.Category, rec.FeatureID, rec.Verification)
		}
	}

	fmt.Fprintln(w)
	if !result.ReleaseBlocking {
		fmt.Fprintln(w, "✓ Release not blocked")
		return
	}
	fmt.Fprintln(w, "✗ Release blocked")
	for _, b := range result.Blockers {
		fmt.Fprintf(w, "  %s\n", b)
	}
}

func statusMark(s ir.Status) string {
	switch s {
	case ir.StatusPassed:
		return "✓"
	case ir.StatusFailed:
		return "✗"
	case ir.StatusSkipped:
		return "-"
	default:
		return " "
	}
}

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agent-next/behavior-driven-testing/internal/impact"
	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

// ImpactOptions holds flags for the impact command.
type ImpactOptions struct {
	*RootOptions
	Database string
	DryRun   bool
}

// ImpactResult holds the output of the impact command.
type ImpactResult struct {
	Recorded   bool        `json:"recorded"`
	Impacts    []ImpactRow `json:"impacts"`
	Unresolved []string    `json:"unresolved,omitempty"`
}

// NewImpactCommand creates the impact command.
func NewImpactCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImpactOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "impact <snapshots>",
		Short: "Classify before/after behavior snapshots",
		Long: `Classify the impact of a change from a file of before/after behavior
snapshots, one per feature, and store the records in the ledger.

Categories: none, changed, breaking, new, refactored. A breaking change
without a migration_note blocks release until a note is added.

Examples:
  bdt impact release.yaml --db ./bdt.db
  bdt impact release.json --dry-run --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImpact(cmd.Context(), opts, args[0], cmd)
		},
	}

	addDatabaseFlag(cmd, &opts.Database)
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "classify without storing records")

	return cmd
}

func runImpact(ctx context.Context, opts *ImpactOptions, path string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	features, err := impact.LoadFile(path)
	if err != nil {
		return commandError(formatter, "failed to load snapshots", err)
	}
	records, err := impact.Analyze(features)
	if err != nil {
		return commandError(formatter, "failed to classify impacts", err)
	}
	formatter.VerboseLog("Classified %d feature(s) from %s", len(records), path)

	if !opts.DryRun {
		sess, err := openSession(ctx, opts.RootOptions, formatter, opts.Database)
		if err != nil {
			return err
		}
		defer sess.Close()

		for _, rec := range records {
			if err := sess.engine.RecordImpact(ctx, rec); err != nil {
				return commandError(formatter, "failed to record impact", err)
			}
		}
	}

	result := ImpactResult{Recorded: !opts.DryRun, Impacts: []ImpactRow{}}
	for _, rec := range records {
		result.Impacts = append(result.Impacts, ImpactRow{
			FeatureID:     rec.FeatureID,
			Category:      rec.Category,
			Verification:  rec.Verification,
			MigrationNote: rec.MigrationNote,
			Differences:   rec.Differences,
		})
		if rec.Unresolved() {
			result.Unresolved = append(result.Unresolved, rec.FeatureID)
		}
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	for _, row := range result.Impacts {
		mark := "✓"
		if row.Category == ir.ImpactBreaking && row.MigrationNote == "" {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %-10s %s: %s\n", mark, row.Category, row.FeatureID, row.Verification)
		if formatter.Verbose {
			for _, d := range row.Differences {
				fmt.Fprintf(w, "    %s\n", d)
			}
		}
	}
	if len(result.Unresolved) > 0 {
		fmt.Fprintf(w, "\n%d breaking change(s) need a migration note: %v\n", len(result.Unresolved), result.Unresolved)
	}
	if !result.Recorded {
		fmt.Fprintln(w, "(dry run, nothing recorded)")
	}
	return nil
}

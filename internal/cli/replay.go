package cli

import (
	"context"
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"github.com/agent-next/behavior-driven-testing/internal/ledger"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Events        int               `json:"events"`
	Scenarios     int               `json:"scenarios"`
	Mismatches    []ledger.Mismatch `json:"mismatches"`
	Deterministic bool              `json:"deterministic"`
	Consistent    bool              `json:"consistent"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay ledger history and verify it against stored entries",
		Long: `Replay the ledger's status history and verify it.

Every event is folded in seq order, starting each scenario at pending, and
the result is compared with the stored entries. The fold runs twice to
verify it is deterministic.

Exit codes:
  0 - History is consistent with the entries
  1 - Mismatches found, or the two replays differ
  2 - Command error (database not found, etc.)

Examples:
  bdt replay --db ./bdt.db
  bdt replay --db ./bdt.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), opts, cmd)
		},
	}

	addDatabaseFlag(cmd, &opts.Database)

	return cmd
}

func runReplay(ctx context.Context, opts *ReplayOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	sess, err := openSession(ctx, opts.RootOptions, formatter, opts.Database)
	if err != nil {
		return err
	}
	defer sess.Close()

	// Replay twice
	first, err := sess.ledger().Replay(ctx)
	if err != nil {
		return commandError(formatter, "first replay failed", err)
	}
	second, err := sess.ledger().Replay(ctx)
	if err != nil {
		return commandError(formatter, "second replay failed", err)
	}

	diff := cmp.Diff(first, second)
	if diff != "" {
		formatter.VerboseLog("Replays differ (-first +second):\n%s", diff)
	}

	result := ReplayResult{
		Events:        first.Events,
		Scenarios:     first.Scenarios,
		Mismatches:    first.Mismatches,
		Deterministic: diff == "",
		Consistent:    first.Consistent(),
	}
	if result.Mismatches == nil {
		result.Mismatches = []ledger.Mismatch{}
	}

	if formatter.JSON() {
		if !result.Deterministic || !result.Consistent {
			return formatter.Failure(ErrCodeReplayMismatch, replayFailure(result), result)
		}
		return formatter.Success(result)
	}

	return outputReplayText(formatter, result)
}

func replayFailure(result ReplayResult) string {
	if !result.Deterministic {
		return "replay is not deterministic"
	}
	return fmt.Sprintf("history disagrees with the ledger: %d mismatch(es)", len(result.Mismatches))
}

// outputReplayText outputs the replay result as human-readable text.
func outputReplayText(formatter *OutputFormatter, result ReplayResult) error {
	w := formatter.Writer

	if result.Events == 0 && result.Scenarios == 0 {
		fmt.Fprintln(w, "Ledger is empty.")
		return nil
	}

	fmt.Fprintf(w, "Replayed %d event(s) over %d scenario(s)\n", result.Events, result.Scenarios)

	if !result.Deterministic {
		fmt.Fprintln(w, "✗ Replay is not deterministic")
	}
	for _, m := range result.Mismatches {
		fmt.Fprintf(w, "✗ %s: %s", m.ScenarioID, m.Detail)
		if m.Stored != "" || m.Replayed != "" {
			fmt.Fprintf(w, " (stored %s, replayed %s)", m.Stored, m.Replayed)
		}
		fmt.Fprintln(w)
	}

	if !result.Deterministic || !result.Consistent {
		return NewExitError(ExitFailure, replayFailure(result))
	}

	fmt.Fprintln(w, "✓ History is consistent with the ledger")
	return nil
}

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
}

// HistoryEvent is one status change in the timeline.
type HistoryEvent struct {
	Seq    int64     `json:"seq"`
	From   ir.Status `json:"from"`
	To     ir.Status `json:"to"`
	Reason string    `json:"reason,omitempty"`
	Source string    `json:"source,omitempty"`
	At     time.Time `json:"at"`
}

// HistoryResult holds the complete history output.
type HistoryResult struct {
	Scenario EntryRow       `json:"scenario"`
	Timeline []HistoryEvent `json:"timeline"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <scenario>",
		Short: "Show the status history of a scenario",
		Long: `Show every status change recorded for a scenario of the active run, in
the order the ledger received them.

The scenario is named by its id or its context key.

Examples:
  bdt history auth_authenticated_credits_sufficient --db ./bdt.db
  bdt history 3f2a... --db ./bdt.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), opts, args[0], cmd)
		},
	}

	addDatabaseFlag(cmd, &opts.Database)

	return cmd
}

func runHistory(ctx context.Context, opts *HistoryOptions, idOrKey string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	sess, err := openSession(ctx, opts.RootOptions, formatter, opts.Database)
	if err != nil {
		return err
	}
	defer sess.Close()

	l := sess.ledger()
	if l.ActiveRun() == "" {
		return noRunError(formatter)
	}

	entry, err := l.Entry(idOrKey)
	if err != nil {
		return commandError(formatter, "failed to find scenario", err)
	}
	events, err := l.Events(ctx, idOrKey)
	if err != nil {
		return commandError(formatter, "failed to load history", err)
	}

	result := HistoryResult{
		Scenario: entryRow(entry),
		Timeline: make([]HistoryEvent, len(events)),
	}
	for i, ev := range events {
		result.Timeline[i] = HistoryEvent{
			Seq:    ev.Seq,
			From:   ev.From,
			To:     ev.To,
			Reason: ev.Reason,
			Source: ev.Source,
			At:     ev.At,
		}
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	return outputHistoryText(formatter, result)
}

// outputHistoryText outputs the history as human-readable text.
func outputHistoryText(formatter *OutputFormatter, result HistoryResult) error {
	w := formatter.Writer
	fmt.Fprintf(w, "%s (%s): %s\n", result.Scenario.Key, result.Scenario.Priority, result.Scenario.Status)

	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  no status changes recorded")
		return nil
	}

	for _, ev := range result.Timeline {
		fmt.Fprintf(w, "  [%d] %s -> %s", ev.Seq, ev.From, ev.To)
		if ev.Reason != "" {
			fmt.Fprintf(w, ": %s", ev.Reason)
		}
		if ev.Source != "" {
			fmt.Fprintf(w, " (%s)", ev.Source)
		}
		fmt.Fprintln(w)
		if formatter.Verbose {
			fmt.Fprintf(w, "      at %s\n", ev.At.UTC().Format(time.RFC3339))
		}
	}
	return nil
}

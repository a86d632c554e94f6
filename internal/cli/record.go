package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agent-next/behavior-driven-testing/internal/ir"
	"github.com/agent-next/behavior-driven-testing/internal/ledger"
)

// RecordOptions holds flags for the record command.
type RecordOptions struct {
	*RootOptions
	Database string
	Status   string
	Reason   string
	Source   string
	Trace    string // "dim=value,dim=value"
}

// RecordResult holds the output of the record command.
type RecordResult struct {
	RunID    string            `json:"run_id"`
	Status   ir.Status         `json:"status"`
	Trace    map[string]string `json:"trace,omitempty"`
	Recorded []EntryRow        `json:"recorded"`
}

// EntryRow is one ledger entry in CLI output.
type EntryRow struct {
	ID       string    `json:"id"`
	Key      string    `json:"context_key"`
	Priority ir.Tier   `json:"priority"`
	Status   ir.Status `json:"status"`
	Reason   string    `json:"reason,omitempty"`
}

// NewRecordCommand creates the record command.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "record [scenario]",
		Short: "Record the result of a scenario",
		Long: `Record the status of a scenario of the active run.

The scenario is named by its id or its context key. With --trace instead,
the status is recorded for every scenario of the active run that matches
the execution trace; wildcard values match any trace value.

Statuses: pending, passed, failed, skipped. A skipped scenario counts as
covered only when --reason is given.

Examples:
  bdt record auth_authenticated_credits_sufficient --status passed --db ./bdt.db
  bdt record --trace auth=unauthenticated,credits=exact --status failed --reason "redirect loop"`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var target string
			if len(args) == 1 {
				target = args[0]
			}
			return runRecord(cmd.Context(), opts, target, cmd)
		},
	}

	addDatabaseFlag(cmd, &opts.Database)
	cmd.Flags().StringVar(&opts.Status, "status", "", "status to record (required)")
	_ = cmd.MarkFlagRequired("status")
	cmd.Flags().StringVar(&opts.Reason, "reason", "", "reason for the status")
	cmd.Flags().StringVar(&opts.Source, "source", "", "reporting runner")
	cmd.Flags().StringVar(&opts.Trace, "trace", "", "execution trace as dim=value pairs, comma separated")

	return cmd
}

func runRecord(ctx context.Context, opts *RecordOptions, target string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	status, err := ir.ParseStatus(opts.Status)
	if err != nil {
		return commandError(formatter, "invalid status", ir.NewConfigurationError("%v", err))
	}

	var trace map[string]string
	switch {
	case target == "" && opts.Trace == "":
		return commandError(formatter, "nothing to record",
			ir.NewConfigurationError("name a scenario or pass --trace"))
	case target != "" && opts.Trace != "":
		return commandError(formatter, "nothing to record",
			ir.NewConfigurationError("a scenario and --trace are mutually exclusive"))
	case opts.Trace != "":
		trace, err = ParseTrace(opts.Trace)
		if err != nil {
			return commandError(formatter, "invalid trace", err)
		}
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

	var recorded []string
	if trace != nil {
		recorded, err = sess.engine.RecordTrace(ctx, trace, status, opts.Reason, opts.Source)
	} else {
		err = l.Record(ctx, ledger.Observation{
			ScenarioID: target,
			Status:     status,
			Reason:     opts.Reason,
			Source:     opts.Source,
		})
		recorded = []string{target}
	}
	if err != nil {
		return commandError(formatter, "failed to record result", err)
	}

	result := RecordResult{RunID: l.ActiveRun(), Status: status, Trace: trace}
	for _, idOrKey := range recorded {
		entry, err := l.Entry(idOrKey)
		if err != nil {
			return commandError(formatter, "failed to read entry", err)
		}
		result.Recorded = append(result.Recorded, entryRow(entry))
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	for _, e := range result.Recorded {
		fmt.Fprintf(w, "✓ %s: %s\n", e.Key, e.Status)
		if formatter.Verbose && e.Reason != "" {
			fmt.Fprintf(w, "  reason: %s\n", e.Reason)
		}
	}
	return nil
}

func entryRow(e ir.LedgerEntry) EntryRow {
	return EntryRow{
		ID:       e.Scenario.ID,
		Key:      e.Scenario.ContextKey,
		Priority: e.Scenario.Priority,
		Status:   e.Status,
		Reason:   e.Reason,
	}
}

// ParseTrace parses "dim=value,dim=value" into a trace. Whitespace around
// names and values is trimmed; a dimension may appear once.
func ParseTrace(s string) (map[string]string, error) {
	trace := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		dim, val, ok := strings.Cut(pair, "=")
		dim, val = strings.TrimSpace(dim), strings.TrimSpace(val)
		if !ok || dim == "" || val == "" {
			return nil, ir.NewConfigurationError("trace entry %q is not dim=value", strings.TrimSpace(pair))
		}
		if _, dup := trace[dim]; dup {
			return nil, ir.NewConfigurationError("trace names dimension %q twice", dim)
		}
		trace[dim] = val
	}
	return trace, nil
}

// noRunError reports that the ledger has no active run yet.
func noRunError(f *OutputFormatter) error {
	const message = "no active run: generate scenarios first"
	if f.JSON() {
		_ = f.Error(ErrCodeNoRun, message, nil)
	}
	return NewExitError(ExitCommandError, message)
}

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// ResetOptions holds flags for the reset command.
type ResetOptions struct {
	*RootOptions
	Database string
	Yes      bool
}

// ResetResult holds the output of the reset command.
type ResetResult struct {
	Reset bool   `json:"reset"`
	RunID string `json:"previous_run,omitempty"`
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear every run, result and impact from the ledger",
		Long: `Clear the ledger: every run, entry, status history and impact record.

The ledger never resets itself; generating a new run keeps the status of
scenarios it shares with earlier runs. Use reset to start over. --yes is
required.

Examples:
  bdt reset --db ./bdt.db --yes`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(cmd.Context(), opts, cmd)
		},
	}

	addDatabaseFlag(cmd, &opts.Database)
	cmd.Flags().BoolVar(&opts.Yes, "yes", false, "confirm the reset")

	return cmd
}

func runReset(ctx context.Context, opts *ResetOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	if !opts.Yes {
		const message = "refusing to reset without --yes"
		if formatter.JSON() {
			_ = formatter.Error(ErrCodeGeneric, message, nil)
		}
		return NewExitError(ExitCommandError, message)
	}

	sess, err := openSession(ctx, opts.RootOptions, formatter, opts.Database)
	if err != nil {
		return err
	}
	defer sess.Close()

	previous := sess.ledger().ActiveRun()
	if err := sess.ledger().Reset(ctx); err != nil {
		return commandError(formatter, "failed to reset ledger", err)
	}

	if formatter.JSON() {
		return formatter.Success(ResetResult{Reset: true, RunID: previous})
	}
	fmt.Fprintln(formatter.Writer, "✓ Ledger reset")
	return nil
}

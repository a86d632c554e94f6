package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agent-next/behavior-driven-testing/internal/engine"
	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	*RootOptions
	Database     string
	Strategy     string
	MaxScenarios int
}

// ScenarioRow is one generated scenario in CLI output.
type ScenarioRow struct {
	ID       string  `json:"id"`
	Key      string  `json:"context_key"`
	Priority ir.Tier `json:"priority"`
	Bucket   ir.Tier `json:"bucket,omitempty"`
}

// OmittedRow is one combination a priority-bucketed run left out.
type OmittedRow struct {
	Key      string  `json:"context_key"`
	Priority ir.Tier `json:"priority"`
	Reason   string  `json:"reason"`
}

// GenerateResult holds the output of the generate command.
type GenerateResult struct {
	RunID     string          `json:"run_id"`
	Model     string          `json:"model"`
	Strategy  engine.Strategy `json:"strategy"`
	Scenarios []ScenarioRow   `json:"scenarios"`
	Omitted   []OmittedRow    `json:"omitted,omitempty"`
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "generate <model>",
		Short: "Generate scenarios and register them as a new run",
		Long: `Generate the scenario set of a model and register it in the ledger as
the new active run.

Strategies:
  exhaustive         every valid combination
  pairwise           every legal pair of values covered at least once
  priority-bucketed  P0 failure paths, P1 critical paths, P2 common
                     variations; everything else is omitted

Scenarios shared with earlier runs keep their recorded status.

Examples:
  bdt generate checkout.yaml --db ./bdt.db
  bdt generate browsers.yaml --db ./bdt.db --strategy priority-bucketed
  bdt generate big.yaml --db ./bdt.db --strategy pairwise --max-scenarios 500`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), opts, args[0], cmd)
		},
	}

	addDatabaseFlag(cmd, &opts.Database)
	cmd.Flags().StringVarP(&opts.Strategy, "strategy", "s", string(engine.StrategyExhaustive),
		"generation strategy (exhaustive|pairwise|priority-bucketed)")
	cmd.Flags().IntVar(&opts.MaxScenarios, "max-scenarios", 0,
		"maximum combinations a run may enumerate (0 = default quota)")

	return cmd
}

func runGenerate(ctx context.Context, opts *GenerateOptions, modelPath string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	strategy, err := engine.ParseStrategy(opts.Strategy)
	if err != nil {
		return commandError(formatter, "invalid strategy", err)
	}
	if opts.MaxScenarios < 0 {
		return commandError(formatter, "invalid quota",
			ir.NewConfigurationError("max-scenarios must not be negative, got %d", opts.MaxScenarios))
	}

	var engineOpts []engine.EngineOption
	if opts.MaxScenarios > 0 {
		engineOpts = append(engineOpts, engine.WithGeneratorOptions(engine.WithMaxScenarios(opts.MaxScenarios)))
	}

	sess, err := openSession(ctx, opts.RootOptions, formatter, opts.Database, engineOpts...)
	if err != nil {
		return err
	}
	defer sess.Close()

	model, err := sess.engine.LoadModel(modelPath)
	if err != nil {
		return commandError(formatter, "failed to load model", err)
	}
	formatter.VerboseLog("Loaded model %s (%d dimensions)", model.Name, len(model.Dimensions))

	res, err := sess.engine.Generate(ctx, strategy)
	if err != nil {
		return commandError(formatter, "failed to generate scenarios", err)
	}

	result := GenerateResult{
		RunID:     res.RunID,
		Model:     model.Name,
		Strategy:  res.Strategy,
		Scenarios: scenarioRows(res.Scenarios),
		Omitted:   omittedRows(res.Omitted),
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	return outputGenerateText(formatter, result)
}

func scenarioRows(scs []ir.Scenario) []ScenarioRow {
	rows := make([]ScenarioRow, len(scs))
	for i, sc := range scs {
		rows[i] = ScenarioRow{
			ID:       sc.ID,
			Key:      sc.ContextKey,
			Priority: sc.Priority,
			Bucket:   sc.Bucket,
		}
	}
	return rows
}

func omittedRows(omitted []engine.Omission) []OmittedRow {
	if len(omitted) == 0 {
		return nil
	}
	rows := make([]OmittedRow, len(omitted))
	for i, o := range omitted {
		rows[i] = OmittedRow{
			Key:      o.Scenario.ContextKey,
			Priority: o.Scenario.Priority,
			Reason:   o.Reason,
		}
	}
	return rows
}

func outputGenerateText(formatter *OutputFormatter, result GenerateResult) error {
	w := formatter.Writer
	fmt.Fprintf(w, "✓ Generated %d scenario(s) from %s (%s)\n", len(result.Scenarios), result.Model, result.Strategy)
	fmt.Fprintf(w, "  run: %s\n\n", result.RunID)

	for _, row := range result.Scenarios {
		fmt.Fprintf(w, "  %s  %s\n", row.Priority, row.Key)
		if formatter.Verbose {
			fmt.Fprintf(w, "      id: %s\n", row.ID)
		}
	}

	if len(result.Omitted) > 0 {
		fmt.Fprintf(w, "\nOmitted %d combination(s):\n", len(result.Omitted))
		for _, row := range result.Omitted {
			fmt.Fprintf(w, "  %s  %s (%s)\n", row.Priority, row.Key, row.Reason)
		}
	}
	return nil
}

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agent-next/behavior-driven-testing/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool                       `json:"valid"`
	Model      string                     `json:"model,omitempty"`
	Dimensions int                        `json:"dimensions,omitempty"`
	Branches   int                        `json:"branches,omitempty"`
	Exclusions []string                   `json:"exclusions,omitempty"`
	Errors     []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <model>",
		Short: "Validate a coverage model",
		Long: `Validate a coverage model without generating scenarios.

Compiles the model (YAML, JSON or CUE), checks its declarations and cross
references, and closes its guard rules. Every finding is listed.

Exit codes:
  0 - Model is valid
  1 - Model has validation errors
  2 - Command error (file not found, does not compile, etc.)

Examples:
  bdt validate checkout.yaml
  bdt validate checkout.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	model, err := compiler.LoadModel(path)
	if err != nil {
		var verrs compiler.ValidationErrors
		if errors.As(err, &verrs) {
			return outputValidationErrors(formatter, verrs)
		}
		return commandError(formatter, "failed to load model", err)
	}

	closure, err := compiler.CloseGuards(model)
	if err != nil {
		return commandError(formatter, "failed to close guards", err)
	}

	result := ValidationResult{
		Valid:      true,
		Model:      model.Name,
		Dimensions: len(model.Dimensions),
		Branches:   len(model.Branches),
		Exclusions: closure.Pairs(),
	}
	return outputValidateSuccess(formatter, result)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Model valid: %s (%d dimensions, %d branches)\n",
		result.Model, result.Dimensions, result.Branches)
	if formatter.Verbose {
		for _, pair := range result.Exclusions {
			fmt.Fprintf(formatter.Writer, "  %s\n", pair)
		}
	}
	return nil
}

// outputValidationErrors outputs every validation finding.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	message := fmt.Sprintf("validation failed with %d error(s)", len(errs))

	if formatter.JSON() {
		return formatter.Failure(ErrCodeInvalidModel, message, ValidationResult{Valid: false, Errors: errs})
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	return NewExitError(ExitFailure, message)
}

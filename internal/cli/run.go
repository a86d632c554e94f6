package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agent-next/behavior-driven-testing/internal/harness"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Filter string
	Golden string // directory of <name>.golden snapshots
	Update bool
}

// RunFileResult is the outcome of one run file.
type RunFileResult struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// RunResult holds the overall outcome of the run command.
type RunResult struct {
	Files  []RunFileResult `json:"files"`
	Total  int             `json:"total"`
	Passed int             `json:"passed"`
	Failed int             `json:"failed"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <run-file-or-dir>",
		Short: "Execute conformance run files",
		Long: `Execute conformance run files against the engine.

Each run file names a model and a strategy, reports results for the
generated scenarios and asserts what the ledger must look like afterwards.
Every file runs in its own in-memory ledger, so run files never touch a
ledger database.

With --golden, each passing run is also compared against its snapshot
<dir>/<name>.golden; --update rewrites the snapshots instead.

Exit codes:
  0 - All run files passed
  1 - One or more run files failed
  2 - Command error (path not found, etc.)

Examples:
  bdt run testdata/runs
  bdt run testdata/runs --filter 'checkout*'
  bdt run testdata/runs --golden testdata/golden --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunFiles(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run files whose name matches this glob")
	cmd.Flags().StringVar(&opts.Golden, "golden", "", "directory of golden snapshots to compare against")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden snapshots (requires --golden)")

	return cmd
}

func runRunFiles(ctx context.Context, opts *RunOptions, path string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	if opts.Update && opts.Golden == "" {
		const message = "--update requires --golden"
		if formatter.JSON() {
			_ = formatter.Error(ErrCodeGeneric, message, nil)
		}
		return NewExitError(ExitCommandError, message)
	}

	files, err := harness.FindRunFiles(path)
	if err != nil {
		return commandError(formatter, "failed to find run files", err)
	}
	files, err = filterRunFiles(files, opts.Filter)
	if err != nil {
		return commandError(formatter, "invalid filter pattern", err)
	}
	formatter.VerboseLog("Running %d run file(s) from %s", len(files), path)

	suite, err := harness.RunFiles(ctx, files)
	if err != nil {
		return commandError(formatter, "failed to execute run files", err)
	}

	failures := make(map[string]string, len(suite.Failures))
	for _, f := range suite.Failures {
		failures[f.Path] = f.Error
	}

	result := RunResult{Files: []RunFileResult{}, Total: suite.Total}
	for _, fr := range suite.Results {
		name := fr.Name
		if name == "" {
			name = filepath.Base(fr.Path)
		}
		out := RunFileResult{Name: name, Path: fr.Path, Pass: true}
		if msg, failed := failures[fr.Path]; failed {
			out.Pass = false
			out.Errors = strings.Split(msg, "\n")
		} else if opts.Golden != "" {
			if err := checkGolden(opts, fr); err != nil {
				out.Pass = false
				out.Errors = []string{err.Error()}
			}
		}

		if out.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Files = append(result.Files, out)
	}

	if formatter.JSON() {
		if result.Failed > 0 {
			return formatter.Failure(ErrCodeRunFailed, runFailure(result), result)
		}
		return formatter.Success(result)
	}

	return outputRunText(formatter, result)
}

// filterRunFiles keeps the files whose base name, without extension,
// matches pattern.
func filterRunFiles(files []string, pattern string) ([]string, error) {
	if pattern == "" {
		return files, nil
	}
	var out []string
	for _, file := range files {
		base := filepath.Base(file)
		name := strings.TrimSuffix(base, filepath.Ext(base))
		matched, err := filepath.Match(pattern, name)
		if err != nil {
			return nil, err
		}
		if matched {
			out = append(out, file)
		}
	}
	return out, nil
}

// checkGolden compares a passing run's snapshot against its golden file,
// or rewrites the golden file when updating.
func checkGolden(opts *RunOptions, fr harness.FileResult) error {
	data, err := harness.Snapshot(fr.Name, fr.RunID, fr.Result)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	golden := filepath.Join(opts.Golden, fr.Name+".golden")

	if opts.Update {
		if err := os.MkdirAll(opts.Golden, 0o755); err != nil {
			return fmt.Errorf("create golden directory: %w", err)
		}
		if err := os.WriteFile(golden, data, 0o644); err != nil {
			return fmt.Errorf("write golden file: %w", err)
		}
		return nil
	}

	want, err := os.ReadFile(golden)
	if err != nil {
		return fmt.Errorf("read golden file: %w", err)
	}
	if !bytes.Equal(bytes.TrimSpace(want), bytes.TrimSpace(data)) {
		return fmt.Errorf("snapshot differs from %s", golden)
	}
	return nil
}

func runFailure(result RunResult) string {
	return fmt.Sprintf("%d of %d run file(s) failed", result.Failed, result.Total)
}

// outputRunText outputs run results as human-readable text.
func outputRunText(formatter *OutputFormatter, result RunResult) error {
	w := formatter.Writer

	if result.Total == 0 {
		fmt.Fprintln(w, "No run files found.")
		return nil
	}

	for _, f := range result.Files {
		if f.Pass {
			fmt.Fprintf(w, "✓ %s\n", f.Name)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", f.Name)
		for _, e := range f.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, runFailure(result))
	}
	return nil
}

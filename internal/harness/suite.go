package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// SuiteResult summarizes a directory of run files.
type SuiteResult struct {
	Total    int           `json:"total"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Results  []FileResult  `json:"results"`
	Failures []FileFailure `json:"failures,omitempty"`
}

// FileResult is the outcome of one run file.
type FileResult struct {
	Name   string  `json:"name"`
	Path   string  `json:"path"`
	RunID  string  `json:"run_id,omitempty"`
	Result *Result `json:"-"`
}

// FileFailure represents a failed run file.
type FileFailure struct {
	Name  string `json:"name,omitempty"`
	Path  string `json:"path"`
	Error string `json:"error"`
}

// FindRunFiles returns the .yaml/.yml files directly under dir, sorted by
// name. A path naming a single file is returned as is.
func FindRunFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", path, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// RunSuite loads and executes every run file under path.
//
// Files run concurrently, each in its own in-memory store; results are
// reported in file order. A file that fails to load or execute counts as
// failed and does not stop the others.
func RunSuite(ctx context.Context, path string) (*SuiteResult, error) {
	files, err := FindRunFiles(path)
	if err != nil {
		return nil, err
	}
	return RunFiles(ctx, files)
}

// RunFiles executes the given run files the way RunSuite does.
func RunFiles(ctx context.Context, files []string) (*SuiteResult, error) {
	results := make([]FileResult, len(files))
	errs := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, file := range files {
		g.Go(func() error {
			results[i].Path = file
			rf, err := LoadRunFile(file)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i].Name = rf.Name
			results[i].RunID = rf.RunID
			results[i].Result, errs[i] = RunContext(gctx, rf)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	suite := &SuiteResult{Total: len(files), Results: results}
	for i, r := range results {
		switch {
		case errs[i] != nil:
			suite.Failures = append(suite.Failures, FileFailure{Name: r.Name, Path: r.Path, Error: errs[i].Error()})
		case !r.Result.Pass:
			suite.Failures = append(suite.Failures, FileFailure{
				Name:  r.Name,
				Path:  r.Path,
				Error: strings.Join(r.Result.Errors, "\n"),
			})
		default:
			suite.Passed++
			continue
		}
		suite.Failed++
	}
	return suite, nil
}

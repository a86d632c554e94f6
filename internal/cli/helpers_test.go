package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	checkoutModel = "testdata/models/checkout.yaml"
	browsersModel = "testdata/models/browsers.yaml"
	brokenModel   = "testdata/models/broken.yaml"
	releaseImpact = "testdata/impacts/release.yaml"
	harnessRuns   = "../harness/testdata/runs"
)

// execute runs the root command with args and returns stdout, stderr and
// the command error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// mustExecute runs a command that must succeed.
func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, stderr, err := execute(t, args...)
	require.NoError(t, err, "stdout: %s\nstderr: %s", out, stderr)
	return out
}

// testDB returns a fresh ledger database path and clears the environment
// fallback.
func testDB(t *testing.T) string {
	t.Helper()
	t.Setenv(DatabaseEnv, "")
	return filepath.Join(t.TempDir(), "bdt.db")
}

// decode unmarshals a JSON CLI response, decoding Data into data.
func decode(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), "output: %s", out)
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error}
}

// generateCheckout registers the exhaustive checkout run in db.
func generateCheckout(t *testing.T, db string) GenerateResult {
	t.Helper()
	var result GenerateResult
	out := mustExecute(t, "generate", checkoutModel, "--db", db, "--format", "json")
	decode(t, out, &result)
	return result
}

package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

// CLI error codes. Engine failures map onto E002-E006; E01x mark results
// that failed a check.
const (
	ErrCodeGeneric          = "E001" // Generic/unknown error
	ErrCodeConfiguration    = "E002" // Invalid model, strategy or quota
	ErrCodeEmptyDimension   = "E003" // Required dimension has no values
	ErrCodeUnknownScenario  = "E004" // Scenario not in the active run
	ErrCodeNotFound         = "E005" // Path not found
	ErrCodeStoreUnavailable = "E006" // Ledger store failure
	ErrCodeNoRun            = "E007" // No run generated yet

	ErrCodeInvalidModel   = "E010" // Model failed validation
	ErrCodeReleaseBlocked = "E011" // Report is release-blocking
	ErrCodeReplayMismatch = "E012" // Replayed history disagrees with entries
	ErrCodeRunFailed      = "E013" // Conformance run files failed
)

// errorCode maps an error onto a CLI error code.
func errorCode(err error) string {
	if errors.Is(err, fs.ErrNotExist) {
		return ErrCodeNotFound
	}
	switch ir.CodeOf(err) {
	case ir.ErrCodeConfiguration:
		return ErrCodeConfiguration
	case ir.ErrCodeEmptyDimension:
		return ErrCodeEmptyDimension
	case ir.ErrCodeUnknownScenario:
		return ErrCodeUnknownScenario
	case ir.ErrCodeStoreUnavailable:
		return ErrCodeStoreUnavailable
	default:
		return ErrCodeGeneric
	}
}

// errorDetails returns the structured details of an engine error.
func errorDetails(err error) any {
	var ee *ir.EngineError
	if errors.As(err, &ee) && len(ee.Details) > 0 {
		return ee.Details
	}
	return nil
}

// commandError reports err as a command error (exit code 2). JSON output
// carries the error response; text output is left to the caller of Execute.
func commandError(f *OutputFormatter, message string, err error) error {
	if f.JSON() {
		_ = f.Error(errorCode(err), fmt.Sprintf("%s: %v", message, err), errorDetails(err))
	}
	return WrapExitError(ExitCommandError, message, err)
}

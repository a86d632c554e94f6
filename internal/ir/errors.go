package ir

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeConfiguration indicates a malformed model or an undeclared id.
	// Fatal, never retried.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION"

	// ErrCodeEmptyDimension indicates a non-optional dimension without values.
	ErrCodeEmptyDimension ErrorCode = "EMPTY_DIMENSION"

	// ErrCodeUnknownScenario indicates a ledger call for an id the active
	// run never generated. Fatal for that call only.
	ErrCodeUnknownScenario ErrorCode = "UNKNOWN_SCENARIO"

	// ErrCodeStoreUnavailable indicates a transient ledger store failure.
	// The caller may retry.
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
)

// EngineError is the typed error returned across package boundaries.
type EngineError struct {
	Code    ErrorCode
	Message string
	Details map[string]string
	Err     error
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = k + "=" + e.Details[k]
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(pairs, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates a configuration error.
func NewConfigurationError(format string, args ...any) *EngineError {
	return &EngineError{Code: ErrCodeConfiguration, Message: fmt.Sprintf(format, args...)}
}

// NewEmptyDimensionError creates an empty-dimension error.
func NewEmptyDimensionError(dimension string) *EngineError {
	return &EngineError{
		Code:    ErrCodeEmptyDimension,
		Message: "dimension has no values and is not optional",
		Details: map[string]string{"dimension": dimension},
	}
}

// NewUnknownScenarioError creates an unknown-scenario error.
func NewUnknownScenarioError(scenarioID string) *EngineError {
	return &EngineError{
		Code:    ErrCodeUnknownScenario,
		Message: "scenario was not generated for the active run",
		Details: map[string]string{"scenario": scenarioID},
	}
}

// NewStoreUnavailableError wraps a store failure.
func NewStoreUnavailableError(op string, err error) *EngineError {
	return &EngineError{
		Code:    ErrCodeStoreUnavailable,
		Message: "ledger store unavailable",
		Details: map[string]string{"op": op},
		Err:     err,
	}
}

// CodeOf returns the code of an EngineError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// IsConfigurationError reports whether err is a configuration error.
func IsConfigurationError(err error) bool { return CodeOf(err) == ErrCodeConfiguration }

// IsEmptyDimensionError reports whether err is an empty-dimension error.
func IsEmptyDimensionError(err error) bool { return CodeOf(err) == ErrCodeEmptyDimension }

// IsUnknownScenarioError reports whether err is an unknown-scenario error.
func IsUnknownScenarioError(err error) bool { return CodeOf(err) == ErrCodeUnknownScenario }

// IsStoreUnavailableError reports whether err is a store failure.
func IsStoreUnavailableError(err error) bool { return CodeOf(err) == ErrCodeStoreUnavailable }

package compiler

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// Document errors (E100-E109)
	ErrInvalidDocument = "E100" // structural check failed while decoding
	ErrNoDimensions    = "E101" // at least one dimension required

	// Dimension errors (E120-E129)
	ErrEmptyID            = "E120" // dimension or value id is empty
	ErrDuplicateDimension = "E121" // dimension id declared twice
	ErrDuplicateValue     = "E122" // value id declared twice in a dimension
	ErrMultipleWildcards  = "E123" // more than one wildcard value
	ErrInvalidValueKind   = "E124" // kind not boundary/equivalence/wildcard
	ErrInvalidFactor      = "E125" // unknown factor level
	ErrReservedValueID    = "E126" // "*" used as a concrete value id

	// Reference errors (E130-E139)
	ErrUnknownReference = "E130" // guard, branch or critical names an undeclared id
	ErrDuplicateBranch  = "E131" // branch id declared twice
	ErrInvalidTier      = "E132" // priority tier not P0-P3
)

// ValidationError represents a model validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a model's declarations and cross references.
// Returns all errors found (does not fail-fast).
func Validate(m *ir.Model) []ValidationError {
	var errs []ValidationError

	if len(m.Dimensions) == 0 {
		errs = append(errs, ValidationError{
			Field:   "dimensions",
			Message: "at least one dimension is required",
			Code:    ErrNoDimensions,
		})
	}

	seenDims := make(map[string]bool)
	for i, d := range m.Dimensions {
		field := fmt.Sprintf("dimensions[%d]", i)
		if strings.TrimSpace(d.ID) == "" {
			errs = append(errs, ValidationError{Field: field + ".id", Message: "dimension id is required", Code: ErrEmptyID})
		} else {
			field = "dimensions." + d.ID
		}
		if seenDims[d.ID] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate dimension %q", d.ID),
				Code:    ErrDuplicateDimension,
			})
		}
		seenDims[d.ID] = true
		errs = append(errs, validateValues(field, d)...)
	}

	for i, g := range m.Guards {
		field := fmt.Sprintf("guards[%d]", i)
		if err := checkRef(m, g.Source()); err != nil {
			errs = append(errs, ValidationError{Field: field + ".value", Message: err.Error(), Code: ErrUnknownReference})
		}
		for j, ex := range g.Excludes {
			if err := checkRef(m, ex); err != nil {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.excludes[%d]", field, j),
					Message: err.Error(),
					Code:    ErrUnknownReference,
				})
			}
		}
	}

	seenBranches := make(map[string]bool)
	for i, b := range m.Branches {
		field := fmt.Sprintf("branches[%d]", i)
		if strings.TrimSpace(b.ID) == "" {
			errs = append(errs, ValidationError{Field: field + ".id", Message: "branch id is required", Code: ErrEmptyID})
		} else {
			field = "branches." + b.ID
		}
		if seenBranches[b.ID] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate branch %q", b.ID),
				Code:    ErrDuplicateBranch,
			})
		}
		seenBranches[b.ID] = true
		for _, tier := range []ir.Tier{b.TruePriority, b.FalsePriority} {
			if _, err := ir.ParseTier(string(tier)); err != nil {
				errs = append(errs, ValidationError{Field: field, Message: err.Error(), Code: ErrInvalidTier})
			}
		}
		errs = append(errs, validateSelector(m, field+".when", b.When)...)
	}

	for i, sel := range m.Critical {
		errs = append(errs, validateSelector(m, fmt.Sprintf("critical[%d]", i), sel)...)
	}

	return errs
}

func validateValues(field string, d ir.Dimension) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool)
	wildcards := 0
	for j, v := range d.Values {
		vfield := fmt.Sprintf("%s.values[%d]", field, j)
		if strings.TrimSpace(v.ID) == "" {
			errs = append(errs, ValidationError{Field: vfield + ".id", Message: "value id is required", Code: ErrEmptyID})
		}
		if seen[v.ID] {
			errs = append(errs, ValidationError{
				Field:   vfield,
				Message: fmt.Sprintf("duplicate value %q", v.ID),
				Code:    ErrDuplicateValue,
			})
		}
		seen[v.ID] = true
		if !ir.ValidValueKinds[v.Kind] {
			errs = append(errs, ValidationError{
				Field:   vfield + ".kind",
				Message: fmt.Sprintf("invalid kind %q", v.Kind),
				Code:    ErrInvalidValueKind,
			})
		}
		if v.IsWildcard() {
			wildcards++
		} else if v.ID == ir.Wildcard {
			errs = append(errs, ValidationError{
				Field:   vfield + ".id",
				Message: fmt.Sprintf("%q is reserved for wildcard values", ir.Wildcard),
				Code:    ErrReservedValueID,
			})
		}
		if err := v.Factors.Validate(); err != nil {
			errs = append(errs, ValidationError{Field: vfield + ".factors", Message: err.Error(), Code: ErrInvalidFactor})
		}
	}
	if wildcards > 1 {
		errs = append(errs, ValidationError{
			Field:   field + ".values",
			Message: fmt.Sprintf("at most one wildcard value allowed, found %d", wildcards),
			Code:    ErrMultipleWildcards,
		})
	}
	return errs
}

func validateSelector(m *ir.Model, field string, sel map[string]string) []ValidationError {
	var errs []ValidationError
	for _, dimID := range slices.Sorted(maps.Keys(sel)) {
		if err := checkRef(m, ir.ValueRef{Dimension: dimID, Value: sel[dimID]}); err != nil {
			errs = append(errs, ValidationError{Field: field + "." + dimID, Message: err.Error(), Code: ErrUnknownReference})
		}
	}
	return errs
}

// ValidateModel runs Validate and folds any findings into a single
// configuration error.
func ValidateModel(m *ir.Model) error {
	return validationFailure(m.Name, Validate(m))
}

func validationFailure(name string, errs []ValidationError) error {
	if len(errs) == 0 {
		return nil
	}
	ce := ir.NewConfigurationError("model %q is invalid", name)
	ce.Details = map[string]string{"errors": fmt.Sprint(len(errs))}
	ce.Err = ValidationErrors(errs)
	return ce
}

// ValidationErrors is every finding of a failed validation. A
// configuration error from LoadModel or ValidateModel wraps it; recover it
// with errors.As.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

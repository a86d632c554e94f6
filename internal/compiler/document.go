package compiler

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

// The document types are the authored shape of a model, shared by the CUE,
// YAML and JSON front ends. Struct tags drive both decoding and the
// validator's structural checks; cross-reference checks live in Validate.

type document struct {
	Name       string              `json:"name" yaml:"name"`
	Dimensions []namedDimension    `json:"-" yaml:"-" validate:"dive"`
	Branches   []namedBranch       `json:"-" yaml:"-" validate:"dive"`
	Critical   []map[string]string `json:"critical,omitempty" yaml:"critical,omitempty"`
}

type namedDimension struct {
	ID  string `validate:"required"`
	Doc dimensionDoc
}

type namedBranch struct {
	ID  string `validate:"required"`
	Doc branchDoc
}

type dimensionDoc struct {
	Label    string     `json:"label,omitempty" yaml:"label,omitempty"`
	Optional bool       `json:"optional,omitempty" yaml:"optional,omitempty"`
	Values   []valueDoc `json:"values" yaml:"values" validate:"dive"`
	Guards   []guardDoc `json:"guards,omitempty" yaml:"guards,omitempty" validate:"dive"`
}

type valueDoc struct {
	ID          string    `json:"id" yaml:"id" validate:"required"`
	Kind        string    `json:"kind,omitempty" yaml:"kind,omitempty" validate:"omitempty,oneof=boundary equivalence wildcard"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Nominal     bool      `json:"nominal,omitempty" yaml:"nominal,omitempty"`
	Failure     bool      `json:"failure,omitempty" yaml:"failure,omitempty"`
	Factors     factorDoc `json:"factors,omitempty" yaml:"factors,omitempty"`
}

type factorDoc struct {
	Impact    string `json:"impact,omitempty" yaml:"impact,omitempty" validate:"omitempty,oneof=blocking major minor cosmetic none"`
	Frequency string `json:"frequency,omitempty" yaml:"frequency,omitempty" validate:"omitempty,oneof=mostUsers someUsers fewUsers none"`
	DataRisk  string `json:"data_risk,omitempty" yaml:"data_risk,omitempty" validate:"omitempty,oneof=loss incorrect incomplete none"`
	Security  string `json:"security,omitempty" yaml:"security,omitempty" validate:"omitempty,oneof=vulnerability weakness hardening none"`
}

// guardDoc excludes are "dimension=value" strings; "dimension=*" expands
// to every concrete value of that dimension.
type guardDoc struct {
	Value    string   `json:"value" yaml:"value" validate:"required"`
	Excludes []string `json:"excludes" yaml:"excludes" validate:"min=1,dive,required,contains=="`
}

type branchDoc struct {
	Condition     string            `json:"condition,omitempty" yaml:"condition,omitempty"`
	When          map[string]string `json:"when,omitempty" yaml:"when,omitempty"`
	TruePriority  string            `json:"true_priority,omitempty" yaml:"true_priority,omitempty" validate:"omitempty,oneof=P0 P1 P2 P3"`
	FalsePriority string            `json:"false_priority,omitempty" yaml:"false_priority,omitempty" validate:"omitempty,oneof=P0 P1 P2 P3"`
}

var (
	docValidate     *validator.Validate
	docValidateOnce sync.Once
)

// validateDocument runs the structural tag checks and converts failures to
// ValidationErrors.
func validateDocument(doc *document) []ValidationError {
	docValidateOnce.Do(func() {
		docValidate = validator.New(validator.WithRequiredStructEnabled())
	})

	err := docValidate.Struct(doc)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []ValidationError{{Field: "document", Message: err.Error(), Code: ErrInvalidDocument}}
	}

	out := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   strings.TrimPrefix(fe.Namespace(), "document."),
			Message: describeFieldError(fe),
			Code:    ErrInvalidDocument,
		})
	}
	return out
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("%q is not one of [%s]", fe.Value(), fe.Param())
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	case "contains":
		return fmt.Sprintf("%q must have the form dimension=value", fe.Value())
	default:
		return fmt.Sprintf("failed %s check", fe.Tag())
	}
}

// build converts a document into a model. Guard shorthands are expanded
// here; references to unknown dimensions are left for Validate to report,
// except for "dim=*" expansion which needs the target dimension.
func (doc *document) build() (*ir.Model, []ValidationError) {
	var errs []ValidationError

	model := &ir.Model{Name: doc.Name}
	for _, nd := range doc.Dimensions {
		dim := ir.Dimension{
			ID:       nd.ID,
			Label:    nd.Doc.Label,
			Optional: nd.Doc.Optional,
		}
		for _, vd := range nd.Doc.Values {
			kind := ir.ValueKind(vd.Kind)
			if kind == "" {
				kind = ir.KindEquivalence
			}
			dim.Values = append(dim.Values, ir.Value{
				ID:          vd.ID,
				Kind:        kind,
				Description: vd.Description,
				Nominal:     vd.Nominal,
				Failure:     vd.Failure,
				Factors: ir.FactorScores{
					Impact:    vd.Factors.Impact,
					Frequency: vd.Factors.Frequency,
					DataRisk:  vd.Factors.DataRisk,
					Security:  vd.Factors.Security,
				},
			})
		}
		model.Dimensions = append(model.Dimensions, dim)
	}

	for _, nd := range doc.Dimensions {
		for gi, gd := range nd.Doc.Guards {
			rule := ir.GuardRule{DimensionID: nd.ID, ValueID: gd.Value}
			for ei, ex := range gd.Excludes {
				refs, err := expandRef(model, ex)
				if err != nil {
					errs = append(errs, ValidationError{
						Field:   fmt.Sprintf("dimensions.%s.guards[%d].excludes[%d]", nd.ID, gi, ei),
						Message: err.Error(),
						Code:    ErrUnknownReference,
					})
					continue
				}
				rule.Excludes = append(rule.Excludes, refs...)
			}
			model.Guards = append(model.Guards, rule)
		}
	}

	for _, nb := range doc.Branches {
		model.Branches = append(model.Branches, ir.Branch{
			ID:            nb.ID,
			Condition:     nb.Doc.Condition,
			When:          nb.Doc.When,
			TruePriority:  ir.Tier(nb.Doc.TruePriority),
			FalsePriority: ir.Tier(nb.Doc.FalsePriority),
		})
	}

	for _, sel := range doc.Critical {
		model.Critical = append(model.Critical, ir.Selector(sel))
	}

	return model, errs
}

// expandRef parses "dim=value"; "dim=*" yields every concrete value of dim.
func expandRef(model *ir.Model, ref string) ([]ir.ValueRef, error) {
	dimID, valID, ok := strings.Cut(ref, "=")
	dimID, valID = strings.TrimSpace(dimID), strings.TrimSpace(valID)
	if !ok || dimID == "" || valID == "" {
		return nil, fmt.Errorf("%q must have the form dimension=value", ref)
	}
	if valID != ir.Wildcard {
		return []ir.ValueRef{{Dimension: dimID, Value: valID}}, nil
	}
	dim, found := model.Dimension(dimID)
	if !found {
		return nil, fmt.Errorf("unknown dimension %q", dimID)
	}
	concrete := dim.Concrete()
	refs := make([]ir.ValueRef, 0, len(concrete))
	for _, v := range concrete {
		refs = append(refs, ir.ValueRef{Dimension: dimID, Value: v.ID})
	}
	return refs, nil
}

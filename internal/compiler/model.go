package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

// CompileModel parses a CUE value into a dimension model.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value is the model document itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`
//		model: "checkout"
//		dimension: auth: values: [{id: "authenticated"}, {id: "unauthenticated"}]
//	`)
//	model, err := CompileModel(v)
//
// Dimensions and branches keep their declaration order, which fixes
// scenario ordering downstream.
func CompileModel(v cue.Value) (*ir.Model, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	doc := &document{}

	nameVal := v.LookupPath(cue.ParsePath("model"))
	if nameVal.Exists() {
		name, err := nameVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		doc.Name = name
	}

	var err error
	doc.Dimensions, err = parseDimensions(v)
	if err != nil {
		return nil, err
	}
	if len(doc.Dimensions) == 0 {
		return nil, &CompileError{
			Field:   "dimension",
			Message: "at least one dimension is required",
			Pos:     v.Pos(),
		}
	}

	doc.Branches, err = parseBranches(v)
	if err != nil {
		return nil, err
	}

	criticalVal := v.LookupPath(cue.ParsePath("critical"))
	if criticalVal.Exists() {
		if err := criticalVal.Decode(&doc.Critical); err != nil {
			return nil, formatCUEError(err)
		}
	}

	return finishDocument(doc)
}

func parseDimensions(v cue.Value) ([]namedDimension, error) {
	var dims []namedDimension

	dimVal := v.LookupPath(cue.ParsePath("dimension"))
	if !dimVal.Exists() {
		return dims, nil
	}

	iter, err := dimVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		dimID := iter.Selector().Unquoted()
		dimValue := iter.Value()

		var dd dimensionDoc
		if err := dimValue.Decode(&dd); err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("dimension.%s", dimID),
				Message: err.Error(),
				Pos:     dimValue.Pos(),
			}
		}
		dims = append(dims, namedDimension{ID: dimID, Doc: dd})
	}

	return dims, nil
}

func parseBranches(v cue.Value) ([]namedBranch, error) {
	var branches []namedBranch

	branchVal := v.LookupPath(cue.ParsePath("branch"))
	if !branchVal.Exists() {
		return branches, nil
	}

	iter, err := branchVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		branchID := iter.Selector().Unquoted()
		branchValue := iter.Value()

		var bd branchDoc
		if err := branchValue.Decode(&bd); err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("branch.%s", branchID),
				Message: err.Error(),
				Pos:     branchValue.Pos(),
			}
		}
		branches = append(branches, namedBranch{ID: branchID, Doc: bd})
	}

	return branches, nil
}

// finishDocument runs structural checks, builds the model and validates
// its cross references. All findings are reported together.
func finishDocument(doc *document) (*ir.Model, error) {
	errs := validateDocument(doc)
	model, buildErrs := doc.build()
	errs = append(errs, buildErrs...)
	if len(errs) == 0 {
		errs = append(errs, Validate(model)...)
	}
	if err := validationFailure(doc.Name, errs); err != nil {
		return nil, err
	}
	return model, nil
}

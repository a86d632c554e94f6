package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/agent-next/behavior-driven-testing/internal/ir"
)

// Format names a model document encoding.
type Format string

const (
	FormatCUE  Format = "cue"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatForPath picks a document format from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return FormatCUE, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported model file extension %q (want .cue, .yaml, .yml or .json)", filepath.Ext(path))
	}
}

// LoadModel reads and compiles a model file. A model without a name takes
// the file's base name. Every failure is a configuration error.
func LoadModel(path string) (*ir.Model, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, ir.NewConfigurationError("%v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, asConfigurationError(path, err)
	}

	model, err := ParseModel(path, data, format)
	if err != nil {
		return nil, err
	}
	if model.Name == "" {
		model.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return model, nil
}

// ParseModel compiles a model document held in memory. filename is used
// for error positions only.
func ParseModel(filename string, data []byte, format Format) (*ir.Model, error) {
	var (
		model *ir.Model
		err   error
	)
	switch format {
	case FormatCUE:
		v := cuecontext.New().CompileBytes(data, cue.Filename(filename))
		model, err = CompileModel(v)
	case FormatYAML, FormatJSON:
		// JSON documents are valid YAML, and the YAML decoder keeps
		// mapping order, which JSON objects need here too.
		model, err = parseYAMLModel(data)
	default:
		err = fmt.Errorf("unsupported model format %q", format)
	}
	if err != nil {
		return nil, asConfigurationError(filename, err)
	}
	return model, nil
}

// asConfigurationError wraps compile failures so callers can test them
// with ir.IsConfigurationError. Configuration errors pass through.
func asConfigurationError(path string, err error) error {
	var ee *ir.EngineError
	if errors.As(err, &ee) {
		return err
	}
	return &ir.EngineError{
		Code:    ir.ErrCodeConfiguration,
		Message: "model does not compile",
		Details: map[string]string{"path": path},
		Err:     err,
	}
}

// yamlDocument holds dimensions and branches as raw nodes so they can be
// walked in authored order.
type yamlDocument struct {
	Name       string              `yaml:"name"`
	Dimensions yaml.Node           `yaml:"dimensions"`
	Branches   yaml.Node           `yaml:"branches"`
	Critical   []map[string]string `yaml:"critical"`
}

func parseYAMLModel(data []byte) (*ir.Model, error) {
	var raw yamlDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	doc := &document{Name: raw.Name, Critical: raw.Critical}

	var errs []ValidationError
	err := walkMapping(&raw.Dimensions, "dimensions", func(key string, line int, value *yaml.Node) {
		var dd dimensionDoc
		if err := value.Decode(&dd); err != nil {
			errs = append(errs, ValidationError{Field: "dimensions." + key, Message: err.Error(), Code: ErrInvalidDocument, Line: line})
			return
		}
		doc.Dimensions = append(doc.Dimensions, namedDimension{ID: key, Doc: dd})
	})
	if err != nil {
		return nil, err
	}
	if len(doc.Dimensions) == 0 && len(errs) == 0 {
		errs = append(errs, ValidationError{Field: "dimensions", Message: "at least one dimension is required", Code: ErrNoDimensions})
	}

	err = walkMapping(&raw.Branches, "branches", func(key string, line int, value *yaml.Node) {
		var bd branchDoc
		if err := value.Decode(&bd); err != nil {
			errs = append(errs, ValidationError{Field: "branches." + key, Message: err.Error(), Code: ErrInvalidDocument, Line: line})
			return
		}
		doc.Branches = append(doc.Branches, namedBranch{ID: key, Doc: bd})
	})
	if err != nil {
		return nil, err
	}

	if err := validationFailure(doc.Name, errs); err != nil {
		return nil, err
	}
	return finishDocument(doc)
}

// walkMapping visits the key/value pairs of a mapping node in order. An
// absent node visits nothing.
func walkMapping(node *yaml.Node, field string, visit func(key string, line int, value *yaml.Node)) error {
	if node.Kind == 0 {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: %s must be a mapping of id to definition", node.Line, field)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		visit(key.Value, key.Line, value)
	}
	return nil
}

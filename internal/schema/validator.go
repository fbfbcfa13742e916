package schema

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/fulmenhq/guidekit/internal/assets"
)

// ValidationError represents a single validation error.
type ValidationError struct {
	Path    string `json:"path,omitempty"` // e.g. "frameworks.0.version"
	Message string `json:"message"`
}

// Result holds the validation result.
type Result struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// Summary joins the errors into a single line suitable for an error message.
func (r *Result) Summary() string {
	if r == nil || len(r.Errors) == 0 {
		return ""
	}
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Path, e.Message))
	}
	return strings.Join(parts, "; ")
}

var (
	registryOnce sync.Once
	registry     map[string]*gojsonschema.Schema
	registryErr  error
)

// loadRegistry compiles the embedded schemas once. A schema that fails to
// compile is a build defect, so it is reported on every Validate call.
func loadRegistry() {
	registry = make(map[string]*gojsonschema.Schema)
	for _, info := range assets.GetSchemaNames() {
		name := info.Name
		data, ok := assets.GetSchema(name)
		if !ok {
			registryErr = fmt.Errorf("embedded schema %s missing", name)
			return
		}
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
		if err != nil {
			registryErr = fmt.Errorf("compile schema %s: %w", name, err)
			return
		}
		registry[name] = compiled
	}
}

func lookup(schemaName string) (*gojsonschema.Schema, error) {
	registryOnce.Do(loadRegistry)
	if registryErr != nil {
		return nil, registryErr
	}
	s, ok := registry[schemaName]
	if !ok {
		return nil, fmt.Errorf("schema %s not found in registry", schemaName)
	}
	return s, nil
}

// ValidateBytes validates a raw JSON document against the named schema.
func ValidateBytes(doc []byte, schemaName string) (*Result, error) {
	s, err := lookup(schemaName)
	if err != nil {
		return nil, err
	}
	return collect(s.Validate(gojsonschema.NewBytesLoader(doc)))
}

// Validate validates data (interface{}) against the named schema.
func Validate(data interface{}, schemaName string) (*Result, error) {
	s, err := lookup(schemaName)
	if err != nil {
		return nil, err
	}
	return collect(s.Validate(gojsonschema.NewGoLoader(data)))
}

func collect(result *gojsonschema.Result, err error) (*Result, error) {
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	res := &Result{Valid: result.Valid()}
	if !result.Valid() {
		for _, verr := range result.Errors() {
			field := verr.Field()
			if field == "" || field == "(root)" {
				field = "root"
			}
			res.Errors = append(res.Errors, ValidationError{
				Path:    field,
				Message: verr.Description(),
			})
		}
		sort.SliceStable(res.Errors, func(i, j int) bool { return res.Errors[i].Path < res.Errors[j].Path })
	}
	return res, nil
}

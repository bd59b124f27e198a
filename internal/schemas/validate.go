// Package schemas provides JSON Schema validation for step artifacts.
package schemas

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// ResolveSchemaDir attempts to find the schema directory by trying multiple
// common path resolutions: relative to the current working directory, then
// one and two levels up. This is useful when commands run from different
// working directory contexts (e.g., tests). A candidate counts only if it
// actually holds schema files, so a stray directory with a matching name is
// not mistaken for the schema root. Returns empty string if none found.
func ResolveSchemaDir(relativePath string) string {
	candidates := []string{
		relativePath,
		filepath.Join("..", relativePath),
		filepath.Join("..", "..", relativePath),
	}

	for _, candidate := range candidates {
		absPath, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		matches, err := filepath.Glob(filepath.Join(absPath, "*.schema.json"))
		if err == nil && len(matches) > 0 {
			return absPath
		}
	}

	return ""
}

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// SchemaLoadError represents errors loading or parsing the schema itself
type SchemaLoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Path, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// ValidateJSONString validates JSON content against schema content.
func ValidateJSONString(schemaContent, jsonContent string) error {
	schemaLoader := gojsonschema.NewStringLoader(schemaContent)
	documentLoader := gojsonschema.NewStringLoader(jsonContent)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &SchemaLoadError{
			Path:    "(string schema)",
			Message: "schema validation failed during load",
			Cause:   err,
		}
	}

	return resultError(result)
}

func resultError(result *gojsonschema.Result) error {
	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return validationErr
}

// StepValidator validates step artifacts against per-step schema files named
// <dir>/<step>.schema.json. Compiled schemas are cached; a step without a
// schema file validates as a no-op.
type StepValidator struct {
	dir string

	mu    sync.Mutex
	cache map[string]*gojsonschema.Schema
}

// NewStepValidator creates a validator over a schema directory.
func NewStepValidator(dir string) *StepValidator {
	return &StepValidator{dir: dir, cache: make(map[string]*gojsonschema.Schema)}
}

// Validate checks one step's artifact payload against its schema.
func (v *StepValidator) Validate(stepName string, data any) error {
	schema, err := v.schemaFor(stepName)
	if err != nil {
		return err
	}
	if schema == nil {
		return nil
	}

	doc, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact for validation: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("failed to validate %s artifact: %w", stepName, err)
	}
	return resultError(result)
}

func (v *StepValidator) schemaFor(stepName string) (*gojsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if schema, ok := v.cache[stepName]; ok {
		return schema, nil
	}

	path := filepath.Join(v.dir, stepName+".schema.json")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		v.cache[stepName] = nil
		return nil, nil
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewReferenceLoader("file://" + path))
	if err != nil {
		return nil, &SchemaLoadError{Path: path, Message: "schema failed to compile", Cause: err}
	}
	v.cache[stepName] = schema
	return schema, nil
}

package slo

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema/slo_list_v1.json
var listSchema []byte

const listSchemaURL = "https://aegis.dev/schemas/slo_list_v1.json"

// Validator checks definition files against the embedded JSON schema and
// the normalizer.
type Validator struct {
	schema   *jsonschema.Schema
	settings Settings
}

// NewValidator compiles the embedded schema. settings are the defaults the
// normalizer check runs with.
func NewValidator(settings Settings) (*Validator, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(listSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(listSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("failed to add schema: %w", err)
	}

	schema, err := compiler.Compile(listSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{schema: schema, settings: settings}, nil
}

// ValidateGlob loads and validates every file matching pattern.
func (v *Validator) ValidateGlob(pattern string) []ValidationError {
	files, loadErrors := LoadGlob(pattern)

	var allErrors []ValidationError
	allErrors = append(allErrors, loadErrors...)

	for _, file := range files {
		allErrors = append(allErrors, v.ValidateFile(file)...)
	}
	allErrors = append(allErrors, validateUniqueIDs(files)...)

	return allErrors
}

// Load validates every file matching pattern and returns their definitions
// in file order. Any validation error aborts the load.
func (v *Validator) Load(pattern string) ([]RawDefinition, error) {
	files, loadErrors := LoadGlob(pattern)

	allErrors := append([]ValidationError(nil), loadErrors...)
	for _, file := range files {
		allErrors = append(allErrors, v.ValidateFile(file)...)
	}
	allErrors = append(allErrors, validateUniqueIDs(files)...)

	if len(allErrors) > 0 {
		errs := make([]error, len(allErrors))
		for i, e := range allErrors {
			errs[i] = e
		}
		return nil, fmt.Errorf("definition validation failed with %d error(s): %w", len(allErrors), errors.Join(errs...))
	}

	var defs []RawDefinition
	for _, file := range files {
		defs = append(defs, file.Definitions...)
	}
	return defs, nil
}

// ValidateFile runs the schema and normalizer checks for one file.
func (v *Validator) ValidateFile(file DefinitionFile) []ValidationError {
	errs := v.validateSchema(file)
	if len(errs) > 0 {
		return errs
	}

	for i, raw := range file.Definitions {
		if _, err := Normalize(raw, v.settings); err != nil {
			var verr ValidationError
			if errors.As(err, &verr) {
				errs = append(errs, ValidationError{
					Source:  file.File,
					Path:    fmt.Sprintf("slos.%d.%s", i, verr.Path),
					Message: verr.Message,
				})
				continue
			}
			errs = append(errs, ValidationError{Source: file.File, Path: fmt.Sprintf("slos.%d", i), Message: err.Error()})
		}
	}
	return errs
}

// validateSchema validates the generic decoding of a file.
func (v *Validator) validateSchema(file DefinitionFile) []ValidationError {
	err := v.schema.Validate(file.document)
	if err == nil {
		return nil
	}

	var validationErr *jsonschema.ValidationError
	if errors.As(err, &validationErr) {
		return extractSchemaErrors(file.File, validationErr)
	}
	return []ValidationError{{Source: file.File, Message: err.Error()}}
}

// extractSchemaErrors flattens the leaves of a schema error tree.
func extractSchemaErrors(file string, err *jsonschema.ValidationError) []ValidationError {
	if len(err.Causes) == 0 {
		path := strings.Join(err.InstanceLocation, ".")
		if path == "" {
			path = "(root)"
		}
		return []ValidationError{{Source: file, Path: path, Message: err.Error()}}
	}

	var errs []ValidationError
	for _, cause := range err.Causes {
		errs = append(errs, extractSchemaErrors(file, cause)...)
	}
	return errs
}

// validateUniqueIDs reports definitions whose derived id repeats across
// all loaded files.
func validateUniqueIDs(files []DefinitionFile) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]string)

	for _, file := range files {
		for i, raw := range file.Definitions {
			id := DeriveID(raw)
			if id == "" {
				continue
			}
			if prev, ok := seen[id]; ok {
				errs = append(errs, ValidationError{
					Source:  file.File,
					Path:    fmt.Sprintf("slos.%d.id", i),
					Message: fmt.Sprintf("duplicate ID %q (also in %s)", id, filepath.Base(prev)),
				})
				continue
			}
			seen[id] = file.File
		}
	}
	return errs
}

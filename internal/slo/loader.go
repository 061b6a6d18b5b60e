package slo

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// DefinitionFile pairs the definitions of one file with its path.
type DefinitionFile struct {
	File        string
	Definitions []RawDefinition

	// document is the generic decoding used for schema validation.
	document any
}

// LoadGlob discovers and parses every definitions file matching pattern
// (doublestar syntax, e.g. "slos/**/*.yaml"). Files are returned in lexical
// order so registration order is stable across runs.
func LoadGlob(pattern string) ([]DefinitionFile, []ValidationError) {
	var files []DefinitionFile
	var errors []ValidationError

	paths, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		errors = append(errors, ValidationError{
			Source:  pattern,
			Message: fmt.Sprintf("invalid definitions glob: %v", err),
		})
		return nil, errors
	}
	if len(paths) == 0 {
		errors = append(errors, ValidationError{
			Source:  pattern,
			Message: "no definition files matched",
		})
		return nil, errors
	}
	sort.Strings(paths)

	for _, path := range paths {
		file, err := LoadFile(path)
		if err != nil {
			errors = append(errors, ValidationError{
				Source:  path,
				Message: fmt.Sprintf("failed to parse YAML: %v", err),
			})
			continue
		}
		files = append(files, file)
	}

	return files, errors
}

// LoadFile parses a single definitions file.
func LoadFile(path string) (DefinitionFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefinitionFile{}, err
	}
	file, err := Parse(data)
	if err != nil {
		return DefinitionFile{}, err
	}
	file.File = path
	return file, nil
}

// Parse decodes a definitions document from YAML (or JSON, which is valid
// YAML). A bare top-level list of definitions is accepted as shorthand for
// a document holding only slos.
func Parse(data []byte) (DefinitionFile, error) {
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return DefinitionFile{}, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if list, ok := generic.([]any); ok {
		var defs []RawDefinition
		if err := dec.Decode(&defs); err != nil {
			return DefinitionFile{}, err
		}
		return DefinitionFile{Definitions: defs, document: map[string]any{"slos": list}}, nil
	}

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return DefinitionFile{}, fmt.Errorf("empty definitions document")
		}
		return DefinitionFile{}, err
	}

	return DefinitionFile{Definitions: doc.SLOs, document: generic}, nil
}

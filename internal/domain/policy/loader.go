package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultPolicyPath is used when no policy path is configured.
const DefaultPolicyPath = "config/policies.yaml"

// LoadError describes why a policy file could not be loaded. Message
// carries the operator-facing description; Err the underlying cause.
type LoadError struct {
	Path    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	return e.Message
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Load reads and validates the policy file at path (DefaultPolicyPath
// when blank). Every failure is a *LoadError with a distinct message
// per stage: missing file, unreadable file, invalid YAML, non-mapping
// document, schema validation. Unknown fields are a schema error.
func Load(path string) (Policy, error) {
	resolved := path
	if resolved == "" {
		resolved = DefaultPolicyPath
	}
	resolved = filepath.Clean(resolved)

	raw, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Policy{}, &LoadError{
				Path:    resolved,
				Message: fmt.Sprintf("Policy file not found: %s", resolved),
				Err:     err,
			}
		}
		return Policy{}, &LoadError{
			Path:    resolved,
			Message: fmt.Sprintf("Unable to read policy file: %s", resolved),
			Err:     err,
		}
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Policy{}, &LoadError{
			Path:    resolved,
			Message: fmt.Sprintf("Policy file is not valid YAML: %s", resolved),
			Err:     err,
		}
	}
	if !isMappingDocument(&doc) {
		return Policy{}, &LoadError{
			Path:    resolved,
			Message: "Policy file must contain a top-level mapping.",
		}
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var p Policy
	if err := dec.Decode(&p); err != nil {
		return Policy{}, schemaError(resolved, err)
	}
	if err := p.Normalize(); err != nil {
		return Policy{}, schemaError(resolved, err)
	}
	return p, nil
}

func schemaError(path string, err error) *LoadError {
	return &LoadError{
		Path:    path,
		Message: fmt.Sprintf("Policy file failed schema validation: %s", path),
		Err:     err,
	}
}

func isMappingDocument(doc *yaml.Node) bool {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return false
	}
	return doc.Content[0].Kind == yaml.MappingNode
}

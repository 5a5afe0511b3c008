package definition

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/OdaNilseng/FLSworkflow/pkg/api"
)

// Parse decodes a workflow from YAML bytes. Unknown fields are rejected
func Parse(data []byte) (*api.Workflow, error) {
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}
	return doc.Workflow()
}

// Load reads and decodes a workflow from r
func Load(r io.Reader) (*api.Workflow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadDefinition, err)
	}
	return Parse(data)
}

// LoadFile decodes the workflow stored at path. Relative seed file paths
// are resolved against the directory holding the definition
func LoadFile(path string) (*api.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadDefinition, err)
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc.resolveFiles(filepath.Dir(path))
	wf, err := doc.Workflow()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return wf, nil
}

// ParseDocument decodes the YAML form of a workflow without building it
func ParseDocument(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyDocument
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyDocument
		}
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return &doc, nil
}

func (d *Document) resolveFiles(base string) {
	for tag, paths := range d.Files {
		for i, p := range paths {
			if !filepath.IsAbs(p) {
				paths[i] = filepath.Join(base, p)
			}
		}
		d.Files[tag] = paths
	}
}

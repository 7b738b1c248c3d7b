// Package templates holds the embedded extraction templates, one per
// supported document type. A template declares the fields the Smart Mapper
// must extract and the JSON shape it must return.
package templates

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/arvetta/berkas/internal/models"
)

//go:embed *.yaml
var templateFS embed.FS

// Store is the read-only template registry loaded at startup
type Store struct {
	templates map[models.DocumentType]*models.Template
}

// Load parses all embedded templates and indexes them by document type
func Load() (*Store, error) {
	entries, err := templateFS.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded templates: %w", err)
	}

	store := &Store{templates: make(map[models.DocumentType]*models.Template)}
	for _, entry := range entries {
		data, err := templateFS.ReadFile(entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", entry.Name(), err)
		}

		var tmpl models.Template
		if err := yaml.Unmarshal(data, &tmpl); err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", entry.Name(), err)
		}
		if !models.IsKnownDocumentType(tmpl.DocType) {
			return nil, fmt.Errorf("template %s declares unknown doc_type %q", entry.Name(), tmpl.DocType)
		}
		if _, exists := store.templates[tmpl.DocType]; exists {
			return nil, fmt.Errorf("duplicate template for doc_type %q", tmpl.DocType)
		}
		store.templates[tmpl.DocType] = &tmpl
	}

	for _, docType := range models.KnownDocumentTypes {
		if _, ok := store.templates[docType]; !ok {
			return nil, fmt.Errorf("missing template for doc_type %q", docType)
		}
	}
	return store, nil
}

// Get returns the template for a document type
func (s *Store) Get(docType models.DocumentType) (*models.Template, error) {
	tmpl, ok := s.templates[docType]
	if !ok {
		return nil, fmt.Errorf("no template for doc_type %q", docType)
	}
	return tmpl, nil
}

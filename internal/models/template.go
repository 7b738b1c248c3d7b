package models

// TemplateField describes one extractable field and the hints passed to the
// AI extractor prompt.
type TemplateField struct {
	Key      string `yaml:"key" json:"key"`
	Label    string `yaml:"label" json:"label"`
	Required bool   `yaml:"required" json:"required"`
	Format   string `yaml:"format,omitempty" json:"format,omitempty"` // e.g. "date:DD/MM/YYYY", "decimal"
	Notes    string `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// TemplateSection groups related fields
type TemplateSection struct {
	Name   string          `yaml:"name" json:"name"`
	Fields []TemplateField `yaml:"fields" json:"fields"`
}

// Template declaratively describes a document type for the Smart Mapper.
// Templates are loaded once at startup and read-only thereafter.
type Template struct {
	DocType  DocumentType      `yaml:"doc_type" json:"doc_type"`
	Version  int               `yaml:"version" json:"version"`
	Sections []TemplateSection `yaml:"sections" json:"sections"`
	// OutputSchema is the JSON shape the extractor must return, expressed
	// as an example skeleton.
	OutputSchema string `yaml:"output_schema" json:"output_schema"`
}

// RequiredFields returns the keys of all required fields across sections
func (t *Template) RequiredFields() []string {
	var keys []string
	for _, s := range t.Sections {
		for _, f := range s.Fields {
			if f.Required {
				keys = append(keys, f.Key)
			}
		}
	}
	return keys
}

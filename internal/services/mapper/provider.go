package mapper

import (
	"context"

	"github.com/arvetta/berkas/internal/models"
)

// Provider is one AI completion backend used by the Smart Mapper
type Provider interface {
	// ModelID names the concrete model, recorded on the scan result
	ModelID() string
	// Complete sends one system+user prompt pair and returns the raw
	// completion text
	Complete(ctx context.Context, system, user string) (string, error)
}

// providerFor routes a document type to its provider. Tax documents go to
// Claude; bank statements carry hundreds of table rows and go to Gemini for
// its long context window. The routing is static so the same document type
// always produces output from the same model family.
func (m *Mapper) providerFor(docType models.DocumentType) Provider {
	if docType == models.DocTypeRekeningKoran {
		return m.bankProvider
	}
	return m.taxProvider
}

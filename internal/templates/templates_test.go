package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arvetta/berkas/internal/models"
)

func TestLoadCoversAllDocumentTypes(t *testing.T) {
	store, err := Load()
	require.NoError(t, err)

	for _, docType := range models.KnownDocumentTypes {
		tmpl, err := store.Get(docType)
		require.NoError(t, err, "template for %s", docType)
		assert.Equal(t, docType, tmpl.DocType)
		assert.NotEmpty(t, tmpl.Sections, "sections for %s", docType)
		assert.NotEmpty(t, tmpl.OutputSchema, "output schema for %s", docType)
	}
}

func TestGetUnknownType(t *testing.T) {
	store, err := Load()
	require.NoError(t, err)

	_, err = store.Get("passport")
	assert.Error(t, err)
}

func TestRequiredFieldsPresent(t *testing.T) {
	store, err := Load()
	require.NoError(t, err)

	tmpl, err := store.Get(models.DocTypePPh23)
	require.NoError(t, err)

	required := tmpl.RequiredFields()
	assert.Contains(t, required, "nomor_dokumen")
	assert.Contains(t, required, "dpp")
	assert.Contains(t, required, "nama_pemotong")
}

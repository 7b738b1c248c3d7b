package exporters

import (
	"github.com/ternarybob/arbor"

	"github.com/arvetta/berkas/internal/interfaces"
	"github.com/arvetta/berkas/internal/models"
)

var genericHeaders = []string{
	"No",
	"File ID",
	"Jenis Dokumen",
	"Confidence",
	"Model AI",
	"Mesin OCR",
	"Dibuat",
	"Payload (JSON)",
}

// GenericXLSX is the mixed-batch fallback: one row per result with the raw
// structured payload in the last column.
type GenericXLSX struct {
	logger arbor.ILogger
}

var _ interfaces.Exporter = (*GenericXLSX)(nil)

func NewGenericXLSX(logger arbor.ILogger) *GenericXLSX {
	return &GenericXLSX{logger: logger}
}

func (e *GenericXLSX) ContentType() string   { return xlsxContentType }
func (e *GenericXLSX) FileExtension() string { return "xlsx" }

func (e *GenericXLSX) Render(results []*models.ScanResult) ([]byte, error) {
	b, err := newSheetBuilder("Hasil Ekstraksi")
	if err != nil {
		return nil, err
	}
	if err := b.writeHeader(genericHeaders); err != nil {
		return nil, err
	}

	for i, result := range results {
		if err := b.writeRow([]interface{}{
			i + 1,
			result.FileID,
			string(result.DocType),
			result.Confidence,
			result.AIModel,
			result.OCREngine,
			result.CreatedAt.Format("02/01/2006 15:04"),
			string(result.Payload),
		}); err != nil {
			return nil, err
		}
	}

	e.logger.Debug().Int("results", len(results)).Msg("Rendered generic workbook")
	return b.bytes()
}

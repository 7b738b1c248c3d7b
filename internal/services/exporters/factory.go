// Package exporters renders scan results into spreadsheet and PDF artifacts.
// Type-specific spreadsheet exporters cover the flat-table contracts for
// Faktur Pajak, PPh23 and Rekening Koran; batches mixing document types fall
// back to a generic table.
package exporters

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/arvetta/berkas/internal/interfaces"
	"github.com/arvetta/berkas/internal/models"
)

// Format selects the artifact kind
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// New returns the exporter for one document type and format
func New(format Format, docType models.DocumentType, logger arbor.ILogger) (interfaces.Exporter, error) {
	switch format {
	case FormatPDF:
		return NewPDFReport(logger), nil
	case FormatXLSX:
		switch docType {
		case models.DocTypeFakturPajak:
			return NewFakturXLSX(logger), nil
		case models.DocTypePPh23:
			return NewPPh23XLSX(logger), nil
		case models.DocTypeRekeningKoran:
			return NewRekeningXLSX(logger), nil
		case models.DocTypePPh21, models.DocTypeInvoice:
			return NewGenericXLSX(logger), nil
		default:
			return nil, models.NewProcessError(models.ErrKindUnsupportedType, "exporters",
				fmt.Errorf("no exporter for document type %q", docType))
		}
	default:
		return nil, models.NewProcessError(models.ErrKindValidation, "exporters",
			fmt.Errorf("unknown export format %q", format))
	}
}

// ForResults picks an exporter for a result set: the type-specific exporter
// when every result shares one document type, otherwise the generic table.
func ForResults(format Format, results []*models.ScanResult, logger arbor.ILogger) (interfaces.Exporter, error) {
	if len(results) == 0 {
		return nil, models.NewProcessError(models.ErrKindValidation, "exporters",
			fmt.Errorf("nothing to export"))
	}
	docType := results[0].DocType
	for _, r := range results[1:] {
		if r.DocType != docType {
			if format == FormatPDF {
				return NewPDFReport(logger), nil
			}
			return NewGenericXLSX(logger), nil
		}
	}
	return New(format, docType, logger)
}

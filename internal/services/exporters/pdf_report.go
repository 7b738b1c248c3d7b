package exporters

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"

	"github.com/arvetta/berkas/internal/interfaces"
	"github.com/arvetta/berkas/internal/models"
)

// PDFReport renders results as an A4 report: a metadata header per document
// followed by a styled data table. Bank statements get a transactions table;
// everything else gets a flattened field/value table.
type PDFReport struct {
	logger arbor.ILogger
}

var _ interfaces.Exporter = (*PDFReport)(nil)

func NewPDFReport(logger arbor.ILogger) *PDFReport {
	return &PDFReport{logger: logger}
}

func (e *PDFReport) ContentType() string   { return "application/pdf" }
func (e *PDFReport) FileExtension() string { return "pdf" }

func (e *PDFReport) Render(results []*models.ScanResult) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)

	for _, result := range results {
		pdf.AddPage()
		e.renderHeader(pdf, result)

		if result.DocType == models.DocTypeRekeningKoran {
			var p models.RekeningKoranPayload
			if err := result.DecodePayload(&p); err != nil {
				return nil, models.NewProcessError(models.ErrKindInternal, "exporters.pdf",
					fmt.Errorf("result %s: %w", result.ID, err))
			}
			e.renderTransactions(pdf, &p)
			continue
		}
		e.renderFields(pdf, result.Payload)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, models.NewProcessError(models.ErrKindInternal, "exporters.pdf",
			fmt.Errorf("failed to generate PDF: %w", err))
	}
	e.logger.Debug().Int("results", len(results)).Int("bytes", buf.Len()).Msg("Rendered PDF report")
	return buf.Bytes(), nil
}

func (e *PDFReport) renderHeader(pdf *fpdf.Fpdf, result *models.ScanResult) {
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, docTypeTitle(result.DocType), "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, fmt.Sprintf("File: %s", result.FileID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("Confidence: %.2f    OCR: %s    Model: %s",
		result.Confidence, result.OCREngine, result.AIModel), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("Processed: %s", result.CreatedAt.Format("02/01/2006 15:04")),
		"", 1, "L", false, 0, "")
	pdf.Ln(3)
}

// renderFields flattens the payload to dotted paths and draws a two-column
// field/value table.
func (e *PDFReport) renderFields(pdf *fpdf.Fpdf, payload json.RawMessage) {
	fields := flattenPayload(payload)
	rows := make([][]string, 0, len(fields)+1)
	rows = append(rows, []string{"Field", "Value"})
	for _, f := range fields {
		rows = append(rows, []string{f.path, f.value})
	}
	e.renderTable(pdf, rows, []float64{70, 110})
}

func (e *PDFReport) renderTransactions(pdf *fpdf.Fpdf, p *models.RekeningKoranPayload) {
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, fmt.Sprintf("%s  %s  (%s)", p.BankInfo.BankName, p.BankInfo.AccountNumber, p.BankInfo.Period),
		"", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("Saldo awal: %s    Saldo akhir: %s",
		p.SaldoInfo.Awal.StringFixed(2), p.SaldoInfo.Akhir.StringFixed(2)), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	rows := [][]string{{"Tanggal", "Keterangan", "Debit", "Kredit", "Saldo"}}
	for _, tx := range p.Transactions {
		rows = append(rows, []string{
			tx.Date.Format("02/01/2006"),
			tx.Description,
			tx.Debit.StringFixed(2),
			tx.Credit.StringFixed(2),
			tx.Balance.StringFixed(2),
		})
	}
	e.renderTable(pdf, rows, []float64{22, 78, 30, 30, 30})
}

// renderTable draws a bordered table with a gray header row. Cell text is
// truncated to the column width rather than wrapped.
func (e *PDFReport) renderTable(pdf *fpdf.Fpdf, rows [][]string, widths []float64) {
	lineHeight := 6.0
	for i, row := range rows {
		if i == 0 {
			pdf.SetFont("Arial", "B", 8)
			pdf.SetFillColor(230, 230, 230)
		} else {
			pdf.SetFont("Arial", "", 8)
			pdf.SetFillColor(255, 255, 255)
		}
		for j, cell := range row {
			if j >= len(widths) {
				break
			}
			pdf.CellFormat(widths[j], lineHeight, fitCell(pdf, cell, widths[j]-2), "1", 0, "L", i == 0, 0, "")
		}
		pdf.Ln(lineHeight)
	}
	pdf.Ln(3)
}

// fitCell trims text that will not fit the column width
func fitCell(pdf *fpdf.Fpdf, text string, width float64) string {
	for pdf.GetStringWidth(text) > width && len(text) > 3 {
		text = text[:len(text)-4] + "..."
	}
	return text
}

func docTypeTitle(t models.DocumentType) string {
	switch t {
	case models.DocTypeFakturPajak:
		return "Faktur Pajak"
	case models.DocTypePPh21:
		return "Bukti Potong PPh 21"
	case models.DocTypePPh23:
		return "Bukti Potong PPh 23"
	case models.DocTypeInvoice:
		return "Invoice"
	case models.DocTypeRekeningKoran:
		return "Rekening Koran"
	default:
		return string(t)
	}
}

type flatField struct {
	path  string
	value string
}

// flattenPayload turns nested payload JSON into sorted dotted-path scalars.
// Arrays flatten with numeric indexes.
func flattenPayload(payload json.RawMessage) []flatField {
	var root interface{}
	if err := json.Unmarshal(payload, &root); err != nil {
		return []flatField{{path: "payload", value: string(payload)}}
	}
	var fields []flatField
	flattenValue("", root, &fields)
	sort.Slice(fields, func(i, j int) bool { return fields[i].path < fields[j].path })
	return fields
}

func flattenValue(prefix string, value interface{}, out *[]flatField) {
	switch v := value.(type) {
	case map[string]interface{}:
		for key, child := range v {
			flattenValue(joinPath(prefix, key), child, out)
		}
	case []interface{}:
		for i, child := range v {
			flattenValue(fmt.Sprintf("%s[%d]", prefix, i), child, out)
		}
	case nil:
		// omit
	case float64:
		*out = append(*out, flatField{path: prefix, value: trimFloat(v)})
	case bool:
		*out = append(*out, flatField{path: prefix, value: fmt.Sprintf("%t", v)})
	default:
		*out = append(*out, flatField{path: prefix, value: fmt.Sprintf("%v", v)})
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func trimFloat(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}

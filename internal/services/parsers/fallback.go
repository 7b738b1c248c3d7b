// Package parsers holds the regex fallback extractors. When the AI mapper
// cannot produce a parseable record for a tax document, these pull the
// high-value header fields straight from the OCR text so the file still
// yields a partial result instead of nothing.
package parsers

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/ternarybob/arbor"

	"github.com/arvetta/berkas/internal/models"
)

// FallbackConfidence is reported for regex-extracted records. Best-effort
// header scraping is never trusted for downstream reconciliation.
const FallbackConfidence = 0.0

var (
	npwpRe      = regexp.MustCompile(`\b(\d{2}[.\s]?\d{3}[.\s]?\d{3}[.\s]?\d[-.\s]?\d{3}[.\s]?\d{3})\b`)
	fakturNoRe  = regexp.MustCompile(`\b(\d{3}[.\-]\d{3}[.\-]\d{2}[.\-]\d{8})\b`)
	bupotNoRe   = regexp.MustCompile(`(?i)NOMOR\s*[:.]?\s*([A-Z0-9\-\/]{6,})`)
	invoiceNoRe = regexp.MustCompile(`(?i)INVOICE\s*(?:NO\.?|NUMBER|#)\s*[:.]?\s*([A-Z0-9\-\/]+)`)
	dateRe      = regexp.MustCompile(`\b(\d{2}[\/\-]\d{2}[\/\-]\d{4})\b`)
	dppRe       = regexp.MustCompile(`(?i)(?:DASAR\s+PENGENAAN\s+PAJAK|DPP)\s*[:.]?\s*(?:Rp\.?\s*)?([0-9.,]+)`)
	ppnRe       = regexp.MustCompile(`(?i)(?:TOTAL\s+)?PPN\s*[:.]?\s*(?:Rp\.?\s*)?([0-9.,]+)`)
	pphRe       = regexp.MustCompile(`(?i)PPH\s+(?:DIPOTONG|TERUTANG)?\s*[:.]?\s*(?:Rp\.?\s*)?([0-9.,]+)`)
	totalRe     = regexp.MustCompile(`(?i)(?:GRAND\s+)?TOTAL\s*[:.]?\s*(?:Rp\.?\s*)?([0-9.,]+)`)
	tarifRe     = regexp.MustCompile(`(?i)TARIF\s*(?:\(%\))?\s*[:.]?\s*([0-9.,]+)`)
	masaRe      = regexp.MustCompile(`(?i)MASA\s+PAJAK\s*[:.]?\s*([0-9]{2}[-\/][0-9]{4})`)
)

// Fallback extracts partial payloads with document-type header regexes
type Fallback struct {
	logger arbor.ILogger
}

// NewFallback creates the regex fallback extractor
func NewFallback(logger arbor.ILogger) *Fallback {
	return &Fallback{logger: logger}
}

// Extract returns a partial payload for the document type, or an error when
// the text yields nothing usable. Bank statements have their own hybrid
// path and are not handled here.
func (f *Fallback) Extract(docType models.DocumentType, ocr *models.OCRResult) (json.RawMessage, error) {
	text := ocr.Text
	if strings.TrimSpace(text) == "" {
		return nil, models.NewProcessError(models.ErrKindExtractorParse, "parsers.fallback", nil)
	}

	var payload any
	var matched bool
	switch docType {
	case models.DocTypeFakturPajak:
		payload, matched = f.fakturPajak(text)
	case models.DocTypePPh21:
		payload, matched = f.pph21(text)
	case models.DocTypePPh23:
		payload, matched = f.pph23(text)
	case models.DocTypeInvoice:
		payload, matched = f.invoice(text)
	default:
		return nil, models.NewProcessError(models.ErrKindUnsupportedType, "parsers.fallback", nil)
	}
	if !matched {
		return nil, models.NewProcessError(models.ErrKindExtractorParse, "parsers.fallback", nil)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, models.NewProcessError(models.ErrKindInternal, "parsers.fallback", err)
	}
	f.logger.Debug().Str("doc_type", string(docType)).Msg("Regex fallback produced partial record")
	return data, nil
}

func (f *Fallback) fakturPajak(text string) (*models.FakturPajakPayload, bool) {
	p := &models.FakturPajakPayload{}
	matched := false

	if m := fakturNoRe.FindStringSubmatch(text); m != nil {
		p.Invoice.Number = m[1]
		matched = true
	}
	if m := dateRe.FindStringSubmatch(text); m != nil {
		p.Invoice.IssueDate = m[1]
	}
	if npwps := npwpRe.FindAllStringSubmatch(text, 2); len(npwps) > 0 {
		p.Seller.NPWP = npwps[0][1]
		if len(npwps) > 1 {
			p.Buyer.NPWP = npwps[1][1]
		}
		matched = true
	}
	if v, ok := amount(dppRe, text); ok {
		p.Financials.DPP = v
		matched = true
	}
	if v, ok := amount(ppnRe, text); ok {
		p.Financials.PPN = v
		matched = true
	}
	if v, ok := amount(totalRe, text); ok {
		p.Financials.Total = v
	}
	return p, matched
}

func (f *Fallback) pph21(text string) (*models.PPh21Payload, bool) {
	p := &models.PPh21Payload{}
	matched := false

	if m := bupotNoRe.FindStringSubmatch(text); m != nil {
		p.Dokumen.Nomor = m[1]
		matched = true
	}
	if m := masaRe.FindStringSubmatch(text); m != nil {
		p.Dokumen.MasaPajak = m[1]
	}
	if m := dateRe.FindStringSubmatch(text); m != nil {
		p.Dokumen.Tanggal = m[1]
	}
	if m := npwpRe.FindStringSubmatch(text); m != nil {
		p.IdentitasPemotong.NPWP = m[1]
	}
	if v, ok := amount(dppRe, text); ok {
		p.Financials.DPP = v
		matched = true
	}
	if v, ok := amount(tarifRe, text); ok {
		p.Financials.Tarif = v
	}
	if v, ok := amount(pphRe, text); ok {
		p.Financials.PPh = v
		matched = true
	}
	return p, matched
}

func (f *Fallback) pph23(text string) (*models.PPh23Payload, bool) {
	p := &models.PPh23Payload{}
	matched := false

	if m := bupotNoRe.FindStringSubmatch(text); m != nil {
		p.NomorDokumen = m[1]
		matched = true
	}
	if m := masaRe.FindStringSubmatch(text); m != nil {
		p.MasaPajak = m[1]
	}
	if m := dateRe.FindStringSubmatch(text); m != nil {
		p.TanggalDokumen = m[1]
	}
	if npwps := npwpRe.FindAllStringSubmatch(text, 2); len(npwps) > 0 {
		p.NPWPPenerima = npwps[0][1]
		if len(npwps) > 1 {
			p.NPWPPemotong = npwps[1][1]
		}
		matched = true
	}
	if v, ok := amount(dppRe, text); ok {
		p.DPP = v
		matched = true
	}
	if v, ok := amount(tarifRe, text); ok {
		p.Tarif = v
	}
	if v, ok := amount(pphRe, text); ok {
		p.PPh = v
		matched = true
	}
	return p, matched
}

func (f *Fallback) invoice(text string) (*models.InvoicePayload, bool) {
	p := &models.InvoicePayload{}
	matched := false

	if m := invoiceNoRe.FindStringSubmatch(text); m != nil {
		p.Number = m[1]
		matched = true
	}
	if m := dateRe.FindStringSubmatch(text); m != nil {
		p.Date = m[1]
	}
	if v, ok := amount(totalRe, text); ok {
		p.Financials.Total = v
		matched = true
	}
	return p, matched
}

// amount parses the first capture of re as a statement amount
func amount(re *regexp.Regexp, text string) (decimal.Decimal, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return decimal.Zero, false
	}
	cleaned := strings.TrimRight(strings.TrimSpace(m[1]), ".,")
	v, err := parseLocaleAmount(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}

// parseLocaleAmount handles both 1.234.567,89 and 1,234,567.89 layouts
func parseLocaleAmount(s string) (decimal.Decimal, error) {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if len(s)-lastComma-1 == 2 && strings.Count(s, ",") == 1 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0:
		if len(s)-lastDot-1 != 2 || strings.Count(s, ".") > 1 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}
	return decimal.NewFromString(s)
}

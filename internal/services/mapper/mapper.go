package mapper

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/arvetta/berkas/internal/interfaces"
	"github.com/arvetta/berkas/internal/models"
	"github.com/arvetta/berkas/internal/templates"
)

// Mapper turns OCR output into a typed structured record by prompting the
// document type's provider with the extraction template. Providers must
// answer with JSON only; one corrective retry is made when they don't.
type Mapper struct {
	templates    *templates.Store
	taxProvider  Provider
	bankProvider Provider
	logger       arbor.ILogger
}

var _ interfaces.SmartMapper = (*Mapper)(nil)

// NewMapper creates a Smart Mapper over the two providers
func NewMapper(store *templates.Store, taxProvider, bankProvider Provider, logger arbor.ILogger) *Mapper {
	return &Mapper{
		templates:    store,
		taxProvider:  taxProvider,
		bankProvider: bankProvider,
		logger:       logger,
	}
}

// Map extracts a structured record from OCR output. For bank statements a
// repeated parse failure degrades to an empty record with the parse_error
// flag set instead of failing the file; the hybrid merge treats that as
// mapper failure and leans on the adapter output.
func (m *Mapper) Map(ctx context.Context, docType models.DocumentType, ocr *models.OCRResult) (json.RawMessage, string, error) {
	tmpl, err := m.templates.Get(docType)
	if err != nil {
		return nil, "", models.NewProcessError(models.ErrKindUnsupportedType, "mapper", err)
	}
	provider := m.providerFor(docType)

	system := buildSystemPrompt(tmpl)
	user := buildUserPrompt(tmpl, ocr)

	response, err := provider.Complete(ctx, system, user)
	if err != nil {
		return nil, provider.ModelID(), err
	}

	payload, parseErr := m.parsePayload(docType, response)
	if parseErr == nil {
		return payload, provider.ModelID(), nil
	}

	// One corrective retry: feed back the violation and demand bare JSON
	m.logger.Warn().
		Err(parseErr).
		Str("doc_type", string(docType)).
		Str("model", provider.ModelID()).
		Msg("Unparseable extraction output, retrying once")

	retryUser := fmt.Sprintf("%s\n\nYour previous answer was not valid JSON (%v). Respond again with ONLY the JSON object, no prose, no code fences.", user, parseErr)
	response, err = provider.Complete(ctx, system, retryUser)
	if err != nil {
		return nil, provider.ModelID(), err
	}

	payload, parseErr = m.parsePayload(docType, response)
	if parseErr == nil {
		return payload, provider.ModelID(), nil
	}

	if docType == models.DocTypeRekeningKoran {
		degraded, _ := json.Marshal(models.RekeningKoranPayload{ParseError: true})
		return degraded, provider.ModelID(), nil
	}
	return nil, provider.ModelID(),
		models.NewProcessError(models.ErrKindExtractorParse, "mapper", parseErr)
}

// parsePayload extracts the JSON object from a completion and validates it
// against the document type's payload shape. The returned bytes are the
// normalized re-encoding, not the raw model output.
func (m *Mapper) parsePayload(docType models.DocumentType, response string) (json.RawMessage, error) {
	raw, err := extractJSON(response)
	if err != nil {
		return nil, err
	}

	var typed any
	switch docType {
	case models.DocTypeFakturPajak:
		typed = &models.FakturPajakPayload{}
	case models.DocTypePPh21:
		typed = &models.PPh21Payload{}
	case models.DocTypePPh23:
		typed = &models.PPh23Payload{}
	case models.DocTypeInvoice:
		typed = &models.InvoicePayload{}
	case models.DocTypeRekeningKoran:
		typed = &models.RekeningKoranPayload{}
	default:
		return nil, fmt.Errorf("no payload shape for doc_type %q", docType)
	}

	if err := json.Unmarshal(raw, typed); err != nil {
		return nil, fmt.Errorf("payload does not match %s shape: %w", docType, err)
	}

	normalized, err := json.Marshal(typed)
	if err != nil {
		return nil, err
	}
	return normalized, nil
}

// extractJSON pulls the JSON object out of a completion, tolerating code
// fences and surrounding prose.
func extractJSON(response string) (json.RawMessage, error) {
	text := strings.TrimSpace(response)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}
	candidate := text[start : end+1]

	if !json.Valid([]byte(candidate)) {
		return nil, fmt.Errorf("response contains malformed JSON")
	}
	return json.RawMessage(candidate), nil
}

// buildSystemPrompt states the extraction contract for the document type
func buildSystemPrompt(tmpl *models.Template) string {
	var b strings.Builder
	b.WriteString("You are a data extraction engine for Indonesian financial documents. ")
	b.WriteString(fmt.Sprintf("Extract the fields of a %s document from OCR output. ", tmpl.DocType))
	b.WriteString("Respond with a single JSON object and nothing else. ")
	b.WriteString("Monetary amounts are decimal strings without thousands separators, using '.' as the decimal point. ")
	b.WriteString("Dates use the YYYY-MM-DD format unless a field says otherwise. ")
	b.WriteString("Use an empty string for text you cannot find and \"0\" for absent amounts. Never invent values.")
	return b.String()
}

// buildUserPrompt lays out the template fields, the required output schema
// and the OCR text.
func buildUserPrompt(tmpl *models.Template, ocr *models.OCRResult) string {
	var b strings.Builder

	b.WriteString("Fields to extract:\n")
	for _, section := range tmpl.Sections {
		b.WriteString(fmt.Sprintf("\n[%s]\n", section.Name))
		for _, field := range section.Fields {
			b.WriteString(fmt.Sprintf("- %s: %s", field.Key, field.Label))
			if field.Required {
				b.WriteString(" (required)")
			}
			if field.Format != "" {
				b.WriteString(fmt.Sprintf(" [%s]", field.Format))
			}
			if field.Notes != "" {
				b.WriteString(fmt.Sprintf(" (%s)", field.Notes))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\nReturn JSON exactly in this shape:\n")
	b.WriteString(tmpl.OutputSchema)

	b.WriteString("\nDocument text:\n")
	for _, page := range ocr.Pages {
		b.WriteString(fmt.Sprintf("\n--- Page %d ---\n", page.PageNumber))
		b.WriteString(page.Text)
		for _, table := range page.Tables {
			b.WriteString("\n[table]\n")
			for _, row := range table.Rows {
				b.WriteString(strings.Join(row, " | "))
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

package pipeline

import (
	"encoding/json"
	"strings"

	"github.com/arvetta/berkas/internal/models"
)

// extractionUnits applies the sizing policy ahead of the AI call: chunked
// files extract per chunk, and an unchunked document over any in-memory
// bound is split into page windows first.
func (p *Pipeline) extractionUnits(merged *models.OCRResult, chunkResults []*models.OCRResult) []*models.OCRResult {
	if len(chunkResults) > 0 {
		return chunkResults
	}
	if len(merged.Pages) < 2 || !p.oversized(merged) {
		return []*models.OCRResult{merged}
	}

	units := p.splitOCR(merged)
	if len(units) < 2 {
		// Short but dense: too many rows or bytes inside the standard
		// window, so fall back to one unit per page
		units = perPage(merged)
	}
	p.logger.Warn().
		Int("pages", merged.PageCount()).
		Int("rows", merged.TableRowCount()).
		Int("units", len(units)).
		Msg("Document exceeds in-memory extraction bounds, extracting per page window")
	return units
}

// oversized reports whether any in-memory extraction bound is exceeded:
// page count over the chunking threshold, too many table rows, or an OCR
// JSON body too large for a single provider call.
func (p *Pipeline) oversized(r *models.OCRResult) bool {
	if p.chunker.ShouldChunk(r.PageCount()) {
		return true
	}
	if r.TableRowCount() > largeStatementRows {
		return true
	}
	if raw, err := json.Marshal(r); err == nil && len(raw) > maxOCRJSONBytes {
		return true
	}
	return false
}

// splitOCR slices a merged OCR result into the same overlapping page windows
// the chunker would have produced on disk
func (p *Pipeline) splitOCR(merged *models.OCRResult) []*models.OCRResult {
	windows := p.chunker.Windows(len(merged.Pages))
	units := make([]*models.OCRResult, 0, len(windows))
	for _, w := range windows {
		pages := merged.Pages[w[0]-1 : w[1]]
		var text strings.Builder
		for i, page := range pages {
			if i > 0 {
				text.WriteString("\n\n")
			}
			text.WriteString(page.Text)
		}
		units = append(units, &models.OCRResult{
			Text:       text.String(),
			Pages:      pages,
			Confidence: merged.Confidence,
			EngineID:   merged.EngineID,
		})
	}
	return units
}

func perPage(merged *models.OCRResult) []*models.OCRResult {
	units := make([]*models.OCRResult, 0, len(merged.Pages))
	for _, page := range merged.Pages {
		units = append(units, &models.OCRResult{
			Text:       page.Text,
			Pages:      []models.OCRPage{page},
			Confidence: merged.Confidence,
			EngineID:   merged.EngineID,
		})
	}
	return units
}

// mergeRecords folds per-window records into one document record, first
// non-empty value per field, recursing into nested objects.
func mergeRecords(payloads []json.RawMessage) (json.RawMessage, error) {
	if len(payloads) == 1 {
		return payloads[0], nil
	}

	merged := map[string]any{}
	for _, raw := range payloads {
		var record map[string]any
		if err := json.Unmarshal(raw, &record); err != nil {
			continue
		}
		fillMissing(merged, record)
	}
	return json.Marshal(merged)
}

func fillMissing(dst, src map[string]any) {
	for key, value := range src {
		existing, ok := dst[key]
		if !ok || isEmptyValue(existing) {
			dst[key] = value
			continue
		}
		if dstObj, ok := existing.(map[string]any); ok {
			if srcObj, ok := value.(map[string]any); ok {
				fillMissing(dstObj, srcObj)
			}
		}
	}
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case float64:
		return t == 0
	case bool:
		return !t
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

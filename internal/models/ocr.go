package models

// OCRBlock is a positioned text block on a page
type OCRBlock struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// OCRTable is a table detected on a page; rows are cell text in column order
type OCRTable struct {
	Rows [][]string `json:"rows"`
}

// OCRPage is the per-page OCR output
type OCRPage struct {
	PageNumber int        `json:"page_number"`
	Text       string     `json:"text"`
	Tables     []OCRTable `json:"tables,omitempty"`
	Blocks     []OCRBlock `json:"blocks,omitempty"`
}

// OCRResult is the uniform output of the OCR router regardless of engine
type OCRResult struct {
	Text             string    `json:"text"`
	Pages            []OCRPage `json:"pages"`
	Confidence       float64   `json:"confidence"`
	EngineID         string    `json:"engine_id"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
}

// PageCount returns the number of pages in the result
func (r *OCRResult) PageCount() int {
	return len(r.Pages)
}

// TableRowCount returns the total number of table rows across all pages,
// used by the pre-flight sizing policy to estimate transaction volume.
func (r *OCRResult) TableRowCount() int {
	n := 0
	for _, p := range r.Pages {
		for _, t := range p.Tables {
			n += len(t.Rows)
		}
	}
	return n
}

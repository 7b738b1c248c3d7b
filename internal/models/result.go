package models

import (
	"encoding/json"
	"time"
)

// ScanResult is the persisted output of a successfully processed file.
// Exactly one ScanResult exists per done DocumentFile; the structured payload
// is externally editable and edits are preserved on pipeline reconciliation.
type ScanResult struct {
	ID          string           `json:"id" badgerhold:"key"`
	FileID      string           `json:"file_id" badgerhold:"unique"`
	BatchID     string           `json:"batch_id" badgerhold:"index"`
	DocType     DocumentType     `json:"doc_type"`
	OCRText     string           `json:"ocr_text"`
	Payload     json.RawMessage  `json:"payload"`
	Confidence  float64          `json:"confidence"`
	OCREngine   string           `json:"ocr_engine"`
	AIModel     string           `json:"ai_model,omitempty"`
	StageTimes  map[string]int64 `json:"stage_times_ms,omitempty"` // stage name -> milliseconds
	EditedPaths []string         `json:"edited_paths,omitempty"`   // payload paths patched by users
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// DecodePayload unmarshals the structured payload into out
func (r *ScanResult) DecodePayload(out interface{}) error {
	return json.Unmarshal(r.Payload, out)
}

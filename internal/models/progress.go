package models

import (
	"fmt"
	"time"
)

// Progress event phases published on batch and file topics
const (
	PhaseBatchCreated   = "batch_created"
	PhaseFileQueued     = "file_queued"
	PhaseOCRRunning     = "ocr_running"
	PhaseChunkDone      = "chunk_done"
	PhaseExtracting     = "extracting"
	PhaseFileDone       = "file_done"
	PhaseFileFailed     = "file_failed"
	PhaseFileSkipped    = "file_skipped"
	PhaseBatchTerminal  = "batch_terminal"
	PhaseBatchCancelled = "batch_cancelled"
)

// BatchTopic returns the notification topic for a batch
func BatchTopic(batchID string) string {
	return fmt.Sprintf("batch:%s", batchID)
}

// FileTopic returns the notification topic for a file
func FileTopic(fileID string) string {
	return fmt.Sprintf("file:%s", fileID)
}

// ProgressCounters is the counter snapshot attached to every event
type ProgressCounters struct {
	TotalFiles     int `json:"total_files"`
	FilesProcessed int `json:"files_processed"`
	FilesFailed    int `json:"files_failed"`
	TotalPages     int `json:"total_pages"`
	PagesProcessed int `json:"pages_processed"`
}

// ProgressEvent is delivered to subscribers of a topic. Seq is strictly
// increasing and contiguous per topic; it is assigned by the event service,
// not by publishers.
type ProgressEvent struct {
	Topic     string           `json:"topic"`
	Seq       uint64           `json:"seq"`
	Phase     string           `json:"phase"`
	BatchID   string           `json:"batch_id,omitempty"`
	FileID    string           `json:"file_id,omitempty"`
	Status    string           `json:"status,omitempty"`
	ErrorKind string           `json:"error_kind,omitempty"`
	Counters  ProgressCounters `json:"counters"`
	Timestamp time.Time        `json:"timestamp"`
}

package models

import (
	"time"
)

// BatchStatus represents the lifecycle state of a batch
type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "pending"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusPartial    BatchStatus = "partial"
	BatchStatusFailed     BatchStatus = "failed"
	BatchStatusCancelled  BatchStatus = "cancelled"
)

// IsTerminal returns true when no further state transitions are possible
func (s BatchStatus) IsTerminal() bool {
	switch s {
	case BatchStatusCompleted, BatchStatusPartial, BatchStatusFailed, BatchStatusCancelled:
		return true
	}
	return false
}

// Batch is the unit of submission. Counters are mutated only through the
// batch storage so that `FilesProcessed + FilesFailed <= TotalFiles` holds
// at all times.
type Batch struct {
	ID              string      `json:"id" badgerhold:"key"`
	OwnerID         string      `json:"owner_id" badgerhold:"index"`
	TotalFiles      int         `json:"total_files"`
	TotalPages      int         `json:"total_pages"` // Computed post-OCR page count
	FilesProcessed  int         `json:"files_processed"`
	FilesFailed     int         `json:"files_failed"`
	PagesProcessed  int         `json:"pages_processed"`
	Status          BatchStatus `json:"status" badgerhold:"index"`
	CancelRequested bool        `json:"cancel_requested"`
	FromArchive     bool        `json:"from_archive"`
	CreatedAt       time.Time   `json:"created_at"`
	CompletedAt     *time.Time  `json:"completed_at,omitempty"`
}

// Settled reports whether every file has reached a terminal state
func (b *Batch) Settled() bool {
	return b.FilesProcessed+b.FilesFailed >= b.TotalFiles
}

// BatchSnapshot is the read model returned by status queries. Counter reads
// are not atomic across fields; eventual consistency is acceptable for display.
type BatchSnapshot struct {
	Batch      Batch              `json:"batch"`
	Files      []DocumentFile     `json:"files"`
	ETASeconds float64            `json:"eta_seconds,omitempty"`
	Counters   map[string]float64 `json:"counters,omitempty"`
}

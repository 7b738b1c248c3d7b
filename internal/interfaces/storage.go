package interfaces

import (
	"context"
	"encoding/json"
	"time"

	"github.com/arvetta/berkas/internal/models"
)

// BatchStorage persists batches and their progress counters
type BatchStorage interface {
	SaveBatch(ctx context.Context, batch *models.Batch) error
	GetBatch(ctx context.Context, batchID string) (*models.Batch, error)
	// ListBatches returns batches for an owner, most recent first
	ListBatches(ctx context.Context, ownerID string, limit, offset int) ([]*models.Batch, error)
	// AddProgress atomically applies counter deltas and returns the updated
	// batch. The invariant files_processed + files_failed <= total_files is
	// enforced here.
	AddProgress(ctx context.Context, batchID string, processedDelta, failedDelta, pagesDelta int) (*models.Batch, error)
	AddTotalPages(ctx context.Context, batchID string, delta int) (*models.Batch, error)
	SetStatus(ctx context.Context, batchID string, status models.BatchStatus) error
	// RequestCancel sets the cancel flag; idempotent. Returns true if the
	// flag was newly set.
	RequestCancel(ctx context.Context, batchID string) (bool, error)
	DeleteBatch(ctx context.Context, batchID string) error
}

// DocumentStorage persists per-file rows
type DocumentStorage interface {
	SaveFile(ctx context.Context, file *models.DocumentFile) error
	GetFile(ctx context.Context, fileID string) (*models.DocumentFile, error)
	ListByBatch(ctx context.Context, batchID string) ([]*models.DocumentFile, error)
	ListByStatus(ctx context.Context, status models.FileStatus) ([]*models.DocumentFile, error)
	// UpdateStatus advances the per-file state machine. Transitions are
	// monotonic except queued->skipped on cancel.
	UpdateStatus(ctx context.Context, fileID string, status models.FileStatus, errKind models.ErrorKind) error
	SetPageCount(ctx context.Context, fileID string, pages int) error
	Heartbeat(ctx context.Context, fileID string) error
	// RequeueStale moves processing files with a heartbeat older than the
	// threshold back to queued; returns their IDs.
	RequeueStale(ctx context.Context, olderThan time.Time) ([]string, error)
	DeleteByBatch(ctx context.Context, batchID string) error
}

// ResultStorage persists scan results. At most one result exists per file.
type ResultStorage interface {
	SaveResult(ctx context.Context, result *models.ScanResult) error
	GetResult(ctx context.Context, resultID string) (*models.ScanResult, error)
	GetByFile(ctx context.Context, fileID string) (*models.ScanResult, error)
	ListByBatch(ctx context.Context, batchID string) ([]*models.ScanResult, error)
	// PatchPayload applies a user correction to the structured payload and
	// records the edited paths so reconciliation leaves them alone.
	PatchPayload(ctx context.Context, resultID string, payload json.RawMessage, editedPaths []string) error
	DeleteByBatch(ctx context.Context, batchID string) error
}

package badger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/arvetta/berkas/internal/interfaces"
	"github.com/arvetta/berkas/internal/models"
)

// BatchStorage implements interfaces.BatchStorage on Badger.
// Counter updates are read-modify-write under a storage-level mutex:
// badgerhold has no atomic field updates, and counter writes are low-volume
// compared to OCR work.
type BatchStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	mu     sync.Mutex
}

var _ interfaces.BatchStorage = (*BatchStorage)(nil)

// NewBatchStorage creates a new BatchStorage instance
func NewBatchStorage(db *BadgerDB, logger arbor.ILogger) *BatchStorage {
	return &BatchStorage{db: db, logger: logger}
}

func (s *BatchStorage) SaveBatch(ctx context.Context, batch *models.Batch) error {
	if batch.ID == "" {
		return fmt.Errorf("batch ID is required")
	}
	if err := s.db.Store().Upsert(batch.ID, batch); err != nil {
		return fmt.Errorf("failed to save batch: %w", err)
	}
	return nil
}

func (s *BatchStorage) GetBatch(ctx context.Context, batchID string) (*models.Batch, error) {
	var batch models.Batch
	if err := s.db.Store().Get(batchID, &batch); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("batch not found: %s", batchID)
		}
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	return &batch, nil
}

func (s *BatchStorage) ListBatches(ctx context.Context, ownerID string, limit, offset int) ([]*models.Batch, error) {
	query := badgerhold.Where("OwnerID").Eq(ownerID).SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Skip(offset)
	}

	var batches []models.Batch
	if err := s.db.Store().Find(&batches, query); err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}

	result := make([]*models.Batch, len(batches))
	for i := range batches {
		result[i] = &batches[i]
	}
	return result, nil
}

func (s *BatchStorage) AddProgress(ctx context.Context, batchID string, processedDelta, failedDelta, pagesDelta int) (*models.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var batch models.Batch
	if err := s.db.Store().Get(batchID, &batch); err != nil {
		return nil, fmt.Errorf("failed to get batch for progress update: %w", err)
	}

	if batch.FilesProcessed+processedDelta+batch.FilesFailed+failedDelta > batch.TotalFiles {
		return nil, fmt.Errorf("progress update would exceed total files for batch %s", batchID)
	}

	batch.FilesProcessed += processedDelta
	batch.FilesFailed += failedDelta
	batch.PagesProcessed += pagesDelta

	if err := s.db.Store().Upsert(batch.ID, &batch); err != nil {
		return nil, fmt.Errorf("failed to save batch progress: %w", err)
	}
	return &batch, nil
}

func (s *BatchStorage) AddTotalPages(ctx context.Context, batchID string, delta int) (*models.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var batch models.Batch
	if err := s.db.Store().Get(batchID, &batch); err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	batch.TotalPages += delta
	if err := s.db.Store().Upsert(batch.ID, &batch); err != nil {
		return nil, fmt.Errorf("failed to save batch: %w", err)
	}
	return &batch, nil
}

func (s *BatchStorage) SetStatus(ctx context.Context, batchID string, status models.BatchStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var batch models.Batch
	if err := s.db.Store().Get(batchID, &batch); err != nil {
		return fmt.Errorf("failed to get batch: %w", err)
	}
	if batch.Status.IsTerminal() && batch.Status != status {
		// Terminal states never regress
		return nil
	}
	batch.Status = status
	if status.IsTerminal() {
		now := time.Now()
		batch.CompletedAt = &now
	}
	if err := s.db.Store().Upsert(batch.ID, &batch); err != nil {
		return fmt.Errorf("failed to save batch status: %w", err)
	}
	return nil
}

func (s *BatchStorage) RequestCancel(ctx context.Context, batchID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var batch models.Batch
	if err := s.db.Store().Get(batchID, &batch); err != nil {
		if err == badgerhold.ErrNotFound {
			return false, fmt.Errorf("batch not found: %s", batchID)
		}
		return false, fmt.Errorf("failed to get batch: %w", err)
	}
	if batch.CancelRequested || batch.Status.IsTerminal() {
		return false, nil
	}
	batch.CancelRequested = true
	if err := s.db.Store().Upsert(batch.ID, &batch); err != nil {
		return false, fmt.Errorf("failed to save cancel flag: %w", err)
	}
	return true, nil
}

func (s *BatchStorage) DeleteBatch(ctx context.Context, batchID string) error {
	if err := s.db.Store().Delete(batchID, &models.Batch{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete batch: %w", err)
	}
	return nil
}

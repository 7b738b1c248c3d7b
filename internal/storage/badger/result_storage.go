package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/arvetta/berkas/internal/interfaces"
	"github.com/arvetta/berkas/internal/models"
)

// ResultStorage implements interfaces.ResultStorage on Badger
type ResultStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

var _ interfaces.ResultStorage = (*ResultStorage)(nil)

// NewResultStorage creates a new ResultStorage instance
func NewResultStorage(db *BadgerDB, logger arbor.ILogger) *ResultStorage {
	return &ResultStorage{db: db, logger: logger}
}

// SaveResult upserts a scan result. The FileID unique index makes a retried
// file overwrite its previous result instead of producing a duplicate.
func (s *ResultStorage) SaveResult(ctx context.Context, result *models.ScanResult) error {
	if result.ID == "" {
		return fmt.Errorf("result ID is required")
	}
	if result.FileID == "" {
		return fmt.Errorf("result file ID is required")
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now()
	}
	result.UpdatedAt = time.Now()

	// Reuse the existing key when a result already exists for this file, so
	// the unique index is an overwrite rather than a conflict.
	existing, err := s.GetByFile(ctx, result.FileID)
	if err == nil && existing != nil && existing.ID != result.ID {
		result.ID = existing.ID
		result.CreatedAt = existing.CreatedAt
		result.EditedPaths = existing.EditedPaths
	}

	if err := s.db.Store().Upsert(result.ID, result); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

func (s *ResultStorage) GetResult(ctx context.Context, resultID string) (*models.ScanResult, error) {
	var result models.ScanResult
	if err := s.db.Store().Get(resultID, &result); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("result not found: %s", resultID)
		}
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return &result, nil
}

func (s *ResultStorage) GetByFile(ctx context.Context, fileID string) (*models.ScanResult, error) {
	var result models.ScanResult
	if err := s.db.Store().FindOne(&result, badgerhold.Where("FileID").Eq(fileID)); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("result not found for file: %s", fileID)
		}
		return nil, fmt.Errorf("failed to get result by file: %w", err)
	}
	return &result, nil
}

func (s *ResultStorage) ListByBatch(ctx context.Context, batchID string) ([]*models.ScanResult, error) {
	var results []models.ScanResult
	query := badgerhold.Where("BatchID").Eq(batchID).SortBy("CreatedAt")
	if err := s.db.Store().Find(&results, query); err != nil {
		return nil, fmt.Errorf("failed to list results for batch %s: %w", batchID, err)
	}
	out := make([]*models.ScanResult, len(results))
	for i := range results {
		out[i] = &results[i]
	}
	return out, nil
}

func (s *ResultStorage) PatchPayload(ctx context.Context, resultID string, payload json.RawMessage, editedPaths []string) error {
	var result models.ScanResult
	if err := s.db.Store().Get(resultID, &result); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("result not found: %s", resultID)
		}
		return fmt.Errorf("failed to get result for patch: %w", err)
	}

	result.Payload = payload
	result.UpdatedAt = time.Now()

	// Union of previously and newly edited paths
	seen := make(map[string]bool, len(result.EditedPaths))
	for _, p := range result.EditedPaths {
		seen[p] = true
	}
	for _, p := range editedPaths {
		if !seen[p] {
			result.EditedPaths = append(result.EditedPaths, p)
			seen[p] = true
		}
	}

	if err := s.db.Store().Upsert(result.ID, &result); err != nil {
		return fmt.Errorf("failed to save patched result: %w", err)
	}
	return nil
}

func (s *ResultStorage) DeleteByBatch(ctx context.Context, batchID string) error {
	query := badgerhold.Where("BatchID").Eq(batchID)
	if err := s.db.Store().DeleteMatching(&models.ScanResult{}, query); err != nil {
		return fmt.Errorf("failed to delete results for batch %s: %w", batchID, err)
	}
	return nil
}

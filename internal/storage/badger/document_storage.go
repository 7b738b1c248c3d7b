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

// statusRank orders file states so UpdateStatus can reject regressions.
// Terminal states share the highest rank; queued->skipped is the one
// permitted jump (batch cancellation).
var statusRank = map[models.FileStatus]int{
	models.FileStatusQueued:     0,
	models.FileStatusProcessing: 1,
	models.FileStatusDone:       2,
	models.FileStatusFailed:     2,
	models.FileStatusSkipped:    2,
}

// DocumentStorage implements interfaces.DocumentStorage on Badger
type DocumentStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	mu     sync.Mutex
}

var _ interfaces.DocumentStorage = (*DocumentStorage)(nil)

// NewDocumentStorage creates a new DocumentStorage instance
func NewDocumentStorage(db *BadgerDB, logger arbor.ILogger) *DocumentStorage {
	return &DocumentStorage{db: db, logger: logger}
}

func (s *DocumentStorage) SaveFile(ctx context.Context, file *models.DocumentFile) error {
	if file.ID == "" {
		return fmt.Errorf("file ID is required")
	}
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now()
	}
	file.UpdatedAt = time.Now()
	if err := s.db.Store().Upsert(file.ID, file); err != nil {
		return fmt.Errorf("failed to save file: %w", err)
	}
	return nil
}

func (s *DocumentStorage) GetFile(ctx context.Context, fileID string) (*models.DocumentFile, error) {
	var file models.DocumentFile
	if err := s.db.Store().Get(fileID, &file); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("file not found: %s", fileID)
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return &file, nil
}

func (s *DocumentStorage) ListByBatch(ctx context.Context, batchID string) ([]*models.DocumentFile, error) {
	var files []models.DocumentFile
	query := badgerhold.Where("BatchID").Eq(batchID).SortBy("CreatedAt")
	if err := s.db.Store().Find(&files, query); err != nil {
		return nil, fmt.Errorf("failed to list files for batch %s: %w", batchID, err)
	}
	result := make([]*models.DocumentFile, len(files))
	for i := range files {
		result[i] = &files[i]
	}
	return result, nil
}

func (s *DocumentStorage) ListByStatus(ctx context.Context, status models.FileStatus) ([]*models.DocumentFile, error) {
	var files []models.DocumentFile
	query := badgerhold.Where("Status").Eq(status).SortBy("CreatedAt")
	if err := s.db.Store().Find(&files, query); err != nil {
		return nil, fmt.Errorf("failed to list files by status %s: %w", status, err)
	}
	result := make([]*models.DocumentFile, len(files))
	for i := range files {
		result[i] = &files[i]
	}
	return result, nil
}

func (s *DocumentStorage) UpdateStatus(ctx context.Context, fileID string, status models.FileStatus, errKind models.ErrorKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var file models.DocumentFile
	if err := s.db.Store().Get(fileID, &file); err != nil {
		return fmt.Errorf("failed to get file for status update: %w", err)
	}

	from, to := statusRank[file.Status], statusRank[status]
	allowed := to > from ||
		(file.Status == models.FileStatusQueued && status == models.FileStatusSkipped)
	if !allowed && file.Status != status {
		return fmt.Errorf("invalid file status transition %s -> %s for %s", file.Status, status, fileID)
	}

	now := time.Now()
	file.Status = status
	file.ErrorKind = errKind
	file.UpdatedAt = now
	if status == models.FileStatusProcessing {
		file.LastHeartbeat = &now
	}
	if err := s.db.Store().Upsert(file.ID, &file); err != nil {
		return fmt.Errorf("failed to save file status: %w", err)
	}
	return nil
}

func (s *DocumentStorage) SetPageCount(ctx context.Context, fileID string, pages int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var file models.DocumentFile
	if err := s.db.Store().Get(fileID, &file); err != nil {
		return fmt.Errorf("failed to get file: %w", err)
	}
	file.PageCount = pages
	file.UpdatedAt = time.Now()
	if err := s.db.Store().Upsert(file.ID, &file); err != nil {
		return fmt.Errorf("failed to save file page count: %w", err)
	}
	return nil
}

func (s *DocumentStorage) Heartbeat(ctx context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var file models.DocumentFile
	if err := s.db.Store().Get(fileID, &file); err != nil {
		return fmt.Errorf("failed to get file for heartbeat: %w", err)
	}
	now := time.Now()
	file.LastHeartbeat = &now
	if err := s.db.Store().Upsert(file.ID, &file); err != nil {
		return fmt.Errorf("failed to save heartbeat: %w", err)
	}
	return nil
}

func (s *DocumentStorage) RequeueStale(ctx context.Context, olderThan time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var files []models.DocumentFile
	query := badgerhold.Where("Status").Eq(models.FileStatusProcessing)
	if err := s.db.Store().Find(&files, query); err != nil {
		return nil, fmt.Errorf("failed to find processing files: %w", err)
	}

	var requeued []string
	for i := range files {
		// A missing heartbeat means the worker died before its first beat
		if files[i].LastHeartbeat != nil && files[i].LastHeartbeat.After(olderThan) {
			continue
		}
		lastBeat := "never"
		if files[i].LastHeartbeat != nil {
			lastBeat = files[i].LastHeartbeat.Format(time.RFC3339)
		}
		files[i].Status = models.FileStatusQueued
		files[i].ErrorKind = ""
		files[i].UpdatedAt = time.Now()
		if err := s.db.Store().Upsert(files[i].ID, &files[i]); err != nil {
			return requeued, fmt.Errorf("failed to requeue file %s: %w", files[i].ID, err)
		}
		s.logger.Warn().
			Str("file_id", files[i].ID).
			Str("batch_id", files[i].BatchID).
			Str("last_heartbeat", lastBeat).
			Msg("Re-queued orphaned file")
		requeued = append(requeued, files[i].ID)
	}
	return requeued, nil
}

func (s *DocumentStorage) DeleteByBatch(ctx context.Context, batchID string) error {
	query := badgerhold.Where("BatchID").Eq(batchID)
	if err := s.db.Store().DeleteMatching(&models.DocumentFile{}, query); err != nil {
		return fmt.Errorf("failed to delete files for batch %s: %w", batchID, err)
	}
	return nil
}

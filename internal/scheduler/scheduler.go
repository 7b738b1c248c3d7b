// Package scheduler owns batch admission and the worker pool. Files are
// queued as jobs; a fixed number of workers drains the queue, each driving
// one file through the pipeline at a time. Crash recovery re-queues files
// whose workers stopped heartbeating.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/arvetta/berkas/internal/common"
	"github.com/arvetta/berkas/internal/interfaces"
	"github.com/arvetta/berkas/internal/models"
)

const queueCapacity = 4096

// FileProcessor drives one file through the extraction pipeline
type FileProcessor interface {
	ProcessFile(ctx context.Context, batch *models.Batch, file *models.DocumentFile) error
}

type job struct {
	batchID string
	fileID  string
}

// Service is the batch scheduler
type Service struct {
	config   *common.Config
	batches  interfaces.BatchStorage
	files    interfaces.DocumentStorage
	results  interfaces.ResultStorage
	pipeline FileProcessor
	events   interfaces.EventService
	audit    interfaces.AuditLogger
	validate *validator.Validate
	cron     *cron.Cron
	queue    chan job
	logger   arbor.ILogger

	finalizeMu sync.Mutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewService creates the scheduler; call Start to begin processing
func NewService(config *common.Config, batches interfaces.BatchStorage, files interfaces.DocumentStorage,
	results interfaces.ResultStorage, pipeline FileProcessor, events interfaces.EventService,
	audit interfaces.AuditLogger, logger arbor.ILogger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		config:   config,
		batches:  batches,
		files:    files,
		results:  results,
		pipeline: pipeline,
		events:   events,
		audit:    audit,
		validate: validator.New(),
		cron:     cron.New(),
		queue:    make(chan job, queueCapacity),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start recovers orphaned work, launches the worker pool and schedules the
// stale-file sweep.
func (s *Service) Start() error {
	s.recoverOrphans()

	for i := 0; i < s.config.Scheduler.WorkerPoolSize; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	if _, err := s.cron.AddFunc(s.config.Scheduler.StaleSweepSchedule, s.sweepStale); err != nil {
		return fmt.Errorf("invalid stale sweep schedule %q: %w", s.config.Scheduler.StaleSweepSchedule, err)
	}
	s.cron.Start()

	s.logger.Info().
		Int("workers", s.config.Scheduler.WorkerPoolSize).
		Str("sweep", s.config.Scheduler.StaleSweepSchedule).
		Msg("Scheduler started")
	return nil
}

// Stop drains the worker pool and stops the sweep
func (s *Service) Stop() {
	s.cron.Stop()
	s.cancel()
	s.wg.Wait()
	s.logger.Info().Msg("Scheduler stopped")
}

// Submit admits a batch: validates the descriptor, expands archives, writes
// the uploads to disk and queues every file.
func (s *Service) Submit(ctx context.Context, req *SubmitRequest) (*models.Batch, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, models.NewProcessError(models.ErrKindValidation, "scheduler.submit", err)
	}

	uploads := req.Files
	fromArchive := len(req.Archive) > 0
	if fromArchive {
		if len(req.Files) > 0 {
			return nil, models.NewProcessError(models.ErrKindValidation, "scheduler.submit",
				fmt.Errorf("submission mixes direct files and an archive"))
		}
		var err error
		uploads, err = s.expandArchive(req.Archive)
		if err != nil {
			return nil, err
		}
	}
	if err := s.admit(uploads, fromArchive); err != nil {
		return nil, err
	}

	batch := &models.Batch{
		ID:          "batch_" + uuid.NewString(),
		OwnerID:     req.OwnerID,
		TotalFiles:  len(uploads),
		Status:      models.BatchStatusPending,
		FromArchive: fromArchive,
		CreatedAt:   time.Now(),
	}

	files, err := s.storeUploads(batch.ID, uploads)
	if err != nil {
		return nil, err
	}

	if err := s.batches.SaveBatch(ctx, batch); err != nil {
		return nil, models.NewProcessError(models.ErrKindResource, "scheduler.submit", err)
	}
	for _, file := range files {
		if err := s.files.SaveFile(ctx, file); err != nil {
			return nil, models.NewProcessError(models.ErrKindResource, "scheduler.submit", err)
		}
	}

	s.events.Publish(ctx, models.ProgressEvent{
		Topic:   models.BatchTopic(batch.ID),
		Phase:   models.PhaseBatchCreated,
		BatchID: batch.ID,
		Status:  string(batch.Status),
		Counters: models.ProgressCounters{
			TotalFiles: batch.TotalFiles,
		},
	})
	for _, file := range files {
		s.events.Publish(ctx, models.ProgressEvent{
			Topic:   models.FileTopic(file.ID),
			Phase:   models.PhaseFileQueued,
			BatchID: batch.ID,
			FileID:  file.ID,
			Status:  string(models.FileStatusQueued),
		})
	}

	s.auditLog(models.AuditDataAccess, req.OwnerID, "submit_batch", "success", map[string]any{
		"batch_id":     batch.ID,
		"total_files":  batch.TotalFiles,
		"from_archive": fromArchive,
	})

	for _, file := range files {
		s.enqueue(job{batchID: batch.ID, fileID: file.ID})
	}

	s.logger.Info().
		Str("batch_id", batch.ID).
		Int("files", len(files)).
		Bool("from_archive", fromArchive).
		Msg("Batch admitted")
	return batch, nil
}

// storeUploads hashes and writes each upload under the batch's directory
func (s *Service) storeUploads(batchID string, uploads []FileUpload) ([]*models.DocumentFile, error) {
	dir := filepath.Join(s.config.Storage.Uploads, batchID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, models.NewProcessError(models.ErrKindResource, "scheduler.submit", err)
	}

	files := make([]*models.DocumentFile, 0, len(uploads))
	now := time.Now()
	for _, upload := range uploads {
		fileID := "file_" + uuid.NewString()
		storedPath := filepath.Join(dir, fileID+filepath.Ext(upload.Filename))
		if err := os.WriteFile(storedPath, upload.Data, 0o644); err != nil {
			return nil, models.NewProcessError(models.ErrKindResource, "scheduler.submit", err)
		}
		files = append(files, &models.DocumentFile{
			ID:          fileID,
			BatchID:     batchID,
			DocType:     upload.DocType,
			Filename:    upload.Filename,
			StoredPath:  storedPath,
			SizeBytes:   int64(len(upload.Data)),
			ContentHash: fmt.Sprintf("%016x", xxhash.Sum64(upload.Data)),
			Status:      models.FileStatusQueued,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return files, nil
}

// Cancel requests batch cancellation: queued files skip immediately, the
// in-flight file stops at its next chunk boundary. Idempotent.
func (s *Service) Cancel(ctx context.Context, batchID, actor string) error {
	newlySet, err := s.batches.RequestCancel(ctx, batchID)
	if err != nil {
		return err
	}

	files, err := s.files.ListByBatch(ctx, batchID)
	if err != nil {
		return err
	}
	for _, file := range files {
		if file.Status != models.FileStatusQueued {
			continue
		}
		if err := s.files.UpdateStatus(ctx, file.ID, models.FileStatusSkipped, ""); err != nil {
			s.logger.Warn().Err(err).Str("file_id", file.ID).Msg("Failed to skip queued file on cancel")
			continue
		}
		s.events.Publish(ctx, models.ProgressEvent{
			Topic:   models.FileTopic(file.ID),
			Phase:   models.PhaseFileSkipped,
			BatchID: batchID,
			FileID:  file.ID,
			Status:  string(models.FileStatusSkipped),
		})
	}

	if newlySet {
		s.auditLog(models.AuditAdminAction, actor, "cancel_batch", "success", map[string]any{
			"batch_id": batchID,
		})
	}
	s.finalize(batchID)
	return nil
}

// Status returns the batch read model with a rough page-based ETA
func (s *Service) Status(ctx context.Context, batchID string) (*models.BatchSnapshot, error) {
	batch, err := s.batches.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	files, err := s.files.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	snapshot := &models.BatchSnapshot{Batch: *batch}
	for _, file := range files {
		snapshot.Files = append(snapshot.Files, *file)
	}

	if !batch.Status.IsTerminal() && batch.PagesProcessed > 0 && batch.TotalPages > batch.PagesProcessed {
		elapsed := time.Since(batch.CreatedAt).Seconds()
		rate := float64(batch.PagesProcessed) / elapsed
		if rate > 0 {
			snapshot.ETASeconds = float64(batch.TotalPages-batch.PagesProcessed) / rate
		}
	}
	return snapshot, nil
}

// ListBatches returns an owner's batches, most recent first
func (s *Service) ListBatches(ctx context.Context, ownerID string, limit, offset int) ([]*models.Batch, error) {
	return s.batches.ListBatches(ctx, ownerID, limit, offset)
}

// Results returns the scan results for a batch
func (s *Service) Results(ctx context.Context, batchID string) ([]*models.ScanResult, error) {
	if _, err := s.batches.GetBatch(ctx, batchID); err != nil {
		return nil, err
	}
	return s.results.ListByBatch(ctx, batchID)
}

func (s *Service) enqueue(j job) {
	select {
	case s.queue <- j:
	case <-s.ctx.Done():
	}
}

func (s *Service) worker(id int) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case j := <-s.queue:
			s.runJob(j)
		}
	}
}

func (s *Service) runJob(j job) {
	batch, err := s.batches.GetBatch(s.ctx, j.batchID)
	if err != nil {
		s.logger.Error().Err(err).Str("batch_id", j.batchID).Msg("Job references missing batch")
		return
	}
	file, err := s.files.GetFile(s.ctx, j.fileID)
	if err != nil {
		s.logger.Error().Err(err).Str("file_id", j.fileID).Msg("Job references missing file")
		return
	}
	if file.Status != models.FileStatusQueued {
		s.finalize(j.batchID)
		return
	}

	if batch.Status == models.BatchStatusPending {
		if err := s.batches.SetStatus(s.ctx, batch.ID, models.BatchStatusProcessing); err != nil {
			s.logger.Warn().Err(err).Str("batch_id", batch.ID).Msg("Failed to mark batch processing")
		}
	}

	if err := s.pipeline.ProcessFile(s.ctx, batch, file); err != nil {
		s.logger.Warn().Err(err).Str("file_id", file.ID).Msg("File processing ended with error")
	}
	s.finalize(j.batchID)
}

// finalize computes the batch terminal state once every file has settled
func (s *Service) finalize(batchID string) {
	s.finalizeMu.Lock()
	defer s.finalizeMu.Unlock()

	ctx := context.Background()
	batch, err := s.batches.GetBatch(ctx, batchID)
	if err != nil || batch.Status.IsTerminal() {
		return
	}
	files, err := s.files.ListByBatch(ctx, batchID)
	if err != nil {
		return
	}
	for _, file := range files {
		if !file.Status.IsTerminal() {
			return
		}
	}

	var status models.BatchStatus
	switch {
	case batch.CancelRequested:
		status = models.BatchStatusCancelled
	case batch.FilesFailed == 0:
		status = models.BatchStatusCompleted
	case batch.FilesProcessed == 0:
		status = models.BatchStatusFailed
	default:
		status = models.BatchStatusPartial
	}
	if err := s.batches.SetStatus(ctx, batchID, status); err != nil {
		s.logger.Error().Err(err).Str("batch_id", batchID).Msg("Failed to set batch terminal status")
		return
	}

	phase := models.PhaseBatchTerminal
	if status == models.BatchStatusCancelled {
		phase = models.PhaseBatchCancelled
	}
	s.events.Publish(ctx, models.ProgressEvent{
		Topic:   models.BatchTopic(batchID),
		Phase:   phase,
		BatchID: batchID,
		Status:  string(status),
		Counters: models.ProgressCounters{
			TotalFiles:     batch.TotalFiles,
			FilesProcessed: batch.FilesProcessed,
			FilesFailed:    batch.FilesFailed,
			TotalPages:     batch.TotalPages,
			PagesProcessed: batch.PagesProcessed,
		},
	})
	s.logger.Info().Str("batch_id", batchID).Str("status", string(status)).Msg("Batch finalized")
}

// recoverOrphans re-queues files stuck in processing from a previous run
// and re-enqueues everything still queued.
func (s *Service) recoverOrphans() {
	ctx := context.Background()

	requeued, err := s.files.RequeueStale(ctx, time.Now())
	if err != nil {
		s.logger.Error().Err(err).Msg("Startup requeue failed")
	} else if len(requeued) > 0 {
		s.logger.Warn().Int("files", len(requeued)).Msg("Re-queued files orphaned by a previous run")
	}

	queued, err := s.files.ListByStatus(ctx, models.FileStatusQueued)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list queued files on startup")
		return
	}
	go func() {
		for _, file := range queued {
			s.enqueue(job{batchID: file.BatchID, fileID: file.ID})
		}
	}()
}

// sweepStale runs on the cron schedule and rescues files whose worker
// heartbeat has gone silent.
func (s *Service) sweepStale() {
	ctx := context.Background()
	staleAfter := common.Duration(s.config.Scheduler.StaleAfter, 10*time.Minute)

	ids, err := s.files.RequeueStale(ctx, time.Now().Add(-staleAfter))
	if err != nil {
		s.logger.Error().Err(err).Msg("Stale sweep failed")
		return
	}
	for _, id := range ids {
		file, err := s.files.GetFile(ctx, id)
		if err != nil {
			continue
		}
		s.enqueue(job{batchID: file.BatchID, fileID: file.ID})
	}
	if len(ids) > 0 {
		s.logger.Warn().Int("files", len(ids)).Msg("Stale sweep re-queued silent files")
	}
}

func (s *Service) auditLog(eventType models.AuditEventType, actor, action, status string, details map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(models.AuditEvent{
		EventType: eventType,
		Actor:     actor,
		Action:    action,
		Status:    status,
		Details:   details,
	}); err != nil {
		s.logger.Warn().Err(err).Msg("Audit write failed")
	}
}

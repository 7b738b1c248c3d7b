// Package pipeline drives one file through the extraction state machine:
// queued -> processing (ocr, routing, extracting, persisting) -> done, failed
// or skipped. The scheduler owns worker allocation; the pipeline owns
// everything that happens to a single file.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/arvetta/berkas/internal/common"
	"github.com/arvetta/berkas/internal/interfaces"
	"github.com/arvetta/berkas/internal/models"
	"github.com/arvetta/berkas/internal/services/hybrid"
	"github.com/arvetta/berkas/internal/services/parsers"
	"github.com/arvetta/berkas/internal/services/pdf"
)

// Pre-flight sizing bounds. A document whose merged OCR output exceeds any of
// them is never sent to the AI extractor in one piece; extraction runs per
// page window and the structured results are merged afterwards.
const (
	largeStatementRows = 1500
	maxOCRJSONBytes    = 50 << 20
)

// BankProcessor is the hybrid adapter-plus-mapper path for bank statements
type BankProcessor interface {
	Process(ctx context.Context, ocr *models.OCRResult) (*hybrid.Result, error)
}

// Deps carries the pipeline's collaborators
type Deps struct {
	Config    *common.Config
	Batches   interfaces.BatchStorage
	Files     interfaces.DocumentStorage
	Results   interfaces.ResultStorage
	OCR       interfaces.OCRRouter
	Chunker   *pdf.Chunker
	Mapper    interfaces.SmartMapper
	Banks     BankProcessor
	Fallback  *parsers.Fallback
	Events    interfaces.EventService
	Semaphore *semaphore.Weighted
	Logger    arbor.ILogger
}

// Pipeline processes one file at a time on behalf of a scheduler worker
type Pipeline struct {
	config   *common.Config
	batches  interfaces.BatchStorage
	files    interfaces.DocumentStorage
	results  interfaces.ResultStorage
	ocr      interfaces.OCRRouter
	chunker  *pdf.Chunker
	mapper   interfaces.SmartMapper
	banks    BankProcessor
	fallback *parsers.Fallback
	events   interfaces.EventService
	sem      *semaphore.Weighted
	logger   arbor.ILogger
}

// New creates a pipeline from its dependency set
func New(d Deps) *Pipeline {
	return &Pipeline{
		config:   d.Config,
		batches:  d.Batches,
		files:    d.Files,
		results:  d.Results,
		ocr:      d.OCR,
		chunker:  d.Chunker,
		mapper:   d.Mapper,
		banks:    d.Banks,
		fallback: d.Fallback,
		events:   d.Events,
		sem:      d.Semaphore,
		logger:   d.Logger,
	}
}

// ProcessFile runs the full state machine for one file. Counter updates and
// progress events are published here; the returned error is for worker
// logging only, the file row already carries its terminal state.
func (p *Pipeline) ProcessFile(ctx context.Context, batch *models.Batch, file *models.DocumentFile) error {
	if p.cancelRequested(ctx, batch.ID) {
		return p.skipFile(ctx, batch.ID, file)
	}
	if !models.IsKnownDocumentType(file.DocType) {
		return p.failFile(ctx, batch.ID, file, models.NewProcessError(
			models.ErrKindUnsupportedType, "pipeline",
			fmt.Errorf("unknown document type %q", file.DocType)))
	}

	if err := p.files.UpdateStatus(ctx, file.ID, models.FileStatusProcessing, ""); err != nil {
		return fmt.Errorf("failed to claim file %s: %w", file.ID, err)
	}
	stop := p.startHeartbeat(file.ID)
	defer stop()

	stages := make(map[string]int64)

	p.publish(models.PhaseOCRRunning, batch.ID, file.ID, string(models.FileStatusProcessing), "", nil)
	started := time.Now()
	ocrResult, chunkResults, err := p.runOCR(ctx, batch.ID, file)
	stages["ocr"] = time.Since(started).Milliseconds()
	if err != nil {
		if models.KindOf(err) == models.ErrKindCancelled {
			return p.skipFile(ctx, batch.ID, file)
		}
		return p.failFile(ctx, batch.ID, file, err)
	}

	// Cancellation is honored between the OCR and extraction stages
	if p.cancelRequested(ctx, batch.ID) {
		return p.skipFile(ctx, batch.ID, file)
	}

	p.publish(models.PhaseExtracting, batch.ID, file.ID, string(models.FileStatusProcessing), "", nil)
	started = time.Now()
	payload, confidence, modelID, err := p.extract(ctx, file.DocType, ocrResult, chunkResults)
	stages["extract"] = time.Since(started).Milliseconds()
	if err != nil {
		if models.KindOf(err) == models.ErrKindCancelled {
			return p.skipFile(ctx, batch.ID, file)
		}
		return p.failFile(ctx, batch.ID, file, err)
	}

	started = time.Now()
	err = p.persist(ctx, file, ocrResult, payload, confidence, modelID, stages)
	if err != nil {
		return p.failFile(ctx, batch.ID, file, err)
	}
	stages["persist"] = time.Since(started).Milliseconds()

	if err := p.files.UpdateStatus(ctx, file.ID, models.FileStatusDone, ""); err != nil {
		return fmt.Errorf("failed to finish file %s: %w", file.ID, err)
	}
	updated, err := p.batches.AddProgress(ctx, batch.ID, 1, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to count completion of %s: %w", file.ID, err)
	}
	p.publish(models.PhaseFileDone, batch.ID, file.ID, string(models.FileStatusDone), "", updated)

	p.logger.Info().
		Str("file_id", file.ID).
		Str("doc_type", string(file.DocType)).
		Int64("ocr_ms", stages["ocr"]).
		Int64("extract_ms", stages["extract"]).
		Msg("File processed")
	return nil
}

// runOCR produces the merged OCR result for the file, chunking large PDFs
// and advancing the page counters as chunks complete. For chunked files the
// per-chunk results are returned too, so extraction can honor the sizing
// bounds without re-running OCR.
func (p *Pipeline) runOCR(ctx context.Context, batchID string, file *models.DocumentFile) (*models.OCRResult, []*models.OCRResult, error) {
	timeout := common.Duration(p.config.OCR.Timeout, 10*time.Minute)

	if !isPDF(file.StoredPath) {
		result, err := p.ocrCall(ctx, file.StoredPath, timeout)
		if err != nil {
			return nil, nil, err
		}
		pages := result.PageCount()
		if pages == 0 {
			pages = 1
		}
		if _, err := p.batches.AddTotalPages(ctx, batchID, pages); err != nil {
			return nil, nil, err
		}
		p.pageProgress(ctx, batchID, file.ID, pages)
		return result, nil, nil
	}

	pageCount, err := p.chunker.CountPages(file.StoredPath)
	if err != nil {
		return nil, nil, models.NewProcessError(models.ErrKindResource, "pipeline.ocr", err)
	}
	if err := p.files.SetPageCount(ctx, file.ID, pageCount); err != nil {
		return nil, nil, err
	}
	if _, err := p.batches.AddTotalPages(ctx, batchID, pageCount); err != nil {
		return nil, nil, err
	}

	if !p.chunker.ShouldChunk(pageCount) {
		result, err := p.ocrCall(ctx, file.StoredPath, timeout)
		if err != nil {
			return nil, nil, err
		}
		p.pageProgress(ctx, batchID, file.ID, pageCount)
		return result, nil, nil
	}

	chunks, err := p.chunker.Chunk(file.StoredPath, file.ID)
	if err != nil {
		return nil, nil, err
	}
	defer p.chunker.Cleanup(file.ID)

	deltas := chunkPageDeltas(chunks)
	results := make([]*models.OCRResult, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Scheduler.ChunkConcurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			// Chunk boundaries are the cancellation points inside a file
			if p.cancelRequested(gctx, batchID) {
				return models.NewProcessError(models.ErrKindCancelled, "pipeline.ocr", context.Canceled)
			}
			result, err := p.ocrCall(gctx, chunk.Path, timeout)
			if err != nil {
				return err
			}
			results[i] = result
			p.pageProgress(gctx, batchID, file.ID, deltas[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	merged, err := p.chunker.MergeResults(chunks, results)
	if err != nil {
		return nil, nil, err
	}
	return merged, results, nil
}

// chunkPageDeltas attributes each document page to exactly one chunk, so the
// page counter sums to the real page count even though overlap pages are
// OCR'd twice.
func chunkPageDeltas(chunks []pdf.Chunk) []int {
	deltas := make([]int, len(chunks))
	prevEnd := 0
	for i, chunk := range chunks {
		start := chunk.StartPage
		if start <= prevEnd {
			start = prevEnd + 1
		}
		delta := chunk.EndPage - start + 1
		if delta < 0 {
			delta = 0
		}
		deltas[i] = delta
		prevEnd = chunk.EndPage
	}
	return deltas
}

// ocrCall is a single OCR invocation under the global concurrency cap
func (p *Pipeline) ocrCall(ctx context.Context, path string, timeout time.Duration) (*models.OCRResult, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, models.NewProcessError(models.ErrKindCancelled, "pipeline.ocr", err)
	}
	defer p.sem.Release(1)

	var result *models.OCRResult
	err := withRetry(ctx, p.logger, "pipeline.ocr", func() error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		var err error
		result, err = p.ocr.Process(callCtx, path)
		return err
	})
	return result, err
}

// extract routes the OCR result to the hybrid bank path or the AI mapper and
// returns the structured payload with its confidence and producing model.
// Oversized documents are extracted per page window and the structured
// results merged, never in one AI call.
func (p *Pipeline) extract(ctx context.Context, docType models.DocumentType, ocrResult *models.OCRResult, chunkResults []*models.OCRResult) (json.RawMessage, float64, string, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, 0, "", models.NewProcessError(models.ErrKindCancelled, "pipeline.extract", err)
	}
	defer p.sem.Release(1)

	units := p.extractionUnits(ocrResult, chunkResults)

	if docType == models.DocTypeRekeningKoran {
		return p.extractStatement(ctx, units)
	}
	return p.extractTaxDocument(ctx, docType, ocrResult, units)
}

// extractStatement runs the hybrid bank path once per unit. Multi-unit
// results merge by transaction fingerprint with first-non-empty metadata.
func (p *Pipeline) extractStatement(ctx context.Context, units []*models.OCRResult) (json.RawMessage, float64, string, error) {
	parts := make([]*hybrid.Result, len(units))
	for i, unit := range units {
		var out *hybrid.Result
		err := withRetry(ctx, p.logger, "pipeline.extract", func() error {
			var err error
			out, err = p.banks.Process(ctx, unit)
			return err
		})
		if err != nil {
			return nil, 0, "", err
		}
		parts[i] = out
	}

	combined := hybrid.Combine(parts)
	payload, err := json.Marshal(combined.Payload)
	if err != nil {
		return nil, 0, "", models.NewProcessError(models.ErrKindInternal, "pipeline.extract", err)
	}
	return payload, combined.Confidence, combined.ModelID, nil
}

// extractTaxDocument maps each unit and folds the records together, first
// non-empty value per field. Units the AI cannot parse get one regex
// best-effort pass.
func (p *Pipeline) extractTaxDocument(ctx context.Context, docType models.DocumentType, ocrResult *models.OCRResult, units []*models.OCRResult) (json.RawMessage, float64, string, error) {
	payloads := make([]json.RawMessage, 0, len(units))
	var modelID string
	fellBack := false

	for _, unit := range units {
		var payload json.RawMessage
		err := withRetry(ctx, p.logger, "pipeline.extract", func() error {
			var err error
			payload, modelID, err = p.mapper.Map(ctx, docType, unit)
			return err
		})
		if err != nil {
			if models.KindOf(err) == models.ErrKindExtractorParse {
				raw, ferr := p.fallback.Extract(docType, unit)
				if ferr == nil {
					p.logger.Warn().Str("doc_type", string(docType)).Msg("AI extraction unparseable, using regex fallback")
					payloads = append(payloads, raw)
					fellBack = true
					continue
				}
			}
			return nil, 0, "", err
		}
		payloads = append(payloads, payload)
	}

	merged, err := mergeRecords(payloads)
	if err != nil {
		return nil, 0, "", models.NewProcessError(models.ErrKindInternal, "pipeline.extract", err)
	}
	confidence := ocrResult.Confidence
	if fellBack {
		confidence = parsers.FallbackConfidence
		modelID = ""
	}
	return merged, confidence, modelID, nil
}

// persist writes the scan result, preserving payload paths users have edited
// on a previous run of the same file.
func (p *Pipeline) persist(ctx context.Context, file *models.DocumentFile, ocrResult *models.OCRResult, payload json.RawMessage, confidence float64, modelID string, stages map[string]int64) error {
	timeout := common.Duration(p.config.Scheduler.StorageTimeout, 30*time.Second)
	writeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if existing, err := p.results.GetByFile(writeCtx, file.ID); err == nil && len(existing.EditedPaths) > 0 {
		payload = preserveEdits(payload, existing.Payload, existing.EditedPaths, p.logger)
	}

	now := time.Now()
	result := &models.ScanResult{
		ID:         "scan_" + uuid.NewString(),
		FileID:     file.ID,
		BatchID:    file.BatchID,
		DocType:    file.DocType,
		OCRText:    ocrResult.Text,
		Payload:    payload,
		Confidence: confidence,
		OCREngine:  ocrResult.EngineID,
		AIModel:    modelID,
		StageTimes: stages,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := p.results.SaveResult(writeCtx, result); err != nil {
		return models.NewProcessError(models.ErrKindResource, "pipeline.persist", err)
	}
	return nil
}

func (p *Pipeline) skipFile(ctx context.Context, batchID string, file *models.DocumentFile) error {
	if err := p.files.UpdateStatus(ctx, file.ID, models.FileStatusSkipped, ""); err != nil {
		return fmt.Errorf("failed to skip file %s: %w", file.ID, err)
	}
	p.publish(models.PhaseFileSkipped, batchID, file.ID, string(models.FileStatusSkipped), "", nil)
	p.logger.Info().Str("file_id", file.ID).Msg("File skipped on batch cancel")
	return nil
}

func (p *Pipeline) failFile(ctx context.Context, batchID string, file *models.DocumentFile, cause error) error {
	kind := models.KindOf(cause)
	if err := p.files.UpdateStatus(ctx, file.ID, models.FileStatusFailed, kind); err != nil {
		p.logger.Error().Err(err).Str("file_id", file.ID).Msg("Failed to record file failure")
	}
	updated, err := p.batches.AddProgress(ctx, batchID, 0, 1, 0)
	if err != nil {
		p.logger.Error().Err(err).Str("batch_id", batchID).Msg("Failed to count file failure")
	}
	p.publish(models.PhaseFileFailed, batchID, file.ID, string(models.FileStatusFailed), string(kind), updated)
	p.logger.Warn().
		Str("file_id", file.ID).
		Str("error_kind", string(kind)).
		Err(cause).
		Msg("File failed")
	return cause
}

// pageProgress advances the processed-page counter and announces the chunk
func (p *Pipeline) pageProgress(ctx context.Context, batchID, fileID string, pages int) {
	updated, err := p.batches.AddProgress(ctx, batchID, 0, 0, pages)
	if err != nil {
		p.logger.Error().Err(err).Str("batch_id", batchID).Msg("Failed to advance page counter")
		return
	}
	p.publish(models.PhaseChunkDone, batchID, fileID, string(models.FileStatusProcessing), "", updated)
}

// publish emits the event on both the file topic and the batch topic
func (p *Pipeline) publish(phase, batchID, fileID, status, errKind string, batch *models.Batch) {
	event := models.ProgressEvent{
		Phase:     phase,
		BatchID:   batchID,
		FileID:    fileID,
		Status:    status,
		ErrorKind: errKind,
	}
	if batch != nil {
		event.Counters = models.ProgressCounters{
			TotalFiles:     batch.TotalFiles,
			FilesProcessed: batch.FilesProcessed,
			FilesFailed:    batch.FilesFailed,
			TotalPages:     batch.TotalPages,
			PagesProcessed: batch.PagesProcessed,
		}
	}
	ctx := context.Background()
	event.Topic = models.FileTopic(fileID)
	p.events.Publish(ctx, event)
	event.Topic = models.BatchTopic(batchID)
	p.events.Publish(ctx, event)
}

// cancelRequested reads the batch cancel flag; storage errors read as not
// cancelled so processing continues rather than silently skipping work.
func (p *Pipeline) cancelRequested(ctx context.Context, batchID string) bool {
	batch, err := p.batches.GetBatch(ctx, batchID)
	if err != nil {
		return false
	}
	return batch.CancelRequested || batch.Status == models.BatchStatusCancelled
}

// startHeartbeat stamps the file row every 30 seconds so the stale sweep can
// tell a live worker from a crashed one.
func (p *Pipeline) startHeartbeat(fileID string) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := p.files.Heartbeat(context.Background(), fileID); err != nil {
					p.logger.Warn().Err(err).Str("file_id", fileID).Msg("Heartbeat write failed")
				}
			}
		}
	}()
	return func() { close(done) }
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

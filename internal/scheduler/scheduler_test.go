package scheduler

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arvetta/berkas/internal/common"
	"github.com/arvetta/berkas/internal/models"
	"github.com/arvetta/berkas/internal/services/events"
	"github.com/arvetta/berkas/internal/storage/badger"
)

// fakePipeline settles files through storage the way the real pipeline would
type fakePipeline struct {
	manager *badger.Manager
	fail    map[string]bool // filenames that should fail
	calls   atomic.Int64
}

func (f *fakePipeline) ProcessFile(ctx context.Context, batch *models.Batch, file *models.DocumentFile) error {
	f.calls.Add(1)
	bg := context.Background()
	if f.fail[file.Filename] {
		f.manager.DocumentStorage().UpdateStatus(bg, file.ID, models.FileStatusFailed, models.ErrKindUpstreamPermanent)
		f.manager.BatchStorage().AddProgress(bg, batch.ID, 0, 1, 0)
		return assert.AnError
	}
	f.manager.DocumentStorage().UpdateStatus(bg, file.ID, models.FileStatusDone, "")
	f.manager.BatchStorage().AddProgress(bg, batch.ID, 1, 0, 0)
	return nil
}

type schedEnv struct {
	service  *Service
	manager  *badger.Manager
	pipeline *fakePipeline
	events   *events.Service
	ctx      context.Context
}

func newSchedEnv(t *testing.T) *schedEnv {
	t.Helper()
	logger := common.GetLogger()
	cfg := common.NewDefaultConfig()
	cfg.Storage.Badger.Path = t.TempDir()
	cfg.Storage.Uploads = t.TempDir()
	cfg.Scheduler.WorkerPoolSize = 2

	manager, err := badger.NewManager(logger, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	eventService := events.NewService(logger)
	t.Cleanup(func() { eventService.Close() })

	pipeline := &fakePipeline{manager: manager, fail: map[string]bool{}}
	service := NewService(cfg, manager.BatchStorage(), manager.DocumentStorage(), manager.ResultStorage(),
		pipeline, eventService, nil, logger)
	t.Cleanup(service.Stop)

	return &schedEnv{service: service, manager: manager, pipeline: pipeline, events: eventService, ctx: context.Background()}
}

func upload(name string, docType models.DocumentType) FileUpload {
	return FileUpload{Filename: name, DocType: docType, Data: []byte("%PDF-1.4 test")}
}

func buildZip(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, data := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestSubmitDirectUpload(t *testing.T) {
	env := newSchedEnv(t)

	batch, err := env.service.Submit(env.ctx, &SubmitRequest{
		OwnerID: "user_1",
		Files: []FileUpload{
			upload("faktur1.pdf", models.DocTypeFakturPajak),
			upload("slip.pdf", models.DocTypePPh23),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusPending, batch.Status)
	assert.Equal(t, 2, batch.TotalFiles)
	assert.False(t, batch.FromArchive)

	files, err := env.manager.DocumentStorage().ListByBatch(env.ctx, batch.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, file := range files {
		assert.Equal(t, models.FileStatusQueued, file.Status)
		assert.NotEmpty(t, file.ContentHash)
		_, err := os.Stat(file.StoredPath)
		assert.NoError(t, err, "stored upload should exist on disk")
	}

	snapshot, ok := env.events.Snapshot(models.BatchTopic(batch.ID))
	require.True(t, ok)
	assert.Equal(t, models.PhaseBatchCreated, snapshot.Phase)
	assert.Equal(t, 2, snapshot.Counters.TotalFiles)
}

func TestSubmitAdmissionRules(t *testing.T) {
	env := newSchedEnv(t)

	// Over the direct-upload cap
	many := make([]FileUpload, 51)
	for i := range many {
		many[i] = upload("f.pdf", models.DocTypeInvoice)
	}
	_, err := env.service.Submit(env.ctx, &SubmitRequest{OwnerID: "user_1", Files: many})
	require.Error(t, err)
	assert.Equal(t, models.ErrKindValidation, models.KindOf(err))

	// Unknown document type
	_, err = env.service.Submit(env.ctx, &SubmitRequest{
		OwnerID: "user_1",
		Files:   []FileUpload{upload("x.pdf", "spreadsheet")},
	})
	require.Error(t, err)
	assert.Equal(t, models.ErrKindValidation, models.KindOf(err))

	// Oversized file
	env.service.config.Scheduler.MaxFileBytes = 4
	_, err = env.service.Submit(env.ctx, &SubmitRequest{
		OwnerID: "user_1",
		Files:   []FileUpload{upload("big.pdf", models.DocTypeInvoice)},
	})
	require.Error(t, err)

	// Empty submission
	_, err = env.service.Submit(env.ctx, &SubmitRequest{OwnerID: "user_1"})
	require.Error(t, err)

	// Missing owner
	_, err = env.service.Submit(env.ctx, &SubmitRequest{Files: []FileUpload{upload("x.pdf", models.DocTypeInvoice)}})
	require.Error(t, err)
}

func TestSubmitArchiveExpansion(t *testing.T) {
	env := newSchedEnv(t)

	archive := buildZip(t, map[string][]byte{
		"faktur_pajak/scan1.pdf": []byte("%PDF-1.4 a"),
		"pph23/slip1.pdf":        []byte("%PDF-1.4 b"),
	})
	batch, err := env.service.Submit(env.ctx, &SubmitRequest{OwnerID: "user_1", Archive: archive})
	require.NoError(t, err)
	assert.True(t, batch.FromArchive)
	assert.Equal(t, 2, batch.TotalFiles)

	files, err := env.manager.DocumentStorage().ListByBatch(env.ctx, batch.ID)
	require.NoError(t, err)
	types := map[models.DocumentType]bool{}
	for _, f := range files {
		types[f.DocType] = true
	}
	assert.True(t, types[models.DocTypeFakturPajak])
	assert.True(t, types[models.DocTypePPh23])
}

func TestSubmitArchiveRejectedWholesale(t *testing.T) {
	env := newSchedEnv(t)

	archive := buildZip(t, map[string][]byte{
		"faktur_pajak/scan1.pdf":  []byte("%PDF-1.4 a"),
		"rekening_koran/bank.pdf": []byte("%PDF-1.4 b"), // not on the archive allow-list
	})
	_, err := env.service.Submit(env.ctx, &SubmitRequest{OwnerID: "user_1", Archive: archive})
	require.Error(t, err)
	assert.Equal(t, models.ErrKindValidation, models.KindOf(err))
	assert.Contains(t, err.Error(), "archive_type_not_allowed")

	// No batch row was created
	batches, err := env.manager.BatchStorage().ListBatches(env.ctx, "user_1", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestWorkersDrainBatchToCompleted(t *testing.T) {
	env := newSchedEnv(t)
	require.NoError(t, env.service.Start())

	batch, err := env.service.Submit(env.ctx, &SubmitRequest{
		OwnerID: "user_1",
		Files: []FileUpload{
			upload("a.pdf", models.DocTypeFakturPajak),
			upload("b.pdf", models.DocTypeInvoice),
		},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		b, err := env.manager.BatchStorage().GetBatch(env.ctx, batch.ID)
		return err == nil && b.Status == models.BatchStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)

	b, _ := env.manager.BatchStorage().GetBatch(env.ctx, batch.ID)
	assert.Equal(t, 2, b.FilesProcessed)
	assert.NotNil(t, b.CompletedAt)
	assert.Equal(t, int64(2), env.pipeline.calls.Load())

	snapshot, ok := env.events.Snapshot(models.BatchTopic(batch.ID))
	require.True(t, ok)
	assert.Equal(t, models.PhaseBatchTerminal, snapshot.Phase)
}

func TestPartialBatchTerminalState(t *testing.T) {
	env := newSchedEnv(t)
	env.pipeline.fail["bad.pdf"] = true
	require.NoError(t, env.service.Start())

	batch, err := env.service.Submit(env.ctx, &SubmitRequest{
		OwnerID: "user_1",
		Files: []FileUpload{
			upload("good.pdf", models.DocTypeFakturPajak),
			upload("bad.pdf", models.DocTypeInvoice),
		},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		b, err := env.manager.BatchStorage().GetBatch(env.ctx, batch.ID)
		return err == nil && b.Status.IsTerminal()
	}, 5*time.Second, 20*time.Millisecond)

	b, _ := env.manager.BatchStorage().GetBatch(env.ctx, batch.ID)
	assert.Equal(t, models.BatchStatusPartial, b.Status)
	assert.Equal(t, 1, b.FilesProcessed)
	assert.Equal(t, 1, b.FilesFailed)
}

func TestCancelSkipsQueuedAndIsIdempotent(t *testing.T) {
	env := newSchedEnv(t)
	// Workers not started: every file stays queued

	batch, err := env.service.Submit(env.ctx, &SubmitRequest{
		OwnerID: "user_1",
		Files: []FileUpload{
			upload("a.pdf", models.DocTypeFakturPajak),
			upload("b.pdf", models.DocTypeInvoice),
		},
	})
	require.NoError(t, err)

	require.NoError(t, env.service.Cancel(env.ctx, batch.ID, "user_1"))

	files, err := env.manager.DocumentStorage().ListByBatch(env.ctx, batch.ID)
	require.NoError(t, err)
	for _, file := range files {
		assert.Equal(t, models.FileStatusSkipped, file.Status)
	}

	b, _ := env.manager.BatchStorage().GetBatch(env.ctx, batch.ID)
	assert.Equal(t, models.BatchStatusCancelled, b.Status)

	// Second cancel is a no-op
	require.NoError(t, env.service.Cancel(env.ctx, batch.ID, "user_1"))

	snapshot, ok := env.events.Snapshot(models.BatchTopic(batch.ID))
	require.True(t, ok)
	assert.Equal(t, models.PhaseBatchCancelled, snapshot.Phase)
}

func TestStatusSnapshot(t *testing.T) {
	env := newSchedEnv(t)

	batch, err := env.service.Submit(env.ctx, &SubmitRequest{
		OwnerID: "user_1",
		Files:   []FileUpload{upload("a.pdf", models.DocTypeFakturPajak)},
	})
	require.NoError(t, err)

	snapshot, err := env.service.Status(env.ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, batch.ID, snapshot.Batch.ID)
	require.Len(t, snapshot.Files, 1)
	assert.Equal(t, models.FileStatusQueued, snapshot.Files[0].Status)

	_, err = env.service.Status(env.ctx, "batch_missing")
	assert.Error(t, err)
}

package badger

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arvetta/berkas/internal/common"
	"github.com/arvetta/berkas/internal/models"
)

func setupTestDB(t *testing.T) *BadgerDB {
	t.Helper()
	db, err := NewBadgerDB(common.GetLogger(), &common.BadgerConfig{
		Path: t.TempDir(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBatchStorage_SaveAndGet(t *testing.T) {
	db := setupTestDB(t)
	store := NewBatchStorage(db, common.GetLogger())
	ctx := context.Background()

	batch := &models.Batch{
		ID:         "batch_test1",
		OwnerID:    "user_1",
		TotalFiles: 3,
		Status:     models.BatchStatusPending,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, store.SaveBatch(ctx, batch))

	got, err := store.GetBatch(ctx, "batch_test1")
	require.NoError(t, err)
	assert.Equal(t, "user_1", got.OwnerID)
	assert.Equal(t, 3, got.TotalFiles)
	assert.Equal(t, models.BatchStatusPending, got.Status)
}

func TestBatchStorage_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	store := NewBatchStorage(db, common.GetLogger())

	_, err := store.GetBatch(context.Background(), "batch_nope")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestBatchStorage_AddProgress(t *testing.T) {
	db := setupTestDB(t)
	store := NewBatchStorage(db, common.GetLogger())
	ctx := context.Background()

	require.NoError(t, store.SaveBatch(ctx, &models.Batch{
		ID:         "batch_prog",
		OwnerID:    "user_1",
		TotalFiles: 2,
		Status:     models.BatchStatusProcessing,
		CreatedAt:  time.Now(),
	}))

	updated, err := store.AddProgress(ctx, "batch_prog", 1, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.FilesProcessed)
	assert.Equal(t, 5, updated.PagesProcessed)

	updated, err = store.AddProgress(ctx, "batch_prog", 0, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.FilesFailed)
	assert.True(t, updated.Settled())

	// A third completion would exceed total_files
	_, err = store.AddProgress(ctx, "batch_prog", 1, 0, 0)
	assert.Error(t, err)
}

func TestBatchStorage_ListBatchesRecentFirst(t *testing.T) {
	db := setupTestDB(t)
	store := NewBatchStorage(db, common.GetLogger())
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"batch_a", "batch_b", "batch_c"} {
		require.NoError(t, store.SaveBatch(ctx, &models.Batch{
			ID:        id,
			OwnerID:   "user_1",
			Status:    models.BatchStatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, store.SaveBatch(ctx, &models.Batch{
		ID:        "batch_other",
		OwnerID:   "user_2",
		Status:    models.BatchStatusPending,
		CreatedAt: time.Now(),
	}))

	batches, err := store.ListBatches(ctx, "user_1", 2, 0)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, "batch_c", batches[0].ID)
	assert.Equal(t, "batch_b", batches[1].ID)
}

func TestBatchStorage_SetStatusTerminalSticks(t *testing.T) {
	db := setupTestDB(t)
	store := NewBatchStorage(db, common.GetLogger())
	ctx := context.Background()

	require.NoError(t, store.SaveBatch(ctx, &models.Batch{
		ID:        "batch_term",
		OwnerID:   "user_1",
		Status:    models.BatchStatusProcessing,
		CreatedAt: time.Now(),
	}))

	require.NoError(t, store.SetStatus(ctx, "batch_term", models.BatchStatusCompleted))
	got, err := store.GetBatch(ctx, "batch_term")
	require.NoError(t, err)
	require.NotNil(t, got.CompletedAt)

	// A late worker reporting processing must not reopen the batch
	require.NoError(t, store.SetStatus(ctx, "batch_term", models.BatchStatusProcessing))
	got, err = store.GetBatch(ctx, "batch_term")
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusCompleted, got.Status)
}

func TestBatchStorage_RequestCancelIdempotent(t *testing.T) {
	db := setupTestDB(t)
	store := NewBatchStorage(db, common.GetLogger())
	ctx := context.Background()

	require.NoError(t, store.SaveBatch(ctx, &models.Batch{
		ID:        "batch_cancel",
		OwnerID:   "user_1",
		Status:    models.BatchStatusProcessing,
		CreatedAt: time.Now(),
	}))

	set, err := store.RequestCancel(ctx, "batch_cancel")
	require.NoError(t, err)
	assert.True(t, set)

	set, err = store.RequestCancel(ctx, "batch_cancel")
	require.NoError(t, err)
	assert.False(t, set)

	_, err = store.RequestCancel(ctx, "batch_missing")
	assert.Error(t, err)
}

func TestDocumentStorage_StatusTransitions(t *testing.T) {
	db := setupTestDB(t)
	store := NewDocumentStorage(db, common.GetLogger())
	ctx := context.Background()

	require.NoError(t, store.SaveFile(ctx, &models.DocumentFile{
		ID:      "file_1",
		BatchID: "batch_1",
		DocType: models.DocTypeFakturPajak,
		Status:  models.FileStatusQueued,
	}))

	require.NoError(t, store.UpdateStatus(ctx, "file_1", models.FileStatusProcessing, ""))
	require.NoError(t, store.UpdateStatus(ctx, "file_1", models.FileStatusDone, ""))

	// Terminal state cannot regress
	err := store.UpdateStatus(ctx, "file_1", models.FileStatusProcessing, "")
	assert.Error(t, err)

	got, err := store.GetFile(ctx, "file_1")
	require.NoError(t, err)
	assert.Equal(t, models.FileStatusDone, got.Status)
}

func TestDocumentStorage_QueuedToSkipped(t *testing.T) {
	db := setupTestDB(t)
	store := NewDocumentStorage(db, common.GetLogger())
	ctx := context.Background()

	require.NoError(t, store.SaveFile(ctx, &models.DocumentFile{
		ID:      "file_skip",
		BatchID: "batch_1",
		DocType: models.DocTypeInvoice,
		Status:  models.FileStatusQueued,
	}))

	require.NoError(t, store.UpdateStatus(ctx, "file_skip", models.FileStatusSkipped, ""))
	got, err := store.GetFile(ctx, "file_skip")
	require.NoError(t, err)
	assert.Equal(t, models.FileStatusSkipped, got.Status)
}

func TestDocumentStorage_RequeueStale(t *testing.T) {
	db := setupTestDB(t)
	store := NewDocumentStorage(db, common.GetLogger())
	ctx := context.Background()

	require.NoError(t, store.SaveFile(ctx, &models.DocumentFile{
		ID:      "file_stale",
		BatchID: "batch_1",
		DocType: models.DocTypePPh21,
		Status:  models.FileStatusQueued,
	}))
	require.NoError(t, store.SaveFile(ctx, &models.DocumentFile{
		ID:      "file_fresh",
		BatchID: "batch_1",
		DocType: models.DocTypePPh21,
		Status:  models.FileStatusQueued,
	}))

	require.NoError(t, store.UpdateStatus(ctx, "file_stale", models.FileStatusProcessing, ""))
	require.NoError(t, store.UpdateStatus(ctx, "file_fresh", models.FileStatusProcessing, ""))

	// Only files whose heartbeat predates the threshold come back
	requeued, err := store.RequeueStale(ctx, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, requeued)

	requeued, err = store.RequeueStale(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, requeued, 2)

	got, err := store.GetFile(ctx, "file_stale")
	require.NoError(t, err)
	assert.Equal(t, models.FileStatusQueued, got.Status)
}

func TestDocumentStorage_RequeueStaleWithoutHeartbeat(t *testing.T) {
	db := setupTestDB(t)
	store := NewDocumentStorage(db, common.GetLogger())
	ctx := context.Background()

	// A processing row with no heartbeat at all: the worker died before
	// its first beat, so the sweep must reclaim it regardless of threshold
	require.NoError(t, store.SaveFile(ctx, &models.DocumentFile{
		ID:      "file_orphan",
		BatchID: "batch_1",
		DocType: models.DocTypePPh21,
		Status:  models.FileStatusProcessing,
	}))

	requeued, err := store.RequeueStale(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"file_orphan"}, requeued)

	got, err := store.GetFile(ctx, "file_orphan")
	require.NoError(t, err)
	assert.Equal(t, models.FileStatusQueued, got.Status)
	assert.Nil(t, got.LastHeartbeat)
}

func TestDocumentStorage_HeartbeatStampsFile(t *testing.T) {
	db := setupTestDB(t)
	store := NewDocumentStorage(db, common.GetLogger())
	ctx := context.Background()

	require.NoError(t, store.SaveFile(ctx, &models.DocumentFile{
		ID:      "file_hb",
		BatchID: "batch_1",
		DocType: models.DocTypePPh21,
		Status:  models.FileStatusQueued,
	}))

	got, err := store.GetFile(ctx, "file_hb")
	require.NoError(t, err)
	assert.Nil(t, got.LastHeartbeat)

	// Claiming the file writes the first beat, Heartbeat refreshes it
	require.NoError(t, store.UpdateStatus(ctx, "file_hb", models.FileStatusProcessing, ""))
	got, err = store.GetFile(ctx, "file_hb")
	require.NoError(t, err)
	require.NotNil(t, got.LastHeartbeat)
	first := *got.LastHeartbeat

	require.NoError(t, store.Heartbeat(ctx, "file_hb"))
	got, err = store.GetFile(ctx, "file_hb")
	require.NoError(t, err)
	require.NotNil(t, got.LastHeartbeat)
	assert.False(t, got.LastHeartbeat.Before(first))
}

func TestDocumentStorage_ListByBatch(t *testing.T) {
	db := setupTestDB(t)
	store := NewDocumentStorage(db, common.GetLogger())
	ctx := context.Background()

	for _, id := range []string{"file_a", "file_b"} {
		require.NoError(t, store.SaveFile(ctx, &models.DocumentFile{
			ID:      id,
			BatchID: "batch_x",
			DocType: models.DocTypeRekeningKoran,
			Status:  models.FileStatusQueued,
		}))
	}
	require.NoError(t, store.SaveFile(ctx, &models.DocumentFile{
		ID:      "file_c",
		BatchID: "batch_y",
		DocType: models.DocTypeRekeningKoran,
		Status:  models.FileStatusQueued,
	}))

	files, err := store.ListByBatch(ctx, "batch_x")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestResultStorage_UpsertByFile(t *testing.T) {
	db := setupTestDB(t)
	store := NewResultStorage(db, common.GetLogger())
	ctx := context.Background()

	first := &models.ScanResult{
		ID:      "scan_1",
		FileID:  "file_1",
		BatchID: "batch_1",
		DocType: models.DocTypeFakturPajak,
		Payload: json.RawMessage(`{"v":1}`),
	}
	require.NoError(t, store.SaveResult(ctx, first))

	// A retried file produces a fresh scan ID but must overwrite, not duplicate
	second := &models.ScanResult{
		ID:      "scan_2",
		FileID:  "file_1",
		BatchID: "batch_1",
		DocType: models.DocTypeFakturPajak,
		Payload: json.RawMessage(`{"v":2}`),
	}
	require.NoError(t, store.SaveResult(ctx, second))

	results, err := store.ListByBatch(ctx, "batch_1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "scan_1", results[0].ID)
	assert.JSONEq(t, `{"v":2}`, string(results[0].Payload))
}

func TestResultStorage_PatchPayload(t *testing.T) {
	db := setupTestDB(t)
	store := NewResultStorage(db, common.GetLogger())
	ctx := context.Background()

	require.NoError(t, store.SaveResult(ctx, &models.ScanResult{
		ID:      "scan_patch",
		FileID:  "file_p",
		BatchID: "batch_1",
		DocType: models.DocTypeInvoice,
		Payload: json.RawMessage(`{"total":"100"}`),
	}))

	err := store.PatchPayload(ctx, "scan_patch", json.RawMessage(`{"total":"250"}`), []string{"total"})
	require.NoError(t, err)

	got, err := store.GetResult(ctx, "scan_patch")
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":"250"}`, string(got.Payload))
	assert.Equal(t, []string{"total"}, got.EditedPaths)

	// Re-patching the same path does not duplicate it
	err = store.PatchPayload(ctx, "scan_patch", json.RawMessage(`{"total":"300"}`), []string{"total"})
	require.NoError(t, err)
	got, err = store.GetResult(ctx, "scan_patch")
	require.NoError(t, err)
	assert.Equal(t, []string{"total"}, got.EditedPaths)
}

func TestManager_PurgeBatch(t *testing.T) {
	logger := common.GetLogger()
	cfg := common.NewDefaultConfig()
	cfg.Storage.Badger.Path = t.TempDir()

	mgr, err := NewManager(logger, cfg)
	require.NoError(t, err)
	defer mgr.Close()

	ctx := context.Background()
	require.NoError(t, mgr.Batches.SaveBatch(ctx, &models.Batch{
		ID: "batch_purge", OwnerID: "user_1", Status: models.BatchStatusCompleted, CreatedAt: time.Now(),
	}))
	require.NoError(t, mgr.Files.SaveFile(ctx, &models.DocumentFile{
		ID: "file_purge", BatchID: "batch_purge", DocType: models.DocTypePPh23, Status: models.FileStatusDone,
	}))
	require.NoError(t, mgr.Results.SaveResult(ctx, &models.ScanResult{
		ID: "scan_purge", FileID: "file_purge", BatchID: "batch_purge", DocType: models.DocTypePPh23,
	}))

	require.NoError(t, mgr.PurgeBatch(ctx, "batch_purge"))

	_, err = mgr.Batches.GetBatch(ctx, "batch_purge")
	assert.Error(t, err)
	files, err := mgr.Files.ListByBatch(ctx, "batch_purge")
	require.NoError(t, err)
	assert.Empty(t, files)
	results, err := mgr.Results.ListByBatch(ctx, "batch_purge")
	require.NoError(t, err)
	assert.Empty(t, results)
}

package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/arvetta/berkas/internal/models"
	"github.com/arvetta/berkas/internal/scheduler"
)

// maxSubmitMemory bounds the in-memory portion of multipart parsing;
// larger parts spill to temp files.
const maxSubmitMemory = 32 << 20

// BatchHandler exposes batch submission and lifecycle operations
type BatchHandler struct {
	scheduler *scheduler.Service
	logger    arbor.ILogger
}

func NewBatchHandler(sched *scheduler.Service, logger arbor.ILogger) *BatchHandler {
	return &BatchHandler{scheduler: sched, logger: logger}
}

// SubmitHandler accepts a multipart submission. File parts use their
// document type as the field name (faktur_pajak, pph21, pph23, invoice,
// rekening_koran); a single part named "archive" submits a zip instead.
func (h *BatchHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if err := r.ParseMultipartForm(maxSubmitMemory); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := &scheduler.SubmitRequest{OwnerID: Actor(r)}
	for field, headers := range r.MultipartForm.File {
		for _, header := range headers {
			part, err := header.Open()
			if err != nil {
				WriteError(w, http.StatusBadRequest, fmt.Sprintf("unreadable part %s: %v", header.Filename, err))
				return
			}
			data, err := io.ReadAll(part)
			part.Close()
			if err != nil {
				WriteError(w, http.StatusBadRequest, fmt.Sprintf("failed to read %s: %v", header.Filename, err))
				return
			}

			if field == "archive" {
				if len(req.Archive) > 0 {
					WriteError(w, http.StatusBadRequest, "only one archive per submission")
					return
				}
				req.Archive = data
				req.ArchiveName = header.Filename
				continue
			}
			req.Files = append(req.Files, scheduler.FileUpload{
				Filename: header.Filename,
				DocType:  models.DocumentType(field),
				Data:     data,
			})
		}
	}

	batch, err := h.scheduler.Submit(r.Context(), req)
	if err != nil {
		h.logger.Warn().Err(err).Str("owner", req.OwnerID).Msg("Batch submission rejected")
		WriteProcessError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, batch)
}

// ListHandler returns the caller's batches, most recent first
func (h *BatchHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	limit := QueryInt(r, "limit", 20)
	offset := QueryInt(r, "offset", 0)

	batches, err := h.scheduler.ListBatches(r.Context(), Actor(r), limit, offset)
	if err != nil {
		WriteProcessError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"batches": batches,
		"limit":   limit,
		"offset":  offset,
	})
}

// StatusHandler returns the batch snapshot with per-file states
func (h *BatchHandler) StatusHandler(w http.ResponseWriter, r *http.Request, batchID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	snapshot, err := h.scheduler.Status(r.Context(), batchID)
	if err != nil {
		WriteError(w, http.StatusNotFound, fmt.Sprintf("batch %s not found", batchID))
		return
	}
	WriteJSON(w, http.StatusOK, snapshot)
}

// CancelHandler requests cancellation; repeat calls are no-ops
func (h *BatchHandler) CancelHandler(w http.ResponseWriter, r *http.Request, batchID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if err := h.scheduler.Cancel(r.Context(), batchID, Actor(r)); err != nil {
		WriteError(w, http.StatusNotFound, fmt.Sprintf("batch %s not found", batchID))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":   "cancelling",
		"batch_id": batchID,
	})
}

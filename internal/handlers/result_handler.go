package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/arvetta/berkas/internal/interfaces"
	"github.com/arvetta/berkas/internal/models"
)

// ResultHandler exposes scan result reads and user corrections
type ResultHandler struct {
	results interfaces.ResultStorage
	audit   interfaces.AuditLogger
	logger  arbor.ILogger
}

func NewResultHandler(results interfaces.ResultStorage, audit interfaces.AuditLogger, logger arbor.ILogger) *ResultHandler {
	return &ResultHandler{results: results, audit: audit, logger: logger}
}

// GetHandler returns one scan result
func (h *ResultHandler) GetHandler(w http.ResponseWriter, r *http.Request, resultID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	result, err := h.results.GetResult(r.Context(), resultID)
	if err != nil {
		WriteError(w, http.StatusNotFound, fmt.Sprintf("result %s not found", resultID))
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

type patchRequest struct {
	Payload     json.RawMessage `json:"payload"`
	EditedPaths []string        `json:"edited_paths"`
}

// PatchHandler merges a user correction into the structured payload. The
// edited paths are remembered so re-processing the file keeps the edits.
func (h *ResultHandler) PatchHandler(w http.ResponseWriter, r *http.Request, resultID string) {
	if !RequireMethod(w, r, http.MethodPatch) {
		return
	}
	var req patchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid patch body: %v", err))
		return
	}
	if len(req.Payload) == 0 || !json.Valid(req.Payload) {
		WriteError(w, http.StatusBadRequest, "patch payload must be valid JSON")
		return
	}
	if len(req.EditedPaths) == 0 {
		WriteError(w, http.StatusBadRequest, "edited_paths must name the corrected fields")
		return
	}

	if err := h.results.PatchPayload(r.Context(), resultID, req.Payload, req.EditedPaths); err != nil {
		WriteError(w, http.StatusNotFound, fmt.Sprintf("result %s not found", resultID))
		return
	}

	if h.audit != nil {
		if err := h.audit.Log(models.AuditEvent{
			EventType: models.AuditDataAccess,
			Actor:     Actor(r),
			Action:    "update_result",
			Status:    "success",
			IPAddress: r.RemoteAddr,
			Details: map[string]any{
				"result_id":    resultID,
				"edited_paths": req.EditedPaths,
			},
		}); err != nil {
			h.logger.Warn().Err(err).Msg("Audit write failed")
		}
	}

	result, err := h.results.GetResult(r.Context(), resultID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "patched result unreadable")
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

package handlers

import (
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/arvetta/berkas/internal/interfaces"
	"github.com/arvetta/berkas/internal/models"
	"github.com/arvetta/berkas/internal/scheduler"
	"github.com/arvetta/berkas/internal/services/exporters"
)

// ExportHandler renders batch or single-result artifacts
type ExportHandler struct {
	scheduler *scheduler.Service
	results   interfaces.ResultStorage
	logger    arbor.ILogger
}

func NewExportHandler(sched *scheduler.Service, results interfaces.ResultStorage, logger arbor.ILogger) *ExportHandler {
	return &ExportHandler{scheduler: sched, results: results, logger: logger}
}

// BatchHandler exports every result in a batch: ?format=xlsx|pdf
func (h *ExportHandler) BatchHandler(w http.ResponseWriter, r *http.Request, batchID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	results, err := h.scheduler.Results(r.Context(), batchID)
	if err != nil {
		WriteError(w, http.StatusNotFound, fmt.Sprintf("batch %s not found", batchID))
		return
	}
	h.render(w, r, batchID, results)
}

// ResultHandler exports one scan result: ?format=xlsx|pdf
func (h *ExportHandler) ResultHandler(w http.ResponseWriter, r *http.Request, resultID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	result, err := h.results.GetResult(r.Context(), resultID)
	if err != nil {
		WriteError(w, http.StatusNotFound, fmt.Sprintf("result %s not found", resultID))
		return
	}
	h.render(w, r, resultID, []*models.ScanResult{result})
}

func (h *ExportHandler) render(w http.ResponseWriter, r *http.Request, name string, results []*models.ScanResult) {
	format := exporters.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = exporters.FormatXLSX
	}

	exporter, err := exporters.ForResults(format, results, h.logger)
	if err != nil {
		WriteProcessError(w, err)
		return
	}
	artifact, err := exporter.Render(results)
	if err != nil {
		h.logger.Error().Err(err).Str("name", name).Msg("Export rendering failed")
		WriteProcessError(w, err)
		return
	}

	w.Header().Set("Content-Type", exporter.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("%s.%s", name, exporter.FileExtension())))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(artifact); err != nil {
		h.logger.Warn().Err(err).Msg("Export write interrupted")
	}
}

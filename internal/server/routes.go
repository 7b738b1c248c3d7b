package server

import (
	"net/http"
	"strings"

	"github.com/arvetta/berkas/internal/handlers"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route (progress notifications)
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Batches
	mux.HandleFunc("/api/batches", s.handleBatchesRoute)
	mux.HandleFunc("/api/batches/", s.handleBatchRoutes) // /{id}, /{id}/cancel, /{id}/export

	// API routes - Results
	mux.HandleFunc("/api/results/", s.handleResultRoutes) // /{id}, /{id}/export

	// API routes - System
	mux.HandleFunc("/api/health", s.healthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.notFoundHandler)

	return mux
}

// handleBatchesRoute dispatches the collection endpoint by method
func (s *Server) handleBatchesRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.limited("submit", s.app.BatchHandler.SubmitHandler)(w, r)
	case http.MethodGet:
		s.app.BatchHandler.ListHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleBatchRoutes routes batch-scoped requests to the appropriate handler
func (s *Server) handleBatchRoutes(w http.ResponseWriter, r *http.Request) {
	suffix := strings.TrimPrefix(r.URL.Path, "/api/batches/")
	if suffix == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	// POST /api/batches/{id}/cancel
	if batchID, ok := strings.CutSuffix(suffix, "/cancel"); ok {
		s.app.BatchHandler.CancelHandler(w, r, batchID)
		return
	}

	// GET /api/batches/{id}/export
	if batchID, ok := strings.CutSuffix(suffix, "/export"); ok {
		s.limited("export", func(w http.ResponseWriter, r *http.Request) {
			s.app.ExportHandler.BatchHandler(w, r, batchID)
		})(w, r)
		return
	}

	// GET /api/batches/{id}
	if strings.Contains(suffix, "/") {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	s.app.BatchHandler.StatusHandler(w, r, suffix)
}

// handleResultRoutes routes result-scoped requests to the appropriate handler
func (s *Server) handleResultRoutes(w http.ResponseWriter, r *http.Request) {
	suffix := strings.TrimPrefix(r.URL.Path, "/api/results/")
	if suffix == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	// GET /api/results/{id}/export
	if resultID, ok := strings.CutSuffix(suffix, "/export"); ok {
		s.limited("export", func(w http.ResponseWriter, r *http.Request) {
			s.app.ExportHandler.ResultHandler(w, r, resultID)
		})(w, r)
		return
	}

	if strings.Contains(suffix, "/") {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	// GET or PATCH /api/results/{id}
	switch r.Method {
	case http.MethodGet:
		s.app.ResultHandler.GetHandler(w, r, suffix)
	case http.MethodPatch:
		s.app.ResultHandler.PatchHandler(w, r, suffix)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	handlers.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"environment": s.app.Config.Environment,
		"ws_sessions": s.app.WSHandler.SessionCount(),
	})
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	handlers.WriteError(w, http.StatusNotFound, "unknown API route")
}

package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/arvetta/berkas/internal/models"
)

// RequireMethod validates the HTTP method, writing a 405 when it differs
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error JSON response
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// WriteProcessError maps an error-kind tag onto an HTTP status
func WriteProcessError(w http.ResponseWriter, err error) error {
	message := err.Error()
	switch models.KindOf(err) {
	case models.ErrKindValidation, models.ErrKindUnsupportedType:
		return WriteError(w, http.StatusBadRequest, message)
	case models.ErrKindUpstreamTransient, models.ErrKindResource:
		return WriteError(w, http.StatusServiceUnavailable, message)
	case models.ErrKindCancelled:
		return WriteError(w, http.StatusConflict, message)
	default:
		return WriteError(w, http.StatusInternalServerError, message)
	}
}

// Actor resolves the caller identity forwarded by the auth collaborator
func Actor(r *http.Request) string {
	if user := r.Header.Get("X-User-ID"); user != "" {
		return user
	}
	return "anonymous"
}

// QueryInt reads an integer query parameter with a fallback
func QueryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/arvetta/berkas/internal/interfaces"
	"github.com/arvetta/berkas/internal/models"
)

// FileAuditLogger appends security events to a JSONL file, one JSON object
// per line. Writes are serialized under a mutex; a failed audit write is
// logged but never fails the operation being audited.
type FileAuditLogger struct {
	file   *os.File
	mu     sync.Mutex
	logger arbor.ILogger
}

var _ interfaces.AuditLogger = (*FileAuditLogger)(nil)

// NewFileAuditLogger opens (or creates) the audit log for appending
func NewFileAuditLogger(path string, logger arbor.ILogger) (*FileAuditLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	logger.Debug().Str("path", path).Msg("Audit log opened")

	return &FileAuditLogger{file: file, logger: logger}, nil
}

// Log appends one event as a single JSON line
func (l *FileAuditLogger) Log(event models.AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Write(append(data, '\n')); err != nil {
		l.logger.Error().Err(err).
			Str("event_type", string(event.EventType)).
			Str("action", event.Action).
			Msg("Failed to write audit event")
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	return nil
}

// Close syncs and closes the audit log
func (l *FileAuditLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		l.logger.Warn().Err(err).Msg("Failed to sync audit log")
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// NullAuditLogger is a no-op implementation used when auditing is disabled
type NullAuditLogger struct{}

// NewNullAuditLogger creates a new null audit logger
func NewNullAuditLogger() *NullAuditLogger {
	return &NullAuditLogger{}
}

// Log does nothing (no-op)
func (l *NullAuditLogger) Log(event models.AuditEvent) error { return nil }

// Close does nothing (no-op)
func (l *NullAuditLogger) Close() error { return nil }

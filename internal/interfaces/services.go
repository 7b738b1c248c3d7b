package interfaces

import (
	"context"
	"encoding/json"

	"github.com/arvetta/berkas/internal/models"
)

// EventHandler receives progress events for a subscribed topic
type EventHandler func(event models.ProgressEvent)

// EventService is the in-process topic-based pub/sub behind the notification
// fabric. Sequence numbers are assigned at publish time, strictly increasing
// and contiguous per topic. Publishing never blocks on slow subscribers.
type EventService interface {
	Publish(ctx context.Context, event models.ProgressEvent)
	// Subscribe registers a handler for a topic and returns an unsubscribe
	// function.
	Subscribe(topic string, handler EventHandler) (unsubscribe func())
	// Snapshot returns the last event published on a topic so late
	// subscribers can resync before live delivery.
	Snapshot(topic string) (models.ProgressEvent, bool)
	Close() error
}

// AuditLogger appends structured security events to the audit log
type AuditLogger interface {
	Log(event models.AuditEvent) error
	Close() error
}

// AuthVerifier validates bearer tokens presented on the notification
// handshake. Implemented by the external auth collaborator.
type AuthVerifier interface {
	VerifyToken(ctx context.Context, token string) (userID string, err error)
}

// OCREngine is one OCR backend. The router tries engines in a deterministic
// order based on the configured mode.
type OCREngine interface {
	ID() string
	// Process runs OCR over the file at path (PDF or single image)
	Process(ctx context.Context, path string) (*models.OCRResult, error)
}

// OCRRouter is the uniform OCR interface consumed by the pipeline
type OCRRouter interface {
	Process(ctx context.Context, path string) (*models.OCRResult, error)
}

// SmartMapper is the AI-driven extractor: template + OCR JSON -> structured
// record. The returned model identifier names the provider model that
// produced the record.
type SmartMapper interface {
	Map(ctx context.Context, docType models.DocumentType, ocr *models.OCRResult) (payload json.RawMessage, modelID string, err error)
}

// BankAdapter is a rule-based parser specialized to one bank's statement
// layout. Detect is probed against OCR text; first registry match wins.
type BankAdapter interface {
	BankName() string
	BankCode() string
	Detect(text string) bool
	Parse(ocr *models.OCRResult) (*models.BankParseOutput, error)
}

// Exporter renders scan results into one artifact
type Exporter interface {
	// ContentType of the produced artifact
	ContentType() string
	// FileExtension without the leading dot
	FileExtension() string
	Render(results []*models.ScanResult) ([]byte, error)
}

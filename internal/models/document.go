package models

import (
	"time"
)

// DocumentType identifies the extraction semantics for a file
type DocumentType string

const (
	DocTypeFakturPajak   DocumentType = "faktur_pajak"
	DocTypePPh21         DocumentType = "pph21"
	DocTypePPh23         DocumentType = "pph23"
	DocTypeInvoice       DocumentType = "invoice"
	DocTypeRekeningKoran DocumentType = "rekening_koran"
)

// KnownDocumentTypes is the closed set of supported document types
var KnownDocumentTypes = []DocumentType{
	DocTypeFakturPajak,
	DocTypePPh21,
	DocTypePPh23,
	DocTypeInvoice,
	DocTypeRekeningKoran,
}

// IsKnownDocumentType reports whether t is a supported document type.
// Unknown types fail fast in the pipeline; filename-based detection is
// deliberately not attempted.
func IsKnownDocumentType(t DocumentType) bool {
	for _, k := range KnownDocumentTypes {
		if k == t {
			return true
		}
	}
	return false
}

// FileStatus represents the per-file processing state
type FileStatus string

const (
	FileStatusQueued     FileStatus = "queued"
	FileStatusProcessing FileStatus = "processing"
	FileStatusDone       FileStatus = "done"
	FileStatusFailed     FileStatus = "failed"
	FileStatusSkipped    FileStatus = "skipped"
)

// IsTerminal returns true for states with no further transitions
func (s FileStatus) IsTerminal() bool {
	return s == FileStatusDone || s == FileStatusFailed || s == FileStatusSkipped
}

// DocumentFile is one uploaded file within a batch. Status is advanced by
// exactly one pipeline worker; the content hash is computed before processing
// begins and never changes.
type DocumentFile struct {
	ID            string       `json:"id" badgerhold:"key"`
	BatchID       string       `json:"batch_id" badgerhold:"index"`
	DocType       DocumentType `json:"doc_type"`
	Filename      string       `json:"filename"`
	StoredPath    string       `json:"stored_path"`
	SizeBytes     int64        `json:"size_bytes"`
	ContentHash   string       `json:"content_hash"`
	PageCount     int          `json:"page_count"`
	Status        FileStatus   `json:"status" badgerhold:"index"`
	ErrorKind     ErrorKind    `json:"error_kind,omitempty"`
	LastHeartbeat *time.Time   `json:"last_heartbeat,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

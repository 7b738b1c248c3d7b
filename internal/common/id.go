package common

import (
	"github.com/google/uuid"
)

// NewBatchID generates a unique batch ID with the "batch_" prefix
func NewBatchID() string {
	return "batch_" + uuid.New().String()
}

// NewFileID generates a unique document file ID with the "file_" prefix
func NewFileID() string {
	return "file_" + uuid.New().String()
}

// NewScanID generates a unique scan result ID with the "scan_" prefix
func NewScanID() string {
	return "scan_" + uuid.New().String()
}

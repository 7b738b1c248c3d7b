package models

import (
	"errors"
	"fmt"
)

// ErrorKind is the error taxonomy tag recorded against failed files and
// inspected by retry and merge logic.
type ErrorKind string

const (
	ErrKindValidation        ErrorKind = "validation"
	ErrKindUpstreamTransient ErrorKind = "upstream_transient"
	ErrKindUpstreamPermanent ErrorKind = "upstream_permanent"
	ErrKindExtractorParse    ErrorKind = "extractor_parse"
	ErrKindResource          ErrorKind = "resource"
	ErrKindInternal          ErrorKind = "internal"
	ErrKindCancelled         ErrorKind = "cancelled"
	ErrKindUnsupportedType   ErrorKind = "unsupported_type"
)

// ProcessError carries an error-kind tag so callers can decide between
// retry, fallback and fail-fast without string matching.
type ProcessError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *ProcessError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// NewProcessError wraps err with an error-kind tag
func NewProcessError(kind ErrorKind, op string, err error) *ProcessError {
	return &ProcessError{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the error kind from an error chain, defaulting to internal
func KindOf(err error) ErrorKind {
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ErrKindInternal
}

// IsRetryable reports whether the error kind warrants backoff and retry
func IsRetryable(err error) bool {
	return KindOf(err) == ErrKindUpstreamTransient
}

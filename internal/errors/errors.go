package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a webmemo error code.
type ErrorCode string

const (
	ErrInvalidRequest       ErrorCode = "INVALID_REQUEST"        // 400
	ErrCredentialMissing    ErrorCode = "CREDENTIAL_MISSING"     // 401
	ErrNotFound             ErrorCode = "NOT_FOUND"              // 404
	ErrNameAlreadyExists    ErrorCode = "NAME_ALREADY_EXISTS"    // 409
	ErrStorageQuotaExceeded ErrorCode = "STORAGE_QUOTA_EXCEEDED" // 413
	ErrNormalization        ErrorCode = "NORMALIZATION_ERROR"    // 422 (absorbed into a degraded memo)
	ErrInternal             ErrorCode = "INTERNAL"               // 500
	ErrProvider             ErrorCode = "PROVIDER_ERROR"         // 502
)

// MemoError represents a structured error with code, status, and details.
type MemoError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *MemoError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *MemoError {
	return &MemoError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewCredentialMissing creates a 401 error when no model credential is configured.
func NewCredentialMissing() *MemoError {
	return &MemoError{
		Code:    ErrCredentialMissing,
		Status:  401,
		Message: "model API key is not configured",
	}
}

// NewNotFound creates a 404 error. kind is "memo", "tag" or "chat".
func NewNotFound(kind, identifier string) *MemoError {
	return &MemoError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewNameAlreadyExists creates a 409 error for tag name collisions.
func NewNameAlreadyExists(name string) *MemoError {
	return &MemoError{
		Code:    ErrNameAlreadyExists,
		Status:  409,
		Message: fmt.Sprintf("tag %q already exists", name),
		Details: map[string]any{"name": name},
	}
}

// NewStorageQuotaExceeded creates a 413 error when a value exceeds the per-item quota of a storage tier.
func NewStorageQuotaExceeded(key string, size, quota int) *MemoError {
	return &MemoError{
		Code:    ErrStorageQuotaExceeded,
		Status:  413,
		Message: fmt.Sprintf("item %q is %d bytes (quota %d)", key, size, quota),
		Details: map[string]any{"key": key, "size_bytes": size, "quota_bytes": quota},
	}
}

// NewNormalization creates a 422 error describing why a model response could not be parsed.
func NewNormalization(reason string) *MemoError {
	return &MemoError{
		Code:    ErrNormalization,
		Status:  422,
		Message: reason,
	}
}

// NewProvider creates a 502 error for model provider failures.
// status is the upstream HTTP status, or 0 for transport failures and timeouts.
func NewProvider(status int, msg string) *MemoError {
	if msg == "" {
		msg = "API request failed"
	}
	e := &MemoError{
		Code:    ErrProvider,
		Status:  502,
		Message: msg,
	}
	if status != 0 {
		e.Details = map[string]any{"upstream_status": status}
	}
	return e
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *MemoError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &MemoError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if err, or anything it wraps, is a MemoError with the given code.
func Is(err error, code ErrorCode) bool {
	var mErr *MemoError
	if stderrors.As(err, &mErr) {
		return mErr.Code == code
	}
	return false
}

// As returns the MemoError in err's chain, if any.
func As(err error) (*MemoError, bool) {
	var mErr *MemoError
	ok := stderrors.As(err, &mErr)
	return mErr, ok
}

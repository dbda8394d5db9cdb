package errors

import (
	"errors"
	"fmt"
	"time"
)

/**
 * Custom error types for the textscan OCR server
 *
 * Every failure surfaced by the processing pipeline carries one of four codes
 * so HTTP handlers and the queue consumer can map it without string matching.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// ErrorInvalidInput covers unsupported file types, empty uploads, and
	// undecodable images. Rejected before any processing; no artifact written.
	ErrorInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrorEngineFailure covers recognition engine errors and timeouts.
	ErrorEngineFailure ErrorCode = "ENGINE_FAILURE"

	// ErrorStorageFailure covers cache/history write failures. The computed
	// result is still returned to the caller; this code marks degraded mode.
	ErrorStorageFailure ErrorCode = "STORAGE_FAILURE"

	// ErrorNotFound covers missing history entries and artifact files.
	ErrorNotFound ErrorCode = "NOT_FOUND"
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	Filename  string
	Timestamp time.Time
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// Factory functions for common errors

func NewInvalidInputError(filename, reason string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorInvalidInput,
		Message:   reason,
		Filename:  filename,
		Timestamp: time.Now(),
	}
}

func NewEngineFailureError(filename string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorEngineFailure,
		Message:   "recognition engine failed",
		Filename:  filename,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewEngineTimeoutError(filename string, timeout time.Duration, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorEngineFailure,
		Message:   fmt.Sprintf("recognition engine timed out after %v", timeout),
		Filename:  filename,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewStorageFailureError(filename string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorStorageFailure,
		Message:   "failed to persist processing results",
		Filename:  filename,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewNotFoundError(what string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorNotFound,
		Message:   fmt.Sprintf("%s not found", what),
		Timestamp: time.Now(),
	}
}

// CodeOf extracts the error code from err, or empty string when err carries none.
func CodeOf(err error) ErrorCode {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// Package errors provides structured error types for the codeshelf pipeline.
package errors

import (
	"errors"
	"fmt"
)

// Input errors — caller mistakes, surfaced immediately, never retried.
var (
	ErrPathNotFound          = errors.New("path not found")
	ErrNotADirectory         = errors.New("path is not a directory")
	ErrPermissionDenied      = errors.New("permission denied")
	ErrInvalidTargetRoot     = errors.New("invalid target root")
	ErrCategoryNotRecognized = errors.New("category not recognized")
	ErrScanNotFound          = errors.New("scan not found")
	ErrPlanNotFound          = errors.New("plan not found")
	ErrConfirmRequired       = errors.New("explicit confirmation required")
)

// Transient errors — recovered locally by falling back to heuristic classification.
var (
	ErrInferenceUnavailable = errors.New("inference service unavailable")
	ErrInferenceTimeout     = errors.New("inference request timed out")
)

// Data errors — treated like transient errors, never a crash.
var ErrInvalidResponse = errors.New("invalid inference response")

// Execution errors.
var (
	ErrCopyVerificationFailed = errors.New("copy verification failed")
	ErrPlanAlreadyExecuted    = errors.New("plan already executed")
)

// PathError wraps a low-level filesystem error with the path and operation that
// produced it, so callers can act without seeing raw OS errors.
type PathError struct {
	Op   string // "scan", "copy", "verify", "delete", "rollback"
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

// NewPathError wraps err with path context.
func NewPathError(op, path string, err error) *PathError {
	return &PathError{Op: op, Path: path, Err: err}
}

// InferenceError carries the model and endpoint that failed.
type InferenceError struct {
	Model string
	Err   error
}

func (e *InferenceError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("inference (model %s): %v", e.Model, e.Err)
	}
	return fmt.Sprintf("inference: %v", e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// IsTransient reports whether the error is a transient inference failure that the
// arbiter recovers from by using the heuristic result.
func IsTransient(err error) bool {
	return errors.Is(err, ErrInferenceUnavailable) ||
		errors.Is(err, ErrInferenceTimeout) ||
		errors.Is(err, ErrInvalidResponse)
}

// IsRetryable reports whether a retry of the same call might succeed. Invalid
// responses are deterministic enough that retrying once is worthwhile; input
// errors never are.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrInferenceUnavailable) || errors.Is(err, ErrInferenceTimeout)
}

// IsInput reports whether the error is a caller mistake.
func IsInput(err error) bool {
	for _, target := range []error{
		ErrPathNotFound, ErrNotADirectory, ErrPermissionDenied,
		ErrInvalidTargetRoot, ErrCategoryNotRecognized,
		ErrScanNotFound, ErrPlanNotFound, ErrConfirmRequired,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

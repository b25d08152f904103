package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a pipeline failure for HTTP status mapping.
type ErrorKind string

const (
	// KindCredential marks a missing or invalid credential (401-equivalent).
	KindCredential ErrorKind = "credential"

	// KindUpstream marks a vendor auth/rate-limit/5xx failure after the
	// local retry budget is exhausted (502-equivalent).
	KindUpstream ErrorKind = "upstream"

	// KindTransport marks a network-level failure (502-equivalent).
	KindTransport ErrorKind = "transport"

	// KindInternal marks everything else.
	KindInternal ErrorKind = "internal"
)

// Sentinel errors for common failure cases.
var (
	// ErrMissingCredential indicates no API key is configured for a vendor.
	ErrMissingCredential = errors.New("missing credential")

	// ErrUpstream indicates the vendor rejected or failed the call.
	ErrUpstream = errors.New("upstream vendor error")

	// ErrTransport indicates a network transport failure.
	ErrTransport = errors.New("transport error")

	// ErrRateLimited indicates the vendor throttled the call.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrUnsupportedVendor indicates the request named an unknown vendor.
	ErrUnsupportedVendor = errors.New("unsupported vendor")

	// ErrEmptyPrompt indicates the request carried no user content.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// PipelineError wraps an error with the failing operation, a kind for
// status mapping, and a retryability flag for the enforcer retry loop.
type PipelineError struct {
	// Op is the operation that failed.
	Op string

	// Kind classifies the failure.
	Kind ErrorKind

	// Err is the underlying error.
	Err error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// WrapError creates a new PipelineError with context.
func WrapError(op string, kind ErrorKind, err error, retryable bool) *PipelineError {
	return &PipelineError{
		Op:        op,
		Kind:      kind,
		Err:       err,
		Retryable: retryable,
	}
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// KindOf extracts the error kind, defaulting to internal.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}

package agt

// errors.go defines the stable domain error taxonomy shared by the transport
// layer, the backup reconciliation and the HTTP surface. The codes are part
// of the API contract: the UI decides whether a failure is user-retryable by
// inspecting them, so they must not change.

import "fmt"

// ErrorCode is the stable domain error code attached to every AgtError.
type ErrorCode string

const (
	// ErrCodeValidation is used when caller-supplied data violates the
	// submission guardrails. Never retried; surfaced verbatim to the user.
	ErrCodeValidation ErrorCode = "validation-error"

	// ErrCodeRateLimited is used when AGT returns HTTP 429. Retried
	// internally up to the configured bound, then surfaced.
	ErrCodeRateLimited ErrorCode = "rate-limited"

	// ErrCodeTransportTimeout is used when a call hits its deadline or is
	// aborted at the transport level. Retried internally, then surfaced as
	// "remote unavailable".
	ErrCodeTransportTimeout ErrorCode = "transport-timeout"

	// ErrCodeUnauthorized is used when AGT returns 401/403. Never retried;
	// surfaced as a configuration problem.
	ErrCodeUnauthorized ErrorCode = "unauthorized"

	// ErrCodeInvalidRequest is used when AGT returns 400. Never retried;
	// surfaced with remote-provided detail when available.
	ErrCodeInvalidRequest ErrorCode = "invalid-request"

	// ErrCodeUnexpected is the catch-all for everything else. Logged with
	// full context and surfaced generically.
	ErrCodeUnexpected ErrorCode = "unexpected-integration-error"
)

// AgtError is a structured domain error with a stable code.
type AgtError struct {
	// code is the stable domain error code
	code ErrorCode

	// message is a human-readable error message
	message string

	// details carries field-level problems for validation errors, or
	// remote-provided errorList entries for remote rejections
	details []ErrorEntry

	// wrapped is the optional underlying error
	wrapped error
}

func (e *AgtError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *AgtError) Code() ErrorCode       { return e.code }
func (e *AgtError) Details() []ErrorEntry { return e.details }
func (e *AgtError) Unwrap() error         { return e.wrapped }

// UserMessage returns the user-facing category for the error code. These are
// retry hints, not diagnostics: full detail stays in server-side logs.
func (e *AgtError) UserMessage() string {
	switch e.code {
	case ErrCodeValidation:
		return "submitted data failed validation"
	case ErrCodeRateLimited:
		return "too many requests, retry later"
	case ErrCodeTransportTimeout:
		return "remote did not respond in time"
	case ErrCodeUnauthorized:
		return "credentials rejected"
	case ErrCodeInvalidRequest:
		return "request data rejected"
	default:
		return "unexpected integration error"
	}
}

// NewValidationError creates a validation error carrying the full list of
// violated rules. The caller decides whether to surface all entries or the
// first.
func NewValidationError(msg string, details []ErrorEntry) error {
	return &AgtError{code: ErrCodeValidation, message: msg, details: details}
}

// NewRateLimitedError creates a rate-limited error.
// Use this when AGT returned 429 and the retry budget is exhausted.
func NewRateLimitedError(msg string) error {
	return &AgtError{code: ErrCodeRateLimited, message: msg}
}

// WrapRateLimitedError wraps an existing error as a rate-limited error.
func WrapRateLimitedError(err error, msg string) error {
	return &AgtError{code: ErrCodeRateLimited, message: msg, wrapped: err}
}

// NewTimeoutError creates a transport-timeout error.
// Use this when the per-call deadline expired or the connection was aborted.
func NewTimeoutError(msg string) error {
	return &AgtError{code: ErrCodeTransportTimeout, message: msg}
}

// WrapTimeoutError wraps an existing error as a transport-timeout error.
func WrapTimeoutError(err error, msg string) error {
	return &AgtError{code: ErrCodeTransportTimeout, message: msg, wrapped: err}
}

// NewUnauthorizedError creates an unauthorized error.
// Use this when AGT rejected the configured credentials (401/403).
func NewUnauthorizedError(msg string) error {
	return &AgtError{code: ErrCodeUnauthorized, message: msg}
}

// NewInvalidRequestError creates an invalid-request error, optionally
// carrying the errorList returned by AGT.
func NewInvalidRequestError(msg string, details []ErrorEntry) error {
	return &AgtError{code: ErrCodeInvalidRequest, message: msg, details: details}
}

// NewUnexpectedError creates the catch-all integration error.
func NewUnexpectedError(msg string) error {
	return &AgtError{code: ErrCodeUnexpected, message: msg}
}

// WrapUnexpectedError wraps an existing error as the catch-all integration
// error.
func WrapUnexpectedError(err error, msg string) error {
	return &AgtError{code: ErrCodeUnexpected, message: msg, wrapped: err}
}

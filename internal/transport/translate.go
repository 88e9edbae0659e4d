package transport

// translate.go maps transport outcomes onto the small, stable domain error
// taxonomy in the agt package. Dispatch is on explicit status codes, not on
// error-message substrings; the taxonomy is the contract the UI and the
// backup reconciliation use to decide whether a failure is user-retryable.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/efactura-ao/agt-bridge/internal/agt"
)

// Translate converts a transport failure into a domain error with a stable
// code. Errors that already carry a domain code pass through unchanged; nil
// stays nil.
func Translate(err error) error {
	if err == nil {
		return nil
	}

	var agtErr *agt.AgtError
	if errors.As(err, &agtErr) {
		return err
	}

	var callErr *Error
	if errors.As(err, &callErr) {
		return translateCall(callErr)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return agt.WrapTimeoutError(err, "remote did not respond in time")
	}

	return agt.WrapUnexpectedError(err, "unexpected integration failure")
}

func translateCall(callErr *Error) error {
	switch {
	case callErr.StatusCode == http.StatusTooManyRequests:
		return agt.WrapRateLimitedError(callErr, "AGT rate limit exceeded, retry later")

	case callErr.StatusCode == 0 && callErr.Timeout:
		return agt.WrapTimeoutError(callErr, "remote did not respond in time")

	case callErr.StatusCode == 0:
		// connection reset and friends: no response was received, so from
		// the caller's perspective this is indistinguishable from a timeout
		return agt.WrapTimeoutError(callErr, "remote connection failed")

	case callErr.StatusCode == http.StatusBadRequest:
		return agt.NewInvalidRequestError(
			fmt.Sprintf("%s: request data rejected by AGT", callErr.Op),
			remoteErrorList(callErr.Body),
		)

	case callErr.StatusCode == http.StatusUnauthorized || callErr.StatusCode == http.StatusForbidden:
		return agt.NewUnauthorizedError(fmt.Sprintf("%s: AGT rejected the configured credentials", callErr.Op))

	default:
		return agt.WrapUnexpectedError(callErr, fmt.Sprintf("%s: unexpected AGT response", callErr.Op))
	}
}

// remoteErrorList extracts the errorList AGT attaches to rejection bodies so
// the remote-provided detail can be surfaced to the user.
func remoteErrorList(body []byte) []agt.ErrorEntry {
	if len(body) == 0 {
		return nil
	}
	var payload struct {
		ErrorList []agt.ErrorEntry `json:"errorList"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}
	return payload.ErrorList
}

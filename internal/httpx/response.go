// Package httpx provides the HTTP response helpers shared by the server
// handlers and middleware: JSON encoding and the mapping from domain errors
// onto the API error format.
package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/efactura-ao/agt-bridge/internal/agt"
	"github.com/efactura-ao/agt-bridge/internal/logger"
)

// ErrorResponse is the error payload returned by every endpoint.
type ErrorResponse struct {
	// Code is the stable domain error code (e.g. "validation-error",
	// "rate-limited"); the UI keys its retry behavior off it.
	Code string `json:"code"`

	// Message is the user-facing category for the code: a retry hint, not
	// a diagnostic. Full detail stays in server-side logs.
	Message string `json:"message"`

	// Details carries field-level problems for validation errors, or
	// remote-provided errorList entries.
	Details []agt.ErrorEntry `json:"details,omitempty"`

	StatusCode int    `json:"statusCode"`
	RequestID  string `json:"requestId,omitempty"`
	ErrorTime  string `json:"errorDateTime"`
}

// MapErrorToResponse maps an AgtError (or any error) onto the API error
// format and the appropriate HTTP status.
func MapErrorToResponse(err error, r *http.Request) *ErrorResponse {
	requestID := chimiddleware.GetReqID(r.Context())

	statusCode := http.StatusInternalServerError
	code := agt.ErrCodeUnexpected
	message := "unexpected integration error"
	var details []agt.ErrorEntry

	var agtErr *agt.AgtError
	if errors.As(err, &agtErr) {
		code = agtErr.Code()
		message = agtErr.UserMessage()
		details = agtErr.Details()

		switch agtErr.Code() {
		case agt.ErrCodeValidation:
			statusCode = http.StatusUnprocessableEntity
		case agt.ErrCodeRateLimited:
			statusCode = http.StatusTooManyRequests
		case agt.ErrCodeTransportTimeout:
			statusCode = http.StatusGatewayTimeout
		case agt.ErrCodeUnauthorized:
			// remote credentials are operator configuration, not something
			// the UI caller can fix with a different request
			statusCode = http.StatusBadGateway
		case agt.ErrCodeInvalidRequest:
			statusCode = http.StatusBadRequest
		default:
			statusCode = http.StatusInternalServerError
		}
	}

	return &ErrorResponse{
		Code:       string(code),
		Message:    message,
		Details:    details,
		StatusCode: statusCode,
		RequestID:  requestID,
		ErrorTime:  time.Now().UTC().Format(time.RFC3339),
	}
}

// RespondWithError sends the mapped error response and logs the full error
// detail server-side.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	errorResponse := MapErrorToResponse(err, r)

	reqLogger := logger.ContextRequestLogger(r.Context())
	reqLogger.Warn("request failed",
		slog.String("error", err.Error()),
		slog.Int("status_code", errorResponse.StatusCode),
		slog.String("error_code", errorResponse.Code),
		slog.String("request_id", errorResponse.RequestID),
	)

	RespondWithJSON(w, errorResponse.StatusCode, errorResponse)
}

// RespondWithJSON sends a JSON response with the given status code.
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			// headers are already written; log and move on
			slog.Error("failed to encode JSON response",
				slog.String("error", err.Error()),
			)
		}
	}
}

// Package transport performs the signed HTTP exchanges with the AGT web
// service.
//
// Every operation is a JSON POST against a fixed set of endpoints, with a
// per-call deadline, a bounded retry count and backoff on rate limiting and
// transient transport failures. The AGT service is slow and rate limited
// (429s and 150s+ responses are routine), so the retry discipline here is
// the contract the rest of the system depends on.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Operation is one of the remote AGT service operations. The operation name
// is the final path segment of the endpoint URL.
type Operation string

const (
	OpRegisterInvoice  Operation = "registarFactura"
	OpGetStatus        Operation = "obterEstado"
	OpListInvoices     Operation = "listarFacturas"
	OpConsultInvoice   Operation = "consultarFactura"
	OpRequestSeries    Operation = "solicitarSerie"
	OpListSeries       Operation = "listarSeries"
	OpValidateDocument Operation = "validarDocumento"
)

// AuthKind selects how outbound requests are authenticated.
type AuthKind int

const (
	AuthNone AuthKind = iota
	AuthBasic
	AuthAPIKey
	AuthBearer
)

// Auth describes the credentials attached to every outbound call.
type Auth struct {
	Kind     AuthKind
	Username string
	Password string
	APIKey   string
	Token    string
}

// apply attaches the credentials to an outbound request.
func (a Auth) apply(req *http.Request) {
	switch a.Kind {
	case AuthBasic:
		req.SetBasicAuth(a.Username, a.Password)
	case AuthAPIKey:
		req.Header.Set("X-Api-Key", a.APIKey)
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+a.Token)
	}
}

// Config parameterizes a Client.
type Config struct {
	BaseURL    string
	Auth       Auth
	Timeout    time.Duration // per-call deadline
	MaxRetries int           // retries after the initial attempt

	// Client-side limiter for outbound calls so the bridge itself never
	// hammers the rate-limited AGT endpoint. Zero disables it.
	OutboundRPS   float64
	OutboundBurst int
}

const defaultRetryAfterHint = 2 // seconds, when the 429 carries no Retry-After

// Client performs AGT service calls with retry and backoff.
type Client struct {
	httpClient *http.Client
	baseURL    string
	auth       Auth
	timeout    time.Duration
	maxRetries int
	limiter    *rate.Limiter
	logger     *slog.Logger

	// test seams: sleep is stubbed to observe backoff, backoffUnit scales
	// the second-denominated backoff floor down in tests
	sleep       func(ctx context.Context, d time.Duration) error
	backoffUnit time.Duration
}

// NewClient creates a transport client.
//
// The http.Client carries no timeout of its own: the per-call deadline is
// applied via context so an expired deadline aborts the in-flight request.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	var limiter *rate.Limiter
	if cfg.OutboundRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.OutboundRPS), cfg.OutboundBurst)
	}

	return &Client{
		httpClient:  &http.Client{},
		baseURL:     cfg.BaseURL,
		auth:        cfg.Auth,
		timeout:     cfg.Timeout,
		maxRetries:  cfg.MaxRetries,
		limiter:     limiter,
		logger:      logger,
		sleep:       sleepContext,
		backoffUnit: time.Second,
	}
}

// Call POSTs payload to the given operation endpoint and returns the raw
// response body on success (2xx).
//
// Retry policy:
//   - 429: sleep for the Retry-After hint (default 2s) plus attempt seconds,
//     then retry, up to MaxRetries.
//   - transport-level failure (timeout, connection reset): sleep attempt+1
//     seconds, then retry, up to MaxRetries.
//   - any other non-2xx status is terminal for this call and is returned
//     with the response body attached for diagnosis.
//
// Exhausting the retry budget surfaces the last error. The backoff floor is
// monotonically non-decreasing in the attempt counter.
func (c *Client) Call(ctx context.Context, op Operation, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Op: op, Err: fmt.Errorf("failed to marshal request payload: %w", err)}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, &Error{Op: op, Timeout: true, Err: fmt.Errorf("canceled waiting for outbound rate limiter: %w", err)}
			}
		}

		data, retryAfter, err := c.do(ctx, op, body)
		if err == nil {
			return data, nil
		}
		lastErr = err

		var callErr *Error
		if !errors.As(err, &callErr) {
			return nil, err
		}

		var delay time.Duration
		switch {
		case callErr.StatusCode == http.StatusTooManyRequests:
			delay = retryAfter + time.Duration(attempt)*c.backoffUnit
		case callErr.StatusCode == 0:
			// transport-level failure: no status was received
			delay = time.Duration(attempt+1) * c.backoffUnit
		default:
			// terminal non-2xx: not retried
			return nil, lastErr
		}

		if attempt == c.maxRetries {
			break
		}

		c.logger.Warn("AGT call failed, retrying",
			slog.String("operation", string(op)),
			slog.Int("attempt", attempt+1),
			slog.Int("max_retries", c.maxRetries),
			slog.Duration("backoff", delay),
			slog.String("error", callErr.Error()),
		)

		if err := c.sleep(ctx, delay); err != nil {
			return nil, &Error{Op: op, Timeout: true, Err: fmt.Errorf("canceled during retry backoff: %w", err)}
		}
	}

	return nil, lastErr
}

// do performs a single attempt. On 429 it also returns the Retry-After hint
// to use before the next attempt.
func (c *Client) do(ctx context.Context, op Operation, body []byte) ([]byte, time.Duration, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/"+string(op), bytes.NewReader(body))
	if err != nil {
		return nil, 0, &Error{Op: op, Err: fmt.Errorf("failed to build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.auth.apply(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &Error{Op: op, Timeout: isTimeout(err), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &Error{Op: op, Timeout: isTimeout(err), Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return respBody, 0, nil
	}

	callErr := &Error{Op: op, StatusCode: resp.StatusCode, Body: respBody}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, c.retryAfterHint(resp), callErr
	}
	return nil, 0, callErr
}

// retryAfterHint reads the Retry-After response header (seconds form),
// falling back to the 2 second default the AGT service documents.
func (c *Client) retryAfterHint(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds >= 0 {
			return time.Duration(seconds) * c.backoffUnit
		}
	}
	return defaultRetryAfterHint * c.backoffUnit
}

// isTimeout reports whether a transport failure was a deadline expiry or an
// abort, as opposed to e.g. a DNS failure.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Error is a transport-level failure: either a non-2xx response (StatusCode
// set, Body attached) or a failure to complete the exchange at all
// (StatusCode zero, Err set, Timeout indicating deadline expiry/abort).
type Error struct {
	Op         Operation
	StatusCode int
	Body       []byte
	Timeout    bool
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: AGT returned status %d: %s", e.Op, e.StatusCode, truncate(e.Body, 200))
	}
	if e.Timeout {
		return fmt.Sprintf("%s: call timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

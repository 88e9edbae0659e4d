// Package syncer deduplicates concurrent remote-status fetches per document
// key.
//
// The AGT service is slow and rate limited, so the coordinator guarantees at
// most one in-flight remote fetch per key at any time: a request made while
// a fetch for the same key is running attaches no new work and immediately
// observes "in-progress". Failures are recorded per key so a later poller
// can see the most recent outcome without re-triggering work.
//
// The registry is an injected dependency owned by a single Coordinator
// value; there is no package-level state.
package syncer

import (
	"context"
	"log/slog"
	"sync"
)

// FetchFunc performs the underlying remote fetch for one key. It runs on its
// own goroutine and must honor the context it is given.
type FetchFunc func(ctx context.Context) error

// Status reports how a RequestSync call was handled.
type Status string

const (
	// StatusStarted means this call started a new fetch.
	StatusStarted Status = "started"

	// StatusInProgress means a fetch for the key was already running and
	// the caller was attached to it.
	StatusInProgress Status = "in-progress"
)

// Result is the immediate outcome of a RequestSync call. LastError carries
// the most recent recorded failure for the key, if any, so asynchronous
// callers can surface it without blocking.
type Result struct {
	Status    Status `json:"status"`
	LastError string `json:"lastError,omitempty"`
}

type job struct {
	done chan struct{}
}

// Coordinator tracks in-flight fetches and last errors per key.
// The zero value is not usable; construct with New.
type Coordinator struct {
	mu       sync.Mutex
	inflight map[string]*job
	lastErr  map[string]string
	logger   *slog.Logger
}

// New creates a Coordinator.
func New(logger *slog.Logger) *Coordinator {
	return &Coordinator{
		inflight: make(map[string]*job),
		lastErr:  make(map[string]string),
		logger:   logger,
	}
}

// RequestSync starts a fetch for key unless one is already in flight.
//
// The fetch runs to completion on its own goroutine: once started, a job
// cannot be canceled. On completion (success or failure) the job slot is
// cleared before any new request for the key can start a fresh job, and the
// outcome is recorded in the last-error table.
func (c *Coordinator) RequestSync(key string, fetch FetchFunc) Result {
	c.mu.Lock()

	if _, ok := c.inflight[key]; ok {
		res := Result{Status: StatusInProgress, LastError: c.lastErr[key]}
		c.mu.Unlock()
		return res
	}

	j := &job{done: make(chan struct{})}
	c.inflight[key] = j
	res := Result{Status: StatusStarted, LastError: c.lastErr[key]}
	c.mu.Unlock()

	go c.run(key, j, fetch)

	return res
}

func (c *Coordinator) run(key string, j *job, fetch FetchFunc) {
	err := fetch(context.Background())

	c.mu.Lock()
	delete(c.inflight, key)
	if err != nil {
		c.lastErr[key] = err.Error()
	} else {
		delete(c.lastErr, key)
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("sync job failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}

	close(j.done)
}

// AwaitSync blocks until no fetch is in flight for key, or the context
// expires. It returns the context error on expiry; completion of the job is
// reported regardless of the job's own outcome, which remains observable via
// LastError.
func (c *Coordinator) AwaitSync(ctx context.Context, key string) error {
	c.mu.Lock()
	j, ok := c.inflight[key]
	c.mu.Unlock()

	if !ok {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-j.done:
		return nil
	}
}

// InProgress reports whether a fetch for key is currently in flight.
func (c *Coordinator) InProgress(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[key]
	return ok
}

// LastError returns the most recent recorded failure for key, or "" when the
// last fetch succeeded or none has run.
func (c *Coordinator) LastError(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr[key]
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/efactura-ao/agt-bridge/internal/agt"
	"github.com/efactura-ao/agt-bridge/internal/backup"
	"github.com/efactura-ao/agt-bridge/internal/config"
	"github.com/efactura-ao/agt-bridge/internal/httpx"
	"github.com/efactura-ao/agt-bridge/internal/service"
	"github.com/efactura-ao/agt-bridge/internal/syncer"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubService scripts the orchestration layer per test.
type stubService struct {
	submitFn   func(env *agt.Envelope) (*service.SubmitResult, error)
	syncFn     func(documentNo string, wait bool, waitTimeout time.Duration) (*service.SyncView, error)
	listFn     func(refresh bool, startDate, endDate time.Time) (*service.ListView, error)
	statusFn   func(requestID string) (*agt.GetStatusResponse, error)
	seriesFn   func(req agt.RequestSeriesRequest) (*agt.RequestSeriesResponse, error)
	listSerFn  func(year int) (*agt.ListSeriesResponse, error)
	validateFn func(req agt.ValidateDocumentRequest) (*agt.ValidateDocumentResponse, error)
}

func (s *stubService) Submit(ctx context.Context, env *agt.Envelope) (*service.SubmitResult, error) {
	return s.submitFn(env)
}

func (s *stubService) SyncDocument(ctx context.Context, documentNo string, wait bool, waitTimeout time.Duration) (*service.SyncView, error) {
	return s.syncFn(documentNo, wait, waitTimeout)
}

func (s *stubService) ListDocuments(ctx context.Context, refresh bool, startDate, endDate time.Time) (*service.ListView, error) {
	return s.listFn(refresh, startDate, endDate)
}

func (s *stubService) CheckStatus(ctx context.Context, requestID string) (*agt.GetStatusResponse, error) {
	return s.statusFn(requestID)
}

func (s *stubService) RequestSeries(ctx context.Context, req agt.RequestSeriesRequest) (*agt.RequestSeriesResponse, error) {
	return s.seriesFn(req)
}

func (s *stubService) ListSeries(ctx context.Context, year int) (*agt.ListSeriesResponse, error) {
	return s.listSerFn(year)
}

func (s *stubService) ValidateDocument(ctx context.Context, req agt.ValidateDocumentRequest) (*agt.ValidateDocumentResponse, error) {
	return s.validateFn(req)
}

func newTestServer(svc Service) *Server {
	cfg := &config.ServerEnvironment{
		Environment:     "mock",
		Host:            "127.0.0.1",
		Port:            8080,
		MaxRequestBytes: 1 << 20,
	}
	return NewServer(cfg, svc, testLogger())
}

func doRequest(t *testing.T, srv *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(&stubService{})

	rec := doRequest(t, srv, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("GET /health = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["status"] != "healthy" {
		t.Errorf("body = %s, want healthy status", rec.Body.String())
	}
}

func TestHandleVersion(t *testing.T) {
	srv := newTestServer(&stubService{})

	rec := doRequest(t, srv, http.MethodGet, "/version", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("GET /version = %d, want 200", rec.Code)
	}
}

func TestHandleSubmit(t *testing.T) {
	var gotEnv *agt.Envelope
	svc := &stubService{
		submitFn: func(env *agt.Envelope) (*service.SubmitResult, error) {
			gotEnv = env
			return &service.SubmitResult{SubmissionID: "sub-1", RequestID: "REQ-1"}, nil
		},
	}
	srv := newTestServer(svc)

	payload := []byte(`{"documents":[{"documentNo":"FT 2026/1","documentType":"FT"}]}`)
	rec := doRequest(t, srv, http.MethodPost, "/v1/submissions", payload)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("POST /v1/submissions = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	if gotEnv == nil || len(gotEnv.Documents) != 1 || gotEnv.Documents[0].DocumentNo != "FT 2026/1" {
		t.Errorf("service received %+v, want the decoded envelope", gotEnv)
	}

	var result service.SubmitResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil || result.RequestID != "REQ-1" {
		t.Errorf("body = %s, want the submit result", rec.Body.String())
	}
}

func TestHandleSubmit_MalformedBody(t *testing.T) {
	srv := newTestServer(&stubService{})

	rec := doRequest(t, srv, http.MethodPost, "/v1/submissions", []byte(`{not json`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("POST /v1/submissions = %d, want 400", rec.Code)
	}
}

func TestHandleSubmit_UnknownFieldsRejected(t *testing.T) {
	srv := newTestServer(&stubService{})

	rec := doRequest(t, srv, http.MethodPost, "/v1/submissions", []byte(`{"bogusField":true}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("POST /v1/submissions = %d, want 400 for unknown fields", rec.Code)
	}
}

func TestHandleSubmit_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "validation error",
			err:        agt.NewValidationError("bad envelope", []agt.ErrorEntry{{Code: "MISSING_TAX_ID"}}),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "validation-error",
		},
		{
			name:       "rate limited",
			err:        agt.NewRateLimitedError("budget exhausted"),
			wantStatus: http.StatusTooManyRequests,
			wantCode:   "rate-limited",
		},
		{
			name:       "timeout",
			err:        agt.NewTimeoutError("no response"),
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   "transport-timeout",
		},
		{
			name:       "unauthorized",
			err:        agt.NewUnauthorizedError("credentials rejected"),
			wantStatus: http.StatusBadGateway,
			wantCode:   "unauthorized",
		},
		{
			name:       "invalid request",
			err:        agt.NewInvalidRequestError("rejected", nil),
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid-request",
		},
		{
			name:       "unexpected",
			err:        agt.NewUnexpectedError("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "unexpected-integration-error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{
				submitFn: func(env *agt.Envelope) (*service.SubmitResult, error) {
					return nil, tt.err
				},
			}
			srv := newTestServer(svc)

			rec := doRequest(t, srv, http.MethodPost, "/v1/submissions", []byte(`{}`))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var errResp httpx.ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
				t.Fatalf("failed to decode error body: %v", err)
			}
			if errResp.Code != tt.wantCode {
				t.Errorf("error code = %q, want %q", errResp.Code, tt.wantCode)
			}
		})
	}
}

func TestHandleSubmissionStatus(t *testing.T) {
	svc := &stubService{
		statusFn: func(requestID string) (*agt.GetStatusResponse, error) {
			if requestID != "REQ-1" {
				t.Errorf("requestID = %q, want REQ-1", requestID)
			}
			return &agt.GetStatusResponse{
				DocumentStatusList: []agt.DocumentStatusEntry{
					{DocumentNo: "FT 2026/1", Status: agt.StatusValidated},
				},
			}, nil
		},
	}
	srv := newTestServer(svc)

	rec := doRequest(t, srv, http.MethodGet, "/v1/submissions/REQ-1/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp agt.GetStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || len(resp.DocumentStatusList) != 1 {
		t.Errorf("body = %s, want the status response", rec.Body.String())
	}
}

func TestHandleSyncDocument(t *testing.T) {
	tests := []struct {
		name        string
		target      string
		wantWait    bool
		wantTimeout time.Duration
		wantStatus  int
	}{
		{
			name:        "default waits",
			target:      "/v1/documents/FT-2026-1/sync",
			wantWait:    true,
			wantTimeout: 30 * time.Second,
			wantStatus:  http.StatusOK,
		},
		{
			name:        "async",
			target:      "/v1/documents/FT-2026-1/sync?async=1",
			wantWait:    false,
			wantTimeout: 30 * time.Second,
			wantStatus:  http.StatusOK,
		},
		{
			name:        "custom timeout",
			target:      "/v1/documents/FT-2026-1/sync?timeoutMs=500",
			wantWait:    true,
			wantTimeout: 500 * time.Millisecond,
			wantStatus:  http.StatusOK,
		},
		{
			name:       "bad timeout",
			target:     "/v1/documents/FT-2026-1/sync?timeoutMs=abc",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{
				syncFn: func(documentNo string, wait bool, waitTimeout time.Duration) (*service.SyncView, error) {
					if documentNo != "FT-2026-1" {
						t.Errorf("documentNo = %q, want FT-2026-1", documentNo)
					}
					if wait != tt.wantWait {
						t.Errorf("wait = %v, want %v", wait, tt.wantWait)
					}
					if waitTimeout != tt.wantTimeout {
						t.Errorf("waitTimeout = %v, want %v", waitTimeout, tt.wantTimeout)
					}
					return &service.SyncView{Sync: syncer.Result{Status: syncer.StatusStarted}}, nil
				},
			}
			srv := newTestServer(svc)

			rec := doRequest(t, srv, http.MethodGet, tt.target, nil)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestHandleListDocuments(t *testing.T) {
	svc := &stubService{
		listFn: func(refresh bool, startDate, endDate time.Time) (*service.ListView, error) {
			if !refresh {
				t.Error("refresh = false, want true")
			}
			wantStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
			wantEnd := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
			if !startDate.Equal(wantStart) || !endDate.Equal(wantEnd) {
				t.Errorf("range = %v..%v, want %v..%v", startDate, endDate, wantStart, wantEnd)
			}
			return &service.ListView{
				Documents: []backup.Record{{TaxID: "5417000001", DocumentNo: "FT 2026/1"}},
				Source:    "remote",
			}, nil
		},
	}
	srv := newTestServer(svc)

	rec := doRequest(t, srv, http.MethodGet, "/v1/documents?refresh=true&startDate=2026-08-01&endDate=2026-08-31", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var view service.ListView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil || view.Source != "remote" || len(view.Documents) != 1 {
		t.Errorf("body = %s, want the listing view", rec.Body.String())
	}
}

func TestHandleListDocuments_BadDate(t *testing.T) {
	srv := newTestServer(&stubService{})

	rec := doRequest(t, srv, http.MethodGet, "/v1/documents?startDate=01-08-2026", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleValidateDocument(t *testing.T) {
	svc := &stubService{
		validateFn: func(req agt.ValidateDocumentRequest) (*agt.ValidateDocumentResponse, error) {
			if req.DocumentNo != "FT-2026-1" {
				t.Errorf("DocumentNo = %q, want the path parameter", req.DocumentNo)
			}
			if req.IssuerTaxID != "500123456" || req.GrossTotal != 2280 {
				t.Errorf("req = %+v, want the decoded body", req)
			}
			return &agt.ValidateDocumentResponse{Valid: true}, nil
		},
	}
	srv := newTestServer(svc)

	payload := []byte(`{"issuerTaxId":"500123456","grossTotal":2280}`)
	rec := doRequest(t, srv, http.MethodPost, "/v1/documents/FT-2026-1/validate", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp agt.ValidateDocumentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || !resp.Valid {
		t.Errorf("body = %s, want valid=true", rec.Body.String())
	}
}

func TestHandleRequestSeries(t *testing.T) {
	svc := &stubService{
		seriesFn: func(req agt.RequestSeriesRequest) (*agt.RequestSeriesResponse, error) {
			if req.SeriesPrefix != "A" || req.DocumentType != agt.DocTypeInvoice || req.Year != 2026 {
				t.Errorf("req = %+v, want the decoded body", req)
			}
			return &agt.RequestSeriesResponse{Series: &agt.Series{SeriesID: "S1", Active: true}}, nil
		},
	}
	srv := newTestServer(svc)

	payload := []byte(`{"seriesPrefix":"A","documentType":"FT","year":2026}`)
	rec := doRequest(t, srv, http.MethodPost, "/v1/series", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleListSeries(t *testing.T) {
	svc := &stubService{
		listSerFn: func(year int) (*agt.ListSeriesResponse, error) {
			if year != 2026 {
				t.Errorf("year = %d, want 2026", year)
			}
			return &agt.ListSeriesResponse{SeriesList: []agt.Series{{SeriesID: "S1"}}}, nil
		},
	}
	srv := newTestServer(svc)

	rec := doRequest(t, srv, http.MethodGet, "/v1/series?year=2026", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, srv, http.MethodGet, "/v1/series?year=abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for a non-integer year", rec.Code)
	}
}

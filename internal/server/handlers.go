package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/efactura-ao/agt-bridge/internal/agt"
	"github.com/efactura-ao/agt-bridge/internal/httpx"
	"github.com/efactura-ao/agt-bridge/internal/service"
	"github.com/efactura-ao/agt-bridge/internal/version"
)

// Service is the orchestration surface the handlers depend on. Implemented
// by *service.Service; stubbed in handler tests.
type Service interface {
	Submit(ctx context.Context, env *agt.Envelope) (*service.SubmitResult, error)
	SyncDocument(ctx context.Context, documentNo string, wait bool, waitTimeout time.Duration) (*service.SyncView, error)
	ListDocuments(ctx context.Context, refresh bool, startDate, endDate time.Time) (*service.ListView, error)
	CheckStatus(ctx context.Context, requestID string) (*agt.GetStatusResponse, error)
	RequestSeries(ctx context.Context, req agt.RequestSeriesRequest) (*agt.RequestSeriesResponse, error)
	ListSeries(ctx context.Context, year int) (*agt.ListSeriesResponse, error)
	ValidateDocument(ctx context.Context, req agt.ValidateDocumentRequest) (*agt.ValidateDocumentResponse, error)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httpx.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	httpx.RespondWithJSON(w, http.StatusOK, version.Get())
}

// handleSubmit validates, signs and submits one envelope.
//
//	POST /v1/submissions
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var env agt.Envelope

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&env); err != nil {
		httpx.RespondWithError(w, r, agt.NewInvalidRequestError("malformed submission payload", nil))
		return
	}

	result, err := s.svc.Submit(r.Context(), &env)
	if err != nil {
		httpx.RespondWithError(w, r, err)
		return
	}

	httpx.RespondWithJSON(w, http.StatusAccepted, result)
}

// handleSubmissionStatus polls AGT validation status for a prior submission.
//
//	GET /v1/submissions/{requestID}/status
func (s *Server) handleSubmissionStatus(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")

	resp, err := s.svc.CheckStatus(r.Context(), requestID)
	if err != nil {
		httpx.RespondWithError(w, r, err)
		return
	}

	httpx.RespondWithJSON(w, http.StatusOK, resp)
}

// handleSyncDocument triggers or attaches to a sync job for one document and
// returns the current backup state plus the sync status.
//
//	GET /v1/documents/{documentNo}/sync?async={0|1}&timeoutMs={n}
func (s *Server) handleSyncDocument(w http.ResponseWriter, r *http.Request) {
	documentNo := chi.URLParam(r, "documentNo")

	async := r.URL.Query().Get("async") == "1"

	waitTimeout := 30 * time.Second
	if v := r.URL.Query().Get("timeoutMs"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms < 0 {
			httpx.RespondWithError(w, r, agt.NewInvalidRequestError("timeoutMs must be a non-negative integer", nil))
			return
		}
		waitTimeout = time.Duration(ms) * time.Millisecond
	}

	view, err := s.svc.SyncDocument(r.Context(), documentNo, !async, waitTimeout)
	if err != nil {
		httpx.RespondWithError(w, r, err)
		return
	}

	httpx.RespondWithJSON(w, http.StatusOK, view)
}

// handleListDocuments serves the cached-or-remote document listing.
//
//	GET /v1/documents?refresh={bool}&startDate=&endDate=
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	refresh := r.URL.Query().Get("refresh") == "true" || r.URL.Query().Get("refresh") == "1"

	endDate := time.Now().UTC()
	startDate := endDate.AddDate(0, -1, 0)

	if v := r.URL.Query().Get("startDate"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpx.RespondWithError(w, r, agt.NewInvalidRequestError("startDate must be formatted YYYY-MM-DD", nil))
			return
		}
		startDate = parsed
	}
	if v := r.URL.Query().Get("endDate"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpx.RespondWithError(w, r, agt.NewInvalidRequestError("endDate must be formatted YYYY-MM-DD", nil))
			return
		}
		endDate = parsed
	}

	view, err := s.svc.ListDocuments(r.Context(), refresh, startDate, endDate)
	if err != nil {
		httpx.RespondWithError(w, r, err)
		return
	}

	httpx.RespondWithJSON(w, http.StatusOK, view)
}

// handleValidateDocument confirms a received document against AGT.
//
//	POST /v1/documents/{documentNo}/validate
func (s *Server) handleValidateDocument(w http.ResponseWriter, r *http.Request) {
	var req agt.ValidateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondWithError(w, r, agt.NewInvalidRequestError("malformed validation payload", nil))
		return
	}
	req.DocumentNo = chi.URLParam(r, "documentNo")

	resp, err := s.svc.ValidateDocument(r.Context(), req)
	if err != nil {
		httpx.RespondWithError(w, r, err)
		return
	}

	httpx.RespondWithJSON(w, http.StatusOK, resp)
}

// handleRequestSeries allocates a numbering series.
//
//	POST /v1/series
func (s *Server) handleRequestSeries(w http.ResponseWriter, r *http.Request) {
	var req agt.RequestSeriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondWithError(w, r, agt.NewInvalidRequestError("malformed series payload", nil))
		return
	}

	resp, err := s.svc.RequestSeries(r.Context(), req)
	if err != nil {
		httpx.RespondWithError(w, r, err)
		return
	}

	httpx.RespondWithJSON(w, http.StatusOK, resp)
}

// handleListSeries lists registered numbering series.
//
//	GET /v1/series?year={n}
func (s *Server) handleListSeries(w http.ResponseWriter, r *http.Request) {
	year := 0
	if v := r.URL.Query().Get("year"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			httpx.RespondWithError(w, r, agt.NewInvalidRequestError("year must be an integer", nil))
			return
		}
		year = parsed
	}

	resp, err := s.svc.ListSeries(r.Context(), year)
	if err != nil {
		httpx.RespondWithError(w, r, err)
		return
	}

	httpx.RespondWithJSON(w, http.StatusOK, resp)
}

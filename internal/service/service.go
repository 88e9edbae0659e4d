// Package service orchestrates the AGT submission and synchronization flows:
// validate -> sign -> transmit for submissions, and deduplicated
// fetch-and-reconcile for status refreshes, with the backup store as read
// fallback whenever the remote service is unavailable.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/efactura-ao/agt-bridge/internal/agt"
	"github.com/efactura-ao/agt-bridge/internal/backup"
	"github.com/efactura-ao/agt-bridge/internal/syncer"
	"github.com/efactura-ao/agt-bridge/internal/transport"
)

// AGTClient is the transport surface the service depends on. Implemented by
// *transport.Client; stubbed in tests.
type AGTClient interface {
	RegisterInvoice(ctx context.Context, env *agt.Envelope) (*agt.RegisterInvoiceResponse, error)
	GetStatus(ctx context.Context, req agt.GetStatusRequest) (*agt.GetStatusResponse, error)
	ListInvoices(ctx context.Context, req agt.ListInvoicesRequest) (*agt.ListInvoicesResponse, error)
	ConsultInvoice(ctx context.Context, req agt.ConsultInvoiceRequest) (*agt.ConsultInvoiceResponse, error)
	RequestSeries(ctx context.Context, req agt.RequestSeriesRequest) (*agt.RequestSeriesResponse, error)
	ListSeries(ctx context.Context, req agt.ListSeriesRequest) (*agt.ListSeriesResponse, error)
	ValidateDocument(ctx context.Context, req agt.ValidateDocumentRequest) (*agt.ValidateDocumentResponse, error)
}

// Signer is the signing pipeline surface the service depends on.
type Signer interface {
	Sign(env *agt.Envelope) error
	Enabled() bool
}

// Service wires the submission and synchronization flows together.
type Service struct {
	client   AGTClient
	signer   Signer
	store    backup.Store
	sync     *syncer.Coordinator
	logger   *slog.Logger
	taxID    string
	software agt.SoftwareInfo

	now func() time.Time
}

// New creates a Service.
func New(client AGTClient, signer Signer, store backup.Store, coordinator *syncer.Coordinator,
	taxID string, software agt.SoftwareInfo, logger *slog.Logger) *Service {
	return &Service{
		client:   client,
		signer:   signer,
		store:    store,
		sync:     coordinator,
		logger:   logger,
		taxID:    taxID,
		software: software,
		now:      time.Now,
	}
}

// SubmitResult is the outcome of a successful submission exchange.
type SubmitResult struct {
	SubmissionID string           `json:"submissionId"`
	RequestID    string           `json:"requestId"`
	ErrorList    []agt.ErrorEntry `json:"errorList,omitempty"`
}

// Submit validates, signs and transmits one envelope, then mirrors the
// submitted documents into the backup store.
//
// Validation failures return an AgtError with code validation-error carrying
// the complete violation list. Signing is best-effort: a signing failure is
// logged and the submission proceeds unsigned, because AGT's own validation
// is the final authority on signatures.
func (s *Service) Submit(ctx context.Context, env *agt.Envelope) (*SubmitResult, error) {
	if env.SubmissionID == "" {
		env.SubmissionID = uuid.NewString()
	}
	if env.TaxID == "" {
		env.TaxID = s.taxID
	}
	if env.SubmissionDate.IsZero() {
		env.SubmissionDate = s.now().UTC()
	}
	env.SoftwareInfo = s.software

	// the caller never supplies signatures
	env.Signature = ""
	for i := range env.Documents {
		env.Documents[i].Signature = ""
	}

	if violations := agt.ValidateEnvelope(env); len(violations) > 0 {
		return nil, agt.NewValidationError(
			fmt.Sprintf("submission %s failed validation", env.SubmissionID), violations)
	}

	if err := s.signer.Sign(env); err != nil {
		s.logger.Warn("signing failed, submitting unsigned",
			slog.String("submission_id", env.SubmissionID),
			slog.String("error", err.Error()),
		)
	}

	resp, err := s.client.RegisterInvoice(ctx, env)
	if err != nil {
		return nil, transport.Translate(err)
	}

	s.mirrorSubmission(ctx, env, resp)

	return &SubmitResult{
		SubmissionID: env.SubmissionID,
		RequestID:    resp.RequestID,
		ErrorList:    resp.ErrorList,
	}, nil
}

// mirrorSubmission records the submitted documents in the backup store. A
// store failure is logged, not surfaced: the submission already succeeded
// remotely and the next reconciliation retries the same merge.
func (s *Service) mirrorSubmission(ctx context.Context, env *agt.Envelope, resp *agt.RegisterInvoiceResponse) {
	for _, doc := range env.Documents {
		if doc.Status == "" {
			doc.Status = agt.StatusPending
		}
		rec := backup.Record{
			SubmissionID: env.SubmissionID,
			RequestID:    resp.RequestID,
			TaxID:        env.TaxID,
			DocumentNo:   doc.DocumentNo,
			Document:     doc,
			Messages:     resp.ErrorList,
		}
		if _, err := s.store.Upsert(ctx, rec); err != nil {
			s.logger.Error("failed to mirror submitted document to backup store",
				slog.String("document_no", doc.DocumentNo),
				slog.String("error", err.Error()),
			)
		}
	}
}

// SyncView is what a status-refresh request returns: the current backup
// state plus the sync job status, and a warning when the most recent remote
// fetch failed.
type SyncView struct {
	Record  *backup.Record `json:"record,omitempty"`
	Sync    syncer.Result  `json:"sync"`
	Warning string         `json:"warning,omitempty"`
}

// SyncDocument triggers (or attaches to) a deduplicated remote fetch for one
// document and returns the current backup state.
//
// When wait is false the call returns immediately after observing the job
// status; the update lands asynchronously. When wait is true the call blocks
// until the job completes or waitTimeout expires.
func (s *Service) SyncDocument(ctx context.Context, documentNo string, wait bool, waitTimeout time.Duration) (*SyncView, error) {
	key := backup.DocumentKey(s.taxID, documentNo)

	res := s.sync.RequestSync(key, func(jobCtx context.Context) error {
		return s.fetchDocument(jobCtx, documentNo)
	})

	if wait {
		waitCtx := ctx
		if waitTimeout > 0 {
			var cancel context.CancelFunc
			waitCtx, cancel = context.WithTimeout(ctx, waitTimeout)
			defer cancel()
		}
		if err := s.sync.AwaitSync(waitCtx, key); err != nil {
			s.logger.Debug("gave up waiting for sync job",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		res.LastError = s.sync.LastError(key)
	}

	view := &SyncView{Sync: res, Warning: s.sync.LastError(key)}

	rec, err := s.store.Get(ctx, key)
	switch {
	case errors.Is(err, backup.ErrNotFound):
		// nothing mirrored yet - the view carries only the sync status
	case err != nil:
		return nil, fmt.Errorf("failed to read backup record: %w", err)
	default:
		view.Record = rec
	}

	return view, nil
}

// fetchDocument is the sync job body: consult the full-detail record and
// reconcile it into the backup store.
func (s *Service) fetchDocument(ctx context.Context, documentNo string) error {
	resp, err := s.client.ConsultInvoice(ctx, agt.ConsultInvoiceRequest{
		TaxID:      s.taxID,
		DocumentNo: documentNo,
	})
	if err != nil {
		return transport.Translate(err)
	}
	if resp.Document == nil {
		return agt.NewUnexpectedError(
			fmt.Sprintf("consultarFactura returned no document for %s: %s", documentNo, resp.ReturnMessage))
	}

	rec := backup.Record{
		TaxID:         s.taxID,
		DocumentNo:    documentNo,
		Document:      *resp.Document,
		ResultCode:    strconv.Itoa(resp.ReturnCode),
		ResultMessage: resp.ReturnMessage,
		LastSyncAt:    s.now().UTC(),
	}
	if _, err := s.store.Upsert(ctx, rec); err != nil {
		// stale-but-available beats failing the job; the next sync retries
		// the same merge
		s.logger.Error("failed to reconcile document into backup store",
			slog.String("document_no", documentNo),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// ListView is what a listing request returns: the reconciled records plus
// which side served them and a warning when the remote refresh failed.
type ListView struct {
	Documents []backup.Record `json:"documents"`
	Source    string          `json:"source"` // "remote" or "backup"
	Warning   string          `json:"warning,omitempty"`
}

// ListDocuments returns the document listing. With refresh the remote
// listing is fetched and reconciled into the backup store first; if the
// remote is unavailable the last known backup state is served with a
// warning instead of failing the request.
func (s *Service) ListDocuments(ctx context.Context, refresh bool, startDate, endDate time.Time) (*ListView, error) {
	if !refresh {
		recs, err := s.store.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list backup records: %w", err)
		}
		return &ListView{Documents: recs, Source: "backup"}, nil
	}

	resp, err := s.client.ListInvoices(ctx, agt.ListInvoicesRequest{
		TaxID:     s.taxID,
		StartDate: startDate,
		EndDate:   endDate,
	})
	if err != nil {
		translated := transport.Translate(err)
		s.logger.Warn("remote listing failed, serving backup state",
			slog.String("error", translated.Error()),
		)

		recs, listErr := s.store.List(ctx)
		if listErr != nil {
			return nil, fmt.Errorf("failed to list backup records: %w", listErr)
		}
		return &ListView{Documents: recs, Source: "backup", Warning: userWarning(translated)}, nil
	}

	now := s.now().UTC()
	for _, doc := range resp.DocumentResultList {
		rec := backup.Record{
			TaxID:      s.taxID,
			DocumentNo: doc.DocumentNo,
			Document:   doc,
			LastSyncAt: now,
		}
		if _, err := s.store.Upsert(ctx, rec); err != nil {
			s.logger.Error("failed to reconcile listed document into backup store",
				slog.String("document_no", doc.DocumentNo),
				slog.String("error", err.Error()),
			)
		}
	}

	recs, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list backup records: %w", err)
	}
	return &ListView{Documents: recs, Source: "remote"}, nil
}

// CheckStatus polls obterEstado for a prior submission and reconciles the
// per-document statuses into the backup store.
func (s *Service) CheckStatus(ctx context.Context, requestID string) (*agt.GetStatusResponse, error) {
	resp, err := s.client.GetStatus(ctx, agt.GetStatusRequest{
		TaxID:     s.taxID,
		RequestID: requestID,
	})
	if err != nil {
		return nil, transport.Translate(err)
	}

	now := s.now().UTC()
	for _, entry := range resp.DocumentStatusList {
		rec := backup.Record{
			RequestID:     requestID,
			TaxID:         s.taxID,
			DocumentNo:    entry.DocumentNo,
			Document:      agt.Document{DocumentNo: entry.DocumentNo, Status: entry.Status},
			ResultCode:    strconv.Itoa(resp.ResultCode),
			ResultMessage: resp.ResultMessage,
			Messages:      entry.ErrorList,
			LastSyncAt:    now,
		}
		if _, err := s.store.Upsert(ctx, rec); err != nil {
			s.logger.Error("failed to reconcile document status into backup store",
				slog.String("document_no", entry.DocumentNo),
				slog.String("error", err.Error()),
			)
		}
	}

	return resp, nil
}

// RequestSeries allocates a numbering series.
func (s *Service) RequestSeries(ctx context.Context, req agt.RequestSeriesRequest) (*agt.RequestSeriesResponse, error) {
	if req.TaxID == "" {
		req.TaxID = s.taxID
	}
	resp, err := s.client.RequestSeries(ctx, req)
	if err != nil {
		return nil, transport.Translate(err)
	}
	return resp, nil
}

// ListSeries lists the registered numbering series.
func (s *Service) ListSeries(ctx context.Context, year int) (*agt.ListSeriesResponse, error) {
	resp, err := s.client.ListSeries(ctx, agt.ListSeriesRequest{TaxID: s.taxID, Year: year})
	if err != nil {
		return nil, transport.Translate(err)
	}
	return resp, nil
}

// ValidateDocument confirms a received document against AGT.
func (s *Service) ValidateDocument(ctx context.Context, req agt.ValidateDocumentRequest) (*agt.ValidateDocumentResponse, error) {
	if req.TaxID == "" {
		req.TaxID = s.taxID
	}
	resp, err := s.client.ValidateDocument(ctx, req)
	if err != nil {
		return nil, transport.Translate(err)
	}
	return resp, nil
}

// userWarning extracts the user-facing category from a translated error.
func userWarning(err error) string {
	var agtErr *agt.AgtError
	if errors.As(err, &agtErr) {
		return agtErr.UserMessage()
	}
	return "unexpected integration error"
}

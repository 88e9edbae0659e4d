package transport

// api.go provides the typed wrappers over Call for each AGT operation.
// Wrappers decode the JSON response body into the agt payload types; callers
// translate failures into the domain taxonomy with Translate.

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/efactura-ao/agt-bridge/internal/agt"
)

// RegisterInvoice submits an envelope via registarFactura.
//
// The envelope's submission id is a client-generated UUID that the remote
// service deduplicates on, so retrying a submission after a transport-level
// failure cannot double-register documents.
func (c *Client) RegisterInvoice(ctx context.Context, env *agt.Envelope) (*agt.RegisterInvoiceResponse, error) {
	return callTyped[agt.RegisterInvoiceResponse](ctx, c, OpRegisterInvoice, env)
}

// GetStatus polls validation status for a prior submission via obterEstado.
func (c *Client) GetStatus(ctx context.Context, req agt.GetStatusRequest) (*agt.GetStatusResponse, error) {
	return callTyped[agt.GetStatusResponse](ctx, c, OpGetStatus, req)
}

// ListInvoices fetches the abbreviated document listing via listarFacturas.
func (c *Client) ListInvoices(ctx context.Context, req agt.ListInvoicesRequest) (*agt.ListInvoicesResponse, error) {
	return callTyped[agt.ListInvoicesResponse](ctx, c, OpListInvoices, req)
}

// ConsultInvoice fetches the full-detail record of one document via
// consultarFactura.
func (c *Client) ConsultInvoice(ctx context.Context, req agt.ConsultInvoiceRequest) (*agt.ConsultInvoiceResponse, error) {
	return callTyped[agt.ConsultInvoiceResponse](ctx, c, OpConsultInvoice, req)
}

// RequestSeries allocates a numbering series via solicitarSerie.
func (c *Client) RequestSeries(ctx context.Context, req agt.RequestSeriesRequest) (*agt.RequestSeriesResponse, error) {
	return callTyped[agt.RequestSeriesResponse](ctx, c, OpRequestSeries, req)
}

// ListSeries lists registered numbering series via listarSeries.
func (c *Client) ListSeries(ctx context.Context, req agt.ListSeriesRequest) (*agt.ListSeriesResponse, error) {
	return callTyped[agt.ListSeriesResponse](ctx, c, OpListSeries, req)
}

// ValidateDocument confirms a received document via validarDocumento.
func (c *Client) ValidateDocument(ctx context.Context, req agt.ValidateDocumentRequest) (*agt.ValidateDocumentResponse, error) {
	return callTyped[agt.ValidateDocumentResponse](ctx, c, OpValidateDocument, req)
}

func callTyped[T any](ctx context.Context, c *Client, op Operation, payload any) (*T, error) {
	body, err := c.Call(ctx, op, payload)
	if err != nil {
		return nil, err
	}

	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &Error{Op: op, Err: fmt.Errorf("failed to decode response body: %w", err)}
	}
	return &out, nil
}

package agt

// api_types.go defines the request/response payloads of the AGT web service
// operations. All operations are POSTs with JSON bodies; the operation name
// is the final path segment (e.g. POST {base}/registarFactura).

import "time"

// RegisterInvoiceResponse is returned by registarFactura. On acceptance the
// service assigns a request id used to poll validation status with
// obterEstado; on rejection ErrorList carries the reasons.
type RegisterInvoiceResponse struct {
	RequestID string       `json:"requestId"`
	ErrorList []ErrorEntry `json:"errorList,omitempty"`
}

// GetStatusRequest is the payload for obterEstado.
type GetStatusRequest struct {
	TaxID     string `json:"taxId"`
	RequestID string `json:"requestId"`
}

// DocumentStatusEntry is one per-document result within a GetStatusResponse.
type DocumentStatusEntry struct {
	DocumentNo string         `json:"documentNo"`
	Status     DocumentStatus `json:"status"`
	ErrorList  []ErrorEntry   `json:"errorList,omitempty"`
}

// GetStatusResponse is returned by obterEstado.
type GetStatusResponse struct {
	ResultCode         int                   `json:"resultCode"`
	ResultMessage      string                `json:"resultMessage,omitempty"`
	DocumentStatusList []DocumentStatusEntry `json:"documentStatusList"`
	ErrorList          []ErrorEntry          `json:"errorList,omitempty"`
}

// ListInvoicesRequest is the payload for listarFacturas.
type ListInvoicesRequest struct {
	TaxID     string    `json:"taxId"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// ListInvoicesResponse is returned by listarFacturas. The documents in
// DocumentResultList are abbreviated records: status, dates and totals are
// present but line-item detail is omitted. Reconciliation against the backup
// store must not let these clobber previously fetched detail.
type ListInvoicesResponse struct {
	DocumentResultCount int        `json:"documentResultCount"`
	DocumentResultList  []Document `json:"documentResultList"`
}

// ConsultInvoiceRequest is the payload for consultarFactura.
type ConsultInvoiceRequest struct {
	TaxID      string `json:"taxId"`
	DocumentNo string `json:"documentNo"`
}

// ConsultInvoiceResponse is returned by consultarFactura with the
// full-detail document record.
type ConsultInvoiceResponse struct {
	Document      *Document `json:"document"`
	ReturnCode    int       `json:"returnCode"`
	ReturnMessage string    `json:"returnMessage,omitempty"`
}

// RequestSeriesRequest is the payload for solicitarSerie (numbering-series
// allocation).
type RequestSeriesRequest struct {
	TaxID        string       `json:"taxId"`
	SeriesPrefix string       `json:"seriesPrefix"`
	DocumentType DocumentType `json:"documentType"`
	Year         int          `json:"year"`
}

// Series is one numbering series registered with AGT.
type Series struct {
	SeriesID     string       `json:"seriesId"`
	SeriesPrefix string       `json:"seriesPrefix"`
	DocumentType DocumentType `json:"documentType"`
	Year         int          `json:"year"`
	Active       bool         `json:"active"`
}

// RequestSeriesResponse is returned by solicitarSerie.
type RequestSeriesResponse struct {
	Series        *Series      `json:"series"`
	ReturnCode    int          `json:"returnCode"`
	ReturnMessage string       `json:"returnMessage,omitempty"`
	ErrorList     []ErrorEntry `json:"errorList,omitempty"`
}

// ListSeriesRequest is the payload for listarSeries.
type ListSeriesRequest struct {
	TaxID string `json:"taxId"`
	Year  int    `json:"year,omitempty"`
}

// ListSeriesResponse is returned by listarSeries.
type ListSeriesResponse struct {
	SeriesList []Series `json:"seriesList"`
}

// ValidateDocumentRequest is the payload for validarDocumento, the
// consumer-side confirmation that a received document is genuine.
type ValidateDocumentRequest struct {
	TaxID       string  `json:"taxId"`
	IssuerTaxID string  `json:"issuerTaxId"`
	DocumentNo  string  `json:"documentNo"`
	GrossTotal  float64 `json:"grossTotal"`
}

// ValidateDocumentResponse is returned by validarDocumento.
type ValidateDocumentResponse struct {
	Valid         bool   `json:"valid"`
	ReturnCode    int    `json:"returnCode"`
	ReturnMessage string `json:"returnMessage,omitempty"`
}

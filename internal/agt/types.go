// Package agt defines the typed data model for the AGT e-facturação web
// service: submission envelopes, documents, lines and the request/response
// payloads of the remote operations.
//
// Payloads are decoded once at the system boundary into these types;
// validation, signing and transport all operate on them rather than on
// free-form maps.
package agt

import (
	"time"
)

// DocumentType is the AGT document type code.
type DocumentType string

const (
	DocTypeInvoice        DocumentType = "FT" // factura
	DocTypeInvoiceReceipt DocumentType = "FR" // factura-recibo
	DocTypeAdvanceInvoice DocumentType = "FA" // factura de adiantamento
	DocTypeCreditNote     DocumentType = "NC" // nota de crédito
	DocTypeDebitNote      DocumentType = "ND" // nota de débito
	DocTypePaymentAdvice  DocumentType = "AC" // aviso de cobrança
	DocTypeReceipt        DocumentType = "RC" // recibo
	DocTypeAdvanceReceipt DocumentType = "AR" // recibo de adiantamento
	DocTypeGlobalReceipt  DocumentType = "RG" // recibo global
)

// receiptTypes are the document types that carry a payment-receipt block
// instead of line items.
var receiptTypes = map[DocumentType]bool{
	DocTypeReceipt:        true,
	DocTypeAdvanceReceipt: true,
	DocTypeGlobalReceipt:  true,
}

// IsReceiptType reports whether documents of type t carry a payment receipt
// rather than line items.
func (t DocumentType) IsReceiptType() bool {
	return receiptTypes[t]
}

// IsValid reports whether t is one of the known AGT document type codes.
func (t DocumentType) IsValid() bool {
	switch t {
	case DocTypeInvoice, DocTypeInvoiceReceipt, DocTypeAdvanceInvoice,
		DocTypeCreditNote, DocTypeDebitNote, DocTypePaymentAdvice,
		DocTypeReceipt, DocTypeAdvanceReceipt, DocTypeGlobalReceipt:
		return true
	}
	return false
}

// DocumentStatus is the validation status of a document as reported by AGT.
type DocumentStatus string

const (
	StatusPending   DocumentStatus = "P" // submitted, awaiting validation
	StatusValidated DocumentStatus = "V" // accepted by AGT
	StatusRejected  DocumentStatus = "R" // rejected by AGT
	StatusAnnulled  DocumentStatus = "A" // annulled by the issuer
)

// SoftwareInfo identifies the invoicing software that produced a submission.
// AGT requires a certified product id on every envelope.
type SoftwareInfo struct {
	ProductID      string `json:"productId"`
	ProductVersion string `json:"productVersion"`
	CertificateNo  string `json:"certificateNo,omitempty"`
}

// Envelope is one submission batch sent to registarFactura.
//
// The Signature field is populated by the signing pipeline before
// transmission; callers must never set it themselves.
type Envelope struct {
	SubmissionID   string       `json:"submissionId"`
	TaxID          string       `json:"taxId"`
	SubmissionDate time.Time    `json:"submissionDate"`
	SoftwareInfo   SoftwareInfo `json:"softwareInfo"`
	Documents      []Document   `json:"documents"`
	Signature      string       `json:"signature,omitempty"`
}

// Document is one invoice/receipt/credit-note instance within an envelope.
//
// Exactly one of Lines (non-receipt types) or PaymentReceipt (receipt types)
// is populated, depending on Type. Credit and debit notes additionally carry
// a Reference to the document they amend.
type Document struct {
	DocumentNo     string             `json:"documentNo"`
	Type           DocumentType       `json:"documentType"`
	Status         DocumentStatus     `json:"status,omitempty"`
	IssueDate      time.Time          `json:"issueDate"`
	CustomerTaxID  string             `json:"customerTaxId,omitempty"`
	CustomerName   string             `json:"customerName,omitempty"`
	Lines          []Line             `json:"lines,omitempty"`
	PaymentReceipt *PaymentReceipt    `json:"paymentReceipt,omitempty"`
	Reference      *DocumentReference `json:"reference,omitempty"`
	Totals         *DocumentTotals    `json:"totals,omitempty"`
	Signature      string             `json:"signature,omitempty"`
}

// Line is a billed item on a non-receipt document.
type Line struct {
	LineNo      int     `json:"lineNo"`
	ProductCode string  `json:"productCode,omitempty"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`

	// BasePrice is the pre-discount unit price; when present it must not
	// exceed UnitPrice.
	BasePrice *float64 `json:"basePrice,omitempty"`

	// SettlementAmount is the line discount; when present it must be
	// non-negative and must not exceed the line total plus tax payable.
	SettlementAmount *float64 `json:"settlementAmount,omitempty"`

	Taxes []Tax `json:"taxes,omitempty"`
}

// Tax is one tax applied to a line (IVA, IS or IEC).
type Tax struct {
	Type       string  `json:"taxType"`
	Code       string  `json:"taxCode,omitempty"`
	Percentage float64 `json:"taxPercentage"`
	Amount     float64 `json:"taxAmount"`
}

// PaymentReceipt is the payment block carried by receipt-type documents in
// place of line items.
type PaymentReceipt struct {
	PaymentDate     time.Time        `json:"paymentDate"`
	PaymentMethod   string           `json:"paymentMethod,omitempty"`
	Amount          float64          `json:"amount"`
	SourceDocuments []SourceDocument `json:"sourceDocuments"`
}

// SourceDocument references a document settled by a receipt.
type SourceDocument struct {
	DocumentNo string  `json:"documentNo"`
	Amount     float64 `json:"amount"`
}

// DocumentReference names the prior document a credit or debit note amends.
type DocumentReference struct {
	DocumentNo string `json:"documentNo"`
	Reason     string `json:"reason,omitempty"`
}

// DocumentTotals carries the document amount summary. Net and Gross are
// pointers so the validator can distinguish absent from zero.
type DocumentTotals struct {
	Net        *float64 `json:"netTotal"`
	TaxPayable float64  `json:"taxPayable"`
	Gross      *float64 `json:"grossTotal"`

	Withholding *WithholdingTax     `json:"withholdingTax,omitempty"`
	Currency    *CurrencyConversion `json:"currency,omitempty"`
}

// WithholdingTax is the optional withholding block on document totals.
type WithholdingTax struct {
	Type   string  `json:"withholdingTaxType"`
	Amount float64 `json:"withholdingTaxAmount"`
}

// CurrencyConversion is the optional foreign-currency block on document
// totals. Amounts elsewhere in the document are always in AOA.
type CurrencyConversion struct {
	Code         string  `json:"currencyCode"`
	Amount       float64 `json:"currencyAmount"`
	ExchangeRate float64 `json:"exchangeRate"`
}

// ErrorEntry is a normalized (code, description) pair, either produced by the
// error translator or returned verbatim by the remote service.
type ErrorEntry struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

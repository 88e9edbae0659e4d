// Package backup persists the local mirror of remote document state.
//
// The store is both the read fallback when AGT is unavailable and the target
// of reconciliation after a successful remote fetch. It is the only resource
// shared across request handlers and is always accessed through the Store
// operations - this is the transactional boundary of the subsystem.
package backup

import (
	"fmt"
	"time"

	"github.com/efactura-ao/agt-bridge/internal/agt"
)

// Record is the durable mirror of a document/submission pair plus
// reconciliation metadata. Created on first local save, mutated on every
// successful reconciliation, never deleted except by explicit user action.
type Record struct {
	SubmissionID string `json:"submissionId,omitempty"`
	RequestID    string `json:"requestId,omitempty"`
	TaxID        string `json:"taxId"`
	DocumentNo   string `json:"documentNo"`

	Document agt.Document `json:"document"`

	// last known remote result
	ResultCode    string           `json:"resultCode,omitempty"`
	ResultMessage string           `json:"resultMessage,omitempty"`
	Messages      []agt.ErrorEntry `json:"messages,omitempty"`

	LastSyncAt time.Time `json:"lastSyncAt,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Key returns the composite identity a record is stored under.
func (r Record) Key() string {
	return fmt.Sprintf("%s/%s", r.TaxID, r.DocumentNo)
}

// DocumentKey builds the composite key for a tax id / document number pair.
func DocumentKey(taxID, documentNo string) string {
	return fmt.Sprintf("%s/%s", taxID, documentNo)
}

// Merge reconciles an incoming record from the remote authority against the
// existing local record.
//
// Fields the remote returned overwrite the local copy; fields it did not
// return are preserved. This matters because listarFacturas returns
// abbreviated records (no line detail) while consultarFactura returns full
// ones - a naive overwrite would let the abbreviated variant destroy
// previously fetched detail.
func Merge(existing, incoming Record) Record {
	merged := existing

	if incoming.SubmissionID != "" {
		merged.SubmissionID = incoming.SubmissionID
	}
	if incoming.RequestID != "" {
		merged.RequestID = incoming.RequestID
	}
	if incoming.ResultCode != "" {
		merged.ResultCode = incoming.ResultCode
	}
	if incoming.ResultMessage != "" {
		merged.ResultMessage = incoming.ResultMessage
	}
	if incoming.Messages != nil {
		merged.Messages = incoming.Messages
	}
	if !incoming.LastSyncAt.IsZero() {
		merged.LastSyncAt = incoming.LastSyncAt
	}

	merged.Document = mergeDocument(existing.Document, incoming.Document)

	return merged
}

func mergeDocument(existing, incoming agt.Document) agt.Document {
	merged := existing

	if incoming.DocumentNo != "" {
		merged.DocumentNo = incoming.DocumentNo
	}
	if incoming.Type != "" {
		merged.Type = incoming.Type
	}
	if incoming.Status != "" {
		merged.Status = incoming.Status
	}
	if !incoming.IssueDate.IsZero() {
		merged.IssueDate = incoming.IssueDate
	}
	if incoming.CustomerTaxID != "" {
		merged.CustomerTaxID = incoming.CustomerTaxID
	}
	if incoming.CustomerName != "" {
		merged.CustomerName = incoming.CustomerName
	}
	if len(incoming.Lines) > 0 {
		merged.Lines = incoming.Lines
	}
	if incoming.PaymentReceipt != nil {
		merged.PaymentReceipt = incoming.PaymentReceipt
	}
	if incoming.Reference != nil {
		merged.Reference = incoming.Reference
	}
	if incoming.Totals != nil {
		merged.Totals = incoming.Totals
	}
	if incoming.Signature != "" {
		merged.Signature = incoming.Signature
	}

	return merged
}

package agt

// validate.go implements the submission guardrails that run before an
// envelope is allowed to reach the transport layer.
//
// Rule classes run in order and short-circuit: structural checks first, then
// document-shape rules, credit-note references, per-line rules and finally
// totals. Within a class every violation is collected so the caller can
// surface the complete list for that class at once.

import "fmt"

// Violation codes returned in ErrorEntry.Code. Stable: the UI keys
// field-level messages off these.
const (
	ViolationEmptySubmission      = "EMPTY_SUBMISSION"
	ViolationMissingTaxID         = "MISSING_TAX_ID"
	ViolationMissingDocumentNo    = "MISSING_DOCUMENT_NO"
	ViolationUnknownDocumentType  = "UNKNOWN_DOCUMENT_TYPE"
	ViolationReceiptHasLines      = "RECEIPT_MUST_NOT_HAVE_LINES"
	ViolationReceiptNoSource      = "RECEIPT_REQUIRES_SOURCE_DOCUMENTS"
	ViolationMissingLines         = "DOCUMENT_REQUIRES_LINES"
	ViolationCreditNoteNoRef      = "CREDIT_NOTE_REQUIRES_REFERENCE"
	ViolationNegativeUnitPrice    = "NEGATIVE_UNIT_PRICE"
	ViolationNonPositiveQuantity  = "NON_POSITIVE_QUANTITY"
	ViolationNegativeSettlement   = "NEGATIVE_SETTLEMENT_AMOUNT"
	ViolationSettlementTooLarge   = "SETTLEMENT_EXCEEDS_LINE_TOTAL"
	ViolationBasePriceTooLarge    = "BASE_PRICE_EXCEEDS_UNIT_PRICE"
	ViolationMissingTotals        = "MISSING_TOTALS"
	ViolationIncompleteTotals     = "TOTALS_REQUIRE_NET_AND_GROSS"
)

// ValidateEnvelope applies the submission guardrails to an envelope.
//
// It returns nil when the envelope passes, or the complete list of
// violations from the first rule class that failed.
func ValidateEnvelope(env *Envelope) []ErrorEntry {
	for _, class := range []func(*Envelope) []ErrorEntry{
		validateStructure,
		validateDocumentShape,
		validateReferences,
		validateLines,
		validateTotals,
	} {
		if violations := class(env); len(violations) > 0 {
			return violations
		}
	}
	return nil
}

// validateStructure checks the envelope schema: structural failures
// short-circuit before any business guardrail runs.
func validateStructure(env *Envelope) []ErrorEntry {
	var violations []ErrorEntry

	if env.TaxID == "" {
		violations = append(violations, ErrorEntry{
			Code:        ViolationMissingTaxID,
			Description: "submission requires an issuer tax id",
		})
	}
	if len(env.Documents) == 0 {
		violations = append(violations, ErrorEntry{
			Code:        ViolationEmptySubmission,
			Description: "submission must contain at least one document",
		})
		return violations
	}
	for i, doc := range env.Documents {
		if doc.DocumentNo == "" {
			violations = append(violations, ErrorEntry{
				Code:        ViolationMissingDocumentNo,
				Description: fmt.Sprintf("document %d: document number is required", i+1),
			})
		}
		if !doc.Type.IsValid() {
			violations = append(violations, ErrorEntry{
				Code:        ViolationUnknownDocumentType,
				Description: fmt.Sprintf("document %s: unknown document type %q", docLabel(doc, i), doc.Type),
			})
		}
	}
	return violations
}

// validateDocumentShape enforces the lines-vs-payment-receipt rule: receipt
// types carry a payment receipt with at least one source document and no
// lines; every other type carries at least one line.
func validateDocumentShape(env *Envelope) []ErrorEntry {
	var violations []ErrorEntry

	for i, doc := range env.Documents {
		if doc.Type.IsReceiptType() {
			if len(doc.Lines) > 0 {
				violations = append(violations, ErrorEntry{
					Code:        ViolationReceiptHasLines,
					Description: fmt.Sprintf("document %s: receipts must not have lines", docLabel(doc, i)),
				})
			}
			if doc.PaymentReceipt == nil || len(doc.PaymentReceipt.SourceDocuments) == 0 {
				violations = append(violations, ErrorEntry{
					Code:        ViolationReceiptNoSource,
					Description: fmt.Sprintf("document %s: receipts require a payment block with at least one source document", docLabel(doc, i)),
				})
			}
			continue
		}
		if len(doc.Lines) == 0 {
			violations = append(violations, ErrorEntry{
				Code:        ViolationMissingLines,
				Description: fmt.Sprintf("document %s: at least one line item is required", docLabel(doc, i)),
			})
		}
	}
	return violations
}

// validateReferences requires credit notes to name the document they credit.
func validateReferences(env *Envelope) []ErrorEntry {
	var violations []ErrorEntry

	for i, doc := range env.Documents {
		if doc.Type != DocTypeCreditNote {
			continue
		}
		if doc.Reference == nil || doc.Reference.DocumentNo == "" {
			violations = append(violations, ErrorEntry{
				Code:        ViolationCreditNoteNoRef,
				Description: fmt.Sprintf("document %s: credit note requires a reference to the credited document", docLabel(doc, i)),
			})
		}
	}
	return violations
}

// validateLines applies the per-line amount guardrails.
func validateLines(env *Envelope) []ErrorEntry {
	var violations []ErrorEntry

	for i, doc := range env.Documents {
		taxPayable := 0.0
		if doc.Totals != nil {
			taxPayable = doc.Totals.TaxPayable
		}
		for _, line := range doc.Lines {
			label := fmt.Sprintf("document %s line %d", docLabel(doc, i), line.LineNo)

			if line.Quantity <= 0 {
				violations = append(violations, ErrorEntry{
					Code:        ViolationNonPositiveQuantity,
					Description: fmt.Sprintf("%s: quantity must be greater than zero", label),
				})
			}
			if line.UnitPrice < 0 {
				violations = append(violations, ErrorEntry{
					Code:        ViolationNegativeUnitPrice,
					Description: fmt.Sprintf("%s: unit price must not be negative", label),
				})
			}
			if line.BasePrice != nil && *line.BasePrice > line.UnitPrice {
				violations = append(violations, ErrorEntry{
					Code:        ViolationBasePriceTooLarge,
					Description: fmt.Sprintf("%s: base price must not exceed unit price", label),
				})
			}
			if line.SettlementAmount != nil {
				if *line.SettlementAmount < 0 {
					violations = append(violations, ErrorEntry{
						Code:        ViolationNegativeSettlement,
						Description: fmt.Sprintf("%s: settlement amount must not be negative", label),
					})
				} else if *line.SettlementAmount > line.Quantity*line.UnitPrice+taxPayable {
					violations = append(violations, ErrorEntry{
						Code:        ViolationSettlementTooLarge,
						Description: fmt.Sprintf("%s: settlement amount exceeds line total plus tax payable", label),
					})
				}
			}
		}
	}
	return violations
}

// validateTotals requires a totals block with both net and gross amounts.
func validateTotals(env *Envelope) []ErrorEntry {
	var violations []ErrorEntry

	for i, doc := range env.Documents {
		if doc.Totals == nil {
			violations = append(violations, ErrorEntry{
				Code:        ViolationMissingTotals,
				Description: fmt.Sprintf("document %s: totals block is required", docLabel(doc, i)),
			})
			continue
		}
		if doc.Totals.Net == nil || doc.Totals.Gross == nil {
			violations = append(violations, ErrorEntry{
				Code:        ViolationIncompleteTotals,
				Description: fmt.Sprintf("document %s: totals must include both net and gross amounts", docLabel(doc, i)),
			})
		}
	}
	return violations
}

func docLabel(doc Document, index int) string {
	if doc.DocumentNo != "" {
		return doc.DocumentNo
	}
	return fmt.Sprintf("#%d", index+1)
}

package reconcile

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerlink/backend/internal/domain/shared"
)

// DocType identifies the kind of ERP document a record mirrors
type DocType string

const (
	DocTypeGoodsReceipt  DocType = "GOODS_RECEIPT"
	DocTypeStockTransfer DocType = "STOCK_TRANSFER"
	DocTypeDelivery      DocType = "DELIVERY"
)

// TrackedDocTypes is the set of ERP document types reconciliation scans
var TrackedDocTypes = []DocType{DocTypeGoodsReceipt, DocTypeStockTransfer, DocTypeDelivery}

// ParseDocType validates a document type string from the API surface
func ParseDocType(s string) (DocType, error) {
	switch DocType(s) {
	case DocTypeGoodsReceipt, DocTypeStockTransfer, DocTypeDelivery:
		return DocType(s), nil
	}
	return "", shared.NewDomainError("INVALID_INPUT", "unknown document type: "+s)
}

// DocStatus is the review state of a discovered external document
type DocStatus string

const (
	DocStatusPendingReview DocStatus = "PENDING_REVIEW"
	DocStatusAcknowledged  DocStatus = "ACKNOWLEDGED"
	DocStatusImported      DocStatus = "IMPORTED"
	DocStatusIgnored       DocStatus = "IGNORED"
)

// ErrDocumentImported is returned for any transition attempted on an
// imported document; IMPORTED is terminal and there is no unimport.
var ErrDocumentImported = shared.NewDomainError("INVALID_STATE", "document has been imported; imports are final")

// DocumentLine is one line item as reported by the ERP
type DocumentLine struct {
	LineNum         int
	ProductCode     string
	Description     string
	BatchNumber     string
	Quantity        decimal.Decimal
	WarehouseCode   string
	ToWarehouseCode string
	ExpiryDate      *time.Time
}

// ExternalDocument mirrors an ERP document that this application did not
// create, as discovered by a reconciliation scan. One record exists per
// unique (ExternalID, DocType); rescans upsert idempotently.
type ExternalDocument struct {
	shared.BaseAggregateRoot
	ExternalID     string
	DocType        DocType
	DocNumber      string
	DocDate        time.Time
	PartnerCode    string
	Remarks        string
	Lines          []DocumentLine
	Status         DocStatus
	ReviewedBy     string
	ReviewNote     string
	DiscoveredByID *uuid.UUID
	// OperationID back-references the local operation created on import
	OperationID *uuid.UUID
}

// NewExternalDocument creates a pending-review record for an ERP document
func NewExternalDocument(externalID string, docType DocType, docNumber string, docDate time.Time, lines []DocumentLine) (*ExternalDocument, error) {
	if externalID == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "external document requires the ERP document id")
	}
	if len(lines) == 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "external document requires at least one line")
	}
	return &ExternalDocument{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ExternalID:        externalID,
		DocType:           docType,
		DocNumber:         docNumber,
		DocDate:           docDate,
		Lines:             lines,
		Status:            DocStatusPendingReview,
	}, nil
}

// Acknowledge marks the document as seen by a reviewer without importing it
func (d *ExternalDocument) Acknowledge(reviewer, note string) error {
	switch d.Status {
	case DocStatusImported:
		return ErrDocumentImported
	case DocStatusIgnored:
		return shared.NewDomainError("INVALID_STATE", "document has been ignored")
	}
	d.Status = DocStatusAcknowledged
	d.ReviewedBy = reviewer
	d.ReviewNote = note
	d.Touch()
	return nil
}

// Ignore marks the document as deliberately not imported
func (d *ExternalDocument) Ignore(reviewer, note string) error {
	if d.Status == DocStatusImported {
		return ErrDocumentImported
	}
	d.Status = DocStatusIgnored
	d.ReviewedBy = reviewer
	d.ReviewNote = note
	d.Touch()
	return nil
}

// MarkImported records the terminal import with a back-reference to the
// locally created operation
func (d *ExternalDocument) MarkImported(reviewer string, operationID uuid.UUID) error {
	switch d.Status {
	case DocStatusImported:
		return ErrDocumentImported
	case DocStatusIgnored:
		return shared.NewDomainError("INVALID_STATE", "ignored documents cannot be imported")
	}
	d.Status = DocStatusImported
	d.ReviewedBy = reviewer
	d.OperationID = &operationID
	d.Touch()
	return nil
}

// Importable reports whether the document is still open for import
func (d *ExternalDocument) Importable() bool {
	return d.Status == DocStatusPendingReview || d.Status == DocStatusAcknowledged
}

// CreatesBatch reports whether importing this document would create stock of
// the given (product code, batch) at some location. Used for one-hop
// dependency detection: a transfer or delivery whose source batch is missing
// may be unblocked by importing a pending receipt first.
func (d *ExternalDocument) CreatesBatch(productCode, batchNumber string) bool {
	if d.DocType != DocTypeGoodsReceipt && d.DocType != DocTypeStockTransfer {
		return false
	}
	for _, line := range d.Lines {
		if line.ProductCode == productCode && line.BatchNumber == batchNumber {
			return true
		}
	}
	return false
}

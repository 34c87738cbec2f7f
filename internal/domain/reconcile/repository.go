package reconcile

import (
	"context"

	"github.com/google/uuid"

	"github.com/ledgerlink/backend/internal/domain/shared"
)

// DocumentFilter narrows external document listings
type DocumentFilter struct {
	shared.Filter
	DocType *DocType
	Status  *DocStatus
}

// ExternalDocumentRepository persists discovered ERP documents.
// Upsert must be idempotent on (ExternalID, DocType): inserting a document
// that already exists leaves the stored record untouched and reports
// created=false, so rescans over overlapping windows never duplicate or
// reset review state.
type ExternalDocumentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*ExternalDocument, error)
	FindByExternalID(ctx context.Context, externalID string, docType DocType) (*ExternalDocument, error)
	FindAll(ctx context.Context, filter DocumentFilter) (*shared.Paginated[*ExternalDocument], error)
	FindPendingByProductBatch(ctx context.Context, productCode, batchNumber string) ([]*ExternalDocument, error)
	CountByStatus(ctx context.Context) (map[DocStatus]int64, error)
	Upsert(ctx context.Context, doc *ExternalDocument) (created bool, err error)
	Save(ctx context.Context, doc *ExternalDocument) error
	// ClaimImported writes the document's terminal IMPORTED state, but only
	// if the stored row is still open for review. When another reviewer got
	// there first the write matches nothing and
	// shared.ErrConcurrencyConflict is returned.
	ClaimImported(ctx context.Context, doc *ExternalDocument) error
}

// RunRepository persists reconciliation scan records
type RunRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Run, error)
	FindAll(ctx context.Context, filter shared.Filter) (*shared.Paginated[*Run], error)
	// FindLatestCompleted returns the most recent completed run, or
	// shared.ErrNotFound when no scan has ever completed.
	FindLatestCompleted(ctx context.Context) (*Run, error)
	Save(ctx context.Context, run *Run) error
}

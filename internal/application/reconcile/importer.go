package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appledger "github.com/ledgerlink/backend/internal/application/ledger"
	"github.com/ledgerlink/backend/internal/domain/catalog"
	"github.com/ledgerlink/backend/internal/domain/ledger"
	"github.com/ledgerlink/backend/internal/domain/operation"
	"github.com/ledgerlink/backend/internal/domain/reconcile"
	"github.com/ledgerlink/backend/internal/domain/shared"
	"github.com/ledgerlink/backend/internal/infrastructure/telemetry"
)

// ErrDocumentNotImportable is returned when a reviewed-off document is
// submitted for import
var ErrDocumentNotImportable = shared.NewDomainError("INVALID_STATE", "document is not open for import")

// ImportBlockedError reports that pre-import validation failed; the result
// carries the per-line reasons and any dependency hint.
type ImportBlockedError struct {
	Result *ValidationResult
}

func (e *ImportBlockedError) Error() string {
	return fmt.Sprintf("document failed import validation with %d error(s)", len(e.Result.Errors))
}

// ImportService reviews and imports external documents discovered by
// reconciliation scans. Importing replays the ERP document through the
// batch ledger and records an externally sourced operation; the ERP is
// never posted to, it already holds the document.
type ImportService struct {
	scope       appledger.TransactionScope
	batchLedger *appledger.BatchLedgerService
	docs        reconcile.ExternalDocumentRepository
	products    catalog.ProductRepository
	locations   catalog.LocationRepository
	lots        ledger.LotRepository
	logger      *zap.Logger
	metrics     *telemetry.BusinessMetrics
}

// SetBusinessMetrics sets the business metrics collector. Recording stays a
// no-op until one is wired.
func (s *ImportService) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.metrics = bm
}

// NewImportService creates an import service
func NewImportService(
	scope appledger.TransactionScope,
	batchLedger *appledger.BatchLedgerService,
	docs reconcile.ExternalDocumentRepository,
	products catalog.ProductRepository,
	locations catalog.LocationRepository,
	lots ledger.LotRepository,
	logger *zap.Logger,
) *ImportService {
	return &ImportService{
		scope:       scope,
		batchLedger: batchLedger,
		docs:        docs,
		products:    products,
		locations:   locations,
		lots:        lots,
		logger:      logger.Named("document_import"),
	}
}

// Validate dry-runs the import of a document: every line is resolved
// against the catalog and the ledger and the movements that an import
// would book are previewed. Nothing is written.
func (s *ImportService) Validate(ctx context.Context, docID uuid.UUID) (*ValidationResult, error) {
	doc, err := s.docs.FindByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if !doc.Importable() {
		return nil, ErrDocumentNotImportable
	}
	result, _, err := s.validate(ctx, doc)
	return result, err
}

// Import replays a discovered document into the local ledger. The document
// is re-validated first; the ledger movements, the operation record and the
// document's terminal IMPORTED state commit in one transaction. Imports are
// one-way: there is no unimport.
func (s *ImportService) Import(ctx context.Context, docID uuid.UUID, actor string) (*operation.Operation, error) {
	doc, err := s.docs.FindByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if !doc.Importable() {
		return nil, ErrDocumentNotImportable
	}

	result, movements, err := s.validate(ctx, doc)
	if err != nil {
		return nil, err
	}
	if !result.CanImport {
		return nil, &ImportBlockedError{Result: result}
	}

	variant, err := variantFor(doc.DocType)
	if err != nil {
		return nil, err
	}

	op, err := operation.NewExternallySourced(variant.kind(), actor, operationLines(movements), doc.ExternalID, doc.DocNumber)
	if err != nil {
		return nil, err
	}
	op.Reference = doc.Remarks
	setEndpoints(op, movements)

	movementCtx := fmt.Sprintf("IMPORT %s (ERP no. %s)", doc.DocType, doc.DocNumber)
	err = s.scope.Execute(ctx, func(repos appledger.TransactionalRepositories) error {
		for _, m := range movements {
			in := appledger.MovementInput{
				ProductID:   m.product.ID,
				BatchNumber: m.line.BatchNumber,
				Quantity:    m.line.Quantity,
				ExpiryDate:  m.line.ExpiryDate,
				Actor:       actor,
				Context:     movementCtx,
			}
			if err := variant.book(ctx, s, repos, m, in); err != nil {
				return err
			}
		}
		if err := repos.Operations().Create(ctx, op); err != nil {
			return err
		}
		if err := doc.MarkImported(actor, op.ID); err != nil {
			return err
		}
		// Conditional write; a concurrent import that won the race rolls
		// this whole transaction back instead of being overwritten.
		return repos.Documents().ClaimImported(ctx, doc)
	})
	if err != nil {
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			return nil, ErrDocumentNotImportable
		}
		return nil, err
	}

	s.logger.Info("external document imported",
		zap.String("document_id", doc.ID.String()),
		zap.String("doc_type", string(doc.DocType)),
		zap.String("external_id", doc.ExternalID),
		zap.String("operation_id", op.ID.String()),
		zap.String("actor", actor))
	if s.metrics != nil {
		s.metrics.RecordDocumentImported(ctx, string(doc.DocType))
	}
	return op, nil
}

// Acknowledge marks a document as reviewed without importing it
func (s *ImportService) Acknowledge(ctx context.Context, docID uuid.UUID, reviewer, note string) (*reconcile.ExternalDocument, error) {
	return s.review(ctx, docID, func(doc *reconcile.ExternalDocument) error {
		return doc.Acknowledge(reviewer, note)
	})
}

// Ignore marks a document as deliberately not imported
func (s *ImportService) Ignore(ctx context.Context, docID uuid.UUID, reviewer, note string) (*reconcile.ExternalDocument, error) {
	return s.review(ctx, docID, func(doc *reconcile.ExternalDocument) error {
		return doc.Ignore(reviewer, note)
	})
}

func (s *ImportService) review(ctx context.Context, docID uuid.UUID, transition func(*reconcile.ExternalDocument) error) (*reconcile.ExternalDocument, error) {
	doc, err := s.docs.FindByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if err := transition(doc); err != nil {
		return nil, err
	}
	if err := s.docs.Save(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocument returns one discovered document
func (s *ImportService) GetDocument(ctx context.Context, docID uuid.UUID) (*reconcile.ExternalDocument, error) {
	return s.docs.FindByID(ctx, docID)
}

// GetDocuments lists discovered documents
func (s *ImportService) GetDocuments(ctx context.Context, filter reconcile.DocumentFilter) (*shared.Paginated[*reconcile.ExternalDocument], error) {
	return s.docs.FindAll(ctx, filter)
}

// PendingCount reports how many documents await review, per status
func (s *ImportService) PendingCount(ctx context.Context) (map[reconcile.DocStatus]int64, error) {
	return s.docs.CountByStatus(ctx)
}

func operationLines(movements []*plannedMovement) []operation.Line {
	lines := make([]operation.Line, 0, len(movements))
	for _, m := range movements {
		lines = append(lines, operation.Line{
			ProductID:   m.product.ID,
			BatchNumber: m.line.BatchNumber,
			Quantity:    m.line.Quantity,
			ExpiryDate:  m.line.ExpiryDate,
		})
	}
	return lines
}

// setEndpoints records the document-level source and destination on the
// operation. Lines of one ERP document share their warehouses, so the
// first movement is representative.
func setEndpoints(op *operation.Operation, movements []*plannedMovement) {
	if len(movements) == 0 {
		return
	}
	first := movements[0]
	if first.source != nil {
		id := first.source.ID
		op.SourceLocationID = &id
	}
	if first.dest != nil {
		id := first.dest.ID
		op.DestinationLocationID = &id
	}
}

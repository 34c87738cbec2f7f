package saga

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	appledger "github.com/ledgerlink/backend/internal/application/ledger"
	"github.com/ledgerlink/backend/internal/domain/catalog"
	"github.com/ledgerlink/backend/internal/domain/ledger"
	"github.com/ledgerlink/backend/internal/domain/operation"
	"github.com/ledgerlink/backend/internal/domain/shared"
	"github.com/ledgerlink/backend/internal/infrastructure/erp"
	"github.com/ledgerlink/backend/internal/infrastructure/telemetry"
)

// ExternalPoster is the slice of the ERP client the coordinator posts through
type ExternalPoster interface {
	PostGoodsReceipt(ctx context.Context, doc *erp.Document) (erp.PostResult, error)
	PostStockTransfer(ctx context.Context, doc *erp.Document) (erp.PostResult, error)
	PostDelivery(ctx context.Context, doc *erp.Document) (erp.PostResult, error)
}

// ManualReconciliationError reports that the ERP accepted a document but the
// local commit failed afterwards: the ERP holds a document with no local
// counterpart. The coordinator never re-posts in this state, because a
// second posting would duplicate the document; an operator must reconcile.
type ManualReconciliationError struct {
	ExternalID     string
	ExternalNumber string
	Err            error
}

func (e *ManualReconciliationError) Error() string {
	return fmt.Sprintf("local commit failed after external document %s (no. %s) was created; manual reconciliation required: %v",
		e.ExternalID, e.ExternalNumber, e.Err)
}

func (e *ManualReconciliationError) Unwrap() error { return e.Err }

// RequiresManualReconciliation marks the error for callers that dispatch on
// behavior rather than type
func (e *ManualReconciliationError) RequiresManualReconciliation() bool { return true }

// SubmitLine is one product movement in a submitted operation. BatchNumber
// is required for receipts; for consumptions and transfers it may be empty,
// in which case the draw is planned FEFO during validation.
type SubmitLine struct {
	ProductID   uuid.UUID
	BatchNumber string
	Quantity    decimal.Decimal
	ExpiryDate  *time.Time
}

// ReceiptInput describes a stock receipt to submit
type ReceiptInput struct {
	DestinationLocationID uuid.UUID
	Lines                 []SubmitLine
	Actor                 string
	Reference             string
}

// TransferInput describes a location-to-location transfer to submit
type TransferInput struct {
	SourceLocationID      uuid.UUID
	DestinationLocationID uuid.UUID
	Lines                 []SubmitLine
	Actor                 string
	Reference             string
}

// ConsumptionInput describes a consumption delivery to submit
type ConsumptionInput struct {
	SourceLocationID uuid.UUID
	Lines            []SubmitLine
	Actor            string
	Reference        string
}

// DualWriteCoordinator drives the external-first dual write: validate read
// only, post to the ERP exactly once, then commit the ledger mutation and
// the operation record in one local transaction. The local ledger never
// shows a movement the ERP did not agree to.
type DualWriteCoordinator struct {
	scope         appledger.TransactionScope
	batchLedger   *appledger.BatchLedgerService
	operations    operation.Repository
	products      catalog.ProductRepository
	locations     catalog.LocationRepository
	poster        ExternalPoster
	commitTimeout time.Duration
	logger        *zap.Logger
	metrics       *telemetry.BusinessMetrics
}

// SetBusinessMetrics sets the business metrics collector. Recording stays a
// no-op until one is wired.
func (c *DualWriteCoordinator) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	c.metrics = bm
}

// NewDualWriteCoordinator creates a new DualWriteCoordinator
func NewDualWriteCoordinator(
	scope appledger.TransactionScope,
	batchLedger *appledger.BatchLedgerService,
	operations operation.Repository,
	products catalog.ProductRepository,
	locations catalog.LocationRepository,
	poster ExternalPoster,
	commitTimeout time.Duration,
	logger *zap.Logger,
) *DualWriteCoordinator {
	if commitTimeout <= 0 {
		commitTimeout = 10 * time.Second
	}
	return &DualWriteCoordinator{
		scope:         scope,
		batchLedger:   batchLedger,
		operations:    operations,
		products:      products,
		locations:     locations,
		poster:        poster,
		commitTimeout: commitTimeout,
		logger:        logger.Named("dual_write"),
	}
}

// SubmitReceipt validates, posts a goods receipt to the ERP, then books it
func (c *DualWriteCoordinator) SubmitReceipt(ctx context.Context, in ReceiptInput) (*operation.Operation, error) {
	dest, err := c.resolveLocation(ctx, in.DestinationLocationID)
	if err != nil {
		return nil, err
	}
	resolved, err := c.resolveLines(ctx, in.Lines, true)
	if err != nil {
		return nil, err
	}

	op, err := operation.New(operation.KindReceipt, in.Actor, toOperationLines(resolved))
	if err != nil {
		return nil, err
	}
	op.DestinationLocationID = &in.DestinationLocationID
	op.Reference = in.Reference

	doc := &erp.Document{
		DocDate:   time.Now().Format("2006-01-02"),
		Comments:  in.Reference,
		Reference: op.ID.String(),
	}
	for _, l := range resolved {
		doc.DocumentLines = append(doc.DocumentLines, erp.DocumentLine{
			ItemCode:      l.product.Code,
			Quantity:      l.Quantity,
			WarehouseCode: dest.WarehouseCode,
			BatchNumbers:  batchAllocations(l.BatchNumber, l.Quantity, l.ExpiryDate),
		})
	}

	return c.postAndCommit(ctx, op, func(pctx context.Context) (erp.PostResult, error) {
		return c.poster.PostGoodsReceipt(pctx, doc)
	}, func(cctx context.Context, repos appledger.TransactionalRepositories) error {
		for _, l := range resolved {
			if _, err := c.batchLedger.ApplyReceipt(cctx, repos, appledger.MovementInput{
				ProductID:   l.ProductID,
				LocationID:  in.DestinationLocationID,
				BatchNumber: l.BatchNumber,
				Quantity:    l.Quantity,
				ExpiryDate:  l.ExpiryDate,
				Actor:       in.Actor,
				Context:     movementContext(op),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// SubmitTransfer validates, posts a stock transfer to the ERP, then books
// the outbound and inbound legs atomically
func (c *DualWriteCoordinator) SubmitTransfer(ctx context.Context, in TransferInput) (*operation.Operation, error) {
	source, err := c.resolveLocation(ctx, in.SourceLocationID)
	if err != nil {
		return nil, err
	}
	dest, err := c.resolveLocation(ctx, in.DestinationLocationID)
	if err != nil {
		return nil, err
	}
	resolved, err := c.resolveOutboundLines(ctx, in.Lines, in.SourceLocationID)
	if err != nil {
		return nil, err
	}

	op, err := operation.New(operation.KindTransfer, in.Actor, toOperationLines(resolved))
	if err != nil {
		return nil, err
	}
	op.SourceLocationID = &in.SourceLocationID
	op.DestinationLocationID = &in.DestinationLocationID
	op.Reference = in.Reference

	doc := &erp.Document{
		DocDate:   time.Now().Format("2006-01-02"),
		Comments:  in.Reference,
		Reference: op.ID.String(),
	}
	for _, l := range resolved {
		doc.DocumentLines = append(doc.DocumentLines, erp.DocumentLine{
			ItemCode:          l.product.Code,
			Quantity:          l.Quantity,
			WarehouseCode:     dest.WarehouseCode,
			FromWarehouseCode: source.WarehouseCode,
			BatchNumbers:      batchAllocations(l.BatchNumber, l.Quantity, l.ExpiryDate),
		})
	}

	return c.postAndCommit(ctx, op, func(pctx context.Context) (erp.PostResult, error) {
		return c.poster.PostStockTransfer(pctx, doc)
	}, func(cctx context.Context, repos appledger.TransactionalRepositories) error {
		for _, l := range resolved {
			if _, err := c.batchLedger.ApplyTransferOut(cctx, repos, appledger.MovementInput{
				ProductID:   l.ProductID,
				LocationID:  in.SourceLocationID,
				BatchNumber: l.BatchNumber,
				Quantity:    l.Quantity,
				Actor:       in.Actor,
				Context:     movementContext(op),
			}); err != nil {
				return err
			}
			if _, err := c.batchLedger.ApplyTransferIn(cctx, repos, appledger.MovementInput{
				ProductID:   l.ProductID,
				LocationID:  in.DestinationLocationID,
				BatchNumber: l.BatchNumber,
				Quantity:    l.Quantity,
				ExpiryDate:  l.ExpiryDate,
				Actor:       in.Actor,
				Context:     movementContext(op),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// SubmitConsumption validates, posts a delivery to the ERP, then books the
// consumption against the planned lots
func (c *DualWriteCoordinator) SubmitConsumption(ctx context.Context, in ConsumptionInput) (*operation.Operation, error) {
	source, err := c.resolveLocation(ctx, in.SourceLocationID)
	if err != nil {
		return nil, err
	}
	resolved, err := c.resolveOutboundLines(ctx, in.Lines, in.SourceLocationID)
	if err != nil {
		return nil, err
	}

	op, err := operation.New(operation.KindConsumption, in.Actor, toOperationLines(resolved))
	if err != nil {
		return nil, err
	}
	op.SourceLocationID = &in.SourceLocationID
	op.Reference = in.Reference

	doc := &erp.Document{
		CardCode:  source.CounterpartCode,
		DocDate:   time.Now().Format("2006-01-02"),
		Comments:  in.Reference,
		Reference: op.ID.String(),
	}
	for _, l := range resolved {
		doc.DocumentLines = append(doc.DocumentLines, erp.DocumentLine{
			ItemCode:      l.product.Code,
			Quantity:      l.Quantity,
			WarehouseCode: source.WarehouseCode,
			BatchNumbers:  batchAllocations(l.BatchNumber, l.Quantity, l.ExpiryDate),
		})
	}

	return c.postAndCommit(ctx, op, func(pctx context.Context) (erp.PostResult, error) {
		return c.poster.PostDelivery(pctx, doc)
	}, func(cctx context.Context, repos appledger.TransactionalRepositories) error {
		for _, l := range resolved {
			if _, err := c.batchLedger.ApplyConsumption(cctx, repos, appledger.MovementInput{
				ProductID:   l.ProductID,
				LocationID:  in.SourceLocationID,
				BatchNumber: l.BatchNumber,
				Quantity:    l.Quantity,
				Actor:       in.Actor,
				Context:     movementContext(op),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// postAndCommit runs the external-first tail of every submit: post once,
// then commit locally on a detached context so caller cancellation cannot
// split the dual write after the ERP already accepted the document.
func (c *DualWriteCoordinator) postAndCommit(
	ctx context.Context,
	op *operation.Operation,
	post func(context.Context) (erp.PostResult, error),
	book func(context.Context, appledger.TransactionalRepositories) error,
) (*operation.Operation, error) {
	result, err := post(ctx)
	if err != nil {
		// Abandoned in full: a failed post writes nothing locally. The
		// error keeps its erp sentinel so the caller can tell transient
		// failures (resubmit) from rejections.
		c.logger.Warn("external post failed; submission abandoned",
			zap.String("kind", string(op.Kind)),
			zap.Bool("retryable", erp.Retryable(err)),
			zap.Error(err),
		)
		if c.metrics != nil {
			c.metrics.RecordSyncCommit(ctx, string(op.Kind), telemetry.SyncOutcomeAbandoned)
		}
		return nil, err
	}

	op.CompleteSync(result.ExternalID, result.ExternalNumber)

	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.commitTimeout)
	defer cancel()

	err = c.scope.Execute(commitCtx, func(repos appledger.TransactionalRepositories) error {
		if err := book(commitCtx, repos); err != nil {
			return err
		}
		return repos.Operations().Create(commitCtx, op)
	})
	if err != nil {
		c.logger.Error("local commit failed after external post; manual reconciliation required",
			zap.String("operation_id", op.ID.String()),
			zap.String("external_id", result.ExternalID),
			zap.String("external_number", result.ExternalNumber),
			zap.Error(err),
		)
		return nil, &ManualReconciliationError{
			ExternalID:     result.ExternalID,
			ExternalNumber: result.ExternalNumber,
			Err:            err,
		}
	}

	c.logger.Info("operation committed",
		zap.String("operation_id", op.ID.String()),
		zap.String("kind", string(op.Kind)),
		zap.String("external_id", result.ExternalID),
	)
	if c.metrics != nil {
		c.metrics.RecordSyncCommit(ctx, string(op.Kind), telemetry.SyncOutcomeCommitted)
	}
	return op, nil
}

// RetrySync re-drives the external posting of an operation whose sync is
// FAILED or UNSYNCED. The claim is a conditional state transition, so of
// two concurrent retries exactly one proceeds.
func (c *DualWriteCoordinator) RetrySync(ctx context.Context, id uuid.UUID) (*operation.Operation, error) {
	op, err := c.operations.ClaimForSync(ctx, id)
	if err != nil {
		return nil, err
	}

	post, book, err := c.rebuild(ctx, op)
	if err != nil {
		// Claim is held; release it as a failure so the operation stays
		// retryable after the underlying data is fixed
		op.FailSync(err.Error())
		if saveErr := c.operations.Save(context.WithoutCancel(ctx), op); saveErr != nil {
			c.logger.Error("failed to release sync claim", zap.String("operation_id", op.ID.String()), zap.Error(saveErr))
		}
		return nil, err
	}

	result, err := post(ctx)
	if err != nil {
		op.FailSync(err.Error())
		if saveErr := c.operations.Save(context.WithoutCancel(ctx), op); saveErr != nil {
			c.logger.Error("failed to record sync failure", zap.String("operation_id", op.ID.String()), zap.Error(saveErr))
		}
		return op, err
	}

	op.CompleteSync(result.ExternalID, result.ExternalNumber)

	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.commitTimeout)
	defer cancel()

	err = c.scope.Execute(commitCtx, func(repos appledger.TransactionalRepositories) error {
		if err := book(commitCtx, repos); err != nil {
			return err
		}
		return repos.Operations().Save(commitCtx, op)
	})
	if err != nil {
		// The ERP document exists; record the reference outside the failed
		// transaction so the operator can find it
		if saveErr := c.operations.Save(commitCtx, op); saveErr != nil {
			c.logger.Error("failed to record external reference after commit failure",
				zap.String("operation_id", op.ID.String()), zap.Error(saveErr))
		}
		return nil, &ManualReconciliationError{
			ExternalID:     result.ExternalID,
			ExternalNumber: result.ExternalNumber,
			Err:            err,
		}
	}

	c.logger.Info("operation sync retried successfully",
		zap.String("operation_id", op.ID.String()),
		zap.String("external_id", result.ExternalID),
	)
	return op, nil
}

// rebuild reconstructs the ERP payload and the ledger booking for a claimed
// operation from its persisted record
func (c *DualWriteCoordinator) rebuild(ctx context.Context, op *operation.Operation) (
	func(context.Context) (erp.PostResult, error),
	func(context.Context, appledger.TransactionalRepositories) error,
	error,
) {
	doc := &erp.Document{
		DocDate:   op.OccurredAt.Format("2006-01-02"),
		Comments:  op.Reference,
		Reference: op.ID.String(),
	}

	var source, dest *catalog.Location
	var err error
	if op.SourceLocationID != nil {
		if source, err = c.resolveLocation(ctx, *op.SourceLocationID); err != nil {
			return nil, nil, err
		}
	}
	if op.DestinationLocationID != nil {
		if dest, err = c.resolveLocation(ctx, *op.DestinationLocationID); err != nil {
			return nil, nil, err
		}
	}

	for _, l := range op.Lines {
		product, err := c.products.FindByID(ctx, l.ProductID)
		if err != nil {
			return nil, nil, err
		}
		line := erp.DocumentLine{
			ItemCode:     product.Code,
			Quantity:     l.Quantity,
			BatchNumbers: batchAllocations(l.BatchNumber, l.Quantity, l.ExpiryDate),
		}
		switch op.Kind {
		case operation.KindReceipt:
			line.WarehouseCode = dest.WarehouseCode
		case operation.KindTransfer:
			line.WarehouseCode = dest.WarehouseCode
			line.FromWarehouseCode = source.WarehouseCode
		case operation.KindConsumption:
			line.WarehouseCode = source.WarehouseCode
		}
		doc.DocumentLines = append(doc.DocumentLines, line)
	}
	if op.Kind == operation.KindConsumption && source != nil {
		doc.CardCode = source.CounterpartCode
	}

	post := func(pctx context.Context) (erp.PostResult, error) {
		switch op.Kind {
		case operation.KindReceipt:
			return c.poster.PostGoodsReceipt(pctx, doc)
		case operation.KindTransfer:
			return c.poster.PostStockTransfer(pctx, doc)
		case operation.KindConsumption:
			return c.poster.PostDelivery(pctx, doc)
		}
		return erp.PostResult{}, shared.NewDomainError("INVALID_STATE", "unknown operation kind")
	}

	book := func(cctx context.Context, repos appledger.TransactionalRepositories) error {
		for _, l := range op.Lines {
			switch op.Kind {
			case operation.KindReceipt:
				if _, err := c.batchLedger.ApplyReceipt(cctx, repos, appledger.MovementInput{
					ProductID:   l.ProductID,
					LocationID:  *op.DestinationLocationID,
					BatchNumber: l.BatchNumber,
					Quantity:    l.Quantity,
					ExpiryDate:  l.ExpiryDate,
					Actor:       op.Actor,
					Context:     movementContext(op),
				}); err != nil {
					return err
				}
			case operation.KindTransfer:
				if _, err := c.batchLedger.ApplyTransferOut(cctx, repos, appledger.MovementInput{
					ProductID:   l.ProductID,
					LocationID:  *op.SourceLocationID,
					BatchNumber: l.BatchNumber,
					Quantity:    l.Quantity,
					Actor:       op.Actor,
					Context:     movementContext(op),
				}); err != nil {
					return err
				}
				if _, err := c.batchLedger.ApplyTransferIn(cctx, repos, appledger.MovementInput{
					ProductID:   l.ProductID,
					LocationID:  *op.DestinationLocationID,
					BatchNumber: l.BatchNumber,
					Quantity:    l.Quantity,
					ExpiryDate:  l.ExpiryDate,
					Actor:       op.Actor,
					Context:     movementContext(op),
				}); err != nil {
					return err
				}
			case operation.KindConsumption:
				if _, err := c.batchLedger.ApplyConsumption(cctx, repos, appledger.MovementInput{
					ProductID:   l.ProductID,
					LocationID:  *op.SourceLocationID,
					BatchNumber: l.BatchNumber,
					Quantity:    l.Quantity,
					Actor:       op.Actor,
					Context:     movementContext(op),
				}); err != nil {
					return err
				}
			}
		}
		return nil
	}

	return post, book, nil
}

// ClearRetries resets the retry counter of a capped operation
func (c *DualWriteCoordinator) ClearRetries(ctx context.Context, id uuid.UUID) (*operation.Operation, error) {
	op, err := c.operations.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	op.ClearRetries()
	if err := c.operations.Save(ctx, op); err != nil {
		return nil, err
	}
	return op, nil
}

// GetOperation returns one operation by ID
func (c *DualWriteCoordinator) GetOperation(ctx context.Context, id uuid.UUID) (*operation.Operation, error) {
	return c.operations.FindByID(ctx, id)
}

// GetOperations returns operations matching the filter with the total count
func (c *DualWriteCoordinator) GetOperations(ctx context.Context, filter shared.Filter) (*shared.Paginated[*operation.Operation], error) {
	ops, err := c.operations.FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := c.operations.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	page := shared.NewPaginated(ops, total, filter.Page, filter.PageSize)
	return &page, nil
}

type resolvedLine struct {
	SubmitLine
	product *catalog.Product
}

func (c *DualWriteCoordinator) resolveLocation(ctx context.Context, id uuid.UUID) (*catalog.Location, error) {
	if id == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_FAILED", "location is required")
	}
	loc, err := c.locations.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !loc.Active {
		return nil, shared.NewDomainError("VALIDATION_FAILED", fmt.Sprintf("location %s is inactive", loc.Code))
	}
	return loc, nil
}

// resolveLines validates products and, when batchRequired, that every line
// names its batch
func (c *DualWriteCoordinator) resolveLines(ctx context.Context, lines []SubmitLine, batchRequired bool) ([]resolvedLine, error) {
	if len(lines) == 0 {
		return nil, shared.NewDomainError("VALIDATION_FAILED", "at least one line is required")
	}
	resolved := make([]resolvedLine, 0, len(lines))
	for _, l := range lines {
		if !l.Quantity.IsPositive() {
			return nil, shared.NewDomainError("VALIDATION_FAILED", "line quantity must be positive")
		}
		if batchRequired && l.BatchNumber == "" {
			return nil, shared.NewDomainError("VALIDATION_FAILED", "batch number is required")
		}
		product, err := c.products.FindByID(ctx, l.ProductID)
		if err != nil {
			return nil, err
		}
		if !product.Active {
			return nil, shared.NewDomainError("VALIDATION_FAILED", fmt.Sprintf("product %s is inactive", product.Code))
		}
		resolved = append(resolved, resolvedLine{SubmitLine: l, product: product})
	}
	return resolved, nil
}

// resolveOutboundLines validates products and plans unbatched lines FEFO
// against the source location, producing a fully batched line set. This is
// the read-only validation leg: nothing is reserved, and the commit re-draws
// under the transaction where a concurrent change surfaces as a conflict.
func (c *DualWriteCoordinator) resolveOutboundLines(ctx context.Context, lines []SubmitLine, sourceID uuid.UUID) ([]resolvedLine, error) {
	resolved, err := c.resolveLines(ctx, lines, false)
	if err != nil {
		return nil, err
	}

	planned := make([]resolvedLine, 0, len(resolved))
	for _, l := range resolved {
		if l.BatchNumber != "" {
			lot, err := c.batchLedger.GetLotByKey(ctx, l.ProductID, l.BatchNumber, sourceID)
			if err != nil {
				return nil, err
			}
			if lot.Available.LessThan(l.Quantity) {
				return nil, &ledger.ShortfallError{
					ProductID:  l.ProductID,
					LocationID: sourceID,
					Requested:  l.Quantity,
					Available:  lot.Available,
					Lots: []ledger.LotAvailability{
						{LotID: lot.ID, BatchNumber: lot.BatchNumber, Available: lot.Available},
					},
				}
			}
			planned = append(planned, l)
			continue
		}
		plan, err := c.batchLedger.Allocate(ctx, l.ProductID, sourceID, l.Quantity)
		if err != nil {
			return nil, err
		}
		for _, alloc := range plan {
			planned = append(planned, resolvedLine{
				SubmitLine: SubmitLine{
					ProductID:   l.ProductID,
					BatchNumber: alloc.Lot.BatchNumber,
					Quantity:    alloc.Quantity,
					ExpiryDate:  alloc.Lot.ExpiryDate,
				},
				product: l.product,
			})
		}
	}
	return planned, nil
}

func toOperationLines(resolved []resolvedLine) []operation.Line {
	lines := make([]operation.Line, len(resolved))
	for i, l := range resolved {
		lines[i] = operation.Line{
			ID:          uuid.New(),
			ProductID:   l.ProductID,
			BatchNumber: l.BatchNumber,
			Quantity:    l.Quantity,
			ExpiryDate:  l.ExpiryDate,
		}
	}
	return lines
}

func batchAllocations(batchNumber string, qty decimal.Decimal, expiry *time.Time) []erp.BatchAllocation {
	alloc := erp.BatchAllocation{BatchNumber: batchNumber, Quantity: qty}
	if expiry != nil {
		formatted := expiry.Format("2006-01-02")
		alloc.ExpiryDate = &formatted
	}
	return []erp.BatchAllocation{alloc}
}

func movementContext(op *operation.Operation) string {
	if op.Sync.ExternalNumber != "" {
		return fmt.Sprintf("%s %s (ERP no. %s)", op.Kind, op.ID, op.Sync.ExternalNumber)
	}
	return fmt.Sprintf("%s %s", op.Kind, op.ID)
}

var _ ExternalPoster = (*erp.Client)(nil)

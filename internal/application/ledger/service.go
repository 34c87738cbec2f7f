package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ledgerlink/backend/internal/domain/ledger"
	"github.com/ledgerlink/backend/internal/domain/shared"
	"github.com/ledgerlink/backend/internal/infrastructure/telemetry"
)

// MovementInput describes one quantity movement against the batch ledger
type MovementInput struct {
	ProductID   uuid.UUID
	LocationID  uuid.UUID
	BatchNumber string
	Quantity    decimal.Decimal
	ExpiryDate  *time.Time
	Actor       string
	Context     string
}

// BatchLedgerService owns all quantity movements against lots. Mutations go
// through a TransactionScope so the lot writes, the derived aggregates and
// whatever the caller persists alongside them commit atomically.
type BatchLedgerService struct {
	scope   TransactionScope
	lots    ledger.LotRepository
	stocks  ledger.LocationStockRepository
	logger  *zap.Logger
	metrics *telemetry.BusinessMetrics
}

// SetBusinessMetrics sets the business metrics collector. Recording stays a
// no-op until one is wired.
func (s *BatchLedgerService) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.metrics = bm
}

// NewBatchLedgerService creates a new BatchLedgerService
func NewBatchLedgerService(
	scope TransactionScope,
	lots ledger.LotRepository,
	stocks ledger.LocationStockRepository,
	logger *zap.Logger,
) *BatchLedgerService {
	return &BatchLedgerService{
		scope:  scope,
		lots:   lots,
		stocks: stocks,
		logger: logger.Named("batch_ledger"),
	}
}

// Allocate previews a FEFO allocation without mutating anything. A
// shortfall returns the itemized error; nothing is reserved.
func (s *BatchLedgerService) Allocate(ctx context.Context, productID, locationID uuid.UUID, qty decimal.Decimal) ([]ledger.Allocation, error) {
	lots, err := s.lots.FindAtLocation(ctx, productID, locationID)
	if err != nil {
		return nil, err
	}
	return ledger.PlanFEFO(productID, locationID, lots, qty)
}

// ApplyReceipt adds received quantity to the (product, batch, location) lot,
// creating the lot on first receipt.
func (s *BatchLedgerService) ApplyReceipt(ctx context.Context, repos TransactionalRepositories, in MovementInput) (*ledger.Lot, error) {
	return s.applyInbound(ctx, repos, in, func(lot *ledger.Lot, mv ledger.Movement) error {
		return lot.Receive(in.Quantity, mv)
	})
}

// ApplyTransferIn adds quantity arriving from another location, creating
// the destination lot when the batch has not been seen there before.
func (s *BatchLedgerService) ApplyTransferIn(ctx context.Context, repos TransactionalRepositories, in MovementInput) (*ledger.Lot, error) {
	return s.applyInbound(ctx, repos, in, func(lot *ledger.Lot, mv ledger.Movement) error {
		return lot.TransferIn(in.Quantity, mv)
	})
}

// ApplyReturn puts previously issued quantity back into an existing lot.
// Returns against a batch the location has never held are rejected.
func (s *BatchLedgerService) ApplyReturn(ctx context.Context, repos TransactionalRepositories, in MovementInput) (*ledger.Lot, error) {
	lot, err := repos.Lots().FindByKey(ctx, in.ProductID, in.BatchNumber, in.LocationID)
	if err != nil {
		return nil, err
	}
	if err := lot.Return(in.Quantity, ledger.Movement{Actor: in.Actor, Context: in.Context}); err != nil {
		return nil, err
	}
	if err := repos.Lots().SaveWithLock(ctx, lot); err != nil {
		return nil, err
	}
	if err := s.recompute(ctx, repos, in.ProductID, in.LocationID); err != nil {
		return nil, err
	}
	return lot, nil
}

// ApplyConsumption draws quantity from the location's lots. A named batch
// consumes from that lot only; otherwise the draw is planned FEFO across
// all allocatable lots.
func (s *BatchLedgerService) ApplyConsumption(ctx context.Context, repos TransactionalRepositories, in MovementInput) ([]ledger.Allocation, error) {
	return s.applyOutbound(ctx, repos, in, func(lot *ledger.Lot, qty decimal.Decimal, mv ledger.Movement) error {
		return lot.Consume(qty, mv)
	})
}

// ApplyTransferOut moves quantity out of the location's lots toward another
// location; the destination books it separately with ApplyTransferIn.
func (s *BatchLedgerService) ApplyTransferOut(ctx context.Context, repos TransactionalRepositories, in MovementInput) ([]ledger.Allocation, error) {
	return s.applyOutbound(ctx, repos, in, func(lot *ledger.Lot, qty decimal.Decimal, mv ledger.Movement) error {
		return lot.TransferOut(qty, mv)
	})
}

// RecomputeLocationStock rebuilds the derived (product, location) aggregate
// from its lots inside the given transaction. Idempotent overwrite.
func (s *BatchLedgerService) RecomputeLocationStock(ctx context.Context, repos TransactionalRepositories, productID, locationID uuid.UUID) (*ledger.LocationStock, error) {
	return recomputeStock(ctx, repos.Lots(), repos.Stocks(), productID, locationID)
}

// RepairLocationStock rebuilds the derived aggregate in its own
// transaction. Exposed for manual repair; a concurrent movement can still
// win the last write, in which case running the repair again converges.
func (s *BatchLedgerService) RepairLocationStock(ctx context.Context, productID, locationID uuid.UUID) (*ledger.LocationStock, error) {
	var stock *ledger.LocationStock
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		stock, err = recomputeStock(ctx, repos.Lots(), repos.Stocks(), productID, locationID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("location stock recomputed",
		zap.String("product_id", productID.String()),
		zap.String("location_id", locationID.String()),
	)
	return stock, nil
}

// RecallLot pulls a lot from circulation. The status flip and the refreshed
// location aggregate commit together; quantity stays on the lot for audit.
func (s *BatchLedgerService) RecallLot(ctx context.Context, lotID uuid.UUID, actor, reason string) (*ledger.Lot, error) {
	var lot *ledger.Lot
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		lot, err = repos.Lots().FindByID(ctx, lotID)
		if err != nil {
			return err
		}
		if err := lot.Recall(ledger.Movement{Actor: actor, Context: reason}); err != nil {
			return err
		}
		if err := repos.Lots().SaveWithLock(ctx, lot); err != nil {
			return err
		}
		return s.recompute(ctx, repos, lot.ProductID, lot.LocationID)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Warn("lot recalled",
		zap.String("lot_id", lot.ID.String()),
		zap.String("batch_number", lot.BatchNumber),
		zap.String("actor", actor),
		zap.String("reason", reason),
	)
	return lot, nil
}

// FlagExpiredLots sweeps ACTIVE lots past their expiry date into EXPIRED.
// Allocation already skips overdue lots, so the sweep only makes the state
// visible; it can run on any schedule. Returns how many lots were flagged.
func (s *BatchLedgerService) FlagExpiredLots(ctx context.Context, actor string) (int, error) {
	overdue, err := s.lots.FindActiveExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	flagged := 0
	for _, candidate := range overdue {
		lotID := candidate.ID
		err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			lot, err := repos.Lots().FindByID(ctx, lotID)
			if err != nil {
				return err
			}
			if err := lot.MarkExpired(ledger.Movement{Actor: actor, Context: "expiry sweep"}); err != nil {
				return err
			}
			if err := repos.Lots().SaveWithLock(ctx, lot); err != nil {
				return err
			}
			return s.recompute(ctx, repos, lot.ProductID, lot.LocationID)
		})
		if err != nil {
			// a concurrent movement or recall can invalidate one candidate;
			// the sweep moves on and the next run picks it up
			s.logger.Warn("expiry sweep skipped lot",
				zap.String("lot_id", lotID.String()),
				zap.Error(err),
			)
			continue
		}
		flagged++
	}

	if flagged > 0 {
		s.logger.Info("expired lots flagged", zap.Int("count", flagged))
		if s.metrics != nil {
			s.metrics.RecordLotsExpired(ctx, int64(flagged))
		}
	}
	return flagged, nil
}

// GetLots returns lots matching the filter together with the total count
func (s *BatchLedgerService) GetLots(ctx context.Context, filter shared.Filter) (*shared.Paginated[*ledger.Lot], error) {
	lots, err := s.lots.FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.lots.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	page := shared.NewPaginated(lots, total, filter.Page, filter.PageSize)
	return &page, nil
}

// GetLot returns one lot with its full history
func (s *BatchLedgerService) GetLot(ctx context.Context, id uuid.UUID) (*ledger.Lot, error) {
	return s.lots.FindByID(ctx, id)
}

// GetLotByKey returns the unique lot for (product, batch number, location)
func (s *BatchLedgerService) GetLotByKey(ctx context.Context, productID uuid.UUID, batchNumber string, locationID uuid.UUID) (*ledger.Lot, error) {
	return s.lots.FindByKey(ctx, productID, batchNumber, locationID)
}

// GetLocationStocks returns derived aggregates matching the filter
func (s *BatchLedgerService) GetLocationStocks(ctx context.Context, filter shared.Filter) ([]*ledger.LocationStock, error) {
	return s.stocks.FindAll(ctx, filter)
}

func (s *BatchLedgerService) applyInbound(
	ctx context.Context,
	repos TransactionalRepositories,
	in MovementInput,
	move func(*ledger.Lot, ledger.Movement) error,
) (*ledger.Lot, error) {
	mv := ledger.Movement{Actor: in.Actor, Context: in.Context}

	lot, err := repos.Lots().FindByKey(ctx, in.ProductID, in.BatchNumber, in.LocationID)
	switch {
	case err == nil:
		if err := move(lot, mv); err != nil {
			return nil, err
		}
		if err := repos.Lots().SaveWithLock(ctx, lot); err != nil {
			return nil, err
		}
	case errors.Is(err, shared.ErrNotFound):
		lot, err = ledger.NewLot(in.ProductID, in.BatchNumber, in.LocationID, in.ExpiryDate)
		if err != nil {
			return nil, err
		}
		if err := move(lot, mv); err != nil {
			return nil, err
		}
		if err := repos.Lots().Save(ctx, lot); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if err := s.recompute(ctx, repos, in.ProductID, in.LocationID); err != nil {
		return nil, err
	}
	return lot, nil
}

func (s *BatchLedgerService) applyOutbound(
	ctx context.Context,
	repos TransactionalRepositories,
	in MovementInput,
	move func(*ledger.Lot, decimal.Decimal, ledger.Movement) error,
) ([]ledger.Allocation, error) {
	mv := ledger.Movement{Actor: in.Actor, Context: in.Context}

	var plan []ledger.Allocation
	if in.BatchNumber != "" {
		lot, err := repos.Lots().FindByKey(ctx, in.ProductID, in.BatchNumber, in.LocationID)
		if err != nil {
			return nil, err
		}
		plan = []ledger.Allocation{{Lot: lot, Quantity: in.Quantity}}
	} else {
		lots, err := repos.Lots().FindAtLocation(ctx, in.ProductID, in.LocationID)
		if err != nil {
			return nil, err
		}
		plan, err = ledger.PlanFEFO(in.ProductID, in.LocationID, lots, in.Quantity)
		if err != nil {
			return nil, err
		}
	}

	for _, alloc := range plan {
		if err := move(alloc.Lot, alloc.Quantity, mv); err != nil {
			return nil, err
		}
		if err := repos.Lots().SaveWithLock(ctx, alloc.Lot); err != nil {
			return nil, err
		}
	}

	if err := s.recompute(ctx, repos, in.ProductID, in.LocationID); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *BatchLedgerService) recompute(ctx context.Context, repos TransactionalRepositories, productID, locationID uuid.UUID) error {
	_, err := recomputeStock(ctx, repos.Lots(), repos.Stocks(), productID, locationID)
	return err
}

func recomputeStock(ctx context.Context, lots ledger.LotRepository, stocks ledger.LocationStockRepository, productID, locationID uuid.UUID) (*ledger.LocationStock, error) {
	all, err := lots.FindAtLocation(ctx, productID, locationID)
	if err != nil {
		return nil, err
	}

	stock, err := stocks.FindByKey(ctx, productID, locationID)
	if errors.Is(err, shared.ErrNotFound) {
		stock = ledger.NewLocationStock(productID, locationID)
	} else if err != nil {
		return nil, err
	}

	stock.Quantities = ledger.ComputeLocationStock(productID, locationID, all)
	stock.Touch()
	if err := stocks.Upsert(ctx, stock); err != nil {
		return nil, err
	}
	return stock, nil
}

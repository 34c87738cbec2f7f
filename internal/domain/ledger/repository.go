package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerlink/backend/internal/domain/shared"
)

// LotRepository persists lots and their history entries
type LotRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Lot, error)
	// FindByKey looks up the unique lot for (product, batch number, location)
	FindByKey(ctx context.Context, productID uuid.UUID, batchNumber string, locationID uuid.UUID) (*Lot, error)
	// FindAtLocation returns all lots for a product at a location, any status
	FindAtLocation(ctx context.Context, productID, locationID uuid.UUID) ([]*Lot, error)
	// FindActiveExpired returns ACTIVE lots whose expiry date lies at or
	// before the given instant
	FindActiveExpired(ctx context.Context, asOf time.Time) ([]*Lot, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]*Lot, error)
	Count(ctx context.Context, filter shared.Filter) (int64, error)
	// Save persists the lot and appends any new history entries
	Save(ctx context.Context, lot *Lot) error
	// SaveWithLock persists with a version check, returning
	// shared.ErrConcurrencyConflict when another writer got there first
	SaveWithLock(ctx context.Context, lot *Lot) error
}

// LocationStockRepository persists the derived per-location aggregates
type LocationStockRepository interface {
	FindByKey(ctx context.Context, productID, locationID uuid.UUID) (*LocationStock, error)
	FindByLocation(ctx context.Context, locationID uuid.UUID) ([]*LocationStock, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]*LocationStock, error)
	// Upsert overwrites the aggregate row for (product, location)
	Upsert(ctx context.Context, stock *LocationStock) error
}

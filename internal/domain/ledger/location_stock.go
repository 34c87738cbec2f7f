package ledger

import (
	"github.com/google/uuid"

	"github.com/ledgerlink/backend/internal/domain/shared"
)

// LocationStock is the per (product, location) sum of lot quantity buckets.
// It is fully derived from lots and may be recomputed at any time; it exists
// only to serve fast reads.
type LocationStock struct {
	shared.BaseEntity
	ProductID  uuid.UUID
	LocationID uuid.UUID
	Quantities
}

// NewLocationStock creates a zeroed aggregate for (product, location)
func NewLocationStock(productID, locationID uuid.UUID) *LocationStock {
	return &LocationStock{
		BaseEntity: shared.NewBaseEntity(),
		ProductID:  productID,
		LocationID: locationID,
	}
}

// ComputeLocationStock sums the quantity buckets of the given lots.
// Depleted lots are excluded; their stock already left the location and
// keeping them out makes recompute idempotent against history-only lots.
// Lots for other (product, location) pairs are ignored.
func ComputeLocationStock(productID, locationID uuid.UUID, lots []*Lot) Quantities {
	var q Quantities
	for _, l := range lots {
		if l.ProductID != productID || l.LocationID != locationID {
			continue
		}
		if l.Status == LotStatusDepleted {
			continue
		}
		q.Total = q.Total.Add(l.Total)
		q.Available = q.Available.Add(l.Available)
		q.Consigned = q.Consigned.Add(l.Consigned)
		q.Consumed = q.Consumed.Add(l.Consumed)
		q.Damaged = q.Damaged.Add(l.Damaged)
		q.Returned = q.Returned.Add(l.Returned)
	}
	return q
}

package ledger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Allocation is one slice of an allocation plan: take Quantity from Lot
type Allocation struct {
	Lot      *Lot
	Quantity decimal.Decimal
}

// LotAvailability itemizes one candidate lot in a shortfall report
type LotAvailability struct {
	LotID       uuid.UUID
	BatchNumber string
	Available   decimal.Decimal
}

// ShortfallError reports that the candidate lots at a location cannot cover
// the requested quantity. Nothing has been mutated when it is returned.
type ShortfallError struct {
	ProductID  uuid.UUID
	LocationID uuid.UUID
	Requested  decimal.Decimal
	Available  decimal.Decimal
	Lots       []LotAvailability
}

func (e *ShortfallError) Error() string {
	parts := make([]string, 0, len(e.Lots))
	for _, l := range e.Lots {
		parts = append(parts, fmt.Sprintf("%s=%s", l.BatchNumber, l.Available.String()))
	}
	return fmt.Sprintf("insufficient stock: requested %s, available %s (%s)",
		e.Requested.String(), e.Available.String(), strings.Join(parts, ", "))
}

// PlanFEFO builds a First-Expired-First-Out allocation plan over the given
// candidate lots. Lots that are not allocatable are skipped; the remainder
// are drained in ascending expiry order (lots without an expiry date go
// last, ordered by creation). The plan is computed without mutating any lot;
// if total availability falls short, an itemized ShortfallError is returned
// and the caller must not apply anything.
func PlanFEFO(productID, locationID uuid.UUID, lots []*Lot, qty decimal.Decimal) ([]Allocation, error) {
	if err := requirePositive(qty); err != nil {
		return nil, err
	}

	candidates := make([]*Lot, 0, len(lots))
	for _, l := range lots {
		if l.Allocatable() {
			candidates = append(candidates, l)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ie, je := candidates[i].ExpiryDate, candidates[j].ExpiryDate
		if ie == nil && je == nil {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		}
		if ie == nil {
			return false
		}
		if je == nil {
			return true
		}
		return ie.Before(*je)
	})

	total := decimal.Zero
	for _, l := range candidates {
		total = total.Add(l.Available)
	}
	if total.LessThan(qty) {
		itemized := make([]LotAvailability, len(candidates))
		for i, l := range candidates {
			itemized[i] = LotAvailability{LotID: l.ID, BatchNumber: l.BatchNumber, Available: l.Available}
		}
		return nil, &ShortfallError{
			ProductID:  productID,
			LocationID: locationID,
			Requested:  qty,
			Available:  total,
			Lots:       itemized,
		}
	}

	plan := make([]Allocation, 0, len(candidates))
	remaining := qty
	for _, l := range candidates {
		if remaining.IsZero() {
			break
		}
		take := decimal.Min(remaining, l.Available)
		plan = append(plan, Allocation{Lot: l, Quantity: take})
		remaining = remaining.Sub(take)
	}
	return plan, nil
}

package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerlink/backend/internal/domain/shared"
)

// LotStatus represents the lifecycle state of a lot
type LotStatus string

const (
	LotStatusActive   LotStatus = "ACTIVE"
	LotStatusDepleted LotStatus = "DEPLETED"
	LotStatusExpired  LotStatus = "EXPIRED"
	LotStatusRecalled LotStatus = "RECALLED"
)

// MovementAction identifies the kind of quantity movement recorded in a lot's history
type MovementAction string

const (
	ActionReceipt     MovementAction = "RECEIPT"
	ActionConsumption MovementAction = "CONSUMPTION"
	ActionTransferOut MovementAction = "TRANSFER_OUT"
	ActionTransferIn  MovementAction = "TRANSFER_IN"
	ActionReturn      MovementAction = "RETURN"
	ActionDamage      MovementAction = "DAMAGE"
	ActionAdjustment  MovementAction = "ADJUSTMENT"
	ActionExpiry      MovementAction = "EXPIRY"
	ActionRecall      MovementAction = "RECALL"
)

// Quantities holds the closed set of quantity buckets tracked per lot.
// Available is the only bucket allocation draws from; the others are
// cumulative counters of where received stock ended up.
type Quantities struct {
	Total     decimal.Decimal
	Available decimal.Decimal
	Consigned decimal.Decimal
	Consumed  decimal.Decimal
	Damaged   decimal.Decimal
	Returned  decimal.Decimal
}

// HistoryEntry is one append-only, attributable record of a lot mutation
type HistoryEntry struct {
	ID        uuid.UUID
	LotID     uuid.UUID
	Actor     string
	Action    MovementAction
	Delta     decimal.Decimal
	Context   string
	CreatedAt time.Time
}

// Lot is a quantity of one product received under one batch number at one
// location. It is the aggregate root of the batch ledger: every movement
// operation mutates exactly one or more lots, never raw aggregates.
// Lots are never physically deleted.
type Lot struct {
	shared.BaseAggregateRoot
	ProductID   uuid.UUID
	BatchNumber string
	LocationID  uuid.UUID
	ExpiryDate  *time.Time
	Quantities
	Status  LotStatus
	History []HistoryEntry
}

// NewLot creates an empty active lot for (product, batch, location).
// Quantity arrives through Receive or TransferIn.
func NewLot(productID uuid.UUID, batchNumber string, locationID uuid.UUID, expiryDate *time.Time) (*Lot, error) {
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "lot requires a product")
	}
	if batchNumber == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "lot requires a batch number")
	}
	if locationID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "lot requires a location")
	}
	return &Lot{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ProductID:         productID,
		BatchNumber:       batchNumber,
		LocationID:        locationID,
		ExpiryDate:        expiryDate,
		Status:            LotStatusActive,
		History:           make([]HistoryEntry, 0),
	}, nil
}

// Movement describes who moved how much and why, for the history log
type Movement struct {
	Actor   string
	Context string
}

// Receive adds received quantity to the lot (total and available grow).
func (l *Lot) Receive(qty decimal.Decimal, mv Movement) error {
	if err := requirePositive(qty); err != nil {
		return err
	}
	l.Total = l.Total.Add(qty)
	l.Available = l.Available.Add(qty)
	l.reactivate()
	l.appendHistory(ActionReceipt, qty, mv)
	return nil
}

// TransferIn adds quantity arriving from another location.
func (l *Lot) TransferIn(qty decimal.Decimal, mv Movement) error {
	if err := requirePositive(qty); err != nil {
		return err
	}
	l.Total = l.Total.Add(qty)
	l.Available = l.Available.Add(qty)
	l.reactivate()
	l.appendHistory(ActionTransferIn, qty, mv)
	return nil
}

// Consume moves quantity from available to consumed.
func (l *Lot) Consume(qty decimal.Decimal, mv Movement) error {
	if err := l.drawAvailable(qty); err != nil {
		return err
	}
	l.Consumed = l.Consumed.Add(qty)
	l.appendHistory(ActionConsumption, qty.Neg(), mv)
	l.checkDepletion()
	return nil
}

// TransferOut moves quantity from available to consigned; the destination
// location receives it as a separate lot via TransferIn.
func (l *Lot) TransferOut(qty decimal.Decimal, mv Movement) error {
	if err := l.drawAvailable(qty); err != nil {
		return err
	}
	l.Consigned = l.Consigned.Add(qty)
	l.appendHistory(ActionTransferOut, qty.Neg(), mv)
	l.checkDepletion()
	return nil
}

// Return puts previously issued quantity back into the lot.
func (l *Lot) Return(qty decimal.Decimal, mv Movement) error {
	if err := requirePositive(qty); err != nil {
		return err
	}
	l.Available = l.Available.Add(qty)
	l.Returned = l.Returned.Add(qty)
	l.reactivate()
	l.appendHistory(ActionReturn, qty, mv)
	return nil
}

// RecordDamage moves quantity from available to damaged.
func (l *Lot) RecordDamage(qty decimal.Decimal, mv Movement) error {
	if err := l.drawAvailable(qty); err != nil {
		return err
	}
	l.Damaged = l.Damaged.Add(qty)
	l.appendHistory(ActionDamage, qty.Neg(), mv)
	l.checkDepletion()
	return nil
}

// Adjust sets available to the given quantity. This is the only operation
// allowed to shrink Total.
func (l *Lot) Adjust(newAvailable decimal.Decimal, mv Movement) error {
	if newAvailable.IsNegative() {
		return shared.NewDomainError("INVALID_INPUT", "adjusted quantity cannot be negative")
	}
	delta := newAvailable.Sub(l.Available)
	l.Total = l.Total.Add(delta)
	l.Available = newAvailable
	l.appendHistory(ActionAdjustment, delta, mv)
	if l.Available.IsZero() {
		l.checkDepletion()
	} else {
		l.reactivate()
	}
	return nil
}

// IsExpired returns true if the lot's expiry date has passed
func (l *Lot) IsExpired() bool {
	if l.ExpiryDate == nil {
		return false
	}
	return l.ExpiryDate.Before(time.Now())
}

// Allocatable returns true if the lot can satisfy allocations. An overdue
// lot is excluded even before a sweep flags it EXPIRED.
func (l *Lot) Allocatable() bool {
	return l.Status == LotStatusActive && l.Available.IsPositive() && !l.IsExpired()
}

// MarkExpired flags a lot whose expiry date has passed. Quantity stays on
// the lot for audit; the status keeps it out of allocation.
func (l *Lot) MarkExpired(mv Movement) error {
	if !l.IsExpired() {
		return shared.NewDomainError("INVALID_STATE", "lot has not reached its expiry date")
	}
	switch l.Status {
	case LotStatusExpired:
		return nil
	case LotStatusRecalled:
		return shared.NewDomainError("INVALID_STATE", "lot is recalled")
	}
	l.Status = LotStatusExpired
	l.appendHistory(ActionExpiry, decimal.Zero, mv)
	l.Touch()
	return nil
}

// Recall pulls a lot from circulation regardless of expiry. Terminal: no
// inbound movement reactivates a recalled lot.
func (l *Lot) Recall(mv Movement) error {
	if l.Status == LotStatusRecalled {
		return shared.NewDomainError("INVALID_STATE", "lot is already recalled")
	}
	l.Status = LotStatusRecalled
	l.appendHistory(ActionRecall, decimal.Zero, mv)
	l.Touch()
	return nil
}

// drawAvailable deducts from available, refusing to go negative
func (l *Lot) drawAvailable(qty decimal.Decimal) error {
	if err := requirePositive(qty); err != nil {
		return err
	}
	if qty.GreaterThan(l.Available) {
		return &InsufficientLotError{
			LotID:       l.ID,
			BatchNumber: l.BatchNumber,
			Requested:   qty,
			Available:   l.Available,
		}
	}
	l.Available = l.Available.Sub(qty)
	return nil
}

// checkDepletion applies the depletion rule: available reaching zero after
// an outbound movement marks the lot DEPLETED (still queryable for history,
// excluded from allocation).
func (l *Lot) checkDepletion() {
	if l.Available.IsZero() && l.Status == LotStatusActive {
		l.Status = LotStatusDepleted
	}
	l.Touch()
}

// reactivate brings a depleted lot back when stock flows in again
func (l *Lot) reactivate() {
	if l.Status == LotStatusDepleted && l.Available.IsPositive() {
		l.Status = LotStatusActive
	}
	l.Touch()
}

func (l *Lot) appendHistory(action MovementAction, delta decimal.Decimal, mv Movement) {
	l.History = append(l.History, HistoryEntry{
		ID:        uuid.New(),
		LotID:     l.ID,
		Actor:     mv.Actor,
		Action:    action,
		Delta:     delta,
		Context:   mv.Context,
		CreatedAt: time.Now(),
	})
}

func requirePositive(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return shared.NewDomainError("INVALID_INPUT", "quantity must be positive")
	}
	return nil
}

// InsufficientLotError reports an outbound movement that would drive a
// single lot's available quantity negative.
type InsufficientLotError struct {
	LotID       uuid.UUID
	BatchNumber string
	Requested   decimal.Decimal
	Available   decimal.Decimal
}

func (e *InsufficientLotError) Error() string {
	return fmt.Sprintf("batch %s has %s available, requested %s",
		e.BatchNumber, e.Available.String(), e.Requested.String())
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerlink/backend/internal/domain/ledger"
)

// LotModel is the persistence model for the Lot aggregate root.
type LotModel struct {
	AggregateModel
	ProductID   uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_lot_product_batch_location,priority:1"`
	BatchNumber string            `gorm:"type:varchar(50);not null;uniqueIndex:idx_lot_product_batch_location,priority:2"`
	LocationID  uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_lot_product_batch_location,priority:3"`
	ExpiryDate  *time.Time        `gorm:"type:date;index"`
	Total       decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	Available   decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	Consigned   decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	Consumed    decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	Damaged     decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	Returned    decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	Status      string            `gorm:"type:varchar(20);not null;index"`
	History     []LotHistoryModel `gorm:"foreignKey:LotID;references:ID"`
}

// TableName returns the table name for GORM
func (LotModel) TableName() string {
	return "lots"
}

// ToDomain converts the persistence model to a domain Lot aggregate.
func (m *LotModel) ToDomain() *ledger.Lot {
	lot := &ledger.Lot{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		ProductID:         m.ProductID,
		BatchNumber:       m.BatchNumber,
		LocationID:        m.LocationID,
		ExpiryDate:        m.ExpiryDate,
		Quantities: ledger.Quantities{
			Total:     m.Total,
			Available: m.Available,
			Consigned: m.Consigned,
			Consumed:  m.Consumed,
			Damaged:   m.Damaged,
			Returned:  m.Returned,
		},
		Status:  ledger.LotStatus(m.Status),
		History: make([]ledger.HistoryEntry, len(m.History)),
	}
	for i := range m.History {
		lot.History[i] = m.History[i].ToDomain()
	}
	return lot
}

// FromDomain populates the persistence model from a domain Lot aggregate.
func (m *LotModel) FromDomain(l *ledger.Lot) {
	m.FromDomainAggregateRoot(l.BaseAggregateRoot)
	m.ProductID = l.ProductID
	m.BatchNumber = l.BatchNumber
	m.LocationID = l.LocationID
	m.ExpiryDate = l.ExpiryDate
	m.Total = l.Total
	m.Available = l.Available
	m.Consigned = l.Consigned
	m.Consumed = l.Consumed
	m.Damaged = l.Damaged
	m.Returned = l.Returned
	m.Status = string(l.Status)
	m.History = make([]LotHistoryModel, len(l.History))
	for i := range l.History {
		m.History[i] = LotHistoryModelFromDomain(l.History[i])
	}
}

// LotModelFromDomain creates a new persistence model from a domain Lot.
func LotModelFromDomain(l *ledger.Lot) *LotModel {
	m := &LotModel{}
	m.FromDomain(l)
	return m
}

// LotHistoryModel is the persistence model for a lot's append-only history.
// Rows are insert-only; updates never touch existing entries.
type LotHistoryModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key"`
	LotID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Actor     string          `gorm:"type:varchar(100);not null"`
	Action    string          `gorm:"type:varchar(20);not null"`
	Delta     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Context   string          `gorm:"type:varchar(255)"`
	CreatedAt time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (LotHistoryModel) TableName() string {
	return "lot_history"
}

// ToDomain converts the persistence model to a domain HistoryEntry
func (m *LotHistoryModel) ToDomain() ledger.HistoryEntry {
	return ledger.HistoryEntry{
		ID:        m.ID,
		LotID:     m.LotID,
		Actor:     m.Actor,
		Action:    ledger.MovementAction(m.Action),
		Delta:     m.Delta,
		Context:   m.Context,
		CreatedAt: m.CreatedAt,
	}
}

// LotHistoryModelFromDomain creates a persistence model from a domain HistoryEntry
func LotHistoryModelFromDomain(e ledger.HistoryEntry) LotHistoryModel {
	return LotHistoryModel{
		ID:        e.ID,
		LotID:     e.LotID,
		Actor:     e.Actor,
		Action:    string(e.Action),
		Delta:     e.Delta,
		Context:   e.Context,
		CreatedAt: e.CreatedAt,
	}
}

// LocationStockModel is the persistence model for the derived per-location aggregate.
type LocationStockModel struct {
	BaseModel
	ProductID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_location_stock_product_location,priority:1"`
	LocationID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_location_stock_product_location,priority:2"`
	Total      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Available  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Consigned  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Consumed   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Damaged    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Returned   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (LocationStockModel) TableName() string {
	return "location_stocks"
}

// ToDomain converts the persistence model to a domain LocationStock
func (m *LocationStockModel) ToDomain() *ledger.LocationStock {
	return &ledger.LocationStock{
		BaseEntity: m.BaseModel.ToDomain(),
		ProductID:  m.ProductID,
		LocationID: m.LocationID,
		Quantities: ledger.Quantities{
			Total:     m.Total,
			Available: m.Available,
			Consigned: m.Consigned,
			Consumed:  m.Consumed,
			Damaged:   m.Damaged,
			Returned:  m.Returned,
		},
	}
}

// FromDomain populates the persistence model from a domain LocationStock
func (m *LocationStockModel) FromDomain(s *ledger.LocationStock) {
	m.FromDomainBaseEntity(s.BaseEntity)
	m.ProductID = s.ProductID
	m.LocationID = s.LocationID
	m.Total = s.Total
	m.Available = s.Available
	m.Consigned = s.Consigned
	m.Consumed = s.Consumed
	m.Damaged = s.Damaged
	m.Returned = s.Returned
}

// LocationStockModelFromDomain creates a new persistence model from a domain LocationStock
func LocationStockModelFromDomain(s *ledger.LocationStock) *LocationStockModel {
	m := &LocationStockModel{}
	m.FromDomain(s)
	return m
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerlink/backend/internal/domain/operation"
)

// OperationModel is the persistence model for the Operation aggregate root.
// The external-sync sub-document is flattened into sync_* columns so the
// claim-for-sync conditional update can target them directly.
type OperationModel struct {
	AggregateModel
	Kind                  string               `gorm:"type:varchar(20);not null;index"`
	SourceLocationID      *uuid.UUID           `gorm:"type:uuid;index"`
	DestinationLocationID *uuid.UUID           `gorm:"type:uuid;index"`
	Actor                 string               `gorm:"type:varchar(100);not null"`
	Reference             string               `gorm:"type:varchar(255)"`
	ExternallySourced     bool                 `gorm:"not null;default:false"`
	OccurredAt            time.Time            `gorm:"not null;index"`
	SyncState             string               `gorm:"type:varchar(20);not null;index"`
	SyncPushed            bool                 `gorm:"not null;default:false"`
	SyncExternalID        string               `gorm:"type:varchar(50);index"`
	SyncExternalNumber    string               `gorm:"type:varchar(50)"`
	SyncError             string               `gorm:"type:text"`
	SyncRetryCount        int                  `gorm:"not null;default:0"`
	Lines                 []OperationLineModel `gorm:"foreignKey:OperationID;references:ID"`
}

// TableName returns the table name for GORM
func (OperationModel) TableName() string {
	return "operations"
}

// ToDomain converts the persistence model to a domain Operation aggregate.
func (m *OperationModel) ToDomain() *operation.Operation {
	op := &operation.Operation{
		BaseAggregateRoot:     m.ToDomainAggregateRoot(),
		Kind:                  operation.Kind(m.Kind),
		SourceLocationID:      m.SourceLocationID,
		DestinationLocationID: m.DestinationLocationID,
		Actor:                 m.Actor,
		Reference:             m.Reference,
		ExternallySourced:     m.ExternallySourced,
		OccurredAt:            m.OccurredAt,
		Sync: operation.ExternalSync{
			Pushed:         m.SyncPushed,
			ExternalID:     m.SyncExternalID,
			ExternalNumber: m.SyncExternalNumber,
			Error:          m.SyncError,
			RetryCount:     m.SyncRetryCount,
			State:          operation.SyncState(m.SyncState),
		},
		Lines: make([]operation.Line, len(m.Lines)),
	}
	for i := range m.Lines {
		op.Lines[i] = m.Lines[i].ToDomain()
	}
	return op
}

// FromDomain populates the persistence model from a domain Operation aggregate.
func (m *OperationModel) FromDomain(op *operation.Operation) {
	m.FromDomainAggregateRoot(op.BaseAggregateRoot)
	m.Kind = string(op.Kind)
	m.SourceLocationID = op.SourceLocationID
	m.DestinationLocationID = op.DestinationLocationID
	m.Actor = op.Actor
	m.Reference = op.Reference
	m.ExternallySourced = op.ExternallySourced
	m.OccurredAt = op.OccurredAt
	m.SyncState = string(op.Sync.State)
	m.SyncPushed = op.Sync.Pushed
	m.SyncExternalID = op.Sync.ExternalID
	m.SyncExternalNumber = op.Sync.ExternalNumber
	m.SyncError = op.Sync.Error
	m.SyncRetryCount = op.Sync.RetryCount
	m.Lines = make([]OperationLineModel, len(op.Lines))
	for i := range op.Lines {
		m.Lines[i] = OperationLineModelFromDomain(op.ID, op.Lines[i])
	}
}

// OperationModelFromDomain creates a new persistence model from a domain Operation.
func OperationModelFromDomain(op *operation.Operation) *OperationModel {
	m := &OperationModel{}
	m.FromDomain(op)
	return m
}

// OperationLineModel is the persistence model for one operation line.
type OperationLineModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	OperationID uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	BatchNumber string          `gorm:"type:varchar(50);not null"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ExpiryDate  *time.Time      `gorm:"type:date"`
}

// TableName returns the table name for GORM
func (OperationLineModel) TableName() string {
	return "operation_lines"
}

// ToDomain converts the persistence model to a domain Line
func (m *OperationLineModel) ToDomain() operation.Line {
	return operation.Line{
		ID:          m.ID,
		ProductID:   m.ProductID,
		BatchNumber: m.BatchNumber,
		Quantity:    m.Quantity,
		ExpiryDate:  m.ExpiryDate,
	}
}

// OperationLineModelFromDomain creates a persistence model from a domain Line
func OperationLineModelFromDomain(operationID uuid.UUID, l operation.Line) OperationLineModel {
	return OperationLineModel{
		ID:          l.ID,
		OperationID: operationID,
		ProductID:   l.ProductID,
		BatchNumber: l.BatchNumber,
		Quantity:    l.Quantity,
		ExpiryDate:  l.ExpiryDate,
	}
}

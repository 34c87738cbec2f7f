package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerlink/backend/internal/domain/reconcile"
)

// ExternalDocumentModel is the persistence model for discovered ERP documents.
// (external_id, doc_type) is unique so rescans upsert instead of duplicating.
type ExternalDocumentModel struct {
	AggregateModel
	ExternalID     string     `gorm:"type:varchar(50);not null;uniqueIndex:idx_external_doc_id_type,priority:1"`
	DocType        string     `gorm:"type:varchar(30);not null;uniqueIndex:idx_external_doc_id_type,priority:2"`
	DocNumber      string     `gorm:"type:varchar(50);not null"`
	DocDate        time.Time  `gorm:"not null;index"`
	PartnerCode    string     `gorm:"type:varchar(50)"`
	Remarks        string     `gorm:"type:text"`
	Lines          string     `gorm:"type:jsonb;default:'[]'"`
	Status         string     `gorm:"type:varchar(20);not null;index"`
	ReviewedBy     string     `gorm:"type:varchar(100)"`
	ReviewNote     string     `gorm:"type:text"`
	DiscoveredByID *uuid.UUID `gorm:"type:uuid;index"`
	OperationID    *uuid.UUID `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (ExternalDocumentModel) TableName() string {
	return "external_documents"
}

// ToDomain converts the persistence model to a domain ExternalDocument.
func (m *ExternalDocumentModel) ToDomain() *reconcile.ExternalDocument {
	doc := &reconcile.ExternalDocument{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		ExternalID:        m.ExternalID,
		DocType:           reconcile.DocType(m.DocType),
		DocNumber:         m.DocNumber,
		DocDate:           m.DocDate,
		PartnerCode:       m.PartnerCode,
		Remarks:           m.Remarks,
		Status:            reconcile.DocStatus(m.Status),
		ReviewedBy:        m.ReviewedBy,
		ReviewNote:        m.ReviewNote,
		DiscoveredByID:    m.DiscoveredByID,
		OperationID:       m.OperationID,
	}
	if m.Lines != "" {
		_ = json.Unmarshal([]byte(m.Lines), &doc.Lines)
	}
	return doc
}

// FromDomain populates the persistence model from a domain ExternalDocument.
func (m *ExternalDocumentModel) FromDomain(d *reconcile.ExternalDocument) {
	m.FromDomainAggregateRoot(d.BaseAggregateRoot)
	m.ExternalID = d.ExternalID
	m.DocType = string(d.DocType)
	m.DocNumber = d.DocNumber
	m.DocDate = d.DocDate
	m.PartnerCode = d.PartnerCode
	m.Remarks = d.Remarks
	m.Status = string(d.Status)
	m.ReviewedBy = d.ReviewedBy
	m.ReviewNote = d.ReviewNote
	m.DiscoveredByID = d.DiscoveredByID
	m.OperationID = d.OperationID
	if lines, err := json.Marshal(d.Lines); err == nil {
		m.Lines = string(lines)
	} else {
		m.Lines = "[]"
	}
}

// ExternalDocumentModelFromDomain creates a new persistence model from a domain ExternalDocument.
func ExternalDocumentModelFromDomain(d *reconcile.ExternalDocument) *ExternalDocumentModel {
	m := &ExternalDocumentModel{}
	m.FromDomain(d)
	return m
}

// ReconciliationRunModel is the persistence model for reconciliation scans.
type ReconciliationRunModel struct {
	BaseModel
	WindowFrom  time.Time `gorm:"not null"`
	WindowTo    time.Time `gorm:"not null;index"`
	Status      string    `gorm:"type:varchar(20);not null;index"`
	Counts      string    `gorm:"type:jsonb;default:'{}'"`
	Errors      string    `gorm:"type:jsonb;default:'[]'"`
	FailureNote string    `gorm:"type:text"`
	StartedAt   time.Time `gorm:"not null"`
	FinishedAt  *time.Time
}

// TableName returns the table name for GORM
func (ReconciliationRunModel) TableName() string {
	return "reconciliation_runs"
}

// ToDomain converts the persistence model to a domain Run.
func (m *ReconciliationRunModel) ToDomain() *reconcile.Run {
	run := &reconcile.Run{
		BaseEntity:  m.BaseModel.ToDomain(),
		WindowFrom:  m.WindowFrom,
		WindowTo:    m.WindowTo,
		Status:      reconcile.RunStatus(m.Status),
		Counts:      make(map[reconcile.DocType]*reconcile.TypeCounts),
		FailureNote: m.FailureNote,
		StartedAt:   m.StartedAt,
		FinishedAt:  m.FinishedAt,
	}
	if m.Counts != "" {
		_ = json.Unmarshal([]byte(m.Counts), &run.Counts)
	}
	if m.Errors != "" {
		_ = json.Unmarshal([]byte(m.Errors), &run.Errors)
	}
	return run
}

// FromDomain populates the persistence model from a domain Run.
func (m *ReconciliationRunModel) FromDomain(r *reconcile.Run) {
	m.FromDomainBaseEntity(r.BaseEntity)
	m.WindowFrom = r.WindowFrom
	m.WindowTo = r.WindowTo
	m.Status = string(r.Status)
	m.FailureNote = r.FailureNote
	m.StartedAt = r.StartedAt
	m.FinishedAt = r.FinishedAt
	if counts, err := json.Marshal(r.Counts); err == nil {
		m.Counts = string(counts)
	} else {
		m.Counts = "{}"
	}
	if errs, err := json.Marshal(r.Errors); err == nil {
		m.Errors = string(errs)
	} else {
		m.Errors = "[]"
	}
}

// ReconciliationRunModelFromDomain creates a new persistence model from a domain Run.
func ReconciliationRunModelFromDomain(r *reconcile.Run) *ReconciliationRunModel {
	m := &ReconciliationRunModel{}
	m.FromDomain(r)
	return m
}

package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ledgerlink/backend/internal/domain/reconcile"
	"github.com/ledgerlink/backend/internal/domain/shared"
	"github.com/ledgerlink/backend/internal/infrastructure/persistence/models"
)

// GormExternalDocumentRepository implements reconcile.ExternalDocumentRepository using GORM
type GormExternalDocumentRepository struct {
	db *gorm.DB
}

// NewGormExternalDocumentRepository creates a new GormExternalDocumentRepository
func NewGormExternalDocumentRepository(db *gorm.DB) *GormExternalDocumentRepository {
	return &GormExternalDocumentRepository{db: db}
}

// FindByID finds an external document by its ID
func (r *GormExternalDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*reconcile.ExternalDocument, error) {
	var m models.ExternalDocumentModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByExternalID finds the document for an (ERP document id, type) pair
func (r *GormExternalDocumentRepository) FindByExternalID(ctx context.Context, externalID string, docType reconcile.DocType) (*reconcile.ExternalDocument, error) {
	var m models.ExternalDocumentModel
	if err := r.db.WithContext(ctx).
		Where("external_id = ? AND doc_type = ?", externalID, string(docType)).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindAll finds documents matching the filter, paginated
func (r *GormExternalDocumentRepository) FindAll(ctx context.Context, filter reconcile.DocumentFilter) (*shared.Paginated[*reconcile.ExternalDocument], error) {
	query := r.db.WithContext(ctx).Model(&models.ExternalDocumentModel{})
	if filter.DocType != nil {
		query = query.Where("doc_type = ?", string(*filter.DocType))
	}
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	orderBy := ValidateSortField(filter.OrderBy, ExternalDocumentSortFields, "doc_date")
	query = query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir)).
		Offset((page - 1) * pageSize).Limit(pageSize)

	var ms []models.ExternalDocumentModel
	if err := query.Find(&ms).Error; err != nil {
		return nil, err
	}

	docs := make([]*reconcile.ExternalDocument, len(ms))
	for i := range ms {
		docs[i] = ms[i].ToDomain()
	}
	result := shared.NewPaginated(docs, total, page, pageSize)
	return &result, nil
}

// FindPendingByProductBatch finds importable documents whose lines touch the
// given (product code, batch). Backs one-hop dependency hints for the import
// validator. The match is done client-side over candidate statuses; document
// volumes are bounded by the review queue.
func (r *GormExternalDocumentRepository) FindPendingByProductBatch(ctx context.Context, productCode, batchNumber string) ([]*reconcile.ExternalDocument, error) {
	var ms []models.ExternalDocumentModel
	if err := r.db.WithContext(ctx).
		Where("status IN ?", []string{
			string(reconcile.DocStatusPendingReview),
			string(reconcile.DocStatusAcknowledged),
		}).
		Find(&ms).Error; err != nil {
		return nil, err
	}

	var matched []*reconcile.ExternalDocument
	for i := range ms {
		doc := ms[i].ToDomain()
		if doc.CreatesBatch(productCode, batchNumber) {
			matched = append(matched, doc)
		}
	}
	return matched, nil
}

// CountByStatus counts documents grouped by review status
func (r *GormExternalDocumentRepository) CountByStatus(ctx context.Context) (map[reconcile.DocStatus]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&models.ExternalDocumentModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[reconcile.DocStatus]int64, len(rows))
	for _, rw := range rows {
		counts[reconcile.DocStatus(rw.Status)] = rw.Count
	}
	return counts, nil
}

// Upsert inserts the document unless (external_id, doc_type) already exists.
// An existing record wins: its review state is never reset by a rescan.
// Returns whether a new row was created.
func (r *GormExternalDocumentRepository) Upsert(ctx context.Context, doc *reconcile.ExternalDocument) (bool, error) {
	m := models.ExternalDocumentModelFromDomain(doc)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}, {Name: "doc_type"}},
			DoNothing: true,
		}).
		Create(m)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Save persists review-state changes on an existing document
func (r *GormExternalDocumentRepository) Save(ctx context.Context, doc *reconcile.ExternalDocument) error {
	m := models.ExternalDocumentModelFromDomain(doc)
	result := r.db.WithContext(ctx).
		Model(&models.ExternalDocumentModel{}).
		Where("id = ?", doc.ID).
		Updates(map[string]interface{}{
			"status":       m.Status,
			"reviewed_by":  m.ReviewedBy,
			"review_note":  m.ReviewNote,
			"operation_id": m.OperationID,
			"updated_at":   m.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ClaimImported conditionally flips a document into its terminal IMPORTED
// state. The status guard in the WHERE clause decides races between
// concurrent importers: only the claimant that still sees an open document
// updates a row, everyone else gets a conflict.
func (r *GormExternalDocumentRepository) ClaimImported(ctx context.Context, doc *reconcile.ExternalDocument) error {
	m := models.ExternalDocumentModelFromDomain(doc)
	result := r.db.WithContext(ctx).
		Model(&models.ExternalDocumentModel{}).
		Where("id = ? AND status IN ?", doc.ID, []string{
			string(reconcile.DocStatusPendingReview),
			string(reconcile.DocStatusAcknowledged),
		}).
		Updates(map[string]interface{}{
			"status":       m.Status,
			"reviewed_by":  m.ReviewedBy,
			"review_note":  m.ReviewNote,
			"operation_id": m.OperationID,
			"updated_at":   m.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 1 {
		return nil
	}

	var exists int64
	if err := r.db.WithContext(ctx).
		Model(&models.ExternalDocumentModel{}).
		Where("id = ?", doc.ID).
		Count(&exists).Error; err != nil {
		return err
	}
	if exists == 0 {
		return shared.ErrNotFound
	}
	return shared.ErrConcurrencyConflict
}

var _ reconcile.ExternalDocumentRepository = (*GormExternalDocumentRepository)(nil)

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

// GormReconciliationRunRepository implements reconcile.RunRepository using GORM
type GormReconciliationRunRepository struct {
	db *gorm.DB
}

// NewGormReconciliationRunRepository creates a new GormReconciliationRunRepository
func NewGormReconciliationRunRepository(db *gorm.DB) *GormReconciliationRunRepository {
	return &GormReconciliationRunRepository{db: db}
}

// FindByID finds a run by its ID
func (r *GormReconciliationRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*reconcile.Run, error) {
	var m models.ReconciliationRunModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindAll finds runs, newest first by default
func (r *GormReconciliationRunRepository) FindAll(ctx context.Context, filter shared.Filter) (*shared.Paginated[*reconcile.Run], error) {
	query := r.db.WithContext(ctx).Model(&models.ReconciliationRunModel{})
	if status, ok := filter.Filters["status"]; ok {
		query = query.Where("status = ?", status)
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
	orderBy := ValidateSortField(filter.OrderBy, ReconciliationRunSortFields, "started_at")
	query = query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir)).
		Offset((page - 1) * pageSize).Limit(pageSize)

	var ms []models.ReconciliationRunModel
	if err := query.Find(&ms).Error; err != nil {
		return nil, err
	}

	runs := make([]*reconcile.Run, len(ms))
	for i := range ms {
		runs[i] = ms[i].ToDomain()
	}
	result := shared.NewPaginated(runs, total, page, pageSize)
	return &result, nil
}

// FindLatestCompleted returns the most recent completed run
func (r *GormReconciliationRunRepository) FindLatestCompleted(ctx context.Context) (*reconcile.Run, error) {
	var m models.ReconciliationRunModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(reconcile.RunStatusCompleted)).
		Order("window_to DESC").
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// Save inserts or updates the run record
func (r *GormReconciliationRunRepository) Save(ctx context.Context, run *reconcile.Run) error {
	m := models.ReconciliationRunModelFromDomain(run)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(m).Error
}

var _ reconcile.RunRepository = (*GormReconciliationRunRepository)(nil)

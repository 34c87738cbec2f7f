package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ledgerlink/backend/internal/domain/ledger"
	"github.com/ledgerlink/backend/internal/domain/shared"
	"github.com/ledgerlink/backend/internal/infrastructure/persistence/models"
)

// GormLocationStockRepository implements ledger.LocationStockRepository using GORM
type GormLocationStockRepository struct {
	db *gorm.DB
}

// NewGormLocationStockRepository creates a new GormLocationStockRepository
func NewGormLocationStockRepository(db *gorm.DB) *GormLocationStockRepository {
	return &GormLocationStockRepository{db: db}
}

// FindByKey finds the aggregate for (product, location)
func (r *GormLocationStockRepository) FindByKey(ctx context.Context, productID, locationID uuid.UUID) (*ledger.LocationStock, error) {
	var m models.LocationStockModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND location_id = ?", productID, locationID).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByLocation finds all product aggregates at a location
func (r *GormLocationStockRepository) FindByLocation(ctx context.Context, locationID uuid.UUID) ([]*ledger.LocationStock, error) {
	var ms []models.LocationStockModel
	if err := r.db.WithContext(ctx).
		Where("location_id = ?", locationID).
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return stockModelsToDomain(ms), nil
}

// FindAll finds aggregates matching the filter
func (r *GormLocationStockRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*ledger.LocationStock, error) {
	var ms []models.LocationStockModel
	query := r.db.WithContext(ctx).Model(&models.LocationStockModel{})

	if productID, ok := filter.Filters["product_id"]; ok {
		query = query.Where("product_id = ?", productID)
	}
	if locationID, ok := filter.Filters["location_id"]; ok {
		query = query.Where("location_id = ?", locationID)
	}
	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset((filter.Page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	if err := query.Find(&ms).Error; err != nil {
		return nil, err
	}
	return stockModelsToDomain(ms), nil
}

// Upsert overwrites the aggregate row for (product, location). The aggregate
// is derived state, so last-writer-wins is safe: any writer carries a full
// recomputation from the lots.
func (r *GormLocationStockRepository) Upsert(ctx context.Context, stock *ledger.LocationStock) error {
	m := models.LocationStockModelFromDomain(stock)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "product_id"}, {Name: "location_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"total", "available", "consigned", "consumed", "damaged", "returned", "updated_at",
			}),
		}).
		Create(m).Error
}

func stockModelsToDomain(ms []models.LocationStockModel) []*ledger.LocationStock {
	stocks := make([]*ledger.LocationStock, len(ms))
	for i := range ms {
		stocks[i] = ms[i].ToDomain()
	}
	return stocks
}

var _ ledger.LocationStockRepository = (*GormLocationStockRepository)(nil)

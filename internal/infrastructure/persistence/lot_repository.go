package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ledgerlink/backend/internal/domain/ledger"
	"github.com/ledgerlink/backend/internal/domain/shared"
	"github.com/ledgerlink/backend/internal/infrastructure/persistence/models"
)

// GormLotRepository implements ledger.LotRepository using GORM
type GormLotRepository struct {
	db *gorm.DB
}

// NewGormLotRepository creates a new GormLotRepository
func NewGormLotRepository(db *gorm.DB) *GormLotRepository {
	return &GormLotRepository{db: db}
}

// FindByID finds a lot by its ID, including its movement history
func (r *GormLotRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Lot, error) {
	var m models.LotModel
	if err := r.db.WithContext(ctx).
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByKey looks up the unique lot for (product, batch number, location)
func (r *GormLotRepository) FindByKey(ctx context.Context, productID uuid.UUID, batchNumber string, locationID uuid.UUID) (*ledger.Lot, error) {
	var m models.LotModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND batch_number = ? AND location_id = ?", productID, batchNumber, locationID).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindAtLocation returns all lots for a product at a location, any status
func (r *GormLotRepository) FindAtLocation(ctx context.Context, productID, locationID uuid.UUID) ([]*ledger.Lot, error) {
	var ms []models.LotModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND location_id = ?", productID, locationID).
		Order("expiry_date ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return lotModelsToDomain(ms), nil
}

// FindActiveExpired returns ACTIVE lots whose expiry date lies at or before
// the given instant
func (r *GormLotRepository) FindActiveExpired(ctx context.Context, asOf time.Time) ([]*ledger.Lot, error) {
	var ms []models.LotModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND expiry_date IS NOT NULL AND expiry_date <= ?", string(ledger.LotStatusActive), asOf).
		Order("expiry_date ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return lotModelsToDomain(ms), nil
}

// FindAll finds lots matching the filter
func (r *GormLotRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*ledger.Lot, error) {
	var ms []models.LotModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.LotModel{}), filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset((filter.Page - 1) * filter.PageSize).Limit(filter.PageSize)
	}
	orderBy := ValidateSortField(filter.OrderBy, LotSortFields, "created_at")
	query = query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))

	if err := query.Find(&ms).Error; err != nil {
		return nil, err
	}
	return lotModelsToDomain(ms), nil
}

// Count counts lots matching the filter
func (r *GormLotRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.LotModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save persists the lot and appends any new history entries.
// History rows are insert-only: entries whose ID already exists are left
// untouched, so saving a reloaded aggregate never duplicates its log.
func (r *GormLotRepository) Save(ctx context.Context, lot *ledger.Lot) error {
	m := models.LotModelFromDomain(lot)
	if err := r.db.WithContext(ctx).
		Omit("History").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(m).Error; err != nil {
		return err
	}
	return r.appendHistory(ctx, m.History)
}

// SaveWithLock persists with a version check. The row is updated only when
// the stored version still matches the aggregate's; a lost race returns
// shared.ErrConcurrencyConflict and the caller reloads and retries.
func (r *GormLotRepository) SaveWithLock(ctx context.Context, lot *ledger.Lot) error {
	m := models.LotModelFromDomain(lot)
	result := r.db.WithContext(ctx).
		Model(&models.LotModel{}).
		Where("id = ? AND version = ?", lot.ID, lot.Version).
		Updates(map[string]interface{}{
			"total":      m.Total,
			"available":  m.Available,
			"consigned":  m.Consigned,
			"consumed":   m.Consumed,
			"damaged":    m.Damaged,
			"returned":   m.Returned,
			"status":     m.Status,
			"version":    lot.Version + 1,
			"updated_at": m.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	lot.IncrementVersion()
	return r.appendHistory(ctx, m.History)
}

func (r *GormLotRepository) appendHistory(ctx context.Context, entries []models.LotHistoryModel) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(&entries).Error
}

// applyFilter applies filter criteria to the query
func (r *GormLotRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if productID, ok := filter.Filters["product_id"]; ok {
		query = query.Where("product_id = ?", productID)
	}
	if locationID, ok := filter.Filters["location_id"]; ok {
		query = query.Where("location_id = ?", locationID)
	}
	if batchNumber, ok := filter.Filters["batch_number"]; ok {
		query = query.Where("batch_number = ?", batchNumber)
	}
	if status, ok := filter.Filters["status"]; ok {
		query = query.Where("status = ?", status)
	}
	return query
}

func lotModelsToDomain(ms []models.LotModel) []*ledger.Lot {
	lots := make([]*ledger.Lot, len(ms))
	for i := range ms {
		lots[i] = ms[i].ToDomain()
	}
	return lots
}

var _ ledger.LotRepository = (*GormLotRepository)(nil)

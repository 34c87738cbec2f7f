package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ledgerlink/backend/internal/domain/catalog"
	"github.com/ledgerlink/backend/internal/domain/shared"
	"github.com/ledgerlink/backend/internal/infrastructure/persistence/models"
)

// GormProductRepository implements catalog.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindByID finds a product by its ID
func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	var m models.ProductModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByCode finds a product by its ERP item code
func (r *GormProductRepository) FindByCode(ctx context.Context, code string) (*catalog.Product, error) {
	var m models.ProductModel
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// ActiveCodes lists the item codes of all active products
func (r *GormProductRepository) ActiveCodes(ctx context.Context) ([]string, error) {
	var codes []string
	err := r.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Where("active = ?", true).
		Order("code").
		Pluck("code", &codes).Error
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// FindAll finds products, paginated
func (r *GormProductRepository) FindAll(ctx context.Context, filter shared.Filter) (*shared.Paginated[*catalog.Product], error) {
	query := r.db.WithContext(ctx).Model(&models.ProductModel{})
	if active, ok := filter.Filters["active"]; ok {
		query = query.Where("active = ?", active)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	page, pageSize := normalizePage(filter)
	orderBy := ValidateSortField(filter.OrderBy, CatalogSortFields, "code")
	query = query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir)).
		Offset((page - 1) * pageSize).Limit(pageSize)

	var ms []models.ProductModel
	if err := query.Find(&ms).Error; err != nil {
		return nil, err
	}

	products := make([]*catalog.Product, len(ms))
	for i := range ms {
		products[i] = ms[i].ToDomain()
	}
	result := shared.NewPaginated(products, total, page, pageSize)
	return &result, nil
}

var _ catalog.ProductRepository = (*GormProductRepository)(nil)

// GormLocationRepository implements catalog.LocationRepository using GORM
type GormLocationRepository struct {
	db *gorm.DB
}

// NewGormLocationRepository creates a new GormLocationRepository
func NewGormLocationRepository(db *gorm.DB) *GormLocationRepository {
	return &GormLocationRepository{db: db}
}

// FindByID finds a location by its ID
func (r *GormLocationRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Location, error) {
	var m models.LocationModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByCode finds a location by its code
func (r *GormLocationRepository) FindByCode(ctx context.Context, code string) (*catalog.Location, error) {
	var m models.LocationModel
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByWarehouse resolves the location mapped to an ERP warehouse/bin pair
func (r *GormLocationRepository) FindByWarehouse(ctx context.Context, warehouseCode, binCode string) (*catalog.Location, error) {
	var m models.LocationModel
	if err := r.db.WithContext(ctx).
		Where("warehouse_code = ? AND bin_code = ?", warehouseCode, binCode).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByCounterpart resolves the consignment location for an ERP partner
func (r *GormLocationRepository) FindByCounterpart(ctx context.Context, counterpartCode string) (*catalog.Location, error) {
	var m models.LocationModel
	if err := r.db.WithContext(ctx).
		Where("counterpart_code = ?", counterpartCode).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindAll finds locations, paginated
func (r *GormLocationRepository) FindAll(ctx context.Context, filter shared.Filter) (*shared.Paginated[*catalog.Location], error) {
	query := r.db.WithContext(ctx).Model(&models.LocationModel{})
	if active, ok := filter.Filters["active"]; ok {
		query = query.Where("active = ?", active)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	page, pageSize := normalizePage(filter)
	orderBy := ValidateSortField(filter.OrderBy, CatalogSortFields, "code")
	query = query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir)).
		Offset((page - 1) * pageSize).Limit(pageSize)

	var ms []models.LocationModel
	if err := query.Find(&ms).Error; err != nil {
		return nil, err
	}

	locations := make([]*catalog.Location, len(ms))
	for i := range ms {
		locations[i] = ms[i].ToDomain()
	}
	result := shared.NewPaginated(locations, total, page, pageSize)
	return &result, nil
}

func normalizePage(filter shared.Filter) (int, int) {
	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return page, pageSize
}

var _ catalog.LocationRepository = (*GormLocationRepository)(nil)

package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ledgerlink/backend/internal/domain/catalog"
	"github.com/ledgerlink/backend/internal/domain/shared"
	"github.com/ledgerlink/backend/internal/infrastructure/persistence/models"
)

func setupCatalogTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.ProductModel{}, &models.LocationModel{})
	require.NoError(t, err)

	return db
}

func TestGormCatalogRepositories(t *testing.T) {
	db := setupCatalogTestDB(t)
	ctx := context.Background()

	product := &catalog.Product{
		BaseEntity:   shared.NewBaseEntity(),
		Code:         "SKU-001",
		Name:         "Insulin pen",
		Unit:         "EA",
		BatchManaged: true,
		Active:       true,
	}
	pm := &models.ProductModel{}
	pm.FromDomain(product)
	require.NoError(t, db.Create(pm).Error)

	location := &catalog.Location{
		BaseEntity:      shared.NewBaseEntity(),
		Code:            "CONS-ACME",
		Name:            "Acme hospital consignment",
		WarehouseCode:   "WH-CONS",
		BinCode:         "ACME",
		CounterpartCode: "C00042",
		Active:          true,
	}
	lm := &models.LocationModel{}
	lm.FromDomain(location)
	require.NoError(t, db.Create(lm).Error)

	products := NewGormProductRepository(db)
	locations := NewGormLocationRepository(db)

	t.Run("product by code", func(t *testing.T) {
		found, err := products.FindByCode(ctx, "SKU-001")
		require.NoError(t, err)
		assert.Equal(t, product.ID, found.ID)
		assert.True(t, found.BatchManaged)

		_, err = products.FindByCode(ctx, "SKU-404")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("location by warehouse and bin", func(t *testing.T) {
		found, err := locations.FindByWarehouse(ctx, "WH-CONS", "ACME")
		require.NoError(t, err)
		assert.Equal(t, location.ID, found.ID)
		assert.True(t, found.Consignment())

		_, err = locations.FindByWarehouse(ctx, "WH-CONS", "NOPE")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("listing", func(t *testing.T) {
		page, err := products.FindAll(ctx, shared.DefaultFilter())
		require.NoError(t, err)
		assert.Equal(t, int64(1), page.Total)

		lpage, err := locations.FindAll(ctx, shared.DefaultFilter())
		require.NoError(t, err)
		assert.Equal(t, int64(1), lpage.Total)
	})
}

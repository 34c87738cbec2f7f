package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ledgerlink/backend/internal/domain/ledger"
	"github.com/ledgerlink/backend/internal/domain/shared"
	"github.com/ledgerlink/backend/internal/infrastructure/persistence/models"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.LotModel{}, &models.LotHistoryModel{}, &models.LocationStockModel{})
	require.NoError(t, err)

	return db
}

func newTestLot(t *testing.T) *ledger.Lot {
	expiry := time.Now().AddDate(1, 0, 0)
	lot, err := ledger.NewLot(uuid.New(), "B-2026-01", uuid.New(), &expiry)
	require.NoError(t, err)
	require.NoError(t, lot.Receive(decimal.NewFromInt(100), ledger.Movement{Actor: "tester", Context: "initial receipt"}))
	return lot
}

func TestGormLotRepository_SaveAndFind(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormLotRepository(db)
	ctx := context.Background()

	lot := newTestLot(t)
	require.NoError(t, repo.Save(ctx, lot))

	t.Run("finds by id with history", func(t *testing.T) {
		found, err := repo.FindByID(ctx, lot.ID)
		require.NoError(t, err)
		assert.True(t, found.Available.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, ledger.LotStatusActive, found.Status)
		require.Len(t, found.History, 1)
		assert.Equal(t, "tester", found.History[0].Actor)
	})

	t.Run("finds by key", func(t *testing.T) {
		found, err := repo.FindByKey(ctx, lot.ProductID, lot.BatchNumber, lot.LocationID)
		require.NoError(t, err)
		assert.Equal(t, lot.ID, found.ID)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("saving again does not duplicate history", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, lot))
		found, err := repo.FindByID(ctx, lot.ID)
		require.NoError(t, err)
		assert.Len(t, found.History, 1)
	})
}

func TestGormLotRepository_SaveWithLock(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormLotRepository(db)
	ctx := context.Background()

	lot := newTestLot(t)
	require.NoError(t, repo.Save(ctx, lot))

	t.Run("first writer wins", func(t *testing.T) {
		require.NoError(t, lot.Consume(decimal.NewFromInt(10), ledger.Movement{Actor: "a"}))
		require.NoError(t, repo.SaveWithLock(ctx, lot))
		assert.Equal(t, 2, lot.Version)

		found, err := repo.FindByID(ctx, lot.ID)
		require.NoError(t, err)
		assert.True(t, found.Available.Equal(decimal.NewFromInt(90)))
	})

	t.Run("stale writer loses", func(t *testing.T) {
		stale := newTestLot(t)
		stale.BaseAggregateRoot = lot.BaseAggregateRoot
		stale.Version = 1 // the row is at version 2 now

		err := repo.SaveWithLock(ctx, stale)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	})
}

func TestGormLotRepository_FindAtLocation(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormLotRepository(db)
	ctx := context.Background()

	productID := uuid.New()
	locationID := uuid.New()

	for _, batch := range []string{"B-1", "B-2"} {
		lot, err := ledger.NewLot(productID, batch, locationID, nil)
		require.NoError(t, err)
		require.NoError(t, lot.Receive(decimal.NewFromInt(5), ledger.Movement{Actor: "tester"}))
		require.NoError(t, repo.Save(ctx, lot))
	}
	// lot at another location must not appear
	other, err := ledger.NewLot(productID, "B-1", uuid.New(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, other))

	lots, err := repo.FindAtLocation(ctx, productID, locationID)
	require.NoError(t, err)
	assert.Len(t, lots, 2)
}

func TestGormLotRepository_FilterAndCount(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormLotRepository(db)
	ctx := context.Background()

	lot := newTestLot(t)
	require.NoError(t, repo.Save(ctx, lot))

	filter := shared.DefaultFilter()
	filter.Filters["product_id"] = lot.ProductID

	count, err := repo.Count(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	lots, err := repo.FindAll(ctx, filter)
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Equal(t, lot.ID, lots[0].ID)

	filter.Filters["status"] = string(ledger.LotStatusDepleted)
	count, err = repo.Count(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestGormLocationStockRepository_Upsert(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormLocationStockRepository(db)
	ctx := context.Background()

	stock := ledger.NewLocationStock(uuid.New(), uuid.New())
	stock.Available = decimal.NewFromInt(10)
	stock.Total = decimal.NewFromInt(10)
	require.NoError(t, repo.Upsert(ctx, stock))

	// second write for the same key overwrites instead of duplicating
	recomputed := ledger.NewLocationStock(stock.ProductID, stock.LocationID)
	recomputed.Available = decimal.NewFromInt(7)
	recomputed.Total = decimal.NewFromInt(7)
	require.NoError(t, repo.Upsert(ctx, recomputed))

	found, err := repo.FindByKey(ctx, stock.ProductID, stock.LocationID)
	require.NoError(t, err)
	assert.True(t, found.Available.Equal(decimal.NewFromInt(7)))

	all, err := repo.FindByLocation(ctx, stock.LocationID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGormLocationStockRepository_NotFound(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormLocationStockRepository(db)

	_, err := repo.FindByKey(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

package reconcile_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	appledger "github.com/ledgerlink/backend/internal/application/ledger"
	appreconcile "github.com/ledgerlink/backend/internal/application/reconcile"
	"github.com/ledgerlink/backend/internal/domain/catalog"
	"github.com/ledgerlink/backend/internal/domain/ledger"
	"github.com/ledgerlink/backend/internal/domain/operation"
	"github.com/ledgerlink/backend/internal/domain/reconcile"
	"github.com/ledgerlink/backend/internal/infrastructure/persistence"
	"github.com/ledgerlink/backend/internal/infrastructure/persistence/models"
)

type importFixture struct {
	db        *gorm.DB
	importer  *appreconcile.ImportService
	ledgerSvc *appledger.BatchLedgerService
	scope     appledger.TransactionScope
	docs      reconcile.ExternalDocumentRepository
	ops       operation.Repository
	lots      ledger.LotRepository
	product   *catalog.Product
	main      *catalog.Location
	consign   *catalog.Location
}

func setupImporter(t *testing.T) *importFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.ProductModel{}, &models.LocationModel{},
		&models.LotModel{}, &models.LotHistoryModel{}, &models.LocationStockModel{},
		&models.OperationModel{}, &models.OperationLineModel{},
		&models.ExternalDocumentModel{}, &models.ReconciliationRunModel{},
	))

	product := &catalog.Product{Code: "MAT-001", Name: "Raw material", Unit: "kg", BatchManaged: true, Active: true}
	product.ID = uuid.New()
	main := &catalog.Location{Code: "MAIN", Name: "Main store", WarehouseCode: "WH01", Active: true}
	main.ID = uuid.New()
	consign := &catalog.Location{Code: "LINE-1", Name: "Line buffer", WarehouseCode: "WH02", CounterpartCode: "C-LINE1", Active: true}
	consign.ID = uuid.New()

	pm := &models.ProductModel{}
	pm.FromDomain(product)
	require.NoError(t, db.Create(pm).Error)
	for _, loc := range []*catalog.Location{main, consign} {
		lm := &models.LocationModel{}
		lm.FromDomain(loc)
		require.NoError(t, db.Create(lm).Error)
	}

	scope := persistence.NewGormTransactionScope(db)
	lots := persistence.NewGormLotRepository(db)
	stocks := persistence.NewGormLocationStockRepository(db)
	docs := persistence.NewGormExternalDocumentRepository(db)
	ops := persistence.NewGormOperationRepository(db)
	ledgerSvc := appledger.NewBatchLedgerService(scope, lots, stocks, zap.NewNop())

	importer := appreconcile.NewImportService(
		scope, ledgerSvc, docs,
		persistence.NewGormProductRepository(db),
		persistence.NewGormLocationRepository(db),
		lots, zap.NewNop(),
	)

	return &importFixture{
		db: db, importer: importer, ledgerSvc: ledgerSvc, scope: scope,
		docs: docs, ops: ops, lots: lots,
		product: product, main: main, consign: consign,
	}
}

func (f *importFixture) receiveStock(t *testing.T, batch string, qty int64) {
	t.Helper()
	err := f.scope.Execute(context.Background(), func(repos appledger.TransactionalRepositories) error {
		_, err := f.ledgerSvc.ApplyReceipt(context.Background(), repos, appledger.MovementInput{
			ProductID:   f.product.ID,
			LocationID:  f.main.ID,
			BatchNumber: batch,
			Quantity:    decimal.NewFromInt(qty),
			Actor:       "seed",
		})
		return err
	})
	require.NoError(t, err)
}

func (f *importFixture) storeDocument(t *testing.T, docType reconcile.DocType, externalID string, lines []reconcile.DocumentLine, partner string) *reconcile.ExternalDocument {
	t.Helper()
	doc, err := reconcile.NewExternalDocument(externalID, docType, "2"+externalID, time.Now(), lines)
	require.NoError(t, err)
	doc.PartnerCode = partner
	created, err := f.docs.Upsert(context.Background(), doc)
	require.NoError(t, err)
	require.True(t, created)
	return doc
}

func TestValidate_ReceiptPreview(t *testing.T) {
	f := setupImporter(t)
	ctx := context.Background()
	expiry := time.Now().AddDate(1, 0, 0)

	doc := f.storeDocument(t, reconcile.DocTypeGoodsReceipt, "910", []reconcile.DocumentLine{
		{ProductCode: "MAT-001", BatchNumber: "B-910", Quantity: decimal.NewFromInt(25), WarehouseCode: "WH01", ExpiryDate: &expiry},
	}, "")

	result, err := f.importer.Validate(ctx, doc.ID)
	require.NoError(t, err)

	assert.True(t, result.CanImport)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Preview, 1)
	assert.Equal(t, "MAT-001", result.Preview[0].ProductCode)
	assert.Equal(t, "B-910", result.Preview[0].BatchNumber)
	assert.Equal(t, "MAIN", result.Preview[0].ToLocation)

	// dry run writes nothing
	_, err = f.lots.FindByKey(ctx, f.product.ID, "B-910", f.main.ID)
	assert.Error(t, err)
}

func TestValidate_CollectsLineErrors(t *testing.T) {
	f := setupImporter(t)
	ctx := context.Background()

	doc := f.storeDocument(t, reconcile.DocTypeGoodsReceipt, "911", []reconcile.DocumentLine{
		{LineNum: 0, ProductCode: "MAT-404", Quantity: decimal.NewFromInt(5), WarehouseCode: "WH01"},
		{LineNum: 1, ProductCode: "MAT-001", BatchNumber: "B-911", Quantity: decimal.NewFromInt(5), WarehouseCode: "WH-UNKNOWN"},
	}, "")

	result, err := f.importer.Validate(ctx, doc.ID)
	require.NoError(t, err)

	assert.False(t, result.CanImport)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, appreconcile.ValidationUnknownProduct, result.Errors[0].Code)
	assert.Equal(t, 0, result.Errors[0].LineNum)
	assert.Equal(t, appreconcile.ValidationUnmappedWarehouse, result.Errors[1].Code)
	assert.Equal(t, 1, result.Errors[1].LineNum)
}

func TestValidate_BatchManagedLineWithoutBatch(t *testing.T) {
	f := setupImporter(t)
	ctx := context.Background()

	doc := f.storeDocument(t, reconcile.DocTypeGoodsReceipt, "912", []reconcile.DocumentLine{
		{ProductCode: "MAT-001", Quantity: decimal.NewFromInt(5), WarehouseCode: "WH01"},
	}, "")

	result, err := f.importer.Validate(ctx, doc.ID)
	require.NoError(t, err)

	assert.False(t, result.CanImport)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, appreconcile.ValidationMissingBatch, result.Errors[0].Code)
}

func TestValidate_DeliveryChecksAvailability(t *testing.T) {
	f := setupImporter(t)
	ctx := context.Background()
	f.receiveStock(t, "B-920", 10)

	doc := f.storeDocument(t, reconcile.DocTypeDelivery, "920", []reconcile.DocumentLine{
		{ProductCode: "MAT-001", BatchNumber: "B-920", Quantity: decimal.NewFromInt(15), WarehouseCode: "WH01"},
	}, "")

	result, err := f.importer.Validate(ctx, doc.ID)
	require.NoError(t, err)

	assert.False(t, result.CanImport)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, appreconcile.ValidationInsufficientStock, result.Errors[0].Code)
	assert.Contains(t, result.Errors[0].Message, "10")
	assert.Contains(t, result.Errors[0].Message, "15")
}

func TestValidate_MissingBatchYieldsDependencyHint(t *testing.T) {
	f := setupImporter(t)
	ctx := context.Background()

	// a pending receipt would create the batch the delivery needs
	receipt := f.storeDocument(t, reconcile.DocTypeGoodsReceipt, "930", []reconcile.DocumentLine{
		{ProductCode: "MAT-001", BatchNumber: "B-930", Quantity: decimal.NewFromInt(50), WarehouseCode: "WH01"},
	}, "")

	delivery := f.storeDocument(t, reconcile.DocTypeDelivery, "931", []reconcile.DocumentLine{
		{ProductCode: "MAT-001", BatchNumber: "B-930", Quantity: decimal.NewFromInt(20), WarehouseCode: "WH01"},
	}, "")

	result, err := f.importer.Validate(ctx, delivery.ID)
	require.NoError(t, err)

	assert.False(t, result.CanImport)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, appreconcile.ValidationUnknownBatch, result.Errors[0].Code)
	require.NotNil(t, result.Dependency)
	assert.Equal(t, receipt.ID, result.Dependency.DocumentID)
	assert.Equal(t, reconcile.DocTypeGoodsReceipt, result.Dependency.DocType)
	assert.Equal(t, "B-930", result.Dependency.BatchNumber)
}

func TestImport_ReceiptBooksLedgerAndOperation(t *testing.T) {
	f := setupImporter(t)
	ctx := context.Background()
	expiry := time.Now().AddDate(1, 0, 0)

	doc := f.storeDocument(t, reconcile.DocTypeGoodsReceipt, "940", []reconcile.DocumentLine{
		{ProductCode: "MAT-001", BatchNumber: "B-940", Quantity: decimal.NewFromInt(60), WarehouseCode: "WH01", ExpiryDate: &expiry},
	}, "")

	op, err := f.importer.Import(ctx, doc.ID, "auditor")
	require.NoError(t, err)

	// operation is born synced and never posted
	assert.Equal(t, operation.KindReceipt, op.Kind)
	assert.True(t, op.ExternallySourced)
	assert.True(t, op.Sync.Pushed)
	assert.Equal(t, operation.SyncStateSynced, op.Sync.State)
	assert.Equal(t, "940", op.Sync.ExternalID)
	assert.Equal(t, "2940", op.Sync.ExternalNumber)

	lot, err := f.lots.FindByKey(ctx, f.product.ID, "B-940", f.main.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(60).Equal(lot.Available))

	stored, err := f.docs.FindByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, reconcile.DocStatusImported, stored.Status)
	assert.Equal(t, "auditor", stored.ReviewedBy)
	require.NotNil(t, stored.OperationID)
	assert.Equal(t, op.ID, *stored.OperationID)

	// scanner skips it from now on: the operation references the ERP id
	exists, err := f.ops.ExistsWithExternalID(ctx, "940")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestImport_TransferUsesPartnerDestination(t *testing.T) {
	f := setupImporter(t)
	ctx := context.Background()
	f.receiveStock(t, "B-950", 40)

	doc := f.storeDocument(t, reconcile.DocTypeStockTransfer, "950", []reconcile.DocumentLine{
		{ProductCode: "MAT-001", BatchNumber: "B-950", Quantity: decimal.NewFromInt(15), WarehouseCode: "WH01", ToWarehouseCode: "WH02"},
	}, "C-LINE1")

	op, err := f.importer.Import(ctx, doc.ID, "auditor")
	require.NoError(t, err)
	assert.Equal(t, operation.KindTransfer, op.Kind)
	require.NotNil(t, op.SourceLocationID)
	require.NotNil(t, op.DestinationLocationID)
	assert.Equal(t, f.main.ID, *op.SourceLocationID)
	assert.Equal(t, f.consign.ID, *op.DestinationLocationID)

	source, err := f.lots.FindByKey(ctx, f.product.ID, "B-950", f.main.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(25).Equal(source.Available))
	assert.True(t, decimal.NewFromInt(15).Equal(source.Consigned))

	dest, err := f.lots.FindByKey(ctx, f.product.ID, "B-950", f.consign.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(15).Equal(dest.Available))
}

func TestImport_BlockedValidationWritesNothing(t *testing.T) {
	f := setupImporter(t)
	ctx := context.Background()

	doc := f.storeDocument(t, reconcile.DocTypeDelivery, "960", []reconcile.DocumentLine{
		{ProductCode: "MAT-001", BatchNumber: "B-NONE", Quantity: decimal.NewFromInt(5), WarehouseCode: "WH01"},
	}, "")

	_, err := f.importer.Import(ctx, doc.ID, "auditor")
	require.Error(t, err)

	var blocked *appreconcile.ImportBlockedError
	require.True(t, errors.As(err, &blocked))
	assert.False(t, blocked.Result.CanImport)

	var opCount int64
	require.NoError(t, f.db.Model(&models.OperationModel{}).Count(&opCount).Error)
	assert.Zero(t, opCount)

	stored, err := f.docs.FindByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, reconcile.DocStatusPendingReview, stored.Status)
}

func TestImport_IsOneWay(t *testing.T) {
	f := setupImporter(t)
	ctx := context.Background()

	doc := f.storeDocument(t, reconcile.DocTypeGoodsReceipt, "970", []reconcile.DocumentLine{
		{ProductCode: "MAT-001", BatchNumber: "B-970", Quantity: decimal.NewFromInt(5), WarehouseCode: "WH01"},
	}, "")

	_, err := f.importer.Import(ctx, doc.ID, "auditor")
	require.NoError(t, err)

	_, err = f.importer.Import(ctx, doc.ID, "auditor")
	assert.ErrorIs(t, err, appreconcile.ErrDocumentNotImportable)

	_, err = f.importer.Validate(ctx, doc.ID)
	assert.ErrorIs(t, err, appreconcile.ErrDocumentNotImportable)
}

func TestImport_IgnoredDocumentRefused(t *testing.T) {
	f := setupImporter(t)
	ctx := context.Background()

	doc := f.storeDocument(t, reconcile.DocTypeGoodsReceipt, "980", []reconcile.DocumentLine{
		{ProductCode: "MAT-001", BatchNumber: "B-980", Quantity: decimal.NewFromInt(5), WarehouseCode: "WH01"},
	}, "")

	_, err := f.importer.Ignore(ctx, doc.ID, "auditor", "duplicate entry")
	require.NoError(t, err)

	_, err = f.importer.Import(ctx, doc.ID, "auditor")
	assert.ErrorIs(t, err, appreconcile.ErrDocumentNotImportable)
}

func TestAcknowledge_KeepsDocumentImportable(t *testing.T) {
	f := setupImporter(t)
	ctx := context.Background()

	doc := f.storeDocument(t, reconcile.DocTypeGoodsReceipt, "990", []reconcile.DocumentLine{
		{ProductCode: "MAT-001", BatchNumber: "B-990", Quantity: decimal.NewFromInt(5), WarehouseCode: "WH01"},
	}, "")

	acked, err := f.importer.Acknowledge(ctx, doc.ID, "auditor", "seen, import later")
	require.NoError(t, err)
	assert.Equal(t, reconcile.DocStatusAcknowledged, acked.Status)

	_, err = f.importer.Import(ctx, doc.ID, "auditor")
	assert.NoError(t, err)
}

func TestPendingCount_GroupsByStatus(t *testing.T) {
	f := setupImporter(t)
	ctx := context.Background()

	f.storeDocument(t, reconcile.DocTypeGoodsReceipt, "991", []reconcile.DocumentLine{
		{ProductCode: "MAT-001", BatchNumber: "B-991", Quantity: decimal.NewFromInt(5), WarehouseCode: "WH01"},
	}, "")
	ignored := f.storeDocument(t, reconcile.DocTypeGoodsReceipt, "992", []reconcile.DocumentLine{
		{ProductCode: "MAT-001", BatchNumber: "B-992", Quantity: decimal.NewFromInt(5), WarehouseCode: "WH01"},
	}, "")
	_, err := f.importer.Ignore(ctx, ignored.ID, "auditor", "noise")
	require.NoError(t, err)

	counts, err := f.importer.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[reconcile.DocStatusPendingReview])
	assert.Equal(t, int64(1), counts[reconcile.DocStatusIgnored])
}

// staleDocs serves reads from a snapshot taken before a concurrent import
// finished, while writes still hit the database
type staleDocs struct {
	reconcile.ExternalDocumentRepository
	snapshot *reconcile.ExternalDocument
}

func (s *staleDocs) FindByID(ctx context.Context, id uuid.UUID) (*reconcile.ExternalDocument, error) {
	if id == s.snapshot.ID {
		copied := *s.snapshot
		return &copied, nil
	}
	return s.ExternalDocumentRepository.FindByID(ctx, id)
}

func TestImport_ConcurrentImportLosesRaceCleanly(t *testing.T) {
	f := setupImporter(t)
	ctx := context.Background()

	doc := f.storeDocument(t, reconcile.DocTypeGoodsReceipt, "990", []reconcile.DocumentLine{
		{ProductCode: "MAT-001", BatchNumber: "B-990", Quantity: decimal.NewFromInt(40), WarehouseCode: "WH01"},
	}, "")

	// the second worker read the document while it was still open
	open, err := f.docs.FindByID(ctx, doc.ID)
	require.NoError(t, err)
	lateImporter := appreconcile.NewImportService(
		f.scope, f.ledgerSvc, &staleDocs{ExternalDocumentRepository: f.docs, snapshot: open},
		persistence.NewGormProductRepository(f.db),
		persistence.NewGormLocationRepository(f.db),
		f.lots, zap.NewNop(),
	)

	_, err = f.importer.Import(ctx, doc.ID, "w1")
	require.NoError(t, err)

	_, err = lateImporter.Import(ctx, doc.ID, "w2")
	assert.ErrorIs(t, err, appreconcile.ErrDocumentNotImportable)

	// the loser's transaction rolled back whole: one operation, one booking
	var opCount int64
	require.NoError(t, f.db.Model(&models.OperationModel{}).Count(&opCount).Error)
	assert.Equal(t, int64(1), opCount)

	lot, err := f.lots.FindByKey(ctx, f.product.ID, "B-990", f.main.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(40).Equal(lot.Available))

	stored, err := f.docs.FindByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "w1", stored.ReviewedBy)
}

package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	appledger "github.com/ledgerlink/backend/internal/application/ledger"
	"github.com/ledgerlink/backend/internal/application/saga"
	"github.com/ledgerlink/backend/internal/domain/catalog"
	"github.com/ledgerlink/backend/internal/infrastructure/erp"
	"github.com/ledgerlink/backend/internal/infrastructure/persistence"
	"github.com/ledgerlink/backend/internal/infrastructure/persistence/models"
	"github.com/ledgerlink/backend/internal/interfaces/http/handler"
	"github.com/ledgerlink/backend/internal/interfaces/http/middleware"
	"github.com/ledgerlink/backend/internal/interfaces/http/router"
)

type fakePoster struct {
	result erp.PostResult
	err    error
	calls  int
}

func (p *fakePoster) post() (erp.PostResult, error) {
	p.calls++
	if p.err != nil {
		return erp.PostResult{}, p.err
	}
	return p.result, nil
}

func (p *fakePoster) PostGoodsReceipt(ctx context.Context, doc *erp.Document) (erp.PostResult, error) {
	return p.post()
}

func (p *fakePoster) PostStockTransfer(ctx context.Context, doc *erp.Document) (erp.PostResult, error) {
	return p.post()
}

func (p *fakePoster) PostDelivery(ctx context.Context, doc *erp.Document) (erp.PostResult, error) {
	return p.post()
}

type webFixture struct {
	engine  *gin.Engine
	poster  *fakePoster
	product *catalog.Product
	main    *catalog.Location
	dest    *catalog.Location
}

func setupWeb(t *testing.T) *webFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.ProductModel{}, &models.LocationModel{},
		&models.LotModel{}, &models.LotHistoryModel{}, &models.LocationStockModel{},
		&models.OperationModel{}, &models.OperationLineModel{},
	))

	product := &catalog.Product{Code: "MAT-001", Name: "Raw material", Unit: "kg", BatchManaged: true, Active: true}
	product.ID = uuid.New()
	main := &catalog.Location{Code: "MAIN", Name: "Main store", WarehouseCode: "WH01", Active: true}
	main.ID = uuid.New()
	dest := &catalog.Location{Code: "LINE-1", Name: "Line buffer", WarehouseCode: "WH02", Active: true}
	dest.ID = uuid.New()

	pm := &models.ProductModel{}
	pm.FromDomain(product)
	require.NoError(t, db.Create(pm).Error)
	for _, loc := range []*catalog.Location{main, dest} {
		lm := &models.LocationModel{}
		lm.FromDomain(loc)
		require.NoError(t, db.Create(lm).Error)
	}

	scope := persistence.NewGormTransactionScope(db)
	lots := persistence.NewGormLotRepository(db)
	stocks := persistence.NewGormLocationStockRepository(db)
	ledgerSvc := appledger.NewBatchLedgerService(scope, lots, stocks, zap.NewNop())

	poster := &fakePoster{result: erp.PostResult{ExternalID: "701", ExternalNumber: "20701"}}
	coordinator := saga.NewDualWriteCoordinator(
		scope, ledgerSvc,
		persistence.NewGormOperationRepository(db),
		persistence.NewGormProductRepository(db),
		persistence.NewGormLocationRepository(db),
		poster, 5*time.Second, zap.NewNop(),
	)

	engine := gin.New()
	engine.Use(middleware.RequestID())
	router.NewRouter(engine).
		Register(handler.NewOperationHandler(coordinator)).
		Setup()

	return &webFixture{engine: engine, poster: poster, product: product, main: main, dest: dest}
}

func (f *webFixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return w, envelope
}

func errorCode(t *testing.T, envelope map[string]any) string {
	t.Helper()
	errObj, ok := envelope["error"].(map[string]any)
	require.True(t, ok, "expected error payload, got %v", envelope)
	code, _ := errObj["code"].(string)
	return code
}

func receiptPayload(f *webFixture, qty int64) map[string]any {
	return map[string]any{
		"destination_location_id": f.dest.ID.String(),
		"lines": []map[string]any{
			{"product_id": f.product.ID.String(), "batch_number": "B-100", "quantity": qty},
		},
		"actor":     "warehouse",
		"reference": "PO-1",
	}
}

func TestSubmitReceiptEndpoint(t *testing.T) {
	f := setupWeb(t)

	w, envelope := f.do(t, http.MethodPost, "/api/v1/operations/receipts", receiptPayload(f, 40))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, envelope["success"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	data := envelope["data"].(map[string]any)
	assert.Equal(t, "RECEIPT", data["Kind"])
	assert.Equal(t, 1, f.poster.calls)
}

func TestSubmitReceiptEndpoint_BindingError(t *testing.T) {
	f := setupWeb(t)

	w, envelope := f.do(t, http.MethodPost, "/api/v1/operations/receipts", map[string]any{
		"destination_location_id": "not-a-uuid",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ERR_BAD_REQUEST", errorCode(t, envelope))
	assert.Zero(t, f.poster.calls)
}

func TestSubmitReceiptEndpoint_ExternalRejection(t *testing.T) {
	f := setupWeb(t)
	f.poster.err = fmt.Errorf("%w: Item MAT-001 is blocked", erp.ErrRejected)

	w, envelope := f.do(t, http.MethodPost, "/api/v1/operations/receipts", receiptPayload(f, 40))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "ERR_EXTERNAL_REJECTED", errorCode(t, envelope))
}

func TestSubmitReceiptEndpoint_ExternalTimeout(t *testing.T) {
	f := setupWeb(t)
	f.poster.err = fmt.Errorf("%w: post goods receipt", erp.ErrTimeout)

	w, envelope := f.do(t, http.MethodPost, "/api/v1/operations/receipts", receiptPayload(f, 40))

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, "ERR_EXTERNAL_TIMEOUT", errorCode(t, envelope))
}

func TestSubmitConsumptionEndpoint_Shortfall(t *testing.T) {
	f := setupWeb(t)

	w, envelope := f.do(t, http.MethodPost, "/api/v1/operations/consumptions", map[string]any{
		"source_location_id": f.main.ID.String(),
		"lines": []map[string]any{
			{"product_id": f.product.ID.String(), "quantity": 10},
		},
		"actor": "production",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "ERR_INSUFFICIENT_STOCK", errorCode(t, envelope))
	assert.Zero(t, f.poster.calls)
}

func TestRetrySyncEndpoint_AlreadySynced(t *testing.T) {
	f := setupWeb(t)

	_, envelope := f.do(t, http.MethodPost, "/api/v1/operations/receipts", receiptPayload(f, 40))
	data := envelope["data"].(map[string]any)
	opID := data["ID"].(string)

	w, envelope := f.do(t, http.MethodPost, "/api/v1/operations/receipt/"+opID+"/retry-sync", nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ERR_ALREADY_SYNCED", errorCode(t, envelope))
}

func TestGetOperationEndpoint_KindMismatch(t *testing.T) {
	f := setupWeb(t)

	_, envelope := f.do(t, http.MethodPost, "/api/v1/operations/receipts", receiptPayload(f, 40))
	data := envelope["data"].(map[string]any)
	opID := data["ID"].(string)

	w, _ := f.do(t, http.MethodGet, "/api/v1/operations/transfer/"+opID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = f.do(t, http.MethodGet, "/api/v1/operations/receipt/"+opID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetOperationEndpoint_UnknownKind(t *testing.T) {
	f := setupWeb(t)

	w, envelope := f.do(t, http.MethodGet, "/api/v1/operations/reversal/"+uuid.NewString(), nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ERR_INVALID_INPUT", errorCode(t, envelope))
}

func TestListOperationsEndpoint_FilterByKind(t *testing.T) {
	f := setupWeb(t)

	_, _ = f.do(t, http.MethodPost, "/api/v1/operations/receipts", receiptPayload(f, 40))

	w, envelope := f.do(t, http.MethodGet, "/api/v1/operations?kind=receipt", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := envelope["data"].([]any)
	assert.Len(t, items, 1)

	meta := envelope["meta"].(map[string]any)
	assert.Equal(t, float64(1), meta["total"])

	w, envelope = f.do(t, http.MethodGet, "/api/v1/operations?kind=transfer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, envelope["data"])
}

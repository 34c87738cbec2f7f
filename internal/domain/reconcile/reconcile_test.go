package reconcile

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleLines() []DocumentLine {
	return []DocumentLine{
		{LineNum: 0, ProductCode: "SKU-001", BatchNumber: "B-2026-01", Quantity: decimal.NewFromInt(10), WarehouseCode: "WH-MAIN"},
	}
}

func TestNewExternalDocument(t *testing.T) {
	doc, err := NewExternalDocument("1042", DocTypeGoodsReceipt, "GR-1042", time.Now(), sampleLines())
	require.NoError(t, err)
	assert.Equal(t, DocStatusPendingReview, doc.Status)
	assert.True(t, doc.Importable())

	_, err = NewExternalDocument("", DocTypeGoodsReceipt, "GR-1042", time.Now(), sampleLines())
	assert.Error(t, err)

	_, err = NewExternalDocument("1042", DocTypeGoodsReceipt, "GR-1042", time.Now(), nil)
	assert.Error(t, err)
}

func TestExternalDocumentReviewFlow(t *testing.T) {
	doc, err := NewExternalDocument("1042", DocTypeDelivery, "DN-1042", time.Now(), sampleLines())
	require.NoError(t, err)

	require.NoError(t, doc.Acknowledge("alice", "checking with warehouse"))
	assert.Equal(t, DocStatusAcknowledged, doc.Status)
	assert.True(t, doc.Importable())

	opID := uuid.New()
	require.NoError(t, doc.MarkImported("alice", opID))
	assert.Equal(t, DocStatusImported, doc.Status)
	require.NotNil(t, doc.OperationID)
	assert.Equal(t, opID, *doc.OperationID)
	assert.False(t, doc.Importable())
}

func TestImportedIsTerminal(t *testing.T) {
	doc, err := NewExternalDocument("1042", DocTypeDelivery, "DN-1042", time.Now(), sampleLines())
	require.NoError(t, err)
	require.NoError(t, doc.MarkImported("alice", uuid.New()))

	assert.ErrorIs(t, doc.Acknowledge("bob", ""), ErrDocumentImported)
	assert.ErrorIs(t, doc.Ignore("bob", ""), ErrDocumentImported)
	assert.ErrorIs(t, doc.MarkImported("bob", uuid.New()), ErrDocumentImported)
}

func TestIgnoredDocumentCannotBeImported(t *testing.T) {
	doc, err := NewExternalDocument("77", DocTypeStockTransfer, "ST-77", time.Now(), sampleLines())
	require.NoError(t, err)
	require.NoError(t, doc.Ignore("alice", "duplicate of DN-12"))
	assert.False(t, doc.Importable())
	assert.Error(t, doc.MarkImported("alice", uuid.New()))
	// ignoring again is allowed, e.g. to amend the note
	assert.NoError(t, doc.Ignore("alice", "confirmed duplicate"))
}

func TestCreatesBatch(t *testing.T) {
	receipt, err := NewExternalDocument("9", DocTypeGoodsReceipt, "GR-9", time.Now(), sampleLines())
	require.NoError(t, err)
	assert.True(t, receipt.CreatesBatch("SKU-001", "B-2026-01"))
	assert.False(t, receipt.CreatesBatch("SKU-001", "B-2026-02"))
	assert.False(t, receipt.CreatesBatch("SKU-999", "B-2026-01"))

	delivery, err := NewExternalDocument("10", DocTypeDelivery, "DN-10", time.Now(), sampleLines())
	require.NoError(t, err)
	assert.False(t, delivery.CreatesBatch("SKU-001", "B-2026-01"))
}

func TestParseDocType(t *testing.T) {
	dt, err := ParseDocType("GOODS_RECEIPT")
	require.NoError(t, err)
	assert.Equal(t, DocTypeGoodsReceipt, dt)

	_, err = ParseDocType("INVOICE")
	assert.Error(t, err)
}

func TestRunCounting(t *testing.T) {
	from := time.Now().Add(-24 * time.Hour)
	run, err := NewRun(from, time.Now())
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, run.Status)

	run.RecordFetched(DocTypeGoodsReceipt, 3)
	run.RecordCreated(DocTypeGoodsReceipt)
	run.RecordCreated(DocTypeGoodsReceipt)
	run.RecordExisting(DocTypeGoodsReceipt)
	run.RecordFetched(DocTypeDelivery, 1)
	run.RecordCreated(DocTypeDelivery)
	run.RecordError(DocTypeDelivery, "88", "persist failed")

	assert.Equal(t, 3, run.Counts[DocTypeGoodsReceipt].Fetched)
	assert.Equal(t, 2, run.Counts[DocTypeGoodsReceipt].Created)
	assert.Equal(t, 1, run.Counts[DocTypeGoodsReceipt].Existing)
	assert.Equal(t, 3, run.TotalCreated())
	require.Len(t, run.Errors, 1)

	run.Complete()
	assert.Equal(t, RunStatusCompleted, run.Status)
	require.NotNil(t, run.FinishedAt)
}

func TestRunWindowValidation(t *testing.T) {
	now := time.Now()
	_, err := NewRun(now, now)
	assert.Error(t, err)
	_, err = NewRun(now, now.Add(-time.Hour))
	assert.Error(t, err)
}

func TestRunFail(t *testing.T) {
	run, err := NewRun(time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	run.Fail("erp unreachable")
	assert.Equal(t, RunStatusFailed, run.Status)
	assert.Equal(t, "erp unreachable", run.FailureNote)
	require.NotNil(t, run.FinishedAt)
}

package operation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLines() []Line {
	return []Line{{ProductID: uuid.New(), BatchNumber: "L1", Quantity: decimal.NewFromInt(5)}}
}

func TestNew_StartsUnsynced(t *testing.T) {
	op, err := New(KindReceipt, "alice", testLines())
	require.NoError(t, err)

	assert.Equal(t, SyncStateUnsynced, op.Sync.State)
	assert.False(t, op.Sync.Pushed)
	assert.False(t, op.ExternallySourced)
	assert.NotEqual(t, uuid.Nil, op.Lines[0].ID)
}

func TestNew_RejectsEmptyAndNonPositiveLines(t *testing.T) {
	_, err := New(KindReceipt, "alice", nil)
	assert.Error(t, err)

	_, err = New(KindReceipt, "alice", []Line{{ProductID: uuid.New(), Quantity: decimal.Zero}})
	assert.Error(t, err)
}

func TestNewExternallySourced_BornSynced(t *testing.T) {
	op, err := NewExternallySourced(KindTransfer, "reviewer", testLines(), "555", "WT-555")
	require.NoError(t, err)

	assert.True(t, op.ExternallySourced)
	assert.True(t, op.Sync.Pushed)
	assert.Equal(t, SyncStateSynced, op.Sync.State)
	assert.Equal(t, "555", op.Sync.ExternalID)
	assert.Equal(t, "WT-555", op.Sync.ExternalNumber)
}

func TestSyncStateMachine(t *testing.T) {
	op, err := New(KindConsumption, "alice", testLines())
	require.NoError(t, err)

	require.NoError(t, op.BeginSync())
	assert.Equal(t, SyncStateSyncing, op.Sync.State)

	// claiming a SYNCING operation loses
	assert.ErrorIs(t, op.BeginSync(), ErrSyncInProgress)

	op.FailSync("erp said no")
	assert.Equal(t, SyncStateFailed, op.Sync.State)
	assert.Equal(t, "erp said no", op.Sync.Error)
	assert.Equal(t, 1, op.Sync.RetryCount)

	// FAILED can be claimed again
	require.NoError(t, op.BeginSync())
	op.CompleteSync("1001", "GRN-1001")

	assert.Equal(t, SyncStateSynced, op.Sync.State)
	assert.True(t, op.Sync.Pushed)
	assert.Empty(t, op.Sync.Error)
	assert.ErrorIs(t, op.BeginSync(), ErrAlreadySynced)
}

func TestSyncRetryLimit(t *testing.T) {
	op, err := New(KindReceipt, "alice", testLines())
	require.NoError(t, err)

	for i := 0; i < MaxSyncRetries; i++ {
		require.NoError(t, op.BeginSync())
		op.FailSync("still down")
	}

	assert.ErrorIs(t, op.BeginSync(), ErrRetryLimitReached)

	op.ClearRetries()
	assert.NoError(t, op.BeginSync())
}

func TestSyncRetryBudgetCountsClaims(t *testing.T) {
	op, err := New(KindReceipt, "alice", testLines())
	require.NoError(t, err)

	// The budget is consumed at claim time, not by the failure record, so
	// the cap admits exactly MaxSyncRetries posting attempts.
	require.NoError(t, op.BeginSync())
	assert.Equal(t, 1, op.Sync.RetryCount)

	op.FailSync("still down")
	assert.Equal(t, 1, op.Sync.RetryCount)

	for i := 1; i < MaxSyncRetries; i++ {
		require.NoError(t, op.BeginSync())
		op.FailSync("still down")
	}
	assert.Equal(t, MaxSyncRetries, op.Sync.RetryCount)
	assert.ErrorIs(t, op.BeginSync(), ErrRetryLimitReached)
}

func TestParseKind(t *testing.T) {
	for _, valid := range []string{"RECEIPT", "TRANSFER", "CONSUMPTION"} {
		k, err := ParseKind(valid)
		require.NoError(t, err)
		assert.Equal(t, Kind(valid), k)
	}

	_, err := ParseKind("SHIPMENT")
	assert.Error(t, err)
}

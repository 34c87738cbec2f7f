package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLot(t *testing.T, available int64) *Lot {
	t.Helper()
	lot, err := NewLot(uuid.New(), "L1", uuid.New(), nil)
	require.NoError(t, err)
	if available > 0 {
		require.NoError(t, lot.Receive(decimal.NewFromInt(available), Movement{Actor: "tester", Context: "setup"}))
	}
	return lot
}

func TestNewLot_Validation(t *testing.T) {
	tests := []struct {
		name     string
		product  uuid.UUID
		batch    string
		location uuid.UUID
		wantErr  bool
	}{
		{"valid", uuid.New(), "B-100", uuid.New(), false},
		{"missing product", uuid.Nil, "B-100", uuid.New(), true},
		{"missing batch", uuid.New(), "", uuid.New(), true},
		{"missing location", uuid.New(), "B-100", uuid.Nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lot, err := NewLot(tt.product, tt.batch, tt.location, nil)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, lot)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, LotStatusActive, lot.Status)
			assert.True(t, lot.Available.IsZero())
		})
	}
}

func TestLot_ReceiveGrowsTotalAndAvailable(t *testing.T) {
	lot := newTestLot(t, 0)

	require.NoError(t, lot.Receive(decimal.NewFromInt(10), Movement{Actor: "alice", Context: "GRN-1"}))

	assert.True(t, lot.Total.Equal(decimal.NewFromInt(10)))
	assert.True(t, lot.Available.Equal(decimal.NewFromInt(10)))
	require.Len(t, lot.History, 1)
	assert.Equal(t, ActionReceipt, lot.History[0].Action)
	assert.Equal(t, "alice", lot.History[0].Actor)
	assert.Equal(t, "GRN-1", lot.History[0].Context)
}

func TestLot_ConsumeMovesAvailableToConsumed(t *testing.T) {
	lot := newTestLot(t, 10)

	require.NoError(t, lot.Consume(decimal.NewFromInt(4), Movement{Actor: "bob"}))

	assert.True(t, lot.Available.Equal(decimal.NewFromInt(6)))
	assert.True(t, lot.Consumed.Equal(decimal.NewFromInt(4)))
	assert.True(t, lot.Total.Equal(decimal.NewFromInt(10)), "total must not shrink on consumption")
	assert.Equal(t, LotStatusActive, lot.Status)
}

func TestLot_AvailableNeverGoesNegative(t *testing.T) {
	lot := newTestLot(t, 3)

	err := lot.Consume(decimal.NewFromInt(5), Movement{Actor: "bob"})

	var insufficient *InsufficientLotError
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, insufficient.Available.Equal(decimal.NewFromInt(3)))
	// failed movement must leave the lot untouched
	assert.True(t, lot.Available.Equal(decimal.NewFromInt(3)))
	assert.True(t, lot.Consumed.IsZero())
	assert.Len(t, lot.History, 1) // only the setup receipt
}

func TestLot_DepletionRule(t *testing.T) {
	lot := newTestLot(t, 5)

	require.NoError(t, lot.Consume(decimal.NewFromInt(5), Movement{Actor: "bob"}))
	assert.Equal(t, LotStatusDepleted, lot.Status)
	assert.False(t, lot.Allocatable())

	// stock flowing back in reactivates the lot
	require.NoError(t, lot.Return(decimal.NewFromInt(2), Movement{Actor: "bob", Context: "RET-1"}))
	assert.Equal(t, LotStatusActive, lot.Status)
	assert.True(t, lot.Available.Equal(decimal.NewFromInt(2)))
	assert.True(t, lot.Returned.Equal(decimal.NewFromInt(2)))
}

func TestLot_TransferOutConsigns(t *testing.T) {
	lot := newTestLot(t, 8)

	require.NoError(t, lot.TransferOut(decimal.NewFromInt(8), Movement{Actor: "carol", Context: "TR-9"}))

	assert.True(t, lot.Available.IsZero())
	assert.True(t, lot.Consigned.Equal(decimal.NewFromInt(8)))
	assert.Equal(t, LotStatusDepleted, lot.Status)
}

func TestLot_AdjustMayShrinkTotal(t *testing.T) {
	lot := newTestLot(t, 10)

	require.NoError(t, lot.Adjust(decimal.NewFromInt(7), Movement{Actor: "admin", Context: "stock count"}))

	assert.True(t, lot.Available.Equal(decimal.NewFromInt(7)))
	assert.True(t, lot.Total.Equal(decimal.NewFromInt(7)))

	err := lot.Adjust(decimal.NewFromInt(-1), Movement{Actor: "admin"})
	assert.Error(t, err)
}

func TestLot_IsExpired(t *testing.T) {
	past := time.Now().Add(-24 * time.Hour)
	future := time.Now().Add(24 * time.Hour)

	expired, err := NewLot(uuid.New(), "OLD", uuid.New(), &past)
	require.NoError(t, err)
	fresh, err := NewLot(uuid.New(), "NEW", uuid.New(), &future)
	require.NoError(t, err)
	noDate, err := NewLot(uuid.New(), "ND", uuid.New(), nil)
	require.NoError(t, err)

	assert.True(t, expired.IsExpired())
	assert.False(t, fresh.IsExpired())
	assert.False(t, noDate.IsExpired())
}

func TestLot_HistoryDeltaSigns(t *testing.T) {
	lot := newTestLot(t, 10)

	require.NoError(t, lot.Consume(decimal.NewFromInt(2), Movement{Actor: "x"}))
	require.NoError(t, lot.RecordDamage(decimal.NewFromInt(1), Movement{Actor: "x"}))
	require.NoError(t, lot.Return(decimal.NewFromInt(3), Movement{Actor: "x"}))

	require.Len(t, lot.History, 4)
	assert.True(t, lot.History[1].Delta.IsNegative())
	assert.True(t, lot.History[2].Delta.IsNegative())
	assert.True(t, lot.History[3].Delta.IsPositive())
}

func TestLot_MarkExpired(t *testing.T) {
	past := time.Now().Add(-24 * time.Hour)
	lot, err := NewLot(uuid.New(), "B-EXP", uuid.New(), &past)
	require.NoError(t, err)
	require.NoError(t, lot.Receive(decimal.NewFromInt(10), Movement{Actor: "tester"}))

	require.NoError(t, lot.MarkExpired(Movement{Actor: "sweeper", Context: "expiry sweep"}))
	assert.Equal(t, LotStatusExpired, lot.Status)
	assert.False(t, lot.Allocatable())
	// quantity stays for audit
	assert.True(t, lot.Available.Equal(decimal.NewFromInt(10)))
	last := lot.History[len(lot.History)-1]
	assert.Equal(t, ActionExpiry, last.Action)
	assert.True(t, last.Delta.IsZero())

	// flagging again is a no-op
	require.NoError(t, lot.MarkExpired(Movement{Actor: "sweeper"}))

	fresh := newTestLot(t, 5)
	assert.Error(t, fresh.MarkExpired(Movement{Actor: "sweeper"}), "lot without a passed expiry date cannot be flagged")
}

func TestLot_Recall(t *testing.T) {
	lot := newTestLot(t, 20)

	require.NoError(t, lot.Recall(Movement{Actor: "qa", Context: "supplier notice 4711"}))
	assert.Equal(t, LotStatusRecalled, lot.Status)
	assert.False(t, lot.Allocatable())
	last := lot.History[len(lot.History)-1]
	assert.Equal(t, ActionRecall, last.Action)
	assert.Equal(t, "qa", last.Actor)

	assert.Error(t, lot.Recall(Movement{Actor: "qa"}))

	// inbound stock does not bring a recalled lot back
	require.NoError(t, lot.Receive(decimal.NewFromInt(5), Movement{Actor: "dock"}))
	assert.Equal(t, LotStatusRecalled, lot.Status)
	assert.False(t, lot.Allocatable())
}

func TestLot_OverdueLotNotAllocatable(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	lot, err := NewLot(uuid.New(), "B-OVERDUE", uuid.New(), &past)
	require.NoError(t, err)
	require.NoError(t, lot.Receive(decimal.NewFromInt(10), Movement{Actor: "tester"}))

	// not yet swept, still ACTIVE, but past its date
	assert.Equal(t, LotStatusActive, lot.Status)
	assert.False(t, lot.Allocatable())
}

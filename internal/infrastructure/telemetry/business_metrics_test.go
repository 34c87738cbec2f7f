package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/ledgerlink/backend/internal/infrastructure/telemetry"
)

func TestNewBusinessMetrics(t *testing.T) {
	meter := sdkmetric.NewMeterProvider().Meter("test")

	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:  meter,
		Logger: zap.NewNop(),
	})

	require.NoError(t, err)
	require.NotNil(t, bm)
}

func TestNewBusinessMetrics_NilMeter(t *testing.T) {
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:  nil,
		Logger: zap.NewNop(),
	})

	require.Error(t, err)
	assert.Nil(t, bm)
	assert.Equal(t, "NewBusinessMetrics: meter cannot be nil", err.Error())
}

func TestBusinessMetrics_RecordSyncCommit(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter: provider.Meter("test"),
	})
	require.NoError(t, err)

	ctx := context.Background()
	bm.RecordSyncCommit(ctx, "GOODS_RECEIPT", telemetry.SyncOutcomeCommitted)
	bm.RecordSyncCommit(ctx, "GOODS_RECEIPT", telemetry.SyncOutcomeCommitted)
	bm.RecordSyncCommit(ctx, "TRANSFER", telemetry.SyncOutcomeAbandoned)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	sum := counterSum(t, rm, "ledger_sync_commit_total")
	assert.Equal(t, int64(3), sum)
}

func TestBusinessMetrics_RecordDocumentsDiscovered_IgnoresNonPositive(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter: provider.Meter("test"),
	})
	require.NoError(t, err)

	ctx := context.Background()
	bm.RecordDocumentsDiscovered(ctx, "GOODS_RECEIPT", 0)
	bm.RecordDocumentsDiscovered(ctx, "GOODS_RECEIPT", -4)
	bm.RecordDocumentsDiscovered(ctx, "GOODS_RECEIPT", 2)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	assert.Equal(t, int64(2), counterSum(t, rm, "ledger_reconcile_document_discovered_total"))
}

func TestBusinessMetrics_PeriodicCollectionRecordsQueueDepth(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:          provider.Meter("test"),
		Logger:         zap.NewNop(),
		ReviewProvider: stubReviewQueue{depth: 7},
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		bm.StartPeriodicCollection(context.Background(), 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		var rm metricdata.ResourceMetrics
		if err := reader.Collect(context.Background(), &rm); err != nil {
			return false
		}
		value, ok := gaugeValue(rm, "ledger_review_queue_depth")
		return ok && value == 7
	}, time.Second, 10*time.Millisecond)

	bm.Stop()
	<-done
}

func TestBusinessMetrics_CollectionSurvivesProviderError(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:          provider.Meter("test"),
		Logger:         zap.NewNop(),
		ReviewProvider: stubReviewQueue{err: errors.New("database down")},
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		bm.StartPeriodicCollection(context.Background(), 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	bm.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
}

type stubReviewQueue struct {
	depth int64
	err   error
}

func (s stubReviewQueue) OpenDocumentCount(context.Context) (int64, error) {
	return s.depth, s.err
}

func counterSum(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func gaugeValue(rm metricdata.ResourceMetrics, name string) (int64, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			gauge, ok := m.Data.(metricdata.Gauge[int64])
			if !ok || len(gauge.DataPoints) == 0 {
				return 0, false
			}
			return gauge.DataPoints[len(gauge.DataPoints)-1].Value, true
		}
	}
	return 0, false
}

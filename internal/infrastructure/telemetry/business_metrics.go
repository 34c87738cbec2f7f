package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BusinessMetrics tracks the health of the dual-write pipeline: commits
// pushed to the ERP, documents found and imported by reconciliation, and
// the depth of the review queue.
type BusinessMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	syncCommitTotal         *Counter
	documentDiscoveredTotal *Counter
	documentImportedTotal   *Counter
	lotExpiredTotal         *Counter

	// Gauge metrics (point-in-time values)
	reviewQueueDepth *Gauge

	stopChan chan struct{}
	stopOnce sync.Once

	reviewProvider ReviewQueueProvider
}

// ReviewQueueProvider reports the number of external documents still waiting
// for review. The interface keeps the telemetry layer from depending on the
// reconciliation domain directly.
type ReviewQueueProvider interface {
	OpenDocumentCount(ctx context.Context) (int64, error)
}

// BusinessMetricsConfig holds configuration for business metrics.
type BusinessMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	ReviewProvider  ReviewQueueProvider
	CollectInterval time.Duration // Default: 5 minutes
}

// NewBusinessMetrics creates a new BusinessMetrics instance.
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BusinessMetrics{
		meter:          cfg.Meter,
		logger:         logger,
		stopChan:       make(chan struct{}),
		reviewProvider: cfg.ReviewProvider,
	}

	var err error

	bm.syncCommitTotal, err = NewCounter(
		cfg.Meter,
		"ledger_sync_commit_total",
		"Total number of dual-write commits attempted against the ERP",
		"{operations}",
	)
	if err != nil {
		return nil, err
	}

	bm.documentDiscoveredTotal, err = NewCounter(
		cfg.Meter,
		"ledger_reconcile_document_discovered_total",
		"Total number of unknown ERP documents found by reconciliation scans",
		"{documents}",
	)
	if err != nil {
		return nil, err
	}

	bm.documentImportedTotal, err = NewCounter(
		cfg.Meter,
		"ledger_reconcile_document_imported_total",
		"Total number of external documents imported into the ledger",
		"{documents}",
	)
	if err != nil {
		return nil, err
	}

	bm.lotExpiredTotal, err = NewCounter(
		cfg.Meter,
		"ledger_lot_expired_total",
		"Total number of lots flagged as expired",
		"{lots}",
	)
	if err != nil {
		return nil, err
	}

	bm.reviewQueueDepth, err = NewGauge(
		cfg.Meter,
		"ledger_review_queue_depth",
		"External documents waiting for review",
		"{documents}",
	)
	if err != nil {
		return nil, err
	}

	return bm, nil
}

// SyncOutcome labels the result of a dual-write commit for metrics.
type SyncOutcome string

const (
	SyncOutcomeCommitted SyncOutcome = "committed"
	SyncOutcomeRetrying  SyncOutcome = "retrying"
	SyncOutcomeAbandoned SyncOutcome = "abandoned"
)

// RecordSyncCommit records the outcome of a dual-write commit attempt.
func (bm *BusinessMetrics) RecordSyncCommit(ctx context.Context, operationType string, outcome SyncOutcome) {
	bm.syncCommitTotal.Inc(ctx,
		AttrOperationType.String(operationType),
		AttrOutcome.String(string(outcome)),
	)
}

// RecordDocumentsDiscovered records external documents found by a scan.
func (bm *BusinessMetrics) RecordDocumentsDiscovered(ctx context.Context, documentType string, count int64) {
	if count <= 0 {
		return
	}
	bm.documentDiscoveredTotal.Add(ctx, count,
		AttrDocumentType.String(documentType),
	)
}

// RecordDocumentImported records an external document imported into the ledger.
func (bm *BusinessMetrics) RecordDocumentImported(ctx context.Context, documentType string) {
	bm.documentImportedTotal.Inc(ctx,
		AttrDocumentType.String(documentType),
	)
}

// RecordLotsExpired records lots flagged by an expiry sweep.
func (bm *BusinessMetrics) RecordLotsExpired(ctx context.Context, count int64) {
	if count <= 0 {
		return
	}
	bm.lotExpiredTotal.Add(ctx, count)
}

// RecordReviewQueueDepth records the current review queue depth.
func (bm *BusinessMetrics) RecordReviewQueueDepth(ctx context.Context, depth int64) {
	bm.reviewQueueDepth.Record(ctx, depth)
}

// StartPeriodicCollection polls the review queue provider on the given
// interval and records the gauge. It blocks until Stop is called or the
// context is cancelled, so callers run it in a goroutine.
func (bm *BusinessMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	if interval == 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	bm.logger.Info("starting periodic business metrics collection",
		zap.Duration("interval", interval),
	)

	for {
		select {
		case <-bm.stopChan:
			bm.logger.Info("stopping periodic business metrics collection")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			bm.collectReviewQueueDepth(ctx)
		}
	}
}

func (bm *BusinessMetrics) collectReviewQueueDepth(ctx context.Context) {
	if bm.reviewProvider == nil {
		return
	}

	depth, err := bm.reviewProvider.OpenDocumentCount(ctx)
	if err != nil {
		bm.logger.Warn("failed to collect review queue depth", zap.Error(err))
		return
	}
	bm.RecordReviewQueueDepth(ctx, depth)
}

// Stop stops the periodic collection.
func (bm *BusinessMetrics) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBusinessMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}

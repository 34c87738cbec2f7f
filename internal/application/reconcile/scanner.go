package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ledgerlink/backend/internal/domain/catalog"
	"github.com/ledgerlink/backend/internal/domain/operation"
	"github.com/ledgerlink/backend/internal/domain/reconcile"
	"github.com/ledgerlink/backend/internal/domain/shared"
	"github.com/ledgerlink/backend/internal/infrastructure/config"
	"github.com/ledgerlink/backend/internal/infrastructure/erp"
	"github.com/ledgerlink/backend/internal/infrastructure/telemetry"
)

// DocumentFetcher is the slice of the ERP client the scanner reads through
type DocumentFetcher interface {
	FetchDocuments(ctx context.Context, docType reconcile.DocType, from, to time.Time, productCodes []string) ([]erp.FetchedDocument, error)
}

var _ DocumentFetcher = (*erp.Client)(nil)

// ErrScanInProgress is returned when another scan holds the run lock or an
// unfinished run record is still live
var ErrScanInProgress = shared.NewDomainError("SCAN_IN_PROGRESS", "a reconciliation scan is already in progress")

// scanLockKey is the single-flight lock key; one scan per deployment
const scanLockKey = "scan"

// ScanOptions overrides the automatic discovery window, e.g. for backfills
type ScanOptions struct {
	From *time.Time
	To   *time.Time
}

// Scanner discovers ERP inventory documents that have no local counterpart.
// Every document the ERP returns for the window is checked against local
// operations; documents not created by this application are recorded as
// pending-review ExternalDocuments for an operator to import or dismiss.
type Scanner struct {
	lock       shared.RunLock
	fetcher    DocumentFetcher
	runs       reconcile.RunRepository
	docs       reconcile.ExternalDocumentRepository
	operations operation.Repository
	products   catalog.ProductRepository
	cfg        config.ReconcileConfig
	logger     *zap.Logger
	metrics    *telemetry.BusinessMetrics
}

// SetBusinessMetrics sets the business metrics collector. Recording stays a
// no-op until one is wired.
func (s *Scanner) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	s.metrics = bm
}

// NewScanner creates a reconciliation scanner
func NewScanner(
	lock shared.RunLock,
	fetcher DocumentFetcher,
	runs reconcile.RunRepository,
	docs reconcile.ExternalDocumentRepository,
	operations operation.Repository,
	products catalog.ProductRepository,
	cfg config.ReconcileConfig,
	logger *zap.Logger,
) *Scanner {
	return &Scanner{
		lock:       lock,
		fetcher:    fetcher,
		runs:       runs,
		docs:       docs,
		operations: operations,
		products:   products,
		cfg:        cfg,
		logger:     logger.Named("reconcile_scanner"),
	}
}

// Scan runs one reconciliation pass over the ERP. It is single-flight: a
// run lock plus a live-run check ensure overlapping scans are refused rather
// than queued. Per-document failures are recorded on the run and do not
// abort the scan; a fetch-level failure fails the run.
func (s *Scanner) Scan(ctx context.Context, opts ScanOptions) (*reconcile.Run, error) {
	acquired, err := s.lock.Acquire(ctx, scanLockKey, s.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire scan lock: %w", err)
	}
	if !acquired {
		return nil, ErrScanInProgress
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.lock.Release(releaseCtx, scanLockKey); err != nil {
			s.logger.Warn("failed to release scan lock", zap.Error(err))
		}
	}()

	if err := s.checkNoLiveRun(ctx); err != nil {
		return nil, err
	}

	from, to, err := s.window(ctx, opts)
	if err != nil {
		return nil, err
	}

	run, err := reconcile.NewRun(from, to)
	if err != nil {
		return nil, err
	}
	if err := s.runs.Save(ctx, run); err != nil {
		return nil, fmt.Errorf("persist reconciliation run: %w", err)
	}

	s.logger.Info("reconciliation scan started",
		zap.String("run_id", run.ID.String()),
		zap.Time("window_from", from),
		zap.Time("window_to", to))

	// Only documents touching products this system manages are of
	// interest; everything else in the ERP is someone else's business.
	trackedCodes, err := s.products.ActiveCodes(ctx)
	if err != nil {
		run.Fail(fmt.Sprintf("list tracked products: %v", err))
		if saveErr := s.saveDetached(ctx, run); saveErr != nil {
			s.logger.Error("failed to persist failed run", zap.Error(saveErr))
		}
		return run, fmt.Errorf("list tracked product codes: %w", err)
	}

	for _, docType := range reconcile.TrackedDocTypes {
		fetched, err := s.fetcher.FetchDocuments(ctx, docType, from, to, trackedCodes)
		if err != nil {
			run.Fail(fmt.Sprintf("fetch %s: %v", docType, err))
			if saveErr := s.saveDetached(ctx, run); saveErr != nil {
				s.logger.Error("failed to persist failed run", zap.Error(saveErr))
			}
			return run, fmt.Errorf("fetch %s documents: %w", docType, err)
		}
		run.RecordFetched(docType, len(fetched))
		for i := range fetched {
			s.reconcileDocument(ctx, run, docType, &fetched[i])
		}
	}

	run.Complete()
	if err := s.saveDetached(ctx, run); err != nil {
		return run, fmt.Errorf("persist completed run: %w", err)
	}

	s.logger.Info("reconciliation scan completed",
		zap.String("run_id", run.ID.String()),
		zap.Int("created", run.TotalCreated()),
		zap.Int("errors", len(run.Errors)))
	return run, nil
}

// checkNoLiveRun refuses a scan while an unfinished run record exists. A run
// left RUNNING longer than the lock TTL is treated as abandoned by a crashed
// scanner and does not block.
func (s *Scanner) checkNoLiveRun(ctx context.Context) error {
	filter := shared.DefaultFilter()
	filter.Filters["status"] = string(reconcile.RunStatusRunning)
	running, err := s.runs.FindAll(ctx, filter)
	if err != nil {
		return fmt.Errorf("check running scans: %w", err)
	}
	cutoff := time.Now().Add(-s.cfg.LockTTL)
	for _, r := range running.Items {
		if r.StartedAt.After(cutoff) {
			return ErrScanInProgress
		}
	}
	return nil
}

// window resolves the discovery window: an explicit override, else the span
// since the last completed run widened by the overlap margin, else the
// go-live date for a first run. The span is capped at MaxWindow so a long
// gap cannot turn into an unbounded ERP query.
func (s *Scanner) window(ctx context.Context, opts ScanOptions) (time.Time, time.Time, error) {
	to := time.Now()
	if opts.To != nil {
		to = *opts.To
	}

	var from time.Time
	switch {
	case opts.From != nil:
		from = *opts.From
	default:
		last, err := s.runs.FindLatestCompleted(ctx)
		switch {
		case err == nil:
			from = last.WindowTo.Add(-s.cfg.WindowOverlap)
		case errors.Is(err, shared.ErrNotFound):
			goLive, err := s.cfg.GoLiveTime()
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
			if goLive.IsZero() {
				goLive = to.Add(-s.cfg.MaxWindow)
			}
			from = goLive
		default:
			return time.Time{}, time.Time{}, fmt.Errorf("find last completed run: %w", err)
		}
	}

	if to.Sub(from) > s.cfg.MaxWindow {
		capped := to.Add(-s.cfg.MaxWindow)
		s.logger.Warn("scan window capped",
			zap.Time("requested_from", from),
			zap.Time("capped_from", capped))
		from = capped
	}
	return from, to, nil
}

// reconcileDocument decides what to do with one fetched document. Documents
// this application created are skipped; everything else is upserted as a
// pending-review record. Failures are recorded on the run, not returned.
func (s *Scanner) reconcileDocument(ctx context.Context, run *reconcile.Run, docType reconcile.DocType, fd *erp.FetchedDocument) {
	externalID := fd.ExternalID()

	docDate, err := fd.ParsedDocDate()
	if err != nil {
		run.RecordError(docType, externalID, fmt.Sprintf("unparseable document date %q", fd.DocDate))
		return
	}
	// the ERP filter is day-granular; re-check the exact window here
	if docDate.Before(truncateToDay(run.WindowFrom)) || docDate.After(run.WindowTo) {
		return
	}

	locallyCreated, err := s.operations.ExistsWithExternalID(ctx, externalID)
	if err != nil {
		run.RecordError(docType, externalID, fmt.Sprintf("check local operations: %v", err))
		return
	}
	if locallyCreated {
		return
	}

	doc, err := mapFetchedDocument(docType, fd, docDate)
	if err != nil {
		run.RecordError(docType, externalID, err.Error())
		return
	}
	doc.DiscoveredByID = &run.ID

	created, err := s.docs.Upsert(ctx, doc)
	if err != nil {
		run.RecordError(docType, externalID, fmt.Sprintf("persist document: %v", err))
		return
	}
	if created {
		run.RecordCreated(docType)
		if s.metrics != nil {
			s.metrics.RecordDocumentsDiscovered(ctx, string(docType), 1)
		}
		s.logger.Info("external document discovered",
			zap.String("doc_type", string(docType)),
			zap.String("external_id", externalID),
			zap.String("doc_number", doc.DocNumber))
	} else {
		run.RecordExisting(docType)
	}
}

// saveDetached persists the run even when the caller's context has been
// cancelled mid-scan; the record is the audit trail of what happened.
func (s *Scanner) saveDetached(ctx context.Context, run *reconcile.Run) error {
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return s.runs.Save(saveCtx, run)
}

// mapFetchedDocument converts an ERP document into the local review record.
// Lines carrying batch allocations are expanded to one line per batch so
// the reviewer and the importer see concrete (product, batch, quantity)
// movements.
func mapFetchedDocument(docType reconcile.DocType, fd *erp.FetchedDocument, docDate time.Time) (*reconcile.ExternalDocument, error) {
	var lines []reconcile.DocumentLine
	for _, fl := range fd.DocumentLines {
		source, dest := lineWarehouses(docType, &fl)
		if len(fl.BatchNumbers) == 0 {
			lines = append(lines, reconcile.DocumentLine{
				LineNum:         fl.LineNum,
				ProductCode:     fl.ItemCode,
				Description:     fl.ItemDescription,
				Quantity:        fl.Quantity,
				WarehouseCode:   source,
				ToWarehouseCode: dest,
			})
			continue
		}
		for _, batch := range fl.BatchNumbers {
			lines = append(lines, reconcile.DocumentLine{
				LineNum:         fl.LineNum,
				ProductCode:     fl.ItemCode,
				Description:     fl.ItemDescription,
				BatchNumber:     batch.BatchNumber,
				Quantity:        batch.Quantity,
				WarehouseCode:   source,
				ToWarehouseCode: dest,
				ExpiryDate:      parseExpiry(batch.ExpiryDate),
			})
		}
	}

	doc, err := reconcile.NewExternalDocument(fd.ExternalID(), docType, strconv.FormatInt(fd.DocNum, 10), docDate, lines)
	if err != nil {
		return nil, err
	}
	doc.PartnerCode = fd.CardCode
	doc.Remarks = fd.Comments
	return doc, nil
}

// lineWarehouses maps the ERP's per-line warehouse fields onto source and
// destination. Transfer lines report the destination in WarehouseCode and
// the source in FromWarehouseCode; all other types only have one side.
func lineWarehouses(docType reconcile.DocType, fl *erp.FetchedLine) (source, dest string) {
	if docType == reconcile.DocTypeStockTransfer {
		return fl.FromWarehouseCode, fl.WarehouseCode
	}
	return fl.WarehouseCode, ""
}

func parseExpiry(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, s); err != nil {
			return nil
		}
	}
	return &t
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

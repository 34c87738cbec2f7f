package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	appledger "github.com/ledgerlink/backend/internal/application/ledger"
	"github.com/ledgerlink/backend/internal/domain/catalog"
	"github.com/ledgerlink/backend/internal/domain/operation"
	"github.com/ledgerlink/backend/internal/domain/reconcile"
	"github.com/ledgerlink/backend/internal/domain/shared"
)

// Validation error codes, per line
const (
	ValidationUnknownProduct    = "UNKNOWN_PRODUCT"
	ValidationInactiveProduct   = "INACTIVE_PRODUCT"
	ValidationUnmappedWarehouse = "UNMAPPED_WAREHOUSE"
	ValidationUnknownPartner    = "UNKNOWN_PARTNER"
	ValidationMissingBatch      = "MISSING_BATCH"
	ValidationUnknownBatch      = "UNKNOWN_BATCH"
	ValidationInsufficientStock = "INSUFFICIENT_STOCK"
)

// ValidationError is one reason a document line cannot be imported
type ValidationError struct {
	LineNum int    `json:"line_num"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DependencyHint points at a pending document whose import would create a
// batch this document needs. Advisory and one hop only: the hinted
// document is not validated in turn.
type DependencyHint struct {
	DocumentID  uuid.UUID         `json:"document_id"`
	DocType     reconcile.DocType `json:"doc_type"`
	DocNumber   string            `json:"doc_number"`
	ProductCode string            `json:"product_code"`
	BatchNumber string            `json:"batch_number"`
}

// PreviewMovement is one ledger movement an import would book
type PreviewMovement struct {
	ProductCode  string          `json:"product_code"`
	BatchNumber  string          `json:"batch_number,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	FromLocation string          `json:"from_location,omitempty"`
	ToLocation   string          `json:"to_location,omitempty"`
}

// ValidationResult is the outcome of a dry-run validation
type ValidationResult struct {
	CanImport  bool              `json:"can_import"`
	Errors     []ValidationError `json:"errors,omitempty"`
	Dependency *DependencyHint   `json:"dependency,omitempty"`
	Preview    []PreviewMovement `json:"preview,omitempty"`
}

// plannedMovement is one document line resolved against the local catalog
// and ledger, ready to replay
type plannedMovement struct {
	line    reconcile.DocumentLine
	product *catalog.Product
	source  *catalog.Location
	dest    *catalog.Location
}

// docVariant gives each document type its direction semantics: which side
// of a line resolves to a location, what stock must already exist, and how
// the movement replays through the batch ledger.
type docVariant interface {
	kind() operation.Kind
	// resolve maps one document line onto a movement, collecting per-line
	// validation errors instead of failing fast
	resolve(ctx context.Context, s *ImportService, doc *reconcile.ExternalDocument, line reconcile.DocumentLine) (*plannedMovement, []ValidationError)
	// book replays a resolved movement inside the import transaction
	book(ctx context.Context, s *ImportService, repos appledger.TransactionalRepositories, m *plannedMovement, in appledger.MovementInput) error
}

func variantFor(docType reconcile.DocType) (docVariant, error) {
	switch docType {
	case reconcile.DocTypeGoodsReceipt:
		return receiptDocument{}, nil
	case reconcile.DocTypeStockTransfer:
		return transferDocument{}, nil
	case reconcile.DocTypeDelivery:
		return consumptionDocument{}, nil
	}
	return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("no import variant for document type %s", docType))
}

// validate runs the variant over every line. Per-line failures accumulate;
// the document is importable only when no line failed.
func (s *ImportService) validate(ctx context.Context, doc *reconcile.ExternalDocument) (*ValidationResult, []*plannedMovement, error) {
	variant, err := variantFor(doc.DocType)
	if err != nil {
		return nil, nil, err
	}

	result := &ValidationResult{}
	var movements []*plannedMovement
	for _, line := range doc.Lines {
		m, lineErrs := variant.resolve(ctx, s, doc, line)
		if len(lineErrs) > 0 {
			result.Errors = append(result.Errors, lineErrs...)
			if result.Dependency == nil {
				result.Dependency = s.findDependency(ctx, doc, line, lineErrs)
			}
			continue
		}
		movements = append(movements, m)
		result.Preview = append(result.Preview, previewOf(m))
	}
	result.CanImport = len(result.Errors) == 0
	if !result.CanImport {
		return result, nil, nil
	}
	return result, movements, nil
}

// findDependency searches pending documents for one that would create the
// batch this line is missing. One hop: the candidate itself is not
// validated, the hint just tells the reviewer what to look at first.
func (s *ImportService) findDependency(ctx context.Context, doc *reconcile.ExternalDocument, line reconcile.DocumentLine, lineErrs []ValidationError) *DependencyHint {
	missingBatch := false
	for _, e := range lineErrs {
		if e.Code == ValidationUnknownBatch {
			missingBatch = true
			break
		}
	}
	if !missingBatch || line.BatchNumber == "" {
		return nil
	}

	candidates, err := s.docs.FindPendingByProductBatch(ctx, line.ProductCode, line.BatchNumber)
	if err != nil {
		s.logger.Warn("dependency search failed", zap.Error(err))
		return nil
	}
	for _, candidate := range candidates {
		if candidate.ID == doc.ID {
			continue
		}
		if !candidate.CreatesBatch(line.ProductCode, line.BatchNumber) {
			continue
		}
		return &DependencyHint{
			DocumentID:  candidate.ID,
			DocType:     candidate.DocType,
			DocNumber:   candidate.DocNumber,
			ProductCode: line.ProductCode,
			BatchNumber: line.BatchNumber,
		}
	}
	return nil
}

func previewOf(m *plannedMovement) PreviewMovement {
	p := PreviewMovement{
		ProductCode: m.line.ProductCode,
		BatchNumber: m.line.BatchNumber,
		Quantity:    m.line.Quantity,
	}
	if m.source != nil {
		p.FromLocation = m.source.Code
	}
	if m.dest != nil {
		p.ToLocation = m.dest.Code
	}
	return p
}

// lineError builds a per-line validation error
func lineError(line reconcile.DocumentLine, code, format string, args ...any) ValidationError {
	return ValidationError{LineNum: line.LineNum, Code: code, Message: fmt.Sprintf(format, args...)}
}

// resolveProduct looks the line's product up in the synchronized catalog
func (s *ImportService) resolveProduct(ctx context.Context, line reconcile.DocumentLine) (*catalog.Product, []ValidationError) {
	product, err := s.products.FindByCode(ctx, line.ProductCode)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, []ValidationError{lineError(line, ValidationUnknownProduct, "product %s is not in the catalog", line.ProductCode)}
		}
		return nil, []ValidationError{lineError(line, ValidationUnknownProduct, "product %s: %v", line.ProductCode, err)}
	}
	if !product.Active {
		return nil, []ValidationError{lineError(line, ValidationInactiveProduct, "product %s is inactive", line.ProductCode)}
	}
	return product, nil
}

// resolveWarehouse maps an ERP warehouse code to a local location
func (s *ImportService) resolveWarehouse(ctx context.Context, line reconcile.DocumentLine, warehouseCode string) (*catalog.Location, []ValidationError) {
	if warehouseCode == "" {
		return nil, []ValidationError{lineError(line, ValidationUnmappedWarehouse, "line carries no warehouse code")}
	}
	loc, err := s.locations.FindByWarehouse(ctx, warehouseCode, "")
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, []ValidationError{lineError(line, ValidationUnmappedWarehouse, "warehouse %s is not mapped to a location", warehouseCode)}
		}
		return nil, []ValidationError{lineError(line, ValidationUnmappedWarehouse, "warehouse %s: %v", warehouseCode, err)}
	}
	if !loc.Active {
		return nil, []ValidationError{lineError(line, ValidationUnmappedWarehouse, "location %s for warehouse %s is inactive", loc.Code, warehouseCode)}
	}
	return loc, nil
}

// resolveTransferDestination prefers the document's partner code: a
// transfer toward a consignment counterpart carries the generic consignment
// warehouse, and only the partner identifies the actual location.
func (s *ImportService) resolveTransferDestination(ctx context.Context, doc *reconcile.ExternalDocument, line reconcile.DocumentLine) (*catalog.Location, []ValidationError) {
	if doc.PartnerCode != "" {
		loc, err := s.locations.FindByCounterpart(ctx, doc.PartnerCode)
		if err == nil {
			return loc, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, []ValidationError{lineError(line, ValidationUnknownPartner, "partner %s: %v", doc.PartnerCode, err)}
		}
	}
	loc, lineErrs := s.resolveWarehouse(ctx, line, line.ToWarehouseCode)
	if lineErrs != nil && doc.PartnerCode != "" {
		return nil, []ValidationError{lineError(line, ValidationUnknownPartner, "partner %s has no consignment location and warehouse %s is not mapped", doc.PartnerCode, line.ToWarehouseCode)}
	}
	return loc, lineErrs
}

// checkSourceBatch requires the named batch to exist at the source with
// enough available quantity to cover the line
func (s *ImportService) checkSourceBatch(ctx context.Context, line reconcile.DocumentLine, product *catalog.Product, source *catalog.Location) []ValidationError {
	if line.BatchNumber == "" {
		if product.BatchManaged {
			return []ValidationError{lineError(line, ValidationMissingBatch, "product %s is batch managed but the line names no batch", line.ProductCode)}
		}
		return nil
	}
	lot, err := s.lots.FindByKey(ctx, product.ID, line.BatchNumber, source.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return []ValidationError{lineError(line, ValidationUnknownBatch, "batch %s of %s has never been at %s", line.BatchNumber, line.ProductCode, source.Code)}
		}
		return []ValidationError{lineError(line, ValidationUnknownBatch, "batch %s of %s: %v", line.BatchNumber, line.ProductCode, err)}
	}
	if lot.Available.LessThan(line.Quantity) {
		return []ValidationError{lineError(line, ValidationInsufficientStock,
			"batch %s of %s at %s has %s available, line needs %s",
			line.BatchNumber, line.ProductCode, source.Code, lot.Available.String(), line.Quantity.String())}
	}
	return nil
}

// receiptDocument replays an ERP goods receipt: stock appears at the
// receiving location, so no prior batch is required.
type receiptDocument struct{}

func (receiptDocument) kind() operation.Kind { return operation.KindReceipt }

func (receiptDocument) resolve(ctx context.Context, s *ImportService, doc *reconcile.ExternalDocument, line reconcile.DocumentLine) (*plannedMovement, []ValidationError) {
	var lineErrs []ValidationError
	product, errs := s.resolveProduct(ctx, line)
	lineErrs = append(lineErrs, errs...)

	dest, errs := s.resolveWarehouse(ctx, line, line.WarehouseCode)
	lineErrs = append(lineErrs, errs...)

	if product != nil && product.BatchManaged && line.BatchNumber == "" {
		lineErrs = append(lineErrs, lineError(line, ValidationMissingBatch, "product %s is batch managed but the line names no batch", line.ProductCode))
	}
	if len(lineErrs) > 0 {
		return nil, lineErrs
	}
	return &plannedMovement{line: line, product: product, dest: dest}, nil
}

func (receiptDocument) book(ctx context.Context, s *ImportService, repos appledger.TransactionalRepositories, m *plannedMovement, in appledger.MovementInput) error {
	in.LocationID = m.dest.ID
	_, err := s.batchLedger.ApplyReceipt(ctx, repos, in)
	return err
}

// transferDocument replays an ERP stock transfer: out of the source
// location, into the destination, both sides in one transaction.
type transferDocument struct{}

func (transferDocument) kind() operation.Kind { return operation.KindTransfer }

func (transferDocument) resolve(ctx context.Context, s *ImportService, doc *reconcile.ExternalDocument, line reconcile.DocumentLine) (*plannedMovement, []ValidationError) {
	var lineErrs []ValidationError
	product, errs := s.resolveProduct(ctx, line)
	lineErrs = append(lineErrs, errs...)

	source, errs := s.resolveWarehouse(ctx, line, line.WarehouseCode)
	lineErrs = append(lineErrs, errs...)

	dest, errs := s.resolveTransferDestination(ctx, doc, line)
	lineErrs = append(lineErrs, errs...)

	if product != nil && source != nil {
		lineErrs = append(lineErrs, s.checkSourceBatch(ctx, line, product, source)...)
	}
	if len(lineErrs) > 0 {
		return nil, lineErrs
	}
	return &plannedMovement{line: line, product: product, source: source, dest: dest}, nil
}

func (transferDocument) book(ctx context.Context, s *ImportService, repos appledger.TransactionalRepositories, m *plannedMovement, in appledger.MovementInput) error {
	out := in
	out.LocationID = m.source.ID
	if _, err := s.batchLedger.ApplyTransferOut(ctx, repos, out); err != nil {
		return err
	}
	in.LocationID = m.dest.ID
	_, err := s.batchLedger.ApplyTransferIn(ctx, repos, in)
	return err
}

// consumptionDocument replays an ERP delivery note as a consumption draw
// from the shipping location.
type consumptionDocument struct{}

func (consumptionDocument) kind() operation.Kind { return operation.KindConsumption }

func (consumptionDocument) resolve(ctx context.Context, s *ImportService, doc *reconcile.ExternalDocument, line reconcile.DocumentLine) (*plannedMovement, []ValidationError) {
	var lineErrs []ValidationError
	product, errs := s.resolveProduct(ctx, line)
	lineErrs = append(lineErrs, errs...)

	source, errs := s.resolveWarehouse(ctx, line, line.WarehouseCode)
	lineErrs = append(lineErrs, errs...)

	if product != nil && source != nil {
		lineErrs = append(lineErrs, s.checkSourceBatch(ctx, line, product, source)...)
	}
	if len(lineErrs) > 0 {
		return nil, lineErrs
	}
	return &plannedMovement{line: line, product: product, source: source}, nil
}

func (consumptionDocument) book(ctx context.Context, s *ImportService, repos appledger.TransactionalRepositories, m *plannedMovement, in appledger.MovementInput) error {
	in.LocationID = m.source.ID
	_, err := s.batchLedger.ApplyConsumption(ctx, repos, in)
	return err
}

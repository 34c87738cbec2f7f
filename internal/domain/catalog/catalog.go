package catalog

import (
	"context"

	"github.com/google/uuid"

	"github.com/ledgerlink/backend/internal/domain/shared"
)

// Product is a catalog item synchronized from the ERP item master.
// Code is the ERP item code used on documents and batch lines.
type Product struct {
	shared.BaseEntity
	Code         string
	Name         string
	Unit         string
	BatchManaged bool
	Active       bool
}

// Location is a stock location. WarehouseCode and BinCode are the ERP-side
// identifiers this location maps to; CounterpartCode is the ERP business
// partner used when the location belongs to a consignment counterpart
// (empty for own warehouses).
type Location struct {
	shared.BaseEntity
	Code            string
	Name            string
	WarehouseCode   string
	BinCode         string
	CounterpartCode string
	Active          bool
}

// Consignment reports whether stock here sits with an external counterpart
func (l *Location) Consignment() bool {
	return l.CounterpartCode != ""
}

// ProductRepository reads the synchronized item master. The catalog is
// maintained by the ERP; this application only resolves references.
type ProductRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)
	FindByCode(ctx context.Context, code string) (*Product, error)
	// ActiveCodes lists the ERP item codes of all active products, the
	// set a reconciliation scan tracks.
	ActiveCodes(ctx context.Context) ([]string, error)
	FindAll(ctx context.Context, filter shared.Filter) (*shared.Paginated[*Product], error)
}

// LocationRepository reads configured stock locations
type LocationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Location, error)
	FindByCode(ctx context.Context, code string) (*Location, error)
	// FindByWarehouse resolves the location mapped to an ERP warehouse/bin
	// pair, as reported on document lines. BinCode may be empty.
	FindByWarehouse(ctx context.Context, warehouseCode, binCode string) (*Location, error)
	// FindByCounterpart resolves the consignment location belonging to an
	// ERP business partner, as reported on transfer documents.
	FindByCounterpart(ctx context.Context, counterpartCode string) (*Location, error)
	FindAll(ctx context.Context, filter shared.Filter) (*shared.Paginated[*Location], error)
}

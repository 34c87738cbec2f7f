package operation

import (
	"context"

	"github.com/google/uuid"

	"github.com/ledgerlink/backend/internal/domain/shared"
)

// Repository persists operation records
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Operation, error)
	FindByExternalID(ctx context.Context, externalID string, kind Kind) (*Operation, error)
	// ExistsWithExternalID reports whether any local operation already
	// references the given ERP document, regardless of kind
	ExistsWithExternalID(ctx context.Context, externalID string) (bool, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]*Operation, error)
	Count(ctx context.Context, filter shared.Filter) (int64, error)
	Create(ctx context.Context, op *Operation) error
	Save(ctx context.Context, op *Operation) error
	// ClaimForSync atomically moves the operation from UNSYNCED or FAILED to
	// SYNCING. When the conditional update matches no row the claim was lost:
	// ErrSyncInProgress, ErrAlreadySynced or ErrRetryLimitReached is returned
	// according to the state found after the failed claim.
	ClaimForSync(ctx context.Context, id uuid.UUID) (*Operation, error)
}

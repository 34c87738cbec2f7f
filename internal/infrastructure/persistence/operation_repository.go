package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ledgerlink/backend/internal/domain/operation"
	"github.com/ledgerlink/backend/internal/domain/shared"
	"github.com/ledgerlink/backend/internal/infrastructure/persistence/models"
)

// GormOperationRepository implements operation.Repository using GORM
type GormOperationRepository struct {
	db *gorm.DB
}

// NewGormOperationRepository creates a new GormOperationRepository
func NewGormOperationRepository(db *gorm.DB) *GormOperationRepository {
	return &GormOperationRepository{db: db}
}

// FindByID finds an operation by its ID, including its lines
func (r *GormOperationRepository) FindByID(ctx context.Context, id uuid.UUID) (*operation.Operation, error) {
	var m models.OperationModel
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByExternalID finds the operation referencing an ERP document of a kind
func (r *GormOperationRepository) FindByExternalID(ctx context.Context, externalID string, kind operation.Kind) (*operation.Operation, error) {
	var m models.OperationModel
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("sync_external_id = ? AND kind = ?", externalID, string(kind)).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// ExistsWithExternalID reports whether any local operation references the ERP document
func (r *GormOperationRepository) ExistsWithExternalID(ctx context.Context, externalID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.OperationModel{}).
		Where("sync_external_id = ?", externalID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindAll finds operations matching the filter
func (r *GormOperationRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*operation.Operation, error) {
	var ms []models.OperationModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.OperationModel{}), filter).
		Preload("Lines")

	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset((filter.Page - 1) * filter.PageSize).Limit(filter.PageSize)
	}
	orderBy := ValidateSortField(filter.OrderBy, OperationSortFields, "occurred_at")
	query = query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))

	if err := query.Find(&ms).Error; err != nil {
		return nil, err
	}
	ops := make([]*operation.Operation, len(ms))
	for i := range ms {
		ops[i] = ms[i].ToDomain()
	}
	return ops, nil
}

// Count counts operations matching the filter
func (r *GormOperationRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.OperationModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Create inserts a new operation with its lines
func (r *GormOperationRepository) Create(ctx context.Context, op *operation.Operation) error {
	m := models.OperationModelFromDomain(op)
	return r.db.WithContext(ctx).Create(m).Error
}

// Save persists sync-state changes on an existing operation. Lines are
// immutable once created and are not written here.
func (r *GormOperationRepository) Save(ctx context.Context, op *operation.Operation) error {
	m := models.OperationModelFromDomain(op)
	result := r.db.WithContext(ctx).
		Model(&models.OperationModel{}).
		Where("id = ?", op.ID).
		Updates(map[string]interface{}{
			"sync_state":           m.SyncState,
			"sync_pushed":          m.SyncPushed,
			"sync_external_id":     m.SyncExternalID,
			"sync_external_number": m.SyncExternalNumber,
			"sync_error":           m.SyncError,
			"sync_retry_count":     m.SyncRetryCount,
			"updated_at":           m.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ClaimForSync atomically moves the operation from UNSYNCED or FAILED to
// SYNCING. The transition is a conditional update so that exactly one of
// any number of concurrent claimants wins; the losers get the sentinel
// matching the state the winner left behind.
func (r *GormOperationRepository) ClaimForSync(ctx context.Context, id uuid.UUID) (*operation.Operation, error) {
	result := r.db.WithContext(ctx).
		Model(&models.OperationModel{}).
		Where("id = ? AND sync_state IN ? AND sync_retry_count < ?",
			id,
			[]string{string(operation.SyncStateUnsynced), string(operation.SyncStateFailed)},
			operation.MaxSyncRetries,
		).
		Updates(map[string]interface{}{
			"sync_state":       string(operation.SyncStateSyncing),
			"sync_retry_count": gorm.Expr("sync_retry_count + 1"),
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 1 {
		return r.FindByID(ctx, id)
	}

	// Claim lost: report why based on the state actually stored
	op, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch op.Sync.State {
	case operation.SyncStateSynced:
		return nil, operation.ErrAlreadySynced
	case operation.SyncStateSyncing:
		return nil, operation.ErrSyncInProgress
	default:
		return nil, operation.ErrRetryLimitReached
	}
}

// applyFilter applies filter criteria to the query
func (r *GormOperationRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if kind, ok := filter.Filters["kind"]; ok {
		query = query.Where("kind = ?", kind)
	}
	if state, ok := filter.Filters["sync_state"]; ok {
		query = query.Where("sync_state = ?", state)
	}
	if actor, ok := filter.Filters["actor"]; ok {
		query = query.Where("actor = ?", actor)
	}
	return query
}

var _ operation.Repository = (*GormOperationRepository)(nil)

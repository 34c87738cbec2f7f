package persistence

import (
	"context"

	"gorm.io/gorm"

	appledger "github.com/ledgerlink/backend/internal/application/ledger"
	"github.com/ledgerlink/backend/internal/domain/ledger"
	"github.com/ledgerlink/backend/internal/domain/operation"
	"github.com/ledgerlink/backend/internal/domain/reconcile"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// Ledger mutation and operation record always commit or roll back together.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appledger.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories provides repositories bound to one transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// Lots returns the lot repository scoped to the current transaction
func (r *gormTransactionalRepositories) Lots() ledger.LotRepository {
	return NewGormLotRepository(r.tx)
}

// Stocks returns the location stock repository scoped to the current transaction
func (r *gormTransactionalRepositories) Stocks() ledger.LocationStockRepository {
	return NewGormLocationStockRepository(r.tx)
}

// Operations returns the operation repository scoped to the current transaction
func (r *gormTransactionalRepositories) Operations() operation.Repository {
	return NewGormOperationRepository(r.tx)
}

// Documents returns the external document repository scoped to the current transaction
func (r *gormTransactionalRepositories) Documents() reconcile.ExternalDocumentRepository {
	return NewGormExternalDocumentRepository(r.tx)
}

var _ appledger.TransactionScope = (*GormTransactionScope)(nil)
var _ appledger.TransactionalRepositories = (*gormTransactionalRepositories)(nil)

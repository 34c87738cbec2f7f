package ledger

import (
	"context"

	"github.com/ledgerlink/backend/internal/domain/ledger"
	"github.com/ledgerlink/backend/internal/domain/operation"
	"github.com/ledgerlink/backend/internal/domain/reconcile"
)

// TransactionalRepositories provides repositories bound to one transaction.
// Everything obtained from it commits or rolls back together: the ledger
// mutation, the operation record and the derived aggregates are never
// persisted partially.
type TransactionalRepositories interface {
	Lots() ledger.LotRepository
	Stocks() ledger.LocationStockRepository
	Operations() operation.Repository
	Documents() reconcile.ExternalDocumentRepository
}

// TransactionScope executes a function within a database transaction.
// If the function returns an error the transaction is rolled back.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

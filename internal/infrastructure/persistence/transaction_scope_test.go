package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	appledger "github.com/ledgerlink/backend/internal/application/ledger"
)

// newMockScope creates a GormTransactionScope backed by a mocked SQL connection
func newMockScope(t *testing.T) (*GormTransactionScope, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormTransactionScope(gormDB), mock, mockDB
}

func TestGormTransactionScope_CommitsOnSuccess(t *testing.T) {
	scope, mock, mockDB := newMockScope(t)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := scope.Execute(context.Background(), func(repos appledger.TransactionalRepositories) error {
		assert.NotNil(t, repos.Lots())
		assert.NotNil(t, repos.Stocks())
		assert.NotNil(t, repos.Operations())
		assert.NotNil(t, repos.Documents())
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormTransactionScope_RollsBackOnError(t *testing.T) {
	scope, mock, mockDB := newMockScope(t)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("ledger write refused")
	err := scope.Execute(context.Background(), func(repos appledger.TransactionalRepositories) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bhima/internal/domain/payroll"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &Store{db: db}, mock
}

func mockResult() payroll.RunResult {
	return payroll.RunResult{
		RunID:                  uuid.New(),
		PayrollConfigurationID: 5,
		Options:                payroll.RunOptions{PostingMode: payroll.PostingAggregate},
		Breakdowns: []payroll.PayrollBreakdown{{
			EmployeeUUID: "emp-a",
			Basic:        decimal.NewFromInt(100),
			GrossSalary:  decimal.NewFromInt(100),
			BaseTaxable:  decimal.NewFromInt(100),
			NetSalary:    decimal.NewFromInt(100),
		}},
	}
}

func TestSaveRunRollsBackOnFailedRecord(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payroll_runs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO payroll_records").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err := store.SaveRun(context.Background(), mockResult())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "emp-a")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRunMapsUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payroll_runs").
		WillReturnError(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique})
	mock.ExpectRollback()

	err := store.SaveRun(context.Background(), mockResult())
	assert.ErrorIs(t, err, payroll.ErrRunAlreadyCommitted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExchangeRatePropagatesQueryErrors(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT rate FROM exchange_rates").WillReturnError(errors.New("database is locked"))

	_, err := store.ExchangeRate(context.Background(), 1, time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.NotErrorIs(t, err, payroll.ErrExchangeRateNotFound)
}

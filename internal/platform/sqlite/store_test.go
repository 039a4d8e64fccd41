package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bhima/internal/domain/payroll"
	"bhima/internal/platform/jobs"
)

const (
	currencyCDF = 1
	currencyUSD = 2
)

func newTestStore(t *testing.T) *Store {
	store, err := New(":memory:", currencyUSD)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func computeRun(t *testing.T, svc *payroll.Service, configurationID int) payroll.RunResult {
	t.Helper()
	in := payroll.ConfigurationInput{
		PayrollConfigurationID: configurationID,
		Period: payroll.Period{
			Label:    "2024-03",
			DateFrom: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
			DateTo:   time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC),
		},
		Employees: []payroll.EmployeePayrollContext{
			{EmployeeUUID: "emp-a", CostCenterID: 3, CreditorAccountID: 4221, BasicSalary: decimal.RequireFromString("500")},
			{EmployeeUUID: "emp-b", CostCenterID: 3, CreditorAccountID: 4221, BasicSalary: decimal.RequireFromString("320.50")},
		},
		Rubrics: []payroll.Rubric{
			{ID: 1, Abbr: "INSS_EMP", Value: decimal.RequireFromString("3.5"), IsPercent: true, IsDiscount: true, IsEmployee: true, IsSocialCare: true, DebtorAccountID: 4311},
			{ID: 2, Abbr: "INSS_ER", Value: decimal.RequireFromString("5"), IsPercent: true, IsDiscount: true, IsSocialCare: true, DebtorAccountID: 4311, ExpenseAccountID: 6641},
		},
		Accounts: payroll.AccountMap{SalaryExpenseAccountID: 6611},
	}
	result, err := svc.Run(context.Background(), in, payroll.RunOptions{PostingMode: payroll.PostingIndividual})
	require.NoError(t, err)
	return result
}

func TestSaveRunAndListJournalEntries(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := payroll.NewService(store, nil, nil, 1)

	result := computeRun(t, svc, 7)
	require.NoError(t, svc.Commit(ctx, result))

	entries, err := store.ListJournalEntries(ctx, result.RunID)
	require.NoError(t, err)
	want := result.JournalEntries()
	require.Len(t, entries, len(want))
	for i := range want {
		assert.Equal(t, want[i].TransactionUUID, entries[i].TransactionUUID)
		assert.Equal(t, want[i].AccountID, entries[i].AccountID)
		assert.True(t, want[i].Debit.Equal(entries[i].Debit), "debit %s != %s", want[i].Debit, entries[i].Debit)
		assert.True(t, want[i].Credit.Equal(entries[i].Credit))
		assert.Equal(t, want[i].EntityUUID, entries[i].EntityUUID)
		assert.Equal(t, want[i].CostCenterID, entries[i].CostCenterID)
		assert.True(t, want[i].TransDate.Equal(entries[i].TransDate))
	}

	count, err := store.CountRecords(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSaveRunTwiceIsRejected(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	svc := payroll.NewService(store, nil, nil, 1)

	require.NoError(t, svc.Commit(ctx, computeRun(t, svc, 9)))

	second := computeRun(t, svc, 9)
	err := svc.Commit(ctx, second)
	assert.True(t, errors.Is(err, payroll.ErrRunAlreadyCommitted), "got %v", err)

	entries, err := store.ListJournalEntries(ctx, second.RunID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExchangeRates(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveExchangeRates(ctx, []payroll.ExchangeRate{
		{CurrencyID: 1, Rate: decimal.RequireFromString("900"), EffectiveDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{CurrencyID: 1, Rate: decimal.RequireFromString("930"), EffectiveDate: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)},
	}))

	rate, err := store.ExchangeRate(ctx, 1, time.Date(2024, time.February, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "900", rate.String())

	rate, err = store.ExchangeRate(ctx, 1, time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "930", rate.String())

	_, err = store.ExchangeRate(ctx, 1, time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, payroll.ErrExchangeRateNotFound)

	rate, err = store.ExchangeRate(ctx, currencyUSD, time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "1", rate.String())

	err = store.SaveExchangeRates(ctx, []payroll.ExchangeRate{{CurrencyID: 3, Rate: decimal.Zero, EffectiveDate: time.Now()}})
	assert.Error(t, err)
}

func TestServiceConvertsTaxThroughStoredRates(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	periodEnd := time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveExchangeRates(ctx, []payroll.ExchangeRate{
		{CurrencyID: currencyCDF, Rate: decimal.RequireFromString("930"), EffectiveDate: periodEnd.AddDate(0, -1, 0)},
	}))

	in := payroll.ConfigurationInput{
		PayrollConfigurationID: 11,
		Period:                 payroll.Period{Label: "2024-03", DateTo: periodEnd},
		Envelope:               payroll.PayEnvelope{WorkingDaysInPeriod: 26, CurrencyID: currencyUSD},
		TaxScale: payroll.TaxScale{ID: 1, CurrencyID: currencyCDF, Brackets: []payroll.TaxBracket{
			{ID: 1, Rate: decimal.NewFromInt(10), TaxScaleID: 1},
		}},
		Employees: []payroll.EmployeePayrollContext{
			{EmployeeUUID: "emp-a", CostCenterID: 3, CreditorAccountID: 4221, BasicSalary: decimal.RequireFromString("500")},
		},
		Rubrics: []payroll.Rubric{
			{ID: 1, Abbr: "IPR", IsDiscount: true, IsTax: true, IsEmployee: true, IsIPR: true, DebtorAccountID: 4471},
		},
		Accounts: payroll.AccountMap{SalaryExpenseAccountID: 6611},
	}

	result, err := payroll.NewService(store, nil, nil, 1).Run(ctx, in, payroll.RunOptions{})
	require.NoError(t, err)
	require.Len(t, result.Breakdowns, 1)
	assert.Equal(t, "450.00", result.Breakdowns[0].NetSalary.StringFixed(2))
}

func TestJobRunsRecordOutcome(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	runner := jobs.New(store)

	var okID string
	_, err := runner.RunNow(ctx, payroll.JobCommitment, func(ctx context.Context) (any, error) {
		return map[string]any{"lines": 3}, nil
	})
	require.NoError(t, err)

	require.NoError(t, store.db.QueryRowContext(ctx, "SELECT id FROM job_runs ORDER BY started_at LIMIT 1").Scan(&okID))
	status, err := store.JobRunStatus(ctx, okID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusSucceeded, status)

	boom := errors.New("boom")
	_, err = runner.RunNow(ctx, payroll.JobCommitment, func(ctx context.Context) (any, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	var failed int
	require.NoError(t, store.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM job_runs WHERE status = ?", jobs.StatusFailed).Scan(&failed))
	assert.Equal(t, 1, failed)
}

package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const pgUniqueViolation = "23505"

// Store is the Postgres ledger. Exchange rates are kept per unit of the
// enterprise currency.
type Store struct {
	DB                   *pgxpool.Pool
	EnterpriseCurrencyID int
}

func NewStore(db *pgxpool.Pool, enterpriseCurrencyID int) *Store {
	return &Store{DB: db, EnterpriseCurrencyID: enterpriseCurrencyID}
}

func (s *Store) SaveRun(ctx context.Context, result RunResult) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin payroll commit: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var rate, indexSum any
	if result.Allocation != nil {
		rate, indexSum = result.Allocation.Rate.String(), result.Allocation.TotalIndexSum.String()
	}
	_, err = tx.Exec(ctx, `
    INSERT INTO payroll_runs (id, payroll_configuration_id, period_label, posting_mode, index_allocation, remuneration_rate, total_index_sum)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
  `, result.RunID, result.PayrollConfigurationID, result.Period.Label, string(result.Options.PostingMode),
		result.Options.UseIndexAllocation, rate, indexSum)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrRunAlreadyCommitted
		}
		return fmt.Errorf("insert payroll run: %w", err)
	}

	batch := &pgx.Batch{}
	for _, b := range result.Breakdowns {
		batch.Queue(`
    INSERT INTO payroll_records (run_id, employee_uuid, adjusted_index, basic, gross, base_taxable, non_taxable, net)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
  `, result.RunID, b.EmployeeUUID, b.AdjustedIndex.String(), b.Basic.String(), b.GrossSalary.String(),
			b.BaseTaxable.String(), b.NonTaxable.String(), b.NetSalary.String())
		for _, line := range b.Lines() {
			batch.Queue(`
    INSERT INTO payroll_record_lines (run_id, employee_uuid, rubric_id, abbr, category, amount)
    VALUES ($1,$2,$3,$4,$5,$6)
  `, result.RunID, b.EmployeeUUID, line.RubricID, line.Abbr, line.Category, line.Amount.String())
		}
	}
	for _, entry := range result.JournalEntries() {
		batch.Queue(`
    INSERT INTO journal_entries (run_id, transaction_uuid, transaction_type_id, account_id, debit, credit, entity_uuid, cost_center_id, description, trans_date)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
  `, result.RunID, entry.TransactionUUID, entry.TransactionTypeID, entry.AccountID, entry.Debit.String(), entry.Credit.String(),
			nullIfEmpty(entry.EntityUUID), nullIfZero(entry.CostCenterID), entry.Description, nullIfZeroTime(entry.TransDate))
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("write payroll records: %w", err)
	}
	return tx.Commit(ctx)
}

// ListJournalEntries returns the lines posted for a run, in insertion order.
func (s *Store) ListJournalEntries(ctx context.Context, runID uuid.UUID) ([]JournalEntry, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT transaction_uuid, transaction_type_id, account_id, debit::text, credit::text,
           COALESCE(entity_uuid, ''), COALESCE(cost_center_id, 0), description, COALESCE(trans_date, '0001-01-01'::date)
    FROM journal_entries
    WHERE run_id = $1
    ORDER BY id
  `, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var entry JournalEntry
		var debit, credit string
		if err := rows.Scan(&entry.TransactionUUID, &entry.TransactionTypeID, &entry.AccountID, &debit, &credit,
			&entry.EntityUUID, &entry.CostCenterID, &entry.Description, &entry.TransDate); err != nil {
			return nil, err
		}
		if entry.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, err
		}
		if entry.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) ExchangeRate(ctx context.Context, currencyID int, date time.Time) (decimal.Decimal, error) {
	if s.EnterpriseCurrencyID != 0 && currencyID == s.EnterpriseCurrencyID {
		return decimal.NewFromInt(1), nil
	}
	if date.IsZero() {
		date = time.Now()
	}
	var rate string
	err := s.DB.QueryRow(ctx, `
    SELECT rate::text
    FROM exchange_rates
    WHERE currency_id = $1 AND effective_date <= $2
    ORDER BY effective_date DESC
    LIMIT 1
  `, currencyID, date).Scan(&rate)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, ErrExchangeRateNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(rate)
}

func (s *Store) CreateJobRun(ctx context.Context, jobType string) (string, error) {
	var runID string
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, status)
    VALUES ($1,$2)
    RETURNING id::text
  `, jobType, "running").Scan(&runID); err != nil {
		return "", err
	}
	return runID, nil
}

func (s *Store) UpdateJobRun(ctx context.Context, runID, status string, detailsJSON []byte) error {
	if detailsJSON == nil {
		detailsJSON = []byte("{}")
	}
	_, err := s.DB.Exec(ctx, `
    UPDATE job_runs SET status = $1, details_json = $2, completed_at = now()
    WHERE id = $3
  `, status, detailsJSON, runID)
	return err
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullIfZero(value int) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullIfZeroTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value
}

var _ StoreAPI = (*Store)(nil)

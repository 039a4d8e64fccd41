// Package sqlite is a SQLite ledger for payroll runs. It mirrors the
// Postgres store: one database transaction per committed run, decimals
// stored as text and a unique payroll configuration per run.
//
// Use ":memory:" for a throwaway database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"bhima/internal/domain/payroll"
)

const dateLayout = "2006-01-02"

type Store struct {
	db                   *sql.DB
	enterpriseCurrencyID int
}

// New opens the ledger at dbPath. Rates are stored per unit of
// enterpriseCurrencyID, which always converts at 1.
func New(dbPath string, enterpriseCurrencyID int) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, enterpriseCurrencyID: enterpriseCurrencyID}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS payroll_runs (
		id TEXT PRIMARY KEY,
		payroll_configuration_id INTEGER NOT NULL UNIQUE,
		period_label TEXT NOT NULL DEFAULT '',
		posting_mode TEXT NOT NULL,
		index_allocation INTEGER NOT NULL DEFAULT 0,
		remuneration_rate TEXT,
		total_index_sum TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS payroll_records (
		run_id TEXT NOT NULL REFERENCES payroll_runs(id) ON DELETE CASCADE,
		employee_uuid TEXT NOT NULL,
		adjusted_index TEXT NOT NULL,
		basic TEXT NOT NULL,
		gross TEXT NOT NULL,
		base_taxable TEXT NOT NULL,
		non_taxable TEXT NOT NULL,
		net TEXT NOT NULL,
		PRIMARY KEY (run_id, employee_uuid)
	);

	CREATE TABLE IF NOT EXISTS payroll_record_lines (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES payroll_runs(id) ON DELETE CASCADE,
		employee_uuid TEXT NOT NULL,
		rubric_id INTEGER NOT NULL,
		abbr TEXT NOT NULL,
		category TEXT NOT NULL,
		amount TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS journal_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES payroll_runs(id) ON DELETE CASCADE,
		transaction_uuid TEXT NOT NULL,
		transaction_type_id INTEGER NOT NULL CHECK (transaction_type_id IN (15, 16, 17)),
		account_id INTEGER NOT NULL,
		debit TEXT NOT NULL,
		credit TEXT NOT NULL,
		entity_uuid TEXT,
		cost_center_id INTEGER,
		description TEXT NOT NULL DEFAULT '',
		trans_date TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_journal_entries_run ON journal_entries(run_id);

	CREATE TABLE IF NOT EXISTS exchange_rates (
		currency_id INTEGER NOT NULL,
		rate TEXT NOT NULL,
		effective_date TEXT NOT NULL,
		PRIMARY KEY (currency_id, effective_date)
	);

	CREATE TABLE IF NOT EXISTS job_runs (
		id TEXT PRIMARY KEY,
		job_type TEXT NOT NULL,
		status TEXT NOT NULL,
		details_json TEXT NOT NULL DEFAULT '{}',
		started_at TEXT NOT NULL,
		completed_at TEXT
	);
	`)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) SaveRun(ctx context.Context, result payroll.RunResult) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := insertRun(ctx, sqlTx, result); err != nil {
		return err
	}
	for _, b := range result.Breakdowns {
		if err := insertBreakdown(ctx, sqlTx, result.RunID, b); err != nil {
			return err
		}
	}
	for _, entry := range result.JournalEntries() {
		if err := insertEntry(ctx, sqlTx, result.RunID, entry); err != nil {
			return err
		}
	}
	return sqlTx.Commit()
}

func insertRun(ctx context.Context, db execer, result payroll.RunResult) error {
	var rate, indexSum sql.NullString
	if result.Allocation != nil {
		rate = sql.NullString{String: result.Allocation.Rate.String(), Valid: true}
		indexSum = sql.NullString{String: result.Allocation.TotalIndexSum.String(), Valid: true}
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO payroll_runs
		(id, payroll_configuration_id, period_label, posting_mode, index_allocation, remuneration_rate, total_index_sum, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.RunID.String(),
		result.PayrollConfigurationID,
		result.Period.Label,
		string(result.Options.PostingMode),
		result.Options.UseIndexAllocation,
		rate,
		indexSum,
		time.Now().UTC().Format(time.RFC3339),
	)
	if isUniqueConstraintError(err) {
		return payroll.ErrRunAlreadyCommitted
	}
	if err != nil {
		return fmt.Errorf("failed to insert payroll run: %w", err)
	}
	return nil
}

func insertBreakdown(ctx context.Context, db execer, runID uuid.UUID, b payroll.PayrollBreakdown) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO payroll_records
		(run_id, employee_uuid, adjusted_index, basic, gross, base_taxable, non_taxable, net)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID.String(), b.EmployeeUUID, b.AdjustedIndex.String(), b.Basic.String(), b.GrossSalary.String(),
		b.BaseTaxable.String(), b.NonTaxable.String(), b.NetSalary.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert payroll record %s: %w", b.EmployeeUUID, err)
	}
	for _, line := range b.Lines() {
		_, err := db.ExecContext(ctx, `
			INSERT INTO payroll_record_lines (run_id, employee_uuid, rubric_id, abbr, category, amount)
			VALUES (?, ?, ?, ?, ?, ?)
		`, runID.String(), b.EmployeeUUID, line.RubricID, line.Abbr, line.Category, line.Amount.String())
		if err != nil {
			return fmt.Errorf("failed to insert payroll line %s/%s: %w", b.EmployeeUUID, line.Abbr, err)
		}
	}
	return nil
}

func insertEntry(ctx context.Context, db execer, runID uuid.UUID, entry payroll.JournalEntry) error {
	var transDate sql.NullString
	if !entry.TransDate.IsZero() {
		transDate = sql.NullString{String: entry.TransDate.Format(dateLayout), Valid: true}
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO journal_entries
		(run_id, transaction_uuid, transaction_type_id, account_id, debit, credit, entity_uuid, cost_center_id, description, trans_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID.String(),
		entry.TransactionUUID.String(),
		entry.TransactionTypeID,
		entry.AccountID,
		entry.Debit.String(),
		entry.Credit.String(),
		sql.NullString{String: entry.EntityUUID, Valid: entry.EntityUUID != ""},
		sql.NullInt64{Int64: int64(entry.CostCenterID), Valid: entry.CostCenterID != 0},
		entry.Description,
		transDate,
	)
	if err != nil {
		return fmt.Errorf("failed to insert journal entry: %w", err)
	}
	return nil
}

// ListJournalEntries returns the lines posted for a run, in insertion order.
func (s *Store) ListJournalEntries(ctx context.Context, runID uuid.UUID) ([]payroll.JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT transaction_uuid, transaction_type_id, account_id, debit, credit,
		       COALESCE(entity_uuid, ''), COALESCE(cost_center_id, 0), description, COALESCE(trans_date, '')
		FROM journal_entries
		WHERE run_id = ?
		ORDER BY id
	`, runID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []payroll.JournalEntry
	for rows.Next() {
		var (
			entry                          payroll.JournalEntry
			txUUID, debit, credit, transAt string
		)
		if err := rows.Scan(&txUUID, &entry.TransactionTypeID, &entry.AccountID, &debit, &credit,
			&entry.EntityUUID, &entry.CostCenterID, &entry.Description, &transAt); err != nil {
			return nil, err
		}
		if entry.TransactionUUID, err = uuid.Parse(txUUID); err != nil {
			return nil, err
		}
		if entry.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, err
		}
		if entry.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, err
		}
		if transAt != "" {
			if entry.TransDate, err = time.Parse(dateLayout, transAt); err != nil {
				return nil, err
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// CountRecords returns the number of payroll records stored for a run.
func (s *Store) CountRecords(ctx context.Context, runID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM payroll_records WHERE run_id = ?", runID.String()).Scan(&count)
	return count, err
}

func (s *Store) SaveExchangeRates(ctx context.Context, rates []payroll.ExchangeRate) error {
	for _, rate := range rates {
		if !rate.Rate.IsPositive() {
			return fmt.Errorf("exchange rate for currency %d must be positive", rate.CurrencyID)
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO exchange_rates (currency_id, rate, effective_date)
			VALUES (?, ?, ?)
			ON CONFLICT (currency_id, effective_date) DO NOTHING
		`, rate.CurrencyID, rate.Rate.String(), rate.EffectiveDate.Format(dateLayout))
		if err != nil {
			return fmt.Errorf("failed to save exchange rate: %w", err)
		}
	}
	return nil
}

func (s *Store) ExchangeRate(ctx context.Context, currencyID int, date time.Time) (decimal.Decimal, error) {
	if s.enterpriseCurrencyID != 0 && currencyID == s.enterpriseCurrencyID {
		return decimal.NewFromInt(1), nil
	}
	if date.IsZero() {
		date = time.Now()
	}
	var rate string
	err := s.db.QueryRowContext(ctx, `
		SELECT rate FROM exchange_rates
		WHERE currency_id = ? AND effective_date <= ?
		ORDER BY effective_date DESC
		LIMIT 1
	`, currencyID, date.Format(dateLayout)).Scan(&rate)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, payroll.ErrExchangeRateNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(rate)
}

func (s *Store) CreateJobRun(ctx context.Context, jobType string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_runs (id, job_type, status, started_at) VALUES (?, ?, ?, ?)
	`, id, jobType, "running", time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) UpdateJobRun(ctx context.Context, runID, status string, detailsJSON []byte) error {
	if detailsJSON == nil {
		detailsJSON = []byte("{}")
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE job_runs SET status = ?, details_json = ?, completed_at = ? WHERE id = ?
	`, status, string(detailsJSON), time.Now().UTC().Format(time.RFC3339), runID)
	return err
}

// JobRunStatus returns the recorded status of a job run.
func (s *Store) JobRunStatus(ctx context.Context, runID string) (string, error) {
	var status string
	err := s.db.QueryRowContext(ctx, "SELECT status FROM job_runs WHERE id = ?", runID).Scan(&status)
	return status, err
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

var _ payroll.StoreAPI = (*Store)(nil)

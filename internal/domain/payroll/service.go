package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"bhima/internal/platform/metrics"
)

const defaultWorkers = 4

type Service struct {
	store   StoreAPI
	rates   RateSource
	metrics *metrics.Collector
	workers int

	// idMu serializes transaction uuid assignment across concurrent runs.
	idMu  sync.Mutex
	newID func() uuid.UUID
}

// NewService builds the engine. rates may be nil when store also serves
// exchange rates; store may be nil for compute-only use.
func NewService(store StoreAPI, rates RateSource, collector *metrics.Collector, workers int) *Service {
	if rates == nil && store != nil {
		rates = store
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Service{store: store, rates: rates, metrics: collector, workers: workers, newID: uuid.New}
}

// WithIDGenerator replaces the uuid source, mainly for deterministic tests.
func (s *Service) WithIDGenerator(newID func() uuid.UUID) *Service {
	s.newID = newID
	return s
}

// Run computes every breakdown and the journal transactions for one payroll
// configuration. Nothing is persisted; see Commit.
func (s *Service) Run(ctx context.Context, in ConfigurationInput, opts RunOptions) (RunResult, error) {
	start := time.Now()
	s.metrics.RunStarted()

	result, err := s.run(ctx, in, opts)
	if err != nil {
		s.metrics.RunFailed(time.Since(start))
		slog.Warn("payroll run failed", "payrollConfigurationId", in.PayrollConfigurationID, "err", err)
		return RunResult{}, err
	}

	s.metrics.RunCompleted(len(result.Breakdowns), time.Since(start))
	slog.Info("payroll run computed",
		"payrollConfigurationId", in.PayrollConfigurationID,
		"employees", len(result.Breakdowns),
		"transactions", len(result.Transactions),
		"gross", result.Totals.Gross.StringFixed(moneyPlaces),
		"net", result.Totals.Net.StringFixed(moneyPlaces),
	)
	return result, nil
}

func (s *Service) run(ctx context.Context, in ConfigurationInput, opts RunOptions) (RunResult, error) {
	requested := opts.PostingMode
	if requested == "" {
		requested = in.PostingMode
	}
	mode, ok := ParsePostingMode(string(requested))
	if !ok {
		return RunResult{}, configErrorf("unknown posting mode %q", requested)
	}
	if len(in.Employees) == 0 {
		return RunResult{}, ErrEmptyRoster
	}
	if err := checkOverrides(in.Employees); err != nil {
		return RunResult{}, err
	}

	rubrics, err := Classify(in.Rubrics)
	if err != nil {
		return RunResult{}, err
	}
	slog.Debug("rubrics classified",
		"benefits", len(rubrics.Benefits),
		"employeeDeductions", len(rubrics.EmployeeDeductions),
		"employerCharges", len(rubrics.EmployerCharges),
		"ipr", rubrics.IPR != nil,
	)

	var tc TaxContext
	if rubrics.IPR != nil {
		if tc, err = s.taxContext(ctx, in); err != nil {
			return RunResult{}, err
		}
	}

	result := RunResult{
		PayrollConfigurationID: in.PayrollConfigurationID,
		Period:                 in.Period,
		Options:                RunOptions{PostingMode: mode, UseIndexAllocation: opts.UseIndexAllocation},
	}

	if opts.UseIndexAllocation {
		allocation, err := Allocate(in.Employees, in.Envelope, rubrics.Indexed)
		if err != nil {
			return RunResult{}, err
		}
		result.Allocation = &allocation
		slog.Debug("envelope allocated", "rate", allocation.Rate.String(), "totalIndexSum", allocation.TotalIndexSum.String())
	}

	if result.Breakdowns, err = s.evaluateAll(ctx, in, rubrics, tc, result.Allocation); err != nil {
		return RunResult{}, err
	}

	meta := PostingMeta{PeriodLabel: in.Period.Label, TransDate: in.Period.DateTo}
	s.idMu.Lock()
	defer s.idMu.Unlock()
	result.Transactions, err = BuildPostings(result.Breakdowns, in.Accounts, mode, meta, s.newID)
	if err != nil {
		return RunResult{}, err
	}
	if err := Reconcile(result.Breakdowns, result.Transactions, mode); err != nil {
		return RunResult{}, err
	}
	result.RunID = s.newID()
	result.Totals = ComputeTotals(result.Breakdowns)
	return result, nil
}

// checkOverrides rejects negative per-employee rubric values. Rubric
// definitions are checked by Classify.
func checkOverrides(employees []EmployeePayrollContext) error {
	for _, employee := range employees {
		for rubricID, value := range employee.RubricValues {
			if value.IsNegative() {
				return configErrorf("employee %s: negative value %s for rubric %d", employee.EmployeeUUID, value, rubricID)
			}
		}
	}
	return nil
}

// evaluateAll runs the cascade for every employee in parallel. Results keep
// roster order.
func (s *Service) evaluateAll(ctx context.Context, in ConfigurationInput, rubrics ClassifiedRubrics, tc TaxContext, allocation *Allocation) ([]PayrollBreakdown, error) {
	breakdowns := make([]PayrollBreakdown, len(in.Employees))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, employee := range in.Employees {
		i, employee := i, employee
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var basic, index decimal.Decimal
			if allocation != nil {
				share := allocation.Shares[employee.EmployeeUUID]
				basic, index = share.GrossSalary, share.AdjustedIndex
			} else {
				var err error
				if basic, err = basicSalaryFor(employee, in.Envelope); err != nil {
					return err
				}
			}
			breakdown, err := Evaluate(employee, basic, rubrics, tc)
			if err != nil {
				return fmt.Errorf("employee %s: %w", employee.EmployeeUUID, err)
			}
			breakdown.AdjustedIndex = index
			breakdowns[i] = breakdown
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return breakdowns, nil
}

func (s *Service) taxContext(ctx context.Context, in ConfigurationInput) (TaxContext, error) {
	brackets, err := ValidateBrackets(in.TaxScale.Brackets)
	if err != nil {
		return TaxContext{}, err
	}
	conversion, err := s.conversion(ctx, in)
	if err != nil {
		return TaxContext{}, err
	}
	return TaxContext{Brackets: brackets, Conversion: conversion}, nil
}

// conversion is the factor taking a working-currency amount into the tax
// scale's currency.
func (s *Service) conversion(ctx context.Context, in ConfigurationInput) (decimal.Decimal, error) {
	scaleCurrency, workCurrency := in.TaxScale.CurrencyID, in.Envelope.CurrencyID
	if scaleCurrency == 0 || scaleCurrency == workCurrency {
		return decimal.NewFromInt(1), nil
	}
	if s.rates == nil {
		return decimal.Zero, ErrExchangeRateNotFound
	}
	date := in.Period.DateTo
	scaleRate, err := s.rates.ExchangeRate(ctx, scaleCurrency, date)
	if err != nil {
		return decimal.Zero, fmt.Errorf("currency %d: %w", scaleCurrency, err)
	}
	workRate, err := s.rates.ExchangeRate(ctx, workCurrency, date)
	if err != nil {
		return decimal.Zero, fmt.Errorf("currency %d: %w", workCurrency, err)
	}
	if !workRate.IsPositive() {
		return decimal.Zero, fmt.Errorf("currency %d: %w", workCurrency, ErrExchangeRateNotFound)
	}
	return quotient(scaleRate, workRate), nil
}

// Commit writes a computed run to the ledger in a single transaction.
func (s *Service) Commit(ctx context.Context, result RunResult) error {
	if s.store == nil {
		return errors.New("payroll service has no store")
	}
	for _, txn := range result.Transactions {
		if !txn.Balanced() {
			return fmt.Errorf("%w: transaction %s", ErrUnbalancedTransaction, txn.UUID)
		}
	}
	if err := s.store.SaveRun(ctx, result); err != nil {
		slog.Warn("payroll commit failed", "payrollConfigurationId", result.PayrollConfigurationID, "err", err)
		return err
	}
	lines := len(result.JournalEntries())
	s.metrics.RunCommitted(lines)
	slog.Info("payroll run committed",
		"runId", result.RunID.String(),
		"payrollConfigurationId", result.PayrollConfigurationID,
		"journalLines", lines,
	)
	return nil
}

package payroll

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// RateSource returns how many units of currencyID one unit of the
// enterprise currency buys on date.
type RateSource interface {
	ExchangeRate(ctx context.Context, currencyID int, date time.Time) (decimal.Decimal, error)
}

type StoreAPI interface {
	RateSource
	// SaveRun writes the run, its breakdowns and journal entries in one
	// transaction. It returns ErrRunAlreadyCommitted when the payroll
	// configuration was committed before.
	SaveRun(ctx context.Context, result RunResult) error
	CreateJobRun(ctx context.Context, jobType string) (string, error)
	UpdateJobRun(ctx context.Context, runID, status string, detailsJSON []byte) error
}

// StaticRates is a fixed rate table, keyed by currency id. The enterprise
// currency always has rate 1.
type StaticRates struct {
	EnterpriseCurrencyID int
	Rates                map[int]decimal.Decimal
}

func (r StaticRates) ExchangeRate(_ context.Context, currencyID int, _ time.Time) (decimal.Decimal, error) {
	if currencyID == r.EnterpriseCurrencyID {
		return decimal.NewFromInt(1), nil
	}
	rate, ok := r.Rates[currencyID]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, ErrExchangeRateNotFound
	}
	return rate, nil
}

package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"bhima/internal/domain/payroll"
)

// SeedExchangeRates records the given rates, keeping any rate already
// stored for the same currency and date.
func SeedExchangeRates(ctx context.Context, pool *pgxpool.Pool, rates []payroll.ExchangeRate) error {
	for _, rate := range rates {
		if !rate.Rate.IsPositive() {
			return fmt.Errorf("exchange rate for currency %d must be positive", rate.CurrencyID)
		}
		_, err := pool.Exec(ctx, `
    INSERT INTO exchange_rates (currency_id, rate, effective_date)
    VALUES ($1, $2, $3)
    ON CONFLICT (currency_id, effective_date) DO NOTHING
  `, rate.CurrencyID, rate.Rate.String(), rate.EffectiveDate)
		if err != nil {
			return err
		}
	}
	return nil
}

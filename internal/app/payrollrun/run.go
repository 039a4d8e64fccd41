package payrollrun

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"bhima/internal/domain/payroll"
	"bhima/internal/platform/config"
	"bhima/internal/platform/db"
	"bhima/internal/platform/jobs"
	"bhima/internal/platform/metrics"
	"bhima/internal/platform/sqlite"
	"bhima/internal/transport/runfile"
)

var ErrNoLedger = errors.New("commit requires DATABASE_URL or SQLITE_PATH")

// Options are the per-invocation settings given on the command line. Empty
// values fall back to the run file, then to the environment.
type Options struct {
	InputPath   string
	Commit      bool
	PostingMode string
	IndexSystem bool
	Output      io.Writer
}

type ledger struct {
	store payroll.StoreAPI
	seed  func(context.Context, []payroll.ExchangeRate) error
	close func()
}

// Run evaluates one run file and, when asked, commits it to the ledger.
// The computed result is written to opts.Output as JSON.
func Run(ctx context.Context, cfg config.Config, opts Options) error {
	file, err := runfile.Load(opts.InputPath)
	if err != nil {
		return fmt.Errorf("load run file: %w", err)
	}

	enterpriseCurrency := file.EnterpriseCurrencyID
	if enterpriseCurrency == 0 {
		enterpriseCurrency = cfg.EnterpriseCurrencyID
	}
	led, err := openLedger(ctx, cfg, enterpriseCurrency)
	if err != nil {
		return err
	}
	defer led.close()

	if led.store != nil && len(file.ExchangeRates) > 0 {
		if err := led.seed(ctx, file.ExchangeRates); err != nil {
			return fmt.Errorf("seed exchange rates: %w", err)
		}
	}

	var rates payroll.RateSource
	if len(file.ExchangeRates) > 0 {
		rates = file.Rates()
	}

	collector := metrics.New()
	svc := payroll.NewService(led.store, rates, collector, cfg.Workers)

	runOpts := payroll.RunOptions{
		PostingMode:        payroll.PostingMode(opts.PostingMode),
		UseIndexAllocation: opts.IndexSystem || cfg.IndexSystem,
	}
	if runOpts.PostingMode == "" && file.Input.PostingMode == "" {
		runOpts.PostingMode = payroll.PostingMode(cfg.PostingMode)
	}

	result, err := svc.Run(ctx, file.Input, runOpts)
	if err != nil {
		return err
	}

	if opts.Commit {
		if !cfg.HasLedger() {
			return ErrNoLedger
		}
		_, err := jobs.New(led.store).RunNow(ctx, payroll.JobCommitment, func(ctx context.Context) (any, error) {
			if err := svc.Commit(ctx, result); err != nil {
				return map[string]any{"runId": result.RunID.String()}, err
			}
			return map[string]any{
				"runId":                  result.RunID.String(),
				"payrollConfigurationId": result.PayrollConfigurationID,
				"journalLines":           len(result.JournalEntries()),
			}, nil
		})
		if err != nil {
			return err
		}
	}

	slog.Info("payroll metrics", "metrics", collector.Snapshot())
	if cfg.MetricsTextfile != "" {
		if err := collector.WriteTextfile(cfg.MetricsTextfile); err != nil {
			slog.Warn("metrics textfile write failed", "path", cfg.MetricsTextfile, "err", err)
		}
	}

	if opts.Output == nil {
		return nil
	}
	enc := json.NewEncoder(opts.Output)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func openLedger(ctx context.Context, cfg config.Config, enterpriseCurrencyID int) (ledger, error) {
	switch {
	case cfg.DatabaseURL != "":
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return ledger{}, fmt.Errorf("db connect failed: %w", err)
		}
		if cfg.RunMigrations {
			if err := db.Migrate(ctx, pool); err != nil {
				pool.Close()
				return ledger{}, fmt.Errorf("migrations failed: %w", err)
			}
		}
		return ledger{
			store: payroll.NewStore(pool, enterpriseCurrencyID),
			seed: func(ctx context.Context, rates []payroll.ExchangeRate) error {
				return db.SeedExchangeRates(ctx, pool, rates)
			},
			close: pool.Close,
		}, nil
	case cfg.SQLitePath != "":
		store, err := sqlite.New(cfg.SQLitePath, enterpriseCurrencyID)
		if err != nil {
			return ledger{}, fmt.Errorf("sqlite open failed: %w", err)
		}
		return ledger{
			store: store,
			seed:  store.SaveExchangeRates,
			close: func() {
				if err := store.Close(); err != nil {
					slog.Warn("sqlite close failed", "err", err)
				}
			},
		}, nil
	}
	return ledger{close: func() {}}, nil
}

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"bhima/internal/app/payrollrun"
	"bhima/internal/platform/config"
	"bhima/internal/platform/logging"
)

func main() {
	input := flag.String("input", "", "path to the YAML run file")
	commit := flag.Bool("commit", false, "write the run to the ledger")
	mode := flag.String("mode", "", "posting mode: aggregate or individual")
	index := flag.Bool("index", false, "allocate the pay envelope by index")
	flag.Parse()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)

	if *input == "" {
		log.Fatal("-input is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := payrollrun.Run(ctx, cfg, payrollrun.Options{
		InputPath:   *input,
		Commit:      *commit,
		PostingMode: *mode,
		IndexSystem: *index,
		Output:      os.Stdout,
	})
	if err != nil {
		log.Fatalf("payroll run failed: %v", err)
	}
}

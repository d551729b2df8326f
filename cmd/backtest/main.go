package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"tickledger/internal/backtest"
	"tickledger/internal/config"
	"tickledger/internal/instrument"
	"tickledger/internal/monitor"
	"tickledger/internal/report"
	"tickledger/internal/store"
	"tickledger/internal/util"
)

func main() {
	cfgPath := "config/backtest.yaml"
	if p := os.Getenv("TICKLEDGER_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	registry := instrument.Default()
	if cfg.Backtest.InstrumentFile != "" {
		if err := registry.LoadFile(cfg.Backtest.InstrumentFile); err != nil {
			log.Fatalf("failed to load instruments: %v", err)
		}
	}

	reg := prometheus.NewRegistry()
	collector, err := monitor.New(reg)
	if err != nil {
		log.Fatalf("failed to register metrics: %v", err)
	}

	pstore := store.NewParquetStore(cfg.Storage.DataDir)
	runner := backtest.NewRunner(cfg, registry, pstore, logger).WithMetrics(collector)

	if cfg.Storage.SQLitePath != "" {
		sqlite, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("failed to open sqlite: %v", err)
		}
		defer sqlite.Close()
		runner.WithFillStores(sqlite).WithRunStore(sqlite)
	}
	if cfg.Backtest.ExportParquet {
		runner.WithFillStores(pstore)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	instruments := cfg.Backtest.Instruments
	results := make([]*backtest.Result, len(instruments))

	var g errgroup.Group
	g.SetLimit(cfg.Backtest.Workers)
	for i, code := range instruments {
		i, code := i, code
		g.Go(func() error {
			res, err := runner.Run(ctx, code)
			if err != nil {
				logger.Error("backtest failed", "instrument", code, "error", err)
				return fmt.Errorf("%s: %w", code, err)
			}
			results[i] = res
			return nil
		})
	}
	runErr := g.Wait()

	printSummaries(results)

	if cfg.Backtest.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(cfg.Backtest.MetricsFile, reg); err != nil {
			logger.Error("writing metrics file", "path", cfg.Backtest.MetricsFile, "error", err)
		}
	}
	if runErr != nil {
		slog.Error("backtest finished with errors", "error", runErr)
		os.Exit(1)
	}
}

func printSummaries(results []*backtest.Result) {
	var rows []report.Row
	for _, res := range results {
		if res == nil {
			continue
		}
		rows = append(rows, report.Row{
			Instrument: res.Instrument,
			RunID:      res.RunID,
			Days:       len(res.Days),
			Terminated: res.Terminated,
			Summary:    res.Summary,
		})
	}
	if err := report.WriteResults(os.Stdout, rows); err != nil {
		slog.Error("writing results", "error", err)
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"tickledger/internal/config"
	"tickledger/internal/domain"
	"tickledger/internal/metrics"
	"tickledger/internal/report"
	"tickledger/internal/settlement"
	"tickledger/internal/store"
)

const version = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ledger-report <command> [args]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version              Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  runs [instrument]    List recorded runs, newest first\n")
		fmt.Fprintf(os.Stderr, "  summary <run-id>     Recompute the account summary from stored fills\n")
		fmt.Fprintf(os.Stderr, "  fills <run-id>       Print the settlement table\n")
		fmt.Fprintf(os.Stderr, "\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}
	if os.Args[1] == "version" {
		fmt.Printf("ledger-report %s\n", version)
		return
	}

	cfgPath := "config/backtest.yaml"
	if p := os.Getenv("TICKLEDGER_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open sqlite: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	switch os.Args[1] {
	case "runs":
		instrument := ""
		if len(os.Args) > 2 {
			instrument = os.Args[2]
		}
		runs, err := db.ListRuns(ctx, instrument)
		if err != nil {
			log.Fatalf("listing runs: %v", err)
		}
		exitOn(report.WriteRuns(os.Stdout, runs))

	case "summary":
		run, fills := loadRun(ctx, db)
		if err := settlement.Verify(fills); err != nil {
			log.Printf("warning: stored fills inconsistent: %v", err)
		}
		exitOn(report.WriteSummary(os.Stdout, run, metrics.Summarize(fills, run.Capital, run.Ticks)))

	case "fills":
		_, fills := loadRun(ctx, db)
		exitOn(report.WriteFills(os.Stdout, fills))

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		flag.Usage()
		os.Exit(1)
	}
}

func exitOn(err error) {
	if err != nil {
		log.Fatalf("writing report: %v", err)
	}
}

func loadRun(ctx context.Context, db *store.SQLiteStore) (*store.Run, []domain.Fill) {
	if len(os.Args) < 3 {
		flag.Usage()
		os.Exit(1)
	}
	run, err := db.GetRun(ctx, os.Args[2])
	if err != nil {
		log.Fatalf("loading run: %v", err)
	}
	fills, err := db.ListFills(ctx, run.ID)
	if err != nil {
		log.Fatalf("loading fills: %v", err)
	}
	return run, fills
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"tickledger/internal/config"
	"tickledger/internal/gather"
	"tickledger/internal/store"
	"tickledger/internal/util"
)

// Usage: tick-import <file.csv>...
//
// The instrument code is the file name without extension, e.g.
// jm2409.csv imports into <data_dir>/JM2409/ticks/.
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: tick-import <file.csv>...\n")
		os.Exit(1)
	}

	cfgPath := "config/backtest.yaml"
	if p := os.Getenv("TICKLEDGER_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)

	pstore := store.NewParquetStore(cfg.Storage.DataDir)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	for _, path := range os.Args[1:] {
		code := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		g := gather.NewCSVTickGatherer(path, code, pstore, logger)
		if err := g.Run(ctx); err != nil {
			log.Fatalf("%s: %v", g.Name(), err)
		}
	}
}

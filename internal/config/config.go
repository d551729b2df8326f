package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"tickledger/internal/domain"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for a backtest run.
type Config struct {
	Storage   Storage   `yaml:"storage"`
	Logging   Logging   `yaml:"logging"`
	Account   Account   `yaml:"account"`
	Risk      Risk      `yaml:"risk"`
	Execution Execution `yaml:"execution"`
	Backtest  Backtest  `yaml:"backtest"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Account holds the trading account and its broker terms.
type Account struct {
	ID             string  `yaml:"id"`
	Capital        float64 `yaml:"capital"`
	BrokerRate     float64 `yaml:"broker_rate"`
	ExchangeRebate float64 `yaml:"exchange_rebate"`
	BrokerRebate   float64 `yaml:"broker_rebate"`
}

// Risk defines the risk gate thresholds.
type Risk struct {
	FreezeRatio float64       `yaml:"freeze_ratio"`
	StopTicks   float64       `yaml:"stop_ticks"`
	HaltTimeout time.Duration `yaml:"halt_timeout"`
}

// Execution defines how signals become fills.
type Execution struct {
	SlippageTicks float64       `yaml:"slippage_ticks"`
	LotSize       int           `yaml:"lot_size"`
	SessionBreak  time.Duration `yaml:"session_break"`
}

// Backtest selects what to replay and where results go.
type Backtest struct {
	Instruments    []string `yaml:"instruments"`
	StartDate      string   `yaml:"start_date"`
	EndDate        string   `yaml:"end_date"`
	InstrumentFile string   `yaml:"instrument_file"`
	Workers        int      `yaml:"workers"`
	MetricsFile    string   `yaml:"metrics_file"`
	ExportParquet  bool     `yaml:"export_parquet"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, fills in defaults, applies environment variable overrides
// and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config with every default applied. Load starts from it
// so omitted keys keep their defaults.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/tickledger.db",
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
		Account: Account{
			ID:      "backtest",
			Capital: 1_000_000,
		},
		Risk: Risk{
			FreezeRatio: 0.4,
			StopTicks:   3,
			HaltTimeout: 15 * time.Minute,
		},
		Execution: Execution{
			LotSize:      1,
			SessionBreak: time.Minute,
		},
		Backtest: Backtest{
			Workers: 4,
		},
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("ACCOUNT_ID"); v != "" {
		cfg.Account.ID = v
	}

	if v := os.Getenv("BACKTEST_CAPITAL"); v != "" {
		capital, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return &domain.ConfigError{Field: "BACKTEST_CAPITAL", Reason: fmt.Sprintf("not a number: %q", v)}
		}
		cfg.Account.Capital = capital
	}
	return nil
}

// Validate checks the values the engine cannot run without.
func (c *Config) Validate() error {
	switch {
	case c.Account.Capital <= 0:
		return &domain.ConfigError{Field: "account.capital", Reason: "must be positive"}
	case c.Risk.FreezeRatio < 0 || c.Risk.FreezeRatio >= 1:
		return &domain.ConfigError{Field: "risk.freeze_ratio", Reason: "must be in [0, 1)"}
	case c.Risk.StopTicks < 0:
		return &domain.ConfigError{Field: "risk.stop_ticks", Reason: "must not be negative"}
	case c.Risk.HaltTimeout < 0:
		return &domain.ConfigError{Field: "risk.halt_timeout", Reason: "must not be negative"}
	case c.Execution.LotSize <= 0:
		return &domain.ConfigError{Field: "execution.lot_size", Reason: "must be positive"}
	case c.Execution.SlippageTicks < 0:
		return &domain.ConfigError{Field: "execution.slippage_ticks", Reason: "must not be negative"}
	case c.Backtest.Workers <= 0:
		return &domain.ConfigError{Field: "backtest.workers", Reason: "must be positive"}
	}
	if c.Backtest.StartDate != "" && c.Backtest.EndDate != "" && c.Backtest.EndDate < c.Backtest.StartDate {
		return &domain.ConfigError{Field: "backtest.end_date", Reason: "before start_date"}
	}
	return nil
}

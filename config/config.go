package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// TRADEBOT_MODE=paper or TRADEBOT_SYMBOLS=AAPL,MSFT.
const EnvPrefix = "TRADEBOT_"

// Config is the complete process configuration.
type Config struct {
	Mode     string         `json:"mode" yaml:"mode"`
	Symbols  []string       `json:"symbols" yaml:"symbols"`
	Interval string         `json:"interval" yaml:"interval"` // e.g. "1m", "5s"
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Risk     RiskConfig     `json:"risk" yaml:"risk"`
	Broker   BrokerConfig   `json:"broker" yaml:"broker"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Engine   EngineConfig   `json:"engine" yaml:"engine"`
	LogLevel string         `json:"log_level" yaml:"log_level"`
}

type StrategyConfig struct {
	Name   string             `json:"name" yaml:"name"`
	Params map[string]float64 `json:"params,omitempty" yaml:"params,omitempty"`
}

type RiskConfig struct {
	Name string `json:"name" yaml:"name"` // "basic" or "enhanced"

	MaxPositionSize  float64 `json:"max_position_size" yaml:"max_position_size"`
	MaxTotalExposure float64 `json:"max_total_exposure" yaml:"max_total_exposure"`
	MaxOpenPositions int     `json:"max_open_positions" yaml:"max_open_positions"`

	MaxDailyLoss       float64 `json:"max_daily_loss" yaml:"max_daily_loss"`
	MaxDrawdownPercent float64 `json:"max_drawdown_percent" yaml:"max_drawdown_percent"`

	EnforcePDTRules     bool    `json:"enforce_pdt_rules" yaml:"enforce_pdt_rules"`
	PDTMinEquity        float64 `json:"pdt_min_equity" yaml:"pdt_min_equity"`
	MaxDayTradesPer5Day int     `json:"max_day_trades_per_5_days" yaml:"max_day_trades_per_5_days"`

	MaxOrdersPerMinute          int `json:"max_orders_per_minute" yaml:"max_orders_per_minute"`
	MaxOrdersPerSymbolPerMinute int `json:"max_orders_per_symbol_per_minute" yaml:"max_orders_per_symbol_per_minute"`

	EnableCircuitBreaker      bool    `json:"enable_circuit_breaker" yaml:"enable_circuit_breaker"`
	CircuitBreakerLossPercent float64 `json:"circuit_breaker_loss_percent" yaml:"circuit_breaker_loss_percent"`
	CircuitBreakerResetHours  int     `json:"circuit_breaker_reset_hours" yaml:"circuit_breaker_reset_hours"`
}

type BrokerConfig struct {
	StartingCash         float64 `json:"starting_cash" yaml:"starting_cash"`
	CommissionPerShare   float64 `json:"commission_per_share" yaml:"commission_per_share"`
	CommissionPercent    float64 `json:"commission_percent" yaml:"commission_percent"`
	SlippagePercent      float64 `json:"slippage_percent" yaml:"slippage_percent"`
	SimulatePartialFills bool    `json:"simulate_partial_fills" yaml:"simulate_partial_fills"`
}

type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "sqlite", "csv" or "none"
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	OrdersFile string `json:"orders_file,omitempty" yaml:"orders_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
}

type EngineConfig struct {
	MaxConsecutiveErrors int `json:"max_consecutive_errors" yaml:"max_consecutive_errors"`
	MaxRetries           int `json:"max_retries" yaml:"max_retries"`
	Iterations           int `json:"iterations" yaml:"iterations"`
	HistoryLimit         int `json:"history_limit" yaml:"history_limit"`
	BacktestBars         int `json:"backtest_bars" yaml:"backtest_bars"`
}

// Default returns a runnable paper setup.
func Default() *Config {
	return &Config{
		Mode:     "backtest",
		Symbols:  []string{"AAPL"},
		Interval: "1m",
		Strategy: StrategyConfig{Name: "sma_cross"},
		Risk: RiskConfig{
			Name:                        "enhanced",
			MaxPositionSize:             1_000,
			MaxTotalExposure:            50_000,
			MaxOpenPositions:            5,
			MaxDailyLoss:                5_000,
			MaxDrawdownPercent:          20,
			EnforcePDTRules:             true,
			PDTMinEquity:                25_000,
			MaxDayTradesPer5Day:         3,
			MaxOrdersPerMinute:          10,
			MaxOrdersPerSymbolPerMinute: 3,
			EnableCircuitBreaker:        true,
			CircuitBreakerLossPercent:   10,
			CircuitBreakerResetHours:    24,
		},
		Broker:  BrokerConfig{StartingCash: 100_000},
		Journal: JournalConfig{Type: "none"},
		Engine: EngineConfig{
			MaxConsecutiveErrors: 5,
			MaxRetries:           3,
			HistoryLimit:         500,
			BacktestBars:         200,
		},
		LogLevel: "info",
	}
}

// Load reads a config file (YAML or JSON), layers .env and environment
// overrides on top, and validates the result. An empty path loads
// defaults plus overrides.
func Load(path string) (*Config, error) {
	// Missing .env is fine; it only exists in deployed setups.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// Try YAML first, fall back to JSON.
		if yerr := yaml.Unmarshal(data, cfg); yerr != nil {
			if jerr := json.Unmarshal(data, cfg); jerr != nil {
				return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", yerr)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "MODE"); v != "" {
		cfg.Mode = v
	}
	if v := os.Getenv(EnvPrefix + "SYMBOLS"); v != "" {
		cfg.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv(EnvPrefix + "INTERVAL"); v != "" {
		cfg.Interval = v
	}
	if v := os.Getenv(EnvPrefix + "STRATEGY"); v != "" {
		cfg.Strategy.Name = v
	}
	if v := os.Getenv(EnvPrefix + "RISK_MANAGER"); v != "" {
		cfg.Risk.Name = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvPrefix + "STARTING_CASH"); v != "" {
		if cash, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Broker.StartingCash = cash
		}
	}
	if v := os.Getenv(EnvPrefix + "JOURNAL_DB"); v != "" {
		cfg.Journal.Type = "sqlite"
		cfg.Journal.DBPath = v
	}
}

// Validate checks the configuration before anything is constructed from
// it. Failures here are startup-fatal.
func (c *Config) Validate() error {
	if c.Mode != "backtest" && c.Mode != "paper" {
		return fmt.Errorf("mode must be 'backtest' or 'paper', got %q", c.Mode)
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	if c.Strategy.Name == "" {
		return fmt.Errorf("strategy.name is required")
	}
	if _, err := c.ParseInterval(); err != nil {
		return fmt.Errorf("interval: %w", err)
	}
	if c.Broker.StartingCash <= 0 {
		return fmt.Errorf("broker.starting_cash must be positive")
	}
	if c.Broker.SlippagePercent < 0 || c.Broker.CommissionPercent < 0 || c.Broker.CommissionPerShare < 0 {
		return fmt.Errorf("broker costs must not be negative")
	}

	switch c.Journal.Type {
	case "none", "":
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal.db_path required for sqlite journal")
		}
	case "csv":
		if c.Journal.OrdersFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal orders_file and equity_file required for csv journal")
		}
	default:
		return fmt.Errorf("journal.type must be 'sqlite', 'csv' or 'none'")
	}

	if c.Engine.MaxConsecutiveErrors < 0 || c.Engine.MaxRetries < 1 {
		return fmt.Errorf("engine.max_retries must be at least 1")
	}
	return nil
}

// ParseInterval converts the interval string, accepting both Go durations
// ("1m30s") and the bare "<n>m"/"<n>s" forms used in config files.
func (c *Config) ParseInterval() (time.Duration, error) {
	if c.Interval == "" {
		return time.Minute, nil
	}
	return time.ParseDuration(c.Interval)
}

// Save writes the configuration, choosing YAML or JSON by extension.
func (c *Config) Save(path string) error {
	var data []byte
	var err error
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

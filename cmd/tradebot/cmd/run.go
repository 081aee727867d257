package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tradebot/config"
	"tradebot/engine"
	"tradebot/feed"
	"tradebot/journal"
	"tradebot/risk"
	"tradebot/sim"
	"tradebot/strategies"
	"tradebot/telemetry"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trading engine from a config file",
	Long: `Run the engine using settings from a configuration file.

The config file selects the mode (backtest or paper), symbols, strategy,
risk limits, broker simulation knobs, and journal.

Example:
  tradebot run --config paper.yaml`,
	RunE: runRun,
}

var (
	runConfigPath string
	runSeed       int64
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON)")
	runCmd.Flags().Int64Var(&runSeed, "seed", 42, "seed for the synthetic data feed")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return err
	}

	log := newLogger(cfg.LogLevel)

	interval, err := cfg.ParseInterval()
	if err != nil {
		return err
	}

	strat, err := strategies.New(cfg.Strategy.Name)
	if err != nil {
		return err
	}

	riskMgr, err := risk.New(cfg.Risk.Name, riskConfig(cfg), log)
	if err != nil {
		return err
	}

	j, err := newJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer j.Close()

	paper := sim.NewPaperBroker(sim.Config{
		StartingCash:         cfg.Broker.StartingCash,
		CommissionPerShare:   cfg.Broker.CommissionPerShare,
		CommissionPercent:    cfg.Broker.CommissionPercent,
		SlippagePercent:      cfg.Broker.SlippagePercent,
		SimulatePartialFills: cfg.Broker.SimulatePartialFills,
	}, j, log)

	metrics := telemetry.New(prometheus.DefaultRegisterer)

	eng := engine.New(engine.Config{
		Mode:                 cfg.Mode,
		Symbols:              cfg.Symbols,
		Interval:             interval,
		HistoryLimit:         cfg.Engine.HistoryLimit,
		Iterations:           cfg.Engine.Iterations,
		BacktestBars:         cfg.Engine.BacktestBars,
		StrategyParams:       cfg.Strategy.Params,
		MaxConsecutiveErrors: cfg.Engine.MaxConsecutiveErrors,
		MaxRetries:           cfg.Engine.MaxRetries,
		RetryBaseDelay:       time.Second,
		RetryMaxDelay:        60 * time.Second,
	}, feed.NewMock(runSeed, 100), paper, strat, riskMgr, metrics, log)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown requested, finishing current iteration")
		eng.Stop()
	}()

	if err := eng.Run(ctx); err != nil {
		return err
	}

	// Run disconnects the broker on exit; reconnect briefly to read the
	// final account state for the summary.
	if err := paper.Connect(ctx); err == nil {
		printSummary(ctx, eng, cfg.Broker.StartingCash)
		paper.Close(ctx)
	}
	return nil
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
	return log
}

func newJournal(jc config.JournalConfig) (journal.Journal, error) {
	switch jc.Type {
	case "sqlite":
		return journal.NewSQLite(jc.DBPath)
	case "csv":
		return journal.NewCSV(jc.OrdersFile, jc.EquityFile)
	default:
		return journal.Nop{}, nil
	}
}

func riskConfig(cfg *config.Config) risk.Config {
	return risk.Config{
		StartingCash:                cfg.Broker.StartingCash,
		MaxPositionSize:             cfg.Risk.MaxPositionSize,
		MaxTotalExposure:            cfg.Risk.MaxTotalExposure,
		MaxOpenPositions:            cfg.Risk.MaxOpenPositions,
		MaxDailyLoss:                cfg.Risk.MaxDailyLoss,
		MaxDrawdownPercent:          cfg.Risk.MaxDrawdownPercent,
		EnforcePDTRules:             cfg.Risk.EnforcePDTRules,
		PDTMinEquity:                cfg.Risk.PDTMinEquity,
		MaxDayTradesPer5Day:         cfg.Risk.MaxDayTradesPer5Day,
		MaxOrdersPerMinute:          cfg.Risk.MaxOrdersPerMinute,
		MaxOrdersPerSymbolPerMinute: cfg.Risk.MaxOrdersPerSymbolPerMinute,
		EnableCircuitBreaker:        cfg.Risk.EnableCircuitBreaker,
		CircuitBreakerLossPercent:   cfg.Risk.CircuitBreakerLossPercent,
		CircuitBreakerResetAfter:    time.Duration(cfg.Risk.CircuitBreakerResetHours) * time.Hour,
	}
}

func printSummary(ctx context.Context, eng *engine.Engine, startingCash float64) {
	perf, err := eng.PerformanceSince(ctx, startingCash)
	if err != nil {
		return
	}

	fmt.Printf("\nFinal Results:\n")
	fmt.Printf("  Cash:     $%.2f\n", perf.Cash)
	fmt.Printf("  Equity:   $%.2f\n", perf.Equity)
	fmt.Printf("  Exposure: $%.2f\n", perf.Exposure)
	fmt.Printf("  Return:   %.2f%%\n", perf.ReturnPct)
}

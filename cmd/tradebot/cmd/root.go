package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tradebot",
	Short: "A risk-gated order-execution engine for algorithmic trading",
	Long: `Tradebot turns strategy signals into accounted, risk-checked,
simulated fills while tracking position, cash, and P&L state under
partial fills, reversals, and broker failures.

It provides tools for:
  - Running the paper-trading engine against streamed or replayed data
  - Exposure-aware risk gating with quantity capping
  - SQLite/CSV journaling of executed orders and equity
  - Retry, backoff, and circuit-breaking around order submission`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

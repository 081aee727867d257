package risk

import "time"

// Config holds every limit the gate can enforce. A zero or negative value
// disables the corresponding check, matching the reduced "basic" variant.
type Config struct {
	StartingCash float64

	// Position limits
	MaxPositionSize  float64
	MaxTotalExposure float64
	MaxOpenPositions int

	// Loss limits
	MaxDailyLoss       float64
	MaxDrawdownPercent float64

	// Pattern-day-trade compliance
	EnforcePDTRules     bool
	PDTMinEquity        float64
	MaxDayTradesPer5Day int

	// Rate limiting
	MaxOrdersPerMinute          int
	MaxOrdersPerSymbolPerMinute int

	// Circuit breaker
	EnableCircuitBreaker      bool
	CircuitBreakerLossPercent float64
	CircuitBreakerResetAfter  time.Duration
}

// DefaultConfig mirrors a conservative small-account setup.
func DefaultConfig() Config {
	return Config{
		StartingCash:     100_000,
		MaxPositionSize:  1_000,
		MaxTotalExposure: 50_000,
		MaxOpenPositions: 5,

		MaxDailyLoss:       5_000,
		MaxDrawdownPercent: 20,

		EnforcePDTRules:     true,
		PDTMinEquity:        25_000,
		MaxDayTradesPer5Day: 3,

		MaxOrdersPerMinute:          10,
		MaxOrdersPerSymbolPerMinute: 3,

		EnableCircuitBreaker:      true,
		CircuitBreakerLossPercent: 10,
		CircuitBreakerResetAfter:  24 * time.Hour,
	}
}

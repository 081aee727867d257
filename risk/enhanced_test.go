package risk

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradebot/broker"
	"tradebot/market"
	"tradebot/strategies"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func candleState(prices map[string]float64) market.State {
	candles := make(map[string][]market.Candle, len(prices))
	for symbol, price := range prices {
		candles[symbol] = []market.Candle{{Symbol: symbol, Close: price}}
	}
	return market.State{Candles: candles}
}

func openLong(symbol string, qty float64) strategies.Signal {
	return strategies.Signal{Symbol: symbol, Action: strategies.OpenLong, Quantity: qty}
}

func TestEnhancedPositionSizeCap(t *testing.T) {
	t.Parallel()

	m := NewEnhancedManager(Config{MaxPositionSize: 500}, testLogger())
	pf := broker.Portfolio{
		Cash:      100_000,
		Positions: map[string]broker.Position{"AAPL": {Symbol: "AAPL", Quantity: 400, AvgPrice: 100}},
	}
	ms := candleState(map[string]float64{"AAPL": 100})

	d := m.ValidateSignal(openLong("AAPL", 300), pf, ms)
	assert.Equal(t, Adjusted, d.Verdict)
	assert.Equal(t, 100.0, d.Signal.Quantity)

	// Already at the cap: nothing remains to approve.
	pf.Positions["AAPL"] = broker.Position{Symbol: "AAPL", Quantity: 500, AvgPrice: 100}
	d = m.ValidateSignal(openLong("AAPL", 10), pf, ms)
	assert.Equal(t, Rejected, d.Verdict)
	assert.Equal(t, ReasonPositionSize, d.Reason)
}

func TestEnhancedExposureCap(t *testing.T) {
	t.Parallel()

	m := NewEnhancedManager(Config{MaxTotalExposure: 25_000}, testLogger())
	pf := broker.Portfolio{
		Cash:      100_000,
		Positions: map[string]broker.Position{"MSFT": {Symbol: "MSFT", Quantity: 25, AvgPrice: 100}},
	}
	ms := candleState(map[string]float64{"MSFT": 100, "AAPL": 150.5})

	// 22,500 of headroom at 150.5 a share caps to 149 whole shares.
	d := m.ValidateSignal(openLong("AAPL", 200), pf, ms)
	require.Equal(t, Adjusted, d.Verdict)
	assert.Equal(t, 149.0, d.Signal.Quantity)

	// No headroom at all rejects instead of approving zero.
	pf.Positions["MSFT"] = broker.Position{Symbol: "MSFT", Quantity: 250, AvgPrice: 100}
	d = m.ValidateSignal(openLong("AAPL", 200), pf, ms)
	assert.Equal(t, Rejected, d.Verdict)
	assert.Equal(t, ReasonExposureLimit, d.Reason)
}

func TestEnhancedCapsCompound(t *testing.T) {
	t.Parallel()

	// Size cap brings 1000 down to 500, exposure cap brings 500 down
	// further.
	m := NewEnhancedManager(Config{MaxPositionSize: 500, MaxTotalExposure: 10_000}, testLogger())
	pf := broker.Portfolio{Cash: 100_000, Positions: map[string]broker.Position{}}
	ms := candleState(map[string]float64{"AAPL": 100})

	d := m.ValidateSignal(openLong("AAPL", 1000), pf, ms)
	require.Equal(t, Adjusted, d.Verdict)
	assert.Equal(t, 100.0, d.Signal.Quantity)
}

func TestEnhancedMaxOpenPositions(t *testing.T) {
	t.Parallel()

	m := NewEnhancedManager(Config{MaxOpenPositions: 2}, testLogger())
	pf := broker.Portfolio{
		Cash: 100_000,
		Positions: map[string]broker.Position{
			"AAPL": {Symbol: "AAPL", Quantity: 10, AvgPrice: 100},
			"MSFT": {Symbol: "MSFT", Quantity: 10, AvgPrice: 100},
		},
	}
	ms := candleState(map[string]float64{"AAPL": 100, "MSFT": 100, "TSLA": 100})

	// A brand-new symbol at the cap is rejected.
	d := m.ValidateSignal(openLong("TSLA", 10), pf, ms)
	assert.Equal(t, Rejected, d.Verdict)
	assert.Equal(t, ReasonMaxOpenPositions, d.Reason)

	// Adding to an existing symbol is not a new position.
	d = m.ValidateSignal(openLong("AAPL", 10), pf, ms)
	assert.Equal(t, Approved, d.Verdict)
}

func TestEnhancedCloseAlwaysPasses(t *testing.T) {
	t.Parallel()

	cfg := Config{
		StartingCash:              100_000,
		EnableCircuitBreaker:      true,
		CircuitBreakerLossPercent: 10,
		CircuitBreakerResetAfter:  24 * time.Hour,
	}
	m := NewEnhancedManager(cfg, testLogger())

	// Trip the breaker with a 20% drawdown.
	pf := broker.Portfolio{Cash: 80_000, Positions: map[string]broker.Position{}}
	ms := candleState(map[string]float64{"AAPL": 100})
	d := m.ValidateSignal(openLong("AAPL", 10), pf, ms)
	require.Equal(t, Rejected, d.Verdict)
	require.True(t, m.CircuitBreakerTripped())

	// Closing risk still goes through.
	d = m.ValidateSignal(strategies.Signal{
		Symbol: "AAPL", Action: strategies.CloseLong, Quantity: 10,
	}, pf, ms)
	assert.Equal(t, Approved, d.Verdict)
}

func TestEnhancedCircuitBreakerResets(t *testing.T) {
	t.Parallel()

	cfg := Config{
		StartingCash:              100_000,
		EnableCircuitBreaker:      true,
		CircuitBreakerLossPercent: 10,
		CircuitBreakerResetAfter:  time.Hour,
	}
	m := NewEnhancedManager(cfg, testLogger())

	current := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }

	lossy := broker.Portfolio{Cash: 85_000, Positions: map[string]broker.Position{}}
	recovered := broker.Portfolio{Cash: 99_000, Positions: map[string]broker.Position{}}
	ms := candleState(map[string]float64{"AAPL": 100})

	d := m.ValidateSignal(openLong("AAPL", 10), lossy, ms)
	require.Equal(t, Rejected, d.Verdict)
	require.Equal(t, ReasonCircuitBreaker, d.Reason)

	// Still inside the cooldown even after the account recovers.
	current = current.Add(30 * time.Minute)
	d = m.ValidateSignal(openLong("AAPL", 10), recovered, ms)
	require.Equal(t, Rejected, d.Verdict)

	// Past the reset window trading resumes.
	current = current.Add(31 * time.Minute)
	d = m.ValidateSignal(openLong("AAPL", 10), recovered, ms)
	assert.Equal(t, Approved, d.Verdict)
	assert.False(t, m.CircuitBreakerTripped())
}

func TestEnhancedManualBreakerReset(t *testing.T) {
	t.Parallel()

	cfg := Config{
		StartingCash:              100_000,
		EnableCircuitBreaker:      true,
		CircuitBreakerLossPercent: 10,
		CircuitBreakerResetAfter:  24 * time.Hour,
	}
	m := NewEnhancedManager(cfg, testLogger())

	pf := broker.Portfolio{Cash: 85_000, Positions: map[string]broker.Position{}}
	ms := candleState(map[string]float64{"AAPL": 100})
	require.Equal(t, Rejected, m.ValidateSignal(openLong("AAPL", 10), pf, ms).Verdict)
	require.True(t, m.CircuitBreakerTripped())

	m.ResetCircuitBreaker()
	assert.False(t, m.CircuitBreakerTripped())

	healthy := broker.Portfolio{Cash: 100_000, Positions: map[string]broker.Position{}}
	assert.Equal(t, Approved, m.ValidateSignal(openLong("AAPL", 10), healthy, ms).Verdict)
}

func TestEnhancedDailyLossLimit(t *testing.T) {
	t.Parallel()

	m := NewEnhancedManager(Config{StartingCash: 100_000, MaxDailyLoss: 5_000}, testLogger())
	ms := candleState(map[string]float64{"AAPL": 100})

	ok := broker.Portfolio{Cash: 96_000, Positions: map[string]broker.Position{}}
	assert.Equal(t, Approved, m.ValidateSignal(openLong("AAPL", 10), ok, ms).Verdict)

	breached := broker.Portfolio{Cash: 94_000, Positions: map[string]broker.Position{}}
	d := m.ValidateSignal(openLong("AAPL", 10), breached, ms)
	assert.Equal(t, Rejected, d.Verdict)
	assert.Equal(t, ReasonDailyLossLimit, d.Reason)
}

func TestEnhancedLossCountsUnrealized(t *testing.T) {
	t.Parallel()

	m := NewEnhancedManager(Config{StartingCash: 100_000, MaxDailyLoss: 5_000}, testLogger())

	// Cash is intact, but the open position is 6k underwater.
	pf := broker.Portfolio{
		Cash:      90_000,
		Positions: map[string]broker.Position{"AAPL": {Symbol: "AAPL", Quantity: 100, AvgPrice: 100}},
	}
	ms := candleState(map[string]float64{"AAPL": 40})

	d := m.ValidateSignal(openLong("MSFT", 10), pf, ms)
	assert.Equal(t, Rejected, d.Verdict)
	assert.Equal(t, ReasonDailyLossLimit, d.Reason)
}

func TestEnhancedRateLimits(t *testing.T) {
	t.Parallel()

	m := NewEnhancedManager(Config{
		MaxOrdersPerMinute:          3,
		MaxOrdersPerSymbolPerMinute: 2,
	}, testLogger())

	current := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }

	pf := broker.Portfolio{Cash: 100_000, Positions: map[string]broker.Position{}}
	ms := candleState(map[string]float64{"AAPL": 100, "MSFT": 100})

	require.Equal(t, Approved, m.ValidateSignal(openLong("AAPL", 1), pf, ms).Verdict)
	require.Equal(t, Approved, m.ValidateSignal(openLong("AAPL", 1), pf, ms).Verdict)

	// Third order on the same symbol inside the minute.
	d := m.ValidateSignal(openLong("AAPL", 1), pf, ms)
	assert.Equal(t, Rejected, d.Verdict)
	assert.Equal(t, ReasonRateLimit, d.Reason)

	// Another symbol is fine until the global cap bites.
	require.Equal(t, Approved, m.ValidateSignal(openLong("MSFT", 1), pf, ms).Verdict)
	d = m.ValidateSignal(openLong("MSFT", 1), pf, ms)
	assert.Equal(t, Rejected, d.Verdict)

	// The window slides.
	current = current.Add(61 * time.Second)
	assert.Equal(t, Approved, m.ValidateSignal(openLong("AAPL", 1), pf, ms).Verdict)
}

func TestEnhancedPDT(t *testing.T) {
	t.Parallel()

	m := NewEnhancedManager(Config{
		EnforcePDTRules:     true,
		PDTMinEquity:        25_000,
		MaxDayTradesPer5Day: 3,
	}, testLogger())

	current := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }

	small := broker.Portfolio{Cash: 10_000, Positions: map[string]broker.Position{}}
	ms := candleState(map[string]float64{"AAPL": 100})

	// Three same-day round trips.
	for i := 0; i < 3; i++ {
		require.Equal(t, Approved, m.ValidateSignal(openLong("AAPL", 1), small, ms).Verdict)
		require.Equal(t, Approved, m.ValidateSignal(strategies.Signal{
			Symbol: "AAPL", Action: strategies.CloseLong, Quantity: 1,
		}, small, ms).Verdict)
		current = current.Add(2 * time.Minute)
	}

	// Fourth opening is blocked below the equity floor.
	d := m.ValidateSignal(openLong("AAPL", 1), small, ms)
	assert.Equal(t, Rejected, d.Verdict)
	assert.Equal(t, ReasonPDTLimit, d.Reason)

	// A funded account is exempt.
	funded := broker.Portfolio{Cash: 30_000, Positions: map[string]broker.Position{}}
	assert.Equal(t, Approved, m.ValidateSignal(openLong("AAPL", 1), funded, ms).Verdict)
}

func TestEnhancedInputSignalNotMutated(t *testing.T) {
	t.Parallel()

	m := NewEnhancedManager(Config{MaxPositionSize: 50}, testLogger())
	pf := broker.Portfolio{Cash: 100_000, Positions: map[string]broker.Position{}}
	ms := candleState(map[string]float64{"AAPL": 100})

	sig := openLong("AAPL", 200)
	d := m.ValidateSignal(sig, pf, ms)

	require.Equal(t, Adjusted, d.Verdict)
	assert.Equal(t, 200.0, sig.Quantity, "input signal must stay untouched")
	assert.Equal(t, 50.0, d.Signal.Quantity)
	assert.Equal(t, 50.0, d.Signal.Meta["capped_quantity"])
	assert.Equal(t, 1.0, d.Signal.Meta["adjusted"])
}

func TestNewManagerByName(t *testing.T) {
	t.Parallel()

	m, err := New("basic", DefaultConfig(), testLogger())
	require.NoError(t, err)
	assert.IsType(t, &BasicManager{}, m)

	m, err = New("enhanced", DefaultConfig(), testLogger())
	require.NoError(t, err)
	assert.IsType(t, &EnhancedManager{}, m)

	m, err = New("", DefaultConfig(), testLogger())
	require.NoError(t, err)
	assert.IsType(t, &EnhancedManager{}, m)

	_, err = New("aggressive", DefaultConfig(), testLogger())
	assert.Error(t, err)
}

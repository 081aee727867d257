package sim

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradebot/broker"
	"tradebot/pkg/id"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestBroker(t *testing.T, cfg Config) *PaperBroker {
	t.Helper()
	if cfg.StartingCash == 0 {
		cfg.StartingCash = 100_000
	}
	b := NewPaperBroker(cfg, nil, testLogger())
	require.NoError(t, b.Connect(context.Background()))
	return b
}

func marketOrder(symbol string, side broker.Side, qty float64) *broker.Order {
	return &broker.Order{
		ID:       id.Order(),
		Symbol:   symbol,
		Side:     side,
		Quantity: qty,
		Type:     broker.Market,
		Status:   broker.Pending,
	}
}

func TestSubmitOrderBuyThenQuery(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b := newTestBroker(t, Config{})
	b.UpdateMarketPrices(map[string]float64{"AAPL": 150})

	o := marketOrder("AAPL", broker.Buy, 100)
	filled, err := b.SubmitOrder(ctx, o)
	require.NoError(t, err)
	assert.Equal(t, broker.Filled, filled.Status)
	assert.NotEmpty(t, filled.BrokerOrderID)

	avg, ok := filled.AverageFillPrice()
	require.True(t, ok)
	assert.InDelta(t, 150.0, avg, 1e-9)

	cash, err := b.GetBalance(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 100_000-100*150.0, cash, 1e-9)

	positions, err := b.GetOpenPositions(ctx)
	require.NoError(t, err)
	require.Contains(t, positions, "AAPL")
	assert.InDelta(t, 100.0, positions["AAPL"].Quantity, 1e-9)
	assert.InDelta(t, 150.0, positions["AAPL"].AvgPrice, 1e-9)

	got, err := b.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, broker.Filled, got.Status)
	assert.InDelta(t, 100.0, got.FilledQuantity, 1e-9)
}

func TestSubmitOrderRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b := newTestBroker(t, Config{})
	b.UpdateMarketPrices(map[string]float64{"AAPL": 150})

	_, err := b.SubmitOrder(ctx, marketOrder("AAPL", broker.Buy, 100))
	require.NoError(t, err)

	b.UpdateMarketPrices(map[string]float64{"AAPL": 155})
	_, err = b.SubmitOrder(ctx, marketOrder("AAPL", broker.Sell, 100))
	require.NoError(t, err)

	// Flat position is removed; cash realizes the gain.
	positions, err := b.GetOpenPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)

	cash, err := b.GetBalance(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 100_500.0, cash, 1e-9)

	assert.Len(t, b.TradeHistory(), 2)
}

func TestSubmitOrderNoPriceRejects(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b := newTestBroker(t, Config{})

	o := marketOrder("UNKNOWN", broker.Buy, 10)
	_, err := b.SubmitOrder(ctx, o)
	require.Error(t, err)
	assert.True(t, broker.IsPriceUnavailable(err))
	assert.Equal(t, broker.Rejected, o.Status)

	// Nothing moved.
	cash, err := b.GetBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100_000.0, cash)

	positions, err := b.GetOpenPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestSubmitOrderLimitPriceWithoutMarketData(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b := newTestBroker(t, Config{})

	limit := 42.0
	o := marketOrder("NEWLY", broker.Buy, 10)
	o.Type = broker.Limit
	o.LimitPrice = &limit

	filled, err := b.SubmitOrder(ctx, o)
	require.NoError(t, err)
	avg, ok := filled.AverageFillPrice()
	require.True(t, ok)
	assert.InDelta(t, 42.0, avg, 1e-9)
}

func TestSubmitOrderInsufficientFunds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b := newTestBroker(t, Config{StartingCash: 1_000})
	b.UpdateMarketPrices(map[string]float64{"AAPL": 150})

	o := marketOrder("AAPL", broker.Buy, 100)
	_, err := b.SubmitOrder(ctx, o)
	require.Error(t, err)
	assert.True(t, broker.IsInsufficientFunds(err))
	assert.Equal(t, broker.Rejected, o.Status)

	// Failed validation leaves the account untouched.
	cash, err := b.GetBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1_000.0, cash)
}

func TestSubmitOrderRequiresConnection(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b := NewPaperBroker(Config{StartingCash: 100_000}, nil, testLogger())

	_, err := b.SubmitOrder(ctx, marketOrder("AAPL", broker.Buy, 1))
	assert.True(t, broker.IsConnection(err))

	_, err = b.GetBalance(ctx)
	assert.True(t, broker.IsConnection(err))

	_, err = b.GetAccount(ctx)
	assert.True(t, broker.IsConnection(err))

	_, err = b.GetOpenPositions(ctx)
	assert.True(t, broker.IsConnection(err))

	err = b.CancelOrder(ctx, "ORD-1")
	assert.True(t, broker.IsConnection(err))
}

func TestCommissionAndSlippage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b := newTestBroker(t, Config{
		StartingCash:       100_000,
		CommissionPerShare: 0.01,
		SlippagePercent:    0.001,
	})
	b.UpdateMarketPrices(map[string]float64{"AAPL": 100})

	filled, err := b.SubmitOrder(ctx, marketOrder("AAPL", broker.Buy, 100))
	require.NoError(t, err)

	// Buy slips against the trader: 100 * 1.001.
	avg, _ := filled.AverageFillPrice()
	assert.InDelta(t, 100.1, avg, 1e-9)

	cash, err := b.GetBalance(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 100_000-100*100.1-100*0.01, cash, 1e-9)
}

func TestPartialFills(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b := newTestBroker(t, Config{StartingCash: 1_000_000, SimulatePartialFills: true})
	b.UpdateMarketPrices(map[string]float64{"AAPL": 150})

	filled, err := b.SubmitOrder(ctx, marketOrder("AAPL", broker.Buy, 300))
	require.NoError(t, err)

	assert.Equal(t, broker.Filled, filled.Status)
	assert.Greater(t, len(filled.Fills), 1)
	assert.InDelta(t, 300.0, filled.FilledQuantity, 1e-9)

	positions, err := b.GetOpenPositions(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 300.0, positions["AAPL"].Quantity, 1e-9)
}

// The split must sum exactly to the order quantity: a one-ulp shortfall
// would strand the order in PARTIALLY_FILLED forever.
func TestPartialFillsSumExactly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	quantities := []float64{101, 103, 103.7, 150.25, 999, 4801}
	for _, qty := range quantities {
		qty := qty
		t.Run(fmt.Sprintf("qty_%v", qty), func(t *testing.T) {
			t.Parallel()

			b := newTestBroker(t, Config{StartingCash: 10_000_000, SimulatePartialFills: true})
			b.UpdateMarketPrices(map[string]float64{"AAPL": 150})

			filled, err := b.SubmitOrder(ctx, marketOrder("AAPL", broker.Buy, qty))
			require.NoError(t, err)

			assert.Equal(t, broker.Filled, filled.Status)
			assert.Equal(t, qty, filled.FilledQuantity)
			assert.Equal(t, 0.0, filled.RemainingQuantity())

			// A completed order leaves the open book and enters history.
			assert.Empty(t, b.book.Open())
			assert.Len(t, b.TradeHistory(), 1)
		})
	}
}

func TestAccountEquityMarksToMarket(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b := newTestBroker(t, Config{})
	b.UpdateMarketPrices(map[string]float64{"AAPL": 100})

	_, err := b.SubmitOrder(ctx, marketOrder("AAPL", broker.Buy, 100))
	require.NoError(t, err)

	b.UpdateMarketPrices(map[string]float64{"AAPL": 110})

	acct, err := b.GetAccount(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 90_000.0, acct.Cash, 1e-9)
	assert.InDelta(t, 101_000.0, acct.Equity, 1e-9)
}

func TestLiquidateAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b := newTestBroker(t, Config{})
	b.UpdateMarketPrices(map[string]float64{"AAPL": 100, "TSLA": 200})

	_, err := b.SubmitOrder(ctx, marketOrder("AAPL", broker.Buy, 50))
	require.NoError(t, err)
	_, err = b.SubmitOrder(ctx, marketOrder("TSLA", broker.SellShort, 10))
	require.NoError(t, err)

	orders, err := b.LiquidateAll(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	positions, err := b.GetOpenPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)

	// Flat round trips at unchanged prices restore starting cash.
	cash, err := b.GetBalance(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 100_000.0, cash, 1e-9)
}

func TestGetOrderUnknownID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b := newTestBroker(t, Config{})
	_, err := b.GetOrder(ctx, "ORD-404")
	assert.Error(t, err)
}

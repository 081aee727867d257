package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatestPrice(t *testing.T) {
	t.Parallel()

	s := State{
		Candles: map[string][]Candle{
			"AAPL": {{Symbol: "AAPL", Close: 150}, {Symbol: "AAPL", Close: 152}},
			"MSFT": {{Symbol: "MSFT", Close: 300}},
		},
		Ticks: map[string]Tick{
			"AAPL": {Symbol: "AAPL", Price: 153.5},
		},
	}

	// Live tick wins over the last candle close.
	price, ok := s.LatestPrice("AAPL")
	assert.True(t, ok)
	assert.Equal(t, 153.5, price)

	price, ok = s.LatestPrice("MSFT")
	assert.True(t, ok)
	assert.Equal(t, 300.0, price)

	_, ok = s.LatestPrice("TSLA")
	assert.False(t, ok)

	prices := s.LatestPrices()
	assert.Equal(t, map[string]float64{"AAPL": 153.5, "MSFT": 300}, prices)
}

func TestLatestPriceEmptyState(t *testing.T) {
	t.Parallel()

	var s State
	_, ok := s.LatestPrice("AAPL")
	assert.False(t, ok)
	assert.Empty(t, s.LatestPrices())
}

func TestTickToCandle(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)
	c := TickToCandle(Tick{Symbol: "AAPL", Time: ts, Price: 151.25})

	assert.Equal(t, "AAPL", c.Symbol)
	assert.Equal(t, ts, c.Time)
	assert.Equal(t, 151.25, c.Open)
	assert.Equal(t, 151.25, c.High)
	assert.Equal(t, 151.25, c.Low)
	assert.Equal(t, 151.25, c.Close)
}

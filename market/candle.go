package market

import "time"

// Candle is OHLCV data for a fixed interval.
type Candle struct {
	Symbol string
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Tick is a real-time price update for a single symbol.
type Tick struct {
	Symbol string
	Time   time.Time
	Price  float64
	Volume float64
}

// TickToCandle collapses a single tick into a degenerate candle. Used by
// streaming mode where no aggregation happens before the strategy sees it.
func TickToCandle(t Tick) Candle {
	return Candle{
		Symbol: t.Symbol,
		Time:   t.Time,
		Open:   t.Price,
		High:   t.Price,
		Low:    t.Price,
		Close:  t.Price,
	}
}

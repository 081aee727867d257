package feed

import (
	"context"
	"time"

	"tradebot/market"
)

// Provider is the market-data boundary. The engine makes no assumption
// about polling vs. push delivery; Stream hides whichever the provider
// does.
type Provider interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error

	// Historical returns candles for [start, end] at the given interval.
	Historical(ctx context.Context, symbol string, start, end time.Time, interval time.Duration) ([]market.Candle, error)

	// Stream delivers batches of ticks, one entry per symbol, until the
	// context is cancelled or the provider closes. The channel is closed
	// by the provider.
	Stream(ctx context.Context, symbols []string) (<-chan map[string]market.Tick, error)
}

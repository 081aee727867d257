package broker

import "context"

// Broker is the execution contract shared by the paper simulator and any
// live adapter. All operations other than Connect fail with a
// ConnectionError while the broker is not connected; retry policy belongs
// to the caller.
type Broker interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error

	GetAccount(ctx context.Context) (Account, error)
	GetBalance(ctx context.Context) (float64, error)

	// GetOpenPositions returns a defensive copy; mutating the result has
	// no effect on broker state.
	GetOpenPositions(ctx context.Context) (map[string]Position, error)

	// SubmitOrder executes the order and returns it with fills and final
	// status recorded. A submission either fully applies or applies
	// nothing.
	SubmitOrder(ctx context.Context, o *Order) (*Order, error)

	CancelOrder(ctx context.Context, orderID string) error
	GetOrder(ctx context.Context, orderID string) (*Order, error)

	// UpdateMarketPrices merges a symbol -> price snapshot into the
	// broker's fill-price table.
	UpdateMarketPrices(prices map[string]float64)
}

// Liquidator is implemented by brokers that can flatten every open position
// in one call. The engine's "liquidate and halt" control uses it.
type Liquidator interface {
	LiquidateAll(ctx context.Context) ([]*Order, error)
}

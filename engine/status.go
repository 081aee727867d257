package engine

import (
	"context"
	"time"

	"tradebot/broker"
)

// Status is an immutable snapshot for external monitoring. The engine
// performs no push delivery; transports poll these accessors.
type Status struct {
	State             State
	Mode              string
	Symbols           []string
	Uptime            time.Duration
	Iterations        int64
	ConsecutiveErrors int
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	var uptime time.Duration
	if !e.startedAt.IsZero() {
		uptime = time.Since(e.startedAt)
	}
	return Status{
		State:             e.state,
		Mode:              e.cfg.Mode,
		Symbols:           append([]string(nil), e.cfg.Symbols...),
		Uptime:            uptime,
		Iterations:        e.iterations,
		ConsecutiveErrors: e.consecutiveErrors,
	}
}

// PositionView is a position plus its marked P&L at the latest price.
type PositionView struct {
	Symbol          string
	Quantity        float64
	AvgPrice        float64
	LastPrice       float64
	UnrealizedPL    float64
	UnrealizedPLPct float64
}

// Positions returns every open position with P&L computed at the last
// market snapshot the engine saw.
func (e *Engine) Positions(ctx context.Context) ([]PositionView, error) {
	positions, err := e.broker.GetOpenPositions(ctx)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	ms := e.lastMarket
	e.mu.Unlock()

	views := make([]PositionView, 0, len(positions))
	for symbol, pos := range positions {
		price, ok := ms.LatestPrice(symbol)
		if !ok {
			price = pos.AvgPrice
		}
		views = append(views, PositionView{
			Symbol:          symbol,
			Quantity:        pos.Quantity,
			AvgPrice:        pos.AvgPrice,
			LastPrice:       price,
			UnrealizedPL:    pos.UnrealizedPL(price),
			UnrealizedPLPct: pos.UnrealizedPLPercent(price),
		})
	}
	return views, nil
}

// Account proxies the broker's account snapshot.
func (e *Engine) Account(ctx context.Context) (broker.Account, error) {
	return e.broker.GetAccount(ctx)
}

// RecentOrders returns the n most recent orders if the broker keeps a
// session book, newest first.
func (e *Engine) RecentOrders(n int) []*broker.Order {
	type recent interface {
		RecentOrders(n int) []*broker.Order
	}
	if r, ok := e.broker.(recent); ok {
		return r.RecentOrders(n)
	}
	return nil
}

// Performance is a small aggregate of session results.
type Performance struct {
	Cash      float64
	Equity    float64
	Exposure  float64
	ReturnPct float64
}

// PerformanceSince reports equity against a reference starting value.
func (e *Engine) PerformanceSince(ctx context.Context, startingCash float64) (Performance, error) {
	acct, err := e.broker.GetAccount(ctx)
	if err != nil {
		return Performance{}, err
	}
	positions, err := e.broker.GetOpenPositions(ctx)
	if err != nil {
		return Performance{}, err
	}

	e.mu.Lock()
	ms := e.lastMarket
	e.mu.Unlock()

	var exposure float64
	for symbol, pos := range positions {
		price, ok := ms.LatestPrice(symbol)
		if !ok {
			price = pos.AvgPrice
		}
		exposure += pos.MarketValue(price)
	}

	perf := Performance{
		Cash:     acct.Cash,
		Equity:   acct.Equity,
		Exposure: exposure,
	}
	if startingCash > 0 {
		perf.ReturnPct = (acct.Equity - startingCash) / startingCash * 100
	}
	return perf, nil
}

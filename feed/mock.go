package feed

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"tradebot/market"
)

// Mock is a deterministic synthetic data source for tests and paper runs.
// Prices random-walk from a base price, floored at 1.0, seeded so runs are
// reproducible.
type Mock struct {
	mu        sync.Mutex
	rng       *rand.Rand
	basePrice float64
	interval  time.Duration
	connected bool
	done      chan struct{} // closed by Close to unblock stream sends
}

var _ Provider = (*Mock)(nil)

func NewMock(seed int64, basePrice float64) *Mock {
	return &Mock{
		rng:       rand.New(rand.NewSource(seed)),
		basePrice: basePrice,
		interval:  500 * time.Millisecond,
	}
}

// SetInterval overrides the delay between streamed tick batches. Tests use
// a tiny interval to keep runs fast.
func (m *Mock) SetInterval(d time.Duration) { m.interval = d }

func (m *Mock) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		m.connected = true
		m.done = make(chan struct{})
	}
	return nil
}

func (m *Mock) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connected {
		m.connected = false
		close(m.done)
	}
	return nil
}

func (m *Mock) Historical(ctx context.Context, symbol string, start, end time.Time, interval time.Duration) ([]market.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if interval <= 0 {
		interval = time.Minute
	}

	var candles []market.Candle
	price := m.basePrice
	for current := start; !current.After(end); current = current.Add(interval) {
		change := m.rng.Float64()*2 - 1
		open := price
		cls := math.Max(1.0, open+change)
		high := math.Max(open, cls) + m.rng.Float64()
		low := math.Min(open, cls) - m.rng.Float64()
		candles = append(candles, market.Candle{
			Symbol: symbol,
			Time:   current,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  cls,
			Volume: math.Abs(change)*100 + 10 + m.rng.Float64()*40,
		})
		price = cls
	}
	return candles, nil
}

func (m *Mock) Stream(ctx context.Context, symbols []string) (<-chan map[string]market.Tick, error) {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return nil, fmt.Errorf("data provider not connected")
	}
	interval := m.interval
	done := m.done
	m.mu.Unlock()

	out := make(chan map[string]market.Tick)

	go func() {
		defer close(out)

		prices := make(map[string]float64, len(symbols))
		for _, s := range symbols {
			prices[s] = m.basePrice
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			batch := make(map[string]market.Tick, len(symbols))
			m.mu.Lock()
			if !m.connected {
				m.mu.Unlock()
				return
			}
			for _, s := range symbols {
				change := m.rng.Float64() - 0.5
				prices[s] = math.Max(1.0, prices[s]+change)
				batch[s] = market.Tick{
					Symbol: s,
					Time:   time.Now().UTC(),
					Price:  prices[s],
				}
			}
			m.mu.Unlock()

			// Close must unblock a send the consumer abandoned
			// without cancelling the context.
			select {
			case out <- batch:
			case <-done:
				return
			case <-ctx.Done():
				return
			}

			select {
			case <-ticker.C:
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

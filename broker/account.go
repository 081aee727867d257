package broker

import "time"

// Account is a snapshot of broker-side balances.
type Account struct {
	ID            string
	Cash          float64
	BuyingPower   float64
	Equity        float64
	MarginUsed    float64
	DayTradeCount int
	Time          time.Time
}

// Portfolio is the view of holdings handed to strategies and the risk gate.
// It is always a copy; mutating it has no effect on broker state.
type Portfolio struct {
	Cash      float64
	Positions map[string]Position
}

// NetExposure is the total notional value of open positions at the given
// prices. A symbol without a quoted price falls back to its cost basis.
func (pf Portfolio) NetExposure(prices map[string]float64) float64 {
	var total float64
	for symbol, pos := range pf.Positions {
		price, ok := prices[symbol]
		if !ok {
			price = pos.AvgPrice
		}
		total += pos.MarketValue(price)
	}
	return total
}

// Equity is cash plus the signed market value of every position.
func (pf Portfolio) Equity(prices map[string]float64) float64 {
	equity := pf.Cash
	for symbol, pos := range pf.Positions {
		price, ok := prices[symbol]
		if !ok {
			price = pos.AvgPrice
		}
		equity += pos.Quantity * price
	}
	return equity
}

// OpenPositions counts non-flat positions.
func (pf Portfolio) OpenPositions() int {
	n := 0
	for _, pos := range pf.Positions {
		if !pos.IsFlat() {
			n++
		}
	}
	return n
}

package market

// State is the market information handed to strategies and the risk gate
// each iteration. It is a value snapshot; callers may read it freely but
// must not assume mutations are seen by anyone else.
type State struct {
	Candles map[string][]Candle
	Ticks   map[string]Tick
}

// LatestPrice returns the last traded price for a symbol, preferring a live
// tick over the close of the most recent candle. The bool reports whether
// any price was available.
func (s State) LatestPrice(symbol string) (float64, bool) {
	if t, ok := s.Ticks[symbol]; ok {
		return t.Price, true
	}
	if series := s.Candles[symbol]; len(series) > 0 {
		return series[len(series)-1].Close, true
	}
	return 0, false
}

// LatestPrices returns the last known price for every symbol present in the
// snapshot.
func (s State) LatestPrices() map[string]float64 {
	prices := make(map[string]float64, len(s.Candles)+len(s.Ticks))
	for symbol := range s.Candles {
		if p, ok := s.LatestPrice(symbol); ok {
			prices[symbol] = p
		}
	}
	for symbol, t := range s.Ticks {
		prices[symbol] = t.Price
	}
	return prices
}

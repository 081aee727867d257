package risk

import "time"

const (
	orderWindow    = time.Hour // retention for order timestamps
	rateWindow     = time.Minute
	dayTradeWindow = 5 * 24 * time.Hour
)

// activity tracks recent trading for one symbol. Windows are bounded: every
// append trims entries that have aged out, so memory stays proportional to
// the configured rate caps.
type activity struct {
	orderTimes []time.Time
	dayTrades  []time.Time
	lastEntry  time.Time
}

func (a *activity) addOrder(now time.Time) {
	a.orderTimes = append(a.orderTimes, now)
	a.orderTimes = trimBefore(a.orderTimes, now.Add(-orderWindow))
}

func (a *activity) addDayTrade(now time.Time) {
	a.dayTrades = append(a.dayTrades, now)
	a.dayTrades = trimBefore(a.dayTrades, now.Add(-dayTradeWindow))
}

func (a *activity) ordersInLastMinute(now time.Time) int {
	cutoff := now.Add(-rateWindow)
	n := 0
	for _, ts := range a.orderTimes {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}

func (a *activity) dayTradeCount(now time.Time) int {
	cutoff := now.Add(-dayTradeWindow)
	n := 0
	for _, ts := range a.dayTrades {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}

// enteredToday reports whether the last opening order for the symbol was
// placed on the same UTC day as now; closing it now would be a day trade.
func (a *activity) enteredToday(now time.Time) bool {
	if a.lastEntry.IsZero() {
		return false
	}
	y1, m1, d1 := a.lastEntry.UTC().Date()
	y2, m2, d2 := now.UTC().Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func trimBefore(ts []time.Time, cutoff time.Time) []time.Time {
	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

package strategies

import (
	"time"

	"tradebot/broker"
)

// Action is the intent a signal expresses. Quantity on a signal is always
// absolute; direction comes from the action.
type Action string

const (
	OpenLong   Action = "OPEN_LONG"
	CloseLong  Action = "CLOSE_LONG"
	OpenShort  Action = "OPEN_SHORT"
	CloseShort Action = "CLOSE_SHORT"
)

// IsClose reports whether the action reduces risk rather than adding it.
// Closing actions are never blocked by the risk gate.
func (a Action) IsClose() bool {
	return a == CloseLong || a == CloseShort
}

// Side maps an action to the broker order side.
func (a Action) Side() (broker.Side, bool) {
	switch a {
	case OpenLong:
		return broker.Buy, true
	case CloseLong:
		return broker.Sell, true
	case OpenShort:
		return broker.SellShort, true
	case CloseShort:
		return broker.BuyToCover, true
	default:
		return "", false
	}
}

// Signal is an abstract trade intention, not yet risk-checked or priced.
// Signals are immutable once created: the risk gate returns a fresh copy
// when it caps a quantity.
type Signal struct {
	Symbol     string
	Action     Action
	Quantity   float64
	Confidence float64
	Meta       map[string]float64
	Time       time.Time
}

// WithQuantity returns a copy of the signal carrying an adjusted quantity.
// The meta map is copied so the original signal stays untouched.
func (s Signal) WithQuantity(qty float64) Signal {
	meta := make(map[string]float64, len(s.Meta)+2)
	for k, v := range s.Meta {
		meta[k] = v
	}
	meta["capped_quantity"] = qty
	meta["adjusted"] = 1

	s.Quantity = qty
	s.Meta = meta
	return s
}

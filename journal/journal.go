package journal

import "time"

// OrderRecord is one executed order as the broker saw it.
type OrderRecord struct {
	OrderID       string
	BrokerOrderID string
	Symbol        string
	Side          string
	Quantity      float64
	AvgFillPrice  float64
	Commission    float64
	Status        string
	Time          time.Time
}

// EquitySnapshot captures account state after an execution.
type EquitySnapshot struct {
	Time     time.Time
	Cash     float64
	Equity   float64
	Exposure float64
}

type Journal interface {
	RecordOrder(OrderRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Nop discards all records. Used when no journal is configured and by
// tests that do not care about history.
type Nop struct{}

func (Nop) RecordOrder(OrderRecord) error     { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) Close() error                      { return nil }

package broker

import "time"

type Side string

const (
	Buy        Side = "BUY"
	Sell       Side = "SELL"
	SellShort  Side = "SELL_SHORT"
	BuyToCover Side = "BUY_TO_COVER"
)

// Sign returns +1 for sides that increase a holding and -1 for sides that
// decrease it. Signed quantities everywhere else derive from this.
func (s Side) Sign() float64 {
	switch s {
	case Buy, BuyToCover:
		return 1
	default:
		return -1
	}
}

type OrderType string

const (
	Market    OrderType = "MARKET"
	Limit     OrderType = "LIMIT"
	Stop      OrderType = "STOP"
	StopLimit OrderType = "STOP_LIMIT"
)

type Status string

const (
	Pending         Status = "PENDING"
	Submitted       Status = "SUBMITTED"
	Accepted        Status = "ACCEPTED"
	PartiallyFilled Status = "PARTIALLY_FILLED"
	Filled          Status = "FILLED"
	Cancelled       Status = "CANCELLED"
	Rejected        Status = "REJECTED"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == Filled || s == Cancelled || s == Rejected
}

// Fill is a single execution against an order. The list on an order is
// append-only.
type Fill struct {
	ID         string
	Time       time.Time
	Quantity   float64
	Price      float64
	Commission float64
}

// Order is a broker-facing execution request. It is created by the engine
// from an approved signal and mutated only by the executing broker as fills
// and status transitions arrive.
type Order struct {
	ID             string
	Symbol         string
	Side           Side
	Quantity       float64
	Type           OrderType
	LimitPrice     *float64
	StopPrice      *float64
	Status         Status
	FilledQuantity float64
	Fills          []Fill
	BrokerOrderID  string
	ErrorMessage   string
	Created        time.Time
}

// AddFill appends a fill, recomputes the filled quantity from scratch, and
// advances the status. FILLED iff filled quantity equals quantity.
func (o *Order) AddFill(f Fill) {
	o.Fills = append(o.Fills, f)

	var filled float64
	for _, fl := range o.Fills {
		filled += fl.Quantity
	}
	o.FilledQuantity = filled

	switch {
	case filled >= o.Quantity:
		o.Status = Filled
	case filled > 0:
		o.Status = PartiallyFilled
	}
}

// AverageFillPrice is the quantity-weighted mean of fill prices. The bool is
// false when there are no fills.
func (o *Order) AverageFillPrice() (float64, bool) {
	if len(o.Fills) == 0 {
		return 0, false
	}
	var qty, notional float64
	for _, f := range o.Fills {
		qty += f.Quantity
		notional += f.Quantity * f.Price
	}
	if qty == 0 {
		return 0, false
	}
	return notional / qty, true
}

func (o *Order) RemainingQuantity() float64 {
	return o.Quantity - o.FilledQuantity
}

func (o *Order) IsComplete() bool {
	return o.Status.Terminal()
}

// Clone returns a deep copy so callers outside the broker cannot mutate
// internal order state through a returned value.
func (o *Order) Clone() *Order {
	cp := *o
	if o.LimitPrice != nil {
		v := *o.LimitPrice
		cp.LimitPrice = &v
	}
	if o.StopPrice != nil {
		v := *o.StopPrice
		cp.StopPrice = &v
	}
	cp.Fills = append([]Fill(nil), o.Fills...)
	return &cp
}

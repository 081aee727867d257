package sim

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tradebot/broker"
	"tradebot/journal"
	"tradebot/pkg/id"
)

// Config are the execution-model knobs. The zero value (plus a starting
// cash) gives the base contract: immediate full fill at the last known
// price, no costs.
type Config struct {
	StartingCash         float64
	CommissionPerShare   float64
	CommissionPercent    float64
	SlippagePercent      float64
	SimulatePartialFills bool
}

// PaperBroker simulates order execution against a maintained price table.
// The position table, price table and cash balance may be touched by the
// iteration loop and by externally injected orders at the same time, so
// every operation runs under one mutex; fills for a symbol apply strictly
// in submission order.
type PaperBroker struct {
	mu  sync.Mutex
	cfg Config
	log *logrus.Logger
	now func() time.Time

	accountID  string
	cash       float64
	positions  map[string]broker.Position
	lastPrices map[string]float64
	connected  bool

	book    *broker.Book
	journal journal.Journal
}

var _ broker.Broker = (*PaperBroker)(nil)
var _ broker.Liquidator = (*PaperBroker)(nil)

func NewPaperBroker(cfg Config, j journal.Journal, log *logrus.Logger) *PaperBroker {
	if j == nil {
		j = journal.Nop{}
	}
	return &PaperBroker{
		cfg:        cfg,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
		accountID:  "paper-" + uuid.NewString()[:8],
		cash:       cfg.StartingCash,
		positions:  make(map[string]broker.Position),
		lastPrices: make(map[string]float64),
		book:       broker.NewBook(),
		journal:    j,
	}
}

func (b *PaperBroker) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = true
	b.log.WithField("account", b.accountID).Info("paper broker connected")
	return nil
}

func (b *PaperBroker) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
	b.log.Info("paper broker disconnected")
	return nil
}

func (b *PaperBroker) GetAccount(ctx context.Context) (broker.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return broker.Account{}, &broker.ConnectionError{Op: "get account"}
	}
	return broker.Account{
		ID:          b.accountID,
		Cash:        b.cash,
		BuyingPower: b.cash,
		Equity:      b.equityLocked(),
		Time:        b.now(),
	}, nil
}

func (b *PaperBroker) GetBalance(ctx context.Context) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return 0, &broker.ConnectionError{Op: "get balance"}
	}
	return b.cash, nil
}

func (b *PaperBroker) GetOpenPositions(ctx context.Context) (map[string]broker.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return nil, &broker.ConnectionError{Op: "get open positions"}
	}
	out := make(map[string]broker.Position, len(b.positions))
	for symbol, pos := range b.positions {
		if !pos.IsFlat() {
			out[symbol] = pos
		}
	}
	return out, nil
}

// SubmitOrder resolves a fill price, validates funds, then applies the
// fill(s). Validation happens before any mutation so a failed submission
// leaves position and cash state exactly as it found them.
func (b *PaperBroker) SubmitOrder(ctx context.Context, o *broker.Order) (*broker.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected {
		return nil, &broker.ConnectionError{Op: "submit order"}
	}

	o.BrokerOrderID = "PAPER-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	o.Status = broker.Submitted
	b.book.Add(o)

	fillPrice, ok := b.resolveFillPrice(o)
	if !ok {
		o.Status = broker.Rejected
		o.ErrorMessage = "no market price available for " + o.Symbol
		return nil, &broker.PriceUnavailableError{Symbol: o.Symbol}
	}

	cost := b.orderCost(o, fillPrice)
	if o.Side.Sign() > 0 && cost > b.cash {
		o.Status = broker.Rejected
		o.ErrorMessage = fmt.Sprintf("insufficient funds: need %.2f, have %.2f", cost, b.cash)
		return nil, &broker.InsufficientFundsError{Need: cost, Have: b.cash}
	}

	o.Status = broker.Accepted

	if b.cfg.SimulatePartialFills && o.Quantity > 100 {
		b.executePartialLocked(o, fillPrice)
	} else {
		b.executeFillLocked(o, fillPrice, o.Quantity)
	}

	b.journalLocked(o)

	b.log.WithFields(logrus.Fields{
		"order":  o.BrokerOrderID,
		"symbol": o.Symbol,
		"side":   o.Side,
		"qty":    o.Quantity,
		"price":  fillPrice,
	}).Info("order filled")

	return o, nil
}

// CancelOrder is a no-op for the paper broker, which fills every order
// immediately. Brokers with resting orders must override this with real
// cancellation semantics.
func (b *PaperBroker) CancelOrder(ctx context.Context, orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return &broker.ConnectionError{Op: "cancel order"}
	}
	return nil
}

func (b *PaperBroker) GetOrder(ctx context.Context, orderID string) (*broker.Order, error) {
	b.mu.Lock()
	connected := b.connected
	b.mu.Unlock()
	if !connected {
		return nil, &broker.ConnectionError{Op: "get order"}
	}
	o := b.book.Get(orderID)
	if o == nil {
		return nil, fmt.Errorf("order %q not found", orderID)
	}
	return o, nil
}

// TradeHistory returns copies of all completely filled orders.
func (b *PaperBroker) TradeHistory() []*broker.Order {
	return b.book.Filled()
}

// RecentOrders returns copies of the n most recent orders, newest first.
func (b *PaperBroker) RecentOrders(n int) []*broker.Order {
	return b.book.Recent(n)
}

func (b *PaperBroker) UpdateMarketPrices(prices map[string]float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for symbol, price := range prices {
		b.lastPrices[symbol] = price
	}
}

// LiquidateAll submits a closing market order for every open position.
// Failures are logged and skipped so one bad symbol cannot strand the rest.
func (b *PaperBroker) LiquidateAll(ctx context.Context) ([]*broker.Order, error) {
	b.mu.Lock()
	open := make([]broker.Position, 0, len(b.positions))
	for _, pos := range b.positions {
		if !pos.IsFlat() {
			open = append(open, pos)
		}
	}
	b.mu.Unlock()

	var orders []*broker.Order
	for _, pos := range open {
		side := broker.Sell
		if pos.IsShort() {
			side = broker.BuyToCover
		}
		o := &broker.Order{
			ID:       id.Order(),
			Symbol:   pos.Symbol,
			Side:     side,
			Quantity: math.Abs(pos.Quantity),
			Type:     broker.Market,
			Status:   broker.Pending,
			Created:  b.now(),
		}
		filled, err := b.SubmitOrder(ctx, o)
		if err != nil {
			b.log.WithError(err).WithField("symbol", pos.Symbol).Error("liquidation failed")
			continue
		}
		orders = append(orders, filled)
	}
	return orders, nil
}

// resolveFillPrice prefers the order's own limit price, then the last
// recorded market price, with slippage applied against the trader.
func (b *PaperBroker) resolveFillPrice(o *broker.Order) (float64, bool) {
	var base float64
	switch {
	case o.Type == broker.Limit && o.LimitPrice != nil:
		base = *o.LimitPrice
	default:
		p, ok := b.lastPrices[o.Symbol]
		if !ok {
			return 0, false
		}
		base = p
	}

	slip := base * b.cfg.SlippagePercent
	if o.Side.Sign() > 0 {
		return base + slip, true
	}
	return math.Max(0.01, base-slip), true
}

func (b *PaperBroker) orderCost(o *broker.Order, fillPrice float64) float64 {
	notional := o.Quantity * fillPrice
	commission := b.commission(o.Quantity, fillPrice)
	if o.Side.Sign() > 0 {
		return notional + commission
	}
	return commission
}

func (b *PaperBroker) commission(qty, price float64) float64 {
	return b.cfg.CommissionPerShare*qty + qty*price*b.cfg.CommissionPercent
}

// executeFillLocked records one fill and applies it to position and cash.
func (b *PaperBroker) executeFillLocked(o *broker.Order, price, qty float64) {
	fill := broker.Fill{
		ID:         id.Fill(),
		Time:       b.now(),
		Quantity:   qty,
		Price:      price,
		Commission: b.commission(qty, price),
	}
	o.AddFill(fill)
	b.applyFillLocked(o, fill)
}

// executePartialLocked splits the order into up to three fills with a
// small price spread around the base fill price.
func (b *PaperBroker) executePartialLocked(o *broker.Order, basePrice float64) {
	numFills := int(o.Quantity/50) + 1
	if numFills > 3 {
		numFills = 3
	}

	for i := 0; i < numFills; i++ {
		// The last fill takes the exact remainder so the fill sum
		// equals the order quantity to the bit and the order always
		// reaches FILLED.
		qty := o.Quantity - o.FilledQuantity
		if i < numFills-1 {
			qty /= float64(numFills - i)
		}
		price := basePrice + basePrice*0.0005*(float64(i)-float64(numFills)/2)
		b.executeFillLocked(o, price, qty)
	}
}

func (b *PaperBroker) applyFillLocked(o *broker.Order, fill broker.Fill) {
	signedQty := fill.Quantity * o.Side.Sign()

	pos := b.positions[o.Symbol]
	pos.Symbol = o.Symbol
	pos.Update(signedQty, fill.Price)

	if pos.IsFlat() {
		delete(b.positions, o.Symbol)
	} else {
		b.positions[o.Symbol] = pos
	}

	b.cash -= signedQty*fill.Price + fill.Commission
}

func (b *PaperBroker) journalLocked(o *broker.Order) {
	avg, _ := o.AverageFillPrice()
	var commission float64
	for _, fl := range o.Fills {
		commission += fl.Commission
	}

	if err := b.journal.RecordOrder(journal.OrderRecord{
		OrderID:       o.ID,
		BrokerOrderID: o.BrokerOrderID,
		Symbol:        o.Symbol,
		Side:          string(o.Side),
		Quantity:      o.FilledQuantity,
		AvgFillPrice:  avg,
		Commission:    commission,
		Status:        string(o.Status),
		Time:          b.now(),
	}); err != nil {
		b.log.WithError(err).Warn("journal order record failed")
	}

	if err := b.journal.RecordEquity(journal.EquitySnapshot{
		Time:     b.now(),
		Cash:     b.cash,
		Equity:   b.equityLocked(),
		Exposure: b.exposureLocked(),
	}); err != nil {
		b.log.WithError(err).Warn("journal equity record failed")
	}
}

func (b *PaperBroker) equityLocked() float64 {
	equity := b.cash
	for symbol, pos := range b.positions {
		if price, ok := b.lastPrices[symbol]; ok {
			equity += pos.Quantity * price
		} else {
			equity += pos.Quantity * pos.AvgPrice
		}
	}
	return equity
}

func (b *PaperBroker) exposureLocked() float64 {
	var total float64
	for symbol, pos := range b.positions {
		price, ok := b.lastPrices[symbol]
		if !ok {
			price = pos.AvgPrice
		}
		total += pos.MarketValue(price)
	}
	return total
}

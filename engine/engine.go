package engine

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"tradebot/broker"
	"tradebot/feed"
	"tradebot/market"
	"tradebot/pkg/id"
	"tradebot/risk"
	"tradebot/strategies"
	"tradebot/telemetry"
)

// State is the engine lifecycle: Idle before and between runs, Running
// inside the loop, Halted after a fatal condition or error-threshold trip.
type State string

const (
	Idle    State = "idle"
	Running State = "running"
	Halted  State = "halted"
)

// Config holds loop-level knobs; risk limits live in risk.Config and
// execution knobs in sim.Config.
type Config struct {
	Mode           string // "backtest" or "paper"
	Symbols        []string
	Interval       time.Duration
	HistoryLimit   int // candles retained per symbol in streaming mode
	Iterations     int // streaming iteration cap, 0 = unbounded
	BacktestBars   int // candles pulled per symbol for a backtest run
	StrategyParams map[string]float64

	MaxConsecutiveErrors int
	MaxRetries           int
	RetryBaseDelay       time.Duration
	RetryMaxDelay        time.Duration
}

// DefaultConfig mirrors the retry and circuit-breaking behavior of the
// paper setup.
func DefaultConfig() Config {
	return Config{
		Mode:                 "backtest",
		Symbols:              []string{"AAPL"},
		Interval:             time.Minute,
		HistoryLimit:         500,
		BacktestBars:         200,
		MaxConsecutiveErrors: 5,
		MaxRetries:           3,
		RetryBaseDelay:       time.Second,
		RetryMaxDelay:        60 * time.Second,
	}
}

// Engine pulls signals from the strategy, pushes them through the risk
// gate, submits resulting orders to the broker and owns the retry, backoff
// and halting policy around that submission. The loop is single-threaded
// and cooperative: one iteration completes before the next begins.
type Engine struct {
	cfg      Config
	provider feed.Provider
	broker   broker.Broker
	strategy strategies.Strategy
	riskMgr  risk.Manager
	log      *logrus.Logger
	metrics  *telemetry.Metrics

	mu                sync.Mutex
	state             State
	startedAt         time.Time
	iterations        int64
	consecutiveErrors int
	portfolio         broker.Portfolio
	lastMarket        market.State

	stopCh chan struct{} // guarded by mu; replaced by Reset

	// test seam: replaces waiting on rate-limit and backoff delays
	sleep func(ctx context.Context, d time.Duration) error
}

func New(cfg Config, provider feed.Provider, b broker.Broker, strat strategies.Strategy, rm risk.Manager, m *telemetry.Metrics, log *logrus.Logger) *Engine {
	if m == nil {
		m = telemetry.Nop()
	}
	return &Engine{
		cfg:      cfg,
		provider: provider,
		broker:   b,
		strategy: strat,
		riskMgr:  rm,
		log:      log,
		metrics:  m,
		state:    Idle,
		stopCh:   make(chan struct{}),
		sleep:    sleepCtx,
	}
}

// Run executes the loop until it finishes, is stopped, or halts. It is a
// no-op if the engine is already running or halted.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.state != Idle {
		state := e.state
		e.mu.Unlock()
		e.log.WithField("state", state).Warn("run requested while not idle")
		return nil
	}
	e.state = Running
	e.startedAt = time.Now()
	e.mu.Unlock()

	e.log.WithFields(logrus.Fields{
		"mode":    e.cfg.Mode,
		"symbols": e.cfg.Symbols,
	}).Info("starting trading engine")

	if err := e.provider.Connect(ctx); err != nil {
		e.setState(Idle)
		return err
	}
	if err := e.broker.Connect(ctx); err != nil {
		e.provider.Close(ctx)
		e.setState(Idle)
		return err
	}

	defer func() {
		e.strategy.OnEnd()
		e.broker.Close(ctx)
		e.provider.Close(ctx)
		e.mu.Lock()
		if e.state == Running {
			e.state = Idle
		}
		e.mu.Unlock()
		e.log.Info("engine finished execution")
	}()

	if err := e.strategy.OnStart(e.cfg.StrategyParams, e.log); err != nil {
		return err
	}
	if err := e.refreshPortfolio(ctx); err != nil {
		return err
	}

	if e.cfg.Mode == "backtest" {
		return e.runBacktest(ctx)
	}
	return e.runStreaming(ctx)
}

// Start launches Run on its own goroutine. Idempotent: a second Start
// while running does nothing.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.state == Running {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()
	go func() {
		if err := e.Run(ctx); err != nil {
			e.log.WithError(err).Error("engine run failed")
		}
	}()
}

// Stop asks the loop to exit after the in-flight iteration completes its
// current submission. Idempotent; the request is sticky until Reset
// re-arms the engine.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.stopCh:
	default:
		close(e.stopCh)
	}
}

func (e *Engine) stopped() bool {
	e.mu.Lock()
	ch := e.stopCh
	e.mu.Unlock()
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func (e *Engine) runBacktest(ctx context.Context) error {
	end := time.Now().UTC()
	start := end.Add(-time.Duration(e.cfg.BacktestBars) * e.cfg.Interval)

	history := make(map[string][]market.Candle, len(e.cfg.Symbols))
	maxLen := 0
	for _, symbol := range e.cfg.Symbols {
		series, err := e.provider.Historical(ctx, symbol, start, end, e.cfg.Interval)
		if err != nil {
			return err
		}
		history[symbol] = series
		if len(series) > maxLen {
			maxLen = len(series)
		}
	}

	seen := make(map[string][]market.Candle, len(history))
	for i := 0; i < maxLen; i++ {
		if e.halted() || e.stopped() || ctx.Err() != nil {
			break
		}

		for symbol, series := range history {
			if i < len(series) {
				seen[symbol] = append(seen[symbol], series[i])
			}
		}

		e.processIteration(ctx, market.State{Candles: copyCandles(seen)})
	}
	return nil
}

func (e *Engine) runStreaming(ctx context.Context) error {
	ticks, err := e.provider.Stream(ctx, e.cfg.Symbols)
	if err != nil {
		return err
	}

	seen := make(map[string][]market.Candle, len(e.cfg.Symbols))
	count := 0
	for batch := range ticks {
		if e.halted() || e.stopped() || ctx.Err() != nil {
			break
		}

		for symbol, tick := range batch {
			series := append(seen[symbol], market.TickToCandle(tick))
			if limit := e.cfg.HistoryLimit; limit > 0 && len(series) > limit {
				series = series[len(series)-limit:]
			}
			seen[symbol] = series
		}

		e.processIteration(ctx, market.State{
			Candles: copyCandles(seen),
			Ticks:   batch,
		})

		count++
		if e.cfg.Iterations > 0 && count >= e.cfg.Iterations {
			break
		}
	}
	return nil
}

// processIteration runs the full pipeline for one market snapshot.
func (e *Engine) processIteration(ctx context.Context, ms market.State) {
	e.broker.UpdateMarketPrices(ms.LatestPrices())

	e.mu.Lock()
	e.lastMarket = ms
	e.iterations++
	pf := e.portfolio
	e.mu.Unlock()

	signals := e.strategy.OnBar(ms, pf)

	for _, sig := range signals {
		if e.halted() || e.stopped() {
			return
		}
		e.processSignal(ctx, sig, ms)
	}

	if err := e.refreshPortfolio(ctx); err != nil {
		e.log.WithError(err).Error("portfolio refresh failed")
		e.countError()
	}
}

// processSignal pushes one signal through gate, order construction and
// submission, and maps every non-success outcome to its taxonomy member.
func (e *Engine) processSignal(ctx context.Context, sig strategies.Signal, ms market.State) {
	e.mu.Lock()
	pf := e.portfolio
	e.mu.Unlock()

	decision := e.riskMgr.ValidateSignal(sig, pf, ms)
	switch decision.Verdict {
	case risk.Rejected:
		e.metrics.SignalsRejected.Inc()
		e.log.WithFields(logrus.Fields{
			"symbol": sig.Symbol,
			"action": sig.Action,
			"reason": decision.Reason,
		}).Debug("signal rejected by risk gate")
		return
	case risk.Adjusted:
		e.metrics.SignalsCapped.Inc()
		e.log.WithFields(logrus.Fields{
			"symbol":    sig.Symbol,
			"requested": sig.Quantity,
			"approved":  decision.Signal.Quantity,
		}).Info("signal adjusted by risk gate")
	}

	order, ok := e.signalToOrder(decision.Signal)
	if !ok {
		return
	}

	err := e.submitWithRetry(ctx, order)
	if err == nil {
		e.metrics.OrdersSubmitted.Inc()
		e.mu.Lock()
		e.consecutiveErrors = 0
		e.mu.Unlock()
		return
	}

	entry := e.log.WithError(err).WithFields(logrus.Fields{
		"order":  order.ID,
		"symbol": order.Symbol,
		"side":   order.Side,
	})

	if rl, ok := broker.AsRateLimit(err); ok {
		entry.WithField("retry_after", rl.RetryAfter).Warn("broker rate limit")
		e.sleep(ctx, rl.RetryAfter)
		return
	}

	switch {
	case broker.IsOrderRejected(err):
		e.metrics.OrdersRejected.Inc()
		entry.Warn("order rejected")

	case broker.IsInsufficientFunds(err):
		entry.Error("insufficient funds, halting")
		e.halt()

	case broker.IsConnection(err):
		entry.Error("connection failure, retries exhausted")
		e.countError()

	case broker.IsPriceUnavailable(err):
		entry.Error("no price to fill order")
		e.countError()

	default:
		entry.Error("unexpected submission failure")
		e.countError()
	}
}

// submitWithRetry retries connection failures with bounded exponential
// backoff; every other error surfaces immediately.
func (e *Engine) submitWithRetry(ctx context.Context, o *broker.Order) error {
	var err error
	for attempt := 0; attempt < e.cfg.MaxRetries; attempt++ {
		_, err = e.broker.SubmitOrder(ctx, o)
		if err == nil || !broker.IsConnection(err) {
			return err
		}

		if attempt < e.cfg.MaxRetries-1 {
			delay := backoffDelay(attempt, e.cfg.RetryBaseDelay, e.cfg.RetryMaxDelay)
			e.log.WithError(err).WithFields(logrus.Fields{
				"attempt": attempt + 1,
				"delay":   delay,
			}).Warn("connection error, retrying")
			if serr := e.sleep(ctx, delay); serr != nil {
				return err
			}
		}
	}
	return err
}

func (e *Engine) signalToOrder(sig strategies.Signal) (*broker.Order, bool) {
	side, ok := sig.Action.Side()
	if !ok {
		e.log.WithField("action", sig.Action).Warn("unsupported signal action")
		return nil, false
	}
	return &broker.Order{
		ID:       id.Order(),
		Symbol:   sig.Symbol,
		Side:     side,
		Quantity: sig.Quantity,
		Type:     broker.Market,
		Status:   broker.Pending,
		Created:  time.Now().UTC(),
	}, true
}

// InjectSignal feeds an externally delivered signal (e.g. from a webhook
// receiver) through the same gate-order-submit pipeline as the loop. The
// caller is responsible for deduplication and authentication.
func (e *Engine) InjectSignal(ctx context.Context, sig strategies.Signal) {
	if e.halted() {
		e.log.WithField("symbol", sig.Symbol).Warn("injected signal dropped, engine halted")
		return
	}
	e.mu.Lock()
	ms := e.lastMarket
	e.mu.Unlock()
	e.processSignal(ctx, sig, ms)

	if err := e.refreshPortfolio(ctx); err != nil {
		e.log.WithError(err).Error("portfolio refresh failed")
	}
}

// LiquidateAndHalt closes every open position and leaves the engine
// halted. Idempotent: repeated calls with nothing open just re-halt.
func (e *Engine) LiquidateAndHalt(ctx context.Context) error {
	var err error
	if liq, ok := e.broker.(broker.Liquidator); ok {
		_, err = liq.LiquidateAll(ctx)
	}
	e.halt()
	if rerr := e.refreshPortfolio(ctx); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

// Reset returns a halted engine to idle, clears the error counter and
// re-arms a consumed stop request so a new Run may begin. External
// operators call this after investigating.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Halted {
		e.state = Idle
	}
	e.consecutiveErrors = 0
	select {
	case <-e.stopCh:
		e.stopCh = make(chan struct{})
	default:
	}
}

func (e *Engine) refreshPortfolio(ctx context.Context) error {
	cash, err := e.broker.GetBalance(ctx)
	if err != nil {
		return err
	}
	positions, err := e.broker.GetOpenPositions(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.portfolio = broker.Portfolio{Cash: cash, Positions: positions}
	e.mu.Unlock()
	return nil
}

func (e *Engine) countError() {
	e.metrics.EngineErrors.Inc()

	e.mu.Lock()
	e.consecutiveErrors++
	errs := e.consecutiveErrors
	threshold := e.cfg.MaxConsecutiveErrors
	e.mu.Unlock()

	if threshold > 0 && errs >= threshold {
		e.log.WithField("consecutive_errors", errs).Error("error threshold reached, halting")
		e.halt()
	}
}

func (e *Engine) halt() {
	e.mu.Lock()
	already := e.state == Halted
	e.state = Halted
	e.mu.Unlock()
	if !already {
		e.metrics.EngineHalts.Inc()
	}
}

func (e *Engine) halted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == Halted
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func copyCandles(src map[string][]market.Candle) map[string][]market.Candle {
	out := make(map[string][]market.Candle, len(src))
	for symbol, series := range src {
		out[symbol] = append([]market.Candle(nil), series...)
	}
	return out
}

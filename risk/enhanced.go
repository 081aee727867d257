package risk

import (
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"tradebot/broker"
	"tradebot/market"
	"tradebot/strategies"
)

// EnhancedManager applies the full rule set: circuit breaker, loss limits,
// PDT compliance, rate limiting, per-symbol size caps, open-position count
// and total-exposure caps. Rules run in a fixed order and the first
// decisive one wins; size and exposure caps adjust quantity rather than
// reject outright.
//
// The manager is called from the iteration loop and from externally
// injected signals, so all state sits behind one mutex.
type EnhancedManager struct {
	mu  sync.Mutex
	cfg Config
	log *logrus.Logger
	now func() time.Time

	activity map[string]*activity

	breakerTripped bool
	breakerTripAt  time.Time
	peakEquity     float64
}

func NewEnhancedManager(cfg Config, log *logrus.Logger) *EnhancedManager {
	return &EnhancedManager{
		cfg:        cfg,
		log:        log,
		now:        time.Now,
		activity:   make(map[string]*activity),
		peakEquity: cfg.StartingCash,
	}
}

func (m *EnhancedManager) ValidateSignal(sig strategies.Signal, pf broker.Portfolio, ms market.State) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	// Closing risk is never blocked. Same-day round trips still count
	// toward the PDT window.
	if sig.Action.IsClose() {
		if a := m.activity[sig.Symbol]; a != nil && a.enteredToday(now) {
			a.addDayTrade(now)
		}
		return approve(sig)
	}

	prices := ms.LatestPrices()
	equity := pf.Equity(prices)

	if d, blocked := m.checkCircuitBreaker(now, equity); blocked {
		return d
	}
	if d, blocked := m.checkLossLimits(now, equity); blocked {
		return d
	}
	if d, blocked := m.checkPDT(now, equity); blocked {
		return d
	}
	if d, blocked := m.checkRateLimits(now, sig.Symbol); blocked {
		return d
	}

	qty := sig.Quantity

	// Per-symbol position size: cap, not reject, unless nothing remains.
	if m.cfg.MaxPositionSize > 0 {
		current := math.Abs(pf.Positions[sig.Symbol].Quantity)
		remaining := m.cfg.MaxPositionSize - current
		if remaining <= 0 {
			return reject(ReasonPositionSize)
		}
		if qty > remaining {
			qty = remaining
		}
	}

	// Opening a brand-new symbol when already at the position-count cap.
	if m.cfg.MaxOpenPositions > 0 {
		if pf.Positions[sig.Symbol].IsFlat() && pf.OpenPositions() >= m.cfg.MaxOpenPositions {
			return reject(ReasonMaxOpenPositions)
		}
	}

	// Total portfolio exposure: cap to whatever notional room is left.
	if m.cfg.MaxTotalExposure > 0 {
		if price, ok := ms.LatestPrice(sig.Symbol); ok && price > 0 {
			available := m.cfg.MaxTotalExposure - pf.NetExposure(prices)
			if qty*price > available {
				capped := math.Floor(available / price)
				if capped <= 0 {
					return reject(ReasonExposureLimit)
				}
				qty = capped
			}
		}
	}

	m.recordOrder(now, sig.Symbol)

	if qty != sig.Quantity {
		m.log.WithFields(logrus.Fields{
			"symbol":    sig.Symbol,
			"requested": sig.Quantity,
			"approved":  qty,
		}).Info("signal quantity capped")
		return adjust(sig, qty)
	}
	return approve(sig)
}

// checkCircuitBreaker handles trip expiry and trips on drawdown from the
// session's peak equity.
func (m *EnhancedManager) checkCircuitBreaker(now time.Time, equity float64) (Decision, bool) {
	if !m.cfg.EnableCircuitBreaker {
		return Decision{}, false
	}

	if m.breakerTripped {
		if now.Sub(m.breakerTripAt) >= m.cfg.CircuitBreakerResetAfter {
			m.log.WithField("tripped_at", m.breakerTripAt).Info("circuit breaker reset")
			m.breakerTripped = false
			m.breakerTripAt = time.Time{}
		} else {
			return reject(ReasonCircuitBreaker), true
		}
	}

	if equity > m.peakEquity {
		m.peakEquity = equity
	}

	if m.peakEquity > 0 {
		drawdown := (m.peakEquity - equity) / m.peakEquity * 100
		if drawdown >= m.cfg.CircuitBreakerLossPercent {
			m.trip(now, drawdown, equity)
			return reject(ReasonCircuitBreaker), true
		}
	}
	return Decision{}, false
}

// checkLossLimits enforces the absolute daily-loss and percentage drawdown
// limits against realized plus unrealized session loss. Breaching either
// trips the breaker.
func (m *EnhancedManager) checkLossLimits(now time.Time, equity float64) (Decision, bool) {
	loss := m.cfg.StartingCash - equity

	if m.cfg.MaxDailyLoss > 0 && loss >= m.cfg.MaxDailyLoss {
		m.trip(now, 0, equity)
		return reject(ReasonDailyLossLimit), true
	}
	if m.cfg.MaxDrawdownPercent > 0 && m.cfg.StartingCash > 0 {
		if loss/m.cfg.StartingCash*100 >= m.cfg.MaxDrawdownPercent {
			m.trip(now, loss/m.cfg.StartingCash*100, equity)
			return reject(ReasonDrawdownLimit), true
		}
	}
	return Decision{}, false
}

func (m *EnhancedManager) checkPDT(now time.Time, equity float64) (Decision, bool) {
	if !m.cfg.EnforcePDTRules || equity >= m.cfg.PDTMinEquity {
		return Decision{}, false
	}

	total := 0
	for _, a := range m.activity {
		total += a.dayTradeCount(now)
	}
	if total >= m.cfg.MaxDayTradesPer5Day {
		return reject(ReasonPDTLimit), true
	}
	return Decision{}, false
}

func (m *EnhancedManager) checkRateLimits(now time.Time, symbol string) (Decision, bool) {
	if a := m.activity[symbol]; a != nil && m.cfg.MaxOrdersPerSymbolPerMinute > 0 {
		if a.ordersInLastMinute(now) >= m.cfg.MaxOrdersPerSymbolPerMinute {
			return reject(ReasonRateLimit), true
		}
	}
	if m.cfg.MaxOrdersPerMinute > 0 {
		total := 0
		for _, a := range m.activity {
			total += a.ordersInLastMinute(now)
		}
		if total >= m.cfg.MaxOrdersPerMinute {
			return reject(ReasonRateLimit), true
		}
	}
	return Decision{}, false
}

func (m *EnhancedManager) recordOrder(now time.Time, symbol string) {
	a := m.activity[symbol]
	if a == nil {
		a = &activity{}
		m.activity[symbol] = a
	}
	a.addOrder(now)
	a.lastEntry = now
}

func (m *EnhancedManager) trip(now time.Time, drawdown, equity float64) {
	m.breakerTripped = true
	m.breakerTripAt = now
	m.log.WithFields(logrus.Fields{
		"drawdown_pct": drawdown,
		"equity":       equity,
		"peak":         m.peakEquity,
	}).Error("circuit breaker tripped")
}

// CircuitBreakerTripped reports the breaker state for monitoring.
func (m *EnhancedManager) CircuitBreakerTripped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.breakerTripped
}

// ResetCircuitBreaker clears a trip ahead of its deadline. Exposed to the
// control surface.
func (m *EnhancedManager) ResetCircuitBreaker() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breakerTripped = false
	m.breakerTripAt = time.Time{}
}

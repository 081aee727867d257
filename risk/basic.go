package risk

import (
	"math"

	"github.com/sirupsen/logrus"

	"tradebot/broker"
	"tradebot/market"
	"tradebot/strategies"
)

// BasicManager is the reduced variant: a per-symbol position cap and a
// cash-based daily loss limit. It keeps the two load-bearing guarantees of
// the full gate: closing signals always pass, and size overages cap the
// quantity instead of rejecting.
type BasicManager struct {
	cfg Config
	log *logrus.Logger
}

func NewBasicManager(cfg Config, log *logrus.Logger) *BasicManager {
	return &BasicManager{cfg: cfg, log: log}
}

func (m *BasicManager) ValidateSignal(sig strategies.Signal, pf broker.Portfolio, _ market.State) Decision {
	if sig.Action.IsClose() {
		return approve(sig)
	}

	loss := m.cfg.StartingCash - pf.Cash
	if m.cfg.MaxDailyLoss > 0 && loss >= m.cfg.MaxDailyLoss {
		return reject(ReasonDailyLossLimit)
	}

	if m.cfg.MaxPositionSize <= 0 || sig.Quantity <= 0 {
		return approve(sig)
	}

	current := math.Abs(pf.Positions[sig.Symbol].Quantity)
	remaining := m.cfg.MaxPositionSize - current
	if remaining <= 0 {
		return reject(ReasonPositionSize)
	}
	if sig.Quantity <= remaining {
		return approve(sig)
	}

	m.log.WithFields(logrus.Fields{
		"symbol":    sig.Symbol,
		"requested": sig.Quantity,
		"approved":  remaining,
	}).Info("signal quantity capped")
	return adjust(sig, remaining)
}

package risk

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"tradebot/broker"
	"tradebot/market"
	"tradebot/strategies"
)

// Verdict is the outcome of a risk check. Approval and "be more
// conservative" are both expected, frequent outcomes, so they are values
// rather than errors.
type Verdict int

const (
	Approved Verdict = iota
	Adjusted
	Rejected
)

func (v Verdict) String() string {
	switch v {
	case Approved:
		return "APPROVED"
	case Adjusted:
		return "ADJUSTED"
	case Rejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Decision carries the (possibly quantity-capped) signal, or a reason code
// when rejected. The input signal is never mutated; Adjusted decisions hold
// a fresh copy.
type Decision struct {
	Verdict Verdict
	Signal  strategies.Signal
	Reason  string
}

func approve(sig strategies.Signal) Decision {
	return Decision{Verdict: Approved, Signal: sig}
}

func adjust(sig strategies.Signal, qty float64) Decision {
	return Decision{Verdict: Adjusted, Signal: sig.WithQuantity(qty)}
}

func reject(code string) Decision {
	return Decision{Verdict: Rejected, Reason: code}
}

// Reason codes attached to rejections.
const (
	ReasonCircuitBreaker   = "CIRCUIT_BREAKER"
	ReasonDailyLossLimit   = "DAILY_LOSS_LIMIT"
	ReasonDrawdownLimit    = "DRAWDOWN_LIMIT"
	ReasonPDTLimit         = "PDT_LIMIT"
	ReasonRateLimit        = "RATE_LIMIT"
	ReasonPositionSize     = "POSITION_SIZE_LIMIT"
	ReasonMaxOpenPositions = "MAX_OPEN_POSITIONS"
	ReasonExposureLimit    = "EXPOSURE_LIMIT"
)

// Manager validates a proposed signal against portfolio and market state
// before an order is built from it.
type Manager interface {
	ValidateSignal(sig strategies.Signal, pf broker.Portfolio, ms market.State) Decision
}

// New builds a risk manager by configuration name, validated at startup.
func New(name string, cfg Config, log *logrus.Logger) (Manager, error) {
	switch name {
	case "basic":
		return NewBasicManager(cfg, log), nil
	case "enhanced", "":
		return NewEnhancedManager(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown risk manager %q (supported: basic, enhanced)", name)
	}
}

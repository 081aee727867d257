package strategies

import (
	"github.com/sirupsen/logrus"

	"tradebot/broker"
	"tradebot/market"
)

// Noop never signals. Useful for running the engine against live data
// without taking risk.
type Noop struct{}

func (Noop) OnStart(map[string]float64, *logrus.Logger) error { return nil }

func (Noop) OnBar(market.State, broker.Portfolio) []Signal { return nil }

func (Noop) OnEnd() {}

func init() {
	Register("noop", func() Strategy { return Noop{} })
}

package strategies

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"tradebot/broker"
	"tradebot/market"
)

// SMACross is a long-only moving-average crossover: open long when the
// short average crosses above the long average, close when it crosses back
// under. Intentionally simple; it exists to exercise the full signal
// pipeline, not to make money.
type SMACross struct {
	ShortWindow int
	LongWindow  int
	Quantity    float64

	log   *logrus.Logger
	trend map[string]string // "long" or "flat" per symbol
}

func NewSMACross() *SMACross {
	return &SMACross{
		ShortWindow: 5,
		LongWindow:  20,
		Quantity:    10,
		trend:       make(map[string]string),
	}
}

func (s *SMACross) OnStart(params map[string]float64, log *logrus.Logger) error {
	if v, ok := params["short_window"]; ok {
		s.ShortWindow = int(v)
	}
	if v, ok := params["long_window"]; ok {
		s.LongWindow = int(v)
	}
	if v, ok := params["trade_quantity"]; ok {
		s.Quantity = v
	}
	if s.ShortWindow >= s.LongWindow {
		return fmt.Errorf("short_window %d must be smaller than long_window %d",
			s.ShortWindow, s.LongWindow)
	}

	s.log = log
	if log != nil {
		log.WithFields(logrus.Fields{
			"short":    s.ShortWindow,
			"long":     s.LongWindow,
			"quantity": s.Quantity,
		}).Info("starting SMA crossover strategy")
	}
	return nil
}

func (s *SMACross) OnBar(ms market.State, pf broker.Portfolio) []Signal {
	var signals []Signal

	for symbol, candles := range ms.Candles {
		if len(candles) < s.LongWindow {
			continue
		}

		shortAvg := closeAverage(candles, s.ShortWindow)
		longAvg := closeAverage(candles, s.LongWindow)

		trend := s.trend[symbol]
		pos, hasPos := pf.Positions[symbol]

		switch {
		case shortAvg > longAvg && trend != "long":
			signals = append(signals, Signal{
				Symbol:   symbol,
				Action:   OpenLong,
				Quantity: s.Quantity,
				Meta:     map[string]float64{"short_avg": shortAvg, "long_avg": longAvg},
				Time:     time.Now().UTC(),
			})
			s.trend[symbol] = "long"

		case shortAvg < longAvg && (trend == "long" || (hasPos && pos.Quantity > 0)):
			signals = append(signals, Signal{
				Symbol:   symbol,
				Action:   CloseLong,
				Quantity: s.Quantity,
				Meta:     map[string]float64{"short_avg": shortAvg, "long_avg": longAvg},
				Time:     time.Now().UTC(),
			})
			s.trend[symbol] = "flat"
		}
	}

	return signals
}

func (s *SMACross) OnEnd() {
	if s.log != nil {
		s.log.Info("SMA crossover strategy finished")
	}
}

// closeAverage is the simple moving average of the last n closes.
func closeAverage(candles []market.Candle, n int) float64 {
	var sum float64
	for _, c := range candles[len(candles)-n:] {
		sum += c.Close
	}
	return sum / float64(n)
}

func init() {
	Register("sma_cross", func() Strategy { return NewSMACross() })
}

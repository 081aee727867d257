package strategies

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"tradebot/broker"
	"tradebot/market"
)

// Strategy turns market and portfolio state into trade intentions. OnBar is
// called once per engine iteration and must return a finite list.
type Strategy interface {
	OnStart(params map[string]float64, log *logrus.Logger) error
	OnBar(ms market.State, pf broker.Portfolio) []Signal
	OnEnd()
}

// Constructor builds a fresh strategy instance for a run.
type Constructor func() Strategy

var (
	regMu    sync.Mutex
	registry = make(map[string]Constructor)
)

// Register maps a configuration name to a strategy constructor. Typically
// called from init(). Registering the same name twice panics, since that is
// always a programming error.
func Register(name string, c Constructor) {
	regMu.Lock()
	defer regMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("strategies: duplicate registration for " + name)
	}
	registry[name] = c
}

// New instantiates a registered strategy by name. Lookup failures are
// reported with the list of known names so a config typo is obvious at
// startup.
func New(name string) (Strategy, error) {
	regMu.Lock()
	c, ok := registry[name]
	regMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (registered: %v)", name, Names())
	}
	return c(), nil
}

// Names returns the registered strategy names, sorted.
func Names() []string {
	regMu.Lock()
	defer regMu.Unlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

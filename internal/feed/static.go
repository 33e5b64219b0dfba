package feed

import (
	"context"
	"math/rand"
	"sync"

	"nse-paper-trader/internal/interfaces"
)

// StaticFeed simulates prices for dry runs: each symbol random-walks from
// a base level, so exits eventually trigger without any market connection.
type StaticFeed struct {
	mu     sync.Mutex
	levels map[string]float64
}

var _ interfaces.PriceFeed = (*StaticFeed)(nil)

func NewStaticFeed() *StaticFeed {
	return &StaticFeed{levels: make(map[string]float64)}
}

// Seed pins a symbol's starting level, typically the entry price, so the
// walk starts where the paper position did.
func (f *StaticFeed) Seed(symbol string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levels[symbol] = price
}

func (f *StaticFeed) Prices(_ context.Context, symbols []string) (map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		level, ok := f.levels[s]
		if !ok {
			level = 1000 + rand.Float64()*100
		}
		// +/-1% step per poll
		level *= 1 + (rand.Float64()-0.5)*0.02
		f.levels[s] = level
		out[s] = level
	}
	return out, nil
}

package engine

import (
	"nse-paper-trader/internal/store"
	"nse-paper-trader/internal/types"
)

// replacementArbitrator decides whether an exceptional signal may evict
// the weakest open position when a portfolio is full.
type replacementArbitrator struct {
	cfg store.ReplacementConfig
}

func newReplacementArbitrator(cfg store.ReplacementConfig) *replacementArbitrator {
	return &replacementArbitrator{cfg: cfg}
}

// candidate returns the position to evict for sig, or nil when no
// replacement is warranted. Eviction requires the incoming score to clear
// both an absolute floor and a margin over the weakest holding.
//
// Weakness blends unrealized performance with original signal conviction;
// the lowest combined score is the weakest. Ties break toward the first
// symbol in sorted order, keeping the decision deterministic.
func (r *replacementArbitrator) candidate(book *positionBook, sig types.Signal) *position {
	if !r.cfg.Enabled || sig.QualityScore < r.cfg.MinScore {
		return nil
	}

	var weakest *position
	var weakestScore float64
	for _, symbol := range book.symbols() {
		p := book.positions[symbol]
		price := p.lastPrice
		if price <= 0 {
			price = p.entryPrice
		}
		w := p.unrealizedPct(price)*100*r.cfg.PnLWeight + p.score*r.cfg.ScoreWeight
		if weakest == nil || w < weakestScore {
			weakest = p
			weakestScore = w
		}
	}
	if weakest == nil {
		return nil
	}
	if sig.QualityScore < weakest.score+r.cfg.MinScoreMargin {
		return nil
	}
	return weakest
}

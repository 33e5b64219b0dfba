package engine

import (
	"math"

	"nse-paper-trader/internal/store"
	"nse-paper-trader/internal/types"
)

// allocation is a sizing decision: whole shares and their cost.
type allocation struct {
	shares int
	cost   float64
}

// positionSizer converts a signal into a share count against the current
// ledger state. Pure: it never mutates the ledger or the book.
type positionSizer struct {
	cfg store.SizingConfig
}

func newPositionSizer(cfg store.SizingConfig) *positionSizer {
	return &positionSizer{cfg: cfg}
}

// qualityMultiplier scales allocation by signal conviction. A score at the
// floor gets the base multiplier; each full point above the floor adds one
// slope unit, clamped to [0, cap].
func (s *positionSizer) qualityMultiplier(score float64) float64 {
	m := s.cfg.QualityBase + (score-s.cfg.QualityFloor)*s.cfg.QualitySlope
	if m < 0 {
		return 0
	}
	if m > s.cfg.QualityCap {
		return s.cfg.QualityCap
	}
	return m
}

// size computes the allocation for sig given the portfolio's available cash
// and the mark-to-cost value of its open positions. Returns a zero
// allocation when the sized amount cannot buy a single whole share.
//
// Both caps are computed against total portfolio value (available plus
// invested cost) so that a drawdown shrinks future entries proportionally.
func (s *positionSizer) size(sig types.Signal, available, investedCost float64) allocation {
	portfolioValue := available + investedCost
	if portfolioValue <= 0 {
		return allocation{}
	}

	riskCap := portfolioValue * s.cfg.RiskPerTradePct / riskFraction(sig)
	posCap := portfolioValue * s.cfg.MaxPositionPct

	amount := math.Min(riskCap, posCap) * s.qualityMultiplier(sig.QualityScore)
	if amount > available {
		amount = available
	}

	shares := int(amount / sig.EntryPrice)
	if shares <= 0 {
		return allocation{}
	}
	return allocation{shares: shares, cost: float64(shares) * sig.EntryPrice}
}

// riskFraction is the per-share loss at the stop, as a fraction of entry.
// Validation upstream guarantees entry > stop > 0, so this is positive.
func riskFraction(sig types.Signal) float64 {
	return (sig.EntryPrice - sig.StopLoss) / sig.EntryPrice
}

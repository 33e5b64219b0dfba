package engine

import (
	"time"

	"nse-paper-trader/internal/store"
	"nse-paper-trader/internal/types"
)

// exitDecision is one exit to apply: how many shares leave and at what
// fill price. Target and stop exits fill at their trigger level rather
// than the observed tick, the conservative paper-fill convention.
type exitDecision struct {
	reason types.ExitReason
	shares int
	price  float64
	full   bool
}

// exitEvaluator applies the exit policy to one position per tick. It is
// the only component that mutates position stops and target flags.
type exitEvaluator struct {
	cfg store.ExitConfig
}

func newExitEvaluator(cfg store.ExitConfig) *exitEvaluator {
	return &exitEvaluator{cfg: cfg}
}

// evaluate checks p against price in strict priority order: final target,
// then intermediate targets, then the trailing ratchet, then the stop,
// then the time bound. At most one decision fires per tick. stopRaised
// reports whether the stop moved (lock-in or trail) even when no exit
// fired, so the caller knows to persist.
func (e *exitEvaluator) evaluate(p *position, price float64, now time.Time) (dec *exitDecision, stopRaised bool) {
	p.lastPrice = price

	// Targets are hit-once: a level that already fired never fires again,
	// even if price dips below and recrosses it.
	if !p.targetsHit[2] && price >= p.targets[2] {
		p.targetsHit[2] = true
		return &exitDecision{
			reason: types.ExitTarget3,
			shares: p.sharesRemaining,
			price:  p.targets[2],
			full:   true,
		}, false
	}

	if !p.targetsHit[1] && price >= p.targets[1] {
		p.targetsHit[1] = true
		raised := e.raiseStop(p, p.entryPrice*(1+e.cfg.Target2LockInPct))
		return e.partial(p, types.ExitTarget2, p.targets[1], e.cfg.Target2Fraction), raised
	}

	if !p.targetsHit[0] && price >= p.targets[0] {
		p.targetsHit[0] = true
		raised := e.raiseStop(p, p.entryPrice*(1+e.cfg.Target1LockInPct))
		return e.partial(p, types.ExitTarget1, p.targets[0], e.cfg.Target1Fraction), raised
	}

	// Trailing ratchet: once price is far enough above entry, drag the
	// stop up behind it. The stop only ever rises.
	if price >= p.entryPrice*(1+e.cfg.TrailActivationPct) {
		stopRaised = e.raiseStop(p, price*(1-e.cfg.TrailDistancePct))
	}

	if price <= p.stopLoss {
		reason := types.ExitStopLoss
		if p.stopLoss > p.initialStop {
			reason = types.ExitTrailingStop
		}
		return &exitDecision{
			reason: reason,
			shares: p.sharesRemaining,
			price:  p.stopLoss,
			full:   true,
		}, stopRaised
	}

	// Time exit lets winners run: a position past its hold bound stays
	// open while it carries enough profit, on the theory that one of the
	// exits above will close it better.
	if p.holdingDays(now) >= p.maxHoldDays && p.unrealizedPct(price) < e.cfg.TimeExitProfitPct {
		return &exitDecision{
			reason: types.ExitMaxHolding,
			shares: p.sharesRemaining,
			price:  price,
			full:   true,
		}, stopRaised
	}

	return nil, stopRaised
}

// partial scales the exit off the original share count so that successive
// partials take equal slices. A slice that rounds to zero shares, or that
// would consume the whole position, escalates to a full exit.
func (e *exitEvaluator) partial(p *position, reason types.ExitReason, price, fraction float64) *exitDecision {
	shares := int(float64(p.sharesOriginal) * fraction)
	if shares <= 0 || shares >= p.sharesRemaining {
		return &exitDecision{reason: reason, shares: p.sharesRemaining, price: price, full: true}
	}
	return &exitDecision{reason: reason, shares: shares, price: price}
}

// raiseStop moves the stop to level if that is an increase. Reports
// whether it moved.
func (e *exitEvaluator) raiseStop(p *position, level float64) bool {
	if level > p.stopLoss {
		p.stopLoss = level
		return true
	}
	return false
}

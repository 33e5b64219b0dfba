package engine

import (
	"context"
	"sort"
	"time"

	"nse-paper-trader/internal/interfaces"
	"nse-paper-trader/internal/logger"
	"nse-paper-trader/internal/types"
)

// Desk runs the swing and positional portfolios side by side over one
// account. Capital pools are fully separate; the desk's only shared rule
// is symbol exclusivity: a symbol held by either portfolio cannot be
// entered by the other.
type Desk struct {
	swing      interfaces.Portfolio
	positional interfaces.Portfolio
}

func NewDesk(swing, positional interfaces.Portfolio) *Desk {
	return &Desk{swing: swing, positional: positional}
}

// route picks the portfolio for a strategy class. Unknown classes return
// nil and are rejected at submission.
func (d *Desk) route(class types.StrategyClass) (interfaces.Portfolio, interfaces.Portfolio) {
	switch class {
	case types.Swing:
		return d.swing, d.positional
	case types.Positional:
		return d.positional, d.swing
	default:
		return nil, nil
	}
}

// Submit admits one signal into its class's portfolio, enforcing the
// cross-portfolio exclusivity rule first.
func (d *Desk) Submit(ctx context.Context, sig types.Signal) (types.AdmitResult, error) {
	target, sibling := d.route(sig.StrategyClass)
	if target == nil {
		return types.AdmitResult{
			Outcome: types.Rejected,
			Reason:  types.RejectUnknownStrategy,
			Symbol:  sig.Symbol,
		}, nil
	}
	if sibling.HasOpen(sig.Symbol) {
		logger.Debug(ctx, "signal held by sibling portfolio",
			"symbol", sig.Symbol, "class", string(sig.StrategyClass))
		return types.AdmitResult{
			Outcome: types.Rejected,
			Reason:  types.RejectDuplicateSibling,
			Symbol:  sig.Symbol,
		}, nil
	}
	return target.OnSignal(ctx, sig)
}

// SubmitBatch admits signals best-first: descending quality score, ties
// broken by symbol so a batch replays identically.
func (d *Desk) SubmitBatch(ctx context.Context, sigs []types.Signal) ([]types.AdmitResult, error) {
	ordered := make([]types.Signal, len(sigs))
	copy(ordered, sigs)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].QualityScore != ordered[j].QualityScore {
			return ordered[i].QualityScore > ordered[j].QualityScore
		}
		return ordered[i].Symbol < ordered[j].Symbol
	})

	results := make([]types.AdmitResult, 0, len(ordered))
	for _, sig := range ordered {
		res, err := d.Submit(ctx, sig)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// OnPrices distributes a tick batch to both portfolios. Each portfolio
// only acts on symbols it holds.
func (d *Desk) OnPrices(ctx context.Context, prices map[string]float64, ts time.Time) ([]types.ExitEvent, error) {
	var events []types.ExitEvent
	for _, pf := range []interfaces.Portfolio{d.swing, d.positional} {
		evs, err := pf.OnPrices(ctx, prices, ts)
		events = append(events, evs...)
		if err != nil {
			return events, err
		}
	}
	return events, nil
}

// OpenSymbols is the union of both portfolios' holdings, sorted.
func (d *Desk) OpenSymbols() []string {
	seen := map[string]bool{}
	for _, pf := range []interfaces.Portfolio{d.swing, d.positional} {
		for _, s := range pf.OpenSymbols() {
			seen[s] = true
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Snapshots returns the per-portfolio views keyed by portfolio name.
func (d *Desk) Snapshots() map[string]types.PortfolioSnapshot {
	return map[string]types.PortfolioSnapshot{
		d.swing.Name():      d.swing.Snapshot(),
		d.positional.Name(): d.positional.Snapshot(),
	}
}

package engine

import (
	"context"
	"fmt"
	"time"

	"nse-paper-trader/internal/interfaces"
	"nse-paper-trader/internal/logger"
	"nse-paper-trader/internal/store"
	"nse-paper-trader/internal/types"
)

// New builds a portfolio engine for one capital pool, rehydrating any
// persisted state for name from states. capital is the pool's initial
// allocation and is only used when no prior state exists.
func New(ctx context.Context, name string, class types.StrategyClass, cfg store.PortfolioConfig,
	capital float64, states interfaces.StateStore, notifier interfaces.Notifier) (interfaces.Portfolio, error) {

	pf := &portfolio{
		name:      name,
		class:     class,
		cfg:       cfg,
		sizer:     newPositionSizer(cfg.Sizing),
		exits:     newExitEvaluator(cfg.Exits),
		arbiter:   newReplacementArbitrator(cfg.Replacement),
		states:    states,
		notifier:  notifier,
		startDate: time.Now(),
	}

	prior, found, err := states.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load portfolio state %s: %w", name, err)
	}
	if !found {
		pf.ledger = newCapitalLedger(capital)
		pf.book = newPositionBook()
		logger.Info(ctx, "portfolio initialized", "portfolio", name, "capital", capital)
		return pf, nil
	}

	pf.ledger = restoreCapitalLedger(prior.InitialCapital, prior.Available, prior.Committed)
	pf.book = newPositionBook()
	for _, ps := range prior.Positions {
		if err := pf.book.open(positionFromState(ps)); err != nil {
			return nil, fmt.Errorf("rehydrate %s: %w", name, err)
		}
	}
	pf.book.history = append(pf.book.history, prior.History...)
	for k, v := range prior.StrategyStats {
		pf.book.stats[k] = v
	}
	pf.book.bestTrade = prior.BestTrade
	pf.book.worstTrade = prior.WorstTrade
	if !prior.StartDate.IsZero() {
		pf.startDate = prior.StartDate
	}
	logger.Info(ctx, "portfolio rehydrated", "portfolio", name,
		"positions", len(prior.Positions), "trades", len(prior.History),
		"available", prior.Available, "committed", prior.Committed)
	return pf, nil
}

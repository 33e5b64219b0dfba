package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"nse-paper-trader/internal/interfaces"
	"nse-paper-trader/internal/logger"
	"nse-paper-trader/internal/store"
	"nse-paper-trader/internal/tradelog"
	"nse-paper-trader/internal/types"
)

// portfolio is the lifecycle engine for one capital pool. All mutations
// run under a single mutex and are persisted before the call returns, so
// a restart rehydrates the exact pre-crash state. An invariant breach or
// a persistence failure halts the portfolio: reads still work, mutations
// are refused until an operator intervenes.
type portfolio struct {
	mu sync.Mutex

	name  string
	class types.StrategyClass
	cfg   store.PortfolioConfig

	ledger  *capitalLedger
	book    *positionBook
	sizer   *positionSizer
	exits   *exitEvaluator
	arbiter *replacementArbitrator

	states   interfaces.StateStore
	notifier interfaces.Notifier

	halted    bool
	startDate time.Time
}

func (pf *portfolio) Name() string { return pf.name }

func (pf *portfolio) HasOpen(symbol string) bool {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	return pf.book.has(symbol)
}

func (pf *portfolio) OpenSymbols() []string {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	return pf.book.symbols()
}

// OnSignal runs the admission pipeline: validate, dedupe, score-gate,
// capacity (with replacement arbitration), size, reserve, open.
func (pf *portfolio) OnSignal(ctx context.Context, sig types.Signal) (types.AdmitResult, error) {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	if pf.halted {
		return pf.reject(ctx, sig, types.RejectPortfolioHalted), nil
	}
	if reason, ok := validateSignal(sig); !ok {
		return pf.reject(ctx, sig, reason), nil
	}
	if sig.StrategyClass != pf.class {
		return pf.reject(ctx, sig, types.RejectUnknownStrategy), nil
	}
	if pf.book.has(sig.Symbol) {
		return pf.reject(ctx, sig, types.RejectDuplicate), nil
	}
	if sig.QualityScore < pf.cfg.Sizing.MinScore {
		return pf.reject(ctx, sig, types.RejectLowScore), nil
	}

	var evicted string
	if pf.book.count() >= pf.cfg.MaxPositions {
		victim := pf.arbiter.candidate(pf.book, sig)
		if victim == nil {
			return pf.reject(ctx, sig, types.RejectMaxPositions), nil
		}
		if err := pf.evict(ctx, victim, sig); err != nil {
			return types.AdmitResult{}, pf.halt(ctx, err)
		}
		evicted = victim.symbol
	}

	alloc := pf.sizer.size(sig, pf.ledger.available, pf.book.investedCost())
	if alloc.shares == 0 && evicted == "" {
		// Below the slot cap but out of free capital: arbitration can free
		// a weaker holding's capital, then the signal is sized again.
		if victim := pf.arbiter.candidate(pf.book, sig); victim != nil {
			if err := pf.evict(ctx, victim, sig); err != nil {
				return types.AdmitResult{}, pf.halt(ctx, err)
			}
			evicted = victim.symbol
			alloc = pf.sizer.size(sig, pf.ledger.available, pf.book.investedCost())
		}
	}
	if alloc.shares == 0 {
		return pf.reject(ctx, sig, types.RejectZeroShares), nil
	}
	if err := pf.ledger.reserve(alloc.cost); err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			return pf.reject(ctx, sig, types.RejectZeroShares), nil
		}
		return types.AdmitResult{}, pf.halt(ctx, err)
	}

	maxHold := pf.cfg.Exits.MaxHoldDays(sig.StrategyClass == types.Positional)
	pos := newPosition(sig, alloc.shares, maxHold, sig.Timestamp)
	if err := pf.book.open(pos); err != nil {
		return types.AdmitResult{}, pf.halt(ctx, err)
	}
	if err := pf.persist(ctx); err != nil {
		return types.AdmitResult{}, pf.halt(ctx, err)
	}

	outcome := types.Entered
	if evicted != "" {
		outcome = types.ReplacedAndEntered
	}
	res := types.AdmitResult{
		Outcome: outcome,
		Symbol:  sig.Symbol,
		Shares:  alloc.shares,
		Cost:    alloc.cost,
		Evicted: evicted,
	}
	pf.journalAdmission(sig, res)
	if err := tradelog.Append(tradelog.Entry{
		Portfolio: pf.name,
		Symbol:    sig.Symbol,
		Side:      "BUY",
		Shares:    alloc.shares,
		Price:     sig.EntryPrice,
		Extra:     map[string]any{"score": sig.QualityScore, "stop": sig.StopLoss},
	}); err != nil {
		logger.Warn(ctx, "trade journal append failed", "error", err.Error())
	}
	logger.Trade(ctx, pf.name, sig.Symbol, "BUY", alloc.shares, sig.EntryPrice,
		"score", sig.QualityScore, "evicted", evicted)
	pf.publish(ctx, types.Event{
		Kind:      types.EventPositionEntered,
		Portfolio: pf.name,
		Symbol:    sig.Symbol,
		Shares:    alloc.shares,
		Price:     sig.EntryPrice,
		Score:     sig.QualityScore,
		Time:      sig.Timestamp,
	})
	return res, nil
}

// OnPriceTick evaluates the open position in symbol against price. Ticks
// for symbols not held, and non-positive prices, are ignored.
func (pf *portfolio) OnPriceTick(ctx context.Context, symbol string, price float64, ts time.Time) ([]types.ExitEvent, error) {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	return pf.tickLocked(ctx, symbol, price, ts)
}

// OnPrices applies ticks in sorted symbol order so the outcome of a batch
// never depends on map iteration.
func (pf *portfolio) OnPrices(ctx context.Context, prices map[string]float64, ts time.Time) ([]types.ExitEvent, error) {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	symbols := make([]string, 0, len(prices))
	for s := range prices {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	var events []types.ExitEvent
	for _, s := range symbols {
		evs, err := pf.tickLocked(ctx, s, prices[s], ts)
		if err != nil {
			return events, err
		}
		events = append(events, evs...)
	}
	return events, nil
}

func (pf *portfolio) tickLocked(ctx context.Context, symbol string, price float64, ts time.Time) ([]types.ExitEvent, error) {
	if pf.halted {
		return nil, fmt.Errorf("%w: portfolio %s is halted", ErrInvariant, pf.name)
	}
	p := pf.book.get(symbol)
	if p == nil {
		return nil, nil
	}
	if price <= 0 {
		logger.Warn(ctx, "ignoring non-positive price", "portfolio", pf.name, "symbol", symbol, "price", price)
		return nil, nil
	}

	dec, stopRaised := pf.exits.evaluate(p, price, ts)
	if dec == nil {
		if stopRaised {
			logger.Risk(ctx, symbol, "stop_raised", "portfolio", pf.name, "stop", p.stopLoss, "price", price)
		}
		// lastPrice (and possibly the stop) moved even without an exit
		if err := pf.persist(ctx); err != nil {
			return nil, pf.halt(ctx, err)
		}
		return nil, nil
	}

	rec, err := pf.closePosition(ctx, p, dec.shares, dec.price, dec.reason, ts)
	if err != nil {
		return nil, pf.halt(ctx, err)
	}
	ev := types.ExitEvent{
		Portfolio: pf.name,
		Symbol:    symbol,
		Reason:    dec.reason,
		Shares:    dec.shares,
		Price:     dec.price,
		PnL:       rec.PnL,
		PnLPct:    rec.PnLPct,
		Partial:   !dec.full,
	}
	pf.publish(ctx, types.Event{
		Kind:      types.EventPositionExited,
		Portfolio: pf.name,
		Symbol:    symbol,
		Reason:    dec.reason,
		Shares:    dec.shares,
		Price:     dec.price,
		PnL:       rec.PnL,
		Time:      ts,
		Trade:     &rec,
	})
	return []types.ExitEvent{ev}, nil
}

// evict closes victim in full at its mark to make room (or capital) for
// the incoming signal.
func (pf *portfolio) evict(ctx context.Context, victim *position, sig types.Signal) error {
	ev, err := pf.closePosition(ctx, victim, victim.sharesRemaining,
		markPrice(victim), types.ExitReplaced, sig.Timestamp)
	if err != nil {
		return err
	}
	pf.publish(ctx, types.Event{
		Kind:      types.EventPositionReplaced,
		Portfolio: pf.name,
		Symbol:    victim.symbol,
		Reason:    types.ExitReplaced,
		Shares:    ev.Shares,
		Price:     ev.ExitPrice,
		PnL:       ev.PnL,
		Score:     sig.QualityScore,
		Time:      sig.Timestamp,
		Trade:     &ev,
	})
	return nil
}

// closePosition books the exit, settles the ledger and persists. The
// ledger releases proceeds at the fill price and retires cost basis at
// the entry price, so realized P&L lands in available capital.
func (pf *portfolio) closePosition(ctx context.Context, p *position, shares int, price float64, reason types.ExitReason, ts time.Time) (types.TradeRecord, error) {
	rec, err := pf.book.recordExit(pf.name, p, shares, price, reason, ts)
	if err != nil {
		return types.TradeRecord{}, err
	}
	proceeds := price * float64(shares)
	costBasis := p.entryPrice * float64(shares)
	if err := pf.ledger.release(proceeds, costBasis); err != nil {
		return types.TradeRecord{}, err
	}
	if err := pf.persist(ctx); err != nil {
		return types.TradeRecord{}, err
	}
	if err := tradelog.Append(tradelog.Entry{
		Portfolio: pf.name,
		Symbol:    p.symbol,
		Side:      "SELL",
		Reason:    string(reason),
		Shares:    shares,
		Price:     price,
		PnL:       rec.PnL,
	}); err != nil {
		logger.Warn(ctx, "trade journal append failed", "error", err.Error())
	}
	logger.Trade(ctx, pf.name, p.symbol, "SELL", shares, price,
		"reason", string(reason), "pnl", rec.PnL)
	return rec, nil
}

func (pf *portfolio) Snapshot() types.PortfolioSnapshot {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	open := make([]types.PositionState, 0, pf.book.count())
	markValue := 0.0
	for _, s := range pf.book.symbols() {
		p := pf.book.positions[s]
		open = append(open, p.state())
		markValue += markPrice(p) * float64(p.sharesRemaining)
	}
	wins, losses := pf.book.winsLosses()
	winRate := 0.0
	if wins+losses > 0 {
		winRate = float64(wins) / float64(wins+losses) * 100
	}
	return types.PortfolioSnapshot{
		Name:             pf.name,
		InitialCapital:   pf.ledger.initial,
		AvailableCapital: pf.ledger.available,
		CommittedCapital: pf.ledger.committed,
		PortfolioValue:   pf.ledger.available + markValue,
		RealizedPnL:      pf.book.realizedPnL(),
		OpenPositions:    open,
		TotalTrades:      len(pf.book.history),
		Wins:             wins,
		Losses:           losses,
		WinRate:          winRate,
		BestTrade:        pf.book.bestTrade,
		WorstTrade:       pf.book.worstTrade,
		StrategyStats:    cloneStats(pf.book.stats),
		Halted:           pf.halted,
	}
}

// halt poisons the portfolio after a breach. The failed mutation's state
// was not persisted; the on-disk snapshot stays consistent.
func (pf *portfolio) halt(ctx context.Context, err error) error {
	pf.halted = true
	logger.ErrorWithErr(ctx, "portfolio halted", err, "portfolio", pf.name)
	return fmt.Errorf("portfolio %s halted: %w", pf.name, err)
}

func (pf *portfolio) persist(ctx context.Context) error {
	state := &types.PortfolioState{
		Name:           pf.name,
		InitialCapital: pf.ledger.initial,
		Available:      pf.ledger.available,
		Committed:      pf.ledger.committed,
		StrategyStats:  cloneStats(pf.book.stats),
		BestTrade:      pf.book.bestTrade,
		WorstTrade:     pf.book.worstTrade,
		StartDate:      pf.startDate,
		LastUpdated:    time.Now(),
	}
	for _, s := range pf.book.symbols() {
		state.Positions = append(state.Positions, pf.book.positions[s].state())
	}
	state.History = append(state.History, pf.book.history...)
	return pf.states.Save(ctx, state)
}

func (pf *portfolio) publish(ctx context.Context, ev types.Event) {
	if pf.notifier != nil {
		pf.notifier.Publish(ctx, ev)
	}
}

func (pf *portfolio) reject(ctx context.Context, sig types.Signal, reason types.RejectReason) types.AdmitResult {
	res := types.AdmitResult{Outcome: types.Rejected, Reason: reason, Symbol: sig.Symbol}
	pf.journalAdmission(sig, res)
	logger.Debug(ctx, "signal rejected", "portfolio", pf.name, "symbol", sig.Symbol, "reason", string(reason))
	return res
}

func (pf *portfolio) journalAdmission(sig types.Signal, res types.AdmitResult) {
	_ = tradelog.AppendAdmission(tradelog.AdmissionEntry{
		Portfolio: pf.name,
		Symbol:    sig.Symbol,
		Outcome:   string(res.Outcome),
		Reason:    string(res.Reason),
		Score:     sig.QualityScore,
		Shares:    res.Shares,
		Cost:      res.Cost,
		Evicted:   res.Evicted,
	})
}

// markPrice is the best known price for a position: the last tick seen,
// falling back to entry before any tick has arrived.
func markPrice(p *position) float64 {
	if p.lastPrice > 0 {
		return p.lastPrice
	}
	return p.entryPrice
}

func validateSignal(sig types.Signal) (types.RejectReason, bool) {
	switch {
	case sig.Symbol == "":
		return types.RejectInvalidSignal, false
	case sig.Timestamp.IsZero():
		return types.RejectInvalidSignal, false
	case sig.EntryPrice <= 0 || sig.StopLoss <= 0:
		return types.RejectInvalidSignal, false
	case sig.StopLoss >= sig.EntryPrice:
		return types.RejectInvalidSignal, false
	case sig.Targets[0] <= sig.EntryPrice:
		return types.RejectInvalidSignal, false
	case sig.Targets[1] <= sig.Targets[0] || sig.Targets[2] <= sig.Targets[1]:
		return types.RejectInvalidSignal, false
	}
	switch sig.StrategyClass {
	case types.Swing, types.Positional:
	default:
		return types.RejectUnknownStrategy, false
	}
	return "", true
}

func cloneStats(in map[types.SignalType]types.StrategyStats) map[types.SignalType]types.StrategyStats {
	out := make(map[types.SignalType]types.StrategyStats, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

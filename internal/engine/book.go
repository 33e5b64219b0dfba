package engine

import (
	"fmt"
	"sort"
	"time"

	"nse-paper-trader/internal/types"

	"github.com/google/uuid"
)

// position is one open paper trade. Mutated only by the exit evaluator
// (stop raises, target marks) and the book (share reduction).
type position struct {
	id              string
	symbol          string
	class           types.StrategyClass
	signalType      types.SignalType
	entryPrice      float64
	sharesRemaining int
	sharesOriginal  int
	stopLoss        float64 // non-decreasing over the position's lifetime
	initialStop     float64
	targets         [3]float64
	targetsHit      [3]bool
	entryTime       time.Time
	score           float64
	maxHoldDays     int
	lastPrice       float64
}

func newPosition(sig types.Signal, shares, maxHoldDays int, now time.Time) *position {
	return &position{
		id:              uuid.NewString(),
		symbol:          sig.Symbol,
		class:           sig.StrategyClass,
		signalType:      sig.SignalType,
		entryPrice:      sig.EntryPrice,
		sharesRemaining: shares,
		sharesOriginal:  shares,
		stopLoss:        sig.StopLoss,
		initialStop:     sig.StopLoss,
		targets:         sig.Targets,
		entryTime:       now,
		score:           sig.QualityScore,
		maxHoldDays:     maxHoldDays,
		lastPrice:       sig.EntryPrice,
	}
}

func (p *position) unrealizedPct(price float64) float64 {
	return (price - p.entryPrice) / p.entryPrice
}

func (p *position) holdingDays(now time.Time) int {
	return int(now.Sub(p.entryTime).Hours() / 24)
}

func (p *position) state() types.PositionState {
	st := types.PositionState{
		ID:              p.id,
		Symbol:          p.symbol,
		StrategyClass:   p.class,
		SignalType:      p.signalType,
		EntryPrice:      p.entryPrice,
		SharesRemaining: p.sharesRemaining,
		SharesOriginal:  p.sharesOriginal,
		StopLoss:        p.stopLoss,
		InitialStop:     p.initialStop,
		EntryTime:       p.entryTime,
		QualityScore:    p.score,
		MaxHoldDays:     p.maxHoldDays,
		LastPrice:       p.lastPrice,
	}
	for i := range p.targets {
		st.Targets[i] = types.TargetState{Price: p.targets[i], Hit: p.targetsHit[i]}
	}
	return st
}

func positionFromState(st types.PositionState) *position {
	p := &position{
		id:              st.ID,
		symbol:          st.Symbol,
		class:           st.StrategyClass,
		signalType:      st.SignalType,
		entryPrice:      st.EntryPrice,
		sharesRemaining: st.SharesRemaining,
		sharesOriginal:  st.SharesOriginal,
		stopLoss:        st.StopLoss,
		initialStop:     st.InitialStop,
		entryTime:       st.EntryTime,
		score:           st.QualityScore,
		maxHoldDays:     st.MaxHoldDays,
		lastPrice:       st.LastPrice,
	}
	for i := range st.Targets {
		p.targets[i] = st.Targets[i].Price
		p.targetsHit[i] = st.Targets[i].Hit
	}
	return p
}

// positionBook owns the open-position set and the closed-trade history of
// one portfolio. It is the only writer of trade records.
type positionBook struct {
	positions  map[string]*position
	history    []types.TradeRecord
	stats      map[types.SignalType]types.StrategyStats
	bestTrade  float64
	worstTrade float64
}

func newPositionBook() *positionBook {
	return &positionBook{
		positions: make(map[string]*position),
		stats:     make(map[types.SignalType]types.StrategyStats),
	}
}

func (b *positionBook) get(symbol string) *position {
	return b.positions[symbol]
}

func (b *positionBook) has(symbol string) bool {
	return b.positions[symbol] != nil
}

func (b *positionBook) count() int {
	return len(b.positions)
}

func (b *positionBook) open(p *position) error {
	if b.positions[p.symbol] != nil {
		return fmt.Errorf("%w: %s already open in this book", ErrInvariant, p.symbol)
	}
	b.positions[p.symbol] = p
	return nil
}

// symbols returns the held symbols sorted, so batch processing is
// deterministic.
func (b *positionBook) symbols() []string {
	out := make([]string, 0, len(b.positions))
	for s := range b.positions {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// investedCost is the mark-to-cost value of the open set: entry price times
// remaining shares. Using entry price avoids sizing feedback loops from
// unrealized price moves.
func (b *positionBook) investedCost() float64 {
	total := 0.0
	for _, p := range b.positions {
		total += p.entryPrice * float64(p.sharesRemaining)
	}
	return total
}

// recordExit reduces the position by shares at price, appends an immutable
// trade record and removes the position once empty. Returns the record.
func (b *positionBook) recordExit(portfolio string, p *position, shares int, price float64, reason types.ExitReason, ts time.Time) (types.TradeRecord, error) {
	if shares <= 0 || shares > p.sharesRemaining {
		return types.TradeRecord{}, fmt.Errorf("%w: exit of %d shares with %d remaining on %s",
			ErrInvariant, shares, p.sharesRemaining, p.symbol)
	}

	p.sharesRemaining -= shares

	pnl := (price - p.entryPrice) * float64(shares)
	rec := types.TradeRecord{
		ID:            uuid.NewString(),
		Portfolio:     portfolio,
		Symbol:        p.symbol,
		StrategyClass: p.class,
		SignalType:    p.signalType,
		EntryPrice:    p.entryPrice,
		ExitPrice:     price,
		Shares:        shares,
		PnL:           pnl,
		PnLPct:        (price - p.entryPrice) / p.entryPrice * 100,
		Reason:        reason,
		EntryTime:     p.entryTime,
		ExitTime:      ts,
		HoldingDays:   p.holdingDays(ts),
		QualityScore:  p.score,
	}
	b.history = append(b.history, rec)

	s := b.stats[p.signalType]
	s.Trades++
	s.PnL += pnl
	if pnl > 0 {
		s.Wins++
		if pnl > b.bestTrade {
			b.bestTrade = pnl
		}
	} else {
		s.Losses++
		if pnl < b.worstTrade {
			b.worstTrade = pnl
		}
	}
	b.stats[p.signalType] = s

	if p.sharesRemaining == 0 {
		delete(b.positions, p.symbol)
	}
	return rec, nil
}

func (b *positionBook) realizedPnL() float64 {
	total := 0.0
	for _, s := range b.stats {
		total += s.PnL
	}
	return total
}

func (b *positionBook) winsLosses() (wins, losses int) {
	for _, s := range b.stats {
		wins += s.Wins
		losses += s.Losses
	}
	return wins, losses
}

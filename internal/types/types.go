package types

import "time"

// StrategyClass determines hold duration and stop/target policy.
type StrategyClass string

const (
	Swing      StrategyClass = "SWING"
	Positional StrategyClass = "POSITIONAL"
)

// SignalType tags the strategy that produced a signal. It is informational
// for the entry itself but drives sizing policy and strategy statistics.
type SignalType string

const (
	Momentum      SignalType = "MOMENTUM"
	MeanReversion SignalType = "MEAN_REVERSION"
	Breakout      SignalType = "BREAKOUT"
)

// ExitReason records why shares left a position.
type ExitReason string

const (
	ExitTarget1      ExitReason = "TARGET_1"
	ExitTarget2      ExitReason = "TARGET_2"
	ExitTarget3      ExitReason = "TARGET_3"
	ExitStopLoss     ExitReason = "STOP_LOSS"
	ExitTrailingStop ExitReason = "TRAILING_STOP"
	ExitMaxHolding   ExitReason = "MAX_HOLDING_PERIOD"
	ExitReplaced     ExitReason = "REPLACED"
)

// Signal is a proposed trade produced by the scanning subsystem.
// Targets must be strictly ascending and EntryPrice must exceed StopLoss;
// both are validated at the portfolio boundary.
type Signal struct {
	Symbol        string        `json:"symbol"`
	StrategyClass StrategyClass `json:"strategy_class"`
	SignalType    SignalType    `json:"signal_type"`
	EntryPrice    float64       `json:"entry_price"`
	StopLoss      float64       `json:"stop_loss"`
	Targets       [3]float64    `json:"targets"`
	QualityScore  float64       `json:"quality_score"`
	Timestamp     time.Time     `json:"timestamp"`
}

// AdmitOutcome is the result class of submitting a signal to a portfolio.
type AdmitOutcome string

const (
	Entered            AdmitOutcome = "ENTERED"
	Rejected           AdmitOutcome = "REJECTED"
	ReplacedAndEntered AdmitOutcome = "REPLACED_AND_ENTERED"
)

// RejectReason explains a rejected admission. Rejections are routine
// outcomes, not errors.
type RejectReason string

const (
	RejectInvalidSignal    RejectReason = "INVALID_SIGNAL"
	RejectDuplicate        RejectReason = "DUPLICATE"
	RejectDuplicateSibling RejectReason = "DUPLICATE_SIBLING"
	RejectLowScore         RejectReason = "LOW_SCORE"
	RejectMaxPositions     RejectReason = "MAX_POSITIONS"
	RejectZeroShares       RejectReason = "ZERO_SHARES"
	RejectUnknownStrategy  RejectReason = "UNKNOWN_STRATEGY"
	RejectPortfolioHalted  RejectReason = "PORTFOLIO_HALTED"
)

// AdmitResult is returned for every signal submission.
type AdmitResult struct {
	Outcome AdmitOutcome `json:"outcome"`
	Reason  RejectReason `json:"reason,omitempty"`
	Symbol  string       `json:"symbol"`
	Shares  int          `json:"shares,omitempty"`
	Cost    float64      `json:"cost,omitempty"`
	Evicted string       `json:"evicted,omitempty"`
}

// TradeRecord is a completed (full or partial) exit. Immutable once written.
type TradeRecord struct {
	ID            string        `json:"id"`
	Portfolio     string        `json:"portfolio"`
	Symbol        string        `json:"symbol"`
	StrategyClass StrategyClass `json:"strategy_class"`
	SignalType    SignalType    `json:"signal_type"`
	EntryPrice    float64       `json:"entry_price"`
	ExitPrice     float64       `json:"exit_price"`
	Shares        int           `json:"shares"`
	PnL           float64       `json:"pnl"`
	PnLPct        float64       `json:"pnl_pct"`
	Reason        ExitReason    `json:"reason"`
	EntryTime     time.Time     `json:"entry_time"`
	ExitTime      time.Time     `json:"exit_time"`
	HoldingDays   int           `json:"holding_days"`
	QualityScore  float64       `json:"quality_score"`
}

// ExitEvent describes one exit applied during a price tick.
type ExitEvent struct {
	Portfolio string     `json:"portfolio"`
	Symbol    string     `json:"symbol"`
	Reason    ExitReason `json:"reason"`
	Shares    int        `json:"shares"`
	Price     float64    `json:"price"`
	PnL       float64    `json:"pnl"`
	PnLPct    float64    `json:"pnl_pct"`
	Partial   bool       `json:"partial"`
}

// TargetState is one target level with its hit flag.
type TargetState struct {
	Price float64 `json:"price"`
	Hit   bool    `json:"hit"`
}

// PositionState is the serializable form of an open position. It carries
// everything needed to rehydrate after a restart.
type PositionState struct {
	ID              string         `json:"id"`
	Symbol          string         `json:"symbol"`
	StrategyClass   StrategyClass  `json:"strategy_class"`
	SignalType      SignalType     `json:"signal_type"`
	EntryPrice      float64        `json:"entry_price"`
	SharesRemaining int            `json:"shares_remaining"`
	SharesOriginal  int            `json:"shares_original"`
	StopLoss        float64        `json:"stop_loss"`
	InitialStop     float64        `json:"initial_stop"`
	Targets         [3]TargetState `json:"targets"`
	EntryTime       time.Time      `json:"entry_time"`
	QualityScore    float64        `json:"quality_score"`
	MaxHoldDays     int            `json:"max_hold_days"`
	LastPrice       float64        `json:"last_price"`
}

// StrategyStats aggregates closed-trade outcomes per signal type.
type StrategyStats struct {
	Trades int     `json:"trades"`
	Wins   int     `json:"wins"`
	Losses int     `json:"losses"`
	PnL    float64 `json:"pnl"`
}

// PortfolioState is the persisted snapshot of one portfolio: ledger,
// open positions and closed-trade history.
type PortfolioState struct {
	Name           string                       `json:"name"`
	InitialCapital float64                      `json:"initial_capital"`
	Available      float64                      `json:"available_capital"`
	Committed      float64                      `json:"committed_capital"`
	Positions      []PositionState              `json:"positions"`
	History        []TradeRecord                `json:"trade_history"`
	StrategyStats  map[SignalType]StrategyStats `json:"strategy_stats"`
	BestTrade      float64                      `json:"best_trade"`
	WorstTrade     float64                      `json:"worst_trade"`
	StartDate      time.Time                    `json:"start_date"`
	LastUpdated    time.Time                    `json:"last_updated"`
}

// PortfolioSnapshot is the read-only view returned by Snapshot.
type PortfolioSnapshot struct {
	Name             string                       `json:"name"`
	InitialCapital   float64                      `json:"initial_capital"`
	AvailableCapital float64                      `json:"available_capital"`
	CommittedCapital float64                      `json:"committed_capital"`
	PortfolioValue   float64                      `json:"portfolio_value"`
	RealizedPnL      float64                      `json:"realized_pnl"`
	OpenPositions    []PositionState              `json:"open_positions"`
	TotalTrades      int                          `json:"total_trades"`
	Wins             int                          `json:"wins"`
	Losses           int                          `json:"losses"`
	WinRate          float64                      `json:"win_rate"`
	BestTrade        float64                      `json:"best_trade"`
	WorstTrade       float64                      `json:"worst_trade"`
	StrategyStats    map[SignalType]StrategyStats `json:"strategy_stats"`
	Halted           bool                         `json:"halted"`
}

// EventKind classifies domain events emitted by the orchestrator.
type EventKind string

const (
	EventPositionEntered  EventKind = "POSITION_ENTERED"
	EventPositionExited   EventKind = "POSITION_EXITED"
	EventPositionReplaced EventKind = "POSITION_REPLACED"
)

// Event is published to alerting collaborators after a mutation has been
// applied and persisted. Trade is set for exit events.
type Event struct {
	Kind      EventKind    `json:"kind"`
	Portfolio string       `json:"portfolio"`
	Symbol    string       `json:"symbol"`
	Reason    ExitReason   `json:"reason,omitempty"`
	Shares    int          `json:"shares,omitempty"`
	Price     float64      `json:"price,omitempty"`
	PnL       float64      `json:"pnl,omitempty"`
	Score     float64      `json:"score,omitempty"`
	Time      time.Time    `json:"time"`
	Trade     *TradeRecord `json:"trade,omitempty"`
}

package scheduler

import (
	"context"
	"fmt"
	"time"

	"nse-paper-trader/internal/engine"
	"nse-paper-trader/internal/interfaces"
	"nse-paper-trader/internal/logger"
	"nse-paper-trader/internal/trace"
	"nse-paper-trader/internal/types"

	"github.com/robfig/cron/v3"
)

var ist = time.FixedZone("IST", 19800)

// Scheduler drives the trading loop on market-hours cron expressions.
// Every monitor cycle drains pending signal batches, polls prices for the
// held symbols and hands both to the desk.
type Scheduler struct {
	cron    *cron.Cron
	desk    *engine.Desk
	feed    interfaces.PriceFeed
	signals interfaces.SignalSource
	eod     interfaces.EodSummarizer
	ctx     context.Context
}

func New(ctx context.Context, desk *engine.Desk, feed interfaces.PriceFeed,
	signals interfaces.SignalSource, eod interfaces.EodSummarizer) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(ist)),
		desk:    desk,
		feed:    feed,
		signals: signals,
		eod:     eod,
		ctx:     ctx,
	}
}

// RegisterAll wires the monitor and end-of-day tasks.
func (s *Scheduler) RegisterAll(monitorCron, eodCron string) error {
	if _, err := s.cron.AddFunc(monitorCron, s.monitorTask); err != nil {
		return fmt.Errorf("register monitor task: %w", err)
	}
	if _, err := s.cron.AddFunc(eodCron, s.eodTask); err != nil {
		return fmt.Errorf("register eod task: %w", err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Info(s.ctx, "scheduler started")
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
	logger.Info(s.ctx, "scheduler stopped")
}

// RunMonitorNow executes one monitor cycle immediately (manual trigger or
// RUN_ON_START).
func (s *Scheduler) RunMonitorNow() {
	s.monitorTask()
}

func (s *Scheduler) monitorTask() {
	ctx, span := trace.StartSpan(s.ctx, "scheduler.monitor")
	defer span.End()

	now := time.Now().In(ist)

	// Admissions first so a freshly entered position is covered by the
	// same cycle's price poll.
	for {
		batch, err := s.signals.NextBatch(ctx)
		if err != nil {
			logger.ErrorWithErr(ctx, "signal batch read failed", err)
			break
		}
		if len(batch) == 0 {
			break
		}
		results, err := s.desk.SubmitBatch(ctx, batch)
		if err != nil {
			logger.ErrorWithErr(ctx, "signal batch submission failed", err)
			return
		}
		entered := 0
		for _, r := range results {
			if r.Outcome != types.Rejected {
				entered++
			}
		}
		logger.Info(ctx, "signal batch processed", "signals", len(batch), "entered", entered)
	}

	held := s.desk.OpenSymbols()
	if len(held) == 0 {
		return
	}
	prices, err := s.feed.Prices(ctx, held)
	if err != nil {
		logger.ErrorWithErr(ctx, "price poll failed", err, "symbols", len(held))
		return
	}
	events, err := s.desk.OnPrices(ctx, prices, now)
	if err != nil {
		logger.ErrorWithErr(ctx, "price batch failed", err)
		return
	}
	if len(events) > 0 {
		logger.Info(ctx, "monitor cycle exits", "count", len(events))
	}
}

func (s *Scheduler) eodTask() {
	// A loose cron expression may fire before the close or twice in a day.
	if ok, reason := s.eod.ShouldRunNow(); !ok {
		logger.Debug(s.ctx, "EOD task skipped", "reason", reason)
		return
	}
	if path, err := s.eod.SummarizeToday(); err == nil && path != "" {
		logger.Info(s.ctx, "EOD CSV written", "path", path)
	}
	for name, snap := range s.desk.Snapshots() {
		logger.Info(s.ctx, "portfolio EOD snapshot",
			"portfolio", name,
			"value", snap.PortfolioValue,
			"available", snap.AvailableCapital,
			"committed", snap.CommittedCapital,
			"realized_pnl", snap.RealizedPnL,
			"open_positions", len(snap.OpenPositions),
			"trades", snap.TotalTrades,
			"win_rate", snap.WinRate,
		)
	}
}

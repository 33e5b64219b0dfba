package engineobs

import (
	"context"
	"time"

	"nse-paper-trader/internal/interfaces"
	"nse-paper-trader/internal/logger"
	"nse-paper-trader/internal/trace"
	"nse-paper-trader/internal/types"
)

type observablePortfolio struct {
	pf interfaces.Portfolio
}

var _ interfaces.Portfolio = (*observablePortfolio)(nil)

// Wrap decorates a portfolio with span and log instrumentation around its
// mutating operations. Reads pass through untouched.
func Wrap(pf interfaces.Portfolio) interfaces.Portfolio {
	return &observablePortfolio{
		pf: pf,
	}
}

func (op *observablePortfolio) OnSignal(ctx context.Context, sig types.Signal) (types.AdmitResult, error) {
	ctx, span := trace.StartSpan(ctx, "portfolio.OnSignal")
	defer span.End()

	start := time.Now()

	res, err := op.pf.OnSignal(ctx, sig)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Signal admission failed", err,
			"portfolio", op.pf.Name(),
			"symbol", sig.Symbol,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return res, err
	}

	logger.InfoSkip(ctx, 1, "Signal admission completed",
		"portfolio", op.pf.Name(),
		"symbol", sig.Symbol,
		"outcome", string(res.Outcome),
		"reason", string(res.Reason),
		"shares", res.Shares,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return res, nil
}

func (op *observablePortfolio) OnPriceTick(ctx context.Context, symbol string, price float64, ts time.Time) ([]types.ExitEvent, error) {
	ctx, span := trace.StartSpan(ctx, "portfolio.OnPriceTick")
	defer span.End()

	events, err := op.pf.OnPriceTick(ctx, symbol, price, ts)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Price tick failed", err,
			"portfolio", op.pf.Name(),
			"symbol", symbol,
		)
		return events, err
	}
	for _, ev := range events {
		logger.InfoSkip(ctx, 1, "Exit applied",
			"portfolio", ev.Portfolio,
			"symbol", ev.Symbol,
			"reason", string(ev.Reason),
			"shares", ev.Shares,
			"pnl", ev.PnL,
		)
	}
	return events, nil
}

func (op *observablePortfolio) OnPrices(ctx context.Context, prices map[string]float64, ts time.Time) ([]types.ExitEvent, error) {
	ctx, span := trace.StartSpan(ctx, "portfolio.OnPrices")
	defer span.End()

	start := time.Now()

	events, err := op.pf.OnPrices(ctx, prices, ts)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Price batch failed", err,
			"portfolio", op.pf.Name(),
			"symbols", len(prices),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return events, err
	}

	logger.InfoSkip(ctx, 1, "Price batch completed",
		"portfolio", op.pf.Name(),
		"symbols", len(prices),
		"exits", len(events),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return events, nil
}

func (op *observablePortfolio) Snapshot() types.PortfolioSnapshot { return op.pf.Snapshot() }

func (op *observablePortfolio) HasOpen(symbol string) bool { return op.pf.HasOpen(symbol) }

func (op *observablePortfolio) OpenSymbols() []string { return op.pf.OpenSymbols() }

func (op *observablePortfolio) Name() string { return op.pf.Name() }

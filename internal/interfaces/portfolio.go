package interfaces

import (
	"context"
	"time"

	"nse-paper-trader/internal/types"
)

// Portfolio is the position lifecycle engine for one capital pool.
type Portfolio interface {
	// OnSignal submits a signal for admission. Rejections are returned in
	// the result, never as errors; errors indicate invariant breaches or
	// persistence failures.
	OnSignal(ctx context.Context, sig types.Signal) (types.AdmitResult, error)

	// OnPriceTick evaluates exit rules for the open position in symbol, if
	// any, and applies the resulting mutations.
	OnPriceTick(ctx context.Context, symbol string, price float64, ts time.Time) ([]types.ExitEvent, error)

	// OnPrices applies a batch of ticks in sorted symbol order so capital
	// freed by one exit is visible to later work in the same call.
	OnPrices(ctx context.Context, prices map[string]float64, ts time.Time) ([]types.ExitEvent, error)

	// Snapshot returns a read-only view of the portfolio.
	Snapshot() types.PortfolioSnapshot

	// HasOpen reports whether symbol is currently held.
	HasOpen(symbol string) bool

	// OpenSymbols returns the held symbols in sorted order.
	OpenSymbols() []string

	// Name identifies the portfolio variant (e.g. "swing").
	Name() string
}

package interfaces

import (
	"context"

	"nse-paper-trader/internal/types"
)

// PriceFeed supplies last-traded prices for a set of symbols.
type PriceFeed interface {
	Prices(ctx context.Context, symbols []string) (map[string]float64, error)
}

// SignalSource yields the next batch of pending signals, ordered by the
// caller-defined priority (descending quality score).
type SignalSource interface {
	NextBatch(ctx context.Context) ([]types.Signal, error)
}

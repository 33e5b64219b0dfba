package interfaces

import (
	"context"

	"nse-paper-trader/internal/types"
)

// StateStore persists portfolio state after every mutation and rehydrates
// it on restart. Save must be durable before it returns.
type StateStore interface {
	Save(ctx context.Context, state *types.PortfolioState) error
	// Load returns (nil, false, nil) when no state exists for name.
	Load(ctx context.Context, name string) (*types.PortfolioState, bool, error)
}

package interfaces

import (
	"context"

	"nse-paper-trader/internal/types"
)

// Notifier receives domain events after the originating mutation has been
// persisted. Implementations must not block the trading path; failures are
// logged, not propagated.
type Notifier interface {
	Publish(ctx context.Context, ev types.Event)
}

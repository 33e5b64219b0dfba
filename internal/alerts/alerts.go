package alerts

import (
	"context"

	"nse-paper-trader/internal/interfaces"
	"nse-paper-trader/internal/logger"
	"nse-paper-trader/internal/types"
)

// Hub fans one event out to every registered notifier. It is itself a
// notifier, so the engine only ever sees a single sink.
type Hub struct {
	sinks []interfaces.Notifier
}

var _ interfaces.Notifier = (*Hub)(nil)

func NewHub(sinks ...interfaces.Notifier) *Hub {
	return &Hub{sinks: sinks}
}

func (h *Hub) Register(n interfaces.Notifier) {
	h.sinks = append(h.sinks, n)
}

func (h *Hub) Publish(ctx context.Context, ev types.Event) {
	for _, s := range h.sinks {
		s.Publish(ctx, ev)
	}
}

// LogNotifier mirrors every event into the structured log.
type LogNotifier struct{}

var _ interfaces.Notifier = (*LogNotifier)(nil)

func (LogNotifier) Publish(ctx context.Context, ev types.Event) {
	logger.Info(ctx, "portfolio event",
		"kind", string(ev.Kind),
		"portfolio", ev.Portfolio,
		"symbol", ev.Symbol,
		"reason", string(ev.Reason),
		"shares", ev.Shares,
		"price", ev.Price,
		"pnl", ev.PnL,
	)
}

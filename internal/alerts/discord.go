package alerts

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"nse-paper-trader/internal/api"
	"nse-paper-trader/internal/interfaces"
	"nse-paper-trader/internal/logger"
	"nse-paper-trader/internal/types"
)

const (
	colorGreen = 0x2ecc71
	colorRed   = 0xe74c3c
	colorBlue  = 0x3498db
)

// DiscordNotifier sends trade events to a Discord webhook. An empty URL
// disables it, so callers can wire it unconditionally.
type DiscordNotifier struct {
	webhookURL string
	enabled    bool
	client     *api.Client
}

var _ interfaces.Notifier = (*DiscordNotifier)(nil)

func NewDiscordNotifier(webhookURL string) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: webhookURL,
		enabled:    webhookURL != "",
		client:     api.NewClient(api.WithTimeout(10 * time.Second)),
	}
}

func (d *DiscordNotifier) Publish(ctx context.Context, ev types.Event) {
	if !d.enabled {
		return
	}
	if err := d.send(ctx, ev); err != nil {
		logger.Warn(ctx, "discord alert failed", "symbol", ev.Symbol, "error", err.Error())
	}
}

func (d *DiscordNotifier) send(ctx context.Context, ev types.Event) error {
	title, desc, color := format(ev)
	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       title,
				"description": desc,
				"color":       color,
				"timestamp":   ev.Time.Format(time.RFC3339),
			},
		},
	}

	req := api.NewRequest(http.MethodPost, d.webhookURL).
		WithContext(ctx).
		WithBody(payload)
	_, err := d.client.DoWithRetry(req, nil)
	return err
}

func format(ev types.Event) (title, desc string, color int) {
	switch ev.Kind {
	case types.EventPositionEntered:
		return fmt.Sprintf("ENTRY %s", ev.Symbol),
			fmt.Sprintf("%s bought %d @ %.2f (score %.1f)", ev.Portfolio, ev.Shares, ev.Price, ev.Score),
			colorBlue
	case types.EventPositionExited, types.EventPositionReplaced:
		color = colorGreen
		if ev.PnL < 0 {
			color = colorRed
		}
		return fmt.Sprintf("EXIT %s (%s)", ev.Symbol, ev.Reason),
			fmt.Sprintf("%s sold %d @ %.2f, P&L %.2f", ev.Portfolio, ev.Shares, ev.Price, ev.PnL),
			color
	default:
		return string(ev.Kind), ev.Symbol, colorBlue
	}
}

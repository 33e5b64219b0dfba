package feed

import (
	"context"
	"fmt"
	"strings"

	"nse-paper-trader/internal/interfaces"
	"nse-paper-trader/internal/logger"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"
)

// KiteFeed pulls last-traded prices from the Kite Connect quote API.
type KiteFeed struct {
	kc       *kiteconnect.Client
	exchange string
}

var _ interfaces.PriceFeed = (*KiteFeed)(nil)

func NewKiteFeed(apiKey, accessToken, exchange string) *KiteFeed {
	kc := kiteconnect.New(apiKey)
	kc.SetAccessToken(accessToken)
	return &KiteFeed{kc: kc, exchange: exchange}
}

// Prices fetches LTPs for symbols in one quote call. Symbols missing from
// the response are dropped from the result, not errored, so one suspended
// scrip never stalls the whole poll.
func (f *KiteFeed) Prices(ctx context.Context, symbols []string) (map[string]float64, error) {
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}

	instruments := make([]string, len(symbols))
	for i, s := range symbols {
		instruments[i] = f.exchange + ":" + s
	}

	ltp, err := f.kc.GetLTP(instruments...)
	if err != nil {
		return nil, fmt.Errorf("kite LTP: %w", err)
	}

	out := make(map[string]float64, len(symbols))
	for instrument, q := range ltp {
		symbol := strings.TrimPrefix(instrument, f.exchange+":")
		if q.LastPrice > 0 {
			out[symbol] = q.LastPrice
		}
	}
	if len(out) < len(symbols) {
		logger.Warn(ctx, "quote response missing symbols",
			"requested", len(symbols), "received", len(out))
	}
	return out, nil
}

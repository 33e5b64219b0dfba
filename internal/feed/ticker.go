package feed

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"nse-paper-trader/internal/interfaces"
	"nse-paper-trader/internal/logger"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"github.com/zerodha/gokiteconnect/v4/models"
	kiteticker "github.com/zerodha/gokiteconnect/v4/ticker"
)

// TickerFeed serves prices from the Kite websocket stream instead of
// polling the quote API. Instrument tokens are resolved lazily through the
// quote API the first time a symbol is requested; symbols without a
// streamed tick yet fall back to the quote response in the same call.
type TickerFeed struct {
	kc       *kiteconnect.Client
	ticker   *kiteticker.Ticker
	exchange string

	mu            sync.RWMutex
	last          map[string]float64
	tokenToSymbol map[uint32]string
	symbolToToken map[string]uint32
}

var _ interfaces.PriceFeed = (*TickerFeed)(nil)

func NewTickerFeed(apiKey, accessToken, exchange string) *TickerFeed {
	kc := kiteconnect.New(apiKey)
	kc.SetAccessToken(accessToken)
	return &TickerFeed{
		kc:            kc,
		ticker:        kiteticker.New(apiKey, accessToken),
		exchange:      exchange,
		last:          make(map[string]float64),
		tokenToSymbol: make(map[uint32]string),
		symbolToToken: make(map[string]uint32),
	}
}

// Start connects the websocket and begins serving ticks in the background.
func (f *TickerFeed) Start(ctx context.Context) {
	f.ticker.OnConnect(func() {
		logger.Info(ctx, "ticker connected")
		f.resubscribe()
	})
	f.ticker.OnError(func(err error) {
		logger.ErrorWithErr(ctx, "ticker error", err)
	})
	f.ticker.OnClose(func(code int, reason string) {
		logger.Warn(ctx, "ticker closed", "code", code, "reason", reason)
	})
	f.ticker.OnReconnect(func(attempt int, delay time.Duration) {
		logger.Info(ctx, "ticker reconnecting", "attempt", attempt, "delay", delay)
	})
	f.ticker.OnNoReconnect(func(attempt int) {
		logger.Warn(ctx, "ticker gave up reconnecting", "attempts", attempt)
	})
	f.ticker.OnTick(f.onTick)

	go f.ticker.Serve()
}

func (f *TickerFeed) Stop() {
	f.ticker.Stop()
}

func (f *TickerFeed) onTick(tick models.Tick) {
	f.mu.Lock()
	defer f.mu.Unlock()
	symbol := f.tokenToSymbol[tick.InstrumentToken]
	if symbol == "" {
		return
	}
	if tick.LastPrice > 0 {
		f.last[symbol] = tick.LastPrice
	}
}

// Prices answers from the streamed cache, resolving and subscribing any
// symbols seen for the first time via one quote call.
func (f *TickerFeed) Prices(ctx context.Context, symbols []string) (map[string]float64, error) {
	out := make(map[string]float64, len(symbols))

	var unknown []string
	f.mu.RLock()
	for _, s := range symbols {
		if ltp, ok := f.last[s]; ok {
			out[s] = ltp
		} else {
			unknown = append(unknown, s)
		}
	}
	f.mu.RUnlock()

	if len(unknown) == 0 {
		return out, nil
	}
	if err := f.subscribe(ctx, unknown, out); err != nil {
		if len(out) > 0 {
			logger.Warn(ctx, "partial price resolution", "error", err.Error())
			return out, nil
		}
		return nil, err
	}
	return out, nil
}

// subscribe resolves tokens through the quote API, fills prices from that
// same response and subscribes the tokens on the stream.
func (f *TickerFeed) subscribe(ctx context.Context, symbols []string, out map[string]float64) error {
	instruments := make([]string, len(symbols))
	for i, s := range symbols {
		instruments[i] = f.exchange + ":" + s
	}
	ltp, err := f.kc.GetLTP(instruments...)
	if err != nil {
		return fmt.Errorf("resolve instruments: %w", err)
	}

	var tokens []uint32
	f.mu.Lock()
	for instrument, q := range ltp {
		symbol := strings.TrimPrefix(instrument, f.exchange+":")
		token := uint32(q.InstrumentToken)
		f.tokenToSymbol[token] = symbol
		f.symbolToToken[symbol] = token
		if q.LastPrice > 0 {
			f.last[symbol] = q.LastPrice
			out[symbol] = q.LastPrice
		}
		tokens = append(tokens, token)
	}
	f.mu.Unlock()

	if len(tokens) == 0 {
		return nil
	}
	if err := f.ticker.Subscribe(tokens); err != nil {
		return fmt.Errorf("subscribe tokens: %w", err)
	}
	if err := f.ticker.SetMode(kiteticker.ModeLTP, tokens); err != nil {
		return fmt.Errorf("set ticker mode: %w", err)
	}
	return nil
}

// resubscribe restores subscriptions after a reconnect.
func (f *TickerFeed) resubscribe() {
	f.mu.RLock()
	tokens := make([]uint32, 0, len(f.symbolToToken))
	for _, t := range f.symbolToToken {
		tokens = append(tokens, t)
	}
	f.mu.RUnlock()

	if len(tokens) == 0 {
		return
	}
	if err := f.ticker.Subscribe(tokens); err != nil {
		logger.ErrorWithErr(context.Background(), "resubscribe failed", err)
		return
	}
	_ = f.ticker.SetMode(kiteticker.ModeLTP, tokens)
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"nse-paper-trader/internal/alerts"
	"nse-paper-trader/internal/engine"
	"nse-paper-trader/internal/engine/engineobs"
	"nse-paper-trader/internal/eod"
	"nse-paper-trader/internal/eod/eodobs"
	"nse-paper-trader/internal/feed"
	"nse-paper-trader/internal/interfaces"
	"nse-paper-trader/internal/logger"
	"nse-paper-trader/internal/recorder"
	"nse-paper-trader/internal/scheduler"
	"nse-paper-trader/internal/state"
	"nse-paper-trader/internal/store"
	"nse-paper-trader/internal/trace"
	"nse-paper-trader/internal/tradelog"
	"nse-paper-trader/internal/types"

	"github.com/joho/godotenv"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	_ = godotenv.Load()
	cfg, err := store.LoadConfig(configPath())
	must(err)

	must(logger.Init())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	must(trace.Init())
	defer trace.Shutdown(ctx)

	if v := os.Getenv("TRADER_LOG_RETENTION_DAYS"); v != "" {
		var n int
		fmt.Sscanf(v, "%d", &n)
		_ = tradelog.CompressOlder(n)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	hub := alerts.NewHub(alerts.LogNotifier{})
	if url := os.Getenv("DISCORD_WEBHOOK_URL"); url != "" {
		hub.Register(alerts.NewDiscordNotifier(url))
	}
	if cfg.Recorder.Enabled {
		rec, err := recorder.NewSQLiteRecorder(cfg.Recorder.Path)
		must(err)
		defer rec.Close()
		hub.Register(rec)
		logger.Info(ctx, "sqlite recorder opened", "path", cfg.Recorder.Path)
	}

	states, err := state.NewFileStore(cfg.DataDir)
	must(err)

	swing, err := engine.New(ctx, "swing", types.Swing, cfg.Swing,
		cfg.InitialCapital*cfg.Swing.CapitalPct, states, hub)
	must(err)
	positional, err := engine.New(ctx, "positional", types.Positional, cfg.Positional,
		cfg.InitialCapital*cfg.Positional.CapitalPct, states, hub)
	must(err)

	desk := engine.NewDesk(engineobs.Wrap(swing), engineobs.Wrap(positional))

	var prices interfaces.PriceFeed
	switch {
	case cfg.Mode == "DRY_RUN":
		logger.Info(ctx, "running in DRY_RUN mode with simulated prices")
		prices = feed.NewStaticFeed()
	case os.Getenv("KITE_STREAMING") == "true":
		tf := feed.NewTickerFeed(os.Getenv("KITE_API_KEY"), os.Getenv("KITE_ACCESS_TOKEN"), cfg.Exchange)
		tf.Start(ctx)
		defer tf.Stop()
		prices = tf
	default:
		prices = feed.NewKiteFeed(os.Getenv("KITE_API_KEY"), os.Getenv("KITE_ACCESS_TOKEN"), cfg.Exchange)
	}

	signals, err := feed.NewDirSource(cfg.SignalDir)
	must(err)

	sched := scheduler.New(ctx, desk, prices, signals, eodobs.Wrap(eod.NewSummarizer()))
	must(sched.RegisterAll(cfg.Schedule.MonitorCron, cfg.Schedule.EODCron))
	sched.Start()
	defer sched.Stop()

	if os.Getenv("RUN_ON_START") == "true" {
		sched.RunMonitorNow()
	}

	logger.Info(ctx, "trader started",
		"mode", cfg.Mode,
		"exchange", cfg.Exchange,
		"capital", cfg.InitialCapital,
	)

	select {
	case <-sigc:
		logger.Info(ctx, "shutting down")
	case <-ctx.Done():
	}
}

func configPath() string {
	if v := os.Getenv("TRADER_CONFIG"); v != "" {
		return v
	}
	return "config.yaml"
}

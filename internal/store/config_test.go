package store

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "mode: DRY_RUN\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.InitialCapital != 100000 {
		t.Errorf("Expected default capital 100000, got %f", cfg.InitialCapital)
	}
	if cfg.Swing.CapitalPct != 0.30 || cfg.Positional.CapitalPct != 0.70 {
		t.Errorf("Expected 30/70 split, got %f/%f", cfg.Swing.CapitalPct, cfg.Positional.CapitalPct)
	}
	if cfg.Swing.Sizing.RiskPerTradePct != 0.02 {
		t.Errorf("Expected default risk 0.02, got %f", cfg.Swing.Sizing.RiskPerTradePct)
	}
	if cfg.Swing.Exits.SwingMaxHoldDays != 15 || cfg.Swing.Exits.PositionalMaxHoldDays != 90 {
		t.Error("Expected default hold bounds 15/90")
	}
	if cfg.Positional.Replacement.MinScore != 8.5 {
		t.Errorf("Expected replacement floor 8.5, got %f", cfg.Positional.Replacement.MinScore)
	}
	if cfg.Schedule.MonitorCron == "" || cfg.Schedule.EODCron == "" {
		t.Error("Expected default cron expressions")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
mode: LIVE
initial_capital: 500000
swing:
  capital_pct: 0.40
  max_positions: 5
  sizing:
    risk_per_trade_pct: 0.01
positional:
  capital_pct: 0.60
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Mode != "LIVE" {
		t.Errorf("Expected LIVE, got %s", cfg.Mode)
	}
	if cfg.Swing.MaxPositions != 5 {
		t.Errorf("Expected 5 max positions, got %d", cfg.Swing.MaxPositions)
	}
	if cfg.Swing.Sizing.RiskPerTradePct != 0.01 {
		t.Errorf("Expected overridden risk 0.01, got %f", cfg.Swing.Sizing.RiskPerTradePct)
	}
	// Untouched fields still default.
	if cfg.Swing.Sizing.MaxPositionPct != 0.25 {
		t.Errorf("Expected default position cap, got %f", cfg.Swing.Sizing.MaxPositionPct)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"bad mode", "mode: PAPER\n"},
		{"negative capital", "initial_capital: -5\n"},
		{"split too large", "swing:\n  capital_pct: 0.60\npositional:\n  capital_pct: 0.60\n"},
		{"risk out of range", "swing:\n  sizing:\n    risk_per_trade_pct: 1.5\n"},
		{"trail distance out of range", "swing:\n  exits:\n    trail_distance_pct: 1.2\n"},
	}
	for _, c := range cases {
		path := writeConfig(t, c.content)
		if _, err := LoadConfig(path); err == nil {
			t.Errorf("%s: expected validation error", c.name)
		}
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

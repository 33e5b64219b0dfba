package store

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SizingConfig holds the position-sizer thresholds for one portfolio.
type SizingConfig struct {
	RiskPerTradePct float64 `yaml:"risk_per_trade_pct"`
	MaxPositionPct  float64 `yaml:"max_position_pct"`
	MinScore        float64 `yaml:"min_score"`
	QualityFloor    float64 `yaml:"quality_floor"`
	QualityBase     float64 `yaml:"quality_base"`
	QualitySlope    float64 `yaml:"quality_slope"`
	QualityCap      float64 `yaml:"quality_cap"`
}

// ExitConfig holds the exit-evaluator thresholds for one portfolio.
// The source system never settled on single stop/target magnitudes across
// its strategy variants, so every magnitude is a config input here.
type ExitConfig struct {
	Target1Fraction       float64 `yaml:"target1_fraction"`
	Target2Fraction       float64 `yaml:"target2_fraction"`
	Target1LockInPct      float64 `yaml:"target1_lock_in_pct"`
	Target2LockInPct      float64 `yaml:"target2_lock_in_pct"`
	TrailActivationPct    float64 `yaml:"trail_activation_pct"`
	TrailDistancePct      float64 `yaml:"trail_distance_pct"`
	TimeExitProfitPct     float64 `yaml:"time_exit_profit_pct"`
	SwingMaxHoldDays      int     `yaml:"swing_max_hold_days"`
	PositionalMaxHoldDays int     `yaml:"positional_max_hold_days"`
}

// ReplacementConfig holds the eviction-arbitration policy. The weakness
// weights are tuning parameters, not fixed law.
type ReplacementConfig struct {
	Enabled        bool    `yaml:"enabled"`
	MinScore       float64 `yaml:"min_score"`
	MinScoreMargin float64 `yaml:"min_score_margin"`
	PnLWeight      float64 `yaml:"pnl_weight"`
	ScoreWeight    float64 `yaml:"score_weight"`
}

// PortfolioConfig is the full, immutable policy for one portfolio variant.
// Two variants with different thresholds run side by side without any
// process-wide state.
type PortfolioConfig struct {
	CapitalPct   float64           `yaml:"capital_pct"`
	MaxPositions int               `yaml:"max_positions"`
	Sizing       SizingConfig      `yaml:"sizing"`
	Exits        ExitConfig        `yaml:"exits"`
	Replacement  ReplacementConfig `yaml:"replacement"`
}

type Config struct {
	Mode           string  `yaml:"mode"`        // DRY_RUN or LIVE
	Exchange       string  `yaml:"exchange"`    // NSE
	InitialCapital float64 `yaml:"initial_capital"`
	PollSeconds    int     `yaml:"poll_seconds"`
	SignalDir      string  `yaml:"signal_dir"`
	DataDir        string  `yaml:"data_dir"`

	Swing      PortfolioConfig `yaml:"swing"`
	Positional PortfolioConfig `yaml:"positional"`

	Recorder struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"recorder"`

	Schedule struct {
		MonitorCron string `yaml:"monitor_cron"`
		EODCron     string `yaml:"eod_cron"`
	} `yaml:"schedule"`
}

func (c *Config) Validate() error {
	if c.Mode != "DRY_RUN" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if c.InitialCapital <= 0 {
		return fmt.Errorf("initial_capital must be positive, got %.2f", c.InitialCapital)
	}
	if c.Swing.CapitalPct+c.Positional.CapitalPct > 1.0001 {
		return fmt.Errorf("swing and positional capital_pct sum to %.2f, must not exceed 1.0",
			c.Swing.CapitalPct+c.Positional.CapitalPct)
	}
	for name, pc := range map[string]PortfolioConfig{"swing": c.Swing, "positional": c.Positional} {
		if err := pc.validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func (pc PortfolioConfig) validate() error {
	if pc.CapitalPct <= 0 || pc.CapitalPct > 1 {
		return fmt.Errorf("capital_pct must be in (0, 1], got %.2f", pc.CapitalPct)
	}
	if pc.MaxPositions <= 0 {
		return fmt.Errorf("max_positions must be positive, got %d", pc.MaxPositions)
	}
	s := pc.Sizing
	if s.RiskPerTradePct <= 0 || s.RiskPerTradePct >= 1 {
		return fmt.Errorf("sizing.risk_per_trade_pct must be in (0, 1), got %.3f", s.RiskPerTradePct)
	}
	if s.MaxPositionPct <= 0 || s.MaxPositionPct > 1 {
		return fmt.Errorf("sizing.max_position_pct must be in (0, 1], got %.3f", s.MaxPositionPct)
	}
	if s.QualityCap <= 0 {
		return fmt.Errorf("sizing.quality_cap must be positive, got %.2f", s.QualityCap)
	}
	e := pc.Exits
	if e.Target1Fraction <= 0 || e.Target1Fraction > 1 || e.Target2Fraction <= 0 || e.Target2Fraction > 1 {
		return fmt.Errorf("exits.target fractions must be in (0, 1]")
	}
	if e.TrailDistancePct <= 0 || e.TrailDistancePct >= 1 {
		return fmt.Errorf("exits.trail_distance_pct must be in (0, 1), got %.3f", e.TrailDistancePct)
	}
	if e.SwingMaxHoldDays <= 0 || e.PositionalMaxHoldDays <= 0 {
		return fmt.Errorf("exits max hold days must be positive")
	}
	r := pc.Replacement
	if r.Enabled && r.MinScoreMargin < 0 {
		return fmt.Errorf("replacement.min_score_margin must be non-negative, got %.2f", r.MinScoreMargin)
	}
	return nil
}

// MaxHoldDays returns the hold bound for a strategy class under this config.
func (e ExitConfig) MaxHoldDays(positional bool) int {
	if positional {
		return e.PositionalMaxHoldDays
	}
	return e.SwingMaxHoldDays
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = "DRY_RUN"
	}
	if c.Exchange == "" {
		c.Exchange = "NSE"
	}
	if c.InitialCapital == 0 {
		c.InitialCapital = 100000
	}
	if c.PollSeconds == 0 {
		c.PollSeconds = 300
	}
	if c.SignalDir == "" {
		c.SignalDir = "data/signals"
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Recorder.Path == "" {
		c.Recorder.Path = "data/trades.db"
	}
	if c.Schedule.MonitorCron == "" {
		c.Schedule.MonitorCron = "*/5 9-15 * * MON-FRI"
	}
	if c.Schedule.EODCron == "" {
		c.Schedule.EODCron = "45 15 * * MON-FRI"
	}
	if c.Swing.CapitalPct == 0 && c.Positional.CapitalPct == 0 {
		c.Swing.CapitalPct = 0.30
		c.Positional.CapitalPct = 0.70
	}
	applyPortfolioDefaults(&c.Swing)
	applyPortfolioDefaults(&c.Positional)
}

func applyPortfolioDefaults(pc *PortfolioConfig) {
	if pc.MaxPositions == 0 {
		pc.MaxPositions = 10
	}
	s := &pc.Sizing
	if s.RiskPerTradePct == 0 {
		s.RiskPerTradePct = 0.02
	}
	if s.MaxPositionPct == 0 {
		s.MaxPositionPct = 0.25
	}
	if s.MinScore == 0 {
		s.MinScore = 7.0
	}
	if s.QualityFloor == 0 {
		s.QualityFloor = 7.0
	}
	if s.QualityBase == 0 {
		s.QualityBase = 0.5
	}
	if s.QualitySlope == 0 {
		s.QualitySlope = 0.5
	}
	if s.QualityCap == 0 {
		s.QualityCap = 2.0
	}
	e := &pc.Exits
	if e.Target1Fraction == 0 {
		e.Target1Fraction = 0.40
	}
	if e.Target2Fraction == 0 {
		e.Target2Fraction = 0.40
	}
	if e.Target1LockInPct == 0 {
		e.Target1LockInPct = 0.03
	}
	if e.Target2LockInPct == 0 {
		e.Target2LockInPct = 0.06
	}
	if e.TrailActivationPct == 0 {
		e.TrailActivationPct = 0.05
	}
	if e.TrailDistancePct == 0 {
		e.TrailDistancePct = 0.03
	}
	if e.TimeExitProfitPct == 0 {
		e.TimeExitProfitPct = 0.03
	}
	if e.SwingMaxHoldDays == 0 {
		e.SwingMaxHoldDays = 15
	}
	if e.PositionalMaxHoldDays == 0 {
		e.PositionalMaxHoldDays = 90
	}
	r := &pc.Replacement
	if r.MinScore == 0 {
		r.MinScore = 8.5
	}
	if r.MinScoreMargin == 0 {
		r.MinScoreMargin = 0.5
	}
	if r.PnLWeight == 0 {
		r.PnLWeight = 1.0
	}
	if r.ScoreWeight == 0 {
		r.ScoreWeight = 10.0
	}
}

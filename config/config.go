package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/hedger/market"
)

// Config represents the complete engine configuration
type Config struct {
	Account     AccountConfig      `json:"account" yaml:"account"`
	Blackout    BlackoutConfig     `json:"blackout" yaml:"blackout"`
	Poll        PollConfig         `json:"poll" yaml:"poll"`
	Window      WindowConfig       `json:"window" yaml:"window"`
	Thresholds  ThresholdConfig    `json:"thresholds" yaml:"thresholds"`
	Levels      LevelsConfig       `json:"levels" yaml:"levels"`
	Instruments []InstrumentConfig `json:"instruments" yaml:"instruments"`
	Providers   ProvidersConfig    `json:"providers" yaml:"providers"`
	Advisory    AdvisoryConfig     `json:"advisory" yaml:"advisory"`
	Journal     JournalConfig      `json:"journal" yaml:"journal"`
	API         APIConfig          `json:"api" yaml:"api"`
	Log         LogConfig          `json:"log" yaml:"log"`
}

// AccountConfig contains the capital the risk governor protects
type AccountConfig struct {
	StartingCapital float64 `json:"starting_capital" yaml:"starting_capital"`
	Leverage        float64 `json:"leverage" yaml:"leverage"`
	MaxDailyLoss    float64 `json:"max_daily_loss" yaml:"max_daily_loss"` // fraction of starting capital
	Volume          float64 `json:"volume" yaml:"volume"`                 // units per trade
	RiskPerTrade    float64 `json:"risk_per_trade" yaml:"risk_per_trade"` // sizing hint; 0 disables
	AutoResetDaily  bool    `json:"auto_reset_daily" yaml:"auto_reset_daily"`
}

// BlackoutConfig lists high-impact event dates (YYYY-MM-DD) in Timezone
type BlackoutConfig struct {
	Dates    []string `json:"dates" yaml:"dates"`
	Timezone string   `json:"timezone" yaml:"timezone"`
}

type PollConfig struct {
	Interval       Duration `json:"interval" yaml:"interval"`
	AdapterTimeout Duration `json:"adapter_timeout" yaml:"adapter_timeout"`
	CycleTimeout   Duration `json:"cycle_timeout" yaml:"cycle_timeout"`
	StalePrimary   Duration `json:"stale_primary" yaml:"stale_primary"`
	StaleReference Duration `json:"stale_reference" yaml:"stale_reference"`
	UnhealthyAfter int      `json:"unhealthy_after" yaml:"unhealthy_after"`
}

// WindowConfig sizes the history buffers and rolling statistics
type WindowConfig struct {
	History     int  `json:"history" yaml:"history"`
	Correlation int  `json:"correlation" yaml:"correlation"`
	Trend       int  `json:"trend" yaml:"trend"`
	MinSamples  int  `json:"min_samples" yaml:"min_samples"`
	Backfill    bool `json:"backfill" yaml:"backfill"`
}

type ThresholdConfig struct {
	StressCorrelation   float64 `json:"stress_correlation" yaml:"stress_correlation"`
	SignalCorrelation   float64 `json:"signal_correlation" yaml:"signal_correlation"`
	MinReferenceTrend   float64 `json:"min_reference_trend" yaml:"min_reference_trend"`
	ZEntry              float64 `json:"z_entry" yaml:"z_entry"`
	StrengthCorrelation float64 `json:"strength_correlation" yaml:"strength_correlation"`
	MinStrengthTrend    float64 `json:"min_strength_trend" yaml:"min_strength_trend"`
	BandGreen           float64 `json:"band_green" yaml:"band_green"`
	BandAmber           float64 `json:"band_amber" yaml:"band_amber"`
}

// LevelsConfig holds target/stop offsets in primary price units
type LevelsConfig struct {
	TargetOffset     float64 `json:"target_offset" yaml:"target_offset"`
	StopOffset       float64 `json:"stop_offset" yaml:"stop_offset"`
	SpreadMultiplier float64 `json:"spread_multiplier" yaml:"spread_multiplier"`
	EstimatedSpread  float64 `json:"estimated_spread" yaml:"estimated_spread"`
	PipLocation      int     `json:"pip_location" yaml:"pip_location"`
}

// InstrumentConfig declares one instrument. Sources are tried in order.
type InstrumentConfig struct {
	ID       string         `json:"id" yaml:"id"`
	Role     string         `json:"role" yaml:"role"`
	Strength bool           `json:"strength,omitempty" yaml:"strength,omitempty"`
	Sources  []SourceConfig `json:"sources" yaml:"sources"`
}

// SourceConfig names a provider and the provider's symbol for the
// instrument. An empty symbol means the instrument ID.
type SourceConfig struct {
	Provider string `json:"provider" yaml:"provider"`
	Symbol   string `json:"symbol,omitempty" yaml:"symbol,omitempty"`
}

// Provider names accepted in SourceConfig.Provider
const (
	ProviderOANDA       = "oanda"
	ProviderOANDAStream = "oanda-stream"
	ProviderYahoo       = "yahoo"
	ProviderWebsocket   = "websocket"
)

type ProvidersConfig struct {
	OANDA     OANDAConfig     `json:"oanda" yaml:"oanda"`
	Yahoo     YahooConfig     `json:"yahoo" yaml:"yahoo"`
	Websocket WebsocketConfig `json:"websocket" yaml:"websocket"`
}

type OANDAConfig struct {
	Env       string `json:"env" yaml:"env"` // practice|live
	AccountID string `json:"account_id,omitempty" yaml:"account_id,omitempty"`
	Token     string `json:"token,omitempty" yaml:"token,omitempty"`
	BaseURL   string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

type YahooConfig struct {
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

type WebsocketConfig struct {
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// AdvisoryConfig points at the external ML scorer. Empty URL disables it.
type AdvisoryConfig struct {
	URL     string   `json:"url,omitempty" yaml:"url,omitempty"`
	Timeout Duration `json:"timeout" yaml:"timeout"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type string `json:"type" yaml:"type"` // "csv" or "sqlite"
	Path string `json:"path" yaml:"path"`
}

type APIConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"`
}

// LoadFromFile loads configuration from a file (JSON or YAML)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	// the file replaces the default instrument list rather than merging into it
	cfg.Instruments = nil
	cfg.Blackout.Dates = nil

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	cfg.ApplyEnv()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadEnv reads KEY=VALUE pairs from the given files into the process
// environment. Missing files are ignored; existing variables win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides credentials and addresses from the environment.
func (c *Config) ApplyEnv() {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Providers.OANDA.Token, "OANDA_TOKEN")
	set(&c.Providers.OANDA.AccountID, "OANDA_ACCOUNT_ID")
	set(&c.Providers.OANDA.Env, "OANDA_ENV")
	set(&c.Advisory.URL, "HEDGER_ADVISORY_URL")
	set(&c.API.Addr, "HEDGER_API_ADDR")
	set(&c.Log.Level, "HEDGER_LOG_LEVEL")
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	// Determine format by extension
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// credentials may be in here
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	a := c.Account
	if a.StartingCapital <= 0 {
		return fmt.Errorf("account.starting_capital must be positive")
	}
	if a.Leverage < 1 {
		return fmt.Errorf("account.leverage must be at least 1")
	}
	if a.MaxDailyLoss <= 0 || a.MaxDailyLoss > 1 {
		return fmt.Errorf("account.max_daily_loss must be between 0 and 1")
	}
	if a.Volume <= 0 {
		return fmt.Errorf("account.volume must be positive")
	}
	if a.RiskPerTrade < 0 || a.RiskPerTrade > 0.1 {
		return fmt.Errorf("account.risk_per_trade must be between 0 and 0.1")
	}

	if _, err := c.Blackout.Location(); err != nil {
		return fmt.Errorf("blackout.timezone: %w", err)
	}
	for _, d := range c.Blackout.Dates {
		if _, err := time.Parse(DateLayout, d); err != nil {
			return fmt.Errorf("blackout date %q: want YYYY-MM-DD", d)
		}
	}

	p := c.Poll
	if p.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive")
	}
	if p.AdapterTimeout <= 0 || p.AdapterTimeout >= p.Interval {
		return fmt.Errorf("poll.adapter_timeout must be positive and shorter than poll.interval")
	}
	if p.CycleTimeout <= 0 || p.CycleTimeout >= p.Interval {
		return fmt.Errorf("poll.cycle_timeout must be positive and shorter than poll.interval")
	}
	if p.AdapterTimeout > p.CycleTimeout {
		return fmt.Errorf("poll.adapter_timeout cannot exceed poll.cycle_timeout")
	}
	if p.StalePrimary < 0 || p.StaleReference < 0 {
		return fmt.Errorf("poll stale limits cannot be negative")
	}
	if p.UnhealthyAfter < 1 {
		return fmt.Errorf("poll.unhealthy_after must be at least 1")
	}

	w := c.Window
	if w.History < 15 || w.History > 150 {
		return fmt.Errorf("window.history must be between 15 and 150")
	}
	if w.Correlation < 2 || w.Correlation > w.History {
		return fmt.Errorf("window.correlation must be between 2 and window.history")
	}
	if w.Trend < 1 || w.Trend >= w.Correlation {
		return fmt.Errorf("window.trend must be positive and shorter than window.correlation")
	}
	// the statistics only ever see the correlation window
	if w.MinSamples < 2 || w.MinSamples > w.Correlation {
		return fmt.Errorf("window.min_samples must be between 2 and window.correlation")
	}

	t := c.Thresholds
	for name, v := range map[string]float64{
		"stress_correlation":   t.StressCorrelation,
		"signal_correlation":   t.SignalCorrelation,
		"strength_correlation": t.StrengthCorrelation,
		"band_green":           t.BandGreen,
		"band_amber":           t.BandAmber,
	} {
		if v < -1 || v > 1 {
			return fmt.Errorf("thresholds.%s must be between -1 and 1", name)
		}
	}
	if t.SignalCorrelation >= t.StressCorrelation {
		return fmt.Errorf("thresholds.signal_correlation must be below thresholds.stress_correlation")
	}
	if t.BandGreen >= t.BandAmber {
		return fmt.Errorf("thresholds.band_green must be below thresholds.band_amber")
	}
	if t.MinReferenceTrend < 0 || t.MinStrengthTrend < 0 || t.ZEntry < 0 {
		return fmt.Errorf("thresholds trend minimums and z_entry cannot be negative")
	}

	l := c.Levels
	if l.StopOffset <= 0 {
		return fmt.Errorf("levels.stop_offset must be positive")
	}
	if l.TargetOffset <= l.StopOffset {
		return fmt.Errorf("levels.target_offset must be greater than levels.stop_offset")
	}
	if l.SpreadMultiplier < 1 {
		return fmt.Errorf("levels.spread_multiplier must be at least 1")
	}
	if l.EstimatedSpread < 0 {
		return fmt.Errorf("levels.estimated_spread cannot be negative")
	}

	if err := c.validateInstruments(); err != nil {
		return err
	}

	if c.Journal.Type != "csv" && c.Journal.Type != "sqlite" {
		return fmt.Errorf("journal.type must be 'csv' or 'sqlite'")
	}
	if c.Journal.Path == "" {
		return fmt.Errorf("journal.path is required")
	}
	return nil
}

func (c *Config) validateInstruments() error {
	var primaries, hedges, strength int
	seen := map[string]bool{}
	for i, ic := range c.Instruments {
		if ic.ID == "" {
			return fmt.Errorf("instruments[%d].id is required", i)
		}
		if seen[ic.ID] {
			return fmt.Errorf("duplicate instrument: %s", ic.ID)
		}
		seen[ic.ID] = true

		inst, err := ic.Instrument()
		if err != nil {
			return fmt.Errorf("instrument %s: %w", ic.ID, err)
		}
		switch {
		case inst.IsPrimary():
			if ic.Strength {
				return fmt.Errorf("instrument %s: primary cannot be a strength reference", ic.ID)
			}
			primaries++
		case inst.Hedge():
			hedges++
		default:
			strength++
		}

		if len(ic.Sources) == 0 {
			return fmt.Errorf("instrument %s: at least one source is required", ic.ID)
		}
		for _, s := range ic.Sources {
			switch s.Provider {
			case ProviderOANDA, ProviderOANDAStream, ProviderYahoo:
			case ProviderWebsocket:
				if c.Providers.Websocket.URL == "" {
					return fmt.Errorf("instrument %s: websocket source needs providers.websocket.url", ic.ID)
				}
			default:
				return fmt.Errorf("instrument %s: unknown provider %q", ic.ID, s.Provider)
			}
		}
	}
	if primaries != 1 {
		return fmt.Errorf("exactly one primary instrument is required, got %d", primaries)
	}
	if hedges == 0 {
		return fmt.Errorf("at least one non-strength reference instrument is required")
	}
	if strength > 1 {
		return fmt.Errorf("at most one strength reference is allowed")
	}
	return nil
}

// Instrument converts the config entry to a market.Instrument.
func (ic InstrumentConfig) Instrument() (market.Instrument, error) {
	role, err := market.ParseRole(ic.Role)
	if err != nil {
		return market.Instrument{}, err
	}
	return market.Instrument{ID: ic.ID, Role: role, Strength: ic.Strength}, nil
}

// DateLayout is the blackout date format
const DateLayout = "2006-01-02"

// Location resolves the blackout timezone; empty means UTC.
func (b BlackoutConfig) Location() (*time.Location, error) {
	if b.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(b.Timezone)
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			StartingCapital: 500000,
			Leverage:        10,
			MaxDailyLoss:    0.02,
			Volume:          1000,
			RiskPerTrade:    0.005,
			AutoResetDaily:  true,
		},
		Blackout: BlackoutConfig{
			Dates:    []string{"2026-01-09", "2026-01-13", "2026-01-27", "2026-01-28"},
			Timezone: "America/Santiago",
		},
		Poll: PollConfig{
			Interval:       Duration(time.Minute),
			AdapterTimeout: Duration(10 * time.Second),
			CycleTimeout:   Duration(30 * time.Second),
			StalePrimary:   Duration(3 * time.Minute),
			StaleReference: Duration(15 * time.Minute),
			UnhealthyAfter: 5,
		},
		Window: WindowConfig{
			History:     60,
			Correlation: 30,
			Trend:       8,
			MinSamples:  20,
			Backfill:    true,
		},
		Thresholds: ThresholdConfig{
			StressCorrelation:   0.0,
			SignalCorrelation:   -0.5,
			StrengthCorrelation: 0.5,
			BandGreen:           -0.7,
			BandAmber:           -0.4,
		},
		Levels: LevelsConfig{
			TargetOffset:     2.5,
			StopOffset:       1.5,
			SpreadMultiplier: 2,
			EstimatedSpread:  0.5,
			PipLocation:      -2,
		},
		Instruments: []InstrumentConfig{
			{ID: "USD_CLP", Role: "primary", Sources: []SourceConfig{
				{Provider: ProviderOANDA},
				{Provider: ProviderYahoo, Symbol: "CLP=X"},
			}},
			{ID: "XAU_USD", Role: "reference", Sources: []SourceConfig{
				{Provider: ProviderOANDA},
				{Provider: ProviderYahoo, Symbol: "GC=F"},
			}},
			{ID: "DXY", Role: "reference", Strength: true, Sources: []SourceConfig{
				{Provider: ProviderYahoo, Symbol: "DX-Y.NYB"},
			}},
		},
		Providers: ProvidersConfig{
			OANDA: OANDAConfig{Env: "practice"},
		},
		Advisory: AdvisoryConfig{Timeout: Duration(2 * time.Second)},
		Journal: JournalConfig{
			Type: "csv",
			Path: "./trades.csv",
		},
		API: APIConfig{Addr: ":8080"},
		Log: LogConfig{Level: "info"},
	}
}

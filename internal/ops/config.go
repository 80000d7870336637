package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Market   MarketConfig   `json:"market"`
	Risk     RiskConfig     `json:"risk"`
	Sizing   SizingConfig   `json:"sizing"`
	Signal   SignalConfig   `json:"signal"`
	Broker   BrokerConfig   `json:"broker"`
	Postgres PostgresConfig `json:"postgres"`
	Server   ServerConfig   `json:"server"`
	Profiler ProfilerConfig `json:"profiler"`
}

// MarketConfig defines the trading-day windows in exchange-local clock time.
type MarketConfig struct {
	Timezone             string `json:"timezone"`
	PreOpen              string `json:"preOpen"`
	Open                 string `json:"open"`
	Cutoff               string `json:"cutoff"`
	Close                string `json:"close"`
	DecisionMinutes      int    `json:"decisionMinutes"`
	DecisionWindowSec    int    `json:"decisionWindowSec"`
	CredentialRefreshSec int    `json:"credentialRefreshSec"`
}

// RiskConfig defines daily P&L caps as percentages of balance.
type RiskConfig struct {
	MaxLossPct   float64 `json:"maxLossPct"`
	MaxProfitPct float64 `json:"maxProfitPct"`
}

// SizingConfig defines how much of the balance one entry may use.
type SizingConfig struct {
	CapitalFraction float64 `json:"capitalFraction"`
}

// SignalConfig tunes level evaluation and strike selection.
type SignalConfig struct {
	SecondaryOverride *bool `json:"secondaryOverride"`
	CrossoverExit     *bool `json:"crossoverExit"`
	StrikeStep        int64 `json:"strikeStep"`
	StrikeOffset      int64 `json:"strikeOffset"`
}

// BrokerConfig points at the broker endpoints and the market-data credential.
type BrokerConfig struct {
	BaseURL           string `json:"baseUrl"`
	ScripMasterURL    string `json:"scripMasterUrl"`
	AdminCredentialID string `json:"adminCredentialId"`
	CandleInterval    string `json:"candleInterval"`
	CandleLookbackMin int    `json:"candleLookbackMin"`
	CatalogRefreshHr  int    `json:"catalogRefreshHours"`
}

// PostgresConfig carries connection parameters.
type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode"`
}

// ServerConfig configures the control/metrics listener.
type ServerConfig struct {
	ListenAddr string `json:"listenAddr"`
}

// ProfilerConfig enables the optional continuous profiler.
type ProfilerConfig struct {
	Enable        bool   `json:"enable"`
	ServerAddress string `json:"serverAddress"`
}

// ClockTime is minutes since local midnight.
type ClockTime int

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Location *time.Location

	PreOpen ClockTime
	Open    ClockTime
	Cutoff  ClockTime
	Close   ClockTime

	DecisionInterval  time.Duration
	DecisionWindow    time.Duration
	CredentialRefresh time.Duration

	MaxLossPct   float64
	MaxProfitPct float64

	CapitalFraction float64

	SecondaryOverride bool
	CrossoverExit     bool
	StrikeStep        int64
	StrikeOffset      int64

	BrokerBaseURL     string
	ScripMasterURL    string
	AdminCredentialID string
	CandleInterval    string
	CandleLookback    time.Duration
	CatalogRefresh    time.Duration

	Postgres PostgresConfig

	ListenAddr string
	Profiler   ProfilerConfig
}

const (
	defaultTimezone      = "Asia/Kolkata"
	defaultPreOpen       = "08:30"
	defaultOpen          = "09:30"
	defaultCutoff        = "15:15"
	defaultClose         = "15:30"
	defaultBrokerBaseURL = "https://apiconnect.angelone.in"
	defaultScripMaster   = "https://margincalculator.angelbroking.com/OpenAPI_File/files/OpenAPIScripMaster.json"
	defaultListenAddr    = ":3004"
)

// Load reads a JSON config file and resolves it. An empty path yields the
// defaults.
func Load(path string) (Loaded, error) {
	var cfg FileConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Loaded{}, err
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Loaded{}, err
		}
	}
	return Resolve(cfg)
}

// Resolve validates the file config and fills defaults.
func Resolve(cfg FileConfig) (Loaded, error) {
	loaded := Loaded{}

	tz := cfg.Market.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		// IST has no DST; a fixed offset keeps the engine alive on hosts
		// without tzdata.
		if tz != defaultTimezone {
			return Loaded{}, fmt.Errorf("unknown timezone: %s", tz)
		}
		loc = time.FixedZone("IST", 5*3600+1800)
	}
	loaded.Location = loc

	if loaded.PreOpen, err = parseClock(orDefault(cfg.Market.PreOpen, defaultPreOpen)); err != nil {
		return Loaded{}, fmt.Errorf("market.preOpen: %w", err)
	}
	if loaded.Open, err = parseClock(orDefault(cfg.Market.Open, defaultOpen)); err != nil {
		return Loaded{}, fmt.Errorf("market.open: %w", err)
	}
	if loaded.Cutoff, err = parseClock(orDefault(cfg.Market.Cutoff, defaultCutoff)); err != nil {
		return Loaded{}, fmt.Errorf("market.cutoff: %w", err)
	}
	if loaded.Close, err = parseClock(orDefault(cfg.Market.Close, defaultClose)); err != nil {
		return Loaded{}, fmt.Errorf("market.close: %w", err)
	}
	if !(loaded.PreOpen < loaded.Open && loaded.Open < loaded.Cutoff && loaded.Cutoff <= loaded.Close) {
		return Loaded{}, fmt.Errorf("market windows must be ordered preOpen < open < cutoff <= close")
	}

	loaded.DecisionInterval = time.Duration(intOrDefault(cfg.Market.DecisionMinutes, 5)) * time.Minute
	loaded.DecisionWindow = time.Duration(intOrDefault(cfg.Market.DecisionWindowSec, 10)) * time.Second
	loaded.CredentialRefresh = time.Duration(intOrDefault(cfg.Market.CredentialRefreshSec, 40)) * time.Second

	loaded.MaxLossPct = floatOrDefault(cfg.Risk.MaxLossPct, 4)
	loaded.MaxProfitPct = floatOrDefault(cfg.Risk.MaxProfitPct, 8)
	if loaded.MaxLossPct <= 0 || loaded.MaxProfitPct <= 0 {
		return Loaded{}, fmt.Errorf("risk percentages must be > 0")
	}

	loaded.CapitalFraction = floatOrDefault(cfg.Sizing.CapitalFraction, 0.10)
	if loaded.CapitalFraction <= 0 || loaded.CapitalFraction > 1 {
		return Loaded{}, fmt.Errorf("sizing.capitalFraction must be in (0, 1]")
	}

	loaded.SecondaryOverride = boolOrDefault(cfg.Signal.SecondaryOverride, true)
	loaded.CrossoverExit = boolOrDefault(cfg.Signal.CrossoverExit, true)
	loaded.StrikeStep = int64OrDefault(cfg.Signal.StrikeStep, 100)
	loaded.StrikeOffset = int64OrDefault(cfg.Signal.StrikeOffset, 400)
	if loaded.StrikeStep <= 0 {
		return Loaded{}, fmt.Errorf("signal.strikeStep must be > 0")
	}

	loaded.BrokerBaseURL = orDefault(cfg.Broker.BaseURL, defaultBrokerBaseURL)
	loaded.ScripMasterURL = orDefault(cfg.Broker.ScripMasterURL, defaultScripMaster)
	loaded.AdminCredentialID = cfg.Broker.AdminCredentialID
	loaded.CandleInterval = orDefault(cfg.Broker.CandleInterval, "FIVE_MINUTE")
	loaded.CandleLookback = time.Duration(intOrDefault(cfg.Broker.CandleLookbackMin, 5)) * time.Minute
	loaded.CatalogRefresh = time.Duration(intOrDefault(cfg.Broker.CatalogRefreshHr, 24)) * time.Hour

	loaded.Postgres = cfg.Postgres
	loaded.ListenAddr = orDefault(cfg.Server.ListenAddr, defaultListenAddr)
	loaded.Profiler = cfg.Profiler

	return loaded, nil
}

// Within reports whether t falls inside [from, to].
func Within(t time.Time, from, to ClockTime) bool {
	m := ClockTime(t.Hour()*60 + t.Minute())
	return m >= from && m <= to
}

func parseClock(s string) (ClockTime, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock out of range: %q", s)
	}
	return ClockTime(h*60 + m), nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func intOrDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func int64OrDefault(v, def int64) int64 {
	if v == 0 {
		return def
	}
	return v
}

func floatOrDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Traderyo93/gapdash/internal/session"
)

// Config represents the complete application configuration
type Config struct {
	Polygon  PolygonConfig  `mapstructure:"polygon"`
	Scan     ScanConfig     `mapstructure:"scan"`
	Symbols  SymbolsConfig  `mapstructure:"symbols"`
	Session  SessionConfig  `mapstructure:"session"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Windows  WindowsConfig  `mapstructure:"windows"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// PolygonConfig holds market-data API configuration
type PolygonConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	MaxConcurrency    int           `mapstructure:"max_concurrency"`
	GroupedCacheTTL   time.Duration `mapstructure:"grouped_cache_ttl"`
}

// ScanConfig holds gap qualification thresholds
type ScanConfig struct {
	GapThresholdPct     float64 `mapstructure:"gap_threshold_pct"`
	MinOpenPrice        float64 `mapstructure:"min_open_price"`
	MinPremarketVolume  float64 `mapstructure:"min_premarket_volume"`
	MinVolume           float64 `mapstructure:"min_volume"`
	LookbackTradingDays int     `mapstructure:"lookback_trading_days"`
	AmbiguousGapPct     float64 `mapstructure:"ambiguous_gap_pct"`
	CorporateActions    bool    `mapstructure:"corporate_actions"`
	SplitLookbackDays   int     `mapstructure:"split_lookback_days"`
}

// SymbolsConfig holds ticker exclusion rules
type SymbolsConfig struct {
	MaxLength       int      `mapstructure:"max_length"`
	BlockedSuffixes []string `mapstructure:"blocked_suffixes"`
	Blocked         []string `mapstructure:"blocked"`
}

// SessionConfig describes the regular trading session
type SessionConfig struct {
	Timezone string `mapstructure:"timezone"`
	Start    string `mapstructure:"start"`
	End      string `mapstructure:"end"`
	Calendar string `mapstructure:"calendar"` // exchange MIC, e.g. xnys
}

// EngineConfig holds curve resolution settings
type EngineConfig struct {
	BucketMinutes int `mapstructure:"bucket_minutes"`
	GridPoints    int `mapstructure:"grid_points"`
}

// WindowsConfig controls which periods the dashboard materializes
type WindowsConfig struct {
	Days           int  `mapstructure:"days"`
	Weeks          int  `mapstructure:"weeks"`
	Months         int  `mapstructure:"months"`
	BackfillMonths bool `mapstructure:"backfill_months"`
	RecentGaps     int  `mapstructure:"recent_gaps"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DBPath        string `mapstructure:"db_path"`
	CachePath     string `mapstructure:"cache_path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	TopN           int           `mapstructure:"top_n"`
}

// ServerConfig holds the dashboard API listener configuration
type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// Every key can be overridden with GAPDASH_<SECTION>_<KEY>; the Polygon API
// key is also read from POLYGON_API_KEY.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set config file
	v.SetConfigFile(path)

	// Set defaults
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix("GAPDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("polygon.api_key", "GAPDASH_POLYGON_API_KEY", "POLYGON_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Polygon defaults
	v.SetDefault("polygon.api_key", "")
	v.SetDefault("polygon.timeout", "30s")
	v.SetDefault("polygon.requests_per_second", 8.0)
	v.SetDefault("polygon.burst", 1)
	v.SetDefault("polygon.max_concurrency", 4)
	v.SetDefault("polygon.grouped_cache_ttl", "6h")

	// Scan defaults
	v.SetDefault("scan.gap_threshold_pct", 50.0)
	v.SetDefault("scan.min_open_price", 0.30)
	v.SetDefault("scan.min_premarket_volume", 1_000_000.0)
	v.SetDefault("scan.min_volume", 0.0)
	v.SetDefault("scan.lookback_trading_days", 250)
	v.SetDefault("scan.ambiguous_gap_pct", 100.0)
	v.SetDefault("scan.corporate_actions", true)
	v.SetDefault("scan.split_lookback_days", 5)

	// Symbol exclusion defaults
	v.SetDefault("symbols.max_length", 4)
	v.SetDefault("symbols.blocked_suffixes", []string{"WS", "RT", "WSA"})
	v.SetDefault("symbols.blocked", []string{"ZVZZT", "ZWZZT", "ZBZZT"})

	// Session defaults
	v.SetDefault("session.timezone", "America/New_York")
	v.SetDefault("session.start", "09:30")
	v.SetDefault("session.end", "16:00")
	v.SetDefault("session.calendar", "xnys")

	// Engine defaults
	v.SetDefault("engine.bucket_minutes", 5)
	v.SetDefault("engine.grid_points", 78)

	// Window defaults
	v.SetDefault("windows.days", 12)
	v.SetDefault("windows.weeks", 12)
	v.SetDefault("windows.months", 12)
	v.SetDefault("windows.backfill_months", false)
	v.SetDefault("windows.recent_gaps", 50)

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/gapdash.db")
	v.SetDefault("storage.cache_path", "./gap_data_cache.json")
	v.SetDefault("storage.retention_days", 400)

	// Telegram defaults
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")
	v.SetDefault("telegram.top_n", 10)

	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Polygon config
	if c.Polygon.Timeout < time.Second {
		return fmt.Errorf("polygon.timeout must be at least 1 second")
	}
	if c.Polygon.RequestsPerSecond <= 0 {
		return fmt.Errorf("polygon.requests_per_second must be positive")
	}
	if c.Polygon.Burst < 1 {
		return fmt.Errorf("polygon.burst must be at least 1")
	}
	if c.Polygon.MaxConcurrency < 1 {
		return fmt.Errorf("polygon.max_concurrency must be at least 1")
	}
	if c.Polygon.GroupedCacheTTL < 0 {
		return fmt.Errorf("polygon.grouped_cache_ttl must not be negative")
	}

	// Validate Scan config
	if c.Scan.GapThresholdPct <= 0 {
		return fmt.Errorf("scan.gap_threshold_pct must be positive")
	}
	if c.Scan.MinOpenPrice < 0 {
		return fmt.Errorf("scan.min_open_price must not be negative")
	}
	if c.Scan.MinPremarketVolume < 0 || c.Scan.MinVolume < 0 {
		return fmt.Errorf("scan volume floors must not be negative")
	}
	if c.Scan.LookbackTradingDays < 1 {
		return fmt.Errorf("scan.lookback_trading_days must be at least 1")
	}
	if c.Scan.AmbiguousGapPct < c.Scan.GapThresholdPct {
		return fmt.Errorf("scan.ambiguous_gap_pct must be at least scan.gap_threshold_pct")
	}
	if c.Scan.SplitLookbackDays < 0 {
		return fmt.Errorf("scan.split_lookback_days must not be negative")
	}

	// Validate Symbols config
	if c.Symbols.MaxLength < 0 {
		return fmt.Errorf("symbols.max_length must not be negative")
	}

	// Validate Session config
	if _, err := c.Session.Location(); err != nil {
		return fmt.Errorf("session.timezone is invalid: %w", err)
	}
	start, err := session.ParseClock(c.Session.Start)
	if err != nil {
		return fmt.Errorf("session.start must be HH:MM: %w", err)
	}
	end, err := session.ParseClock(c.Session.End)
	if err != nil {
		return fmt.Errorf("session.end must be HH:MM: %w", err)
	}
	if end.Hour*60+end.Minute <= start.Hour*60+start.Minute {
		return fmt.Errorf("session.end must be after session.start")
	}

	// Validate Engine config
	if c.Engine.BucketMinutes < 1 {
		return fmt.Errorf("engine.bucket_minutes must be at least 1")
	}
	if c.Engine.GridPoints < 2 {
		return fmt.Errorf("engine.grid_points must be at least 2")
	}

	// Validate Windows config
	if c.Windows.Days < 1 || c.Windows.Weeks < 1 || c.Windows.Months < 1 {
		return fmt.Errorf("windows.days, windows.weeks and windows.months must be at least 1")
	}
	if c.Windows.RecentGaps < 0 {
		return fmt.Errorf("windows.recent_gaps must not be negative")
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.CachePath == "" {
		return fmt.Errorf("storage.cache_path is required")
	}
	if c.Storage.RetentionDays < 1 {
		return fmt.Errorf("storage.retention_days must be at least 1")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
		if c.Telegram.MaxRetries < 1 {
			return fmt.Errorf("telegram.max_retries must be at least 1")
		}
		if c.Telegram.TopN < 1 {
			return fmt.Errorf("telegram.top_n must be at least 1")
		}
	}

	// Validate Server config
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// ValidateUpdate checks everything Validate does plus what a data update needs.
func (c *Config) ValidateUpdate() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Polygon.APIKey == "" {
		return fmt.Errorf("polygon.api_key is required (set POLYGON_API_KEY)")
	}
	return nil
}

// Location loads the session timezone.
func (s SessionConfig) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}

// Clocks parses the session start and end times.
func (s SessionConfig) Clocks() (start, end session.Clock, err error) {
	if start, err = session.ParseClock(s.Start); err != nil {
		return
	}
	end, err = session.ParseClock(s.End)
	return
}

// Addr returns the listen address of the API server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

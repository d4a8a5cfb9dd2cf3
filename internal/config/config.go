// Package config provides configuration management using Viper.
// It loads configuration from environment variables, .env files, and config files.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerPort      = 8080
	defaultServerHost      = "0.0.0.0"
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second

	defaultDatabasePath           = "./data/evercast.db"
	defaultDatabaseEnableWAL      = true
	defaultDatabaseBusyTimeout    = 5 * time.Second
	defaultDatabaseMigrationsPath = "file://./migrations"

	defaultLogLevel  = "info"
	defaultLogPretty = false

	defaultFallbackTimeout     = 10 * time.Second
	defaultAdvanceFloor        = 1500 * time.Millisecond
	defaultSlideDuration       = 45 * time.Second
	defaultDeepLinkDelay       = 250 * time.Millisecond
	defaultAutoSlideAdvance    = true
	defaultPresenceEnabled     = true
	defaultPresenceWho         = "evercast"
	defaultPresenceReason      = "Evercast is playing"
	defaultBreakerThreshold    = 3
	defaultBreakerReset        = 30 * time.Second
	defaultSessionIdleTimeout  = 30 * time.Minute
	defaultSessionCleanup      = time.Minute
	defaultSessionMaxSessions  = 64
	defaultSessionTriggerRate  = 5.0
	defaultSessionTriggerBurst = 10
	defaultContentPollInterval = 2 * time.Second
	minAdvanceFloor            = 100 * time.Millisecond
	maxDeepLinkDelay           = 2 * time.Second
	envPrefix                  = "EVERCAST"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Playback PlaybackConfig
	Presence PresenceConfig
	Session  SessionConfig
	Content  ContentConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// CORSOrigins restricts cross-origin callers. Empty allows every origin.
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Path           string
	EnableWAL      bool          `mapstructure:"enable_wal"`
	BusyTimeout    time.Duration `mapstructure:"busy_timeout"`
	MigrationsPath string        `mapstructure:"migrations_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// PlaybackConfig holds the transition engine tunables
type PlaybackConfig struct {
	FallbackTimeout      time.Duration `mapstructure:"fallback_timeout"`
	AdvanceFloor         time.Duration `mapstructure:"advance_floor"`
	DefaultSlideDuration time.Duration `mapstructure:"default_slide_duration"`
	DeepLinkDelay        time.Duration `mapstructure:"deeplink_delay"`
	AutoSlideAdvance     bool          `mapstructure:"auto_slide_advance"`

	// Bumpers is the ordered intro clip list played before streams
	Bumpers           []string
	SlideBumper       string `mapstructure:"slide_bumper"`
	ForbiddenCategory string `mapstructure:"forbidden_category"`
	ExcludedID        string `mapstructure:"excluded_id"`
}

// PresenceConfig holds the screen wake lock configuration
type PresenceConfig struct {
	// Enabled takes a logind idle inhibitor over D-Bus while playing
	Enabled          bool
	Who              string
	Reason           string
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerReset     time.Duration `mapstructure:"breaker_reset"`
}

// SessionConfig holds playback session housekeeping
type SessionConfig struct {
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	MaxSessions     int           `mapstructure:"max_sessions"`
	// TriggerRate is the sustained trigger rate per session, in events per second
	TriggerRate  float64 `mapstructure:"trigger_rate"`
	TriggerBurst int     `mapstructure:"trigger_burst"`
}

// ContentConfig holds catalogue import settings
type ContentConfig struct {
	// WatchFile is a JSON catalogue re-imported whenever it changes. Empty disables watching.
	WatchFile    string        `mapstructure:"watch_file"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// Load reads configuration from .env file, config files, environment variables, and defaults
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches the default locations.
func LoadFile(path string) (*Config, error) {
	// .env files are optional in production and CI where env vars are set directly
	_ = godotenv.Load() // nolint:errcheck // .env file is optional

	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/evercast")
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.Playback.Bumpers = cleanList(cfg.Playback.Bumpers)
	cfg.Server.CORSOrigins = cleanList(cfg.Server.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options.
// Every key needs a default so that AutomaticEnv can bind it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.read_timeout", defaultReadTimeout)
	v.SetDefault("server.write_timeout", defaultWriteTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{})

	v.SetDefault("database.path", defaultDatabasePath)
	v.SetDefault("database.enable_wal", defaultDatabaseEnableWAL)
	v.SetDefault("database.busy_timeout", defaultDatabaseBusyTimeout)
	v.SetDefault("database.migrations_path", defaultDatabaseMigrationsPath)

	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.pretty", defaultLogPretty)

	v.SetDefault("playback.fallback_timeout", defaultFallbackTimeout)
	v.SetDefault("playback.advance_floor", defaultAdvanceFloor)
	v.SetDefault("playback.default_slide_duration", defaultSlideDuration)
	v.SetDefault("playback.deeplink_delay", defaultDeepLinkDelay)
	v.SetDefault("playback.auto_slide_advance", defaultAutoSlideAdvance)
	v.SetDefault("playback.bumpers", []string{})
	v.SetDefault("playback.slide_bumper", "")
	v.SetDefault("playback.forbidden_category", "")
	v.SetDefault("playback.excluded_id", "")

	v.SetDefault("presence.enabled", defaultPresenceEnabled)
	v.SetDefault("presence.who", defaultPresenceWho)
	v.SetDefault("presence.reason", defaultPresenceReason)
	v.SetDefault("presence.breaker_threshold", defaultBreakerThreshold)
	v.SetDefault("presence.breaker_reset", defaultBreakerReset)

	v.SetDefault("session.idle_timeout", defaultSessionIdleTimeout)
	v.SetDefault("session.cleanup_interval", defaultSessionCleanup)
	v.SetDefault("session.max_sessions", defaultSessionMaxSessions)
	v.SetDefault("session.trigger_rate", defaultSessionTriggerRate)
	v.SetDefault("session.trigger_burst", defaultSessionTriggerBurst)

	v.SetDefault("content.watch_file", "")
	v.SetDefault("content.poll_interval", defaultContentPollInterval)
}

// Validate checks that configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("invalid read timeout: %v (must be > 0)", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("invalid write timeout: %v (must be > 0)", c.Server.WriteTimeout)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %v (must be > 0)", c.Server.ShutdownTimeout)
	}
	if c.Database.BusyTimeout < 0 {
		return fmt.Errorf("invalid database busy timeout: %v (must be >= 0)", c.Database.BusyTimeout)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Logging.Level, strings.Join(validLevels, ", "))
	}

	if err := c.Playback.validate(); err != nil {
		return err
	}

	if c.Presence.BreakerThreshold < 0 {
		return fmt.Errorf("invalid breaker threshold: %d (must be >= 0)", c.Presence.BreakerThreshold)
	}
	if c.Presence.BreakerThreshold > 0 && c.Presence.BreakerReset <= 0 {
		return fmt.Errorf("invalid breaker reset: %v (must be > 0)", c.Presence.BreakerReset)
	}

	if c.Session.IdleTimeout < 0 || c.Session.CleanupInterval < 0 {
		return errors.New("session timeouts must not be negative")
	}
	if c.Session.IdleTimeout > 0 && c.Session.CleanupInterval <= 0 {
		return fmt.Errorf("invalid cleanup interval: %v (must be > 0 when idle_timeout is set)", c.Session.CleanupInterval)
	}
	if c.Session.MaxSessions < 0 {
		return fmt.Errorf("invalid max sessions: %d (must be >= 0)", c.Session.MaxSessions)
	}
	if c.Session.TriggerRate < 0 {
		return fmt.Errorf("invalid trigger rate: %v (must be >= 0)", c.Session.TriggerRate)
	}
	if c.Session.TriggerRate > 0 && c.Session.TriggerBurst < 1 {
		return fmt.Errorf("invalid trigger burst: %d (must be >= 1)", c.Session.TriggerBurst)
	}

	if c.Content.WatchFile != "" && c.Content.PollInterval <= 0 {
		return fmt.Errorf("invalid poll interval: %v (must be > 0)", c.Content.PollInterval)
	}

	return nil
}

func (p *PlaybackConfig) validate() error {
	if p.FallbackTimeout <= 0 {
		return fmt.Errorf("invalid fallback timeout: %v (must be > 0)", p.FallbackTimeout)
	}
	if p.AdvanceFloor < minAdvanceFloor {
		return fmt.Errorf("invalid advance floor: %v (must be >= %v)", p.AdvanceFloor, minAdvanceFloor)
	}
	if p.FallbackTimeout < p.AdvanceFloor {
		return fmt.Errorf("fallback timeout %v is shorter than advance floor %v", p.FallbackTimeout, p.AdvanceFloor)
	}
	if p.DefaultSlideDuration <= 0 {
		return fmt.Errorf("invalid default slide duration: %v (must be > 0)", p.DefaultSlideDuration)
	}
	if p.DeepLinkDelay < 0 || p.DeepLinkDelay > maxDeepLinkDelay {
		return fmt.Errorf("invalid deeplink delay: %v (must be between 0 and %v)", p.DeepLinkDelay, maxDeepLinkDelay)
	}
	if p.ForbiddenCategory != "" && strings.TrimSpace(p.ForbiddenCategory) != p.ForbiddenCategory {
		return fmt.Errorf("forbidden category %q has surrounding whitespace", p.ForbiddenCategory)
	}
	return nil
}

// cleanList trims entries and drops empty ones, which env lists like "a.mp4, ,b.mp4" produce
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// contains checks if a string slice contains a specific value
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

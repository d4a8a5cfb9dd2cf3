package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Test server defaults
	if cfg.Server.Port != defaultServerPort {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, defaultServerPort)
	}
	if cfg.Server.Host != defaultServerHost {
		t.Errorf("Server.Host = %s, want %s", cfg.Server.Host, defaultServerHost)
	}
	if cfg.Server.ShutdownTimeout != defaultShutdownTimeout {
		t.Errorf("Server.ShutdownTimeout = %v, want %v", cfg.Server.ShutdownTimeout, defaultShutdownTimeout)
	}

	// Test database defaults
	if cfg.Database.Path != defaultDatabasePath {
		t.Errorf("Database.Path = %s, want %s", cfg.Database.Path, defaultDatabasePath)
	}
	if cfg.Database.EnableWAL != defaultDatabaseEnableWAL {
		t.Errorf("Database.EnableWAL = %v, want %v", cfg.Database.EnableWAL, defaultDatabaseEnableWAL)
	}
	if cfg.Database.MigrationsPath != defaultDatabaseMigrationsPath {
		t.Errorf("Database.MigrationsPath = %s, want %s", cfg.Database.MigrationsPath, defaultDatabaseMigrationsPath)
	}

	// Test logging defaults
	if cfg.Logging.Level != defaultLogLevel {
		t.Errorf("Logging.Level = %s, want %s", cfg.Logging.Level, defaultLogLevel)
	}

	// Test playback defaults
	if cfg.Playback.FallbackTimeout != 10*time.Second {
		t.Errorf("Playback.FallbackTimeout = %v, want 10s", cfg.Playback.FallbackTimeout)
	}
	if cfg.Playback.AdvanceFloor != 1500*time.Millisecond {
		t.Errorf("Playback.AdvanceFloor = %v, want 1.5s", cfg.Playback.AdvanceFloor)
	}
	if cfg.Playback.DeepLinkDelay != 250*time.Millisecond {
		t.Errorf("Playback.DeepLinkDelay = %v, want 250ms", cfg.Playback.DeepLinkDelay)
	}
	if len(cfg.Playback.Bumpers) != 0 {
		t.Errorf("Playback.Bumpers = %v, want empty", cfg.Playback.Bumpers)
	}

	// Test session defaults
	if cfg.Session.TriggerRate != defaultSessionTriggerRate {
		t.Errorf("Session.TriggerRate = %v, want %v", cfg.Session.TriggerRate, defaultSessionTriggerRate)
	}
	if cfg.Presence.BreakerThreshold != defaultBreakerThreshold {
		t.Errorf("Presence.BreakerThreshold = %d, want %d", cfg.Presence.BreakerThreshold, defaultBreakerThreshold)
	}
}

func TestConfigEnvOverrides(t *testing.T) {
	t.Setenv("EVERCAST_SERVER_PORT", "9090")
	t.Setenv("EVERCAST_LOGGING_LEVEL", "debug")
	t.Setenv("EVERCAST_PLAYBACK_FALLBACK_TIMEOUT", "12s")
	t.Setenv("EVERCAST_PLAYBACK_BUMPERS", "/bumpers/i1.mp4, /bumpers/i2.mp4,,/bumpers/i3.mp4")
	t.Setenv("EVERCAST_PLAYBACK_FORBIDDEN_CATEGORY", "adult")
	t.Setenv("EVERCAST_SESSION_MAX_SESSIONS", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %s, want debug", cfg.Logging.Level)
	}
	if cfg.Playback.FallbackTimeout != 12*time.Second {
		t.Errorf("Playback.FallbackTimeout = %v, want 12s", cfg.Playback.FallbackTimeout)
	}
	want := []string{"/bumpers/i1.mp4", "/bumpers/i2.mp4", "/bumpers/i3.mp4"}
	if strings.Join(cfg.Playback.Bumpers, "|") != strings.Join(want, "|") {
		t.Errorf("Playback.Bumpers = %v, want %v", cfg.Playback.Bumpers, want)
	}
	if cfg.Playback.ForbiddenCategory != "adult" {
		t.Errorf("Playback.ForbiddenCategory = %s, want adult", cfg.Playback.ForbiddenCategory)
	}
	if cfg.Session.MaxSessions != 3 {
		t.Errorf("Session.MaxSessions = %d, want 3", cfg.Session.MaxSessions)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evercast.yaml")
	content := `
server:
  port: 7070
playback:
  advance_floor: 2s
  bumpers:
    - /bumpers/intro.mp4
  slide_bumper: /bumpers/news.mp4
  excluded_id: promo-1
content:
  watch_file: /srv/catalogue.json
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Playback.AdvanceFloor != 2*time.Second {
		t.Errorf("Playback.AdvanceFloor = %v, want 2s", cfg.Playback.AdvanceFloor)
	}
	if len(cfg.Playback.Bumpers) != 1 || cfg.Playback.Bumpers[0] != "/bumpers/intro.mp4" {
		t.Errorf("Playback.Bumpers = %v", cfg.Playback.Bumpers)
	}
	if cfg.Playback.SlideBumper != "/bumpers/news.mp4" {
		t.Errorf("Playback.SlideBumper = %s", cfg.Playback.SlideBumper)
	}
	if cfg.Playback.ExcludedID != "promo-1" {
		t.Errorf("Playback.ExcludedID = %s", cfg.Playback.ExcludedID)
	}
	if cfg.Content.WatchFile != "/srv/catalogue.json" {
		t.Errorf("Content.WatchFile = %s", cfg.Content.WatchFile)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFile() with a missing explicit file should fail")
	}
}

func TestConfigValidation(t *testing.T) {
	valid := func() Config {
		return Config{
			Server: ServerConfig{
				Port:            8080,
				Host:            "0.0.0.0",
				ReadTimeout:     30 * time.Second,
				WriteTimeout:    30 * time.Second,
				ShutdownTimeout: 10 * time.Second,
			},
			Database: DatabaseConfig{Path: "./data/test.db", BusyTimeout: 5 * time.Second},
			Logging:  LoggingConfig{Level: "info"},
			Playback: PlaybackConfig{
				FallbackTimeout:      10 * time.Second,
				AdvanceFloor:         1500 * time.Millisecond,
				DefaultSlideDuration: 45 * time.Second,
				DeepLinkDelay:        250 * time.Millisecond,
			},
			Presence: PresenceConfig{BreakerThreshold: 3, BreakerReset: 30 * time.Second},
			Session: SessionConfig{
				IdleTimeout:     time.Minute,
				CleanupInterval: time.Second,
				TriggerRate:     5,
				TriggerBurst:    10,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}, wantErr: false},
		{name: "invalid port - too low", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: true},
		{name: "invalid port - too high", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
		{name: "invalid read timeout", mutate: func(c *Config) { c.Server.ReadTimeout = 0 }, wantErr: true},
		{name: "invalid log level", mutate: func(c *Config) { c.Logging.Level = "verbose" }, wantErr: true},
		{name: "empty database path", mutate: func(c *Config) { c.Database.Path = " " }, wantErr: true},
		{name: "advance floor too small", mutate: func(c *Config) { c.Playback.AdvanceFloor = 10 * time.Millisecond }, wantErr: true},
		{name: "fallback shorter than floor", mutate: func(c *Config) { c.Playback.FallbackTimeout = time.Second }, wantErr: true},
		{name: "deeplink delay above cap", mutate: func(c *Config) { c.Playback.DeepLinkDelay = 3 * time.Second }, wantErr: true},
		{name: "zero deeplink delay", mutate: func(c *Config) { c.Playback.DeepLinkDelay = 0 }, wantErr: false},
		{name: "breaker without reset", mutate: func(c *Config) { c.Presence.BreakerReset = 0 }, wantErr: true},
		{name: "breaker disabled", mutate: func(c *Config) { c.Presence = PresenceConfig{} }, wantErr: false},
		{name: "idle timeout without cleanup", mutate: func(c *Config) { c.Session.CleanupInterval = 0 }, wantErr: true},
		{name: "rate without burst", mutate: func(c *Config) { c.Session.TriggerBurst = 0 }, wantErr: true},
		{name: "watch without poll interval", mutate: func(c *Config) { c.Content.WatchFile = "c.json" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

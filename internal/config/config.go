// Package config loads PlanHaus settings from TOML, .env and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

// AppName names the XDG subdirectories.
const AppName = "planhaus"

// Config holds all PlanHaus configuration.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Client     ClientConfig     `toml:"client"`
	Cache      CacheConfig      `toml:"cache"`
	Autosave   AutosaveConfig   `toml:"autosave"`
	Realtime   RealtimeConfig   `toml:"realtime"`
	Events     EventsConfig     `toml:"events"`
	Log        LogConfig        `toml:"log"`
	Appearance AppearanceConfig `toml:"appearance"`
}

// ServerConfig configures `planhaus serve`.
type ServerConfig struct {
	Addr       string          `toml:"addr"`
	Database   string          `toml:"database,omitempty"`
	SessionTTL Duration        `toml:"session_ttl"`
	RateLimit  RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig sets per-client request budgets.
type RateLimitConfig struct {
	RequestsPerMinute int `toml:"requests_per_minute"`
	Burst             int `toml:"burst"`
	AuthPerMinute     int `toml:"auth_per_minute"`
	// TrustedProxies lists peers, as addresses or CIDRs, whose
	// X-Forwarded-For header names the real client.
	TrustedProxies []string `toml:"trusted_proxies,omitempty"`
}

// ClientConfig configures the CLI and TUI as API clients.
type ClientConfig struct {
	ServerURL      string   `toml:"server_url"`
	DefaultProject string   `toml:"default_project,omitempty"`
	Timeout        Duration `toml:"timeout"`
}

// CacheConfig configures the client query cache sweep.
type CacheConfig struct {
	CleanupInterval Duration `toml:"cleanup_interval"`
	MaxAge          Duration `toml:"max_age"`
	PrefetchDelay   Duration `toml:"prefetch_delay"`
	SecondaryDelay  Duration `toml:"secondary_delay"`
}

// AutosaveConfig configures form autosave.
type AutosaveConfig struct {
	Debounce Duration `toml:"debounce"`
}

// RealtimeConfig configures the /ws client.
type RealtimeConfig struct {
	Enabled        bool     `toml:"enabled"`
	ReconnectDelay Duration `toml:"reconnect_delay"`
	MaxAttempts    int      `toml:"max_attempts"`
}

// EventsConfig configures the optional NATS activity publisher.
type EventsConfig struct {
	NATSURL string `toml:"nats_url,omitempty"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file,omitempty"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

// Duration is a time.Duration that reads and writes as "15m" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:       "127.0.0.1:8686",
			SessionTTL: Duration{30 * 24 * time.Hour},
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 300,
				Burst:             60,
				AuthPerMinute:     10,
			},
		},
		Client: ClientConfig{
			ServerURL: "http://127.0.0.1:8686",
			Timeout:   Duration{15 * time.Second},
		},
		Cache: CacheConfig{
			CleanupInterval: Duration{15 * time.Minute},
			MaxAge:          Duration{30 * time.Minute},
			PrefetchDelay:   Duration{time.Second},
			SecondaryDelay:  Duration{2500 * time.Millisecond},
		},
		Autosave: AutosaveConfig{
			Debounce: Duration{2 * time.Second},
		},
		Realtime: RealtimeConfig{
			Enabled:        true,
			ReconnectDelay: Duration{time.Second},
			MaxAttempts:    5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
	}
}

// Dir returns the XDG config directory.
func Dir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Path returns the full path to the config file.
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// DataDir returns the XDG data directory holding the database.
func DataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// StateDir returns the XDG state directory holding credentials and pid
// files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

// DatabasePath returns the configured database path or the default under
// DataDir.
func DatabasePath(cfg Config) string {
	if v := os.Getenv("PLANHAUS_DB"); v != "" {
		return v
	}
	if cfg.Server.Database != "" {
		return cfg.Server.Database
	}
	return filepath.Join(DataDir(), "planhaus.db")
}

// Load reads the config file, returning defaults if it doesn't exist, then
// applies environment overrides.
func Load() (Config, error) {
	return LoadFile(Path())
}

// LoadFile is Load for an explicit path.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // config path is chosen by the local user
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("reading config: %w", err)
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// LoadDotEnv loads a .env file from the working directory if present.
// Existing environment variables win.
func LoadDotEnv() error {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PLANHAUS_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("PLANHAUS_SERVER_URL"); v != "" {
		cfg.Client.ServerURL = v
	}
	if v := os.Getenv("PLANHAUS_PROJECT"); v != "" {
		cfg.Client.DefaultProject = v
	}
	if v := os.Getenv("PLANHAUS_NATS_URL"); v != "" {
		cfg.Events.NATSURL = v
	}
	if v := os.Getenv("PLANHAUS_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// Save writes the config to Path.
func Save(cfg Config) error {
	return SaveFile(Path(), cfg)
}

// SaveFile writes the config to path.
func SaveFile(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600) //nolint:gosec // config path is chosen by the local user
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(Path())
	return err == nil
}

// Package config loads the relocate configuration from a YAML file.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvJWTSecret names the environment variable holding the API signing
// secret. It takes precedence over the file.
const EnvJWTSecret = "RELOCATE_JWT_SECRET"

// Config is the top-level relocate configuration.
type Config struct {
	Resolve  ResolveConfig  `yaml:"resolve"`
	Playback PlaybackConfig `yaml:"playback"`
	Browser  BrowserConfig  `yaml:"browser"`
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
}

// ResolveConfig tunes the resolution engine.
type ResolveConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	Retries     int           `yaml:"retries"`
	StableLimit time.Duration `yaml:"stable_limit"`
	QuietWindow time.Duration `yaml:"quiet_window"`
}

// PlaybackConfig bounds playback sessions.
type PlaybackConfig struct {
	// SessionTTL stops sessions idle for longer, closing their live tab.
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// BrowserConfig controls the shared Chrome instance.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	Mode             string        `yaml:"mode"` // headless | headful
	XvfbDisplay      string        `yaml:"xvfb_display"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	NavigateTimeout  time.Duration `yaml:"navigate_timeout"`
	// AllowPrivate lets playback open loopback and private addresses.
	AllowPrivate bool `yaml:"allow_private"`
}

// ServerConfig controls the HTTP and MCP surface.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	JWTSecret string `yaml:"jwt_secret"`
}

// StoreConfig locates the guide database.
type StoreConfig struct {
	Path string `yaml:"path"`
	// AuditRetention is how long audit entries are kept. Default: 720h.
	AuditRetention time.Duration `yaml:"audit_retention"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Resolve.Timeout <= 0 {
		c.Resolve.Timeout = 8 * time.Second
	}
	if c.Resolve.Retries == 0 {
		c.Resolve.Retries = 3
	}
	if c.Resolve.StableLimit <= 0 {
		c.Resolve.StableLimit = 1500 * time.Millisecond
	}
	if c.Resolve.QuietWindow <= 0 {
		c.Resolve.QuietWindow = 250 * time.Millisecond
	}
	if c.Playback.SessionTTL <= 0 {
		c.Playback.SessionTTL = 30 * time.Minute
	}
	if c.Browser.Mode == "" {
		c.Browser.Mode = "headless"
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Browser.NavigateTimeout <= 0 {
		c.Browser.NavigateTimeout = 30 * time.Second
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8420"
	}
	if s := os.Getenv(EnvJWTSecret); s != "" {
		c.Server.JWTSecret = s
	}
	if c.Store.Path == "" {
		c.Store.Path = "relocate.db"
	}
	if c.Store.AuditRetention <= 0 {
		c.Store.AuditRetention = 30 * 24 * time.Hour
	}
}

// Package config loads the application configuration once at startup.
//
// Values come from, in increasing precedence: built-in defaults, an optional
// YAML file, an optional .env file and the process environment. Components
// receive the parts they need from the resulting Config; nothing else reads
// the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/evcraddock/wanderlust/internal/db"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Session  SessionConfig  `yaml:"session"`
	Geocode  GeocodeConfig  `yaml:"geocode"`
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	BaseURL        string   `yaml:"base_url"`
	DevMode        bool     `yaml:"dev_mode"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds the SQLite database location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SessionConfig holds session cookie and expiry settings.
type SessionConfig struct {
	Secret       string        `yaml:"secret"`
	TTL          time.Duration `yaml:"ttl"`
	TouchAfter   time.Duration `yaml:"touch_after"`
	SecureCookie bool          `yaml:"secure_cookie"`
}

// GeocodeConfig holds forward-geocoding service settings.
type GeocodeConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// RedisConfig holds the optional geocode cache settings. An empty URL disables the cache.
type RedisConfig struct {
	URL      string        `yaml:"url"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// StorageConfig holds the S3 image store settings. An empty bucket disables image uploads.
type StorageConfig struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Prefix    string `yaml:"prefix"`
	PublicURL string `yaml:"public_url"`
	Endpoint  string `yaml:"endpoint"`

	// Static credentials. When empty the default AWS credential chain is used.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

const (
	defaultPort           = 8080
	defaultGeocodeBaseURL = "http://api.positionstack.com"
	defaultGeocodeTimeout = 10 * time.Second
	defaultSessionTTL     = 7 * 24 * time.Hour
	defaultTouchAfter     = 24 * time.Hour
	defaultCacheTTL       = 30 * 24 * time.Hour
	defaultRegion         = "us-east-1"
	defaultPrefix         = "wanderlust/"

	minSecretLen = 16
)

// DefaultPath returns the default config file path: ~/.config/wanderlust/config.yaml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "wanderlust", "config.yaml"), nil
}

// Load builds a Config from the YAML file at path (a missing file is not an
// error), a .env file in the working directory, and environment overrides.
func Load(path string) (*Config, error) {
	// .env is optional; only real parse errors matter.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports configuration that would make the server unsafe to run.
func (c *Config) Validate() error {
	if len(c.Session.Secret) < minSecretLen {
		return fmt.Errorf("session secret must be at least %d characters (set WL_SESSION_SECRET)", minSecretLen)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("WL_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing WL_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("WL_BASE_URL"); v != "" {
		c.Server.BaseURL = v
	}
	if v := os.Getenv("WL_DEV_MODE"); v != "" {
		c.Server.DevMode = v == "true"
	}
	if v := os.Getenv("WL_ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("WL_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("WL_SESSION_SECRET"); v != "" {
		c.Session.Secret = v
	}
	if v := os.Getenv("WL_SECURE_COOKIE"); v != "" {
		c.Session.SecureCookie = v == "true"
	}
	// MAP_TOKEN is the legacy name for the same key.
	if v := firstEnv("WL_GEOCODE_API_KEY", "MAP_TOKEN"); v != "" {
		c.Geocode.APIKey = v
	}
	if v := os.Getenv("WL_GEOCODE_BASE_URL"); v != "" {
		c.Geocode.BaseURL = v
	}
	if v := os.Getenv("WL_REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("WL_S3_BUCKET"); v != "" {
		c.Storage.Bucket = v
	}
	if v := os.Getenv("WL_S3_REGION"); v != "" {
		c.Storage.Region = v
	}
	if v := os.Getenv("WL_S3_PUBLIC_URL"); v != "" {
		c.Storage.PublicURL = v
	}
	if v := os.Getenv("WL_S3_ENDPOINT"); v != "" {
		c.Storage.Endpoint = v
	}
	if v := os.Getenv("WL_S3_ACCESS_KEY_ID"); v != "" {
		c.Storage.AccessKeyID = v
	}
	if v := os.Getenv("WL_S3_SECRET_ACCESS_KEY"); v != "" {
		c.Storage.SecretAccessKey = v
	}
	return nil
}

func (c *Config) applyDefaults() error {
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	if c.Database.Path == "" {
		p, err := db.DefaultPath()
		if err != nil {
			return err
		}
		c.Database.Path = p
	} else if strings.HasPrefix(c.Database.Path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("getting home directory: %w", err)
		}
		c.Database.Path = filepath.Join(home, c.Database.Path[2:])
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = defaultSessionTTL
	}
	if c.Session.TouchAfter == 0 {
		c.Session.TouchAfter = defaultTouchAfter
	}
	if c.Geocode.BaseURL == "" {
		c.Geocode.BaseURL = defaultGeocodeBaseURL
	}
	if c.Geocode.Timeout == 0 {
		c.Geocode.Timeout = defaultGeocodeTimeout
	}
	if c.Redis.CacheTTL == 0 {
		c.Redis.CacheTTL = defaultCacheTTL
	}
	if c.Storage.Region == "" {
		c.Storage.Region = defaultRegion
	}
	if c.Storage.Prefix == "" {
		c.Storage.Prefix = defaultPrefix
	}
	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

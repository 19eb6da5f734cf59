package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/kurtheiz/agistme/pkg/client"
)

//go:embed config.toml.sample
var configTemplate string

// AccessTokenEnv overrides access_token when set.
const AccessTokenEnv = "AGISTME_ACCESS_TOKEN"

// Cache backends.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

const (
	DefaultAPIURL            = "https://api.agist.me/v1"
	DefaultRequestTimeout    = 30 * time.Second
	DefaultRequestsPerSecond = 5.0
	DefaultListen            = "127.0.0.1:8686"
)

type Config struct {
	APIURL            string   `toml:"api_url"`
	AccessToken       string   `toml:"access_token,omitempty"`
	StorageDir        string   `toml:"storage_dir"`
	RequestTimeout    Duration `toml:"request_timeout"`
	RequestsPerSecond float64  `toml:"requests_per_second"`

	Cache  CacheConfig  `toml:"cache"`
	Retry  RetryConfig  `toml:"retry"`
	Watch  WatchConfig  `toml:"watch"`
	Server ServerConfig `toml:"server"`
}

type CacheConfig struct {
	Backend       string   `toml:"backend"`
	FreshFor      Duration `toml:"fresh_for"`
	RetainFor     Duration `toml:"retain_for"`
	LastSearchFor Duration `toml:"last_search_for"`
}

type RetryConfig struct {
	Attempts int      `toml:"attempts"`
	Backoff  Duration `toml:"backoff"`
}

type WatchConfig struct {
	Interval Duration `toml:"interval"`
}

type ServerConfig struct {
	Listen string `toml:"listen"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func GetDefaultConfig() (*Config, error) {
	c := &Config{}
	if err := c.applyDefaults(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadConfig reads configPath, falling back to defaults when it does not
// exist. A .env file in the same directory is loaded first, and the access
// token environment variable wins over the file.
func LoadConfig(configPath string) (*Config, error) {
	loadDotEnv(filepath.Join(filepath.Dir(configPath), ".env"))

	var config Config
	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("unmarshaling config: %w", err)
		}
	}

	if token := os.Getenv(AccessTokenEnv); token != "" {
		config.AccessToken = token
	}
	if err := config.applyDefaults(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// loadDotEnv loads path without overriding variables already set.
func loadDotEnv(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load %s: %v\n", path, err)
	}
}

func (c *Config) applyDefaults() error {
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.StorageDir == "" {
		storageDir, err := GetDefaultStorageDir()
		if err != nil {
			return fmt.Errorf("getting default storage directory: %w", err)
		}
		c.StorageDir = storageDir
	}
	if c.RequestTimeout.Duration == 0 {
		c.RequestTimeout = Duration{DefaultRequestTimeout}
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = BackendSQLite
	}
	if c.Cache.FreshFor.Duration == 0 {
		c.Cache.FreshFor = Duration{5 * time.Minute}
	}
	if c.Cache.RetainFor.Duration == 0 {
		c.Cache.RetainFor = Duration{30 * time.Minute}
	}
	if c.Cache.LastSearchFor.Duration == 0 {
		c.Cache.LastSearchFor = Duration{24 * time.Hour}
	}
	if c.Retry.Attempts == 0 {
		c.Retry.Attempts = 3
	}
	if c.Retry.Backoff.Duration == 0 {
		c.Retry.Backoff = Duration{time.Second}
	}
	if c.Watch.Interval.Duration == 0 {
		c.Watch.Interval = Duration{15 * time.Minute}
	}
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}
	return nil
}

// Validate rejects values the rest of the program cannot work with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Cache.Backend {
	case BackendSQLite, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("cache.backend must be %q or %q, got %q", BackendSQLite, BackendMemory, c.Cache.Backend))
	}
	if c.Cache.RetainFor.Duration < c.Cache.FreshFor.Duration {
		errs = append(errs, errors.New("cache.retain_for must not be shorter than cache.fresh_for"))
	}
	if c.Retry.Attempts < 1 {
		errs = append(errs, errors.New("retry.attempts must be at least 1"))
	}
	for _, d := range []struct {
		name string
		v    Duration
	}{
		{"request_timeout", c.RequestTimeout},
		{"cache.fresh_for", c.Cache.FreshFor},
		{"cache.last_search_for", c.Cache.LastSearchFor},
		{"retry.backoff", c.Retry.Backoff},
		{"watch.interval", c.Watch.Interval},
	} {
		if d.v.Duration < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", d.name))
		}
	}
	return errors.Join(errs...)
}

// ClientOptions maps the configuration onto client options.
func (c *Config) ClientOptions() client.Options {
	rps := c.RequestsPerSecond
	if rps < 0 {
		rps = 0
	}
	return client.Options{
		BaseURL:           c.APIURL,
		AccessToken:       c.AccessToken,
		Timeout:           c.RequestTimeout.Duration,
		RequestsPerSecond: rps,
		RetryAttempts:     c.Retry.Attempts,
		RetryBackoff:      c.Retry.Backoff.Duration,
	}
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0600)
}

// SaveTemplateConfig writes the commented sample configuration.
func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	storageDir := c.StorageDir
	if storageDir == "" {
		var err error
		if storageDir, err = GetDefaultStorageDir(); err != nil {
			return fmt.Errorf("getting default storage directory: %w", err)
		}
	}
	template := strings.Replace(configTemplate, "/home/user/.local/share/agistme", storageDir, 1)
	return os.WriteFile(configPath, []byte(template), 0600)
}

// GetDefaultStorageDir returns (creating it) the default data directory.
func GetDefaultStorageDir() (string, error) {
	return xdgDir("XDG_DATA_HOME", ".local", "share")
}

// GetConfigDir returns (creating it) the configuration directory.
func GetConfigDir() (string, error) {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

func xdgDir(env string, fallback ...string) (string, error) {
	base := os.Getenv(env)
	if base == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		base = filepath.Join(append([]string{homeDir}, fallback...)...)
	}

	dir := filepath.Join(base, "agistme")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return dir, nil
}

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"prompt-form/internal/middleware"
)

// Config holds the host server settings.
type Config struct {
	ListenAddress      string        `mapstructure:"listen_address"`
	UpstreamURL        string        `mapstructure:"upstream_url"`
	UpstreamToken      string        `mapstructure:"upstream_token"`
	ParamPrefix        string        `mapstructure:"param_prefix"`
	StaticDir          string        `mapstructure:"static_dir"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute"`
	RateLimitBurst     int           `mapstructure:"rate_limit_burst"`
	UpstreamTimeout    time.Duration `mapstructure:"upstream_timeout"`
	LogLevel           string        `mapstructure:"log_level"`
	TrustedProxies     []string      `mapstructure:"trusted_proxies"`
}

var defaults = map[string]any{
	"listen_address":        ":8080",
	"upstream_url":          "http://localhost:8000",
	"upstream_token":        "",
	"param_prefix":          "",
	"static_dir":            "./static",
	"rate_limit_per_minute": 10,
	"rate_limit_burst":      10,
	"upstream_timeout":      "2m",
	"log_level":             "info",
	"trusted_proxies":       []string{},
}

// Load reads .env (if present), the optional YAML file, and the environment,
// in increasing order of precedence. An empty configFile falls back to
// CONFIG_FILE.
func Load(configFile string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.UpstreamURL = strings.TrimRight(strings.TrimSpace(cfg.UpstreamURL), "/")
	cfg.ParamPrefix = strings.TrimRight(strings.TrimSpace(cfg.ParamPrefix), "/")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.UpstreamURL)
	if err != nil {
		return fmt.Errorf("config: upstream_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: upstream_url must be an absolute http(s) URL, got %q", c.UpstreamURL)
	}
	if c.RateLimitPerMinute <= 0 {
		return errors.New("config: rate_limit_per_minute must be positive")
	}
	if c.RateLimitBurst <= 0 {
		return errors.New("config: rate_limit_burst must be positive")
	}
	if c.UpstreamTimeout <= 0 {
		return errors.New("config: upstream_timeout must be positive")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: log_level: %w", err)
	}
	if _, err := middleware.ParseTrustedProxies(c.TrustedProxies); err != nil {
		return fmt.Errorf("config: trusted_proxies: %w", err)
	}
	return nil
}

// Level returns the configured slog level.
func (c *Config) Level() slog.Level {
	lvl, _ := parseLevel(c.LogLevel)
	return lvl
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(strings.TrimSpace(s)))
	return lvl, err
}

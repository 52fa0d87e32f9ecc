// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and environment variables over the defaults.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// APIBaseURL is the scoring API origin. Empty means forms report the
	// generic failure message without calling out.
	APIBaseURL string `koanf:"api_base_url"`

	// APITimeoutMS bounds one scoring API call.
	APITimeoutMS int `koanf:"api_timeout_ms"`

	// SiteURL is the public origin used for canonical links and the sitemap.
	SiteURL string `koanf:"site_url"`

	// ShareHost is the host printed in share messages. Defaults to the
	// host of SiteURL.
	ShareHost string `koanf:"share_host"`

	// CacheSize bounds the reading cache; 0 disables it.
	CacheSize int `koanf:"cache_size"`

	// RateLimitRPS and RateLimitBurst configure the per-client token bucket
	// for form submissions. RateLimitRPS of 0 disables limiting.
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`

	// OpsAuthFile points at a "user:argon2id-hash" file guarding /metrics
	// and /stats. Empty leaves them open.
	OpsAuthFile string `koanf:"ops_auth_file"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:       "info",
		LogFormat:      "text",
		Addr:           ":9080",
		APITimeoutMS:   10_000,
		SiteURL:        "https://meradinkaisajayega.online",
		CacheSize:      1024,
		RateLimitRPS:   1,
		RateLimitBurst: 5,
	}
}

// APITimeout returns the scoring API timeout as a duration.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.APITimeoutMS) * time.Millisecond
}

// Validate checks the loaded values and fills derived defaults.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.APITimeoutMS <= 0 {
		return fmt.Errorf("%w: api_timeout_ms must be positive", ErrInvalidConfig)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("%w: cache_size must not be negative", ErrInvalidConfig)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("%w: rate limits must not be negative", ErrInvalidConfig)
	}
	site, err := absoluteURL(c.SiteURL)
	if err != nil {
		return fmt.Errorf("%w: site_url: %w", ErrInvalidConfig, err)
	}
	if c.APIBaseURL != "" {
		if _, err := absoluteURL(c.APIBaseURL); err != nil {
			return fmt.Errorf("%w: api_base_url: %w", ErrInvalidConfig, err)
		}
	}
	if c.ShareHost == "" {
		c.ShareHost = site.Host
	}
	return nil
}

func absoluteURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%q is not an absolute http(s) URL", raw)
	}
	return u, nil
}

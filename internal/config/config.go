// Package config handles configuration loading for glitchsite.
// It supports YAML config files with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/seenimoa/glitchsite/pkg/models"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "GLITCHSITE"

// Config represents the complete application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   yaml:"server"   json:"server"`
	Pricing  PricingConfig  `mapstructure:"pricing"  yaml:"pricing"  json:"pricing"`
	Currency CurrencyConfig `mapstructure:"currency" yaml:"currency" json:"currency"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"  json:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host"              yaml:"host"              json:"host"`
	Port            int             `mapstructure:"port"              yaml:"port"              json:"port"`
	CORSOrigins     []string        `mapstructure:"cors_origins"      yaml:"cors_origins"      json:"cors_origins"`
	TrustedProxies  []string        `mapstructure:"trusted_proxies"   yaml:"trusted_proxies"   json:"trusted_proxies"` // CIDRs or IPs allowed to set X-Forwarded-For
	ReadTimeoutSec  int             `mapstructure:"read_timeout_sec"  yaml:"read_timeout_sec"  json:"read_timeout_sec"`
	WriteTimeoutSec int             `mapstructure:"write_timeout_sec" yaml:"write_timeout_sec" json:"write_timeout_sec"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"        yaml:"rate_limit"        json:"rate_limit"`
}

// RateLimitConfig bounds API requests per client IP.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"   yaml:"rps"   json:"rps"` // 0 disables limiting
	Burst int     `mapstructure:"burst" yaml:"burst" json:"burst"`
}

// Addr returns the host:port the server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// TrustedPrefixes parses TrustedProxies. A bare address is a single-host
// prefix.
func (s ServerConfig) TrustedPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(s.TrustedProxies))
	for _, raw := range s.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if p, err := netip.ParsePrefix(raw); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("server.trusted_proxies: %q is not an IP or CIDR", raw)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// PricingConfig holds the reference currency and display settings.
type PricingConfig struct {
	ReferenceCurrency string `mapstructure:"reference_currency" yaml:"reference_currency" json:"reference_currency"`
	ReferenceSymbol   string `mapstructure:"reference_symbol"   yaml:"reference_symbol"   json:"reference_symbol"`
	Locale            string `mapstructure:"locale"             yaml:"locale"             json:"locale"` // e.g., "en-ZA"
	DefaultPlan       string `mapstructure:"default_plan"       yaml:"default_plan"       json:"default_plan"`
}

// CurrencyConfig holds visitor currency resolution settings.
type CurrencyConfig struct {
	Enabled        bool          `mapstructure:"enabled"         yaml:"enabled"         json:"enabled"`
	GeoProvider    string        `mapstructure:"geo_provider"    yaml:"geo_provider"    json:"geo_provider"`  // "ipapi"
	RateProvider   string        `mapstructure:"rate_provider"   yaml:"rate_provider"   json:"rate_provider"` // "frankfurter" or "ecb"
	IPAPIURL       string        `mapstructure:"ipapi_url"       yaml:"ipapi_url"       json:"ipapi_url"`
	IPAPIKey       string        `mapstructure:"ipapi_key"       yaml:"ipapi_key"       json:"ipapi_key"`
	FrankfurterURL string        `mapstructure:"frankfurter_url" yaml:"frankfurter_url" json:"frankfurter_url"`
	ECBURL         string        `mapstructure:"ecb_url"         yaml:"ecb_url"         json:"ecb_url"`
	TimeoutSec     int           `mapstructure:"timeout_sec"     yaml:"timeout_sec"     json:"timeout_sec"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"       yaml:"cache_ttl"       json:"cache_ttl"`
	OutboundRPS    int           `mapstructure:"outbound_rps"    yaml:"outbound_rps"    json:"outbound_rps"` // per provider
}

// Timeout returns the per-lookup upstream timeout.
func (c CurrencyConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  json:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format" json:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.glitchsite/config.yaml (home directory)
//  3. /etc/glitchsite/config.yaml (system)
//
// Environment variables override config file values.
// Format: GLITCHSITE_<SECTION>_<KEY>, e.g., GLITCHSITE_SERVER_PORT
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".glitchsite"))
	v.AddConfigPath("/etc/glitchsite")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Override sensitive values from environment
	overrideFromEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration without reading files or the
// environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.trusted_proxies", []string{"127.0.0.1", "::1"})
	v.SetDefault("server.read_timeout_sec", 15)
	v.SetDefault("server.write_timeout_sec", 30)
	v.SetDefault("server.rate_limit.rps", 5.0)
	v.SetDefault("server.rate_limit.burst", 20)

	// Pricing defaults
	v.SetDefault("pricing.reference_currency", "ZAR")
	v.SetDefault("pricing.reference_symbol", "R")
	v.SetDefault("pricing.locale", "en-ZA")
	v.SetDefault("pricing.default_plan", "standard")

	// Currency defaults
	v.SetDefault("currency.enabled", true)
	v.SetDefault("currency.geo_provider", "ipapi")
	v.SetDefault("currency.rate_provider", "frankfurter")
	v.SetDefault("currency.ipapi_url", "https://ipapi.co")
	v.SetDefault("currency.frankfurter_url", "https://api.frankfurter.app")
	v.SetDefault("currency.ecb_url", "https://www.ecb.europa.eu")
	v.SetDefault("currency.timeout_sec", 5)
	v.SetDefault("currency.cache_ttl", "1h")
	v.SetDefault("currency.outbound_rps", 10)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.RateLimit.RPS < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit.rps must not be negative"))
	}
	if _, err := c.Server.TrustedPrefixes(); err != nil {
		errs = append(errs, err)
	}
	// Catalog prices are authored in rand.
	if !strings.EqualFold(c.Pricing.ReferenceCurrency, models.ReferenceCurrency) {
		errs = append(errs, fmt.Errorf("pricing.reference_currency %q must be %s, the catalog currency",
			c.Pricing.ReferenceCurrency, models.ReferenceCurrency))
	}
	if c.Currency.TimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("currency.timeout_sec must be positive"))
	}
	if c.Currency.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("currency.cache_ttl must not be negative"))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be text or json", c.Logging.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Sanitized returns a copy with secrets masked, safe to expose over the API.
func (c *Config) Sanitized() Config {
	out := *c
	out.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)
	out.Server.TrustedProxies = append([]string(nil), c.Server.TrustedProxies...)
	if out.Currency.IPAPIKey != "" {
		out.Currency.IPAPIKey = maskKey(out.Currency.IPAPIKey)
	}
	return out
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv(EnvPrefix + "_CURRENCY_IPAPI_KEY"); key != "" {
		cfg.Currency.IPAPIKey = key
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// Package providers initializes and registers all concrete upstream
// providers with a provider registry.
package providers

import (
	"fmt"
	"time"

	"github.com/seenimoa/glitchsite/internal/config"
	"github.com/seenimoa/glitchsite/internal/provider"
	"github.com/seenimoa/glitchsite/internal/providers/ecb"
	"github.com/seenimoa/glitchsite/internal/providers/frankfurter"
	"github.com/seenimoa/glitchsite/internal/providers/ipapi"
)

// RegisterAll creates and registers all available providers with the
// global registry.
func RegisterAll(cfg config.CurrencyConfig) error {
	return RegisterAllTo(provider.Global(), cfg)
}

// RegisterAllTo registers all available providers to the given registry and
// makes the configured geolocator and rate provider the defaults.
func RegisterAllTo(reg *provider.Registry, cfg config.CurrencyConfig) error {
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}

	// --- ipapi.co (free tier, optional API key) ---
	geo := ipapi.New(cfg.IPAPIURL)
	if err := geo.Init(map[string]string{"api_key": cfg.IPAPIKey}); err != nil {
		return err
	}
	geo.SetLimits(cacheTTL, cfg.OutboundRPS, time.Second)
	if err := reg.Register(geo); err != nil {
		return err
	}

	// --- Frankfurter (free, no API key) ---
	ff := frankfurter.New(cfg.FrankfurterURL)
	if err := ff.Init(nil); err != nil {
		return err
	}
	ff.SetLimits(cacheTTL, cfg.OutboundRPS, time.Second)
	if err := reg.Register(ff); err != nil {
		return err
	}

	// --- ECB RSS feeds (free, no API key) ---
	eb := ecb.New(cfg.ECBURL)
	if err := eb.Init(nil); err != nil {
		return err
	}
	eb.SetLimits(cacheTTL, cfg.OutboundRPS, time.Second)
	if err := reg.Register(eb); err != nil {
		return err
	}

	if cfg.GeoProvider != "" {
		if err := reg.SetDefault(provider.CapabilityGeolocation, cfg.GeoProvider); err != nil {
			return fmt.Errorf("currency.geo_provider: %w", err)
		}
	}
	if cfg.RateProvider != "" {
		if err := reg.SetDefault(provider.CapabilityRates, cfg.RateProvider); err != nil {
			return fmt.Errorf("currency.rate_provider: %w", err)
		}
	}
	return nil
}

// Package currency resolves the currency a visitor sees prices in.
//
// Resolution is best effort: geolocate the visitor, then fetch the rate from
// the reference currency. Any failure yields the reference currency at
// rate 1 and is logged and counted, never returned.
package currency

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/seenimoa/glitchsite/internal/config"
	"github.com/seenimoa/glitchsite/internal/infra"
	"github.com/seenimoa/glitchsite/internal/metrics"
	"github.com/seenimoa/glitchsite/internal/provider"
	"github.com/seenimoa/glitchsite/pkg/models"
	"github.com/seenimoa/glitchsite/pkg/utils"
)

// ErrUnknownCurrency is returned for codes that are not ISO 4217.
var ErrUnknownCurrency = errors.New("unknown currency")

// failureTTL bounds how long a fallback result is reused.
const failureTTL = time.Minute

// Options configures a Resolver.
type Options struct {
	Enabled         bool
	ReferenceCode   string
	ReferenceSymbol string
	Timeout         time.Duration
	CacheTTL        time.Duration
	Logger          *logrus.Logger
}

// OptionsFromConfig builds resolver options from the application config.
func OptionsFromConfig(cfg *config.Config, log *logrus.Logger) Options {
	return Options{
		Enabled:         cfg.Currency.Enabled,
		ReferenceCode:   cfg.Pricing.ReferenceCurrency,
		ReferenceSymbol: cfg.Pricing.ReferenceSymbol,
		Timeout:         cfg.Currency.Timeout(),
		CacheTTL:        cfg.Currency.CacheTTL,
		Logger:          log,
	}
}

// Resolver turns a visitor IP or an explicit currency code into a
// models.CurrencyInfo.
type Resolver struct {
	geo      provider.GeoLocator
	rates    provider.RateProvider
	opts     Options
	log      *logrus.Entry
	byIP     *infra.Cache[models.CurrencyInfo]
	byCode   *infra.Cache[models.CurrencyInfo]
	flights  singleflight.Group
	cacheTTL time.Duration
}

// New creates a resolver over the given providers. Either provider may be
// nil, in which case every resolution falls back to the reference currency.
func New(geo provider.GeoLocator, rates provider.RateProvider, opts Options) *Resolver {
	if opts.ReferenceCode == "" {
		opts.ReferenceCode = models.ReferenceCurrency
	}
	opts.ReferenceCode = strings.ToUpper(opts.ReferenceCode)
	if opts.ReferenceSymbol == "" {
		opts.ReferenceSymbol = utils.CurrencySymbol(opts.ReferenceCode)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Resolver{
		geo:      geo,
		rates:    rates,
		opts:     opts,
		log:      log.WithField("component", "currency"),
		byIP:     infra.NewCache[models.CurrencyInfo](opts.CacheTTL),
		byCode:   infra.NewCache[models.CurrencyInfo](opts.CacheTTL),
		cacheTTL: opts.CacheTTL,
	}
}

// NewFromRegistry wires a resolver to the registry's default geolocator and
// rate provider.
func NewFromRegistry(reg *provider.Registry, opts Options) (*Resolver, error) {
	geo, err := reg.GeoLocator("")
	if err != nil {
		return nil, fmt.Errorf("geolocation provider: %w", err)
	}
	rates, err := reg.RateProvider("")
	if err != nil {
		return nil, fmt.Errorf("rate provider: %w", err)
	}
	return New(geo, rates, opts), nil
}

// Reference returns the reference currency at rate 1, marked as a fallback.
func (r *Resolver) Reference() models.CurrencyInfo {
	info := models.DefaultCurrencyInfo()
	info.Code = r.opts.ReferenceCode
	info.Symbol = r.opts.ReferenceSymbol
	return info
}

// Resolve returns the currency for a visitor. It never fails: on any error
// the reference currency at rate 1 is returned. Loopback, private and empty
// addresses are located as the server's own public address.
func (r *Resolver) Resolve(ctx context.Context, clientIP string) models.CurrencyInfo {
	if !r.opts.Enabled || r.geo == nil || r.rates == nil {
		metrics.RecordResolution(metrics.OutcomeDisabled)
		return r.Reference()
	}

	ip := lookupIP(clientIP)
	key := ip
	if key == "" {
		key = "self"
	}
	if info, ok := r.byIP.Get(key); ok {
		metrics.RecordResolution(metrics.OutcomeCached)
		return info
	}

	return r.once(ctx, r.byIP, "ip", key, func(ctx context.Context) (models.CurrencyInfo, string) {
		log := r.log.WithContext(ctx).WithField("ip", key)
		return r.resolveIP(ctx, ip, log)
	})
}

func (r *Resolver) resolveIP(ctx context.Context, ip string, log *logrus.Entry) (models.CurrencyInfo, string) {
	geoName := r.geo.Info().Name

	lctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	start := time.Now()
	loc, err := r.geo.Locate(lctx, ip)
	cancel()
	metrics.ObserveUpstream(geoName, time.Since(start), err == nil)
	if err != nil {
		log.WithFields(logrus.Fields{"provider": geoName, "error": err}).Warn("geolocation failed, using reference currency")
		return r.Reference(), metrics.OutcomeGeoFailed
	}

	code := strings.ToUpper(strings.TrimSpace(loc.Currency))
	if code == "" {
		log.WithField("provider", geoName).Warn("geolocation returned no currency, using reference currency")
		return r.Reference(), metrics.OutcomeNoCurrency
	}
	if code == r.opts.ReferenceCode {
		info := r.Reference()
		info.Source = geoName
		info.Fallback = false
		return info, metrics.OutcomeReference
	}

	symbol := loc.CurrencySymbol
	if symbol == "" {
		symbol = utils.CurrencySymbol(code)
	}
	return r.convert(ctx, code, symbol, geoName+"+"+r.rates.Info().Name, log)
}

// ResolveCode resolves an explicit currency choice. Codes that are not
// ISO 4217 return ErrUnknownCurrency; rate failures fall back to the
// reference currency like Resolve.
func (r *Resolver) ResolveCode(ctx context.Context, raw string) (models.CurrencyInfo, error) {
	code, err := utils.ParseCurrencyCode(raw)
	if err != nil {
		return models.CurrencyInfo{}, fmt.Errorf("%w: %q", ErrUnknownCurrency, raw)
	}

	if code == r.opts.ReferenceCode {
		info := r.Reference()
		info.Source = models.SourceOverride
		info.Fallback = false
		return info, nil
	}
	if !r.opts.Enabled || r.rates == nil {
		metrics.RecordResolution(metrics.OutcomeDisabled)
		return r.Reference(), nil
	}

	if info, ok := r.byCode.Get(code); ok {
		metrics.RecordResolution(metrics.OutcomeCached)
		return info, nil
	}

	return r.once(ctx, r.byCode, "code", code, func(ctx context.Context) (models.CurrencyInfo, string) {
		log := r.log.WithContext(ctx).WithField("currency", code)
		return r.convert(ctx, code, utils.CurrencySymbol(code), models.SourceOverride+"+"+r.rates.Info().Name, log)
	}), nil
}

// once runs lookup at most once per key at a time and caches the result.
// Concurrent callers for the same key share it. The lookup is detached from
// the caller's cancellation and bounded by the resolver timeout instead.
func (r *Resolver) once(ctx context.Context, c *infra.Cache[models.CurrencyInfo], kind, key string,
	lookup func(context.Context) (models.CurrencyInfo, string)) models.CurrencyInfo {
	v, _, _ := r.flights.Do(kind+":"+key, func() (any, error) {
		if info, ok := c.Get(key); ok {
			metrics.RecordResolution(metrics.OutcomeCached)
			return info, nil
		}
		info, outcome := lookup(context.WithoutCancel(ctx))
		metrics.RecordResolution(outcome)
		r.store(c, key, info)
		return info, nil
	})
	return v.(models.CurrencyInfo)
}

// convert fetches reference→code and builds the resulting info.
func (r *Resolver) convert(ctx context.Context, code, symbol, source string, log *logrus.Entry) (models.CurrencyInfo, string) {
	ratesName := r.rates.Info().Name

	rctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	start := time.Now()
	rate, err := r.rates.Rate(rctx, r.opts.ReferenceCode, code)
	cancel()
	metrics.ObserveUpstream(ratesName, time.Since(start), err == nil)
	if err != nil {
		log.WithFields(logrus.Fields{"provider": ratesName, "error": err}).Warn("rate lookup failed, using reference currency")
		return r.Reference(), metrics.OutcomeRateFailed
	}
	if rate.Rate <= 0 || math.IsNaN(rate.Rate) || math.IsInf(rate.Rate, 0) {
		log.WithFields(logrus.Fields{"provider": ratesName, "rate": rate.Rate}).Warn("rate is not positive, using reference currency")
		return r.Reference(), metrics.OutcomeInvalidRate
	}

	return models.CurrencyInfo{
		Code:     code,
		Symbol:   symbol,
		Rate:     rate.Rate,
		Source:   source,
		Fallback: false,
	}, metrics.OutcomeResolved
}

// store caches a result; fallbacks are kept only briefly so a transient
// upstream outage does not pin visitors to the reference currency.
func (r *Resolver) store(c *infra.Cache[models.CurrencyInfo], key string, info models.CurrencyInfo) {
	ttl := r.cacheTTL
	if info.Fallback && failureTTL < ttl {
		ttl = failureTTL
	}
	c.SetWithTTL(key, info, ttl)
}

// Cleanup drops expired resolutions. The server calls it periodically so
// the per-visitor cache does not grow with every address ever seen.
func (r *Resolver) Cleanup() {
	r.byIP.Cleanup()
	r.byCode.Cleanup()
}

// Cached returns the number of cached resolutions, expired ones included.
func (r *Resolver) Cached() int {
	return r.byIP.Len() + r.byCode.Len()
}

// lookupIP normalises a client address for the geolocator. It returns ""
// for addresses a public geolocation service cannot place.
func lookupIP(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(raw); err == nil {
		raw = host
	}
	addr, err := netip.ParseAddr(strings.Trim(raw, "[]"))
	if err != nil {
		return ""
	}
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsMulticast() {
		return ""
	}
	return addr.String()
}

package provider

import (
	"context"
	"time"

	"github.com/seenimoa/glitchsite/internal/infra"
)

// BaseProvider provides common functionality for provider implementations.
// Embed it in concrete providers to get metadata, credentials, a response
// cache and an outbound rate limiter.
type BaseProvider struct {
	info        ProviderInfo
	credentials map[string]string
	cache       *infra.Cache[any]
	limiter     *infra.RateLimiter
}

// NewBaseProvider creates a base provider with a 10 minute cache and a
// limit of 10 outbound requests per second.
func NewBaseProvider(name, description, website string, creds []ProviderCredential, caps ...Capability) BaseProvider {
	return BaseProvider{
		info: ProviderInfo{
			Name:         name,
			Description:  description,
			Website:      website,
			Credentials:  creds,
			Capabilities: caps,
		},
		credentials: make(map[string]string),
		cache:       infra.NewCache[any](10 * time.Minute),
		limiter:     infra.NewRateLimiter(10, time.Second),
	}
}

func (bp *BaseProvider) Info() ProviderInfo { return bp.info }

func (bp *BaseProvider) Init(credentials map[string]string) error {
	for _, cred := range bp.info.Credentials {
		if cred.Required {
			val, ok := credentials[cred.Name]
			if !ok || val == "" {
				return &ErrInvalidCredentials{
					Provider: bp.info.Name,
					Detail:   "missing required credential: " + cred.Name,
				}
			}
		}
	}
	if credentials == nil {
		credentials = make(map[string]string)
	}
	bp.credentials = credentials
	return nil
}

func (bp *BaseProvider) Ping(ctx context.Context) error {
	return nil // Override in concrete providers.
}

// Credential returns a stored credential value.
func (bp *BaseProvider) Credential(name string) string {
	return bp.credentials[name]
}

// SetLimits replaces the cache TTL and outbound rate limit.
func (bp *BaseProvider) SetLimits(cacheTTL time.Duration, rateLimit int, rateWindow time.Duration) {
	bp.cache = infra.NewCache[any](cacheTTL)
	bp.limiter = infra.NewRateLimiter(rateLimit, rateWindow)
}

// CacheGet retrieves a value from the provider's cache.
func (bp *BaseProvider) CacheGet(key string) (any, bool) {
	return bp.cache.Get(key)
}

// CacheSet stores a value in the provider's cache.
func (bp *BaseProvider) CacheSet(key string, value any) {
	bp.cache.Set(key, value)
}

// RateLimit waits until an outbound request slot is available.
func (bp *BaseProvider) RateLimit(ctx context.Context) error {
	return bp.limiter.Wait(ctx)
}

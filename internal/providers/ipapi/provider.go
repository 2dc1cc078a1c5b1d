// Package ipapi implements IP geolocation on top of ipapi.co.
//
// The free tier needs no key; an optional key is appended as ?key= for paid
// plans.
package ipapi

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/seenimoa/glitchsite/internal/infra"
	"github.com/seenimoa/glitchsite/internal/provider"
	"github.com/seenimoa/glitchsite/pkg/models"
)

const providerName = "ipapi"

// DefaultBaseURL is the public ipapi.co endpoint.
const DefaultBaseURL = "https://ipapi.co"

// Provider implements provider.GeoLocator for ipapi.co.
type Provider struct {
	provider.BaseProvider
	baseURL string
}

// New creates an ipapi provider. An empty baseURL uses DefaultBaseURL.
func New(baseURL string) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Provider{
		BaseProvider: provider.NewBaseProvider(
			providerName,
			"ipapi.co - IP geolocation with local currency",
			"https://ipapi.co",
			[]provider.ProviderCredential{
				{
					Name:        "api_key",
					Description: "ipapi.co API key for paid plans",
					Required:    false,
					EnvVar:      "GLITCHSITE_CURRENCY_IPAPI_KEY",
				},
			},
			provider.CapabilityGeolocation,
		),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Locate looks up ip. An empty ip asks ipapi.co to locate the caller.
func (p *Provider) Locate(ctx context.Context, ip string) (*models.GeoLocation, error) {
	if err := p.RateLimit(ctx); err != nil {
		return nil, err
	}

	var resp locationResponse
	if err := infra.FetchJSON(ctx, p.lookupURL(ip), &resp); err != nil {
		return nil, fmt.Errorf("ipapi locate: %w", err)
	}
	if resp.Error {
		reason := resp.Reason
		if reason == "" {
			reason = "unknown error"
		}
		return nil, &provider.ErrLookupFailed{Provider: providerName, Reason: reason}
	}

	return &models.GeoLocation{
		IP:             resp.IP,
		CountryCode:    resp.CountryCode,
		Currency:       strings.ToUpper(strings.TrimSpace(resp.Currency)),
		CurrencySymbol: resp.CurrencySymbol,
		Provider:       providerName,
	}, nil
}

// Ping checks connectivity to ipapi.co with a self lookup.
func (p *Provider) Ping(ctx context.Context) error {
	body, _, err := infra.DoGet(ctx, p.lookupURL(""), nil)
	if err != nil {
		return fmt.Errorf("ipapi ping: %w", err)
	}
	body.Close()
	return nil
}

func (p *Provider) lookupURL(ip string) string {
	u := p.baseURL + "/json/"
	if ip != "" {
		u = p.baseURL + "/" + url.PathEscape(ip) + "/json/"
	}
	if key := p.Credential("api_key"); key != "" {
		u += "?key=" + url.QueryEscape(key)
	}
	return u
}

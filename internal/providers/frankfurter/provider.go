// Package frankfurter implements exchange rates on top of the Frankfurter
// API (ECB reference rates served as JSON, no API key).
package frankfurter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/seenimoa/glitchsite/internal/infra"
	"github.com/seenimoa/glitchsite/internal/provider"
	"github.com/seenimoa/glitchsite/pkg/models"
)

const providerName = "frankfurter"

// DefaultBaseURL is the public Frankfurter endpoint.
const DefaultBaseURL = "https://api.frankfurter.app"

// Provider implements provider.RateProvider for Frankfurter.
type Provider struct {
	provider.BaseProvider
	baseURL string
}

// New creates a Frankfurter provider. An empty baseURL uses DefaultBaseURL.
func New(baseURL string) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Provider{
		BaseProvider: provider.NewBaseProvider(
			providerName,
			"Frankfurter - free ECB reference exchange rates",
			"https://www.frankfurter.app",
			nil, // no credentials required
			provider.CapabilityRates,
		),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Rate returns how many units of to one unit of from buys.
func (p *Provider) Rate(ctx context.Context, from, to string) (*models.ExchangeRate, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)
	if from == to {
		return &models.ExchangeRate{From: from, To: to, Rate: 1, Date: time.Now().UTC(), Provider: providerName}, nil
	}

	cacheKey := from + ":" + to
	if cached, ok := p.CacheGet(cacheKey); ok {
		return cached.(*models.ExchangeRate), nil
	}

	if err := p.RateLimit(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/latest?from=%s&to=%s", p.baseURL, url.QueryEscape(from), url.QueryEscape(to))
	var resp latestResponse
	if err := infra.FetchJSON(ctx, u, &resp); err != nil {
		// Unsupported currencies come back as 404 or 422.
		var httpErr *infra.ErrHTTP
		if errors.As(err, &httpErr) && (httpErr.StatusCode == http.StatusNotFound || httpErr.StatusCode == http.StatusUnprocessableEntity) {
			return nil, &provider.ErrRateNotFound{Provider: providerName, From: from, To: to}
		}
		return nil, fmt.Errorf("frankfurter rate %s→%s: %w", from, to, err)
	}

	value, ok := resp.Rates[to]
	if !ok {
		return nil, &provider.ErrRateNotFound{Provider: providerName, From: from, To: to}
	}
	// Rates are quoted per resp.Amount units of the base.
	if resp.Amount > 0 && resp.Amount != 1 {
		value /= resp.Amount
	}

	rate := &models.ExchangeRate{
		From:     from,
		To:       to,
		Rate:     value,
		Date:     parseDate(resp.Date),
		Provider: providerName,
	}
	p.CacheSet(cacheKey, rate)
	return rate, nil
}

// Ping checks connectivity to Frankfurter.
func (p *Provider) Ping(ctx context.Context) error {
	body, _, err := infra.DoGet(ctx, p.baseURL+"/currencies", nil)
	if err != nil {
		return fmt.Errorf("frankfurter ping: %w", err)
	}
	body.Close()
	return nil
}

func parseDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

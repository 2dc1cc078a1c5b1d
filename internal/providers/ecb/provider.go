// Package ecb implements exchange rates from the European Central Bank's
// per-currency reference-rate RSS feeds.
//
// Each feed quotes one currency against the euro, with item titles such as
// "18.6720 ZAR = 1 EUR 2024-01-02 ECB Reference rate". Rates between two
// non-euro currencies are crossed through EUR.
package ecb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/seenimoa/glitchsite/internal/infra"
	"github.com/seenimoa/glitchsite/internal/provider"
	"github.com/seenimoa/glitchsite/pkg/models"
)

const providerName = "ecb"

// DefaultBaseURL is the ECB website hosting the feeds.
const DefaultBaseURL = "https://www.ecb.europa.eu"

var titleRe = regexp.MustCompile(`^\s*([0-9]+(?:\.[0-9]+)?)\s+([A-Z]{3})\s*=\s*1\s+EUR\b(?:\s+(\d{4}-\d{2}-\d{2}))?`)

// Provider implements provider.RateProvider for the ECB feeds.
type Provider struct {
	provider.BaseProvider
	baseURL string
	parser  *gofeed.Parser
}

// euroRate is the number of units of a currency one euro buys.
type euroRate struct {
	value float64
	date  time.Time
}

// New creates an ECB provider. An empty baseURL uses DefaultBaseURL.
func New(baseURL string) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Provider{
		BaseProvider: provider.NewBaseProvider(
			providerName,
			"European Central Bank - euro foreign exchange reference rates (RSS)",
			"https://www.ecb.europa.eu",
			nil,
			provider.CapabilityRates,
		),
		baseURL: strings.TrimRight(baseURL, "/"),
		parser:  gofeed.NewParser(),
	}
}

// Rate returns the cross rate from→to, computed as (EUR→to)/(EUR→from).
func (p *Provider) Rate(ctx context.Context, from, to string) (*models.ExchangeRate, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)
	if from == to {
		return &models.ExchangeRate{From: from, To: to, Rate: 1, Date: time.Now().UTC(), Provider: providerName}, nil
	}

	rf, err := p.euroRate(ctx, from)
	if err != nil {
		return nil, err
	}
	rt, err := p.euroRate(ctx, to)
	if err != nil {
		return nil, err
	}

	date := rt.date
	if date.IsZero() || (!rf.date.IsZero() && rf.date.Before(date)) {
		date = rf.date
	}

	return &models.ExchangeRate{
		From:     from,
		To:       to,
		Rate:     rt.value / rf.value,
		Date:     date,
		Provider: providerName,
	}, nil
}

// Ping checks that the USD feed is reachable.
func (p *Provider) Ping(ctx context.Context) error {
	body, _, err := infra.DoGet(ctx, p.feedURL("USD"), nil)
	if err != nil {
		return fmt.Errorf("ecb ping: %w", err)
	}
	body.Close()
	return nil
}

func (p *Provider) feedURL(code string) string {
	return fmt.Sprintf("%s/rss/fxref-%s.html", p.baseURL, strings.ToLower(code))
}

func (p *Provider) euroRate(ctx context.Context, code string) (euroRate, error) {
	if code == "EUR" {
		return euroRate{value: 1}, nil
	}

	cacheKey := "eur:" + code
	if cached, ok := p.CacheGet(cacheKey); ok {
		return cached.(euroRate), nil
	}

	if err := p.RateLimit(ctx); err != nil {
		return euroRate{}, err
	}

	body, _, err := infra.DoGet(ctx, p.feedURL(code), map[string]string{
		"Accept": "application/rss+xml, application/xml;q=0.9, */*;q=0.8",
	})
	if err != nil {
		var httpErr *infra.ErrHTTP
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			return euroRate{}, &provider.ErrRateNotFound{Provider: providerName, From: "EUR", To: code}
		}
		return euroRate{}, fmt.Errorf("ecb feed %s: %w", code, err)
	}
	defer body.Close()

	feed, err := p.parser.Parse(body)
	if err != nil {
		return euroRate{}, fmt.Errorf("ecb feed %s: parse: %w", code, err)
	}

	r, ok := latestRate(feed, code)
	if !ok {
		return euroRate{}, &provider.ErrRateNotFound{Provider: providerName, From: "EUR", To: code}
	}
	p.CacheSet(cacheKey, r)
	return r, nil
}

// latestRate picks the most recent positive rate for code among the items.
func latestRate(feed *gofeed.Feed, code string) (euroRate, bool) {
	var best euroRate
	found := false
	for _, item := range feed.Items {
		r, ok := parseTitle(item.Title, code)
		if !ok {
			continue
		}
		if r.date.IsZero() && item.PublishedParsed != nil {
			r.date = item.PublishedParsed.UTC()
		}
		if !found || r.date.After(best.date) {
			best = r
			found = true
		}
	}
	return best, found
}

// parseTitle reads "<rate> <CCY> = 1 EUR <date> ..." and checks the currency.
func parseTitle(title, code string) (euroRate, bool) {
	m := titleRe.FindStringSubmatch(title)
	if m == nil || m[2] != code {
		return euroRate{}, false
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil || value <= 0 {
		return euroRate{}, false
	}
	r := euroRate{value: value}
	if m[3] != "" {
		if d, err := time.Parse("2006-01-02", m[3]); err == nil {
			r.date = d
		}
	}
	return r, true
}

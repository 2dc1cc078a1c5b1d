package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/glitchsite/internal/config"
	"github.com/seenimoa/glitchsite/internal/currency"
	"github.com/seenimoa/glitchsite/internal/provider"
	"github.com/seenimoa/glitchsite/internal/site"
	"github.com/seenimoa/glitchsite/pkg/models"
)

const nbsp = "\u00a0"

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

type stubGeo struct {
	provider.BaseProvider
	code, symbol string
	err          error
}

func (g *stubGeo) Locate(ctx context.Context, ip string) (*models.GeoLocation, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &models.GeoLocation{IP: ip, Currency: g.code, CurrencySymbol: g.symbol, Provider: "stubgeo"}, nil
}

type stubRates struct {
	provider.BaseProvider
	rate float64
	err  error
}

func (s *stubRates) Rate(ctx context.Context, from, to string) (*models.ExchangeRate, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.ExchangeRate{From: from, To: to, Rate: s.rate, Provider: "stubrates"}, nil
}

type fixture struct {
	code, symbol string
	rate         float64
	geoErr       error
	mutate       func(*config.Config)
	renderer     *site.Renderer
}

func testServer(t *testing.T, fx fixture) *Server {
	t.Helper()

	if fx.code == "" {
		fx.code, fx.symbol = "ZAR", "R"
	}
	if fx.rate == 0 {
		fx.rate = 1
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := config.Default()
	cfg.Server.RateLimit.RPS = 0
	if fx.mutate != nil {
		fx.mutate(cfg)
	}

	geo := &stubGeo{
		BaseProvider: provider.NewBaseProvider("stubgeo", "", "", nil, provider.CapabilityGeolocation),
		code:         fx.code,
		symbol:       fx.symbol,
		err:          fx.geoErr,
	}
	rates := &stubRates{
		BaseProvider: provider.NewBaseProvider("stubrates", "", "", nil, provider.CapabilityRates),
		rate:         fx.rate,
	}
	resolver := currency.New(geo, rates, currency.OptionsFromConfig(cfg, log))

	srv, err := NewServer(cfg, Options{
		Resolver: resolver,
		Renderer: fx.renderer,
		Logger:   log,
		Version:  "test",
	})
	require.NoError(t, err)
	return srv
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

// envelope decodes an APIResponse, unpacking Data into dest when non-nil.
func envelope(t *testing.T, rec *httptest.ResponseRecorder, dest any) APIResponse {
	t.Helper()
	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	if dest != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, dest))
	}
	return APIResponse{Success: raw.Success, Error: raw.Error}
}

func document(t *testing.T, rec *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(rec.Body)
	require.NoError(t, err)
	return doc
}

// quoteBody mirrors the quote fields the tests inspect.
type quoteBody struct {
	Plan         string              `json:"plan"`
	Features     []string            `json:"features"`
	Total        decimal.Decimal     `json:"total"`
	Rate         decimal.Decimal     `json:"rate"`
	Currency     models.CurrencyInfo `json:"currency"`
	TotalDisplay string              `json:"total_display"`
	Disclaimer   string              `json:"disclaimer"`
}

// ════════════════════════════════════════════════════════════════════
// Construction
// ════════════════════════════════════════════════════════════════════

func TestNewServerRequiresResolver(t *testing.T) {
	_, err := NewServer(config.Default(), Options{})
	assert.Error(t, err)

	_, err = NewServer(nil, Options{})
	assert.Error(t, err)
}

// ════════════════════════════════════════════════════════════════════
// Health & metrics
// ════════════════════════════════════════════════════════════════════

func TestHealthEndpoints(t *testing.T) {
	srv := testServer(t, fixture{})

	for _, path := range []string{"/health", "/api/v1/health"} {
		t.Run(path, func(t *testing.T) {
			rec := do(t, srv, http.MethodGet, path, "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var h HealthResponse
			resp := envelope(t, rec, &h)
			assert.True(t, resp.Success)
			assert.Equal(t, "ok", h.Status)
			assert.Equal(t, "test", h.Version)
			assert.Zero(t, h.WebSocketClients)
			assert.True(t, h.CurrencyEnabled)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t, fixture{})
	do(t, srv, http.MethodGet, "/api/v1/health", "")

	rec := do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "glitchsite_http_requests_total")
	assert.Contains(t, body, `path="/api/v1/health"`)
}

func TestUnknownRoute(t *testing.T) {
	srv := testServer(t, fixture{})
	rec := do(t, srv, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ════════════════════════════════════════════════════════════════════
// Page
// ════════════════════════════════════════════════════════════════════

func TestIndexRendersDefaultEstimate(t *testing.T) {
	srv := testServer(t, fixture{})

	rec := do(t, srv, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	doc := document(t, rec)
	assert.Equal(t, 4, doc.Find("section.panel").Length())
	assert.Equal(t, "R12"+nbsp+"000,00", doc.Find("#total").Text())
	_, checked := doc.Find(`label[data-plan="standard"] input`).Attr("checked")
	assert.True(t, checked)
	assert.Zero(t, doc.Find(`input[name="currency"]`).Length())
	assert.Equal(t, "ZAR", doc.Find("body").AttrOr("data-currency", ""))
}

// quotesTotal scrapes glitchsite_quotes_total for plan from /metrics.
func quotesTotal(t *testing.T, srv *Server, plan string) float64 {
	t.Helper()
	rec := do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	re := regexp.MustCompile(`(?m)^glitchsite_quotes_total\{plan="` + regexp.QuoteMeta(plan) + `"\} (\S+)$`)
	m := re.FindStringSubmatch(rec.Body.String())
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	require.NoError(t, err)
	return v
}

func TestIndexCountsQuote(t *testing.T) {
	srv := testServer(t, fixture{})
	before := quotesTotal(t, srv, "premium")

	rec := do(t, srv, http.MethodGet, "/?plan=premium", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, before+1, quotesTotal(t, srv, "premium"))
}

func TestIndexAppliesQuerySelection(t *testing.T) {
	srv := testServer(t, fixture{})

	rec := do(t, srv, http.MethodGet, "/?plan=standard&feature=ai-integration", "")
	require.Equal(t, http.StatusOK, rec.Code)

	doc := document(t, rec)
	assert.Equal(t, "R17"+nbsp+"000,00", doc.Find("#total").Text())
	_, checked := doc.Find("#feature-ai-integration").Attr("checked")
	assert.True(t, checked)
}

func TestIndexConvertsToVisitorCurrency(t *testing.T) {
	srv := testServer(t, fixture{code: "USD", symbol: "$", rate: 0.054})

	rec := do(t, srv, http.MethodGet, "/?plan=basic", "")
	require.Equal(t, http.StatusOK, rec.Code)

	doc := document(t, rec)
	assert.Equal(t, "$270,00", doc.Find("#total").Text())
	assert.Contains(t, doc.Find("#pricing-intro").Text(), "(USD)")
}

func TestIndexFallsBackOnGeoFailure(t *testing.T) {
	srv := testServer(t, fixture{code: "USD", symbol: "$", rate: 0.054, geoErr: errors.New("offline")})

	rec := do(t, srv, http.MethodGet, "/?plan=basic", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "R5"+nbsp+"000,00", document(t, rec).Find("#total").Text())
}

func TestIndexInvalidInputFallsBack(t *testing.T) {
	srv := testServer(t, fixture{})

	rec := do(t, srv, http.MethodGet, "/?plan=gold&feature=blockchain&currency=NOPE", "")
	require.Equal(t, http.StatusOK, rec.Code)

	doc := document(t, rec)
	assert.Equal(t, "R12"+nbsp+"000,00", doc.Find("#total").Text())
	assert.Zero(t, doc.Find(`input[name="currency"]`).Length())
}

func TestIndexCurrencyOverrideIsEchoed(t *testing.T) {
	srv := testServer(t, fixture{rate: 0.054})

	rec := do(t, srv, http.MethodGet, "/?plan=basic&currency=usd", "")
	require.Equal(t, http.StatusOK, rec.Code)

	doc := document(t, rec)
	assert.Equal(t, "USD", doc.Find(`input[name="currency"]`).AttrOr("value", ""))
	assert.Equal(t, "$270,00", doc.Find("#total").Text())
}

func TestIndexRenderFailure(t *testing.T) {
	renderer, err := site.NewRenderer(fstest.MapFS{
		"index.html": {Data: []byte(`{{.DoesNotExist}}`)},
	})
	require.NoError(t, err)
	srv := testServer(t, fixture{renderer: renderer})

	rec := do(t, srv, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
	assert.NotContains(t, rec.Body.String(), "<")
}

func TestStaticAssets(t *testing.T) {
	srv := testServer(t, fixture{})

	rec := do(t, srv, http.MethodGet, "/static/site.js", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "max-age")
	assert.Contains(t, rec.Body.String(), "/api/v1/ws/quote")

	rec = do(t, srv, http.MethodGet, "/static/", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodGet, "/static/missing.css", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ════════════════════════════════════════════════════════════════════
// JSON API
// ════════════════════════════════════════════════════════════════════

func TestCatalog(t *testing.T) {
	srv := testServer(t, fixture{code: "USD", symbol: "$", rate: 0.054})

	rec := do(t, srv, http.MethodGet, "/api/v1/catalog", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var cat CatalogResponse
	assert.True(t, envelope(t, rec, &cat).Success)
	assert.Equal(t, "USD", cat.Currency.Code)
	assert.Equal(t, "ZAR", cat.Reference)
	assert.Equal(t, "standard", cat.DefaultPlan)
	require.Len(t, cat.Plans, 3)
	require.Len(t, cat.Features, 4)

	basic := cat.Plans[0]
	assert.Equal(t, "basic", basic.ID)
	assert.Equal(t, "5000", basic.Price.String())
	assert.Equal(t, "270", basic.Converted.String())
	assert.Equal(t, "$270,00", basic.Display)
}

func TestCatalogUnknownCurrency(t *testing.T) {
	srv := testServer(t, fixture{})
	rec := do(t, srv, http.MethodGet, "/api/v1/catalog?currency=NOPE", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.False(t, envelope(t, rec, nil).Success)
}

func TestCurrencyEndpoint(t *testing.T) {
	srv := testServer(t, fixture{code: "EUR", symbol: "€", rate: 0.05})

	rec := do(t, srv, http.MethodGet, "/api/v1/currency", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var info models.CurrencyInfo
	envelope(t, rec, &info)
	assert.Equal(t, "EUR", info.Code)
	assert.Equal(t, 0.05, info.Rate)
	assert.False(t, info.Fallback)

	rec = do(t, srv, http.MethodGet, "/api/v1/currency?currency=zar", "")
	require.Equal(t, http.StatusOK, rec.Code)
	envelope(t, rec, &info)
	assert.Equal(t, "ZAR", info.Code)
	assert.Equal(t, models.SourceOverride, info.Source)

	rec = do(t, srv, http.MethodGet, "/api/v1/currency?currency=NOPE", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestQuote(t *testing.T) {
	srv := testServer(t, fixture{})

	rec := do(t, srv, http.MethodPost, "/api/v1/quote",
		`{"plan":"standard","features":{"ai-integration":true,"full-seo":false}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var q quoteBody
	assert.True(t, envelope(t, rec, &q).Success)
	assert.Equal(t, "standard", q.Plan)
	assert.Equal(t, []string{"ai-integration"}, q.Features)
	assert.Equal(t, "17000.00", q.Total.StringFixed(2))
	assert.Equal(t, "R17"+nbsp+"000,00", q.TotalDisplay)
	assert.Equal(t, "ZAR", q.Currency.Code)
	assert.Equal(t, site.Disclaimer, q.Disclaimer)
}

func TestQuoteExplicitRate(t *testing.T) {
	srv := testServer(t, fixture{})

	rec := do(t, srv, http.MethodPost, "/api/v1/quote",
		`{"plan":"basic","features":{},"currency":"USD","rate":0.054}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var q quoteBody
	envelope(t, rec, &q)
	assert.Equal(t, "270.00", q.Total.StringFixed(2))
	assert.Equal(t, "USD", q.Currency.Code)
	assert.Equal(t, "$", q.Currency.Symbol)
	assert.Equal(t, "request", q.Currency.Source)
}

func TestQuoteDefaultsPlan(t *testing.T) {
	srv := testServer(t, fixture{})

	rec := do(t, srv, http.MethodPost, "/api/v1/quote", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var q quoteBody
	envelope(t, rec, &q)
	assert.Equal(t, "standard", q.Plan)
	assert.Equal(t, "12000", q.Total.String())
}

func TestQuoteErrors(t *testing.T) {
	srv := testServer(t, fixture{})

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed json", `{"plan":`, http.StatusBadRequest},
		{"wrong type", `{"plan":42}`, http.StatusBadRequest},
		{"unknown plan", `{"plan":"enterprise"}`, http.StatusUnprocessableEntity},
		{"unknown feature", `{"plan":"basic","features":{"blockchain":true}}`, http.StatusUnprocessableEntity},
		{"zero rate", `{"plan":"basic","rate":0}`, http.StatusUnprocessableEntity},
		{"negative rate", `{"plan":"basic","rate":-1}`, http.StatusUnprocessableEntity},
		{"unknown currency", `{"plan":"basic","currency":"NOPE"}`, http.StatusUnprocessableEntity},
		{"unknown currency with rate", `{"plan":"basic","currency":"NOPE","rate":2}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/v1/quote", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			resp := envelope(t, rec, nil)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestQuoteMethodNotAllowed(t *testing.T) {
	srv := testServer(t, fixture{})
	rec := do(t, srv, http.MethodGet, "/api/v1/quote", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRateLimit(t *testing.T) {
	srv := testServer(t, fixture{mutate: func(c *config.Config) {
		c.Server.RateLimit.RPS = 0.001
		c.Server.RateLimit.Burst = 1
	}})

	rec := do(t, srv, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// The page is outside /api/v1 and never limited.
	rec = do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func forwardedGet(srv *Server, remoteAddr, forwardedFor string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.RemoteAddr = remoteAddr
	req.Header.Set("X-Forwarded-For", forwardedFor)
	req.Header.Set("X-Real-IP", forwardedFor)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestRateLimitIgnoresForwardedHeadersFromUntrustedPeers(t *testing.T) {
	srv := testServer(t, fixture{mutate: func(c *config.Config) {
		c.Server.RateLimit.RPS = 0.001
		c.Server.RateLimit.Burst = 1
	}})

	limited := 0
	for i := range 20 {
		rec := forwardedGet(srv, "203.0.113.9:40000", fmt.Sprintf("198.51.100.%d", i+1))
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 19, limited, "rotating X-Forwarded-For must not mint new buckets")
}

func TestRateLimitHonoursTrustedProxy(t *testing.T) {
	srv := testServer(t, fixture{mutate: func(c *config.Config) {
		c.Server.RateLimit.RPS = 0.001
		c.Server.RateLimit.Burst = 1
		c.Server.TrustedProxies = []string{"10.0.0.0/8"}
	}})

	// Distinct clients behind the proxy get their own budget.
	assert.Equal(t, http.StatusOK, forwardedGet(srv, "10.1.2.3:40000", "198.51.100.1").Code)
	assert.Equal(t, http.StatusOK, forwardedGet(srv, "10.1.2.3:40000", "198.51.100.2").Code)
	assert.Equal(t, http.StatusTooManyRequests, forwardedGet(srv, "10.1.2.3:40000", "198.51.100.1").Code)
}

func TestNewServerRejectsBadTrustedProxy(t *testing.T) {
	cfg := config.Default()
	cfg.Server.TrustedProxies = []string{"not-a-cidr"}
	_, err := NewServer(cfg, Options{Resolver: currency.New(nil, nil, currency.Options{})})
	assert.Error(t, err)
}

func TestSweepWithoutLimiter(t *testing.T) {
	srv := testServer(t, fixture{code: "USD", symbol: "$", rate: 0.054})
	require.Nil(t, srv.limiter)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "8.8.8.8:5000"
	srv.Router().ServeHTTP(httptest.NewRecorder(), req)

	var health HealthResponse
	envelope(t, do(t, srv, http.MethodGet, "/health", ""), &health)
	assert.Equal(t, 1, health.CachedCurrencies)

	// Fresh entries survive a sweep.
	assert.NotPanics(t, srv.sweep)
	envelope(t, do(t, srv, http.MethodGet, "/health", ""), &health)
	assert.Equal(t, 1, health.CachedCurrencies)
}

// ════════════════════════════════════════════════════════════════════
// Config
// ════════════════════════════════════════════════════════════════════

func TestGetConfigMasksSecrets(t *testing.T) {
	srv := testServer(t, fixture{mutate: func(c *config.Config) {
		c.Currency.IPAPIKey = "supersecretkey123"
	}})

	rec := do(t, srv, http.MethodGet, "/api/v1/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "supersecretkey123")

	var cfg config.Config
	envelope(t, rec, &cfg)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "ZAR", cfg.Pricing.ReferenceCurrency)
	assert.NotEmpty(t, cfg.Currency.IPAPIKey)
	assert.NotEqual(t, "supersecretkey123", cfg.Currency.IPAPIKey)
}

func TestGetConfigKeys(t *testing.T) {
	srv := testServer(t, fixture{})

	rec := do(t, srv, http.MethodGet, "/api/v1/config/keys", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var keys []config.KeyStatus
	envelope(t, rec, &keys)
	require.Len(t, keys, 1)
	assert.True(t, keys[0].Optional)
}

func TestConfigIsReadOnly(t *testing.T) {
	srv := testServer(t, fixture{})
	rec := do(t, srv, http.MethodPut, "/api/v1/config", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// ════════════════════════════════════════════════════════════════════
// WebSocket
// ════════════════════════════════════════════════════════════════════

func dialQuote(t *testing.T, srv *Server) (*websocket.Conn, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws/quote"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn, ts
}

type wsReply struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func roundTrip(t *testing.T, conn *websocket.Conn, msg any) wsReply {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
	return readReply(t, conn)
}

func readReply(t *testing.T, conn *websocket.Conn) wsReply {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var reply wsReply
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

func TestWebSocketQuote(t *testing.T) {
	srv := testServer(t, fixture{code: "USD", symbol: "$", rate: 0.054})
	defer srv.Hub().Close()
	conn, _ := dialQuote(t, srv)

	reply := roundTrip(t, conn, map[string]any{
		"type": "quote",
		"data": map[string]any{"plan": "basic", "features": map[string]bool{}},
	})
	require.Equal(t, MsgQuote, reply.Type, reply.Error)

	var q quoteBody
	require.NoError(t, json.Unmarshal(reply.Data, &q))
	assert.Equal(t, "270.00", q.Total.StringFixed(2))
	assert.Equal(t, "$270,00", q.TotalDisplay)
	assert.Equal(t, "USD", q.Currency.Code)
}

func TestWebSocketPingAndErrors(t *testing.T) {
	srv := testServer(t, fixture{})
	defer srv.Hub().Close()
	conn, _ := dialQuote(t, srv)

	assert.Equal(t, MsgPong, roundTrip(t, conn, map[string]string{"type": "ping"}).Type)

	reply := roundTrip(t, conn, map[string]any{"type": "quote", "data": map[string]any{"plan": "gold"}})
	assert.Equal(t, MsgError, reply.Type)
	assert.Contains(t, reply.Error, "invalid selection")

	reply = roundTrip(t, conn, map[string]string{"type": "subscribe"})
	assert.Equal(t, MsgError, reply.Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, MsgError, readReply(t, conn).Type)

	// The connection survives bad input.
	assert.Equal(t, MsgPong, roundTrip(t, conn, map[string]string{"type": "ping"}).Type)
}

func TestWebSocketShutdown(t *testing.T) {
	srv := testServer(t, fixture{})
	conn, _ := dialQuote(t, srv)

	require.Eventually(t, func() bool { return srv.Hub().ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	srv.Hub().Close()
	assert.Equal(t, MsgShutdown, readReply(t, conn).Type)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Zero(t, srv.Hub().ClientCount())
}

// ════════════════════════════════════════════════════════════════════
// Hub
// ════════════════════════════════════════════════════════════════════

func TestHubRegisterAndSend(t *testing.T) {
	hub := NewWSHub()
	c := &WSClient{id: "a", hub: hub, send: make(chan WSMessage, 1)}

	assert.False(t, hub.Send(c, WSMessage{Type: MsgPong}), "unregistered clients get nothing")

	require.True(t, hub.Register(c))
	assert.Equal(t, 1, hub.ClientCount())
	assert.True(t, hub.Send(c, WSMessage{Type: MsgPong}))
	assert.False(t, hub.Send(c, WSMessage{Type: MsgPong}), "full buffer")
	assert.Equal(t, MsgPong, (<-c.send).Type)

	hub.Unregister(c)
	assert.Zero(t, hub.ClientCount())
	_, open := <-c.send
	assert.False(t, open)

	// Unregistering twice is harmless.
	hub.Unregister(c)
}

func TestHubCloseRefusesNewClients(t *testing.T) {
	hub := NewWSHub()
	c := &WSClient{id: "a", hub: hub, send: make(chan WSMessage, 1)}
	require.True(t, hub.Register(c))

	hub.Close()
	hub.Close()

	msg, ok := <-c.send
	require.True(t, ok)
	assert.Equal(t, MsgShutdown, msg.Type)
	_, ok = <-c.send
	assert.False(t, ok)

	assert.False(t, hub.Register(&WSClient{id: "b", hub: hub, send: make(chan WSMessage, 1)}))
}

// ════════════════════════════════════════════════════════════════════
// Envelope
// ════════════════════════════════════════════════════════════════════

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusTeapot, "short and stout")

	assert.Equal(t, http.StatusTeapot, rec.Code)
	var buf bytes.Buffer
	buf.ReadFrom(rec.Body)
	assert.JSONEq(t, `{"success":false,"error":"short and stout"}`, buf.String())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(currency.ErrUnknownCurrency))
}

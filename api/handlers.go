package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/glitchsite/internal/currency"
	"github.com/seenimoa/glitchsite/internal/logging"
	"github.com/seenimoa/glitchsite/internal/metrics"
	"github.com/seenimoa/glitchsite/internal/pricing"
	"github.com/seenimoa/glitchsite/internal/site"
	"github.com/seenimoa/glitchsite/pkg/models"
	"github.com/seenimoa/glitchsite/pkg/utils"
)

// ============================================================
// Request / Response types
// ============================================================

// QuoteRequest is the body for POST /api/v1/quote and the data of a "quote"
// WebSocket message.
type QuoteRequest struct {
	Plan     string          `json:"plan"`
	Features map[string]bool `json:"features"`
	Currency string          `json:"currency,omitempty"` // ISO 4217; resolved for the caller when empty
	Rate     *float64        `json:"rate,omitempty"`     // explicit rate from the reference currency
}

// QuoteResponse is a priced quote plus its display strings.
type QuoteResponse struct {
	*pricing.Quote
	Currency     models.CurrencyInfo `json:"currency"`
	TotalDisplay string              `json:"total_display"`
	Disclaimer   string              `json:"disclaimer"`
}

// CatalogEntry is one plan or feature with reference and converted prices.
type CatalogEntry struct {
	ID          string          `json:"id"`
	Label       string          `json:"label,omitempty"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`     // reference currency
	Converted   decimal.Decimal `json:"converted"` // visitor currency, unrounded
	Display     string          `json:"display"`
}

// CatalogResponse is the payload of GET /api/v1/catalog.
type CatalogResponse struct {
	Currency    models.CurrencyInfo `json:"currency"`
	Reference   string              `json:"reference"`
	DefaultPlan string              `json:"default_plan"`
	Plans       []CatalogEntry      `json:"plans"`
	Features    []CatalogEntry      `json:"features"`
}

// statusFor maps a quote error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pricing.ErrInvalidSelection),
		errors.Is(err, pricing.ErrInvalidRate),
		errors.Is(err, currency.ErrUnknownCurrency):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ============================================================
// Handlers
// ============================================================

// handleIndex renders the whole site. Bad query input never fails the page:
// an invalid selection falls back to the default plan and an unknown
// currency to the caller's resolved currency.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	q := r.URL.Query()

	plan := q.Get("plan")
	if plan == "" {
		plan = s.cfg.Pricing.DefaultPlan
	}
	sel, err := pricing.NewSelection(plan, q["feature"])
	if err != nil {
		log.WithError(err).Debug("invalid selection in query, using defaults")
		sel = s.defaultSelection()
	}

	info, explicit := s.currencyFor(r, q.Get("currency"))

	rate, err := pricing.RateFromFloat(info.Rate)
	if err != nil {
		info, rate = s.resolver.Reference(), decimal.NewFromInt(1)
	}
	quote, err := pricing.Estimate(sel, rate)
	if err != nil {
		log.WithError(err).Error("estimate failed")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	metrics.RecordQuote(string(quote.Plan))

	pv := site.NewPricingView(info, sel, quote, s.locale)
	if explicit && !info.Fallback {
		pv.CurrencyParam = info.Code
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "private, no-cache")
	if err := s.renderer.Render(w, site.NewPage(pv, s.version)); err != nil {
		log.WithError(err).Error("render failed")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	info, err := s.explicitCurrency(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	rate, err := pricing.RateFromFloat(info.Rate)
	if err != nil {
		info, rate = s.resolver.Reference(), decimal.NewFromInt(1)
	}
	symbol := displaySymbol(info)

	resp := CatalogResponse{
		Currency:    info,
		Reference:   s.resolver.Reference().Code,
		DefaultPlan: string(s.defaultSelection().Plan),
	}
	for _, p := range pricing.Plans() {
		converted := pricing.Convert(p.Price, rate)
		resp.Plans = append(resp.Plans, CatalogEntry{
			ID:          string(p.ID),
			Description: p.Description,
			Price:       p.Price,
			Converted:   converted,
			Display:     utils.FormatMoney(symbol, converted, s.locale),
		})
	}
	for _, f := range pricing.Features() {
		converted := pricing.Convert(f.Price, rate)
		resp.Features = append(resp.Features, CatalogEntry{
			ID:        string(f.ID),
			Label:     f.Label,
			Price:     f.Price,
			Converted: converted,
			Display:   utils.FormatMoney(symbol, converted, s.locale),
		})
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

func (s *Server) handleCurrency(w http.ResponseWriter, r *http.Request) {
	info, err := s.explicitCurrency(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: info})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.quote(r.Context(), r.RemoteAddr, req)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    resp,
	})
}

// ============================================================
// Helpers
// ============================================================

// quote prices a request for the caller at remoteAddr.
func (s *Server) quote(ctx context.Context, remoteAddr string, req QuoteRequest) (*QuoteResponse, error) {
	plan := req.Plan
	if plan == "" {
		plan = s.cfg.Pricing.DefaultPlan
	}
	sel, err := pricing.SelectionFromMap(plan, req.Features)
	if err != nil {
		return nil, err
	}

	var info models.CurrencyInfo
	switch {
	case req.Rate != nil:
		info, err = s.explicitRate(req.Currency, *req.Rate)
	case req.Currency != "":
		info, err = s.resolver.ResolveCode(ctx, req.Currency)
	default:
		info = s.resolver.Resolve(ctx, remoteAddr)
	}
	if err != nil {
		return nil, err
	}

	rate, err := pricing.RateFromFloat(info.Rate)
	if err != nil {
		return nil, fmt.Errorf("rate %v: %w", info.Rate, err)
	}
	q, err := pricing.Estimate(sel, rate)
	if err != nil {
		return nil, err
	}
	metrics.RecordQuote(string(q.Plan))

	return &QuoteResponse{
		Quote:        q,
		Currency:     info,
		TotalDisplay: utils.FormatMoney(displaySymbol(info), q.Total, s.locale),
		Disclaimer:   site.Disclaimer,
	}, nil
}

// explicitRate builds currency info for a caller-supplied rate. The code
// defaults to the reference currency.
func (s *Server) explicitRate(code string, rate float64) (models.CurrencyInfo, error) {
	if _, err := pricing.RateFromFloat(rate); err != nil {
		return models.CurrencyInfo{}, err
	}
	ref := s.resolver.Reference()
	if code == "" {
		code = ref.Code
	}
	parsed, err := utils.ParseCurrencyCode(code)
	if err != nil {
		return models.CurrencyInfo{}, fmt.Errorf("%w: %q", currency.ErrUnknownCurrency, code)
	}
	return models.CurrencyInfo{
		Code:   parsed,
		Symbol: utils.CurrencySymbol(parsed),
		Rate:   rate,
		Source: "request",
	}, nil
}

// explicitCurrency resolves ?currency= when present and the caller's
// address otherwise. Only an unknown code is an error.
func (s *Server) explicitCurrency(r *http.Request) (models.CurrencyInfo, error) {
	if raw := r.URL.Query().Get("currency"); raw != "" {
		return s.resolver.ResolveCode(r.Context(), raw)
	}
	return s.resolver.Resolve(r.Context(), r.RemoteAddr), nil
}

// currencyFor resolves the currency for a request. A valid raw code wins and
// is reported as explicit; otherwise the caller's address is geolocated.
func (s *Server) currencyFor(r *http.Request, raw string) (models.CurrencyInfo, bool) {
	if raw != "" {
		info, err := s.resolver.ResolveCode(r.Context(), raw)
		if err == nil {
			return info, true
		}
		logging.FromContext(r.Context()).WithError(err).WithField("currency", raw).Debug("ignoring currency override")
	}
	return s.resolver.Resolve(r.Context(), r.RemoteAddr), false
}

func (s *Server) defaultSelection() pricing.Selection {
	sel, err := pricing.NewSelection(s.cfg.Pricing.DefaultPlan, nil)
	if err != nil {
		return pricing.DefaultSelection()
	}
	return sel
}

func displaySymbol(info models.CurrencyInfo) string {
	if info.Symbol != "" {
		return info.Symbol
	}
	return info.Code
}

package site

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/glitchsite/internal/pricing"
	"github.com/seenimoa/glitchsite/pkg/models"
	"github.com/seenimoa/glitchsite/pkg/utils"
)

// Disclaimer is printed under every estimate.
const Disclaimer = "*This is an estimate. A final quote will be provided after a detailed consultation."

// PlanCard is one selectable plan with its converted price.
type PlanCard struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Selected    bool   `json:"selected"`
}

// FeatureRow is one add-on toggle with its converted price.
type FeatureRow struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Price   string `json:"price"`
	Checked bool   `json:"checked"`
}

// PricingView is everything the pricing section displays.
type PricingView struct {
	Currency   models.CurrencyInfo `json:"currency"`
	Locale     string              `json:"locale"`
	Intro      string              `json:"intro"`
	Plans      []PlanCard          `json:"plans"`
	Features   []FeatureRow        `json:"features"`
	Total      string              `json:"total"`
	Disclaimer string              `json:"disclaimer"`

	// CurrencyParam is echoed back by the no-JS form when the visitor
	// picked a currency explicitly.
	CurrencyParam string `json:"-"`
}

// NewPricingView builds the pricing section for a selection and its quote.
// Every amount is converted by the quote's rate and rounded only here.
func NewPricingView(info models.CurrencyInfo, sel pricing.Selection, quote *pricing.Quote, loc utils.Locale) PricingView {
	rate := decimal.NewFromInt(1)
	if quote != nil {
		rate = quote.Rate
	}
	symbol := info.Symbol
	if symbol == "" {
		symbol = info.Code
	}

	v := PricingView{
		Currency:   info,
		Locale:     loc.String(),
		Intro:      fmt.Sprintf("Prices are displayed in your local currency (%s). Select a base plan and customize your features to get an instant estimate.", info.Code),
		Disclaimer: Disclaimer,
	}

	for _, p := range pricing.Plans() {
		v.Plans = append(v.Plans, PlanCard{
			ID:          string(p.ID),
			Description: p.Description,
			Price:       utils.FormatMoney(symbol, pricing.Convert(p.Price, rate), loc),
			Selected:    p.ID == sel.Plan,
		})
	}
	for _, f := range pricing.Features() {
		v.Features = append(v.Features, FeatureRow{
			ID:      string(f.ID),
			Label:   f.Label,
			Price:   utils.FormatMoney(symbol, pricing.Convert(f.Price, rate), loc),
			Checked: sel.Features[f.ID],
		})
	}

	total := decimal.Zero
	if quote != nil {
		total = quote.Total
	}
	v.Total = utils.FormatMoney(symbol, total, loc)
	return v
}

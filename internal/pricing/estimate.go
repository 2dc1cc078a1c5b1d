package pricing

import (
	"math"

	"github.com/shopspring/decimal"
)

// Selection is a chosen plan plus the on/off state of each add-on.
type Selection struct {
	Plan     Plan
	Features map[Feature]bool
}

// DefaultSelection is the standard plan with no add-ons.
func DefaultSelection() Selection {
	return Selection{Plan: DefaultPlan, Features: map[Feature]bool{}}
}

// NewSelection builds a selection from user-supplied ids. Every listed
// feature is switched on; duplicates are harmless.
func NewSelection(plan string, featureIDs []string) (Selection, error) {
	p, err := ParsePlan(plan)
	if err != nil {
		return Selection{}, err
	}
	sel := Selection{Plan: p, Features: make(map[Feature]bool, len(featureIDs))}
	for _, id := range featureIDs {
		f, err := ParseFeature(id)
		if err != nil {
			return Selection{}, err
		}
		sel.Features[f] = true
	}
	return sel, nil
}

// SelectionFromMap builds a selection from a feature id → selected mapping.
func SelectionFromMap(plan string, selected map[string]bool) (Selection, error) {
	p, err := ParsePlan(plan)
	if err != nil {
		return Selection{}, err
	}
	sel := Selection{Plan: p, Features: make(map[Feature]bool, len(selected))}
	for id, on := range selected {
		f, err := ParseFeature(id)
		if err != nil {
			return Selection{}, err
		}
		sel.Features[f] = on
	}
	return sel, nil
}

// Selected returns the switched-on features in catalog order.
func (s Selection) Selected() []Feature {
	out := make([]Feature, 0, len(s.Features))
	for _, info := range features {
		if s.Features[info.ID] {
			out = append(out, info.ID)
		}
	}
	return out
}

// Line is one priced row of a quote.
type Line struct {
	Kind   string          `json:"kind"` // "plan" or "feature"
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"` // converted by the quote rate
}

// Quote is the estimate for a selection at a conversion rate. It is derived
// on demand and never stored.
type Quote struct {
	Plan     Plan            `json:"plan"`
	Features []Feature       `json:"features"`
	Lines    []Line          `json:"lines"`
	Subtotal decimal.Decimal `json:"subtotal"` // reference currency
	Rate     decimal.Decimal `json:"rate"`
	Total    decimal.Decimal `json:"total"` // subtotal × rate, unrounded
}

// Estimate prices a selection:
//
//	total = (basePrice[plan] + Σ featurePrice[f] for selected f) × rate
//
// Unknown plans or features return an error wrapping ErrInvalidSelection and
// non-positive rates one wrapping ErrInvalidRate. Nothing is rounded here.
func Estimate(sel Selection, rate decimal.Decimal) (*Quote, error) {
	if !rate.IsPositive() {
		return nil, ErrInvalidRate
	}

	base, err := BasePrice(sel.Plan)
	if err != nil {
		return nil, err
	}

	q := &Quote{
		Plan:     sel.Plan,
		Features: []Feature{},
		Lines:    []Line{{Kind: "plan", ID: string(sel.Plan), Amount: base.Mul(rate)}},
		Subtotal: base,
		Rate:     rate,
	}

	// Validate every key, including switched-off ones, so a typo never
	// passes silently.
	for f := range sel.Features {
		if _, err := FeaturePrice(f); err != nil {
			return nil, err
		}
	}

	for _, info := range features {
		if !sel.Features[info.ID] {
			continue
		}
		q.Features = append(q.Features, info.ID)
		q.Lines = append(q.Lines, Line{Kind: "feature", ID: string(info.ID), Amount: info.Price.Mul(rate)})
		q.Subtotal = q.Subtotal.Add(info.Price)
	}

	q.Total = q.Subtotal.Mul(rate)
	return q, nil
}

// Convert applies a conversion rate to a reference-currency amount.
func Convert(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate)
}

// RateFromFloat turns a fetched float rate into a decimal without picking up
// binary floating point noise. NaN, infinities and non-positive rates are
// rejected with ErrInvalidRate.
func RateFromFloat(rate float64) (decimal.Decimal, error) {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return decimal.Zero, ErrInvalidRate
	}
	return decimal.NewFromFloat(rate), nil
}

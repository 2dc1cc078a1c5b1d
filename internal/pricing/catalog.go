// Package pricing holds the plan and add-on price catalog and the quote
// estimator. Prices are authored in the reference currency (ZAR).
package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Plan is a pricing tier with a fixed base price.
type Plan string

const (
	PlanBasic    Plan = "basic"
	PlanStandard Plan = "standard"
	PlanPremium  Plan = "premium"
)

// DefaultPlan is preselected on the pricing page.
const DefaultPlan = PlanStandard

// Feature is an optional add-on with a fixed incremental price.
type Feature string

const (
	FeatureCustomComponents  Feature = "custom-components"
	FeatureAIIntegration     Feature = "ai-integration"
	FeatureFullSEO           Feature = "full-seo"
	FeatureAdvancedAnalytics Feature = "advanced-analytics"
)

// PlanInfo describes one plan in the catalog.
type PlanInfo struct {
	ID          Plan            `json:"id"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
}

// FeatureInfo describes one add-on in the catalog.
type FeatureInfo struct {
	ID    Feature         `json:"id"`
	Label string          `json:"label"`
	Price decimal.Decimal `json:"price"`
}

var plans = []PlanInfo{
	{
		ID:          PlanBasic,
		Description: "Ideal for startups and small businesses needing a strong online presence.",
		Price:       decimal.NewFromInt(5000),
	},
	{
		ID:          PlanStandard,
		Description: "Our most popular option for growing businesses looking for more functionality.",
		Price:       decimal.NewFromInt(12000),
	},
	{
		ID:          PlanPremium,
		Description: "For enterprise-level clients who require custom, complex, and high-performance solutions.",
		Price:       decimal.NewFromInt(25000),
	},
}

var features = []FeatureInfo{
	{ID: FeatureCustomComponents, Label: "custom components", Price: decimal.NewFromInt(3000)},
	{ID: FeatureAIIntegration, Label: "ai integration", Price: decimal.NewFromInt(5000)},
	{ID: FeatureFullSEO, Label: "full seo", Price: decimal.NewFromInt(2500)},
	{ID: FeatureAdvancedAnalytics, Label: "advanced analytics", Price: decimal.NewFromInt(1500)},
}

// --- Errors ---

// ErrInvalidSelection is returned when a plan or feature is not in the catalog.
var ErrInvalidSelection = errors.New("invalid selection")

// ErrInvalidRate is returned when a conversion rate is zero or negative.
var ErrInvalidRate = errors.New("conversion rate must be positive")

// InvalidSelectionError names the offending plan or feature.
type InvalidSelectionError struct {
	Kind  string // "plan" or "feature"
	Value string
}

func (e *InvalidSelectionError) Error() string {
	return fmt.Sprintf("%s: unknown %s %q", ErrInvalidSelection, e.Kind, e.Value)
}

// Unwrap lets errors.Is match ErrInvalidSelection.
func (e *InvalidSelectionError) Unwrap() error {
	return ErrInvalidSelection
}

// --- Lookup ---

// Plans returns the catalog plans in display order.
func Plans() []PlanInfo {
	out := make([]PlanInfo, len(plans))
	copy(out, plans)
	return out
}

// Features returns the catalog add-ons in display order.
func Features() []FeatureInfo {
	out := make([]FeatureInfo, len(features))
	copy(out, features)
	return out
}

// ParsePlan resolves a plan id, ignoring case and surrounding whitespace.
func ParsePlan(s string) (Plan, error) {
	p := Plan(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := lookupPlan(p); !ok {
		return "", &InvalidSelectionError{Kind: "plan", Value: s}
	}
	return p, nil
}

// ParseFeature resolves a feature id, ignoring case and surrounding whitespace.
func ParseFeature(s string) (Feature, error) {
	f := Feature(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := lookupFeature(f); !ok {
		return "", &InvalidSelectionError{Kind: "feature", Value: s}
	}
	return f, nil
}

// BasePrice returns the reference-currency base price of a plan.
func BasePrice(p Plan) (decimal.Decimal, error) {
	info, ok := lookupPlan(p)
	if !ok {
		return decimal.Zero, &InvalidSelectionError{Kind: "plan", Value: string(p)}
	}
	return info.Price, nil
}

// FeaturePrice returns the reference-currency incremental price of a feature.
func FeaturePrice(f Feature) (decimal.Decimal, error) {
	info, ok := lookupFeature(f)
	if !ok {
		return decimal.Zero, &InvalidSelectionError{Kind: "feature", Value: string(f)}
	}
	return info.Price, nil
}

// Description returns the marketing blurb for a plan, or "" if unknown.
func Description(p Plan) string {
	info, _ := lookupPlan(p)
	return info.Description
}

func lookupPlan(p Plan) (PlanInfo, bool) {
	for _, info := range plans {
		if info.ID == p {
			return info, true
		}
	}
	return PlanInfo{}, false
}

func lookupFeature(f Feature) (FeatureInfo, bool) {
	for _, info := range features {
		if info.ID == f {
			return info, true
		}
	}
	return FeatureInfo{}, false
}

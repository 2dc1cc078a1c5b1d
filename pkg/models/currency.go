// Package models defines the data structures shared across glitchsite.
package models

import "time"

// Reference currency in which every plan and feature price is authored.
const (
	ReferenceCurrency = "ZAR"
	ReferenceSymbol   = "R"
)

// Sources reported in CurrencyInfo.Source.
const (
	SourceDefault  = "default"
	SourceOverride = "override"
)

// CurrencyInfo is the currency a visitor sees prices in.
type CurrencyInfo struct {
	Code     string  `json:"code"`     // e.g., "USD"
	Symbol   string  `json:"symbol"`   // e.g., "$"
	Rate     float64 `json:"rate"`     // multiplier from the reference currency
	Source   string  `json:"source"`   // e.g., "ipapi+frankfurter", "default"
	Fallback bool    `json:"fallback"` // true when resolution fell back to the reference currency
}

// DefaultCurrencyInfo returns the reference currency at rate 1.
func DefaultCurrencyInfo() CurrencyInfo {
	return CurrencyInfo{
		Code:     ReferenceCurrency,
		Symbol:   ReferenceSymbol,
		Rate:     1,
		Source:   SourceDefault,
		Fallback: true,
	}
}

// IsReference reports whether the info is priced in the reference currency.
func (c CurrencyInfo) IsReference() bool {
	return c.Code == ReferenceCurrency
}

// GeoLocation is the subset of an IP-geolocation lookup the site needs.
type GeoLocation struct {
	IP             string `json:"ip"`
	CountryCode    string `json:"country_code,omitempty"`
	Currency       string `json:"currency"`        // ISO 4217, e.g., "USD"
	CurrencySymbol string `json:"currency_symbol"` // e.g., "$"
	Provider       string `json:"provider"`
}

// ExchangeRate is a single conversion rate between two currencies.
type ExchangeRate struct {
	From     string    `json:"from"`
	To       string    `json:"to"`
	Rate     float64   `json:"rate"`
	Date     time.Time `json:"date,omitempty"`
	Provider string    `json:"provider"`
}

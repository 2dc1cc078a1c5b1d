// Package provider defines the upstream adapter abstraction behind currency
// resolution. A Provider advertises capabilities (geolocation, exchange
// rates) and a central registry routes lookups to providers by name.
package provider

import (
	"context"
	"fmt"

	"github.com/seenimoa/glitchsite/pkg/models"
)

// Capability is a kind of lookup a provider can serve.
type Capability string

const (
	CapabilityGeolocation Capability = "geolocation"
	CapabilityRates       Capability = "rates"
)

// ProviderCredential describes a credential a provider accepts.
type ProviderCredential struct {
	Name        string `json:"name"`        // e.g., "api_key"
	Description string `json:"description"` // e.g., "ipapi.co API key for paid plans"
	Required    bool   `json:"required"`
	EnvVar      string `json:"env_var"` // e.g., "GLITCHSITE_CURRENCY_IPAPI_KEY"
}

// ProviderInfo holds metadata about a registered provider.
type ProviderInfo struct {
	Name         string               `json:"name"`        // e.g., "ipapi", "frankfurter"
	Description  string               `json:"description"` // human-readable description
	Website      string               `json:"website"`
	Credentials  []ProviderCredential `json:"credentials"`
	Capabilities []Capability         `json:"capabilities"`
}

// Provider is the interface all upstream adapters implement.
type Provider interface {
	// Info returns metadata about this provider.
	Info() ProviderInfo

	// Init configures the provider with credentials. Called once before
	// registration; returns an error if required credentials are missing.
	Init(credentials map[string]string) error

	// Ping verifies the provider is reachable.
	Ping(ctx context.Context) error
}

// GeoLocator resolves an IP address to a location with its local currency.
// An empty ip asks the upstream to locate the caller's own address.
type GeoLocator interface {
	Provider
	Locate(ctx context.Context, ip string) (*models.GeoLocation, error)
}

// RateProvider returns the conversion rate between two ISO 4217 currencies.
type RateProvider interface {
	Provider
	Rate(ctx context.Context, from, to string) (*models.ExchangeRate, error)
}

// ErrProviderNotFound is returned when a requested provider is not registered.
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return fmt.Sprintf("provider %q not found", e.Name)
}

// ErrCapabilityNotSupported is returned when a provider lacks a capability.
type ErrCapabilityNotSupported struct {
	Provider   string
	Capability Capability
}

func (e *ErrCapabilityNotSupported) Error() string {
	return fmt.Sprintf("provider %q does not support %s", e.Provider, e.Capability)
}

// ErrRateNotFound is returned when an upstream has no rate for a pair.
type ErrRateNotFound struct {
	Provider string
	From     string
	To       string
}

func (e *ErrRateNotFound) Error() string {
	return fmt.Sprintf("provider %q has no rate %s→%s", e.Provider, e.From, e.To)
}

// ErrLookupFailed is returned when an upstream answers but reports failure.
type ErrLookupFailed struct {
	Provider string
	Reason   string
}

func (e *ErrLookupFailed) Error() string {
	return fmt.Sprintf("provider %q lookup failed: %s", e.Provider, e.Reason)
}

// ErrInvalidCredentials is returned when provider credentials are invalid.
type ErrInvalidCredentials struct {
	Provider string
	Detail   string
}

func (e *ErrInvalidCredentials) Error() string {
	return fmt.Sprintf("invalid credentials for provider %q: %s", e.Provider, e.Detail)
}

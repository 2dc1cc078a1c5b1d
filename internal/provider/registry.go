package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Registry is a thread-safe registry of upstream providers.
// It maps provider names to Provider instances and maintains an index
// of which providers serve which capability.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider     // name → provider
	capIdx    map[Capability][]string // capability → provider names (registration order)
	defaults  map[Capability]string   // capability → default provider name
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		capIdx:    make(map[Capability][]string),
		defaults:  make(map[Capability]string),
	}
}

// capabilitiesOf reports what a provider can actually serve, judged by the
// interfaces it implements rather than what its metadata claims.
func capabilitiesOf(p Provider) []Capability {
	var caps []Capability
	if _, ok := p.(GeoLocator); ok {
		caps = append(caps, CapabilityGeolocation)
	}
	if _, ok := p.(RateProvider); ok {
		caps = append(caps, CapabilityRates)
	}
	return caps
}

// Register adds a provider to the registry. If the provider requires
// credentials, they should be set via Init() before calling Register.
// Duplicate registrations overwrite the previous entry.
func (r *Registry) Register(p Provider) error {
	info := p.Info()
	if info.Name == "" {
		return fmt.Errorf("provider name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers[info.Name] = p

	for _, c := range capabilitiesOf(p) {
		existing := r.capIdx[c]
		found := false
		for _, name := range existing {
			if name == info.Name {
				found = true
				break
			}
		}
		if !found {
			r.capIdx[c] = append(existing, info.Name)
		}
		if _, ok := r.defaults[c]; !ok {
			r.defaults[c] = info.Name
		}
	}

	return nil
}

// Unregister removes a provider from the registry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.providers, name)

	for c, names := range r.capIdx {
		filtered := names[:0]
		for _, n := range names {
			if n != name {
				filtered = append(filtered, n)
			}
		}
		if len(filtered) == 0 {
			delete(r.capIdx, c)
			delete(r.defaults, c)
		} else {
			r.capIdx[c] = filtered
			if r.defaults[c] == name {
				r.defaults[c] = filtered[0]
			}
		}
	}
}

// Get returns a provider by name, or an error if not found.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}
	return p, nil
}

// List returns info about all registered providers, sorted by name.
func (r *Registry) List() []ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ProviderInfo, 0, len(r.providers))
	for _, p := range r.providers {
		infos = append(infos, p.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}

// ProvidersFor returns the names of providers serving a capability, in
// registration order (first = default unless overridden).
func (r *Registry) ProvidersFor(c Capability) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.capIdx[c]
	result := make([]string, len(names))
	copy(result, names)
	return result
}

// DefaultProvider returns the default provider name for a capability.
func (r *Registry) DefaultProvider(c Capability) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.defaults[c]
	return name, ok
}

// SetDefault sets the default provider for a capability.
func (r *Registry) SetDefault(c Capability, providerName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.providers[providerName]
	if !ok {
		return &ErrProviderNotFound{Name: providerName}
	}
	if !hasCapability(p, c) {
		return &ErrCapabilityNotSupported{Provider: providerName, Capability: c}
	}

	r.defaults[c] = providerName
	return nil
}

func hasCapability(p Provider, c Capability) bool {
	for _, have := range capabilitiesOf(p) {
		if have == c {
			return true
		}
	}
	return false
}

// GeoLocator returns the named geolocation provider, or the default one
// when name is empty.
func (r *Registry) GeoLocator(name string) (GeoLocator, error) {
	p, err := r.resolve(CapabilityGeolocation, name)
	if err != nil {
		return nil, err
	}
	return p.(GeoLocator), nil
}

// RateProvider returns the named exchange-rate provider, or the default one
// when name is empty.
func (r *Registry) RateProvider(name string) (RateProvider, error) {
	p, err := r.resolve(CapabilityRates, name)
	if err != nil {
		return nil, err
	}
	return p.(RateProvider), nil
}

func (r *Registry) resolve(c Capability, name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		name = r.defaults[c]
	}
	p, ok := r.providers[name]
	if !ok || name == "" {
		return nil, &ErrProviderNotFound{Name: name}
	}
	if !hasCapability(p, c) {
		return nil, &ErrCapabilityNotSupported{Provider: name, Capability: c}
	}
	return p, nil
}

// PingResult is the reachability of one provider.
type PingResult struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Ping checks every registered provider and returns results sorted by name.
func (r *Registry) Ping(ctx context.Context) []PingResult {
	r.mu.RLock()
	providers := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		providers = append(providers, p)
	}
	r.mu.RUnlock()

	results := make([]PingResult, len(providers))
	var g errgroup.Group
	for i, p := range providers {
		g.Go(func() error {
			res := PingResult{Name: p.Info().Name, OK: true}
			if err := p.Ping(ctx); err != nil {
				res.OK = false
				res.Error = err.Error()
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Name < results[j].Name
	})
	return results
}

// global is the default global registry.
var global = NewRegistry()

// Global returns the default global provider registry.
func Global() *Registry {
	return global
}

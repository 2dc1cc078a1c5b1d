package providers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/glitchsite/internal/config"
	"github.com/seenimoa/glitchsite/internal/provider"
)

func TestRegisterAllTo(t *testing.T) {
	reg := provider.NewRegistry()
	cfg := config.Default().Currency
	require.NoError(t, RegisterAllTo(reg, cfg))

	names := make([]string, 0)
	for _, info := range reg.List() {
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{"ecb", "frankfurter", "ipapi"}, names)

	geo, err := reg.GeoLocator("")
	require.NoError(t, err)
	assert.Equal(t, "ipapi", geo.Info().Name)

	rates, err := reg.RateProvider("")
	require.NoError(t, err)
	assert.Equal(t, "frankfurter", rates.Info().Name)

	assert.ElementsMatch(t, []string{"frankfurter", "ecb"}, reg.ProvidersFor(provider.CapabilityRates))
}

func TestRegisterAllToSelectsECB(t *testing.T) {
	reg := provider.NewRegistry()
	cfg := config.Default().Currency
	cfg.RateProvider = "ecb"
	require.NoError(t, RegisterAllTo(reg, cfg))

	rates, err := reg.RateProvider("")
	require.NoError(t, err)
	assert.Equal(t, "ecb", rates.Info().Name)
}

func TestRegisterAllToRejectsUnknownProvider(t *testing.T) {
	cfg := config.Default().Currency
	cfg.RateProvider = "oanda"
	err := RegisterAllTo(provider.NewRegistry(), cfg)
	var nf *provider.ErrProviderNotFound
	require.True(t, errors.As(err, &nf), "got %v", err)
	assert.Equal(t, "oanda", nf.Name)

	cfg = config.Default().Currency
	cfg.GeoProvider = "frankfurter"
	err = RegisterAllTo(provider.NewRegistry(), cfg)
	var unsupported *provider.ErrCapabilityNotSupported
	assert.True(t, errors.As(err, &unsupported), "got %v", err)
}

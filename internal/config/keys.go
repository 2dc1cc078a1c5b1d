package config

import "os"

// APIKeySource represents where an API key comes from.
type APIKeySource string

const (
	KeySourceEnv    APIKeySource = "env"
	KeySourceConfig APIKeySource = "config"
	KeySourceNone   APIKeySource = "none"
)

// KeyStatus reports whether an upstream credential is configured.
type KeyStatus struct {
	Name     string       `json:"name"`
	Provider string       `json:"provider"`
	EnvVar   string       `json:"env_var"`
	Source   APIKeySource `json:"source"`
	IsSet    bool         `json:"is_set"`
	Optional bool         `json:"optional"`
	Masked   string       `json:"masked,omitempty"` // e.g., "abc...xyz"
}

// apiKey describes one upstream credential and where it lives in Config.
type apiKey struct {
	name     string
	provider string
	envVar   string
	optional bool
	value    func(*Config) string
}

var apiKeys = []apiKey{
	{
		name:     "ipapi.co API Key",
		provider: "ipapi",
		envVar:   EnvPrefix + "_CURRENCY_IPAPI_KEY",
		optional: true, // the free tier works without one
		value:    func(c *Config) string { return c.Currency.IPAPIKey },
	},
}

// CheckAPIKeys returns the status of every upstream API key.
func CheckAPIKeys(cfg *Config) []KeyStatus {
	out := make([]KeyStatus, 0, len(apiKeys))
	for _, k := range apiKeys {
		out = append(out, k.status(k.value(cfg)))
	}
	return out
}

// status reports a key's value, masked, and whether the environment
// supplied it.
func (k apiKey) status(value string) KeyStatus {
	st := KeyStatus{
		Name:     k.name,
		Provider: k.provider,
		EnvVar:   k.envVar,
		Source:   KeySourceNone,
		Optional: k.optional,
	}
	if value == "" {
		return st
	}

	st.IsSet = true
	st.Masked = maskKey(value)
	st.Source = KeySourceConfig
	if env, ok := os.LookupEnv(k.envVar); ok && env == value {
		st.Source = KeySourceEnv
	}
	return st
}

// maskKey hides all but the first and last three characters. Short keys are
// hidden entirely.
func maskKey(key string) string {
	const keep = 3
	if len(key) <= 2*keep+2 {
		return "***"
	}
	return key[:keep] + "..." + key[len(key)-keep:]
}

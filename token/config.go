package token

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// GrantConfig configures one token endpoint request.
type GrantConfig struct {
	// TokenURL is the endpoint that issues the token. Required.
	TokenURL string `yaml:"token_url" json:"token_url"`

	// GrantType is the OAuth2 grant, default "client_credentials".
	// Supported: client_credentials, password, refresh_token.
	GrantType string `yaml:"grant_type" json:"grant_type"`

	ClientID     string `yaml:"client_id" json:"client_id"`
	ClientSecret string `yaml:"client_secret" json:"client_secret"`
	Username     string `yaml:"username" json:"username"`
	Password     string `yaml:"password" json:"password"`
	Scope        string `yaml:"scope" json:"scope"`
	Audience     string `yaml:"audience" json:"audience"`

	// FallbackTTLSeconds bounds entry lifetime when the endpoint response
	// carries no expiry at all.
	FallbackTTLSeconds int `yaml:"fallback_ttl_seconds" json:"fallback_ttl_seconds"`

	// PrefetchSeconds is the window before expiry in which a cached token
	// is refreshed proactively instead of served, default 30.
	PrefetchSeconds *int `yaml:"prefetch_seconds" json:"prefetch_seconds"`

	// VerifyTLS toggles certificate verification, default true.
	VerifyTLS *bool `yaml:"verify_tls" json:"verify_tls"`
}

func (g GrantConfig) grantType() string {
	if g.GrantType == "" {
		return "client_credentials"
	}
	return g.GrantType
}

func (g GrantConfig) prefetchWindow() int {
	if g.PrefetchSeconds == nil {
		return 30
	}
	return *g.PrefetchSeconds
}

func (g GrantConfig) verifyTLS() bool {
	return g.VerifyTLS == nil || *g.VerifyTLS
}

func (g GrantConfig) validate(issuer string) error {
	if g.TokenURL == "" {
		return fmt.Errorf("%w: issuer %q has no token_url", ErrInvalidGrant, issuer)
	}
	if g.grantType() == "password" && (g.Username == "" || g.Password == "") {
		return fmt.Errorf("%w: issuer %q password grant requires username and password",
			ErrInvalidGrant, issuer)
	}
	return nil
}

// IssuerConfig configures one named issuer.
type IssuerConfig struct {
	// Enabled gates the issuer, default true.
	Enabled *bool `yaml:"enabled" json:"enabled"`

	// Access configures how access tokens are obtained. Required.
	Access GrantConfig `yaml:"access" json:"access"`

	// Refresh optionally configures a refresh-token grant. When present,
	// a stored refresh token is reused to renew access tokens.
	Refresh *GrantConfig `yaml:"refresh" json:"refresh"`
}

func (ic IssuerConfig) enabled() bool {
	return ic.Enabled == nil || *ic.Enabled
}

// CacheConfig sizes the token store.
type CacheConfig struct {
	// MaxEntries caps the store, default 1024.
	MaxEntries int `yaml:"maxsize" json:"maxsize"`

	// TTU selects the time-to-use strategy. Only "jwt_exp" (the default)
	// is recognized; unknown values fall back to it.
	TTU string `yaml:"ttu" json:"ttu"`
}

// Config is the full token provider configuration.
type Config struct {
	// Default names the issuer used when a caller does not pick one.
	// Empty means the lexicographically first configured issuer.
	Default string `yaml:"default" json:"default"`

	Cache CacheConfig `yaml:"cache" json:"cache"`

	Issuers map[string]IssuerConfig `yaml:"issuers" json:"issuers"`
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if len(c.Issuers) == 0 {
		return ErrNoIssuers
	}
	if c.Default != "" {
		if _, ok := c.Issuers[c.Default]; !ok {
			return fmt.Errorf("%w: default issuer %q", ErrUnknownIssuer, c.Default)
		}
	}
	for name, ic := range c.Issuers {
		if err := ic.Access.validate(name); err != nil {
			return err
		}
		if ic.Refresh != nil {
			if err := ic.Refresh.validate(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// DefaultIssuer resolves the issuer used when none is named.
func (c *Config) DefaultIssuer() string {
	if c.Default != "" {
		return c.Default
	}
	names := make([]string, 0, len(c.Issuers))
	for name := range c.Issuers {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// Names returns the configured issuer names, sorted.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Issuers))
	for name := range c.Issuers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvStrict replaces ${VAR} references with environment values and
// errors when any referenced variable is unset. `$$` escapes a literal `$`.
func expandEnvStrict(s string) (string, error) {
	const dollarSentinel = "\x00MEMOFLIGHT_DOLLAR\x00"
	s = strings.ReplaceAll(s, "$$", dollarSentinel)

	missing := make(map[string]struct{})
	expanded := envVarPattern.ReplaceAllStringFunc(s, func(ref string) string {
		key := ref[2 : len(ref)-1]
		val, ok := os.LookupEnv(key)
		if !ok {
			missing[key] = struct{}{}
			return ref
		}
		return val
	})
	if len(missing) > 0 {
		keys := make([]string, 0, len(missing))
		for k := range missing {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "", fmt.Errorf("%w: %s", ErrMissingEnvVar, strings.Join(keys, ", "))
	}

	return strings.ReplaceAll(expanded, dollarSentinel, "$"), nil
}

// ParseConfig parses YAML or JSON configuration bytes after strict ${VAR}
// environment expansion. JSON is tried when YAML fails and the payload
// looks like JSON.
func ParseConfig(data []byte) (Config, error) {
	expanded, err := expandEnvStrict(string(data))
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if yamlErr := yaml.Unmarshal([]byte(expanded), &cfg); yamlErr != nil {
		if jsonErr := json.Unmarshal([]byte(expanded), &cfg); jsonErr != nil {
			return Config{}, fmt.Errorf("token: cannot parse config: %w", yamlErr)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a YAML or JSON configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("token: cannot read config: %w", err)
	}

	if ext := strings.ToLower(filepath.Ext(path)); ext == ".json" {
		expanded, err := expandEnvStrict(string(data))
		if err != nil {
			return Config{}, err
		}
		var cfg Config
		if err := json.Unmarshal([]byte(expanded), &cfg); err != nil {
			return Config{}, fmt.Errorf("token: cannot parse config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return Config{}, err
		}
		return cfg, nil
	}

	return ParseConfig(data)
}

// Package config loads the authrelay configuration from a YAML file and
// AUTHRELAY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/AmmannChristian/go-authrelay/registration"
)

// EnvPrefix prefixes environment overrides, e.g. AUTHRELAY_SERVER_ADDRESS.
const EnvPrefix = "AUTHRELAY"

// Config is the complete relay configuration. It is loaded once at startup.
type Config struct {
	Server        ServerConfig                  `mapstructure:"server"`
	Inbound       InboundConfig                 `mapstructure:"inbound"`
	Registrations map[string]RegistrationConfig `mapstructure:"registrations"`
	Downstream    DownstreamConfig              `mapstructure:"downstream"`
	Grant         GrantConfig                   `mapstructure:"grant"`
	Retry         RetryConfig                   `mapstructure:"retry"`
	Logout        LogoutConfig                  `mapstructure:"logout"`
	Resource      ResourceConfig                `mapstructure:"resource"`
}

// ServerConfig configures the relay's HTTP listener.
type ServerConfig struct {
	Address           string        `mapstructure:"address"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	TLS               TLSConfig     `mapstructure:"tls"`
}

// TLSConfig enables TLS on a listener when CertFile and KeyFile are set.
type TLSConfig struct {
	CertFile   string `mapstructure:"cert_file"`
	KeyFile    string `mapstructure:"key_file"`
	CAFile     string `mapstructure:"ca_file"`
	ClientAuth string `mapstructure:"client_auth"`
}

// Enabled reports whether a certificate is configured.
func (t TLSConfig) Enabled() bool {
	return t.CertFile != "" || t.KeyFile != ""
}

// InboundConfig configures validation of the bearer tokens the relay receives.
type InboundConfig struct {
	IssuerURL      string              `mapstructure:"issuer_url"`
	Audience       string              `mapstructure:"audience"`
	JWKSURL        string              `mapstructure:"jwks_url"`
	CacheTTL       time.Duration       `mapstructure:"cache_ttl"`
	Introspection  IntrospectionConfig `mapstructure:"introspection"`
	RequiredScopes []string            `mapstructure:"required_scopes"`
	RequiredRoles  []string            `mapstructure:"required_roles"`
}

// IntrospectionConfig switches inbound validation to RFC 7662 when ClientID is set.
type IntrospectionConfig struct {
	URL          string `mapstructure:"url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// Enabled reports whether opaque token introspection is configured.
func (i IntrospectionConfig) Enabled() bool {
	return i.ClientID != ""
}

// RegistrationConfig is one client registration, keyed by its id.
type RegistrationConfig struct {
	TokenURL     string   `mapstructure:"token_url"`
	IssuerURL    string   `mapstructure:"issuer_url"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	GrantType    string   `mapstructure:"grant_type"`
	AuthMethod   string   `mapstructure:"auth_method"`
	Scopes       []string `mapstructure:"scopes"`
}

// DownstreamConfig describes the resource server the relay calls.
type DownstreamConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Path         string        `mapstructure:"path"`
	Method       string        `mapstructure:"method"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Registration string        `mapstructure:"registration"`
	CAFile       string        `mapstructure:"ca_file"`

	// MaxResponseBytes bounds accepted 2xx bodies; larger ones fail the call.
	MaxResponseBytes int64 `mapstructure:"max_response_bytes"`
}

// GrantConfig tunes token acquisition.
type GrantConfig struct {
	ClockSkew    time.Duration `mapstructure:"clock_skew"`
	SingleFlight bool          `mapstructure:"single_flight"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// RetryConfig bounds retries of failed downstream fetches. MaxTries counts all attempts.
type RetryConfig struct {
	MaxTries        uint          `mapstructure:"max_tries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
}

// LogoutConfig configures session logout. An empty Endpoint is discovered
// from the inbound issuer.
type LogoutConfig struct {
	Endpoint              string `mapstructure:"endpoint"`
	PostLogoutRedirectURI string `mapstructure:"post_logout_redirect_uri"`
	CookieName            string `mapstructure:"cookie_name"`
	SecureCookie          bool   `mapstructure:"secure_cookie"`
}

// ResourceConfig configures the demo resource server.
type ResourceConfig struct {
	Address string `mapstructure:"address"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_header_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.tls.cert_file", "")
	v.SetDefault("server.tls.key_file", "")
	v.SetDefault("server.tls.ca_file", "")
	v.SetDefault("server.tls.client_auth", "none")

	v.SetDefault("inbound.issuer_url", "")
	v.SetDefault("inbound.audience", "")
	v.SetDefault("inbound.jwks_url", "")
	v.SetDefault("inbound.cache_ttl", time.Hour)
	v.SetDefault("inbound.introspection.url", "")
	v.SetDefault("inbound.introspection.client_id", "")
	v.SetDefault("inbound.introspection.client_secret", "")

	v.SetDefault("downstream.base_url", "")
	v.SetDefault("downstream.path", "/data")
	v.SetDefault("downstream.method", "GET")
	v.SetDefault("downstream.timeout", 30*time.Second)
	v.SetDefault("downstream.registration", "")
	v.SetDefault("downstream.ca_file", "")
	v.SetDefault("downstream.max_response_bytes", 4<<20)

	v.SetDefault("grant.clock_skew", 30*time.Second)
	v.SetDefault("grant.single_flight", false)
	v.SetDefault("grant.timeout", 10*time.Second)

	v.SetDefault("retry.max_tries", 1)
	v.SetDefault("retry.initial_interval", 200*time.Millisecond)

	v.SetDefault("logout.endpoint", "")
	v.SetDefault("logout.post_logout_redirect_uri", "")
	v.SetDefault("logout.cookie_name", "AUTHRELAY_SESSION")
	v.SetDefault("logout.secure_cookie", false)

	v.SetDefault("resource.address", ":8082")
}

// Load reads path (YAML, JSON or TOML by extension) and applies environment
// overrides. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

// Validate rejects configurations the relay cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Inbound.IssuerURL != "" || c.Inbound.Audience != "" {
		if c.Inbound.IssuerURL == "" {
			errs = append(errs, errors.New("inbound.issuer_url is required when inbound.audience is set"))
		}
		if c.Inbound.Audience == "" {
			errs = append(errs, errors.New("inbound.audience is required when inbound.issuer_url is set"))
		}
	}
	if c.Inbound.Introspection.Enabled() && c.Inbound.Introspection.ClientSecret == "" {
		errs = append(errs, errors.New("inbound.introspection.client_secret is required"))
	}

	for _, id := range c.RegistrationIDs() {
		reg := c.Registrations[id]
		if reg.TokenURL == "" && reg.IssuerURL == "" {
			errs = append(errs, fmt.Errorf("registrations.%s: token_url or issuer_url is required", id))
		}
		if reg.ClientID == "" {
			errs = append(errs, fmt.Errorf("registrations.%s: client_id is required", id))
		}
		if reg.ClientSecret == "" {
			errs = append(errs, fmt.Errorf("registrations.%s: client_secret is required", id))
		}
	}

	if c.Downstream.BaseURL != "" {
		if u, err := url.Parse(c.Downstream.BaseURL); err != nil || !u.IsAbs() {
			errs = append(errs, fmt.Errorf("downstream.base_url %q is not an absolute URL", c.Downstream.BaseURL))
		}
	}
	if id := c.Downstream.Registration; id != "" {
		if _, ok := c.Registrations[id]; !ok {
			errs = append(errs, fmt.Errorf("downstream.registration %q is not a configured registration", id))
		}
	}
	if c.Downstream.MaxResponseBytes < 0 {
		errs = append(errs, errors.New("downstream.max_response_bytes must not be negative"))
	}
	if c.Server.TLS.Enabled() && (c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "") {
		errs = append(errs, errors.New("server.tls.cert_file and server.tls.key_file must be set together"))
	}
	if c.Grant.ClockSkew < 0 {
		errs = append(errs, errors.New("grant.clock_skew must not be negative"))
	}

	return errors.Join(errs...)
}

// RegistrationIDs returns the configured registration ids in sorted order.
func (c *Config) RegistrationIDs() []string {
	ids := make([]string, 0, len(c.Registrations))
	for id := range c.Registrations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ClientRegistrations converts the registrations section. Token URLs may still
// be empty for registrations that rely on issuer discovery.
func (c *Config) ClientRegistrations() []registration.ClientRegistration {
	regs := make([]registration.ClientRegistration, 0, len(c.Registrations))
	for _, id := range c.RegistrationIDs() {
		reg := c.Registrations[id]
		regs = append(regs, registration.ClientRegistration{
			ID:           id,
			TokenURL:     reg.TokenURL,
			IssuerURL:    reg.IssuerURL,
			ClientID:     reg.ClientID,
			ClientSecret: reg.ClientSecret,
			GrantType:    registration.GrantType(reg.GrantType),
			AuthMethod:   registration.AuthMethod(reg.AuthMethod),
			Scopes:       append([]string(nil), reg.Scopes...),
		})
	}
	return regs
}

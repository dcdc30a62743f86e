package registration

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// GrantType identifies the OAuth2 grant a registration uses.
type GrantType string

// GrantTypeClientCredentials is the only grant the token core performs.
const GrantTypeClientCredentials GrantType = "client_credentials"

// AuthMethod defines how client credentials are presented to the token endpoint.
type AuthMethod string

const (
	// AuthMethodClientSecretBasic sends credentials as HTTP Basic authentication.
	AuthMethodClientSecretBasic AuthMethod = "client_secret_basic"
	// AuthMethodClientSecretPost sends credentials in the form body.
	AuthMethodClientSecretPost AuthMethod = "client_secret_post"
)

// ErrUnknownRegistration is returned when a registration id is not present in the registry.
var ErrUnknownRegistration = errors.New("registration: unknown registration id")

// ClientRegistration describes one OAuth2 client the process can act as.
// Values are immutable once loaded into a Registry.
type ClientRegistration struct {
	ID           string
	TokenURL     string
	IssuerURL    string // used for discovery when TokenURL is empty
	ClientID     string
	ClientSecret string
	GrantType    GrantType
	Scopes       []string
	AuthMethod   AuthMethod
}

// Validate checks that the registration can be used for a client-credentials grant.
func (r ClientRegistration) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("registration: id is required")
	}
	if r.TokenURL == "" {
		return fmt.Errorf("registration %q: token URL is required", r.ID)
	}
	if r.ClientID == "" {
		return fmt.Errorf("registration %q: client ID is required", r.ID)
	}
	if r.ClientSecret == "" {
		return fmt.Errorf("registration %q: client secret is required", r.ID)
	}
	if r.GrantType != "" && r.GrantType != GrantTypeClientCredentials {
		return fmt.Errorf("registration %q: unsupported grant type %q", r.ID, r.GrantType)
	}
	switch r.AuthMethod {
	case "", AuthMethodClientSecretBasic, AuthMethodClientSecretPost:
	default:
		return fmt.Errorf("registration %q: unsupported auth method %q", r.ID, r.AuthMethod)
	}
	return nil
}

// normalized fills defaults and copies the scope slice so callers cannot mutate it later.
func (r ClientRegistration) normalized() ClientRegistration {
	if r.GrantType == "" {
		r.GrantType = GrantTypeClientCredentials
	}
	if r.AuthMethod == "" {
		r.AuthMethod = AuthMethodClientSecretBasic
	}
	scopes := make([]string, 0, len(r.Scopes))
	for _, scope := range r.Scopes {
		scopes = append(scopes, strings.Fields(scope)...)
	}
	r.Scopes = scopes
	return r
}

// Registry is the process-wide, read-only table of client registrations.
// It is built once at startup and safe for concurrent reads.
type Registry struct {
	registrations map[string]ClientRegistration
}

// NewRegistry validates the registrations and builds a Registry.
// Duplicate ids are rejected.
func NewRegistry(registrations ...ClientRegistration) (*Registry, error) {
	table := make(map[string]ClientRegistration, len(registrations))
	for _, reg := range registrations {
		if err := reg.Validate(); err != nil {
			return nil, err
		}
		if _, exists := table[reg.ID]; exists {
			return nil, fmt.Errorf("registration %q: duplicate id", reg.ID)
		}
		table[reg.ID] = reg.normalized()
	}
	return &Registry{registrations: table}, nil
}

// Lookup returns the registration with the given id.
func (r *Registry) Lookup(id string) (ClientRegistration, bool) {
	if r == nil {
		return ClientRegistration{}, false
	}
	reg, ok := r.registrations[id]
	if !ok {
		return ClientRegistration{}, false
	}
	reg.Scopes = append([]string(nil), reg.Scopes...)
	return reg, true
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.registrations))
	for id := range r.registrations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

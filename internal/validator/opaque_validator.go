package validator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// OpaqueTokenValidator validates opaque tokens via RFC 7662 token introspection.
// The relay authenticates to the introspection endpoint with the credentials
// of one of its client registrations.
type OpaqueTokenValidator struct {
	introspectionURL string
	issuer           string
	audience         string
	clientID         string
	clientSecret     string
	httpClient       *http.Client
	logger           Logger
	now              func() time.Time
}

// NewOpaqueTokenValidator creates a validator that uses token introspection.
func NewOpaqueTokenValidator(
	introspectionURL,
	issuer,
	audience,
	clientID,
	clientSecret string,
	httpClient *http.Client,
	logger Logger,
) (*OpaqueTokenValidator, error) {
	switch {
	case introspectionURL == "":
		return nil, errors.New("validator: introspection URL is required")
	case issuer == "":
		return nil, errors.New("validator: issuer is required")
	case audience == "":
		return nil, errors.New("validator: audience is required")
	case clientID == "":
		return nil, errors.New("validator: introspection client ID is required")
	case clientSecret == "":
		return nil, errors.New("validator: introspection client secret is required")
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &OpaqueTokenValidator{
		introspectionURL: introspectionURL,
		issuer:           issuer,
		audience:         audience,
		clientID:         clientID,
		clientSecret:     clientSecret,
		httpClient:       httpClient,
		logger:           logger,
		now:              time.Now,
	}, nil
}

// ValidateToken introspects an opaque token and extracts its claims.
// Inactive or expired tokens, and tokens issued for another issuer or
// audience, are rejected.
func (v *OpaqueTokenValidator) ValidateToken(ctx context.Context, tokenString string) (*TokenClaims, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(tokenString) == "" {
		return nil, errors.New("validator: token is empty")
	}

	raw, err := v.introspect(ctx, tokenString)
	if err != nil {
		return nil, err
	}

	claims, err := v.buildClaims(raw)
	if err != nil {
		return nil, err
	}

	if v.logger != nil {
		v.logger.Printf("validator: introspected opaque token for subject %s with scopes %v", claims.Subject, claims.Scopes)
	}

	return claims, nil
}

func (v *OpaqueTokenValidator) introspect(ctx context.Context, tokenString string) (map[string]any, error) {
	form := url.Values{}
	form.Set("token", tokenString)
	form.Set("token_type_hint", "access_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.introspectionURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("validator: failed to create introspection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(url.QueryEscape(v.clientID), url.QueryEscape(v.clientSecret))

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("validator: introspection request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("validator: failed to read introspection response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("validator: introspection endpoint returned status %d", resp.StatusCode)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("validator: invalid introspection response: %w", err)
	}

	if active, _ := raw["active"].(bool); !active {
		return nil, errors.New("validator: opaque token is inactive")
	}

	return raw, nil
}

func (v *OpaqueTokenValidator) buildClaims(raw map[string]any) (*TokenClaims, error) {
	claims := &TokenClaims{
		Issuer: v.issuer,
		Scopes: ExtractScopes(jwt.MapClaims(raw)),
		Email:  firstNonEmpty(claimString(raw, "email"), claimString(raw, "username")),
		Raw:    raw,
	}

	if iss := claimString(raw, "iss"); iss != "" && iss != v.issuer {
		return nil, fmt.Errorf("validator: invalid issuer: expected %s, got %s", v.issuer, iss)
	}

	claims.Audience = extractAudience(raw["aud"])
	if len(claims.Audience) == 0 {
		claims.Audience = []string{v.audience}
	} else if !contains(claims.Audience, v.audience) {
		return nil, fmt.Errorf("validator: invalid audience: expected %s in %v", v.audience, claims.Audience)
	}

	claims.Subject = firstNonEmpty(claimString(raw, "sub"), claimString(raw, "client_id"), claimString(raw, "username"))
	if claims.Subject == "" {
		return nil, errors.New("validator: invalid subject claim: empty")
	}

	if expRaw, ok := raw["exp"]; ok {
		exp, err := parseUnixTimeClaim(expRaw)
		if err != nil {
			return nil, fmt.Errorf("validator: invalid expiry claim: %w", err)
		}
		if !exp.After(v.now()) {
			return nil, errors.New("validator: opaque token has expired")
		}
		claims.Expiry = exp
	}

	if iatRaw, ok := raw["iat"]; ok {
		iat, err := parseUnixTimeClaim(iatRaw)
		if err != nil {
			return nil, fmt.Errorf("validator: invalid issued at claim: %w", err)
		}
		claims.IssuedAt = iat
	}

	return claims, nil
}

func claimString(claims map[string]any, key string) string {
	value, _ := claims[key].(string)
	return strings.TrimSpace(value)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func extractAudience(raw any) []string {
	switch value := raw.(type) {
	case string:
		if value == "" {
			return nil
		}
		return []string{value}
	case []any:
		audience := make([]string, 0, len(value))
		for _, item := range value {
			if s, ok := item.(string); ok {
				audience = append(audience, s)
			}
		}
		return audience
	default:
		return nil
	}
}

func parseUnixTimeClaim(raw any) (time.Time, error) {
	switch value := raw.(type) {
	case float64:
		return time.Unix(int64(value), 0), nil
	case json.Number:
		n, err := value.Int64()
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(n, 0), nil
	case string:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(n, 0), nil
	default:
		return time.Time{}, fmt.Errorf("unexpected type %T", raw)
	}
}

// Package authz evaluates scope and role requirements against an inbound
// principal before its token is propagated downstream.
package authz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AmmannChristian/go-authrelay/propagation"
)

// MatchMode defines how a list of requirements is matched.
type MatchMode string

const (
	// MatchAny allows access if any required value is present.
	MatchAny MatchMode = "any"
	// MatchAll allows access only if all required values are present.
	MatchAll MatchMode = "all"
)

// DefaultRoleClaimPaths covers plain "roles" claims and Keycloak realm roles.
var DefaultRoleClaimPaths = []string{"roles", "realm_access.roles"}

// Policy configures authorization checks.
//
// A policy with no requirements allows everything. Unknown match modes are
// treated as MatchAll.
type Policy struct {
	RequiredScopes []string
	RequiredRoles  []string

	ScopeMatchMode MatchMode // default: any
	RoleMatchMode  MatchMode // default: any

	// RoleClaimPaths are dotted paths into the raw claims, such as
	// "resource_access.client-app.roles". Defaults to DefaultRoleClaimPaths.
	RoleClaimPaths []string
}

// ErrPermissionDenied indicates that authorization requirements are not satisfied.
var ErrPermissionDenied = errors.New("authorization: permission denied")

// PermissionDeniedError carries structured authorization failure details.
type PermissionDeniedError struct {
	MissingRoles  []string
	MissingScopes []string
}

// Error returns a concise authorization error message.
func (e *PermissionDeniedError) Error() string {
	switch {
	case len(e.MissingRoles) > 0 && len(e.MissingScopes) > 0:
		return fmt.Sprintf("authorization: missing required roles %v and scopes %v", e.MissingRoles, e.MissingScopes)
	case len(e.MissingRoles) > 0:
		return fmt.Sprintf("authorization: missing required roles %v", e.MissingRoles)
	case len(e.MissingScopes) > 0:
		return fmt.Sprintf("authorization: missing required scopes %v", e.MissingScopes)
	default:
		return ErrPermissionDenied.Error()
	}
}

// Is enables errors.Is(err, ErrPermissionDenied).
func (e *PermissionDeniedError) Is(target error) bool {
	return target == ErrPermissionDenied
}

// Evaluator checks principals against a normalized policy.
type Evaluator struct {
	scopes    []string
	roles     []string
	scopeMode MatchMode
	roleMode  MatchMode
	rolePaths []string
}

// NewEvaluator creates an evaluator with normalized defaults.
func NewEvaluator(policy Policy) *Evaluator {
	rolePaths := normalize(policy.RoleClaimPaths)
	if len(rolePaths) == 0 {
		rolePaths = append([]string(nil), DefaultRoleClaimPaths...)
	}

	return &Evaluator{
		scopes:    normalize(policy.RequiredScopes),
		roles:     normalize(policy.RequiredRoles),
		scopeMode: normalizeMode(policy.ScopeMatchMode),
		roleMode:  normalizeMode(policy.RoleMatchMode),
		rolePaths: rolePaths,
	}
}

// Enabled reports whether this policy performs any check.
func (e *Evaluator) Enabled() bool {
	return len(e.scopes) > 0 || len(e.roles) > 0
}

// Authorize evaluates the policy against principal. A nil principal fails every
// enabled policy.
func (e *Evaluator) Authorize(principal *propagation.InboundPrincipal) error {
	if !e.Enabled() {
		return nil
	}

	var scopes, roles []string
	if principal != nil {
		scopes = principal.Scopes
		roles = RolesFromClaims(principal.Claims, e.rolePaths)
	}

	missingScopes := missing(e.scopes, toSet(scopes), e.scopeMode)
	missingRoles := missing(e.roles, toSet(roles), e.roleMode)
	if len(missingScopes) == 0 && len(missingRoles) == 0 {
		return nil
	}

	return &PermissionDeniedError{MissingRoles: missingRoles, MissingScopes: missingScopes}
}

// RolesFromClaims collects role names found at any of the dotted paths.
func RolesFromClaims(claims map[string]any, paths []string) []string {
	var roles []string
	for _, path := range paths {
		if value, ok := lookup(claims, path); ok {
			roles = append(roles, values(value)...)
		}
	}
	return normalize(roles)
}

func lookup(claims map[string]any, path string) (any, bool) {
	var current any = claims
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok || segment == "" {
			return nil, false
		}
		if current, ok = m[segment]; !ok {
			return nil, false
		}
	}
	return current, true
}

func values(value any) []string {
	switch typed := value.(type) {
	case string:
		return strings.Fields(typed)
	case []string:
		return typed
	case []any:
		result := make([]string, 0, len(typed))
		for _, item := range typed {
			result = append(result, values(item)...)
		}
		return result
	default:
		return nil
	}
}

func missing(required []string, available map[string]struct{}, mode MatchMode) []string {
	if len(required) == 0 {
		return nil
	}

	if mode == MatchAny {
		for _, value := range required {
			if _, ok := available[value]; ok {
				return nil
			}
		}
		return append([]string(nil), required...)
	}

	var result []string
	for _, value := range required {
		if _, ok := available[value]; !ok {
			result = append(result, value)
		}
	}
	return result
}

func normalizeMode(mode MatchMode) MatchMode {
	switch strings.ToLower(strings.TrimSpace(string(mode))) {
	case "", string(MatchAny):
		return MatchAny
	default:
		return MatchAll
	}
}

func normalize(list []string) []string {
	var result []string
	seen := make(map[string]struct{}, len(list))
	for _, value := range list {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result
}

func toSet(list []string) map[string]struct{} {
	set := make(map[string]struct{}, len(list))
	for _, value := range list {
		set[value] = struct{}{}
	}
	return set
}

// Package auth validates platform bearer tokens. The SDK client only
// forwards tokens; validation is used by the stub platform server and by
// anyone embedding the SDK behind a real identity provider.
package auth

import "context"

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const claimsContextKey contextKey = "alita_auth_claims"

// Claims are the validated claims from a platform token. The shape covers
// common identity providers while keeping provider-specific claims in Custom.
type Claims struct {
	// Subject is the unique user identifier (sub claim).
	Subject string `json:"sub"`

	// Email is the user's email address, when provided.
	Email string `json:"email,omitempty"`

	// Role drives authorization decisions.
	Role string `json:"role,omitempty"`

	// Project scopes the token to a platform project.
	Project string `json:"project,omitempty"`

	// Custom holds any claims not mapped to struct fields.
	Custom map[string]any `json:"-"`
}

// GetClaim retrieves a custom claim by key.
func (c *Claims) GetClaim(key string) (any, bool) {
	if c.Custom == nil {
		return nil, false
	}
	val, ok := c.Custom[key]
	return val, ok
}

// GetStringClaim retrieves a custom claim as a string, or "".
func (c *Claims) GetStringClaim(key string) string {
	if val, ok := c.GetClaim(key); ok {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return ""
}

// HasRole reports whether the user has the given role.
func (c *Claims) HasRole(role string) bool {
	return c.Role == role
}

// HasAnyRole reports whether the user has any of the given roles.
func (c *Claims) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if c.Role == role {
			return true
		}
	}
	return false
}

// ClaimsFromContext extracts claims from a context, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	if claims, ok := ctx.Value(claimsContextKey).(*Claims); ok {
		return claims
	}
	return nil
}

// ContextWithClaims returns a new context carrying the given claims.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

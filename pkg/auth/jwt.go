package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// JWTValidatorConfig configures a JWTValidator. Exactly one of JWKSURL and
// Secret must be set: JWKS for real identity providers, a shared HMAC
// secret for the stub platform.
type JWTValidatorConfig struct {
	// JWKSURL points at the provider's key set, cached with auto-refresh.
	JWKSURL string

	// Secret is an HS256 shared secret.
	Secret string

	// Issuer and Audience are enforced when non-empty.
	Issuer   string
	Audience string

	// RefreshInterval is the minimum JWKS refresh interval. Default: 15m.
	RefreshInterval time.Duration
}

// JWTValidator validates JWT bearer tokens and extracts Claims.
type JWTValidator struct {
	cfg   JWTValidatorConfig
	cache *jwk.Cache
}

// NewJWTValidator creates a validator. When a JWKS URL is configured the
// key set is fetched immediately to fail fast on bad configuration.
func NewJWTValidator(cfg JWTValidatorConfig) (*JWTValidator, error) {
	if (cfg.JWKSURL == "") == (cfg.Secret == "") {
		return nil, fmt.Errorf("exactly one of jwks_url and secret is required")
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = 15 * time.Minute
	}

	v := &JWTValidator{cfg: cfg}

	if cfg.JWKSURL != "" {
		ctx := context.Background()
		cache := jwk.NewCache(ctx)

		if err := cache.Register(cfg.JWKSURL, jwk.WithMinRefreshInterval(cfg.RefreshInterval)); err != nil {
			return nil, fmt.Errorf("failed to register JWKS URL: %w", err)
		}
		if _, err := cache.Refresh(ctx, cfg.JWKSURL); err != nil {
			return nil, fmt.Errorf("failed to fetch JWKS from %s: %w", cfg.JWKSURL, err)
		}

		v.cache = cache
	}

	return v, nil
}

// ValidateToken verifies the token signature, expiry, and the configured
// issuer and audience, and returns the extracted claims.
func (v *JWTValidator) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	opts := []jwt.ParseOption{jwt.WithValidate(true)}

	if v.cache != nil {
		keyset, err := v.cache.Get(ctx, v.cfg.JWKSURL)
		if err != nil {
			return nil, fmt.Errorf("failed to get JWKS: %w", err)
		}
		opts = append(opts, jwt.WithKeySet(keyset))
	} else {
		opts = append(opts, jwt.WithKey(jwa.HS256, []byte(v.cfg.Secret)))
	}

	if v.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.cfg.Issuer))
	}
	if v.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.cfg.Audience))
	}

	token, err := jwt.Parse([]byte(tokenString), opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return claimsFromToken(ctx, token), nil
}

func claimsFromToken(ctx context.Context, token jwt.Token) *Claims {
	claims := &Claims{
		Subject: token.Subject(),
		Custom:  make(map[string]any),
	}

	if email, ok := token.Get("email"); ok {
		if s, ok := email.(string); ok {
			claims.Email = s
		}
	}
	if role, ok := token.Get("role"); ok {
		if s, ok := role.(string); ok {
			claims.Role = s
		}
	}
	if project, ok := token.Get("project"); ok {
		if s, ok := project.(string); ok {
			claims.Project = s
		}
	}

	standard := map[string]bool{
		"sub": true, "email": true, "role": true, "project": true,
		"iss": true, "aud": true, "exp": true, "iat": true, "nbf": true, "jti": true,
	}
	for iter := token.Iterate(ctx); iter.Next(ctx); {
		pair := iter.Pair()
		key, ok := pair.Key.(string)
		if !ok || standard[key] {
			continue
		}
		claims.Custom[key] = pair.Value
	}

	return claims
}

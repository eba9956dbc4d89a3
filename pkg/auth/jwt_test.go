package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "stub-secret"

func signedToken(t *testing.T, mutate func(b *jwt.Builder)) string {
	t.Helper()

	b := jwt.NewBuilder().
		Subject("user-1").
		Issuer("alita-stub").
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(time.Hour)).
		Claim("email", "dev@example.com").
		Claim("role", "admin").
		Claim("project", "demo").
		Claim("team", "platform")
	if mutate != nil {
		mutate(b)
	}

	token, err := b.Build()
	require.NoError(t, err)

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, []byte(testSecret)))
	require.NoError(t, err)
	return string(signed)
}

func TestNewJWTValidatorConfig(t *testing.T) {
	_, err := NewJWTValidator(JWTValidatorConfig{})
	assert.Error(t, err)

	_, err = NewJWTValidator(JWTValidatorConfig{JWKSURL: "http://x", Secret: "y"})
	assert.Error(t, err)
}

func TestValidateTokenHMAC(t *testing.T) {
	v, err := NewJWTValidator(JWTValidatorConfig{Secret: testSecret, Issuer: "alita-stub"})
	require.NoError(t, err)

	claims, err := v.ValidateToken(context.Background(), signedToken(t, nil))
	require.NoError(t, err)

	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "dev@example.com", claims.Email)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "demo", claims.Project)
	assert.Equal(t, "platform", claims.GetStringClaim("team"))
	assert.True(t, claims.HasRole("admin"))
	assert.True(t, claims.HasAnyRole("viewer", "admin"))
	assert.False(t, claims.HasAnyRole("viewer"))
}

func TestValidateTokenRejections(t *testing.T) {
	v, err := NewJWTValidator(JWTValidatorConfig{Secret: testSecret, Issuer: "alita-stub"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong issuer", signedToken(t, func(b *jwt.Builder) { b.Issuer("someone-else") })},
		{"expired", signedToken(t, func(b *jwt.Builder) {
			b.Expiration(time.Now().Add(-time.Hour))
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ValidateToken(context.Background(), tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestHTTPMiddleware(t *testing.T) {
	v, err := NewJWTValidator(JWTValidatorConfig{Secret: testSecret})
	require.NoError(t, err)

	var gotClaims *Claims
	handler := v.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, nil))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, gotClaims)
		assert.Equal(t, "user-1", gotClaims.Subject)
	})

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bad token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireRole(t *testing.T) {
	v, err := NewJWTValidator(JWTValidatorConfig{Secret: testSecret})
	require.NoError(t, err)

	handler := RequireRole(v, "admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, func(b *jwt.Builder) {
		b.Claim("role", "viewer")
	}))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-secret-with-32-characters!!"

func adminToken(t *testing.T, role string, secret string) string {
	t.Helper()
	claims := AdminClaims{
		Subject: "ops@example.com",
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func callGuarded(token string) (*httptest.ResponseRecorder, string, bool) {
	var subject string
	var sawSubject bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, sawSubject = AdminSubject(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/admin/subscriptions/x", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	RequireAdmin(testJWTSecret)(next).ServeHTTP(rec, req)
	return rec, subject, sawSubject
}

func TestRequireAdmin_ValidToken(t *testing.T) {
	rec, subject, ok := callGuarded(adminToken(t, "admin", testJWTSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.True(t, ok)
	assert.Equal(t, "ops@example.com", subject)
}

func TestRequireAdmin_MissingHeader(t *testing.T) {
	rec, _, ok := callGuarded("")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, ok)
	assert.Contains(t, rec.Body.String(), "auth_required")
}

func TestRequireAdmin_WrongScheme(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	RequireAdmin(testJWTSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run")
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "auth_invalid_scheme")
}

func TestRequireAdmin_BadSignature(t *testing.T) {
	rec, _, ok := callGuarded(adminToken(t, "admin", "another-secret-of-32-characters!"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, ok)
	assert.Contains(t, rec.Body.String(), "auth_invalid")
}

func TestRequireAdmin_InsufficientRole(t *testing.T) {
	rec, _, ok := callGuarded(adminToken(t, "viewer", testJWTSecret))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, ok)
	assert.Contains(t, rec.Body.String(), "auth_forbidden")
}

func TestRequireAdmin_ExpiredToken(t *testing.T) {
	claims := AdminClaims{
		Subject: "ops@example.com",
		Role:    "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	rec, _, _ := callGuarded(token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

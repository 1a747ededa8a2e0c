package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "middleware-test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return token
}

func newRouter(secret string, perm string) *gin.Engine {
	return newIssuerRouter(secret, "", perm)
}

func newIssuerRouter(secret, issuer, perm string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := []gin.HandlerFunc{JWTAuth(secret, issuer)}
	if perm != "" {
		handlers = append(handlers, RequirePermission(perm))
	}
	handlers = append(handlers, func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(KeyUserID))
	})
	r.GET("/whoami", handlers...)
	return r
}

func get(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	r := newRouter(testSecret, "")
	exp := time.Now().Add(time.Hour).Unix()

	if w := get(r, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 without token, got %d", w.Code)
	}

	bad := signToken(t, "other-secret", jwt.MapClaims{"uid": "u1", "exp": exp})
	if w := get(r, bad); w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 for wrong signature, got %d", w.Code)
	}

	expired := signToken(t, testSecret, jwt.MapClaims{"uid": "u1", "exp": time.Now().Add(-time.Minute).Unix()})
	if w := get(r, expired); w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 for expired token, got %d", w.Code)
	}

	w := get(r, signToken(t, testSecret, jwt.MapClaims{"uid": "u1", "exp": exp}))
	if w.Code != http.StatusOK || w.Body.String() != "u1" {
		t.Fatalf("Expected u1, got %d %q", w.Code, w.Body.String())
	}

	w = get(r, signToken(t, testSecret, jwt.MapClaims{"sub": "u2", "exp": exp}))
	if w.Body.String() != "u2" {
		t.Fatalf("Expected subject fallback u2, got %q", w.Body.String())
	}
}

func TestJWTAuthIssuer(t *testing.T) {
	r := newIssuerRouter(testSecret, "project-bom", "")
	exp := time.Now().Add(time.Hour).Unix()

	w := get(r, signToken(t, testSecret, jwt.MapClaims{"uid": "u1", "iss": "project-bom", "exp": exp}))
	if w.Code != http.StatusOK || w.Body.String() != "u1" {
		t.Fatalf("Expected u1 with matching issuer, got %d %q", w.Code, w.Body.String())
	}

	if w := get(r, signToken(t, testSecret, jwt.MapClaims{"uid": "u1", "iss": "someone-else", "exp": exp})); w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 for foreign issuer, got %d", w.Code)
	}

	if w := get(r, signToken(t, testSecret, jwt.MapClaims{"uid": "u1", "exp": exp})); w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 without issuer, got %d", w.Code)
	}
}

func TestJWTAuthWithoutSecret(t *testing.T) {
	r := newRouter("", "project:write")

	w := get(r, "")
	if w.Code != http.StatusOK || w.Body.String() != AnonymousUser {
		t.Fatalf("Expected %s with all permissions, got %d %q", AnonymousUser, w.Code, w.Body.String())
	}
}

func TestRequirePermission(t *testing.T) {
	r := newRouter(testSecret, "project:write")
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name  string
		perms []string
		want  int
	}{
		{"exact", []string{"project:write"}, http.StatusOK},
		{"wildcard", []string{"*"}, http.StatusOK},
		{"other", []string{"report:archive"}, http.StatusForbidden},
		{"none", nil, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := signToken(t, testSecret, jwt.MapClaims{"uid": "u1", "perms": tt.perms, "exp": exp})
			if w := get(r, token); w.Code != tt.want {
				t.Fatalf("Expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(KeyRequestID)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Body.String() != "req-123" || w.Header().Get("X-Request-ID") != "req-123" {
		t.Fatalf("Expected request id to be propagated, got %q", w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(w.Header().Get("X-Request-ID")) != 36 {
		t.Fatalf("Expected generated uuid, got %q", w.Header().Get("X-Request-ID"))
	}
}

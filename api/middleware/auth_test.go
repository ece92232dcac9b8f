package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/digimartlabs/digimart-backend/pkg/config"
)

func TestRequireUserRejectsMissingHeader(t *testing.T) {
	mw := RequireUser(nil)
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	if handlerCalled {
		t.Fatalf("handler should not run without identity")
	}
}

func TestRequireUserRejectsMalformedID(t *testing.T) {
	mw := RequireUser(nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("X-User-Id", "not-a-uuid")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestRequireUserInjectsContext(t *testing.T) {
	mw := RequireUser(nil)
	userID := uuid.New()
	var seen string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("X-User-Id", "  "+userID.String()+"  ")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if seen != userID.String() {
		t.Fatalf("expected user id %s in context, got %q", userID, seen)
	}
}

func signAdminToken(t *testing.T, secret, issuer, subject string, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestAdminAuthAcceptsValidToken(t *testing.T) {
	cfg := config.AdminAuthConfig{JWTSecret: "test-secret", Issuer: "digimart"}
	mw := AdminAuth(cfg, nil)
	var subject string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject = AdminSubjectFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	token := signAdminToken(t, "test-secret", "digimart", "ops@digimart", time.Now().Add(time.Hour))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/reaper/run", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if subject != "ops@digimart" {
		t.Fatalf("expected subject in context, got %q", subject)
	}
}

func TestAdminAuthRejectsBadTokens(t *testing.T) {
	cfg := config.AdminAuthConfig{JWTSecret: "test-secret", Issuer: "digimart"}
	mw := AdminAuth(cfg, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	cases := []struct {
		name  string
		token string
	}{
		{"missing header", ""},
		{"wrong secret", signAdminToken(t, "other-secret", "digimart", "ops", time.Now().Add(time.Hour))},
		{"wrong issuer", signAdminToken(t, "test-secret", "someone-else", "ops", time.Now().Add(time.Hour))},
		{"expired", signAdminToken(t, "test-secret", "digimart", "ops", time.Now().Add(-time.Hour))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/reaper/run", nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			resp := httptest.NewRecorder()
			mw(handler).ServeHTTP(resp, req)
			if resp.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401 got %d", resp.Code)
			}
		})
	}
}

func TestAdminAuthDisabledWithoutSecret(t *testing.T) {
	mw := AdminAuth(config.AdminAuthConfig{}, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/reaper/run", nil)
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dritonf/cerdhe/internal/auth"
	"github.com/dritonf/cerdhe/internal/model"
	"github.com/dritonf/cerdhe/internal/token"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body["message"]
}

func TestRequireAuthMissingToken(t *testing.T) {
	issuer := token.NewIssuer("test-secret", time.Hour)
	h := RequireAuth(issuer)(okHandler())

	for _, header := range []string{"", "abc123", "Basic abc123"} {
		r := httptest.NewRequest("GET", "/v1/users", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, rec.Code)
		}
		if msg := decodeMessage(t, rec); msg != "Token not set" {
			t.Errorf("header %q: message = %q, want %q", header, msg, "Token not set")
		}
	}
}

func TestRequireAuthInvalidToken(t *testing.T) {
	issuer := token.NewIssuer("test-secret", time.Hour)
	h := RequireAuth(issuer)(okHandler())

	forged, err := token.NewIssuer("other-secret", time.Hour).Sign(token.Principal{UserID: 1, Role: model.RoleAdmin})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	expired, err := token.NewIssuer("test-secret", -time.Minute).Sign(token.Principal{UserID: 1, Role: model.RoleAdmin})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	for _, raw := range []string{"garbage", forged, expired} {
		r := httptest.NewRequest("GET", "/v1/users", nil)
		r.Header.Set("Authorization", "Bearer "+raw)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)

		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
		if msg := decodeMessage(t, rec); msg != "Token not valid" {
			t.Errorf("message = %q, want %q", msg, "Token not valid")
		}
	}
}

func TestRequireAuthPopulatesPrincipal(t *testing.T) {
	issuer := token.NewIssuer("test-secret", time.Hour)
	want := token.Principal{UserID: 42, Role: model.RoleUser, Email: "parent@example.com"}

	var got token.Principal
	h := RequireAuth(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.FromContext(r.Context())
	}))

	signed, err := issuer.Sign(want)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	r := httptest.NewRequest("GET", "/v1/users/profile", nil)
	r.Header.Set("Authorization", "Bearer "+signed)
	h.ServeHTTP(httptest.NewRecorder(), r)

	if got != want {
		t.Errorf("principal = %+v, want %+v", got, want)
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name       string
		allowed    []string
		role       string
		wantStatus int
	}{
		{"admin on admin-only", []string{model.RoleAdmin}, model.RoleAdmin, http.StatusOK},
		{"user on admin-only", []string{model.RoleAdmin}, model.RoleUser, http.StatusForbidden},
		{"user on shared route", []string{model.RoleAdmin, model.RoleUser}, model.RoleUser, http.StatusOK},
		{"admin on shared route", []string{model.RoleAdmin, model.RoleUser}, model.RoleAdmin, http.StatusOK},
		{"unknown role", []string{model.RoleAdmin, model.RoleUser}, "intern", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := RequireRole(tt.allowed...)(okHandler())
			r := httptest.NewRequest("GET", "/v1/meals", nil)
			r = r.WithContext(auth.WithPrincipal(r.Context(), token.Principal{UserID: 1, Role: tt.role}))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusForbidden {
				if msg := decodeMessage(t, rec); msg != "Access denied" {
					t.Errorf("message = %q, want %q", msg, "Access denied")
				}
			}
		})
	}
}

func TestRequireRoleNoPrincipal(t *testing.T) {
	h := RequireRole(model.RoleAdmin)(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/users", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORSAllowlist(t *testing.T) {
	handler := CORS([]string{"https://app.agendafacil.com.br"})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/public/slots", nil)
	req.Header.Set("Origin", "https://app.agendafacil.com.br")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.agendafacil.com.br" {
		t.Errorf("allow-origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/public/slots", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin echoed: %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := CORS([]string{"*"})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/public/appointments", nil)
	req.Header.Set("Origin", "https://widget.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
}

func signedToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "owner-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestAdminJWT(t *testing.T) {
	const secret = "test-secret"
	var gotSubject string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := AdminClaimsFromContext(r.Context())
		if ok {
			gotSubject = claims.Subject
		}
		w.WriteHeader(http.StatusOK)
	})
	handler := AdminJWT(secret)(inner)

	// Missing header.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/businesses/biz-1/appointments", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no header: status = %d", rec.Code)
	}

	// Wrong secret.
	req := httptest.NewRequest(http.MethodGet, "/admin/businesses/biz-1/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "other-secret"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad signature: status = %d", rec.Code)
	}

	// Valid token.
	req = httptest.NewRequest(http.MethodGet, "/admin/businesses/biz-1/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, secret))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid token: status = %d", rec.Code)
	}
	if gotSubject != "owner-1" {
		t.Errorf("subject = %q", gotSubject)
	}

	// Empty secret disables access entirely.
	disabled := AdminJWT("")(inner)
	req = httptest.NewRequest(http.MethodGet, "/admin/businesses/biz-1/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, secret))
	rec = httptest.NewRecorder()
	disabled.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("disabled auth: status = %d", rec.Code)
	}
}

func TestRequestLoggerPassesThrough(t *testing.T) {
	handler := RequestLogger(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", rec.Code)
	}
}

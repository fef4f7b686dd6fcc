package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"agenda-backend/internal/auth"
	"github.com/google/uuid"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRateLimiterBlocksAfterLimit(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	h := rl.Middleware(okHandler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/meetings", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("status codes = %v", codes)
	}
}

func TestRateLimiterWindowResets(t *testing.T) {
	now := time.Date(2026, 2, 2, 8, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("k") || rl.Allow("k") {
		t.Fatal("expected one request per window")
	}
	now = now.Add(2 * time.Minute)
	if !rl.Allow("k") {
		t.Fatal("expected a fresh window")
	}
}

func TestCORSAllowsListedOrigins(t *testing.T) {
	h := CORS([]string{"https://book.example", "https://admin.example/"})(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/services", nil)
	req.Header.Set("Origin", "https://admin.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://admin.example" {
		t.Fatalf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/services", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("preflight from unknown origin: %d %q", rec.Code, rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("generated id %q is not a uuid", seen)
	}

	inbound := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, inbound)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != inbound {
		t.Fatalf("inbound id not propagated: %q", seen)
	}
}

func TestAdminAuth(t *testing.T) {
	manager := &auth.Manager{Secret: []byte("k"), AccessTTL: time.Minute, RefreshTTL: time.Hour, Issuer: "agenda-backend"}
	h := AdminAuth("static-key", manager)(okHandler)

	serve := func(mutate func(*http.Request)) int {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/meetings", nil)
		mutate(req)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := serve(func(r *http.Request) {}); code != http.StatusUnauthorized {
		t.Fatalf("anonymous = %d", code)
	}
	if code := serve(func(r *http.Request) { r.Header.Set("X-Admin-Key", "static-key") }); code != http.StatusOK {
		t.Fatalf("admin key = %d", code)
	}

	access, _ := manager.NewAccessToken("u1", "admin")
	if code := serve(func(r *http.Request) { r.AddCookie(&http.Cookie{Name: AccessCookie, Value: access}) }); code != http.StatusOK {
		t.Fatalf("access cookie = %d", code)
	}
	refresh, _ := manager.NewRefreshToken("u1", "admin")
	if code := serve(func(r *http.Request) { r.AddCookie(&http.Cookie{Name: AccessCookie, Value: refresh}) }); code != http.StatusUnauthorized {
		t.Fatalf("refresh token used as access = %d", code)
	}
}

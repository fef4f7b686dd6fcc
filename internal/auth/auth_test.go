package auth

import (
	"errors"
	"testing"
	"time"
)

func newManager(now time.Time) *Manager {
	return &Manager{
		Secret:     []byte("test-secret"),
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
		Issuer:     "agenda-backend",
		Now:        func() time.Time { return now },
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := newManager(time.Date(2026, 2, 2, 8, 0, 0, 0, time.UTC))
	token, err := m.NewAccessToken("u1", "admin")
	if err != nil {
		t.Fatalf("NewAccessToken error: %v", err)
	}
	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if claims.Role != "admin" || claims.Subject != "u1" || claims.Type != TokenAccess {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if _, err := m.ParseRefresh(token); !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("ParseRefresh(access) error = %v", err)
	}
}

func TestExpiredToken(t *testing.T) {
	issued := time.Date(2026, 2, 2, 8, 0, 0, 0, time.UTC)
	token, err := newManager(issued).NewAccessToken("u1", "admin")
	if err != nil {
		t.Fatalf("NewAccessToken error: %v", err)
	}
	if _, err := newManager(issued.Add(time.Hour)).Parse(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestWrongSecret(t *testing.T) {
	now := time.Date(2026, 2, 2, 8, 0, 0, 0, time.UTC)
	token, _ := newManager(now).NewRefreshToken("u1", "admin")
	other := newManager(now)
	other.Secret = []byte("another")
	if _, err := other.Parse(token); err == nil {
		t.Fatal("expected signature failure")
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if err := ComparePassword(hash, "s3cret!"); err != nil {
		t.Fatalf("ComparePassword error: %v", err)
	}
	if err := ComparePassword(hash, "wrong"); err == nil {
		t.Fatal("expected mismatch")
	}
	if _, err := HashPassword(""); err == nil {
		t.Fatal("expected error for empty password")
	}
}

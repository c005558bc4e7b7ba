package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestIssuer(t *testing.T, now time.Time, ttl time.Duration) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(TokenIssuerDeps{
		Secret: "test-secret",
		TTL:    ttl,
		Clock:  func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewTokenIssuer returned error: %v", err)
	}
	return issuer
}

func TestTokenIssuerRoundTrip(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, now, time.Hour)

	signed, err := issuer.Issue(Identity{UserID: "usr_1", Email: "ayse@example.com", Name: "Ayşe", Role: "Admin"})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	identity, err := issuer.Verify(signed)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if identity.UserID != "usr_1" {
		t.Fatalf("expected user id usr_1, got %q", identity.UserID)
	}
	if identity.Role != "admin" {
		t.Fatalf("expected normalised role admin, got %q", identity.Role)
	}
	if identity.Email != "ayse@example.com" {
		t.Fatalf("unexpected email %q", identity.Email)
	}
}

func TestTokenIssuerRejectsExpiredToken(t *testing.T) {
	issued := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, issued, time.Minute)

	signed, err := issuer.Issue(Identity{UserID: "usr_1", Role: RoleCustomer})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	late := newTestIssuer(t, issued.Add(2*time.Minute), time.Minute)
	if _, err := late.Verify(signed); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenIssuerRejectsTamperedToken(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, now, time.Hour)

	signed, err := issuer.Issue(Identity{UserID: "usr_1", Role: RoleCustomer})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	other, err := NewTokenIssuer(TokenIssuerDeps{
		Secret: "different-secret",
		TTL:    time.Hour,
		Clock:  func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewTokenIssuer returned error: %v", err)
	}
	if _, err := other.Verify(signed); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestTokenIssuerRequiresUserID(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, now, time.Hour)

	if _, err := issuer.Issue(Identity{}); err == nil {
		t.Fatalf("expected error for empty user id")
	}
}

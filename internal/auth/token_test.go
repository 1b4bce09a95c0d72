package auth

import (
	"testing"
	"time"
)

func TestTokenIssueAndParse(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	iss, err := NewTokenIssuer("0123456789abcdef-secret", "bureau", time.Hour, WithTokenClock(clock))
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	token, sid, err := iss.Issue("actor-1", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if sid == "" {
		t.Fatal("expected generated session id")
	}
	claims, err := iss.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "actor-1" || claims.SessionID != sid {
		t.Fatalf("unexpected claims %+v", claims)
	}

	now = now.Add(2 * time.Hour)
	if _, err := iss.Parse(token); err != ErrInvalidToken {
		t.Fatalf("expected expired token to be invalid, got %v", err)
	}
}

func TestTokenRejectsForeignSecret(t *testing.T) {
	a, _ := NewTokenIssuer("aaaaaaaaaaaaaaaaaaaa", "bureau", time.Hour)
	b, _ := NewTokenIssuer("bbbbbbbbbbbbbbbbbbbb", "bureau", time.Hour)
	token, _, err := a.Issue("actor-1", "sid-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := b.Parse(token); err != ErrInvalidToken {
		t.Fatalf("expected invalid token, got %v", err)
	}
	if _, err := a.Parse(""); err != ErrInvalidToken {
		t.Fatalf("expected invalid token for empty string, got %v", err)
	}
}

func TestNewTokenIssuerRejectsShortSecret(t *testing.T) {
	if _, err := NewTokenIssuer("short", "bureau", time.Hour); err == nil {
		t.Fatal("expected error for short secret")
	}
	if _, err := NewTokenIssuer("0123456789abcdef", "bureau", 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}

package auth

import (
	"errors"
	"testing"

	"bureau.org/internal/domain"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		failures int
	}{
		{"abc1234", 0},
		{"abcdefg", 1},
		{"1234567", 1},
		{"ab1", 1},
		{"", 3},
		{"!!!", 3},
	}
	for _, tt := range tests {
		err := ValidatePassword(tt.password)
		if tt.failures == 0 {
			if err != nil {
				t.Fatalf("%q: unexpected error %v", tt.password, err)
			}
			continue
		}
		var ve *domain.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("%q: expected validation error, got %v", tt.password, err)
		}
		if len(ve.Errors) != tt.failures {
			t.Fatalf("%q: expected %d failures, got %v", tt.password, tt.failures, ve.Errors)
		}
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("abc1234")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := VerifyPassword(hash, "abc1234"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := VerifyPassword(hash, "abc12345"); err == nil {
		t.Fatal("expected mismatch")
	}
	if _, err := HashPassword(""); err == nil {
		t.Fatal("expected error for empty password")
	}
}

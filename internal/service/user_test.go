package service

import (
	"strings"
	"testing"

	"github.com/scrapegate/scrapegate/internal/domain"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		valid    bool
	}{
		{"too short", "ab", false},
		{"minimum length", "abc", true},
		{"digits and separators", "dev.user_1-a", true},
		{"uppercase rejected", "Alice", false},
		{"spaces rejected", "a user", false},
		{"too long", strings.Repeat("a", 65), false},
		{"maximum length", strings.Repeat("a", 64), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateUsername(tt.username)
			if tt.valid && err != nil {
				t.Errorf("expected valid, got error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Error("expected validation error")
			}
			if err != nil && domain.ErrorCode(err) != domain.EINVALID {
				t.Errorf("expected EINVALID, got %s", domain.ErrorCode(err))
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		valid    bool
	}{
		{"too short", "1234567", false},
		{"minimum length", "12345678", true},
		{"bcrypt limit", strings.Repeat("a", 72), true},
		{"over bcrypt limit", strings.Repeat("a", 73), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePassword(tt.password)
			if tt.valid && err != nil {
				t.Errorf("expected valid, got error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestHashAPIKey(t *testing.T) {
	h1 := hashAPIKey("key-one")
	h2 := hashAPIKey("key-two")

	if h1 == h2 {
		t.Error("different keys must hash differently")
	}
	if h1 != hashAPIKey("key-one") {
		t.Error("hashing must be deterministic")
	}
	// SHA-256 hex digest
	if len(h1) != 64 {
		t.Errorf("expected 64-char digest, got %d", len(h1))
	}
	if strings.Contains(h1, "key-one") {
		t.Error("digest must not contain the raw key")
	}
}

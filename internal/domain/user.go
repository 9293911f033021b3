// Package domain contains core business types and interfaces.
//
// This file defines the User domain type and related types for
// authentication. These types are separate from the repository models so
// business logic never depends on database column types.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account.
type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string // Never expose this in API responses
	Plan         PlanTier
	APIKeyHash   string // SHA-256 hash of the API key; empty until one is minted
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasAPIKey reports whether the user has minted an API key.
func (u *User) HasAPIKey() bool {
	return u.APIKeyHash != ""
}

// Identity is the resolved subject of an authorization attempt: the
// stable account ID plus the plan tier in effect right now. The tier is
// re-read on every call so external plan changes apply immediately.
type Identity struct {
	ID   uuid.UUID
	Plan PlanTier
}

// RegisterParams contains the validated parameters for account registration.
type RegisterParams struct {
	Username string
	Password string // Raw password, will be hashed by the service
}

// LoginResult contains the result of a successful login.
type LoginResult struct {
	User      *User
	Token     string // Signed access token - only returned once
	ExpiresAt time.Time
}

package domain

import (
	"slices"
	"time"
)

type Role string

const (
	RoleRequester Role = "requester"
	RoleProvider  Role = "provider"
	RoleAdmin     Role = "admin"
)

// Switchable reports whether users may move into or out of r.
func (r Role) Switchable() bool {
	return r == RoleRequester || r == RoleProvider
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// RoleProfile marks whether a user's profile for a role is live.
type RoleProfile struct {
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	Active    bool      `json:"active"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RoleChange is one entry of a user's role history.
type RoleChange struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FromRole  Role      `json:"from_role"`
	ToRole    Role      `json:"to_role"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultWorkProfile is the profile seeded for a user entering the provider role.
func DefaultWorkProfile(providerID string, now time.Time) WorkProfile {
	return WorkProfile{
		ProviderID:           providerID,
		Categories:           []string{},
		Localities:           []string{},
		Available:            false,
		NotificationsEnabled: true,
		Tier:                 TierFree,
		Active:               true,
		UpdatedAt:            now,
	}
}

// CloneStrings returns a copy of s that never aliases the input.
func CloneStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}

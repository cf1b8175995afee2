package domain

import (
	"strings"
	"time"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleClient Role = "client"
	RoleWorker Role = "worker"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleWorker, RoleAdmin:
		return true
	}
	return false
}

// ParseRole normalizes and validates a role string.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// User is the account record persisted in the credential store.
type User struct {
	ID           string           `json:"id"`
	Email        string           `json:"email"`
	Name         string           `json:"name"`
	PasswordHash string           `json:"-"` // cache snapshots never carry credentials
	Role         Role             `json:"role"`
	Active       bool             `json:"active"`
	Phone        *string          `json:"phone,omitempty"`
	Address      *Address         `json:"address,omitempty"`
	Privacy      *PrivacySettings `json:"privacy_settings,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	LastLoginAt  *time.Time       `json:"last_login_at,omitempty"`
}

// PublicUser is the projection of User that is safe to return to callers.
type PublicUser struct {
	ID          string           `json:"id"`
	Email       string           `json:"email"`
	Name        string           `json:"name"`
	Role        Role             `json:"role"`
	Active      bool             `json:"active"`
	Phone       *string          `json:"phone,omitempty"`
	Address     *Address         `json:"address,omitempty"`
	Privacy     *PrivacySettings `json:"privacy_settings,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	LastLoginAt *time.Time       `json:"last_login_at,omitempty"`
}

// Public strips credentials from the user.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Role:        u.Role,
		Active:      u.Active,
		Phone:       u.Phone,
		Address:     u.Address,
		Privacy:     u.Privacy,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserFilter narrows user listings.
type UserFilter struct {
	Role   *Role
	Active *bool
	Limit  int
	Offset int
}

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Normalize applies pagination defaults and bounds.
func (f UserFilter) Normalize() UserFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// ProfileUpdate carries the mutable profile fields. Nil fields are left
// unchanged; a Phone pointing at an empty string clears the phone.
type ProfileUpdate struct {
	Name    *string
	Phone   *string
	Address *AddressUpdate
	Privacy *PrivacyUpdate
}

// Empty reports whether the update changes nothing.
func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.Phone == nil && p.Address.Empty() && p.Privacy.Empty()
}

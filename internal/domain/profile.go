package domain

import "strings"

// Address is the optional postal address attached to a profile.
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
}

// AddressUpdate is an upsert of the address. Nil fields keep their stored value.
type AddressUpdate struct {
	Street  *string
	City    *string
	State   *string
	Country *string
}

// Empty reports whether the update sets no field.
func (u *AddressUpdate) Empty() bool {
	return u == nil || (u.Street == nil && u.City == nil && u.State == nil && u.Country == nil)
}

// Trimmed returns a copy with surrounding whitespace removed from every set field.
func (u AddressUpdate) Trimmed() AddressUpdate {
	return AddressUpdate{
		Street:  trimmed(u.Street),
		City:    trimmed(u.City),
		State:   trimmed(u.State),
		Country: trimmed(u.Country),
	}
}

// Visibility controls who may see a profile.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Valid reports whether v is a known visibility.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// PrivacySettings are the per-user profile privacy preferences.
type PrivacySettings struct {
	ProfileVisibility Visibility `json:"profile_visibility"`
	ShowEmail         bool       `json:"show_email"`
	ShowPhone         bool       `json:"show_phone"`
}

// DefaultPrivacySettings is what a user gets on first upsert for unset fields.
func DefaultPrivacySettings() PrivacySettings {
	return PrivacySettings{ProfileVisibility: VisibilityPublic}
}

// PrivacyUpdate is an upsert of the privacy settings. Nil fields keep their
// stored value, or the default when no settings exist yet.
type PrivacyUpdate struct {
	ProfileVisibility *Visibility
	ShowEmail         *bool
	ShowPhone         *bool
}

// Empty reports whether the update sets no field.
func (u *PrivacyUpdate) Empty() bool {
	return u == nil || (u.ProfileVisibility == nil && u.ShowEmail == nil && u.ShowPhone == nil)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

package dto

import "github.com/spec-kit/user-service/internal/domain"

// RegisterRequest payload for new accounts. Admin cannot be requested.
type RegisterRequest struct {
	Name     string  `json:"name" validate:"required,max=255"`
	Email    string  `json:"email" validate:"required,email,max=255"`
	Password string  `json:"password" validate:"required,min=8,max=72"`
	Role     string  `json:"role" validate:"omitempty,oneof=client worker"`
	Phone    *string `json:"phone" validate:"omitempty,phone"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest payload for token refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LogoutRequest optionally names the refresh token to revoke alongside the access token.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ForgotPasswordRequest payload for password reset requests.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest payload for password reset confirmation.
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

// UpdateProfileRequest carries the mutable profile fields. An empty phone clears it.
type UpdateProfileRequest struct {
	Name    *string         `json:"name" validate:"omitempty,min=1,max=255"`
	Phone   *string         `json:"phone" validate:"omitempty,phone"`
	Address *AddressRequest `json:"address" validate:"omitempty"`
	Privacy *PrivacyRequest `json:"privacy_settings" validate:"omitempty"`
}

// AddressRequest is upserted onto the stored address; omitted fields are kept.
type AddressRequest struct {
	Street  *string `json:"street" validate:"omitempty,max=255"`
	City    *string `json:"city" validate:"omitempty,max=100"`
	State   *string `json:"state" validate:"omitempty,max=100"`
	Country *string `json:"country" validate:"omitempty,max=100"`
}

// PrivacyRequest is upserted onto the stored privacy settings.
type PrivacyRequest struct {
	ProfileVisibility *string `json:"profile_visibility" validate:"omitempty,oneof=public private"`
	ShowEmail         *bool   `json:"show_email"`
	ShowPhone         *bool   `json:"show_phone"`
}

// UpdateRoleRequest payload for role changes.
type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=client worker admin"`
}

// UserListResponse is returned by GET /users.
type UserListResponse struct {
	Users []domain.PublicUser `json:"users"`
	Total int                 `json:"total"`
}

// ProfileUpdate converts the request into the domain patch.
func (r UpdateProfileRequest) ProfileUpdate() domain.ProfileUpdate {
	patch := domain.ProfileUpdate{Name: r.Name, Phone: r.Phone}
	if r.Address != nil {
		patch.Address = &domain.AddressUpdate{
			Street:  r.Address.Street,
			City:    r.Address.City,
			State:   r.Address.State,
			Country: r.Address.Country,
		}
	}
	if r.Privacy != nil {
		patch.Privacy = &domain.PrivacyUpdate{ShowEmail: r.Privacy.ShowEmail, ShowPhone: r.Privacy.ShowPhone}
		if r.Privacy.ProfileVisibility != nil {
			v := domain.Visibility(*r.Privacy.ProfileVisibility)
			patch.Privacy.ProfileVisibility = &v
		}
	}
	return patch
}

package users

import (
	"time"

	"github.com/tallyroom/tallyroom/internal/access"
)

// User represents a back-office account.
type User struct {
	ID           int64       `json:"id"`
	Email        string      `json:"email"`
	Name         string      `json:"name"`
	Role         access.Role `json:"role"`
	LocationID   *int64      `json:"location_id,omitempty"`
	IsActive     bool        `json:"is_active"`
	PasswordHash string      `json:"-"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Principal returns the access principal for the account.
func (u User) Principal() access.Principal {
	return access.Principal{UserID: u.ID, Email: u.Email, Role: u.Role, LocationID: u.LocationID}
}

// CreateInput carries the fields accepted by create_user.
type CreateInput struct {
	Email      string `json:"email" validate:"required,email,max=254"`
	Name       string `json:"name" validate:"required,max=120"`
	Role       string `json:"role" validate:"required"`
	LocationID *int64 `json:"location_id" validate:"omitempty,gt=0"`
	Password   string `json:"password" validate:"required,min=8,max=72"`
}

// UpdateInput carries the fields accepted by update_user. Nil fields are left
// unchanged.
type UpdateInput struct {
	Name       *string `json:"name" validate:"omitempty,min=1,max=120"`
	Role       *string `json:"role"`
	LocationID *int64  `json:"location_id" validate:"omitempty,gt=0"`
	IsActive   *bool   `json:"is_active"`
}

// PasswordInput carries the fields accepted by update_password.
type PasswordInput struct {
	Current string `json:"current_password" validate:"required"`
	New     string `json:"new_password" validate:"required,min=8,max=72"`
}

// ResetResult reports how a reset password reached its owner. The temporary
// password is only returned when it could not be emailed.
type ResetResult struct {
	UserID            int64  `json:"user_id"`
	Emailed           bool   `json:"emailed"`
	TemporaryPassword string `json:"temporary_password,omitempty"`
}

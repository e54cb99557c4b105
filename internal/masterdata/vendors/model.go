package vendors

import (
	"time"
)

// Vendor is a machine supplier or service partner working with a location.
type Vendor struct {
	ID          int64     `json:"id"`
	LocationID  int64     `json:"location_id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	ContactName string    `json:"contact_name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Input carries the writable fields of a vendor.
type Input struct {
	LocationID  int64  `json:"location_id" validate:"required,gt=0"`
	Code        string `json:"code" validate:"required,max=32"`
	Name        string `json:"name" validate:"required,max=120"`
	ContactName string `json:"contact_name" validate:"max=120"`
	Email       string `json:"email" validate:"omitempty,email"`
	Phone       string `json:"phone" validate:"max=32"`
	IsActive    *bool  `json:"is_active"`
}

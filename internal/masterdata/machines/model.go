package machines

import (
	"time"
)

// Machine is a gaming machine installed at a location and serviced by a vendor.
type Machine struct {
	ID           int64     `json:"id"`
	LocationID   int64     `json:"location_id"`
	VendorID     int64     `json:"vendor_id"`
	AssetTag     string    `json:"asset_tag"`
	Name         string    `json:"name"`
	SerialNumber string    `json:"serial_number"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Input carries the writable fields of a machine.
type Input struct {
	LocationID   int64  `json:"location_id" validate:"required,gt=0"`
	VendorID     int64  `json:"vendor_id" validate:"required,gt=0"`
	AssetTag     string `json:"asset_tag" validate:"required,max=32"`
	Name         string `json:"name" validate:"required,max=120"`
	SerialNumber string `json:"serial_number" validate:"max=64"`
	IsActive     *bool  `json:"is_active"`
}

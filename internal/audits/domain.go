// Package audits records the daily meter readings taken per machine.
package audits

import "time"

// Entry is one machine's meter reading for a business day.
type Entry struct {
	ID         int64     `json:"id"`
	LocationID int64     `json:"location_id"`
	MachineID  int64     `json:"machine_id"`
	EntryDate  string    `json:"entry_date"`
	MeterIn    int64     `json:"meter_in"`
	MeterOut   int64     `json:"meter_out"`
	Net        int64     `json:"net"`
	Notes      string    `json:"notes"`
	CreatedBy  int64     `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Input carries the writable fields of an entry.
type Input struct {
	LocationID int64  `json:"location_id" validate:"required,gt=0"`
	MachineID  int64  `json:"machine_id" validate:"required,gt=0"`
	EntryDate  string `json:"entry_date" validate:"required,datetime=2006-01-02"`
	MeterIn    int64  `json:"meter_in" validate:"gte=0"`
	MeterOut   int64  `json:"meter_out" validate:"gte=0"`
	Notes      string `json:"notes" validate:"max=500"`
}

// ListFilters narrows the entry listing.
type ListFilters struct {
	LocationID *int64
	MachineID  *int64
	From       *time.Time
	To         *time.Time
	Page       int
	PerPage    int
}

// Offset returns the row offset for the page.
func (f ListFilters) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.PerPage
}

// Package slips manages the cash slips written by the MSP and silver desks.
package slips

import (
	"time"

	"github.com/tallyroom/tallyroom/internal/access"
)

// Kind identifies the desk a slip belongs to.
type Kind string

const (
	KindMSP            Kind = "msp"
	KindSilver         Kind = "silver"
	KindSilverPurchase Kind = "silver_purchase"
)

var kindInfo = map[Kind]struct {
	module access.Module
	prefix string
}{
	KindMSP:            {access.ModuleMSP, "MSP"},
	KindSilver:         {access.ModuleSilver, "SLV"},
	KindSilverPurchase: {access.ModuleSilverPurchase, "SPU"},
}

// ParseKind maps a wire value to a Kind.
func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	_, ok := kindInfo[k]
	return k, ok
}

// Module returns the access module gating the kind.
func (k Kind) Module() access.Module {
	return kindInfo[k].module
}

// Prefix returns the slip number prefix of the kind.
func (k Kind) Prefix() string {
	return kindInfo[k].prefix
}

// Slip is one cash movement recorded at a location.
type Slip struct {
	ID          int64     `json:"id"`
	Number      string    `json:"number"`
	Kind        Kind      `json:"kind"`
	LocationID  int64     `json:"location_id"`
	SlipDate    string    `json:"slip_date"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description"`
	Reference   string    `json:"reference,omitempty"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateInput carries the fields of a new slip. Amount is in minor units.
type CreateInput struct {
	Kind        string `json:"kind" validate:"required,oneof=msp silver silver_purchase"`
	LocationID  int64  `json:"location_id" validate:"required,gt=0"`
	SlipDate    string `json:"slip_date" validate:"required,datetime=2006-01-02"`
	Amount      int64  `json:"amount" validate:"gt=0"`
	Description string `json:"description" validate:"required,max=255"`
	Reference   string `json:"reference" validate:"max=128"`
}

// UpdateInput carries the editable fields of an existing slip. Kind, location
// and date are fixed once the number is issued.
type UpdateInput struct {
	Amount      int64  `json:"amount" validate:"gt=0"`
	Description string `json:"description" validate:"required,max=255"`
	Reference   string `json:"reference" validate:"max=128"`
}

// ListFilters narrows the slip listing.
type ListFilters struct {
	Kind       *Kind
	LocationID *int64
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

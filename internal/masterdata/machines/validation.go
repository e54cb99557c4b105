package machines

import (
	"context"
	"errors"
	"strings"

	"github.com/tallyroom/tallyroom/internal/access"
	"github.com/tallyroom/tallyroom/internal/masterdata/shared"
	"github.com/tallyroom/tallyroom/internal/platform/httpx"
)

func (s *Service) build(ctx context.Context, actor access.Principal, in Input, base Machine) (Machine, error) {
	in.AssetTag = shared.NormalizeCode(in.AssetTag)
	in.Name = shared.NormalizeName(in.Name)
	in.SerialNumber = strings.TrimSpace(in.SerialNumber)
	if err := httpx.Validate(s.validate, in); err != nil {
		return Machine{}, err
	}
	if !actor.CanAccessLocation(in.LocationID) {
		return Machine{}, shared.ErrOtherLocation
	}
	vendor, err := s.vendors.Get(ctx, actor, in.VendorID)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return Machine{}, httpx.FieldErrors{"vendor_id": "does not exist"}
		}
		return Machine{}, err
	}
	if vendor.LocationID != in.LocationID {
		return Machine{}, httpx.FieldErrors{"vendor_id": "belongs to another location"}
	}
	base.LocationID = in.LocationID
	base.VendorID = in.VendorID
	base.AssetTag = in.AssetTag
	base.Name = in.Name
	base.SerialNumber = in.SerialNumber
	if in.IsActive != nil {
		base.IsActive = *in.IsActive
	}
	return base, nil
}

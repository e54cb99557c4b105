package vendors

import (
	"strings"

	"github.com/tallyroom/tallyroom/internal/masterdata/shared"
	"github.com/tallyroom/tallyroom/internal/platform/httpx"
)

func (s *Service) build(in Input, base Vendor) (Vendor, error) {
	in.Code = shared.NormalizeCode(in.Code)
	in.Name = shared.NormalizeName(in.Name)
	in.ContactName = shared.NormalizeName(in.ContactName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	if err := httpx.Validate(s.validate, in); err != nil {
		return Vendor{}, err
	}
	base.LocationID = in.LocationID
	base.Code = in.Code
	base.Name = in.Name
	base.ContactName = in.ContactName
	base.Email = in.Email
	base.Phone = in.Phone
	if in.IsActive != nil {
		base.IsActive = *in.IsActive
	}
	return base, nil
}

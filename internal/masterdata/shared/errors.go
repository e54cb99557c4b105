package shared

import (
	"fmt"

	"github.com/tallyroom/tallyroom/internal/platform/httpx"
)

var (
	ErrNotFound       = fmt.Errorf("record %w", httpx.ErrNotFound)
	ErrDuplicateCode  = fmt.Errorf("code already in use: %w", httpx.ErrDuplicate)
	ErrInUse          = fmt.Errorf("record is still referenced: %w", httpx.ErrConflict)
	ErrOtherLocation  = fmt.Errorf("record belongs to another location: %w", httpx.ErrForbidden)
	ErrSuperAdminOnly = fmt.Errorf("only a SuperAdmin may do this: %w", httpx.ErrForbidden)
)

// Package access decides which roles may change which parts of the
// back-office and applies that decision to forms and routes.
package access

import "time"

// DateLayout is the ISO calendar date format selected dates are given in.
const DateLayout = "2006-01-02"

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the process wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// Policy evaluates edit and view rights. The zero value uses the system clock
// in the local timezone. A Policy holds no mutable state and is safe for
// concurrent use.
type Policy struct {
	clock    Clock
	location *time.Location
}

// NewPolicy builds a Policy reading time from clock and computing calendar
// dates in loc. Nil arguments fall back to the system clock and time.Local.
func NewPolicy(clock Clock, loc *time.Location) Policy {
	return Policy{clock: clock, location: loc}
}

func isFullAccess(role Role) bool {
	return role == RoleSuperAdmin || role == RoleLocationAdmin
}

func isManagerEditable(module Module) bool {
	switch module {
	case ModuleVendors, ModuleMachines, ModuleUsers, ModuleSilverPurchase:
		return true
	default:
		return false
	}
}

// IsDateRestricted reports whether edit rights for role depend on the date of
// the record being edited.
func IsDateRestricted(role Role) bool {
	switch role {
	case RoleAudit, RoleMSP, RoleSilver, RoleSilverAgent:
		return true
	default:
		return false
	}
}

// CanEdit reports whether role may mutate records of module. selectedDate is
// an ISO date and only matters for date-restricted roles; an empty or
// malformed value counts as absent.
func (p Policy) CanEdit(role Role, module Module, selectedDate string) bool {
	switch {
	case isFullAccess(role):
		return true
	case role == RoleManager:
		return isManagerEditable(module)
	case IsDateRestricted(role):
		return p.withinEditWindow(selectedDate)
	default:
		return false
	}
}

// CanEditAt is CanEdit for a date already held as a time.Time. Only the
// calendar date of t in the policy's location is considered.
func (p Policy) CanEditAt(role Role, module Module, t time.Time) bool {
	if t.IsZero() {
		return p.CanEdit(role, module, "")
	}
	return p.CanEdit(role, module, t.In(p.loc()).Format(DateLayout))
}

// CanView reports whether role may see module. Viewing is unrestricted.
func (p Policy) CanView(role Role, module Module) bool {
	return true
}

// EditWindow returns today and yesterday as ISO dates.
func (p Policy) EditWindow() (today, yesterday string) {
	now := p.now().In(p.loc())
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, p.loc())
	return midnight.Format(DateLayout), midnight.AddDate(0, 0, -1).Format(DateLayout)
}

func (p Policy) withinEditWindow(selectedDate string) bool {
	if selectedDate == "" {
		return false
	}
	parsed, err := time.ParseInLocation(DateLayout, selectedDate, p.loc())
	if err != nil {
		return false
	}
	date := parsed.Format(DateLayout)
	today, yesterday := p.EditWindow()
	return date == today || date == yesterday
}

func (p Policy) now() time.Time {
	if p.clock == nil {
		return time.Now()
	}
	return p.clock.Now()
}

func (p Policy) loc() *time.Location {
	if p.location == nil {
		return time.Local
	}
	return p.location
}

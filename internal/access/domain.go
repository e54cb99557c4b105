package access

// Role identifies the permission grouping a principal belongs to.
type Role int

// Known roles. RoleUnknown is the zero value so an unparsed role denies.
const (
	RoleUnknown Role = iota
	RoleSuperAdmin
	RoleLocationAdmin
	RoleManager
	RoleAudit
	RoleMSP
	RoleSilver
	RoleSilverAgent
)

var roleNames = map[Role]string{
	RoleSuperAdmin:    "SuperAdmin",
	RoleLocationAdmin: "LocationAdmin",
	RoleManager:       "Manager",
	RoleAudit:         "Audit",
	RoleMSP:           "MSP",
	RoleSilver:        "Silver",
	RoleSilverAgent:   "SilverAgent",
}

var rolesByName = invert(roleNames)

// ParseRole maps a stored role name to a Role. Matching is exact; anything
// else yields RoleUnknown and false.
func ParseRole(name string) (Role, bool) {
	role, ok := rolesByName[name]
	return role, ok
}

// String returns the canonical role name, or "Unknown".
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "Unknown"
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// Roles lists every known role in declaration order.
func Roles() []Role {
	return []Role{RoleSuperAdmin, RoleLocationAdmin, RoleManager, RoleAudit, RoleMSP, RoleSilver, RoleSilverAgent}
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown names decode to
// RoleUnknown without error; validation decides whether that is acceptable.
func (r *Role) UnmarshalText(text []byte) error {
	*r, _ = ParseRole(string(text))
	return nil
}

// Module identifies the functional area an action targets.
type Module int

// Known modules.
const (
	ModuleUnknown Module = iota
	ModuleVendors
	ModuleMachines
	ModuleUsers
	ModuleSilverPurchase
	ModuleLocations
	ModuleAudit
	ModuleMSP
	ModuleSilver
	ModuleReports
)

var moduleNames = map[Module]string{
	ModuleVendors:        "Vendors",
	ModuleMachines:       "Machines",
	ModuleUsers:          "Users",
	ModuleSilverPurchase: "SilverPurchase",
	ModuleLocations:      "Locations",
	ModuleAudit:          "Audit",
	ModuleMSP:            "MSP",
	ModuleSilver:         "Silver",
	ModuleReports:        "Reports",
}

var modulesByName = invert(moduleNames)

// ParseModule maps a module name to a Module, yielding ModuleUnknown and
// false for anything unrecognised.
func ParseModule(name string) (Module, bool) {
	module, ok := modulesByName[name]
	return module, ok
}

// String returns the canonical module name, or "Unknown".
func (m Module) String() string {
	if name, ok := moduleNames[m]; ok {
		return name
	}
	return "Unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (m Module) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Principal describes the authenticated actor an action is attempted for.
// It is resolved once per request and must not be mutated afterwards.
type Principal struct {
	UserID     int64  `json:"user_id"`
	Email      string `json:"email"`
	Role       Role   `json:"role"`
	LocationID *int64 `json:"location_id,omitempty"`
}

// IsSuperAdmin reports whether the principal holds the SuperAdmin role.
func (p Principal) IsSuperAdmin() bool {
	return p.Role == RoleSuperAdmin
}

// CanAccessLocation reports whether rows belonging to locationID are within
// the principal's reach. SuperAdmin reaches every location; everybody else
// only their own, and nothing at all without an assigned location.
func (p Principal) CanAccessLocation(locationID int64) bool {
	if p.IsSuperAdmin() {
		return true
	}
	if p.LocationID == nil {
		return false
	}
	return *p.LocationID == locationID
}

// ScopeLocation returns the location filter list queries should apply for the
// principal. A nil result means no filter.
func (p Principal) ScopeLocation() *int64 {
	if p.IsSuperAdmin() {
		return nil
	}
	if p.LocationID == nil {
		none := int64(-1)
		return &none
	}
	id := *p.LocationID
	return &id
}

func invert[K comparable](in map[K]string) map[string]K {
	out := make(map[string]K, len(in))
	for k, v := range in {
		out[v] = k
	}
	return out
}

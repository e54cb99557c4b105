package shared

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/tallyroom/tallyroom/internal/access"
)

// ListFilters represents standard list page filters
type ListFilters struct {
	Page     int
	Limit    int
	Search   string
	SortBy   string
	SortDir  string
	IsActive *bool

	// Entity specific filters
	LocationID *int64
	VendorID   *int64
}

// Offset returns the row offset for the page.
func (f ListFilters) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// FiltersFromRequest reads page, limit, search, sort, dir, active,
// location_id and vendor_id query parameters.
func FiltersFromRequest(r *http.Request) ListFilters {
	q := r.URL.Query()
	f := ListFilters{
		Search:  strings.TrimSpace(q.Get("search")),
		SortBy:  q.Get("sort"),
		SortDir: q.Get("dir"),
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if v, err := strconv.ParseBool(q.Get("active")); err == nil {
		f.IsActive = &v
	}
	if id, err := strconv.ParseInt(q.Get("location_id"), 10, 64); err == nil && id > 0 {
		f.LocationID = &id
	}
	if id, err := strconv.ParseInt(q.Get("vendor_id"), 10, 64); err == nil && id > 0 {
		f.VendorID = &id
	}
	return f
}

// OrderBy builds an ORDER BY clause from a whitelist of sortable columns.
// Unknown columns fall back to the first entry.
func OrderBy(sortBy, sortDir string, columns ...string) string {
	dir := "ASC"
	if sortDir == SortDesc {
		dir = "DESC"
	}
	col := columns[0]
	for _, c := range columns {
		if c == sortBy {
			col = c
			break
		}
	}
	return col + " " + dir + ", id " + dir
}

// ScopeFilters pins f to the actor's location unless the actor is SuperAdmin.
func ScopeFilters(actor access.Principal, f ListFilters) ListFilters {
	if scope := actor.ScopeLocation(); scope != nil {
		f.LocationID = scope
	}
	return f
}

package shared

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	decomposed := "Cafe\u0301  Royale "
	require.Equal(t, "Caf\u00e9 Royale", NormalizeName(decomposed))
	require.NotEqual(t, "Caf\u00e9 Royale", strings.TrimSpace(decomposed))
	require.Equal(t, "", NormalizeName("   "))
}

func TestNormalizeCode(t *testing.T) {
	require.Equal(t, "LOC-01", NormalizeCode(" loc-01 "))
	require.Equal(t, "AB12", NormalizeCode("ab 12"))
}

func TestFiltersFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/?page=3&limit=500&search=+north+&sort=code&dir=desc&active=false&location_id=4&vendor_id=x", nil)
	f := FiltersFromRequest(r)
	require.Equal(t, 3, f.Page)
	require.Equal(t, MaxLimit, f.Limit)
	require.Equal(t, "north", f.Search)
	require.NotNil(t, f.IsActive)
	require.False(t, *f.IsActive)
	require.Equal(t, int64(4), *f.LocationID)
	require.Nil(t, f.VendorID)
	require.Equal(t, 400, f.Offset())

	d := FiltersFromRequest(httptest.NewRequest("GET", "/", nil))
	require.Equal(t, DefaultPage, d.Page)
	require.Equal(t, DefaultLimit, d.Limit)
	require.Nil(t, d.IsActive)
	require.Equal(t, 0, d.Offset())
}

func TestOrderBy(t *testing.T) {
	require.Equal(t, "code DESC, id DESC", OrderBy("code", "desc", "name", "code"))
	require.Equal(t, "name ASC, id ASC", OrderBy("password; DROP", "", "name", "code"))
}

func TestQueryBuildsPlaceholders(t *testing.T) {
	active := true
	loc := int64(9)
	var q Query
	q.Scoped(ListFilters{Search: "north", IsActive: &active, LocationID: &loc}, "name", "code")
	q.Where("vendor_id = ?", int64(2))
	require.Equal(t, " WHERE (name ILIKE $1 OR code ILIKE $1) AND is_active = $2 AND location_id = $3 AND vendor_id = $4", q.Clause())
	require.Equal(t, []any{"%north%", true, int64(9), int64(2)}, q.Args)
	require.Equal(t, "$5", q.Arg(10))

	var empty Query
	require.Equal(t, "", empty.Clause())
}

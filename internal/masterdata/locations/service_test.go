package locations

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/tallyroom/tallyroom/internal/access"
	"github.com/tallyroom/tallyroom/internal/masterdata/shared"
	"github.com/tallyroom/tallyroom/internal/platform/httpx"
	internalShared "github.com/tallyroom/tallyroom/internal/shared"
)

type memoryRepo struct {
	rows   map[int64]Location
	nextID int64
}

func newMemoryRepo(rows ...Location) *memoryRepo {
	m := &memoryRepo{rows: map[int64]Location{}}
	for _, l := range rows {
		m.rows[l.ID] = l
		if l.ID > m.nextID {
			m.nextID = l.ID
		}
	}
	return m
}

func (m *memoryRepo) List(ctx context.Context, f shared.ListFilters) ([]Location, int, error) {
	var out []Location
	for _, l := range m.rows {
		if f.LocationID != nil && l.ID != *f.LocationID {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (Location, error) {
	l, ok := m.rows[id]
	if !ok {
		return Location{}, shared.ErrNotFound
	}
	return l, nil
}

func (m *memoryRepo) Create(ctx context.Context, l Location) (Location, error) {
	for _, existing := range m.rows {
		if existing.Code == l.Code {
			return Location{}, shared.ErrDuplicateCode
		}
	}
	m.nextID++
	l.ID = m.nextID
	m.rows[l.ID] = l
	return l, nil
}

func (m *memoryRepo) Update(ctx context.Context, l Location) (Location, error) {
	if _, ok := m.rows[l.ID]; !ok {
		return Location{}, shared.ErrNotFound
	}
	m.rows[l.ID] = l
	return l, nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.rows[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

type activityLog struct{ entries []internalShared.Activity }

func (a *activityLog) Record(ctx context.Context, e internalShared.Activity) error {
	a.entries = append(a.entries, e)
	return nil
}

func ptr(v int64) *int64 { return &v }

var (
	superAdmin = access.Principal{UserID: 1, Role: access.RoleSuperAdmin}
	northAdmin = access.Principal{UserID: 2, Role: access.RoleLocationAdmin, LocationID: ptr(1)}
	manager    = access.Principal{UserID: 3, Role: access.RoleManager, LocationID: ptr(1)}
)

func seeded() (*memoryRepo, *activityLog, *Service) {
	repo := newMemoryRepo(
		Location{ID: 1, Code: "NORTH", Name: "North", IsActive: true},
		Location{ID: 2, Code: "SOUTH", Name: "South", IsActive: true},
	)
	log := &activityLog{}
	return repo, log, NewService(repo, log, nil)
}

func TestListIsScoped(t *testing.T) {
	_, _, svc := seeded()
	ctx := context.Background()

	all, total, err := svc.List(ctx, superAdmin, shared.ListFilters{Page: 1, Limit: 25})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, all, 2)

	own, _, err := svc.List(ctx, northAdmin, shared.ListFilters{Page: 1, Limit: 25, LocationID: ptr(2)})
	require.NoError(t, err)
	require.Len(t, own, 1)
	require.Equal(t, "NORTH", own[0].Code)

	_, err = svc.Get(ctx, northAdmin, 2)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestCreateNormalisesAndRequiresSuperAdmin(t *testing.T) {
	_, log, svc := seeded()
	ctx := context.Background()

	_, err := svc.Create(ctx, northAdmin, Input{Code: "east", Name: "East"})
	require.ErrorIs(t, err, shared.ErrSuperAdminOnly)

	loc, err := svc.Create(ctx, superAdmin, Input{Code: " east 1 ", Name: "  East   Wing "})
	require.NoError(t, err)
	require.Equal(t, "EAST1", loc.Code)
	require.Equal(t, "East Wing", loc.Name)
	require.True(t, loc.IsActive)
	require.Equal(t, internalShared.ActionCreate, log.entries[0].Action)
	require.Equal(t, "location", log.entries[0].Entity)

	_, err = svc.Create(ctx, superAdmin, Input{Code: "north", Name: "Dup"})
	require.ErrorIs(t, err, httpx.ErrDuplicate)

	_, err = svc.Create(ctx, superAdmin, Input{Code: "  ", Name: ""})
	var fields httpx.FieldErrors
	require.ErrorAs(t, err, &fields)
	require.Contains(t, fields, "code")
	require.Contains(t, fields, "name")
}

func TestUpdateOnlyOwnLocation(t *testing.T) {
	repo, _, svc := seeded()
	ctx := context.Background()

	inactive := false
	loc, err := svc.Update(ctx, northAdmin, 1, Input{Code: "north", Name: "North Hall", IsActive: &inactive})
	require.NoError(t, err)
	require.Equal(t, "North Hall", loc.Name)
	require.False(t, repo.rows[1].IsActive)

	_, err = svc.Update(ctx, northAdmin, 2, Input{Code: "south", Name: "Taken"})
	require.ErrorIs(t, err, shared.ErrOtherLocation)
	require.Equal(t, "South", repo.rows[2].Name)
}

func TestDeleteRequiresSuperAdmin(t *testing.T) {
	repo, _, svc := seeded()
	ctx := context.Background()
	require.ErrorIs(t, svc.Delete(ctx, northAdmin, 1), httpx.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, superAdmin, 2))
	require.NotContains(t, repo.rows, int64(2))
	require.ErrorIs(t, svc.Delete(ctx, superAdmin, 2), httpx.ErrNotFound)
}

func TestHandlerGatesMutations(t *testing.T) {
	_, _, svc := seeded()
	h := NewHandler(nil, svc, access.Middleware{Policy: access.NewPolicy(nil, nil)})

	serve := func(p access.Principal, method, path, body string) int {
		r := chi.NewRouter()
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(access.ContextWithPrincipal(req.Context(), p)))
			})
		})
		r.Route("/locations", h.MountRoutes)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(method, path, strings.NewReader(body)))
		return rr.Code
	}

	require.Equal(t, http.StatusForbidden, serve(manager, http.MethodPut, "/locations/1", `{"code":"N","name":"N"}`))
	require.Equal(t, http.StatusOK, serve(manager, http.MethodGet, "/locations", ""))
	require.Equal(t, http.StatusOK, serve(northAdmin, http.MethodPut, "/locations/1", `{"code":"N","name":"N"}`))
	require.Equal(t, http.StatusForbidden, serve(northAdmin, http.MethodPut, "/locations/2", `{"code":"S","name":"S"}`))
	require.Equal(t, http.StatusCreated, serve(superAdmin, http.MethodPost, "/locations", `{"code":"W","name":"West"}`))
	require.Equal(t, http.StatusNotFound, serve(manager, http.MethodGet, "/locations/2", ""))
}

package audits

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/tallyroom/tallyroom/internal/access"
	"github.com/tallyroom/tallyroom/internal/masterdata/machines"
	mdshared "github.com/tallyroom/tallyroom/internal/masterdata/shared"
	"github.com/tallyroom/tallyroom/internal/platform/httpx"
	"github.com/tallyroom/tallyroom/internal/shared"
)

type memoryRepo struct {
	rows   map[int64]Entry
	nextID int64
}

func (m *memoryRepo) List(ctx context.Context, f ListFilters) ([]Entry, int, error) {
	var out []Entry
	for _, e := range m.rows {
		if f.LocationID != nil && e.LocationID != *f.LocationID {
			continue
		}
		out = append(out, e)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (Entry, error) {
	e, ok := m.rows[id]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	return e, nil
}

func (m *memoryRepo) Create(ctx context.Context, e Entry) (Entry, error) {
	for _, existing := range m.rows {
		if existing.MachineID == e.MachineID && existing.EntryDate == e.EntryDate {
			return Entry{}, ErrDuplicateEntry
		}
	}
	m.nextID++
	e.ID = m.nextID
	m.rows[e.ID] = e
	return e, nil
}

func (m *memoryRepo) Update(ctx context.Context, e Entry) (Entry, error) {
	m.rows[e.ID] = e
	return e, nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	delete(m.rows, id)
	return nil
}

type machineTable map[int64]machines.Machine

func (t machineTable) Get(ctx context.Context, actor access.Principal, id int64) (machines.Machine, error) {
	m, ok := t[id]
	if !ok || !actor.CanAccessLocation(m.LocationID) {
		return machines.Machine{}, mdshared.ErrNotFound
	}
	return m, nil
}

type activityLog struct{ entries []shared.Activity }

func (a *activityLog) Record(ctx context.Context, e shared.Activity) error {
	a.entries = append(a.entries, e)
	return nil
}

func ptr(v int64) *int64 { return &v }

var (
	auditor    = access.Principal{UserID: 7, Role: access.RoleAudit, LocationID: ptr(1)}
	superAdmin = access.Principal{UserID: 1, Role: access.RoleSuperAdmin}
	manager    = access.Principal{UserID: 3, Role: access.RoleManager, LocationID: ptr(1)}
)

type fixture struct {
	repo     *memoryRepo
	activity *activityLog
	mw       access.Middleware
	service  *Service
}

// newFixture pins today to 2024-06-15.
func newFixture() fixture {
	now := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	repo := &memoryRepo{rows: map[int64]Entry{
		1: {ID: 1, LocationID: 1, MachineID: 11, EntryDate: "2024-06-14", MeterIn: 100, MeterOut: 40},
		2: {ID: 2, LocationID: 1, MachineID: 11, EntryDate: "2024-06-10", MeterIn: 80, MeterOut: 10},
		3: {ID: 3, LocationID: 2, MachineID: 21, EntryDate: "2024-06-15", MeterIn: 5, MeterOut: 1},
	}, nextID: 3}
	table := machineTable{
		11: {ID: 11, LocationID: 1},
		12: {ID: 12, LocationID: 1},
		21: {ID: 21, LocationID: 2},
	}
	mw := access.Middleware{Policy: access.NewPolicy(access.ClockFunc(func() time.Time { return now }), time.UTC)}
	log := &activityLog{}
	return fixture{repo: repo, activity: log, mw: mw, service: NewService(repo, table, mw, log, nil)}
}

func TestCreateWithinWindow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	e, err := f.service.Create(ctx, auditor, Input{LocationID: 1, MachineID: 12, EntryDate: "2024-06-15", MeterIn: 300, MeterOut: 120, Notes: " ok "})
	require.NoError(t, err)
	require.Equal(t, int64(180), e.Net)
	require.Equal(t, "ok", e.Notes)
	require.Equal(t, int64(7), e.CreatedBy)
	require.Equal(t, shared.ActionCreate, f.activity.entries[0].Action)

	_, err = f.service.Create(ctx, auditor, Input{LocationID: 1, MachineID: 12, EntryDate: "2024-06-13"})
	require.ErrorIs(t, err, access.ErrForbidden)

	_, err = f.service.Create(ctx, auditor, Input{LocationID: 1, MachineID: 11, EntryDate: "2024-06-14"})
	require.ErrorIs(t, err, httpx.ErrDuplicate)

	_, err = f.service.Create(ctx, manager, Input{LocationID: 1, MachineID: 12, EntryDate: "2024-06-15"})
	require.ErrorIs(t, err, access.ErrForbidden)

	// Historical rows stay editable for full-access roles.
	_, err = f.service.Create(ctx, superAdmin, Input{LocationID: 2, MachineID: 21, EntryDate: "2023-01-01"})
	require.NoError(t, err)
}

func TestCreateValidatesInput(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.service.Create(ctx, auditor, Input{LocationID: 1, MachineID: 12, EntryDate: "15/06/2024", MeterIn: -1})
	var fields httpx.FieldErrors
	require.ErrorAs(t, err, &fields)
	require.Contains(t, fields, "entry_date")
	require.Contains(t, fields, "meter_in")

	_, err = f.service.Create(ctx, auditor, Input{LocationID: 1, MachineID: 21, EntryDate: "2024-06-15"})
	require.ErrorAs(t, err, &fields)
	require.Equal(t, "does not exist", fields["machine_id"])

	_, err = f.service.Create(ctx, auditor, Input{LocationID: 2, MachineID: 21, EntryDate: "2024-06-15"})
	require.ErrorIs(t, err, mdshared.ErrOtherLocation)
}

func TestUpdateChecksStoredAndNewDate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// Stored date outside the window.
	_, err := f.service.Update(ctx, auditor, 2, Input{LocationID: 1, MachineID: 11, EntryDate: "2024-06-15", MeterIn: 1})
	require.ErrorIs(t, err, access.ErrForbidden)
	require.Equal(t, "2024-06-10", f.repo.rows[2].EntryDate)

	// New date outside the window.
	_, err = f.service.Update(ctx, auditor, 1, Input{LocationID: 1, MachineID: 11, EntryDate: "2024-06-01", MeterIn: 1})
	require.ErrorIs(t, err, access.ErrForbidden)
	require.Equal(t, "2024-06-14", f.repo.rows[1].EntryDate)

	e, err := f.service.Update(ctx, auditor, 1, Input{LocationID: 1, MachineID: 11, EntryDate: "2024-06-15", MeterIn: 150, MeterOut: 50})
	require.NoError(t, err)
	require.Equal(t, int64(100), e.Net)
	require.Equal(t, "2024-06-15", f.repo.rows[1].EntryDate)
}

func TestDeleteUsesStoredDate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.ErrorIs(t, f.service.Delete(ctx, auditor, 2), access.ErrForbidden)
	require.ErrorIs(t, f.service.Delete(ctx, auditor, 3), httpx.ErrNotFound)
	require.NoError(t, f.service.Delete(ctx, auditor, 1))
	require.NotContains(t, f.repo.rows, int64(1))
}

func TestListScopedToLocation(t *testing.T) {
	f := newFixture()
	entries, total, err := f.service.List(context.Background(), auditor, ListFilters{Page: 1, PerPage: 10})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	for _, e := range entries {
		require.Equal(t, int64(1), e.LocationID)
	}
}

func TestHandlerStatuses(t *testing.T) {
	f := newFixture()
	h := NewHandler(nil, f.service, f.mw)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(access.ContextWithPrincipal(req.Context(), auditor)))
		})
	})
	r.Route("/audits", h.MountRoutes)

	serve := func(method, path, body string) int {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(method, path, strings.NewReader(body)))
		return rr.Code
	}
	require.Equal(t, http.StatusCreated, serve(http.MethodPost, "/audits", `{"location_id":1,"machine_id":12,"entry_date":"2024-06-14","meter_in":5,"meter_out":2}`))
	require.Equal(t, http.StatusForbidden, serve(http.MethodPost, "/audits", `{"location_id":1,"machine_id":12,"entry_date":"2024-06-12","meter_in":5,"meter_out":2}`))
	require.Equal(t, http.StatusForbidden, serve(http.MethodDelete, "/audits/2", ""))
	require.Equal(t, http.StatusBadRequest, serve(http.MethodGet, "/audits?from=yesterday", ""))
	require.Equal(t, http.StatusOK, serve(http.MethodGet, "/audits?from=2024-06-01&to=2024-06-30", ""))
}

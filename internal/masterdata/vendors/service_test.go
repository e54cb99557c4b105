package vendors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tallyroom/tallyroom/internal/access"
	"github.com/tallyroom/tallyroom/internal/masterdata/shared"
	"github.com/tallyroom/tallyroom/internal/platform/httpx"
	internalShared "github.com/tallyroom/tallyroom/internal/shared"
)

type memoryRepo struct {
	rows   map[int64]Vendor
	nextID int64
	last   shared.ListFilters
}

func (m *memoryRepo) List(ctx context.Context, f shared.ListFilters) ([]Vendor, int, error) {
	m.last = f
	var out []Vendor
	for _, v := range m.rows {
		if f.LocationID == nil || v.LocationID == *f.LocationID {
			out = append(out, v)
		}
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (Vendor, error) {
	v, ok := m.rows[id]
	if !ok {
		return Vendor{}, shared.ErrNotFound
	}
	return v, nil
}

func (m *memoryRepo) Create(ctx context.Context, v Vendor) (Vendor, error) {
	m.nextID++
	v.ID = m.nextID
	m.rows[v.ID] = v
	return v, nil
}

func (m *memoryRepo) Update(ctx context.Context, v Vendor) (Vendor, error) {
	m.rows[v.ID] = v
	return v, nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	delete(m.rows, id)
	return nil
}

type activityLog struct{ entries []internalShared.Activity }

func (a *activityLog) Record(ctx context.Context, e internalShared.Activity) error {
	a.entries = append(a.entries, e)
	return nil
}

func ptr(v int64) *int64 { return &v }

func newService() (*memoryRepo, *activityLog, *Service) {
	repo := &memoryRepo{rows: map[int64]Vendor{
		1: {ID: 1, LocationID: 1, Code: "ACME", Name: "Acme", IsActive: true},
		2: {ID: 2, LocationID: 2, Code: "GLOBEX", Name: "Globex", IsActive: true},
	}, nextID: 2}
	log := &activityLog{}
	return repo, log, NewService(repo, log, nil)
}

func TestVendorListScopedToLocation(t *testing.T) {
	repo, _, svc := newService()
	manager := access.Principal{UserID: 5, Role: access.RoleManager, LocationID: ptr(1)}

	items, total, err := svc.List(context.Background(), manager, shared.ListFilters{Page: 1, Limit: 10, LocationID: ptr(2)})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "ACME", items[0].Code)
	require.Equal(t, int64(1), *repo.last.LocationID)

	_, err = svc.Get(context.Background(), manager, 2)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestVendorCreate(t *testing.T) {
	_, log, svc := newService()
	manager := access.Principal{UserID: 5, Role: access.RoleManager, LocationID: ptr(1)}
	ctx := context.Background()

	v, err := svc.Create(ctx, manager, Input{LocationID: 1, Code: "initech", Name: " Initech  Ltd", Email: " Ops@Initech.test "})
	require.NoError(t, err)
	require.Equal(t, "INITECH", v.Code)
	require.Equal(t, "Initech Ltd", v.Name)
	require.Equal(t, "ops@initech.test", v.Email)
	require.True(t, v.IsActive)
	require.Len(t, log.entries, 1)

	_, err = svc.Create(ctx, manager, Input{LocationID: 2, Code: "x", Name: "X"})
	require.ErrorIs(t, err, shared.ErrOtherLocation)

	_, err = svc.Create(ctx, manager, Input{Code: "x", Name: "X", Email: "not-mail"})
	var fields httpx.FieldErrors
	require.ErrorAs(t, err, &fields)
	require.Contains(t, fields, "location_id")
	require.Contains(t, fields, "email")
}

func TestVendorUpdateCannotMoveAcrossLocations(t *testing.T) {
	repo, _, svc := newService()
	admin := access.Principal{UserID: 6, Role: access.RoleLocationAdmin, LocationID: ptr(1)}
	ctx := context.Background()

	_, err := svc.Update(ctx, admin, 1, Input{LocationID: 2, Code: "ACME", Name: "Acme"})
	require.ErrorIs(t, err, shared.ErrOtherLocation)
	require.Equal(t, int64(1), repo.rows[1].LocationID)

	inactive := false
	v, err := svc.Update(ctx, admin, 1, Input{LocationID: 1, Code: "ACME", Name: "Acme Corp", IsActive: &inactive})
	require.NoError(t, err)
	require.False(t, v.IsActive)

	require.ErrorIs(t, svc.Delete(ctx, admin, 2), httpx.ErrNotFound)
	require.NoError(t, svc.Delete(ctx, admin, 1))
	require.Empty(t, repo.rows[1].Code)
}

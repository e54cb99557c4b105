package users

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tallyroom/tallyroom/internal/access"
	"github.com/tallyroom/tallyroom/internal/platform/httpx"
	"github.com/tallyroom/tallyroom/internal/shared"
	"github.com/tallyroom/tallyroom/jobs"
)

type memoryRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]User
}

func newMemoryRepo(seed ...User) *memoryRepo {
	repo := &memoryRepo{users: map[int64]User{}}
	for _, u := range seed {
		if u.ID > repo.nextID {
			repo.nextID = u.ID
		}
		repo.users[u.ID] = u
	}
	return repo
}

func (m *memoryRepo) List(ctx context.Context, locationID *int64, page shared.PageRequest) ([]User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []User
	for _, u := range m.users {
		if locationID != nil && (u.LocationID == nil || *u.LocationID != *locationID) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (m *memoryRepo) Create(ctx context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return User{}, ErrEmailTaken
		}
	}
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now()
	m.users[u.ID] = u
	return u, nil
}

func (m *memoryRepo) Update(ctx context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return User{}, ErrUserNotFound
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memoryRepo) SetPassword(ctx context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = hash
	m.users[id] = u
	return nil
}

type activityLog struct {
	entries []shared.Activity
}

func (a *activityLog) Record(ctx context.Context, entry shared.Activity) error {
	a.entries = append(a.entries, entry)
	return nil
}

type mailQueue struct {
	sent []jobs.SendEmailPayload
	err  error
}

func (q *mailQueue) EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) error {
	if q.err != nil {
		return q.err
	}
	q.sent = append(q.sent, payload)
	return nil
}

type invalidations struct {
	ids []int64
}

func (i *invalidations) Invalidate(ctx context.Context, userID int64) error {
	i.ids = append(i.ids, userID)
	return nil
}

type fixture struct {
	repo     *memoryRepo
	activity *activityLog
	mail     *mailQueue
	cache    *invalidations
	service  *Service
}

func ptr(v int64) *int64 { return &v }

func hashOf(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func newFixture(t *testing.T, seed ...User) fixture {
	t.Helper()
	now := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	f := fixture{
		repo:     newMemoryRepo(seed...),
		activity: &activityLog{},
		mail:     &mailQueue{},
		cache:    &invalidations{},
	}
	f.service = NewService(Deps{
		Repo:                f.repo,
		Authz:               access.Middleware{Policy: access.NewPolicy(access.ClockFunc(func() time.Time { return now }), time.UTC)},
		Activity:            f.activity,
		Mail:                f.mail,
		Cache:               f.cache,
		ResetPasswordLength: 14,
		BcryptCost:          bcrypt.MinCost,
	})
	return f
}

var (
	superAdmin = access.Principal{UserID: 1, Role: access.RoleSuperAdmin}
	locAdmin   = access.Principal{UserID: 2, Role: access.RoleLocationAdmin, LocationID: ptr(10)}
	manager    = access.Principal{UserID: 3, Role: access.RoleManager, LocationID: ptr(10)}
	mspAgent   = access.Principal{UserID: 4, Role: access.RoleMSP, LocationID: ptr(10)}
)

func seedUsers(t *testing.T) []User {
	return []User{
		{ID: 1, Email: "root@tally.test", Name: "Root", Role: access.RoleSuperAdmin, IsActive: true, PasswordHash: hashOf(t, "rootpass1")},
		{ID: 2, Email: "admin@tally.test", Name: "Admin", Role: access.RoleLocationAdmin, LocationID: ptr(10), IsActive: true},
		{ID: 3, Email: "manager@tally.test", Name: "Manager", Role: access.RoleManager, LocationID: ptr(10), IsActive: true, PasswordHash: hashOf(t, "managerpass")},
		{ID: 4, Email: "msp@tally.test", Name: "Msp", Role: access.RoleMSP, LocationID: ptr(10), IsActive: true},
		{ID: 5, Email: "far@tally.test", Name: "Far", Role: access.RoleAudit, LocationID: ptr(20), IsActive: true},
	}
}

func TestCreateBySuperAdmin(t *testing.T) {
	f := newFixture(t, seedUsers(t)...)
	u, err := f.service.Create(context.Background(), superAdmin, CreateInput{
		Email: " New.Admin@Tally.test ", Name: "New Admin", Role: "LocationAdmin", LocationID: ptr(20), Password: "s3cretpass",
	})
	require.NoError(t, err)
	require.Equal(t, "new.admin@tally.test", u.Email)
	require.Equal(t, access.RoleLocationAdmin, u.Role)
	require.True(t, u.IsActive)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cretpass")))

	require.Len(t, f.activity.entries, 1)
	entry := f.activity.entries[0]
	require.Equal(t, shared.ActionCreate, entry.Action)
	require.Equal(t, int64(1), entry.ActorID)
	require.Equal(t, "user", entry.Entity)
}

func TestCreateEscalationGuard(t *testing.T) {
	f := newFixture(t, seedUsers(t)...)
	ctx := context.Background()

	_, err := f.service.Create(ctx, locAdmin, CreateInput{Email: "x@tally.test", Name: "X", Role: "LocationAdmin", LocationID: ptr(10), Password: "password1"})
	require.ErrorIs(t, err, ErrEscalation)

	_, err = f.service.Create(ctx, manager, CreateInput{Email: "y@tally.test", Name: "Y", Role: "SuperAdmin", Password: "password1"})
	require.ErrorIs(t, err, ErrEscalation)

	_, err = f.service.Create(ctx, manager, CreateInput{Email: "z@tally.test", Name: "Z", Role: "MSP", LocationID: ptr(20), Password: "password1"})
	require.ErrorIs(t, err, ErrOutsideLocation)
	require.ErrorIs(t, err, httpx.ErrForbidden)

	u, err := f.service.Create(ctx, manager, CreateInput{Email: "w@tally.test", Name: "W", Role: "MSP", LocationID: ptr(10), Password: "password1"})
	require.NoError(t, err)
	require.Equal(t, access.RoleMSP, u.Role)
}

func TestCreateRequiresUsersEditRight(t *testing.T) {
	f := newFixture(t, seedUsers(t)...)
	_, err := f.service.Create(context.Background(), mspAgent, CreateInput{Email: "q@tally.test", Name: "Q", Role: "MSP", LocationID: ptr(10), Password: "password1"})
	require.ErrorIs(t, err, access.ErrForbidden)
	require.Empty(t, f.activity.entries)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, seedUsers(t)...)
	ctx := context.Background()

	_, err := f.service.Create(ctx, superAdmin, CreateInput{Email: "bad", Name: "", Role: "MSP", Password: "short"})
	var fields httpx.FieldErrors
	require.ErrorAs(t, err, &fields)
	require.Contains(t, fields, "email")
	require.Contains(t, fields, "name")
	require.Contains(t, fields, "password")

	_, err = f.service.Create(ctx, superAdmin, CreateInput{Email: "a@tally.test", Name: "A", Role: "Intern", LocationID: ptr(10), Password: "password1"})
	require.ErrorAs(t, err, &fields)
	require.Contains(t, fields, "role")

	_, err = f.service.Create(ctx, superAdmin, CreateInput{Email: "a@tally.test", Name: "A", Role: "Audit", Password: "password1"})
	require.ErrorAs(t, err, &fields)
	require.Contains(t, fields, "location_id")

	_, err = f.service.Create(ctx, superAdmin, CreateInput{Email: "msp@tally.test", Name: "Dup", Role: "MSP", LocationID: ptr(10), Password: "password1"})
	require.ErrorIs(t, err, ErrEmailTaken)
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestUpdateUser(t *testing.T) {
	f := newFixture(t, seedUsers(t)...)
	ctx := context.Background()

	name := "Renamed"
	role := "Silver"
	inactive := false
	u, err := f.service.Update(ctx, manager, 4, UpdateInput{Name: &name, Role: &role, IsActive: &inactive})
	require.NoError(t, err)
	require.Equal(t, "Renamed", u.Name)
	require.Equal(t, access.RoleSilver, u.Role)
	require.False(t, u.IsActive)
	require.Equal(t, []int64{4}, f.cache.ids)
	require.Equal(t, map[string]any{"name": "Renamed", "role": "Silver", "is_active": false}, f.activity.entries[0].Meta)

	promote := "LocationAdmin"
	_, err = f.service.Update(ctx, manager, 4, UpdateInput{Role: &promote})
	require.ErrorIs(t, err, ErrEscalation)

	_, err = f.service.Update(ctx, manager, 2, UpdateInput{Name: &name})
	require.ErrorIs(t, err, ErrEscalation)

	// Users of other locations are invisible to a Manager.
	_, err = f.service.Update(ctx, manager, 5, UpdateInput{Name: &name})
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestBlankNamesRejected(t *testing.T) {
	f := newFixture(t, seedUsers(t)...)
	ctx := context.Background()
	var fields httpx.FieldErrors

	_, err := f.service.Create(ctx, superAdmin, CreateInput{Email: "blank@tally.test", Name: "   ", Role: "MSP", LocationID: ptr(10), Password: "password1"})
	require.ErrorAs(t, err, &fields)
	require.Contains(t, fields, "name")

	blank := " \t "
	_, err = f.service.Update(ctx, manager, 4, UpdateInput{Name: &blank})
	require.ErrorAs(t, err, &fields)
	require.Contains(t, fields, "name")
	u, err := f.repo.Get(ctx, 4)
	require.NoError(t, err)
	require.NotEmpty(t, u.Name)

	padded := "  Spaced Out  "
	u, err = f.service.Update(ctx, manager, 4, UpdateInput{Name: &padded})
	require.NoError(t, err)
	require.Equal(t, "Spaced Out", u.Name)
}

func TestUpdateSelfGuards(t *testing.T) {
	f := newFixture(t, seedUsers(t)...)
	ctx := context.Background()
	role := "Audit"
	_, err := f.service.Update(ctx, manager, 3, UpdateInput{Role: &role})
	var fields httpx.FieldErrors
	require.ErrorAs(t, err, &fields)
	require.Contains(t, fields, "role")

	inactive := false
	_, err = f.service.Update(ctx, superAdmin, 1, UpdateInput{IsActive: &inactive})
	require.ErrorAs(t, err, &fields)
	require.Contains(t, fields, "is_active")
}

func TestDeleteUser(t *testing.T) {
	f := newFixture(t, seedUsers(t)...)
	ctx := context.Background()

	err := f.service.Delete(ctx, manager, 3)
	require.ErrorIs(t, err, httpx.ErrValidation)

	require.NoError(t, f.service.Delete(ctx, manager, 4))
	_, err = f.repo.Get(ctx, 4)
	require.ErrorIs(t, err, ErrUserNotFound)
	require.Equal(t, shared.ActionDelete, f.activity.entries[0].Action)
	require.Equal(t, "4", f.activity.entries[0].EntityID)

	require.ErrorIs(t, f.service.Delete(ctx, superAdmin, 99), httpx.ErrNotFound)
}

func TestUpdatePassword(t *testing.T) {
	f := newFixture(t, seedUsers(t)...)
	ctx := context.Background()

	err := f.service.UpdatePassword(ctx, manager, PasswordInput{Current: "wrongpass", New: "brandnew1"})
	var fields httpx.FieldErrors
	require.ErrorAs(t, err, &fields)
	require.Contains(t, fields, "current_password")

	err = f.service.UpdatePassword(ctx, manager, PasswordInput{Current: "managerpass", New: "managerpass"})
	require.ErrorAs(t, err, &fields)
	require.Contains(t, fields, "new_password")

	require.NoError(t, f.service.UpdatePassword(ctx, manager, PasswordInput{Current: "managerpass", New: "brandnew1"}))
	stored, _ := f.repo.Get(ctx, 3)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("brandnew1")))
	require.Equal(t, shared.ActionPasswordSet, f.activity.entries[0].Action)
}

func TestResetPasswordEmailsTemporaryPassword(t *testing.T) {
	f := newFixture(t, seedUsers(t)...)
	ctx := context.Background()

	result, err := f.service.ResetPassword(ctx, superAdmin, 5)
	require.NoError(t, err)
	require.True(t, result.Emailed)
	require.Empty(t, result.TemporaryPassword)
	require.Len(t, f.mail.sent, 1)
	require.Equal(t, "far@tally.test", f.mail.sent[0].To)
	require.Equal(t, shared.ActionPasswordReset, f.activity.entries[0].Action)

	_, err = f.service.ResetPassword(ctx, superAdmin, 1)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestResetPasswordFallsBackWhenQueueFails(t *testing.T) {
	f := newFixture(t, seedUsers(t)...)
	f.mail.err = errors.New("redis down")
	result, err := f.service.ResetPassword(context.Background(), locAdmin, 4)
	require.NoError(t, err)
	require.False(t, result.Emailed)
	require.Len(t, result.TemporaryPassword, 14)

	stored, _ := f.repo.Get(context.Background(), 4)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(result.TemporaryPassword)))
}

func TestLoadPrincipal(t *testing.T) {
	users := seedUsers(t)
	users[3].IsActive = false
	f := newFixture(t, users...)
	ctx := context.Background()

	p, err := f.service.LoadPrincipal(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, access.RoleManager, p.Role)
	require.Equal(t, int64(10), *p.LocationID)

	_, err = f.service.LoadPrincipal(ctx, 4)
	require.ErrorIs(t, err, httpx.ErrNotFound)
	_, err = f.service.LoadPrincipal(ctx, 404)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestListIsLocationScoped(t *testing.T) {
	f := newFixture(t, seedUsers(t)...)
	ctx := context.Background()
	page := shared.PageRequest{Page: 1, PerPage: 25}

	all, total, err := f.service.List(ctx, superAdmin, page)
	require.NoError(t, err)
	require.Equal(t, 5, total)
	require.Len(t, all, 5)

	scoped, _, err := f.service.List(ctx, manager, page)
	require.NoError(t, err)
	require.Len(t, scoped, 3)

	none, _, err := f.service.List(ctx, access.Principal{UserID: 9, Role: access.RoleManager}, page)
	require.NoError(t, err)
	require.Empty(t, none)
}

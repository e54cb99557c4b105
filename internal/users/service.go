package users

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/tallyroom/tallyroom/internal/access"
	"github.com/tallyroom/tallyroom/internal/platform/httpx"
	"github.com/tallyroom/tallyroom/internal/shared"
	"github.com/tallyroom/tallyroom/jobs"
)

const (
	entityUser           = "user"
	minResetLength       = 10
	resetPasswordCharset = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"
)

var (
	// ErrEscalation is returned when a non-SuperAdmin touches an admin account
	// or tries to grant an admin role.
	ErrEscalation = fmt.Errorf("only a SuperAdmin may manage admin accounts: %w", httpx.ErrForbidden)
	// ErrOutsideLocation is returned when the target user belongs to another location.
	ErrOutsideLocation = fmt.Errorf("user belongs to another location: %w", httpx.ErrForbidden)
)

// MailQueue enqueues outbound email.
type MailQueue interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) error
}

// PrincipalCache drops cached principals after role or location changes.
type PrincipalCache interface {
	Invalidate(ctx context.Context, userID int64) error
}

// Deps groups the collaborators of Service.
type Deps struct {
	Repo                Repository
	Authz               access.Authorizer
	Activity            shared.ActivityRecorder
	Mail                MailQueue
	Cache               PrincipalCache
	Logger              *slog.Logger
	ResetPasswordLength int
	BcryptCost          int
}

// Service handles the privileged user operations.
type Service struct {
	repo        Repository
	authz       access.Authorizer
	activity    shared.ActivityRecorder
	mail        MailQueue
	cache       PrincipalCache
	logger      *slog.Logger
	validate    *validator.Validate
	resetLength int
	cost        int
}

// NewService builds Service instance.
func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	length := d.ResetPasswordLength
	if length < minResetLength {
		length = minResetLength
	}
	cost := d.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{
		repo:        d.Repo,
		authz:       d.Authz,
		activity:    d.Activity,
		mail:        d.Mail,
		cache:       d.Cache,
		logger:      logger,
		validate:    httpx.NewValidator(),
		resetLength: length,
		cost:        cost,
	}
}

// Loader implements access.PrincipalLoader on top of a Repository.
type Loader struct {
	repo Repository
}

// NewLoader returns a Loader reading from repo.
func NewLoader(repo Repository) Loader {
	return Loader{repo: repo}
}

// LoadPrincipal resolves userID. Inactive accounts resolve as not found so
// their sessions become anonymous.
func (l Loader) LoadPrincipal(ctx context.Context, userID int64) (access.Principal, error) {
	u, err := l.repo.Get(ctx, userID)
	if err != nil {
		return access.Principal{}, err
	}
	if !u.IsActive {
		return access.Principal{}, ErrUserNotFound
	}
	return u.Principal(), nil
}

var _ access.PrincipalLoader = Loader{}

// LoadPrincipal implements access.PrincipalLoader.
func (s *Service) LoadPrincipal(ctx context.Context, userID int64) (access.Principal, error) {
	return NewLoader(s.repo).LoadPrincipal(ctx, userID)
}

// List returns users visible to actor.
func (s *Service) List(ctx context.Context, actor access.Principal, page shared.PageRequest) ([]User, int, error) {
	return s.repo.List(ctx, actor.ScopeLocation(), page)
}

// Get returns one user if actor may see it.
func (s *Service) Get(ctx context.Context, actor access.Principal, id int64) (User, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !visible(actor, u) {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

// Create adds a new account.
func (s *Service) Create(ctx context.Context, actor access.Principal, in CreateInput) (User, error) {
	if err := s.authz.Authorize(actor, access.ModuleUsers, ""); err != nil {
		return User{}, err
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := httpx.Validate(s.validate, in); err != nil {
		return User{}, err
	}
	role, ok := access.ParseRole(in.Role)
	if !ok {
		return User{}, httpx.FieldErrors{"role": "is not a known role"}
	}
	u := User{
		Email:      in.Email,
		Name:       in.Name,
		Role:       role,
		LocationID: in.LocationID,
		IsActive:   true,
	}
	if err := checkAssignment(u); err != nil {
		return User{}, err
	}
	if err := canManage(actor, u); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return User{}, err
	}
	u.PasswordHash = string(hash)
	created, err := s.repo.Create(ctx, u)
	if err != nil {
		return User{}, err
	}
	s.record(ctx, actor, shared.ActionCreate, created.ID, map[string]any{
		"email":       created.Email,
		"role":        created.Role.String(),
		"location_id": created.LocationID,
	})
	return created, nil
}

// Update changes name, role, location or active flag.
func (s *Service) Update(ctx context.Context, actor access.Principal, id int64, in UpdateInput) (User, error) {
	if err := s.authz.Authorize(actor, access.ModuleUsers, ""); err != nil {
		return User{}, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if err := httpx.Validate(s.validate, in); err != nil {
		return User{}, err
	}
	current, err := s.Get(ctx, actor, id)
	if err != nil {
		return User{}, err
	}
	if err := canManage(actor, current); err != nil {
		return User{}, err
	}

	next := current
	if in.Name != nil {
		next.Name = *in.Name
	}
	if in.Role != nil {
		role, ok := access.ParseRole(*in.Role)
		if !ok {
			return User{}, httpx.FieldErrors{"role": "is not a known role"}
		}
		next.Role = role
	}
	if in.LocationID != nil {
		next.LocationID = in.LocationID
	}
	if in.IsActive != nil {
		next.IsActive = *in.IsActive
	}
	if id == actor.UserID {
		if next.Role != current.Role {
			return User{}, httpx.FieldErrors{"role": "cannot change your own role"}
		}
		if !next.IsActive {
			return User{}, httpx.FieldErrors{"is_active": "cannot deactivate your own account"}
		}
	}
	if err := checkAssignment(next); err != nil {
		return User{}, err
	}
	if err := canManage(actor, next); err != nil {
		return User{}, err
	}

	updated, err := s.repo.Update(ctx, next)
	if err != nil {
		return User{}, err
	}
	s.invalidate(ctx, id)
	s.record(ctx, actor, shared.ActionUpdate, id, changes(current, updated))
	return updated, nil
}

// Delete removes an account other than the actor's own.
func (s *Service) Delete(ctx context.Context, actor access.Principal, id int64) error {
	if err := s.authz.Authorize(actor, access.ModuleUsers, ""); err != nil {
		return err
	}
	if id == actor.UserID {
		return httpx.FieldErrors{"id": "cannot delete your own account"}
	}
	target, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := canManage(actor, target); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	s.record(ctx, actor, shared.ActionDelete, id, map[string]any{"email": target.Email})
	return nil
}

// UpdatePassword changes the actor's own password.
func (s *Service) UpdatePassword(ctx context.Context, actor access.Principal, in PasswordInput) error {
	if err := httpx.Validate(s.validate, in); err != nil {
		return err
	}
	u, err := s.repo.Get(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Current)); err != nil {
		return httpx.FieldErrors{"current_password": "is incorrect"}
	}
	if in.New == in.Current {
		return httpx.FieldErrors{"new_password": "must differ from the current password"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.New), s.cost)
	if err != nil {
		return err
	}
	if err := s.repo.SetPassword(ctx, u.ID, string(hash)); err != nil {
		return err
	}
	s.record(ctx, actor, shared.ActionPasswordSet, u.ID, nil)
	return nil
}

// ResetPassword assigns a random temporary password to another user and
// emails it to them.
func (s *Service) ResetPassword(ctx context.Context, actor access.Principal, id int64) (ResetResult, error) {
	if err := s.authz.Authorize(actor, access.ModuleUsers, ""); err != nil {
		return ResetResult{}, err
	}
	if id == actor.UserID {
		return ResetResult{}, httpx.FieldErrors{"id": "use the password form to change your own password"}
	}
	target, err := s.Get(ctx, actor, id)
	if err != nil {
		return ResetResult{}, err
	}
	if err := canManage(actor, target); err != nil {
		return ResetResult{}, err
	}
	temp, err := randomPassword(s.resetLength)
	if err != nil {
		return ResetResult{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(temp), s.cost)
	if err != nil {
		return ResetResult{}, err
	}
	if err := s.repo.SetPassword(ctx, id, string(hash)); err != nil {
		return ResetResult{}, err
	}
	s.record(ctx, actor, shared.ActionPasswordReset, id, nil)

	result := ResetResult{UserID: id}
	if s.mail != nil {
		err := s.mail.EnqueueSendEmail(ctx, jobs.SendEmailPayload{
			To:      target.Email,
			Subject: "Your password was reset",
			Body:    fmt.Sprintf("Hello %s,\n\nYour temporary password is: %s\nPlease change it after signing in.\n", target.Name, temp),
		})
		if err == nil {
			result.Emailed = true
			return result, nil
		}
		s.logger.Warn("enqueue reset email", slog.Int64("user_id", id), slog.Any("error", err))
	}
	result.TemporaryPassword = temp
	return result, nil
}

func (s *Service) record(ctx context.Context, actor access.Principal, action string, id int64, meta map[string]any) {
	shared.RecordActivity(ctx, s.activity, s.logger, shared.Activity{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   entityUser,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}

func (s *Service) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.Warn("invalidate principal", slog.Int64("user_id", id), slog.Any("error", err))
	}
}

// checkAssignment enforces that every role below SuperAdmin is tied to a location.
func checkAssignment(u User) error {
	if !u.Role.Valid() {
		return httpx.FieldErrors{"role": "is not a known role"}
	}
	if u.Role != access.RoleSuperAdmin && u.LocationID == nil {
		return httpx.FieldErrors{"location_id": "is required for this role"}
	}
	return nil
}

// canManage applies the escalation guard for a target account.
func canManage(actor access.Principal, target User) error {
	if actor.IsSuperAdmin() {
		return nil
	}
	if target.Role == access.RoleSuperAdmin || target.Role == access.RoleLocationAdmin {
		return ErrEscalation
	}
	if target.LocationID == nil || !actor.CanAccessLocation(*target.LocationID) {
		return ErrOutsideLocation
	}
	return nil
}

func visible(actor access.Principal, u User) bool {
	if actor.IsSuperAdmin() || u.ID == actor.UserID {
		return true
	}
	return u.LocationID != nil && actor.CanAccessLocation(*u.LocationID)
}

func changes(before, after User) map[string]any {
	out := map[string]any{}
	if before.Name != after.Name {
		out["name"] = after.Name
	}
	if before.Role != after.Role {
		out["role"] = after.Role.String()
	}
	if !sameLocation(before.LocationID, after.LocationID) {
		out["location_id"] = after.LocationID
	}
	if before.IsActive != after.IsActive {
		out["is_active"] = after.IsActive
	}
	return out
}

func sameLocation(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func randomPassword(n int) (string, error) {
	limit := big.NewInt(int64(len(resetPasswordCharset)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		buf[i] = resetPasswordCharset[idx.Int64()]
	}
	return string(buf), nil
}

var _ access.PrincipalLoader = (*Service)(nil)

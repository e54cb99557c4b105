package locations

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/tallyroom/tallyroom/internal/access"
	"github.com/tallyroom/tallyroom/internal/masterdata/shared"
	"github.com/tallyroom/tallyroom/internal/platform/httpx"
	internalShared "github.com/tallyroom/tallyroom/internal/shared"
)

const entity = "location"

type Service struct {
	repo     Repository
	activity internalShared.ActivityRecorder
	logger   *slog.Logger
	validate *validator.Validate
}

func NewService(repo Repository, activity internalShared.ActivityRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, activity: activity, logger: logger, validate: httpx.NewValidator()}
}

// List returns the locations the actor can reach.
func (s *Service) List(ctx context.Context, actor access.Principal, filters shared.ListFilters) ([]Location, int, error) {
	return s.repo.List(ctx, shared.ScopeFilters(actor, filters))
}

// Get hides locations outside the actor's reach as not found.
func (s *Service) Get(ctx context.Context, actor access.Principal, id int64) (Location, error) {
	if !actor.CanAccessLocation(id) {
		return Location{}, shared.ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// Create opens a new location. Only SuperAdmin may add locations.
func (s *Service) Create(ctx context.Context, actor access.Principal, in Input) (Location, error) {
	if !actor.IsSuperAdmin() {
		return Location{}, shared.ErrSuperAdminOnly
	}
	loc, err := s.build(in, Location{IsActive: true})
	if err != nil {
		return Location{}, err
	}
	created, err := s.repo.Create(ctx, loc)
	if err != nil {
		return Location{}, err
	}
	s.record(ctx, actor, internalShared.ActionCreate, created.ID, map[string]any{"code": created.Code})
	return created, nil
}

func (s *Service) Update(ctx context.Context, actor access.Principal, id int64, in Input) (Location, error) {
	if !actor.CanAccessLocation(id) {
		return Location{}, shared.ErrOtherLocation
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Location{}, err
	}
	loc, err := s.build(in, current)
	if err != nil {
		return Location{}, err
	}
	updated, err := s.repo.Update(ctx, loc)
	if err != nil {
		return Location{}, err
	}
	s.record(ctx, actor, internalShared.ActionUpdate, id, map[string]any{"code": updated.Code, "is_active": updated.IsActive})
	return updated, nil
}

// Delete removes a location. Only SuperAdmin may remove locations.
func (s *Service) Delete(ctx context.Context, actor access.Principal, id int64) error {
	if !actor.IsSuperAdmin() {
		return shared.ErrSuperAdminOnly
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, internalShared.ActionDelete, id, nil)
	return nil
}

func (s *Service) build(in Input, base Location) (Location, error) {
	in.Code = shared.NormalizeCode(in.Code)
	in.Name = shared.NormalizeName(in.Name)
	in.Address = shared.NormalizeName(in.Address)
	if err := httpx.Validate(s.validate, in); err != nil {
		return Location{}, err
	}
	base.Code, base.Name, base.Address = in.Code, in.Name, in.Address
	if in.IsActive != nil {
		base.IsActive = *in.IsActive
	}
	return base, nil
}

func (s *Service) record(ctx context.Context, actor access.Principal, action string, id int64, meta map[string]any) {
	internalShared.RecordActivity(ctx, s.activity, s.logger, internalShared.Activity{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}

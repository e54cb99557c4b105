package vendors

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

const entity = "vendor"

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

func (s *Service) List(ctx context.Context, actor access.Principal, filters shared.ListFilters) ([]Vendor, int, error) {
	return s.repo.List(ctx, shared.ScopeFilters(actor, filters))
}

// Get returns a vendor of a location the actor can reach.
func (s *Service) Get(ctx context.Context, actor access.Principal, id int64) (Vendor, error) {
	v, err := s.repo.Get(ctx, id)
	if err != nil {
		return Vendor{}, err
	}
	if !actor.CanAccessLocation(v.LocationID) {
		return Vendor{}, shared.ErrNotFound
	}
	return v, nil
}

func (s *Service) Create(ctx context.Context, actor access.Principal, in Input) (Vendor, error) {
	v, err := s.build(in, Vendor{IsActive: true})
	if err != nil {
		return Vendor{}, err
	}
	if !actor.CanAccessLocation(v.LocationID) {
		return Vendor{}, shared.ErrOtherLocation
	}
	created, err := s.repo.Create(ctx, v)
	if err != nil {
		return Vendor{}, err
	}
	s.record(ctx, actor, internalShared.ActionCreate, created.ID, map[string]any{"code": created.Code, "location_id": created.LocationID})
	return created, nil
}

func (s *Service) Update(ctx context.Context, actor access.Principal, id int64, in Input) (Vendor, error) {
	current, err := s.Get(ctx, actor, id)
	if err != nil {
		return Vendor{}, err
	}
	v, err := s.build(in, current)
	if err != nil {
		return Vendor{}, err
	}
	if !actor.CanAccessLocation(v.LocationID) {
		return Vendor{}, shared.ErrOtherLocation
	}
	updated, err := s.repo.Update(ctx, v)
	if err != nil {
		return Vendor{}, err
	}
	s.record(ctx, actor, internalShared.ActionUpdate, id, map[string]any{"code": updated.Code, "is_active": updated.IsActive})
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, actor access.Principal, id int64) error {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, internalShared.ActionDelete, id, nil)
	return nil
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

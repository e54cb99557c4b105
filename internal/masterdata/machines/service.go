package machines

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/tallyroom/tallyroom/internal/access"
	"github.com/tallyroom/tallyroom/internal/masterdata/shared"
	"github.com/tallyroom/tallyroom/internal/masterdata/vendors"
	"github.com/tallyroom/tallyroom/internal/platform/httpx"
	internalShared "github.com/tallyroom/tallyroom/internal/shared"
)

const entity = "machine"

// VendorLookup resolves the vendor a machine is assigned to.
type VendorLookup interface {
	Get(ctx context.Context, actor access.Principal, id int64) (vendors.Vendor, error)
}

type Service struct {
	repo     Repository
	vendors  VendorLookup
	activity internalShared.ActivityRecorder
	logger   *slog.Logger
	validate *validator.Validate
}

func NewService(repo Repository, vendors VendorLookup, activity internalShared.ActivityRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, vendors: vendors, activity: activity, logger: logger, validate: httpx.NewValidator()}
}

func (s *Service) List(ctx context.Context, actor access.Principal, filters shared.ListFilters) ([]Machine, int, error) {
	return s.repo.List(ctx, shared.ScopeFilters(actor, filters))
}

func (s *Service) Get(ctx context.Context, actor access.Principal, id int64) (Machine, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return Machine{}, err
	}
	if !actor.CanAccessLocation(m.LocationID) {
		return Machine{}, shared.ErrNotFound
	}
	return m, nil
}

func (s *Service) Create(ctx context.Context, actor access.Principal, in Input) (Machine, error) {
	m, err := s.build(ctx, actor, in, Machine{IsActive: true})
	if err != nil {
		return Machine{}, err
	}
	created, err := s.repo.Create(ctx, m)
	if err != nil {
		return Machine{}, err
	}
	s.record(ctx, actor, internalShared.ActionCreate, created.ID, map[string]any{"asset_tag": created.AssetTag, "vendor_id": created.VendorID})
	return created, nil
}

func (s *Service) Update(ctx context.Context, actor access.Principal, id int64, in Input) (Machine, error) {
	current, err := s.Get(ctx, actor, id)
	if err != nil {
		return Machine{}, err
	}
	m, err := s.build(ctx, actor, in, current)
	if err != nil {
		return Machine{}, err
	}
	updated, err := s.repo.Update(ctx, m)
	if err != nil {
		return Machine{}, err
	}
	s.record(ctx, actor, internalShared.ActionUpdate, id, map[string]any{"asset_tag": updated.AssetTag, "is_active": updated.IsActive})
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

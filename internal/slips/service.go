package slips

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tallyroom/tallyroom/internal/access"
	mdshared "github.com/tallyroom/tallyroom/internal/masterdata/shared"
	"github.com/tallyroom/tallyroom/internal/platform/httpx"
	"github.com/tallyroom/tallyroom/internal/shared"
)

const (
	entity            = "slip"
	idempotencyModule = "slips"
)

// Service applies the slip rules: the slip kind picks the module and the slip
// date decides who may edit.
type Service struct {
	repo        Repository
	authz       access.Authorizer
	idempotency shared.IdempotencyGuard
	activity    shared.ActivityRecorder
	logger      *slog.Logger
	validate    *validator.Validate
}

// NewService wires a Service. idempotency may be nil, in which case keys are
// ignored.
func NewService(repo Repository, authz access.Authorizer, idempotency shared.IdempotencyGuard, activity shared.ActivityRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, authz: authz, idempotency: idempotency, activity: activity, logger: logger, validate: httpx.NewValidator()}
}

// List returns slips within the actor's location.
func (s *Service) List(ctx context.Context, actor access.Principal, f ListFilters) ([]Slip, int, error) {
	if scope := actor.ScopeLocation(); scope != nil {
		f.LocationID = scope
	}
	return s.repo.List(ctx, f)
}

// Get returns one slip if the actor can reach its location.
func (s *Service) Get(ctx context.Context, actor access.Principal, id int64) (Slip, error) {
	slip, err := s.repo.Get(ctx, id)
	if err != nil {
		return Slip{}, err
	}
	if !actor.CanAccessLocation(slip.LocationID) {
		return Slip{}, ErrSlipNotFound
	}
	return slip, nil
}

// Create issues a numbered slip. A non-empty key makes the call idempotent:
// a repeated key fails with a conflict, and a failed creation releases it.
func (s *Service) Create(ctx context.Context, actor access.Principal, in CreateInput, key string) (Slip, error) {
	if err := httpx.Validate(s.validate, in); err != nil {
		return Slip{}, err
	}
	kind, _ := ParseKind(in.Kind)
	if err := s.authz.Authorize(actor, kind.Module(), in.SlipDate); err != nil {
		return Slip{}, err
	}
	if !actor.CanAccessLocation(in.LocationID) {
		return Slip{}, mdshared.ErrOtherLocation
	}

	key = strings.TrimSpace(key)
	if key != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			return Slip{}, err
		}
	}
	created, err := s.repo.Create(ctx, Slip{
		Kind:        kind,
		LocationID:  in.LocationID,
		SlipDate:    in.SlipDate,
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
		Reference:   strings.TrimSpace(in.Reference),
		CreatedBy:   actor.UserID,
	})
	if err != nil {
		if key != "" && s.idempotency != nil {
			if derr := s.idempotency.Delete(ctx, key, idempotencyModule); derr != nil {
				s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", derr))
			}
		}
		return Slip{}, err
	}
	s.record(ctx, actor, shared.ActionCreate, created, map[string]any{"number": created.Number, "kind": created.Kind, "amount": created.Amount})
	return created, nil
}

// Update changes the amount and text of a slip whose date is still editable.
func (s *Service) Update(ctx context.Context, actor access.Principal, id int64, in UpdateInput) (Slip, error) {
	if err := httpx.Validate(s.validate, in); err != nil {
		return Slip{}, err
	}
	current, err := s.editable(ctx, actor, id)
	if err != nil {
		return Slip{}, err
	}
	before := current.Amount
	current.Amount = in.Amount
	current.Description = strings.TrimSpace(in.Description)
	current.Reference = strings.TrimSpace(in.Reference)
	updated, err := s.repo.Update(ctx, current)
	if err != nil {
		return Slip{}, err
	}
	s.record(ctx, actor, shared.ActionUpdate, updated, map[string]any{"number": updated.Number, "amount_before": before, "amount": updated.Amount})
	return updated, nil
}

// Delete removes a slip whose date is still editable.
func (s *Service) Delete(ctx context.Context, actor access.Principal, id int64) error {
	current, err := s.editable(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, shared.ActionDelete, current, map[string]any{"number": current.Number, "amount": current.Amount})
	return nil
}

func (s *Service) editable(ctx context.Context, actor access.Principal, id int64) (Slip, error) {
	current, err := s.Get(ctx, actor, id)
	if err != nil {
		return Slip{}, err
	}
	if _, ok := ParseKind(string(current.Kind)); !ok {
		return Slip{}, fmt.Errorf("slip %d has unknown kind %q", id, current.Kind)
	}
	if err := s.authz.Authorize(actor, current.Kind.Module(), current.SlipDate); err != nil {
		return Slip{}, err
	}
	return current, nil
}

func (s *Service) record(ctx context.Context, actor access.Principal, action string, slip Slip, meta map[string]any) {
	shared.RecordActivity(ctx, s.activity, s.logger, shared.Activity{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(slip.ID, 10),
		Meta:     meta,
	})
}

// IsReplay reports whether err is a repeated idempotency key.
func IsReplay(err error) bool {
	return errors.Is(err, shared.ErrIdempotencyConflict)
}

package audits

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tallyroom/tallyroom/internal/access"
	"github.com/tallyroom/tallyroom/internal/masterdata/machines"
	mdshared "github.com/tallyroom/tallyroom/internal/masterdata/shared"
	"github.com/tallyroom/tallyroom/internal/platform/httpx"
	"github.com/tallyroom/tallyroom/internal/shared"
)

const entity = "audit_entry"

// MachineLookup resolves machines visible to an actor.
type MachineLookup interface {
	Get(ctx context.Context, actor access.Principal, id int64) (machines.Machine, error)
}

// Service applies the audit rules: the entry date decides who may edit.
type Service struct {
	repo     Repository
	machines MachineLookup
	authz    access.Authorizer
	activity shared.ActivityRecorder
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService wires a Service.
func NewService(repo Repository, machines MachineLookup, authz access.Authorizer, activity shared.ActivityRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, machines: machines, authz: authz, activity: activity, logger: logger, validate: httpx.NewValidator()}
}

// List returns entries within the actor's location.
func (s *Service) List(ctx context.Context, actor access.Principal, f ListFilters) ([]Entry, int, error) {
	if scope := actor.ScopeLocation(); scope != nil {
		f.LocationID = scope
	}
	return s.repo.List(ctx, f)
}

// Get returns one entry if the actor can reach its location.
func (s *Service) Get(ctx context.Context, actor access.Principal, id int64) (Entry, error) {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	if !actor.CanAccessLocation(e.LocationID) {
		return Entry{}, ErrEntryNotFound
	}
	return e, nil
}

// Create records a reading dated in.EntryDate.
func (s *Service) Create(ctx context.Context, actor access.Principal, in Input) (Entry, error) {
	if err := httpx.Validate(s.validate, in); err != nil {
		return Entry{}, err
	}
	if err := s.authz.Authorize(actor, access.ModuleAudit, in.EntryDate); err != nil {
		return Entry{}, err
	}
	if err := s.checkMachine(ctx, actor, in); err != nil {
		return Entry{}, err
	}
	created, err := s.repo.Create(ctx, apply(Entry{CreatedBy: actor.UserID}, in))
	if err != nil {
		return Entry{}, err
	}
	s.record(ctx, actor, shared.ActionCreate, created.ID, map[string]any{"entry_date": created.EntryDate, "machine_id": created.MachineID})
	return created, nil
}

// Update changes an entry. Both the stored date and the new date must be
// editable, so rows cannot be moved into or out of the edit window.
func (s *Service) Update(ctx context.Context, actor access.Principal, id int64, in Input) (Entry, error) {
	if err := httpx.Validate(s.validate, in); err != nil {
		return Entry{}, err
	}
	current, err := s.Get(ctx, actor, id)
	if err != nil {
		return Entry{}, err
	}
	if err := s.authz.Authorize(actor, access.ModuleAudit, current.EntryDate); err != nil {
		return Entry{}, err
	}
	if in.EntryDate != current.EntryDate {
		if err := s.authz.Authorize(actor, access.ModuleAudit, in.EntryDate); err != nil {
			return Entry{}, err
		}
	}
	if err := s.checkMachine(ctx, actor, in); err != nil {
		return Entry{}, err
	}
	updated, err := s.repo.Update(ctx, apply(current, in))
	if err != nil {
		return Entry{}, err
	}
	s.record(ctx, actor, shared.ActionUpdate, id, map[string]any{"entry_date": updated.EntryDate, "meter_in": updated.MeterIn, "meter_out": updated.MeterOut})
	return updated, nil
}

// Delete removes an entry whose date is still editable.
func (s *Service) Delete(ctx context.Context, actor access.Principal, id int64) error {
	current, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.authz.Authorize(actor, access.ModuleAudit, current.EntryDate); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, shared.ActionDelete, id, map[string]any{"entry_date": current.EntryDate})
	return nil
}

func (s *Service) checkMachine(ctx context.Context, actor access.Principal, in Input) error {
	if !actor.CanAccessLocation(in.LocationID) {
		return mdshared.ErrOtherLocation
	}
	m, err := s.machines.Get(ctx, actor, in.MachineID)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return httpx.FieldErrors{"machine_id": "does not exist"}
		}
		return err
	}
	if m.LocationID != in.LocationID {
		return httpx.FieldErrors{"machine_id": "belongs to another location"}
	}
	return nil
}

func apply(e Entry, in Input) Entry {
	e.LocationID = in.LocationID
	e.MachineID = in.MachineID
	e.EntryDate = in.EntryDate
	e.MeterIn = in.MeterIn
	e.MeterOut = in.MeterOut
	e.Net = in.MeterIn - in.MeterOut
	e.Notes = strings.TrimSpace(in.Notes)
	return e
}

func (s *Service) record(ctx context.Context, actor access.Principal, action string, id int64, meta map[string]any) {
	shared.RecordActivity(ctx, s.activity, s.logger, shared.Activity{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}

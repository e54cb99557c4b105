package audits

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tallyroom/tallyroom/internal/access"
	"github.com/tallyroom/tallyroom/internal/platform/httpx"
	"github.com/tallyroom/tallyroom/internal/shared"
)

// Handler exposes audit entry endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	access  access.Middleware
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, mw access.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, access: mw}
}

// MountRoutes registers audit routes. Mutations are checked against the entry
// date inside the service.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.access.RequireAuthenticated)
	r.Get("/", h.list)
	r.Get("/{id}", h.show)
	r.Post("/", h.create)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	f, err := filtersFromRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := access.PrincipalFromContext(r.Context())
	entries, total, err := h.service.List(r.Context(), actor, f)
	if err != nil {
		httpx.Fail(w, h.logger, "list audit entries failed", err)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"entries":    entries,
		"pagination": shared.NewPagination(f.Page, f.PerPage, total),
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := access.PrincipalFromContext(r.Context())
	e, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		httpx.Fail(w, h.logger, "get audit entry failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := access.PrincipalFromContext(r.Context())
	e, err := h.service.Create(r.Context(), actor, in)
	if err != nil {
		httpx.Fail(w, h.logger, "create audit entry failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, e)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := access.PrincipalFromContext(r.Context())
	e, err := h.service.Update(r.Context(), actor, id, in)
	if err != nil {
		httpx.Fail(w, h.logger, "update audit entry failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := access.PrincipalFromContext(r.Context())
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		httpx.Fail(w, h.logger, "delete audit entry failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func filtersFromRequest(r *http.Request) (ListFilters, error) {
	page := shared.PageFromRequest(r)
	f := ListFilters{Page: page.Page, PerPage: page.PerPage}
	q := r.URL.Query()
	for _, p := range []struct {
		name   string
		target **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		day, err := time.Parse(access.DateLayout, raw)
		if err != nil {
			return ListFilters{}, httpx.FieldErrors{p.name: "must be a date formatted " + access.DateLayout}
		}
		*p.target = &day
	}
	if raw := q.Get("machine_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return ListFilters{}, fmt.Errorf("%w: machine_id", httpx.ErrValidation)
		}
		f.MachineID = &id
	}
	return f, nil
}

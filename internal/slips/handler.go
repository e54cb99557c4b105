package slips

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tallyroom/tallyroom/internal/access"
	"github.com/tallyroom/tallyroom/internal/platform/httpx"
	"github.com/tallyroom/tallyroom/internal/shared"
)

// IdempotencyHeader carries the client's deduplication key on create.
const IdempotencyHeader = "Idempotency-Key"

// Handler exposes slip endpoints.
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

// MountRoutes registers slip routes.
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
	items, total, err := h.service.List(r.Context(), actor, f)
	if err != nil {
		httpx.Fail(w, h.logger, "list slips failed", err)
		return
	}
	if items == nil {
		items = []Slip{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"slips":      items,
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
	slip, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		httpx.Fail(w, h.logger, "get slip failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, slip)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := access.PrincipalFromContext(r.Context())
	key := r.Header.Get(IdempotencyHeader)
	slip, err := h.service.Create(r.Context(), actor, in, key)
	if err != nil {
		if IsReplay(err) {
			h.logger.Info("slip replay rejected", slog.String("key", key), slog.Int64("user_id", actor.UserID))
		}
		httpx.Fail(w, h.logger, "create slip failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, slip)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in UpdateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := access.PrincipalFromContext(r.Context())
	slip, err := h.service.Update(r.Context(), actor, id, in)
	if err != nil {
		httpx.Fail(w, h.logger, "update slip failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, slip)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := access.PrincipalFromContext(r.Context())
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		httpx.Fail(w, h.logger, "delete slip failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func filtersFromRequest(r *http.Request) (ListFilters, error) {
	page := shared.PageFromRequest(r)
	f := ListFilters{Page: page.Page, PerPage: page.PerPage}
	q := r.URL.Query()
	if raw := q.Get("kind"); raw != "" {
		kind, ok := ParseKind(raw)
		if !ok {
			return ListFilters{}, httpx.FieldErrors{"kind": "must be one of msp silver silver_purchase"}
		}
		f.Kind = &kind
	}
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
	return f, nil
}

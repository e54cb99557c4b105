package locations

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tallyroom/tallyroom/internal/access"
	"github.com/tallyroom/tallyroom/internal/masterdata/shared"
	"github.com/tallyroom/tallyroom/internal/platform/httpx"
	internalShared "github.com/tallyroom/tallyroom/internal/shared"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
	access  access.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, mw access.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, access: mw}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.access.RequireAuthenticated)
	r.Get("/", h.List)
	r.Get("/{id}", h.Show)
	r.Group(func(r chi.Router) {
		r.Use(h.access.RequireEdit(access.ModuleLocations))
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := access.PrincipalFromContext(r.Context())
	filters := shared.FiltersFromRequest(r)
	items, total, err := h.service.List(r.Context(), actor, filters)
	if err != nil {
		httpx.Fail(w, h.logger, "list locations failed", err)
		return
	}
	if items == nil {
		items = []Location{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"locations":  items,
		"pagination": internalShared.NewPagination(filters.Page, filters.Limit, total),
	})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := access.PrincipalFromContext(r.Context())
	loc, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		httpx.Fail(w, h.logger, "get location failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, loc)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := access.PrincipalFromContext(r.Context())
	loc, err := h.service.Create(r.Context(), actor, in)
	if err != nil {
		httpx.Fail(w, h.logger, "create location failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, loc)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
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
	loc, err := h.service.Update(r.Context(), actor, id, in)
	if err != nil {
		httpx.Fail(w, h.logger, "update location failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, loc)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := access.PrincipalFromContext(r.Context())
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		httpx.Fail(w, h.logger, "delete location failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

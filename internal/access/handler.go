package access

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tallyroom/tallyroom/internal/platform/httpx"
)

// Handler exposes the current principal's rights so the dashboard can gate
// its forms and re-check when the selected date changes.
type Handler struct {
	mw Middleware
}

// NewHandler builds a Handler.
func NewHandler(mw Middleware) *Handler {
	return &Handler{mw: mw}
}

// MountRoutes registers access routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.mw.RequireAuthenticated)
	r.Get("/permissions", h.permissions)
	r.Get("/modules", h.modules)
}

type permissionsResponse struct {
	Module  Module `json:"module"`
	Date    string `json:"date,omitempty"`
	CanView bool   `json:"can_view"`
	CanEdit bool   `json:"can_edit"`
}

func (h *Handler) permissions(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())
	module, ok := ParseModule(r.URL.Query().Get("module"))
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown module")
		return
	}
	date := r.URL.Query().Get("date")
	httpx.JSON(w, http.StatusOK, permissionsResponse{
		Module:  module,
		Date:    date,
		CanView: h.mw.Policy.CanView(p.Role, module),
		CanEdit: h.mw.Policy.CanEdit(p.Role, module, date),
	})
}

type moduleSummary struct {
	Module         Module `json:"module"`
	CanView        bool   `json:"can_view"`
	CanEdit        bool   `json:"can_edit"`
	DateRestricted bool   `json:"date_restricted"`
}

// modules lists rights for every module against today's date.
func (h *Handler) modules(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())
	today, yesterday := h.mw.Policy.EditWindow()
	out := make([]moduleSummary, 0, len(moduleNames))
	for _, m := range []Module{ModuleLocations, ModuleVendors, ModuleMachines, ModuleUsers, ModuleAudit, ModuleMSP, ModuleSilver, ModuleSilverPurchase, ModuleReports} {
		out = append(out, moduleSummary{
			Module:         m,
			CanView:        h.mw.Policy.CanView(p.Role, m),
			CanEdit:        h.mw.Policy.CanEdit(p.Role, m, today),
			DateRestricted: IsDateRestricted(p.Role),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"principal": p,
		"today":     today,
		"yesterday": yesterday,
		"modules":   out,
	})
}

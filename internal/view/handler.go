package view

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tallyroom/tallyroom/internal/access"
	"github.com/tallyroom/tallyroom/internal/platform/httpx"
	"github.com/tallyroom/tallyroom/internal/shared"
)

// EditableHeader tells the browser whether the served form was left enabled.
const EditableHeader = "X-Form-Editable"

// Handler serves gated form fragments.
type Handler struct {
	logger *slog.Logger
	engine *Engine
	csrf   *shared.CSRFManager
	access access.Middleware
}

// NewHandler builds a Handler. csrf may be nil when forms are served without
// a session.
func NewHandler(logger *slog.Logger, engine *Engine, csrf *shared.CSRFManager, mw access.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, engine: engine, csrf: csrf, access: mw}
}

// MountRoutes registers form routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.access.RequireAuthenticated)
	r.Get("/{module}", h.form)
}

func (h *Handler) form(w http.ResponseWriter, r *http.Request) {
	module, ok := access.ParseModule(chi.URLParam(r, "module"))
	if !ok || !h.engine.HasForm(module) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown form")
		return
	}
	p, _ := access.PrincipalFromContext(r.Context())
	data := FormData{Module: module, Date: r.URL.Query().Get("date")}
	if sess := shared.SessionFromContext(r.Context()); sess != nil && h.csrf != nil {
		token, err := h.csrf.EnsureToken(r.Context(), sess)
		if err != nil {
			httpx.Fail(w, h.logger, "csrf token failed", err)
			return
		}
		data.CSRFToken = token
	}

	var buf bytes.Buffer
	allowed, err := h.engine.RenderForm(&buf, p.Role, data)
	if err != nil {
		httpx.Fail(w, h.logger, "render form failed", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set(EditableHeader, strconv.FormatBool(allowed))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tallyroom/tallyroom/internal/access"
	"github.com/tallyroom/tallyroom/internal/audits"
	"github.com/tallyroom/tallyroom/internal/auth"
	"github.com/tallyroom/tallyroom/internal/masterdata/locations"
	"github.com/tallyroom/tallyroom/internal/masterdata/machines"
	"github.com/tallyroom/tallyroom/internal/masterdata/vendors"
	"github.com/tallyroom/tallyroom/internal/observability"
	"github.com/tallyroom/tallyroom/internal/shared"
	"github.com/tallyroom/tallyroom/internal/slips"
	"github.com/tallyroom/tallyroom/internal/users"
	"github.com/tallyroom/tallyroom/internal/view"
	"github.com/tallyroom/tallyroom/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	Access           access.Middleware
	Metrics          *observability.Metrics
	AuthHandler      *auth.Handler
	AccessHandler    *access.Handler
	FormsHandler     *view.Handler
	UsersHandler     *users.Handler
	LocationsHandler *locations.Handler
	VendorsHandler   *vendors.Handler
	MachinesHandler  *machines.Handler
	AuditsHandler    *audits.Handler
	SlipsHandler     *slips.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router with tallyroom defaults. Handlers left
// nil are not mounted.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Access:         params.Access,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	mounts := []struct {
		pattern string
		handler interface{ MountRoutes(chi.Router) }
		present bool
	}{
		{"/auth", params.AuthHandler, params.AuthHandler != nil},
		{"/access", params.AccessHandler, params.AccessHandler != nil},
		{"/forms", params.FormsHandler, params.FormsHandler != nil},
		{"/users", params.UsersHandler, params.UsersHandler != nil},
		{"/locations", params.LocationsHandler, params.LocationsHandler != nil},
		{"/vendors", params.VendorsHandler, params.VendorsHandler != nil},
		{"/machines", params.MachinesHandler, params.MachinesHandler != nil},
		{"/audits", params.AuditsHandler, params.AuditsHandler != nil},
		{"/slips", params.SlipsHandler, params.SlipsHandler != nil},
		{"/jobs", params.JobHandler, params.JobHandler != nil},
	}
	for _, m := range mounts {
		if m.present {
			r.Route(m.pattern, m.handler.MountRoutes)
		}
	}
	return r
}

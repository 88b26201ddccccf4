package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trialdesk/trialdesk/internal/auth"
	"github.com/trialdesk/trialdesk/internal/observability"
	"github.com/trialdesk/trialdesk/internal/rbac"
	"github.com/trialdesk/trialdesk/internal/studies"
	"github.com/trialdesk/trialdesk/internal/users"
	"github.com/trialdesk/trialdesk/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	AuthService    *auth.Service
	AuthHandler    *auth.Handler
	UsersHandler   *users.Handler
	StudiesHandler *studies.Handler
	JobHandler     *jobs.Handler
	Pool           *pgxpool.Pool
	RBACMiddleware rbac.Middleware
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				params.Logger.Error("healthz ping", slog.Any("error", err))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(ar chi.Router) {
			ar.Group(func(pub chi.Router) {
				pub.Use(LoginRateLimit())
				params.AuthHandler.MountPublicRoutes(pub)
			})
			ar.Group(func(priv chi.Router) {
				priv.Use(params.AuthService.RequireAuth)
				params.AuthHandler.MountProtectedRoutes(priv)
			})
		})

		api.Group(func(priv chi.Router) {
			priv.Use(params.AuthService.RequireAuth)

			priv.Route("/users", func(ur chi.Router) {
				ur.Use(params.RBACMiddleware.Require(rbac.PermUsersManage))
				params.UsersHandler.MountRoutes(ur)
			})

			priv.Route("/studies", func(sr chi.Router) {
				params.StudiesHandler.MountRoutes(sr)
			})

			if params.JobHandler != nil {
				priv.Route("/jobs", func(jr chi.Router) {
					jr.Use(params.RBACMiddleware.Require(rbac.PermUsersManage))
					params.JobHandler.MountRoutes(jr)
				})
			}
		})
	})

	return r
}

package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/identware/identity-service/internal/domain"
	"github.com/identware/identity-service/pkg/health"
	"github.com/identware/identity-service/pkg/middleware"
)

// RouterConfig carries everything the router needs beyond the handlers.
type RouterConfig struct {
	Logger             *slog.Logger
	Health             *health.Handler
	CORSAllowedOrigins []string
	PprofAllowedCIDRs  []string
}

// NewRouter assembles the middleware stack and the full route tree.
func NewRouter(
	cfg RouterConfig,
	authenticator Authenticator,
	authHandler *AuthHandler,
	userHandler *UserHandler,
	roleHandler *RoleHandler,
) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(middleware.PrometheusMetrics("identity-service"))
	r.Use(CORS(cfg.CORSAllowedOrigins))

	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	if len(cfg.PprofAllowedCIDRs) > 0 {
		middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, cfg.Logger)
	}

	authed := Authenticate(authenticator)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/verify-email/{token}", authHandler.VerifyEmail)
			r.Post("/forgot-password", authHandler.ForgotPassword)
			r.Post("/reset-password/{token}", authHandler.ResetPassword)
			r.Post("/refresh-token", authHandler.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(authed)
				r.Post("/logout", authHandler.Logout)
				r.Post("/change-password", authHandler.ChangePassword)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(authed)

			r.Get("/me", userHandler.Me)
			r.Put("/me", userHandler.UpdateMe)

			r.Group(func(r chi.Router) {
				r.Use(RequirePermission("users", domain.ActionRead))
				r.Get("/", userHandler.List)
				r.Get("/{id}", userHandler.Get)
			})
			r.With(RequirePermission("users", domain.ActionUpdate)).
				Post("/{id}/deactivate", userHandler.Deactivate)
			r.With(RequirePermission("users", domain.ActionDelete)).
				Delete("/{id}", userHandler.Delete)
		})

		r.Route("/roles", func(r chi.Router) {
			r.Use(authed)
			r.Use(RequireRole("admin"))

			r.With(middleware.CacheControl(60)).Get("/", roleHandler.List)
			r.With(middleware.CacheControl(60)).Get("/{id}", roleHandler.Get)
			r.Post("/", roleHandler.Create)
			r.Put("/{id}", roleHandler.Update)
			r.Delete("/{id}", roleHandler.Delete)
		})
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeErrorBody(w, http.StatusNotFound, errorBody{
			Code:    "NOT_FOUND",
			Message: "route not found",
		})
	})

	return r
}

package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/packfinderz-identity/api/controllers"
	"github.com/angelmondragon/packfinderz-identity/api/middleware"
	"github.com/angelmondragon/packfinderz-identity/internal/auth"
	"github.com/angelmondragon/packfinderz-identity/internal/users"
	"github.com/angelmondragon/packfinderz-identity/pkg/config"
	"github.com/angelmondragon/packfinderz-identity/pkg/logger"
	"github.com/angelmondragon/packfinderz-identity/pkg/metrics"
)

// RateLimitStore is the counter surface shared by both limiters.
type RateLimitStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// Deps carries everything the HTTP surface is built from.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	Metrics     *metrics.AuthMetrics
	Gatherer    prometheus.Gatherer
	RateLimits  RateLimitStore
	AuthService auth.Service
	UserService users.Service

	DB    controllers.Pinger
	Redis controllers.Pinger
	// Mongo is nil when the document store is disabled.
	Mongo controllers.Pinger
}

func NewRouter(deps Deps) http.Handler {
	cfg, logg := deps.Config, deps.Logger
	authSvc, userSvc := deps.AuthService, deps.UserService

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.Metrics),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	loginPolicy := middleware.AuthRateLimitPolicy{
		Name:     "login",
		Window:   cfg.AuthRateLimit.LoginWindow,
		PerIP:    cfg.AuthRateLimit.LoginIPLimit,
		PerEmail: cfg.AuthRateLimit.LoginEmailLimit,
	}
	registerPolicy := middleware.AuthRateLimitPolicy{
		Name:     "register",
		Window:   cfg.AuthRateLimit.RegisterWindow,
		PerIP:    cfg.AuthRateLimit.RegisterIPLimit,
		PerEmail: cfg.AuthRateLimit.RegisterEmailLimit,
	}
	resetPolicy := middleware.AuthRateLimitPolicy{
		Name:     "password_reset",
		Window:   cfg.AuthRateLimit.ResetWindow,
		PerIP:    cfg.AuthRateLimit.ResetIPLimit,
		PerEmail: cfg.AuthRateLimit.ResetEmailLimit,
	}
	requestPolicy := middleware.RateLimitPolicy{
		Window: cfg.RateLimit.Window,
		Max:    cfg.RateLimit.MaxRequests,
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg,
			controllers.DependencyCheck{Name: "postgres", Pinger: deps.DB},
			controllers.DependencyCheck{Name: "redis", Pinger: deps.Redis},
			controllers.DependencyCheck{Name: "mongo", Pinger: deps.Mongo},
		))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.OptionalAuth(authSvc, logg))
		r.Use(middleware.RateLimit(requestPolicy, deps.RateLimits, logg, deps.Metrics))

		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(registerPolicy, deps.RateLimits, logg, deps.Metrics)).Post("/register", controllers.AuthRegister(authSvc, logg))
			r.With(middleware.AuthRateLimit(loginPolicy, deps.RateLimits, logg, deps.Metrics)).Post("/login", controllers.AuthLogin(authSvc, logg))
			r.With(middleware.AuthRateLimit(resetPolicy, deps.RateLimits, logg, deps.Metrics)).Post("/forgot-password", controllers.AuthForgotPassword(authSvc, logg))
			r.Post("/refresh", controllers.AuthRefresh(authSvc, logg))
			r.Post("/reset-password", controllers.AuthResetPassword(authSvc, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(authSvc, logg))
				r.Post("/logout", controllers.AuthLogout(authSvc, logg))
				r.Post("/logout-all", controllers.AuthLogoutAll(authSvc, logg))
				r.Post("/change-password", controllers.AuthChangePassword(authSvc, logg))
				r.Get("/me", controllers.AuthMe(userSvc, logg))
				r.Get("/sessions", controllers.AuthSessions(authSvc, logg))
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(middleware.Auth(authSvc, logg))

			r.With(middleware.RequireAdmin(logg)).Get("/", controllers.UsersList(userSvc, logg))
			r.With(middleware.RequireAdminOrSeller(logg)).Get("/search", controllers.UsersSearch(userSvc, logg))
			r.With(middleware.RequireAdmin(logg)).Get("/stats", controllers.UsersStats(userSvc, logg))

			r.Route("/{"+controllers.UserIDParam+"}", func(r chi.Router) {
				ownerOrAdmin := middleware.RequireOwnerOrAdmin(controllers.UserIDParam, logg)
				r.With(ownerOrAdmin).Get("/", controllers.UserGet(userSvc, logg))
				r.With(ownerOrAdmin).Put("/", controllers.UserUpdate(userSvc, logg))
				r.With(ownerOrAdmin).Put("/profile", controllers.UserUpdateProfile(userSvc, logg))
				r.With(middleware.RequireAdmin(logg)).Post("/verify-email", controllers.UserVerifyEmail(userSvc, logg))
				r.With(middleware.RequireAdmin(logg)).Delete("/", controllers.UserDelete(userSvc, logg))
			})
		})
	})

	return r
}

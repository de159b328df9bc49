package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/playmate/server/internal/auth"
	"github.com/playmate/server/internal/http/handlers"
	"github.com/playmate/server/internal/middleware"
	"github.com/playmate/server/internal/observability/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups the endpoint handlers mounted by NewRouter
type Handlers struct {
	Auth      *handlers.AuthHandler
	Users     *handlers.UserHandler
	Interests *handlers.InterestHandler
	News      *handlers.NewsHandler
	Health    *handlers.HealthHandler
}

// Options configures router-level middleware
type Options struct {
	CORSOrigins []string
	// AuthIPLimit caps /auth requests per client IP per minute; zero disables it
	AuthIPLimit int
	// RequestLogging enables chi's access log
	RequestLogging bool
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(
	h Handlers,
	authn middleware.Authenticator,
	adminTokens *auth.AdminTokens,
	m *metrics.Registry,
	logger *slog.Logger,
	opts Options,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	if opts.RequestLogging {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(middleware.Metrics(m))

	requireSession := middleware.RequireSession(authn, logger)
	requireProfile := middleware.RequireProfile(authn, logger)
	optionalAuth := middleware.OptionalAuth(authn)

	r.Get("/health", h.Health.ServeHTTP)
	r.Handle("/metrics", promhttp.HandlerFor(m.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/auth", func(r chi.Router) {
		if opts.AuthIPLimit > 0 {
			r.Use(httprate.LimitByIP(opts.AuthIPLimit, time.Minute))
		}
		r.Post("/send-otp", h.Auth.HandleSendOTP)
		r.Post("/verify-otp", h.Auth.HandleVerifyOTP)

		r.Group(func(r chi.Router) {
			r.Use(requireSession)
			r.Post("/logout", h.Auth.HandleLogout)
			r.Get("/me", h.Auth.HandleMe)
		})
	})

	r.Route("/users", func(r chi.Router) {
		r.With(requireSession).Post("/register", h.Auth.HandleRegister)

		r.Group(func(r chi.Router) {
			r.Use(requireProfile)
			r.Get("/profile", h.Users.HandleGetProfile)
			r.Put("/profile", h.Users.HandleUpdateProfile)
			r.Post("/profile/photo", h.Users.HandleUploadPhoto)
		})

		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/search", h.Users.HandleSearch)
			r.Get("/filter-options", h.Users.HandleFilterOptions)
			r.Get("/{id}", h.Users.HandleGetUser)
		})
	})

	r.Route("/interests", func(r chi.Router) {
		r.Use(requireProfile)
		r.Post("/send", h.Interests.HandleSend)
		r.Get("/received", h.Interests.HandleReceived)
		r.Get("/sent", h.Interests.HandleSent)
		r.Get("/pending-count", h.Interests.HandlePendingCount)
		r.Get("/today-count", h.Interests.HandleTodayCount)
		r.Put("/{id}/accept", h.Interests.HandleAccept)
		r.Put("/{id}/decline", h.Interests.HandleDecline)
		r.Put("/{id}/withdraw", h.Interests.HandleWithdraw)
	})

	r.Get("/news", h.News.HandleList)

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdmin(adminTokens, logger))
		r.Post("/news/sync", h.News.HandleSync)
	})

	return r
}

// Package app assembles services, background jobs and the HTTP router from
// configuration and a set of stores. cmd/api wires it to PostgreSQL; the
// end-to-end tests wire it to the in-memory store.
package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/playmate/server/internal/auth"
	"github.com/playmate/server/internal/cache"
	"github.com/playmate/server/internal/config"
	httphandler "github.com/playmate/server/internal/http"
	"github.com/playmate/server/internal/http/handlers"
	"github.com/playmate/server/internal/interest"
	"github.com/playmate/server/internal/janitor"
	"github.com/playmate/server/internal/middleware"
	"github.com/playmate/server/internal/news"
	"github.com/playmate/server/internal/notify"
	"github.com/playmate/server/internal/observability/metrics"
	"github.com/playmate/server/internal/profile"
	"github.com/playmate/server/internal/repo"
	"github.com/playmate/server/internal/search"
	"github.com/playmate/server/internal/storage"
)

const (
	otpPhoneWindow   = 10 * time.Minute
	otpPhoneRequests = 3
)

// Stores are the persistence adapters the services run on
type Stores struct {
	Users     repo.UserRepo
	Interests repo.InterestRepo
	Sessions  repo.SessionRepo
	Otps      repo.OtpRepo
	Articles  repo.ArticleRepo
}

// Collaborators are the optional outbound dependencies. Nil fields fall back
// to logging implementations or disable the feature.
type Collaborators struct {
	SMS        notify.SMSSender
	Notifier   notify.Notifier
	Uploader   storage.Uploader
	Facets     cache.FacetCache
	NewsSource news.Source
	DB         handlers.Pinger
	// Now overrides the service clocks
	Now func() time.Time
}

// App is the assembled server
type App struct {
	Router  http.Handler
	Auth    *auth.AuthService
	Janitor *janitor.Janitor
	// Syncer is nil when no news source is configured
	Syncer *news.Syncer

	cfg    *config.Config
	logger *slog.Logger
}

// New builds the services and router. ctx bounds the lifetime of in-process
// helpers such as the per-phone OTP limiter.
func New(ctx context.Context, cfg *config.Config, stores Stores, collab Collaborators, logger *slog.Logger, m *metrics.Registry) *App {
	if collab.SMS == nil {
		collab.SMS = notify.NewLogSMS(logger)
	}
	if collab.Notifier == nil {
		collab.Notifier = notify.NewLogNotifier(logger)
	}

	otpService := auth.NewOtpService(stores.Otps, collab.SMS, auth.OtpConfig{
		Salt:    cfg.OTPSalt,
		TTL:     cfg.OTPTTL,
		DevMode: cfg.OTPDevMode,
	}, logger, m)
	authService := auth.NewAuthService(otpService, stores.Users, stores.Sessions, auth.SessionConfig{
		BridgeTTL: cfg.BridgeSessionTTL,
		FullTTL:   cfg.SessionTTL,
	}, logger, m)
	profileService := profile.NewService(stores.Users, stores.Interests, collab.Uploader, logger)
	searchService := search.NewService(stores.Users, collab.Facets, logger)
	interestService := interest.NewService(stores.Interests, stores.Users, collab.Notifier, interest.Config{
		DailyLimit: cfg.DailyInterestLimit,
		Location:   cfg.Location,
	}, logger, m)
	sweeper := janitor.New(stores.Sessions, stores.Otps, logger, m)

	var syncer *news.Syncer
	if collab.NewsSource != nil {
		syncer = news.NewSyncer(collab.NewsSource, stores.Articles, logger, m)
	}

	phoneLimiter := middleware.NewRateLimiter(ctx, otpPhoneWindow, otpPhoneRequests)

	if collab.Now != nil {
		otpService.WithClock(collab.Now)
		authService.WithClock(collab.Now)
		profileService.WithClock(collab.Now)
		searchService.WithClock(collab.Now)
		interestService.WithClock(collab.Now)
		sweeper.WithClock(collab.Now)
		phoneLimiter.WithClock(collab.Now)
	}

	router := httphandler.NewRouter(httphandler.Handlers{
		Auth: handlers.NewAuthHandler(authService, phoneLimiter, searchService,
			handlers.CookieConfig{Secure: cfg.CookieSecure}, logger),
		Users:     handlers.NewUserHandler(profileService, searchService, logger),
		Interests: handlers.NewInterestHandler(interestService, logger),
		News:      handlers.NewNewsHandler(news.NewService(stores.Articles), syncer, logger),
		Health:    handlers.NewHealthHandler(collab.DB),
	}, authService, auth.NewAdminTokens(cfg.AdminJWTSecret), m, logger, httphandler.Options{
		CORSOrigins:    cfg.CORSOrigins,
		AuthIPLimit:    cfg.AuthRateLimit,
		RequestLogging: cfg.Environment != "test",
	})

	return &App{
		Router:  router,
		Auth:    authService,
		Janitor: sweeper,
		Syncer:  syncer,
		cfg:     cfg,
		logger:  logger,
	}
}

// StartBackground launches the expiry sweep and, when configured, the news
// sync loop. The returned channel closes once every loop has exited.
func (a *App) StartBackground(ctx context.Context) <-chan struct{} {
	loops := []<-chan struct{}{a.Janitor.Start(ctx, a.cfg.SweepInterval)}
	if a.Syncer != nil {
		loops = append(loops, a.Syncer.Start(ctx, a.cfg.NewsSyncInterval))
	}
	a.logger.InfoContext(ctx, "background jobs started",
		slog.Duration("sweep_interval", a.cfg.SweepInterval),
		slog.Bool("news_sync", a.Syncer != nil))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, l := range loops {
			<-l
		}
	}()
	return done
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/playmate/server/internal/app"
	"github.com/playmate/server/internal/cache"
	"github.com/playmate/server/internal/config"
	"github.com/playmate/server/internal/db"
	"github.com/playmate/server/internal/news"
	"github.com/playmate/server/internal/notify"
	"github.com/playmate/server/internal/observability/logging"
	"github.com/playmate/server/internal/observability/metrics"
	"github.com/playmate/server/internal/repo"
	"github.com/playmate/server/internal/storage"
)

const (
	serviceName     = "playmate-api"
	outboundTimeout = 10 * time.Second
)

func main() {
	// Load .env from CWD or server/ so it works from repo root or server/ (env vars override)
	_ = godotenv.Load(".env")
	_ = godotenv.Load("server/.env")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := logging.NewLogger(logging.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
		Output:      os.Stdout,
	})
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.DatabaseURL, db.DefaultPool, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		return err
	}

	collab := app.Collaborators{DB: database}

	if cfg.SMSWebhookURL != "" {
		collab.SMS = notify.NewWebhookSMS(cfg.SMSWebhookURL, outboundTimeout)
	}

	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		collab.Facets = cache.NewRedisFacetCache(client, cfg.FacetCacheTTL)
		logger.Info("facet cache enabled")
	}

	if cfg.S3Bucket != "" {
		uploader, err := storage.NewS3Uploader(ctx, cfg.S3Bucket, cfg.AWSRegion, cfg.S3PublicBaseURL)
		if err != nil {
			return err
		}
		collab.Uploader = uploader
		logger.Info("photo storage enabled", slog.String("bucket", cfg.S3Bucket))
	}

	if cfg.NewsAPIURL != "" {
		collab.NewsSource = news.NewHTTPSource(cfg.NewsAPIURL, cfg.NewsAPIKey, outboundTimeout)
	}

	m := metrics.New(serviceName)
	a := app.New(ctx, cfg, app.Stores{
		Users:     repo.NewUserRepo(database),
		Interests: repo.NewInterestRepo(database),
		Sessions:  repo.NewSessionRepo(database),
		Otps:      repo.NewOtpRepo(database),
		Articles:  repo.NewArticleRepo(database),
	}, collab, logger, m)

	background := a.StartBackground(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	select {
	case <-background:
	case <-shutdownCtx.Done():
		logger.Warn("background jobs did not stop before shutdown deadline")
	}
	logger.Info("server exited")
	return nil
}

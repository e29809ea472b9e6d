// Command server runs the studio backend HTTP API: approval step workflow,
// notification feed, and real-time notification stream.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ca-la/studio-backend/internal/announce"
	"github.com/ca-la/studio-backend/internal/config"
	httpapi "github.com/ca-la/studio-backend/internal/http"
	"github.com/ca-la/studio-backend/internal/notifications"
	"github.com/ca-la/studio-backend/internal/observability"
	"github.com/ca-la/studio-backend/internal/repo"
	"github.com/ca-la/studio-backend/internal/services"
)

const version = "1.0.0"

// digestInterval is how often the outstanding-email digest sweeps.
const digestInterval = time.Minute

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()

	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("database open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			log.Fatal().Err(err).Msg("database tracing setup failed")
		}
	}

	registry := notifications.NewRegistry(cfg.AppHost, log.Logger)
	hub := announce.NewHub(registry, log.Logger)

	notifier := notifications.NewNotifier(registry, hub, log.Logger)
	notifier.DedupWindow = cfg.NotificationDedupWindow

	steps := services.NewApprovalStepService(db, notifier, log.Logger)
	feed := &services.NotificationFeedService{DB: db}
	digest := services.NewEmailDigestService(
		db, registry, services.LogMailer{Log: log.Logger},
		cfg.OutstandingEmailDelay, log.Logger,
	)
	go digest.Run(ctx, digestInterval)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{Steps: steps, Feed: feed, Hub: hub}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("base_path", cfg.APIBasePath).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}

func setupLogger(cfg config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	setLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func setLogLevel(lvl string) {
	switch lvl {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info", "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "panic":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

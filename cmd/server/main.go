package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/meetsuite/meeting-server-go/internal/config"
	"github.com/meetsuite/meeting-server-go/internal/database"
	"github.com/meetsuite/meeting-server-go/internal/handler"
	"github.com/meetsuite/meeting-server-go/internal/jobs"
	"github.com/meetsuite/meeting-server-go/internal/middleware"
	"github.com/meetsuite/meeting-server-go/internal/presence"
	"github.com/meetsuite/meeting-server-go/internal/provider"
	"github.com/meetsuite/meeting-server-go/internal/redis"
	"github.com/meetsuite/meeting-server-go/internal/repository"
	"github.com/meetsuite/meeting-server-go/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	sessionRepo := repository.NewSessionRepository(db.DB)
	linkRepo := repository.NewLinkRepository(db.DB)

	rooms := provider.NewHTTPClient(cfg.ProviderBaseURL, cfg.ProviderAPIKey, config.ProviderRequestTimeout)
	tracker := presence.NewTracker(redisClient, config.PresenceTTL)
	rateLimiter := service.NewRateLimiter(redisClient.Client)

	issuerService := service.NewIssuerService(
		db, sessionRepo, linkRepo, rooms, cfg.PublicBaseURL, cfg.MaxDurationMinutes,
	)
	joinService := service.NewJoinService(db, sessionRepo, linkRepo, rooms)
	lifecycleService := service.NewLifecycleService(sessionRepo, linkRepo, rooms, cfg.AdminSet())

	meetingHandler := handler.NewMeetingHandler(issuerService, joinService, lifecycleService, tracker)
	webhookHandler := handler.NewWebhookHandler(sessionRepo, lifecycleService)

	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	createLimitMiddleware := middleware.NewIPRateLimitMiddleware(
		rateLimiter, config.CreateRateLimitPerMin, time.Minute, "create",
	)
	joinLimitMiddleware := middleware.NewIPRateLimitMiddleware(
		rateLimiter, config.JoinRateLimitPerMin, time.Minute, "join",
	)
	signatureMiddleware := middleware.NewWebhookSignatureMiddleware(cfg.ProviderWebhookSecret)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.With(createLimitMiddleware.Handler).Post("/meetings", meetingHandler.CreateMeeting)
		r.With(joinLimitMiddleware.Handler).Post("/links/{token}/join", meetingHandler.JoinMeeting)
		r.Get("/links/{token}", meetingHandler.ValidateLink)
		r.Get("/meetings/{sessionID}/status", meetingHandler.GetStatus)
		r.Post("/meetings/{sessionID}/end", meetingHandler.EndMeeting)
		r.Post("/meetings/{sessionID}/cancel", meetingHandler.CancelMeeting)
		r.Post("/meetings/{sessionID}/leave", meetingHandler.LeaveMeeting)
		r.Post("/meetings/{sessionID}/heartbeat", meetingHandler.Heartbeat)
	})

	r.Route("/provider", func(r chi.Router) {
		r.Use(signatureMiddleware.Handler)
		r.Mount("/", webhookHandler.Routes())
	})

	sweepJob := jobs.NewSweepJob(sessionRepo, linkRepo, lifecycleService, config.SweepJobInterval)
	sweepJob.Start()
	defer sweepJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	appauth "github.com/nabolaget/vibbobridge/internal/application/auth"
	"github.com/nabolaget/vibbobridge/internal/application/feed"
	"github.com/nabolaget/vibbobridge/internal/application/ports"
	"github.com/nabolaget/vibbobridge/internal/config"
	infraauth "github.com/nabolaget/vibbobridge/internal/infrastructure/auth"
	httprouter "github.com/nabolaget/vibbobridge/internal/infrastructure/http"
	"github.com/nabolaget/vibbobridge/internal/infrastructure/http/handlers"
	"github.com/nabolaget/vibbobridge/internal/infrastructure/http/middleware"
	filestore "github.com/nabolaget/vibbobridge/internal/infrastructure/persistence/file"
	"github.com/nabolaget/vibbobridge/internal/infrastructure/persistence/memory"
	"github.com/nabolaget/vibbobridge/internal/infrastructure/persistence/postgres"
	"github.com/nabolaget/vibbobridge/internal/infrastructure/publish"
	"github.com/nabolaget/vibbobridge/internal/infrastructure/throttle"
	"github.com/nabolaget/vibbobridge/internal/infrastructure/vibbo"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx := context.Background()

	var pool *pgxpool.Pool
	var store ports.CredentialStore
	switch {
	case cfg.Storage.DatabaseURL != "":
		pool, err = pgxpool.New(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("connect to database")
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("ping database")
		}
		pgStore := postgres.NewCredentialStore(pool)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("ensure session schema")
		}
		store = pgStore
	case cfg.Storage.StateFile != "":
		store = filestore.NewCredentialStore(cfg.Storage.StateFile)
	default:
		log.Warn().Msg("no DATABASE_URL or STATE_FILE; session lost on restart")
		store = memory.NewCredentialStore()
	}

	var redisClient *redis.Client
	if cfg.Storage.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.Storage.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("parse REDIS_URL")
		}
		redisClient = redis.NewClient(opt)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis ping failed; continuing without redis")
			redisClient = nil
		}
	}

	gateway := vibbo.NewClient(vibbo.Config{
		AuthBaseURL:   cfg.Vibbo.AuthBaseURL,
		PortalBaseURL: cfg.Vibbo.PortalBaseURL,
		ClientID:      cfg.Vibbo.ClientID,
		APIVersion:    cfg.Vibbo.APIVersion,
		Timeout:       cfg.Vibbo.HTTPTimeout,
	}, log)

	sessions := appauth.NewManager(store, gateway, cfg.Poll.RefreshMargin, log)
	smsThrottle := throttle.NewMemoryStore(cfg.Limits.SMSMaxRequests, int(cfg.Limits.SMSCooldown.Seconds()))
	challenges := appauth.NewChallengeTable(appauth.DefaultChallengeTTL)
	requestCodeUC := appauth.NewRequestCode(gateway, challenges, smsThrottle, cfg.Vibbo.PhonePrefix)
	verifyCodeUC := appauth.NewVerifyCode(gateway, challenges, sessions, smsThrottle)

	retry := feed.RetryPolicy{MaxAttempts: cfg.Poll.MaxAttempts, BaseDelay: cfg.Poll.BackoffBase}
	fetcher := feed.NewFetcher(gateway, sessions, retry, cfg.Poll.FeedLimit)

	var publishers []ports.SnapshotPublisher
	if cfg.Webhook.SnapshotURL != "" {
		publishers = append(publishers, publish.NewWebhookPublisher(cfg.Webhook.SnapshotURL))
	}
	if redisClient != nil {
		publishers = append(publishers, publish.NewRedisPublisher(redisClient, "vibbo:feed:"))
	}
	poller := feed.NewPoller(fetcher, cfg.Poll.Interval, publishers, log)

	pollCtx, stopPoller := context.WithCancel(ctx)
	defer stopPoller()
	go func() {
		if err := poller.Run(pollCtx); err != nil && pollCtx.Err() == nil {
			log.Error().Err(err).Msg("poller stopped")
		}
	}()

	var issuer *infraauth.TokenIssuer
	var requireToken func(http.Handler) http.Handler
	if cfg.Auth.APISecret != "" {
		issuer = infraauth.NewTokenIssuer(cfg.Auth.APISecret, cfg.Auth.Issuer, cfg.Auth.TokenExpiry)
		requireToken = middleware.RequireToken(issuer, log)
	} else {
		log.Warn().Msg("API_SECRET not set; bridge endpoints are unauthenticated")
	}

	authHandler := handlers.NewAuthHandler(requestCodeUC, verifyCodeUC, sessions, gateway, poller, issuer, cfg.Auth.APISecret, log)
	feedHandler := handlers.NewFeedHandler(poller, log)
	healthHandler := handlers.NewHealthHandler(pool, redisClient)

	ipLimit, err := middleware.NewIPRateLimiter(cfg.Limits.RatePerIP)
	if err != nil {
		log.Fatal().Err(err).Msg("create IP rate limiter")
	}
	secureMiddleware := middleware.NewSecure(middleware.SecureOptions(false))

	router := httprouter.NewRouter(httprouter.RouterConfig{
		AuthHandler:   authHandler,
		FeedHandler:   feedHandler,
		HealthHandler: healthHandler,
		RequireToken:  requireToken,
		Log:           log,
		Secure:        secureMiddleware,
		IPRateLimit:   ipLimit,
		Metrics:       true,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")
	stopPoller()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	log.Info().Msg("server stopped")
}

// Command server runs the toy backend HTTP API.
//
// @title                      Toy Backend API
// @version                    1.0
// @description                Parent accounts, children, toy pairing and toy question answering.
// @BasePath                   /
//
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
// @description                "Bearer <access token>"
//
// @securityDefinitions.apikey APIKeyAuth
// @in                         header
// @name                       X-API-Key
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
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-toy-backend/internal/auth"
	"github.com/tbourn/go-toy-backend/internal/config"
	"github.com/tbourn/go-toy-backend/internal/events"
	httpapi "github.com/tbourn/go-toy-backend/internal/http"
	"github.com/tbourn/go-toy-backend/internal/observability"
	"github.com/tbourn/go-toy-backend/internal/repo"
	"github.com/tbourn/go-toy-backend/internal/search"
	"github.com/tbourn/go-toy-backend/internal/services"
	"github.com/tbourn/go-toy-backend/internal/sysutil"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	loaded, envErr := sysutil.LoadEnvFiles(".env")

	cfg, err := config.Load()
	if err != nil {
		sysutil.SetupLogger(os.Stderr, "info", true, "go-toy-backend", version)
		log.Fatal().Err(err).Msg("load config")
	}
	sysutil.SetupLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName, version)
	if envErr != nil {
		log.Warn().Err(envErr).Msg("env file ignored")
	}
	if len(loaded) > 0 {
		log.Debug().Strs("files", loaded).Msg("env files loaded")
	}

	ctx := context.Background()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
		shutdownOTel = func(context.Context) error { return nil }
	}

	db, err := repo.Open(cfg.DatabaseURL, cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	if email := cfg.Auth.BootstrapAdmin; email != "" {
		authSvc := services.NewAuthService(db,
			auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL),
			auth.NewHasher(cfg.Auth.TokenHashSecret),
			cfg.Auth.RefreshTokenTTL, cfg.Auth.BcryptCost)
		switch err := authSvc.BootstrapAdmin(ctx, email); {
		case errors.Is(err, services.ErrParentNotFound):
			log.Warn().Str("email", email).Msg("bootstrap admin: account not found")
		case err != nil:
			log.Fatal().Err(err).Msg("bootstrap admin")
		default:
			log.Info().Str("email", email).Msg("bootstrap admin promoted")
		}
	}

	deps := httpapi.Deps{DB: db, Config: cfg}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis ping failed; using in-process rate limiter")
		} else {
			deps.Redis = rdb
		}
	}

	if cfg.AMQP.URL != "" {
		pub := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.DialTimeout)
		defer pub.Close()
		deps.Publisher = pub
	}

	if cfg.KnowledgePath != "" {
		idx, err := search.NewIndexFromMarkdown(cfg.KnowledgePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.KnowledgePath).Msg("load knowledge base")
		}
		log.Info().Int("facts", idx.Len()).Msg("knowledge base loaded")
		deps.Answerer = &services.FactAnswerer{Index: idx, Threshold: cfg.AnswerThreshold}
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, deps)

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
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracer shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("server stopped")
}

// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-toy-backend/docs"
	"github.com/tbourn/go-toy-backend/internal/auth"
	"github.com/tbourn/go-toy-backend/internal/config"
	"github.com/tbourn/go-toy-backend/internal/events"
	"github.com/tbourn/go-toy-backend/internal/http/handlers"
	"github.com/tbourn/go-toy-backend/internal/http/middleware"
	"github.com/tbourn/go-toy-backend/internal/repo"
	"github.com/tbourn/go-toy-backend/internal/services"
)

// maxBodyBytes caps every request body.
const maxBodyBytes = 1 << 20

// Deps are the runtime dependencies of the HTTP layer. DB and Config are
// required; the rest are optional.
type Deps struct {
	DB     *gorm.DB
	Config config.Config

	// Redis, when set, backs the rate limiter so replicas share buckets.
	Redis redis.Scripter
	// Publisher receives interaction events; nil disables publishing.
	Publisher events.Publisher
	// Answerer produces toy answers; nil selects services.StubAnswerer.
	Answerer services.Answerer
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), CORS and security
// headers, health and metrics endpoints, and then mounts the API under
// cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger + RedactingLogger: request-scoped logger, scrubbed access log
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. gzip, CORS and Security headers
//
// Per group, after authentication:
//  8. Idempotency validator (/toy/ask only, before the limiter so replays bypass it)
//  9. Rate limiter keyed by principal
func RegisterRoutes(r *gin.Engine, d Deps) {
	cfg := d.Config
	db := d.DB
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Request-scoped logger for handlers/services, then the access log
	r.Use(middleware.Logger())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{middleware.HeaderAPIKey, "Cookie", "Set-Cookie"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit
	r.Use(limitBody(maxBodyBytes))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Compression, CORS, security headers
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	health := func(c *gin.Context) { c.JSON(http.StatusOK, handlers.StatusResponse{Status: "ok"}) }
	r.GET("/healthz", health)
	r.GET("/health", health)

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db
	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	hasher := auth.NewHasher(cfg.Auth.TokenHashSecret)

	authSvc := services.NewAuthService(db, issuer, hasher, cfg.Auth.RefreshTokenTTL, cfg.Auth.BcryptCost)
	parentSvc := services.NewParentService(db, cfg.ToyOnlineWindow)
	toySvc := services.NewToyService(db, cfg.IdempotencyTTL)
	if d.Answerer != nil {
		toySvc.Answerer = d.Answerer
	}
	if d.Publisher != nil {
		toySvc.Publisher = d.Publisher
		toySvc.PublishTimeout = cfg.AMQP.PublishTimeout
	}
	adminSvc := &services.AdminService{DB: db, Auth: authSvc}
	guard := &services.IdentityGuard{DB: db, Issuer: issuer, Hasher: hasher}

	h := handlers.New(authSvc, parentSvc, toySvc, adminSvc)

	// Principals
	requireParent := middleware.RequireParent(guard, handlers.WriteAuthError)
	requireAdmin := middleware.RequireAdmin(services.ErrAdminOnly, handlers.WriteError)
	requireToy := middleware.RequireAPIKey(guard, handlers.WriteError)
	limit := rateLimit(cfg, d.Redis)

	api := groupWithPrefix(r, cfg.APIBasePath)

	// Auth
	authG := api.Group("/auth", middleware.NoStore())
	{
		authG.POST("/signup", limit, h.Signup)
		authG.POST("/login", limit, h.Login)
		authG.POST("/refresh", limit, h.Refresh)

		authG.POST("/logout", requireParent, limit, h.Logout)
		authG.GET("/me", requireParent, limit, h.Me)

		authG.POST("/apikey/create", requireParent, requireAdmin, limit, h.CreateAPIKey)
		authG.POST("/apikey/:id/revoke", requireParent, requireAdmin, limit, h.RevokeAPIKey)
	}

	// Parent dashboard
	parentG := api.Group("/parent", requireParent, limit)
	{
		parentG.GET("/children", h.ListChildren)
		parentG.POST("/children", h.CreateChild)
		parentG.DELETE("/child/:id", h.DeleteChild)
		parentG.GET("/child/:id/analytics", h.ChildAnalytics)
		parentG.GET("/child/:id/weekly-summary", h.WeeklySummary)
		parentG.GET("/toy/:uuid/status", h.ToyStatus)
		parentG.GET("/toy/:uuid/active-child", h.ActiveChild)
	}

	// Toys: pairing by parents, ask/heartbeat by devices
	toyG := api.Group("/toy")
	{
		toyG.POST("/pair", requireParent, limit, h.PairToy)
		toyG.POST("/set-active-child", requireParent, limit, h.SetActiveChild)

		toyG.POST("/ask", requireToy,
			middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, idempotencyLookup(db)),
			limit, h.Ask)
		toyG.POST("/heartbeat", requireToy, limit, h.Heartbeat)
	}

	// Admin
	adminG := api.Group("/admin", requireParent, requireAdmin, limit)
	{
		adminG.GET("/messages", h.AdminMessages)
		adminG.GET("/child/:id/messages", h.AdminChildMessages)
		adminG.GET("/toy/:uuid/messages", h.AdminToyMessages)
		adminG.POST("/toys", h.RegisterToy)
		adminG.POST("/parents/:id/deactivate", h.DeactivateParent)
	}
}

// rateLimit selects the limiter: shared Redis buckets when a client is
// given, in-process buckets otherwise. RATE_RPS=0 disables limiting.
func rateLimit(cfg config.Config, rdb redis.Scripter) gin.HandlerFunc {
	if cfg.RateRPS <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	var l middleware.Limiter = middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst)
	if rdb != nil {
		l = middleware.NewRedisRateLimiter(rdb, "ratelimit:", cfg.RateRPS, cfg.RateBurst)
	}
	return middleware.RateLimit(l, middleware.KeyByPrincipal())
}

// idempotencyLookup reports whether an unexpired stored answer exists.
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, toyUUID, key string, now time.Time) (bool, error) {
		_, err := repo.GetIdempotency(ctx, db, toyUUID, key, now)
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	}
}

// corsMiddleware returns the CORS posture: allow all origins when none are
// configured, otherwise echo allowlisted origins.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	methods := []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	headers := []string{
		"Origin", "Content-Type", "Accept", "Authorization",
		middleware.HeaderAPIKey, middleware.HeaderToyUUID, middleware.HeaderIdempotencyKey,
	}
	expose := []string{"X-Request-ID", "Content-Length", "ETag", "Retry-After", handlers.HeaderIdempotencyReplayed}

	if len(origins) == 0 {
		return []gin.HandlerFunc{
			// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins:  true,
				AllowMethods:     methods,
				AllowHeaders:     headers,
				ExposeHeaders:    expose,
				AllowCredentials: false, // must remain false with AllowAllOrigins
				MaxAge:           12 * time.Hour,
			}),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     methods,
			AllowHeaders:     headers,
			ExposeHeaders:    expose,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}),
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

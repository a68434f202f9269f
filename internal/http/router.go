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
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/reino-app/bestias-backend/internal/auth"
	"github.com/reino-app/bestias-backend/internal/config"
	"github.com/reino-app/bestias-backend/internal/genai"
	"github.com/reino-app/bestias-backend/internal/http/handlers"
	"github.com/reino-app/bestias-backend/internal/http/middleware"
	"github.com/reino-app/bestias-backend/internal/repo"
	"github.com/reino-app/bestias-backend/internal/services"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the public API.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per user/IP, bypass on replay)
//  9. CORS, security headers, gzip
func RegisterRoutes(r *gin.Engine, db *gorm.DB, ai genai.Analyzer, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// Dependency injection: services ← repo/db/ai. Built up front because the
	// user service doubles as the token resolver for the auth middleware.
	analysisSvc := services.NewAnalysisService(db, ai)
	userSvc := services.NewUserService(db)
	userSvc.BotUsername = cfg.Telegram.BotUsername
	userSvc.RedirectURI = cfg.Telegram.RedirectURI
	userSvc.DevSeedEnabled = cfg.DevSeedEnabled
	if cfg.Google.ClientID != "" {
		userSvc.Google = auth.NewGoogleVerifier(cfg.Google.ClientID)
	}
	if cfg.Telegram.BotToken != "" {
		userSvc.Telegram = auth.NewTelegramVerifier(cfg.Telegram.BotToken, cfg.Telegram.MaxAuthAge)
	}
	compatSvc := services.NewCompatService(db, ai)
	compatSvc.DeepLinkBase = cfg.DeepLinkBase

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction (bearer tokens already masked)
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Resolve the caller when a token rides along; protected routes add
	// RequireAuth on top, which reuses this identity.
	r.Use(middleware.OptionalAuth(userSvc))

	// Idempotency validation (before rate limiting). A replayed request id is
	// served from storage and must not count against the bucket.
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{},
		func(ctx context.Context, userID uint, key string, _ time.Time) (bool, error) {
			if _, err := repo.GetReportByRequestID(ctx, db, key, userID); err == nil {
				return true, nil
			}
			if _, err := repo.GetInviteByRequestID(ctx, db, key, userID); err == nil {
				return true, nil
			}
			if p, err := repo.GetPackPurchase(ctx, db, key); err == nil && p.UserID == userID {
				return true, nil
			}
			return false, nil
		},
	))

	// 8) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderAuthToken, middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderAuthToken, middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Compress generated profile bodies; they are multi-kilobyte prose.
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/health/db", func(c *gin.Context) {
		var one int
		if err := db.WithContext(c.Request.Context()).Raw("SELECT 1").Scan(&one).Error; err != nil {
			handlers.Fail(c, http.StatusServiceUnavailable, handlers.ErrCodeInternal, "database unavailable")
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "ok"})
	})

	h := handlers.New(analysisSvc, userSvc, compatSvc)

	authed := middleware.RequireAuth(userSvc)

	// Quiz analysis; short analysis serves anonymous callers too
	r.POST("/analyze/short", h.AnalyzeShort)
	r.GET("/result/short/:runId", h.ShortResult)
	r.POST("/analyze/full", authed, h.AnalyzeFull)
	r.GET("/result/full/:runId", authed, h.FullResult)

	// Accounts
	r.POST("/auth/register", h.Register)
	r.POST("/auth/google", h.LoginGoogle)
	r.POST("/auth/telegram", h.LoginTelegram)
	r.GET("/auth/telegram/start", h.TelegramStart)
	r.POST("/auth/telegram/callback", h.TelegramCallback)
	r.POST("/dev/seed_user", h.SeedUser)

	r.GET("/users/me", authed, h.Me)
	r.GET("/users/lookup", authed, h.Lookup)

	// Purchases
	r.POST("/purchase/full", authed, h.PurchaseFull)
	r.POST("/purchase/compat_pack", authed, h.PurchaseCompatPack)

	// Compatibility, plus the aliases older mobile builds call
	compat := r.Group("/compatibility")
	{
		compat.POST("/register", h.Register)
		compat.GET("/me", authed, h.Me)
		compat.POST("/lookup", authed, h.LookupPost)
		compat.POST("/purchase_pack", authed, h.PurchaseCompatPackSized)

		compat.POST("/check", authed, h.CompatCheck)
		compat.POST("/invite", authed, h.CompatInvite)
		compat.POST("/accept_invite", authed, h.CompatAcceptInvite)
		compat.GET("/list", authed, h.CompatList)
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

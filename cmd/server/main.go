// Command server runs the public HTTP API.
//
// Boot order: load .env, configure logging, load and validate configuration,
// open the database and migrate, set up tracing, build the generation client,
// then serve until SIGINT/SIGTERM and drain gracefully.
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

	"github.com/reino-app/bestias-backend/internal/config"
	"github.com/reino-app/bestias-backend/internal/genai"
	httpapi "github.com/reino-app/bestias-backend/internal/http"
	"github.com/reino-app/bestias-backend/internal/observability"
	"github.com/reino-app/bestias-backend/internal/repo"
	"github.com/reino-app/bestias-backend/internal/sysutil"
)

const version = "1.0.0"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		if err := shutdownOTel(context.Background()); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath, cfg.OTEL.Enabled)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	ai := genai.NewOpenAI(genai.Config{
		APIKey:            cfg.GenAI.APIKey,
		BaseURL:           cfg.GenAI.BaseURL,
		FastModel:         cfg.GenAI.FastModel,
		StrongModel:       cfg.GenAI.StrongModel,
		ResolverMaxTokens: cfg.GenAI.ResolverMaxTokens,
		ShortMaxTokens:    cfg.GenAI.ShortMaxTokens,
		FullMaxTokens:     cfg.GenAI.FullMaxTokens,
		CompatMaxTokens:   cfg.GenAI.CompatMaxTokens,
		Timeout:           cfg.GenAI.Timeout,
	})

	r := gin.New()
	httpapi.RegisterRoutes(r, db, ai, cfg)

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

	<-ctx.Done()
	log.Info().Msg("shutting down")

	drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

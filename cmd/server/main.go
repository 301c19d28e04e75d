package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dellplatz/diag-backend/internal/cache"
	"github.com/dellplatz/diag-backend/internal/config"
	"github.com/dellplatz/diag-backend/internal/database"
	"github.com/dellplatz/diag-backend/internal/handler"
	"github.com/dellplatz/diag-backend/internal/logger"
	"github.com/dellplatz/diag-backend/internal/middleware"
	"github.com/dellplatz/diag-backend/internal/renderer"
	"github.com/dellplatz/diag-backend/internal/repository"
	"github.com/dellplatz/diag-backend/internal/router"
	"github.com/dellplatz/diag-backend/internal/service"
	"github.com/dellplatz/diag-backend/internal/storage"
	"github.com/dellplatz/diag-backend/internal/validator"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("renderer", cfg.RendererURL).
		Msg("Starting diagnostics backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Artifact Storage ──────────────────────────────────────────────
	blobs, err := storage.NewFSStore(cfg.ArtifactDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.ArtifactDir).Msg("Failed to prepare artifact directory")
	}

	// ─── Initialize Repositories ───────────────────────────────────────
	catalogRepo := repository.NewCatalogRepository(pool)
	subjectRepo := repository.NewSubjectRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	catalogCache := cache.NewCatalogCache(rdb, cfg.CatalogCacheTTL, log)
	subjectLock := cache.NewSubjectLock(rdb, cfg.LockTTL, cfg.LockWait)

	catalogService := service.NewCatalogService(catalogRepo, catalogCache, log)
	subjectService := service.NewSubjectService(subjectRepo, catalogService, log)
	answerService := service.NewAnswerService(answerRepo, subjectRepo, catalogRepo, subjectLock, log)
	scoringService := service.NewScoringService(answerRepo, subjectRepo, log)
	reportService := service.NewReportService(
		scoringService,
		renderer.NewClient(cfg.RendererURL, cfg.RendererTimeout),
		blobs,
		service.RenderPolicy{
			Timeout: cfg.RendererTimeout,
			Retries: cfg.RenderRetries,
			Backoff: cfg.RenderBackoff,
		},
		log,
	)

	// ─── Seed Catalog ──────────────────────────────────────────────────
	// Load the catalog BEFORE accepting traffic so the first subjects can
	// be assigned to it.
	if cfg.SeedOnStart {
		if _, err := catalogService.SeedFromFile(ctx, cfg.SeedFile); err != nil {
			log.Fatal().Err(err).Str("file", cfg.SeedFile).Msg("Failed to seed catalog")
		}
	}

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Catalog: handler.NewCatalogHandler(catalogService, cfg.SeedFile, log),
		Subject: handler.NewSubjectHandler(subjectService, answerService, log),
		Report:  handler.NewReportHandler(subjectService, reportService, scoringService, log),
		System: handler.NewSystemHandler(map[string]handler.Check{
			"postgres": pool.Ping,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}, cfg.ArtifactDir, log),
	}

	subjectLimiter := middleware.NewRateLimiter(cfg.SubjectRateLimit, time.Minute)
	stopCleanup := make(chan struct{})
	go subjectLimiter.Cleanup(stopCleanup)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, cfg, subjectLimiter)

	// ─── Create HTTP Server ────────────────────────────────────────────
	// WriteTimeout leaves room for a full render with retries.
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      time.Duration(cfg.RenderRetries+1)*(cfg.RendererTimeout+cfg.RenderBackoff*4) + 10*time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests and let in-flight evaluations finish.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.RendererTimeout+5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the rate limiter sweep.
	close(stopCleanup)

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}

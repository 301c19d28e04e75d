package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dellplatz/diag-backend/internal/cache"
	"github.com/dellplatz/diag-backend/internal/config"
	"github.com/dellplatz/diag-backend/internal/database"
	"github.com/dellplatz/diag-backend/internal/logger"
	"github.com/dellplatz/diag-backend/internal/repository"
	"github.com/dellplatz/diag-backend/internal/service"
)

func main() {
	cfg := config.Load()

	var file string
	flag.StringVar(&file, "file", cfg.SeedFile, "Catalog document to load")
	flag.Parse()

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// The cache only needs refreshing when Redis is around; the database is
	// the source of truth either way.
	var questionCache service.QuestionCache
	if rdb, err := database.NewRedisClient(ctx, cfg, log); err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, catalog cache not refreshed")
	} else {
		defer rdb.Close()
		questionCache = cache.NewCatalogCache(rdb, cfg.CatalogCacheTTL, log)
	}

	catalogService := service.NewCatalogService(repository.NewCatalogRepository(pool), questionCache, log)

	fmt.Printf("=== Seeding catalog from %s ===\n", file)

	res, err := catalogService.SeedFromFile(ctx, file)
	if err != nil {
		log.Fatal().Err(err).Str("file", file).Msg("Failed to seed catalog")
	}

	fmt.Printf("\nSeed completed! %d tests, %d questions.\n", res.Tests, res.Questions)
	if res.PrunedAssignments > 0 || res.PrunedAnswers > 0 {
		fmt.Printf("Removed %d assignments and %d answers referring to dropped tests or questions.\n",
			res.PrunedAssignments, res.PrunedAnswers)
	}
}

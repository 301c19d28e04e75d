package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dellplatz/diag-backend/internal/config"
	"github.com/dellplatz/diag-backend/internal/database"
	"github.com/dellplatz/diag-backend/internal/logger"
	"github.com/dellplatz/diag-backend/internal/model"
	"github.com/dellplatz/diag-backend/internal/repository"
	"github.com/dellplatz/diag-backend/internal/service"
	"golang.org/x/term"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	var testList string
	flag.StringVar(&testList, "tests", "", "Comma-separated test ids to assign, e.g. aq,bdi")
	flag.Parse()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Initialize Services ───────────────────────────────────────────
	catalogService := service.NewCatalogService(repository.NewCatalogRepository(pool), nil, log)
	subjectService := service.NewSubjectService(repository.NewSubjectRepository(pool), catalogService, log)

	// ─── CLI Input ─────────────────────────────────────────────────────
	if testList == "" {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Println("Error: -tests is required when stdin is not a terminal")
			os.Exit(2)
		}
		testList, err = prompt(ctx, catalogService)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read test selection")
		}
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	sub, err := subjectService.Create(ctx, strings.Split(testList, ","))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create subject")
	}

	fmt.Printf("\nSuccess! Subject created.\n")
	fmt.Printf("  Subject ID:   %s\n", sub.ID)
	fmt.Printf("  Retrieval ID: %s\n", sub.RetrievalID)
	for _, t := range sub.Tests {
		fmt.Printf("  %-12s /tests/%s/%s\n", t.Name, sub.ID, t.ID)
	}
}

// prompt lists the catalog and reads the selected test ids from stdin.
func prompt(ctx context.Context, catalog *service.CatalogService) (string, error) {
	tests, err := catalog.ListTests(ctx)
	if err != nil {
		return "", err
	}
	if len(tests) == 0 {
		return "", fmt.Errorf("catalog is empty, run seed-catalog first")
	}

	fmt.Println("=== Create New Subject ===")
	printTests(tests)

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Enter test ids (comma-separated): ")
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func printTests(tests []model.Test) {
	for _, t := range tests {
		fmt.Printf("  %-12s %s\n", t.ID, t.Name)
	}
}

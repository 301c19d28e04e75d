package router

import (
	"strings"
	"time"

	"github.com/dellplatz/diag-backend/internal/config"
	"github.com/dellplatz/diag-backend/internal/handler"
	"github.com/dellplatz/diag-backend/internal/middleware"
	"github.com/dellplatz/diag-backend/internal/response"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Catalog responses may be cached by clients for this long.
const catalogMaxAge = 300

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Catalog *handler.CatalogHandler
	Subject *handler.SubjectHandler
	Report  *handler.ReportHandler
	System  *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// subjectLimiter throttles subject creation per client IP.
func SetupRouter(handlers *Handlers, cfg *config.Config, subjectLimiter *middleware.RateLimiter) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// PDF and XLSX downloads are already compressed.
	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{
		Quality: middleware.DefaultBrotliConfig.Quality,
		Skipper: func(c *gin.Context) bool {
			p := c.FullPath()
			return strings.Contains(p, "/reports/") || strings.Contains(p, "/exports/")
		},
	}))

	router.GET("/health", handlers.System.Health)

	api := router.Group("/api/v1")

	// ─── 1. Catalog (read-only, cacheable) ─────────────────────────────
	catalog := api.Group("/tests")
	catalog.Use(middleware.CacheControl(catalogMaxAge))
	{
		catalog.GET("", handlers.Catalog.ListTests)
		catalog.GET("/:test_id/questions", handlers.Catalog.ListQuestions)
	}

	// ─── 2. Subjects, answers and evaluation ───────────────────────────
	subjects := api.Group("/subjects")
	subjects.Use(middleware.NoStore())
	{
		subjects.POST("", subjectLimiter.Middleware(), handlers.Subject.Create)
		subjects.GET("/:subject_id", handlers.Subject.Get)
		subjects.GET("/:subject_id/tests", handlers.Subject.ListTests)
		subjects.GET("/:subject_id/tests/:test_id/questions", handlers.Subject.Questions)
		subjects.GET("/:subject_id/tests/:test_id/answers", handlers.Subject.ListAnswers)
		subjects.PUT("/:subject_id/answers", handlers.Subject.SubmitAnswers)
		subjects.POST("/:subject_id/tests/:test_id/evaluation", handlers.Report.Evaluate)
	}

	// ─── 3. Retrieval (by retrieval id) ────────────────────────────────
	retrieval := api.Group("/retrieval")
	retrieval.Use(middleware.NoStore())
	{
		retrieval.GET("/:retrieval_id", handlers.Report.Retrieval)
		retrieval.GET("/:retrieval_id/reports/:test_id", handlers.Report.Download)
		retrieval.GET("/:retrieval_id/exports/:test_id", handlers.Report.Export)
	}

	// ─── 4. Admin ──────────────────────────────────────────────────────
	admin := api.Group("/admin")
	{
		admin.POST("/catalog/seed", handlers.Catalog.Seed)
	}

	return router
}

package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dellplatz/diag-backend/internal/config"
	"github.com/dellplatz/diag-backend/internal/handler"
	"github.com/dellplatz/diag-backend/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	log := zerolog.Nop()
	handlers := &Handlers{
		Catalog: handler.NewCatalogHandler(nil, "", log),
		Subject: handler.NewSubjectHandler(nil, nil, log),
		Report:  handler.NewReportHandler(nil, nil, nil, log),
		System:  handler.NewSystemHandler(nil, t.TempDir(), log),
	}
	cfg := &config.Config{GinMode: gin.TestMode}
	return SetupRouter(handlers, cfg, middleware.NewRateLimiter(10, time.Minute))
}

func TestSetupRouter_Routes(t *testing.T) {
	r := testRouter(t)

	got := make(map[string]bool)
	for _, ri := range r.Routes() {
		got[ri.Method+" "+ri.Path] = true
	}

	for _, route := range []string{
		"GET /health",
		"GET /api/v1/tests",
		"GET /api/v1/tests/:test_id/questions",
		"POST /api/v1/subjects",
		"GET /api/v1/subjects/:subject_id",
		"GET /api/v1/subjects/:subject_id/tests",
		"GET /api/v1/subjects/:subject_id/tests/:test_id/questions",
		"GET /api/v1/subjects/:subject_id/tests/:test_id/answers",
		"PUT /api/v1/subjects/:subject_id/answers",
		"POST /api/v1/subjects/:subject_id/tests/:test_id/evaluation",
		"GET /api/v1/retrieval/:retrieval_id",
		"GET /api/v1/retrieval/:retrieval_id/reports/:test_id",
		"GET /api/v1/retrieval/:retrieval_id/exports/:test_id",
		"POST /api/v1/admin/catalog/seed",
	} {
		assert.True(t, got[route], "missing route %s", route)
	}
}

func TestSetupRouter_Headers(t *testing.T) {
	r := testRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	// Parameter validation answers before any service is touched.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/subjects/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/dellplatz/diag-backend/internal/model"
	"github.com/dellplatz/diag-backend/internal/response"
	"github.com/dellplatz/diag-backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Largest seed document accepted over HTTP.
const maxSeedBody = 8 << 20

// Catalog is the catalog functionality the API exposes.
type Catalog interface {
	ListTests(ctx context.Context) ([]model.Test, error)
	ListQuestions(ctx context.Context, testID string) ([]model.Question, error)
	Seed(ctx context.Context, doc *model.CatalogDocument) (*model.SeedResult, error)
	SeedFromFile(ctx context.Context, path string) (*model.SeedResult, error)
}

type CatalogHandler struct {
	catalog  Catalog
	seedFile string
	log      zerolog.Logger
}

func NewCatalogHandler(catalog Catalog, seedFile string, log zerolog.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog:  catalog,
		seedFile: seedFile,
		log:      log.With().Str("component", "catalog_handler").Logger(),
	}
}

// ListTests godoc
// GET /api/v1/tests
func (h *CatalogHandler) ListTests(c *gin.Context) {
	tests, err := h.catalog.ListTests(c.Request.Context())
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"tests": tests})
}

// ListQuestions godoc
// GET /api/v1/tests/:test_id/questions
func (h *CatalogHandler) ListQuestions(c *gin.Context) {
	questions, err := h.catalog.ListQuestions(c.Request.Context(), c.Param("test_id"))
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// Seed godoc
// POST /api/v1/admin/catalog/seed
// With a JSON body the catalog is replaced by that document, otherwise the
// configured seed file is loaded again.
func (h *CatalogHandler) Seed(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSeedBody+1))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}
	if len(raw) > maxSeedBody {
		response.Fail(c, http.StatusRequestEntityTooLarge, response.ErrInvalidPayload)
		return
	}

	var res *model.SeedResult
	if len(raw) == 0 {
		res, err = h.catalog.SeedFromFile(c.Request.Context(), h.seedFile)
	} else {
		var doc *model.CatalogDocument
		if doc, err = service.ParseCatalog(raw); err == nil {
			res, err = h.catalog.Seed(c.Request.Context(), doc)
		}
	}
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"seed": res})
}

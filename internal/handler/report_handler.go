package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dellplatz/diag-backend/internal/export"
	"github.com/dellplatz/diag-backend/internal/model"
	"github.com/dellplatz/diag-backend/internal/response"
	"github.com/dellplatz/diag-backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Reports evaluates tests and serves the stored report artifacts.
type Reports interface {
	Generate(ctx context.Context, subjectID, testID string) (*model.Report, error)
	Open(subjectID, testID string) (io.ReadCloser, error)
}

// Evaluator scores a subject's answers without rendering.
type Evaluator interface {
	Evaluate(ctx context.Context, subjectID, testID string) (*model.Evaluation, error)
}

type ReportHandler struct {
	subjects  Subjects
	reports   Reports
	evaluator Evaluator
	log       zerolog.Logger
}

func NewReportHandler(subjects Subjects, reports Reports, evaluator Evaluator, log zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		subjects:  subjects,
		reports:   reports,
		evaluator: evaluator,
		log:       log.With().Str("component", "report_handler").Logger(),
	}
}

// Evaluate godoc
// POST /api/v1/subjects/:subject_id/tests/:test_id/evaluation
func (h *ReportHandler) Evaluate(c *gin.Context) {
	id, ok := subjectParam(c)
	if !ok {
		return
	}
	testID := c.Param("test_id")

	sub, err := h.subjects.Get(c.Request.Context(), id)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	rep, err := h.reports.Generate(c.Request.Context(), id, testID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	rep.DownloadURL = reportURL(sub.RetrievalID, testID)
	response.Success(c, http.StatusOK, gin.H{"report": rep})
}

// Retrieval godoc
// GET /api/v1/retrieval/:retrieval_id
func (h *ReportHandler) Retrieval(c *gin.Context) {
	rid, ok := retrievalParam(c)
	if !ok {
		return
	}

	sub, err := h.subjects.GetByRetrievalID(c.Request.Context(), rid)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	links := make(map[string]string, len(sub.Tests))
	for _, t := range sub.Tests {
		links[t.ID] = reportURL(rid, t.ID)
	}
	response.Success(c, http.StatusOK, gin.H{"subject": sub, "reports": links})
}

// Download godoc
// GET /api/v1/retrieval/:retrieval_id/reports/:test_id
func (h *ReportHandler) Download(c *gin.Context) {
	rid, ok := retrievalParam(c)
	if !ok {
		return
	}
	testID := c.Param("test_id")

	sub, err := h.subjects.GetByRetrievalID(c.Request.Context(), rid)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	rc, err := h.reports.Open(sub.ID, testID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrReportNotFound)
			return
		}
		failWith(c, h.log, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, -1, "application/pdf", rc, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s-%s.pdf"`, sub.ID, testID),
	})
}

// Export godoc
// GET /api/v1/retrieval/:retrieval_id/exports/:test_id
// Scores the current answers and returns them as a spreadsheet.
func (h *ReportHandler) Export(c *gin.Context) {
	rid, ok := retrievalParam(c)
	if !ok {
		return
	}
	testID := c.Param("test_id")

	sub, err := h.subjects.GetByRetrievalID(c.Request.Context(), rid)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	ev, err := h.evaluator.Evaluate(c.Request.Context(), sub.ID, testID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	buf, err := export.Workbook(ev)
	if err != nil {
		failWith(c, h.log, fmt.Errorf("build workbook: %w", err))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-%s.xlsx"`, sub.ID, testID))
	c.Data(http.StatusOK, export.ContentTypeXLSX, buf.Bytes())
}

func retrievalParam(c *gin.Context) (uuid.UUID, bool) {
	rid, err := uuid.Parse(c.Param("retrieval_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return rid, true
}

func reportURL(retrievalID uuid.UUID, testID string) string {
	return fmt.Sprintf("/api/v1/retrieval/%s/reports/%s", retrievalID, testID)
}

package handler

import (
	"context"
	"net/http"

	"github.com/dellplatz/diag-backend/internal/model"
	"github.com/dellplatz/diag-backend/internal/response"
	"github.com/dellplatz/diag-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Subjects is the subject registry functionality the API exposes.
type Subjects interface {
	Create(ctx context.Context, testIDs []string) (*model.SubjectWithTests, error)
	Get(ctx context.Context, id string) (*model.Subject, error)
	GetByRetrievalID(ctx context.Context, retrievalID uuid.UUID) (*model.SubjectWithTests, error)
	ListAssignedTests(ctx context.Context, subjectID string) ([]model.Test, error)
	Questions(ctx context.Context, subjectID, testID string) ([]model.Question, error)
}

// Answers is the answer store functionality the API exposes.
type Answers interface {
	Submit(ctx context.Context, subjectID string, answers map[string]int) error
	List(ctx context.Context, subjectID, testID string) ([]model.Answer, error)
}

type SubjectHandler struct {
	subjects Subjects
	answers  Answers
	log      zerolog.Logger
}

func NewSubjectHandler(subjects Subjects, answers Answers, log zerolog.Logger) *SubjectHandler {
	return &SubjectHandler{
		subjects: subjects,
		answers:  answers,
		log:      log.With().Str("component", "subject_handler").Logger(),
	}
}

// Create godoc
// POST /api/v1/subjects
func (h *SubjectHandler) Create(c *gin.Context) {
	var req model.CreateSubjectRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sub, err := h.subjects.Create(c.Request.Context(), req.TestIDs)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"subject": sub})
}

// Get godoc
// GET /api/v1/subjects/:subject_id
func (h *SubjectHandler) Get(c *gin.Context) {
	id, ok := subjectParam(c)
	if !ok {
		return
	}

	sub, err := h.subjects.Get(c.Request.Context(), id)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"subject": sub})
}

// ListTests godoc
// GET /api/v1/subjects/:subject_id/tests
func (h *SubjectHandler) ListTests(c *gin.Context) {
	id, ok := subjectParam(c)
	if !ok {
		return
	}

	tests, err := h.subjects.ListAssignedTests(c.Request.Context(), id)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"tests": tests})
}

// Questions godoc
// GET /api/v1/subjects/:subject_id/tests/:test_id/questions
func (h *SubjectHandler) Questions(c *gin.Context) {
	id, ok := subjectParam(c)
	if !ok {
		return
	}

	questions, err := h.subjects.Questions(c.Request.Context(), id, c.Param("test_id"))
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// SubmitAnswers godoc
// PUT /api/v1/subjects/:subject_id/answers
func (h *SubjectHandler) SubmitAnswers(c *gin.Context) {
	id, ok := subjectParam(c)
	if !ok {
		return
	}

	var req model.SubmitAnswersRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.answers.Submit(c.Request.Context(), id, req.Answers); err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"saved": len(req.Answers)})
}

// ListAnswers godoc
// GET /api/v1/subjects/:subject_id/tests/:test_id/answers
func (h *SubjectHandler) ListAnswers(c *gin.Context) {
	id, ok := subjectParam(c)
	if !ok {
		return
	}

	answers, err := h.answers.List(c.Request.Context(), id, c.Param("test_id"))
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"answers": answers})
}

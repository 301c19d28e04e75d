package handler

import (
	"errors"
	"net/http"

	"github.com/dellplatz/diag-backend/internal/logger"
	"github.com/dellplatz/diag-backend/internal/response"
	"github.com/dellplatz/diag-backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// failWith maps a service error onto the response envelope. Client errors
// carry the error text as detail; server-side failures are logged instead.
func failWith(c *gin.Context, log zerolog.Logger, err error) {
	detail := map[string]string{"detail": err.Error()}

	switch {
	case errors.Is(err, service.ErrNotAssigned):
		response.FailWithFields(c, http.StatusNotFound, response.ErrNotAssigned, detail)
	case errors.Is(err, service.ErrNotFound):
		response.FailWithFields(c, http.StatusNotFound, response.ErrNotFound, detail)
	case errors.Is(err, service.ErrValidation):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, detail)
	case errors.Is(err, service.ErrSubjectBusy):
		response.Fail(c, http.StatusConflict, response.ErrSubjectBusy)
	case errors.Is(err, service.ErrIntegrity):
		logger.FromContext(c.Request.Context(), log).Error().Err(err).Msg("Integrity violation")
		response.Fail(c, http.StatusConflict, response.ErrIntegrity)
	case errors.Is(err, service.ErrUpstream):
		logger.FromContext(c.Request.Context(), log).Error().Err(err).Msg("Upstream failure")
		response.Fail(c, http.StatusBadGateway, response.ErrUpstream)
	default:
		logger.FromContext(c.Request.Context(), log).Error().Err(err).Msg("Unhandled error")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// subjectParam reads the :subject_id path parameter. Subject ids are UUIDs.
func subjectParam(c *gin.Context) (string, bool) {
	id := c.Param("subject_id")
	if _, err := uuid.Parse(id); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return "", false
	}
	return id, true
}

package validator

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dellplatz/diag-backend/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bind(t *testing.T, body string, dst any) map[string]string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return Bind(c, dst)
}

func TestBind_CreateSubject(t *testing.T) {
	Setup()

	var ok model.CreateSubjectRequest
	require.Nil(t, bind(t, `{"test_ids": ["aq", "bdi-ii"]}`, &ok))
	assert.Equal(t, []string{"aq", "bdi-ii"}, ok.TestIDs)

	var bad model.CreateSubjectRequest
	fields := bind(t, `{"test_ids": ["aq", "../etc"]}`, &bad)
	require.NotNil(t, fields)
	assert.Contains(t, fields["test_ids[1]"], "catalog id")

	var empty model.CreateSubjectRequest
	fields = bind(t, `{"test_ids": []}`, &empty)
	assert.Contains(t, fields, "test_ids")
}

func TestBind_SubmitAnswers(t *testing.T) {
	Setup()

	var ok model.SubmitAnswersRequest
	require.Nil(t, bind(t, `{"answers": {"Q1": 1, "Q2": 0}}`, &ok))
	assert.Equal(t, map[string]int{"Q1": 1, "Q2": 0}, ok.Answers)

	var negative model.SubmitAnswersRequest
	assert.NotNil(t, bind(t, `{"answers": {"Q1": -1}}`, &negative))

	var malformed model.SubmitAnswersRequest
	fields := bind(t, `{"answers": [1, 2]}`, &malformed)
	assert.Contains(t, fields, "detail")
}

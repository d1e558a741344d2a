package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obf-labs/issuer-gateway/internal/dto"
	"github.com/obf-labs/issuer-gateway/internal/models"
	"github.com/obf-labs/issuer-gateway/internal/service"
)

type reviewServiceMock struct {
	completion *models.CourseCompletion
	course     service.CourseContext
	err        error
}

func (m *reviewServiceMock) HandleCompletion(_ context.Context, completion models.CourseCompletion, course service.CourseContext) error {
	if m.err != nil {
		return m.err
	}
	m.completion = &completion
	m.course = course
	return nil
}

func TestCompletionHandlerIngest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &reviewServiceMock{}
	handler := NewCompletionHandler(mock)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(dto.CompletionEventRequest{
		UserID:     "u1",
		CourseID:   "c1",
		CourseName: "Intro",
		Completed:  true,
	})
	req, _ := http.NewRequest(http.MethodPost, "/events/completions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Ingest(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.NotNil(t, mock.completion)
	assert.Equal(t, "u1", mock.completion.UserID)
	assert.True(t, mock.completion.Completed)
	assert.Equal(t, "Intro", mock.course.CourseName)
}

func TestCompletionHandlerIngestRejectsMissingUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &reviewServiceMock{}
	handler := NewCompletionHandler(mock)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/events/completions", bytes.NewReader([]byte(`{"course_id":"c1"}`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Ingest(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, mock.completion)
}

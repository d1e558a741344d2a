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
	appErrors "github.com/obf-labs/issuer-gateway/pkg/errors"
)

type criterionServiceMock struct {
	created   *models.Criterion
	createErr error
	deleteErr error
}

func (m *criterionServiceMock) Create(_ context.Context, criterion *models.Criterion) error {
	if m.createErr != nil {
		return m.createErr
	}
	criterion.ID = 3
	m.created = criterion
	return nil
}

func (m *criterionServiceMock) Get(context.Context, int64) (*models.Criterion, error) {
	return nil, appErrors.ErrNotFound
}

func (m *criterionServiceMock) List(context.Context) ([]models.Criterion, error) {
	return nil, nil
}

func (m *criterionServiceMock) Delete(context.Context, int64) error {
	return m.deleteErr
}

func TestCriterionHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &criterionServiceMock{}
	handler := NewCriterionHandler(mock)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(dto.CreateCriterionRequest{
		BadgeID:          "b1",
		ConnectionID:     1,
		CompletionMethod: 1,
		Items:            []dto.CriterionItemRequest{{Kind: "course", CourseID: "c1"}},
	})
	req, _ := http.NewRequest(http.MethodPost, "/criteria", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, mock.created)
	assert.Equal(t, "b1", mock.created.BadgeID)
	assert.Len(t, mock.created.Items, 1)
}

func TestCriterionHandlerCreateRejectsEmptyItems(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &criterionServiceMock{}
	handler := NewCriterionHandler(mock)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(map[string]any{
		"badge_id":          "b1",
		"connection_id":     1,
		"completion_method": 1,
		"items":             []any{},
	})
	req, _ := http.NewRequest(http.MethodPost, "/criteria", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, mock.created)
}

func TestCriterionHandlerDeleteConflictWhenMet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &criterionServiceMock{deleteErr: appErrors.Clone(appErrors.ErrConflict, "criterion already met by at least one user")}
	handler := NewCriterionHandler(mock)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodDelete, "/criteria/3", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "3"}}

	handler.Delete(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCriterionHandlerGetRejectsBadID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCriterionHandler(&criterionServiceMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/criteria/abc", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "abc"}}

	handler.Get(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

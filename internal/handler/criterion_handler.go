package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/obf-labs/issuer-gateway/internal/dto"
	"github.com/obf-labs/issuer-gateway/internal/models"
	appErrors "github.com/obf-labs/issuer-gateway/pkg/errors"
	"github.com/obf-labs/issuer-gateway/pkg/response"
)

type criterionService interface {
	Create(ctx context.Context, criterion *models.Criterion) error
	Get(ctx context.Context, id int64) (*models.Criterion, error)
	List(ctx context.Context) ([]models.Criterion, error)
	Delete(ctx context.Context, id int64) error
}

// CriterionHandler exposes awarding-rule management.
type CriterionHandler struct {
	service criterionService
}

// NewCriterionHandler builds a new handler.
func NewCriterionHandler(service criterionService) *CriterionHandler {
	return &CriterionHandler{service: service}
}

func pathID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, "id must be an integer")
	}
	return id, nil
}

// Create godoc
// @Summary Create an awarding rule
// @Tags Criteria
// @Accept json
// @Produce json
// @Param payload body dto.CreateCriterionRequest true "Criterion payload"
// @Success 201 {object} response.Envelope
// @Router /criteria [post]
func (h *CriterionHandler) Create(c *gin.Context) {
	var req dto.CreateCriterionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid criterion payload"))
		return
	}
	criterion := req.ToModel()
	if err := h.service.Create(c.Request.Context(), &criterion); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, criterion)
}

// List godoc
// @Summary List awarding rules
// @Tags Criteria
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /criteria [get]
func (h *CriterionHandler) List(c *gin.Context) {
	criteria, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, criteria, nil)
}

// Get godoc
// @Summary Get awarding rule by ID
// @Tags Criteria
// @Produce json
// @Param id path int true "Criterion ID"
// @Success 200 {object} response.Envelope
// @Router /criteria/{id} [get]
func (h *CriterionHandler) Get(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	criterion, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, criterion, nil)
}

// Delete godoc
// @Summary Delete an awarding rule
// @Tags Criteria
// @Produce json
// @Param id path int true "Criterion ID"
// @Success 204
// @Router /criteria/{id} [delete]
func (h *CriterionHandler) Delete(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/obf-labs/issuer-gateway/internal/dto"
	"github.com/obf-labs/issuer-gateway/internal/models"
	"github.com/obf-labs/issuer-gateway/internal/service"
	appErrors "github.com/obf-labs/issuer-gateway/pkg/errors"
	"github.com/obf-labs/issuer-gateway/pkg/response"
)

type reviewService interface {
	HandleCompletion(ctx context.Context, completion models.CourseCompletion, course service.CourseContext) error
}

// CompletionHandler ingests completion events from the host platform and
// feeds them into the review engine.
type CompletionHandler struct {
	service reviewService
}

// NewCompletionHandler builds a new handler.
func NewCompletionHandler(service reviewService) *CompletionHandler {
	return &CompletionHandler{service: service}
}

// Ingest godoc
// @Summary Ingest a course completion event
// @Tags Completions
// @Accept json
// @Produce json
// @Param payload body dto.CompletionEventRequest true "Completion payload"
// @Success 202 {object} response.Envelope
// @Router /events/completions [post]
func (h *CompletionHandler) Ingest(c *gin.Context) {
	var req dto.CompletionEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid completion payload"))
		return
	}

	course := service.CourseContext{
		CourseID:     req.CourseID,
		CourseName:   req.CourseName,
		ActivityName: req.ActivityName,
	}
	if err := h.service.HandleCompletion(c.Request.Context(), req.ToModel(), course); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"accepted": true}, nil)
}

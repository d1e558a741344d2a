package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/obf-labs/issuer-gateway/internal/models"
	"github.com/obf-labs/issuer-gateway/pkg/response"
)

type failedRecordService interface {
	List(ctx context.Context) ([]models.IssueFailedRecord, error)
	Get(ctx context.Context, id int64) (*models.IssueFailedRecord, error)
	Delete(ctx context.Context, id int64) error
}

// FailedRecordHandler exposes the issuance retry queue.
type FailedRecordHandler struct {
	service failedRecordService
}

// NewFailedRecordHandler builds a new handler.
func NewFailedRecordHandler(service failedRecordService) *FailedRecordHandler {
	return &FailedRecordHandler{service: service}
}

// List godoc
// @Summary List queued issuance failures
// @Tags FailedRecords
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /failed-records [get]
func (h *FailedRecordHandler) List(c *gin.Context) {
	records, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Get godoc
// @Summary Get one queued issuance failure
// @Tags FailedRecords
// @Produce json
// @Param id path int true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /failed-records/{id} [get]
func (h *FailedRecordHandler) Get(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	record, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Delete godoc
// @Summary Abandon a queued issuance failure
// @Tags FailedRecords
// @Produce json
// @Param id path int true "Record ID"
// @Success 204
// @Router /failed-records/{id} [delete]
func (h *FailedRecordHandler) Delete(c *gin.Context) {
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

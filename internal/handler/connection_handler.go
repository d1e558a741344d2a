package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/obf-labs/issuer-gateway/internal/dto"
	"github.com/obf-labs/issuer-gateway/internal/models"
	appErrors "github.com/obf-labs/issuer-gateway/pkg/errors"
	"github.com/obf-labs/issuer-gateway/pkg/response"
)

type connectionService interface {
	List(ctx context.Context) ([]models.OAuth2Connection, error)
	Get(ctx context.Context, id int64) (*models.OAuth2Connection, error)
	Create(ctx context.Context, conn *models.OAuth2Connection) error
	Delete(ctx context.Context, id int64) error
	Test(ctx context.Context, id int64) (int, error)
}

// ConnectionHandler exposes credential management.
type ConnectionHandler struct {
	service connectionService
}

// NewConnectionHandler builds a new handler.
func NewConnectionHandler(service connectionService) *ConnectionHandler {
	return &ConnectionHandler{service: service}
}

// List godoc
// @Summary List stored connections
// @Tags Connections
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /connections [get]
func (h *ConnectionHandler) List(c *gin.Context) {
	conns, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]dto.ConnectionResponse, 0, len(conns))
	for _, conn := range conns {
		out = append(out, dto.NewConnectionResponse(conn))
	}
	response.JSON(c, http.StatusOK, out, nil)
}

// Get godoc
// @Summary Get connection by ID
// @Tags Connections
// @Produce json
// @Param id path int true "Connection ID"
// @Success 200 {object} response.Envelope
// @Router /connections/{id} [get]
func (h *ConnectionHandler) Get(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	conn, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewConnectionResponse(*conn), nil)
}

// Create godoc
// @Summary Store a new connection
// @Tags Connections
// @Accept json
// @Produce json
// @Param payload body dto.CreateConnectionRequest true "Connection payload"
// @Success 201 {object} response.Envelope
// @Router /connections [post]
func (h *ConnectionHandler) Create(c *gin.Context) {
	var req dto.CreateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid connection payload"))
		return
	}
	conn := req.ToModel()
	if err := h.service.Create(c.Request.Context(), &conn); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewConnectionResponse(conn))
}

// Delete godoc
// @Summary Remove a stored connection
// @Tags Connections
// @Produce json
// @Param id path int true "Connection ID"
// @Success 204
// @Router /connections/{id} [delete]
func (h *ConnectionHandler) Delete(c *gin.Context) {
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

// Test godoc
// @Summary Probe stored credentials against the remote API
// @Tags Connections
// @Produce json
// @Param id path int true "Connection ID"
// @Success 200 {object} response.Envelope
// @Router /connections/{id}/test [post]
func (h *ConnectionHandler) Test(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	code, err := h.service.Test(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	result := dto.ConnectionTestResponse{OK: code == models.ConnectionOK}
	if !result.OK {
		result.Status = code
	}
	response.JSON(c, http.StatusOK, result, nil)
}

package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/obf-labs/issuer-gateway/internal/dto"
	"github.com/obf-labs/issuer-gateway/internal/models"
	appErrors "github.com/obf-labs/issuer-gateway/pkg/errors"
	"github.com/obf-labs/issuer-gateway/pkg/response"
)

type badgeService interface {
	ListBadges(ctx context.Context, connectionID int64, categories []string, query string) ([]models.Badge, error)
	GetBadge(ctx context.Context, connectionID int64, badgeID string) (*models.Badge, error)
	GetCategories(ctx context.Context, connectionID int64) ([]string, error)
	ExportBadge(ctx context.Context, connectionID int64, badge models.Badge) error
	DeleteBadge(ctx context.Context, connectionID int64, badgeID string) error
	GetAssertions(ctx context.Context, connectionID int64, badgeID, email string) ([]models.Assertion, error)
	GetEvent(ctx context.Context, connectionID int64, eventID string) (*models.Assertion, error)
}

// BadgeHandler exposes the remote badge catalogue.
type BadgeHandler struct {
	service badgeService
}

// NewBadgeHandler builds a new handler.
func NewBadgeHandler(service badgeService) *BadgeHandler {
	return &BadgeHandler{service: service}
}

func connectionID(c *gin.Context) (int64, error) {
	raw := c.Query("connection_id")
	if raw == "" {
		return 0, appErrors.Clone(appErrors.ErrValidation, "connection_id query parameter is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, "connection_id must be an integer")
	}
	return id, nil
}

// List godoc
// @Summary List issuable badges
// @Tags Badges
// @Produce json
// @Param connection_id query int true "Connection ID"
// @Param category query string false "Pipe-free comma separated category filter"
// @Param query query string false "Name search"
// @Success 200 {object} response.Envelope
// @Router /badges [get]
func (h *BadgeHandler) List(c *gin.Context) {
	connID, err := connectionID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var categories []string
	if raw := c.Query("category"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				categories = append(categories, trimmed)
			}
		}
	}

	badges, err := h.service.ListBadges(c.Request.Context(), connID, categories, c.Query("query"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, badges, nil)
}

// Get godoc
// @Summary Get badge by ID
// @Tags Badges
// @Produce json
// @Param id path string true "Badge ID"
// @Param connection_id query int true "Connection ID"
// @Success 200 {object} response.Envelope
// @Router /badges/{id} [get]
func (h *BadgeHandler) Get(c *gin.Context) {
	connID, err := connectionID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	badge, err := h.service.GetBadge(c.Request.Context(), connID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, badge, nil)
}

// Categories godoc
// @Summary List issuer categories
// @Tags Badges
// @Produce json
// @Param connection_id query int true "Connection ID"
// @Success 200 {object} response.Envelope
// @Router /badges/categories [get]
func (h *BadgeHandler) Categories(c *gin.Context) {
	connID, err := connectionID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	categories, err := h.service.GetCategories(c.Request.Context(), connID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, categories, nil)
}

// Export godoc
// @Summary Export a badge definition to the issuer account
// @Tags Badges
// @Accept json
// @Produce json
// @Param payload body dto.ExportBadgeRequest true "Badge payload"
// @Success 201 {object} response.Envelope
// @Router /badges/export [post]
func (h *BadgeHandler) Export(c *gin.Context) {
	var req dto.ExportBadgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid badge payload"))
		return
	}
	if err := h.service.ExportBadge(c.Request.Context(), req.ConnectionID, req.ToModel()); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"exported": true})
}

// Delete godoc
// @Summary Delete a badge from the issuer account
// @Tags Badges
// @Produce json
// @Param id path string true "Badge ID"
// @Param connection_id query int true "Connection ID"
// @Success 204
// @Router /badges/{id} [delete]
func (h *BadgeHandler) Delete(c *gin.Context) {
	connID, err := connectionID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.DeleteBadge(c.Request.Context(), connID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Assertions godoc
// @Summary List issuance events for a badge or recipient
// @Tags Assertions
// @Produce json
// @Param connection_id query int true "Connection ID"
// @Param badge_id query string false "Badge ID"
// @Param email query string false "Recipient email"
// @Success 200 {object} response.Envelope
// @Router /assertions [get]
func (h *BadgeHandler) Assertions(c *gin.Context) {
	connID, err := connectionID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	badgeID := c.Query("badge_id")
	email := c.Query("email")
	if badgeID == "" && email == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "badge_id or email is required"))
		return
	}
	assertions, err := h.service.GetAssertions(c.Request.Context(), connID, badgeID, email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assertions, nil)
}

// Event godoc
// @Summary Get one issuance event
// @Tags Assertions
// @Produce json
// @Param id path string true "Event ID"
// @Param connection_id query int true "Connection ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [get]
func (h *BadgeHandler) Event(c *gin.Context) {
	connID, err := connectionID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	event, err := h.service.GetEvent(c.Request.Context(), connID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

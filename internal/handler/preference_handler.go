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

type preferenceService interface {
	List(ctx context.Context, userID string) ([]models.UserPreference, error)
	Set(ctx context.Context, userID, name, value string) error
	ProfileBadges(ctx context.Context, userID string) ([]models.Assertion, error)
}

// PreferenceHandler exposes per-user display flags and the profile badge
// listing they gate.
type PreferenceHandler struct {
	service preferenceService
}

// NewPreferenceHandler builds a new handler.
func NewPreferenceHandler(service preferenceService) *PreferenceHandler {
	return &PreferenceHandler{service: service}
}

// List godoc
// @Summary List a user's display preferences
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/preferences [get]
func (h *PreferenceHandler) List(c *gin.Context) {
	prefs, err := h.service.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, prefs, nil)
}

// Set godoc
// @Summary Store one display preference
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body dto.SetPreferenceRequest true "Preference"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/preferences [put]
func (h *PreferenceHandler) Set(c *gin.Context) {
	var req dto.SetPreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid preference payload"))
		return
	}
	if err := h.service.Set(c.Request.Context(), c.Param("id"), req.Name, req.Value); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"saved": true}, nil)
}

// Badges godoc
// @Summary List the badges a user publishes on their profile
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/badges [get]
func (h *PreferenceHandler) Badges(c *gin.Context) {
	assertions, err := h.service.ProfileBadges(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assertions, nil)
}

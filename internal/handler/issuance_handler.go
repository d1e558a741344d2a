package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/obf-labs/issuer-gateway/internal/dto"
	"github.com/obf-labs/issuer-gateway/internal/service"
	appErrors "github.com/obf-labs/issuer-gateway/pkg/errors"
	"github.com/obf-labs/issuer-gateway/pkg/response"
)

type issuanceService interface {
	IssueDirect(ctx context.Context, connectionID int64, badgeID string, emails []string, course service.CourseContext, addendum string) error
}

type revocationService interface {
	RevokeEvent(ctx context.Context, connectionID int64, eventID string, emails []string) error
}

// IssuanceHandler exposes manual issuance and revocation.
type IssuanceHandler struct {
	issuer  issuanceService
	revoker revocationService
}

// NewIssuanceHandler builds a new handler.
func NewIssuanceHandler(issuer issuanceService, revoker revocationService) *IssuanceHandler {
	return &IssuanceHandler{issuer: issuer, revoker: revoker}
}

// Issue godoc
// @Summary Issue a badge to explicit recipients
// @Tags Issuance
// @Accept json
// @Produce json
// @Param payload body dto.IssueBadgeRequest true "Issuance payload"
// @Success 202 {object} response.Envelope
// @Router /issue [post]
func (h *IssuanceHandler) Issue(c *gin.Context) {
	var req dto.IssueBadgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid issuance payload"))
		return
	}

	course := service.CourseContext{
		CourseID:     req.CourseID,
		CourseName:   req.CourseName,
		ActivityName: req.ActivityName,
	}
	if err := h.issuer.IssueDirect(c.Request.Context(), req.ConnectionID, req.BadgeID, req.Recipients, course, req.CriteriaAddendum); err != nil {
		response.Error(c, err)
		return
	}
	// Accepted rather than OK: a remote failure is parked in the retry
	// queue, not reported here.
	response.JSON(c, http.StatusAccepted, gin.H{"queued": true}, nil)
}

// Revoke godoc
// @Summary Revoke an issuance event for given recipients
// @Tags Issuance
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body dto.RevokeEventRequest true "Revocation payload"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/revoke [post]
func (h *IssuanceHandler) Revoke(c *gin.Context) {
	var req dto.RevokeEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid revocation payload"))
		return
	}
	if err := h.revoker.RevokeEvent(c.Request.Context(), req.ConnectionID, c.Param("id"), req.Emails); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"revoked": true}, nil)
}

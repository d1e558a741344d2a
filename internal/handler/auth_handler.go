package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/obf-labs/issuer-gateway/internal/dto"
	appErrors "github.com/obf-labs/issuer-gateway/pkg/errors"
	"github.com/obf-labs/issuer-gateway/pkg/response"
)

type tokenExchanger interface {
	ExchangeToken(ctx context.Context, clientID, clientSecret string) (string, time.Time, error)
}

// AuthHandler mints access tokens for service callers.
type AuthHandler struct {
	service tokenExchanger
	now     func() time.Time
}

// NewAuthHandler builds a new handler.
func NewAuthHandler(service tokenExchanger) *AuthHandler {
	return &AuthHandler{service: service, now: time.Now}
}

// Token godoc
// @Summary Exchange issuer credentials for an access token
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body dto.TokenRequest true "Credential pair"
// @Success 200 {object} response.Envelope
// @Router /auth/token [post]
func (h *AuthHandler) Token(c *gin.Context) {
	var req dto.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid token request"))
		return
	}

	token, expiresAt, err := h.service.ExchangeToken(c.Request.Context(), req.ClientID, req.ClientSecret)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(expiresAt.Sub(h.now()).Seconds()),
	}, nil)
}

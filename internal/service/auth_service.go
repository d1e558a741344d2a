package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/obf-labs/issuer-gateway/internal/models"
	"github.com/obf-labs/issuer-gateway/pkg/config"
	appErrors "github.com/obf-labs/issuer-gateway/pkg/errors"
)

// AuthService validates the bearer tokens guarding the admin surface and
// exchanges stored credentials for them.
type AuthService struct {
	cfg         config.AuthConfig
	connections connectionLister
}

// NewAuthService constructs the service.
func NewAuthService(cfg config.AuthConfig, connections connectionLister) *AuthService {
	return &AuthService{cfg: cfg, connections: connections}
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}

// GenerateToken mints a token for service-to-service callers, used by the
// completion-event ingestion from the host platform.
func (s *AuthService) GenerateToken(userID, role string) (string, time.Time, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(s.cfg.Expiration)
	claims := &models.JWTClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ExchangeToken trades a stored OAuth2 credential pair for an access
// token. This is how the host platform authenticates its completion
// pushes: it already holds factory credentials, so no second secret is
// provisioned.
func (s *AuthService) ExchangeToken(ctx context.Context, clientID, clientSecret string) (string, time.Time, error) {
	conns, err := s.connections.List(ctx)
	if err != nil {
		return "", time.Time{}, err
	}
	for _, conn := range conns {
		if conn.ClientID != clientID {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(conn.ClientSecret), []byte(clientSecret)) == 1 {
			return s.GenerateToken(conn.ClientID, "service")
		}
		break
	}
	return "", time.Time{}, appErrors.Clone(appErrors.ErrUnauthorized, "unknown client credentials")
}

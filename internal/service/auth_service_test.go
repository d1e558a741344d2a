package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obf-labs/issuer-gateway/internal/models"
	"github.com/obf-labs/issuer-gateway/pkg/config"
	appErrors "github.com/obf-labs/issuer-gateway/pkg/errors"
)

func authFixture() *AuthService {
	conns := &connectionListerStub{conns: []models.OAuth2Connection{
		{ID: 1, ClientID: "client1", ClientSecret: "topsecret"},
		{ID: 2, ClientID: "client2", ClientSecret: "othersecret"},
	}}
	return NewAuthService(config.AuthConfig{JWTSecret: "signing-key", Expiration: time.Hour}, conns)
}

func TestExchangeTokenMintsServiceToken(t *testing.T) {
	svc := authFixture()

	token, expiresAt, err := svc.ExchangeToken(context.Background(), "client1", "topsecret")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "client1", claims.UserID)
	assert.Equal(t, "service", claims.Role)
}

func TestExchangeTokenRejectsBadCredentials(t *testing.T) {
	svc := authFixture()

	for name, tc := range map[string]struct {
		clientID string
		secret   string
	}{
		"wrong secret":   {clientID: "client1", secret: "guess"},
		"unknown client": {clientID: "nobody", secret: "topsecret"},
		"crossed pair":   {clientID: "client1", secret: "othersecret"},
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := svc.ExchangeToken(context.Background(), tc.clientID, tc.secret)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
		})
	}
}

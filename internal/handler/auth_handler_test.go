package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/obf-labs/issuer-gateway/pkg/errors"
)

type tokenExchangerMock struct {
	token     string
	expiresAt time.Time
	err       error

	clientID string
	secret   string
}

func (m *tokenExchangerMock) ExchangeToken(_ context.Context, clientID, clientSecret string) (string, time.Time, error) {
	m.clientID = clientID
	m.secret = clientSecret
	if m.err != nil {
		return "", time.Time{}, m.err
	}
	return m.token, m.expiresAt, nil
}

func TestAuthHandlerTokenExchange(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock := &tokenExchangerMock{token: "signed-token", expiresAt: now.Add(time.Hour)}
	handler := NewAuthHandler(mock)
	handler.now = func() time.Time { return now }

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(map[string]string{"client_id": "client1", "client_secret": "topsecret"})
	req, _ := http.NewRequest(http.MethodPost, "/auth/token", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Token(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "client1", mock.clientID)
	assert.Equal(t, "topsecret", mock.secret)

	var envelope struct {
		Data struct {
			AccessToken string `json:"access_token"`
			TokenType   string `json:"token_type"`
			ExpiresIn   int64  `json:"expires_in"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "signed-token", envelope.Data.AccessToken)
	assert.Equal(t, "Bearer", envelope.Data.TokenType)
	assert.Equal(t, int64(3600), envelope.Data.ExpiresIn)
}

func TestAuthHandlerTokenRejectsMissingSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &tokenExchangerMock{}
	handler := NewAuthHandler(mock)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/auth/token", bytes.NewReader([]byte(`{"client_id":"client1"}`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Token(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mock.clientID)
}

func TestAuthHandlerTokenMapsUnauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &tokenExchangerMock{err: appErrors.Clone(appErrors.ErrUnauthorized, "unknown client credentials")}
	handler := NewAuthHandler(mock)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body := []byte(`{"client_id":"client1","client_secret":"guess"}`)
	req, _ := http.NewRequest(http.MethodPost, "/auth/token", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Token(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

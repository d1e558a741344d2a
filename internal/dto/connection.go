package dto

import (
	"time"

	"github.com/obf-labs/issuer-gateway/internal/models"
)

// CreateConnectionRequest stores a new issuer credential set.
type CreateConnectionRequest struct {
	Name         string `json:"name" binding:"required"`
	ClientID     string `json:"client_id" binding:"required"`
	ClientSecret string `json:"client_secret" binding:"required"`
	// BaseURL falls back to the configured factory URL when omitted.
	BaseURL string `json:"base_url" binding:"omitempty,url"`
}

// ToModel converts the payload into the domain connection.
func (r CreateConnectionRequest) ToModel() models.OAuth2Connection {
	return models.OAuth2Connection{
		Name:         r.Name,
		ClientID:     r.ClientID,
		ClientSecret: r.ClientSecret,
		BaseURL:      r.BaseURL,
	}
}

// ConnectionResponse is a connection with the secret material stripped.
type ConnectionResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ClientID  string    `json:"client_id"`
	BaseURL   string    `json:"base_url"`
	CreatedAt time.Time `json:"created_at"`
}

// NewConnectionResponse redacts one connection.
func NewConnectionResponse(conn models.OAuth2Connection) ConnectionResponse {
	return ConnectionResponse{
		ID:        conn.ID,
		Name:      conn.Name,
		ClientID:  conn.ClientID,
		BaseURL:   conn.BaseURL,
		CreatedAt: conn.CreatedAt,
	}
}

// ConnectionTestResponse reports a credential probe result.
type ConnectionTestResponse struct {
	OK     bool `json:"ok"`
	Status int  `json:"status,omitempty"`
}

package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims identifies the caller of the admin API. The gateway does not
// manage accounts itself; tokens are minted by the host platform with the
// shared secret.
type JWTClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

package obf

import (
	"context"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	apiErrors "github.com/obf-labs/issuer-gateway/pkg/errors"
)

// TokenStore persists refreshed access tokens back to the credential row so
// later processes reuse them until expiry.
type TokenStore interface {
	SaveToken(ctx context.Context, connectionID int64, token string, expires time.Time) error
}

// accessToken returns a bearer token for the current connection, requesting
// a fresh one through the client-credentials grant only when the cached one
// has expired.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	now := c.now()
	if c.conn.TokenValid(now) {
		return *c.conn.AccessToken, nil
	}

	cfg := clientcredentials.Config{
		ClientID:     c.conn.ClientID,
		ClientSecret: c.conn.ClientSecret,
		TokenURL:     c.conn.BaseURL + "/v1/client/oauth2/token",
	}

	tok, err := cfg.TokenSource(ctx).Token()
	if err != nil {
		return "", apiErrors.WrapAPIError(err)
	}

	token := tok.AccessToken
	expires := tok.Expiry
	c.conn.AccessToken = &token
	c.conn.TokenExpires = &expires

	if c.tokens != nil {
		if err := c.tokens.SaveToken(ctx, c.conn.ID, token, expires); err != nil {
			c.logger.Warn("failed to persist refreshed access token")
		}
	}

	return token, nil
}

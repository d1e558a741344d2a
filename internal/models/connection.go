package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ConnectionOK is the probe result reported for working credentials. Any
// other value is the HTTP status (or synthetic status) of the failed probe.
const ConnectionOK = -1

var (
	clientIDPattern = regexp.MustCompile(`^\w+$`)
	urlPattern      = regexp.MustCompile(`^https?://.+`)
)

// OAuth2Connection is one stored credential set selecting which remote
// tenant an operation targets. The cached access token is persisted so a
// fresh process can reuse it until expiry.
type OAuth2Connection struct {
	ID           int64  `db:"id" json:"id"`
	Name         string `db:"client_name" json:"name"`
	ClientID     string `db:"client_id" json:"client_id"`
	ClientSecret string `db:"client_secret" json:"-"`
	BaseURL      string `db:"obf_url" json:"base_url"`

	AccessToken  *string    `db:"access_token" json:"-"`
	TokenExpires *time.Time `db:"token_expires" json:"token_expires,omitempty"`

	// Legacy mutual-TLS credential, kept only for the expiry reminder.
	CertPEM *string `db:"cert_pem" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Validate checks the credential fields the same way the admin form did.
func (c *OAuth2Connection) Validate() error {
	if !urlPattern.MatchString(c.BaseURL) {
		return fmt.Errorf("invalid base url %q", c.BaseURL)
	}
	if !clientIDPattern.MatchString(c.ClientID) {
		return fmt.Errorf("invalid client id")
	}
	if !clientIDPattern.MatchString(c.ClientSecret) {
		return fmt.Errorf("invalid client secret")
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return nil
}

// TokenValid reports whether the cached access token is still usable.
func (c *OAuth2Connection) TokenValid(now time.Time) bool {
	return c.AccessToken != nil && *c.AccessToken != "" &&
		c.TokenExpires != nil && c.TokenExpires.After(now)
}

package obf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/obf-labs/issuer-gateway/internal/models"
	apiErrors "github.com/obf-labs/issuer-gateway/pkg/errors"
)

// apiConsumerID tags issuing events created by this service so local-only
// event retrieval can filter on it.
const apiConsumerID = "issuer-gateway"

// ConnectionSource lists the stored credential sets other than the current
// one, used for the 403 fallback rotation.
type ConnectionSource interface {
	ListOthers(ctx context.Context, exceptClientID string) ([]models.OAuth2Connection, error)
}

// Options tunes client behaviour; zero values fall back to service defaults.
type Options struct {
	// LegacyClientID disables credential rotation when set: legacy
	// certificate tenants have exactly one identity.
	LegacyClientID string
	Timeout        time.Duration
	PageSize       int
	PageLimit      int
	PageDelay      time.Duration
}

// Client performs authenticated calls against one Open Badge Factory tenant.
// The credential context is an explicit field, never process-global state; a
// Client is cheap and intended to be built per operation via the Factory.
// It is not safe for concurrent use (403 rotation swaps the connection).
type Client struct {
	conn    models.OAuth2Connection
	opts    Options
	httpc   *http.Client
	tokens  TokenStore
	conns   ConnectionSource
	logger  *zap.Logger
	observe func(status int)
	now     func() time.Time
	sleep   func(time.Duration)
}

// Factory builds per-operation clients sharing transport and stores.
type Factory struct {
	Opts   Options
	Tokens TokenStore
	Conns  ConnectionSource
	Logger *zap.Logger
	HTTP   *http.Client

	// Observe, when set, receives the status code of every upstream
	// response, retries and rotations included.
	Observe func(status int)
}

// ForConnection binds a client to one stored credential set.
func (f *Factory) ForConnection(conn models.OAuth2Connection) *Client {
	opts := f.Opts
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 1000
	}
	if opts.PageLimit <= 0 {
		opts.PageLimit = 5000
	}
	httpc := f.HTTP
	if httpc == nil {
		httpc = &http.Client{Timeout: opts.Timeout}
	}
	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		conn:    conn,
		opts:    opts,
		httpc:   httpc,
		tokens:  f.Tokens,
		conns:   f.Conns,
		logger:  logger,
		observe: f.Observe,
		now:     time.Now,
		sleep:   time.Sleep,
	}
}

// Connection returns the credential set the client currently targets. After
// a 403 rotation this may differ from the connection the client was built
// with.
func (c *Client) Connection() models.OAuth2Connection {
	return c.conn
}

func (c *Client) version() APIVersion {
	if c.opts.LegacyClientID != "" {
		return V1
	}
	return V2
}

func (c *Client) clientID() string {
	if c.opts.LegacyClientID != "" {
		return c.opts.LegacyClientID
	}
	return c.conn.ClientID
}

func (c *Client) buildURL(path string, query url.Values) string {
	u := c.conn.BaseURL + "/" + string(c.version()) + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Request performs one authenticated API call and returns the raw body.
// Non-2xx responses map to a typed APIError keyed by the upstream status.
// A 403 on an OAuth2 tenant is retried exactly once and then attempted
// against every other stored connection before giving up.
func (c *Client) Request(ctx context.Context, method, path string, query url.Values, body interface{}) ([]byte, error) {
	return c.request(ctx, method, path, query, body, true, nil)
}

func (c *Client) request(ctx context.Context, method, path string, query url.Values, body interface{}, retry bool, others []models.OAuth2Connection) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path, query), reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, apiErrors.WrapAPIError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apiErrors.WrapAPIError(err)
	}

	if c.observe != nil {
		c.observe(resp.StatusCode)
	}

	if resp.StatusCode == http.StatusForbidden && c.opts.LegacyClientID == "" {
		if retry {
			return c.request(ctx, method, path, query, body, false, others)
		}
		if c.conns != nil {
			if others == nil {
				others, err = c.conns.ListOthers(ctx, c.conn.ClientID)
				if err != nil {
					return nil, fmt.Errorf("list fallback connections: %w", err)
				}
			}
			if len(others) > 0 {
				next := others[0]
				c.logger.Warn("access denied, rotating credentials",
					zap.String("from", c.conn.ClientID),
					zap.String("to", next.ClientID))
				c.conn = next
				return c.request(ctx, method, path, query, body, true, others[1:])
			}
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apiErrors.NewAPIError(resp.StatusCode, errorDetail(respBody))
	}

	return respBody, nil
}

func statusError(status int) error {
	return apiErrors.NewAPIError(status, "")
}

func errorDetail(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return ""
}

// TestConnection pings the API. It returns -1 on success or the failing
// upstream status code, matching the legacy connection-check contract.
func (c *Client) TestConnection(ctx context.Context) int {
	_, err := c.Request(ctx, http.MethodGet, "/ping/"+c.clientID(), nil, nil)
	if err == nil {
		return -1
	}
	if status, ok := apiErrors.APIStatus(err); ok {
		return status
	}
	return apiErrors.StatusConnectivity
}

// GetIssuer fetches the tenant's issuer metadata.
func (c *Client) GetIssuer(ctx context.Context) (map[string]interface{}, error) {
	body, err := c.Request(ctx, http.MethodGet, "/client/"+c.clientID(), nil, nil)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode issuer: %w", err)
	}
	return out, nil
}

// BrandingImageURL returns the public URL of an issuer branding image.
func (c *Client) BrandingImageURL(imageName string) string {
	if imageName == "" {
		imageName = "issued_by"
	}
	return c.conn.BaseURL + "/" + string(c.version()) + "/badge/_/" + imageName + ".png"
}

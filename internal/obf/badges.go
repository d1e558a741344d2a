package obf

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/obf-labs/issuer-gateway/internal/models"
)

// GetBadges fetches the tenant's published badges, optionally filtered by
// category and free-text query. The listing endpoint pages in fixed-size
// chunks (1000 rows, 5000 total cap) with a short delay between pages to
// respect the remote rate limit. Results are sorted by name under a
// locale-aware, case-insensitive collation.
func (c *Client) GetBadges(ctx context.Context, categories []string, query string) ([]models.Badge, error) {
	params := url.Values{}
	params.Set("draft", "0")
	params.Set("external", "1")
	if len(categories) > 0 {
		params.Set("category", strings.Join(categories, "|"))
	}
	if query != "" {
		params.Set("query", query)
	}

	var out []models.Badge
	for offset := 0; offset < c.opts.PageLimit; offset += c.opts.PageSize {
		params.Set("limit", strconv.Itoa(c.opts.PageSize))
		params.Set("offset", strconv.Itoa(offset))

		body, err := c.Request(ctx, http.MethodGet, "/badge/"+c.clientID(), params, nil)
		if err != nil {
			return nil, err
		}

		docs := decodeLDJSON(body)
		for _, doc := range docs {
			badge, err := decodeBadge(c.version(), doc)
			if err != nil {
				return nil, err
			}
			out = append(out, badge)
		}

		if len(docs) < c.opts.PageSize {
			break
		}
		if c.opts.PageDelay > 0 {
			c.sleep(c.opts.PageDelay)
		}
	}

	sortBadgesByName(out)
	return out, nil
}

func sortBadgesByName(badges []models.Badge) {
	coll := collate.New(language.Und, collate.Loose)
	sort.Slice(badges, func(i, j int) bool {
		return coll.CompareString(badges[i].Name, badges[j].Name) < 0
	})
}

// GetBadge fetches a single badge by id.
func (c *Client) GetBadge(ctx context.Context, badgeID string) (*models.Badge, error) {
	body, err := c.Request(ctx, http.MethodGet, "/badge/"+c.clientID()+"/"+badgeID, nil, nil)
	if err != nil {
		return nil, err
	}
	badge, err := decodeBadge(c.version(), body)
	if err != nil {
		return nil, err
	}
	return &badge, nil
}

// GetCategories lists the tenant's badge categories.
func (c *Client) GetCategories(ctx context.Context) ([]string, error) {
	body, err := c.Request(ctx, http.MethodGet, "/badge/"+c.clientID()+"/_/categorylist", nil, nil)
	if err != nil {
		return nil, err
	}
	var out []string
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	return out, nil
}

// ExportBadge pushes a locally composed badge definition to the remote
// service. The remote copy becomes authoritative.
func (c *Client) ExportBadge(ctx context.Context, badge models.Badge) error {
	params := map[string]interface{}{
		"name":            badge.Name,
		"description":     badge.Description,
		"image":           badge.Image,
		"css":             badge.CriteriaCSS,
		"criteria_html":   badge.CriteriaHTML,
		"email_subject":   badge.Email.Subject,
		"email_body":      badge.Email.Body,
		"email_link_text": badge.Email.LinkText,
		"email_footer":    badge.Email.Footer,
		"expires":         "",
		"tags":            badge.Tags,
		"draft":           badge.Draft,
	}
	_, err := c.Request(ctx, http.MethodPost, "/badge/"+c.clientID(), nil, params)
	return err
}

// DeleteBadge removes a badge from the remote service. Use with caution.
func (c *Client) DeleteBadge(ctx context.Context, badgeID string) error {
	_, err := c.Request(ctx, http.MethodDelete, "/badge/"+c.clientID()+"/"+badgeID, nil, nil)
	return err
}

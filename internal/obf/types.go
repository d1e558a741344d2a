package obf

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/obf-labs/issuer-gateway/internal/models"
)

// APIVersion selects the remote API dialect. Legacy certificate-auth tenants
// speak v1; OAuth2 tenants speak v2. The rest of the codebase only ever sees
// the canonical (v1-shaped) models, so every v2 payload passes through an
// adapter here.
type APIVersion string

const (
	V1 APIVersion = "v1"
	V2 APIVersion = "v2"
)

// badgeV1 mirrors the legacy badge payload field for field.
type badgeV1 struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Image        string   `json:"image"`
	Category     []string `json:"category"`
	Tags         []string `json:"tags"`
	CriteriaHTML string   `json:"criteria_html"`
	CriteriaCSS  string   `json:"css"`
	EmailSubject string   `json:"email_subject"`
	EmailBody    string   `json:"email_body"`
	EmailLink    string   `json:"email_link_text"`
	EmailFooter  string   `json:"email_footer"`
	Draft        intBool  `json:"draft"`
	Expires      int64    `json:"expires"`
	Created      int64    `json:"ctime"`
}

// badgeV2 is the current API shape. Names and nesting differ from v1; the
// email template moved under its own object.
type badgeV2 struct {
	BadgeID     string   `json:"badge_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ImageURL    string   `json:"image_url"`
	Categories  []string `json:"categories"`
	Tags        []string `json:"tags"`
	Criteria    struct {
		HTML string `json:"html"`
		CSS  string `json:"css"`
	} `json:"criteria"`
	EmailTemplate struct {
		Subject  string `json:"subject"`
		Body     string `json:"body"`
		LinkText string `json:"link_text"`
		Footer   string `json:"footer"`
	} `json:"email_template"`
	Draft     bool  `json:"draft"`
	ExpiresIn int64 `json:"expires_in"`
	CreatedAt int64 `json:"created_at"`
}

func (b badgeV1) toModel() models.Badge {
	return models.Badge{
		ID:           b.ID,
		Name:         b.Name,
		Description:  b.Description,
		Image:        b.Image,
		Category:     b.Category,
		Tags:         b.Tags,
		CriteriaHTML: b.CriteriaHTML,
		CriteriaCSS:  b.CriteriaCSS,
		Email: models.EmailTemplate{
			Subject:  b.EmailSubject,
			Body:     b.EmailBody,
			LinkText: b.EmailLink,
			Footer:   b.EmailFooter,
		},
		Draft:   bool(b.Draft),
		Expires: b.Expires,
		Created: b.Created,
	}
}

func (b badgeV2) toModel() models.Badge {
	return models.Badge{
		ID:           b.BadgeID,
		Name:         b.Name,
		Description:  b.Description,
		Image:        b.ImageURL,
		Category:     b.Categories,
		Tags:         b.Tags,
		CriteriaHTML: b.Criteria.HTML,
		CriteriaCSS:  b.Criteria.CSS,
		Email: models.EmailTemplate{
			Subject:  b.EmailTemplate.Subject,
			Body:     b.EmailTemplate.Body,
			LinkText: b.EmailTemplate.LinkText,
			Footer:   b.EmailTemplate.Footer,
		},
		Draft:   b.Draft,
		Expires: b.ExpiresIn,
		Created: b.CreatedAt,
	}
}

func decodeBadge(version APIVersion, data []byte) (models.Badge, error) {
	switch version {
	case V2:
		var b badgeV2
		if err := json.Unmarshal(data, &b); err != nil {
			return models.Badge{}, fmt.Errorf("decode v2 badge: %w", err)
		}
		return b.toModel(), nil
	default:
		var b badgeV1
		if err := json.Unmarshal(data, &b); err != nil {
			return models.Badge{}, fmt.Errorf("decode v1 badge: %w", err)
		}
		return b.toModel(), nil
	}
}

// eventV1 mirrors the legacy issuing-event payload. Recipients and their
// revocation timestamps arrive inline.
type eventV1 struct {
	ID           string           `json:"id"`
	BadgeID      string           `json:"badge_id"`
	Name         string           `json:"name"`
	Recipients   []string         `json:"recipient"`
	IssuedOn     int64            `json:"issued_on"`
	Expires      int64            `json:"expires"`
	EmailSubject string           `json:"email_subject"`
	EmailBody    string           `json:"email_body"`
	EmailFooter  string           `json:"email_footer"`
	Revoked      map[string]int64 `json:"revoked"`
}

// eventV2 carries no recipient list; recipients are fetched from the
// paginated per-event recipient endpoint and merged by the client.
type eventV2 struct {
	EventID   string `json:"event_id"`
	BadgeID   string `json:"badge_id"`
	Name      string `json:"name"`
	IssuedOn  int64  `json:"issued_on"`
	ExpiresAt int64  `json:"expires_at"`
	Email     struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
		Footer  string `json:"footer"`
	} `json:"email"`
}

// recipientV2 is one row of the v2 per-event recipient listing.
type recipientV2 struct {
	Email     string `json:"email"`
	RevokedAt int64  `json:"revoked_at"`
}

func (e eventV1) toModel() models.Assertion {
	return models.Assertion{
		ID:           e.ID,
		BadgeID:      e.BadgeID,
		Name:         e.Name,
		Recipients:   e.Recipients,
		IssuedOn:     e.IssuedOn,
		Expires:      e.Expires,
		EmailSubject: e.EmailSubject,
		EmailBody:    e.EmailBody,
		EmailFooter:  e.EmailFooter,
		Revoked:      e.Revoked,
		Source:       models.AssertionSourceOBF,
	}
}

func (e eventV2) toModel() models.Assertion {
	return models.Assertion{
		ID:           e.EventID,
		BadgeID:      e.BadgeID,
		Name:         e.Name,
		IssuedOn:     e.IssuedOn,
		Expires:      e.ExpiresAt,
		EmailSubject: e.Email.Subject,
		EmailBody:    e.Email.Body,
		EmailFooter:  e.Email.Footer,
		Revoked:      map[string]int64{},
		Source:       models.AssertionSourceOBF,
	}
}

// intBool tolerates the legacy API encoding booleans as 0/1.
type intBool bool

func (b *intBool) UnmarshalJSON(data []byte) error {
	switch strings.TrimSpace(string(data)) {
	case "true", "1", `"1"`:
		*b = true
	case "false", "0", `"0"`, "null":
		*b = false
	default:
		return fmt.Errorf("cannot decode %q as boolean", data)
	}
	return nil
}

// decodeLDJSON splits a line-delimited JSON body into raw documents.
func decodeLDJSON(body []byte) [][]byte {
	var out [][]byte
	for _, chunk := range strings.Split(string(body), "\n") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		out = append(out, []byte(chunk))
	}
	return out
}

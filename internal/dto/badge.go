package dto

import "github.com/obf-labs/issuer-gateway/internal/models"

// ExportBadgeRequest pushes a locally drafted badge to an issuer account.
type ExportBadgeRequest struct {
	ConnectionID int64    `json:"connection_id" binding:"required"`
	Name         string   `json:"name" binding:"required"`
	Description  string   `json:"description"`
	Image        string   `json:"image"`
	Category     []string `json:"category"`
	Tags         []string `json:"tags"`
	CriteriaHTML string   `json:"criteria_html"`
	CSS          string   `json:"css"`
	Draft        bool     `json:"draft"`
	ExpiresAfter int64    `json:"expires_after_seconds"`

	EmailSubject  string `json:"email_subject"`
	EmailBody     string `json:"email_body"`
	EmailLinkText string `json:"email_link_text"`
	EmailFooter   string `json:"email_footer"`
}

// ToModel converts the payload into the domain badge.
func (r ExportBadgeRequest) ToModel() models.Badge {
	return models.Badge{
		Name:         r.Name,
		Description:  r.Description,
		Image:        r.Image,
		Category:     r.Category,
		Tags:         r.Tags,
		CriteriaHTML: r.CriteriaHTML,
		CriteriaCSS:  r.CSS,
		Draft:        r.Draft,
		Expires:      r.ExpiresAfter,
		Email: models.EmailTemplate{
			Subject:  r.EmailSubject,
			Body:     r.EmailBody,
			LinkText: r.EmailLinkText,
			Footer:   r.EmailFooter,
		},
	}
}

package models

import "time"

// Badge is a remotely defined credential. The remote service owns the record;
// instances here mirror the legacy (v1) API field set and live only for the
// duration of a request.
type Badge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
	Category    []string `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	CriteriaHTML string `json:"criteria_html,omitempty"`
	CriteriaCSS  string `json:"css,omitempty"`

	Email EmailTemplate `json:"email"`

	Draft   bool  `json:"draft"`
	Expires int64 `json:"expires,omitempty"`
	Created int64 `json:"ctime,omitempty"`
}

// EmailTemplate holds the message sent alongside an issuance.
type EmailTemplate struct {
	Subject  string `json:"email_subject,omitempty"`
	Body     string `json:"email_body,omitempty"`
	LinkText string `json:"email_link_text,omitempty"`
	Footer   string `json:"email_footer,omitempty"`
}

// HasExpiry reports whether issued instances of the badge expire.
func (b Badge) HasExpiry() bool {
	return b.Expires > 0
}

// ExpiresAt returns the expiry for a badge issued now.
func (b Badge) ExpiresAt(issuedOn time.Time) *time.Time {
	if !b.HasExpiry() {
		return nil
	}
	t := issuedOn.AddDate(0, 0, int(b.Expires))
	return &t
}

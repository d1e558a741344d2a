package models

// AssertionSource identifies where an assertion record was retrieved from.
type AssertionSource int

const (
	AssertionSourceUnknown AssertionSource = iota
	AssertionSourceOBF
	AssertionSourcePassport
	AssertionSourceBackpack
)

// Assertion is one issuing event: a badge awarded to a set of recipients at
// a point in time. Immutable after creation except for revocations appended
// by the remote service.
type Assertion struct {
	ID         string   `json:"id"`
	BadgeID    string   `json:"badge_id"`
	Name       string   `json:"name,omitempty"`
	Recipients []string `json:"recipient"`
	IssuedOn   int64    `json:"issued_on"`
	Expires    int64    `json:"expires,omitempty"`

	EmailSubject string `json:"email_subject,omitempty"`
	EmailBody    string `json:"email_body,omitempty"`
	EmailFooter  string `json:"email_footer,omitempty"`

	// Revoked maps recipient email to the revocation unix timestamp.
	Revoked map[string]int64 `json:"revoked,omitempty"`

	Source AssertionSource `json:"source"`
}

// IsRevokedFor reports whether the assertion was revoked for the given email.
func (a Assertion) IsRevokedFor(email string) bool {
	_, ok := a.Revoked[email]
	return ok
}

// ActiveRecipients returns recipients whose award still stands.
func (a Assertion) ActiveRecipients() []string {
	out := make([]string, 0, len(a.Recipients))
	for _, r := range a.Recipients {
		if !a.IsRevokedFor(r) {
			out = append(out, r)
		}
	}
	return out
}

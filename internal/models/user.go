package models

import "time"

// User mirrors the host-LMS account fields this service needs for recipient
// resolution and notifications.
type User struct {
	ID        string `db:"id" json:"id"`
	Email     string `db:"email" json:"email"`
	FirstName string `db:"first_name" json:"first_name,omitempty"`
	LastName  string `db:"last_name" json:"last_name,omitempty"`
}

// DisplayRecipient formats "Full Name <email>" when a usable name exists.
// Emails containing angle brackets are never embedded.
func (u User) DisplayRecipient() string {
	if u.FirstName != "" && u.LastName != "" && u.Email != "" &&
		!containsAngle(u.Email) {
		return u.FirstName + " " + u.LastName + " <" + u.Email + ">"
	}
	return u.Email
}

func containsAngle(s string) bool {
	for _, r := range s {
		if r == '<' || r == '>' {
			return true
		}
	}
	return false
}

// Backpack links a user to an external badge-display account with its own
// email address; a verified backpack email is preferred over the account
// email when issuing.
type Backpack struct {
	ID       int64  `db:"id" json:"id"`
	UserID   string `db:"user_id" json:"user_id"`
	Email    string `db:"email" json:"email"`
	Provider string `db:"provider" json:"provider"`
	Verified bool   `db:"verified" json:"verified"`
	// RequiresVerification distinguishes providers that re-verify on email
	// change from those that must simply be disconnected.
	RequiresVerification bool `db:"requires_verification" json:"requires_verification"`
}

// EmailHistory records every address a badge was ever issued to, keyed
// (user, email). Duplicate inserts are tolerated by the caller.
type EmailHistory struct {
	ID        int64     `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Email     string    `db:"email" json:"email"`
	Timestamp time.Time `db:"created_at" json:"timestamp"`
}

// BadgeBlacklist marks a badge a user never wants displayed or reissued.
type BadgeBlacklist struct {
	ID      int64  `db:"id" json:"id"`
	UserID  string `db:"user_id" json:"user_id"`
	BadgeID string `db:"badge_id" json:"badge_id"`
}

// UserPreference stores per-user display flags.
type UserPreference struct {
	ID     int64  `db:"id" json:"id"`
	UserID string `db:"user_id" json:"user_id"`
	Name   string `db:"name" json:"name"`
	Value  string `db:"value" json:"value"`
}

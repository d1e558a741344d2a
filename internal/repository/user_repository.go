package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/obf-labs/issuer-gateway/internal/models"
)

// UserRepository reads the mirrored host-LMS accounts and their course
// completion facts.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs the repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, first_name, last_name`

// GetByID returns one user.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// ListByEmails resolves a recipient email list to known accounts. Unknown
// addresses are silently absent from the result.
func (r *UserRepository) ListByEmails(ctx context.Context, emails []string) ([]models.User, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+userColumns+` FROM users WHERE email IN (?)`, emails)
	if err != nil {
		return nil, fmt.Errorf("build user email query: %w", err)
	}
	query = r.db.Rebind(query)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("list users by email: %w", err)
	}
	return users, nil
}

// UpsertCompletion stores or refreshes one completion fact reported by the
// host LMS.
func (r *UserRepository) UpsertCompletion(ctx context.Context, completion models.CourseCompletion) error {
	const query = `INSERT INTO course_completions (user_id, course_id, completed, completed_at, grade)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id, course_id) DO UPDATE SET completed = $3, completed_at = $4, grade = $5`
	if _, err := r.db.ExecContext(ctx, query,
		completion.UserID, completion.CourseID, completion.Completed,
		completion.CompletedAt, completion.Grade,
	); err != nil {
		return fmt.Errorf("upsert completion: %w", err)
	}
	return nil
}

// GetCompletion fetches the completion fact for a (user, course) pair.
func (r *UserRepository) GetCompletion(ctx context.Context, userID, courseID string) (*models.CourseCompletion, error) {
	const query = `SELECT user_id, course_id, completed, completed_at, grade
FROM course_completions WHERE user_id = $1 AND course_id = $2`
	var completion models.CourseCompletion
	if err := r.db.GetContext(ctx, &completion, query, userID, courseID); err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return &completion, nil
}

// RecordEmailHistory remembers that a badge email went to (user, email).
// The (user_id, email) pair is unique; replays are a no-op, matching the
// duplicate-key tolerance of the original issuance path.
func (r *UserRepository) RecordEmailHistory(ctx context.Context, userID, email string, at time.Time) error {
	const query = `INSERT INTO email_history (user_id, email, created_at) VALUES ($1, $2, $3)
ON CONFLICT (user_id, email) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, userID, email, at); err != nil {
		return fmt.Errorf("record email history: %w", err)
	}
	return nil
}

// ListPreferences returns the user's stored display preferences.
func (r *UserRepository) ListPreferences(ctx context.Context, userID string) ([]models.UserPreference, error) {
	const query = `SELECT id, user_id, name, value FROM user_preferences WHERE user_id = $1 ORDER BY name`
	var prefs []models.UserPreference
	if err := r.db.SelectContext(ctx, &prefs, query, userID); err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	return prefs, nil
}

// SetPreference stores or replaces one preference value.
func (r *UserRepository) SetPreference(ctx context.Context, userID, name, value string) error {
	const query = `INSERT INTO user_preferences (user_id, name, value) VALUES ($1, $2, $3)
ON CONFLICT (user_id, name) DO UPDATE SET value = $3`
	if _, err := r.db.ExecContext(ctx, query, userID, name, value); err != nil {
		return fmt.Errorf("set preference: %w", err)
	}
	return nil
}

// IsBlacklisted reports whether the user opted out of a badge.
func (r *UserRepository) IsBlacklisted(ctx context.Context, userID, badgeID string) (bool, error) {
	const query = `SELECT COUNT(1) FROM badge_blacklist WHERE user_id = $1 AND badge_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID, badgeID); err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return count > 0, nil
}

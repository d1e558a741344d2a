package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/obf-labs/issuer-gateway/internal/models"
)

// CriterionRepository persists awarding rules, their items and the
// criterion-met guard rows.
type CriterionRepository struct {
	db *sqlx.DB
}

// NewCriterionRepository constructs the repository.
func NewCriterionRepository(db *sqlx.DB) *CriterionRepository {
	return &CriterionRepository{db: db}
}

const criterionColumns = `id, badge_id, oauth2_id, completion_method, addendum, use_addendum, created_at`
const itemColumns = `id, criterion_id, criteria_type, course_id, min_grade, completed_by, profile_field, profile_value`

// Create inserts a criterion together with its items.
func (r *CriterionRepository) Create(ctx context.Context, criterion *models.Criterion) error {
	if criterion.CreatedAt.IsZero() {
		criterion.CreatedAt = time.Now().UTC()
	}
	if criterion.CompletionMethod == 0 {
		criterion.CompletionMethod = models.CompletionAll
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create criterion: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO criteria (badge_id, oauth2_id, completion_method, addendum, use_addendum, created_at)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	if err := tx.QueryRowxContext(ctx, query,
		criterion.BadgeID, criterion.ConnectionID, criterion.CompletionMethod,
		criterion.CriteriaAddendum, criterion.UseAddendum, criterion.CreatedAt,
	).Scan(&criterion.ID); err != nil {
		return fmt.Errorf("create criterion: %w", err)
	}

	const itemQuery = `INSERT INTO criterion_items (criterion_id, criteria_type, course_id, min_grade, completed_by, profile_field, profile_value)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	for i := range criterion.Items {
		item := &criterion.Items[i]
		item.CriterionID = criterion.ID
		if err := tx.QueryRowxContext(ctx, itemQuery,
			item.CriterionID, item.Kind, item.CourseID, item.MinGrade,
			item.CompletedBy, item.ProfileField, item.ProfileValue,
		).Scan(&item.ID); err != nil {
			return fmt.Errorf("create criterion item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create criterion: %w", err)
	}
	return nil
}

// GetByID loads a criterion with its items.
func (r *CriterionRepository) GetByID(ctx context.Context, id int64) (*models.Criterion, error) {
	const query = `SELECT ` + criterionColumns + ` FROM criteria WHERE id = $1`
	var criterion models.Criterion
	if err := r.db.GetContext(ctx, &criterion, query, id); err != nil {
		return nil, fmt.Errorf("get criterion: %w", err)
	}
	items, err := r.listItems(ctx, id)
	if err != nil {
		return nil, err
	}
	criterion.Items = items
	return &criterion, nil
}

// List returns all criteria with items attached.
func (r *CriterionRepository) List(ctx context.Context) ([]models.Criterion, error) {
	const query = `SELECT ` + criterionColumns + ` FROM criteria ORDER BY id`
	var criteria []models.Criterion
	if err := r.db.SelectContext(ctx, &criteria, query); err != nil {
		return nil, fmt.Errorf("list criteria: %w", err)
	}
	for i := range criteria {
		items, err := r.listItems(ctx, criteria[i].ID)
		if err != nil {
			return nil, err
		}
		criteria[i].Items = items
	}
	return criteria, nil
}

// ListByCourse returns criteria that carry at least one item for the course.
func (r *CriterionRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Criterion, error) {
	const query = `SELECT DISTINCT c.id, c.badge_id, c.oauth2_id, c.completion_method, c.addendum, c.use_addendum, c.created_at
FROM criteria c INNER JOIN criterion_items i ON i.criterion_id = c.id
WHERE i.course_id = $1 ORDER BY c.id`
	var criteria []models.Criterion
	if err := r.db.SelectContext(ctx, &criteria, query, courseID); err != nil {
		return nil, fmt.Errorf("list criteria by course: %w", err)
	}
	for i := range criteria {
		items, err := r.listItems(ctx, criteria[i].ID)
		if err != nil {
			return nil, err
		}
		criteria[i].Items = items
	}
	return criteria, nil
}

func (r *CriterionRepository) listItems(ctx context.Context, criterionID int64) ([]models.CriterionItem, error) {
	const query = `SELECT ` + itemColumns + ` FROM criterion_items WHERE criterion_id = $1 ORDER BY id`
	var items []models.CriterionItem
	if err := r.db.SelectContext(ctx, &items, query, criterionID); err != nil {
		return nil, fmt.Errorf("list criterion items: %w", err)
	}
	return items, nil
}

// Delete removes a criterion, its items and met rows.
func (r *CriterionRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete criterion: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, query := range []string{
		`DELETE FROM criterion_met WHERE criterion_id = $1`,
		`DELETE FROM criterion_items WHERE criterion_id = $1`,
		`DELETE FROM criteria WHERE id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, query, id); err != nil {
			return fmt.Errorf("delete criterion: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete criterion: %w", err)
	}
	return nil
}

// IsMet reports whether the criterion was already recorded as met for the
// user. This row is the sole duplicate-issuance guard.
func (r *CriterionRepository) IsMet(ctx context.Context, criterionID int64, userID string) (bool, error) {
	const query = `SELECT id FROM criterion_met WHERE criterion_id = $1 AND user_id = $2`
	var id int64
	err := r.db.GetContext(ctx, &id, query, criterionID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check criterion met: %w", err)
	}
	return true, nil
}

// MarkMet records a (criterion, user) pair as met. Write-once: a duplicate
// insert is a no-op.
func (r *CriterionRepository) MarkMet(ctx context.Context, criterionID int64, userID string, metAt time.Time) error {
	const query = `INSERT INTO criterion_met (criterion_id, user_id, met_at) VALUES ($1, $2, $3)
ON CONFLICT (criterion_id, user_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, criterionID, userID, metAt); err != nil {
		return fmt.Errorf("mark criterion met: %w", err)
	}
	return nil
}

// HasAnyMet reports whether any user has met the criterion; once true the
// criterion's items must be treated as immutable.
func (r *CriterionRepository) HasAnyMet(ctx context.Context, criterionID int64) (bool, error) {
	const query = `SELECT COUNT(1) FROM criterion_met WHERE criterion_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, criterionID); err != nil {
		return false, fmt.Errorf("count criterion met: %w", err)
	}
	return count > 0, nil
}

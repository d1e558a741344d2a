package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/obf-labs/issuer-gateway/internal/models"
)

// BackpackRepository persists the links between users and their external
// badge-display accounts.
type BackpackRepository struct {
	db *sqlx.DB
}

// NewBackpackRepository constructs the repository.
func NewBackpackRepository(db *sqlx.DB) *BackpackRepository {
	return &BackpackRepository{db: db}
}

const backpackColumns = `id, user_id, email, provider, verified, requires_verification`

// GetByUserID returns the user's backpack link, or nil when none exists.
func (r *BackpackRepository) GetByUserID(ctx context.Context, userID string) (*models.Backpack, error) {
	const query = `SELECT ` + backpackColumns + ` FROM backpacks WHERE user_id = $1`
	var pack models.Backpack
	err := r.db.GetContext(ctx, &pack, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get backpack: %w", err)
	}
	return &pack, nil
}

// ListAll returns every backpack link, for the email-change reconciler.
func (r *BackpackRepository) ListAll(ctx context.Context) ([]models.Backpack, error) {
	const query = `SELECT ` + backpackColumns + ` FROM backpacks ORDER BY id`
	var packs []models.Backpack
	if err := r.db.SelectContext(ctx, &packs, query); err != nil {
		return nil, fmt.Errorf("list backpacks: %w", err)
	}
	return packs, nil
}

// Disconnect removes a backpack link whose email no longer matches the
// account.
func (r *BackpackRepository) Disconnect(ctx context.Context, id int64) error {
	const query = `DELETE FROM backpacks WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("disconnect backpack: %w", err)
	}
	return nil
}

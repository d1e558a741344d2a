package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/obf-labs/issuer-gateway/internal/models"
)

// FailedRecordRepository persists the durable retry queue for issuances
// that could not be delivered to the remote service.
type FailedRecordRepository struct {
	db *sqlx.DB
}

// NewFailedRecordRepository constructs the repository.
func NewFailedRecordRepository(db *sqlx.DB) *FailedRecordRepository {
	return &FailedRecordRepository{db: db}
}

const failedColumns = `id, status, created_at, snapshot`

// Create inserts a new retry record.
func (r *FailedRecordRepository) Create(ctx context.Context, record *models.IssueFailedRecord) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	if record.Status == "" {
		record.Status = models.FailedStatusPending
	}
	const query = `INSERT INTO issue_failed_records (status, created_at, snapshot)
VALUES ($1, $2, $3) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query, record.Status, record.Timestamp, record.Snapshot).Scan(&record.ID); err != nil {
		return fmt.Errorf("create failed record: %w", err)
	}
	return nil
}

// List returns every queued record, oldest first.
func (r *FailedRecordRepository) List(ctx context.Context) ([]models.IssueFailedRecord, error) {
	const query = `SELECT ` + failedColumns + ` FROM issue_failed_records ORDER BY created_at ASC`
	var records []models.IssueFailedRecord
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("list failed records: %w", err)
	}
	return records, nil
}

// GetByID returns one record.
func (r *FailedRecordRepository) GetByID(ctx context.Context, id int64) (*models.IssueFailedRecord, error) {
	const query = `SELECT ` + failedColumns + ` FROM issue_failed_records WHERE id = $1`
	var record models.IssueFailedRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, fmt.Errorf("get failed record: %w", err)
	}
	return &record, nil
}

// UpdateStatus moves a record through the pending -> success/error
// lifecycle.
func (r *FailedRecordRepository) UpdateStatus(ctx context.Context, id int64, status models.FailedStatus) error {
	const query = `UPDATE issue_failed_records SET status = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, status, id); err != nil {
		return fmt.Errorf("update failed record status: %w", err)
	}
	return nil
}

// Delete removes a record from the queue.
func (r *FailedRecordRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM issue_failed_records WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete failed record: %w", err)
	}
	return nil
}

package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/obf-labs/issuer-gateway/internal/models"
	appErrors "github.com/obf-labs/issuer-gateway/pkg/errors"
)

type failedAdminStore interface {
	failedStore
	GetByID(ctx context.Context, id int64) (*models.IssueFailedRecord, error)
}

// FailedRecordService exposes the retry queue to the admin surface.
type FailedRecordService struct {
	store  failedAdminStore
	logger *zap.Logger
}

// NewFailedRecordService constructs the service.
func NewFailedRecordService(store failedAdminStore, logger *zap.Logger) *FailedRecordService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FailedRecordService{store: store, logger: logger}
}

// List returns the whole retry queue, oldest first.
func (s *FailedRecordService) List(ctx context.Context) ([]models.IssueFailedRecord, error) {
	return s.store.List(ctx)
}

// Get returns one record.
func (s *FailedRecordService) Get(ctx context.Context, id int64) (*models.IssueFailedRecord, error) {
	record, err := s.store.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "record not found")
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Delete abandons a record, giving up on the delivery.
func (s *FailedRecordService) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("retry record abandoned", zap.Int64("record_id", id))
	return nil
}

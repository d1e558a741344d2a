package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/obf-labs/issuer-gateway/internal/models"
	appErrors "github.com/obf-labs/issuer-gateway/pkg/errors"
)

type criterionAdminStore interface {
	Create(ctx context.Context, criterion *models.Criterion) error
	GetByID(ctx context.Context, id int64) (*models.Criterion, error)
	List(ctx context.Context) ([]models.Criterion, error)
	Delete(ctx context.Context, id int64) error
	HasAnyMet(ctx context.Context, criterionID int64) (bool, error)
}

// CriterionService manages the awarding rules bound to badges.
type CriterionService struct {
	store     criterionAdminStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCriterionService constructs the service.
func NewCriterionService(store criterionAdminStore, validate *validator.Validate, logger *zap.Logger) *CriterionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &CriterionService{store: store, validator: validate, logger: logger}
	svc.validator.RegisterValidation("item_kind", func(fl validator.FieldLevel) bool { //nolint:errcheck
		switch models.CriterionItemKind(fl.Field().String()) {
		case models.ItemKindCourseCompletion, models.ItemKindActivity, models.ItemKindProfile:
			return true
		default:
			return false
		}
	})
	return svc
}

// criterionItemRules ties each item's required fields to its kind: course
// and activity checks need a course, profile checks need a field and value.
type criterionItemRules struct {
	Kind         models.CriterionItemKind `validate:"required,item_kind"`
	CourseID     string                   `validate:"required_unless=Kind profile"`
	ProfileField string                   `validate:"required_if=Kind profile"`
	ProfileValue string                   `validate:"required_if=Kind profile"`
}

// Create stores a new awarding rule.
func (s *CriterionService) Create(ctx context.Context, criterion *models.Criterion) error {
	if criterion.BadgeID == "" {
		return appErrors.New(appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "badge id is required")
	}
	if len(criterion.Items) == 0 {
		return appErrors.New(appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "at least one criterion item is required")
	}
	if criterion.CompletionMethod != models.CompletionAll && criterion.CompletionMethod != models.CompletionAny {
		return appErrors.New(appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unknown completion method")
	}
	for _, item := range criterion.Items {
		rules := criterionItemRules{
			Kind:         item.Kind,
			CourseID:     item.CourseID,
			ProfileField: item.ProfileField,
			ProfileValue: item.ProfileValue,
		}
		if err := s.validator.Struct(rules); err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid criterion item")
		}
	}
	return s.store.Create(ctx, criterion)
}

// Get returns one awarding rule.
func (s *CriterionService) Get(ctx context.Context, id int64) (*models.Criterion, error) {
	criterion, err := s.store.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "criterion not found")
	}
	if err != nil {
		return nil, err
	}
	return criterion, nil
}

// List returns every awarding rule.
func (s *CriterionService) List(ctx context.Context) ([]models.Criterion, error) {
	return s.store.List(ctx)
}

// Delete removes an awarding rule. A rule someone has already met stays,
// because deleting it would orphan the met records that block re-issuing.
func (s *CriterionService) Delete(ctx context.Context, id int64) error {
	met, err := s.store.HasAnyMet(ctx, id)
	if err != nil {
		return err
	}
	if met {
		return appErrors.Clone(appErrors.ErrConflict, "criterion already met by at least one user")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("criterion removed", zap.Int64("criterion_id", id))
	return nil
}

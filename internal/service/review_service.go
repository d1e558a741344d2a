package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/obf-labs/issuer-gateway/internal/models"
)

type criterionStore interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Criterion, error)
	IsMet(ctx context.Context, criterionID int64, userID string) (bool, error)
}

type completionSource interface {
	UpsertCompletion(ctx context.Context, completion models.CourseCompletion) error
	GetCompletion(ctx context.Context, userID, courseID string) (*models.CourseCompletion, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}

type criterionIssuer interface {
	IssueForCriterion(ctx context.Context, criterion models.Criterion, userIDs []string, course CourseContext) error
}

// reviewMarker guards against re-entrant review of the same criterion
// while a batch is in flight.
type reviewMarker interface {
	TryAcquire(ctx context.Context, criterionID int64) (bool, error)
	Release(ctx context.Context, criterionID int64)
}

// CourseContext carries issuance provenance for the remote log entry.
type CourseContext struct {
	CourseID     string
	CourseName   string
	ActivityName string
}

// ReviewService evaluates awarding rules when completion events arrive.
// It holds no state of its own: the criterion-met table is the only
// memory, and a criterion already met for a user is never re-reviewed.
type ReviewService struct {
	criteria    criterionStore
	completions completionSource
	issuer      criterionIssuer
	marker      reviewMarker
	logger      *zap.Logger
}

// NewReviewService constructs the review engine.
func NewReviewService(criteria criterionStore, completions completionSource, issuer criterionIssuer, marker reviewMarker, logger *zap.Logger) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if marker == nil {
		marker = noopMarker{}
	}
	return &ReviewService{
		criteria:    criteria,
		completions: completions,
		issuer:      issuer,
		marker:      marker,
		logger:      logger,
	}
}

// HandleCompletion ingests one completion fact and reviews every criterion
// attached to the course for that user, issuing where the rule passes.
func (s *ReviewService) HandleCompletion(ctx context.Context, completion models.CourseCompletion, course CourseContext) error {
	if err := s.completions.UpsertCompletion(ctx, completion); err != nil {
		return err
	}

	criteria, err := s.criteria.ListByCourse(ctx, completion.CourseID)
	if err != nil {
		return err
	}

	for _, criterion := range criteria {
		met, err := s.Review(ctx, criterion, completion.UserID)
		if err != nil {
			s.logger.Error("criterion review failed",
				zap.Int64("criterion_id", criterion.ID),
				zap.String("user_id", completion.UserID),
				zap.Error(err))
			continue
		}
		if !met {
			continue
		}
		if err := s.issuer.IssueForCriterion(ctx, criterion, []string{completion.UserID}, course); err != nil {
			s.logger.Error("issuance after review failed",
				zap.Int64("criterion_id", criterion.ID),
				zap.Error(err))
		}
	}
	return nil
}

// Review evaluates a criterion for one user. Returns true only when the
// rule passes now and was not already recorded as met; an in-flight review
// of the same criterion causes a skip, not a wait.
func (s *ReviewService) Review(ctx context.Context, criterion models.Criterion, userID string) (bool, error) {
	alreadyMet, err := s.criteria.IsMet(ctx, criterion.ID, userID)
	if err != nil {
		return false, err
	}
	if alreadyMet {
		return false, nil
	}

	acquired, err := s.marker.TryAcquire(ctx, criterion.ID)
	if err != nil {
		return false, err
	}
	if !acquired {
		s.logger.Debug("criterion review already in flight", zap.Int64("criterion_id", criterion.ID))
		return false, nil
	}
	defer s.marker.Release(ctx, criterion.ID)

	return s.evaluate(ctx, criterion, userID)
}

func (s *ReviewService) evaluate(ctx context.Context, criterion models.Criterion, userID string) (bool, error) {
	if len(criterion.Items) == 0 {
		return false, nil
	}

	requireAll := criterion.CompletionMethod != models.CompletionAny

	for _, item := range criterion.Items {
		pass, err := s.reviewItem(ctx, item, userID)
		if err != nil {
			return false, err
		}
		if pass && !requireAll {
			return true, nil
		}
		if !pass && requireAll {
			return false, nil
		}
	}
	return requireAll, nil
}

func (s *ReviewService) reviewItem(ctx context.Context, item models.CriterionItem, userID string) (bool, error) {
	switch item.Kind {
	case models.ItemKindCourseCompletion, models.ItemKindActivity:
		return s.reviewCompletionItem(ctx, item, userID)
	case models.ItemKindProfile:
		return s.reviewProfileItem(ctx, item, userID)
	default:
		return false, fmt.Errorf("unsupported criterion item kind %q", item.Kind)
	}
}

func (s *ReviewService) reviewCompletionItem(ctx context.Context, item models.CriterionItem, userID string) (bool, error) {
	completion, err := s.completions.GetCompletion(ctx, userID, item.CourseID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	// A genuine completion flag is mandatory; thresholds below only apply
	// when configured.
	if !completion.Completed {
		return false, nil
	}

	if item.HasCompletionDate() {
		if completion.CompletedAt == nil || completion.CompletedAt.After(*item.CompletedBy) {
			return false, nil
		}
	}

	if item.HasGrade() {
		if completion.Grade == nil || *completion.Grade < *item.MinGrade {
			return false, nil
		}
	}

	return true, nil
}

func (s *ReviewService) reviewProfileItem(ctx context.Context, item models.CriterionItem, userID string) (bool, error) {
	user, err := s.completions.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	var got string
	switch item.ProfileField {
	case "email":
		got = user.Email
	case "first_name":
		got = user.FirstName
	case "last_name":
		got = user.LastName
	default:
		return false, fmt.Errorf("unsupported profile field %q", item.ProfileField)
	}
	return got != "" && got == item.ProfileValue, nil
}

// RedisReviewMarker implements the in-flight guard with a SETNX key per
// criterion. The TTL is a safety valve against a crashed reviewer leaving
// the marker behind.
type RedisReviewMarker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisReviewMarker constructs the marker.
func NewRedisReviewMarker(client *redis.Client, ttl time.Duration) *RedisReviewMarker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisReviewMarker{client: client, ttl: ttl}
}

func markerKey(criterionID int64) string {
	return fmt.Sprintf("review:inflight:%d", criterionID)
}

// TryAcquire claims the criterion for review.
func (m *RedisReviewMarker) TryAcquire(ctx context.Context, criterionID int64) (bool, error) {
	return m.client.SetNX(ctx, markerKey(criterionID), 1, m.ttl).Result()
}

// Release frees the criterion.
func (m *RedisReviewMarker) Release(ctx context.Context, criterionID int64) {
	m.client.Del(ctx, markerKey(criterionID))
}

type noopMarker struct{}

func (noopMarker) TryAcquire(context.Context, int64) (bool, error) { return true, nil }
func (noopMarker) Release(context.Context, int64)                  {}

package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/obf-labs/issuer-gateway/internal/models"
	"github.com/obf-labs/issuer-gateway/internal/obf"
	appErrors "github.com/obf-labs/issuer-gateway/pkg/errors"
)

type recipientStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	ListByEmails(ctx context.Context, emails []string) ([]models.User, error)
	RecordEmailHistory(ctx context.Context, userID, email string, at time.Time) error
	IsBlacklisted(ctx context.Context, userID, badgeID string) (bool, error)
}

type backpackStore interface {
	GetByUserID(ctx context.Context, userID string) (*models.Backpack, error)
}

type metGuard interface {
	MarkMet(ctx context.Context, criterionID int64, userID string, metAt time.Time) error
}

type failedQueue interface {
	Create(ctx context.Context, record *models.IssueFailedRecord) error
}

type connectionLister interface {
	List(ctx context.Context) ([]models.OAuth2Connection, error)
	GetByID(ctx context.Context, id int64) (*models.OAuth2Connection, error)
}

type notifier interface {
	BadgeIssued(badgeName string, recipients []string, course string)
}

// IssuanceService drives one badge issuance end to end: recipient
// resolution, the remote call, the met-guard write and the audit trail.
// Any failure along the way lands in the durable retry queue instead of
// being lost.
type IssuanceService struct {
	users       recipientStore
	backpacks   backpackStore
	met         metGuard
	failed      failedQueue
	connections connectionLister
	clients     ClientFactory
	notify      notifier
	metrics     *MetricsService
	logger      *zap.Logger
	siteRoot    string
	now         func() time.Time
}

// NewIssuanceService constructs the pipeline.
func NewIssuanceService(users recipientStore, backpacks backpackStore, met metGuard, failed failedQueue, connections connectionLister, clients ClientFactory, notify notifier, metrics *MetricsService, logger *zap.Logger, siteRoot string) *IssuanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IssuanceService{
		users:       users,
		backpacks:   backpacks,
		met:         met,
		failed:      failed,
		connections: connections,
		clients:     clients,
		notify:      notify,
		metrics:     metrics,
		logger:      logger,
		siteRoot:    siteRoot,
		now:         time.Now,
	}
}

// IssueForCriterion issues the criterion's badge to the given users. The
// criterion-met rows are written only after the remote call succeeds; on
// any error the issuance is captured as a retry record and the method
// returns nil, because the queue now owns the delivery.
func (s *IssuanceService) IssueForCriterion(ctx context.Context, criterion models.Criterion, userIDs []string, course CourseContext) error {
	conn, err := s.connections.GetByID(ctx, criterion.ConnectionID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "criterion connection not found")
	}
	client := s.clients(*conn)

	badge, err := client.GetBadge(ctx, criterion.BadgeID)
	if err != nil {
		return err
	}

	recipients, err := s.resolveRecipients(ctx, userIDs, badge.ID)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		s.logger.Info("no issuable recipients", zap.String("badge_id", badge.ID))
		return nil
	}

	emails := make([]string, len(recipients))
	displays := make([]string, len(recipients))
	for i, rec := range recipients {
		emails[i] = rec.email
		displays[i] = rec.display
	}

	issuedOn := s.now().UTC()
	addendum := ""
	if criterion.UseAddendum {
		addendum = criterion.CriteriaAddendum
	}

	req := obf.IssueRequest{
		Badge:            *badge,
		Recipients:       emails,
		IssuedOn:         issuedOn,
		Email:            &badge.Email,
		CriteriaAddendum: addendum,
		CourseID:         course.CourseID,
		CourseName:       course.CourseName,
		ActivityName:     course.ActivityName,
		SiteRoot:         s.siteRoot,
	}

	for _, rec := range recipients {
		if err := s.users.RecordEmailHistory(ctx, rec.userID, rec.email, issuedOn); err != nil {
			s.logger.Warn("email history write failed", zap.String("user_id", rec.userID), zap.Error(err))
		}
	}

	eventID, err := client.IssueBadge(ctx, req)
	if err != nil {
		s.enqueueFailure(ctx, criterion, *badge, emails, issuedOn, addendum, course, err)
		return nil
	}

	for _, rec := range recipients {
		if err := s.met.MarkMet(ctx, criterion.ID, rec.userID, issuedOn); err != nil {
			s.logger.Error("criterion met write failed",
				zap.Int64("criterion_id", criterion.ID),
				zap.String("user_id", rec.userID),
				zap.Error(err))
		}
	}

	if s.metrics != nil {
		s.metrics.RecordIssuance(true)
	}
	if s.notify != nil {
		s.notify.BadgeIssued(badge.Name, displays, course.CourseName)
	}
	s.logger.Info("badge issued",
		zap.String("badge_id", badge.ID),
		zap.String("event_id", eventID),
		zap.Int("recipients", len(recipients)))
	return nil
}

// issueRecipient pairs the delivery email with the human-readable form
// used in notifications.
type issueRecipient struct {
	userID  string
	email   string
	display string
}

// resolveRecipients maps user ids to deliverable emails, preferring a
// verified backpack address over the account address and skipping users who
// blacklisted the badge.
func (s *IssuanceService) resolveRecipients(ctx context.Context, userIDs []string, badgeID string) ([]issueRecipient, error) {
	recipients := make([]issueRecipient, 0, len(userIDs))

	for _, userID := range userIDs {
		blacklisted, err := s.users.IsBlacklisted(ctx, userID, badgeID)
		if err != nil {
			return nil, err
		}
		if blacklisted {
			continue
		}

		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}

		email := user.Email
		pack, err := s.backpacks.GetByUserID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if pack != nil && pack.Verified && pack.Email != "" {
			email = pack.Email
		}

		named := *user
		named.Email = email
		recipients = append(recipients, issueRecipient{
			userID:  userID,
			email:   email,
			display: named.DisplayRecipient(),
		})
	}
	return recipients, nil
}

func (s *IssuanceService) enqueueFailure(ctx context.Context, criterion models.Criterion, badge models.Badge, recipients []string, issuedOn time.Time, addendum string, course CourseContext, cause error) {
	record := &models.IssueFailedRecord{
		Status:    models.FailedStatusPending,
		Timestamp: issuedOn,
		Snapshot: models.IssueSnapshot{
			Version:          models.SnapshotVersion,
			BadgeID:          badge.ID,
			BadgeName:        badge.Name,
			CriterionID:      criterion.ID,
			Recipients:       recipients,
			IssuedOn:         issuedOn.Unix(),
			Email:            badge.Email,
			CriteriaAddendum: addendum,
			Items:            criterion.Items,
			Course:           course.CourseID,
			Activity:         course.ActivityName,
		},
	}

	if s.metrics != nil {
		s.metrics.RecordIssuance(false)
	}

	if err := s.failed.Create(ctx, record); err != nil {
		s.logger.Error("failed to persist retry record", zap.Error(err), zap.NamedError("cause", cause))
		return
	}
	s.logger.Warn("issuance failed, queued for retry",
		zap.String("badge_id", badge.ID),
		zap.Int64("record_id", record.ID),
		zap.Error(cause))
}

// IssueDirect issues a badge to explicit email addresses from the admin
// surface, bypassing criteria. Failures queue the same way.
func (s *IssuanceService) IssueDirect(ctx context.Context, connectionID int64, badgeID string, emails []string, course CourseContext, addendum string) error {
	conn, err := s.connections.GetByID(ctx, connectionID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "connection not found")
	}
	client := s.clients(*conn)

	badge, err := client.GetBadge(ctx, badgeID)
	if err != nil {
		return err
	}

	issuedOn := s.now().UTC()

	users, err := s.users.ListByEmails(ctx, emails)
	if err != nil {
		return err
	}
	displayByEmail := make(map[string]string, len(users))
	for _, user := range users {
		displayByEmail[user.Email] = user.DisplayRecipient()
		if err := s.users.RecordEmailHistory(ctx, user.ID, user.Email, issuedOn); err != nil {
			s.logger.Warn("email history write failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	displays := make([]string, len(emails))
	for i, email := range emails {
		displays[i] = email
		if display, ok := displayByEmail[email]; ok {
			displays[i] = display
		}
	}

	req := obf.IssueRequest{
		Badge:            *badge,
		Recipients:       emails,
		IssuedOn:         issuedOn,
		Email:            &badge.Email,
		CriteriaAddendum: addendum,
		CourseID:         course.CourseID,
		CourseName:       course.CourseName,
		ActivityName:     course.ActivityName,
		SiteRoot:         s.siteRoot,
	}

	eventID, err := client.IssueBadge(ctx, req)
	if err != nil {
		s.enqueueFailure(ctx, models.Criterion{BadgeID: badge.ID, ConnectionID: connectionID}, *badge, emails, issuedOn, addendum, course, err)
		return nil
	}

	if s.metrics != nil {
		s.metrics.RecordIssuance(true)
	}
	if s.notify != nil {
		s.notify.BadgeIssued(badge.Name, displays, course.CourseName)
	}
	s.logger.Info("badge issued", zap.String("badge_id", badge.ID), zap.String("event_id", eventID))
	return nil
}

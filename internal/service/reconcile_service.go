package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/obf-labs/issuer-gateway/internal/models"
	"github.com/obf-labs/issuer-gateway/internal/obf"
)

type failedStore interface {
	List(ctx context.Context) ([]models.IssueFailedRecord, error)
	UpdateStatus(ctx context.Context, id int64, status models.FailedStatus) error
	Delete(ctx context.Context, id int64) error
}

// ReconcileService replays failed issuances from their stored snapshots.
// Each run walks the whole queue: succeeded records are purged, retryable
// ones are re-attempted, and records that keep failing past the grace
// window are parked in the error state for an operator to inspect.
type ReconcileService struct {
	failed      failedStore
	users       recipientStore
	met         metGuard
	connections connectionLister
	clients     ClientFactory
	metrics     *MetricsService
	logger      *zap.Logger
	grace       time.Duration
	siteRoot    string
	now         func() time.Time
}

// NewReconcileService constructs the reconciler.
func NewReconcileService(failed failedStore, users recipientStore, met metGuard, connections connectionLister, clients ClientFactory, metrics *MetricsService, logger *zap.Logger, grace time.Duration, siteRoot string) *ReconcileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if grace <= 0 {
		grace = 24 * time.Hour
	}
	return &ReconcileService{
		failed:      failed,
		users:       users,
		met:         met,
		connections: connections,
		clients:     clients,
		metrics:     metrics,
		logger:      logger,
		grace:       grace,
		siteRoot:    siteRoot,
		now:         time.Now,
	}
}

// Run processes the retry queue once. Individual record failures never
// abort the batch.
func (s *ReconcileService) Run(ctx context.Context) error {
	records, err := s.failed.List(ctx)
	if err != nil {
		return err
	}

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.process(ctx, record)
	}
	if s.metrics != nil {
		s.metrics.RecordReconcileRun()
	}
	return nil
}

func (s *ReconcileService) process(ctx context.Context, record models.IssueFailedRecord) {
	if record.Status == models.FailedStatusSuccess {
		if err := s.failed.Delete(ctx, record.ID); err != nil {
			s.logger.Error("purge of succeeded record failed", zap.Int64("record_id", record.ID), zap.Error(err))
		}
		return
	}
	if !record.Retryable() {
		return
	}

	err := s.retry(ctx, record)
	if err == nil {
		return
	}

	s.logger.Warn("retry failed",
		zap.Int64("record_id", record.ID),
		zap.String("badge_id", record.Snapshot.BadgeID),
		zap.Error(err))

	if record.Age(s.now()) > s.grace && record.Status != models.FailedStatusError {
		if uerr := s.failed.UpdateStatus(ctx, record.ID, models.FailedStatusError); uerr != nil {
			s.logger.Error("status update failed", zap.Int64("record_id", record.ID), zap.Error(uerr))
			return
		}
		s.logger.Warn("record past grace window, parked as error", zap.Int64("record_id", record.ID))
	}
}

// retry re-issues one record. A nil return means the record needs no
// further attention: either the issuance went through or the record was
// dropped as unservable.
func (s *ReconcileService) retry(ctx context.Context, record models.IssueFailedRecord) error {
	snap := record.Snapshot

	client, badge, err := s.findBadge(ctx, snap.BadgeID)
	if err != nil {
		return err
	}
	if client == nil {
		// Badge gone from every issuer account, nothing left to deliver.
		s.logger.Info("badge no longer available, dropping record",
			zap.Int64("record_id", record.ID),
			zap.String("badge_id", snap.BadgeID))
		return s.failed.Delete(ctx, record.ID)
	}

	recipients, userIDs, err := s.filterRecipients(ctx, client, snap)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		s.logger.Info("no remaining recipients, dropping record", zap.Int64("record_id", record.ID))
		return s.failed.Delete(ctx, record.ID)
	}

	req := obf.IssueRequest{
		Badge:            *badge,
		Recipients:       recipients,
		IssuedOn:         time.Unix(snap.IssuedOn, 0).UTC(),
		Email:            &snap.Email,
		CriteriaAddendum: snap.CriteriaAddendum,
		CourseID:         snap.Course,
		ActivityName:     snap.Activity,
		SiteRoot:         s.siteRoot,
	}

	eventID, err := client.IssueBadge(ctx, req)
	if err != nil {
		return err
	}

	if snap.CriterionID > 0 {
		metAt := s.now().UTC()
		for _, userID := range userIDs {
			if err := s.met.MarkMet(ctx, snap.CriterionID, userID, metAt); err != nil {
				s.logger.Error("criterion met write failed",
					zap.Int64("criterion_id", snap.CriterionID),
					zap.String("user_id", userID),
					zap.Error(err))
			}
		}
	}

	if s.metrics != nil {
		s.metrics.RecordIssuance(true)
	}
	s.logger.Info("failed issuance recovered",
		zap.Int64("record_id", record.ID),
		zap.String("event_id", eventID),
		zap.Int("recipients", len(recipients)))
	return s.failed.UpdateStatus(ctx, record.ID, models.FailedStatusSuccess)
}

// findBadge locates the badge on any stored connection. The original
// credentials may have been rotated or removed since the failure, so every
// account is a candidate issuer. A nil client with nil error means no
// account holds the badge.
func (s *ReconcileService) findBadge(ctx context.Context, badgeID string) (BadgeClient, *models.Badge, error) {
	conns, err := s.connections.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, conn := range conns {
		client := s.clients(conn)
		badge, err := client.GetBadge(ctx, badgeID)
		if err != nil {
			continue
		}
		return client, badge, nil
	}
	return nil, nil, nil
}

// filterRecipients drops addresses that no longer map to a known account
// and addresses that already hold an active assertion of the badge.
func (s *ReconcileService) filterRecipients(ctx context.Context, client BadgeClient, snap models.IssueSnapshot) ([]string, []string, error) {
	known, err := s.users.ListByEmails(ctx, snap.Recipients)
	if err != nil {
		return nil, nil, err
	}

	emails := make([]string, 0, len(known))
	userIDs := make([]string, 0, len(known))
	for _, user := range known {
		holding, err := s.alreadyHolding(ctx, client, snap.BadgeID, user.Email)
		if err != nil {
			return nil, nil, err
		}
		if holding {
			s.logger.Debug("recipient already holds badge",
				zap.String("badge_id", snap.BadgeID),
				zap.String("user_id", user.ID))
			continue
		}
		emails = append(emails, user.Email)
		userIDs = append(userIDs, user.ID)
	}
	return emails, userIDs, nil
}

func (s *ReconcileService) alreadyHolding(ctx context.Context, client BadgeClient, badgeID, email string) (bool, error) {
	assertions, err := client.GetAssertions(ctx, badgeID, email)
	if err != nil {
		return false, err
	}
	for _, assertion := range assertions {
		if !assertion.IsRevokedFor(email) {
			return true, nil
		}
	}
	return false, nil
}

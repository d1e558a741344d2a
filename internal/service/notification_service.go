package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/obf-labs/issuer-gateway/pkg/jobs"
)

const (
	jobBadgeIssued = "badge_issued"
	jobCertExpiry  = "cert_expiry_reminder"
)

// BadgeIssuedNotice is the payload for an issuance notification.
type BadgeIssuedNotice struct {
	BadgeName  string   `json:"badge_name"`
	Recipients []string `json:"recipients"`
	CourseName string   `json:"course_name,omitempty"`
}

// CertExpiryNotice is the payload for a certificate expiry reminder.
type CertExpiryNotice struct {
	ConnectionID   int64     `json:"connection_id"`
	ConnectionName string    `json:"connection_name"`
	ExpiresAt      time.Time `json:"expires_at"`
	DaysLeft       int       `json:"days_left"`
}

// NotificationService fans notices out through the background job queue so
// issuance never waits on delivery.
type NotificationService struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService constructs the service and its queue.
func NewNotificationService(cfg jobs.QueueConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{logger: logger}
	cfg.Logger = logger
	s.queue = jobs.NewQueue("notifications", s.handle, cfg)
	return s
}

// Start launches the queue workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the queue workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// BadgeIssued queues an issuance notice.
func (s *NotificationService) BadgeIssued(badgeName string, recipients []string, course string) {
	s.enqueue(jobBadgeIssued, BadgeIssuedNotice{
		BadgeName:  badgeName,
		Recipients: recipients,
		CourseName: course,
	})
}

// CertExpiring queues a certificate expiry reminder.
func (s *NotificationService) CertExpiring(notice CertExpiryNotice) {
	s.enqueue(jobCertExpiry, notice)
}

func (s *NotificationService) enqueue(jobType string, payload interface{}) {
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobType,
		Payload: payload,
	})
	if err != nil {
		s.logger.Warn("notification dropped", zap.String("type", jobType), zap.Error(err))
	}
}

func (s *NotificationService) handle(_ context.Context, job jobs.Job) error {
	switch job.Type {
	case jobBadgeIssued:
		notice, ok := job.Payload.(BadgeIssuedNotice)
		if !ok {
			return fmt.Errorf("unexpected payload for %s", job.Type)
		}
		s.logger.Info("issuance notice",
			zap.String("badge", notice.BadgeName),
			zap.Int("recipients", len(notice.Recipients)),
			zap.String("course", notice.CourseName))
	case jobCertExpiry:
		notice, ok := job.Payload.(CertExpiryNotice)
		if !ok {
			return fmt.Errorf("unexpected payload for %s", job.Type)
		}
		s.logger.Warn("client certificate expiring",
			zap.Int64("connection_id", notice.ConnectionID),
			zap.String("connection", notice.ConnectionName),
			zap.Int("days_left", notice.DaysLeft),
			zap.Time("expires_at", notice.ExpiresAt))
	default:
		return fmt.Errorf("unknown job type %s", job.Type)
	}
	return nil
}

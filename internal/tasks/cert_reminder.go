package tasks

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/obf-labs/issuer-gateway/internal/models"
	"github.com/obf-labs/issuer-gateway/internal/service"
)

// reminderDays are the days-left marks at which a reminder fires. The
// cadence tightens as expiry approaches.
var reminderDays = []int{30, 25, 20, 15, 10, 5, 4, 3, 2, 1}

type connectionSource interface {
	List(ctx context.Context) ([]models.OAuth2Connection, error)
}

type expiryNotifier interface {
	CertExpiring(notice service.CertExpiryNotice)
}

// CertReminder warns operators ahead of legacy client certificate expiry.
// Each connection is reminded at most once per days-left mark; the marks
// already fired are tracked in memory, so a restart re-fires the current
// mark once.
type CertReminder struct {
	connections connectionSource
	notify      expiryNotifier
	logger      *zap.Logger
	now         func() time.Time

	mu       sync.Mutex
	notified map[int64]int
}

// NewCertReminder constructs the reminder.
func NewCertReminder(connections connectionSource, notify expiryNotifier, logger *zap.Logger) *CertReminder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CertReminder{
		connections: connections,
		notify:      notify,
		logger:      logger,
		now:         time.Now,
		notified:    make(map[int64]int),
	}
}

// Run checks every stored certificate once.
func (r *CertReminder) Run(ctx context.Context) error {
	conns, err := r.connections.List(ctx)
	if err != nil {
		return err
	}

	now := r.now()
	for _, conn := range conns {
		if conn.CertPEM == nil || *conn.CertPEM == "" {
			continue
		}
		expires, err := certExpiry(*conn.CertPEM)
		if err != nil {
			r.logger.Warn("unreadable client certificate",
				zap.Int64("connection_id", conn.ID),
				zap.Error(err))
			continue
		}

		daysLeft := int(expires.Sub(now).Hours() / 24)
		mark, ok := reminderMark(daysLeft)
		if !ok {
			continue
		}

		r.mu.Lock()
		fired := r.notified[conn.ID] == mark
		if !fired {
			r.notified[conn.ID] = mark
		}
		r.mu.Unlock()
		if fired {
			continue
		}

		r.notify.CertExpiring(service.CertExpiryNotice{
			ConnectionID:   conn.ID,
			ConnectionName: conn.Name,
			ExpiresAt:      expires,
			DaysLeft:       daysLeft,
		})
	}
	return nil
}

// reminderMark returns the closest reminder mark at or above daysLeft.
func reminderMark(daysLeft int) (int, bool) {
	if daysLeft < 0 || daysLeft > reminderDays[0] {
		return 0, false
	}
	mark := reminderDays[0]
	for _, d := range reminderDays {
		if daysLeft <= d {
			mark = d
		}
	}
	return mark, true
}

func certExpiry(pemData string) (time.Time, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return time.Time{}, fmt.Errorf("no PEM block found")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse certificate: %w", err)
	}
	return cert.NotAfter, nil
}

// NewCertReminderTask wraps the reminder as a periodic task.
func NewCertReminderTask(reminder *CertReminder, interval time.Duration) Task {
	return Task{
		Name:       "cert_expiry_reminder",
		Interval:   interval,
		RunOnStart: true,
		Run:        reminder.Run,
	}
}

package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/obf-labs/issuer-gateway/internal/models"
)

type backpackSweepStore interface {
	ListAll(ctx context.Context) ([]models.Backpack, error)
	Disconnect(ctx context.Context, id int64) error
}

type accountSource interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// EmailChangeSweep disconnects backpack links whose address no longer
// matches the owning account. Providers that verify addresses themselves
// are left alone; the link stays valid until the user re-verifies.
type EmailChangeSweep struct {
	backpacks backpackSweepStore
	users     accountSource
	logger    *zap.Logger
}

// NewEmailChangeSweep constructs the sweep.
func NewEmailChangeSweep(backpacks backpackSweepStore, users accountSource, logger *zap.Logger) *EmailChangeSweep {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailChangeSweep{backpacks: backpacks, users: users, logger: logger}
}

// Run walks every backpack link once.
func (s *EmailChangeSweep) Run(ctx context.Context) error {
	packs, err := s.backpacks.ListAll(ctx)
	if err != nil {
		return err
	}

	for _, pack := range packs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if pack.RequiresVerification {
			continue
		}

		user, err := s.users.GetByID(ctx, pack.UserID)
		if err != nil {
			s.logger.Warn("backpack owner lookup failed",
				zap.Int64("backpack_id", pack.ID),
				zap.String("user_id", pack.UserID),
				zap.Error(err))
			continue
		}
		if user.Email == pack.Email {
			continue
		}

		if err := s.backpacks.Disconnect(ctx, pack.ID); err != nil {
			s.logger.Error("backpack disconnect failed", zap.Int64("backpack_id", pack.ID), zap.Error(err))
			continue
		}
		s.logger.Info("backpack disconnected after email change",
			zap.Int64("backpack_id", pack.ID),
			zap.String("user_id", pack.UserID))
	}
	return nil
}

// NewEmailChangeTask wraps the sweep as a periodic task.
func NewEmailChangeTask(sweep *EmailChangeSweep, interval time.Duration) Task {
	return Task{
		Name:     "email_change_sweep",
		Interval: interval,
		Run:      sweep.Run,
	}
}

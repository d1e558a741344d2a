package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/obf-labs/issuer-gateway/internal/models"
	appErrors "github.com/obf-labs/issuer-gateway/pkg/errors"
)

// BadgeService fronts the remote badge catalogue. Unfiltered listings are
// served from cache when possible because the remote paginated fetch is
// the most expensive call the gateway makes.
type BadgeService struct {
	connections connectionLister
	clients     ClientFactory
	cache       *CacheService
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// NewBadgeService constructs the badge service.
func NewBadgeService(connections connectionLister, clients ClientFactory, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *BadgeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BadgeService{
		connections: connections,
		clients:     clients,
		cache:       cache,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

func (s *BadgeService) client(ctx context.Context, connectionID int64) (BadgeClient, error) {
	conn, err := s.connections.GetByID(ctx, connectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "connection not found")
	}
	return s.clients(*conn), nil
}

func badgeListKey(connectionID int64) string {
	return fmt.Sprintf("badges:list:%d", connectionID)
}

// ListBadges returns the issuable badges for one connection, name-sorted.
// Only the unfiltered listing is cached; filtered queries go upstream.
func (s *BadgeService) ListBadges(ctx context.Context, connectionID int64, categories []string, query string) ([]models.Badge, error) {
	client, err := s.client(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	cacheable := len(categories) == 0 && query == ""
	key := badgeListKey(connectionID)

	if cacheable {
		var cached []models.Badge
		hit, err := s.cache.Get(ctx, key, &cached)
		if err == nil && hit {
			return cached, nil
		}
	}

	badges, err := client.GetBadges(ctx, categories, query)
	if err != nil {
		return nil, err
	}

	if cacheable {
		if err := s.cache.Set(ctx, key, badges, s.cacheTTL); err != nil {
			s.logger.Warn("badge list cache write failed", zap.Int64("connection_id", connectionID), zap.Error(err))
		}
	}
	return badges, nil
}

// GetBadge fetches one badge.
func (s *BadgeService) GetBadge(ctx context.Context, connectionID int64, badgeID string) (*models.Badge, error) {
	client, err := s.client(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	return client.GetBadge(ctx, badgeID)
}

// GetCategories fetches the issuer's category list.
func (s *BadgeService) GetCategories(ctx context.Context, connectionID int64) ([]string, error) {
	client, err := s.client(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	return client.GetCategories(ctx)
}

// ExportBadge pushes a locally defined badge to the remote issuer account
// and drops the stale listing cache.
func (s *BadgeService) ExportBadge(ctx context.Context, connectionID int64, badge models.Badge) error {
	client, err := s.client(ctx, connectionID)
	if err != nil {
		return err
	}
	if err := client.ExportBadge(ctx, badge); err != nil {
		return err
	}
	if err := s.cache.Invalidate(ctx, badgeListKey(connectionID)); err != nil {
		s.logger.Warn("badge list cache invalidation failed", zap.Int64("connection_id", connectionID), zap.Error(err))
	}
	return nil
}

// DeleteBadge removes a badge from the remote issuer account and drops the
// stale listing cache.
func (s *BadgeService) DeleteBadge(ctx context.Context, connectionID int64, badgeID string) error {
	client, err := s.client(ctx, connectionID)
	if err != nil {
		return err
	}
	if err := client.DeleteBadge(ctx, badgeID); err != nil {
		return err
	}
	if err := s.cache.Invalidate(ctx, badgeListKey(connectionID)); err != nil {
		s.logger.Warn("badge list cache invalidation failed", zap.Int64("connection_id", connectionID), zap.Error(err))
	}
	return nil
}

// GetAssertions lists issuance events for a badge, a recipient, or both.
func (s *BadgeService) GetAssertions(ctx context.Context, connectionID int64, badgeID, email string) ([]models.Assertion, error) {
	client, err := s.client(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	return client.GetAssertions(ctx, badgeID, email)
}

// GetEvent fetches one issuance event.
func (s *BadgeService) GetEvent(ctx context.Context, connectionID int64, eventID string) (*models.Assertion, error) {
	client, err := s.client(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	return client.GetEvent(ctx, eventID)
}

// RevokeEvent revokes an issuance event for the given recipients.
func (s *BadgeService) RevokeEvent(ctx context.Context, connectionID int64, eventID string, emails []string) error {
	client, err := s.client(ctx, connectionID)
	if err != nil {
		return err
	}
	return client.RevokeEvent(ctx, eventID, emails)
}

package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/obf-labs/issuer-gateway/internal/models"
	appErrors "github.com/obf-labs/issuer-gateway/pkg/errors"
)

// PrefBadgesOnProfile opts a user into the public profile badge listing.
const PrefBadgesOnProfile = "badges_on_profile"

var knownPreferences = map[string]bool{
	PrefBadgesOnProfile: true,
}

type preferenceStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	ListPreferences(ctx context.Context, userID string) ([]models.UserPreference, error)
	SetPreference(ctx context.Context, userID, name, value string) error
}

// PreferenceService manages per-user display flags and the profile badge
// listing they gate.
type PreferenceService struct {
	users       preferenceStore
	connections connectionLister
	clients     ClientFactory
	logger      *zap.Logger
}

// NewPreferenceService constructs the service.
func NewPreferenceService(users preferenceStore, connections connectionLister, clients ClientFactory, logger *zap.Logger) *PreferenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PreferenceService{
		users:       users,
		connections: connections,
		clients:     clients,
		logger:      logger,
	}
}

// List returns the user's stored preferences.
func (s *PreferenceService) List(ctx context.Context, userID string) ([]models.UserPreference, error) {
	return s.users.ListPreferences(ctx, userID)
}

// Set stores one preference value.
func (s *PreferenceService) Set(ctx context.Context, userID, name, value string) error {
	if !knownPreferences[name] {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown preference %q", name))
	}
	if value != "0" && value != "1" {
		return appErrors.Clone(appErrors.ErrValidation, "preference value must be 0 or 1")
	}
	return s.users.SetPreference(ctx, userID, name, value)
}

// ProfileBadges lists the badges earned by a user for embedding on the host
// profile page. The listing is opt-in; without the flag nothing is exposed.
// Revoked assertions never appear. A single unreachable tenant degrades the
// listing instead of failing it.
func (s *PreferenceService) ProfileBadges(ctx context.Context, userID string) ([]models.Assertion, error) {
	prefs, err := s.users.ListPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	enabled := false
	for _, pref := range prefs {
		if pref.Name == PrefBadgesOnProfile && pref.Value == "1" {
			enabled = true
			break
		}
	}
	if !enabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "user has not published badges")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "user not found")
	}

	conns, err := s.connections.List(ctx)
	if err != nil {
		return nil, err
	}

	var out []models.Assertion
	for _, conn := range conns {
		client := s.clients(conn)
		assertions, err := client.GetAssertions(ctx, "", user.Email)
		if err != nil {
			s.logger.Warn("profile badge lookup failed",
				zap.Int64("connection_id", conn.ID),
				zap.String("user_id", userID),
				zap.Error(err))
			continue
		}
		for _, assertion := range assertions {
			if assertion.IsRevokedFor(user.Email) {
				continue
			}
			out = append(out, assertion)
		}
	}
	return out, nil
}

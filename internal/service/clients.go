package service

import (
	"context"

	"github.com/obf-labs/issuer-gateway/internal/models"
	"github.com/obf-labs/issuer-gateway/internal/obf"
)

// BadgeClient is the slice of the API client the services depend on.
type BadgeClient interface {
	GetBadges(ctx context.Context, categories []string, query string) ([]models.Badge, error)
	GetBadge(ctx context.Context, badgeID string) (*models.Badge, error)
	GetCategories(ctx context.Context) ([]string, error)
	ExportBadge(ctx context.Context, badge models.Badge) error
	DeleteBadge(ctx context.Context, badgeID string) error
	IssueBadge(ctx context.Context, req obf.IssueRequest) (string, error)
	GetAssertions(ctx context.Context, badgeID, email string) ([]models.Assertion, error)
	GetEvent(ctx context.Context, eventID string) (*models.Assertion, error)
	RevokeEvent(ctx context.Context, eventID string, emails []string) error
	TestConnection(ctx context.Context) int
	Connection() models.OAuth2Connection
}

// ClientFactory builds a client bound to one stored credential set. A
// function type keeps test stubbing trivial.
type ClientFactory func(conn models.OAuth2Connection) BadgeClient

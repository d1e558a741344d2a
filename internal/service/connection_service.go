package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/obf-labs/issuer-gateway/internal/models"
	appErrors "github.com/obf-labs/issuer-gateway/pkg/errors"
)

type connectionStore interface {
	connectionLister
	Create(ctx context.Context, conn *models.OAuth2Connection) error
	Delete(ctx context.Context, id int64) error
}

// ConnectionService manages stored issuer credentials.
type ConnectionService struct {
	store      connectionStore
	clients    ClientFactory
	defaultURL string
	logger     *zap.Logger
}

// NewConnectionService constructs the service. defaultURL fills in the API
// base for connections created without one.
func NewConnectionService(store connectionStore, clients ClientFactory, defaultURL string, logger *zap.Logger) *ConnectionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectionService{store: store, clients: clients, defaultURL: defaultURL, logger: logger}
}

// List returns every stored connection.
func (s *ConnectionService) List(ctx context.Context) ([]models.OAuth2Connection, error) {
	return s.store.List(ctx)
}

// Get returns one connection.
func (s *ConnectionService) Get(ctx context.Context, id int64) (*models.OAuth2Connection, error) {
	conn, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "connection not found")
	}
	return conn, nil
}

// Create validates and stores a credential set. The credentials are probed
// against the remote API first so a typo never lands in the rotation pool.
func (s *ConnectionService) Create(ctx context.Context, conn *models.OAuth2Connection) error {
	if conn.BaseURL == "" {
		conn.BaseURL = s.defaultURL
	}
	if err := conn.Validate(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	if code := s.clients(*conn).TestConnection(ctx); code != models.ConnectionOK {
		s.logger.Warn("connection probe rejected credentials",
			zap.String("client_id", conn.ClientID),
			zap.Int("code", code))
		return appErrors.New(appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "credentials rejected by the badge factory")
	}

	if err := s.store.Create(ctx, conn); err != nil {
		return err
	}
	s.logger.Info("connection stored", zap.Int64("connection_id", conn.ID), zap.String("name", conn.Name))
	return nil
}

// Delete removes a stored connection.
func (s *ConnectionService) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("connection removed", zap.Int64("connection_id", id))
	return nil
}

// Test probes the credentials of a stored connection and returns the raw
// probe code.
func (s *ConnectionService) Test(ctx context.Context, id int64) (int, error) {
	conn, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return s.clients(*conn).TestConnection(ctx), nil
}

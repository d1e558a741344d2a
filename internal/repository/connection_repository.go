package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/obf-labs/issuer-gateway/internal/models"
)

// ConnectionRepository persists stored OAuth2 credential sets.
type ConnectionRepository struct {
	db *sqlx.DB
}

// NewConnectionRepository constructs the repository.
func NewConnectionRepository(db *sqlx.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

const connectionColumns = `id, client_name, client_id, client_secret, obf_url, access_token, token_expires, cert_pem, created_at`

// List returns every stored connection ordered by display name.
func (r *ConnectionRepository) List(ctx context.Context) ([]models.OAuth2Connection, error) {
	const query = `SELECT ` + connectionColumns + ` FROM oauth2_connections ORDER BY client_name`
	var out []models.OAuth2Connection
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	return out, nil
}

// GetByID returns one connection row.
func (r *ConnectionRepository) GetByID(ctx context.Context, id int64) (*models.OAuth2Connection, error) {
	const query = `SELECT ` + connectionColumns + ` FROM oauth2_connections WHERE id = $1`
	var conn models.OAuth2Connection
	if err := r.db.GetContext(ctx, &conn, query, id); err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	return &conn, nil
}

// ListOthers returns every connection except the one identified by
// clientID. Used by the API client's 403 fallback rotation.
func (r *ConnectionRepository) ListOthers(ctx context.Context, exceptClientID string) ([]models.OAuth2Connection, error) {
	const query = `SELECT ` + connectionColumns + ` FROM oauth2_connections WHERE client_id != $1 ORDER BY client_name`
	var out []models.OAuth2Connection
	if err := r.db.SelectContext(ctx, &out, query, exceptClientID); err != nil {
		return nil, fmt.Errorf("list other connections: %w", err)
	}
	return out, nil
}

// Create inserts a new credential set.
func (r *ConnectionRepository) Create(ctx context.Context, conn *models.OAuth2Connection) error {
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO oauth2_connections (client_name, client_id, client_secret, obf_url, cert_pem, created_at)
VALUES (:client_name, :client_id, :client_secret, :obf_url, :cert_pem, :created_at) RETURNING id`
	rows, err := r.db.NamedQueryContext(ctx, query, conn)
	if err != nil {
		return fmt.Errorf("create connection: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&conn.ID); err != nil {
			return fmt.Errorf("create connection: %w", err)
		}
	}
	return nil
}

// Delete removes a credential set.
func (r *ConnectionRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM oauth2_connections WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	return nil
}

// SaveToken persists a refreshed access token back to the credential row.
func (r *ConnectionRepository) SaveToken(ctx context.Context, connectionID int64, token string, expires time.Time) error {
	const query = `UPDATE oauth2_connections SET access_token = $1, token_expires = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, token, expires, connectionID); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

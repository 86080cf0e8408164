package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"verify-gateway/internal/device"
	"verify-gateway/internal/verification"
	"verify-gateway/pkg/platform/sentinel"
)

// PostgresStore persists sessions in Postgres through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects a pool and prepares the sessions table.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS verification_sessions (
	id UUID PRIMARY KEY,
	app_id TEXT NOT NULL,
	action TEXT NOT NULL,
	level TEXT NOT NULL,
	environment TEXT NOT NULL,
	mode TEXT NOT NULL,
	device TEXT NOT NULL DEFAULT '',
	fingerprint TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	result JSONB,
	redirect_url TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create sessions table: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Save(ctx context.Context, session verification.Session) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO verification_sessions
	(id, app_id, action, level, environment, mode, device, fingerprint, status, result, redirect_url, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	result = EXCLUDED.result,
	redirect_url = EXCLUDED.redirect_url,
	updated_at = EXCLUDED.updated_at`,
		session.ID, session.AppID, session.Action, session.Level,
		string(session.Environment), string(session.Mode),
		session.Device, session.Fingerprint, string(session.Status),
		session.Result, session.RedirectURL,
		session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (verification.Session, error) {
	var (
		session     verification.Session
		environment string
		mode        string
		status      string
	)
	err := s.pool.QueryRow(ctx, `
SELECT id, app_id, action, level, environment, mode, device, fingerprint, status, result, redirect_url, created_at, updated_at
FROM verification_sessions WHERE id = $1`, id).Scan(
		&session.ID, &session.AppID, &session.Action, &session.Level,
		&environment, &mode,
		&session.Device, &session.Fingerprint, &status,
		&session.Result, &session.RedirectURL,
		&session.CreatedAt, &session.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return verification.Session{}, sentinel.ErrNotFound
	}
	if err != nil {
		return verification.Session{}, fmt.Errorf("find session: %w", err)
	}

	session.Environment = device.Environment(environment)
	session.Mode = verification.Mode(mode)
	session.Status = verification.Status(status)
	return session, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS access_keys (
    value       TEXT PRIMARY KEY,
    status      TEXT NOT NULL DEFAULT 'available'
                CHECK (status IN ('available', 'assigned', 'revoked')),
    owner       TEXT,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    assigned_at TIMESTAMPTZ,
    revoked_at  TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS access_keys_assigned_owner
    ON access_keys (owner) WHERE status = 'assigned';

CREATE INDEX IF NOT EXISTS access_keys_available
    ON access_keys (created_at) WHERE status = 'available';`

const keyColumns = `value, status, owner, created_at, assigned_at, revoked_at`

// PostgresStore keeps the key pool in Postgres. Row locks serialize
// transitions per key; unrelated keys proceed independently.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore connects and ensures the schema exists
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	if connString == "" {
		return nil, fmt.Errorf("database url is required for the postgres key store")
	}

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := &PostgresStore{db: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the access_keys table and indexes
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.db.Close()
}

func (s *PostgresStore) Seed(ctx context.Context, size int) (int, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Concurrent seeders would otherwise both see the same count
	if _, err := tx.Exec(ctx, `LOCK TABLE access_keys IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return 0, fmt.Errorf("lock: %w", err)
	}

	var count int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM access_keys`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count keys: %w", err)
	}

	missing := size - count
	if missing <= 0 {
		return 0, nil
	}

	rows := make([][]any, missing)
	for i := range rows {
		rows[i] = []any{NewKeyValue()}
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{"access_keys"}, []string{"value"}, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("insert keys: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) Assign(ctx context.Context, owner string) (*AccessKey, error) {
	if owner == "" {
		return nil, ErrEmptyOwner
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var held bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM access_keys WHERE owner = $1 AND status = 'assigned')`,
		owner,
	).Scan(&held)
	if err != nil {
		return nil, fmt.Errorf("check owner: %w", err)
	}
	if held {
		return nil, ErrAlreadyAssigned
	}

	query := `
		UPDATE access_keys SET
			status = 'assigned',
			owner = $1,
			assigned_at = NOW()
		WHERE value = (
			SELECT value FROM access_keys
			WHERE status = 'available'
			ORDER BY created_at, value
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + keyColumns

	key, err := scanKey(tx.QueryRow(ctx, query, owner))
	if err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, ErrNoKeysAvailable
		case errors.As(err, &pgErr) && pgErr.Code == uniqueViolation:
			return nil, ErrAlreadyAssigned
		}
		return nil, fmt.Errorf("assign key: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrAlreadyAssigned
		}
		return nil, fmt.Errorf("commit: %w", err)
	}
	return key, nil
}

func (s *PostgresStore) Get(ctx context.Context, value string) (*AccessKey, error) {
	key, err := scanKey(s.db.QueryRow(ctx, `SELECT `+keyColumns+` FROM access_keys WHERE value = $1`, value))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get key: %w", err)
	}
	return key, nil
}

func (s *PostgresStore) Revoke(ctx context.Context, value string) (*AccessKey, error) {
	query := `
		UPDATE access_keys SET
			status = 'revoked',
			revoked_at = NOW()
		WHERE value = $1 AND status <> 'revoked'
		RETURNING ` + keyColumns

	key, err := scanKey(s.db.QueryRow(ctx, query, value))
	if errors.Is(err, pgx.ErrNoRows) {
		// Either unknown or already revoked
		if _, getErr := s.Get(ctx, value); getErr != nil {
			return nil, getErr
		}
		return nil, ErrKeyRevoked
	}
	if err != nil {
		return nil, fmt.Errorf("revoke key: %w", err)
	}
	return key, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]AccessKey, error) {
	rows, err := s.db.Query(ctx, `SELECT `+keyColumns+` FROM access_keys ORDER BY created_at, value`)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []AccessKey
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, *key)
	}
	return keys, rows.Err()
}

func scanKey(row pgx.Row) (*AccessKey, error) {
	var (
		key    AccessKey
		status string
		owner  *string
	)
	if err := row.Scan(&key.Value, &status, &owner, &key.CreatedAt, &key.AssignedAt, &key.RevokedAt); err != nil {
		return nil, err
	}
	key.Status = KeyStatus(status)
	if owner != nil {
		key.Owner = *owner
	}
	return &key, nil
}

package cache

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// PostgresStore implements Store on the kv_entries table (see migrations/).
// Expiry is evaluated by the database clock on read; expired rows linger until overwritten.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore uses an already connected and migrated database.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const (
	pgSelectEntry = `SELECT value FROM kv_entries
WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`

	pgUpsertEntry = `INSERT INTO kv_entries (key, value, expires_at)
VALUES ($1, $2, CASE WHEN $3::bigint > 0 THEN now() + $3::bigint * interval '1 millisecond' ELSE NULL END)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`

	pgDeleteEntry = `DELETE FROM kv_entries WHERE key = $1`
)

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	if err := s.db.GetContext(ctx, &value, pgSelectEntry, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, pgUpsertEntry, key, value, ttl.Milliseconds())
	return err
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, pgDeleteEntry, key)
	return err
}

// Close leaves the pool open; it belongs to the bootstrap pipeline.
func (s *PostgresStore) Close() error { return nil }

// PurgeExpired deletes rows whose expiry has passed and reports how many were removed.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	var removed int64
	if err := s.db.GetContext(ctx, &removed, `SELECT kv_purge_expired()`); err != nil {
		return 0, err
	}
	return removed, nil
}

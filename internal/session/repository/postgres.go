package repository

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresStore keeps session keys in the client_session_kv table (see internal/db/migrations),
// partitioned by namespace so several clients can share one database.
type PostgresStore struct {
	db        *sql.DB
	namespace string
}

// NewPostgresStore returns a store that uses the given db for persistence.
func NewPostgresStore(db *sql.DB, namespace string) *PostgresStore {
	return &PostgresStore{db: db, namespace: namespace}
}

// Get returns the value for key, or ok false if there is no row.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}
	var v string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM client_session_kv WHERE namespace = $1 AND key = $2`,
		r.namespace, key,
	).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return v, true, nil
}

// Set upserts value under key.
func (r *PostgresStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO client_session_kv (namespace, key, value, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		r.namespace, key, value,
	)
	return err
}

// Remove deletes key. Removing a missing key is not an error.
func (r *PostgresStore) Remove(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM client_session_kv WHERE namespace = $1 AND key = $2`,
		r.namespace, key,
	)
	return err
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/kasukras-star/apotikme-api/pkg/errors"
)

// SQLKVRepository keeps JSON documents in a kv_entries table. It serves the SQLite local
// cache and the Postgres remote store; placeholders are rebound per driver.
type SQLKVRepository struct {
	db *sqlx.DB
}

// NewSQLKVRepository constructs the repository.
func NewSQLKVRepository(db *sqlx.DB) *SQLKVRepository {
	return &SQLKVRepository{db: db}
}

const (
	selectKVQuery = `SELECT value FROM kv_entries WHERE key = ?`
	upsertKVQuery = `INSERT INTO kv_entries (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
)

// Get returns the raw document for key.
func (r *SQLKVRepository) Get(ctx context.Context, key string) (json.RawMessage, error) {
	var raw []byte
	if err := r.db.GetContext(ctx, &raw, r.db.Rebind(selectKVQuery), key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrKeyNotFound
		}
		return nil, fmt.Errorf("get kv %s: %w", key, err)
	}
	return json.RawMessage(raw), nil
}

// Set upserts a single document.
func (r *SQLKVRepository) Set(ctx context.Context, key string, value json.RawMessage) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(upsertKVQuery), key, string(value)); err != nil {
		return fmt.Errorf("set kv %s: %w", key, err)
	}
	return nil
}

// SetMany upserts every entry in one transaction; either all keys change or none do.
func (r *SQLKVRepository) SetMany(ctx context.Context, entries map[string]json.RawMessage) (err error) {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin kv batch: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := tx.Rebind(upsertKVQuery)
	for _, key := range sortedKeys(entries) {
		if _, err = tx.ExecContext(ctx, query, key, string(entries[key])); err != nil {
			return fmt.Errorf("set kv %s: %w", key, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit kv batch: %w", err)
	}
	return nil
}

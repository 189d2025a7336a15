package statestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/at-ishikawa/dynsyn/internal/database"
)

//go:generate mockgen -source=repository.go -destination=../mocks/statestore/mock_repository.go -package=mock_statestore

// Repository loads and saves source records.
type Repository interface {
	// Load returns the record of source, or nil if nothing was saved yet.
	Load(ctx context.Context, source string) (*Record, error)
	Save(ctx context.Context, record *Record) error
}

// DBRepository implements Repository using MySQL.
type DBRepository struct {
	db *sqlx.DB
}

var _ Repository = (*DBRepository)(nil)

// NewDBRepository creates a new DBRepository.
func NewDBRepository(db *sqlx.DB) *DBRepository {
	return &DBRepository{db: db}
}

// Load returns the record of source, or nil if not found.
func (r *DBRepository) Load(ctx context.Context, source string) (*Record, error) {
	var record Record
	err := r.db.GetContext(ctx, &record,
		`SELECT source, location, last_modified, etag, offset_cursor, incremental, last_action, rules, relations, version, created_at, updated_at
		FROM source_states WHERE source = ?`, source)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db.GetContext(source_state) > %w", err)
	}
	return &record, nil
}

// Save upserts the record and appends the published version to the history.
func (r *DBRepository) Save(ctx context.Context, record *Record) error {
	return database.RunInTx(ctx, r.db, func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO source_states (source, location, last_modified, etag, offset_cursor, incremental, last_action, rules, relations, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE location = VALUES(location), last_modified = VALUES(last_modified), etag = VALUES(etag),
			offset_cursor = VALUES(offset_cursor), incremental = VALUES(incremental), last_action = VALUES(last_action),
			rules = VALUES(rules), relations = VALUES(relations), version = VALUES(version),
			created_at = VALUES(created_at), updated_at = VALUES(updated_at)`,
			record.Source, record.Location, record.LastModified, record.ETag, record.Offset, record.Incremental,
			string(record.LastAction), record.Rules, record.Relations, record.Version, record.CreatedAt, record.UpdatedAt)
		if err != nil {
			return fmt.Errorf("tx.ExecContext(upsert source_state) > %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO snapshot_history (source, version, relations, offset_cursor, last_action, published_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			record.Source, record.Version, record.Relations, record.Offset, string(record.LastAction), record.CreatedAt)
		if err != nil {
			return fmt.Errorf("tx.ExecContext(insert snapshot_history) > %w", err)
		}
		return nil
	})
}

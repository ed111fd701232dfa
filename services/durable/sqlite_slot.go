package durable

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"popcorn/internal/database"
)

// SQLiteSlot stores the value as one row of the slots table.
type SQLiteSlot struct {
	db  *database.DB
	key string
}

func NewSQLiteSlot(db *database.DB, key string) *SQLiteSlot {
	return &SQLiteSlot{db: db, key: key}
}

func (s *SQLiteSlot) Name() string { return "sqlite" }

func (s *SQLiteSlot) Load(ctx context.Context) ([]byte, bool, error) {
	var data []byte
	err := s.db.Connection().QueryRowContext(ctx,
		`SELECT value FROM slots WHERE key = ?`, s.key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query slot %q: %w", s.key, err)
	}
	return data, true, nil
}

func (s *SQLiteSlot) Save(ctx context.Context, data []byte) error {
	_, err := s.db.Connection().ExecContext(ctx, `
		INSERT INTO slots (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.key, data)
	if err != nil {
		return fmt.Errorf("upsert slot %q: %w", s.key, err)
	}
	return nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteSlot stores the blob as one row of the kv_slots table.
type SQLiteSlot struct {
	db  *sql.DB
	key string
}

func NewSQLiteSlot(dbPath, key string) (*SQLiteSlot, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteSlot{db: db, key: key}, nil
}

func (s *SQLiteSlot) Read(ctx context.Context) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_slots WHERE key = ?`, s.key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSlotEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("select slot %s: %w", s.key, err)
	}
	return value, nil
}

func (s *SQLiteSlot) Write(ctx context.Context, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_slots (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.key, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert slot %s: %w", s.key, err)
	}
	return nil
}

func (s *SQLiteSlot) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteSlot) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

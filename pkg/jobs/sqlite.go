package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/distkit/conveyor/pkg/clock"
)

// SQLiteStore persists job records in a local sqlite database, durable across
// restarts of a single-host deployment.
type SQLiteStore struct {
	db    *sql.DB
	clock clock.Clock
}

// NewSQLiteStore opens (and if needed initializes) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithClock(path, clock.NewReal())
}

// NewSQLiteStoreWithClock opens the store with an explicit clock.
func NewSQLiteStoreWithClock(path string, c clock.Clock) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open job db: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			result TEXT,
			error TEXT,
			updated_at TIMESTAMP NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init job db: %w", err)
	}

	return &SQLiteStore{db: db, clock: c}, nil
}

// SaveJob creates or updates a job record
func (s *SQLiteStore) SaveJob(ctx context.Context, rec Record) error {
	var result any
	if rec.Result != nil {
		data, err := json.Marshal(rec.Result)
		if err != nil {
			return fmt.Errorf("marshal job %s result: %w", rec.ID, err)
		}
		result = string(data)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, status, result, error, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			result = excluded.result,
			error = excluded.error,
			updated_at = excluded.updated_at;
	`, rec.ID, string(rec.Status), result, rec.Error, s.clock.Now())
	if err != nil {
		return fmt.Errorf("save job %s: %w", rec.ID, err)
	}
	return nil
}

// GetJob retrieves a job record, or ErrJobNotFound
func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, result, error, updated_at FROM jobs WHERE id = ?`, id)

	var rec Record
	var status string
	var result sql.NullString
	var errMsg sql.NullString
	if err := row.Scan(&rec.ID, &status, &result, &errMsg, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}

	rec.Status = Status(status)
	rec.Error = errMsg.String
	if result.Valid {
		var v any
		if err := json.Unmarshal([]byte(result.String), &v); err != nil {
			return nil, fmt.Errorf("unmarshal job %s result: %w", id, err)
		}
		rec.Result = v
	}
	return &rec, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

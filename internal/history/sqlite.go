package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/trialguard-server/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite match-history store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord scans a row into a MatchRecord.
func scanRecord(s scanner) (*MatchRecord, error) {
	rec := &MatchRecord{}
	var status, flagsJSON string

	err := s.Scan(
		&rec.ID, &rec.NCTID, &rec.Title,
		&rec.AIScore, &rec.FinalScore, &status,
		&rec.ShouldOverride, &flagsJSON, &rec.Reasoning,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.FinalStatus = domain.OverrideStatus(status)
	if flagsJSON != "" {
		if err := json.Unmarshal([]byte(flagsJSON), &rec.Flags); err != nil {
			return nil, fmt.Errorf("failed to decode flags: %w", err)
		}
	}
	return rec, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS match_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		nct_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		ai_score INTEGER NOT NULL DEFAULT 0,
		final_score INTEGER NOT NULL DEFAULT 0,
		final_status TEXT NOT NULL,
		should_override INTEGER NOT NULL DEFAULT 0,
		flags TEXT NOT NULL DEFAULT '[]',
		reasoning TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_match_history_nct_id ON match_history(nct_id);
	CREATE INDEX IF NOT EXISTS idx_match_history_created_at ON match_history(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// RecordMatch appends one match decision.
func (s *SQLiteStore) RecordMatch(ctx context.Context, result *domain.MatchResult) error {
	rec := recordFromResult(result)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	flagsJSON, err := json.Marshal(rec.Flags)
	if err != nil {
		return fmt.Errorf("failed to encode flags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO match_history (
			nct_id, title, ai_score, final_score, final_status,
			should_override, flags, reasoning, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.NCTID,
		rec.Title,
		rec.AIScore,
		rec.FinalScore,
		string(rec.FinalStatus),
		rec.ShouldOverride,
		string(flagsJSON),
		rec.Reasoning,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert match record: %w", err)
	}
	return nil
}

// List returns match records newest first, with pagination.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*MatchRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, nct_id, title, ai_score, final_score, final_status,
			should_override, flags, reasoning, created_at
		FROM match_history
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*MatchRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// Count returns the total number of match records.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM match_history").Scan(&count)
	return count, err
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

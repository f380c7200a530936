// Package history persists scan summaries and per-hit rule rows to a local
// SQLite database so past scans can be listed and revisited.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// ScanRecord represents a single recorded scan
type ScanRecord struct {
	ID        string
	RuleFile  string
	Root      string
	Scanned   int
	Matched   int
	Errors    int
	Duration  time.Duration
	ExitCode  int
	CreatedAt time.Time
}

// HitRecord represents one matched file within a recorded scan
type HitRecord struct {
	ID       int64
	ScanID   string
	Path     string
	Filename string
	MD5      string
	SHA1     string
	SHA256   string
	Rules    []string
	Tags     []string
}

// Store manages the SQLite database for scan history
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore creates a new Store instance and initializes the database
func NewStore(dbPath string) (*Store, error) {
	// Handle in-memory database
	if dbPath == ":memory:" {
		return openAndInitStore(dbPath)
	}

	// Ensure parent directory exists for file-based databases
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	return openAndInitStore(dbPath)
}

// openAndInitStore opens the database connection and initializes schema
func openAndInitStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Configure SQLite for concurrent access with retry logic.
	// Set busy_timeout FIRST so subsequent operations wait on locks.
	// Use retry with backoff for "database is locked" errors that can occur
	// during concurrent initialization of the same database file.
	pragmas := []string{
		"PRAGMA busy_timeout=5000", // Must be first
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",   // scan_hits cascade on scan delete
		"PRAGMA cache_size=-64000", // 64MB cache
	}

	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	store := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

// execWithRetry executes a SQL statement with exponential backoff retry on lock errors.
func execWithRetry(db *sql.DB, sql string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(sql)
		if err == nil {
			return nil
		}

		// Only retry on "database is locked" errors
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}

		lastErr = err
		// Exponential backoff
		delay := baseDelay * time.Duration(1<<attempt)
		time.Sleep(delay)
	}
	return lastErr
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// initSchema applies the embedded schema
func (s *Store) initSchema() error {
	if err := execWithRetry(s.db, schemaSQL, 5, 10*time.Millisecond); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// tableExists checks if a table exists in the database
func (s *Store) tableExists(tableName string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`
	err := s.db.QueryRow(query, tableName).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check table existence: %w", err)
	}
	return count > 0, nil
}

// indexExists checks if an index exists in the database
func (s *Store) indexExists(indexName string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?`
	err := s.db.QueryRow(query, indexName).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check index existence: %w", err)
	}
	return count > 0, nil
}

// RecordScan records a scan and its hits in a single transaction.
// Assigns a fresh UUID to scan.ID when it is empty.
func (s *Store) RecordScan(ctx context.Context, scan *ScanRecord, hits []HitRecord) error {
	if scan.ID == "" {
		scan.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	scanQuery := `INSERT INTO scans
		(id, rule_file, root, scanned, matched, errors, duration_ms, exit_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = tx.ExecContext(ctx, scanQuery,
		scan.ID,
		scan.RuleFile,
		scan.Root,
		scan.Scanned,
		scan.Matched,
		scan.Errors,
		scan.Duration.Milliseconds(),
		scan.ExitCode,
	)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}

	if len(hits) > 0 {
		hitStmt, err := tx.PrepareContext(ctx, `INSERT INTO scan_hits
			(scan_id, path, filename, md5, sha1, sha256, rules, tags)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare hit statement: %w", err)
		}
		defer hitStmt.Close()

		for _, hit := range hits {
			rulesJSON, err := marshalStrings(hit.Rules)
			if err != nil {
				return fmt.Errorf("marshal hit rules: %w", err)
			}
			tagsJSON, err := marshalStrings(hit.Tags)
			if err != nil {
				return fmt.Errorf("marshal hit tags: %w", err)
			}

			_, err = hitStmt.ExecContext(ctx, scan.ID, hit.Path, hit.Filename,
				hit.MD5, hit.SHA1, hit.SHA256, rulesJSON, tagsJSON)
			if err != nil {
				return fmt.Errorf("insert scan hit: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// marshalStrings marshals a string slice to JSON, "[]" for empty
func marshalStrings(values []string) (string, error) {
	if len(values) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ListScans retrieves recorded scans ordered by most recent first.
// A limit of 0 or less returns all scans.
func (s *Store) ListScans(ctx context.Context, limit int) ([]*ScanRecord, error) {
	query := `SELECT id, rule_file, root, scanned, matched, errors, duration_ms, exit_code, created_at
		FROM scans
		ORDER BY created_at DESC, id`

	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()

	var scans []*ScanRecord
	for rows.Next() {
		scan, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		scans = append(scans, scan)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scan rows: %w", err)
	}

	return scans, nil
}

// scanRow scans one scans-table row into a ScanRecord
func scanRow(rows *sql.Rows) (*ScanRecord, error) {
	scan := &ScanRecord{}
	var durationMs int64
	err := rows.Scan(
		&scan.ID,
		&scan.RuleFile,
		&scan.Root,
		&scan.Scanned,
		&scan.Matched,
		&scan.Errors,
		&durationMs,
		&scan.ExitCode,
		&scan.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}
	scan.Duration = time.Duration(durationMs) * time.Millisecond
	return scan, nil
}

// GetScan retrieves a single scan by ID. The ID may be a unique prefix;
// with an ambiguous prefix the most recent scan wins.
func (s *Store) GetScan(ctx context.Context, id string) (*ScanRecord, error) {
	query := `SELECT id, rule_file, root, scanned, matched, errors, duration_ms, exit_code, created_at
		FROM scans
		WHERE id = ? OR id LIKE ?
		ORDER BY created_at DESC
		LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, id, id+"%")

	scan := &ScanRecord{}
	var durationMs int64
	err := row.Scan(
		&scan.ID,
		&scan.RuleFile,
		&scan.Root,
		&scan.Scanned,
		&scan.Matched,
		&scan.Errors,
		&durationMs,
		&scan.ExitCode,
		&scan.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("scan not found: %s", id)
		}
		return nil, fmt.Errorf("query scan: %w", err)
	}
	scan.Duration = time.Duration(durationMs) * time.Millisecond

	return scan, nil
}

// GetScanHits retrieves the hit rows for a scan, in insertion order
func (s *Store) GetScanHits(ctx context.Context, scanID string) ([]HitRecord, error) {
	query := `SELECT id, scan_id, path, filename, md5, sha1, sha256, rules, tags
		FROM scan_hits
		WHERE scan_id = ?
		ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, scanID)
	if err != nil {
		return nil, fmt.Errorf("query scan hits: %w", err)
	}
	defer rows.Close()

	var hits []HitRecord
	for rows.Next() {
		var hit HitRecord
		var md5, sha1, sha256, rulesJSON, tagsJSON sql.NullString
		err := rows.Scan(
			&hit.ID,
			&hit.ScanID,
			&hit.Path,
			&hit.Filename,
			&md5,
			&sha1,
			&sha256,
			&rulesJSON,
			&tagsJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("scan hit row: %w", err)
		}

		// Handle nullable fields
		if md5.Valid {
			hit.MD5 = md5.String
		}
		if sha1.Valid {
			hit.SHA1 = sha1.String
		}
		if sha256.Valid {
			hit.SHA256 = sha256.String
		}
		if rulesJSON.Valid && rulesJSON.String != "" {
			if err := json.Unmarshal([]byte(rulesJSON.String), &hit.Rules); err != nil {
				return nil, fmt.Errorf("unmarshal hit rules: %w", err)
			}
		}
		if tagsJSON.Valid && tagsJSON.String != "" {
			if err := json.Unmarshal([]byte(tagsJSON.String), &hit.Tags); err != nil {
				return nil, fmt.Errorf("unmarshal hit tags: %w", err)
			}
		}

		hits = append(hits, hit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hit rows: %w", err)
	}

	return hits, nil
}

// Clear removes all recorded scans and their hits.
// Returns the number of deleted scan records.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM scans`)
	if err != nil {
		return 0, fmt.Errorf("clear scans: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	return deleted, nil
}

// CleanupOldScans removes scan records older than the specified number of days.
// Hits are removed via cascade. Returns the number of deleted scan records.
func (s *Store) CleanupOldScans(ctx context.Context, keepDays int) (int64, error) {
	if keepDays <= 0 {
		return 0, nil // 0 or negative means keep forever
	}

	cutoff := time.Now().AddDate(0, 0, -keepDays)

	result, err := s.db.ExecContext(ctx, `DELETE FROM scans WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup old scans: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	return deleted, nil
}

// PruneToLimit keeps only the most recent maxScans records, deleting the rest.
// Returns the number of deleted scan records. A limit of 0 or less is a no-op.
func (s *Store) PruneToLimit(ctx context.Context, maxScans int) (int64, error) {
	if maxScans <= 0 {
		return 0, nil
	}

	query := `DELETE FROM scans WHERE id NOT IN (
		SELECT id FROM scans ORDER BY created_at DESC, id LIMIT ?
	)`

	result, err := s.db.ExecContext(ctx, query, maxScans)
	if err != nil {
		return 0, fmt.Errorf("prune scans: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	return deleted, nil
}

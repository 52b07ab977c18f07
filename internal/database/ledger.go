package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/chanonchantad/anon-pipeline/internal/dateshift"
	"github.com/chanonchantad/anon-pipeline/internal/model"
)

// FileName is the ledger file name inside the ledger directory.
const FileName = "anonpipe.db"

// Ledger provides SQLite-based storage for run summaries, per-image
// outcomes and the shifted-date legend of each run.
type Ledger struct {
	db     *sql.DB
	dbPath string
}

// Options configures Ledger behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the ledger in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*Ledger, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	l := &Ledger{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := l.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return l, nil
}

// Path returns the database file path.
func (l *Ledger) Path() string {
	return l.dbPath
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (l *Ledger) createTables() error {
	schema := `
	-- One row per pipeline run
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		workspace TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		total INTEGER DEFAULT 0,
		anonymized INTEGER DEFAULT 0,
		quarantined INTEGER DEFAULT 0,
		errored INTEGER DEFAULT 0,
		summary_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Per-image outcomes
	CREATE TABLE IF NOT EXISTS images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		path TEXT NOT NULL,
		output_path TEXT,
		accession TEXT,
		modality TEXT,
		fingerprint TEXT,
		label TEXT NOT NULL,
		reason TEXT,
		record_json TEXT NOT NULL,
		UNIQUE(run_id, path)
	);

	CREATE INDEX IF NOT EXISTS idx_images_run ON images(run_id);
	CREATE INDEX IF NOT EXISTS idx_images_fingerprint ON images(fingerprint);

	-- Original to shifted date legend
	CREATE TABLE IF NOT EXISTS shifted_dates (
		run_id TEXT NOT NULL,
		original TEXT NOT NULL,
		shifted TEXT NOT NULL,
		PRIMARY KEY(run_id, original, shifted)
	);
	`

	_, err := l.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun inserts or updates the summary of a run.
func (l *Ledger) SaveRun(ctx context.Context, s *model.RunSummary) error {
	summaryJSON, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to serialize run summary: %w", err)
	}

	var finished any
	if !s.FinishedAt.IsZero() {
		finished = s.FinishedAt.UTC().Format(time.RFC3339Nano)
	}

	query := `
	INSERT INTO runs (run_id, workspace, started_at, finished_at, total, anonymized, quarantined, errored, summary_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id) DO UPDATE SET
		finished_at = excluded.finished_at,
		total = excluded.total,
		anonymized = excluded.anonymized,
		quarantined = excluded.quarantined,
		errored = excluded.errored,
		summary_json = excluded.summary_json
	`

	_, err = l.db.ExecContext(ctx, query,
		s.RunID,
		s.Workspace,
		s.StartedAt.UTC().Format(time.RFC3339Nano),
		finished,
		s.Total,
		s.Anonymized,
		s.Quarantined,
		s.Errored,
		string(summaryJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// SaveRecords stores the per-image records of a run in one transaction.
// A record already stored for the same run and path is replaced.
func (l *Ledger) SaveRecords(ctx context.Context, runID string, records []*model.Record) (err error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO images (run_id, path, output_path, accession, modality, fingerprint, label, reason, record_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, path) DO UPDATE SET
		output_path = excluded.output_path,
		accession = excluded.accession,
		modality = excluded.modality,
		fingerprint = excluded.fingerprint,
		label = excluded.label,
		reason = excluded.reason,
		record_json = excluded.record_json
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		recordJSON, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to serialize record %s: %w", r.Path, err)
		}
		if _, err := stmt.ExecContext(ctx,
			runID,
			r.Path,
			r.OutputPath,
			r.Accession,
			r.Modality,
			r.Fingerprint,
			string(r.Label()),
			r.Detail(),
			string(recordJSON),
		); err != nil {
			return fmt.Errorf("failed to save record %s: %w", r.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit records: %w", err)
	}
	return nil
}

// SaveLegend stores the original to shifted date map of a run.
func (l *Ledger) SaveLegend(ctx context.Context, runID string, entries []dateshift.Entry) (err error) {
	if len(entries) == 0 {
		return nil
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, e := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO shifted_dates (run_id, original, shifted) VALUES (?, ?, ?)`,
			runID, e.Original, e.Shifted,
		); err != nil {
			return fmt.Errorf("failed to save legend entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit legend: %w", err)
	}
	return nil
}

// RunMetadata contains summary information about a run.
// It is used for listing runs without decoding the full summary.
type RunMetadata struct {
	RunID       string
	Workspace   string
	StartedAt   time.Time
	FinishedAt  time.Time
	Total       int
	Anonymized  int
	Quarantined int
	Errored     int
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (l *Ledger) ListRuns(ctx context.Context, limit int) ([]RunMetadata, error) {
	query := `
	SELECT run_id, workspace, started_at, finished_at, total, anonymized, quarantined, errored
	FROM runs
	ORDER BY started_at DESC
	`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var started string
		var finished sql.NullString

		if err := rows.Scan(
			&meta.RunID,
			&meta.Workspace,
			&started,
			&finished,
			&meta.Total,
			&meta.Anonymized,
			&meta.Quarantined,
			&meta.Errored,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		meta.StartedAt = parseTimestamp(started)
		if finished.Valid {
			meta.FinishedAt = parseTimestamp(finished.String)
		}
		results = append(results, meta)
	}

	return results, rows.Err()
}

// GetRun returns the summary of a run, or nil if the run is unknown.
func (l *Ledger) GetRun(ctx context.Context, runID string) (*model.RunSummary, error) {
	var summaryJSON string
	err := l.db.QueryRowContext(ctx, `SELECT summary_json FROM runs WHERE run_id = ?`, runID).Scan(&summaryJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var s model.RunSummary
	if err := json.Unmarshal([]byte(summaryJSON), &s); err != nil {
		return nil, fmt.Errorf("failed to parse run summary: %w", err)
	}
	return &s, nil
}

// GetRecords returns the records of a run ordered by path. An empty label
// returns every record, otherwise only records with that log label.
func (l *Ledger) GetRecords(ctx context.Context, runID string, label model.LogLabel) ([]*model.Record, error) {
	query := `SELECT record_json FROM images WHERE run_id = ?`
	args := []any{runID}
	if label != "" {
		query += " AND label = ?"
		args = append(args, string(label))
	}
	query += " ORDER BY path"

	return l.queryRecords(ctx, query, args...)
}

// FindByFingerprint returns every stored record whose input had the given
// fingerprint, newest first.
func (l *Ledger) FindByFingerprint(ctx context.Context, fingerprint string) ([]*model.Record, error) {
	return l.queryRecords(ctx, `
	SELECT images.record_json FROM images
	JOIN runs ON runs.run_id = images.run_id
	WHERE images.fingerprint = ?
	ORDER BY runs.started_at DESC
	`, fingerprint)
}

func (l *Ledger) queryRecords(ctx context.Context, query string, args ...any) ([]*model.Record, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []*model.Record
	for rows.Next() {
		var recordJSON string
		if err := rows.Scan(&recordJSON); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		var r model.Record
		if err := json.Unmarshal([]byte(recordJSON), &r); err != nil {
			continue // Skip malformed records
		}
		records = append(records, &r)
	}

	return records, rows.Err()
}

// GetLegend returns the shifted-date legend of a run ordered by original date.
func (l *Ledger) GetLegend(ctx context.Context, runID string) ([]dateshift.Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT original, shifted FROM shifted_dates WHERE run_id = ? ORDER BY original, shifted`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get legend: %w", err)
	}
	defer rows.Close()

	var entries []dateshift.Entry
	for rows.Next() {
		var e dateshift.Entry
		if err := rows.Scan(&e.Original, &e.Shifted); err != nil {
			return nil, fmt.Errorf("failed to scan legend entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Storage handles all database operations
type Storage struct {
	db *sql.DB
}

// NewStorage creates a new Storage instance, opening/creating the DB and initializing schema
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storage := &Storage{db: db}

	// Initialize schema
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// initSchema creates tables and indices if they don't exist
func (s *Storage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		finished_at TIMESTAMP,
		trials INTEGER DEFAULT 0,
		reached INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS starting_pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		trial INTEGER NOT NULL,
		page TEXT NOT NULL,
		count INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(run_id),
		UNIQUE(run_id, trial)
	);

	CREATE TABLE IF NOT EXISTS pages (
		page TEXT PRIMARY KEY,
		count INTEGER NOT NULL,
		run_id TEXT,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_starting_pages_run ON starting_pages(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateRun registers a new run
func (s *Storage) CreateRun(runID string) error {
	_, err := s.db.Exec("INSERT INTO runs (run_id) VALUES (?)", runID)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun stamps a run with its final counts
func (s *Storage) FinishRun(runID string, trials, reached int) error {
	_, err := s.db.Exec(`
		UPDATE runs SET finished_at = CURRENT_TIMESTAMP, trials = ?, reached = ?
		WHERE run_id = ?
	`, trials, reached, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by id, returns nil if not found
func (s *Storage) GetRun(runID string) (*Run, error) {
	var run Run
	var finished sql.NullTime
	err := s.db.QueryRow(`
		SELECT run_id, started_at, finished_at, trials, reached
		FROM runs
		WHERE run_id = ?
	`, runID).Scan(&run.RunID, &run.StartedAt, &finished, &run.Trials, &run.Reached)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	return &run, nil
}

// InsertStartingPage records one trial of a run
func (s *Storage) InsertStartingPage(runID string, rec StartRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO starting_pages (run_id, trial, page, count, outcome)
		VALUES (?, ?, ?, ?, ?)
	`, runID, rec.Trial, rec.Page, rec.Count, rec.Outcome)
	if err != nil {
		return fmt.Errorf("failed to insert starting page: %w", err)
	}
	return nil
}

// LoadStartingPages returns the trials of a run ordered by trial number
func (s *Storage) LoadStartingPages(runID string) ([]StartRecord, error) {
	rows, err := s.db.Query(`
		SELECT trial, page, count, outcome
		FROM starting_pages
		WHERE run_id = ?
		ORDER BY trial ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load starting pages: %w", err)
	}
	defer rows.Close()

	var records []StartRecord
	for rows.Next() {
		var rec StartRecord
		if err := rows.Scan(&rec.Trial, &rec.Page, &rec.Count, &rec.Outcome); err != nil {
			return nil, fmt.Errorf("failed to scan starting page: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating starting pages: %w", err)
	}

	return records, nil
}

// UpsertPages writes cache entries in a single transaction; existing
// pages are overwritten
func (s *Storage) UpsertPages(runID string, entries []CacheEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO pages (page, count, run_id)
		VALUES (?, ?, ?)
		ON CONFLICT(page) DO UPDATE SET
			count = EXCLUDED.count,
			run_id = EXCLUDED.run_id,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare page upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(e.Page, e.Count, runID); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to upsert page %s: %w", e.Page, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit pages: %w", err)
	}
	return nil
}

// LoadPages returns every cached page in insertion order
func (s *Storage) LoadPages() ([]CacheEntry, error) {
	rows, err := s.db.Query("SELECT page, count FROM pages ORDER BY rowid ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to load pages: %w", err)
	}
	defer rows.Close()

	var entries []CacheEntry
	for rows.Next() {
		var e CacheEntry
		if err := rows.Scan(&e.Page, &e.Count); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pages: %w", err)
	}

	return entries, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// Package custody keeps an append-only SQLite index of every scan, so the
// report files on disk can be traced back to the bytes that produced them.
package custody

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

// Entry is one scan in the ledger
type Entry struct {
	ScanID           string    `json:"scan_id"`
	ScannedAt        time.Time `json:"scanned_at"`
	FileName         string    `json:"file_name"`
	FileSHA256       string    `json:"file_sha256"`
	Verdict          string    `json:"verdict"`
	SuspiciousBlocks int       `json:"suspicious_blocks"`
	Quarantined      bool      `json:"quarantined"`
	ReportPath       string    `json:"report_path"`
}

// Ledger stores entries. Rows can be inserted and read; the schema rejects
// UPDATE and DELETE.
type Ledger struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS custody (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	scan_id TEXT NOT NULL UNIQUE,
	scanned_at TEXT NOT NULL,
	file_name TEXT NOT NULL,
	file_sha256 TEXT NOT NULL,
	verdict TEXT NOT NULL,
	suspicious_blocks INTEGER NOT NULL,
	quarantined INTEGER NOT NULL,
	report_path TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_custody_sha256 ON custody(file_sha256);

CREATE TRIGGER IF NOT EXISTS custody_no_update BEFORE UPDATE ON custody
BEGIN
	SELECT RAISE(ABORT, 'custody entries are append-only');
END;

CREATE TRIGGER IF NOT EXISTS custody_no_delete BEFORE DELETE ON custody
BEGIN
	SELECT RAISE(ABORT, 'custody entries are append-only');
END;
`

// Open opens or creates the ledger database at path
func Open(path string) (*Ledger, error) {
	if path == "" {
		return nil, fmt.Errorf("ledger path cannot be empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	// One writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create ledger schema: %w", err)
	}

	return &Ledger{db: db, path: path}, nil
}

// Close closes the database
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Path returns the database file path
func (l *Ledger) Path() string {
	return l.path
}

// Append inserts entry. A missing ScanID is filled with a new UUID; the
// stored entry is returned.
func (l *Ledger) Append(ctx context.Context, entry Entry) (Entry, error) {
	if entry.ScanID == "" {
		entry.ScanID = uuid.NewString()
	}
	entry.ScannedAt = entry.ScannedAt.UTC()

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO custody (scan_id, scanned_at, file_name, file_sha256, verdict, suspicious_blocks, quarantined, report_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ScanID,
		entry.ScannedAt.Format(time.RFC3339Nano),
		entry.FileName,
		entry.FileSHA256,
		entry.Verdict,
		entry.SuspiciousBlocks,
		entry.Quarantined,
		entry.ReportPath,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to append custody entry: %w", err)
	}

	return entry, nil
}

// List returns up to limit entries, newest first. A limit below 1 returns
// every entry.
func (l *Ledger) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit < 1 {
		limit = -1
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT scan_id, scanned_at, file_name, file_sha256, verdict, suspicious_blocks, quarantined, report_path
		FROM custody
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query custody entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e         Entry
			scannedAt string
		)
		if err := rows.Scan(&e.ScanID, &scannedAt, &e.FileName, &e.FileSHA256, &e.Verdict,
			&e.SuspiciousBlocks, &e.Quarantined, &e.ReportPath); err != nil {
			return nil, fmt.Errorf("failed to scan custody entry: %w", err)
		}

		e.ScannedAt, err = time.Parse(time.RFC3339Nano, scannedAt)
		if err != nil {
			return nil, fmt.Errorf("corrupt timestamp for scan %s: %w", e.ScanID, err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

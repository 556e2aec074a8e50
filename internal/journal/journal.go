// Package journal keeps an append-only sqlite history of install attempts.
// It is a record for diagnosis, not recoverable state; the daemon never
// reads it back on startup.
package journal

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const table = "install_history"

// Entry is one recorded install attempt.
type Entry struct {
	At        time.Time
	ApkPath   string
	SizeBytes int64
	ExitCode  int
	Succeeded bool
}

// Journal appends install outcomes to a sqlite database. A nil Journal is a
// valid no-op sink.
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database and ensures its schema.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open install journal")
	}
	createStmt := `CREATE TABLE IF NOT EXISTS "` + table + `" (
"id" INTEGER PRIMARY KEY AUTOINCREMENT,
"at" TEXT NOT NULL,
"apk_path" TEXT NOT NULL,
"size_bytes" INTEGER NOT NULL,
"exit_code" INTEGER NOT NULL,
"succeeded" INTEGER NOT NULL
);`
	if _, err := db.Exec(createStmt); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create install journal table")
	}
	return &Journal{db: db}, nil
}

// Record appends one entry. Safe on a nil receiver.
func (j *Journal) Record(entry Entry) error {
	if j == nil || j.db == nil {
		return nil
	}
	at := entry.At
	if at.IsZero() {
		at = time.Now()
	}
	succeeded := 0
	if entry.Succeeded {
		succeeded = 1
	}
	_, err := j.db.Exec(
		`INSERT INTO "`+table+`" ("at", "apk_path", "size_bytes", "exit_code", "succeeded") VALUES (?, ?, ?, ?, ?)`,
		at.UTC().Format(time.RFC3339), entry.ApkPath, entry.SizeBytes, entry.ExitCode, succeeded,
	)
	return errors.Wrap(err, "record install outcome")
}

// Recent returns up to n entries, newest first.
func (j *Journal) Recent(n int) ([]Entry, error) {
	if j == nil || j.db == nil {
		return nil, nil
	}
	rows, err := j.db.Query(
		`SELECT "at", "apk_path", "size_bytes", "exit_code", "succeeded" FROM "`+table+`" ORDER BY "id" DESC LIMIT ?`, n)
	if err != nil {
		return nil, errors.Wrap(err, "query install journal")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			at        string
			entry     Entry
			succeeded int
		)
		if err := rows.Scan(&at, &entry.ApkPath, &entry.SizeBytes, &entry.ExitCode, &succeeded); err != nil {
			return nil, errors.Wrap(err, "scan install journal row")
		}
		if parsed, err := time.Parse(time.RFC3339, at); err == nil {
			entry.At = parsed
		}
		entry.Succeeded = succeeded != 0
		entries = append(entries, entry)
	}
	return entries, errors.Wrap(rows.Err(), "iterate install journal")
}

// Close releases the underlying database handle.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

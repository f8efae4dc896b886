// Package db keeps a local append-only history of scan cycles in sqlite.
// It is a diagnostic surface for the status command; nothing in the
// alerting path depends on it and write errors are ignored by callers.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type Database struct {
	conn *sql.DB
	path string
}

func Open(path string) (*Database, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &Database{
		conn: conn,
		path: path,
	}

	if err := InitSchema(db); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

func (db *Database) Close() error {
	return db.conn.Close()
}

func (db *Database) LogCycle(issuesFound, alertsSent, fetchErrors int, errMsg string, durationMs int64) error {
	var errMsgVal sql.NullString
	if errMsg != "" {
		errMsgVal = sql.NullString{String: errMsg, Valid: true}
	}

	_, err := db.conn.Exec(`
		INSERT INTO cycle_log (ran_at, issues_found, alerts_sent, fetch_errors, error_message, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?)`,
		time.Now().Format(time.RFC3339), issuesFound, alertsSent, fetchErrors, errMsgVal, durationMs)
	if err != nil {
		return fmt.Errorf("logging cycle: %w", err)
	}
	return nil
}

type scanFunc func(dest ...any) error

func scanCycle(scan scanFunc) (*CycleRecord, error) {
	var rec CycleRecord
	var ranAt string

	err := scan(
		&rec.ID, &ranAt, &rec.IssuesFound, &rec.AlertsSent,
		&rec.FetchErrors, &rec.ErrorMessage, &rec.DurationMs,
	)
	if err != nil {
		return nil, err
	}

	rec.RanAt, _ = time.Parse(time.RFC3339, ranAt)
	return &rec, nil
}

func (db *Database) LastCycle() (*CycleRecord, error) {
	row := db.conn.QueryRow(`
		SELECT id, ran_at, issues_found, alerts_sent, fetch_errors, error_message, duration_ms
		FROM cycle_log ORDER BY id DESC LIMIT 1`)

	rec, err := scanCycle(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning cycle record: %w", err)
	}
	return rec, nil
}

// RecentCycles returns up to limit records, most recent first.
func (db *Database) RecentCycles(limit int) ([]*CycleRecord, error) {
	rows, err := db.conn.Query(`
		SELECT id, ran_at, issues_found, alerts_sent, fetch_errors, error_message, duration_ms
		FROM cycle_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying cycle history: %w", err)
	}
	defer rows.Close()

	var records []*CycleRecord
	for rows.Next() {
		rec, err := scanCycle(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning cycle row: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cycle rows: %w", err)
	}

	return records, nil
}

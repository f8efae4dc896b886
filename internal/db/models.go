package db

import (
	"database/sql"
	"time"
)

// CycleRecord is one completed scan cycle in the append-only history.
type CycleRecord struct {
	ID           int64
	RanAt        time.Time
	IssuesFound  int
	AlertsSent   int
	FetchErrors  int
	ErrorMessage sql.NullString
	DurationMs   sql.NullInt64
}

package db

const Schema = `
CREATE TABLE IF NOT EXISTS cycle_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ran_at TEXT NOT NULL,
    issues_found INTEGER NOT NULL,
    alerts_sent INTEGER NOT NULL,
    fetch_errors INTEGER NOT NULL,
    error_message TEXT,
    duration_ms INTEGER
);
`

func InitSchema(db *Database) error {
	_, err := db.conn.Exec(Schema)
	if err != nil {
		return err
	}
	return nil
}

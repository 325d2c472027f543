package store

// Schema definitions for the Kestrel profile store.
// Compatible with both SQLite and PostgreSQL.

const schemaCorridorCurrent = `
CREATE TABLE IF NOT EXISTS corridor_current (
    corridor_code TEXT PRIMARY KEY,
    version TEXT NOT NULL,
    profile_date TIMESTAMP NOT NULL,
    transaction_count BIGINT NOT NULL,
    baseline_fraud_rate REAL NOT NULL,
    payload TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaCorridorHistory = `
CREATE TABLE IF NOT EXISTS corridor_history (
    corridor_code TEXT NOT NULL,
    archive_key TEXT NOT NULL,
    version TEXT NOT NULL,
    archived_at TIMESTAMP NOT NULL,
    payload TEXT NOT NULL,
    PRIMARY KEY (corridor_code, archive_key)
);

CREATE INDEX IF NOT EXISTS idx_corridor_history_archived ON corridor_history(corridor_code, archived_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaCorridorCurrent,
		schemaCorridorHistory,
	}
}

package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS change_tickets (
	instance_id TEXT NOT NULL,
	ticket_key  TEXT NOT NULL,
	number      TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	raw_data    TEXT NOT NULL DEFAULT '{}',
	fetched_at  DATETIME NOT NULL,
	PRIMARY KEY (instance_id, ticket_key)
);

CREATE TABLE IF NOT EXISTS status_events (
	id          TEXT PRIMARY KEY,
	instance_id TEXT NOT NULL,
	status      TEXT NOT NULL CHECK(status IN ('ONLINE', 'OFFLINE')),
	message     TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_change_tickets_fetched ON change_tickets(fetched_at);
CREATE INDEX IF NOT EXISTS idx_status_events_instance
	ON status_events(instance_id, created_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}

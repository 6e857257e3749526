package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create session index, transcript, and summaries",
		SQL: `
			CREATE TABLE sessions (
				id            TEXT PRIMARY KEY,
				key_str       TEXT NOT NULL,
				agent_id      TEXT NOT NULL,
				channel       TEXT NOT NULL,
				peer_type     TEXT NOT NULL,
				peer_id       TEXT NOT NULL,
				thread_id     TEXT NOT NULL DEFAULT '',
				message_count INTEGER NOT NULL DEFAULT 0,
				created_at    TEXT NOT NULL DEFAULT (datetime('now')),
				updated_at    TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE UNIQUE INDEX idx_sessions_key ON sessions (key_str);
			CREATE INDEX idx_sessions_agent ON sessions (agent_id);

			CREATE TABLE messages (
				id           INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id   TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
				role         TEXT NOT NULL,
				content      TEXT NOT NULL,
				timestamp    TEXT NOT NULL DEFAULT (datetime('now')),
				tool_call_id TEXT NOT NULL DEFAULT '',
				tool_calls   TEXT
			);

			CREATE INDEX idx_messages_session ON messages (session_id, id);

			CREATE TABLE summaries (
				id          TEXT PRIMARY KEY,
				session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
				range_start INTEGER NOT NULL,
				range_end   INTEGER NOT NULL,
				summary     TEXT NOT NULL,
				timestamp   TEXT NOT NULL DEFAULT (datetime('now')),
				tool_pruned INTEGER NOT NULL DEFAULT 0
			);

			CREATE INDEX idx_summaries_session ON summaries (session_id);
		`,
	},
}

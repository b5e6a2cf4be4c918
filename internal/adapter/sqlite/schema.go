package sqlite

// schema is applied on every Open. Timestamps are unix milliseconds, so times
// are truncated to the millisecond and the strict recorded_at > since window
// edge is decided at that resolution, not the clock's nanoseconds.
const schema = `
CREATE TABLE IF NOT EXISTS votes (
	participant_id TEXT PRIMARY KEY,
	emotion        TEXT NOT NULL,
	recorded_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_votes_recorded_at ON votes (recorded_at);

CREATE TABLE IF NOT EXISTS selections (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	strategy    TEXT NOT NULL,
	emotion     TEXT NOT NULL,
	selected_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_selections_strategy_seq ON selections (strategy, seq);
CREATE INDEX IF NOT EXISTS idx_selections_selected_at ON selections (selected_at);
`

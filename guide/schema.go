package guide

// Schema creates the guide tables. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS guides (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	start_url  TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS steps (
	id          TEXT PRIMARY KEY,
	guide_id    TEXT NOT NULL REFERENCES guides(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	instruction TEXT NOT NULL,
	action      TEXT NOT NULL CHECK(action IN ('click','type')),
	value       TEXT NOT NULL DEFAULT '',
	selector    TEXT NOT NULL DEFAULT '',
	target      TEXT NOT NULL DEFAULT '{}',
	screenshot  TEXT NOT NULL DEFAULT '',
	UNIQUE(guide_id, position)
);

CREATE INDEX IF NOT EXISTS idx_guides_updated ON guides(updated_at DESC);
`

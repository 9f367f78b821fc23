package postgres

// schema is the logical schema from spec.md §4.4, expressed as Postgres
// DDL. Applied once at construction; CREATE TABLE/INDEX IF NOT EXISTS makes
// it safe to run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS batches (
	id           UUID PRIMARY KEY,
	sequence     BIGINT NOT NULL,
	event_count  INT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	processed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS events (
	id            UUID PRIMARY KEY,
	category      TEXT NOT NULL,
	type          TEXT NOT NULL,
	timestamp     TIMESTAMPTZ NOT NULL,
	session_id    UUID,
	priority      INT NOT NULL,
	data_blob     JSONB NOT NULL,
	metadata_blob JSONB NOT NULL,
	inserted_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events (timestamp);
CREATE INDEX IF NOT EXISTS idx_events_category ON events (category);
CREATE INDEX IF NOT EXISTS idx_events_type ON events (type);
CREATE INDEX IF NOT EXISTS idx_events_session_id ON events (session_id);
CREATE INDEX IF NOT EXISTS idx_events_category_timestamp ON events (category, timestamp);

CREATE TABLE IF NOT EXISTS daily_stats (
	date     DATE NOT NULL,
	category TEXT NOT NULL,
	type     TEXT NOT NULL,
	count    BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (date, category, type)
);
`

// SPDX-License-Identifier: MIT

package store

const ddl = `
CREATE TABLE IF NOT EXISTS messages (
	id            TEXT PRIMARY KEY,
	timestamp     TEXT NOT NULL,
	source_type   TEXT NOT NULL,
	source_json   TEXT,
	flight        TEXT,
	tail          TEXT,
	hex           TEXT,
	airline       TEXT,
	text          TEXT,
	label         TEXT,
	category      TEXT,
	flight_phase  TEXT,
	payload       TEXT NOT NULL,
	created_at    TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp);
CREATE INDEX IF NOT EXISTS idx_messages_flight ON messages(flight);
CREATE INDEX IF NOT EXISTS idx_messages_tail ON messages(tail);
CREATE INDEX IF NOT EXISTS idx_messages_category ON messages(category);

CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
	text,
	flight,
	tail,
	airline,
	content='messages',
	content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
	INSERT INTO messages_fts(rowid, text, flight, tail, airline)
	VALUES (new.rowid, new.text, new.flight, new.tail, new.airline);
END;

CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
	INSERT INTO messages_fts(messages_fts, rowid, text, flight, tail, airline)
	VALUES ('delete', old.rowid, old.text, old.flight, old.tail, old.airline);
END;

CREATE TABLE IF NOT EXISTS aircraft_tracking (
	identifier    TEXT PRIMARY KEY,
	hex           TEXT,
	tail          TEXT,
	flight        TEXT,
	registration  TEXT,
	type_code     TEXT,
	last_seen     TEXT NOT NULL,
	message_count INTEGER NOT NULL DEFAULT 0,
	last_position TEXT,
	track         TEXT
);

CREATE INDEX IF NOT EXISTS idx_aircraft_last_seen ON aircraft_tracking(last_seen);
CREATE INDEX IF NOT EXISTS idx_aircraft_hex ON aircraft_tracking(hex);

CREATE TABLE IF NOT EXISTS statistics (
	day         TEXT NOT NULL,
	source_type TEXT NOT NULL,
	category    TEXT NOT NULL,
	count       INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (day, source_type, category)
);

CREATE TABLE IF NOT EXISTS atc_recordings (
	segment_id  TEXT PRIMARY KEY,
	feed_id     TEXT NOT NULL,
	start_time  TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	filepath    TEXT NOT NULL,
	filesize    INTEGER NOT NULL,
	transcribed INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_recordings_feed_time ON atc_recordings(feed_id, start_time);

CREATE TABLE IF NOT EXISTS atc_transcriptions (
	segment_id     TEXT PRIMARY KEY REFERENCES atc_recordings(segment_id) ON DELETE CASCADE,
	text           TEXT NOT NULL,
	segments_json  TEXT,
	transcribed_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS eam_messages (
	id                TEXT PRIMARY KEY,
	feed_id           TEXT NOT NULL,
	type              TEXT NOT NULL,
	header            TEXT,
	message_body      TEXT NOT NULL,
	message_length    INTEGER,
	confidence        INTEGER NOT NULL,
	first_detected    TEXT NOT NULL,
	last_detected     TEXT NOT NULL,
	segment_ids       TEXT NOT NULL,
	multi_segment     INTEGER NOT NULL DEFAULT 0,
	raw_transcription TEXT,
	codeword          TEXT,
	time_code         TEXT,
	authentication    TEXT,
	repeat_count      INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_eam_feed_body ON eam_messages(feed_id, message_body);
CREATE INDEX IF NOT EXISTS idx_eam_last_detected ON eam_messages(last_detected);

CREATE TABLE IF NOT EXISTS aircraft_photos (
	registration TEXT NOT NULL,
	photo_id     TEXT NOT NULL,
	filepath     TEXT NOT NULL,
	source_url   TEXT,
	photographer TEXT,
	fetched_at   TEXT NOT NULL,
	PRIMARY KEY (registration, photo_id)
);

CREATE TABLE IF NOT EXISTS hex_to_registration (
	hex          TEXT PRIMARY KEY,
	registration TEXT NOT NULL,
	type_code    TEXT
);

CREATE TABLE IF NOT EXISTS settings (
	category   TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (category, key)
);
`

func (s *Store) initSchema() error {
	_, err := s.db.Exec(ddl)
	return err
}

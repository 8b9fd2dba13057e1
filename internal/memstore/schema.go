package memstore

const schemaVersion = "1"

const schemaDDL = `
CREATE TABLE IF NOT EXISTS memories (
	id              TEXT PRIMARY KEY,
	title           TEXT NOT NULL,
	detail          TEXT NOT NULL,
	domain          TEXT NOT NULL,
	pattern_type    TEXT,
	source          TEXT NOT NULL,
	source_section  TEXT NOT NULL,
	created         TEXT NOT NULL,
	last_retrieved  TEXT NOT NULL,
	retrieval_count INTEGER NOT NULL DEFAULT 0,
	activation      REAL NOT NULL DEFAULT 0,
	content_hash    TEXT NOT NULL,
	embedding       BLOB,
	status          TEXT NOT NULL DEFAULT 'active',
	superseded_by   TEXT REFERENCES memories(id),
	corrects        TEXT REFERENCES memories(id)
);

CREATE INDEX IF NOT EXISTS idx_memories_domain ON memories(domain);
CREATE INDEX IF NOT EXISTS idx_memories_activation ON memories(activation DESC);
CREATE INDEX IF NOT EXISTS idx_memories_pattern_type ON memories(pattern_type);
CREATE INDEX IF NOT EXISTS idx_memories_domain_activation ON memories(domain, activation DESC);

CREATE TABLE IF NOT EXISTS tags (
	memory_id TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
	tag       TEXT NOT NULL,
	PRIMARY KEY (memory_id, tag)
);

CREATE INDEX IF NOT EXISTS idx_tags_tag ON tags(tag);

CREATE TABLE IF NOT EXISTS cooccurrences (
	a      TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
	b      TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
	weight REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (a, b)
);

CREATE INDEX IF NOT EXISTS idx_cooccurrences_a ON cooccurrences(a);
CREATE INDEX IF NOT EXISTS idx_cooccurrences_b ON cooccurrences(b);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

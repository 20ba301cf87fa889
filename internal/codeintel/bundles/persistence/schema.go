package persistence

// tableDefinitions creates every table in a fresh Dump Store. Indexes are
// created separately, after the bulk insert that populates these tables
// commits, so the insert itself does not pay index-maintenance cost per row.
const tableDefinitions = `
CREATE TABLE IF NOT EXISTS meta (
	lsifVersion        TEXT NOT NULL,
	sourcegraphVersion TEXT NOT NULL,
	numResultChunks    INTEGER NOT NULL,
	encodingVersion    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	path TEXT NOT NULL PRIMARY KEY,
	data BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS resultChunks (
	id   INTEGER NOT NULL PRIMARY KEY,
	data BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS definitions (
	scheme     TEXT NOT NULL,
	identifier TEXT NOT NULL,
	data       BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS "references" (
	scheme     TEXT NOT NULL,
	identifier TEXT NOT NULL,
	data       BLOB NOT NULL
);
`

// indexDefinitions is run once, after the bulk-insert transaction commits.
const indexDefinitions = `
CREATE INDEX IF NOT EXISTS idx_definitions_scheme_identifier ON definitions (scheme, identifier);
CREATE INDEX IF NOT EXISTS idx_references_scheme_identifier ON "references" (scheme, identifier);
`

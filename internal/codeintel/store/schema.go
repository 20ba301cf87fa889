package store

// schema is applied by an operator's migration tooling, not by this package
// at runtime; it is kept here as the single source of truth for the column
// list the query helpers below assume.
const schema = `
CREATE TABLE IF NOT EXISTS lsif_dumps (
	id              SERIAL PRIMARY KEY,
	repository      TEXT NOT NULL,
	commit          TEXT NOT NULL,
	root            TEXT NOT NULL,
	visible_at_tip  BOOLEAN NOT NULL DEFAULT FALSE,
	uploaded_at     TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
	UNIQUE (repository, commit, root)
);

CREATE TABLE IF NOT EXISTS lsif_packages (
	id      SERIAL PRIMARY KEY,
	scheme  TEXT NOT NULL,
	name    TEXT NOT NULL,
	version TEXT NOT NULL,
	dump_id INTEGER NOT NULL REFERENCES lsif_dumps(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_lsif_packages_scheme_name_version ON lsif_packages (scheme, name, version);

CREATE TABLE IF NOT EXISTS lsif_references (
	id      SERIAL PRIMARY KEY,
	scheme  TEXT NOT NULL,
	name    TEXT NOT NULL,
	version TEXT NOT NULL,
	dump_id INTEGER NOT NULL REFERENCES lsif_dumps(id) ON DELETE CASCADE,
	filter  BYTEA NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lsif_references_scheme_name_version ON lsif_references (scheme, name, version);

CREATE TABLE IF NOT EXISTS lsif_commits (
	repository     TEXT NOT NULL,
	commit         TEXT NOT NULL,
	parent_commit  TEXT NOT NULL,
	PRIMARY KEY (repository, commit, parent_commit)
);

CREATE INDEX IF NOT EXISTS idx_lsif_commits_repository_commit ON lsif_commits (repository, commit);
`

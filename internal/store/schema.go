package store

import (
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// schemaVersion is bumped whenever the DDL below changes shape. Open
// refuses a store stamped with a version higher than this one.
const schemaVersion = 1

const ddl = `
CREATE TABLE IF NOT EXISTS scripts (
    id INTEGER PRIMARY KEY,
    abs_path TEXT NOT NULL UNIQUE,
    basename TEXT NOT NULL,
    size INTEGER NOT NULL,
    mtime INTEGER NOT NULL,
    line_count INTEGER NOT NULL DEFAULT 0,
    language TEXT NOT NULL,
    stale INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS control_files (
    id INTEGER PRIMARY KEY,
    abs_path TEXT NOT NULL UNIQUE,
    basename TEXT NOT NULL,
    size INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS procedures (
    id INTEGER PRIMARY KEY,
    qualified TEXT NOT NULL UNIQUE,
    qualified_lower TEXT NOT NULL,
    schema_part TEXT,
    package_part TEXT,
    name_part TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS refs (
    id INTEGER PRIMARY KEY,
    source_id INTEGER NOT NULL,
    target_id INTEGER,
    target_kind TEXT NOT NULL,
    line INTEGER NOT NULL,
    raw_text TEXT NOT NULL,
    style TEXT NOT NULL DEFAULT '',
    background INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    candidates TEXT,
    UNIQUE(source_id, target_id, line, style)
);

CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scripts_basename ON scripts(basename);
CREATE INDEX IF NOT EXISTS idx_ctl_basename ON control_files(basename);
CREATE INDEX IF NOT EXISTS idx_proc_qualified_lower ON procedures(qualified_lower);
CREATE INDEX IF NOT EXISTS idx_proc_schema ON procedures(schema_part);
CREATE INDEX IF NOT EXISTS idx_proc_package ON procedures(package_part);
CREATE INDEX IF NOT EXISTS idx_proc_name ON procedures(name_part);
CREATE INDEX IF NOT EXISTS idx_refs_source ON refs(source_id);
CREATE INDEX IF NOT EXISTS idx_refs_target ON refs(target_id, target_kind);

CREATE VIRTUAL TABLE IF NOT EXISTS procedures_fts USING fts5(
    qualified_lower,
    content=procedures,
    content_rowid=id,
    tokenize='trigram'
);
`

// createSchema applies the DDL idempotently and stamps the schema version
// on first creation, via a single script executed through
// sqlitex.ExecuteScript.
func createSchema(conn *sqlite.Conn) error {
	if err := sqlitex.ExecuteScript(conn, ddl, nil); err != nil {
		return err
	}
	return stampVersionIfAbsent(conn)
}

func stampVersionIfAbsent(conn *sqlite.Conn) error {
	var have bool
	err := sqlitex.Execute(conn, `SELECT 1 FROM meta WHERE key = 'schema_version'`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error { have = true; return nil },
	})
	if err != nil {
		return err
	}
	if have {
		return nil
	}
	return sqlitex.Execute(conn, `INSERT INTO meta(key, value) VALUES('schema_version', ?)`, &sqlitex.ExecOptions{
		Args: []any{schemaVersion},
	})
}

// readVersion returns the schema version stamped in meta, or 0 if absent.
func readVersion(conn *sqlite.Conn) (int, error) {
	version := 0
	err := sqlitex.Execute(conn, `SELECT value FROM meta WHERE key = 'schema_version'`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			version = int(stmt.ColumnInt64(0))
			return nil
		},
	})
	return version, err
}

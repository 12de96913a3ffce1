package storage

// ---------------------------------------------------------------------------
// Schema version
// ---------------------------------------------------------------------------

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// baseSchema is the full initial SQL schema.
const baseSchema = `
CREATE TABLE IF NOT EXISTS analyses (
    id          TEXT PRIMARY KEY,
    source      TEXT NOT NULL,              -- repository URL or local path
    node_count  INTEGER NOT NULL DEFAULT 0,
    edge_count  INTEGER NOT NULL DEFAULT 0,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
    analysis_id TEXT NOT NULL,
    seq         INTEGER NOT NULL,           -- discovery order
    id          TEXT NOT NULL,              -- repository-relative path
    label       TEXT NOT NULL,
    type        TEXT NOT NULL,
    size        REAL NOT NULL,
    lines       INTEGER NOT NULL,
    directory   TEXT NOT NULL,
    importance  REAL NOT NULL,
    PRIMARY KEY (analysis_id, seq),
    FOREIGN KEY (analysis_id) REFERENCES analyses(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS imports (
    analysis_id TEXT NOT NULL,
    seq         INTEGER NOT NULL,           -- processing order
    source      TEXT NOT NULL,
    target      TEXT NOT NULL,
    value       INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (analysis_id, seq),
    FOREIGN KEY (analysis_id) REFERENCES analyses(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_analyses_source  ON analyses(source);
CREATE INDEX IF NOT EXISTS idx_files_id         ON files(analysis_id, id);
CREATE INDEX IF NOT EXISTS idx_imports_source   ON imports(analysis_id, source);
`

// ---------------------------------------------------------------------------
// Migration support
// ---------------------------------------------------------------------------

// Migration describes a single schema migration that can be applied to the
// database. Migrations are ordered by Version and are idempotent.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations is the ordered list of all schema migrations.
// Apply them sequentially; skip any whose Version is already recorded
// in the schema_migrations table.
var Migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema — analyses, files, imports",
		SQL:         baseSchema,
	},
}

package storage

// SchemaVersion is the current evidence schema version.
const SchemaVersion = 1

// sqliteSchema creates the SQLite evidence schema.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS evidence (
    id TEXT PRIMARY KEY,
    evaluation_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL DEFAULT '',
    bot_id TEXT NOT NULL DEFAULT '',
    phase TEXT NOT NULL,

    -- ",id@version,id@version,"
    packs TEXT NOT NULL DEFAULT '',

    passed INTEGER NOT NULL,
    blocks INTEGER NOT NULL DEFAULT 0,
    warnings INTEGER NOT NULL DEFAULT 0,

    -- Compliance section JSON and its SHA-256
    section TEXT NOT NULL,
    hash TEXT NOT NULL,

    -- Unix nanoseconds
    evaluated_at INTEGER NOT NULL,
    recorded_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_evidence_recorded_at ON evidence(recorded_at);
CREATE INDEX IF NOT EXISTS idx_evidence_tenant_bot ON evidence(tenant_id, bot_id);
CREATE INDEX IF NOT EXISTS idx_evidence_evaluation_id ON evidence(evaluation_id);
CREATE INDEX IF NOT EXISTS idx_evidence_passed ON evidence(passed);
`

const sqliteInsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

const getSchemaVersion = `SELECT version FROM schema_version ORDER BY version DESC LIMIT 1`

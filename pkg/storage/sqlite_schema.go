package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the proxy list schema.
const Schema = `
-- Proxy list, one row per proxy in registry order
CREATE TABLE IF NOT EXISTS proxies (
    position INTEGER PRIMARY KEY,
    template TEXT NOT NULL,
    multi_host BOOLEAN NOT NULL DEFAULT 0,
    auto_associate BOOLEAN NOT NULL DEFAULT 0,

    -- JSON array of canonical hosts
    hosts TEXT NOT NULL DEFAULT '[]',

    updated_at TIMESTAMP NOT NULL
);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// InsertSchemaVersion records the schema version if absent.
const InsertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`

// GetSchemaVersion returns the newest applied schema version.
const GetSchemaVersion = `SELECT MAX(version) FROM schema_version`

const (
	selectProxies = `SELECT template, multi_host, auto_associate, hosts FROM proxies ORDER BY position`
	deleteProxies = `DELETE FROM proxies`
	insertProxy   = `INSERT INTO proxies (position, template, multi_host, auto_associate, hosts, updated_at) VALUES (?, ?, ?, ?, ?, ?)`
)

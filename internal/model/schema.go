package model

// SchemaVersion is bumped whenever the schema below changes shape.
const SchemaVersion = 1

// Schema contains the metadata store's SQL schema: packages, their
// requires/provides facts, the optional filelists supplement, sync
// state, and a key/value metadata table used for schema and embedding
// model bookkeeping.
const Schema = `
CREATE TABLE IF NOT EXISTS packages (
    pkg_id      INTEGER PRIMARY KEY AUTOINCREMENT,
    name        TEXT NOT NULL,
    epoch       INTEGER,
    version     TEXT NOT NULL,
    release     TEXT NOT NULL,
    arch        TEXT NOT NULL,
    summary     TEXT NOT NULL,
    description TEXT NOT NULL,
    license     TEXT,
    vcs         TEXT,
    repo        TEXT NOT NULL,
    UNIQUE(name, arch, repo)
);

CREATE INDEX IF NOT EXISTS idx_packages_name ON packages(name);
CREATE INDEX IF NOT EXISTS idx_packages_arch ON packages(arch);
CREATE INDEX IF NOT EXISTS idx_packages_repo ON packages(repo);

CREATE TABLE IF NOT EXISTS dependencies (
    id      INTEGER PRIMARY KEY AUTOINCREMENT,
    pkg_id  INTEGER NOT NULL,
    kind    TEXT NOT NULL, -- 'requires' | 'provides'
    name    TEXT NOT NULL,
    flag    TEXT NOT NULL DEFAULT '',
    version TEXT NOT NULL DEFAULT '',
    FOREIGN KEY(pkg_id) REFERENCES packages(pkg_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_dependencies_pkg_id ON dependencies(pkg_id);
CREATE INDEX IF NOT EXISTS idx_dependencies_name ON dependencies(kind, name);

CREATE TABLE IF NOT EXISTS files (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    pkg_id    INTEGER NOT NULL,
    path      TEXT NOT NULL,
    file_type INTEGER NOT NULL DEFAULT 0, -- 0=file, 1=dir, 2=ghost
    FOREIGN KEY(pkg_id) REFERENCES packages(pkg_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_files_pkg_id ON files(pkg_id);
CREATE INDEX IF NOT EXISTS idx_files_path ON files(path);

CREATE TABLE IF NOT EXISTS repo_sync_state (
    repo_name      TEXT PRIMARY KEY,
    last_sync      DATETIME,
    last_checksum  TEXT,
    last_status    TEXT NOT NULL,
    last_error     TEXT
);

CREATE TABLE IF NOT EXISTS metadata (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

package store

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA busy_timeout = 5000;

-- Conference sessions discovered by phase 1.
CREATE TABLE IF NOT EXISTS collections (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    locale        TEXT NOT NULL,
    source_url    TEXT NOT NULL,
    discovered_at TIMESTAMP NOT NULL,
    processed     BOOLEAN NOT NULL DEFAULT 0,
    UNIQUE(locale, source_url)
);

-- Individual talks discovered by phase 2. item_url is unique per locale even
-- across collections: overlapping listings reach the same talk.
CREATE TABLE IF NOT EXISTS leaves (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    collection_url TEXT NOT NULL,
    item_url       TEXT NOT NULL,
    locale         TEXT NOT NULL,
    discovered_at  TIMESTAMP NOT NULL,
    processed      BOOLEAN NOT NULL DEFAULT 0,
    UNIQUE(locale, item_url)
);

CREATE INDEX IF NOT EXISTS idx_leaves_pending ON leaves(locale, processed);

-- Validated structured content, one row per talk. Rows exist only for talks
-- that passed validation; re-extraction replaces in place.
CREATE TABLE IF NOT EXISTS contents (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    item_url    TEXT NOT NULL UNIQUE,
    title       TEXT NOT NULL,
    author      TEXT NOT NULL,
    role        TEXT,
    note_count  INTEGER,
    locale      TEXT NOT NULL,
    period_year INTEGER NOT NULL,
    period      TEXT NOT NULL,
    captured_at TIMESTAMP NOT NULL
);

-- Append-only audit log, one row per attempt.
CREATE TABLE IF NOT EXISTS op_log (
    id      INTEGER PRIMARY KEY AUTOINCREMENT,
    op      TEXT NOT NULL,
    locale  TEXT,
    url     TEXT,
    status  TEXT NOT NULL,
    message TEXT,
    ts      TIMESTAMP NOT NULL
);
`

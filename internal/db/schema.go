package db

// schema is the full database schema.
//
// The items_delete_on_zero trigger is the integrity rule the whole quantity
// subsystem is built around: a quantity that reaches zero means the item
// ceases to exist. The store layer never deletes on zero itself, it only
// reacts to rows vanishing underneath it.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS items (
    id                TEXT PRIMARY KEY,
    user_id           INTEGER NOT NULL REFERENCES users(id),
    name              TEXT NOT NULL,
    label             TEXT NOT NULL,
    store             TEXT,
    storage           TEXT NOT NULL DEFAULT 'counter'
                      CHECK (storage IN ('counter', 'fridge', 'freezer')),
    acquired_at       TEXT NOT NULL,
    image_path        TEXT NOT NULL DEFAULT 'pending',
    image             BLOB,
    image_mime        TEXT,
    initial_days_left INTEGER,
    days_left         INTEGER,
    freshness_stage   TEXT
                      CHECK (freshness_stage IN ('Fresh', 'Eat Soon', 'Last Call', 'Spoiled')),
    status            TEXT NOT NULL DEFAULT 'ok'
                      CHECK (status IN ('ok', 'spoiling', 'expired')),
    last_analyzed_at  DATETIME,
    qty_type          TEXT NOT NULL DEFAULT 'count'
                      CHECK (qty_type IN ('count', 'weight', 'volume', 'bunch', 'other')),
    qty_unit          TEXT NOT NULL DEFAULT 'ea',
    qty_value         REAL NOT NULL DEFAULT 1 CHECK (qty_value >= 0),
    qty_base          REAL,
    initial_qty_base  REAL,
    qty_is_estimated  INTEGER NOT NULL DEFAULT 0,
    created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_items_user ON items(user_id);
CREATE INDEX IF NOT EXISTS idx_items_days_left ON items(days_left);

CREATE TRIGGER IF NOT EXISTS items_delete_on_zero
AFTER UPDATE OF qty_value ON items
WHEN NEW.qty_value <= 0
BEGIN
    DELETE FROM items WHERE id = NEW.id;
END;

CREATE TABLE IF NOT EXISTS devices (
    push_endpoint TEXT PRIMARY KEY,
    user_id       INTEGER NOT NULL REFERENCES users(id),
    user_agent    TEXT,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

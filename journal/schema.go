package journal

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS trades (
	id            TEXT PRIMARY KEY,
	external_id   TEXT NOT NULL,
	account_id    TEXT NOT NULL,
	broker        TEXT NOT NULL DEFAULT '',
	symbol        TEXT NOT NULL,
	instrument_id TEXT NOT NULL DEFAULT '',
	asset_type    TEXT NOT NULL,
	action        TEXT NOT NULL,
	side          TEXT NOT NULL,
	quantity      TEXT NOT NULL,
	price         TEXT NOT NULL,
	fees          TEXT NOT NULL DEFAULT '0',
	multiplier    TEXT NOT NULL DEFAULT '1',
	executed_at   DATETIME NOT NULL,
	position_key  TEXT,
	UNIQUE (account_id, external_id)
);

CREATE INDEX IF NOT EXISTS idx_trades_group ON trades(account_id, instrument_id, symbol);
CREATE INDEX IF NOT EXISTS idx_trades_position_key ON trades(position_key);

CREATE TABLE IF NOT EXISTS tags (
	id    TEXT PRIMARY KEY,
	name  TEXT NOT NULL,
	color TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS position_tags (
	position_key TEXT NOT NULL,
	tag_id       TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	PRIMARY KEY (position_key, tag_id)
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS trades (
	id            TEXT PRIMARY KEY,
	external_id   TEXT NOT NULL,
	account_id    TEXT NOT NULL,
	broker        TEXT NOT NULL DEFAULT '',
	symbol        TEXT NOT NULL,
	instrument_id TEXT NOT NULL DEFAULT '',
	asset_type    TEXT NOT NULL,
	action        TEXT NOT NULL,
	side          TEXT NOT NULL,
	quantity      NUMERIC NOT NULL,
	price         NUMERIC NOT NULL,
	fees          NUMERIC NOT NULL DEFAULT 0,
	multiplier    NUMERIC NOT NULL DEFAULT 1,
	executed_at   TIMESTAMPTZ NOT NULL,
	position_key  TEXT,
	UNIQUE (account_id, external_id)
);

CREATE INDEX IF NOT EXISTS idx_trades_group ON trades(account_id, instrument_id, symbol);
CREATE INDEX IF NOT EXISTS idx_trades_position_key ON trades(position_key);

CREATE TABLE IF NOT EXISTS tags (
	id    TEXT PRIMARY KEY,
	name  TEXT NOT NULL,
	color TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS position_tags (
	position_key TEXT NOT NULL,
	tag_id       TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	PRIMARY KEY (position_key, tag_id)
);
`

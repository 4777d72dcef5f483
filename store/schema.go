package store

// schemaSQLite and schemaPostgres create the deposits table described in
// spec.md §6. The two dialects differ only in integer column types
// (INTEGER vs BIGINT); the column set and semantics are identical.

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS deposits (
	id                   TEXT PRIMARY KEY,
	taproot_address      TEXT UNIQUE NOT NULL,
	commitment           TEXT NOT NULL,
	amount_sats          INTEGER NOT NULL,
	status               TEXT NOT NULL,
	confirmations        INTEGER NOT NULL DEFAULT 0,
	deposit_txid         TEXT,
	deposit_vout         INTEGER,
	deposit_block_height INTEGER,
	sweep_txid           TEXT,
	sweep_confirmations  INTEGER NOT NULL DEFAULT 0,
	sweep_block_height   INTEGER,
	pool_address         TEXT,
	solana_tx            TEXT,
	leaf_index           INTEGER,
	created_at           INTEGER NOT NULL,
	updated_at           INTEGER NOT NULL,
	error                TEXT,
	retry_count          INTEGER NOT NULL DEFAULT 0,
	last_retry_at        INTEGER
);
CREATE INDEX IF NOT EXISTS idx_deposits_status ON deposits(status);
CREATE INDEX IF NOT EXISTS idx_deposits_address ON deposits(taproot_address);
CREATE INDEX IF NOT EXISTS idx_deposits_created_at ON deposits(created_at);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS deposits (
	id                   TEXT PRIMARY KEY,
	taproot_address      TEXT UNIQUE NOT NULL,
	commitment           TEXT NOT NULL,
	amount_sats          BIGINT NOT NULL,
	status               TEXT NOT NULL,
	confirmations        BIGINT NOT NULL DEFAULT 0,
	deposit_txid         TEXT,
	deposit_vout         BIGINT,
	deposit_block_height BIGINT,
	sweep_txid           TEXT,
	sweep_confirmations  BIGINT NOT NULL DEFAULT 0,
	sweep_block_height   BIGINT,
	pool_address         TEXT,
	solana_tx            TEXT,
	leaf_index           BIGINT,
	created_at           BIGINT NOT NULL,
	updated_at           BIGINT NOT NULL,
	error                TEXT,
	retry_count          BIGINT NOT NULL DEFAULT 0,
	last_retry_at        BIGINT
);
CREATE INDEX IF NOT EXISTS idx_deposits_status ON deposits(status);
CREATE INDEX IF NOT EXISTS idx_deposits_address ON deposits(taproot_address);
CREATE INDEX IF NOT EXISTS idx_deposits_created_at ON deposits(created_at);
`

const depositColumns = `id, taproot_address, commitment, amount_sats, status, confirmations,
	deposit_txid, deposit_vout, deposit_block_height,
	sweep_txid, sweep_confirmations, sweep_block_height, pool_address,
	solana_tx, leaf_index, created_at, updated_at,
	error, retry_count, last_retry_at`

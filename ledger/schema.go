// ledger/schema.go
package ledger

const Schema = `
CREATE TABLE IF NOT EXISTS positions (
	instrument_id TEXT PRIMARY KEY,
	doc TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_positions_updated ON positions(updated_at);
`

package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	time DATETIME NOT NULL,
	direction TEXT NOT NULL,
	engine_price TEXT NOT NULL,
	broker_price TEXT NOT NULL,
	lag TEXT NOT NULL,
	outcome TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_time ON trades(time);
`

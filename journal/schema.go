package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	position_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	size REAL NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	realized_pl REAL NOT NULL,
	reason TEXT NOT NULL,
	is_partial INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_position ON trades(position_id);

CREATE TABLE IF NOT EXISTS equity (
	time DATETIME NOT NULL,
	balance REAL NOT NULL,
	equity REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);

CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	finished DATETIME NOT NULL,
	bars INTEGER NOT NULL,
	trades INTEGER NOT NULL,
	total_return REAL NOT NULL,
	max_drawdown REAL NOT NULL,
	final_capital REAL NOT NULL
);
`

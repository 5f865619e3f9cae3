package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(position_id, symbol, side, size, entry_price, exit_price, open_time, close_time, realized_pl, reason, is_partial)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.PositionID, t.Symbol, t.Side, t.Size, t.EntryPrice,
		t.ExitPrice, t.OpenTime, t.CloseTime, t.RealizedPL, t.Reason, t.IsPartial,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity (time, balance, equity) VALUES (?, ?, ?)`,
		e.Time, e.Balance, e.Equity,
	)
	return err
}

func (j *SQLite) RecordRun(r RunSummary) error {
	_, err := j.db.Exec(`
		INSERT INTO runs
		(run_id, symbol, finished, bars, trades, total_return, max_drawdown, final_capital)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Symbol, r.Finished, r.Bars, r.Trades,
		r.TotalReturn, r.MaxDrawdown, r.FinalCapital,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

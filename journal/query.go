package journal

import (
	"time"
)

// ListTradesByPosition returns every fill recorded against a position, in
// close-time order: zero or more partial exits followed by the final close.
func (j *SQLite) ListTradesByPosition(positionID string) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT position_id, symbol, side, size, entry_price, exit_price, open_time, close_time, realized_pl, reason, is_partial
		FROM trades
		WHERE position_id = ?
		ORDER BY close_time ASC`, positionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var rec TradeRecord
		if err := rows.Scan(
			&rec.PositionID,
			&rec.Symbol,
			&rec.Side,
			&rec.Size,
			&rec.EntryPrice,
			&rec.ExitPrice,
			&rec.OpenTime,
			&rec.CloseTime,
			&rec.RealizedPL,
			&rec.Reason,
			&rec.IsPartial,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTradesClosedBetween returns trades whose close_time is within [start, end).
func (j *SQLite) ListTradesClosedBetween(start, end time.Time) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT position_id, symbol, side, size, entry_price, exit_price, open_time, close_time, realized_pl, reason, is_partial
		FROM trades
		WHERE close_time >= ? AND close_time < ?
		ORDER BY close_time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var rec TradeRecord
		if err := rows.Scan(
			&rec.PositionID,
			&rec.Symbol,
			&rec.Side,
			&rec.Size,
			&rec.EntryPrice,
			&rec.ExitPrice,
			&rec.OpenTime,
			&rec.CloseTime,
			&rec.RealizedPL,
			&rec.Reason,
			&rec.IsPartial,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRun returns the summary for one run id, or sql.ErrNoRows when the run
// was never recorded.
func (j *SQLite) GetRun(runID string) (RunSummary, error) {
	var rec RunSummary
	err := j.db.QueryRow(`
		SELECT run_id, symbol, finished, bars, trades, total_return, max_drawdown, final_capital
		FROM runs
		WHERE run_id = ?`, runID).Scan(
		&rec.RunID,
		&rec.Symbol,
		&rec.Finished,
		&rec.Bars,
		&rec.Trades,
		&rec.TotalReturn,
		&rec.MaxDrawdown,
		&rec.FinalCapital,
	)
	return rec, err
}

// ListEquityBetween returns equity snapshots within [start, end).
func (j *SQLite) ListEquityBetween(start, end time.Time) ([]EquitySnapshot, error) {
	rows, err := j.db.Query(`
		SELECT time, balance, equity
		FROM equity
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var rec EquitySnapshot
		if err := rows.Scan(&rec.Time, &rec.Balance, &rec.Equity); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/quantlab/backcast/market"
)

// loadCandles reads a candle CSV with columns
// time,open,high,low,close,volume. Time is RFC3339 or unix seconds. A header
// row is detected and skipped.
func loadCandles(path string) ([]market.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open candles: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 6

	var bars []market.Bar
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read candles: %w", err)
		}
		line++
		if line == 1 && rec[0] == "time" {
			continue
		}

		ts, err := parseTime(rec[0])
		if err != nil {
			return nil, fmt.Errorf("candles line %d: %w", line, err)
		}
		var vals [5]float64
		for i := 0; i < 5; i++ {
			v, err := strconv.ParseFloat(rec[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("candles line %d: field %d: %w", line, i+1, err)
			}
			vals[i] = v
		}
		bars = append(bars, market.Bar{
			Time:   ts,
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("candles: %s contains no rows", path)
	}
	return bars, nil
}

func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable time %q", s)
	}
	return time.Unix(secs, 0).UTC(), nil
}

package market

import "time"

// Bar represents one OHLCV candlestick. Bars are immutable once produced;
// everything downstream receives them by value.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Range returns the high-low span of the bar.
func (b Bar) Range() float64 {
	return b.High - b.Low
}

// Bullish reports whether the bar closed above its open.
func (b Bar) Bullish() bool {
	return b.Close > b.Open
}

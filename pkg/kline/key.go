// Package kline provides the data model for historical kline (candlestick)
// archives: archive keys, decoded tables, fetch outcomes, and combination
// of per-day tables into one dataset.
package kline

import "fmt"

// DateKey uniquely identifies one daily kline archive.
type DateKey struct {
	// Ticker is the trading pair symbol (e.g. "BTCUSDT").
	Ticker string

	// Frequency is the kline interval label (e.g. "1d", "8h", "1min").
	Frequency string

	// Date is the calendar date in YYYY-MM-DD form.
	Date string
}

// String returns the archive file stem, e.g. "BTCUSDT-1d-2024-07-02".
func (k DateKey) String() string {
	return fmt.Sprintf("%s-%s-%s", k.Ticker, k.Frequency, k.Date)
}

// Keys builds one DateKey per date for a (ticker, frequency) pair.
func Keys(ticker, frequency string, dates []string) []DateKey {
	keys := make([]DateKey, 0, len(dates))
	for _, d := range dates {
		keys = append(keys, DateKey{Ticker: ticker, Frequency: frequency, Date: d})
	}
	return keys
}

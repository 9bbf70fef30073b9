package kline

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one typed kline row. Column order follows the KuCoin archive
// format: timestamp, open, close, high, low, volume, amount.
type Candle struct {
	Time   time.Time
	Open   decimal.Decimal
	Close  decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Volume decimal.Decimal
	Amount decimal.Decimal
}

// candleColumns is the minimum number of columns a kline row must carry.
const candleColumns = 7

// ValidationError reports a row that failed candle validation.
type ValidationError struct {
	Row     int
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("row %d: invalid %s: %s", e.Row, e.Field, e.Message)
}

// ParseCandles converts a decoded table into typed candles.
//
// Timestamps are interpreted as Unix seconds or milliseconds depending on
// magnitude. Rows with malformed numbers or inconsistent OHLC relationships
// (high below open/close, low above open/close) fail the whole parse; the
// untyped Table remains available for callers that only need raw rows.
func ParseCandles(t *Table) ([]Candle, error) {
	if t == nil {
		return nil, nil
	}
	candles := make([]Candle, 0, len(t.Rows))
	for i, row := range t.Rows {
		if len(row) < candleColumns {
			return nil, &ValidationError{Row: i, Field: "row", Message: fmt.Sprintf("expected %d columns, got %d", candleColumns, len(row))}
		}

		ts, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, &ValidationError{Row: i, Field: "timestamp", Message: err.Error()}
		}

		c := Candle{Time: timeFromUnix(ts)}
		fields := []struct {
			name string
			dst  *decimal.Decimal
			raw  string
		}{
			{"open", &c.Open, row[1]},
			{"close", &c.Close, row[2]},
			{"high", &c.High, row[3]},
			{"low", &c.Low, row[4]},
			{"volume", &c.Volume, row[5]},
			{"amount", &c.Amount, row[6]},
		}
		for _, f := range fields {
			v, err := decimal.NewFromString(f.raw)
			if err != nil {
				return nil, &ValidationError{Row: i, Field: f.name, Message: err.Error()}
			}
			*f.dst = v
		}

		if c.High.LessThan(c.Open) || c.High.LessThan(c.Close) {
			return nil, &ValidationError{Row: i, Field: "high", Message: "high below open/close"}
		}
		if c.Low.GreaterThan(c.Open) || c.Low.GreaterThan(c.Close) {
			return nil, &ValidationError{Row: i, Field: "low", Message: "low above open/close"}
		}

		candles = append(candles, c)
	}
	return candles, nil
}

// timeFromUnix converts a Unix timestamp in seconds or milliseconds to UTC.
// Values above 1e12 are treated as milliseconds.
func timeFromUnix(ts int64) time.Time {
	if ts > 1_000_000_000_000 {
		return time.UnixMilli(ts).UTC()
	}
	return time.Unix(ts, 0).UTC()
}

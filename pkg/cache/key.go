package cache

import "strings"

// Key identifies one cached enumeration.
// A zero Ticker addresses the host-wide ticker listing; a populated Ticker
// plus Frequency addresses that pair's date listing.
type Key struct {
	Ticker    string
	Frequency string
}

// String generates a deterministic cache key string.
// Format: kucoin:listing:tickers or kucoin:listing:dates:TICKER:FREQ
func (k Key) String() string {
	if k.Ticker == "" {
		return "kucoin:listing:tickers"
	}
	return strings.Join([]string{"kucoin:listing:dates", k.Ticker, k.Frequency}, ":")
}

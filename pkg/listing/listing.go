// Package listing enumerates the archives available on the historical data
// host by scraping its directory listing pages.
//
// The listing is plain HTML once rendered: a table body with id "listing"
// whose rows link either to per-ticker directories or to daily .zip
// archives. A plain HTTP GET plus a DOM parse is all that is needed; no
// browser automation is involved.
package listing

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/batterysnoopy/crypto-downloader/pkg/cache"
)

// Listing pages link ticker directories and archive files by href.
var (
	tickerPattern = regexp.MustCompile(`/klines/(.*?)/$`)
	datePattern   = regexp.MustCompile(`-(\d{4}-\d{2}-\d{2})\.zip$`)
)

// Transport issues GET requests against the historical data host.
// *client.Client satisfies this.
type Transport interface {
	Get(ctx context.Context, path string) (*http.Response, error)
}

// Enumerator lists available tickers and dates from the directory listing.
type Enumerator struct {
	transport Transport
	cache     *cache.Manager
	logger    zerolog.Logger
}

// Option configures an Enumerator.
type Option func(*Enumerator)

// WithCache enables Redis-backed caching of enumeration results.
// Cache failures degrade to a direct scrape; they never fail the enumeration.
func WithCache(m *cache.Manager) Option {
	return func(e *Enumerator) { e.cache = m }
}

// NewEnumerator creates an Enumerator over the given transport.
func NewEnumerator(transport Transport, opts ...Option) *Enumerator {
	e := &Enumerator{
		transport: transport,
		logger:    log.With().Str("component", "listing").Logger(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Tickers returns the trading pairs that have kline archives published.
func (e *Enumerator) Tickers(ctx context.Context) ([]string, error) {
	const path = "/?prefix=data/spot/daily/klines"

	if values, ok := e.cached(ctx, cache.Key{}); ok {
		return values, nil
	}

	hrefs, err := e.scrape(ctx, "tickers", path)
	if err != nil {
		return nil, err
	}

	var tickers []string
	for _, href := range hrefs {
		if m := tickerPattern.FindStringSubmatch(href); m != nil {
			tickers = append(tickers, m[1])
		}
	}

	if len(tickers) == 0 {
		return nil, &Error{Op: "tickers", Path: path, Err: fmt.Errorf("no ticker links in listing")}
	}

	e.logger.Info().Int("count", len(tickers)).Msg("Retrieved tickers")
	e.store(ctx, cache.Key{}, tickers)

	return tickers, nil
}

// Dates returns the available archive dates for a (ticker, frequency) pair,
// in listing order. A ticker page with no archives yields an empty slice.
func (e *Enumerator) Dates(ctx context.Context, ticker, frequency string) ([]string, error) {
	path := fmt.Sprintf("/?prefix=data/spot/daily/klines/%s/%s/", ticker, frequency)
	key := cache.Key{Ticker: ticker, Frequency: frequency}

	if values, ok := e.cached(ctx, key); ok {
		return values, nil
	}

	hrefs, err := e.scrape(ctx, "dates", path)
	if err != nil {
		return nil, err
	}

	var dates []string
	for _, href := range hrefs {
		if m := datePattern.FindStringSubmatch(href); m != nil {
			dates = append(dates, m[1])
		}
	}

	e.logger.Info().
		Str("ticker", ticker).
		Str("frequency", frequency).
		Int("count", len(dates)).
		Msg("Retrieved available dates")
	e.store(ctx, key, dates)

	return dates, nil
}

// scrape fetches a listing page and returns the hrefs of its rows.
func (e *Enumerator) scrape(ctx context.Context, op, path string) ([]string, error) {
	resp, err := e.transport.Get(ctx, path)
	if err != nil {
		return nil, &Error{Op: op, Path: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Op: op, Path: path, Err: fmt.Errorf("listing returned HTTP %d", resp.StatusCode)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &Error{Op: op, Path: path, Err: fmt.Errorf("parse listing: %w", err)}
	}

	body := doc.Find("tbody#listing")
	if body.Length() == 0 {
		return nil, &Error{Op: op, Path: path, Err: ErrNoListing}
	}

	var hrefs []string
	body.Find("tr a").Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok {
			hrefs = append(hrefs, href)
		}
	})

	return hrefs, nil
}

// cached reads an enumeration from the cache, if configured.
func (e *Enumerator) cached(ctx context.Context, key cache.Key) ([]string, bool) {
	if e.cache == nil {
		return nil, false
	}
	entry, err := e.cache.Get(ctx, key)
	if err != nil {
		if err != cache.ErrCacheMiss {
			e.logger.Warn().Err(err).Str("key", key.String()).Msg("Listing cache get failed")
		}
		return nil, false
	}
	e.logger.Debug().Str("key", key.String()).Msg("Listing cache hit")
	return entry.Values, true
}

// store writes an enumeration to the cache, if configured. Best effort.
func (e *Enumerator) store(ctx context.Context, key cache.Key, values []string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Set(ctx, key, values); err != nil {
		e.logger.Warn().Err(err).Str("key", key.String()).Msg("Listing cache set failed")
	}
}

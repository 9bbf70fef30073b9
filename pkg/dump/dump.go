// Package dump orchestrates the full pipeline: enumerate available dates,
// fetch the requested archives in parallel, and combine the successes into
// one dataset per ticker.
package dump

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/batterysnoopy/crypto-downloader/pkg/kline"
)

// Enumerator lists available tickers and archive dates.
// *listing.Enumerator satisfies this.
type Enumerator interface {
	Tickers(ctx context.Context) ([]string, error)
	Dates(ctx context.Context, ticker, frequency string) ([]string, error)
}

// Coordinator resolves a batch of keys to outcomes.
// *batch.Coordinator satisfies this.
type Coordinator interface {
	FetchAll(ctx context.Context, keys []kline.DateKey) []kline.Outcome
}

// Options controls one combined-data run.
type Options struct {
	// Dates restricts the run to specific dates. Nil fetches everything
	// the listing offers. Dates not present in the listing are dropped;
	// an empty intersection is a valid, non-error outcome.
	Dates []string
}

// Failure describes one date that could not be fetched.
type Failure struct {
	Key    kline.DateKey
	Reason string
}

// Report summarizes a combined-data run.
type Report struct {
	Ticker    string
	Frequency string

	// Requested is the effective request set size after intersecting
	// with the listing.
	Requested int

	Succeeded int
	Failed    []Failure
}

// FailedCount returns the number of dates that could not be fetched.
func (r *Report) FailedCount() int {
	return len(r.Failed)
}

// Dumper composes the enumerator and the coordinator into the pipeline.
type Dumper struct {
	enum   Enumerator
	coord  Coordinator
	logger zerolog.Logger
}

// New creates a Dumper.
func New(enum Enumerator, coord Coordinator) *Dumper {
	return &Dumper{
		enum:   enum,
		coord:  coord,
		logger: log.With().Str("component", "dump").Logger(),
	}
}

// CombinedData fetches all requested daily archives for one ticker and
// frequency and concatenates them into a single table.
//
// Enumeration failure is fatal and propagates. Per-date fetch failures are
// collected in the report; the returned table holds whatever succeeded.
// Zero successes yield an empty table and a populated report, not an error.
func (d *Dumper) CombinedData(ctx context.Context, ticker, frequency string, opts Options) (*kline.Table, *Report, error) {
	available, err := d.enum.Dates(ctx, ticker, frequency)
	if err != nil {
		return nil, nil, err
	}

	dates := available
	if opts.Dates != nil {
		dates = intersect(opts.Dates, available)
	}

	report := &Report{
		Ticker:    ticker,
		Frequency: frequency,
		Requested: len(dates),
	}

	if len(dates) == 0 {
		d.logger.Warn().
			Str("ticker", ticker).
			Str("frequency", frequency).
			Msg("No dates to fetch")
		return &kline.Table{}, report, nil
	}

	outcomes := d.coord.FetchAll(ctx, kline.Keys(ticker, frequency, dates))

	combined := kline.Combine(outcomes)
	for _, o := range outcomes {
		if o.OK() {
			report.Succeeded++
		} else {
			report.Failed = append(report.Failed, Failure{Key: o.Key, Reason: o.Err.Error()})
		}
	}

	d.logger.Info().
		Str("ticker", ticker).
		Str("frequency", frequency).
		Int("rows", combined.RowCount()).
		Int("succeeded", report.Succeeded).
		Int("failed", report.FailedCount()).
		Msg("Combined dataset assembled")

	return combined, report, nil
}

// intersect filters requested to the dates present in available,
// preserving the requested order.
func intersect(requested, available []string) []string {
	set := make(map[string]bool, len(available))
	for _, d := range available {
		set[d] = true
	}
	var out []string
	for _, d := range requested {
		if set[d] {
			out = append(out, d)
		}
	}
	return out
}

// AllOptions controls a multi-ticker run.
type AllOptions struct {
	// Dates restricts every ticker's run, as in Options.Dates.
	Dates []string

	// OutputDir receives one {ticker}-{frequency}.csv per ticker when
	// set. Created if missing.
	OutputDir string

	// Workers bounds how many tickers are dumped concurrently.
	Workers int
}

// Result is the outcome of dumping one ticker.
type Result struct {
	Ticker string
	Rows   int
	Path   string
	Report *Report
	Err    error
}

// DumpAll runs CombinedData for several tickers concurrently and writes
// each combined dataset to the output directory.
//
// A ticker whose run fails is recorded in its Result and does not stop the
// others; the returned error is reserved for context cancellation.
func (d *Dumper) DumpAll(ctx context.Context, tickers []string, frequency string, opts AllOptions) ([]Result, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = 2
	}

	if opts.OutputDir != "" {
		if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}

	results := make([]Result, len(tickers))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, ticker := range tickers {
		g.Go(func() error {
			results[i] = d.dumpOne(ctx, ticker, frequency, opts)
			if results[i].Err != nil {
				d.logger.Error().
					Err(results[i].Err).
					Str("ticker", ticker).
					Msg("Ticker dump failed")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// dumpOne dumps a single ticker, writing the combined CSV when configured.
func (d *Dumper) dumpOne(ctx context.Context, ticker, frequency string, opts AllOptions) Result {
	result := Result{Ticker: ticker}

	combined, report, err := d.CombinedData(ctx, ticker, frequency, Options{Dates: opts.Dates})
	if err != nil {
		result.Err = err
		return result
	}

	result.Rows = combined.RowCount()
	result.Report = report

	if opts.OutputDir == "" || combined.Empty() {
		return result
	}

	path := filepath.Join(opts.OutputDir, fmt.Sprintf("%s-%s.csv", ticker, frequency))
	out, err := os.Create(path)
	if err != nil {
		result.Err = fmt.Errorf("create %s: %w", path, err)
		return result
	}
	defer out.Close()

	if err := combined.WriteCSV(out); err != nil {
		result.Err = fmt.Errorf("write %s: %w", path, err)
		return result
	}

	result.Path = path
	return result
}

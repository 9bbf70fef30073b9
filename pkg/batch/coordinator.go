package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/batterysnoopy/crypto-downloader/pkg/kline"
)

// Prometheus metrics for batch downloads.
var (
	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kucoin_downloads_total",
		Help: "Total archive downloads by outcome status",
	}, []string{"status"})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kucoin_batch_duration_seconds",
		Help:    "Duration of whole batch retrievals in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	rowsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kucoin_rows_fetched_total",
		Help: "Total data rows fetched across all archives",
	})
)

// Config holds coordinator configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel downloads.
	// The host is a static file server; modest parallelism is plenty.
	MaxConcurrency int

	// BufferSize for the key and result channels.
	BufferSize int

	// ProgressEvery controls how often a progress line is logged,
	// counted in completed downloads.
	ProgressEvery int
}

// DefaultConfig returns safe default configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 10,
		BufferSize:     400,
		ProgressEvery:  50,
	}
}

// ArchiveFetcher fetches a single archive. *archive.Fetcher satisfies this.
type ArchiveFetcher interface {
	Fetch(ctx context.Context, key kline.DateKey) (*kline.Table, error)
}

// Coordinator handles parallel fetching of archive batches.
type Coordinator struct {
	fetcher ArchiveFetcher
	config  Config
	logger  zerolog.Logger
}

// NewCoordinator creates a coordinator over the given fetcher.
func NewCoordinator(fetcher ArchiveFetcher, config Config) *Coordinator {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 10
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 400
	}
	if config.ProgressEvery <= 0 {
		config.ProgressEvery = 50
	}

	return &Coordinator{
		fetcher: fetcher,
		config:  config,
		logger:  log.With().Str("component", "batch").Logger(),
	}
}

// FetchAll fetches every key and returns one outcome per key.
//
// Outcomes are in completion order, which is not date order and not stable
// across runs. Failures (transport errors, decode errors, even a panic in
// the fetcher) become failure outcomes; the batch always runs to
// completion. When ctx is cancelled, keys not yet dispatched resolve as
// failures carrying ctx.Err, preserving the one-outcome-per-key contract.
func (c *Coordinator) FetchAll(ctx context.Context, keys []kline.DateKey) []kline.Outcome {
	if len(keys) == 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		batchDuration.Observe(time.Since(start).Seconds())
	}()

	c.logger.Info().
		Int("keys", len(keys)).
		Int("workers", c.config.MaxConcurrency).
		Msg("Starting parallel archive fetch")

	keyQueue := make(chan kline.DateKey, c.config.BufferSize)
	results := make(chan kline.Outcome, c.config.BufferSize)

	go func() {
		for _, key := range keys {
			keyQueue <- key
		}
		close(keyQueue)
	}()

	var wg sync.WaitGroup
	workers := c.config.MaxConcurrency
	if workers > len(keys) {
		workers = len(keys)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go c.worker(ctx, keyQueue, results, &wg)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	outcomes := make([]kline.Outcome, 0, len(keys))
	completed := 0
	succeeded := 0
	for outcome := range results {
		completed++
		if outcome.OK() {
			succeeded++
			downloadsTotal.WithLabelValues("success").Inc()
			rowsFetchedTotal.Add(float64(outcome.Table.RowCount()))
		} else {
			downloadsTotal.WithLabelValues("failure").Inc()
			c.logger.Warn().
				Err(outcome.Err).
				Str("key", outcome.Key.String()).
				Msg("Archive fetch failed")
		}
		outcomes = append(outcomes, outcome)

		if completed%c.config.ProgressEvery == 0 {
			c.logger.Info().
				Int("completed", completed).
				Int("total", len(keys)).
				Float64("progress_pct", float64(completed)/float64(len(keys))*100).
				Msg("Fetch progress")
		}
	}

	c.logger.Info().
		Int("succeeded", succeeded).
		Int("failed", len(keys)-succeeded).
		Int("total", len(keys)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return outcomes
}

// worker resolves keys from the queue until it is drained.
func (c *Coordinator) worker(ctx context.Context, keyQueue <-chan kline.DateKey, results chan<- kline.Outcome, wg *sync.WaitGroup) {
	defer wg.Done()

	for key := range keyQueue {
		select {
		case <-ctx.Done():
			// Still drain the queue so every key gets an outcome.
			results <- kline.Outcome{Key: key, Err: ctx.Err()}
			continue
		default:
		}

		results <- c.fetchOne(ctx, key)
	}
}

// fetchOne resolves a single key, converting any panic in the fetcher into
// a failure outcome for that key.
func (c *Coordinator) fetchOne(ctx context.Context, key kline.DateKey) (outcome kline.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Str("key", key.String()).
				Interface("panic", r).
				Msg("Fetcher panicked")
			outcome = kline.Outcome{Key: key, Err: fmt.Errorf("fetch panicked: %v", r)}
		}
	}()

	table, err := c.fetcher.Fetch(ctx, key)
	if err != nil {
		return kline.Outcome{Key: key, Err: err}
	}
	return kline.Outcome{Key: key, Table: table}
}

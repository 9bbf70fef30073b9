// Command kucoin-dump downloads historical kline archives from the KuCoin
// static data host and writes one combined CSV per ticker.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/batterysnoopy/crypto-downloader/internal/config"
	"github.com/batterysnoopy/crypto-downloader/pkg/archive"
	"github.com/batterysnoopy/crypto-downloader/pkg/batch"
	"github.com/batterysnoopy/crypto-downloader/pkg/cache"
	"github.com/batterysnoopy/crypto-downloader/pkg/client"
	"github.com/batterysnoopy/crypto-downloader/pkg/dump"
	"github.com/batterysnoopy/crypto-downloader/pkg/listing"
	"github.com/batterysnoopy/crypto-downloader/pkg/logging"
	"github.com/batterysnoopy/crypto-downloader/pkg/ratelimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.Setup(logging.DefaultConfig())
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.Pretty,
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clientCfg := client.DefaultConfig()
	clientCfg.BaseURL = cfg.BaseURL

	var listingOpts []listing.Option
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
		logger.Info().Str("addr", cfg.RedisAddr).Msg("Connected to Redis")

		listingOpts = append(listingOpts, listing.WithCache(cache.NewManager(redisClient, cfg.CacheTTL)))
		clientCfg.Budget = ratelimit.NewBudget(redisClient, cfg.BudgetLimit, cfg.BudgetWindow, logging.NewLogger("ratelimit"))
	}

	httpClient, err := client.New(clientCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create HTTP client")
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, logger)
	}

	enum := listing.NewEnumerator(httpClient, listingOpts...)

	var fetcherOpts []archive.Option
	if cfg.SaveDir != "" {
		fetcherOpts = append(fetcherOpts, archive.WithSaveDir(cfg.SaveDir))
	}
	fetcher := archive.NewFetcher(httpClient, fetcherOpts...)

	batchCfg := batch.DefaultConfig()
	if cfg.Concurrency > 0 {
		batchCfg.MaxConcurrency = cfg.Concurrency
	}
	coord := batch.NewCoordinator(fetcher, batchCfg)

	dumper := dump.New(enum, coord)

	tickers := cfg.Tickers
	if len(tickers) == 0 {
		tickers, err = enum.Tickers(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to enumerate tickers")
		}
		logger.Info().Int("count", len(tickers)).Msg("Dumping every listed ticker")
	}

	results, err := dumper.DumpAll(ctx, tickers, cfg.Frequency, dump.AllOptions{
		Dates:     cfg.Dates,
		OutputDir: cfg.OutputDir,
		Workers:   cfg.TickerWorkers,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Dump aborted")
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			logger.Error().Err(r.Err).Str("ticker", r.Ticker).Msg("Ticker dump failed")
			continue
		}
		logger.Info().
			Str("ticker", r.Ticker).
			Int("rows", r.Rows).
			Str("path", r.Path).
			Int("missing_dates", r.Report.FailedCount()).
			Msg("Ticker dump complete")
	}

	logger.Info().
		Int("tickers", len(results)).
		Int("failed", failed).
		Msg("Dump finished")

	if failed == len(results) && failed > 0 {
		os.Exit(1)
	}
}

func serveMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	logger.Info().Str("addr", addr).Msg("Serving Prometheus metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("Metrics server stopped")
	}
}

// Package cache provides Redis-backed caching for directory listing
// enumerations (ticker and date lists).
//
// Listing pages on the historical data host change at most once per day as
// new archives are published, so enumeration results are cached with a
// fixed TTL. The archives themselves are immutable and are never cached
// here; only the cheap-to-store, expensive-to-scrape listings are.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient, time.Hour)
//
//	key := cache.Key{Ticker: "BTCUSDT", Frequency: "1d"}
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// Scrape the listing, then manager.Set(ctx, key, dates).
//	}
//
// # Metrics
//
// The manager exports Prometheus metrics:
//
//   - kucoin_listing_cache_hits_total - Cache hits
//   - kucoin_listing_cache_misses_total - Cache misses
//   - kucoin_listing_cache_errors_total{operation} - Operation errors
package cache

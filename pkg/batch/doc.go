// Package batch provides parallel retrieval of daily kline archives.
//
// The coordinator fans one fetch per requested date key out over a bounded
// worker pool and collects results as they complete. A failed fetch is
// recorded as a failure outcome for its key; it never aborts sibling
// fetches or the batch. The coordinator returns only when every requested
// key has resolved, so callers always receive exactly one outcome per key.
package batch

// Package archive fetches one daily kline archive and decodes it into a
// table. Each fetch is a pure function of its key; the optional save side
// effect never changes what is returned.
package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/batterysnoopy/crypto-downloader/pkg/kline"
)

// Transport issues GET requests against the historical data host.
// *client.Client satisfies this.
type Transport interface {
	Get(ctx context.Context, path string) (*http.Response, error)
}

// Fetcher downloads and decodes daily archives.
type Fetcher struct {
	transport Transport
	saveDir   string
	logger    zerolog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithSaveDir enables persisting each decoded table to
// {dir}/{ticker}/{frequency}/{ticker}-{frequency}-{date}.csv.
// Save failures are logged and never affect the returned table.
func WithSaveDir(dir string) Option {
	return func(f *Fetcher) { f.saveDir = dir }
}

// NewFetcher creates a Fetcher over the given transport.
func NewFetcher(transport Transport, opts ...Option) *Fetcher {
	f := &Fetcher{
		transport: transport,
		logger:    log.With().Str("component", "archive").Logger(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Path returns the resource path of key's archive on the host.
func Path(key kline.DateKey) string {
	return fmt.Sprintf("data/spot/daily/klines/%s/%s/%s.zip", key.Ticker, key.Frequency, key)
}

// Fetch retrieves, decompresses, and decodes one archive.
//
// Non-2xx statuses come back as *TransportError and malformed archives as
// *DecodeError; both are per-key failures the coordinator records without
// aborting the batch. The archive is expected to hold exactly one CSV
// member; if it holds more, the first in archive order is taken and a
// warning is logged.
func (f *Fetcher) Fetch(ctx context.Context, key kline.DateKey) (*kline.Table, error) {
	resp, err := f.transport.Get(ctx, Path(key))
	if err != nil {
		return nil, &TransportError{Key: key, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Key: key, StatusCode: resp.StatusCode}
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Key: key, Err: fmt.Errorf("read body: %w", err)}
	}

	zr, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return nil, &DecodeError{Key: key, Err: fmt.Errorf("open zip: %w", err)}
	}

	if len(zr.File) == 0 {
		return nil, &DecodeError{Key: key, Err: fmt.Errorf("archive has no members")}
	}
	if len(zr.File) != 1 {
		f.logger.Warn().
			Str("key", key.String()).
			Int("members", len(zr.File)).
			Str("taking", zr.File[0].Name).
			Msg("Archive has more than one member, taking the first")
	}

	member, err := zr.File[0].Open()
	if err != nil {
		return nil, &DecodeError{Key: key, Err: fmt.Errorf("open member %s: %w", zr.File[0].Name, err)}
	}
	defer member.Close()

	table, err := kline.ReadCSV(member)
	if err != nil {
		return nil, &DecodeError{Key: key, Err: fmt.Errorf("read csv: %w", err)}
	}

	// A published archive always carries at least a header row. A member
	// with no records at all is a truncated upload, not a zero-row day.
	if len(table.Header) == 0 {
		return nil, &DecodeError{Key: key, Err: fmt.Errorf("archive member %s is empty", zr.File[0].Name)}
	}

	if f.saveDir != "" {
		if err := f.save(key, table); err != nil {
			f.logger.Error().Err(err).Str("key", key.String()).Msg("Failed to save table to disk")
		}
	}

	return table, nil
}

// save writes the decoded table under the configured save directory.
func (f *Fetcher) save(key kline.DateKey, table *kline.Table) error {
	dir := filepath.Join(f.saveDir, key.Ticker, key.Frequency)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	path := filepath.Join(dir, key.String()+".csv")
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer out.Close()

	if err := table.WriteCSV(out); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	f.logger.Debug().Str("path", path).Int("rows", table.RowCount()).Msg("Saved table")
	return nil
}

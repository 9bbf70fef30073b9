package dump

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/batterysnoopy/crypto-downloader/pkg/batch"
	"github.com/batterysnoopy/crypto-downloader/pkg/kline"
)

// fakeEnum serves canned date listings.
type fakeEnum struct {
	tickers []string
	dates   map[string][]string // "ticker/frequency" -> dates
	err     error
}

func (f *fakeEnum) Tickers(ctx context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tickers, nil
}

func (f *fakeEnum) Dates(ctx context.Context, ticker, frequency string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.dates[ticker+"/"+frequency], nil
}

// fakeFetcher returns tables with a configured number of rows, or errors.
type fakeFetcher struct {
	rows  map[string]int // key string -> row count
	errs  map[string]error
	calls atomic.Int64
}

func (f *fakeFetcher) Fetch(ctx context.Context, key kline.DateKey) (*kline.Table, error) {
	f.calls.Add(1)
	if err, ok := f.errs[key.String()]; ok {
		return nil, err
	}
	n := 1
	if rows, ok := f.rows[key.String()]; ok {
		n = rows
	}
	table := &kline.Table{Header: []string{"timestamp", "open"}}
	for i := 0; i < n; i++ {
		table.Rows = append(table.Rows, []string{fmt.Sprintf("%d", i), "1"})
	}
	return table, nil
}

func newTestDumper(enum Enumerator, fetcher batch.ArchiveFetcher) *Dumper {
	return New(enum, batch.NewCoordinator(fetcher, batch.DefaultConfig()))
}

func TestCombinedData_AllAvailableDates(t *testing.T) {
	enum := &fakeEnum{dates: map[string][]string{
		"BTCUSDT/1d": {"2024-07-01", "2024-07-02", "2024-07-03"},
	}}
	fetcher := &fakeFetcher{}
	d := newTestDumper(enum, fetcher)

	combined, report, err := d.CombinedData(context.Background(), "BTCUSDT", "1d", Options{})
	if err != nil {
		t.Fatalf("CombinedData() error: %v", err)
	}
	if combined.RowCount() != 3 {
		t.Errorf("rows = %d, want 3", combined.RowCount())
	}
	if report.Requested != 3 || report.Succeeded != 3 || report.FailedCount() != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestCombinedData_IntersectsRequestedDates(t *testing.T) {
	enum := &fakeEnum{dates: map[string][]string{
		"BTCUSDT/1d": {"2024-07-01", "2024-07-02"},
	}}
	fetcher := &fakeFetcher{}
	d := newTestDumper(enum, fetcher)

	_, report, err := d.CombinedData(context.Background(), "BTCUSDT", "1d", Options{
		Dates: []string{"2024-07-02", "2024-12-25"},
	})
	if err != nil {
		t.Fatalf("CombinedData() error: %v", err)
	}
	if report.Requested != 1 {
		t.Errorf("requested = %d, want 1 (only the available date)", report.Requested)
	}
	if fetcher.calls.Load() != 1 {
		t.Errorf("fetcher calls = %d, want 1", fetcher.calls.Load())
	}
}

func TestCombinedData_EmptyIntersectionIsNotAnError(t *testing.T) {
	enum := &fakeEnum{dates: map[string][]string{
		"BTCUSDT/1d": {"2024-07-01"},
	}}
	fetcher := &fakeFetcher{}
	d := newTestDumper(enum, fetcher)

	combined, report, err := d.CombinedData(context.Background(), "BTCUSDT", "1d", Options{
		Dates: []string{"2020-01-01", "2020-01-02"},
	})
	if err != nil {
		t.Fatalf("CombinedData() error: %v", err)
	}
	if !combined.Empty() {
		t.Errorf("rows = %d, want 0", combined.RowCount())
	}
	if report.Requested != 0 {
		t.Errorf("requested = %d, want 0", report.Requested)
	}
	if fetcher.calls.Load() != 0 {
		t.Errorf("fetcher calls = %d, want 0 (nothing to fetch)", fetcher.calls.Load())
	}
}

func TestCombinedData_PartialFailure(t *testing.T) {
	enum := &fakeEnum{dates: map[string][]string{
		"BTCUSDT/1d": {"2024-07-01", "2024-07-02", "2024-07-03"},
	}}
	fetcher := &fakeFetcher{
		rows: map[string]int{
			"BTCUSDT-1d-2024-07-01": 10,
			"BTCUSDT-1d-2024-07-03": 15,
		},
		errs: map[string]error{
			"BTCUSDT-1d-2024-07-02": errors.New("HTTP 500"),
		},
	}
	d := newTestDumper(enum, fetcher)

	combined, report, err := d.CombinedData(context.Background(), "BTCUSDT", "1d", Options{})
	if err != nil {
		t.Fatalf("CombinedData() error: %v", err)
	}
	if combined.RowCount() != 25 {
		t.Errorf("rows = %d, want 25", combined.RowCount())
	}
	if report.Succeeded != 2 {
		t.Errorf("succeeded = %d, want 2", report.Succeeded)
	}
	if report.FailedCount() != 1 {
		t.Fatalf("failed = %d, want 1", report.FailedCount())
	}
	if report.Failed[0].Key.Date != "2024-07-02" {
		t.Errorf("failed key = %s", report.Failed[0].Key)
	}
}

func TestCombinedData_ZeroSuccessesIsNotAnError(t *testing.T) {
	enum := &fakeEnum{dates: map[string][]string{
		"BTCUSDT/1d": {"2024-07-01", "2024-07-02"},
	}}
	fetcher := &fakeFetcher{errs: map[string]error{
		"BTCUSDT-1d-2024-07-01": errors.New("HTTP 404"),
		"BTCUSDT-1d-2024-07-02": errors.New("HTTP 404"),
	}}
	d := newTestDumper(enum, fetcher)

	combined, report, err := d.CombinedData(context.Background(), "BTCUSDT", "1d", Options{})
	if err != nil {
		t.Fatalf("CombinedData() error: %v", err)
	}
	if !combined.Empty() {
		t.Errorf("rows = %d, want 0", combined.RowCount())
	}
	if report.FailedCount() != 2 {
		t.Errorf("failed = %d, want 2", report.FailedCount())
	}
}

func TestCombinedData_EnumerationErrorPropagates(t *testing.T) {
	wantErr := errors.New("listing table not found")
	d := newTestDumper(&fakeEnum{err: wantErr}, &fakeFetcher{})

	_, _, err := d.CombinedData(context.Background(), "BTCUSDT", "1d", Options{})
	if !errors.Is(err, wantErr) {
		t.Errorf("error = %v, want %v", err, wantErr)
	}
}

func TestDumpAll(t *testing.T) {
	enum := &fakeEnum{dates: map[string][]string{
		"BTCUSDT/1d": {"2024-07-01", "2024-07-02"},
		"ETHUSDT/1d": {"2024-07-01"},
	}}
	fetcher := &fakeFetcher{}
	d := newTestDumper(enum, fetcher)

	dir := t.TempDir()
	results, err := d.DumpAll(context.Background(), []string{"BTCUSDT", "ETHUSDT"}, "1d", AllOptions{
		OutputDir: dir,
	})
	if err != nil {
		t.Fatalf("DumpAll() error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}

	for _, r := range results {
		if r.Err != nil {
			t.Errorf("ticker %s failed: %v", r.Ticker, r.Err)
		}
		if r.Path == "" {
			t.Errorf("ticker %s has no output path", r.Ticker)
			continue
		}
		if _, err := os.Stat(r.Path); err != nil {
			t.Errorf("output file %s: %v", r.Path, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "BTCUSDT-1d.csv"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(data) == 0 {
		t.Error("BTCUSDT output is empty")
	}
}

func TestDumpAll_TickerFailureDoesNotStopOthers(t *testing.T) {
	// ETHUSDT has no dates entry, which is fine (empty run); make the
	// enumerator fail only for a dedicated ticker via a wrapper.
	enum := &failingEnum{
		inner: &fakeEnum{dates: map[string][]string{
			"BTCUSDT/1d": {"2024-07-01"},
		}},
		failFor: "BADUSDT",
	}
	d := newTestDumper(enum, &fakeFetcher{})

	results, err := d.DumpAll(context.Background(), []string{"BADUSDT", "BTCUSDT"}, "1d", AllOptions{})
	if err != nil {
		t.Fatalf("DumpAll() error: %v", err)
	}

	if results[0].Err == nil {
		t.Error("BADUSDT expected an error result")
	}
	if results[1].Err != nil {
		t.Errorf("BTCUSDT failed: %v", results[1].Err)
	}
	if results[1].Rows != 1 {
		t.Errorf("BTCUSDT rows = %d, want 1", results[1].Rows)
	}
}

type failingEnum struct {
	inner   *fakeEnum
	failFor string
}

func (f *failingEnum) Tickers(ctx context.Context) ([]string, error) {
	return f.inner.Tickers(ctx)
}

func (f *failingEnum) Dates(ctx context.Context, ticker, frequency string) ([]string, error) {
	if ticker == f.failFor {
		return nil, errors.New("enumeration failed")
	}
	return f.inner.Dates(ctx, ticker, frequency)
}

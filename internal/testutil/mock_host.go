// Package testutil provides a mock historical data host for tests.
package testutil

import (
	"archive/zip"
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
)

// MockHost mimics the historical data host: directory listing pages under
// "/?prefix=..." and daily zip archives under "/data/spot/daily/klines/...".
type MockHost struct {
	server *httptest.Server

	mu       sync.RWMutex
	archives map[string]archiveSpec            // "TICKER/FREQ/DATE" -> spec
	handlers map[string]http.HandlerFunc       // exact path overrides
	statuses map[string]int                    // forced status per archive key

	// Tracking
	RequestCount int
	ListingCount int
	ArchiveCount int
}

type archiveSpec struct {
	ticker    string
	frequency string
	date      string
	// members maps member filename to CSV content; normally one member.
	members map[string]string
}

// NewMockHost creates a mock host with no archives.
func NewMockHost() *MockHost {
	m := &MockHost{
		archives: make(map[string]archiveSpec),
		handlers: make(map[string]http.HandlerFunc),
		statuses: make(map[string]int),
	}

	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.RequestCount++
		m.mu.Unlock()

		m.mu.RLock()
		handler, exists := m.handlers[r.URL.Path]
		m.mu.RUnlock()
		if exists {
			handler(w, r)
			return
		}

		switch {
		case r.URL.Path == "/" && r.URL.Query().Has("prefix"):
			m.serveListing(w, r)
		case strings.HasSuffix(r.URL.Path, ".zip"):
			m.serveArchive(w, r)
		default:
			http.NotFound(w, r)
		}
	}))

	return m
}

// URL returns the mock server URL.
func (m *MockHost) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockHost) Close() {
	m.server.Close()
}

// AddArchive registers a daily archive with one CSV member.
func (m *MockHost) AddArchive(ticker, frequency, date, csv string) {
	stem := fmt.Sprintf("%s-%s-%s", ticker, frequency, date)
	m.AddArchiveMembers(ticker, frequency, date, map[string]string{stem + ".csv": csv})
}

// AddArchiveMembers registers an archive with explicit members, for testing
// the more-than-one-member edge case.
func (m *MockHost) AddArchiveMembers(ticker, frequency, date string, members map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archives[archiveKey(ticker, frequency, date)] = archiveSpec{
		ticker:    ticker,
		frequency: frequency,
		date:      date,
		members:   members,
	}
}

// FailArchive forces a status code for one archive's downloads.
func (m *MockHost) FailArchive(ticker, frequency, date string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[archiveKey(ticker, frequency, date)] = status
}

// SetHandler installs a custom handler for an exact request path.
func (m *MockHost) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockHost) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetListingCount returns the number of listing page requests served.
func (m *MockHost) GetListingCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ListingCount
}

func archiveKey(ticker, frequency, date string) string {
	return ticker + "/" + frequency + "/" + date
}

// serveListing renders a directory listing page for the requested prefix.
func (m *MockHost) serveListing(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.ListingCount++
	m.mu.Unlock()

	prefix := r.URL.Query().Get("prefix")

	m.mu.RLock()
	defer m.mu.RUnlock()

	var hrefs []string
	if prefix == "data/spot/daily/klines" {
		// Root listing: one row per ticker directory.
		seen := make(map[string]bool)
		for _, spec := range m.archives {
			if !seen[spec.ticker] {
				seen[spec.ticker] = true
				hrefs = append(hrefs, fmt.Sprintf("?prefix=data/spot/daily/klines/%s/", spec.ticker))
			}
		}
	} else {
		// Ticker/frequency listing: one row per archive file.
		trimmed := strings.Trim(strings.TrimPrefix(prefix, "data/spot/daily/klines/"), "/")
		parts := strings.SplitN(trimmed, "/", 2)
		if len(parts) == 2 {
			for _, spec := range m.archives {
				if spec.ticker == parts[0] && spec.frequency == parts[1] {
					hrefs = append(hrefs, fmt.Sprintf(
						"?prefix=data/spot/daily/klines/%s/%s/%s-%s-%s.zip",
						spec.ticker, spec.frequency, spec.ticker, spec.frequency, spec.date))
				}
			}
		}
	}
	sort.Strings(hrefs)

	var sb strings.Builder
	sb.WriteString("<html><body><table><tbody id=\"listing\">")
	for _, href := range hrefs {
		sb.WriteString(fmt.Sprintf("<tr><td><a href=\"%s\">%s</a></td></tr>", href, href))
	}
	sb.WriteString("</tbody></table></body></html>")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(sb.String()))
}

// serveArchive writes a zip archive for the requested path.
func (m *MockHost) serveArchive(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.ArchiveCount++
	m.mu.Unlock()

	// Path: /data/spot/daily/klines/TICKER/FREQ/TICKER-FREQ-DATE.zip
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if len(parts) != 7 {
		http.NotFound(w, r)
		return
	}
	ticker, frequency := parts[4], parts[5]
	stem := strings.TrimSuffix(parts[6], ".zip")
	date := strings.TrimPrefix(stem, ticker+"-"+frequency+"-")
	key := archiveKey(ticker, frequency, date)

	m.mu.RLock()
	status, forced := m.statuses[key]
	spec, exists := m.archives[key]
	m.mu.RUnlock()

	if forced {
		w.WriteHeader(status)
		return
	}
	if !exists {
		http.NotFound(w, r)
		return
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	names := make([]string, 0, len(spec.members))
	for name := range spec.members {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f, err := zw.Create(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		f.Write([]byte(spec.members[name]))
	}
	if err := zw.Close(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// CandleCSV builds a CSV payload with a header row and n candle rows.
// Rows are deterministic so tests can assert on exact content.
func CandleCSV(n int) string {
	var sb strings.Builder
	sb.WriteString("timestamp,open,close,high,low,volume,amount\n")
	for i := 0; i < n; i++ {
		sb.WriteString(fmt.Sprintf("%d,100,101,102,99,%d,%d\n", 1700000000+i*60, i+1, (i+1)*100))
	}
	return sb.String()
}

package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"

	appLog "confsched/internal/log"
)

// ErrSourceUnavailable marks a source that could not be read at all, neither
// from its origin nor from the local cache.
var ErrSourceUnavailable = errors.New("event source unavailable")

// Format names the payload encoding of a source.
type Format string

const (
	FormatCSV Format = "csv"
	FormatICS Format = "ics"
)

// Source is one configured event feed. Exactly one of URL or Path is used;
// Path wins when both are set.
type Source struct {
	ID     string
	Name   string
	URL    string
	Path   string
	Format Format
}

// Location returns a log-safe description of where the source lives.
func (s Source) Location() string {
	if s.Path != "" {
		return s.Path
	}
	return redactURL(s.URL)
}

// FetchResult contains the outcome of reading a single source.
type FetchResult struct {
	Source    Source
	Body      []byte
	FromCache bool // true if a cached body was reused
}

// cacheEntry holds HTTP cache metadata for a single URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher reads sources from disk or over HTTP. Remote bodies are cached on
// disk and revalidated with ETag / Last-Modified; the cache also serves as a
// fallback when the origin is down.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher creates a Fetcher caching under cacheDir.
func NewFetcher(cacheDir string) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/source-cache"
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		cacheDir: cacheDir,
	}
}

// WithClient replaces the HTTP client, mostly for tests.
func (f *Fetcher) WithClient(c *http.Client) *Fetcher {
	f.client = c
	return f
}

// FetchAll reads every source in order. Failed sources are logged and
// left out of the results; their errors are combined into one.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([]FetchResult, error) {
	results := make([]FetchResult, 0, len(sources))
	var errs error

	for _, src := range sources {
		res, err := f.FetchOne(ctx, src)
		if err != nil {
			errs = multierr.Append(errs, err)
			appLog.Error("source fetch failed", err, "id", src.ID, "location", src.Location())
			continue
		}
		results = append(results, res)
	}

	return results, errs
}

// FetchOne reads a single source. Any failure is wrapped with
// ErrSourceUnavailable.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (FetchResult, error) {
	if src.Path != "" {
		body, err := os.ReadFile(src.Path)
		if err != nil {
			return FetchResult{}, unavailable(src, err)
		}
		appLog.Debug("source read from disk", "id", src.ID, "path", src.Path, "bytes", len(body))
		return FetchResult{Source: src, Body: body}, nil
	}

	if src.URL == "" {
		return FetchResult{}, unavailable(src, errors.New("source has neither url nor path"))
	}

	res, err := f.fetchHTTP(ctx, src)
	if err != nil {
		return FetchResult{}, unavailable(src, err)
	}
	return res, nil
}

func unavailable(src Source, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, src.ID, err)
}

func (f *Fetcher) fetchHTTP(ctx context.Context, src Source) (FetchResult, error) {
	cachePath := f.cachePathForURL(src.URL)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return FetchResult{}, err
	}

	meta, _ := f.loadCacheMeta(cachePath)
	cachedBody, _ := f.loadCacheBody(cachePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, err
	}

	// Only revalidate when there is a body to fall back on.
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Info("source fetch start", "id", src.ID, "url", redactURL(src.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 {
			appLog.Error("source fetch network error, using cached body", err, "id", src.ID, "url", redactURL(src.URL))
			return FetchResult{Source: src, Body: cachedBody, FromCache: true}, nil
		}
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return FetchResult{}, readErr
		}

		newMeta := cacheEntry{
			URL:          src.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := f.saveCache(cachePath, newMeta, body); err != nil {
			appLog.Error("source cache save failed", err, "id", src.ID, "url", redactURL(src.URL))
		}

		appLog.Info("source fetch success", "id", src.ID, "url", redactURL(src.URL), "status", resp.StatusCode, "bytes", len(body))
		return FetchResult{Source: src, Body: body}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return FetchResult{}, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Info("source not modified; using cache", "id", src.ID, "url", redactURL(src.URL))
		return FetchResult{Source: src, Body: cachedBody, FromCache: true}, nil

	default:
		if len(cachedBody) > 0 {
			appLog.Error("source fetch non-OK, using cached body", errors.New(resp.Status), "id", src.ID, "url", redactURL(src.URL), "status", resp.StatusCode)
			return FetchResult{Source: src, Body: cachedBody, FromCache: true}, nil
		}
		return FetchResult{}, errors.New(resp.Status)
	}
}

func (f *Fetcher) cachePathForURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *Fetcher) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *Fetcher) loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body"))
}

func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Write body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL hides the path and query of a URL for logging, since feed URLs
// often embed access tokens.
//
//	https://example.com/path/to/private.csv?token=abcd
//	-> https://example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "source://...(redacted)"
	}

	j := i
	for j < len(u) && u[j] != '/' {
		j++
	}
	return u[:j] + redactedSuffix
}

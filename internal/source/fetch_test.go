package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchOneFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")
	require.NoError(t, os.WriteFile(path, []byte("Event Name,Date\n"), 0o600))

	f := NewFetcher(t.TempDir())
	res, err := f.FetchOne(context.Background(), Source{ID: "local", Path: path, Format: FormatCSV})
	require.NoError(t, err)
	assert.Equal(t, "Event Name,Date\n", string(res.Body))
	assert.False(t, res.FromCache)
}

func TestFetchOneMissingPath(t *testing.T) {
	f := NewFetcher(t.TempDir())
	_, err := f.FetchOne(context.Background(), Source{ID: "gone", Path: filepath.Join(t.TempDir(), "nope.csv")})
	assert.ErrorIs(t, err, ErrSourceUnavailable)

	_, err = f.FetchOne(context.Background(), Source{ID: "empty"})
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestFetchOneHTTPRevalidates(t *testing.T) {
	var hits, notModified int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			atomic.AddInt32(&notModified, 1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir()).WithClient(srv.Client())
	src := Source{ID: "remote", URL: srv.URL + "/events.csv?token=secret"}

	first, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, "payload", string(second.Body))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Equal(t, int32(1), atomic.LoadInt32(&notModified))
}

func TestFetchOneFallsBackToCache(t *testing.T) {
	fail := int32(0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.LoadInt32(&fail) == 1 {
			http.Error(w, "down", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("cached payload"))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	src := Source{ID: "remote", URL: srv.URL}

	_, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)

	atomic.StoreInt32(&fail, 1)
	res, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, "cached payload", string(res.Body))
}

func TestFetchOneHTTPErrorWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewFetcher(t.TempDir()).FetchOne(context.Background(), Source{ID: "remote", URL: srv.URL})
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestFetchAllCombinesErrors(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.csv")
	require.NoError(t, os.WriteFile(good, []byte("x"), 0o600))

	results, err := NewFetcher(t.TempDir()).FetchAll(context.Background(), []Source{
		{ID: "a", Path: filepath.Join(dir, "missing-a.csv")},
		{ID: "good", Path: good},
		{ID: "b", Path: filepath.Join(dir, "missing-b.csv")},
	})
	require.Len(t, results, 1)
	assert.Equal(t, "good", results[0].Source.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "missing-a.csv")
	assert.Contains(t, err.Error(), "missing-b.csv")
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.com/...(redacted)", redactURL("https://example.com/private.csv?token=abc"))
	assert.Equal(t, "source://...(redacted)", redactURL("not a url"))
}

package lmcache

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const arpaBody = "\\data\\\nngram 1=1\n\n\\1-grams:\n-1.0\ta\n\n\\end\\\n"

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestEnsure_DownloadsOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(arpaBody))
	}))
	defer srv.Close()

	f := &Fetcher{Dir: t.TempDir(), Client: srv.Client()}
	url := srv.URL + "/models/small.arpa"

	p1, err := f.Ensure(context.Background(), url)
	require.NoError(t, err)
	p2, err := f.Ensure(context.Background(), url)
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, "small.arpa", filepath.Base(p1)[9:])

	data, err := os.ReadFile(p1)
	require.NoError(t, err)
	assert.Equal(t, arpaBody, string(data))
}

func TestEnsure_Gunzips(t *testing.T) {
	payload := gzipped(t, arpaBody)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/gzip")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	f := &Fetcher{Dir: t.TempDir(), Client: srv.Client()}
	p, err := f.Ensure(context.Background(), srv.URL+"/4gram.arpa.gz")
	require.NoError(t, err)

	assert.Equal(t, ".arpa", filepath.Ext(p))
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, arpaBody, string(data))
}

func TestEnsure_RetriesTransientFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(arpaBody))
	}))
	defer srv.Close()

	f := &Fetcher{Dir: t.TempDir(), Client: srv.Client(), Attempts: 3, Backoff: time.Millisecond}
	_, err := f.Ensure(context.Background(), srv.URL+"/lm.arpa")
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
}

func TestEnsure_PermanentFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := &Fetcher{Dir: dir, Client: srv.Client(), Attempts: 5, Backoff: time.Millisecond}
	_, err := f.Ensure(context.Background(), srv.URL+"/missing.arpa")

	var se *StatusError
	require.True(t, errors.As(err, &se), "error %v should be a StatusError", err)
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, int32(1), hits.Load())

	// No partial file is left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".part")
	}
}

func TestEnsure_GivesUpAfterAttempts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := &Fetcher{Dir: t.TempDir(), Client: srv.Client(), Attempts: 2, Backoff: time.Millisecond}
	_, err := f.Ensure(context.Background(), srv.URL+"/lm.arpa")
	require.Error(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestEnsure_ConcurrentCallersShareDownload(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte(arpaBody))
	}))
	defer srv.Close()

	dir := t.TempDir()
	url := srv.URL + "/lm.arpa"

	var wg sync.WaitGroup
	paths := make([]string, 4)
	errs := make([]error, 4)
	for i := range paths {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f := &Fetcher{Dir: dir, Client: srv.Client()}
			paths[i], errs[i] = f.Ensure(context.Background(), url)
		}()
	}
	wg.Wait()

	for i := range paths {
		require.NoError(t, errs[i])
		assert.Equal(t, paths[0], paths[i])
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestEnsure_Canceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &Fetcher{Dir: t.TempDir(), Client: srv.Client(), Backoff: time.Hour}
	_, err := f.Ensure(ctx, srv.URL+"/lm.arpa")
	assert.Error(t, err)
}

func TestPath(t *testing.T) {
	f := &Fetcher{Dir: "/cache"}

	a, err := f.Path("https://example.com/a/lm.arpa.gz")
	require.NoError(t, err)
	b, err := f.Path("https://mirror.example.com/b/lm.arpa.gz")
	require.NoError(t, err)

	assert.Equal(t, "/cache", filepath.Dir(a))
	assert.NotEqual(t, a, b, "different URLs must not share a cache entry")
	assert.Equal(t, ".arpa", filepath.Ext(a))

	_, err = f.Path("ftp://example.com/lm.arpa")
	assert.Error(t, err)
}

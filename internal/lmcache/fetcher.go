// Package lmcache downloads language model files once and keeps them in a
// local cache directory shared by concurrent processes.
package lmcache

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

const (
	defaultAttempts = 3
	defaultBackoff  = 2 * time.Second
	lockRetryDelay  = 250 * time.Millisecond
)

// StatusError reports an unexpected HTTP response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("lmcache: GET %s: unexpected status %d", e.URL, e.Code)
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Fetcher retrieves model files into Dir. The zero value downloads into
// DefaultDir with http.DefaultClient.
type Fetcher struct {
	Dir      string
	Client   *http.Client
	Logger   *slog.Logger
	Attempts int           // total tries per download; default 3
	Backoff  time.Duration // wait before retry n is n*Backoff; default 2s
}

// DefaultDir returns the per-user cache location for models.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("lmcache: resolve cache dir: %w", err)
	}
	return filepath.Join(base, "ctcdecode", "lm"), nil
}

// Path returns where the file for rawURL is cached. Archives ending in .gz
// are stored decompressed without the suffix.
func (f *Fetcher) Path(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("lmcache: parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("lmcache: unsupported url scheme %q", u.Scheme)
	}
	dir := f.Dir
	if dir == "" {
		if dir, err = DefaultDir(); err != nil {
			return "", err
		}
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		name = "model.arpa"
	}
	name = strings.TrimSuffix(name, ".gz")
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(dir, hex.EncodeToString(sum[:4])+"-"+name), nil
}

// Ensure returns the local path of the model at rawURL, downloading it
// first when it is not cached. Concurrent callers, in this or other
// processes, wait for a single download.
func (f *Fetcher) Ensure(ctx context.Context, rawURL string) (string, error) {
	target, err := f.Path(rawURL)
	if err != nil {
		return "", err
	}
	if exists(target) {
		return target, nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("lmcache: create cache dir: %w", err)
	}

	lock := flock.New(target + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return "", fmt.Errorf("lmcache: acquire lock: %w", err)
	}
	if !locked {
		return "", fmt.Errorf("lmcache: lock %s not acquired", lock.Path())
	}
	defer lock.Unlock()

	// Another holder of the lock may have finished the download.
	if exists(target) {
		return target, nil
	}

	logger := f.logger().With("url", rawURL, "path", target)
	attempts := f.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	backoff := f.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}

	for attempt := 1; ; attempt++ {
		start := time.Now()
		err = f.download(ctx, rawURL, target)
		if err == nil {
			logger.Info("language model downloaded", "attempt", attempt, "duration", time.Since(start))
			return target, nil
		}
		if attempt >= attempts || !retryable(ctx, err) {
			return "", err
		}
		wait := time.Duration(attempt) * backoff
		logger.Warn("language model download failed, retrying", "attempt", attempt, "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (f *Fetcher) download(ctx context.Context, rawURL, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("lmcache: build request: %w", err)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("lmcache: GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: rawURL, Code: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if strings.HasSuffix(rawURL, ".gz") && !resp.Uncompressed {
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return fmt.Errorf("lmcache: open gzip stream: %w", err)
		}
		defer zr.Close()
		body = zr
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".*.part")
	if err != nil {
		return fmt.Errorf("lmcache: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return fmt.Errorf("lmcache: write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("lmcache: close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("lmcache: install %s: %w", target, err)
	}
	return nil
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}

func (f *Fetcher) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger.With("component", "lmcache")
	}
	return slog.Default().With("component", "lmcache")
}

func exists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

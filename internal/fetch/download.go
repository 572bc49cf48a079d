package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultTimeout = 5 * time.Minute
	DefaultRetries = 3
	// maxRedirects matches curl's default redirect cap for -L.
	maxRedirects = 10
)

// UserAgent is sent with every HTTP request. cmd/zinst stamps the version in.
var UserAgent = "zinst/dev"

// StatusError reports a non-200 HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d for %s", e.StatusCode, e.URL)
}

// Downloader fetches http(s) URLs, retrying transient failures with
// exponential backoff.
type Downloader struct {
	client    *http.Client
	userAgent string
	retries   int
	backoff   time.Duration // first retry delay, doubled per attempt
}

// NewDownloader creates a downloader with the given retry count and timeout.
func NewDownloader(retries int, timeout time.Duration) *Downloader {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if retries < 0 {
		retries = 0
	}
	return &Downloader{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		userAgent: UserAgent,
		retries:   retries,
		backoff:   time.Second,
	}
}

// DownloadToFile downloads url to destPath. destPath either holds the
// complete body or is left untouched.
func (d *Downloader) DownloadToFile(ctx context.Context, url, destPath string) error {
	var lastErr error

	for attempt := 0; attempt <= d.retries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if attempt > 0 {
			wait := d.backoff * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := d.downloadOnce(ctx, url, destPath)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !retryable(err) {
			break
		}
	}

	return fmt.Errorf("download failed after %d retries: %w", d.retries, lastErr)
}

// retryable reports whether another attempt could succeed. Client errors
// (4xx) other than 408 and 429 are final.
func retryable(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return true
	}
	switch {
	case se.StatusCode == http.StatusRequestTimeout, se.StatusCode == http.StatusTooManyRequests:
		return true
	case se.StatusCode >= 400 && se.StatusCode < 500:
		return false
	default:
		return true
	}
}

// downloadOnce performs a single attempt. The body is written to a hidden
// file next to destPath and renamed into place only when complete.
func (d *Downloader) downloadOnce(ctx context.Context, url, destPath string) (err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	part, err := os.CreateTemp(dir, "."+filepath.Base(destPath)+".part-*")
	if err != nil {
		return fmt.Errorf("create partial file: %w", err)
	}
	defer func() {
		if err != nil {
			part.Close()
			os.Remove(part.Name())
		}
	}()

	if _, err = io.Copy(part, resp.Body); err != nil {
		return fmt.Errorf("copy response body: %w", err)
	}
	if err = part.Close(); err != nil {
		return fmt.Errorf("close partial file: %w", err)
	}
	if err = os.Chmod(part.Name(), 0644); err != nil {
		return fmt.Errorf("chmod partial file: %w", err)
	}
	if err = os.Rename(part.Name(), destPath); err != nil {
		return fmt.Errorf("move download into place: %w", err)
	}
	return nil
}

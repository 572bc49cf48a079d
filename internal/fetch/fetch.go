// Package fetch obtains the install source: it downloads http(s) and ftp
// URLs into the cache directory or accepts an existing local file.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ZebulonRouseFrantzich/zinst/internal/execx"
	"github.com/ZebulonRouseFrantzich/zinst/internal/lifecycle"
)

// fallbackName is used when a URL has no usable path component.
const fallbackName = "download"

// ErrNoFetchTool is returned when neither curl nor wget is installed.
var ErrNoFetchTool = errors.New("neither curl nor wget is available for ftp downloads")

// Result describes a fetched source.
type Result struct {
	// Path is the local file holding the artifact bytes.
	Path string
	// Name is the original file name, used for extension matching.
	Name string
	// Downloaded is true when the file was fetched from a URL.
	Downloaded bool
}

// Fetcher resolves a user-supplied source to a local file.
type Fetcher struct {
	cacheDir   string
	downloader *Downloader
	runner     execx.Runner
	logger     lifecycle.Logger
}

// NewFetcher creates a fetcher that stores downloads under cacheDir.
func NewFetcher(cacheDir string, downloader *Downloader, runner execx.Runner, logger lifecycle.Logger) *Fetcher {
	return &Fetcher{
		cacheDir:   cacheDir,
		downloader: downloader,
		runner:     runner,
		logger:     lifecycle.OrNop(logger),
	}
}

// IsURL reports whether source names a remote location.
func IsURL(source string) bool {
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ftp":
		return u.Host != ""
	default:
		return false
	}
}

// Fetch returns a local file for source. Missing local files are
// FatalInput; failed downloads are FatalExecution.
func (f *Fetcher) Fetch(ctx context.Context, source string) (*Result, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, lifecycle.Input("fetch", errors.New("source must not be empty"))
	}

	u, err := url.Parse(source)
	if err == nil {
		switch scheme := strings.ToLower(u.Scheme); scheme {
		case "http", "https", "ftp":
			if !IsURL(source) {
				return nil, lifecycle.Input("fetch", fmt.Errorf("invalid URL %q: missing host", source))
			}
			if scheme == "ftp" {
				return f.fetchFTP(ctx, u)
			}
			return f.fetchHTTP(ctx, u)
		case "file":
			return f.fetchLocal(u.Path)
		}
	}

	return f.fetchLocal(source)
}

func (f *Fetcher) fetchLocal(p string) (*Result, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, lifecycle.Input("fetch", fmt.Errorf("resolve %s: %w", p, err))
	}

	fi, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, lifecycle.Input("fetch", fmt.Errorf("local file %s does not exist", abs))
		}
		return nil, lifecycle.Input("fetch", fmt.Errorf("stat %s: %w", abs, err))
	}
	if !fi.Mode().IsRegular() {
		return nil, lifecycle.Input("fetch", fmt.Errorf("%s is not a regular file", abs))
	}

	f.logger.Info("using local file", "path", abs)
	return &Result{Path: abs, Name: filepath.Base(abs)}, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, u *url.URL) (*Result, error) {
	name := fileNameFromURL(u)
	dest := filepath.Join(f.cacheDir, name)

	f.logger.Info("downloading", "url", u.Redacted(), "dest", dest)
	if err := f.downloader.DownloadToFile(ctx, u.String(), dest); err != nil {
		return nil, lifecycle.Execution("fetch", err)
	}

	return &Result{Path: dest, Name: name, Downloaded: true}, nil
}

func (f *Fetcher) fetchFTP(ctx context.Context, u *url.URL) (*Result, error) {
	name := fileNameFromURL(u)
	dest := filepath.Join(f.cacheDir, name)

	if err := os.MkdirAll(f.cacheDir, 0755); err != nil {
		return nil, lifecycle.Execution("fetch", fmt.Errorf("create cache dir: %w", err))
	}

	var cmd string
	var args []string
	switch {
	case f.has("curl"):
		cmd, args = "curl", []string{"-fsSL", "-o", dest, u.String()}
	case f.has("wget"):
		cmd, args = "wget", []string{"-q", "-O", dest, u.String()}
	default:
		return nil, lifecycle.Environment("fetch", ErrNoFetchTool)
	}

	f.logger.Info("downloading", "url", u.Redacted(), "dest", dest, "tool", cmd)
	if _, err := f.runner.Run(ctx, cmd, args...); err != nil {
		return nil, lifecycle.Execution("fetch", err)
	}

	return &Result{Path: dest, Name: name, Downloaded: true}, nil
}

func (f *Fetcher) has(tool string) bool {
	_, err := f.runner.LookPath(tool)
	return err == nil
}

// fileNameFromURL returns the last path segment of u, or fallbackName.
func fileNameFromURL(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return fallbackName
	}
	return name
}

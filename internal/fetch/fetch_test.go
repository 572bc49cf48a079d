package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZebulonRouseFrantzich/zinst/internal/execx"
	"github.com/ZebulonRouseFrantzich/zinst/internal/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(t *testing.T, runner execx.Runner) (*Fetcher, string) {
	t.Helper()
	cache := filepath.Join(t.TempDir(), "cache")
	return NewFetcher(cache, newTestDownloader(0), runner, nil), cache
}

func TestFetchLocalFile(t *testing.T) {
	f, _ := newTestFetcher(t, execx.NewFake())

	src := filepath.Join(t.TempDir(), "app.tar.gz")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0644))

	res, err := f.Fetch(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, &Result{Path: src, Name: "app.tar.gz"}, res)

	res, err = f.Fetch(context.Background(), "file://"+src)
	require.NoError(t, err)
	assert.Equal(t, src, res.Path)
}

func TestFetchLocalMissing(t *testing.T) {
	f, _ := newTestFetcher(t, execx.NewFake())

	_, err := f.Fetch(context.Background(), filepath.Join(t.TempDir(), "absent.deb"))
	require.Error(t, err)
	assert.Equal(t, lifecycle.ClassInput, lifecycle.ClassOf(err))
	assert.Contains(t, err.Error(), "does not exist")
}

func TestFetchLocalDirectory(t *testing.T) {
	f, _ := newTestFetcher(t, execx.NewFake())

	_, err := f.Fetch(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.Equal(t, lifecycle.ClassInput, lifecycle.ClassOf(err))
}

func TestFetchEmptySource(t *testing.T) {
	f, _ := newTestFetcher(t, execx.NewFake())

	_, err := f.Fetch(context.Background(), "  ")
	assert.Equal(t, lifecycle.ClassInput, lifecycle.ClassOf(err))
}

func TestFetchHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/releases/tool_1.0.zip" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("zip bytes"))
	}))
	defer server.Close()

	f, cache := newTestFetcher(t, execx.NewFake())

	res, err := f.Fetch(context.Background(), server.URL+"/releases/tool_1.0.zip")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cache, "tool_1.0.zip"), res.Path)
	assert.Equal(t, "tool_1.0.zip", res.Name)
	assert.True(t, res.Downloaded)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "zip bytes", string(data))

	_, err = f.Fetch(context.Background(), server.URL+"/missing.zip")
	require.Error(t, err)
	assert.Equal(t, lifecycle.ClassExecution, lifecycle.ClassOf(err))
}

func TestFetchFTPPrefersCurl(t *testing.T) {
	fake := execx.NewFake()
	f, cache := newTestFetcher(t, fake)

	res, err := f.Fetch(context.Background(), "ftp://mirror.example.org/pub/tool.tgz")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cache, "tool.tgz"), res.Path)
	assert.Equal(t, []string{
		"curl -fsSL -o " + filepath.Join(cache, "tool.tgz") + " ftp://mirror.example.org/pub/tool.tgz",
	}, fake.CommandLines())
}

func TestFetchFTPFallsBackToWget(t *testing.T) {
	fake := execx.NewFake()
	fake.Missing["curl"] = true
	f, cache := newTestFetcher(t, fake)

	_, err := f.Fetch(context.Background(), "ftp://mirror.example.org/pub/tool.tgz")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"wget -q -O " + filepath.Join(cache, "tool.tgz") + " ftp://mirror.example.org/pub/tool.tgz",
	}, fake.CommandLines())
}

func TestFetchFTPNoTool(t *testing.T) {
	fake := execx.NewFake()
	fake.Missing["curl"] = true
	fake.Missing["wget"] = true
	f, _ := newTestFetcher(t, fake)

	_, err := f.Fetch(context.Background(), "ftp://mirror.example.org/pub/tool.tgz")
	require.ErrorIs(t, err, ErrNoFetchTool)
	assert.Equal(t, lifecycle.ClassEnvironment, lifecycle.ClassOf(err))
}

func TestFetchFTPFailurePropagatesExitCode(t *testing.T) {
	fake := execx.NewFake()
	f, cache := newTestFetcher(t, fake)
	fake.On("curl -fsSL -o "+filepath.Join(cache, "tool.tgz")+" ftp://mirror.example.org/tool.tgz",
		execx.Response{Code: 78})

	_, err := f.Fetch(context.Background(), "ftp://mirror.example.org/tool.tgz")
	require.Error(t, err)
	assert.Equal(t, lifecycle.ClassExecution, lifecycle.ClassOf(err))
	assert.Equal(t, 78, lifecycle.ExitCode(err))
}

func TestFetchURLWithoutHost(t *testing.T) {
	fake := execx.NewFake()
	f, _ := newTestFetcher(t, fake)

	for _, source := range []string{"https:///nohost", "ftp:///pub/tool.tgz"} {
		_, err := f.Fetch(context.Background(), source)
		require.Error(t, err, source)
		assert.Equal(t, lifecycle.ClassInput, lifecycle.ClassOf(err), source)
	}
	assert.Empty(t, fake.Calls)
}

func TestIsURL(t *testing.T) {
	assert.True(t, IsURL("https://example.org/a.deb"))
	assert.True(t, IsURL("ftp://example.org/a.deb"))
	assert.False(t, IsURL("/tmp/a.deb"))
	assert.False(t, IsURL("file:///tmp/a.deb"))
	assert.False(t, IsURL("https:///nohost"))
}

func TestFileNameFromURL(t *testing.T) {
	tests := map[string]string{
		"https://example.org/dl/app.tar.gz?token=x": "app.tar.gz",
		"https://example.org/":                      fallbackName,
		"https://example.org":                       fallbackName,
	}
	for raw, want := range tests {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, want, fileNameFromURL(u), raw)
	}
}

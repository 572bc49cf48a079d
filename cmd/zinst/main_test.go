package main

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZebulonRouseFrantzich/zinst/internal/execx"
	"github.com/ZebulonRouseFrantzich/zinst/internal/lifecycle"
	"github.com/ZebulonRouseFrantzich/zinst/internal/platform"
	"github.com/ZebulonRouseFrantzich/zinst/internal/preflight"
	"github.com/ZebulonRouseFrantzich/zinst/internal/testutil"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type cliFixture struct {
	env    *testutil.Env
	fake   *execx.Fake
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	cli    *cliEnv
}

func newCLIFixture(t *testing.T, stdin string) *cliFixture {
	t.Helper()
	env := testutil.SetupTestEnv(t)
	require.NoError(t, os.WriteFile(env.ConfigPath, []byte("zinst = {}\n"), 0644))

	f := &cliFixture{
		env:    env,
		fake:   execx.NewFake(),
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
	f.cli = &cliEnv{
		stdin:  strings.NewReader(stdin),
		stdout: f.stdout,
		stderr: f.stderr,
		runner: f.fake,
		detector: &platform.StaticDetector{Info: &platform.Info{
			OS: "linux", Arch: "amd64", Distro: "debian", Family: platform.FamilyDebian, Systemd: true,
		}},
		checker: preflight.NewChecker(),
	}
	return f
}

func (f *cliFixture) run(args ...string) int {
	return execute(append(args, "--config", f.env.ConfigPath), f.cli)
}

func (f *cliFixture) log(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(f.env.LogPath)
	require.NoError(t, err)
	return string(data)
}

// writeTarGz creates dir/name holding the given files, keyed by path with
// their mode.
func writeTarGz(t *testing.T, dir, name string, files map[string]int64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	out, err := os.Create(path)
	require.NoError(t, err)

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)
	for fname, mode := range files {
		body := "#!/bin/sh\necho " + fname + "\n"
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: fname, Mode: mode, Size: int64(len(body))}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, out.Close())
	return path
}

func sha256File(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestInstallTarballEndToEnd(t *testing.T) {
	f := newCLIFixture(t, "")
	archive := writeTarGz(t, t.TempDir(), "mytool-1.0.tar.gz", map[string]int64{
		"mytool-1.0/bin/mytool": 0755,
	})

	code := f.run("install", archive, "--yes", "--name", "mytool", "--checksum", sha256File(t, archive))
	require.Equal(t, 0, code, "stderr: %s", f.stderr.String())

	exe := filepath.Join(f.env.InstallBase, "mytool", "mytool-1.0", "bin", "mytool")
	target, err := os.Readlink(filepath.Join(f.env.BinDir, "mytool"))
	require.NoError(t, err)
	assert.Equal(t, exe, target)

	log := f.log(t)
	assert.Contains(t, log, "[zinst]")
	assert.Contains(t, log, "checksum verified")
	assert.Contains(t, log, "run completed")
	assert.NoFileExists(t, f.env.FailMarker)
	assert.Contains(t, f.stdout.String(), "Installed mytool (tarball)")
}

func TestInstallTarballWithoutExecutable(t *testing.T) {
	f := newCLIFixture(t, "")
	archive := writeTarGz(t, t.TempDir(), "docs.tar.gz", map[string]int64{"README": 0644})

	code := f.run("install", archive, "--yes")
	require.Equal(t, 0, code, "stderr: %s", f.stderr.String())

	dest := filepath.Join(f.env.InstallBase, "docs")
	assert.FileExists(t, filepath.Join(dest, "README"))
	assert.Contains(t, f.stdout.String(), "no executable found; inspect "+dest+" manually")
	assert.Contains(t, f.stderr.String(), "WARN")
	assert.NoFileExists(t, filepath.Join(f.env.BinDir, "docs"))
	assert.NoFileExists(t, f.env.FailMarker)
}

func TestInstallRunOnceShowsToolOutput(t *testing.T) {
	f := newCLIFixture(t, "")
	archive := writeTarGz(t, t.TempDir(), "tool.tar.gz", map[string]int64{"tool": 0755})
	f.fake.On(filepath.Join(f.env.InstallBase, "tool", "tool"), execx.Response{Stdout: "hello from tool\n"})

	require.Equal(t, 0, f.run("install", archive, "--yes", "--run"))
	assert.Contains(t, f.stdout.String(), "stdout| hello from tool")
	assert.Contains(t, f.log(t), "stdout| hello from tool")
}

func TestInstallSaveAnswersReplays(t *testing.T) {
	f := newCLIFixture(t, "")
	archive := writeTarGz(t, t.TempDir(), "tool.tar.gz", map[string]int64{"tool": 0755})
	saved := filepath.Join(t.TempDir(), "answers.yaml")

	require.Equal(t, 0, f.run("install", archive, "--yes", "--name", "saved", "--save-answers", saved))
	data, err := os.ReadFile(saved)
	require.NoError(t, err)
	assert.Contains(t, string(data), "tool_name: saved")

	require.NoError(t, os.RemoveAll(filepath.Join(f.env.InstallBase, "saved")))
	require.Equal(t, 0, f.run("install", "--answers", saved))
	assert.FileExists(t, filepath.Join(f.env.InstallBase, "saved", "tool"))
}

func TestInstallURLWithoutHost(t *testing.T) {
	f := newCLIFixture(t, "")
	assert.Equal(t, 1, f.run("install", "https:///nohost", "--yes", "--name", "x"))
	assert.Contains(t, f.log(t), "class=input")
}

func TestInstallChecksumMismatchLeavesMarker(t *testing.T) {
	f := newCLIFixture(t, "")
	archive := writeTarGz(t, t.TempDir(), "tool.tar.gz", map[string]int64{"tool": 0755})

	code := f.run("install", archive, "--yes", "--checksum", strings.Repeat("0", 64))
	assert.Equal(t, 1, code)

	info, err := lifecycle.ReadMarker(f.env.FailMarker)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, 1, info.Code)

	log := f.log(t)
	assert.Contains(t, log, " ERROR ")
	assert.Contains(t, log, "class=input")
	assert.NoDirExists(t, filepath.Join(f.env.InstallBase, "tool"), "nothing is installed after a mismatch")
}

func TestInstallFailureThenSuccessClearsMarker(t *testing.T) {
	f := newCLIFixture(t, "")
	missing := filepath.Join(t.TempDir(), "missing.tar.gz")
	assert.Equal(t, 1, f.run("install", missing, "--yes"))
	assert.FileExists(t, f.env.FailMarker)

	archive := writeTarGz(t, t.TempDir(), "tool.tar.gz", map[string]int64{"tool": 0755})
	f.cli.stdin = strings.NewReader("")
	assert.Equal(t, 0, f.run("install", archive, "--yes"))
	assert.NoFileExists(t, f.env.FailMarker)
}

func TestInstallInteractive(t *testing.T) {
	archive := writeTarGz(t, t.TempDir(), "hello_2.0_linux.tar.gz", map[string]int64{"hello": 0755})
	input := strings.Join([]string{
		archive, // source
		"",      // tool name: derived "hello"
		"",      // install base: configured default
		"",      // no checksum
		"",      // no signature
		"y",     // run once
		"n",     // no service
	}, "\n") + "\n"
	f := newCLIFixture(t, input)

	code := f.run("install")
	require.Equal(t, 0, code, "stderr: %s", f.stderr.String())

	exe := filepath.Join(f.env.InstallBase, "hello", "hello")
	assert.FileExists(t, exe)
	assert.Contains(t, f.fake.CommandLines(), exe, "tool runs once")
	assert.Contains(t, f.log(t), "tool run completed")
}

func TestInstallRunOnceFailurePropagatesExitCode(t *testing.T) {
	f := newCLIFixture(t, "")
	archive := writeTarGz(t, t.TempDir(), "tool.tar.gz", map[string]int64{"tool": 0755})
	f.fake.On(filepath.Join(f.env.InstallBase, "tool", "tool"), execx.Response{Code: 3})

	code := f.run("install", archive, "--yes", "--run")
	assert.Equal(t, 3, code)

	info, err := lifecycle.ReadMarker(f.env.FailMarker)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, 3, info.Code)
	assert.Contains(t, f.log(t), "class=execution")
}

func TestInstallFromAnswersFileWithService(t *testing.T) {
	f := newCLIFixture(t, "")
	archive := writeTarGz(t, t.TempDir(), "daemon.tar.gz", map[string]int64{"bin/daemon": 0755})

	answers := filepath.Join(t.TempDir(), "answers.yaml")
	require.NoError(t, os.WriteFile(answers, []byte(
		"source: "+archive+"\n"+
			"tool_name: daemon\n"+
			"install_base: "+f.env.InstallBase+"\n"+
			"service: true\n"+
			"service_description: Test daemon\n"), 0644))

	code := f.run("install", "--answers", answers)
	require.Equal(t, 0, code, "stderr: %s", f.stderr.String())

	unit, err := os.ReadFile(filepath.Join(f.env.UnitDir, "daemon.service"))
	require.NoError(t, err)
	assert.Contains(t, string(unit), "Description=Test daemon")
	assert.Contains(t, string(unit), "ExecStart="+filepath.Join(f.env.InstallBase, "daemon", "bin", "daemon"))
	assert.Equal(t, []string{
		"systemctl daemon-reload",
		"systemctl enable --now daemon.service",
	}, f.fake.CommandLines())
}

func TestInstallFlagsOverrideAnswersFile(t *testing.T) {
	f := newCLIFixture(t, "")
	archive := writeTarGz(t, t.TempDir(), "tool.tar.gz", map[string]int64{"tool": 0755})

	answers := filepath.Join(t.TempDir(), "answers.yaml")
	require.NoError(t, os.WriteFile(answers, []byte("source: "+archive+"\ntool_name: fromfile\n"), 0644))

	code := f.run("install", "--answers", answers, "--name", "fromflag")
	require.Equal(t, 0, code, "stderr: %s", f.stderr.String())
	assert.FileExists(t, filepath.Join(f.env.InstallBase, "fromflag", "tool"))
}

func TestInstallInvalidAnswersFile(t *testing.T) {
	f := newCLIFixture(t, "")
	answers := filepath.Join(t.TempDir(), "answers.yaml")
	require.NoError(t, os.WriteFile(answers, []byte("source: /tmp/x\ncolour: blue\n"), 0644))

	assert.Equal(t, 1, f.run("install", "--answers", answers))
	assert.FileExists(t, f.env.FailMarker)
}

func TestInstallWithoutSource(t *testing.T) {
	f := newCLIFixture(t, "")
	assert.Equal(t, 1, f.run("install", "--yes"))
	assert.Contains(t, f.log(t), "no source given")
}

func TestInstallRelativeInstallBase(t *testing.T) {
	f := newCLIFixture(t, "")
	archive := writeTarGz(t, t.TempDir(), "tool.tar.gz", map[string]int64{"tool": 0755})
	t.Setenv("ZINST_INSTALL_BASE", "relative/opt")

	assert.Equal(t, 1, f.run("install", archive, "--yes"))
}

func TestInstallBadConfig(t *testing.T) {
	f := newCLIFixture(t, "")
	require.NoError(t, os.WriteFile(f.env.ConfigPath, []byte("zinst = {"), 0644))

	assert.Equal(t, 1, f.run("install", "/tmp/whatever", "--yes"))
	assert.Contains(t, f.stderr.String(), "Error:")
	assert.NoFileExists(t, f.env.LogPath, "configuration errors happen before the log is opened")
}

func TestStatus(t *testing.T) {
	f := newCLIFixture(t, "")
	assert.Equal(t, 0, f.run("status"))
	assert.Contains(t, f.stdout.String(), "ok: no fail marker")

	require.NoError(t, lifecycle.WriteMarker(f.env.FailMarker, 100, "run-1", testTime))
	f.stdout.Reset()
	assert.Equal(t, 1, f.run("status"))
	out := f.stdout.String()
	assert.Contains(t, out, "code: 100")
	assert.Contains(t, out, "run:  run-1")
}

func TestClassify(t *testing.T) {
	f := newCLIFixture(t, "")
	archive := writeTarGz(t, t.TempDir(), "tool.tgz", map[string]int64{"tool": 0755})

	require.Equal(t, 0, f.run("classify", archive))
	assert.Equal(t, "kind: tarball\nrule: ext:.tar.gz\nmime: -\n", f.stdout.String())
}

func TestClassifyMIMEFallback(t *testing.T) {
	f := newCLIFixture(t, "")
	blob := filepath.Join(t.TempDir(), "download")
	require.NoError(t, os.WriteFile(blob, []byte("PK"), 0644))
	f.fake.On("file --brief --mime-type "+blob, execx.Response{Stdout: "application/zip\n"})

	require.Equal(t, 0, f.run("classify", blob))
	assert.Equal(t, "kind: zip\nrule: mime:zip\nmime: application/zip\n", f.stdout.String())
}

func TestClassifyMissingFile(t *testing.T) {
	f := newCLIFixture(t, "")
	assert.Equal(t, 1, f.run("classify", filepath.Join(t.TempDir(), "nope")))
	assert.Contains(t, f.stderr.String(), "Error:")
}

func TestConfigLayering(t *testing.T) {
	f := newCLIFixture(t, "")
	require.NoError(t, os.WriteFile(f.env.ConfigPath, []byte(`
zinst = {
  log_prefix = "[lua]",
  download = { retries = 5 },
}
`), 0644))
	t.Setenv("ZINST_DOWNLOAD_TIMEOUT_SECONDS", "42")

	require.Equal(t, 0, f.run("config", "--retries", "9"))
	out := f.stdout.String()
	assert.Contains(t, out, `log_prefix = "[lua]"`)
	assert.Contains(t, out, "retries = 9", "flags override the config file")
	assert.Contains(t, out, "timeout_seconds = 42", "environment overrides defaults")
	assert.Contains(t, out, `bin_dir = "`+f.env.BinDir+`"`, "environment overrides defaults")
}

func TestVersion(t *testing.T) {
	f := newCLIFixture(t, "")
	require.Equal(t, 0, f.run("--version"))
	assert.Equal(t, "zinst "+Version+"\n", f.stdout.String())
}

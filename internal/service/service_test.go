package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZebulonRouseFrantzich/zinst/internal/execx"
	"github.com/ZebulonRouseFrantzich/zinst/internal/lifecycle"
	"github.com/ZebulonRouseFrantzich/zinst/internal/platform"
	"github.com/ZebulonRouseFrantzich/zinst/internal/testutil"
)

func TestUnitRender(t *testing.T) {
	u := Unit{Name: "app", Description: "App server", ExecStart: "/opt/app/bin/app"}

	content, err := u.Render()
	require.NoError(t, err)

	for _, line := range []string{
		"Description=App server",
		"After=network.target",
		"ExecStart=/opt/app/bin/app",
		"Restart=on-failure",
		"User=root",
		"WantedBy=multi-user.target",
	} {
		assert.Contains(t, content, line+"\n")
	}
	assert.True(t, strings.HasPrefix(content, "[Unit]\n"))
	assert.Contains(t, content, "\n[Service]\n")
	assert.Contains(t, content, "\n[Install]\n")
}

func TestUnitRenderDefaultDescription(t *testing.T) {
	content, err := Unit{Name: "app", ExecStart: "/usr/local/bin/app"}.Render()
	require.NoError(t, err)
	assert.Contains(t, content, "Description=app (installed by zinst)\n")
}

func TestUnitValidate(t *testing.T) {
	tests := []struct {
		name string
		unit Unit
	}{
		{"empty name", Unit{ExecStart: "/bin/true"}},
		{"slash in name", Unit{Name: "a/b", ExecStart: "/bin/true"}},
		{"empty exec", Unit{Name: "a"}},
		{"newline injection", Unit{Name: "a", ExecStart: "/bin/true\nUser=nobody"}},
		{"description injection", Unit{Name: "a", ExecStart: "/bin/true", Description: "x\n[Service]"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.unit.Validate())
		})
	}
	assert.ErrorIs(t, Unit{Name: "a"}.Validate(), ErrEmptyExecStart)
}

func TestInstallUnit(t *testing.T) {
	unitDir := filepath.Join(t.TempDir(), "systemd", "system")
	fake := execx.NewFake()
	a := NewActions(fake, unitDir, &platform.Info{OS: "linux", Systemd: true}, nil)

	path, err := a.InstallUnit(context.Background(), Unit{Name: "app", ExecStart: "/usr/local/bin/app"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(unitDir, "app.service"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ExecStart=/usr/local/bin/app\n")

	assert.Equal(t, []string{
		"systemctl daemon-reload",
		"systemctl enable --now app.service",
	}, fake.CommandLines())
}

func TestInstallUnitSkipsWithoutExecStart(t *testing.T) {
	unitDir := t.TempDir()
	fake := execx.NewFake()
	logger := &testutil.RecordingLogger{}
	a := NewActions(fake, unitDir, nil, logger)

	path, err := a.InstallUnit(context.Background(), Unit{Name: "app"})
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Empty(t, fake.Calls)
	assert.Len(t, logger.Warnings(), 1)

	entries, err := os.ReadDir(unitDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestInstallUnitSystemctlFailure(t *testing.T) {
	fake := execx.NewFake()
	fake.On("systemctl enable --now app.service", execx.Response{Code: 5})
	a := NewActions(fake, t.TempDir(), nil, nil)

	path, err := a.InstallUnit(context.Background(), Unit{Name: "app", ExecStart: "/bin/app"})
	require.Error(t, err)
	assert.FileExists(t, path, "unit file stays in place, no rollback")
	assert.Equal(t, lifecycle.ClassExecution, lifecycle.ClassOf(err))
	assert.Equal(t, 5, lifecycle.ExitCode(err))
}

func TestInstallUnitWarnsWithoutSystemd(t *testing.T) {
	logger := &testutil.RecordingLogger{}
	a := NewActions(execx.NewFake(), t.TempDir(), &platform.Info{OS: "linux"}, logger)

	_, err := a.InstallUnit(context.Background(), Unit{Name: "app", ExecStart: "/bin/app"})
	require.NoError(t, err)
	require.Len(t, logger.Warnings(), 1)
	assert.Contains(t, logger.Warnings()[0], "systemd")
}

func TestRunOnce(t *testing.T) {
	fake := execx.NewFake()
	a := NewActions(fake, t.TempDir(), nil, nil)

	require.NoError(t, a.RunOnce(context.Background(), "/usr/local/bin/app"))
	assert.Equal(t, []string{"/usr/local/bin/app"}, fake.CommandLines())
}

func TestRunOnceEchoesToolOutput(t *testing.T) {
	fake := execx.NewFake()
	fake.On("/opt/app/bin/app", execx.Response{Stdout: "hello\nworld\n", Stderr: "note\n"})
	logger := &testutil.RecordingLogger{}
	a := NewActions(fake, t.TempDir(), nil, logger)

	require.NoError(t, a.RunOnce(context.Background(), "/opt/app/bin/app"))
	infos := logger.Messages("INFO")
	assert.Contains(t, infos, "stdout| hello")
	assert.Contains(t, infos, "stdout| world")
	assert.Contains(t, infos, "stderr| note")
}

func TestRunOnceEchoesOutputOnFailure(t *testing.T) {
	fake := execx.NewFake()
	fake.On("/opt/app/bin/app", execx.Response{Stderr: "boom\n", Code: 2})
	logger := &testutil.RecordingLogger{}
	a := NewActions(fake, t.TempDir(), nil, logger)

	require.Error(t, a.RunOnce(context.Background(), "/opt/app/bin/app"))
	assert.Contains(t, logger.Messages("INFO"), "stderr| boom")
}

func TestRunOnceSkipsWithoutExecutable(t *testing.T) {
	fake := execx.NewFake()
	logger := &testutil.RecordingLogger{}
	a := NewActions(fake, t.TempDir(), nil, logger)

	require.NoError(t, a.RunOnce(context.Background(), ""))
	assert.Empty(t, fake.Calls)
	assert.Len(t, logger.Warnings(), 1)
}

func TestRunOncePropagatesExitCode(t *testing.T) {
	fake := execx.NewFake()
	fake.On("/opt/app/bin/app", execx.Response{Code: 3})
	a := NewActions(fake, t.TempDir(), nil, nil)

	err := a.RunOnce(context.Background(), "/opt/app/bin/app")
	require.Error(t, err)
	assert.Equal(t, lifecycle.ClassExecution, lifecycle.ClassOf(err))
	assert.Equal(t, 3, lifecycle.ExitCode(err))
}

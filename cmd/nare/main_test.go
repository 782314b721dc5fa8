package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nare/internal/config"
	"nare/internal/permission"
	"nare/internal/provider"
	"nare/internal/storage"
)

// isolate points HOME at a temp dir and clears every override.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{"NARE_CONFIG", "TELEGRAM_BOT_TOKEN", "DEEPSEEK_API_KEY", "NARE_PROVIDER", "NARE_LOG_LEVEL", "NARE_MAX_ROUNDS", "NARE_HOME"} {
		t.Setenv(k, "")
	}
	return filepath.Join(home, ".config", "nare")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestClassifyCommand(t *testing.T) {
	isolate(t)
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"classify", "df", "-h"}, "safe"},
		{[]string{"classify", "pacman -S htop"}, "requires_permission(install_packages)"},
		{[]string{"classify", "rm -rf /"}, "blocked("},
		{[]string{"classify", "--run", "pacman -S htop"}, "requires_confirmation(pacman)"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestPermissionsSetAndShow(t *testing.T) {
	dir := isolate(t)

	out, err := execute(t, "permissions", "set", "install_packages=true", "MANAGE_SERVICES=1")
	require.NoError(t, err)
	assert.Regexp(t, `install_packages\s+on`, out)

	set := permission.NewStore(filepath.Join(dir, "permissions.json")).Load()
	assert.Equal(t, permission.Set{InstallPackages: true, ManageServices: true}, set)

	out, err = execute(t, "permissions", "set", "install_packages=false")
	require.NoError(t, err)
	assert.Regexp(t, `install_packages\s+off`, out)
	assert.Regexp(t, `manage_services\s+on`, out, "other categories are kept")

	out, err = execute(t, "permissions", "show")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), len(permission.Categories()))
}

func TestPermissionsSetErrors(t *testing.T) {
	dir := isolate(t)
	for _, arg := range []string{"install_packages", "root=true", "install_packages=maybe"} {
		_, err := execute(t, "permissions", "set", arg)
		assert.Error(t, err, arg)
	}
	_, err := os.Stat(filepath.Join(dir, "permissions.json"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "failed assignments write nothing")
}

func TestAuditCommand(t *testing.T) {
	dir := isolate(t)

	out, err := execute(t, "audit")
	require.NoError(t, err)
	assert.Contains(t, out, "No audit entries.")

	db, err := storage.NewSQLiteStore(filepath.Join(dir, "nare.db"))
	require.NoError(t, err)
	require.NoError(t, db.Record(context.Background(), storage.AuditEntry{
		ChatID: "42", Source: storage.SourceRun, Command: "uptime", Verdict: "safe", Executed: true,
	}))
	require.NoError(t, db.Record(context.Background(), storage.AuditEntry{
		ChatID: "42", Source: storage.SourceDirective, Command: "rm -rf /", Verdict: "blocked(wipe root)",
	}))
	require.NoError(t, db.Close())

	out, err = execute(t, "audit", "--limit", "1")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "COMMAND")
	assert.Contains(t, lines[1], "rm -rf /")
}

func TestInitCommand(t *testing.T) {
	dir := isolate(t)
	out, err := execute(t, "init")
	require.NoError(t, err)
	path := filepath.Join(dir, "config.json")
	assert.Contains(t, out, path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Storage.BaseDir)
}

func TestRunRequiresToken(t *testing.T) {
	isolate(t)
	_, err := execute(t, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TELEGRAM_BOT_TOKEN")
}

func TestBuildEngine(t *testing.T) {
	dir := isolate(t)
	cfg := config.Default()
	cfg.Storage.BaseDir = dir
	cfg.Provider.APIKey = "sk-test"
	cfg.Storage.PersistSessions = true

	eng, err := buildEngine(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	assert.Equal(t, "deepseek", eng.orch.ProviderName())
	require.NotNil(t, eng.db)
	_, persisted := eng.sessions.(*storage.SessionStore)
	assert.True(t, persisted)
	assert.FileExists(t, filepath.Join(dir, "nare.db"))
}

func TestBuildEngineWithoutStorage(t *testing.T) {
	dir := isolate(t)
	cfg := config.Default()
	cfg.Storage.BaseDir = dir
	cfg.Storage.Audit = false
	cfg.Provider.APIKey = "sk-test"

	eng, err := buildEngine(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, eng.db)
	assert.NoError(t, eng.Close())
	assert.NoFileExists(t, filepath.Join(dir, "nare.db"))
}

func TestBuildEngineNoBackend(t *testing.T) {
	dir := isolate(t)
	cfg := config.Default()
	cfg.Storage.BaseDir = dir
	cfg.Provider.ClaudeBin = filepath.Join(dir, "missing-claude")

	_, err := buildEngine(cfg, zap.NewNop())
	assert.ErrorIs(t, err, provider.ErrNoBackend)
}

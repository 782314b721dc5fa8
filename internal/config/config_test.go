package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// isolate points HOME at a temp dir and clears every override variable.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{"NARE_CONFIG", "TELEGRAM_BOT_TOKEN", "DEEPSEEK_API_KEY", "NARE_PROVIDER", "NARE_LOG_LEVEL", "NARE_MAX_ROUNDS", "NARE_HOME"} {
		t.Setenv(k, "")
	}
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Safety.MaxRounds != 3 || cfg.Safety.HistoryLimit != 20 || cfg.Safety.ConfirmTimeoutSec != 60 {
		t.Fatalf("safety defaults = %+v", cfg.Safety)
	}
	if cfg.Safety.CommandTimeoutMS != 60000 || cfg.Provider.TimeoutMS != 120000 {
		t.Fatalf("timeouts = %d/%d", cfg.Safety.CommandTimeoutMS, cfg.Provider.TimeoutMS)
	}
	if cfg.Storage.BaseDir != filepath.Join(home, ".config", "nare") {
		t.Fatalf("base dir = %q", cfg.Storage.BaseDir)
	}
	if cfg.PermissionsPath() != filepath.Join(home, ".config", "nare", "permissions.json") {
		t.Fatalf("permissions path = %q", cfg.PermissionsPath())
	}
	if !cfg.Storage.Audit || cfg.Storage.PersistSessions {
		t.Fatalf("storage flags = %+v", cfg.Storage)
	}
	if err := cfg.ValidateTelegram(); err == nil {
		t.Fatalf("missing token validated")
	}
}

func TestLoadJSONCFromDefaultDir(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, ".config", "nare")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	data := `{
  // bot
  "telegram": {"bot_token": "123:abc", "allowed_chat_ids": [42, "-100200", " 42 "]},
  "provider": {"kind": "DeepSeek", "model": "deepseek-reasoner"},
  "storage": {"audit": false}
}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.BotToken != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.BotToken)
	}
	if len(cfg.Telegram.AllowedChatIDs) != 2 || cfg.Telegram.AllowedChatIDs[0] != "42" || cfg.Telegram.AllowedChatIDs[1] != "-100200" {
		t.Fatalf("allowed ids = %#v", cfg.Telegram.AllowedChatIDs)
	}
	if cfg.Provider.Kind != "deepseek" || cfg.Provider.Model != "deepseek-reasoner" {
		t.Fatalf("provider = %+v", cfg.Provider)
	}
	if cfg.Storage.Audit {
		t.Fatalf("storage.audit expected false")
	}
	if cfg.Provider.BaseURL != DefaultDeepSeekBaseURL {
		t.Fatalf("base url = %q", cfg.Provider.BaseURL)
	}
}

func TestLoadYAML(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nare.yaml")
	data := `
telegram:
  bot_token: "999:zzz"
  allowed_chat_ids: [7, 8]
safety:
  max_rounds: 2
log:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.BotToken != "999:zzz" || len(cfg.Telegram.AllowedChatIDs) != 2 {
		t.Fatalf("telegram = %+v", cfg.Telegram)
	}
	if cfg.Safety.MaxRounds != 2 || cfg.Safety.HistoryLimit != 20 {
		t.Fatalf("safety = %+v", cfg.Safety)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("log = %+v", cfg.Log)
	}
}

func TestEnvOverride(t *testing.T) {
	isolate(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("DEEPSEEK_API_KEY", "sk-env")
	t.Setenv("NARE_PROVIDER", "claude")
	t.Setenv("NARE_LOG_LEVEL", "WARN")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.BotToken != "env-token" || cfg.Provider.APIKey != "sk-env" {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.Provider.Kind != "claude" || cfg.Log.Level != "warn" {
		t.Fatalf("env normalization: kind=%q level=%q", cfg.Provider.Kind, cfg.Log.Level)
	}
}

func TestLoadErrors(t *testing.T) {
	isolate(t)

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("explicit missing file accepted")
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	_ = os.WriteFile(bad, []byte(`{"provider": {"kind": "gpt"}}`), 0o600)
	if _, err := Load(bad); err == nil || !strings.Contains(err.Error(), "provider.kind") {
		t.Fatalf("invalid kind error = %v", err)
	}

	t.Setenv("NARE_MAX_ROUNDS", "zero")
	if _, err := Load(""); err == nil {
		t.Fatalf("invalid NARE_MAX_ROUNDS accepted")
	}
}

func TestInitScaffold(t *testing.T) {
	isolate(t)
	dir := filepath.Join(t.TempDir(), "nare")
	path, err := InitScaffold(dir)
	if err != nil {
		t.Fatalf("InitScaffold: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load scaffold: %v", err)
	}
	if cfg.Storage.BaseDir != dir {
		t.Fatalf("base dir = %q, want %q", cfg.Storage.BaseDir, dir)
	}

	// existing file is left alone
	if err := os.WriteFile(path, []byte(`{"log":{"level":"error"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := InitScaffold(dir); err != nil {
		t.Fatalf("InitScaffold again: %v", err)
	}
	cfg2, _ := Load(path)
	if cfg2.Log.Level != "error" {
		t.Fatalf("scaffold overwrote existing config")
	}
}

func TestStripJSONComments(t *testing.T) {
	in := `{"a": "http://x//y", /* c */ "b": 1 // tail
}`
	got := string(stripJSONComments([]byte(in)))
	if !strings.Contains(got, `"http://x//y"`) || strings.Contains(got, "tail") || strings.Contains(got, "/*") {
		t.Fatalf("stripJSONComments = %q", got)
	}
}

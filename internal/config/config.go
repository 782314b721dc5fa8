package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelegramConfig struct {
	BotToken       string `json:"bot_token" yaml:"bot_token"`
	APIBase        string `json:"api_base" yaml:"api_base"`
	AllowedChatIDs IDList `json:"allowed_chat_ids" yaml:"allowed_chat_ids"`
	PollTimeoutSec int    `json:"poll_timeout_sec" yaml:"poll_timeout_sec"`
}

type ProviderConfig struct {
	Kind              string `json:"kind" yaml:"kind"`
	APIKey            string `json:"api_key" yaml:"api_key"`
	BaseURL           string `json:"base_url" yaml:"base_url"`
	Model             string `json:"model" yaml:"model"`
	ClaudeBin         string `json:"claude_bin" yaml:"claude_bin"`
	TimeoutMS         int    `json:"timeout_ms" yaml:"timeout_ms"`
	ContextTokenLimit int    `json:"context_token_limit" yaml:"context_token_limit"`
}

type SafetyConfig struct {
	CommandTimeoutMS  int `json:"command_timeout_ms" yaml:"command_timeout_ms"`
	OutputLimitBytes  int `json:"output_limit_bytes" yaml:"output_limit_bytes"`
	MaxRounds         int `json:"max_rounds" yaml:"max_rounds"`
	ConfirmTimeoutSec int `json:"confirm_timeout_sec" yaml:"confirm_timeout_sec"`
	HistoryLimit      int `json:"history_limit" yaml:"history_limit"`
}

type StorageConfig struct {
	BaseDir         string `json:"base_dir" yaml:"base_dir"`
	PersistSessions bool   `json:"persist_sessions" yaml:"persist_sessions"`
	Audit           bool   `json:"audit" yaml:"audit"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

type Config struct {
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`
	Provider ProviderConfig `json:"provider" yaml:"provider"`
	Safety   SafetyConfig   `json:"safety" yaml:"safety"`
	Storage  StorageConfig  `json:"storage" yaml:"storage"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

type fileStorageConfig struct {
	BaseDir         string `json:"base_dir" yaml:"base_dir"`
	PersistSessions *bool  `json:"persist_sessions" yaml:"persist_sessions"`
	Audit           *bool  `json:"audit" yaml:"audit"`
}

type fileConfig struct {
	Telegram *TelegramConfig    `json:"telegram" yaml:"telegram"`
	Provider *ProviderConfig    `json:"provider" yaml:"provider"`
	Safety   *SafetyConfig      `json:"safety" yaml:"safety"`
	Storage  *fileStorageConfig `json:"storage" yaml:"storage"`
	Log      *LogConfig         `json:"log" yaml:"log"`
}

// IDList is a list of chat ids that accepts JSON numbers as well as strings.
type IDList []string

func (l *IDList) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*l = nil
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("chat id list: %w", err)
	}
	out := make(IDList, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var n json.Number
		if err := json.Unmarshal(item, &n); err != nil {
			return fmt.Errorf("chat id %s: want string or number", string(item))
		}
		out = append(out, n.String())
	}
	*l = out
	return nil
}

func Default() Config {
	return Config{
		Telegram: TelegramConfig{
			APIBase:        DefaultTelegramAPIBase,
			PollTimeoutSec: DefaultPollTimeoutSec,
		},
		Provider: ProviderConfig{
			BaseURL:           DefaultDeepSeekBaseURL,
			Model:             DefaultDeepSeekModel,
			ClaudeBin:         DefaultClaudeBin,
			TimeoutMS:         DefaultProviderTimeoutMS,
			ContextTokenLimit: DefaultContextTokenLimit,
		},
		Safety: SafetyConfig{
			CommandTimeoutMS:  DefaultCommandTimeoutMS,
			OutputLimitBytes:  DefaultOutputLimitBytes,
			MaxRounds:         DefaultMaxRounds,
			ConfirmTimeoutSec: DefaultConfirmTimeoutSec,
			HistoryLimit:      DefaultHistoryLimit,
		},
		Storage: StorageConfig{
			BaseDir: DefaultBaseDir,
			Audit:   true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the effective configuration: defaults, then the config file,
// then environment overrides. An explicit path (argument or NARE_CONFIG)
// must exist; the default location is optional.
func Load(path string) (Config, error) {
	cfg := Default()

	resolvedPath := strings.TrimSpace(path)
	if resolvedPath == "" {
		resolvedPath = strings.TrimSpace(os.Getenv("NARE_CONFIG"))
	}
	explicit := resolvedPath != ""
	if !explicit {
		resolvedPath = findConfigPath()
	}
	if err := mergeFromFile(&cfg, resolvedPath, explicit); err != nil {
		return Config{}, err
	}

	if err := normalize(&cfg); err != nil {
		return Config{}, err
	}
	return applyEnv(cfg)
}

func findConfigPath() string {
	dir, err := expandPath(DefaultBaseDir)
	if err != nil {
		return ""
	}
	for _, name := range []string{"config.json", "config.jsonc", "config.yaml", "config.yml"} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

func mergeFromFile(cfg *Config, path string, mustExist bool) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}

	resolved, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("expand config path %q: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !mustExist {
			return nil
		}
		return fmt.Errorf("read config %q: %w", resolved, err)
	}

	var fileCfg fileConfig
	switch strings.ToLower(filepath.Ext(resolved)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return fmt.Errorf("parse config %q: %w", resolved, err)
		}
	default:
		if err := json.Unmarshal(stripJSONComments(data), &fileCfg); err != nil {
			return fmt.Errorf("parse config %q: %w", resolved, err)
		}
	}
	applyFileConfig(cfg, fileCfg)
	return nil
}

func applyFileConfig(cfg *Config, fc fileConfig) {
	if fc.Telegram != nil {
		cfg.Telegram = mergeTelegram(cfg.Telegram, *fc.Telegram)
	}
	if fc.Provider != nil {
		cfg.Provider = mergeProvider(cfg.Provider, *fc.Provider)
	}
	if fc.Safety != nil {
		cfg.Safety = mergeSafety(cfg.Safety, *fc.Safety)
	}
	if fc.Storage != nil {
		if strings.TrimSpace(fc.Storage.BaseDir) != "" {
			cfg.Storage.BaseDir = fc.Storage.BaseDir
		}
		if fc.Storage.PersistSessions != nil {
			cfg.Storage.PersistSessions = *fc.Storage.PersistSessions
		}
		if fc.Storage.Audit != nil {
			cfg.Storage.Audit = *fc.Storage.Audit
		}
	}
	if fc.Log != nil {
		if strings.TrimSpace(fc.Log.Level) != "" {
			cfg.Log.Level = fc.Log.Level
		}
		if strings.TrimSpace(fc.Log.Format) != "" {
			cfg.Log.Format = fc.Log.Format
		}
	}
}

func mergeTelegram(base TelegramConfig, override TelegramConfig) TelegramConfig {
	if strings.TrimSpace(override.BotToken) != "" {
		base.BotToken = override.BotToken
	}
	if strings.TrimSpace(override.APIBase) != "" {
		base.APIBase = override.APIBase
	}
	if override.AllowedChatIDs != nil {
		base.AllowedChatIDs = append(IDList(nil), override.AllowedChatIDs...)
	}
	if override.PollTimeoutSec > 0 {
		base.PollTimeoutSec = override.PollTimeoutSec
	}
	return base
}

func mergeProvider(base ProviderConfig, override ProviderConfig) ProviderConfig {
	if strings.TrimSpace(override.Kind) != "" {
		base.Kind = override.Kind
	}
	if strings.TrimSpace(override.APIKey) != "" {
		base.APIKey = override.APIKey
	}
	if strings.TrimSpace(override.BaseURL) != "" {
		base.BaseURL = override.BaseURL
	}
	if strings.TrimSpace(override.Model) != "" {
		base.Model = override.Model
	}
	if strings.TrimSpace(override.ClaudeBin) != "" {
		base.ClaudeBin = override.ClaudeBin
	}
	if override.TimeoutMS > 0 {
		base.TimeoutMS = override.TimeoutMS
	}
	if override.ContextTokenLimit > 0 {
		base.ContextTokenLimit = override.ContextTokenLimit
	}
	return base
}

func mergeSafety(base SafetyConfig, override SafetyConfig) SafetyConfig {
	if override.CommandTimeoutMS > 0 {
		base.CommandTimeoutMS = override.CommandTimeoutMS
	}
	if override.OutputLimitBytes > 0 {
		base.OutputLimitBytes = override.OutputLimitBytes
	}
	if override.MaxRounds > 0 {
		base.MaxRounds = override.MaxRounds
	}
	if override.ConfirmTimeoutSec > 0 {
		base.ConfirmTimeoutSec = override.ConfirmTimeoutSec
	}
	if override.HistoryLimit > 0 {
		base.HistoryLimit = override.HistoryLimit
	}
	return base
}

func normalize(cfg *Config) error {
	def := Default()

	cfg.Telegram.BotToken = strings.TrimSpace(cfg.Telegram.BotToken)
	cfg.Telegram.APIBase = strings.TrimRight(strings.TrimSpace(cfg.Telegram.APIBase), "/")
	if cfg.Telegram.APIBase == "" {
		cfg.Telegram.APIBase = def.Telegram.APIBase
	}
	if cfg.Telegram.PollTimeoutSec <= 0 {
		cfg.Telegram.PollTimeoutSec = def.Telegram.PollTimeoutSec
	}
	cfg.Telegram.AllowedChatIDs = normalizeIDs(cfg.Telegram.AllowedChatIDs)

	cfg.Provider.Kind = strings.ToLower(strings.TrimSpace(cfg.Provider.Kind))
	switch cfg.Provider.Kind {
	case "", "claude", "deepseek":
	default:
		return fmt.Errorf("invalid provider.kind %q: want claude or deepseek", cfg.Provider.Kind)
	}
	cfg.Provider.APIKey = strings.TrimSpace(cfg.Provider.APIKey)
	cfg.Provider.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Provider.BaseURL), "/")
	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = def.Provider.BaseURL
	}
	if strings.TrimSpace(cfg.Provider.Model) == "" {
		cfg.Provider.Model = def.Provider.Model
	}
	if strings.TrimSpace(cfg.Provider.ClaudeBin) == "" {
		cfg.Provider.ClaudeBin = def.Provider.ClaudeBin
	}
	if cfg.Provider.TimeoutMS <= 0 {
		cfg.Provider.TimeoutMS = def.Provider.TimeoutMS
	}
	if cfg.Provider.ContextTokenLimit <= 0 {
		cfg.Provider.ContextTokenLimit = def.Provider.ContextTokenLimit
	}

	if cfg.Safety.CommandTimeoutMS <= 0 {
		cfg.Safety.CommandTimeoutMS = def.Safety.CommandTimeoutMS
	}
	if cfg.Safety.OutputLimitBytes <= 0 {
		cfg.Safety.OutputLimitBytes = def.Safety.OutputLimitBytes
	}
	if cfg.Safety.MaxRounds <= 0 {
		cfg.Safety.MaxRounds = def.Safety.MaxRounds
	}
	if cfg.Safety.ConfirmTimeoutSec <= 0 {
		cfg.Safety.ConfirmTimeoutSec = def.Safety.ConfirmTimeoutSec
	}
	if cfg.Safety.HistoryLimit <= 0 {
		cfg.Safety.HistoryLimit = def.Safety.HistoryLimit
	}

	if strings.TrimSpace(cfg.Storage.BaseDir) == "" {
		cfg.Storage.BaseDir = def.Storage.BaseDir
	}
	baseDir, err := expandPath(cfg.Storage.BaseDir)
	if err != nil {
		return err
	}
	cfg.Storage.BaseDir = baseDir

	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	switch cfg.Log.Level {
	case "":
		cfg.Log.Level = def.Log.Level
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q", cfg.Log.Level)
	}
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	switch cfg.Log.Format {
	case "":
		cfg.Log.Format = def.Log.Format
	case "console", "json":
	default:
		return fmt.Errorf("invalid log.format %q: want console or json", cfg.Log.Format)
	}
	return nil
}

func applyEnv(cfg Config) (Config, error) {
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := strings.TrimSpace(os.Getenv("DEEPSEEK_API_KEY")); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("NARE_PROVIDER")); v != "" {
		cfg.Provider.Kind = v
	}
	if v := strings.TrimSpace(os.Getenv("NARE_LOG_LEVEL")); v != "" {
		cfg.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("NARE_MAX_ROUNDS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid NARE_MAX_ROUNDS: %q", v)
		}
		cfg.Safety.MaxRounds = n
	}
	if v := strings.TrimSpace(os.Getenv("NARE_HOME")); v != "" {
		cfg.Storage.BaseDir = v
	}

	return cfg, normalize(&cfg)
}

// PermissionsPath is the permission file location.
func (c Config) PermissionsPath() string {
	return filepath.Join(c.Storage.BaseDir, "permissions.json")
}

// DatabasePath is the SQLite file holding sessions and the audit log.
func (c Config) DatabasePath() string {
	return filepath.Join(c.Storage.BaseDir, "nare.db")
}

// ValidateTelegram reports a descriptive error when the bot cannot start.
func (c Config) ValidateTelegram() error {
	if c.Telegram.BotToken == "" {
		return errors.New("telegram bot token is not set: set telegram.bot_token in the config file or TELEGRAM_BOT_TOKEN")
	}
	return nil
}

func normalizeIDs(ids IDList) IDList {
	if ids == nil {
		return nil
	}
	out := make(IDList, 0, len(ids))
	seen := map[string]struct{}{}
	for _, id := range ids {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		if path == "~" {
			path = home
		} else {
			path = filepath.Join(home, strings.TrimPrefix(path, "~/"))
		}
	}
	return filepath.Abs(path)
}

// stripJSONComments 移除 // 与 /* */ 注释（字符串内除外）
// stripJSONComments removes // and /* */ comments outside string literals
func stripJSONComments(data []byte) []byte {
	const (
		stateNormal = iota
		stateString
		stateLineComment
		stateBlockComment
	)

	state := stateNormal
	escaped := false
	out := bytes.Buffer{}

	for i := 0; i < len(data); i++ {
		c := data[i]
		next := byte(0)
		if i+1 < len(data) {
			next = data[i+1]
		}

		switch state {
		case stateNormal:
			if c == '"' {
				state = stateString
				out.WriteByte(c)
				continue
			}
			if c == '/' && next == '/' {
				state = stateLineComment
				i++
				continue
			}
			if c == '/' && next == '*' {
				state = stateBlockComment
				i++
				continue
			}
			out.WriteByte(c)
		case stateString:
			out.WriteByte(c)
			if escaped {
				escaped = false
				continue
			}
			if c == '\\' {
				escaped = true
				continue
			}
			if c == '"' {
				state = stateNormal
			}
		case stateLineComment:
			if c == '\n' {
				state = stateNormal
				out.WriteByte(c)
			}
		case stateBlockComment:
			if c == '*' && next == '/' {
				state = stateNormal
				i++
			}
		}
	}

	return out.Bytes()
}

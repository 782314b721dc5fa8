package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// InitScaffold 在配置目录下写入默认配置模板（已存在则保留）
// InitScaffold writes a default config.json into dir unless one already
// exists, and returns the file path.
func InitScaffold(dir string) (string, error) {
	resolved, err := expandPath(dir)
	if err != nil {
		return "", err
	}
	if resolved == "" {
		return "", errors.New("config dir is empty")
	}
	path := filepath.Join(resolved, "config.json")

	// 若已有配置，则尊重用户现有配置。
	info, err := os.Stat(path)
	if err == nil {
		if info.IsDir() {
			return "", fmt.Errorf("config path is a directory: %s", path)
		}
		return path, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("stat config: %w", err)
	}

	if err := os.MkdirAll(resolved, 0o700); err != nil {
		return "", fmt.Errorf("mkdir config dir: %w", err)
	}

	cfg := Default()
	cfg.Storage.BaseDir = resolved
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal default config: %w", err)
	}
	data = append(data, '\n')
	// 配置里会写入 bot token / api key，仅允许属主读取
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return path, nil
}

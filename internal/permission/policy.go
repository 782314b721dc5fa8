package permission

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Category 命令权限类别 / Category names one independently grantable capability
type Category string

const (
	InstallPackages Category = "install_packages"
	RemovePackages  Category = "remove_packages"
	SystemUpdate    Category = "system_update"
	ManageServices  Category = "manage_services"
	GeneralCommands Category = "general_commands"
)

var categories = []Category{
	InstallPackages,
	RemovePackages,
	SystemUpdate,
	ManageServices,
	GeneralCommands,
}

var descriptions = map[Category]string{
	InstallPackages: "install packages (pacman -S, yay -S)",
	RemovePackages:  "remove packages (pacman -R, yay -R)",
	SystemUpdate:    "system update (pacman -Syu, yay -Syu)",
	ManageServices:  "manage services (systemctl start/stop/restart/enable/disable)",
	GeneralCommands: "any other shell command, sudo included",
}

// Categories 返回全部类别（固定顺序）
// Categories returns every category in a fixed display order
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// ParseCategory resolves a persisted capability name.
func ParseCategory(name string) (Category, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, c := range categories {
		if string(c) == name {
			return c, true
		}
	}
	return "", false
}

// Describe returns a short human description with example commands.
func (c Category) Describe() string {
	if d, ok := descriptions[c]; ok {
		return d
	}
	return string(c)
}

// Set 五项布尔能力；零值即全部拒绝
// Set holds the five boolean capabilities; the zero value denies everything
type Set struct {
	InstallPackages bool `json:"install_packages"`
	RemovePackages  bool `json:"remove_packages"`
	SystemUpdate    bool `json:"system_update"`
	ManageServices  bool `json:"manage_services"`
	GeneralCommands bool `json:"general_commands"`
}

// Allowed reports whether the capability is granted. Unknown categories are denied.
func (s Set) Allowed(c Category) bool {
	switch c {
	case InstallPackages:
		return s.InstallPackages
	case RemovePackages:
		return s.RemovePackages
	case SystemUpdate:
		return s.SystemUpdate
	case ManageServices:
		return s.ManageServices
	case GeneralCommands:
		return s.GeneralCommands
	default:
		return false
	}
}

// With returns a copy of s with c set to v.
func (s Set) With(c Category, v bool) Set {
	switch c {
	case InstallPackages:
		s.InstallPackages = v
	case RemovePackages:
		s.RemovePackages = v
	case SystemUpdate:
		s.SystemUpdate = v
	case ManageServices:
		s.ManageServices = v
	case GeneralCommands:
		s.GeneralCommands = v
	}
	return s
}

// Granted splits categories into granted and not granted, both in display order.
func (s Set) Granted() (granted, denied []Category) {
	for _, c := range categories {
		if s.Allowed(c) {
			granted = append(granted, c)
		} else {
			denied = append(denied, c)
		}
	}
	return granted, denied
}

// Summary 返回权限矩阵的简短描述（供 /status 展示）
// Summary renders the set as "name: on|off" pairs
func (s Set) Summary() string {
	parts := make([]string, 0, len(categories))
	for _, c := range categories {
		state := "off"
		if s.Allowed(c) {
			state = "on"
		}
		parts = append(parts, string(c)+": "+state)
	}
	return strings.Join(parts, ", ")
}

// Store reads the permission file. It never caches: every Load hits the file
// so that edits made by the settings surface apply on the next message.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: strings.TrimSpace(path)}
}

func (s *Store) Path() string {
	return s.path
}

// Load 读取权限文件；文件缺失或损坏时返回全部拒绝
// Load reads the permission file; a missing or corrupt file yields the all-false set
func (s *Store) Load() Set {
	if s == nil || s.path == "" {
		return Set{}
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Set{}
	}
	var set Set
	if err := json.Unmarshal(data, &set); err != nil {
		return Set{}
	}
	return set
}

// Save writes the set atomically. Only the settings surface calls this.
func (s *Store) Save(set Set) error {
	if s.path == "" {
		return fmt.Errorf("permission file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create permission dir: %w", err)
	}
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal permissions: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".permissions-*.json")
	if err != nil {
		return fmt.Errorf("create temp permission file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace permission file: %w", err)
	}
	return nil
}

package i18n

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// I18n 国际化支持
// I18n holds one locale's message catalog with English as the fallback.
type I18n struct {
	locale   string
	messages map[string]string
}

var (
	cache   = map[string]*I18n{}
	cacheMu sync.Mutex
)

// New 创建 i18n 实例
// New builds a catalog for locale. Unknown locales fall back to English.
func New(locale string) *I18n {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		locale = DetectLocale()
	}
	locale = normalizeLocale(locale)

	i := &I18n{
		locale:   locale,
		messages: make(map[string]string, len(EnMessages)),
	}

	// 先加载英文作为 fallback / Load English as fallback first
	for k, v := range EnMessages {
		i.messages[k] = v
	}
	var overlay map[string]string
	switch locale {
	case "ko":
		overlay = KoMessages
	case "sv":
		overlay = SvMessages
	}
	for k, v := range overlay {
		i.messages[k] = v
	}
	return i
}

// For 返回缓存的 locale 实例；会话切换语言时无需重建
// For returns a shared catalog for locale. Catalogs are read-only once built.
func For(locale string) *I18n {
	key := normalizeLocale(locale)
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if i, ok := cache[key]; ok {
		return i
	}
	i := New(key)
	cache[key] = i
	return i
}

// T 翻译函数 / Translation function
func (i *I18n) T(key string, args ...any) string {
	tmpl, ok := i.messages[key]
	if !ok {
		return key
	}
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}

// Locale 返回当前 locale
// Locale returns current locale
func (i *I18n) Locale() string {
	return i.locale
}

// DetectLocale 自动检测 locale
// DetectLocale auto-detects locale from environment
func DetectLocale() string {
	for _, env := range []string{"NARE_LANG", "LC_ALL", "LC_MESSAGES", "LANG"} {
		v := strings.TrimSpace(os.Getenv(env))
		if v == "" || v == "C" || v == "POSIX" {
			continue
		}
		return normalizeLocale(v)
	}
	return "en"
}

func normalizeLocale(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "en"
	}
	// 去掉 .UTF-8 等后缀 / Remove .UTF-8 suffix
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		s = s[:idx]
	}
	lower := strings.ToLower(strings.ReplaceAll(s, "_", "-"))

	switch {
	case strings.HasPrefix(lower, "ko"):
		return "ko"
	case strings.HasPrefix(lower, "sv"):
		return "sv"
	default:
		return "en"
	}
}

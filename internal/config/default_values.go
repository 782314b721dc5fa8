package config

const (
	DefaultBaseDir = "~/.config/nare"

	DefaultTelegramAPIBase = "https://api.telegram.org"
	DefaultPollTimeoutSec  = 25

	DefaultDeepSeekBaseURL   = "https://api.deepseek.com"
	DefaultDeepSeekModel     = "deepseek-chat"
	DefaultClaudeBin         = "claude"
	DefaultProviderTimeoutMS = 120000
	DefaultContextTokenLimit = 24000

	DefaultCommandTimeoutMS  = 60000
	DefaultOutputLimitBytes  = 1 << 20
	DefaultMaxRounds         = 3
	DefaultConfirmTimeoutSec = 60
	DefaultHistoryLimit      = 20
)

package i18n

// EnMessages English message catalog
var EnMessages = map[string]string{
	"start.connected": "NARE connected! I will manage your Linux system through this chat.",
	"help.body": "Ask me anything about this machine in plain language.\n\n" +
		"/run <command> - run a shell command directly\n" +
		"/status - show AI provider, language and permissions\n" +
		"/lang - choose the reply language\n" +
		"/help - show this message",
	"status.body": "AI provider: %s\nLanguage: %s\nPermissions:\n%s",

	"lang.prompt": "Choose your language",
	"lang.set":    "Language set to %s.",

	"run.usage":   "Usage: /run <command>",
	"run.blocked": "🚫 Blocked: `%s`\n%s",
	"run.denied":  "⛔ `%s` needs the %s permission (%s). Enable it with: nare permissions set %s=true",

	"confirm.prompt":           "⚠️ Run `%s`? (%s)\nThis request expires in %d seconds.",
	"confirm.yes":              "✅ Run",
	"confirm.no":               "✖ Cancel",
	"confirm.cancelled":        "Cancelled: `%s`",
	"confirm.none":             "Nothing is waiting for confirmation.",
	"confirm.approved_blocked": "🚫 `%s` is no longer allowed: %s",

	"provider.error":     "⚠️ AI provider error: %s",
	"provider.timeout":   "⚠️ The AI provider did not answer in time. Please try again.",
	"provider.not_found": "⚠️ The claude CLI was not found. Install it or configure a DeepSeek API key.",

	"reply.empty": "(the assistant returned an empty reply)",

	"access.denied": "This chat is not allowed to use this NARE instance.",
}

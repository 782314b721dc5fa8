package i18n

// SvMessages Swedish message catalog
var SvMessages = map[string]string{
	"start.connected": "NARE anslutet! Jag hanterar ditt Linux-system via den här chatten.",
	"help.body": "Fråga mig vad som helst om den här datorn med vanliga ord.\n\n" +
		"/run <kommando> - kör ett skalkommando direkt\n" +
		"/status - visa AI-leverantör, språk och behörigheter\n" +
		"/lang - välj svarsspråk\n" +
		"/help - visa det här meddelandet",
	"status.body": "AI-leverantör: %s\nSpråk: %s\nBehörigheter:\n%s",

	"lang.prompt": "Välj ditt språk",
	"lang.set":    "Språket är nu %s.",

	"run.usage":   "Användning: /run <kommando>",
	"run.blocked": "🚫 Blockerat: `%s`\n%s",
	"run.denied":  "⛔ `%s` kräver behörigheten %s (%s). Aktivera den med: nare permissions set %s=true",

	"confirm.prompt":           "⚠️ Köra `%s`? (%s)\nFörfrågan upphör om %d sekunder.",
	"confirm.yes":              "✅ Kör",
	"confirm.no":               "✖ Avbryt",
	"confirm.cancelled":        "Avbrutet: `%s`",
	"confirm.none":             "Inget väntar på bekräftelse.",
	"confirm.approved_blocked": "🚫 `%s` är inte längre tillåtet: %s",

	"provider.error":     "⚠️ Fel från AI-leverantören: %s",
	"provider.timeout":   "⚠️ AI-leverantören svarade inte i tid. Försök igen.",
	"provider.not_found": "⚠️ claude-CLI hittades inte. Installera det eller ange en DeepSeek API-nyckel.",

	"reply.empty": "(assistenten skickade ett tomt svar)",

	"access.denied": "Den här chatten får inte använda den här NARE-instansen.",
}

package orchestrator

import (
	"fmt"
	"strings"

	"nare/internal/permission"
	"nare/internal/session"
)

// alwaysAllowed 与 security 包的只读规则表对应，仅用于提示模型
// alwaysAllowed mirrors the read-only rule table in package security; it only
// informs the model and grants nothing.
var alwaysAllowed = []string{
	"disk and memory usage (df, du, free, lsblk)",
	"processes and load (ps, top -b -n 1, uptime, /proc reads)",
	"network state (ip addr, ip route, ss)",
	"logs (journalctl, dmesg)",
	"service status (systemctl status, systemctl is-active)",
	"package queries (pacman -Q, pacman -Ss, yay -Qi)",
	"identity and time (whoami, id, hostname, date, timedatectl)",
	"reading files and directories (ls, cat, head, tail, stat)",
	"piping any of the above into grep, awk, sort, wc or similar filters",
}

var alwaysBlocked = []string{
	"recursive deletion of / or system directories",
	"writing to raw block devices (dd of=/dev/..., > /dev/sda)",
	"creating or wiping filesystems (mkfs, wipefs, mkswap)",
	"fork bombs",
	"piping downloaded scripts into a shell (curl ... | sh)",
	"chmod -R 777 /",
	"shutdown, reboot, halt, poweroff and power state changes",
}

// BuildSystemPrompt 根据当前权限与会话语言构造系统提示
// BuildSystemPrompt renders the system prompt for the current permission
// snapshot and reply language.
func BuildSystemPrompt(perms permission.Set, lang session.Language) string {
	var b strings.Builder
	b.WriteString("You are NARE, an assistant that administers this Linux host through chat.\n")
	fmt.Fprintf(&b, "Always reply in %s. Keep answers short and suited to a phone screen.\n\n", languageName(lang))

	b.WriteString("To run a shell command, write it between tags, one command per pair: <run>df -h /</run>\n")
	b.WriteString("The host runs each command and replaces the tags with its output. You will then see the output and may continue.\n")
	b.WriteString("Never claim a command ran before you have seen its output. Do not wrap the tags in code fences.\n\n")

	b.WriteString("Always allowed:\n")
	writeList(&b, alwaysAllowed)

	granted, denied := perms.Granted()
	b.WriteString("\nPre-approved by the operator:\n")
	if len(granted) == 0 {
		b.WriteString("- (none)\n")
	}
	for _, c := range granted {
		fmt.Fprintf(&b, "- %s: %s\n", c, c.Describe())
	}
	b.WriteString("\nNot approved (do not propose these; tell the user which permission to enable instead):\n")
	if len(denied) == 0 {
		b.WriteString("- (none)\n")
	}
	for _, c := range denied {
		fmt.Fprintf(&b, "- %s: %s\n", c, c.Describe())
	}
	b.WriteString("\nAlways blocked, never propose:\n")
	writeList(&b, alwaysBlocked)
	return b.String()
}

func writeList(b *strings.Builder, items []string) {
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteByte('\n')
	}
}

func languageName(lang session.Language) string {
	switch lang {
	case session.Korean:
		return "Korean"
	case session.Swedish:
		return "Swedish"
	default:
		return "English"
	}
}

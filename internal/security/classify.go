package security

import (
	"path"
	"regexp"
	"strings"

	"nare/internal/permission"
)

// segmentRule matches one pipeline segment. match runs against the segment
// text with any elevation prefix removed; unless vetoes a match.
type segmentRule struct {
	name   string
	match  func(segment string) bool
	unless *regexp.Regexp
}

func (r segmentRule) matches(segment string) bool {
	if !r.match(segment) {
		return false
	}
	return r.unless == nil || !r.unless.MatchString(segment)
}

func pattern(expr string) func(string) bool {
	re := regexp.MustCompile(expr)
	return re.MatchString
}

// safeRules 只读检查命令（磁盘、内存、进程、网络、日志、身份、时间）
// safeRules are the read-only inspection commands that always run
var safeRules = []segmentRule{
	{name: "disk", match: pattern(`^(df|du|lsblk|findmnt)(\s|$)`)},
	{name: "memory", match: pattern(`^(free|vmstat)(\s|$)`)},
	{name: "procfs", match: pattern(`^cat\s+/proc/[\w./-]+(\s+/proc/[\w./-]+)*$`)},
	{name: "process", match: pattern(`^(ps|pgrep|pstree|uptime|nproc|lscpu|lsusb|lspci|sensors)(\s|$)`)},
	{name: "top", match: pattern(`^top\s+(-\S+\s+)*-\S*b\S*(\s|$)`)},
	{name: "socket", match: pattern(`^(ss|netstat)(\s|$)`)},
	{name: "ip", match: pattern(`^ip\s+(-\S+\s+)*(a|addr|address|r|route|l|link|n|neigh)(\s+(show|list|ls)(\s.*)?)?$`)},
	{name: "journal", match: pattern(`^journalctl(\s|$)`), unless: regexp.MustCompile(`--(vacuum-\w+|rotate|flush|relinquish-var|sync|setup-keys)`)},
	{name: "dmesg", match: pattern(`^dmesg(\s|$)`), unless: regexp.MustCompile(`(\s)(-[a-zA-Z]*[cCDE]|-n|--clear|--read-clear|--console-\w+)(\s|$)`)},
	{name: "identity", match: pattern(`^(whoami|id|groups|w|who|uname)(\s|$)`)},
	{name: "hostname", match: pattern(`^hostname(\s+-[a-zA-Z]+)*$`)},
	{name: "date", match: pattern(`^date(\s+(-u|-R|--utc|\+\S+|'\+[^']*'|"\+[^"]*"))*$`)},
	{name: "timedatectl", match: pattern(`^timedatectl(\s+status)?$`)},
	{name: "unit-status", match: pattern(`^systemctl\s+(--\S+\s+)*(status|list-units|list-unit-files|list-timers|is-active|is-enabled|is-failed|show)(\s|$)`)},
	{name: "package-query", match: func(s string) bool { return packageOpOf(s) == opQuery }},
	{name: "files", match: pattern(`^(ls|pwd|which|stat)(\s|$)`)},
}

// pipeFilters may follow a safe command after a plain pipe.
var pipeFilters = []segmentRule{
	{name: "filter", match: pattern(`^(grep|egrep|fgrep|head|tail|wc|uniq|cut|column|tr|awk)(\s|$)`), unless: regexp.MustCompile(`(^awk\s.*(system|>|\|))|(^tail\s.*(-f|--follow|-F))`)},
	{name: "sort", match: pattern(`^sort(\s|$)`), unless: regexp.MustCompile(`(\s)(-o|--output)`)},
}

type categoryRule struct {
	category permission.Category
	match    func(segment string) bool
}

// categoryRules 按顺序匹配；包管理操作由 packageOpOf 互斥判定
// categoryRules are checked in order; package operations are mutually exclusive via packageOpOf
var categoryRules = []categoryRule{
	{category: permission.SystemUpdate, match: func(s string) bool { return packageOpOf(s) == opUpdate }},
	{category: permission.InstallPackages, match: func(s string) bool { return packageOpOf(s) == opInstall }},
	{category: permission.RemovePackages, match: func(s string) bool { return packageOpOf(s) == opRemove }},
	{category: permission.ManageServices, match: pattern(`^systemctl\s+(--\S+\s+)*(start|stop|restart|reload|try-restart|reload-or-restart|enable|disable|mask|unmask)\s+\S`)},
}

type packageOp int

const (
	opNone packageOp = iota
	opQuery
	opUpdate
	opInstall
	opRemove
	opOther
)

var longPackageFlags = map[string]byte{
	"--sync":         'S',
	"--remove":       'R',
	"--query":        'Q',
	"--upgrade":      'U',
	"--database":     'D',
	"--files":        'F',
	"--refresh":      'y',
	"--sysupgrade":   'u',
	"--search":       's',
	"--info":         'i',
	"--list":         'l',
	"--groups":       'g',
	"--clean":        'c',
	"--downloadonly": 'w',
}

// long options that consume the next word
var valuedPackageFlags = map[string]bool{
	"--root": true, "--dbpath": true, "--cachedir": true, "--config": true,
	"--arch": true, "--gpgdir": true, "--hookdir": true, "--logfile": true,
	"--ignore": true, "--ignoregroup": true, "--overwrite": true, "--assume-installed": true,
}

// packageOpOf maps a pacman or yay invocation to exactly one operation.
func packageOpOf(segment string) packageOp {
	words := strings.Fields(segment)
	if len(words) == 0 {
		return opNone
	}
	frontEnd := path.Base(words[0])
	if frontEnd != "pacman" && frontEnd != "yay" {
		return opNone
	}
	if frontEnd == "yay" && len(words) == 1 {
		return opUpdate
	}

	var (
		op       byte
		letters  = map[byte]bool{}
		packages int
	)
	for i := 1; i < len(words); i++ {
		w := words[i]
		switch {
		case strings.HasPrefix(w, "--"):
			if b, ok := longPackageFlags[w]; ok {
				if b >= 'A' && b <= 'Z' {
					if op == 0 {
						op = b
					}
				} else {
					letters[b] = true
				}
			} else if valuedPackageFlags[w] {
				i++
			}
		case strings.HasPrefix(w, "-") && len(w) > 1:
			for j := 1; j < len(w); j++ {
				b := w[j]
				if b >= 'A' && b <= 'Z' && op == 0 {
					op = b
					continue
				}
				letters[b] = true
			}
		default:
			packages++
		}
	}

	switch op {
	case 'S':
		switch {
		case letters['s'] || letters['i'] || letters['l'] || letters['g'] || letters['p']:
			return opQuery
		case letters['c'] || letters['w']:
			return opOther
		case letters['u']:
			return opUpdate
		case letters['y'] && packages == 0:
			return opUpdate
		case packages > 0:
			return opInstall
		default:
			return opOther
		}
	case 'R':
		if packages > 0 {
			return opRemove
		}
		return opOther
	case 'Q':
		return opQuery
	default:
		return opOther
	}
}

// Classify 对一条候选命令做纯函数分类
// Classify assigns exactly one verdict to a candidate command. It is pure:
// it never consults the environment or the permission store.
func Classify(command string) Verdict {
	return classify(command, 0)
}

func classify(command string, depth int) Verdict {
	cmd := strings.TrimSpace(command)
	if cmd == "" {
		return Blocked("empty command")
	}
	if reason, ok := matchBlockedRule(cmd); ok {
		return Blocked(reason)
	}

	shape := analyze(cmd)
	elevated := false
	heads := make([]string, 0, len(shape.segments))
	for _, seg := range shape.segments {
		if reason, ok := blockedSegment(seg, depth); ok {
			return Blocked(reason)
		}
		stripped, elev := stripPrefixes(seg)
		elevated = elevated || elev
		heads = append(heads, stripped)
	}

	plain := !shape.redirect && !shape.substitute && !shape.unbalanced
	if plain && shape.pipeOnly && !elevated && isSafePipeline(heads) {
		return Safe()
	}
	if plain && len(heads) == 1 {
		for _, rule := range categoryRules {
			if rule.match(heads[0]) {
				return RequiresPermission(rule.category)
			}
		}
	}
	return RequiresPermission(permission.GeneralCommands)
}

func isSafePipeline(segments []string) bool {
	if len(segments) == 0 || !anyRule(safeRules, segments[0]) {
		return false
	}
	for _, seg := range segments[1:] {
		if !anyRule(pipeFilters, seg) {
			return false
		}
	}
	return true
}

func anyRule(rules []segmentRule, segment string) bool {
	for _, r := range rules {
		if r.matches(segment) {
			return true
		}
	}
	return false
}

// stripPrefixes removes environment assignments, elevation prefixes and
// transparent wrappers, rejoining the remaining words with single spaces.
func stripPrefixes(segment string) (string, bool) {
	words, err := parseShellWords(segment)
	if err != nil {
		return segment, false
	}
	head, rest, elevated := commandHead(words)
	if head == "" {
		return "", elevated
	}
	return strings.Join(append([]string{head}, rest...), " "), elevated
}

// confirmLabels 依次匹配；首个命中者即为确认按钮上的标签
// confirmLabels are tried in order; the first hit names the confirmation
var confirmLabels = []struct {
	label   string
	pattern *regexp.Regexp
}{
	{"sudo", regexp.MustCompile(`(^|[\s;&|(])sudo(\s|$)`)},
	{"doas", regexp.MustCompile(`(^|[\s;&|(])doas(\s|$)`)},
	{"rm", regexp.MustCompile(`(^|[\s;&|(/])rm(\s|$)`)},
	{"dd", regexp.MustCompile(`(^|[\s;&|(/])dd(\s|$)`)},
	{"chmod", regexp.MustCompile(`(^|[\s;&|(/])chmod(\s|$)`)},
	{"chown", regexp.MustCompile(`(^|[\s;&|(/])chown(\s|$)`)},
	{"kill", regexp.MustCompile(`(^|[\s;&|(/])(kill|pkill|killall)(\s|$)`)},
	{"pacman", regexp.MustCompile(`(^|[\s;&|(/])pacman(\s|$)`)},
	{"yay", regexp.MustCompile(`(^|[\s;&|(/])yay(\s|$)`)},
	{"systemctl", regexp.MustCompile(`(^|[\s;&|(/])systemctl(\s|$)`)},
}

// ClassifyRun 为用户直接输入的 /run 命令分类；命中确认模式者无论权限如何都需确认
// ClassifyRun classifies a command the user typed with the run command.
// Blocked stays blocked and safe commands run directly. A command matching a
// confirmation pattern always needs the user's explicit yes, whatever the
// permissions, labelled by its most prominent risky element. Any other
// command runs when its category is granted and is confirmed under the
// category name otherwise.
func ClassifyRun(command string, set permission.Set) Verdict {
	v := Classify(command)
	if v.Kind == VerdictBlocked || v.Kind == VerdictSafe {
		return v
	}
	for _, c := range confirmLabels {
		if c.pattern.MatchString(command) {
			return RequiresConfirmation(c.label)
		}
	}
	if v.Executable(set) {
		return v
	}
	return RequiresConfirmation(string(v.Category))
}

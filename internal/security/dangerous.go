package security

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
)

// blockedRule 无论权限如何都拒绝执行的文本模式
// blockedRule is a textual pattern that is refused whatever the permissions say
type blockedRule struct {
	reason  string
	pattern *regexp.Regexp
}

const systemDirs = `(/|/\*|~|~/|\$HOME|\$\{HOME\}|/(bin|boot|dev|etc|home|lib|lib64|opt|proc|root|sbin|srv|sys|usr|var)/?)`

var blockedRules = []blockedRule{
	{
		reason:  "recursive deletion of the filesystem root, the home directory or a system directory",
		pattern: regexp.MustCompile(`(^|[\s;&|(])rm\s+(-\S+\s+)*-\S*[rR]\S*(\s+-\S+)*\s+(\S+\s+)*` + systemDirs + `(\s|$|;|&|\|)`),
	},
	{
		reason:  "recursive deletion of the filesystem root, the home directory or a system directory",
		pattern: regexp.MustCompile(`(^|[\s;&|(])rm\s+(-\S+\s+)*--recursive(\s+-\S+)*\s+(\S+\s+)*` + systemDirs + `(\s|$|;|&|\|)`),
	},
	{
		reason:  "raw write to a block device",
		pattern: regexp.MustCompile(`>\s*/dev/(sd[a-z]|hd[a-z]|vd[a-z]|xvd[a-z]|nvme\d|mmcblk\d)`),
	},
	{
		reason:  "raw write to a block device",
		pattern: regexp.MustCompile(`(^|[\s;&|(])dd\s+(\S+\s+)*of=/dev/`),
	},
	{
		reason:  "filesystem format",
		pattern: regexp.MustCompile(`(^|[\s;&|(/])(mkfs(\.\w+)?|mke2fs|mkswap|wipefs)(\s|$)`),
	},
	{
		reason:  "fork bomb",
		pattern: regexp.MustCompile(`:\s*\(\s*\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`),
	},
	{
		reason:  "downloaded script piped into a shell",
		pattern: regexp.MustCompile(`(^|[\s;&|(])(curl|wget)\s[^|]*\|\s*(sudo\s+(-\S+\s+)*)?(ba|z|da|k)?sh(\s|$)`),
	},
	{
		reason:  "recursive world-writable permissions on the filesystem root",
		pattern: regexp.MustCompile(`(^|[\s;&|(])chmod\s+(-\S+\s+)*-\S*R\S*\s+(0?777|a\+rwx)\s+/(\s|$)`),
	},
	{
		reason:  "power-state change",
		pattern: regexp.MustCompile(`(^|[\s;&|(])systemctl\s+(-\S+\s+)*(reboot|poweroff|halt|kexec|suspend|hibernate)(\s|$)`),
	},
}

// blockedHeads are refused when they are the first word of any segment.
var blockedHeads = map[string]bool{
	"shutdown": true,
	"reboot":   true,
	"halt":     true,
	"poweroff": true,
	"init":     true,
	"telinit":  true,
}

// elevation prefixes and the flags of theirs that consume the next word
var elevators = map[string]map[string]bool{
	"sudo":   {"-u": true, "-g": true, "-h": true, "-p": true, "-C": true, "-D": true, "-r": true, "-t": true, "-U": true, "-T": true},
	"doas":   {"-u": true, "-C": true},
	"pkexec": {"--user": true},
}

// transparent wrappers that run their argument as the real command
var wrappers = map[string]map[string]bool{
	"env":     {"-u": true, "-C": true},
	"nice":    {"-n": true},
	"nohup":   {},
	"exec":    {},
	"command": {},
	"builtin": {},
	"time":    {},
	"stdbuf":  {"-i": true, "-o": true, "-e": true},
	"timeout": {"-s": true, "-k": true},
}

// shells whose -c argument is inspected as a nested script
var shells = map[string]bool{"sh": true, "bash": true, "zsh": true, "dash": true, "ksh": true, "su": true}

var envAssignPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*=`)

func matchBlockedRule(cmd string) (string, bool) {
	for _, rule := range blockedRules {
		if rule.pattern.MatchString(cmd) {
			return rule.reason, true
		}
	}
	return "", false
}

// blockedSegment checks the first word of one segment against the head list,
// recursing into `sh -c '...'` style scripts.
func blockedSegment(segment string, depth int) (string, bool) {
	words, err := parseShellWords(segment)
	if err != nil {
		words = strings.Fields(segment)
	}
	head, rest, _ := commandHead(words)
	if head == "" {
		return "", false
	}
	if blockedHeads[head] {
		return fmt.Sprintf("%s changes the power state of the host", head), true
	}
	if shells[head] && depth < 3 {
		if script, ok := inlineScript(rest); ok {
			if v := classify(script, depth+1); v.Kind == VerdictBlocked {
				return v.Reason, true
			}
		}
	}
	return "", false
}

// commandHead skips environment assignments, elevation prefixes and
// transparent wrappers, returning the effective command name (basename,
// lowercased), the words after it, and whether an elevation prefix was seen.
func commandHead(words []string) (string, []string, bool) {
	elevated := false
	i := 0
	for i < len(words) {
		w := words[i]
		if envAssignPattern.MatchString(w) {
			i++
			continue
		}
		name := strings.ToLower(path.Base(w))
		flags, isElevator := elevators[name]
		if !isElevator {
			flags, isElevator = wrappers[name]
		} else {
			elevated = true
		}
		if !isElevator {
			return name, words[i+1:], elevated
		}
		i++
		for i < len(words) && strings.HasPrefix(words[i], "-") {
			flag := words[i]
			i++
			if flag == "--" {
				break
			}
			if flags[flag] && i < len(words) {
				i++
			}
		}
		if name == "timeout" && i < len(words) {
			i++
		}
	}
	return "", nil, elevated
}

func inlineScript(args []string) (string, bool) {
	for i, a := range args {
		if a == "-c" && i+1 < len(args) {
			return args[i+1], true
		}
		if strings.HasPrefix(a, "-") && !strings.HasPrefix(a, "--") && strings.Contains(a, "c") && i+1 < len(args) {
			return args[i+1], true
		}
	}
	return "", false
}

// commandShape is the lexical view of a command line: its segments split on
// control operators plus the features that rule out a read-only verdict.
type commandShape struct {
	segments   []string
	pipeOnly   bool
	redirect   bool
	substitute bool
	unbalanced bool
}

func analyze(command string) commandShape {
	var (
		shape    = commandShape{pipeOnly: true}
		cur      strings.Builder
		inSingle bool
		inDouble bool
		escaped  bool
	)
	flush := func() {
		if seg := strings.TrimSpace(cur.String()); seg != "" {
			shape.segments = append(shape.segments, seg)
		}
		cur.Reset()
	}
	runes := []rune(command)
	next := func(i int) rune {
		if i+1 < len(runes) {
			return runes[i+1]
		}
		return 0
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && !inSingle:
			cur.WriteRune(r)
			escaped = true
		case r == '\'' && !inDouble:
			inSingle = !inSingle
			cur.WriteRune(r)
		case inSingle:
			cur.WriteRune(r)
		case r == '"':
			inDouble = !inDouble
			cur.WriteRune(r)
		case r == '`' || (r == '$' && next(i) == '(') || ((r == '<' || r == '>') && next(i) == '(' && !inDouble):
			shape.substitute = true
			cur.WriteRune(r)
		case inDouble:
			cur.WriteRune(r)
		case r == '>' || r == '<':
			shape.redirect = true
			cur.WriteRune(r)
			if next(i) == '&' {
				cur.WriteRune('&')
				i++
			}
		case r == '&' && next(i) == '>':
			shape.redirect = true
			cur.WriteRune(r)
		case r == '|':
			if next(i) == '|' || next(i) == '&' {
				shape.pipeOnly = false
				i++
			}
			flush()
		case r == '&':
			if next(i) == '&' {
				i++
			}
			shape.pipeOnly = false
			flush()
		case r == ';' || r == '\n':
			shape.pipeOnly = false
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	if inSingle || inDouble || escaped {
		shape.unbalanced = true
	}
	flush()
	return shape
}

func parseShellWords(input string) ([]string, error) {
	var (
		out         []string
		cur         strings.Builder
		inSingle    bool
		inDouble    bool
		escaped     bool
		justFlushed bool
	)

	flush := func() {
		if cur.Len() > 0 || justFlushed {
			out = append(out, cur.String())
			cur.Reset()
			justFlushed = false
		}
	}

	for _, r := range input {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && !inSingle:
			escaped = true
		case r == '\'' && !inDouble:
			inSingle = !inSingle
			justFlushed = true
		case r == '"' && !inSingle:
			inDouble = !inDouble
			justFlushed = true
		case isSpace(r) && !inSingle && !inDouble:
			flush()
		default:
			cur.WriteRune(r)
			justFlushed = false
		}
	}

	if escaped {
		return nil, errors.New("dangling escape")
	}
	if inSingle || inDouble {
		return nil, fmt.Errorf("unmatched quote")
	}
	if cur.Len() > 0 || justFlushed {
		out = append(out, cur.String())
	}
	return out, nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n'
}

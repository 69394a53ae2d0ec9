package risk

import "regexp"

// Adjustment is a context modifier applied to a dangerous pattern's base
// score when its own regex also matches the command.
type Adjustment struct {
	Pattern *regexp.Regexp
	Delta   int
}

// DangerousPattern is one entry of the ordered dangerous-command table.
type DangerousPattern struct {
	Pattern     *regexp.Regexp
	Score       int
	Reason      string
	Adjustments []Adjustment
}

// SafePattern is an unconditional delta applied after dangerous-pattern
// evaluation. Deltas are usually negative but nothing enforces that.
type SafePattern struct {
	Pattern *regexp.Regexp
	Delta   int
	Reason  string
}

// ScoredPattern is one entry of a file-path or URL sensitivity table.
type ScoredPattern struct {
	Pattern *regexp.Regexp
	Score   int
	Reason  string
}

// Tier names a sensitivity group in a TieredPatterns table.
type Tier string

const (
	TierCritical Tier = "critical"
	TierHigh     Tier = "high"
	TierMedium   Tier = "medium"
)

// TieredPatterns groups path or URL patterns by tier. Tiers are evaluated
// critical first, but every entry is visited.
type TieredPatterns struct {
	Critical []ScoredPattern
	High     []ScoredPattern
	Medium   []ScoredPattern
}

func (t TieredPatterns) ordered() [][]ScoredPattern {
	return [][]ScoredPattern{t.Critical, t.High, t.Medium}
}

// Add appends p to the named tier. Unknown tiers land in Medium.
func (t *TieredPatterns) Add(tier Tier, p ScoredPattern) {
	switch tier {
	case TierCritical:
		t.Critical = append(t.Critical, p)
	case TierHigh:
		t.High = append(t.High, p)
	default:
		t.Medium = append(t.Medium, p)
	}
}

// Len returns the number of patterns across all tiers.
func (t TieredPatterns) Len() int {
	return len(t.Critical) + len(t.High) + len(t.Medium)
}

func (t TieredPatterns) clone() TieredPatterns {
	return TieredPatterns{
		Critical: append([]ScoredPattern(nil), t.Critical...),
		High:     append([]ScoredPattern(nil), t.High...),
		Medium:   append([]ScoredPattern(nil), t.Medium...),
	}
}

// Patterns holds every table the scorers read. It is built once at startup
// (DefaultPatterns, optionally extended by LoadPacks) and treated as
// read-only afterwards.
type Patterns struct {
	Dangerous []DangerousPattern
	Safe      []SafePattern
	Files     TieredPatterns
	URLs      TieredPatterns
}

// Clone returns a copy whose slices can be appended to independently.
func (p *Patterns) Clone() *Patterns {
	return &Patterns{
		Dangerous: append([]DangerousPattern(nil), p.Dangerous...),
		Safe:      append([]SafePattern(nil), p.Safe...),
		Files:     p.Files.clone(),
		URLs:      p.URLs.clone(),
	}
}

// ci compiles a case-insensitive regex. Only for built-in tables.
func ci(expr string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + expr)
}

func danger(expr string, score int, reason string, adj ...Adjustment) DangerousPattern {
	return DangerousPattern{Pattern: ci(expr), Score: score, Reason: reason, Adjustments: adj}
}

func adjust(expr string, delta int) Adjustment {
	return Adjustment{Pattern: ci(expr), Delta: delta}
}

func scored(expr string, score int, reason string) ScoredPattern {
	return ScoredPattern{Pattern: ci(expr), Score: score, Reason: reason}
}

// DefaultPatterns returns the built-in tables. Each call returns a fresh
// copy so callers may extend it.
func DefaultPatterns() *Patterns {
	return &Patterns{
		Dangerous: defaultDangerous(),
		Safe:      defaultSafe(),
		Files:     defaultFilePatterns(),
		URLs:      defaultURLPatterns(),
	}
}

func defaultDangerous() []DangerousPattern {
	return []DangerousPattern{
		// Filesystem destruction
		danger(`\brm\s+(-[a-z]+\s+)*-[a-z]*(rf|fr)[a-z]*\s+(/\*?|~/?|\$home/?)(\s|;|$)`, 100,
			"Recursive delete of root filesystem or home directory"),
		danger(`\brm\b.*--no-preserve-root`, 100, "Root filesystem delete with --no-preserve-root"),
		danger(`\brm\s+(-[a-z]+\s+)*-[a-z]*(rf|fr)`, 70, "Recursive force delete",
			adjust(`\s/(etc|usr|var|bin|sbin|boot|lib|opt)(/|\s|$)`, 20),
			adjust(`(node_modules|__pycache__|\.cache|/dist|/build|/target)\b`, -30)),
		danger(`\bmkfs(\.[a-z0-9]+)?\b`, 95, "Filesystem format (mkfs)"),
		danger(`\bdd\s+.*\bof=/dev/(sd|hd|nvme|disk|xvd|vd|mmcblk)`, 95, "Raw disk overwrite (dd)"),
		danger(`>\s*/dev/(sd|hd|nvme|disk)[a-z0-9]*`, 95, "Redirect onto raw disk device"),
		danger(`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`, 90, "Fork bomb"),
		danger(`\bshred\b`, 70, "Secure file deletion (shred)",
			adjust(`\s-[a-z]*u`, 10)),
		danger(`\bchmod\s+(-r\s+)?(0?777|a\+rwx|ugo\+rwx)\b`, 60, "World-writable permissions",
			adjust(`\s/(etc|usr|bin|sbin)(/|\s|$)`, 20)),
		danger(`\bchmod\s+(u\+x|\+x|a\+x|7[0-7][0-7])\b`, 25, "Make file executable",
			adjust(`/tmp/`, 15)),
		danger(`\bchown\s+-r\s+root\b`, 50, "Recursive ownership change to root"),
		danger(`\bkill\s+-9\s+-1\b`, 80, "Kill all processes"),

		// Remote code execution
		danger(`\b(curl|wget)\b[^|]*\|\s*(sudo\s+)?(ba|z|da|k)?sh\b`, 95,
			"Remote code execution: download piped to shell"),
		danger(`\b(curl|wget)\b[^|]*\|\s*(sudo\s+)?(python[23]?|node|ruby|perl|php)\b`, 90,
			"Remote code execution: download piped to interpreter"),
		danger(`\b(ba|z)?sh\s+<\(\s*(curl|wget)\b`, 95,
			"Remote code execution via process substitution"),
		danger(`\beval\s+.*\$\(\s*(curl|wget)\b`, 90, "Remote code execution via eval of downloaded content"),
		danger(`\bbase64\s+(-d|--decode)\b.*\|\s*(ba|z)?sh\b`, 90,
			"Obfuscated payload execution (base64 piped to shell)"),
		danger(`\b(python[23]?|perl|ruby|node)\s+-[ce]\s`, 40, "Inline interpreter code execution",
			adjust(`(socket|subprocess|os\.system|child_process|exec\()`, 30)),
		danger(`\beval\b`, 35, "Dynamic evaluation (eval)"),

		// Privilege escalation
		danger(`\bsudo\s+`, 55, "Privileged command (sudo)",
			adjust(`\bsudo\s+(-\S+\s+)*(apt|apt-get|brew|yum|dnf|pacman|port|pip3?|npm|gem)\b`, -20),
			adjust(`\bsudo\s+(-\S+\s+)*rm\s`, 25),
			adjust(`\bsudo\s+(-\S+\s+)*(chmod|chown)\s`, 15),
			adjust(`\bsudo\s+(-i|-s|su)\b`, 20)),
		danger(`\bsu\s+(-|root)(\s|$)`, 60, "Switch to root user"),
		danger(`/etc/sudoers`, 80, "Sudoers file access"),
		danger(`\bvisudo\b`, 70, "Sudoers edit (visudo)"),

		// Credential access and exfiltration
		danger(`\b(cat|less|more|head|tail|cp|base64|xxd)\s+.*(\.ssh/id_|\.aws/credentials|\.netrc|\.git-credentials|\.gnupg/)`, 75,
			"Credential file access"),
		danger(`\b(curl|wget)\b.*(\s-d\s*@|--data(-binary|-raw)?[\s=]@|\s-f\s+\S+=@|--upload-file|\s-T\s)`, 70,
			"File upload via HTTP (possible exfiltration)",
			adjust(`(\.ssh|\.aws|\.env|credentials|id_rsa|\.pem)`, 25)),
		danger(`\b(nc|ncat|netcat)\b.*\s-[a-z]*e\s`, 90, "Reverse shell (netcat -e)"),
		danger(`/dev/tcp/`, 90, "Reverse shell via /dev/tcp"),
		danger(`\bscp\s+.*\s\S+@\S+:`, 45, "Remote file copy (scp)",
			adjust(`(\.ssh|\.aws|\.env|credentials)`, 30)),
		danger(`\brsync\s+.*\S+@\S+:`, 40, "Remote sync (rsync)"),
		danger(`\bssh\s+.*(?-i:-[a-zA-Z]*[LRD])\s`, 55, "SSH tunnel or port forwarding"),
		danger(`(^|[;&|]\s*)(printenv|env)\s*($|\|)`, 30, "Environment variable dump",
			adjust(`\|\s*(curl|nc|wget)\b`, 40)),

		// Persistence and defense evasion
		danger(`\bcrontab\b`, 50, "Crontab modification",
			adjust(`\bcrontab\s+-l\b`, -40)),
		danger(`>>?\s*\S*\.(bashrc|zshrc|bash_profile|profile|zprofile|zshenv)\b`, 60, "Shell profile modification"),
		danger(`\b(launchctl\s+(load|bootstrap)|systemctl\s+(enable|daemon-reload))\b`, 45, "Service persistence"),
		danger(`\bhistory\s+-c\b|\bunset\s+histfile\b|>\s*\S*\.(bash|zsh)_history`, 65, "Shell history tampering"),
		danger(`\b(iptables|ufw)\s+.*(-f\b|--flush|disable)`, 60, "Firewall modification"),

		// Git
		danger(`\bgit\s+push\s+.*(--force\b|\s-f\b)`, 50, "Git force push",
			adjust(`\b(main|master)\b`, 20)),
		danger(`\bgit\s+reset\s+--hard\b`, 40, "Git hard reset discards changes"),
		danger(`\bgit\s+clean\s+-[a-z]*f`, 35, "Git clean deletes untracked files"),

		// Package installation
		danger(`\b(npm|pnpm|yarn)\s+(install|add|i)\b`, 20, "Package installation",
			adjust(`(\s--global\b|\s-g\b)`, 10)),
		danger(`\bpip3?\s+install\b`, 20, "Python package installation",
			adjust(`--(extra-)?index-url\b`, 25)),
		danger(`\b(brew|apt|apt-get|yum|dnf|pacman)\s+install\b`, 20, "System package installation"),
	}
}

func defaultSafe() []SafePattern {
	return []SafePattern{
		{Pattern: ci(`--dry-run\b`), Delta: -20, Reason: "dry run"},
		{Pattern: ci(`/tmp/`), Delta: -10, Reason: "temporary directory"},
		{Pattern: ci(`https?://(localhost|127\.0\.0\.1|0\.0\.0\.0)\b`), Delta: -15, Reason: "local URL"},
		// Positive delta: raises the score.
		{Pattern: ci(`--no-preserve-root`), Delta: 10, Reason: "no-preserve-root"},
		{Pattern: ci(`\s--help\b`), Delta: -20, Reason: "help output"},
		{Pattern: ci(`\bgit\s+(status|log|diff|show)\b`), Delta: -10, Reason: "read-only git"},
	}
}

func defaultFilePatterns() TieredPatterns {
	return TieredPatterns{
		Critical: []ScoredPattern{
			scored(`\.ssh/id_(rsa|dsa|ecdsa|ed25519)$`, 95, "SSH private key"),
			scored(`\.aws/credentials`, 95, "AWS credentials"),
			scored(`/etc/shadow`, 95, "System password hashes"),
			scored(`\.gnupg/`, 90, "GPG keyring"),
			scored(`/etc/sudoers`, 90, "Sudoers configuration"),
			scored(`(\.git-credentials|\.netrc)$`, 90, "Stored credentials"),
			scored(`keychains?/`, 90, "Keychain"),
			scored(`\.(pem|key|p12|pfx)$`, 85, "Private key or certificate"),
			scored(`\.ssh/authorized_keys$`, 85, "SSH authorized keys"),
			scored(`\.kube/config$`, 85, "Kubernetes credentials"),
		},
		High: []ScoredPattern{
			scored(`\.config/gh/hosts\.ya?ml$`, 75, "GitHub CLI token"),
			scored(`(^|/)\.env(\.[a-z0-9]+)?$`, 70, "Environment secrets file"),
			scored(`(credentials|secrets?)(\.(json|ya?ml|toml|txt))?$`, 70, "Secrets file"),
			scored(`\.docker/config\.json$`, 70, "Docker registry credentials"),
			scored(`(\.npmrc|\.pypirc)$`, 65, "Package registry credentials"),
			scored(`\.(bash|zsh)_history$`, 65, "Shell history"),
			scored(`/etc/passwd$`, 60, "System accounts file"),
		},
		Medium: []ScoredPattern{
			scored(`\.ssh/`, 50, "SSH directory"),
			scored(`\.(bashrc|zshrc|bash_profile|profile|zprofile|zshenv)$`, 45, "Shell configuration"),
			scored(`/etc/hosts$`, 40, "Hosts file"),
			scored(`\.git/config$`, 35, "Git configuration"),
			scored(`/var/log/`, 30, "System logs"),
			scored(`\.(sqlite3?|db)$`, 30, "Local database"),
		},
	}
}

func defaultURLPatterns() TieredPatterns {
	return TieredPatterns{
		Critical: []ScoredPattern{
			scored(`(webhook\.site|requestbin|pipedream\.net|ngrok\.io|ngrok-free\.app|burpcollaborator|interact\.sh|\.oast\.)`, 90,
				"Data capture endpoint"),
			scored(`(pastebin\.com|transfer\.sh|paste\.ee|hastebin|0x0\.st|file\.io)`, 85, "Anonymous file sharing service"),
		},
		High: []ScoredPattern{
			scored(`discord(app)?\.com/api/webhooks`, 80, "Discord webhook"),
			scored(`\.(sh|ps1|exe|bat|bin|msi)([?#]|$)`, 65, "Executable or script download"),
			scored(`^https?://\d{1,3}(\.\d{1,3}){3}`, 60, "Raw IP address URL"),
		},
		Medium: []ScoredPattern{
			scored(`(raw\.githubusercontent\.com|gist\.githubusercontent\.com)`, 40, "Raw code hosting"),
			scored(`(bit\.ly|tinyurl\.com|t\.co/|is\.gd)`, 35, "URL shortener"),
			scored(`^http://`, 30, "Unencrypted HTTP"),
		},
	}
}

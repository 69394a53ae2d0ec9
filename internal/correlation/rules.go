package correlation

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

// Correlation type identifiers.
const (
	TypeExfiltration         = "exfiltration_read_webfetch"
	TypeRemoteCodeExecution  = "remote_code_execution"
	TypeExecutionPreparation = "execution_preparation"
	TypeGitReconnaissance    = "git_reconnaissance"
	TypeConfigPoisoning      = "config_poisoning"
	TypeDependencyConfusion  = "dependency_confusion"
	TypeSecretLogging        = "secret_logging"
	TypeTunnelEstablishment  = "tunnel_establishment"
	TypeCleanupAfterAttack   = "cleanup_after_attack"
)

// Rule pairs a trigger event with a later partner event. Symmetric rules
// also fire when the partner precedes the trigger.
type Rule struct {
	Type          string    `json:"type"`
	Trigger       EventType `json:"trigger"`
	Partner       EventType `json:"partner"`
	Window        float64   `json:"window_seconds"`
	Mitre         string    `json:"mitre"`
	ScoreModifier int       `json:"score_modifier"`
	Symmetric     bool      `json:"symmetric"`
	Description   string    `json:"description"`

	matchTrigger func(trigger SecurityEvent) bool
	matchPartner func(trigger, partner SecurityEvent) bool
}

// DefaultRules returns the built-in rule table in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Type: TypeExfiltration, Trigger: EventRead, Partner: EventWebFetch,
			Window: 300, Mitre: "T1048", ScoreModifier: 30, Symmetric: true,
			Description:  "File read combined with an external fetch",
			matchTrigger: hasTarget,
			matchPartner: func(_, p SecurityEvent) bool { return isNonLocalURL(p.Target) },
		},
		{
			Type: TypeRemoteCodeExecution, Trigger: EventWebFetch, Partner: EventBash,
			Window: 300, Mitre: "T1059", ScoreModifier: 35,
			Description:  "Fetched script executed in a shell",
			matchTrigger: func(t SecurityEvent) bool { return isScriptURL(t.Target) },
			matchPartner: func(t, p SecurityEvent) bool { return referencesURL(p.Target, t.Target) },
		},
		{
			Type: TypeExecutionPreparation, Trigger: EventWrite, Partner: EventBash,
			Window: 300, Mitre: "T1222", ScoreModifier: 25,
			Description:  "Script written then made executable",
			matchTrigger: func(t SecurityEvent) bool { return hasExt(t.Target, scriptExts) },
			matchPartner: func(t, p SecurityEvent) bool {
				return chmodExecRe.MatchString(p.Target) && referencesPath(p.Target, t.Target)
			},
		},
		{
			Type: TypeGitReconnaissance, Trigger: EventRead, Partner: EventWebFetch,
			Window: 300, Mitre: "T1592", ScoreModifier: 20, Symmetric: true,
			Description:  "Git remote configuration read alongside a GitHub fetch",
			matchTrigger: func(t SecurityEvent) bool { return strings.Contains(t.Target, ".git/config") },
			matchPartner: func(_, p SecurityEvent) bool {
				return strings.Contains(urlHost(p.Target), "github")
			},
		},
		{
			Type: TypeConfigPoisoning, Trigger: EventWrite, Partner: EventBash,
			Window: 60, Mitre: "T1546", ScoreModifier: 25,
			Description:  "Shell startup file modified then a shell command run",
			matchTrigger: func(t SecurityEvent) bool { return shellRCFiles[path.Base(t.Target)] },
			matchPartner: func(_, p SecurityEvent) bool { return hasTarget(p) },
		},
		{
			Type: TypeDependencyConfusion, Trigger: EventWebFetch, Partner: EventWrite,
			Window: 300, Mitre: "T1195", ScoreModifier: 30,
			Description:  "Package registry lookup followed by a manifest change",
			matchTrigger: func(t SecurityEvent) bool { return isRegistryURL(t.Target) },
			matchPartner: func(_, p SecurityEvent) bool { return manifestFiles[path.Base(p.Target)] },
		},
		{
			Type: TypeSecretLogging, Trigger: EventRead, Partner: EventWrite,
			Window: 300, Mitre: "T1074", ScoreModifier: 35,
			Description:  "Secrets file read then a log file written",
			matchTrigger: func(t SecurityEvent) bool { return secretFileRe.MatchString(t.Target) },
			matchPartner: func(_, p SecurityEvent) bool { return logFileRe.MatchString(p.Target) },
		},
		{
			Type: TypeTunnelEstablishment, Trigger: EventBash, Partner: EventWebFetch,
			Window: 60, Mitre: "T1572", ScoreModifier: 30,
			Description:  "SSH port forward opened then an external fetch",
			matchTrigger: func(t SecurityEvent) bool { return sshTunnelRe.MatchString(t.Target) },
			matchPartner: func(_, p SecurityEvent) bool { return isNonLocalURL(p.Target) },
		},
		{
			Type: TypeCleanupAfterAttack, Trigger: EventBash, Partner: EventBash,
			Window: 180, Mitre: "T1070", ScoreModifier: 40,
			Description:  "Destructive command followed by shell history clearing",
			matchTrigger: func(t SecurityEvent) bool { return destructiveRe.MatchString(t.Target) },
			matchPartner: func(_, p SecurityEvent) bool { return historyClearRe.MatchString(p.Target) },
		},
	}
}

// match reports whether trigger and partner satisfy the rule, ignoring the
// time window.
func (r Rule) match(trigger, partner SecurityEvent) bool {
	if trigger.EventType != r.Trigger || partner.EventType != r.Partner {
		return false
	}
	if !r.Symmetric && trigger.Timestamp > partner.Timestamp {
		return false
	}
	return r.matchTrigger(trigger) && r.matchPartner(trigger, partner)
}

var (
	scriptExts = []string{".sh", ".bash", ".zsh", ".py", ".rb", ".pl", ".ps1"}

	shellRCFiles = map[string]bool{
		".bashrc": true, ".bash_profile": true, ".bash_login": true, ".profile": true,
		".zshrc": true, ".zprofile": true, ".zshenv": true, ".zlogin": true, "config.fish": true,
	}

	manifestFiles = map[string]bool{
		"package.json": true, "requirements.txt": true, "pyproject.toml": true, "setup.py": true,
		"Pipfile": true, "Gemfile": true, "Cargo.toml": true, "go.mod": true, "pom.xml": true,
		"build.gradle": true, "composer.json": true,
	}

	registryHosts = []string{
		"registry.npmjs.org", "npmjs.com", "pypi.org", "files.pythonhosted.org",
		"rubygems.org", "crates.io", "proxy.golang.org", "pkg.go.dev", "repo.maven.apache.org",
		"packagist.org",
	}

	localHosts = map[string]bool{
		"localhost": true, "127.0.0.1": true, "0.0.0.0": true, "::1": true,
	}

	chmodExecRe    = regexp.MustCompile(`\bchmod\s+(-\w+\s+)*([ugoa]*\+[rwx]*x[rwx]*|0?[0-7]?[1357][0-7]{2})\b`)
	secretFileRe   = regexp.MustCompile(`(?i)((^|/)\.env(\.[\w-]+)?$|credential|secret|\.pem$|\.key$|id_rsa|id_ed25519|id_ecdsa|token|\.netrc$)`)
	logFileRe      = regexp.MustCompile(`(?i)(\.log$|/logs?/)`)
	sshTunnelRe    = regexp.MustCompile(`\bssh\b.*\s-[a-zA-Z]*[LRD]\b`)
	destructiveRe  = regexp.MustCompile(`\brm\s+(-\w+\s+)*-\w*(rf|fr)\w*\b|\bshred\b.*\s-\w*u`)
	historyClearRe = regexp.MustCompile(`\bhistory\s+-[cw]\b|\bunset\s+HISTFILE\b|\bHISTFILE=/dev/null|\bHISTSIZE=0\b|(>|\btruncate\b.*|\brm\b.*)\s*\S*_history\b`)
)

func hasTarget(e SecurityEvent) bool {
	return strings.TrimSpace(e.Target) != ""
}

// urlHost returns the lower-cased host of raw, or "" when raw is not a URL.
func urlHost(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func isNonLocalURL(raw string) bool {
	host := urlHost(raw)
	return host != "" && !localHosts[host]
}

func isRegistryURL(raw string) bool {
	host := urlHost(raw)
	if host == "" {
		return false
	}
	for _, h := range registryHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func urlPath(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return u.Path
}

func isScriptURL(raw string) bool {
	return urlHost(raw) != "" && hasExt(urlPath(raw), scriptExts)
}

func hasExt(p string, exts []string) bool {
	ext := strings.ToLower(path.Ext(p))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// referencesURL reports whether command mentions the URL or the file name
// it serves.
func referencesURL(command, rawURL string) bool {
	if strings.Contains(command, strings.TrimSpace(rawURL)) {
		return true
	}
	name := path.Base(urlPath(rawURL))
	return name != "." && name != "/" && name != "" && strings.Contains(command, name)
}

func referencesPath(command, target string) bool {
	if target == "" {
		return false
	}
	if strings.Contains(command, target) {
		return true
	}
	name := path.Base(target)
	return name != "." && name != "/" && strings.Contains(command, name)
}

// Package scope classifies file accesses relative to a project root.
package scope

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Verdict classifies a path access.
type Verdict string

const (
	InScope              Verdict = "in_scope"
	OutOfScopeAllowed    Verdict = "out_of_scope_allowed"
	OutOfScopeNeutral    Verdict = "out_of_scope_neutral"
	OutOfScopeSuspicious Verdict = "out_of_scope_suspicious"
	OutOfScopeSensitive  Verdict = "out_of_scope_sensitive"
)

// Operation is the kind of access being classified.
type Operation string

const (
	OpRead  Operation = "read"
	OpWrite Operation = "write"
)

const (
	// MaxModifier caps every out-of-scope score after write penalties.
	MaxModifier = 95

	NeutralReadScore  = 25
	NeutralWriteScore = 35

	DefaultSensitiveWritePenalty  = 15
	DefaultSuspiciousWritePenalty = 10

	otherHomeScore = 50
	rootHomeScore  = 55
)

// Result is the outcome of Detect.
type Result struct {
	Verdict       Verdict `json:"verdict"`
	Path          string  `json:"path"`
	ResolvedPath  string  `json:"resolved_path"`
	ProjectRoot   string  `json:"project_root"`
	ScoreModifier int     `json:"score_modifier"`
	Reason        string  `json:"reason"`
}

// Config extends the built-in location tables. Zero penalties select the
// defaults.
type Config struct {
	AllowedPaths           []string       `yaml:"allowed_paths" toml:"allowed_paths"`
	SensitivePaths         map[string]int `yaml:"sensitive_paths" toml:"sensitive_paths"`
	SensitiveWritePenalty  int            `yaml:"sensitive_write_penalty" toml:"sensitive_write_penalty"`
	SuspiciousWritePenalty int            `yaml:"suspicious_write_penalty" toml:"suspicious_write_penalty"`
}

// Detector classifies paths against a fixed project root. It holds no
// mutable state and is safe for concurrent use.
type Detector struct {
	root       string
	home       string
	sensitive  []PathPattern
	allowed    []string
	suspicious []PathPattern

	sensitivePenalty  int
	suspiciousPenalty int
}

// NewDetector resolves projectRoot once. A nil cfg uses the built-in tables.
func NewDetector(projectRoot string, cfg *Config) *Detector {
	home, _ := os.UserHomeDir()
	d := &Detector{
		home:              home,
		sensitive:         append([]PathPattern(nil), defaultSensitive...),
		allowed:           append([]string(nil), defaultAllowed...),
		suspicious:        append([]PathPattern(nil), defaultSuspicious...),
		sensitivePenalty:  DefaultSensitiveWritePenalty,
		suspiciousPenalty: DefaultSuspiciousWritePenalty,
	}
	if home != "" {
		d.home = resolve(home, "")
	}

	if cfg != nil {
		for _, p := range cfg.AllowedPaths {
			if p = strings.TrimSpace(p); p != "" {
				d.allowed = append(d.allowed, expandHome(p, home))
			}
		}
		extra := make([]string, 0, len(cfg.SensitivePaths))
		for p := range cfg.SensitivePaths {
			extra = append(extra, p)
		}
		sort.Strings(extra)
		for _, p := range extra {
			d.sensitive = append(d.sensitive, PathPattern{
				Substring: expandHome(p, home),
				Score:     cfg.SensitivePaths[p],
				Reason:    "Configured sensitive path " + p,
			})
		}
		if cfg.SensitiveWritePenalty > 0 {
			d.sensitivePenalty = cfg.SensitiveWritePenalty
		}
		if cfg.SuspiciousWritePenalty > 0 {
			d.suspiciousPenalty = cfg.SuspiciousWritePenalty
		}
	}

	root := projectRoot
	if abs, err := filepath.Abs(expandHome(root, home)); err == nil {
		root = abs
	}
	d.root = resolve(root, "")
	return d
}

// ProjectRoot returns the resolved project root.
func (d *Detector) ProjectRoot() string {
	return d.root
}

// IsInScope reports whether path resolves inside the project root.
func (d *Detector) IsInScope(path string) bool {
	return d.within(resolve(expandHome(path, d.home), d.root))
}

// Detect classifies an access to path. Classification order: in scope,
// sensitive, allowed, suspicious, neutral.
func (d *Detector) Detect(path string, op Operation) Result {
	resolved := resolve(expandHome(path, d.home), d.root)
	res := Result{
		Path:         path,
		ResolvedPath: resolved,
		ProjectRoot:  d.root,
	}
	write := op == OpWrite

	if d.within(resolved) {
		res.Verdict = InScope
		res.Reason = "Within project directory"
		return res
	}

	// Trailing separator lets directory patterns match the directory itself.
	candidate := resolved + "/"

	if p, ok := bestMatch(d.sensitive, candidate); ok {
		res.Verdict = OutOfScopeSensitive
		res.ScoreModifier = p.Score
		res.Reason = "Sensitive location: " + p.Reason
		if write {
			res.ScoreModifier = capModifier(p.Score + d.sensitivePenalty)
			res.Reason += " (write)"
		}
		return res
	}

	for _, a := range d.allowed {
		if strings.Contains(candidate, a) {
			res.Verdict = OutOfScopeAllowed
			res.Reason = "Allowed location: " + a
			return res
		}
	}

	if p, ok := d.suspiciousMatch(resolved, candidate); ok {
		res.Verdict = OutOfScopeSuspicious
		res.ScoreModifier = p.Score
		res.Reason = "Suspicious location: " + p.Reason
		if write {
			res.ScoreModifier = capModifier(p.Score + d.suspiciousPenalty)
			res.Reason += " (write)"
		}
		return res
	}

	res.Verdict = OutOfScopeNeutral
	res.ScoreModifier = NeutralReadScore
	if write {
		res.ScoreModifier = NeutralWriteScore
	}
	res.Reason = "Generic out-of-scope access"
	return res
}

func (d *Detector) within(resolved string) bool {
	if d.root == string(filepath.Separator) {
		return true
	}
	return resolved == d.root || strings.HasPrefix(resolved, d.root+string(filepath.Separator))
}

func (d *Detector) suspiciousMatch(resolved, candidate string) (PathPattern, bool) {
	best, found := bestMatch(d.suspicious, candidate)
	if score, ok := d.foreignHome(resolved); ok && (!found || score > best.Score) {
		best = PathPattern{Substring: resolved, Score: score, Reason: "Another user's home directory"}
		found = true
	}
	return best, found
}

// foreignHome reports whether resolved sits in a home directory other than
// the caller's.
func (d *Detector) foreignHome(resolved string) (int, bool) {
	if d.home != "" && (resolved == d.home || strings.HasPrefix(resolved, d.home+"/")) {
		return 0, false
	}
	if resolved == "/root" || strings.HasPrefix(resolved, "/root/") {
		return rootHomeScore, true
	}
	for _, base := range []string{"/home/", "/Users/"} {
		if rest, ok := strings.CutPrefix(resolved, base); ok && rest != "" {
			return otherHomeScore, true
		}
	}
	return 0, false
}

// bestMatch returns the highest-scoring pattern contained in candidate. Ties keep
// the earlier entry.
func bestMatch(patterns []PathPattern, candidate string) (PathPattern, bool) {
	var best PathPattern
	found := false
	for _, p := range patterns {
		if p.Substring == "" || !strings.Contains(candidate, p.Substring) {
			continue
		}
		if !found || p.Score > best.Score {
			best = p
			found = true
		}
	}
	return best, found
}

func capModifier(score int) int {
	if score > MaxModifier {
		return MaxModifier
	}
	return score
}

func expandHome(path, home string) string {
	if home == "" {
		return path
	}
	if path == "~" {
		return home
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(home, rest)
	}
	return path
}

// resolve makes path absolute against base and follows symlinks. When the
// full path cannot be resolved, the deepest existing ancestor is resolved and
// the remainder is appended lexically.
func resolve(path, base string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	if r, err := filepath.EvalSymlinks(path); err == nil {
		return r
	}

	clean := filepath.Clean(path)
	var tail []string
	dir := clean
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			return clean
		}
		tail = append(tail, filepath.Base(dir))
		dir = parent
		if r, err := filepath.EvalSymlinks(dir); err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				r = filepath.Join(r, tail[i])
			}
			return r
		}
	}
}

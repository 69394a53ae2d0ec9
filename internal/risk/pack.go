package risk

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Pack is a YAML file that extends the built-in pattern tables.
//
//	name: corp-extras
//	dangerous:
//	  - regex: '\bterraform\s+destroy\b'
//	    score: 80
//	    reason: Infrastructure teardown
//	    adjustments:
//	      - regex: '-target='
//	        delta: -30
//	safe:
//	  - regex: '--check\b'
//	    delta: -10
//	file_patterns:
//	  - tier: high
//	    regex: '\.vault-token$'
//	    score: 75
//	    reason: Vault token
type Pack struct {
	Name         string          `yaml:"name"`
	Description  string          `yaml:"description"`
	PackVersion  string          `yaml:"version"`
	Author       string          `yaml:"author"`
	Dangerous    []PackDangerous `yaml:"dangerous"`
	Safe         []PackSafe      `yaml:"safe"`
	FilePatterns []PackScored    `yaml:"file_patterns"`
	URLPatterns  []PackScored    `yaml:"url_patterns"`
}

type PackDangerous struct {
	Regex       string           `yaml:"regex"`
	Score       int              `yaml:"score"`
	Reason      string           `yaml:"reason"`
	Adjustments []PackAdjustment `yaml:"adjustments,omitempty"`
}

type PackAdjustment struct {
	Regex string `yaml:"regex"`
	Delta int    `yaml:"delta"`
}

type PackSafe struct {
	Regex  string `yaml:"regex"`
	Delta  int    `yaml:"delta"`
	Reason string `yaml:"reason,omitempty"`
}

type PackScored struct {
	Tier   Tier   `yaml:"tier"`
	Regex  string `yaml:"regex"`
	Score  int    `yaml:"score"`
	Reason string `yaml:"reason"`
}

// PackInfo summarizes a pack for listing.
type PackInfo struct {
	Name         string
	Description  string
	Version      string
	Author       string
	Enabled      bool
	Path         string
	PatternCount int
	Error        string
}

// LoadPacks reads every .yaml file in packsDir and appends its patterns to a
// copy of base. Files whose name starts with "_" are listed but disabled. A
// pack that fails to parse or compile is reported in its PackInfo.Error and
// contributes nothing. A missing directory is not an error.
func LoadPacks(packsDir string, base *Patterns) (*Patterns, []PackInfo, error) {
	if base == nil {
		base = DefaultPatterns()
	}

	entries, err := os.ReadDir(packsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return base, nil, nil
		}
		return nil, nil, err
	}

	result := base.Clone()
	var infos []PackInfo

	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) {
			continue
		}

		path := filepath.Join(packsDir, entry.Name())
		baseName := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		enabled := !strings.HasPrefix(baseName, "_")

		info := PackInfo{Name: baseName, Enabled: enabled, Path: path}

		pack, err := loadPack(path)
		if err != nil {
			info.Error = err.Error()
			infos = append(infos, info)
			continue
		}
		if pack.Name != "" {
			info.Name = pack.Name
		}
		info.Description = pack.Description
		info.Version = pack.PackVersion
		info.Author = pack.Author
		info.PatternCount = len(pack.Dangerous) + len(pack.Safe) + len(pack.FilePatterns) + len(pack.URLPatterns)

		if enabled {
			if err := mergePackInto(result, pack); err != nil {
				info.Error = err.Error()
			}
		}
		infos = append(infos, info)
	}

	return result, infos, nil
}

func loadPack(path string) (*Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var pack Pack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("failed to parse pack %s: %w", path, err)
	}
	return &pack, nil
}

// mergePackInto compiles every pattern first so a single bad regex leaves
// target untouched.
func mergePackInto(target *Patterns, pack *Pack) error {
	var dangerous []DangerousPattern
	for _, d := range pack.Dangerous {
		re, err := compileCI(d.Regex)
		if err != nil {
			return err
		}
		dp := DangerousPattern{Pattern: re, Score: d.Score, Reason: d.Reason}
		for _, a := range d.Adjustments {
			are, err := compileCI(a.Regex)
			if err != nil {
				return err
			}
			dp.Adjustments = append(dp.Adjustments, Adjustment{Pattern: are, Delta: a.Delta})
		}
		dangerous = append(dangerous, dp)
	}

	var safe []SafePattern
	for _, s := range pack.Safe {
		re, err := compileCI(s.Regex)
		if err != nil {
			return err
		}
		safe = append(safe, SafePattern{Pattern: re, Delta: s.Delta, Reason: s.Reason})
	}

	files, err := compileScored(pack.FilePatterns)
	if err != nil {
		return err
	}
	urls, err := compileScored(pack.URLPatterns)
	if err != nil {
		return err
	}

	target.Dangerous = append(target.Dangerous, dangerous...)
	target.Safe = append(target.Safe, safe...)
	for i, p := range files {
		target.Files.Add(pack.FilePatterns[i].Tier, p)
	}
	for i, p := range urls {
		target.URLs.Add(pack.URLPatterns[i].Tier, p)
	}
	return nil
}

func compileScored(in []PackScored) ([]ScoredPattern, error) {
	out := make([]ScoredPattern, 0, len(in))
	for _, s := range in {
		re, err := compileCI(s.Regex)
		if err != nil {
			return nil, err
		}
		out = append(out, ScoredPattern{Pattern: re, Score: s.Score, Reason: s.Reason})
	}
	return out, nil
}

func compileCI(expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return nil, fmt.Errorf("empty regex")
	}
	re, err := regexp.Compile(`(?i)` + expr)
	if err != nil {
		return nil, fmt.Errorf("invalid regex %q: %w", expr, err)
	}
	return re, nil
}

func isYAMLFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

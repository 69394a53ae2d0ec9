package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/OpenClaudeAgent/opencode-monitor/internal/correlation"
	"github.com/OpenClaudeAgent/opencode-monitor/internal/scope"
)

// EngineConfig tunes the scoring and correlation engine.
type EngineConfig struct {
	// BufferSize is the per-session correlation buffer capacity.
	BufferSize int `yaml:"buffer_size" toml:"buffer_size"`
	// Windows overrides correlation windows in seconds, keyed by correlation type.
	Windows map[string]float64 `yaml:"windows" toml:"windows"`
	// ProjectRoot enables scope analysis when set.
	ProjectRoot string       `yaml:"project_root" toml:"project_root"`
	Scope       scope.Config `yaml:"scope" toml:"scope"`
}

// DefaultEngineConfig returns the built-in engine settings.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		BufferSize: correlation.DefaultBufferSize,
		Windows: map[string]float64{
			correlation.TypeDependencyConfusion: 300,
			correlation.TypeSecretLogging:       300,
		},
		Scope: scope.Config{
			SensitiveWritePenalty:  scope.DefaultSensitiveWritePenalty,
			SuspiciousWritePenalty: scope.DefaultSuspiciousWritePenalty,
		},
	}
}

// LoadEngineConfig reads a YAML (.yaml, .yml) or TOML (.toml) file over the
// defaults. A missing file is not an error.
func LoadEngineConfig(path string) (EngineConfig, error) {
	cfg := DefaultEngineConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	var file EngineConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), &file)
		if err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return cfg, fmt.Errorf("parsing config %s: unknown keys %s", path, strings.Join(keys, ", "))
		}
	default:
		return cfg, fmt.Errorf("unsupported config format %q (want .yaml, .yml or .toml)", filepath.Ext(path))
	}

	cfg.merge(file)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// merge overlays the non-zero settings of o.
func (c *EngineConfig) merge(o EngineConfig) {
	if o.BufferSize != 0 {
		c.BufferSize = o.BufferSize
	}
	for k, v := range o.Windows {
		c.Windows[k] = v
	}
	if o.ProjectRoot != "" {
		c.ProjectRoot = o.ProjectRoot
	}
	c.Scope.AllowedPaths = append(c.Scope.AllowedPaths, o.Scope.AllowedPaths...)
	if len(o.Scope.SensitivePaths) > 0 {
		if c.Scope.SensitivePaths == nil {
			c.Scope.SensitivePaths = make(map[string]int, len(o.Scope.SensitivePaths))
		}
		for k, v := range o.Scope.SensitivePaths {
			c.Scope.SensitivePaths[k] = v
		}
	}
	if o.Scope.SensitiveWritePenalty != 0 {
		c.Scope.SensitiveWritePenalty = o.Scope.SensitiveWritePenalty
	}
	if o.Scope.SuspiciousWritePenalty != 0 {
		c.Scope.SuspiciousWritePenalty = o.Scope.SuspiciousWritePenalty
	}
}

// Validate checks ranges and correlation type names.
func (c EngineConfig) Validate() error {
	var problems []string
	if c.BufferSize < 0 {
		problems = append(problems, fmt.Sprintf("buffer_size must be positive, got %d", c.BufferSize))
	}

	known := make(map[string]bool)
	for _, r := range correlation.DefaultRules() {
		known[r.Type] = true
	}
	types := make([]string, 0, len(c.Windows))
	for k := range c.Windows {
		types = append(types, k)
	}
	sort.Strings(types)
	for _, k := range types {
		if !known[k] {
			problems = append(problems, fmt.Sprintf("windows: unknown correlation type %q", k))
		} else if c.Windows[k] <= 0 {
			problems = append(problems, fmt.Sprintf("windows.%s must be positive", k))
		}
	}

	paths := make([]string, 0, len(c.Scope.SensitivePaths))
	for p := range c.Scope.SensitivePaths {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		if s := c.Scope.SensitivePaths[p]; s < 0 || s > scope.MaxModifier {
			problems = append(problems, fmt.Sprintf("scope.sensitive_paths[%s]: score %d outside 0..%d", p, s, scope.MaxModifier))
		}
	}
	if c.Scope.SensitiveWritePenalty < 0 || c.Scope.SuspiciousWritePenalty < 0 {
		problems = append(problems, "scope write penalties must not be negative")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

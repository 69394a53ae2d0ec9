package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/OpenClaudeAgent/opencode-monitor/internal/config"
	"github.com/OpenClaudeAgent/opencode-monitor/internal/correlation"
	"github.com/OpenClaudeAgent/opencode-monitor/internal/risk"
	"github.com/OpenClaudeAgent/opencode-monitor/internal/scope"
)

// engine bundles everything the commands build from configuration.
type engine struct {
	cfg      *config.Config
	patterns *risk.Patterns
	packs    []risk.PackInfo
}

func loadEngine() (*engine, error) {
	cfg, err := config.Load(configPath, logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	patterns, infos, err := risk.LoadPacks(cfg.PacksDir, risk.DefaultPatterns())
	if err != nil {
		return nil, fmt.Errorf("failed to load packs: %w", err)
	}
	for _, info := range infos {
		if info.Error != "" {
			slog.Warn("pattern pack skipped", "pack", info.Path, "error", info.Error)
		}
	}

	return &engine{cfg: cfg, patterns: patterns, packs: infos}, nil
}

func (e *engine) correlator() *correlation.EventCorrelator {
	return correlation.NewEventCorrelator(e.cfg.Engine.BufferSize, e.cfg.Engine.Windows)
}

// detector builds a scope detector for root, falling back to the configured
// project root. It returns nil when neither is set.
func (e *engine) detector(root string) *scope.Detector {
	if root == "" {
		root = e.cfg.Engine.ProjectRoot
	}
	if root == "" {
		return nil
	}
	return scope.NewDetector(root, &e.cfg.Engine.Scope)
}

// fancy reports whether w is a terminal that gets emoji output.
func fancy(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func levelIcon(w io.Writer, level risk.Level) string {
	if !fancy(w) {
		return fmt.Sprintf("[%-8s]", level)
	}
	switch level {
	case risk.LevelCritical:
		return "\xf0\x9f\x9b\x91" // stop sign
	case risk.LevelHigh:
		return "\xe2\x9a\xa0\xef\xb8\x8f " // warning
	case risk.LevelMedium:
		return "\xf0\x9f\x94\x8d" // magnifying glass
	default:
		return "\xe2\x9c\x85" // check mark
	}
}

func passIcon(w io.Writer, pass bool) string {
	if !fancy(w) {
		if pass {
			return "PASS"
		}
		return "FAIL"
	}
	if pass {
		return "\xe2\x9c\x85"
	}
	return "\xe2\x9d\x8c"
}

package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logPath    string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "opencode-monitor",
	Short: "opencode-monitor - behavioral risk scoring for AI coding agents",
	Long: `opencode-monitor scores the actions of an AI coding agent (shell commands,
file reads and writes, web fetches) for security risk, classifies file access
relative to the project directory, and correlates events within a session to
detect multi-step attack patterns such as read-then-exfiltrate.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(newLogger(verbose))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file, YAML or TOML (default: ~/.opencode-monitor/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logPath, "log", "", "Path to audit log file (default: ~/.opencode-monitor/audit.jsonl)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging on stderr")
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func Execute() error {
	return rootCmd.Execute()
}

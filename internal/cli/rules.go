package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenClaudeAgent/opencode-monitor/internal/config"
	"github.com/OpenClaudeAgent/opencode-monitor/internal/correlation"
	"github.com/OpenClaudeAgent/opencode-monitor/internal/mitre"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List correlation rules with their windows and ATT&CK techniques",
	RunE:  rulesCommand,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}

func rulesCommand(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.Load(configPath, logPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	c := correlation.NewEventCorrelator(cfg.Engine.BufferSize, cfg.Engine.Windows)

	fmt.Fprintln(out, "Correlation Rules:")
	fmt.Fprintln(out, strings.Repeat("─", 72))
	for _, r := range c.Rules() {
		order := "->"
		if r.Symmetric {
			order = "<>"
		}
		fmt.Fprintf(out, "  %-26s %-8s %s %-8s  window %4.0fs  +%d\n", r.Type, r.Trigger, order, r.Partner, r.Window, r.ScoreModifier)
		fmt.Fprintf(out, "       %s %s: %s\n", r.Mitre, mitre.Name(r.Mitre), r.Description)
	}
	fmt.Fprintln(out, strings.Repeat("─", 72))
	fmt.Fprintf(out, "\nBuffer size per session: %d\n", cfg.Engine.BufferSize)
	return nil
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenClaudeAgent/opencode-monitor/internal/scope"
)

var (
	scopeRoot  string
	scopeWrite bool
)

var scopeCmd = &cobra.Command{
	Use:   "scope <path>...",
	Short: "Classify paths relative to a project directory",
	Long: `Classify file accesses relative to a project directory: in scope, or out
of scope and allowed, neutral, suspicious or sensitive.

Examples:
  opencode-monitor scope --root ~/src/app ~/.ssh/id_rsa
  opencode-monitor scope --root . --write /etc/hosts ./src/main.go`,
	Args: cobra.MinimumNArgs(1),
	RunE: scopeCommand,
}

func init() {
	scopeCmd.Flags().StringVar(&scopeRoot, "root", "", "Project root (default: project_root in config)")
	scopeCmd.Flags().BoolVar(&scopeWrite, "write", false, "Classify as writes")
	rootCmd.AddCommand(scopeCmd)
}

func scopeCommand(cmd *cobra.Command, args []string) error {
	eng, err := loadEngine()
	if err != nil {
		return err
	}
	d := eng.detector(scopeRoot)
	if d == nil {
		return fmt.Errorf("no project root: pass --root or set project_root in the config file")
	}

	op := scope.OpRead
	if scopeWrite {
		op = scope.OpWrite
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Project root: %s\n\n", d.ProjectRoot())
	for _, path := range args {
		r := d.Detect(path, op)
		fmt.Fprintf(out, "  %-24s +%-3d %s\n", r.Verdict, r.ScoreModifier, path)
		if r.ResolvedPath != path {
			fmt.Fprintf(out, "       -> %s\n", r.ResolvedPath)
		}
		fmt.Fprintf(out, "       %s\n", r.Reason)
	}
	return nil
}

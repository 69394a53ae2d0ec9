package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenClaudeAgent/opencode-monitor/internal/config"
	"github.com/OpenClaudeAgent/opencode-monitor/internal/logger"
	"github.com/OpenClaudeAgent/opencode-monitor/internal/risk"
)

var (
	logFilterLevel      string
	logFilterSession    string
	logCorrelationsOnly bool
	logLast             int
	logSummary          bool
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View and filter the audit log",
	Long: `View the opencode-monitor audit log with filtering and summary options.

Examples:
  opencode-monitor log                        # Show all entries
  opencode-monitor log --last 20              # Show last 20 entries
  opencode-monitor log --level high           # Show events scored high or above
  opencode-monitor log --correlations         # Show only correlations
  opencode-monitor log --session ses_123      # Show a single session
  opencode-monitor log --summary              # Show summary stats`,
	RunE: logCommand,
}

func init() {
	logCmd.Flags().StringVar(&logFilterLevel, "level", "", "Minimum event level (low, medium, high, critical)")
	logCmd.Flags().StringVar(&logFilterSession, "session", "", "Filter by session ID")
	logCmd.Flags().BoolVar(&logCorrelationsOnly, "correlations", false, "Show only correlation entries")
	logCmd.Flags().IntVar(&logLast, "last", 0, "Show last N entries")
	logCmd.Flags().BoolVar(&logSummary, "summary", false, "Show summary statistics")
	rootCmd.AddCommand(logCmd)
}

func logCommand(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.Load(configPath, logPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	minRank := 0
	if logFilterLevel != "" {
		minRank = risk.Level(strings.ToLower(logFilterLevel)).Rank()
		if minRank == 0 {
			return fmt.Errorf("unknown level %q", logFilterLevel)
		}
	}

	records, skipped, err := logger.ReadRecords(cfg.LogPath)
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}
	if skipped > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: skipped %d malformed line(s)\n", skipped)
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No audit log entries found.")
		return nil
	}

	if logSummary {
		printSummary(out, records)
		return nil
	}

	filtered := filterRecords(records, minRank)
	if logLast > 0 && logLast < len(filtered) {
		filtered = filtered[len(filtered)-logLast:]
	}

	printRecords(out, filtered)
	return nil
}

func filterRecords(records []logger.AuditRecord, minRank int) []logger.AuditRecord {
	var filtered []logger.AuditRecord
	for _, r := range records {
		if logFilterSession != "" && r.SessionID != logFilterSession {
			continue
		}
		if logCorrelationsOnly && r.Kind != logger.KindCorrelation {
			continue
		}
		if minRank > 0 && r.Kind == logger.KindEvent && r.Event != nil && risk.Level(r.Event.Level).Rank() < minRank {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

func printRecords(out io.Writer, records []logger.AuditRecord) {
	for _, r := range records {
		ts := formatTimestamp(r.Timestamp)
		switch {
		case r.Event != nil:
			e := r.Event
			fmt.Fprintf(out, "%s %s [%s] %s %s\n", levelIcon(out, risk.Level(e.Level)), ts, r.SessionID, e.EventType, e.Target)
			fmt.Fprintf(out, "     Score: %d (%s) %s\n", e.Score, e.Level, e.Reason)
			if e.Scope != nil {
				fmt.Fprintf(out, "     Scope: %s %s\n", e.Scope.Verdict, e.Scope.Reason)
			}
		case r.Correlation != nil:
			c := r.Correlation
			fmt.Fprintf(out, "%s %s [%s] CORRELATION %s (%s %s)\n", levelIcon(out, risk.LevelCritical), ts, r.SessionID, c.Type, c.Mitre, c.MitreName)
			fmt.Fprintf(out, "     %s\n", c.Description)
			fmt.Fprintf(out, "     +%d confidence %.2f, %.0fs apart\n", c.ScoreModifier, c.Confidence, c.TimeDelta)
		default:
			fmt.Fprintf(out, "? %s [%s] %s\n", ts, r.SessionID, r.Kind)
		}
		fmt.Fprintln(out)
	}
}

func printSummary(out io.Writer, all []logger.AuditRecord) {
	levels := map[string]int{}
	types := map[string]int{}
	sessions := map[string]bool{}
	events := 0
	var correlations []logger.AuditRecord

	for _, r := range all {
		sessions[r.SessionID] = true
		switch r.Kind {
		case logger.KindEvent:
			events++
			if r.Event != nil {
				levels[r.Event.Level]++
			}
		case logger.KindCorrelation:
			correlations = append(correlations, r)
			if r.Correlation != nil {
				types[r.Correlation.Type]++
			}
		}
	}

	fmt.Fprintln(out, "═══════════════════════════════════════════")
	fmt.Fprintln(out, "  opencode-monitor Audit Summary")
	fmt.Fprintln(out, "═══════════════════════════════════════════")
	fmt.Fprintf(out, "  Sessions:        %d\n", len(sessions))
	fmt.Fprintf(out, "  Events:          %d\n", events)
	fmt.Fprintf(out, "  critical:        %d\n", levels[string(risk.LevelCritical)])
	fmt.Fprintf(out, "  high:            %d\n", levels[string(risk.LevelHigh)])
	fmt.Fprintf(out, "  medium:          %d\n", levels[string(risk.LevelMedium)])
	fmt.Fprintf(out, "  low:             %d\n", levels[string(risk.LevelLow)])
	fmt.Fprintf(out, "  Correlations:    %d\n", len(correlations))
	fmt.Fprintln(out, "═══════════════════════════════════════════")

	fmt.Fprintf(out, "  First entry:     %s\n", formatTimestamp(all[0].Timestamp))
	fmt.Fprintf(out, "  Last entry:      %s\n", formatTimestamp(all[len(all)-1].Timestamp))

	if len(types) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "  Correlations by type:")
		names := make([]string, 0, len(types))
		for name := range types {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "    %-26s %d\n", name, types[name])
		}

		fmt.Fprintln(out)
		fmt.Fprintln(out, "  Recent correlations:")
		limit := len(correlations)
		if limit > 10 {
			limit = 10
		}
		for _, r := range correlations[len(correlations)-limit:] {
			if r.Correlation == nil {
				continue
			}
			fmt.Fprintf(out, "    %s %s %s -> %s\n", formatTimestamp(r.Timestamp), r.Correlation.Type,
				r.Correlation.SourceTarget, r.Correlation.RelatedTarget)
		}
	}

	fmt.Fprintln(out)
}

func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

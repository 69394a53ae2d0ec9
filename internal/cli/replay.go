package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/OpenClaudeAgent/opencode-monitor/internal/logger"
	"github.com/OpenClaudeAgent/opencode-monitor/internal/metrics"
	"github.com/OpenClaudeAgent/opencode-monitor/internal/mitre"
	"github.com/OpenClaudeAgent/opencode-monitor/internal/monitor"
	"github.com/OpenClaudeAgent/opencode-monitor/internal/risk"
)

var (
	replayRoot        string
	replayNoAudit     bool
	replayMetricsFile string
	replayMinLevel    string
)

var replayCmd = &cobra.Command{
	Use:   "replay [file|-]",
	Short: "Score and correlate a JSONL stream of agent tool calls",
	Long: `Read agent tool calls, one JSON object per line, score each one, run the
session correlator over them and append the results to the audit log.

Each line looks like:
  {"tool":"read","args":{"filePath":"/app/.env"},"session_id":"ses_1","timestamp":1700000000}

Examples:
  opencode-monitor replay calls.jsonl
  tail -f calls.jsonl | opencode-monitor replay --root ~/src/app
  opencode-monitor replay calls.jsonl --no-audit --metrics-file /var/lib/node_exporter/ocm.prom`,
	Args: cobra.MaximumNArgs(1),
	RunE: replayCommand,
}

func init() {
	replayCmd.Flags().StringVar(&replayRoot, "root", "", "Project root for scope analysis (default: project_root in config)")
	replayCmd.Flags().BoolVar(&replayNoAudit, "no-audit", false, "Do not write to the audit log")
	replayCmd.Flags().StringVar(&replayMetricsFile, "metrics-file", "", "Write Prometheus counters to this textfile when done")
	replayCmd.Flags().StringVar(&replayMinLevel, "min-level", "medium", "Minimum level of events to print (low, medium, high, critical)")
	rootCmd.AddCommand(replayCmd)
}

func replayCommand(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	minRank := risk.Level(replayMinLevel).Rank()
	if minRank == 0 {
		return fmt.Errorf("unknown level %q", replayMinLevel)
	}

	eng, err := loadEngine()
	if err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open tool calls: %w", err)
		}
		defer f.Close()
		in = f
	}

	reg := prometheus.NewRegistry()
	opts := []monitor.Option{
		monitor.WithLogger(slog.Default()),
		monitor.WithPatterns(eng.patterns),
		monitor.WithCorrelator(eng.correlator()),
		monitor.WithMetrics(metrics.NewMetrics(reg)),
	}
	if d := eng.detector(replayRoot); d != nil {
		opts = append(opts, monitor.WithScope(d))
	}
	if !replayNoAudit {
		auditLog, err := logger.New(eng.cfg.LogPath)
		if err != nil {
			return fmt.Errorf("failed to open audit log: %w", err)
		}
		defer auditLog.Close()
		opts = append(opts, monitor.WithAudit(auditLog))
	}
	mon := monitor.New(opts...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	stats, err := mon.ProcessStream(ctx, in, func(res monitor.Result) {
		if res.Risk.Level.Rank() >= minRank {
			fmt.Fprintf(out, "%s [%s] %s %s\n", levelIcon(out, res.Risk.Level), res.Event.SessionID, res.Event.EventType, res.Event.Target)
			fmt.Fprintf(out, "     Score: %d (%s) %s\n", res.Risk.Score, res.Risk.Level, res.Risk.Reason)
			if res.Scope != nil {
				printScope(out, res.Scope)
			}
		}
		for _, c := range res.Correlations {
			fmt.Fprintf(out, "%s [%s] CORRELATION %s (%s %s)\n", levelIcon(out, risk.LevelCritical), c.SessionID, c.CorrelationType, c.MitreTechnique, mitre.Name(c.MitreTechnique))
			fmt.Fprintf(out, "     %s\n", c.Description)
			fmt.Fprintf(out, "     +%d confidence %.2f\n", c.ScoreModifier, c.Confidence)
		}
	})

	printReplaySummary(out, stats)

	if replayMetricsFile != "" {
		if werr := metrics.WriteTextfile(replayMetricsFile, reg); werr != nil {
			slog.Warn("failed to write metrics", "path", replayMetricsFile, "error", werr)
		}
	}
	return err
}

func printReplaySummary(out io.Writer, stats monitor.Stats) {
	fmt.Fprintln(out, "═══════════════════════════════════════════")
	fmt.Fprintln(out, "  Replay Summary")
	fmt.Fprintln(out, "═══════════════════════════════════════════")
	fmt.Fprintf(out, "  Processed:       %d\n", stats.Processed)
	fmt.Fprintf(out, "  Skipped tools:   %d\n", stats.Skipped)
	fmt.Fprintf(out, "  Invalid lines:   %d\n", stats.Invalid)

	total := 0
	types := make([]string, 0, len(stats.Correlations))
	for t, n := range stats.Correlations {
		types = append(types, t)
		total += n
	}
	sort.Strings(types)
	fmt.Fprintf(out, "  Correlations:    %d\n", total)
	for _, t := range types {
		fmt.Fprintf(out, "    %-26s %d\n", t, stats.Correlations[t])
	}
	fmt.Fprintln(out, "═══════════════════════════════════════════")
}

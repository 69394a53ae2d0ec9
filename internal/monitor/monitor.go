// Package monitor turns agent tool calls into scored security events, feeds
// them to the correlator and records the outcome.
package monitor

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/OpenClaudeAgent/opencode-monitor/internal/correlation"
	"github.com/OpenClaudeAgent/opencode-monitor/internal/extract"
	"github.com/OpenClaudeAgent/opencode-monitor/internal/logger"
	"github.com/OpenClaudeAgent/opencode-monitor/internal/metrics"
	"github.com/OpenClaudeAgent/opencode-monitor/internal/mitre"
	"github.com/OpenClaudeAgent/opencode-monitor/internal/obfuscation"
	"github.com/OpenClaudeAgent/opencode-monitor/internal/risk"
	"github.com/OpenClaudeAgent/opencode-monitor/internal/scope"
)

// DefaultSessionID is used for tool calls that carry no session.
const DefaultSessionID = "default"

// ErrNoTarget is returned for monitored tool calls without a path, command or URL.
var ErrNoTarget = errors.New("tool call has no target")

// ToolCall is one raw agent tool invocation. A nil Timestamp means the call
// carried none and the monitor's clock is used; zero is a valid time.
type ToolCall struct {
	Tool      string         `json:"tool"`
	Args      map[string]any `json:"args"`
	SessionID string         `json:"session_id"`
	Timestamp *float64       `json:"timestamp,omitempty"`
}

// At returns a Timestamp value for ts in Unix seconds.
func At(ts float64) *float64 {
	return &ts
}

// Result is the outcome of processing one tool call.
type Result struct {
	Skipped      bool                      `json:"skipped,omitempty"`
	Tool         string                    `json:"tool"`
	Event        correlation.SecurityEvent `json:"event"`
	Risk         risk.RiskResult           `json:"risk"`
	Scope        *scope.Result             `json:"scope,omitempty"`
	Paths        []string                  `json:"paths,omitempty"`
	Obfuscation  *obfuscation.Report       `json:"obfuscation,omitempty"`
	Correlations []correlation.Correlation `json:"correlations,omitempty"`
}

// AuditSink receives scored events and correlations.
type AuditSink interface {
	LogEvent(rec logger.AuditRecord) error
	LogCorrelation(rec logger.AuditRecord) (bool, error)
}

// Monitor is the ingestion pipeline. It is safe for concurrent use when its
// audit sink is.
type Monitor struct {
	commands   *risk.CommandScorer
	paths      *risk.PathScorer
	extractor  *extract.PathExtractor
	scope      *scope.Detector
	correlator *correlation.EventCorrelator
	audit      AuditSink
	metrics    *metrics.Metrics
	log        *slog.Logger
	now        func() time.Time
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		m.log = l
	}
}

// WithPatterns replaces the built-in scoring tables, e.g. after merging packs.
func WithPatterns(p *risk.Patterns) Option {
	return func(m *Monitor) {
		m.commands = risk.NewCommandScorer(p)
		m.paths = risk.NewPathScorer(p)
	}
}

// WithScope enables scope analysis of file events.
func WithScope(d *scope.Detector) Option {
	return func(m *Monitor) {
		m.scope = d
	}
}

// WithCorrelator sets the correlator, e.g. one with custom windows.
func WithCorrelator(c *correlation.EventCorrelator) Option {
	return func(m *Monitor) {
		m.correlator = c
	}
}

// WithAudit records every event and correlation to sink.
func WithAudit(sink AuditSink) Option {
	return func(m *Monitor) {
		m.audit = sink
	}
}

// WithMetrics sets the counters to update.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Monitor) {
		m.metrics = mt
	}
}

// New creates a Monitor. Defaults: built-in patterns, no scope analysis, a
// default correlator, no audit sink, private metrics and slog.Default().
func New(opts ...Option) *Monitor {
	m := &Monitor{
		commands:  risk.NewCommandScorer(nil),
		paths:     risk.NewPathScorer(nil),
		extractor: extract.NewPathExtractor(),
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.correlator == nil {
		m.correlator = correlation.NewEventCorrelator(0, nil)
	}
	if m.metrics == nil {
		m.metrics = metrics.NewMetrics(nil)
	}
	return m
}

// Correlator returns the correlator fed by this monitor.
func (m *Monitor) Correlator() *correlation.EventCorrelator {
	return m.correlator
}

// EventTypeForTool maps a tool name to the event type it produces.
func EventTypeForTool(tool string) (correlation.EventType, bool) {
	switch strings.ToLower(tool) {
	case "read", "glob", "grep", "list":
		return correlation.EventRead, true
	case "write", "edit", "patch":
		return correlation.EventWrite, true
	case "bash":
		return correlation.EventBash, true
	case "webfetch":
		return correlation.EventWebFetch, true
	}
	return "", false
}

// Process scores one tool call, correlates it with the session history and
// records the outcome. Unmonitored tools return a skipped Result. The Result
// is complete even when recording fails.
func (m *Monitor) Process(call ToolCall) (Result, error) {
	res := Result{Tool: call.Tool}
	eventType, ok := EventTypeForTool(call.Tool)
	if !ok {
		res.Skipped = true
		m.metrics.ObserveSkipped()
		m.log.Debug("tool not monitored", "tool", call.Tool)
		return res, nil
	}

	target := targetFor(eventType, call.Args)
	if rep := obfuscation.Inspect(target); !rep.Clean() {
		res.Obfuscation = &rep
		target = rep.Normalized
	}
	if strings.TrimSpace(target) == "" {
		return res, fmt.Errorf("%s: %w", call.Tool, ErrNoTarget)
	}

	sessionID := call.SessionID
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	ts := float64(m.now().UnixNano()) / 1e9
	if call.Timestamp != nil {
		ts = *call.Timestamp
	}

	res.Paths = m.extractor.ExtractFromTool(call.Tool, call.Args)
	if len(res.Paths) == 0 && (eventType == correlation.EventRead || eventType == correlation.EventWrite) {
		res.Paths = []string{target}
	}
	if res.Obfuscation != nil {
		for i, p := range res.Paths {
			res.Paths[i] = obfuscation.Inspect(p).Normalized
		}
	}

	res.Risk, res.Scope = m.score(eventType, target)
	if o := res.Obfuscation; o != nil {
		if o.Score() > res.Risk.Score {
			res.Risk = risk.NewResult(o.Score(), o.Reason())
		} else {
			res.Risk = risk.NewResult(res.Risk.Score, res.Risk.Reason+"; "+o.Reason())
		}
		m.log.Warn("obfuscated tool call",
			"session", sessionID,
			"tool", call.Tool,
			"kinds", o.Kinds())
	}
	res.Event = correlation.SecurityEvent{
		EventType: eventType,
		Target:    target,
		SessionID: sessionID,
		Timestamp: ts,
		RiskScore: res.Risk.Score,
	}
	res.Correlations = m.correlator.AddEvent(res.Event)

	m.metrics.ObserveEvent(string(eventType), string(res.Risk.Level))
	if res.Scope != nil {
		m.metrics.ObserveScope(string(res.Scope.Verdict))
	}
	m.log.Debug("event scored",
		"session", sessionID,
		"type", eventType,
		"score", res.Risk.Score,
		"level", res.Risk.Level,
		"reason", res.Risk.Reason)

	for _, c := range res.Correlations {
		m.metrics.ObserveCorrelation(c.CorrelationType)
		m.log.Warn("correlation detected",
			"session", c.SessionID,
			"type", c.CorrelationType,
			"mitre", c.MitreTechnique,
			"confidence", c.Confidence)
	}

	return res, m.record(res)
}

func (m *Monitor) score(eventType correlation.EventType, target string) (risk.RiskResult, *scope.Result) {
	switch eventType {
	case correlation.EventBash:
		return m.commands.AnalyzeCommand(target, "bash").Result(), nil
	case correlation.EventWebFetch:
		return m.paths.AnalyzeURL(target), nil
	}

	write := eventType == correlation.EventWrite
	result := m.paths.AnalyzeFilePath(target, write)
	if m.scope == nil {
		return result, nil
	}

	op := scope.OpRead
	if write {
		op = scope.OpWrite
	}
	sr := m.scope.Detect(target, op)
	if sr.ScoreModifier > result.Score {
		result = risk.NewResult(sr.ScoreModifier, sr.Reason)
	}
	return result, &sr
}

func (m *Monitor) record(res Result) error {
	if m.audit == nil {
		return nil
	}

	ev := &logger.EventRecord{
		Tool:      res.Tool,
		EventType: string(res.Event.EventType),
		Target:    res.Event.Target,
		Score:     res.Risk.Score,
		Level:     string(res.Risk.Level),
		Reason:    res.Risk.Reason,
		Paths:     res.Paths,
	}
	if res.Obfuscation != nil {
		ev.Obfuscation = res.Obfuscation.Kinds()
	}
	if res.Scope != nil {
		ev.Scope = &logger.ScopeRecord{
			Verdict:       string(res.Scope.Verdict),
			ResolvedPath:  res.Scope.ResolvedPath,
			ScoreModifier: res.Scope.ScoreModifier,
			Reason:        res.Scope.Reason,
		}
	}
	var errs []error
	if err := m.audit.LogEvent(logger.AuditRecord{
		SessionID: res.Event.SessionID,
		EventTime: res.Event.Timestamp,
		Event:     ev,
	}); err != nil {
		errs = append(errs, fmt.Errorf("recording event: %w", err))
	}

	for _, c := range res.Correlations {
		_, err := m.audit.LogCorrelation(logger.AuditRecord{
			SessionID:   c.SessionID,
			EventTime:   c.RelatedEvent.Timestamp,
			Correlation: correlationRecord(c),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("recording correlation %s: %w", c.CorrelationType, err))
		}
	}
	return errors.Join(errs...)
}

func correlationRecord(c correlation.Correlation) *logger.CorrelationRecord {
	delta, _ := c.Context[correlation.CtxTimeDelta].(float64)
	return &logger.CorrelationRecord{
		CorrelationID: c.ID,
		Type:          c.CorrelationType,
		Mitre:         c.MitreTechnique,
		MitreName:     mitre.Name(c.MitreTechnique),
		ScoreModifier: c.ScoreModifier,
		Confidence:    c.Confidence,
		Description:   c.Description,
		SourceTarget:  c.SourceEvent.Target,
		RelatedTarget: c.RelatedEvent.Target,
		SourceTime:    c.SourceEvent.Timestamp,
		RelatedTime:   c.RelatedEvent.Timestamp,
		TimeDelta:     delta,
	}
}

// targetFor picks the argument that identifies what the tool acted on.
func targetFor(eventType correlation.EventType, args map[string]any) string {
	var keys []string
	switch eventType {
	case correlation.EventBash:
		keys = []string{"command"}
	case correlation.EventWebFetch:
		keys = []string{"url"}
	default:
		keys = []string{"filePath", "file_path", "path", "pattern"}
	}
	for _, k := range keys {
		if s, ok := args[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

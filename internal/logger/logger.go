package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/OpenClaudeAgent/opencode-monitor/internal/redact"
)

// Record kinds.
const (
	KindEvent       = "event"
	KindCorrelation = "correlation"
)

const (
	defaultMaxLogBytes = 10 << 20
	dedupeEntries      = 4096
)

// ScopeRecord is the scope classification attached to file events.
type ScopeRecord struct {
	Verdict       string `json:"verdict"`
	ResolvedPath  string `json:"resolved_path"`
	ScoreModifier int    `json:"score_modifier"`
	Reason        string `json:"reason"`
}

// EventRecord is one scored tool call.
type EventRecord struct {
	Tool        string       `json:"tool"`
	EventType   string       `json:"event_type"`
	Target      string       `json:"target"`
	Score       int          `json:"score"`
	Level       string       `json:"level"`
	Reason      string       `json:"reason"`
	Paths       []string     `json:"paths,omitempty"`
	Scope       *ScopeRecord `json:"scope,omitempty"`
	Obfuscation []string     `json:"obfuscation,omitempty"`
}

// CorrelationRecord is one detected correlation.
type CorrelationRecord struct {
	CorrelationID string  `json:"correlation_id"`
	Type          string  `json:"type"`
	Mitre         string  `json:"mitre"`
	MitreName     string  `json:"mitre_name,omitempty"`
	ScoreModifier int     `json:"score_modifier"`
	Confidence    float64 `json:"confidence"`
	Description   string  `json:"description"`
	SourceTarget  string  `json:"source_target"`
	RelatedTarget string  `json:"related_target"`
	SourceTime    float64 `json:"source_time"`
	RelatedTime   float64 `json:"related_time"`
	TimeDelta     float64 `json:"time_delta_seconds"`
}

// AuditRecord is one line of the audit log.
type AuditRecord struct {
	ID          string             `json:"id"`
	Kind        string             `json:"kind"`
	Timestamp   string             `json:"timestamp"`
	EventTime   float64            `json:"event_time"`
	SessionID   string             `json:"session_id"`
	Event       *EventRecord       `json:"event,omitempty"`
	Correlation *CorrelationRecord `json:"correlation,omitempty"`
}

// AuditLogger appends redacted records to a JSONL file, rotating it to
// <path>.1 once it grows past the size limit.
type AuditLogger struct {
	path     string
	file     *os.File
	maxBytes int64
	mu       sync.Mutex
	seen     *lru.Cache[string, struct{}]
}

func New(path string) (*AuditLogger, error) {
	seen, err := lru.New[string, struct{}](dedupeEntries)
	if err != nil {
		return nil, fmt.Errorf("creating dedupe cache: %w", err)
	}
	l := &AuditLogger{path: path, maxBytes: defaultMaxLogBytes, seen: seen}

	// Correlations already on disk are not written again. Priming is best
	// effort: an unreadable tail only weakens dedupe.
	existing, _, _ := ReadRecords(path)
	for _, rec := range existing {
		if rec.Kind == KindCorrelation && rec.Correlation != nil {
			l.seen.Add(dedupeKey(rec.SessionID, rec.Correlation), struct{}{})
		}
	}

	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *AuditLogger) open() error {
	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	l.file = file
	return nil
}

// LogEvent writes a scored event.
func (l *AuditLogger) LogEvent(rec AuditRecord) error {
	if rec.Event == nil {
		return fmt.Errorf("event record without event payload")
	}
	rec.Kind = KindEvent
	ev := *rec.Event
	ev.Target = redact.String(ev.Target)
	ev.Reason = redact.String(ev.Reason)
	if len(ev.Paths) > 0 {
		paths := make([]string, len(ev.Paths))
		for i, p := range ev.Paths {
			paths[i] = redact.String(p)
		}
		ev.Paths = paths
	}
	rec.Event = &ev

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.write(rec)
}

// LogCorrelation writes a correlation unless an identical one was already
// logged. It reports whether a line was written.
func (l *AuditLogger) LogCorrelation(rec AuditRecord) (bool, error) {
	if rec.Correlation == nil {
		return false, fmt.Errorf("correlation record without correlation payload")
	}
	rec.Kind = KindCorrelation
	c := *rec.Correlation
	c.SourceTarget = redact.String(c.SourceTarget)
	c.RelatedTarget = redact.String(c.RelatedTarget)
	c.Description = redact.String(c.Description)
	rec.Correlation = &c

	l.mu.Lock()
	defer l.mu.Unlock()
	key := dedupeKey(rec.SessionID, &c)
	if found, _ := l.seen.ContainsOrAdd(key, struct{}{}); found {
		return false, nil
	}
	if err := l.write(rec); err != nil {
		l.seen.Remove(key)
		return false, err
	}
	return true, nil
}

func (l *AuditLogger) write(rec AuditRecord) error {
	if l.file == nil {
		return fmt.Errorf("audit log is closed")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp == "" {
		rec.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding audit record: %w", err)
	}
	data = append(data, '\n')

	if info, err := l.file.Stat(); err == nil && info.Size()+int64(len(data)) > l.maxBytes {
		if err := l.rotate(); err != nil {
			return err
		}
	}
	_, err = l.file.Write(data)
	return err
}

func (l *AuditLogger) rotate() error {
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("closing audit log for rotation: %w", err)
	}
	l.file = nil
	if err := os.Rename(l.path, l.path+".1"); err != nil {
		return fmt.Errorf("rotating audit log: %w", err)
	}
	return l.open()
}

func (l *AuditLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

func dedupeKey(sessionID string, c *CorrelationRecord) string {
	return strings.Join([]string{
		c.Type, sessionID, c.SourceTarget, c.RelatedTarget,
		strconv.FormatFloat(c.SourceTime, 'f', -1, 64),
		strconv.FormatFloat(c.RelatedTime, 'f', -1, 64),
	}, "\x00")
}

package correlation

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/OpenClaudeAgent/opencode-monitor/internal/extract"
)

// DefaultBufferSize is the per-session event capacity.
const DefaultBufferSize = 200

// EventCorrelator keeps a bounded, insertion-ordered buffer of recent events
// per session and matches each new event against the rule table.
// It is safe for concurrent use.
type EventCorrelator struct {
	mu         sync.Mutex
	bufferSize int
	rules      []Rule
	sessions   map[string]*sessionBuffer
	extractor  *extract.PathExtractor
}

// NewEventCorrelator creates a correlator. bufferSize <= 0 selects
// DefaultBufferSize. windows overrides rule windows in seconds by
// correlation type; unknown types and non-positive values are ignored.
func NewEventCorrelator(bufferSize int, windows map[string]float64) *EventCorrelator {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	rules := DefaultRules()
	for i := range rules {
		if w, ok := windows[rules[i].Type]; ok && w > 0 {
			rules[i].Window = w
		}
	}
	return &EventCorrelator{
		bufferSize: bufferSize,
		rules:      rules,
		sessions:   make(map[string]*sessionBuffer),
		extractor:  extract.NewPathExtractor(),
	}
}

// Rules returns the active rule table, windows included.
func (c *EventCorrelator) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// AddEvent correlates e against every buffered event of its session, then
// buffers e. It returns the correlations e produced, possibly none.
func (c *EventCorrelator) AddEvent(e SecurityEvent) []Correlation {
	c.mu.Lock()
	defer c.mu.Unlock()

	sb := c.sessions[e.SessionID]
	if sb == nil {
		sb = newSessionBuffer(c.bufferSize)
		c.sessions[e.SessionID] = sb
	}

	var found []Correlation
	// The buffer is insertion-ordered, not time-ordered: every slot is visited.
	sb.each(func(prev SecurityEvent) {
		for _, r := range c.rules {
			if corr, ok := c.correlate(r, prev, e); ok {
				found = append(found, corr)
			}
		}
	})

	sb.push(e, c.indexKeys(e))
	return found
}

// FindRelatedEvents returns the buffered events of e's session that
// correlate with e under any rule. The buffer is not modified.
func (c *EventCorrelator) FindRelatedEvents(e SecurityEvent) []SecurityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	related := []SecurityEvent{}
	sb := c.sessions[e.SessionID]
	if sb == nil {
		return related
	}
	sb.each(func(prev SecurityEvent) {
		for _, r := range c.rules {
			if _, ok := c.pair(r, prev, e); ok {
				related = append(related, prev)
				return
			}
		}
	})
	return related
}

// GetEventsByPath returns, oldest first, the buffered events of a session
// that referenced path.
func (c *EventCorrelator) GetEventsByPath(sessionID, path string) []SecurityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := []SecurityEvent{}
	if sb := c.sessions[sessionID]; sb != nil {
		for _, seq := range sb.paths[path] {
			out = append(out, sb.slot(seq).event)
		}
	}
	return out
}

// GetSessionBuffer returns a copy of a session's buffer in insertion order.
func (c *EventCorrelator) GetSessionBuffer(sessionID string) []SecurityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := []SecurityEvent{}
	if sb := c.sessions[sessionID]; sb != nil {
		sb.each(func(e SecurityEvent) { out = append(out, e) })
	}
	return out
}

// Sessions returns the number of sessions with buffered events.
func (c *EventCorrelator) Sessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// ClearSession drops a session's buffer and path index.
func (c *EventCorrelator) ClearSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, sessionID)
}

// ClearAll drops every session.
func (c *EventCorrelator) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions = make(map[string]*sessionBuffer)
}

// GetCorrelationSummary counts correlations by type.
func (c *EventCorrelator) GetCorrelationSummary(correlations []Correlation) map[string]int {
	summary := make(map[string]int)
	for _, corr := range correlations {
		summary[corr.CorrelationType]++
	}
	return summary
}

// pair tries both role assignments of (prev, cur) against r and returns the
// trigger first. Only events of the same session are ever paired.
func (c *EventCorrelator) pair(r Rule, prev, cur SecurityEvent) ([2]SecurityEvent, bool) {
	if prev.SessionID != cur.SessionID {
		return [2]SecurityEvent{}, false
	}
	if math.Abs(cur.Timestamp-prev.Timestamp) > r.Window {
		return [2]SecurityEvent{}, false
	}
	if r.match(prev, cur) {
		return [2]SecurityEvent{prev, cur}, true
	}
	if r.match(cur, prev) {
		return [2]SecurityEvent{cur, prev}, true
	}
	return [2]SecurityEvent{}, false
}

func (c *EventCorrelator) correlate(r Rule, prev, cur SecurityEvent) (Correlation, bool) {
	roles, ok := c.pair(r, prev, cur)
	if !ok {
		return Correlation{}, false
	}
	delta := math.Abs(cur.Timestamp - prev.Timestamp)
	trigger, partner := roles[0], roles[1]

	return Correlation{
		ID:              uuid.NewString(),
		CorrelationType: r.Type,
		MitreTechnique:  r.Mitre,
		ScoreModifier:   r.ScoreModifier,
		Confidence:      Confidence(delta, r.Window, prev.RiskScore, cur.RiskScore),
		SessionID:       cur.SessionID,
		Context: map[string]any{
			CtxTimeDelta:     delta,
			CtxSourceTarget:  prev.Target,
			CtxRelatedTarget: cur.Target,
			CtxWindow:        r.Window,
		},
		Description: fmt.Sprintf("%s: %s %s then %s %s (%.0fs apart)",
			r.Description, trigger.EventType, shorten(trigger.Target),
			partner.EventType, shorten(partner.Target), delta),
		SourceEvent:  prev,
		RelatedEvent: cur,
	}, true
}

// Confidence scores a correlation from its time delta relative to the
// window and the combined risk of both events.
func Confidence(delta, window float64, scoreA, scoreB int) float64 {
	timeFactor := 0.0
	if window > 0 {
		timeFactor = math.Max(0, 1-delta/window)
	}
	riskFactor := math.Min(1, float64(scoreA+scoreB)/100)
	return math.Max(0, math.Min(1, 0.5*timeFactor+0.3*riskFactor+0.2))
}

// indexKeys are the path-index entries for e: its target when it contains a
// path separator, plus paths extracted from shell commands.
func (c *EventCorrelator) indexKeys(e SecurityEvent) []string {
	var keys []string
	seen := make(map[string]bool)
	add := func(k string) {
		if k != "" && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	if strings.Contains(e.Target, "/") {
		add(e.Target)
	}
	if e.EventType == EventBash {
		for _, p := range c.extractor.ExtractFromCommand(e.Target) {
			add(p)
		}
	}
	return keys
}

// shorten truncates s to 80 runes.
func shorten(s string) string {
	const limit = 80
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit-3]) + "..."
}

package risk

import "strings"

// CommandScorer scores shell commands against the dangerous and safe
// pattern tables. It holds no mutable state and is safe for concurrent use.
type CommandScorer struct {
	dangerous []DangerousPattern
	safe      []SafePattern
}

// NewCommandScorer creates a scorer over the given tables. A nil p means
// DefaultPatterns.
func NewCommandScorer(p *Patterns) *CommandScorer {
	if p == nil {
		p = DefaultPatterns()
	}
	return &CommandScorer{dangerous: p.Dangerous, safe: p.Safe}
}

// AnalyzeCommand scores a shell command.
//
// Every dangerous entry is evaluated; the highest adjusted score wins and
// ties keep the earlier entry. Safe deltas are then summed onto the running
// score regardless of sign, and the total is clamped into [0, 100].
func (s *CommandScorer) AnalyzeCommand(command, tool string) SecurityAlert {
	alert := SecurityAlert{Command: command, Tool: tool}
	if strings.TrimSpace(command) == "" {
		alert.Level = LevelLow
		alert.Reason = "Empty command"
		return alert
	}

	score := 0
	reason := "Normal command"
	matched := false
	for _, p := range s.dangerous {
		if !p.Pattern.MatchString(command) {
			continue
		}
		adjusted := p.Score
		for _, adj := range p.Adjustments {
			if adj.Pattern.MatchString(command) {
				adjusted += adj.Delta
			}
		}
		if !matched || adjusted > score {
			score = adjusted
			reason = p.Reason
			matched = true
		}
	}

	for _, p := range s.safe {
		if p.Pattern.MatchString(command) {
			score += p.Delta
		}
	}

	res := NewResult(score, reason)
	alert.Score = res.Score
	alert.Level = res.Level
	alert.Reason = res.Reason
	return alert
}

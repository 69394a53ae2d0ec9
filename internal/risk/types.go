package risk

// Level is the coarse risk bucket derived from a 0-100 score.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Score thresholds for level derivation.
const (
	CriticalThreshold = 80
	HighThreshold     = 50
	MediumThreshold   = 20
)

// LevelFor returns the level bucket for a score.
func LevelFor(score int) Level {
	switch {
	case score >= CriticalThreshold:
		return LevelCritical
	case score >= HighThreshold:
		return LevelHigh
	case score >= MediumThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Rank orders levels for comparisons and filtering (low=1 .. critical=4).
// Unknown levels rank 0.
func (l Level) Rank() int {
	switch l {
	case LevelCritical:
		return 4
	case LevelHigh:
		return 3
	case LevelMedium:
		return 2
	case LevelLow:
		return 1
	}
	return 0
}

// RiskResult is the output of a single-event scorer. Level is always
// derived from Score; use NewResult rather than building one by hand.
type RiskResult struct {
	Score  int    `json:"score"`
	Level  Level  `json:"level"`
	Reason string `json:"reason"`
}

// NewResult clamps score into [0, 100] and derives the level.
func NewResult(score int, reason string) RiskResult {
	score = Clamp(score)
	return RiskResult{Score: score, Level: LevelFor(score), Reason: reason}
}

// SecurityAlert is the result of scoring a shell command.
type SecurityAlert struct {
	Command string `json:"command"`
	Tool    string `json:"tool"`
	Score   int    `json:"score"`
	Level   Level  `json:"level"`
	Reason  string `json:"reason"`
}

// Result drops the command/tool fields.
func (a SecurityAlert) Result() RiskResult {
	return RiskResult{Score: a.Score, Level: a.Level, Reason: a.Reason}
}

// Clamp bounds a score to [0, 100].
func Clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

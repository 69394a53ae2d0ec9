package risk

import "strings"

// WriteBonus is added to a nonzero file-path score when the access writes.
const WriteBonus = 10

// PathScorer classifies bare file paths and URLs against the static
// sensitivity tables. It has no project-root context; see package scope for
// project-relative classification.
type PathScorer struct {
	files TieredPatterns
	urls  TieredPatterns
}

// NewPathScorer creates a scorer over the given tables. A nil p means
// DefaultPatterns.
func NewPathScorer(p *Patterns) *PathScorer {
	if p == nil {
		p = DefaultPatterns()
	}
	return &PathScorer{files: p.Files, urls: p.URLs}
}

// AnalyzeFilePath scores a file path. A write to a path that already scores
// above zero earns WriteBonus and a "WRITE: " reason prefix.
func (s *PathScorer) AnalyzeFilePath(path string, writeMode bool) RiskResult {
	score, reason := maxMatch(s.files, path)
	if score == 0 {
		return NewResult(0, "Normal file")
	}
	if writeMode {
		score += WriteBonus
		if score > 100 {
			score = 100
		}
		reason = "WRITE: " + reason
	}
	return NewResult(score, reason)
}

// AnalyzeURL scores a URL.
func (s *PathScorer) AnalyzeURL(url string) RiskResult {
	score, reason := maxMatch(s.urls, url)
	if score == 0 {
		return NewResult(0, "Normal URL")
	}
	return NewResult(score, reason)
}

// maxMatch returns the highest-scoring match over all tiers. It does not
// stop at the first tier with a hit: a lower tier may carry a higher score.
func maxMatch(t TieredPatterns, target string) (int, string) {
	lower := strings.ToLower(target)
	best := 0
	reason := ""
	for _, tier := range t.ordered() {
		for _, p := range tier {
			if p.Score > best && p.Pattern.MatchString(lower) {
				best = p.Score
				reason = p.Reason
			}
		}
	}
	return best, reason
}

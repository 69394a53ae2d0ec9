package risk_test

import (
	"strings"
	"testing"

	"github.com/OpenClaudeAgent/opencode-monitor/internal/risk"
)

func TestAnalyzeFilePath(t *testing.T) {
	s := risk.NewPathScorer(nil)

	tests := []struct {
		path      string
		write     bool
		wantScore int
		wantLevel risk.Level
		reason    string
	}{
		{"~/.ssh/id_rsa", false, 95, risk.LevelCritical, "SSH private key"},
		{"~/.ssh/id_rsa", true, 100, risk.LevelCritical, "WRITE: SSH private key"},
		{"/home/u/.AWS/Credentials", false, 95, risk.LevelCritical, "AWS credentials"},
		{"/app/.env", false, 70, risk.LevelHigh, "Environment secrets file"},
		{"/app/.env", true, 80, risk.LevelCritical, "WRITE: Environment secrets file"},
		{"/repo/.git/config", false, 35, risk.LevelMedium, "Git configuration"},
		{"/home/u/.zshrc", true, 55, risk.LevelHigh, "WRITE: Shell configuration"},
		{"/repo/src/main.go", false, 0, risk.LevelLow, "Normal file"},
		{"/repo/src/main.go", true, 0, risk.LevelLow, "Normal file"},
	}

	for _, tt := range tests {
		r := s.AnalyzeFilePath(tt.path, tt.write)
		if r.Score != tt.wantScore || r.Level != tt.wantLevel || r.Reason != tt.reason {
			t.Errorf("AnalyzeFilePath(%q, %v) = %+v, want %d %s %q",
				tt.path, tt.write, r, tt.wantScore, tt.wantLevel, tt.reason)
		}
	}
}

func TestAnalyzeFilePath_GlobalMaxAcrossTiers(t *testing.T) {
	// .ssh/id_rsa also matches the medium-tier "SSH directory" entry; the
	// critical score must win.
	r := risk.NewPathScorer(nil).AnalyzeFilePath("/root/.ssh/id_ed25519", false)
	if r.Score != 95 {
		t.Errorf("score = %d, want 95", r.Score)
	}

	// A lower tier configured with a higher score than every upper-tier hit
	// still wins.
	p := risk.DefaultPatterns()
	p.Files = risk.TieredPatterns{}
	p.Files.Add(risk.TierCritical, risk.ScoredPattern{Pattern: mustRe(t, `secret`), Score: 60, Reason: "critical tier"})
	p.Files.Add(risk.TierMedium, risk.ScoredPattern{Pattern: mustRe(t, `secret`), Score: 90, Reason: "medium tier"})
	r = risk.NewPathScorer(p).AnalyzeFilePath("/x/secret", false)
	if r.Score != 90 || r.Reason != "medium tier" {
		t.Errorf("got %+v, want medium tier at 90", r)
	}
}

func TestAnalyzeURL(t *testing.T) {
	s := risk.NewPathScorer(nil)

	tests := []struct {
		url      string
		minScore int
		reason   string
	}{
		{"https://webhook.site/abc", 90, "capture"},
		{"https://pastebin.com/raw/x", 85, "file sharing"},
		{"https://discord.com/api/webhooks/1/2", 80, "discord"},
		{"http://203.0.113.5/payload", 60, "raw ip"},
		{"https://example.com/install.sh", 65, "script"},
		{"https://raw.githubusercontent.com/a/b/main/README.md", 40, "raw code"},
	}
	for _, tt := range tests {
		r := s.AnalyzeURL(tt.url)
		if r.Score < tt.minScore {
			t.Errorf("AnalyzeURL(%q) = %d, want >= %d", tt.url, r.Score, tt.minScore)
		}
		if !strings.Contains(strings.ToLower(r.Reason), tt.reason) {
			t.Errorf("AnalyzeURL(%q) reason %q, want %q", tt.url, r.Reason, tt.reason)
		}
	}

	for _, u := range []string{"https://go.dev/doc", "https://localhost:3000/api"} {
		if r := s.AnalyzeURL(u); r.Score != 0 || r.Reason != "Normal URL" {
			t.Errorf("AnalyzeURL(%q) = %+v, want Normal URL", u, r)
		}
	}
}

// Package obfuscation finds characters that make a command or path read
// differently from how it executes: invisible and direction-changing code
// points, control bytes, and non-Latin letters posing as Latin ones.
package obfuscation

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind classifies a suspicious code point.
type Kind string

const (
	KindInvalidUTF8 Kind = "invalid-utf8"
	KindZeroWidth   Kind = "zero-width"
	KindBidi        Kind = "bidi-control"
	KindTag         Kind = "tag-char"
	KindControl     Kind = "control-char"
	KindHomoglyph   Kind = "homoglyph"
)

// Minimum risk scores for a target carrying each kind. Hidden code points
// only exist to fool a reviewer; a lookalike letter may be legitimate text.
var kindScores = map[Kind]int{
	KindInvalidUTF8: 70,
	KindZeroWidth:   70,
	KindBidi:        80,
	KindTag:         80,
	KindControl:     60,
	KindHomoglyph:   45,
}

// Finding is one suspicious code point.
type Finding struct {
	Kind      Kind   `json:"kind"`
	Offset    int    `json:"offset"`
	Codepoint string `json:"codepoint"`
}

// Report is the result of Inspect.
type Report struct {
	Original   string    `json:"original"`
	Normalized string    `json:"normalized"`
	Findings   []Finding `json:"findings,omitempty"`
}

// Clean reports whether no suspicious code points were found.
func (r Report) Clean() bool {
	return len(r.Findings) == 0
}

// Score is the highest minimum score over all findings, or 0.
func (r Report) Score() int {
	best := 0
	for _, f := range r.Findings {
		if s := kindScores[f.Kind]; s > best {
			best = s
		}
	}
	return best
}

// Kinds lists the distinct finding kinds in sorted order.
func (r Report) Kinds() []string {
	seen := make(map[Kind]bool)
	var kinds []string
	for _, f := range r.Findings {
		if !seen[f.Kind] {
			seen[f.Kind] = true
			kinds = append(kinds, string(f.Kind))
		}
	}
	sort.Strings(kinds)
	return kinds
}

// Reason is a human-readable one-liner for the findings.
func (r Report) Reason() string {
	return fmt.Sprintf("Obfuscated text (%s)", strings.Join(r.Kinds(), ", "))
}

// Inspect scans s. Normalized drops hidden code points and maps lookalike
// letters to their Latin counterparts, so scoring it sees what a shell or
// file system would act on.
func Inspect(s string) Report {
	rep := Report{Original: s}
	var sb strings.Builder
	sb.Grow(len(s))

	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			rep.Findings = append(rep.Findings, Finding{Kind: KindInvalidUTF8, Offset: i, Codepoint: fmt.Sprintf("0x%02X", s[i])})
			i++
			continue
		}

		kind, latin := classify(r)
		switch {
		case kind == "":
			sb.WriteRune(r)
		case kind == KindHomoglyph:
			sb.WriteRune(latin)
			rep.Findings = append(rep.Findings, Finding{Kind: kind, Offset: i, Codepoint: fmt.Sprintf("U+%04X", r)})
		default:
			rep.Findings = append(rep.Findings, Finding{Kind: kind, Offset: i, Codepoint: fmt.Sprintf("U+%04X", r)})
		}
		i += size
	}

	rep.Normalized = sb.String()
	return rep
}

func classify(r rune) (Kind, rune) {
	switch {
	case r < utf8.RuneSelf && r >= 0x20 && r != 0x7F:
		return "", 0
	case r == '\t' || r == '\n' || r == '\r':
		return "", 0
	case r <= 0x1F || (r >= 0x7F && r <= 0x9F):
		return KindControl, 0
	case r >= 0xE0001 && r <= 0xE007F:
		return KindTag, 0
	case zeroWidth[r]:
		return KindZeroWidth, 0
	case bidi[r]:
		return KindBidi, 0
	}
	if unicode.In(r, unicode.Cyrillic, unicode.Greek) {
		if latin, ok := lookalikes[r]; ok {
			return KindHomoglyph, latin
		}
	}
	return "", 0
}

var zeroWidth = map[rune]bool{
	'\u200B': true, '\u200C': true, '\u200D': true, '\u200E': true, '\u200F': true,
	'\u2060': true, '\u180E': true, '\uFEFF': true,
}

var bidi = map[rune]bool{
	'\u202A': true, '\u202B': true, '\u202C': true, '\u202D': true, '\u202E': true,
	'\u2066': true, '\u2067': true, '\u2068': true, '\u2069': true,
}

// lookalikes maps Cyrillic and Greek letters to the Latin letter they render as.
var lookalikes = map[rune]rune{
	// Cyrillic
	'а': 'a', 'А': 'A', 'В': 'B', 'с': 'c', 'С': 'C', 'е': 'e', 'Е': 'E',
	'Н': 'H', 'і': 'i', 'І': 'I', 'К': 'K', 'М': 'M', 'о': 'o', 'О': 'O',
	'р': 'p', 'Р': 'P', 'Т': 'T', 'х': 'x', 'Х': 'X', 'у': 'y', 'У': 'Y',
	// Greek
	'Α': 'A', 'Β': 'B', 'Ε': 'E', 'Η': 'H', 'Ι': 'I', 'Κ': 'K', 'Μ': 'M',
	'Ν': 'N', 'Ο': 'O', 'ο': 'o', 'Ρ': 'P', 'Τ': 'T', 'Χ': 'X', 'Υ': 'Y',
	'Ζ': 'Z',
}

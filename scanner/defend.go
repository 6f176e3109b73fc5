package scanner

import (
	"regexp"
)

const (
	overrideMarker    = "[BLOCKED: instruction override]"
	knownAttackMarker = "[BLOCKED: known attack]"
)

// zero-width and bidi/format control code points
var invisibleChars = regexp.MustCompile(`[\x{200b}-\x{200f}\x{202a}-\x{202e}\x{2060}-\x{2064}\x{feff}]`)

var htmlComment = regexp.MustCompile(`(?s)<!--.*?-->`)

// Defend returns a sanitized copy of text: invisible characters and comment
// spans are removed, and instruction-override phrases and known attack
// strings are replaced with a bracketed marker. Defend is idempotent.
//
// Passes repeat until the text is stable. A pass that changes anything either
// removes characters or swaps matched text for a marker that no rule matches,
// so the loop terminates.
func (s *Scanner) Defend(text string) string {
	out := text
	for {
		next := s.defendPass(out)
		if next == out {
			return out
		}
		out = next
	}
}

func (s *Scanner) defendPass(text string) string {
	text = normalize(text)
	text = stripHidden(text)
	for _, re := range overridePatterns {
		text = re.ReplaceAllLiteralString(text, overrideMarker)
	}
	for _, re := range s.attackPatterns {
		text = re.ReplaceAllLiteralString(text, knownAttackMarker)
	}
	return text
}

// stripHidden removes invisible characters and comment spans until none are
// left, so comments assembled from the pieces of nested ones go too.
func stripHidden(text string) string {
	for {
		next := htmlComment.ReplaceAllString(invisibleChars.ReplaceAllString(text, ""), "")
		if len(next) == len(text) {
			return next
		}
		text = next
	}
}

// matchesMarker reports whether re would fire on text Defend itself inserts.
func matchesMarker(re *regexp.Regexp) bool {
	return re.MatchString(overrideMarker) || re.MatchString(knownAttackMarker)
}

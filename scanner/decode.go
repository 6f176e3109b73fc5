package scanner

import (
	"encoding/base64"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var base64Run = regexp.MustCompile(`[A-Za-z0-9+/=_-]{30,}`)

// maxDecodeDepth bounds nested encoding layers.
const maxDecodeDepth = 3

// maxDecodeCandidates bounds work on adversarial input with many long runs.
const maxDecodeCandidates = 32

var encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// decodeFindings looks for base64-looking runs, decodes them, and re-runs the
// rule table on the decoded text. Anything found inside a decoded payload is
// reported as a single high-weight encoded_payload finding.
func (s *Scanner) decodeFindings(text string, depth int) []Finding {
	if depth >= maxDecodeDepth {
		return nil
	}
	var out []Finding
	for i, cand := range base64Run.FindAllString(text, -1) {
		if i >= maxDecodeCandidates {
			break
		}
		decoded, ok := tryDecode(cand)
		if !ok {
			continue
		}
		inner := s.match(decoded)
		inner = append(inner, s.decodeFindings(decoded, depth+1)...)
		if len(inner) == 0 {
			continue
		}
		s.logger.Debug("found payload inside encoded run", "categories", len(inner), "depth", depth)
		out = append(out, Finding{
			Category: CategoryEncodedPayload,
			Weight:   WeightHigh,
			Excerpt:  excerpt("decoded: " + decoded),
		})
	}
	return out
}

// tryDecode attempts each base64 alphabet. Results that are not mostly
// printable text are rejected.
func tryDecode(cand string) (string, bool) {
	cand = strings.TrimRight(cand, "=")
	for _, enc := range encodings {
		in := cand
		if enc == base64.StdEncoding || enc == base64.URLEncoding {
			if pad := len(in) % 4; pad != 0 {
				in += strings.Repeat("=", 4-pad)
			}
		}
		raw, err := enc.DecodeString(in)
		if err != nil || len(raw) == 0 {
			continue
		}
		if !printable(raw) {
			continue
		}
		return normalize(string(raw)), true
	}
	return "", false
}

func printable(raw []byte) bool {
	if !utf8.Valid(raw) {
		return false
	}
	total, ok := 0, 0
	for _, r := range string(raw) {
		total++
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			ok++
		}
	}
	return total > 0 && ok*10 >= total*9
}

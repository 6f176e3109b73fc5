package scanner

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Weight is the risk weight of a single finding.
type Weight int

const (
	WeightLow    Weight = 1
	WeightMedium Weight = 2
	WeightHigh   Weight = 3
)

// RiskLevel is the aggregate, ordered classification of a scanned text.
type RiskLevel int

const (
	RiskNone RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
)

func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	default:
		return "none"
	}
}

func (r RiskLevel) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *RiskLevel) UnmarshalText(b []byte) error {
	*r = ParseRiskLevel(string(b))
	return nil
}

// ParseRiskLevel is the inverse of RiskLevel.String. Unknown values map to RiskNone.
func ParseRiskLevel(s string) RiskLevel {
	switch strings.ToLower(s) {
	case "low":
		return RiskLow
	case "medium":
		return RiskMedium
	case "high":
		return RiskHigh
	default:
		return RiskNone
	}
}

// MaxExcerpts bounds the excerpts returned in a Verdict.
const MaxExcerpts = 10

// maxExcerptLen bounds the length (in runes) of a single excerpt.
const maxExcerptLen = 80

const safeRecommendation = "content appears safe"

// Finding is a single rule hit.
type Finding struct {
	Category string
	Weight   Weight
	Excerpt  string
}

// Verdict is the deterministic result of scanning one input.
type Verdict struct {
	IsSuspicious    bool      `json:"is_suspicious"`
	RiskLevel       RiskLevel `json:"risk_level"`
	Categories      []string  `json:"categories"`
	Excerpts        []string  `json:"excerpts"`
	Recommendations []string  `json:"recommendations"`
}

// HasCategory reports whether the named category fired.
func (v *Verdict) HasCategory(name string) bool {
	for _, c := range v.Categories {
		if c == name {
			return true
		}
	}
	return false
}

type Options struct {
	// Strict marks low-weight findings alone as suspicious.
	Strict bool
	// ExtraAttacks are additional known-attack literals, matched like the builtin ones.
	ExtraAttacks []string
	Logger       *slog.Logger
}

// Scanner classifies text for prompt-injection indicators. A Scanner is
// immutable after construction and safe for concurrent use.
type Scanner struct {
	strict         bool
	attacks        []string
	attackPatterns []*regexp.Regexp
	logger         *slog.Logger
}

func New(opts Options) *Scanner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attacks := make([]string, 0, len(knownAttacks)+len(opts.ExtraAttacks))
	var attackPatterns []*regexp.Regexp
	seen := make(map[string]bool)
	for _, a := range append(append([]string{}, knownAttacks...), opts.ExtraAttacks...) {
		a = strings.TrimSpace(a)
		if a == "" || seen[strings.ToLower(a)] {
			continue
		}
		re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(normalize(a)))
		if matchesMarker(re) {
			logger.Warn("ignoring known attack literal that matches a defend marker", "literal", a)
			continue
		}
		seen[strings.ToLower(a)] = true
		attacks = append(attacks, a)
		attackPatterns = append(attackPatterns, re)
	}
	return &Scanner{
		strict:         opts.Strict,
		attacks:        attacks,
		attackPatterns: attackPatterns,
		logger:         logger.With("component", "scanner"),
	}
}

func (s *Scanner) Strict() bool {
	return s.strict
}

// Scan classifies text. Empty input returns the "none" verdict without
// evaluating any rule.
func (s *Scanner) Scan(text string) Verdict {
	if strings.TrimSpace(text) == "" {
		return safeVerdict()
	}
	normed := normalize(text)
	findings := s.match(normed)
	findings = append(findings, s.decodeFindings(normed, 0)...)
	return s.aggregate(findings)
}

// match runs the category table and the known-attack literals.
func (s *Scanner) match(text string) []Finding {
	var out []Finding
	for _, cat := range categories {
		for _, re := range cat.Patterns {
			m := re.FindString(text)
			if m == "" {
				continue
			}
			out = append(out, Finding{
				Category: cat.Name,
				Weight:   cat.Weight,
				Excerpt:  excerpt(m),
			})
			// one representative excerpt per category
			break
		}
	}
	for i, re := range s.attackPatterns {
		if re.MatchString(text) {
			out = append(out, Finding{
				Category: CategoryKnownAttack,
				Weight:   WeightHigh,
				Excerpt:  excerpt(s.attacks[i]),
			})
		}
	}
	return out
}

func (s *Scanner) aggregate(findings []Finding) Verdict {
	if len(findings) == 0 {
		return safeVerdict()
	}

	var maxWeight Weight
	catSet := make(map[string]bool)
	excerpts := []string{}
	for _, f := range findings {
		if f.Weight > maxWeight {
			maxWeight = f.Weight
		}
		catSet[f.Category] = true
		if len(excerpts) < MaxExcerpts && f.Excerpt != "" {
			excerpts = append(excerpts, f.Excerpt)
		}
	}

	var risk RiskLevel
	switch {
	case maxWeight >= WeightHigh:
		risk = RiskHigh
	case maxWeight >= WeightMedium:
		risk = RiskMedium
	default:
		risk = RiskLow
	}

	cats := make([]string, 0, len(catSet))
	for c := range catSet {
		cats = append(cats, c)
	}
	sort.Strings(cats)

	return Verdict{
		IsSuspicious:    risk >= RiskMedium || (risk == RiskLow && s.strict),
		RiskLevel:       risk,
		Categories:      cats,
		Excerpts:        excerpts,
		Recommendations: recommend(risk, catSet),
	}
}

func recommend(risk RiskLevel, cats map[string]bool) []string {
	var out []string
	if risk == RiskHigh {
		out = append(out, "do not process this content", "consider blocking this source")
	}
	for _, r := range categoryRecommendations {
		if cats[r.Category] {
			out = append(out, r.Text)
		}
	}
	if len(out) == 0 {
		out = append(out, safeRecommendation)
	}
	return out
}

func safeVerdict() Verdict {
	return Verdict{
		RiskLevel:       RiskNone,
		Categories:      []string{},
		Excerpts:        []string{},
		Recommendations: []string{safeRecommendation},
	}
}

// normalize applies compatibility normalization and strips combining marks,
// so full-width and accented lookalikes match the ASCII patterns.
func normalize(text string) string {
	// the transformer is stateful, so a fresh chain is needed per call
	normFunc := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(normFunc, text)
	if err != nil {
		return text
	}
	return out
}

func excerpt(m string) string {
	m = strings.TrimSpace(m)
	if utf8.RuneCountInString(m) <= maxExcerptLen {
		return m
	}
	r := []rune(m)
	return string(r[:maxExcerptLen]) + "…"
}

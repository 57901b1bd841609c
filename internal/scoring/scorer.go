package scoring

import (
	"regexp"
	"strings"

	"trendscout/internal/records"
)

// Field weights. Mentions in the description and topics are stronger signals
// than incidental mentions in README text.
const (
	WeightDescription = 5
	WeightReadme      = 1
	WeightTopics      = 3
)

type keyword struct {
	text  string // as configured
	lower string
	word  *regexp.Regexp
}

// Scorer computes keyword relevance. It is immutable after construction and
// safe for concurrent use.
type Scorer struct {
	keywords []keyword
}

// NewScorer compiles the keyword list. Blank keywords are dropped and keywords
// that differ only by case collapse to the first configured spelling.
func NewScorer(keywords []string) *Scorer {
	s := &Scorer{}
	seen := make(map[string]struct{}, len(keywords))
	for _, raw := range keywords {
		k := strings.TrimSpace(raw)
		if k == "" {
			continue
		}
		lower := strings.ToLower(k)
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}
		s.keywords = append(s.keywords, keyword{
			text:  k,
			lower: lower,
			word:  regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(k) + `\b`),
		})
	}
	return s
}

// Keywords returns the effective keyword list in configuration order.
func (s *Scorer) Keywords() []string {
	out := make([]string, 0, len(s.keywords))
	for _, k := range s.keywords {
		out = append(out, k.text)
	}
	return out
}

type field struct {
	lower  string
	raw    string
	weight int
}

// Score returns the relevance score and matched keywords for the given fields.
func (s *Scorer) Score(description, readme, topics string) (int, []string) {
	fields := []field{
		{raw: description, lower: strings.ToLower(description), weight: WeightDescription},
		{raw: readme, lower: strings.ToLower(readme), weight: WeightReadme},
		{raw: topics, lower: strings.ToLower(topics), weight: WeightTopics},
	}

	total := 0
	matched := make([]string, 0, len(s.keywords))
	for _, k := range s.keywords {
		hit := false
		for _, f := range fields {
			n := k.count(f)
			if n == 0 {
				continue
			}
			total += n * f.weight
			hit = true
		}
		if hit {
			matched = append(matched, k.text)
		}
	}
	return total, matched
}

// count is max(whole-word matches, substring matches), never their sum.
func (k keyword) count(f field) int {
	if f.raw == "" {
		return 0
	}
	whole := len(k.word.FindAllStringIndex(f.raw, -1))
	partial := strings.Count(f.lower, k.lower)
	return max(whole, partial)
}

// ScoreRecord scores an enriched record and returns a new ScoredRecord.
func (s *Scorer) ScoreRecord(e records.EnrichedRecord) records.ScoredRecord {
	score, matched := s.Score(e.Description, e.ReadmeText(), e.TopicText())
	return records.ScoredRecord{
		EnrichedRecord:  e,
		Score:           score,
		MatchedKeywords: matched,
	}
}

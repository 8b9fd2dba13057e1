package extract

import (
	"bufio"
	"context"
	"regexp"
	"strings"

	"github.com/hebbianmem/hebbianmem/internal/ingestion"
	"github.com/hebbianmem/hebbianmem/internal/models"
)

// SessionExtractor mines rule/directive/decision/bug-insight/command-shaped
// lines out of a session transcript using regex matching. No LLM call is involved; this is a
// thin reference surface rather than a production NLP pipeline.
type SessionExtractor struct {
	Domain string
	Source string
}

// NewSessionExtractor constructs an extractor for one session's domain.
func NewSessionExtractor(domain, source string) *SessionExtractor {
	return &SessionExtractor{Domain: domain, Source: source}
}

var sessionLinePatterns = []struct {
	re          *regexp.Regexp
	patternType models.PatternType
}{
	{regexp.MustCompile(`(?i)^(always|never)\b`), models.PatternRule},
	{regexp.MustCompile(`(?i)^(must|should|do not|don't)\b`), models.PatternDirective},
	{regexp.MustCompile(`(?i)^(decided to|decision:|we chose)\b`), models.PatternDecision},
	{regexp.MustCompile(`(?i)^(fixed|bug:|failure:)\b`), models.PatternBugInsight},
	{regexp.MustCompile(`(?i)^(run |execute )`), models.PatternCommand},
}

// Extract scans text line by line and produces one candidate per line that
// matches one of sessionLinePatterns and clears the low-signal filters.
func (e *SessionExtractor) Extract(ctx context.Context, text string) ([]ingestion.Candidate, error) {
	var out []ingestion.Candidate
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		pt, ok := classify(line)
		if !ok {
			continue
		}
		if isLowSignal(line) {
			continue
		}
		out = append(out, ingestion.Candidate{
			Domain:        e.Domain,
			PatternType:   pt,
			Title:         truncateTitle(line, 120),
			Detail:        line,
			Source:        e.Source,
			SourceSection: "session",
			Tags:          extractKeywords(line),
		})
	}
	return out, nil
}

func classify(line string) (models.PatternType, bool) {
	for _, p := range sessionLinePatterns {
		if p.re.MatchString(line) {
			return p.patternType, true
		}
	}
	return "", false
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "to": true,
	"of": true, "in": true, "on": true, "is": true, "it": true, "for": true,
	"with": true, "be": true, "this": true, "that": true, "we": true,
}

// extractKeywords pulls lower-cased, stop-word-filtered tokens of at least
// four characters, capped at five per line.
func extractKeywords(line string) []string {
	fields := strings.Fields(strings.ToLower(line))
	var out []string
	for _, f := range fields {
		f = strings.Trim(f, ".,:;!?()\"'")
		if len(f) < 4 || stopWords[f] {
			continue
		}
		out = append(out, f)
		if len(out) == 5 {
			break
		}
	}
	return out
}

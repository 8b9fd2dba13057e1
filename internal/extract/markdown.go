package extract

import (
	"bufio"
	"context"
	"strings"

	"github.com/hebbianmem/hebbianmem/internal/ingestion"
	"github.com/hebbianmem/hebbianmem/internal/models"
)

// MarkdownAtomizer splits a Markdown document into heading-delimited
// sections and turns each surviving section into one ingestion candidate.
type MarkdownAtomizer struct {
	Domain  string
	Source  string
	Channel string
}

// NewMarkdownAtomizer constructs an atomizer for one knowledge file's
// domain/source pairing.
func NewMarkdownAtomizer(domain, source string) *MarkdownAtomizer {
	return &MarkdownAtomizer{Domain: domain, Source: source, Channel: "atomic"}
}

type markdownSection struct {
	heading string
	body    strings.Builder
}

// Extract splits text on '#'-prefixed heading lines and produces one
// candidate per section whose body clears the low-signal filters.
func (a *MarkdownAtomizer) Extract(ctx context.Context, text string) ([]ingestion.Candidate, error) {
	var sections []*markdownSection
	var current *markdownSection

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := scanner.Text()
		if heading, ok := parseHeading(line); ok {
			current = &markdownSection{heading: heading}
			sections = append(sections, current)
			continue
		}
		if current == nil {
			current = &markdownSection{heading: ""}
			sections = append(sections, current)
		}
		current.body.WriteString(line)
		current.body.WriteString("\n")
	}

	var out []ingestion.Candidate
	for _, s := range sections {
		detail := strings.TrimSpace(s.body.String())
		if isLowSignal(detail) {
			continue
		}
		title := s.heading
		if title == "" {
			title = firstLine(detail)
		}
		out = append(out, ingestion.Candidate{
			Domain:        a.Domain,
			PatternType:   models.PatternFact,
			Title:         truncateTitle(title, 120),
			Detail:        detail,
			Source:        a.Source,
			SourceSection: s.heading,
		})
	}
	return out, nil
}

func parseHeading(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") {
		return "", false
	}
	heading := strings.TrimLeft(trimmed, "#")
	return strings.TrimSpace(heading), true
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func truncateTitle(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

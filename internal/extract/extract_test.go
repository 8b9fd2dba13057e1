package extract

import (
	"context"
	"testing"
)

func TestMarkdownAtomizerSplitsOnHeadings(t *testing.T) {
	a := NewMarkdownAtomizer("go", "knowledge.md")
	text := "# Concurrency\nAlways prefer context cancellation over raw goroutine leaks in long programs.\n\n# Errors\nWrap errors with fmt.Errorf and %w so callers can use errors.Is effectively.\n"
	cands, err := a.Extract(context.Background(), text)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 2 {
		t.Fatalf("expected 2 sections, got %d: %+v", len(cands), cands)
	}
	if cands[0].SourceSection != "Concurrency" || cands[1].SourceSection != "Errors" {
		t.Fatalf("unexpected section titles: %+v", cands)
	}
}

func TestMarkdownAtomizerDropsLowSignalSections(t *testing.T) {
	a := NewMarkdownAtomizer("go", "knowledge.md")
	text := "# Tiny\nshort\n"
	cands, err := a.Extract(context.Background(), text)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 0 {
		t.Fatalf("expected short section to be dropped, got %+v", cands)
	}
}

func TestSessionExtractorClassifiesRuleLine(t *testing.T) {
	e := NewSessionExtractor("go", "session-1")
	text := "Always use context.WithTimeout when calling an external embedding oracle over HTTP.\n"
	cands, err := e.Extract(context.Background(), text)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %+v", cands)
	}
	if cands[0].PatternType != "rule" {
		t.Fatalf("expected rule pattern type, got %q", cands[0].PatternType)
	}
}

func TestSessionExtractorSkipsUnclassifiedLines(t *testing.T) {
	e := NewSessionExtractor("go", "session-1")
	text := "The weather today is mild with a chance of rain in the afternoon.\n"
	cands, err := e.Extract(context.Background(), text)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 0 {
		t.Fatalf("expected no candidates for an unclassified line, got %+v", cands)
	}
}

func TestSessionExtractorSkipsThinkingAloudPrefix(t *testing.T) {
	e := NewSessionExtractor("go", "session-1")
	text := "Maybe always use a mutex here, not totally sure though honestly.\n"
	cands, err := e.Extract(context.Background(), text)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 0 {
		t.Fatalf("expected thinking-aloud line to be filtered, got %+v", cands)
	}
}

func TestExtractKeywordsFiltersStopWordsAndShortTokens(t *testing.T) {
	kws := extractKeywords("Always use the explicit checkbox id attribute for this")
	for _, k := range kws {
		if stopWords[k] || len(k) < 4 {
			t.Fatalf("unexpected stop word or short token in keywords: %v", kws)
		}
	}
}

func TestExtractKeywordsCapsAtFive(t *testing.T) {
	kws := extractKeywords("alpha bravo charlie delta echo foxtrot golf hotel")
	if len(kws) > 5 {
		t.Fatalf("expected at most 5 keywords, got %d", len(kws))
	}
}

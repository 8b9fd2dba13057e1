// Package extract defines the contract channel-specific miners implement to
// produce ingestion candidates, plus two concrete, pattern-matching-only
// reference implementations. The reasoning-block LLM extractor is an
// external collaborator and has no implementation here.
package extract

import (
	"context"
	"strings"

	"github.com/hebbianmem/hebbianmem/internal/ingestion"
)

// MinDetailLength is the low-signal floor below which a candidate is
// rejected before it ever reaches the Ingestion Pipeline.
const MinDetailLength = 40

// CandidateExtractor is implemented by any channel-specific miner that
// turns raw text into ingestion candidates.
type CandidateExtractor interface {
	Extract(ctx context.Context, text string) ([]ingestion.Candidate, error)
}

var thinkingAloudPrefixes = []string{
	"hmm", "let me think", "i wonder", "maybe", "not sure", "i think",
}

var routineStatusSubstrings = []string{
	"running tests", "build succeeded", "build failed", "starting server",
	"connected to", "disconnected from",
}

// isLowSignal reports whether detail should be dropped by a channel-
// specific extractor before it reaches ingestion.
func isLowSignal(detail string) bool {
	trimmed := strings.TrimSpace(detail)
	if len(trimmed) < MinDetailLength {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, prefix := range thinkingAloudPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	for _, substr := range routineStatusSubstrings {
		if strings.Contains(lower, substr) {
			return true
		}
	}
	return false
}

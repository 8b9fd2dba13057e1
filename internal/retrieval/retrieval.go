// Package retrieval composes embedding lookup, candidate scanning, combined
// scoring, diversity-aware token-budgeted selection, and spreading-
// activation fill into the single Retrieve operation the host calls on
// every turn.
package retrieval

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/hebbianmem/hebbianmem/internal/activation"
	"github.com/hebbianmem/hebbianmem/internal/cooccurrence"
	"github.com/hebbianmem/hebbianmem/internal/models"
	"github.com/hebbianmem/hebbianmem/internal/vectormath"
)

const (
	// SemanticFloor is the hard cosine-similarity cutoff below which a
	// candidate is dropped entirely once a query embedding exists.
	SemanticFloor = 0.30

	// DiversityCapPerDomain bounds how many non-spread items from one
	// domain may appear in a single result.
	DiversityCapPerDomain = 3

	// SpreadFillThreshold triggers the spreading-activation fill pass when
	// the selection so far has consumed less than this fraction of budget.
	SpreadFillThreshold = 0.90

	// SpreadNeighbourLimit bounds how many spreading-activation neighbours
	// may be appended to fill out a result.
	SpreadNeighbourLimit = 8

	// BumpEligibleLimit bounds how many selected ids receive the post-
	// return activation bump + co-occurrence wire.
	BumpEligibleLimit = 20

	// ActivationFallbackLimit caps the candidate set when neither a query
	// embedding nor domain hints are available.
	ActivationFallbackLimit = 100

	perCharOverhead = 20
	charsPerToken   = 4

	defaultSemanticWeight   = 0.6
	defaultActivationWeight = 0.3
	defaultDomainWeight     = 0.1

	recencyBonus        = 0.03
	typeBonusRuleLike   = 0.08
	typeBonusCorrection = 0.05
	typeBonusCommand    = 0.04
	typeBonusSolution   = 0.03

	penaltyGeneralDomain = 0.20
	penaltyDailyLog      = 0.25
	penaltyNoPatternType = 0.10
	penaltyShortDetail   = 0.15
	shortDetailThreshold = 20
)

// embedder is the subset of embedclient.Client this package depends on.
type embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// store is the subset of memstore.Store this package depends on.
type store interface {
	ScanWithEmbedding(ctx context.Context) ([]*models.Memory, error)
	ScanByDomain(ctx context.Context, domain string) ([]*models.Memory, error)
	TopActive(ctx context.Context, limit int) ([]*models.Memory, error)
}

// Options configures one Retrieve call; zero-valued fields fall back to
// the built-in defaults.
type Options struct {
	Domains          []string // 0-3 hints
	MaxEntries       int
	MaxContextTokens int
	SemanticWeight   float64
	ActivationWeight float64
	DomainWeight     float64
}

func (o Options) withDefaults() Options {
	if o.MaxEntries <= 0 {
		o.MaxEntries = 20
	}
	if o.MaxContextTokens <= 0 {
		o.MaxContextTokens = 800
	}
	if o.SemanticWeight == 0 && o.ActivationWeight == 0 && o.DomainWeight == 0 {
		o.SemanticWeight = defaultSemanticWeight
		o.ActivationWeight = defaultActivationWeight
		o.DomainWeight = defaultDomainWeight
	}
	return o
}

// Hit is one memory selected by Retrieve, annotated with how it was found.
type Hit struct {
	Memory       *models.Memory
	Score        float64
	SpreadOrigin bool
}

// Result is the outcome of one Retrieve call.
type Result struct {
	Hits          []Hit
	DegradedQuery bool // true when no query embedding could be computed
}

// Pipeline implements the full retrieval algorithm over a store, embedder,
// activation engine, and co-occurrence engine.
type Pipeline struct {
	store  store
	embed  embedder
	actEng *activation.Engine
	coEng  *cooccurrence.Engine
}

// New constructs a Pipeline.
func New(s store, e embedder, actEng *activation.Engine, coEng *cooccurrence.Engine) *Pipeline {
	return &Pipeline{store: s, embed: e, actEng: actEng, coEng: coEng}
}

type scored struct {
	memory *models.Memory
	sim    float64
	score  float64
}

// Retrieve runs the full eight-step pipeline. After selection, and before
// returning, it synchronously bumps activation and wires co-occurrence for
// the eligible subset of selected ids; these writes do not affect the
// ranking of the result being returned.
func (p *Pipeline) Retrieve(ctx context.Context, query string, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	// Step 1: query embedding.
	var queryEmbedding []float32
	degraded := true
	if strings.TrimSpace(query) != "" {
		truncated := query
		if len([]rune(query)) > 512 {
			truncated = string([]rune(query)[:512])
		}
		vecs, err := p.embed.Embed(ctx, []string{truncated})
		if err == nil && len(vecs) == 1 && vecs[0] != nil {
			queryEmbedding = vecs[0]
			degraded = false
		}
	}

	// Step 2: candidate selection.
	candidates, err := p.selectCandidates(ctx, queryEmbedding, opts.Domains)
	if err != nil {
		return nil, err
	}

	// Step 3 + 4: semantic floor + scoring.
	scoredCandidates := p.scoreCandidates(candidates, queryEmbedding, opts)

	// Step 5: rank.
	sort.SliceStable(scoredCandidates, func(i, j int) bool {
		return scoredCandidates[i].score > scoredCandidates[j].score
	})

	// Step 6: diversity- and budget-bounded selection.
	charBudget := opts.MaxContextTokens * charsPerToken
	selected, charsUsed := diversityBudgetSelect(scoredCandidates, opts.MaxEntries, charBudget)

	// Step 7: spreading-activation fill.
	if float64(charsUsed) < SpreadFillThreshold*float64(charBudget) {
		selected, charsUsed = p.spreadFill(ctx, selected, charsUsed, charBudget, opts.MaxEntries)
	}

	result := &Result{Hits: selected, DegradedQuery: degraded}

	// Step 8: post-return side effects (eligible subset, first 20 ids with
	// both domain and pattern_type present).
	p.applySideEffects(ctx, selected)

	return result, nil
}

func (p *Pipeline) selectCandidates(ctx context.Context, queryEmbedding []float32, domains []string) ([]*models.Memory, error) {
	if queryEmbedding != nil {
		return p.store.ScanWithEmbedding(ctx)
	}
	if len(domains) > 0 {
		var out []*models.Memory
		seen := make(map[string]bool)
		for _, d := range domains {
			rows, err := p.store.ScanByDomain(ctx, d)
			if err != nil {
				return nil, err
			}
			for _, m := range rows {
				if !seen[m.ID] {
					seen[m.ID] = true
					out = append(out, m)
				}
			}
		}
		return out, nil
	}
	return p.store.TopActive(ctx, ActivationFallbackLimit)
}

func (p *Pipeline) scoreCandidates(candidates []*models.Memory, queryEmbedding []float32, opts Options) []scored {
	activations := make([]float64, len(candidates))
	sims := make([]float64, len(candidates))
	keep := make([]bool, len(candidates))

	for i, c := range candidates {
		activations[i] = c.Activation
		if queryEmbedding != nil {
			sim := vectormath.Cosine(queryEmbedding, c.Embedding)
			sims[i] = sim
			keep[i] = sim >= SemanticFloor
		} else {
			keep[i] = true
		}
	}

	normActs := activation.Normalize(activations)

	out := make([]scored, 0, len(candidates))
	for i, c := range candidates {
		if !keep[i] {
			continue
		}
		s := opts.SemanticWeight*sims[i] + opts.ActivationWeight*normActs[i]
		s += recencyScore(c)
		s += domainScore(c, opts.Domains, opts.DomainWeight)
		s += typeBonus(c.PatternType)
		s -= penalties(c)
		out = append(out, scored{memory: c, sim: sims[i], score: s})
	}
	return out
}

func recencyScore(m *models.Memory) float64 {
	if time.Since(m.LastRetrieved) <= 24*time.Hour {
		return recencyBonus
	}
	return 0
}

func domainScore(m *models.Memory, hints []string, domainWeight float64) float64 {
	for _, h := range hints {
		if h == "" {
			continue
		}
		if strings.Contains(strings.ToLower(m.Domain), strings.ToLower(h)) {
			return domainWeight
		}
	}
	return 0
}

func typeBonus(pt models.PatternType) float64 {
	switch pt {
	case models.PatternRule, models.PatternDirective:
		return typeBonusRuleLike
	case models.PatternCorrection, models.PatternBugInsight:
		return typeBonusCorrection
	case models.PatternCommand:
		return typeBonusCommand
	case models.PatternSolution:
		return typeBonusSolution
	default:
		return 0
	}
}

func penalties(m *models.Memory) float64 {
	var p float64
	if strings.EqualFold(m.Domain, models.GeneralDomain) {
		p += penaltyGeneralDomain
	}
	if strings.Contains(strings.ToLower(m.Title), "daily log") {
		p += penaltyDailyLog
	}
	if m.PatternType == "" {
		p += penaltyNoPatternType
	}
	if len(m.Detail) < shortDetailThreshold {
		p += penaltyShortDetail
	}
	return p
}

func diversityBudgetSelect(candidates []scored, maxEntries, charBudget int) ([]Hit, int) {
	var hits []Hit
	domainCounts := make(map[string]int)
	used := 0

	for _, c := range candidates {
		if len(hits) >= maxEntries {
			break
		}
		if domainCounts[c.memory.Domain] >= DiversityCapPerDomain {
			continue
		}
		cost := entryCost(c.memory)
		if len(hits) > 0 && used+cost > charBudget {
			break
		}
		hits = append(hits, Hit{Memory: c.memory, Score: c.score})
		domainCounts[c.memory.Domain]++
		used += cost
	}
	return hits, used
}

func entryCost(m *models.Memory) int {
	text := m.Detail
	if text == "" {
		text = m.Title
	}
	return len(text) + perCharOverhead
}

func (p *Pipeline) spreadFill(ctx context.Context, selected []Hit, used, charBudget, maxEntries int) ([]Hit, int) {
	if len(selected) >= maxEntries {
		return selected, used
	}
	activeIDs := make([]string, len(selected))
	for i, h := range selected {
		activeIDs[i] = h.Memory.ID
	}
	boosted, err := p.coEng.Spread(ctx, activeIDs, SpreadNeighbourLimit)
	if err != nil {
		return selected, used
	}
	for _, b := range boosted {
		if len(selected) >= maxEntries {
			break
		}
		cost := entryCost(b.Memory)
		if used+cost > charBudget {
			break
		}
		selected = append(selected, Hit{Memory: b.Memory, Score: b.Boost, SpreadOrigin: true})
		used += cost
	}
	return selected, used
}

func (p *Pipeline) applySideEffects(ctx context.Context, hits []Hit) {
	var eligible []string
	for _, h := range hits {
		if len(eligible) >= BumpEligibleLimit {
			break
		}
		if h.Memory.Domain != "" && h.Memory.PatternType != "" {
			eligible = append(eligible, h.Memory.ID)
		}
	}
	if len(eligible) == 0 {
		return
	}
	p.actEng.Bump(ctx, eligible, activation.RetrievalBump)
	domainOf := func(id string) string {
		for _, h := range hits {
			if h.Memory.ID == id {
				return h.Memory.Domain
			}
		}
		return ""
	}
	p.coEng.Wire(ctx, eligible, domainOf)
}

// Package ingestion accepts candidate entries already separated by a
// channel-specific extractor, deduplicates them by id and by semantic
// similarity against the existing corpus, computes embeddings, and upserts
// the survivors.
package ingestion

import (
	"context"
	"time"

	"github.com/hebbianmem/hebbianmem/internal/embedclient"
	"github.com/hebbianmem/hebbianmem/internal/models"
	"github.com/hebbianmem/hebbianmem/internal/vectormath"
)

// SemanticDedupThreshold is the cosine similarity above which a candidate is
// rejected as a near-duplicate of something already known.
const SemanticDedupThreshold = 0.92

// InitialActivation and InitialRetrievalCount are the values a freshly
// ingested memory starts with.
const (
	InitialActivation     = 0.5
	InitialRetrievalCount = 1
)

// Candidate is one proposed memory, already filtered for low signal by the
// channel-specific extractor upstream of this pipeline.
type Candidate struct {
	Domain        string
	PatternType   models.PatternType
	Title         string
	Detail        string
	Source        string
	SourceSection string
	Tags          []string
}

// store is the subset of memstore.Store this package depends on.
type store interface {
	GetMemory(ctx context.Context, id string) (*models.Memory, error)
	ScanWithEmbedding(ctx context.Context) ([]*models.Memory, error)
	UpsertBatch(ctx context.Context, ms []*models.Memory, tags map[string][]string) error
	SetMeta(ctx context.Context, key, value string) error
}

// embedder is the subset of embedclient.Client this package depends on.
type embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Pipeline implements the seven-step ingestion algorithm.
type Pipeline struct {
	store store
	embed embedder
}

// New constructs a Pipeline.
func New(s store, e embedder) *Pipeline {
	return &Pipeline{store: s, embed: e}
}

// Report summarizes the outcome of one Ingest call.
type Report struct {
	Added          int
	SkippedByID    int
	SkippedByDedup int
	Errored        int
}

// Ingest runs the full pipeline for one channel's batch of candidates.
func (p *Pipeline) Ingest(ctx context.Context, channel string, candidates []Candidate) (*Report, error) {
	report := &Report{}

	type built struct {
		memory *models.Memory
		tags   []string
	}
	var kept []built

	for _, c := range candidates {
		id := models.BuildID(c.Domain, channel, c.Title)
		existing, err := p.store.GetMemory(ctx, id)
		if err != nil {
			report.Errored++
			continue
		}
		if existing != nil && existing.IsActive() {
			report.SkippedByID++
			continue
		}

		now := time.Now().UTC()
		m := &models.Memory{
			ID:             id,
			Title:          c.Title,
			Detail:         c.Detail,
			Domain:         c.Domain,
			PatternType:    c.PatternType,
			Source:         c.Source,
			SourceSection:  c.SourceSection,
			Created:        now,
			LastRetrieved:  now,
			RetrievalCount: InitialRetrievalCount,
			Activation:     InitialActivation,
			ContentHash:    models.ContentHash(c.Title, c.Detail),
			Status:         models.StatusActive,
		}
		kept = append(kept, built{memory: m, tags: c.Tags})
	}

	if len(kept) == 0 {
		return report, nil
	}

	// Batch embed (≤25 handled internally by the embed client).
	texts := make([]string, len(kept))
	for i, k := range kept {
		texts[i] = embedclient.BuildConcatenation(k.memory.Domain, k.memory.PatternType, k.memory.Title, k.memory.Detail, k.memory.SourceSection)
	}
	vectors, err := p.embed.Embed(ctx, texts)
	if err != nil {
		// Degrade: insert the batch without embeddings; a later back-fill
		// pass can repair them.
		vectors = make([][]float32, len(kept))
	}
	for i := range kept {
		kept[i].memory.Embedding = vectors[i]
	}

	existingWithEmbedding, err := p.store.ScanWithEmbedding(ctx)
	if err != nil {
		return nil, err
	}

	var survivors []built
	var acceptedEmbeddings [][]float32

	for _, k := range kept {
		if k.memory.Embedding == nil {
			survivors = append(survivors, k)
			continue
		}
		if isDuplicate(k.memory.Embedding, existingWithEmbedding, acceptedEmbeddings) {
			report.SkippedByDedup++
			continue
		}
		survivors = append(survivors, k)
		acceptedEmbeddings = append(acceptedEmbeddings, k.memory.Embedding)
	}

	if len(survivors) > 0 {
		ms := make([]*models.Memory, len(survivors))
		tags := make(map[string][]string, len(survivors))
		for i, s := range survivors {
			ms[i] = s.memory
			tags[s.memory.ID] = s.tags
		}
		if err := p.store.UpsertBatch(ctx, ms, tags); err != nil {
			report.Errored += len(survivors)
			return report, err
		}
		report.Added = len(survivors)
	}

	for source, content := range contentBySource(candidates) {
		_ = p.store.SetMeta(ctx, "atomize_hash:"+source, models.Fingerprint(content))
	}

	return report, nil
}

// isDuplicate compares embedding against up to the top-3 most similar
// existing rows and every already-accepted in-batch embedding, rejecting on
// any match above SemanticDedupThreshold.
func isDuplicate(embedding []float32, existing []*models.Memory, accepted [][]float32) bool {
	top3 := topKSimilar(embedding, existing, 3)
	for _, sim := range top3 {
		if sim > SemanticDedupThreshold {
			return true
		}
	}
	for _, other := range accepted {
		if vectormath.Cosine(embedding, other) > SemanticDedupThreshold {
			return true
		}
	}
	return false
}

func topKSimilar(embedding []float32, existing []*models.Memory, k int) []float64 {
	sims := make([]float64, 0, len(existing))
	for _, m := range existing {
		sims = append(sims, vectormath.Cosine(embedding, m.Embedding))
	}
	// Partial selection of the top-k values, good enough for small k.
	for i := 0; i < len(sims) && i < k; i++ {
		maxIdx := i
		for j := i + 1; j < len(sims); j++ {
			if sims[j] > sims[maxIdx] {
				maxIdx = j
			}
		}
		sims[i], sims[maxIdx] = sims[maxIdx], sims[i]
	}
	if len(sims) > k {
		sims = sims[:k]
	}
	return sims
}

// contentBySource concatenates candidate content per source path, the input
// to the change-detection fingerprint recorded for each source.
func contentBySource(candidates []Candidate) map[string]string {
	out := make(map[string]string)
	for _, c := range candidates {
		if c.Source == "" {
			continue
		}
		out[c.Source] += c.SourceSection + ":" + c.Title + ":" + c.Detail + "\n"
	}
	return out
}

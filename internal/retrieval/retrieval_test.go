package retrieval

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/hebbianmem/hebbianmem/internal/activation"
	"github.com/hebbianmem/hebbianmem/internal/cooccurrence"
	"github.com/hebbianmem/hebbianmem/internal/models"
)

type fakeStore struct {
	withEmbedding []*models.Memory
	byDomain      map[string][]*models.Memory
	bumped        []string
	neighbours    map[string][]models.Neighbour
	byID          map[string]*models.Memory
}

func (f *fakeStore) ScanWithEmbedding(ctx context.Context) ([]*models.Memory, error) {
	return f.withEmbedding, nil
}

func (f *fakeStore) ScanByDomain(ctx context.Context, domain string) ([]*models.Memory, error) {
	return f.byDomain[domain], nil
}

func (f *fakeStore) TopActive(ctx context.Context, limit int) ([]*models.Memory, error) {
	out := append([]*models.Memory(nil), f.withEmbedding...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Activation > out[j].Activation })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) BumpActivation(ctx context.Context, ids []string, delta float64) (int64, error) {
	f.bumped = append(f.bumped, ids...)
	return int64(len(ids)), nil
}

func (f *fakeStore) DecayAll(ctx context.Context, factor float64) error { return nil }

func (f *fakeStore) AddCoOccurrences(ctx context.Context, pairs [][2]string, delta float64) error {
	return nil
}

func (f *fakeStore) TopCoOccurrenceNeighbours(ctx context.Context, id string, limit int) ([]models.Neighbour, error) {
	return f.neighbours[id], nil
}

func (f *fakeStore) GetMemory(ctx context.Context, id string) (*models.Memory, error) {
	if f.byID == nil {
		return nil, nil
	}
	return f.byID[id], nil
}

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func newPipeline(fs *fakeStore, fe *fakeEmbedder) *Pipeline {
	actEng := activation.New(fs)
	coEng := cooccurrence.New(fs)
	return New(fs, fe, actEng, coEng)
}

func mem(id, domain string, pt models.PatternType, activationVal float64, embedding []float32, detail string) *models.Memory {
	return &models.Memory{
		ID:            id,
		Title:         "title-" + id,
		Detail:        detail,
		Domain:        domain,
		PatternType:   pt,
		Source:        "test",
		SourceSection: "s",
		Created:       time.Now(),
		LastRetrieved: time.Now(),
		Activation:    activationVal,
		Embedding:     embedding,
		Status:        models.StatusActive,
	}
}

// Scenario 1: exact-match query, seeded high-activation memory.
func TestRetrieveExactMatchBumpsActivation(t *testing.T) {
	m := mem("m1", "peekaboo-web", models.PatternRule, 10, []float32{1, 0, 0}, "Always use the explicit checkbox id attribute")
	fs := &fakeStore{withEmbedding: []*models.Memory{m}}
	fe := &fakeEmbedder{vector: []float32{1, 0, 0}}
	p := newPipeline(fs, fe)

	result, err := p.Retrieve(context.Background(), "checkbox id", Options{Domains: []string{"peekaboo-web"}, MaxContextTokens: 800})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Hits) != 1 || result.Hits[0].Memory.ID != "m1" {
		t.Fatalf("expected m1 first, got %+v", result.Hits)
	}
	if len(fs.bumped) != 1 || fs.bumped[0] != "m1" {
		t.Fatalf("expected activation bump for m1, got %v", fs.bumped)
	}
}

// Scenario 2: diversity cap.
func TestRetrieveDiversityCap(t *testing.T) {
	var all []*models.Memory
	for i := 0; i < 10; i++ {
		all = append(all, mem(rid("comfyui", i), "comfyui", models.PatternFact, 50, []float32{1, 0}, "a reasonably long comfyui workflow detail line"))
	}
	for i := 0; i < 2; i++ {
		all = append(all, mem(rid("tts", i), "tts", models.PatternFact, 1, []float32{0.9, 0.1}, "a reasonably long tts detail line here"))
	}
	fs := &fakeStore{withEmbedding: all}
	fe := &fakeEmbedder{vector: []float32{1, 0}}
	p := newPipeline(fs, fe)

	result, err := p.Retrieve(context.Background(), "workflow settings", Options{MaxEntries: 20, MaxContextTokens: 800})
	if err != nil {
		t.Fatal(err)
	}
	counts := map[string]int{}
	for _, h := range result.Hits {
		if !h.SpreadOrigin {
			counts[h.Memory.Domain]++
		}
	}
	if counts["comfyui"] > DiversityCapPerDomain {
		t.Fatalf("expected at most %d comfyui entries, got %d", DiversityCapPerDomain, counts["comfyui"])
	}
}

// Scenario 3: semantic floor excludes a high-activation, low-similarity row.
func TestRetrieveSemanticFloorExcludesLowSimilarity(t *testing.T) {
	low := mem("low-sim", "go", models.PatternFact, 1000, []float32{0, 1}, "unrelated detail text of sufficient length")
	fs := &fakeStore{withEmbedding: []*models.Memory{low}}
	fe := &fakeEmbedder{vector: []float32{1, 0}}
	p := newPipeline(fs, fe)

	result, err := p.Retrieve(context.Background(), "query", Options{})
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range result.Hits {
		if h.Memory.ID == "low-sim" {
			t.Fatal("expected low-sim to be excluded by the semantic floor")
		}
	}
}

// Invariant: a result never holds more than MaxEntries items.
func TestRetrieveNeverReturnsMoreThanMaxEntries(t *testing.T) {
	var all []*models.Memory
	for i := 0; i < 50; i++ {
		all = append(all, mem(rid("d", i), "d", models.PatternFact, float64(i), []float32{1, 0}, "a sufficiently long detail string for budget math"))
	}
	fs := &fakeStore{withEmbedding: all}
	fe := &fakeEmbedder{vector: []float32{1, 0}}
	p := newPipeline(fs, fe)

	result, err := p.Retrieve(context.Background(), "q", Options{MaxEntries: 5, MaxContextTokens: 10000})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Hits) > 5 {
		t.Fatalf("expected at most 5 hits, got %d", len(result.Hits))
	}
}

func TestRetrieveStopsAtCharBudget(t *testing.T) {
	detail := "d" + strings.Repeat("x", 99) // cost 100+20 per entry
	var all []*models.Memory
	for i := 0; i < 5; i++ {
		all = append(all, mem(rid("go", i), "go-"+string(rune('a'+i)), models.PatternFact, 1, []float32{1, 0}, detail))
	}
	fs := &fakeStore{withEmbedding: all}
	fe := &fakeEmbedder{vector: []float32{1, 0}}
	p := newPipeline(fs, fe)

	// 50 tokens -> 200 chars: the first entry (cost 120) fits, a second
	// (cumulative 240) would overflow.
	result, err := p.Retrieve(context.Background(), "q", Options{MaxEntries: 20, MaxContextTokens: 50})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Hits) != 1 {
		t.Fatalf("expected budget to stop selection at 1 entry, got %d", len(result.Hits))
	}
}

func TestRetrieveTakesOversizedFirstEntry(t *testing.T) {
	detail := strings.Repeat("y", 300)
	m := mem("big", "go", models.PatternFact, 1, []float32{1, 0}, detail)
	fs := &fakeStore{withEmbedding: []*models.Memory{m}}
	fe := &fakeEmbedder{vector: []float32{1, 0}}
	p := newPipeline(fs, fe)

	result, err := p.Retrieve(context.Background(), "q", Options{MaxEntries: 5, MaxContextTokens: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Hits) != 1 {
		t.Fatalf("expected the first entry to be taken even over budget, got %d", len(result.Hits))
	}
}

func TestRetrieveEmptyQueryFallsBackToActivationOnly(t *testing.T) {
	m := mem("m1", "go", models.PatternFact, 5, []float32{1, 0}, "detail text long enough to pass penalty")
	fs := &fakeStore{withEmbedding: []*models.Memory{m}}
	fe := &fakeEmbedder{vector: []float32{1, 0}}
	p := newPipeline(fs, fe)

	result, err := p.Retrieve(context.Background(), "", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !result.DegradedQuery {
		t.Fatal("expected degraded query for empty input")
	}
}

func TestRetrieveEmbeddingFailureDegradesGracefully(t *testing.T) {
	m := mem("m1", "go", models.PatternFact, 5, nil, "detail text long enough to pass penalty")
	fs := &fakeStore{byDomain: map[string][]*models.Memory{"go": {m}}}
	fe := &fakeEmbedder{err: context.DeadlineExceeded}
	p := newPipeline(fs, fe)

	result, err := p.Retrieve(context.Background(), "some query", Options{Domains: []string{"go"}})
	if err != nil {
		t.Fatal(err)
	}
	if !result.DegradedQuery {
		t.Fatal("expected degraded query on embedding failure")
	}
	if len(result.Hits) != 1 {
		t.Fatalf("expected domain-hint fallback to find m1, got %+v", result.Hits)
	}
}

func rid(domain string, i int) string {
	return domain + "-" + string(rune('a'+i))
}

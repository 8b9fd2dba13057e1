package ingestion

import (
	"context"
	"testing"

	"github.com/hebbianmem/hebbianmem/internal/models"
)

type fakeStore struct {
	byID          map[string]*models.Memory
	withEmbedding []*models.Memory
	upserted      []*models.Memory
	tagsWritten   map[string][]string
	meta          map[string]string
	batches       int
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: map[string]*models.Memory{}, tagsWritten: map[string][]string{}, meta: map[string]string{}}
}

func (f *fakeStore) GetMemory(ctx context.Context, id string) (*models.Memory, error) {
	return f.byID[id], nil
}

func (f *fakeStore) ScanWithEmbedding(ctx context.Context) ([]*models.Memory, error) {
	return f.withEmbedding, nil
}

func (f *fakeStore) UpsertBatch(ctx context.Context, ms []*models.Memory, tags map[string][]string) error {
	f.batches++
	for _, m := range ms {
		f.upserted = append(f.upserted, m)
		f.byID[m.ID] = m
		f.tagsWritten[m.ID] = tags[m.ID]
	}
	return nil
}

func (f *fakeStore) SetMeta(ctx context.Context, key, value string) error {
	f.meta[key] = value
	return nil
}

type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = []float32{0.5, 0.5}
		}
	}
	return out, nil
}

func TestIngestAddsNewCandidate(t *testing.T) {
	fs := newFakeStore()
	fe := &fakeEmbedder{vectors: map[string][]float32{}}
	p := New(fs, fe)

	report, err := p.Ingest(context.Background(), "atomic", []Candidate{
		{Domain: "go", PatternType: models.PatternFact, Title: "t1", Detail: "detail one", Source: "s", SourceSection: "sec", Tags: []string{"Go"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if report.Added != 1 {
		t.Fatalf("expected 1 added, got %+v", report)
	}
	if len(fs.upserted) != 1 {
		t.Fatalf("expected 1 upsert, got %d", len(fs.upserted))
	}
	id := models.BuildID("go", "atomic", "t1")
	if len(fs.tagsWritten[id]) != 1 || fs.tagsWritten[id][0] != "Go" {
		t.Fatalf("expected tags written for %s, got %v", id, fs.tagsWritten)
	}
}

func TestIngestSkipsExistingActiveID(t *testing.T) {
	fs := newFakeStore()
	id := models.BuildID("go", "atomic", "t1")
	fs.byID[id] = &models.Memory{ID: id, Status: models.StatusActive}
	fe := &fakeEmbedder{}
	p := New(fs, fe)

	report, err := p.Ingest(context.Background(), "atomic", []Candidate{
		{Domain: "go", Title: "t1", Detail: "detail one"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if report.SkippedByID != 1 || report.Added != 0 {
		t.Fatalf("expected skip by id, got %+v", report)
	}
}

func TestIngestTwiceIsIdempotentSecondRunAddsNothing(t *testing.T) {
	fs := newFakeStore()
	fe := &fakeEmbedder{}
	p := New(fs, fe)

	cands := []Candidate{{Domain: "go", Title: "t1", Detail: "detail one two three"}}
	first, err := p.Ingest(context.Background(), "atomic", cands)
	if err != nil {
		t.Fatal(err)
	}
	if first.Added != 1 {
		t.Fatalf("expected first run to add 1, got %+v", first)
	}

	second, err := p.Ingest(context.Background(), "atomic", cands)
	if err != nil {
		t.Fatal(err)
	}
	if second.Added != 0 {
		t.Fatalf("expected second run to add 0, got %+v", second)
	}
}

func TestIngestSemanticDedupRejectsNearDuplicate(t *testing.T) {
	fs := newFakeStore()
	fs.withEmbedding = []*models.Memory{
		{ID: "existing", Embedding: []float32{1, 0, 0}, Status: models.StatusActive},
	}
	fe := &fakeEmbedder{vectors: map[string][]float32{
		"[go] new candidate text": {0.999, 0.001, 0},
	}}
	p := New(fs, fe)

	report, err := p.Ingest(context.Background(), "atomic", []Candidate{
		{Domain: "go", Title: "new candidate text", Detail: ""},
	})
	if err != nil {
		t.Fatal(err)
	}
	if report.SkippedByDedup != 1 || report.Added != 0 {
		t.Fatalf("expected the near-duplicate to be rejected, got %+v", report)
	}
	if len(fs.upserted) != 0 {
		t.Fatalf("expected store row count unchanged, got %d upserts", len(fs.upserted))
	}
}

func TestIngestEmbeddingFailureInsertsWithoutEmbedding(t *testing.T) {
	fs := newFakeStore()
	fe := &fakeEmbedder{err: context.DeadlineExceeded}
	p := New(fs, fe)

	report, err := p.Ingest(context.Background(), "atomic", []Candidate{
		{Domain: "go", Title: "t1", Detail: "detail one"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if report.Added != 1 {
		t.Fatalf("expected degraded insert to still add the row, got %+v", report)
	}
	id := models.BuildID("go", "atomic", "t1")
	if fs.byID[id].Embedding != nil {
		t.Fatal("expected no embedding to be set on embedding failure")
	}
}

func TestIngestWritesPerSourceFingerprint(t *testing.T) {
	fs := newFakeStore()
	fe := &fakeEmbedder{}
	p := New(fs, fe)
	_, err := p.Ingest(context.Background(), "atomic", []Candidate{
		{Domain: "go", Title: "t1", Detail: "detail", Source: "docs/knowledge.md"},
		{Domain: "go", Title: "t2", Detail: "other detail", Source: "docs/other.md"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if fs.meta["atomize_hash:docs/knowledge.md"] == "" || fs.meta["atomize_hash:docs/other.md"] == "" {
		t.Fatalf("expected a fingerprint per source path, got %v", fs.meta)
	}
}

func TestIngestUpsertsSurvivorsInOneBatch(t *testing.T) {
	fs := newFakeStore()
	fe := &fakeEmbedder{vectors: map[string][]float32{
		"[go] t1 detail one":   {1, 0, 0},
		"[go] t2 detail two":   {0, 1, 0},
		"[go] t3 detail three": {0, 0, 1},
	}}
	p := New(fs, fe)
	report, err := p.Ingest(context.Background(), "atomic", []Candidate{
		{Domain: "go", Title: "t1", Detail: "detail one"},
		{Domain: "go", Title: "t2", Detail: "detail two"},
		{Domain: "go", Title: "t3", Detail: "detail three"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if report.Added != 3 {
		t.Fatalf("expected 3 added, got %+v", report)
	}
	if fs.batches != 1 {
		t.Fatalf("expected a single transactional batch, got %d", fs.batches)
	}
}

func TestIngestEmptyBatchReturnsEmptyReport(t *testing.T) {
	fs := newFakeStore()
	fe := &fakeEmbedder{}
	p := New(fs, fe)
	report, err := p.Ingest(context.Background(), "atomic", nil)
	if err != nil {
		t.Fatal(err)
	}
	if report.Added != 0 {
		t.Fatalf("expected no-op for empty batch, got %+v", report)
	}
}

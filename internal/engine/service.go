// Package engine wires the store, embedding client, activation engine,
// co-occurrence engine, retrieval pipeline, ingestion pipeline, and
// supervisor into the one orchestration point the host framework talks to.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hebbianmem/hebbianmem/internal/activation"
	"github.com/hebbianmem/hebbianmem/internal/config"
	"github.com/hebbianmem/hebbianmem/internal/cooccurrence"
	"github.com/hebbianmem/hebbianmem/internal/embedclient"
	"github.com/hebbianmem/hebbianmem/internal/ingestion"
	"github.com/hebbianmem/hebbianmem/internal/memstore"
	"github.com/hebbianmem/hebbianmem/internal/models"
	"github.com/hebbianmem/hebbianmem/internal/retrieval"
	"github.com/hebbianmem/hebbianmem/internal/supervision"
)

// Service orchestrates every component into the operations a host or
// operator CLI actually calls.
type Service struct {
	store      *memstore.Store
	embed      *embedclient.Client
	activation *activation.Engine
	coocc      *cooccurrence.Engine
	retrieval  *retrieval.Pipeline
	ingestion  *ingestion.Pipeline
	supervisor *supervision.Supervisor
	cfg        *config.Config
	logger     *zap.Logger

	mu           sync.Mutex
	lastSelected []string // ids of the most recent retrieval, for tool-triggered refresh

	startTime time.Time
}

// New constructs a Service from configuration, opening the store and
// embedding client and wiring every dependent component.
func New(cfg *config.Config, logger *zap.Logger) (*Service, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := memstore.Open(cfg.DBPath, cfg.EmbedDimension, logger)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	embed := embedclient.New(&embedclient.Config{
		BaseURL:   cfg.EmbedURL,
		Model:     cfg.EmbedModel,
		Dimension: cfg.EmbedDimension,
		Timeout:   embedclient.DefaultTimeout,
		CacheTTL:  cfg.EmbeddingCacheTTL,
		CacheCap:  embedclient.DefaultCacheSoftCap,
	})

	actEng := activation.New(store)
	coEng := cooccurrence.New(store)
	retrievalPipeline := retrieval.New(store, embed, actEng, coEng)
	ingestionPipeline := ingestion.New(store, embed)
	supervisor := supervision.New(store)

	return &Service{
		store:      store,
		embed:      embed,
		activation: actEng,
		coocc:      coEng,
		retrieval:  retrievalPipeline,
		ingestion:  ingestionPipeline,
		supervisor: supervisor,
		cfg:        cfg,
		logger:     logger,
		startTime:  time.Now(),
	}, nil
}

// Close releases the underlying store handle.
func (s *Service) Close() error {
	return s.store.Close()
}

// Retrieve runs the retrieval pipeline with the service's configured
// defaults applied as the baseline Options.
func (s *Service) Retrieve(ctx context.Context, query string, domains []string) (*retrieval.Result, error) {
	opts := retrieval.Options{
		Domains:          domains,
		MaxEntries:       s.cfg.MaxEntries,
		MaxContextTokens: s.cfg.MaxContextTokens,
		SemanticWeight:   s.cfg.SemanticWeight,
		ActivationWeight: s.cfg.ActivationWeight,
		DomainWeight:     s.cfg.DomainWeight,
	}
	result, err := s.retrieval.Retrieve(ctx, query, opts)
	if err != nil {
		s.logger.Warn("retrieval failed", zap.Error(err))
		return &retrieval.Result{}, nil
	}

	ids := make([]string, len(result.Hits))
	for i, h := range result.Hits {
		ids[i] = h.Memory.ID
	}
	s.mu.Lock()
	s.lastSelected = ids
	s.mu.Unlock()

	return result, nil
}

// Ingest runs the ingestion pipeline for one channel's batch of candidates.
func (s *Service) Ingest(ctx context.Context, channel string, candidates []ingestion.Candidate) (*ingestion.Report, error) {
	return s.ingestion.Ingest(ctx, channel, candidates)
}

// Deprecate marks oldID deprecated in favour of newID.
func (s *Service) Deprecate(ctx context.Context, oldID, newID string) error {
	return s.supervisor.Deprecate(ctx, oldID, newID)
}

// MarkCorrection marks correctionID as a correction of correctedID.
func (s *Service) MarkCorrection(ctx context.Context, correctionID, correctedID string) error {
	return s.supervisor.MarkCorrection(ctx, correctionID, correctedID)
}

// Decay applies the daily decay factor across every row. This is a
// maintenance task invoked by the operator or a scheduler, never from the
// query hot path.
func (s *Service) Decay(ctx context.Context) error {
	return s.activation.Decay(ctx, s.cfg.DecayDailyFactor)
}

// LowActivationReport is advisory reporting on low-activation entries; the
// no-eviction invariant means this never deletes anything.
type LowActivationReport struct {
	Domain     string
	ID         string
	Activation float64
}

// LowActivation scans every domain present in activeDomains and reports
// entries below threshold, sorted ascending by activation.
func (s *Service) LowActivation(ctx context.Context, activeDomains []string, threshold float64) ([]LowActivationReport, error) {
	var out []LowActivationReport
	for _, domain := range activeDomains {
		rows, err := s.store.ScanByDomain(ctx, domain)
		if err != nil {
			return nil, err
		}
		for _, m := range rows {
			if m.Activation < threshold {
				out = append(out, LowActivationReport{Domain: domain, ID: m.ID, Activation: m.Activation})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Activation < out[j].Activation
	})
	return out, nil
}

// Top returns up to n memories in domain ordered by descending activation.
func (s *Service) Top(ctx context.Context, domain string, n int) ([]*models.Memory, error) {
	rows, err := s.store.ScanByDomain(ctx, domain)
	if err != nil {
		return nil, err
	}
	if n >= 0 && len(rows) > n {
		rows = rows[:n]
	}
	return rows, nil
}

// BackfillEmbeddings computes embeddings for every active memory missing
// one and upserts the result. It returns the number of rows repaired.
func (s *Service) BackfillEmbeddings(ctx context.Context) (int, error) {
	rows, err := s.store.ScanMissingEmbedding(ctx)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	texts := make([]string, len(rows))
	for i, m := range rows {
		texts[i] = embedclient.BuildConcatenation(m.Domain, m.PatternType, m.Title, m.Detail, m.SourceSection)
	}
	vectors, err := s.embed.Embed(ctx, texts)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for i, m := range rows {
		if vectors[i] == nil {
			continue
		}
		m.Embedding = vectors[i]
		if err := s.store.UpsertMemory(ctx, m); err != nil {
			continue
		}
		repaired++
	}
	return repaired, nil
}

// Stats summarizes store contents for the "stats" operator command.
type Stats struct {
	TotalMemories int
	ByDomain      map[string]int
	ByPatternType map[string]int
	ActivationSum float64
}

// GetStats scans every active memory to report totals by domain and
// pattern type plus the sum of their activations. No other activation
// figures (minimum, maximum, percentiles) are computed.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	rows, err := s.store.ScanActive(ctx)
	if err != nil {
		return nil, err
	}
	stats := &Stats{ByDomain: map[string]int{}, ByPatternType: map[string]int{}}
	for _, m := range rows {
		stats.TotalMemories++
		stats.ByDomain[m.Domain]++
		stats.ByPatternType[string(m.PatternType)]++
		stats.ActivationSum += m.Activation
	}
	return stats, nil
}

// Uptime reports how long this Service instance has been running.
func (s *Service) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// Package embedclient is the stateless-oracle client: it maps batches of
// text to fixed-dimension embedding vectors over HTTP, fronted by a
// process-local TTL cache.
package embedclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hebbianmem/hebbianmem/internal/models"
)

const (
	// MaxBatchSize is the largest batch the oracle accepts per call.
	MaxBatchSize = 25
	// MaxInputChars is the per-text truncation length before dispatch.
	MaxInputChars = 512
	// DefaultTimeout is the per-call network timeout.
	DefaultTimeout = 15 * time.Second
	// DefaultCacheTTL is the embedding cache's default entry lifetime.
	DefaultCacheTTL = 5 * time.Minute
	// DefaultCacheSoftCap is the embedding cache's soft capacity.
	DefaultCacheSoftCap = 100
)

// Config configures a Client.
type Config struct {
	BaseURL   string // base URL of the embedding oracle, e.g. http://localhost:11434
	Model     string
	Dimension int
	Timeout   time.Duration
	CacheTTL  time.Duration
	CacheCap  int
	// RatePerSecond throttles outbound batch requests; 0 disables throttling.
	RatePerSecond float64
}

// DefaultConfig returns defaults suitable for a local Ollama-style oracle.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:   "http://localhost:11434",
		Model:     "nomic-embed-text",
		Dimension: 768,
		Timeout:   DefaultTimeout,
		CacheTTL:  DefaultCacheTTL,
		CacheCap:  DefaultCacheSoftCap,
	}
}

// Client talks to the embedding oracle and caches single-text lookups.
type Client struct {
	config     *Config
	httpClient *http.Client
	cache      *cache
	limiter    *rate.Limiter
}

// New constructs a Client. A nil config falls back to DefaultConfig.
func New(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	c := &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		cache: newCache(config.CacheTTL, config.CacheCap),
	}
	if config.RatePerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(config.RatePerSecond), MaxBatchSize)
	}
	return c
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed maps texts to vectors of the same length and order, batching calls
// of at most MaxBatchSize. Single-text lookups are served from the cache
// when present. On any failure it returns an *models.EngineError tagged
// EmbedUnavailable, EmbedTimeout, or EmbedMalformed; callers are expected
// to proceed in degraded mode rather than treat this as fatal.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		truncated := truncate(text, MaxInputChars)
		if v, ok := c.cache.get(truncated); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, truncated)
	}

	for start := 0; start < len(missTexts); start += MaxBatchSize {
		end := start + MaxBatchSize
		if end > len(missTexts) {
			end = len(missTexts)
		}
		vectors, err := c.embedBatch(ctx, missTexts[start:end])
		if err != nil {
			return nil, err
		}
		for i, v := range vectors {
			idx := missIdx[start+i]
			out[idx] = v
			c.cache.set(missTexts[start+i], v)
		}
	}
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if c.limiter != nil {
		if err := c.limiter.WaitN(ctx, len(texts)); err != nil {
			return nil, models.NewError(models.EmbedTimeout, "embedclient.Embed", err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	reqBody, err := json.Marshal(embedRequest{Model: c.config.Model, Input: texts})
	if err != nil {
		return nil, models.NewError(models.EmbedMalformed, "embedclient.Embed", err)
	}

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.config.BaseURL+"/api/embed", bytes.NewReader(reqBody))
	if err != nil {
		return nil, models.NewError(models.EmbedUnavailable, "embedclient.Embed", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if callCtx.Err() != nil {
			return nil, models.NewError(models.EmbedTimeout, "embedclient.Embed", err)
		}
		return nil, models.NewError(models.EmbedUnavailable, "embedclient.Embed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, models.NewError(models.EmbedUnavailable, "embedclient.Embed",
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body)))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, models.NewError(models.EmbedMalformed, "embedclient.Embed", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, models.NewError(models.EmbedMalformed, "embedclient.Embed",
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(parsed.Embeddings)))
	}
	return parsed.Embeddings, nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// BuildConcatenation builds the string a memory's embedding is computed
// from: "[domain] (pattern_type) title detail source_section", with empty
// fields omitted, whitespace-joined, truncated to MaxInputChars.
func BuildConcatenation(domain string, patternType models.PatternType, title, detail, sourceSection string) string {
	var parts []string
	if domain != "" {
		parts = append(parts, "["+domain+"]")
	}
	if patternType != "" {
		parts = append(parts, "("+string(patternType)+")")
	}
	if title != "" {
		parts = append(parts, title)
	}
	if detail != "" {
		parts = append(parts, detail)
	}
	if sourceSection != "" {
		parts = append(parts, sourceSection)
	}
	return truncate(strings.Join(parts, " "), MaxInputChars)
}

// Package activation implements the Hebbian-style activation mechanics:
// bumping on retrieval, multiplicative decay over time, and the
// percentile-based normalisation the retrieval pipeline scores against.
package activation

import (
	"context"
	"sort"
)

// Default bump amounts for retrieval and tool-triggered refresh, and the
// scheduled decay rate.
const (
	RetrievalBump    = 0.5
	ToolRefreshBump  = 0.3
	DefaultDailyRate = 0.9995
)

// store is the subset of memstore.Store the engine needs, kept narrow so
// this package stays independently testable with a fake.
type store interface {
	BumpActivation(ctx context.Context, ids []string, delta float64) (int64, error)
	DecayAll(ctx context.Context, factor float64) error
}

// Engine wraps the store operations the Activation Engine is responsible
// for and adds the pure-CPU normalisation step.
type Engine struct {
	store store
}

// New constructs an Engine over the given store.
func New(s store) *Engine {
	return &Engine{store: s}
}

// Bump applies delta to every listed id's activation, incrementing
// retrieval_count and updating last_retrieved, inside one transaction. It
// returns the number of rows actually touched.
func (e *Engine) Bump(ctx context.Context, ids []string, delta float64) (int64, error) {
	return e.store.BumpActivation(ctx, ids, delta)
}

// Decay multiplies every row's activation by factor in a single statement.
func (e *Engine) Decay(ctx context.Context, factor float64) error {
	return e.store.DecayAll(ctx, factor)
}

// Normalize computes the 95th percentile of activations and divides each by
// max(p95, 1), clipped to [0,1]. The result is keyed by the input slice
// index, matching the order candidates are passed in.
func Normalize(activations []float64) []float64 {
	out := make([]float64, len(activations))
	if len(activations) == 0 {
		return out
	}
	p95 := percentile95(activations)
	denom := p95
	if denom < 1 {
		denom = 1
	}
	for i, a := range activations {
		v := a / denom
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		out[i] = v
	}
	return out
}

// percentile95 returns the element at index floor(0.95*(n-1)) of a sorted
// copy of values; it does not mutate its argument.
func percentile95(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := int(0.95 * float64(len(sorted)-1))
	return sorted[rank]
}

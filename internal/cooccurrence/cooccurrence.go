// Package cooccurrence maintains the symmetric, additive-weight graph built
// from joint retrievals and computes the spreading-activation boost used to
// fill out a retrieval result.
package cooccurrence

import (
	"context"
	"sort"

	"github.com/hebbianmem/hebbianmem/internal/models"
)

// NeighboursPerID caps how many neighbours Spread loads per active id.
const NeighboursPerID = 20

// SpreadFactor is the multiplier applied to a neighbour's edge weight when
// accumulating its boost.
const SpreadFactor = 0.3

// store is the subset of memstore.Store this package depends on.
type store interface {
	AddCoOccurrences(ctx context.Context, pairs [][2]string, delta float64) error
	TopCoOccurrenceNeighbours(ctx context.Context, id string, limit int) ([]models.Neighbour, error)
	GetMemory(ctx context.Context, id string) (*models.Memory, error)
}

// Engine wraps store access for co-occurrence maintenance and spreading
// activation.
type Engine struct {
	store store
}

// New constructs an Engine over the given store.
func New(s store) *Engine {
	return &Engine{store: s}
}

// Wire groups ids by domain (null/"general" is its own group) and, within
// each group, adds +1 to both directed edges of every unordered pair,
// committing every edge in one transaction. Cross-domain pairs are not
// wired. domainOf resolves an id's domain; ids whose domain cannot be
// resolved fall into the general group.
func (e *Engine) Wire(ctx context.Context, ids []string, domainOf func(id string) string) error {
	groups := make(map[string][]string)
	for _, id := range ids {
		d := domainOf(id)
		if d == "" {
			d = models.GeneralDomain
		}
		groups[d] = append(groups[d], id)
	}
	var pairs [][2]string
	for _, group := range groups {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				pairs = append(pairs, [2]string{group[i], group[j]})
			}
		}
	}
	return e.store.AddCoOccurrences(ctx, pairs, 1.0)
}

// Boosted is a neighbour memory reached via spreading activation, together
// with its accumulated boost score.
type Boosted struct {
	Memory *models.Memory
	Boost  float64
}

// Spread fetches up to NeighboursPerID neighbours of each active id and
// accumulates boost(n) += weight*SpreadFactor for every neighbour not
// already active. It returns the top-limit neighbours by boost, each
// reunited with its full memory record.
func (e *Engine) Spread(ctx context.Context, activeIDs []string, limit int) ([]Boosted, error) {
	active := make(map[string]bool, len(activeIDs))
	for _, id := range activeIDs {
		active[id] = true
	}

	boosts := make(map[string]float64)
	order := make([]string, 0)
	for _, id := range activeIDs {
		neighbours, err := e.store.TopCoOccurrenceNeighbours(ctx, id, NeighboursPerID)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbours {
			if active[n.ID] {
				continue
			}
			if _, seen := boosts[n.ID]; !seen {
				order = append(order, n.ID)
			}
			boosts[n.ID] += n.Weight * SpreadFactor
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return boosts[order[i]] > boosts[order[j]]
	})
	if limit >= 0 && len(order) > limit {
		order = order[:limit]
	}

	out := make([]Boosted, 0, len(order))
	for _, id := range order {
		m, err := e.store.GetMemory(ctx, id)
		if err != nil {
			return nil, err
		}
		if m == nil || !m.IsActive() {
			continue
		}
		out = append(out, Boosted{Memory: m, Boost: boosts[id]})
	}
	return out, nil
}

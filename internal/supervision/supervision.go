// Package supervision implements the two editorial relations between
// memories: deprecation (superseded-by) and correction (corrects).
package supervision

import (
	"context"
	"errors"

	"github.com/hebbianmem/hebbianmem/internal/models"
)

// ErrNotFound is returned when an operation targets an id that does not
// exist in the store. No rows are mutated.
var ErrNotFound = errors.New("supervision: memory not found")

// store is the subset of memstore.Store this package depends on.
type store interface {
	GetMemory(ctx context.Context, id string) (*models.Memory, error)
	UpsertMemory(ctx context.Context, m *models.Memory) error
}

// Supervisor applies the Deprecate and MarkCorrection state transitions.
type Supervisor struct {
	store store
}

// New constructs a Supervisor over the given store.
func New(s store) *Supervisor {
	return &Supervisor{store: s}
}

// Deprecate marks oldID deprecated in favour of newID. Both ids must exist;
// a missing id returns ErrNotFound and mutates nothing.
func (s *Supervisor) Deprecate(ctx context.Context, oldID, newID string) error {
	old, err := s.store.GetMemory(ctx, oldID)
	if err != nil {
		return err
	}
	if old == nil {
		return ErrNotFound
	}
	replacement, err := s.store.GetMemory(ctx, newID)
	if err != nil {
		return err
	}
	if replacement == nil {
		return ErrNotFound
	}

	old.Status = models.StatusDeprecated
	old.SupersededBy = newID
	return s.store.UpsertMemory(ctx, old)
}

// MarkCorrection sets correctionID.corrects = correctedID. The correction
// itself remains active.
func (s *Supervisor) MarkCorrection(ctx context.Context, correctionID, correctedID string) error {
	correction, err := s.store.GetMemory(ctx, correctionID)
	if err != nil {
		return err
	}
	if correction == nil {
		return ErrNotFound
	}
	corrected, err := s.store.GetMemory(ctx, correctedID)
	if err != nil {
		return err
	}
	if corrected == nil {
		return ErrNotFound
	}

	correction.Corrects = correctedID
	return s.store.UpsertMemory(ctx, correction)
}

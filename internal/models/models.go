// Package models holds the data model shared by every hebbianmem package:
// the Memory record, its tag and co-occurrence edges, and the small Meta
// key/value table.
package models

import "time"

// PatternType is one of the fourteen atomic-pattern categories a Memory can
// carry, or the empty string for a legacy file-level blob with no type.
type PatternType string

const (
	PatternRule       PatternType = "rule"
	PatternDirective  PatternType = "directive"
	PatternCommand    PatternType = "command"
	PatternFact       PatternType = "fact"
	PatternDiscovery  PatternType = "discovery"
	PatternFailure    PatternType = "failure"
	PatternSolution   PatternType = "solution"
	PatternConfig     PatternType = "config"
	PatternBenchmark  PatternType = "benchmark"
	PatternBugInsight PatternType = "bug-insight"
	PatternDecision   PatternType = "decision"
	PatternSpec       PatternType = "spec"
	PatternCorrection PatternType = "correction"
	PatternConclusion PatternType = "conclusion"
)

// Status is the lifecycle state of a Memory. A null/empty status read from
// storage is treated as StatusActive for backward compatibility.
type Status string

const (
	StatusActive     Status = "active"
	StatusDeprecated Status = "deprecated"
)

// GeneralDomain is the sentinel catch-all domain used when no coarse topic
// can be assigned to a memory.
const GeneralDomain = "general"

// Memory is the unit of storage: an atomic, embedding-indexed record.
type Memory struct {
	ID             string
	Title          string
	Detail         string
	Domain         string
	PatternType    PatternType // empty means "no type" (legacy blob)
	Source         string
	SourceSection  string
	Created        time.Time
	LastRetrieved  time.Time
	RetrievalCount int64
	Activation     float64
	ContentHash    string
	Embedding      []float32 // nil when no embedding has been computed
	Status         Status
	SupersededBy   string // set only when Status == StatusDeprecated
	Corrects       string // set when this memory corrects another
}

// HasPatternType reports whether the memory carries an explicit pattern
// type, as opposed to being a legacy file-level blob.
func (m *Memory) HasPatternType() bool {
	return m.PatternType != ""
}

// IsActive treats a null/empty status as active for backward
// compatibility with rows written before the status column existed.
func (m *Memory) IsActive() bool {
	return m.Status != StatusDeprecated
}

// Tag is one edge of the many-to-many memory<->tag relation. Tags are
// always lower-cased short strings.
type Tag struct {
	MemoryID string
	Tag      string
}

// CoOccurrenceEdge is one directed half of a symmetric co-occurrence pair.
// The engine always writes both (A,B) and (B,A) with equal weight.
type CoOccurrenceEdge struct {
	A      string
	B      string
	Weight float64
}

// Neighbour is a co-occurrence neighbour returned by a top-K lookup.
type Neighbour struct {
	ID     string
	Weight float64
}

package answer

import (
	"fmt"

	"github.com/drdoc/drdoc/internal/chunker"
	"github.com/drdoc/drdoc/internal/facts"
)

// RetrievalMode selects which knowledge sources a question consults.
type RetrievalMode string

const (
	ModeVector   RetrievalMode = "vector"
	ModeSymbolic RetrievalMode = "symbolic"
	ModeHybrid   RetrievalMode = "hybrid"
)

// ParseMode parses a caller-supplied mode hint. An empty string means no
// hint (automatic classification).
func ParseMode(s string) (RetrievalMode, error) {
	switch RetrievalMode(s) {
	case "", ModeVector, ModeSymbolic, ModeHybrid:
		return RetrievalMode(s), nil
	}
	return "", fmt.Errorf("unknown retrieval mode: %q", s)
}

// Origin tags where a piece of evidence came from.
type Origin string

const (
	OriginVector   Origin = "vector"
	OriginSymbolic Origin = "symbolic"
)

// EvidenceItem is one retrieved piece of support: a chunk with its
// similarity score, or a fact with a binary match score of 1.
type EvidenceItem struct {
	Origin Origin
	Chunk  *chunker.Chunk
	Fact   *facts.Fact
	Score  float32
}

// SourceFile returns the file this evidence cites.
func (e EvidenceItem) SourceFile() string {
	if e.Fact != nil {
		return e.Fact.File
	}
	if e.Chunk != nil {
		return e.Chunk.File
	}
	return ""
}

// ID returns a stable identity used for deterministic tie-breaking.
func (e EvidenceItem) ID() string {
	if e.Fact != nil {
		return e.Fact.Key()
	}
	if e.Chunk != nil {
		return e.Chunk.ID
	}
	return ""
}

// Confidence tiers. Exact matches corroborated by similar passages score
// high; a single responding source scores medium; weak vector-only
// evidence scores low; no evidence at all is the zero terminal case.
const (
	ConfidenceHigh   float32 = 0.9
	ConfidenceMedium float32 = 0.6
	ConfidenceLow    float32 = 0.3
	ConfidenceNone   float32 = 0
)

// Answer is the final output returned to the caller.
type Answer struct {
	Text       string         `json:"text"`
	Citations  []string       `json:"citations"`
	Evidence   []EvidenceItem `json:"-"`
	Confidence float32        `json:"confidence"`
	Mode       RetrievalMode  `json:"mode"`
	Reasoning  string         `json:"reasoning,omitempty"`
}

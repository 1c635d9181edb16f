package answer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/drdoc/drdoc/internal/config"
)

// Merge orders evidence from both sources, truncates it to the configured
// budget and assigns a calibrated confidence tier. The same evidence in
// any input order produces the same output.
func Merge(items []EvidenceItem, degraded Degradation, cfg config.RetrievalConfig) ([]EvidenceItem, float32, string) {
	if len(items) == 0 {
		return nil, ConfidenceNone, "no evidence found in either source"
	}

	merged := make([]EvidenceItem, len(items))
	copy(merged, items)

	// Exact facts outrank similarity matches. Ties break on file then ID
	// so merge output is stable across runs.
	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.Origin != b.Origin {
			return a.Origin == OriginSymbolic
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.SourceFile() != b.SourceFile() {
			return a.SourceFile() < b.SourceFile()
		}
		return a.ID() < b.ID()
	})

	if cfg.MaxEvidence > 0 && len(merged) > cfg.MaxEvidence {
		merged = merged[:cfg.MaxEvidence]
	}

	confidence, reasoning := calibrate(merged, degraded, cfg)
	return merged, confidence, reasoning
}

func calibrate(merged []EvidenceItem, degraded Degradation, cfg config.RetrievalConfig) (float32, string) {
	var symbolic, vector int
	var bestVector float32
	for _, it := range merged {
		switch it.Origin {
		case OriginSymbolic:
			symbolic++
		case OriginVector:
			vector++
			if it.Score > bestVector {
				bestVector = it.Score
			}
		}
	}

	switch {
	case symbolic > 0 && vector > 0 && corroborated(merged):
		if degraded.Symbolic || degraded.Vector {
			return ConfidenceMedium, "corroborated evidence, but a retrieval source was degraded"
		}
		return ConfidenceHigh, fmt.Sprintf("%d facts corroborated by %d passages", symbolic, vector)

	case symbolic > 0 && vector > 0:
		return ConfidenceMedium, fmt.Sprintf("%d facts and %d passages from independent documents", symbolic, vector)

	case symbolic > 0:
		reason := fmt.Sprintf("%d exact facts without supporting passages", symbolic)
		if degraded.Vector {
			reason = fmt.Sprintf("%d exact facts; passage retrieval was unavailable", symbolic)
		}
		return ConfidenceMedium, reason

	default:
		reason := fmt.Sprintf("%d passages by similarity alone", vector)
		if degraded.Symbolic {
			reason = fmt.Sprintf("%d passages; fact retrieval was unavailable", vector)
		}
		if bestVector < cfg.LowConfidence {
			return ConfidenceLow, reason + "; all below the confidence threshold"
		}
		return ConfidenceMedium, reason
	}
}

// corroborated reports whether at least one fact is backed by a passage:
// either both cite the same file, or the passage text mentions the fact's
// subject.
func corroborated(merged []EvidenceItem) bool {
	for _, f := range merged {
		if f.Origin != OriginSymbolic || f.Fact == nil {
			continue
		}
		for _, c := range merged {
			if c.Origin != OriginVector || c.Chunk == nil {
				continue
			}
			if c.Chunk.File == f.Fact.File {
				return true
			}
			if f.Fact.Subject != "" && strings.Contains(c.Chunk.Text, f.Fact.Subject) {
				return true
			}
		}
	}
	return false
}

package answer

import "strings"

// symbolicIndicators are keywords tied to the fact categories the extractor
// covers. A question mentioning one benefits from exact facts, but facts
// usually need surrounding prose, so the classifier pairs them with vector
// context rather than using the symbolic store alone.
var symbolicIndicators = []string{
	"error code",
	"error codes",
	"status code",
	"rate limit",
	"endpoint",
	"parameter",
	"tier",
	"oauth",
	"authentication",
	"authorization",
	"api key",
	"bearer",
	"jwt",
	"security",
	"slippage",
	"gas",
	"fee",
	"caching",
	"monitoring",
	"how many requests",
}

// Classify decides which sources a question consults. An explicit caller
// hint wins; otherwise a symbolic-indicator keyword selects HYBRID and
// everything else falls through to VECTOR. This is a heuristic: the merger
// tolerates a chosen source turning out empty.
func Classify(question string, hint RetrievalMode) RetrievalMode {
	if hint != "" {
		return hint
	}

	q := strings.ToLower(question)
	for _, indicator := range symbolicIndicators {
		if strings.Contains(q, indicator) {
			return ModeHybrid
		}
	}
	return ModeVector
}

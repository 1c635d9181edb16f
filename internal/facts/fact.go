package facts

import (
	"fmt"
	"strings"
)

// Fact is one extracted relation. Subject, Object and Detail fill the tuple
// positions left to right; unused positions stay empty. File records where
// the fact was extracted from, for citation.
type Fact struct {
	Predicate string `json:"predicate"`
	Subject   string `json:"subject"`
	Object    string `json:"object,omitempty"`
	Detail    string `json:"detail,omitempty"`
	File      string `json:"file"`
}

// Predicates emitted by the extractor.
const (
	PredEndpoint           = "endpoint"
	PredMethod             = "method"
	PredErrorCode          = "error-code"
	PredRateLimit          = "rate-limit"
	PredTier               = "tier"
	PredTierRateLimit      = "tier-rate-limit"
	PredParam              = "param"
	PredAuthMethod         = "auth-method"
	PredSecurityFlow       = "security-flow"
	PredPerformancePattern = "performance-pattern"
	PredMonitoringConcept  = "monitoring-concept"
)

// Key returns the dedup identity of the fact within one source file.
func (f Fact) Key() string {
	return f.Predicate + "\x00" + f.Subject + "\x00" + f.Object + "\x00" + f.Detail
}

// String renders the fact in s-expression form, e.g.
// (error-code /swap 400 "Bad Request"). Used in reasoning traces.
func (f Fact) String() string {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(f.Predicate)
	for _, arg := range []string{f.Subject, f.Object, f.Detail} {
		if arg == "" {
			continue
		}
		b.WriteByte(' ')
		if strings.ContainsAny(arg, " \t") {
			fmt.Fprintf(&b, "%q", arg)
		} else {
			b.WriteString(arg)
		}
	}
	b.WriteByte(')')
	return b.String()
}

// Dedup removes exact tuple duplicates, keeping first occurrence order.
func Dedup(in []Fact) []Fact {
	seen := make(map[string]struct{}, len(in))
	out := make([]Fact, 0, len(in))
	for _, f := range in {
		key := f.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, f)
	}
	return out
}

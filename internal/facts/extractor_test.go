package facts

import (
	"reflect"
	"testing"
)

func hasFact(t *testing.T, got []Fact, want Fact) {
	t.Helper()
	for _, f := range got {
		if f.Predicate == want.Predicate && f.Subject == want.Subject &&
			f.Object == want.Object && f.Detail == want.Detail {
			return
		}
	}
	t.Errorf("missing fact %v in %v", want, got)
}

func TestExtract_EndpointAndErrorCode(t *testing.T) {
	doc := "# Swap API\n\nPOST /swap\n\nExecutes a token swap.\n\n400 Bad Request\n"

	got := Extract("docs/swap.md", doc)

	hasFact(t, got, Fact{Predicate: PredEndpoint, Subject: "/swap"})
	hasFact(t, got, Fact{Predicate: PredMethod, Subject: "/swap", Object: "POST"})
	hasFact(t, got, Fact{Predicate: PredErrorCode, Subject: "/swap", Object: "400", Detail: "Bad Request"})

	for _, f := range got {
		if f.File != "docs/swap.md" {
			t.Errorf("fact %v missing provenance", f)
		}
	}
}

func TestExtract_ErrorCodeTable(t *testing.T) {
	doc := "GET /quote\n\n| Code | Meaning |\n|------|---------|\n| 404 | Not Found |\n| `429` | Too Many Requests |\n"

	got := Extract("docs/quote.md", doc)

	hasFact(t, got, Fact{Predicate: PredErrorCode, Subject: "/quote", Object: "404", Detail: "Not Found"})
	hasFact(t, got, Fact{Predicate: PredErrorCode, Subject: "/quote", Object: "429", Detail: "Too Many Requests"})
}

func TestExtract_ErrorCodeWithoutEndpointSkipped(t *testing.T) {
	got := Extract("docs/misc.md", "Some tables list 404 Not Found without any endpoint.\n")

	for _, f := range got {
		if f.Predicate == PredErrorCode {
			t.Errorf("unexpected error-code fact without endpoint context: %v", f)
		}
	}
}

func TestExtract_EndpointPathParamsStripped(t *testing.T) {
	got := Extract("docs/users.md", "GET /users/{id}/orders\n")

	hasFact(t, got, Fact{Predicate: PredEndpoint, Subject: "/users/orders"})
}

func TestExtract_RateLimits(t *testing.T) {
	doc := "POST /swap\n\nThis endpoint allows 100 requests per minute.\n"
	got := Extract("docs/limits.md", doc)

	hasFact(t, got, Fact{Predicate: PredRateLimit, Subject: "/swap", Object: "100", Detail: "minute"})
}

func TestExtract_TierRateLimit(t *testing.T) {
	doc := "The free tier: 60 requests per hour for all users.\n"
	got := Extract("docs/tiers.md", doc)

	hasFact(t, got, Fact{Predicate: PredTierRateLimit, Subject: "free", Object: "60", Detail: "hour"})
}

func TestExtract_Params(t *testing.T) {
	doc := "POST /swap\n\n`amount` (number): The amount to swap\n`slippage` (number) - Maximum slippage tolerance\n"
	got := Extract("docs/swap.md", doc)

	hasFact(t, got, Fact{Predicate: PredParam, Subject: "/swap", Object: "amount", Detail: "The amount to swap"})
	hasFact(t, got, Fact{Predicate: PredParam, Subject: "/swap", Object: "slippage", Detail: "Maximum slippage tolerance"})
}

func TestExtract_SecurityAndAuth(t *testing.T) {
	doc := "Authentication uses OAuth 2.0 with PKCE.\nSend your API key as a Bearer token.\n"
	got := Extract("docs/auth.md", doc)

	hasFact(t, got, Fact{Predicate: PredSecurityFlow, Subject: "oauth 2.0 with pkce", Object: "oauth2"})
	hasFact(t, got, Fact{Predicate: PredAuthMethod, Subject: "api-key"})
	hasFact(t, got, Fact{Predicate: PredAuthMethod, Subject: "bearer-token"})
}

func TestExtract_PerformanceAndMonitoring(t *testing.T) {
	doc := "We use a redis cache and connection pooling.\nStructured logging with correlation IDs is enabled.\n"
	got := Extract("docs/ops.md", doc)

	hasFact(t, got, Fact{Predicate: PredPerformancePattern, Subject: "caching", Object: "redis cache"})
	hasFact(t, got, Fact{Predicate: PredPerformancePattern, Subject: "database", Object: "connection pooling"})
	hasFact(t, got, Fact{Predicate: PredMonitoringConcept, Subject: "logging", Object: "structured logging"})
}

func TestExtract_Deduplicates(t *testing.T) {
	doc := "POST /swap\nPOST /swap\n"
	got := Extract("docs/swap.md", doc)

	count := 0
	for _, f := range got {
		if f.Predicate == PredEndpoint && f.Subject == "/swap" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected 1 endpoint fact after dedup, got %d", count)
	}
}

func TestExtract_Deterministic(t *testing.T) {
	doc := "POST /swap\n100 requests per minute\nredis cache and memory cache\nstructured logging\n"

	a := Extract("docs/x.md", doc)
	b := Extract("docs/x.md", doc)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("extraction not deterministic:\n%v\n%v", a, b)
	}
}

func TestExtract_Empty(t *testing.T) {
	if got := Extract("docs/empty.md", ""); len(got) != 0 {
		t.Errorf("expected no facts for empty input, got %v", got)
	}
}

func TestFactString(t *testing.T) {
	f := Fact{Predicate: PredErrorCode, Subject: "/swap", Object: "400", Detail: "Bad Request"}
	want := `(error-code /swap 400 "Bad Request")`
	if got := f.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestRunMatcher_PanicIsolated(t *testing.T) {
	m := matcher{name: "boom", fn: func(text, file string) []Fact {
		panic("malformed input")
	}}
	if out := runMatcher(m, "text", "f.md"); out != nil {
		t.Errorf("expected nil output from panicking matcher, got %v", out)
	}
}

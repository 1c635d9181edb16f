package facts

import (
	"log"
	"regexp"
	"sort"
	"strings"
)

// Each fact category has its own matcher. Matchers are pure functions over
// the raw text; their outputs are unioned and deduplicated. A matcher that
// panics on odd input is isolated so the remaining matchers still run.
type matcher struct {
	name string
	fn   func(text, file string) []Fact
}

var matchers = []matcher{
	{"endpoints", matchEndpoints},
	{"params", matchParams},
	{"error-codes", matchErrorCodes},
	{"rate-limits", matchRateLimits},
	{"tiers", matchTiers},
	{"security-flows", matchSecurityFlows},
	{"auth-methods", matchAuthMethods},
	{"performance-patterns", matchPerformancePatterns},
	{"monitoring-concepts", matchMonitoringConcepts},
}

// Extract scans raw document text and returns the deduplicated union of all
// matcher outputs. It never fails: a matcher panic is logged and that
// matcher's output dropped for this file.
func Extract(file, text string) []Fact {
	if text == "" {
		return nil
	}

	var all []Fact
	for _, m := range matchers {
		all = append(all, runMatcher(m, text, file)...)
	}
	return Dedup(all)
}

func runMatcher(m matcher, text, file string) (out []Fact) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("facts: matcher %s failed on %s: %v", m.name, file, r)
			out = nil
		}
	}()
	return m.fn(text, file)
}

var endpointRe = regexp.MustCompile(`(?i)\b(GET|POST|PUT|DELETE|PATCH)\s+(/[\w\-/{}]+)`)

var pathParamRe = regexp.MustCompile(`\{[^}]+\}`)

// cleanEndpoint strips path parameters and a trailing slash so /users/{id}/
// and /users refer to the same endpoint.
func cleanEndpoint(path string) string {
	path = pathParamRe.ReplaceAllString(path, "")
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	path = strings.TrimRight(path, "/")
	return path
}

type endpointMention struct {
	pos  int
	path string
}

func endpointMentions(text string) []endpointMention {
	var mentions []endpointMention
	for _, loc := range endpointRe.FindAllStringSubmatchIndex(text, -1) {
		path := cleanEndpoint(text[loc[4]:loc[5]])
		if path == "" {
			continue
		}
		mentions = append(mentions, endpointMention{pos: loc[0], path: path})
	}
	return mentions
}

// lastEndpointBefore returns the most recent endpoint mentioned before pos,
// or "" when none precedes it. Error codes and parameters attach to the
// endpoint documented above them.
func lastEndpointBefore(mentions []endpointMention, pos int) string {
	path := ""
	for _, m := range mentions {
		if m.pos >= pos {
			break
		}
		path = m.path
	}
	return path
}

func matchEndpoints(text, file string) []Fact {
	var out []Fact
	for _, loc := range endpointRe.FindAllStringSubmatchIndex(text, -1) {
		method := strings.ToUpper(text[loc[2]:loc[3]])
		path := cleanEndpoint(text[loc[4]:loc[5]])
		if path == "" {
			continue
		}
		out = append(out,
			Fact{Predicate: PredEndpoint, Subject: path, File: file},
			Fact{Predicate: PredMethod, Subject: path, Object: method, File: file},
		)
	}
	return out
}

// Codes separated from their description by | : or -, any case; bare codes
// followed by a capitalized reason phrase ("400 Bad Request").
var errorCodeRes = []*regexp.Regexp{
	regexp.MustCompile("`?([1-5][0-9]{2})`?\\s*[|:\\-]\\s*([A-Za-z][^|\n]*)"),
	regexp.MustCompile("`?([1-5][0-9]{2})`?[ \t]+([A-Z][a-z][^|\n]*)"),
}

var descJunkRe = regexp.MustCompile("[|*`]")

func matchErrorCodes(text, file string) []Fact {
	mentions := endpointMentions(text)

	var out []Fact
	for _, re := range errorCodeRes {
		out = append(out, matchErrorCodesWith(re, text, file, mentions)...)
	}
	return out
}

func matchErrorCodesWith(re *regexp.Regexp, text, file string, mentions []endpointMention) []Fact {
	var out []Fact
	for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
		endpoint := lastEndpointBefore(mentions, loc[0])
		if endpoint == "" {
			// A code with no endpoint context is likely a false positive.
			continue
		}
		code := text[loc[2]:loc[3]]
		desc := strings.TrimSpace(descJunkRe.ReplaceAllString(text[loc[4]:loc[5]], ""))
		if desc == "" {
			continue
		}
		out = append(out, Fact{
			Predicate: PredErrorCode,
			Subject:   endpoint,
			Object:    code,
			Detail:    desc,
			File:      file,
		})
	}
	return out
}

var rateLimitRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+)\s*requests?\s*per\s*(\w+)`),
	regexp.MustCompile(`(?i)(\d+)\s*req/(\w+)`),
}

var tierWordRe = regexp.MustCompile(`(?i)(free|pro|enterprise)\s+tier`)

func normalizePeriod(period string) string {
	switch strings.ToLower(period) {
	case "sec", "second", "seconds":
		return "second"
	case "min", "minute", "minutes":
		return "minute"
	case "hour", "hours", "hr":
		return "hour"
	case "day", "days":
		return "day"
	}
	return ""
}

func matchRateLimits(text, file string) []Fact {
	mentions := endpointMentions(text)

	var out []Fact
	for _, re := range rateLimitRes {
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			limit := text[loc[2]:loc[3]]
			period := normalizePeriod(text[loc[4]:loc[5]])
			if period == "" {
				continue
			}

			subject := lastEndpointBefore(mentions, loc[0])
			if subject == "" {
				// No endpoint context. Attach to the nearest preceding
				// tier mention instead, if any.
				tiers := tierWordRe.FindAllStringSubmatchIndex(text[:loc[0]], -1)
				if len(tiers) == 0 {
					continue
				}
				last := tiers[len(tiers)-1]
				subject = strings.ToLower(text[last[2]:last[3]])
			}

			out = append(out, Fact{
				Predicate: PredRateLimit,
				Subject:   subject,
				Object:    limit,
				Detail:    period,
				File:      file,
			})
		}
	}
	return out
}

var tierRe = regexp.MustCompile(`(?i)(free|pro|enterprise)\s+tier[^:\n]*:?\s*([^.\n]*)`)

var tierLimitRe = regexp.MustCompile(`(?i)(\d+)\s*requests?\s*per\s*(\w+)`)

func matchTiers(text, file string) []Fact {
	var out []Fact
	for _, m := range tierRe.FindAllStringSubmatch(text, -1) {
		tier := strings.ToLower(m[1])
		desc := strings.TrimSpace(m[2])

		out = append(out, Fact{Predicate: PredTier, Subject: tier, Object: desc, File: file})

		if lm := tierLimitRe.FindStringSubmatch(desc); lm != nil {
			if period := normalizePeriod(lm[2]); period != "" {
				out = append(out, Fact{
					Predicate: PredTierRateLimit,
					Subject:   tier,
					Object:    lm[1],
					Detail:    period,
					File:      file,
				})
			}
		}
	}
	return out
}

var paramRes = []*regexp.Regexp{
	regexp.MustCompile("`(\\w+)`\\s*\\([^)]*\\):\\s*([^.\n]+)"),
	regexp.MustCompile("`(\\w+)`\\s*\\([^)]*\\)\\s*-\\s*([^.\n]+)"),
}

func matchParams(text, file string) []Fact {
	mentions := endpointMentions(text)

	var out []Fact
	for _, re := range paramRes {
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			endpoint := lastEndpointBefore(mentions, loc[0])
			if endpoint == "" {
				continue
			}
			name := text[loc[2]:loc[3]]
			desc := strings.TrimSpace(text[loc[4]:loc[5]])
			out = append(out, Fact{
				Predicate: PredParam,
				Subject:   endpoint,
				Object:    name,
				Detail:    desc,
				File:      file,
			})
		}
	}
	return out
}

var securityFlowRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)OAuth 2\.0[^\n]*PKCE`),
	regexp.MustCompile(`(?i)authorization[^\n]*code[^\n]*flow`),
	regexp.MustCompile(`(?i)token[^\n]*refresh[^\n]*pattern`),
	regexp.MustCompile(`(?i)client[^\n]*credentials[^\n]*flow`),
}

func matchSecurityFlows(text, file string) []Fact {
	var out []Fact
	for _, re := range securityFlowRes {
		for _, m := range re.FindAllString(text, -1) {
			out = append(out, Fact{
				Predicate: PredSecurityFlow,
				Subject:   strings.ToLower(m),
				Object:    "oauth2",
				File:      file,
			})
		}
	}
	return out
}

var (
	bearerTokenRe    = regexp.MustCompile(`(?i)bearer\s+token`)
	jwtTokenRe       = regexp.MustCompile(`(?i)\bJWT[\s-]*token`)
	requestSigningRe = regexp.MustCompile(`(?i)request\s+signing|signature\s+verification|signed\s+requests?`)
)

func matchAuthMethods(text, file string) []Fact {
	lower := strings.ToLower(text)

	var out []Fact
	add := func(method string) {
		out = append(out, Fact{Predicate: PredAuthMethod, Subject: method, File: file})
	}

	if strings.Contains(lower, "api key") || strings.Contains(lower, "api-key") {
		add("api-key")
	}
	if bearerTokenRe.MatchString(text) {
		add("bearer-token")
	}
	if jwtTokenRe.MatchString(text) {
		add("jwt")
	}
	if requestSigningRe.MatchString(text) {
		add("request-signing")
	}
	if strings.Contains(lower, "whitelist") {
		add("ip-whitelisting")
	}
	return out
}

var performanceRes = map[string][]*regexp.Regexp{
	"caching": {
		regexp.MustCompile(`(?i)memory[^\n]*cache`),
		regexp.MustCompile(`(?i)redis[^\n]*cache`),
		regexp.MustCompile(`(?i)cache[^\n]*invalidation`),
		regexp.MustCompile(`(?i)cache[^\n]*layering`),
	},
	"database": {
		regexp.MustCompile(`(?i)database[^\n]*query[^\n]*optimization`),
		regexp.MustCompile(`(?i)index[^\n]*strategy`),
		regexp.MustCompile(`(?i)query[^\n]*planning`),
		regexp.MustCompile(`(?i)connection[^\n]*pooling`),
	},
}

func matchPerformancePatterns(text, file string) []Fact {
	return matchCategorized(text, file, PredPerformancePattern, performanceRes)
}

var monitoringRes = map[string][]*regexp.Regexp{
	"logging": {
		regexp.MustCompile(`(?i)structured[^\n]*logging`),
		regexp.MustCompile(`(?i)log[^\n]*aggregation`),
		regexp.MustCompile(`(?i)log[^\n]*level[^\n]*management`),
		regexp.MustCompile(`(?i)correlation[^\n]*id`),
	},
	"metrics": {
		regexp.MustCompile(`(?i)performance[^\n]*metrics`),
		regexp.MustCompile(`(?i)business[^\n]*metrics`),
		regexp.MustCompile(`(?i)alerting[^\n]*system`),
		regexp.MustCompile(`(?i)dashboard[^\n]*monitoring`),
	},
}

func matchMonitoringConcepts(text, file string) []Fact {
	return matchCategorized(text, file, PredMonitoringConcept, monitoringRes)
}

func matchCategorized(text, file, predicate string, categories map[string][]*regexp.Regexp) []Fact {
	var out []Fact
	// Fixed category order for deterministic output.
	for _, category := range sortedKeys(categories) {
		for _, re := range categories[category] {
			for _, m := range re.FindAllString(text, -1) {
				out = append(out, Fact{
					Predicate: predicate,
					Subject:   category,
					Object:    strings.ToLower(m),
					File:      file,
				})
			}
		}
	}
	return out
}

func sortedKeys(m map[string][]*regexp.Regexp) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

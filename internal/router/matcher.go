package router

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/cloudrelay/edge-router/internal/route"
)

// Match is the result of resolving a request path against a routing
// configuration.
type Match struct {
	// Target is the configured upstream URL of the winning pattern.
	Target string

	// Pattern is the winning path pattern.
	Pattern string

	// MatchedPath is the original request path.
	MatchedPath string

	// Wildcard reports whether the winning pattern contains a *.
	Wildcard bool

	// WildcardPath is the request path suffix consumed by the *,
	// extracted literally so query-like content survives untouched.
	WildcardPath string
}

// compiledPattern is a pattern prepared for matching and ranking.
type compiledPattern struct {
	raw      string
	target   string
	regex    *regexp.Regexp
	exact    bool
	params   bool
	wildcard bool
	segments int
}

// paramNamePattern matches the :name parameter syntax.
var paramNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*`)

// compilePattern translates a path pattern into an anchored regular
// expression: metacharacters are escaped except * and :name, :name
// becomes a named capture of non-/ runs, and * consumes the remainder
// of the path.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	metrics := getCompileCacheMetrics()

	if re := compileCacheGet(pattern); re != nil {
		metrics.cacheHits.Inc()
		return re, nil
	}
	metrics.cacheMisses.Inc()

	var sb strings.Builder
	sb.WriteString("^")

	seen := make(map[string]int)
	i := 0
	for i < len(pattern) {
		switch {
		case pattern[i] == '*':
			sb.WriteString(".*")
			i++
		case pattern[i] == ':':
			name := paramNamePattern.FindString(pattern[i+1:])
			if name == "" {
				sb.WriteString(regexp.QuoteMeta(":"))
				i++
				continue
			}
			i += 1 + len(name)
			// Named groups must be unique within one expression.
			seen[name]++
			if n := seen[name]; n > 1 {
				name = fmt.Sprintf("%s_%d", name, n)
			}
			sb.WriteString("(?P<")
			sb.WriteString(name)
			sb.WriteString(">[^/]+)")
		default:
			sb.WriteString(regexp.QuoteMeta(string(pattern[i])))
			i++
		}
	}
	sb.WriteString("$")

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, err
	}

	compileCachePut(pattern, re)
	return re, nil
}

// countSegments counts the /-delimited segments of a pattern.
func countSegments(pattern string) int {
	count := 0
	for _, part := range strings.Split(strings.Trim(pattern, "/"), "/") {
		if part != "" {
			count++
		}
	}
	return count
}

// classRank orders pattern classes: exact above parameterized above
// pure wildcard.
func (p *compiledPattern) classRank() int {
	switch {
	case p.exact:
		return 0
	case p.params:
		return 1
	default:
		return 2
	}
}

// compileTable compiles a routing configuration into a
// specificity-sorted pattern list. Patterns that fail to compile are
// skipped; the validator rejects them before they reach this point.
func compileTable(routes route.Config) []*compiledPattern {
	compiled := make([]*compiledPattern, 0, len(routes))

	for pattern, target := range routes {
		re, err := compilePattern(pattern)
		if err != nil {
			continue
		}

		hasWildcard := strings.Contains(pattern, "*")
		hasParams := strings.Contains(pattern, ":")

		compiled = append(compiled, &compiledPattern{
			raw:      pattern,
			target:   target,
			regex:    re,
			exact:    !hasWildcard && !hasParams,
			params:   hasParams,
			wildcard: hasWildcard,
			segments: countSegments(pattern),
		})
	}

	sort.Slice(compiled, func(i, j int) bool {
		a, b := compiled[i], compiled[j]
		if a.classRank() != b.classRank() {
			return a.classRank() < b.classRank()
		}
		if a.segments != b.segments {
			return a.segments > b.segments
		}
		if a.wildcard != b.wildcard {
			return !a.wildcard
		}
		// The boundary format carries no insertion order, so equal
		// specificity falls back to lexicographic pattern order.
		return a.raw < b.raw
	})

	return compiled
}

// MatchPath resolves a request path to a single route. It returns nil
// when the table is empty or no pattern accepts the path.
func MatchPath(requestPath string, routes route.Config) *Match {
	if len(routes) == 0 {
		return nil
	}

	for _, p := range compileTable(routes) {
		if !p.regex.MatchString(requestPath) {
			continue
		}

		m := &Match{
			Target:      p.target,
			Pattern:     p.raw,
			MatchedPath: requestPath,
		}

		if p.wildcard {
			// Literal substring extraction, not the regex capture, so
			// trailing query-like content is preserved verbatim.
			prefix := p.raw[:strings.Index(p.raw, "*")]
			if strings.HasPrefix(requestPath, prefix) {
				m.Wildcard = true
				m.WildcardPath = requestPath[len(prefix):]
			}
		}

		return m
	}

	return nil
}

// BuildTargetURL builds the upstream URL for a match: one trailing /
// is stripped from the target, and a non-empty wildcard suffix is
// appended with exactly one leading /.
func BuildTargetURL(m *Match) string {
	target := strings.TrimSuffix(m.Target, "/")

	if !m.Wildcard || m.WildcardPath == "" {
		return target
	}

	return target + "/" + strings.TrimLeft(m.WildcardPath, "/")
}

// compileCache is a bounded cache of compiled patterns shared across
// route tables.
const compileCacheMaxSize = 1000

type compileCacheEntry struct {
	regex       *regexp.Regexp
	accessOrder int64
}

var (
	compileCache        = make(map[string]*compileCacheEntry)
	compileCacheMu      sync.Mutex
	compileCacheCounter int64
)

// compileCacheGet returns a cached regex and refreshes its LRU order.
func compileCacheGet(pattern string) *regexp.Regexp {
	compileCacheMu.Lock()
	defer compileCacheMu.Unlock()

	entry, ok := compileCache[pattern]
	if !ok {
		return nil
	}
	compileCacheCounter++
	entry.accessOrder = compileCacheCounter
	return entry.regex
}

// compileCachePut stores a compiled regex, evicting the least recently
// used entry at capacity.
func compileCachePut(pattern string, re *regexp.Regexp) {
	metrics := getCompileCacheMetrics()

	compileCacheMu.Lock()
	defer compileCacheMu.Unlock()

	if _, exists := compileCache[pattern]; exists {
		return
	}

	if len(compileCache) >= compileCacheMaxSize {
		evictLRUCompileEntry()
		metrics.cacheEvictions.Inc()
	}

	compileCacheCounter++
	compileCache[pattern] = &compileCacheEntry{
		regex:       re,
		accessOrder: compileCacheCounter,
	}
	metrics.cacheSize.Set(float64(len(compileCache)))
}

// evictLRUCompileEntry removes the least recently used entry.
// Must be called with compileCacheMu held.
func evictLRUCompileEntry() {
	var lruKey string
	var lruOrder int64 = -1

	for key, entry := range compileCache {
		if lruOrder == -1 || entry.accessOrder < lruOrder {
			lruOrder = entry.accessOrder
			lruKey = key
		}
	}

	if lruKey != "" {
		delete(compileCache, lruKey)
	}
}

package util

import (
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	anonymizeRegexp       = regexp.MustCompile(`'[^']*'|\d+|".*?"`)
	normalizeDigitsRegexp = regexp.MustCompile(`\d+`)
	normalizeSingleQuoted = regexp.MustCompile(`'[^']*'`)
	normalizeDoubleQuoted = regexp.MustCompile(`"[^"]*"`)
	alterKeywordRegexp    = regexp.MustCompile(`(?i)alter`)
)

// AnonymizeQueryText replaces string literals, quoted identifiers and numbers with "?"
func AnonymizeQueryText(query string) string {
	return anonymizeRegexp.ReplaceAllString(query, "?")
}

// ContainsAlter reports whether the query text mentions ALTER in any casing
func ContainsAlter(query string) bool {
	return alterKeywordRegexp.MatchString(query)
}

// NormalizeQueryText reduces a query text to a form where the same statement
// issued with different literals compares equal: literals become "?", "$"
// and ";" are dropped, everything is lowercased and whitespace is collapsed.
func NormalizeQueryText(query string) string {
	result := normalizeDigitsRegexp.ReplaceAllString(query, "?")
	result = normalizeSingleQuoted.ReplaceAllString(result, "?")
	result = normalizeDoubleQuoted.ReplaceAllString(result, "?")
	result = strings.ReplaceAll(result, "$", "")
	result = strings.ToLower(result)
	result = strings.ReplaceAll(result, ";", "")
	return strings.Join(strings.Fields(result), " ")
}

// NormalizedQueryCache memoizes NormalizeQueryText for texts that are seen
// every cycle. Safe for concurrent use.
type NormalizedQueryCache struct {
	entries *lru.Cache[string, string]
}

func NewNormalizedQueryCache(size int) *NormalizedQueryCache {
	if size <= 0 {
		size = 10000
	}
	entries, _ := lru.New[string, string](size)
	return &NormalizedQueryCache{entries: entries}
}

func (c *NormalizedQueryCache) Normalize(query string) string {
	if c == nil {
		return NormalizeQueryText(query)
	}
	if normalized, ok := c.entries.Get(query); ok {
		return normalized
	}
	normalized := NormalizeQueryText(query)
	c.entries.Add(query, normalized)
	return normalized
}

// Package query translates the user-facing boolean/proximity query
// language into SQLite FTS5 syntax.
package query

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	wsRe = regexp.MustCompile(`\s+`)

	// A NEAR/5 B, operands either quoted phrases or bare terms
	nearRe = regexp.MustCompile(`("[^"]+"|\S+)\s+(?i:NEAR)/(\d+)\s+("[^"]+"|\S+)`)

	operators = []struct {
		pattern *regexp.Regexp
		upper   string
	}{
		{regexp.MustCompile(`(?i)\band\b`), "AND"},
		{regexp.MustCompile(`(?i)\bor\b`), "OR"},
		{regexp.MustCompile(`(?i)\bnot\b`), "NOT"},
		{regexp.MustCompile(`(?i)\bnear\b`), "NEAR"},
	}
)

// Normalize collapses whitespace and rewrites the query into FTS5 syntax:
// `A NEAR/<n> B` becomes `NEAR(A B, n)`, and bare and/or/not/near keywords
// are uppercased to FTS5 boolean operators. Empty or whitespace-only input
// yields "" (no text filter, not "match nothing").
func Normalize(raw string) string {
	q := CollapseWhitespace(raw)
	if q == "" {
		return ""
	}

	q = nearRe.ReplaceAllStringFunc(q, func(match string) string {
		parts := nearRe.FindStringSubmatch(match)
		return fmt.Sprintf("NEAR(%s %s, %s)", parts[1], parts[3], parts[2])
	})

	for _, op := range operators {
		q = op.pattern.ReplaceAllString(q, op.upper)
	}
	return q
}

// CollapseWhitespace squeezes runs of whitespace to single spaces and trims
func CollapseWhitespace(s string) string {
	return wsRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

package cache

import (
	"fmt"
	"regexp"
	"strings"
)

// unsupportedGlob holds the characters Redis gives glob meaning beyond * and ?.
// Patterns using them are rejected so both tiers match the same keys.
const unsupportedGlob = `[]\`

// validPattern reports whether pattern uses only the * and ? wildcards.
func validPattern(pattern string) bool {
	return !strings.ContainsAny(pattern, unsupportedGlob)
}

// globToRegexp translates a Redis-style glob with * and ? wildcards into an anchored regexp.
// Every other character matches literally.
func globToRegexp(pattern string) (*regexp.Regexp, error) {
	if !validPattern(pattern) {
		return nil, fmt.Errorf("unsupported glob pattern %q: only * and ? are allowed", pattern)
	}
	var b strings.Builder
	b.WriteString("(?s)^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

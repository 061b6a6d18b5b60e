package indicator

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern is a route expression compiled once at registration time.
type Pattern struct {
	Source string `json:"pattern"`
	Flags  string `json:"flags,omitempty"`

	re *regexp.Regexp
}

// CompilePattern compiles source with the given flag letters.
// Supported flags: i (case-insensitive), m (multi-line), s (dot matches newline).
// The g, u and y flags are accepted and ignored: matching is stateless and
// always Unicode-aware.
func CompilePattern(source, flags string) (Pattern, error) {
	if strings.TrimSpace(source) == "" {
		return Pattern{}, fmt.Errorf("route pattern is empty")
	}

	normalized, inline, err := parseFlags(flags)
	if err != nil {
		return Pattern{}, err
	}

	expr := source
	if inline != "" {
		expr = "(?" + inline + ")" + source
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("invalid route pattern %q: %w", source, err)
	}

	return Pattern{Source: source, Flags: normalized, re: re}, nil
}

// MatchString reports whether s contains a match of the pattern.
func (p Pattern) MatchString(s string) bool {
	if p.re == nil {
		return false
	}
	return p.re.MatchString(s)
}

// parseFlags de-duplicates the flag letters and returns the canonical flag
// string together with the Go inline flag group.
func parseFlags(flags string) (string, string, error) {
	seen := make(map[rune]bool)
	var canonical, inline strings.Builder

	for _, f := range flags {
		if seen[f] {
			continue
		}
		seen[f] = true

		switch f {
		case 'i', 'm', 's':
			inline.WriteRune(f)
		case 'g', 'u', 'y':
		default:
			return "", "", fmt.Errorf("unsupported pattern flag %q", string(f))
		}
		canonical.WriteRune(f)
	}

	return canonical.String(), inline.String(), nil
}

package eligibility

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultPatterns is the ordered exclusion list. Patterns overlap, so order decides which one is
// reported.
var DefaultPatterns = []string{
	`green card.*required`,
	`gc.*required`,
	`citizenship.*required`,
	`us citizen.*required`,
	`must be.*us citizen`,
	`must be.*green card`,
	`no visa sponsor`,
	`no sponsorship`,
	`cannot sponsor`,
	`will not sponsor`,
	`us authorization required`,
	`permanent.*resident.*only`,
	`security clearance.*required`,
	`active.*clearance`,
}

type pattern struct {
	source string
	re     *regexp.Regexp
}

// Rules is a compiled, ordered pattern list.
type Rules struct {
	patterns []pattern
}

// CompileRules compiles the patterns in the given order. Matching is case-insensitive.
func CompileRules(patterns []string) (*Rules, error) {
	rules := &Rules{patterns: make([]pattern, 0, len(patterns))}
	for i, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("pattern %d is empty", i)
		}
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", p, err)
		}
		rules.patterns = append(rules.patterns, pattern{source: p, re: re})
	}
	return rules, nil
}

// MustCompileRules is CompileRules for lists known to be valid.
func MustCompileRules(patterns []string) *Rules {
	r, err := CompileRules(patterns)
	if err != nil {
		panic(err)
	}
	return r
}

// FirstMatch returns the first pattern, in list order, found in text.
func (r *Rules) FirstMatch(text string) (string, bool) {
	if r == nil {
		return "", false
	}
	for _, p := range r.patterns {
		if p.re.MatchString(text) {
			return p.source, true
		}
	}
	return "", false
}

func (r *Rules) Patterns() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.patterns))
	for _, p := range r.patterns {
		out = append(out, p.source)
	}
	return out
}

func (r *Rules) Len() int {
	if r == nil {
		return 0
	}
	return len(r.patterns)
}

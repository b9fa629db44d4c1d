// Package dates turns the "posted" strings found on job boards into comparable instants.
package dates

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// absoluteLayouts are tried in order. Zoneless timestamps are read as UTC.
var absoluteLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

var relativeRe = regexp.MustCompile(`^(\d+)\s*(hours|hour|h|days|day|d|weeks|week)(?:\s+ago|\s*ago)?$`)

var unitDurations = map[string]time.Duration{
	"h":     time.Hour,
	"hour":  time.Hour,
	"hours": time.Hour,
	"d":     24 * time.Hour,
	"day":   24 * time.Hour,
	"days":  24 * time.Hour,
	"week":  7 * 24 * time.Hour,
	"weeks": 7 * 24 * time.Hour,
}

// Normalizer parses posted dates relative to Now.
type Normalizer struct {
	Now func() time.Time
}

var defaultNormalizer = &Normalizer{Now: time.Now}

// Normalize parses raw with the package default clock.
func Normalize(raw string) *time.Time {
	return defaultNormalizer.Normalize(raw)
}

// Normalize returns the UTC instant described by raw, or nil when raw is not understood.
// Instants later than now are clamped to now.
func (n *Normalizer) Normalize(raw string) *time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}

	now := n.Current().UTC()

	for _, layout := range absoluteLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		t = t.UTC()
		if t.After(now) {
			t = now
		}
		return &t
	}

	d, ok := parseRelative(s)
	if !ok {
		return nil
	}

	t := now.Add(-d)
	return &t
}

// Current is the reference instant, time.Now when unset.
func (n *Normalizer) Current() time.Time {
	if n == nil || n.Now == nil {
		return time.Now()
	}
	return n.Now()
}

// parseRelative understands "<int> <unit> [ago]" where unit is one of h/hour(s), d/day(s), week(s).
func parseRelative(s string) (time.Duration, bool) {
	m := relativeRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if m == nil {
		return 0, false
	}

	count, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}

	unit := unitDurations[m[2]]
	if count > int64(math.MaxInt64/unit) {
		return 0, false
	}

	return time.Duration(count) * unit, true
}

var windowLabelRe = regexp.MustCompile(`^(?:last|past)\s+(.+)$`)

// ParseWindow converts operator input into a look-back duration. Empty and "all" mean no window
// and return 0. Accepted forms are Go durations ("36h"), the relative grammar ("7d", "2 weeks")
// and labels such as "Last 7 days" or "Last 24 hours".
func ParseWindow(s string) (time.Duration, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "all" || s == "any" {
		return 0, true
	}

	if m := windowLabelRe.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}

	if d, ok := parseRelative(s); ok {
		return d, true
	}

	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, false
	}

	return d, true
}

// Cutoff returns now minus window, or nil when window is zero.
func Cutoff(now time.Time, window time.Duration) *time.Time {
	if window <= 0 {
		return nil
	}
	c := now.UTC().Add(-window)
	return &c
}

package profile

import (
	"sort"
	"strings"
	"unicode"
)

var stopWords = map[string]bool{
	"and": true, "the": true, "for": true, "with": true, "you": true,
	"are": true, "have": true, "will": true, "this": true, "that": true,
	"from": true, "our": true, "your": true, "their": true, "they": true,
	"work": true, "team": true, "role": true, "job": true, "join": true,
	"about": true, "which": true, "what": true, "who": true, "how": true,
	"can": true, "not": true, "but": true, "all": true, "also": true,
	"more": true, "than": true, "into": true, "has": true, "its": true,
	"was": true, "were": true, "been": true, "each": true, "new": true,
	"use": true, "using": true, "used": true, "well": true, "high": true,
	"good": true, "able": true, "get": true, "set": true, "such": true,
}

// Keywords tokenizes text into lowercase terms of at least three runes. '+', '#' and '.' count
// as word characters so "c++" and "node.js" survive.
func Keywords(text string) map[string]bool {
	kw := make(map[string]bool)
	var word strings.Builder
	flush := func() {
		w := strings.TrimRight(word.String(), ".")
		word.Reset()
		if len([]rune(w)) >= 3 && !stopWords[w] {
			kw[w] = true
		}
	}
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' || r == '.' {
			word.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return kw
}

// Retrieve returns up to k chunks sharing the most keywords with query. Chunks without any
// shared keyword are never returned; ties keep résumé order.
func (p *Profile) Retrieve(query string, k int) []string {
	if p == nil || k <= 0 || len(p.Chunks) == 0 {
		return nil
	}

	queryKW := Keywords(query)
	if len(queryKW) == 0 {
		return nil
	}

	type scored struct {
		idx   int
		score int
	}

	var hits []scored
	for i, chunk := range p.Chunks {
		n := 0
		for w := range Keywords(chunk) {
			if queryKW[w] {
				n++
			}
		}
		if n > 0 {
			hits = append(hits, scored{idx: i, score: n})
		}
	}

	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })
	if len(hits) > k {
		hits = hits[:k]
	}

	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, p.Chunks[h.idx])
	}
	return out
}

// Overlap is the Jaccard similarity of two keyword sets, with the shared and the job-only terms.
func Overlap(profileKW map[string]bool, jobText string) (score float64, shared, missing []string) {
	jobKW := Keywords(jobText)

	inter := 0
	for w := range profileKW {
		if jobKW[w] {
			inter++
			shared = append(shared, w)
		}
	}
	for w := range jobKW {
		if !profileKW[w] {
			missing = append(missing, w)
		}
	}

	if union := len(profileKW) + len(jobKW) - inter; union > 0 {
		score = float64(inter) / float64(union)
	}

	sort.Strings(shared)
	sort.Strings(missing)
	return score, shared, missing
}

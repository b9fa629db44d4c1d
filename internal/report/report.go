// Package report writes one row per scored posting.
package report

import (
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"
)

const (
	// ListLimit caps the joined strengths and gaps columns, in runes.
	ListLimit     = 500
	listSeparator = "; "
	nullValue     = "null"
)

// Columns is the fixed report header.
var Columns = []string{
	"id",
	"title",
	"company",
	"location",
	"url",
	"sponsorship_score",
	"match_score",
	"is_candidate",
	"resume_path",
	"gap_plan_path",
	"strengths",
	"gaps",
}

// Row is the outcome for one posting that survived filtering.
type Row struct {
	ID               string
	Title            string
	Company          string
	Location         string
	URL              string
	SponsorshipScore float64
	// MatchScore is nil when the judge answer could not be parsed.
	MatchScore  *float64
	IsCandidate bool
	ResumePath  string
	GapPlanPath string
	Strengths   []string
	Gaps        []string
}

// Record renders the row in Columns order.
func (r Row) Record() []string {
	match := nullValue
	if r.MatchScore != nil {
		match = formatScore(*r.MatchScore)
	}
	return []string{
		r.ID,
		r.Title,
		r.Company,
		r.Location,
		r.URL,
		formatScore(r.SponsorshipScore),
		match,
		strconv.FormatBool(r.IsCandidate),
		r.ResumePath,
		r.GapPlanPath,
		JoinList(r.Strengths),
		JoinList(r.Gaps),
	}
}

// JoinList joins items with "; " and keeps at most ListLimit runes.
func JoinList(items []string) string {
	kept := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			kept = append(kept, item)
		}
	}
	joined := strings.Join(kept, listSeparator)
	if utf8.RuneCountInString(joined) <= ListLimit {
		return joined
	}
	return string([]rune(joined)[:ListLimit])
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Sink receives rows. Append is safe for concurrent use.
type Sink interface {
	Append(row Row) error
	Close() error
}

// Memory keeps rows in memory.
type Memory struct {
	mu   sync.Mutex
	rows []Row
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(row Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, row)
	return nil
}

func (m *Memory) Close() error { return nil }

// Rows returns a copy of the rows appended so far.
func (m *Memory) Rows() []Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Row(nil), m.rows...)
}

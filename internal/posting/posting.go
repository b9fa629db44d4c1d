package posting

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	IDField      = "ID"
	CompanyField = "Company"
)

// Source identifies the fetcher that produced a posting.
type Source string

const (
	SourceJSearch Source = "jsearch"
	SourceAdzuna  Source = "adzuna"
	SourceIndeed  Source = "indeed"
	SourceFile    Source = "file"
)

// Posting is one listing from any board. Fetchers fill the descriptive fields;
// Verdict, Sponsorship and Match are filled by later pipeline stages.
type Posting struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Company     string     `json:"company"`
	Location    string     `json:"location"`
	Description string     `json:"description"`
	URL         string     `json:"url"`
	Source      Source     `json:"source"`
	PostedAt    *time.Time `json:"posted_at,omitempty"`
	PostedAtRaw string     `json:"posted_at_raw,omitempty"`

	Verdict     *Verdict `json:"verdict,omitempty"`
	Sponsorship *float64 `json:"sponsorship_score,omitempty"`
}

// Stage names the eligibility stage that produced a verdict.
type Stage string

const (
	StageRuleBased Stage = "rule-based"
	StageSemantic  Stage = "semantic"
)

// Outcome tags how a verdict was reached, so the fail-open branch is visible to callers.
type Outcome string

const (
	OutcomeRuleExcluded         Outcome = "rule-excluded"
	OutcomeRulePassed           Outcome = "rule-passed"
	OutcomeClassified           Outcome = "classified"
	OutcomeClassificationFailed Outcome = "classification-failed"
)

// Verdict is the eligibility decision attached to a posting. For rule-based exclusions Pattern
// holds the matched exclusion pattern and Reason names it.
type Verdict struct {
	Eligible bool    `json:"eligible"`
	Reason   string  `json:"reason"`
	Stage    Stage   `json:"stage"`
	Outcome  Outcome `json:"outcome"`
	Pattern  string  `json:"pattern,omitempty"`
}

// SynthesizeID returns a stable id for postings whose board does not supply one.
func SynthesizeID(source Source, url, title, company string) string {
	key := strings.TrimSpace(url)
	if key == "" {
		key = strings.ToLower(strings.TrimSpace(title)) + "|" + strings.ToLower(strings.TrimSpace(company))
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(string(source)+"|"+key)).String()
}

// EnsureID fills ID when the fetcher could not.
func (p *Posting) EnsureID() {
	if strings.TrimSpace(p.ID) != "" {
		return
	}
	p.ID = SynthesizeID(p.Source, p.URL, p.Title, p.Company)
}

func (p *Posting) GetStringField(name string) string {
	switch name {
	case IDField:
		return p.ID
	case CompanyField:
		return p.Company
	default:
		return ""
	}
}

// Postings is an ordered collection. Order is the aggregation order and is preserved by every
// operation below.
type Postings struct {
	Items []*Posting
}

func (ps *Postings) Len() int {
	return len(ps.Items)
}

func (ps *Postings) FindByID(id string) *Posting {
	for _, p := range ps.Items {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Exclude removes postings whose field matches any target, case-insensitively, and returns the
// removed ids.
func (ps *Postings) Exclude(field string, targets []string) []string {
	if len(targets) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			set[t] = struct{}{}
		}
	}

	var excluded []string
	kept := ps.Items[:0]
	for _, p := range ps.Items {
		if _, ok := set[strings.ToLower(strings.TrimSpace(p.GetStringField(field)))]; ok {
			excluded = append(excluded, p.ID)
			continue
		}
		kept = append(kept, p)
	}
	ps.Items = kept

	return excluded
}

func (ps *Postings) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "postings_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ps); err != nil {
		return "", err
	}
	return file.Name(), nil
}

// ReportByCompany groups postings by company for a quick human overview.
func (ps *Postings) ReportByCompany() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, p := range ps.Items {
		key := p.Company
		if key == "" {
			key = "unknown"
		}
		entry := map[string]string{
			"title":    p.Title,
			"url":      p.URL,
			"location": p.Location,
			"source":   string(p.Source),
		}
		if p.PostedAt != nil {
			entry["posted_at"] = p.PostedAt.Format(time.DateOnly)
		}
		if p.Verdict != nil {
			entry["eligibility_reason"] = p.Verdict.Reason
		}
		if p.Sponsorship != nil {
			entry["sponsorship_score"] = fmt.Sprintf("%.2f", *p.Sponsorship)
		}
		report[key] = append(report[key], entry)
	}
	return report
}

package posting

import (
	"path/filepath"
	"testing"
	"time"
)

func TestSynthesizeIDIsStable(t *testing.T) {
	a := SynthesizeID(SourceIndeed, "https://indeed.com/job/1", "Data Engineer", "Acme")
	b := SynthesizeID(SourceIndeed, "https://indeed.com/job/1", "Other", "Other")
	if a != b {
		t.Fatalf("expected url-based id to ignore title/company, got %s and %s", a, b)
	}

	c := SynthesizeID(SourceAdzuna, "https://indeed.com/job/1", "Data Engineer", "Acme")
	if a == c {
		t.Fatalf("expected different sources to produce different ids")
	}

	d := SynthesizeID(SourceFile, "", " Data Engineer ", "ACME")
	e := SynthesizeID(SourceFile, "", "data engineer", "acme")
	if d != e {
		t.Fatalf("expected title/company fallback to be case-insensitive")
	}
}

func TestEnsureIDKeepsExisting(t *testing.T) {
	p := &Posting{ID: "board-42", URL: "https://x"}
	p.EnsureID()
	if p.ID != "board-42" {
		t.Fatalf("expected id to be kept, got %s", p.ID)
	}

	q := &Posting{Source: SourceJSearch, URL: "https://x"}
	q.EnsureID()
	if q.ID == "" {
		t.Fatal("expected id to be synthesized")
	}
}

func TestExcludePreservesOrder(t *testing.T) {
	ps := &Postings{Items: []*Posting{
		{ID: "1", Company: "Acme"},
		{ID: "2", Company: "Globex"},
		{ID: "3", Company: "Initech"},
		{ID: "4", Company: "acme"},
	}}

	removed := ps.Exclude(CompanyField, []string{"ACME"})
	if len(removed) != 2 || removed[0] != "1" || removed[1] != "4" {
		t.Fatalf("unexpected removed ids: %v", removed)
	}

	if ps.Len() != 2 || ps.Items[0].ID != "2" || ps.Items[1].ID != "3" {
		t.Fatalf("expected remaining order 2,3, got %+v", ps.Items)
	}

	if got := ps.Exclude(IDField, nil); got != nil {
		t.Fatalf("expected no-op for empty targets, got %v", got)
	}
}

func TestExcludedFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "excluded.json")

	empty, err := GetExcludedFromFile(path)
	if err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
	if len(empty.Items) != 0 {
		t.Fatalf("expected empty list, got %d", len(empty.Items))
	}

	ps := &Postings{Items: []*Posting{{ID: "a", Company: "Acme"}}}
	empty.Append(ps.ToExcluded(ExcludeActorRule, "Excluded: Found pattern 'no sponsorship'"))
	if err := empty.ToFile(path); err != nil {
		t.Fatalf("write: %v", err)
	}

	loaded, err := GetExcludedFromFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if ids := loaded.IDs(); len(ids) != 1 || ids[0] != "a" {
		t.Fatalf("unexpected ids: %v", ids)
	}
	if loaded.Items[0].Actor != ExcludeActorRule {
		t.Fatalf("unexpected actor: %s", loaded.Items[0].Actor)
	}
}

func TestReportByCompany(t *testing.T) {
	posted := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	score := 0.7
	ps := &Postings{Items: []*Posting{
		{ID: "1", Title: "Data Engineer", Company: "Acme", Source: SourceJSearch, PostedAt: &posted, Sponsorship: &score},
		{ID: "2", Title: "SRE", Company: ""},
	}}

	report := ps.ReportByCompany()
	entries := report["Acme"]
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry for Acme, got %d", len(entries))
	}
	if entries[0]["posted_at"] != "2025-01-02" || entries[0]["sponsorship_score"] != "0.70" {
		t.Fatalf("unexpected entry: %v", entries[0])
	}
	if len(report["unknown"]) != 1 {
		t.Fatalf("expected unknown company bucket")
	}
}

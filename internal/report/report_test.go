package report

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"
)

func f64(v float64) *float64 { return &v }

func TestRowRecord(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		row  Row
		want []string
	}{
		{
			name: "candidate",
			row: Row{
				ID: "1", Title: "SRE", Company: "Acme", Location: "NYC", URL: "https://a",
				SponsorshipScore: 0.7, MatchScore: f64(0.65), IsCandidate: true,
				ResumePath: "out/tailored_resume_job_1.md", GapPlanPath: "out/gap_learning_plan_job_1.md",
				Strengths: []string{"Go", " Kubernetes "}, Gaps: []string{"Rust", ""},
			},
			want: []string{"1", "SRE", "Acme", "NYC", "https://a", "0.7", "0.65", "true",
				"out/tailored_resume_job_1.md", "out/gap_learning_plan_job_1.md", "Go; Kubernetes", "Rust"},
		},
		{
			name: "unparsed match",
			row:  Row{ID: "2", SponsorshipScore: 0},
			want: []string{"2", "", "", "", "", "0", "null", "false", "", "", "", ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.row.Record()
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
			if len(got) != len(Columns) {
				t.Fatalf("record has %d fields, header has %d", len(got), len(Columns))
			}
		})
	}
}

func TestJoinListCaps(t *testing.T) {
	t.Parallel()

	items := make([]string, 0, 200)
	for i := 0; i < 200; i++ {
		items = append(items, "навык")
	}
	got := JoinList(items)
	if n := utf8.RuneCountInString(got); n != ListLimit {
		t.Fatalf("expected %d runes, got %d", ListLimit, n)
	}
	if !utf8.ValidString(got) {
		t.Fatal("truncation produced invalid utf-8")
	}
}

func TestCSVAppendAndReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "report.csv")

	sink, err := NewCSV(path, nil)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sink.Append(Row{ID: id, Strengths: []string{"x, y"}}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if _, err := NewCSV(path, nil); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked while the first sink is open, got %v", err)
	}

	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	again, err := NewCSV(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := again.Append(Row{ID: "d", MatchScore: f64(0.9)}); err != nil {
		t.Fatal(err)
	}
	if err := again.Close(); err != nil {
		t.Fatal(err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 5 {
		t.Fatalf("expected header and 4 rows, got %d records", len(records))
	}
	if strings.Join(records[0], ",") != strings.Join(Columns, ",") {
		t.Fatalf("unexpected header: %v", records[0])
	}
	if records[1][10] != "x, y" {
		t.Fatalf("expected quoted field round trip, got %q", records[1][10])
	}
	if records[4][0] != "d" || records[4][6] != "0.9" {
		t.Fatalf("unexpected last row: %v", records[4])
	}
}

func TestMemory(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	_ = m.Append(Row{ID: "1"})
	rows := m.Rows()
	rows[0].ID = "changed"
	if m.Rows()[0].ID != "1" {
		t.Fatal("Rows must return a copy")
	}
}

package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/h1b-finder/internal/ai"
	"github.com/spigell/h1b-finder/internal/eligibility"
	"github.com/spigell/h1b-finder/internal/filtering"
	"github.com/spigell/h1b-finder/internal/posting"
	"github.com/spigell/h1b-finder/internal/profile"
	"github.com/spigell/h1b-finder/internal/report"
	"github.com/spigell/h1b-finder/internal/sponsorship"
)

func score(v float64) *float64 { return &v }

// stubJudge answers by looking up the posting title inside the job text.
type stubJudge struct {
	mu      sync.Mutex
	scores  map[string]*float64
	fail    map[string]bool
	calls   int
	onCall  func()
	context [][]string
}

func (j *stubJudge) Evaluate(_ context.Context, req ai.MatchRequest) (*ai.MatchResult, error) {
	j.mu.Lock()
	j.calls++
	j.context = append(j.context, req.Context)
	onCall := j.onCall
	j.mu.Unlock()

	if onCall != nil {
		onCall()
	}

	for title, s := range j.scores {
		if strings.Contains(req.JobDescription, "Title: "+title+"\n") {
			if j.fail[title] {
				return nil, errors.New("judge unavailable")
			}
			return &ai.MatchResult{Score: s, Strengths: []string{"Go"}, Gaps: []string{"Rust"}}, nil
		}
	}
	return &ai.MatchResult{Summary: "not json"}, nil
}

type stubWriter struct {
	resumeErr error
	gapErr    error
}

func (w *stubWriter) TailorResume(_ context.Context, req ai.ArtifactRequest) (string, error) {
	if w.resumeErr != nil {
		return "", w.resumeErr
	}
	return "# Resume for " + req.JobTitle, nil
}

func (w *stubWriter) GapPlan(_ context.Context, req ai.ArtifactRequest) (string, error) {
	if w.gapErr != nil {
		return "", w.gapErr
	}
	return "# Plan for " + req.JobTitle, nil
}

func testProfile(t *testing.T) *profile.Profile {
	t.Helper()
	p, err := profile.New("cv.txt", "Go engineer with Kubernetes and Kafka experience.\n\nBuilt payment systems.", profile.ChunkConfig{})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func testScorer() *sponsorship.Scorer {
	return sponsorship.NewScorer(sponsorship.NewRegistry([]string{"Acme"}), sponsorship.Config{})
}

func newController(t *testing.T, cfg Config, judge ai.Judge, writer ai.Writer, sink report.Sink) *Controller {
	t.Helper()
	c, err := New(cfg, Deps{
		Scorer:  testScorer(),
		Judge:   judge,
		Writer:  writer,
		Profile: testProfile(t),
		Sink:    sink,
		Logger:  zap.NewNop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestIsCandidate(t *testing.T) {
	t.Parallel()

	c := newController(t, DefaultConfig(), &stubJudge{}, nil, report.NewMemory())

	tests := []struct {
		name        string
		sponsorship float64
		match       *ai.MatchResult
		want        bool
	}{
		{"both at threshold", 0.6, &ai.MatchResult{Score: score(0.65)}, true},
		{"company sponsor and good match", 0.7, &ai.MatchResult{Score: score(0.65)}, true},
		{"match just below", 0.7, &ai.MatchResult{Score: score(0.64)}, false},
		{"keyword only sponsorship", 0.3, &ai.MatchResult{Score: score(0.95)}, false},
		{"unparsed match", 1, &ai.MatchResult{}, false},
		{"nil match", 1, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := c.IsCandidate(tt.sponsorship, tt.match); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRunWritesOneRowPerPosting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.OutputDir = dir
	cfg.Workers = 3

	judge := &stubJudge{
		scores: map[string]*float64{
			"Backend Engineer": score(0.8),
			"Data Engineer":    score(0.64),
			"SRE":              score(0.9),
			"Broken":           score(1),
		},
		fail: map[string]bool{"Broken": true},
	}
	sink := report.NewMemory()
	c := newController(t, cfg, judge, &stubWriter{}, sink)

	postings := &posting.Postings{Items: []*posting.Posting{
		{ID: "1", Title: "Backend Engineer", Company: "Acme Inc", Description: "Go and Kafka"},
		{ID: "2", Title: "Data Engineer", Company: "Acme", Description: "Spark"},
		{ID: "3", Title: "SRE", Company: "Hooli", Description: "H1B sponsorship available"},
		{ID: "4", Title: "Broken", Company: "Acme", Description: "anything"},
		{ID: "5", Title: "Unknown", Company: "Acme", Description: "anything"},
	}}

	summary, err := c.Run(context.Background(), postings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := map[string]report.Row{}
	for _, r := range sink.Rows() {
		rows[r.ID] = r
	}
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(rows))
	}

	first := rows["1"]
	if !first.IsCandidate || first.SponsorshipScore != 0.7 {
		t.Fatalf("expected posting 1 to be a candidate, got %+v", first)
	}
	if first.ResumePath != filepath.Join(dir, "tailored_resume_job_1.md") ||
		first.GapPlanPath != filepath.Join(dir, "gap_learning_plan_job_1.md") {
		t.Fatalf("unexpected artifact paths: %+v", first)
	}
	content, err := os.ReadFile(first.ResumePath)
	if err != nil || string(content) != "# Resume for Backend Engineer" {
		t.Fatalf("unexpected resume content %q: %v", content, err)
	}

	if rows["2"].IsCandidate || rows["2"].ResumePath != "" {
		t.Fatalf("posting 2 is below the match threshold: %+v", rows["2"])
	}
	if rows["3"].IsCandidate || rows["3"].SponsorshipScore != 0.3 {
		t.Fatalf("posting 3 has keyword-only sponsorship: %+v", rows["3"])
	}
	if rows["4"].MatchScore != nil || rows["4"].IsCandidate {
		t.Fatalf("judge failure must leave a nil score: %+v", rows["4"])
	}
	if rows["5"].MatchScore != nil || rows["5"].IsCandidate {
		t.Fatalf("unparsed judge answer must leave a nil score: %+v", rows["5"])
	}

	if postings.Items[0].Sponsorship == nil || *postings.Items[0].Sponsorship != 0.7 {
		t.Fatal("expected sponsorship score attached to the posting")
	}

	if summary.Processed != 5 || summary.Candidates != 1 || summary.Resumes != 1 || summary.GapPlans != 1 ||
		summary.Unparsed != 2 || summary.Cancelled {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

// failingSink rejects rows for the listed postings and keeps the rest.
type failingSink struct {
	*report.Memory
	reject map[string]bool
}

func (s *failingSink) Append(row report.Row) error {
	if s.reject[row.ID] {
		return errors.New("disk full")
	}
	return s.Memory.Append(row)
}

func TestRunNamesPostingsWithoutRow(t *testing.T) {
	t.Parallel()

	sink := &failingSink{Memory: report.NewMemory(), reject: map[string]bool{"js-2": true}}
	c := newController(t, DefaultConfig(), &stubJudge{}, nil, sink)

	summary, err := c.Run(context.Background(), &posting.Postings{Items: []*posting.Posting{
		{ID: "js-1", Title: "A"}, {ID: "js-2", Title: "B"}, {ID: "js-3", Title: "C"},
	}})
	if err == nil {
		t.Fatal("expected an error for the lost row")
	}
	if !strings.Contains(err.Error(), "js-2") || strings.Contains(err.Error(), "js-1") {
		t.Fatalf("expected the error to name js-2 only, got %v", err)
	}
	if len(sink.Rows()) != 2 || summary.Processed != 2 {
		t.Fatalf("expected the other rows written, got %d rows, summary %+v", len(sink.Rows()), summary)
	}
}

func TestExcludedPostingNeverReachesScoring(t *testing.T) {
	t.Parallel()

	sponsored := &posting.Posting{
		ID:          "a",
		Title:       "Platform Engineer",
		Company:     "Acme Corp",
		Description: "Go services. Visa sponsorship available.",
	}
	restricted := &posting.Posting{
		ID:          "b",
		Title:       "Backend Engineer",
		Company:     "Acme Corp",
		Description: "Must be a US Citizen, no sponsorship available",
	}

	chain := filtering.New([]filtering.Filter{
		filtering.NewEligibility(&filtering.EligibilityConfig{Workers: 2}, &filtering.EligibilityDeps{
			Logger: zap.NewNop(),
			Filter: eligibility.New(eligibility.Config{}, nil, nil),
		}),
	}, zap.NewNop())

	eligible, err := chain.RunFilters(context.Background(), &posting.Postings{Items: []*posting.Posting{sponsored, restricted}})
	if err != nil {
		t.Fatal(err)
	}

	judge := &stubJudge{scores: map[string]*float64{"Platform Engineer": score(0.9)}}
	sink := report.NewMemory()
	c, err := New(DefaultConfig(), Deps{
		Scorer:  sponsorship.NewScorer(sponsorship.NewRegistry([]string{"Acme Corp"}), sponsorship.Config{}),
		Judge:   judge,
		Profile: testProfile(t),
		Sink:    sink,
		Logger:  zap.NewNop(),
	})
	if err != nil {
		t.Fatal(err)
	}

	summary, err := c.Run(context.Background(), eligible)
	if err != nil {
		t.Fatal(err)
	}

	rows := sink.Rows()
	if len(rows) != 1 || rows[0].ID != "a" {
		t.Fatalf("expected a single row for the sponsored posting, got %+v", rows)
	}
	if rows[0].SponsorshipScore != 1.0 || !rows[0].IsCandidate {
		t.Fatalf("expected sponsorship 1.0 and a candidate, got %+v", rows[0])
	}
	if judge.calls != 1 {
		t.Fatalf("expected one judge call, got %d", judge.calls)
	}
	if summary.Eligible != 1 || summary.Processed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	if restricted.Verdict == nil || restricted.Verdict.Eligible || restricted.Verdict.Pattern != "must be.*us citizen" {
		t.Fatalf("expected a rule exclusion on the citizenship pattern, got %+v", restricted.Verdict)
	}
	if restricted.Sponsorship != nil {
		t.Fatalf("excluded posting must not be scored, got %v", *restricted.Sponsorship)
	}
	if sponsored.Verdict == nil || !sponsored.Verdict.Eligible {
		t.Fatalf("expected the sponsored posting to be eligible, got %+v", sponsored.Verdict)
	}
}

func TestArtifactFailureLeavesEmptyPath(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.OutputDir = t.TempDir()

	core, logs := observer.New(zapcore.WarnLevel)
	c, err := New(cfg, Deps{
		Scorer:  testScorer(),
		Judge:   &stubJudge{scores: map[string]*float64{"Go Dev": score(0.9)}},
		Writer:  &stubWriter{resumeErr: errors.New("quota")},
		Profile: testProfile(t),
		Sink:    report.NewMemory(),
		Logger:  zap.New(core),
	})
	if err != nil {
		t.Fatal(err)
	}

	row := c.Process(context.Background(), &posting.Posting{ID: "js/1==", Title: "Go Dev", Company: "Acme"})
	if !row.IsCandidate {
		t.Fatal("expected candidate")
	}
	if row.ResumePath != "" {
		t.Fatalf("expected empty resume path, got %q", row.ResumePath)
	}
	if filepath.Base(row.GapPlanPath) != "gap_learning_plan_job_js_1_.md" {
		t.Fatalf("unexpected gap plan path: %q", row.GapPlanPath)
	}
	if logs.FilterMessage("artifact generation failed").Len() != 1 {
		t.Fatal("expected a warning for the failed artifact")
	}
}

func TestArtifactsCanBeDisabled(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.OutputDir = t.TempDir()
	cfg.GenerateGapPlan = false

	c := newController(t, cfg, &stubJudge{scores: map[string]*float64{"Go Dev": score(0.9)}}, &stubWriter{}, report.NewMemory())
	row := c.Process(context.Background(), &posting.Posting{ID: "9", Title: "Go Dev", Company: "Acme"})
	if row.ResumePath == "" || row.GapPlanPath != "" {
		t.Fatalf("expected only the resume, got %+v", row)
	}
}

func TestStopKeepsWrittenRows(t *testing.T) {
	t.Parallel()

	judge := &stubJudge{}
	sink := report.NewMemory()
	c := newController(t, DefaultConfig(), judge, nil, sink)
	judge.onCall = c.Stop

	postings := &posting.Postings{Items: []*posting.Posting{
		{ID: "1", Title: "A"}, {ID: "2", Title: "B"}, {ID: "3", Title: "C"},
	}}

	summary, err := c.Run(context.Background(), postings)
	if err != nil {
		t.Fatal(err)
	}
	if len(sink.Rows()) != 1 || summary.Processed != 1 {
		t.Fatalf("expected the in-flight posting only, got %d rows", len(sink.Rows()))
	}
	if !summary.Cancelled {
		t.Fatal("expected cancelled summary")
	}
}

func TestCancelledContext(t *testing.T) {
	t.Parallel()

	judge := &stubJudge{}
	c := newController(t, DefaultConfig(), judge, nil, report.NewMemory())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := c.Run(ctx, &posting.Postings{Items: []*posting.Posting{{ID: "1"}}})
	if err != nil {
		t.Fatal(err)
	}
	if judge.calls != 0 || !summary.Cancelled {
		t.Fatalf("expected nothing processed, got %d calls, summary %+v", judge.calls, summary)
	}
}

func TestNewRequiresProfile(t *testing.T) {
	t.Parallel()

	_, err := New(DefaultConfig(), Deps{Scorer: testScorer(), Judge: &stubJudge{}, Sink: report.NewMemory()})
	if !errors.Is(err, profile.ErrNoProfile) {
		t.Fatalf("expected ErrNoProfile, got %v", err)
	}
}

func TestSummaryRates(t *testing.T) {
	t.Parallel()

	s := &Summary{Scraped: 10, Eligible: 4, Processed: 4, Candidates: 1}
	if s.ExclusionRate() != 60 {
		t.Fatalf("unexpected exclusion rate %v", s.ExclusionRate())
	}
	if s.MatchRate() != 25 {
		t.Fatalf("unexpected match rate %v", s.MatchRate())
	}
	if (&Summary{}).MatchRate() != 0 {
		t.Fatal("expected zero rate without processed postings")
	}
}

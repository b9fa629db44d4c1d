package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
)

type stubGenerator struct {
	response    string
	err         error
	lastSystem  string
	lastMessage string
}

func (s *stubGenerator) GenerateContent(_ context.Context, system, message string) (string, error) {
	s.lastSystem = system
	s.lastMessage = message
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubGenerator) Model() string { return "stub-model" }

func TestParseClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      string
		eligible bool
		reason   string
		wantErr  bool
	}{
		{
			name:     "json",
			raw:      `{"eligible": false, "reason": "US citizens only"}`,
			eligible: false,
			reason:   "US citizens only",
		},
		{
			name:     "fenced json with string bool",
			raw:      "```json\n{\"eligible\": \"yes\", \"reason\": \"none found\"}\n```",
			eligible: true,
			reason:   "none found",
		},
		{
			name:     "line format",
			raw:      "ELIGIBLE: No\nREASON: Requires permanent work authorization",
			eligible: false,
			reason:   "Requires permanent work authorization",
		},
		{
			name:     "line format lowercase",
			raw:      "eligible: yes",
			eligible: true,
		},
		{
			name:    "prose",
			raw:     "I think this might be fine.",
			wantErr: true,
		},
		{
			name:    "json without verdict",
			raw:     `{"reason": "unclear"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseClassification(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrUnparseable) {
					t.Fatalf("expected ErrUnparseable, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Eligible != tt.eligible || got.Reason != tt.reason {
				t.Fatalf("unexpected classification: %+v", got)
			}
		})
	}
}

func TestClassifierBuildsMessage(t *testing.T) {
	t.Parallel()

	stub := &stubGenerator{response: `{"eligible": true, "reason": "ok"}`}
	c := NewClassifier(stub, zap.NewNop(), 0)

	res, err := c.Classify(context.Background(), ClassificationRequest{Title: "SRE", Description: "desc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Eligible {
		t.Fatal("expected eligible")
	}
	if !strings.Contains(stub.lastMessage, "Company: N/A") || !strings.Contains(stub.lastMessage, "Job Title: SRE") {
		t.Fatalf("unexpected message: %s", stub.lastMessage)
	}
	if !strings.Contains(stub.lastSystem, "H1B") {
		t.Fatal("expected classification system prompt")
	}
}

func TestClassifierPropagatesGeneratorError(t *testing.T) {
	t.Parallel()

	c := NewClassifier(&stubGenerator{err: errors.New("quota")}, nil, 0)
	if _, err := c.Classify(context.Background(), ClassificationRequest{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseMatch(t *testing.T) {
	t.Parallel()

	res := ParseMatch(`{"match_score": "0.82", "strengths": ["Go", "Kafka"], "gaps": "Spark", "summary": "Strong backend fit"}`)
	if res.Score == nil || *res.Score != 0.82 {
		t.Fatalf("unexpected score: %v", res.Score)
	}
	if len(res.Strengths) != 2 || len(res.Gaps) != 1 || res.Gaps[0] != "Spark" {
		t.Fatalf("unexpected lists: %+v", res)
	}
	if res.Summary != "Strong backend fit" {
		t.Fatalf("unexpected summary: %q", res.Summary)
	}

	clamped := ParseMatch(`{"match_score": 7}`)
	if clamped.Score == nil || *clamped.Score != 1 {
		t.Fatalf("expected clamped score, got %v", clamped.Score)
	}

	raw := "The candidate is a good fit overall."
	invalid := ParseMatch(raw)
	if invalid.Score != nil {
		t.Fatalf("expected nil score, got %v", *invalid.Score)
	}
	if invalid.Summary != raw || invalid.Raw != raw {
		t.Fatalf("expected raw text as summary, got %+v", invalid)
	}
	if invalid.ScoreOrZero() != 0 {
		t.Fatal("expected nil score to count as zero")
	}
}

func TestJudgeEvaluate(t *testing.T) {
	t.Parallel()

	stub := &stubGenerator{response: `{"match_score": 0.7, "strengths": [], "gaps": [], "summary": "ok"}`}
	j := NewJudge(stub, zap.NewNop(), 50)

	res, err := j.Evaluate(context.Background(), MatchRequest{
		JobDescription: "Go developer",
		Profile:        "Backend engineer",
		Context:        []string{"Built Go services", "Ran Kafka"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ScoreOrZero() != 0.7 {
		t.Fatalf("unexpected score %v", res.ScoreOrZero())
	}
	if !strings.Contains(stub.lastMessage, "Built Go services\n\nRan Kafka") {
		t.Fatalf("expected context chunks in message: %s", stub.lastMessage)
	}

	if _, err := j.Evaluate(context.Background(), MatchRequest{}); err == nil {
		t.Fatal("expected error for empty job description")
	}
}

func TestWriterIncludesMatchAnalysis(t *testing.T) {
	t.Parallel()

	stub := &stubGenerator{response: "  # Resume  "}
	w := NewWriter(stub, nil)

	score := 0.9
	out, err := w.TailorResume(context.Background(), ArtifactRequest{
		JobTitle:       "Data Engineer",
		Company:        "Acme",
		JobDescription: "Spark",
		Profile:        "Engineer",
		Match:          &MatchResult{Score: &score, Gaps: []string{"Spark"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "# Resume" {
		t.Fatalf("unexpected output %q", out)
	}
	if !strings.Contains(stub.lastMessage, "Score: 0.90") || !strings.Contains(stub.lastMessage, "Gaps: Spark") {
		t.Fatalf("unexpected message: %s", stub.lastMessage)
	}

	if _, err := NewWriter(&stubGenerator{err: errors.New("down")}, nil).GapPlan(context.Background(), ArtifactRequest{}); err == nil {
		t.Fatal("expected error")
	}
}

package eligibility

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/h1b-finder/internal/ai"
	"github.com/spigell/h1b-finder/internal/posting"
)

type stubClassifier struct {
	result *ai.Classification
	err    error
	calls  int
	last   ai.ClassificationRequest
}

func (s *stubClassifier) Classify(_ context.Context, req ai.ClassificationRequest) (*ai.Classification, error) {
	s.calls++
	s.last = req
	return s.result, s.err
}

func TestCheckRulesFirstMatchWins(t *testing.T) {
	t.Parallel()

	f := New(Config{}, nil, nil)

	tests := []struct {
		name        string
		title       string
		description string
		eligible    bool
		pattern     string
	}{
		{
			name:        "citizen and sponsorship both present",
			title:       "Backend Engineer",
			description: "Must be a US Citizen, no sponsorship available",
			pattern:     `must be.*us citizen`,
		},
		{
			name:        "green card before citizenship",
			title:       "Analyst",
			description: "Green card required. Citizenship required for clearance.",
			pattern:     `green card.*required`,
		},
		{
			name:        "pattern in title",
			title:       "Engineer (Active Clearance)",
			description: "Build systems.",
			pattern:     `active.*clearance`,
		},
		{
			name:        "uppercase text",
			title:       "SRE",
			description: "WE CANNOT SPONSOR VISAS",
			pattern:     `cannot sponsor`,
		},
		{
			name:        "clean posting",
			title:       "Data Engineer",
			description: "We offer visa sponsorship for qualified candidates.",
			eligible:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v := f.CheckRules(&posting.Posting{Title: tt.title, Description: tt.description})
			if v.Eligible != tt.eligible {
				t.Fatalf("expected eligible=%v, got %+v", tt.eligible, v)
			}
			if v.Stage != posting.StageRuleBased {
				t.Fatalf("expected rule-based stage, got %s", v.Stage)
			}
			if tt.eligible {
				if v.Reason != ReasonNoPatterns || v.Outcome != posting.OutcomeRulePassed {
					t.Fatalf("unexpected passing verdict: %+v", v)
				}
				return
			}
			if v.Pattern != tt.pattern {
				t.Fatalf("expected pattern %q, got %q", tt.pattern, v.Pattern)
			}
			if want := "Excluded: Found pattern '" + tt.pattern + "'"; v.Reason != want {
				t.Fatalf("expected reason %q, got %q", want, v.Reason)
			}
		})
	}
}

func TestEvaluateSkipsClassifierOnRuleExclusion(t *testing.T) {
	t.Parallel()

	stub := &stubClassifier{result: &ai.Classification{Eligible: true}}
	f := New(Config{UseClassifier: true}, stub, nil)

	v := f.Evaluate(context.Background(), &posting.Posting{Description: "no sponsorship"})
	if v.Eligible || v.Outcome != posting.OutcomeRuleExcluded {
		t.Fatalf("expected rule exclusion, got %+v", v)
	}
	if stub.calls != 0 {
		t.Fatalf("classifier must not run after rule exclusion, got %d calls", stub.calls)
	}
}

func TestEvaluateWithoutClassifier(t *testing.T) {
	t.Parallel()

	stub := &stubClassifier{}
	f := New(Config{UseClassifier: false}, stub, nil)
	if f.SemanticEnabled() {
		t.Fatal("semantic stage should be disabled")
	}

	v := f.Evaluate(context.Background(), &posting.Posting{Title: "SRE", Description: "Remote friendly"})
	if !v.Eligible || v.Reason != ReasonNoPatterns {
		t.Fatalf("unexpected verdict: %+v", v)
	}
	if stub.calls != 0 {
		t.Fatalf("expected no classifier calls, got %d", stub.calls)
	}

	nilClassifier := New(Config{UseClassifier: true}, nil, nil)
	if nilClassifier.SemanticEnabled() {
		t.Fatal("nil classifier must disable the semantic stage")
	}
}

func TestEvaluateClassifierVerdicts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		result   *ai.Classification
		err      error
		eligible bool
		outcome  posting.Outcome
		reason   string
	}{
		{
			name:     "restriction detected",
			result:   &ai.Classification{Eligible: false, Reason: "requires existing work authorization"},
			eligible: false,
			outcome:  posting.OutcomeClassified,
			reason:   "requires existing work authorization",
		},
		{
			name:     "no restriction",
			result:   &ai.Classification{Eligible: true, Reason: "no restrictions"},
			eligible: true,
			outcome:  posting.OutcomeClassified,
			reason:   "no restrictions",
		},
		{
			name:     "transport error fails open",
			err:      errors.New("connection reset"),
			eligible: true,
			outcome:  posting.OutcomeClassificationFailed,
			reason:   ReasonClassificationFailed,
		},
		{
			name:     "empty answer fails open",
			eligible: true,
			outcome:  posting.OutcomeClassificationFailed,
			reason:   ReasonClassificationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stub := &stubClassifier{result: tt.result, err: tt.err}
			f := New(Config{UseClassifier: true}, stub, nil)

			v := f.Evaluate(context.Background(), &posting.Posting{ID: "42", Title: "Engineer", Description: "Build things"})
			if v.Eligible != tt.eligible || v.Outcome != tt.outcome || v.Reason != tt.reason {
				t.Fatalf("unexpected verdict: %+v", v)
			}
			if v.Stage != posting.StageSemantic {
				t.Fatalf("expected semantic stage, got %s", v.Stage)
			}
		})
	}
}

func TestEvaluateFailOpenIsLogged(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	stub := &stubClassifier{err: errors.New("boom")}
	f := New(Config{UseClassifier: true}, stub, zap.New(core))

	f.Evaluate(context.Background(), &posting.Posting{ID: "7", Description: "anything"})

	entries := logs.FilterMessage("eligibility classification failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one warning, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["posting_id"]; got != "7" {
		t.Fatalf("expected posting_id field, got %v", got)
	}
}

func TestEvaluateTruncatesDescription(t *testing.T) {
	t.Parallel()

	stub := &stubClassifier{result: &ai.Classification{Eligible: true}}
	f := New(Config{UseClassifier: true}, stub, nil)

	long := strings.Repeat("é", DescriptionBudget+150)
	f.Evaluate(context.Background(), &posting.Posting{Title: "T", Company: "C", Description: long})

	if got := utf8.RuneCountInString(stub.last.Description); got != DescriptionBudget {
		t.Fatalf("expected %d runes, got %d", DescriptionBudget, got)
	}
	if stub.last.Title != "T" || stub.last.Company != "C" {
		t.Fatalf("unexpected request: %+v", stub.last)
	}
}

func TestCompileRulesRejectsInvalid(t *testing.T) {
	t.Parallel()

	if _, err := CompileRules([]string{"ok", "("}); err == nil {
		t.Fatal("expected compile error")
	}
	if _, err := CompileRules([]string{"  "}); err == nil {
		t.Fatal("expected error for empty pattern")
	}

	rules, err := CompileRules([]string{"b", "a"})
	if err != nil {
		t.Fatal(err)
	}
	if p := rules.Patterns(); len(p) != 2 || p[0] != "b" || p[1] != "a" {
		t.Fatalf("order not preserved: %v", p)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := Truncate("hello", 10); got != "hello" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Truncate("hello", 2); got != "he" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Truncate("hello", 0); got != "" {
		t.Fatalf("unexpected %q", got)
	}
}

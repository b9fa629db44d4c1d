package ai

import (
	"context"
)

// Generator is a text-in/text-out language model backend.
type Generator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Model() string
}

type ClassificationRequest struct {
	Title       string
	Company     string
	Description string
}

// Classification is the semantic eligibility answer.
type Classification struct {
	Eligible bool
	Reason   string
	Raw      string
}

// Classifier detects explicit or implicit US work-authorization restrictions.
type Classifier interface {
	Classify(ctx context.Context, req ClassificationRequest) (*Classification, error)
}

type MatchRequest struct {
	JobDescription string
	Profile        string
	Context        []string
}

// MatchResult is the judge's view of a posting against the candidate. Score is nil when the
// judge answered with something that could not be parsed.
type MatchResult struct {
	Score     *float64
	Strengths []string
	Gaps      []string
	Summary   string
	Raw       string
}

// ScoreOrZero treats a missing score as 0.
func (m *MatchResult) ScoreOrZero() float64 {
	if m == nil || m.Score == nil {
		return 0
	}
	return *m.Score
}

// Judge rates how well the candidate profile fits a job description.
type Judge interface {
	Evaluate(ctx context.Context, req MatchRequest) (*MatchResult, error)
}

type ArtifactRequest struct {
	JobTitle       string
	Company        string
	JobDescription string
	Profile        string
	Context        []string
	Match          *MatchResult
}

// Writer produces per-posting documents for candidates.
type Writer interface {
	TailorResume(ctx context.Context, req ArtifactRequest) (string, error)
	GapPlan(ctx context.Context, req ArtifactRequest) (string, error)
}

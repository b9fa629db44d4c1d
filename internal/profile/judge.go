package profile

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/spigell/h1b-finder/internal/ai"
)

const maxListedTerms = 15

// KeywordJudge is an offline ai.Judge based on keyword overlap. It is used when no model is
// configured. Scale stretches the raw Jaccard value, which is small for real documents.
type KeywordJudge struct {
	profileKW map[string]bool
	scale     float64
}

func NewKeywordJudge(p *Profile, scale float64) (*KeywordJudge, error) {
	if p == nil {
		return nil, ErrNoProfile
	}
	if scale <= 0 {
		scale = 1
	}
	return &KeywordJudge{profileKW: Keywords(p.Text), scale: scale}, nil
}

func (j *KeywordJudge) Evaluate(_ context.Context, req ai.MatchRequest) (*ai.MatchResult, error) {
	if strings.TrimSpace(req.JobDescription) == "" {
		return nil, errors.New("job description is required")
	}

	raw, shared, missing := Overlap(j.profileKW, req.JobDescription)
	score := math.Min(1, raw*j.scale)

	if len(shared) > maxListedTerms {
		shared = shared[:maxListedTerms]
	}
	if len(missing) > maxListedTerms {
		missing = missing[:maxListedTerms]
	}

	return &ai.MatchResult{
		Score:     &score,
		Strengths: shared,
		Gaps:      missing,
		Summary:   fmt.Sprintf("keyword overlap %.2f (scaled %.2f)", raw, score),
	}, nil
}

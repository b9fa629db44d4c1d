package ai

import (
	"context"
	_ "embed"
	"errors"
	"math"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/h1b-finder/internal/logger"
	"github.com/spigell/h1b-finder/internal/utils"
)

//go:embed prompts/match.md
var matchPrompt string

// LLMJudge scores profile/job fit through a Generator.
type LLMJudge struct {
	generator Generator
	logger    *zap.Logger
	maxLogLen int
}

func NewJudge(generator Generator, log *zap.Logger, maxLogLength int) *LLMJudge {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	return &LLMJudge{
		generator: generator,
		logger:    logger.WithFields(log, zap.String("component", "judge")),
		maxLogLen: maxLogLength,
	}
}

// Evaluate returns an error only when the generator fails. An answer that is not valid JSON
// comes back with a nil Score and the raw text as Summary.
func (j *LLMJudge) Evaluate(ctx context.Context, req MatchRequest) (*MatchResult, error) {
	if strings.TrimSpace(req.JobDescription) == "" {
		return nil, errors.New("job description is required")
	}

	message := buildMatchMessage(req)

	j.logger.Debug("match request",
		zap.Int("prompt_length", utf8.RuneCountInString(message)),
		zap.Int("context_chunks", len(req.Context)),
		zap.String("prompt_preview", utils.TruncateForLog(message, j.maxLogLen)),
	)

	raw, err := j.generator.GenerateContent(ctx, matchPrompt, message)
	if err != nil {
		return nil, err
	}

	result := ParseMatch(raw)
	if result.Score == nil {
		j.logger.Warn("match response is not valid json",
			zap.String("response_preview", utils.TruncateForLog(raw, j.maxLogLen)),
		)
	}
	return result, nil
}

func buildMatchMessage(req MatchRequest) string {
	var b strings.Builder
	b.WriteString("Job description:\n----------------\n")
	b.WriteString(req.JobDescription)
	b.WriteString("\n\nCandidate profile (summary):\n----------------------------\n")
	b.WriteString(req.Profile)
	if len(req.Context) > 0 {
		b.WriteString("\n\nMost relevant experience chunks for this job:\n---------------------------------------------\n")
		b.WriteString(strings.Join(req.Context, "\n\n"))
	}
	return b.String()
}

// ParseMatch never fails.
func ParseMatch(raw string) *MatchResult {
	result := &MatchResult{Raw: raw}

	data, err := decodeObject(raw)
	if err != nil {
		result.Summary = strings.TrimSpace(raw)
		return result
	}

	if score := coerceFloat(data["match_score"]); !math.IsNaN(score) {
		score = math.Max(0, math.Min(1, score))
		result.Score = &score
	}
	result.Strengths = coerceStrings(data["strengths"])
	result.Gaps = coerceStrings(data["gaps"])
	result.Summary = coerceString(data["summary"])

	return result
}

package ai

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/h1b-finder/internal/logger"
	"github.com/spigell/h1b-finder/internal/utils"
)

//go:embed prompts/classify.md
var classifyPrompt string

const defaultMaxLogLength = 200

var (
	eligibleLineRe = regexp.MustCompile(`(?im)^\s*ELIGIBLE\s*:\s*(yes|no|true|false)\b`)
	reasonLineRe   = regexp.MustCompile(`(?im)^\s*REASON\s*:\s*(.+)$`)

	ErrUnparseable = errors.New("unparseable model response")
)

// LLMClassifier asks a Generator whether a posting excludes sponsored candidates.
type LLMClassifier struct {
	generator Generator
	logger    *zap.Logger
	maxLogLen int
}

func NewClassifier(generator Generator, log *zap.Logger, maxLogLength int) *LLMClassifier {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	return &LLMClassifier{
		generator: generator,
		logger:    logger.WithFields(log, zap.String("component", "classifier")),
		maxLogLen: maxLogLength,
	}
}

func (c *LLMClassifier) Classify(ctx context.Context, req ClassificationRequest) (*Classification, error) {
	message := fmt.Sprintf("Job Title: %s\nCompany: %s\nDescription: %s",
		orNA(req.Title), orNA(req.Company), req.Description)

	c.logger.Debug("classification request",
		zap.Int("prompt_length", utf8.RuneCountInString(message)),
		zap.String("prompt_preview", utils.TruncateForLog(message, c.maxLogLen)),
	)

	raw, err := c.generator.GenerateContent(ctx, classifyPrompt, message)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("classification response",
		zap.String("response_preview", utils.TruncateForLog(raw, c.maxLogLen)),
	)

	return ParseClassification(raw)
}

// ParseClassification accepts either the JSON answer or "ELIGIBLE:/REASON:" lines.
func ParseClassification(raw string) (*Classification, error) {
	if data, err := decodeObject(raw); err == nil {
		if eligible, ok := coerceBool(data["eligible"]); ok {
			return &Classification{
				Eligible: eligible,
				Reason:   coerceString(data["reason"]),
				Raw:      raw,
			}, nil
		}
	}

	m := eligibleLineRe.FindStringSubmatch(raw)
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnparseable, utils.TruncateForLog(raw, defaultMaxLogLength))
	}

	answer := strings.ToLower(m[1])
	result := &Classification{
		Eligible: answer == "yes" || answer == "true",
		Raw:      raw,
	}
	if r := reasonLineRe.FindStringSubmatch(raw); r != nil {
		result.Reason = strings.TrimSpace(r[1])
	}
	return result, nil
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

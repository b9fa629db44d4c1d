package ai

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/h1b-finder/internal/logger"
)

var (
	//go:embed prompts/resume.md
	resumePrompt string
	//go:embed prompts/gap_plan.md
	gapPlanPrompt string
)

// LLMWriter drafts candidate documents. Output is returned as the model wrote it.
type LLMWriter struct {
	generator Generator
	logger    *zap.Logger
}

func NewWriter(generator Generator, log *zap.Logger) *LLMWriter {
	return &LLMWriter{
		generator: generator,
		logger:    logger.WithFields(log, zap.String("component", "writer")),
	}
}

func (w *LLMWriter) TailorResume(ctx context.Context, req ArtifactRequest) (string, error) {
	return w.write(ctx, "resume", resumePrompt, req)
}

func (w *LLMWriter) GapPlan(ctx context.Context, req ArtifactRequest) (string, error) {
	return w.write(ctx, "gap_plan", gapPlanPrompt, req)
}

func (w *LLMWriter) write(ctx context.Context, kind, system string, req ArtifactRequest) (string, error) {
	out, err := w.generator.GenerateContent(ctx, system, buildArtifactMessage(req))
	if err != nil {
		return "", fmt.Errorf("generate %s: %w", kind, err)
	}
	w.logger.Debug("artifact generated", zap.String("kind", kind), zap.Int("length", len(out)))
	return strings.TrimSpace(out), nil
}

func buildArtifactMessage(req ArtifactRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Job title: %s\nCompany: %s\n\n", orNA(req.JobTitle), orNA(req.Company))
	b.WriteString("Job description:\n")
	b.WriteString(req.JobDescription)
	b.WriteString("\n\nCandidate profile:\n")
	b.WriteString(req.Profile)
	if len(req.Context) > 0 {
		b.WriteString("\n\nRelevant experience:\n")
		b.WriteString(strings.Join(req.Context, "\n\n"))
	}
	if m := req.Match; m != nil {
		b.WriteString("\n\nMatch analysis:\n")
		if m.Score != nil {
			fmt.Fprintf(&b, "Score: %.2f\n", *m.Score)
		}
		if len(m.Strengths) > 0 {
			fmt.Fprintf(&b, "Strengths: %s\n", strings.Join(m.Strengths, "; "))
		}
		if len(m.Gaps) > 0 {
			fmt.Fprintf(&b, "Gaps: %s\n", strings.Join(m.Gaps, "; "))
		}
		if m.Summary != "" {
			fmt.Fprintf(&b, "Summary: %s\n", m.Summary)
		}
	}
	return b.String()
}

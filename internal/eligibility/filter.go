// Package eligibility decides whether a posting is open to visa-sponsored candidates.
package eligibility

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/h1b-finder/internal/ai"
	"github.com/spigell/h1b-finder/internal/posting"
)

const (
	// DescriptionBudget bounds the description prefix sent to the classifier, in runes.
	DescriptionBudget = 800

	ReasonNoPatterns           = "no exclusion patterns found"
	ReasonClassificationFailed = "classification failed, defaulting to eligible"
)

// Filter runs the rule scan and, when enabled, the semantic classifier.
type Filter struct {
	rules         *Rules
	classifier    ai.Classifier
	useClassifier bool
	logger        *zap.Logger
}

type Config struct {
	Rules         *Rules
	UseClassifier bool
}

// New builds a Filter. A nil classifier disables the semantic stage regardless of the flag.
func New(cfg Config, classifier ai.Classifier, logger *zap.Logger) *Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	rules := cfg.Rules
	if rules == nil {
		rules = MustCompileRules(DefaultPatterns)
	}
	return &Filter{
		rules:         rules,
		classifier:    classifier,
		useClassifier: cfg.UseClassifier && classifier != nil,
		logger:        logger,
	}
}

func (f *Filter) SemanticEnabled() bool { return f.useClassifier }

func (f *Filter) Rules() *Rules { return f.rules }

// CheckRules is the deterministic stage alone.
func (f *Filter) CheckRules(p *posting.Posting) posting.Verdict {
	text := strings.ToLower(p.Title + " " + p.Description)
	if matched, ok := f.rules.FirstMatch(text); ok {
		return posting.Verdict{
			Eligible: false,
			Reason:   fmt.Sprintf("Excluded: Found pattern '%s'", matched),
			Stage:    posting.StageRuleBased,
			Outcome:  posting.OutcomeRuleExcluded,
			Pattern:  matched,
		}
	}
	return posting.Verdict{
		Eligible: true,
		Reason:   ReasonNoPatterns,
		Stage:    posting.StageRuleBased,
		Outcome:  posting.OutcomeRulePassed,
	}
}

// Evaluate returns the verdict for p. It never fails: classifier errors and unusable answers
// resolve to eligible with OutcomeClassificationFailed.
func (f *Filter) Evaluate(ctx context.Context, p *posting.Posting) posting.Verdict {
	verdict := f.CheckRules(p)
	if !verdict.Eligible || !f.useClassifier {
		return verdict
	}

	req := ai.ClassificationRequest{
		Title:       p.Title,
		Company:     p.Company,
		Description: Truncate(p.Description, DescriptionBudget),
	}

	result, err := f.classifier.Classify(ctx, req)
	if err != nil || result == nil {
		f.logger.Warn("eligibility classification failed",
			zap.String("posting_id", p.ID),
			zap.Error(err),
		)
		return posting.Verdict{
			Eligible: true,
			Reason:   ReasonClassificationFailed,
			Stage:    posting.StageSemantic,
			Outcome:  posting.OutcomeClassificationFailed,
		}
	}

	reason := strings.TrimSpace(result.Reason)
	if reason == "" {
		if result.Eligible {
			reason = "classifier found no restrictions"
		} else {
			reason = "classifier found work authorization restrictions"
		}
	}

	return posting.Verdict{
		Eligible: result.Eligible,
		Reason:   reason,
		Stage:    posting.StageSemantic,
		Outcome:  posting.OutcomeClassified,
	}
}

// Truncate keeps at most limit runes of s.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

package filtering

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/h1b-finder/internal/eligibility"
	"github.com/spigell/h1b-finder/internal/logger"
	"github.com/spigell/h1b-finder/internal/posting"
)

type eligibilityFilter struct {
	enabled bool
	reason  string
	config  *EligibilityConfig
	deps    *EligibilityDeps
}

type EligibilityDeps struct {
	Logger *zap.Logger
	Filter *eligibility.Filter
	// ExcludeFile receives every excluded posting together with the actor and reason. Empty
	// disables the write.
	ExcludeFile string
}

type EligibilityConfig struct {
	Workers int
}

// NewEligibility creates the two-stage eligibility step. Each posting gets its verdict attached
// and only eligible postings are kept, in input order.
func NewEligibility(cfg *EligibilityConfig, deps *EligibilityDeps) Filter {
	if cfg == nil {
		cfg = &EligibilityConfig{}
	}
	return &eligibilityFilter{
		enabled: true,
		config:  cfg,
		deps:    deps,
	}
}

func (f *eligibilityFilter) Name() string { return "eligibility" }

func (f *eligibilityFilter) Disable(reason string) {
	f.enabled = false
	f.reason = reason
}

func (f *eligibilityFilter) IsEnabled() bool { return f.enabled }

func (f *eligibilityFilter) Validate() error {
	if f.deps == nil || f.deps.Filter == nil {
		return fmt.Errorf("eligibility filter is required")
	}
	if f.deps.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	return nil
}

func (f *eligibilityFilter) workers() int {
	if f.config.Workers <= 0 {
		return 1
	}
	return f.config.Workers
}

func (f *eligibilityFilter) Apply(ctx context.Context, p *posting.Postings) (*posting.Postings, Step, error) {
	initial := p.Len()
	verdicts := make([]posting.Verdict, initial)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers())
	for i, item := range p.Items {
		g.Go(func() error {
			verdicts[i] = f.deps.Filter.Evaluate(gctx, item)
			return nil
		})
	}
	_ = g.Wait()

	kept := make([]*posting.Posting, 0, initial)
	excluded := &posting.ExcludedPostings{}
	for i, item := range p.Items {
		v := verdicts[i]
		item.Verdict = &v

		if v.Eligible {
			kept = append(kept, item)
			continue
		}

		logger.WithPosting(f.deps.Logger, item).Info("posting excluded",
			zap.String("stage", string(v.Stage)),
			zap.String("reason", v.Reason),
		)

		actor := posting.ExcludeActorClassifier
		if v.Stage == posting.StageRuleBased {
			actor = posting.ExcludeActorRule
		}
		excluded.Append((&posting.Postings{Items: []*posting.Posting{item}}).ToExcluded(actor, v.Reason))
	}
	p.Items = kept

	if err := f.appendToExcludeFile(excluded); err != nil {
		f.deps.Logger.Warn("failed to append postings to exclude file",
			zap.String("exclude_file", f.deps.ExcludeFile),
			zap.Error(err),
		)
	}

	return p, Step{Initial: initial, Dropped: initial - p.Len(), Left: p.Len()}, nil
}

func (f *eligibilityFilter) appendToExcludeFile(toAppend *posting.ExcludedPostings) error {
	path := strings.TrimSpace(f.deps.ExcludeFile)
	if path == "" || len(toAppend.Items) == 0 {
		return nil
	}

	excluded, err := posting.GetExcludedFromFile(path)
	if err != nil {
		return fmt.Errorf("load excluded postings: %w", err)
	}

	excluded.Append(toAppend)

	if err := excluded.ToFile(path); err != nil {
		return fmt.Errorf("write excluded postings: %w", err)
	}

	f.deps.Logger.Info("postings appended to exclude file",
		zap.Int("count", len(toAppend.Items)),
		zap.String("exclude_file", path),
	)

	return nil
}

func (f *eligibilityFilter) Status() Status {
	details := map[string]string{
		"workers": strconv.Itoa(f.workers()),
	}
	if f.deps != nil && f.deps.Filter != nil {
		details["patterns"] = strconv.Itoa(f.deps.Filter.Rules().Len())
		details["classifier"] = strconv.FormatBool(f.deps.Filter.SemanticEnabled())
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

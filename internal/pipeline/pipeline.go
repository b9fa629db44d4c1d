// Package pipeline scores eligible postings, decides which are candidates and writes the report
// rows and artifacts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/h1b-finder/internal/ai"
	"github.com/spigell/h1b-finder/internal/logger"
	"github.com/spigell/h1b-finder/internal/posting"
	"github.com/spigell/h1b-finder/internal/profile"
	"github.com/spigell/h1b-finder/internal/report"
	"github.com/spigell/h1b-finder/internal/sponsorship"
)

const (
	DefaultSponsorshipThreshold = 0.6
	DefaultMatchThreshold       = 0.65
	DefaultContextChunks        = 3

	resumePrefix  = "tailored_resume_job_"
	gapPlanPrefix = "gap_learning_plan_job_"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

type Config struct {
	SponsorshipThreshold float64 `mapstructure:"sponsorship-threshold"`
	MatchThreshold       float64 `mapstructure:"match-threshold"`
	Workers              int     `mapstructure:"workers"`
	GenerateResume       bool    `mapstructure:"generate-resume"`
	GenerateGapPlan      bool    `mapstructure:"generate-gap-plan"`
	OutputDir            string  `mapstructure:"output-dir"`
	ContextChunks        int     `mapstructure:"context-chunks"`
	ProfileRunes         int     `mapstructure:"profile-runes"`
}

// Deps are the collaborators built once per run. Writer may be nil, which disables artifacts.
type Deps struct {
	Scorer  *sponsorship.Scorer
	Judge   ai.Judge
	Writer  ai.Writer
	Profile *profile.Profile
	Sink    report.Sink
	Logger  *zap.Logger
}

type Controller struct {
	cfg     Config
	deps    Deps
	logger  *zap.Logger
	stopped atomic.Bool
}

// New validates deps. A missing profile is reported as profile.ErrNoProfile.
func New(cfg Config, deps Deps) (*Controller, error) {
	if deps.Profile == nil {
		return nil, profile.ErrNoProfile
	}
	if deps.Scorer == nil {
		return nil, errors.New("sponsorship scorer is required")
	}
	if deps.Judge == nil {
		return nil, errors.New("match judge is required")
	}
	if deps.Sink == nil {
		return nil, errors.New("report sink is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ContextChunks <= 0 {
		cfg.ContextChunks = DefaultContextChunks
	}
	if cfg.ProfileRunes <= 0 {
		cfg.ProfileRunes = profile.DefaultSummaryRunes
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}

	return &Controller{cfg: cfg, deps: deps, logger: deps.Logger}, nil
}

// Stop asks a running Run to stop launching new postings. Postings already in flight finish and
// their rows are written.
func (c *Controller) Stop() {
	c.stopped.Store(true)
}

func (c *Controller) shouldStop(ctx context.Context) bool {
	return c.stopped.Load() || ctx.Err() != nil
}

// Run processes every posting and appends exactly one row per processed posting to the sink.
// With more than one worker rows are written in completion order. The returned error joins
// sink failures and names the posting of every row that is missing from the report;
// cancellation is reported through Summary.Cancelled.
func (c *Controller) Run(ctx context.Context, postings *posting.Postings) (*Summary, error) {
	summary := &Summary{Eligible: postings.Len()}

	var (
		mu   sync.Mutex
		errs []error
	)

	g := errgroup.Group{}
	g.SetLimit(c.cfg.Workers)

	for _, p := range postings.Items {
		if c.shouldStop(ctx) {
			break
		}

		g.Go(func() error {
			if c.shouldStop(ctx) {
				return nil
			}

			row := c.Process(ctx, p)
			err := c.deps.Sink.Append(row)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.logger.Error("writing report row failed", append(logger.PostingFields(p), zap.Error(err))...)
				errs = append(errs, fmt.Errorf("row for posting %s not written: %w", p.ID, err))
				return nil
			}
			summary.add(row)
			return nil
		})
	}
	_ = g.Wait()

	summary.Cancelled = summary.Processed < postings.Len() && c.shouldStop(ctx)
	if summary.Cancelled {
		c.logger.Warn("run stopped before all postings were processed",
			zap.Int("processed", summary.Processed),
			zap.Int("eligible", postings.Len()),
		)
	}

	return summary, errors.Join(errs...)
}

// Assessment is the scoring outcome for one posting, before any artifact is written.
type Assessment struct {
	Posting   *posting.Posting
	Evidence  sponsorship.Evidence
	Match     *ai.MatchResult
	Candidate bool

	chunks      []string
	profileText string
}

// Row renders the assessment without artifact paths.
func (a *Assessment) Row() report.Row {
	p := a.Posting
	return report.Row{
		ID:               p.ID,
		Title:            p.Title,
		Company:          p.Company,
		Location:         p.Location,
		URL:              p.URL,
		SponsorshipScore: a.Evidence.Score,
		MatchScore:       a.Match.Score,
		IsCandidate:      a.Candidate,
		Strengths:        a.Match.Strengths,
		Gaps:             a.Match.Gaps,
	}
}

// Process scores one posting and generates its artifacts when it is a candidate. It never fails:
// judge and writer errors degrade to a nil match score and empty artifact paths.
func (c *Controller) Process(ctx context.Context, p *posting.Posting) report.Row {
	a := c.Assess(ctx, p)
	row := a.Row()
	if a.Candidate {
		row.ResumePath, row.GapPlanPath = c.WriteArtifacts(ctx, a, c.cfg.GenerateResume, c.cfg.GenerateGapPlan)
	}
	return row
}

// Assess computes the sponsorship score and the match for p and applies the thresholds. The
// sponsorship score is also attached to p.
func (c *Controller) Assess(ctx context.Context, p *posting.Posting) *Assessment {
	log := logger.WithPosting(c.logger, p)

	evidence := c.deps.Scorer.Evaluate(p)
	sponsor := evidence.Score
	p.Sponsorship = &sponsor

	a := &Assessment{
		Posting:     p,
		Evidence:    evidence,
		chunks:      c.deps.Profile.Retrieve(p.Title+" "+p.Description, c.cfg.ContextChunks),
		profileText: c.deps.Profile.Summary(c.cfg.ProfileRunes),
	}

	match, err := c.deps.Judge.Evaluate(ctx, ai.MatchRequest{
		JobDescription: jobText(p),
		Profile:        a.profileText,
		Context:        a.chunks,
	})
	if err != nil || match == nil {
		log.Warn("match evaluation failed", zap.Error(err))
		match = &ai.MatchResult{}
	}
	a.Match = match
	a.Candidate = c.IsCandidate(sponsor, match)

	fields := []zap.Field{
		zap.Float64("sponsorship_score", sponsor),
		zap.Float64("match_score", match.ScoreOrZero()),
		zap.Bool("match_parsed", match.Score != nil),
		zap.Strings("sponsors", evidence.Sponsors),
		zap.Strings("keywords", evidence.Keywords),
	}
	if a.Candidate {
		log.Info("candidate found", fields...)
	} else {
		log.Debug("posting scored", fields...)
	}

	return a
}

// WriteArtifacts generates the requested documents for an assessed posting. Without a writer, or
// after Stop, nothing is generated. Failed documents yield an empty path.
func (c *Controller) WriteArtifacts(ctx context.Context, a *Assessment, resume, gapPlan bool) (resumePath, gapPlanPath string) {
	if c.deps.Writer == nil {
		return "", ""
	}

	p := a.Posting
	log := logger.WithPosting(c.logger, p)
	req := ai.ArtifactRequest{
		JobTitle:       p.Title,
		Company:        p.Company,
		JobDescription: jobText(p),
		Profile:        a.profileText,
		Context:        a.chunks,
		Match:          a.Match,
	}

	if resume && !c.shouldStop(ctx) {
		resumePath = c.writeArtifact(log, ResumeFileName(p.ID), func() (string, error) {
			return c.deps.Writer.TailorResume(ctx, req)
		})
	}
	if gapPlan && !c.shouldStop(ctx) {
		gapPlanPath = c.writeArtifact(log, GapPlanFileName(p.ID), func() (string, error) {
			return c.deps.Writer.GapPlan(ctx, req)
		})
	}
	return resumePath, gapPlanPath
}

// HasWriter reports whether artifacts can be generated at all.
func (c *Controller) HasWriter() bool { return c.deps.Writer != nil }

// IsCandidate applies both thresholds. A missing match score counts as 0.
func (c *Controller) IsCandidate(sponsorship float64, match *ai.MatchResult) bool {
	return sponsorship >= c.cfg.SponsorshipThreshold && match.ScoreOrZero() >= c.cfg.MatchThreshold
}

func (c *Controller) writeArtifact(log *zap.Logger, name string, generate func() (string, error)) string {
	text, err := generate()
	if err != nil {
		log.Warn("artifact generation failed", zap.String("artifact", name), zap.Error(err))
		return ""
	}
	if strings.TrimSpace(text) == "" {
		log.Warn("artifact generation returned empty text", zap.String("artifact", name))
		return ""
	}

	if err := os.MkdirAll(c.cfg.OutputDir, 0o755); err != nil {
		log.Warn("creating output dir failed", zap.String("dir", c.cfg.OutputDir), zap.Error(err))
		return ""
	}

	path := filepath.Join(c.cfg.OutputDir, name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		log.Warn("writing artifact failed", zap.String("path", path), zap.Error(err))
		return ""
	}

	log.Info("artifact written", zap.String("path", path))
	return path
}

func ResumeFileName(id string) string {
	return resumePrefix + safeID(id) + ".md"
}

func GapPlanFileName(id string) string {
	return gapPlanPrefix + safeID(id) + ".md"
}

func safeID(id string) string {
	id = unsafeFileChars.ReplaceAllString(strings.TrimSpace(id), "_")
	if id == "" {
		return "unknown"
	}
	return id
}

func jobText(p *posting.Posting) string {
	return fmt.Sprintf("Title: %s\nCompany: %s\nLocation: %s\n\n%s", p.Title, p.Company, p.Location, p.Description)
}

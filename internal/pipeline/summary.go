package pipeline

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spigell/h1b-finder/internal/report"
)

// DefaultConfig returns the thresholds and toggles used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		SponsorshipThreshold: DefaultSponsorshipThreshold,
		MatchThreshold:       DefaultMatchThreshold,
		Workers:              1,
		GenerateResume:       true,
		GenerateGapPlan:      true,
		OutputDir:            ".",
		ContextChunks:        DefaultContextChunks,
	}
}

// Summary counts what a run produced. Scraped is filled by the caller, which knows how many
// postings were fetched before filtering.
type Summary struct {
	Scraped    int
	Eligible   int
	Processed  int
	Candidates int
	Resumes    int
	GapPlans   int
	Unparsed   int
	Cancelled  bool
}

func (s *Summary) add(row report.Row) {
	s.Processed++
	if row.IsCandidate {
		s.Candidates++
	}
	if row.ResumePath != "" {
		s.Resumes++
	}
	if row.GapPlanPath != "" {
		s.GapPlans++
	}
	if row.MatchScore == nil {
		s.Unparsed++
	}
}

// ExclusionRate is the share of scraped postings dropped before scoring, in percent.
func (s *Summary) ExclusionRate() float64 {
	if s.Scraped == 0 {
		return 0
	}
	return float64(s.Scraped-s.Eligible) / float64(s.Scraped) * 100
}

// MatchRate is the share of processed postings that became candidates, in percent.
func (s *Summary) MatchRate() float64 {
	if s.Processed == 0 {
		return 0
	}
	return float64(s.Candidates) / float64(s.Processed) * 100
}

func (s *Summary) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("scraped", s.Scraped)
	enc.AddInt("eligible", s.Eligible)
	enc.AddInt("processed", s.Processed)
	enc.AddInt("candidates", s.Candidates)
	enc.AddInt("resumes", s.Resumes)
	enc.AddInt("gap_plans", s.GapPlans)
	enc.AddInt("unparsed_matches", s.Unparsed)
	enc.AddFloat64("exclusion_rate", s.ExclusionRate())
	enc.AddFloat64("match_rate", s.MatchRate())
	enc.AddBool("cancelled", s.Cancelled)
	return nil
}

// Field wraps the summary for structured logging.
func (s *Summary) Field() zap.Field {
	return zap.Object("summary", s)
}

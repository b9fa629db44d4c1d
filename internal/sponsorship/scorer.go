package sponsorship

import (
	"strings"

	"github.com/spigell/h1b-finder/internal/posting"
)

const (
	DefaultCompanyWeight = 0.7
	DefaultKeywordWeight = 0.3
)

// DefaultKeywords are description phrases that signal sponsorship.
var DefaultKeywords = []string{
	"h-1b",
	"h1b",
	"visa sponsorship",
	"sponsorship available",
	"will sponsor",
	"work authorization provided",
}

type Config struct {
	// Nil weights take the defaults; an explicit 0 switches the signal off.
	CompanyWeight *float64 `mapstructure:"company-weight"`
	KeywordWeight *float64 `mapstructure:"keyword-weight"`
	Keywords      []string `mapstructure:"keywords"`
	// Cumulative adds a weight per distinct hit instead of once per signal.
	Cumulative bool `mapstructure:"cumulative"`
}

// Scorer is a pure function of the posting and the registry.
type Scorer struct {
	registry      *Registry
	config        Config
	companyWeight float64
	keywordWeight float64
	keywords      []string
}

// Evidence explains a score.
type Evidence struct {
	Score    float64
	Sponsors []string
	Keywords []string
}

// Weight returns a pointer to w, for Config literals.
func Weight(w float64) *float64 { return &w }

// NewScorer fills unset weights and an empty keyword list with the defaults.
func NewScorer(registry *Registry, cfg Config) *Scorer {
	companyWeight, keywordWeight := DefaultCompanyWeight, DefaultKeywordWeight
	if cfg.CompanyWeight != nil {
		companyWeight = *cfg.CompanyWeight
	}
	if cfg.KeywordWeight != nil {
		keywordWeight = *cfg.KeywordWeight
	}
	keywords := cfg.Keywords
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}

	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			lowered = append(lowered, k)
		}
	}

	if registry == nil {
		registry = NewRegistry(nil)
	}

	return &Scorer{
		registry:      registry,
		config:        cfg,
		companyWeight: companyWeight,
		keywordWeight: keywordWeight,
		keywords:      lowered,
	}
}

func (s *Scorer) Score(p *posting.Posting) float64 {
	return s.Evaluate(p).Score
}

func (s *Scorer) Evaluate(p *posting.Posting) Evidence {
	var ev Evidence
	if p == nil {
		return ev
	}

	score := 0.0

	ev.Sponsors = s.registry.Matches(p.Company, !s.config.Cumulative)
	if n := len(ev.Sponsors); n > 0 {
		if s.config.Cumulative {
			score += float64(n) * s.companyWeight
		} else {
			score += s.companyWeight
		}
	}

	desc := strings.ToLower(p.Description)
	for _, k := range s.keywords {
		if !strings.Contains(desc, k) {
			continue
		}
		ev.Keywords = append(ev.Keywords, k)
		if !s.config.Cumulative {
			break
		}
	}
	if n := len(ev.Keywords); n > 0 {
		if s.config.Cumulative {
			score += float64(n) * s.keywordWeight
		} else {
			score += s.keywordWeight
		}
	}

	ev.Score = clamp(score)
	return ev
}

func (s *Scorer) Registry() *Registry { return s.registry }

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

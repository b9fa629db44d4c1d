package sources

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/h1b-finder/internal/posting"
	"github.com/spigell/h1b-finder/internal/utils"
)

const defaultFetchTimeout = 5 * time.Minute

// Manager runs every enabled fetcher for every keyword.
type Manager struct {
	fetchers []Fetcher
	timeout  time.Duration
	logger   *zap.Logger
}

func NewManager(fetchers []Fetcher, timeout time.Duration, logger *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Manager{fetchers: fetchers, timeout: timeout, logger: nopIfNil(logger)}
}

func (m *Manager) Fetchers() []Fetcher { return m.fetchers }

// Collect queries all fetchers concurrently. Results are ordered by fetcher, then by keyword,
// whatever order the requests finish in. q.Keywords may hold a comma separated list.
func (m *Manager) Collect(ctx context.Context, q Query) []FetchResult {
	keywords := utils.SplitList(q.Keywords)
	if len(keywords) == 0 {
		keywords = []string{""}
	}

	results := make([]FetchResult, len(m.fetchers)*len(keywords))

	var g errgroup.Group
	for i, f := range m.fetchers {
		for j, kw := range keywords {
			slot := i*len(keywords) + j
			query := q
			query.Keywords = kw

			g.Go(func() error {
				fctx, cancel := context.WithTimeout(ctx, m.timeout)
				defer cancel()

				m.logger.Info("searching",
					zap.String("source", string(f.Name())),
					zap.String("keywords", kw),
					zap.String("location", q.Location),
				)

				found := f.Search(fctx, query)
				results[slot] = FetchResult{Source: f.Name(), Keywords: kw, Postings: found}

				m.logger.Info("search finished",
					zap.String("source", string(f.Name())),
					zap.String("keywords", kw),
					zap.Int("count", len(found)),
				)
				return nil
			})
		}
	}
	_ = g.Wait()

	return results
}

// Search collects and aggregates in one step.
func (m *Manager) Search(ctx context.Context, q Query, cutoff *time.Time) *posting.Postings {
	results := m.Collect(ctx, q)

	total := 0
	for _, r := range results {
		total += len(r.Postings)
	}

	items := Aggregate(results, cutoff)
	m.logger.Info("postings aggregated",
		zap.Int("fetched", total),
		zap.Int("kept", len(items)),
		zap.Bool("date_filter", cutoff != nil),
	)

	return &posting.Postings{Items: items}
}

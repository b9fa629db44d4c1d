// Package sources fetches postings from job boards and merges them into one date-windowed list.
package sources

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/h1b-finder/internal/posting"
)

// ErrMissingCredentials marks a fetcher that cannot run without an API key.
var ErrMissingCredentials = errors.New("missing credentials")

type Query struct {
	Keywords string
	Location string
	Pages    int
	// PostedAfter is a hint for boards that filter server side. The cutoff is enforced by
	// Aggregate regardless.
	PostedAfter *time.Time
}

func (q Query) pages() int {
	if q.Pages <= 0 {
		return 1
	}
	return q.Pages
}

// Fetcher is one job board. Search never fails: page errors are logged and the postings fetched
// so far are returned.
type Fetcher interface {
	Name() posting.Source
	Search(ctx context.Context, q Query) []*posting.Posting
}

type FetchResult struct {
	Source   posting.Source
	Keywords string
	Postings []*posting.Posting
}

// Aggregate concatenates results in the given order and applies the cutoff. With a cutoff set,
// postings without a parsed date are dropped. Duplicates across sources are kept.
func Aggregate(results []FetchResult, cutoff *time.Time) []*posting.Posting {
	var out []*posting.Posting
	for _, r := range results {
		for _, p := range r.Postings {
			if p == nil {
				continue
			}
			if cutoff != nil && (p.PostedAt == nil || p.PostedAt.Before(*cutoff)) {
				continue
			}
			out = append(out, p)
		}
	}
	return out
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

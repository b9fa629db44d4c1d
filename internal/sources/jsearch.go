package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/h1b-finder/internal/dates"
	"github.com/spigell/h1b-finder/internal/posting"
)

const (
	JSearchURL  = "https://jsearch.p.rapidapi.com/search"
	jsearchHost = "jsearch.p.rapidapi.com"
)

type jsearchItem struct {
	ID          string `json:"job_id"`
	Title       string `json:"job_title"`
	Employer    string `json:"employer_name"`
	City        string `json:"job_city"`
	State       string `json:"job_state"`
	Description string `json:"job_description"`
	ApplyLink   string `json:"job_apply_link"`
	PostedAt    string `json:"job_posted_at"`
	PostedAtUTC string `json:"job_posted_at_datetime_utc"`
}

// JSearch queries the RapidAPI JSearch aggregator.
type JSearch struct {
	client  *Client
	apiKey  string
	BaseURL string
	dates   *dates.Normalizer
	logger  *zap.Logger
}

func NewJSearch(client *Client, apiKey string, normalizer *dates.Normalizer, logger *zap.Logger) (*JSearch, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("jsearch: %w", ErrMissingCredentials)
	}
	return &JSearch{
		client:  client,
		apiKey:  strings.TrimSpace(apiKey),
		BaseURL: JSearchURL,
		dates:   normalizer,
		logger:  nopIfNil(logger).With(zap.String("source", string(posting.SourceJSearch))),
	}, nil
}

func (j *JSearch) Name() posting.Source { return posting.SourceJSearch }

func (j *JSearch) Search(ctx context.Context, q Query) []*posting.Posting {
	headers := map[string]string{
		"X-RapidAPI-Key":  j.apiKey,
		"X-RapidAPI-Host": jsearchHost,
	}

	var out []*posting.Posting
	for page := 1; page <= q.pages(); page++ {
		if ctx.Err() != nil {
			break
		}

		params := url.Values{}
		params.Set("query", fmt.Sprintf("%s in %s", q.Keywords, q.Location))
		params.Set("page", strconv.Itoa(page))
		params.Set("num_pages", "1")
		if hint := jsearchDateHint(j.dates.Current(), q.PostedAfter); hint != "" {
			params.Set("date_posted", hint)
		}

		var items []jsearchItem
		if err := j.client.getItems(ctx, j.BaseURL, params, headers, "data", &items); err != nil {
			j.logger.Warn("fetching page failed", zap.Int("page", page), zap.Error(err))
			continue
		}

		j.logger.Debug("page fetched", zap.Int("page", page), zap.Int("count", len(items)))

		for _, item := range items {
			out = append(out, j.toPosting(item))
		}
	}
	return out
}

func (j *JSearch) toPosting(item jsearchItem) *posting.Posting {
	raw := item.PostedAt
	if strings.TrimSpace(raw) == "" {
		raw = item.PostedAtUTC
	}

	p := &posting.Posting{
		ID:          item.ID,
		Title:       orNA(item.Title),
		Company:     orNA(item.Employer),
		Location:    joinLocation(item.City, item.State),
		Description: item.Description,
		URL:         item.ApplyLink,
		Source:      posting.SourceJSearch,
		PostedAt:    j.dates.Normalize(raw),
		PostedAtRaw: raw,
	}
	p.EnsureID()
	return p
}

// jsearchDateHint maps the cutoff to the coarsest date_posted bucket that still covers it.
func jsearchDateHint(now time.Time, after *time.Time) string {
	if after == nil {
		return ""
	}
	age := now.Sub(*after)
	switch {
	case age <= 24*time.Hour:
		return "today"
	case age <= 3*24*time.Hour:
		return "3days"
	case age <= 7*24*time.Hour:
		return "week"
	case age <= 31*24*time.Hour:
		return "month"
	default:
		return "all"
	}
}

func joinLocation(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return "N/A"
	}
	return strings.Join(kept, ", ")
}

func orNA(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "N/A"
	}
	return s
}

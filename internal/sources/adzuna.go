package sources

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/h1b-finder/internal/dates"
	"github.com/spigell/h1b-finder/internal/posting"
)

const (
	AdzunaURL            = "https://api.adzuna.com/v1/api/jobs/us/search"
	adzunaResultsPerPage = 20
)

type adzunaItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	RedirectURL string `json:"redirect_url"`
	Created     string `json:"created"`
	Company     struct {
		DisplayName string `json:"display_name"`
	} `json:"company"`
	Location struct {
		DisplayName string `json:"display_name"`
	} `json:"location"`
}

// Adzuna queries the Adzuna US search API.
type Adzuna struct {
	client  *Client
	appID   string
	appKey  string
	BaseURL string
	dates   *dates.Normalizer
	logger  *zap.Logger
}

func NewAdzuna(client *Client, appID, appKey string, normalizer *dates.Normalizer, logger *zap.Logger) (*Adzuna, error) {
	if strings.TrimSpace(appID) == "" || strings.TrimSpace(appKey) == "" {
		return nil, fmt.Errorf("adzuna: %w", ErrMissingCredentials)
	}
	return &Adzuna{
		client:  client,
		appID:   strings.TrimSpace(appID),
		appKey:  strings.TrimSpace(appKey),
		BaseURL: AdzunaURL,
		dates:   normalizer,
		logger:  nopIfNil(logger).With(zap.String("source", string(posting.SourceAdzuna))),
	}, nil
}

func (a *Adzuna) Name() posting.Source { return posting.SourceAdzuna }

func (a *Adzuna) Search(ctx context.Context, q Query) []*posting.Posting {
	var out []*posting.Posting
	for page := 1; page <= q.pages(); page++ {
		if ctx.Err() != nil {
			break
		}

		params := url.Values{}
		params.Set("app_id", a.appID)
		params.Set("app_key", a.appKey)
		params.Set("what", q.Keywords)
		params.Set("where", q.Location)
		params.Set("results_per_page", strconv.Itoa(adzunaResultsPerPage))
		params.Set("content-type", "application/json")
		if q.PostedAfter != nil {
			days := math.Ceil(a.dates.Current().Sub(*q.PostedAfter).Hours() / 24)
			if days >= 1 {
				params.Set("max_days_old", strconv.Itoa(int(days)))
			}
		}

		var items []adzunaItem
		pageURL := fmt.Sprintf("%s/%d", strings.TrimRight(a.BaseURL, "/"), page)
		if err := a.client.getItems(ctx, pageURL, params, nil, "results", &items); err != nil {
			a.logger.Warn("fetching page failed", zap.Int("page", page), zap.Error(err))
			continue
		}

		a.logger.Debug("page fetched", zap.Int("page", page), zap.Int("count", len(items)))

		for _, item := range items {
			p := &posting.Posting{
				ID:          item.ID,
				Title:       orNA(item.Title),
				Company:     orNA(item.Company.DisplayName),
				Location:    orNA(item.Location.DisplayName),
				Description: item.Description,
				URL:         item.RedirectURL,
				Source:      posting.SourceAdzuna,
				PostedAt:    a.dates.Normalize(item.Created),
				PostedAtRaw: item.Created,
			}
			p.EnsureID()
			out = append(out, p)
		}
	}
	return out
}

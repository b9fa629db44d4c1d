package sources

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/spigell/h1b-finder/internal/dates"
	"github.com/spigell/h1b-finder/internal/posting"
)

const (
	IndeedURL     = "https://www.indeed.com"
	indeedPerPage = 10
)

// Indeed scrapes the public search result pages. Only the card snippet is available as
// description.
type Indeed struct {
	client  *Client
	BaseURL string
	dates   *dates.Normalizer
	logger  *zap.Logger
}

func NewIndeed(client *Client, normalizer *dates.Normalizer, logger *zap.Logger) *Indeed {
	return &Indeed{
		client:  client,
		BaseURL: IndeedURL,
		dates:   normalizer,
		logger:  nopIfNil(logger).With(zap.String("source", string(posting.SourceIndeed))),
	}
}

func (i *Indeed) Name() posting.Source { return posting.SourceIndeed }

func (i *Indeed) Search(ctx context.Context, q Query) []*posting.Posting {
	base := strings.TrimRight(i.BaseURL, "/")

	var out []*posting.Posting
	for page := 0; page < q.pages(); page++ {
		if ctx.Err() != nil {
			break
		}

		params := url.Values{}
		params.Set("q", q.Keywords)
		params.Set("l", q.Location)
		params.Set("start", strconv.Itoa(page*indeedPerPage))

		doc, err := i.client.getDocument(ctx, base+"/jobs", params)
		if err != nil {
			i.logger.Warn("fetching page failed", zap.Int("page", page+1), zap.Error(err))
			continue
		}

		found := i.parsePage(doc, base)
		i.logger.Debug("page fetched", zap.Int("page", page+1), zap.Int("count", len(found)))
		out = append(out, found...)
	}
	return out
}

func (i *Indeed) parsePage(doc *goquery.Document, base string) []*posting.Posting {
	cards := doc.Find("div.job_seen_beacon")
	if cards.Length() == 0 {
		cards = doc.Find("td.resultContent")
	}

	var out []*posting.Posting
	cards.Each(func(_ int, card *goquery.Selection) {
		titleSel := firstOf(card, "h2.jobTitle", "a.jcs-JobTitle")
		title := cleanText(titleSel.Text())

		link := titleSel.Find("a[href]").First()
		if link.Length() == 0 && titleSel.Is("a") {
			link = titleSel
		}
		href, _ := link.Attr("href")
		jobURL := ""
		if href = strings.TrimSpace(href); href != "" {
			jobURL = resolveURL(base, href)
		}
		jk, _ := link.Attr("data-jk")

		rawDate := cleanText(firstOf(card, "span.date", `span[data-testid="myJobsStateDate"]`).Text())
		// Indeed prefixes dates with labels such as "Posted" or "Active".
		rawDate = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(rawDate, "Posted"), "Active"))

		p := &posting.Posting{
			ID:          strings.TrimSpace(jk),
			Title:       orNA(title),
			Company:     orNA(cleanText(firstOf(card, `span[data-testid="company-name"]`, "span.companyName").Text())),
			Location:    orNA(cleanText(firstOf(card, `div[data-testid="text-location"]`, "div.companyLocation").Text())),
			Description: cleanText(firstOf(card, "div.job-snippet", "div.jobCardShelfContainer").Text()),
			URL:         jobURL,
			Source:      posting.SourceIndeed,
			PostedAt:    i.dates.Normalize(rawDate),
			PostedAtRaw: rawDate,
		}
		p.EnsureID()
		out = append(out, p)
	})
	return out
}

func firstOf(s *goquery.Selection, selectors ...string) *goquery.Selection {
	for _, sel := range selectors {
		if found := s.Find(sel).First(); found.Length() > 0 {
			return found
		}
	}
	return s.Find("__none__")
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func resolveURL(base, href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return base + href
	}
	if u.IsAbs() {
		return u.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return base + href
	}
	return b.ResolveReference(u).String()
}

package sources

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/h1b-finder/internal/utils"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	contentEncoding  = "gzip"
	defaultTimeout   = 10 * time.Second
	maxErrorBody     = 200
)

// DefaultMaxBodyBytes caps a single decompressed response.
const DefaultMaxBodyBytes = 8 << 20

var ErrBodyTooLarge = errors.New("response body too large")

// Client is the HTTP plumbing shared by the board fetchers.
type Client struct {
	HTTPClient *http.Client
	Limiter    *HostLimiter
	UserAgent  string

	// MaxBodyBytes bounds the bytes read from one response; 0 means DefaultMaxBodyBytes.
	MaxBodyBytes int64

	logger *zap.Logger
}

func NewClient(limiter *HostLimiter, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		HTTPClient:   &http.Client{Timeout: defaultTimeout},
		Limiter:      limiter,
		UserAgent:    defaultUserAgent,
		MaxBodyBytes: DefaultMaxBodyBytes,
		logger:       logger,
	}
}

func (c *Client) do(ctx context.Context, rawURL string, q url.Values, headers map[string]string) ([]byte, error) {
	if err := c.Limiter.WaitURL(ctx, rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if q != nil {
		req.URL.RawQuery = q.Encode()
	}

	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	c.logger.Debug("make request", zap.String("url", req.URL.Redacted()))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	}

	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	data, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes from %s", ErrBodyTooLarge, limit, req.URL.Redacted())
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s: %s", resp.Status, utils.TruncateForLog(string(data), maxErrorBody))
	}

	return data, nil
}

// getItems fetches a JSON document and decodes the list under key into out.
func (c *Client) getItems(ctx context.Context, rawURL string, q url.Values, headers map[string]string, key string, out any) error {
	data, err := c.do(ctx, rawURL, q, headers)
	if err != nil {
		return err
	}

	var envelope map[string]any
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	items, ok := envelope[key]
	if !ok || items == nil {
		return nil
	}

	return decodeItems(items, out)
}

func decodeItems(items any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(items); err != nil {
		return fmt.Errorf("decode items: %w", err)
	}
	return nil
}

func (c *Client) getDocument(ctx context.Context, rawURL string, q url.Values) (*goquery.Document, error) {
	data, err := c.do(ctx, rawURL, q, map[string]string{
		"Accept": "text/html,application/xhtml+xml",
	})
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

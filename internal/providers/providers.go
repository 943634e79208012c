// Package providers defines the normalized records returned by external content sources
// and the HTTP plumbing shared by their adapters.
package providers

import (
	"chat-bot/internal/apperr"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Record is a normalized item with a natural key and a publication time
type Record interface {
	Key() string
	// Timestamp returns the parsed time when available and the raw string otherwise.
	Timestamp() (time.Time, string)
}

// Adapter fetches records of one kind from one external source.
// Fetch returns an apperr Unconfigured error when credentials are missing;
// any other error is a provider failure.
type Adapter[T Record] interface {
	Name() string
	Configured() bool
	Fetch(ctx context.Context, query string, limit int) ([]T, error)
}

// NewsArticle is a news item; its natural key is URL
type NewsArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"`
	ImageURL    string `json:"image_url"`
}

func (a NewsArticle) Key() string { return a.URL }

func (a NewsArticle) Timestamp() (time.Time, string) {
	return ParseTime(a.PublishedAt), a.PublishedAt
}

// PriceQuote is a market quote; its natural key is Symbol
type PriceQuote struct {
	Symbol           string  `json:"symbol"`
	Name             string  `json:"name"`
	Price            float64 `json:"price"`
	PercentChange24h float64 `json:"percent_change_24h"`
	MarketCap        float64 `json:"market_cap"`
	Volume24h        float64 `json:"volume_24h"`
	LastUpdated      string  `json:"last_updated"`
	Source           string  `json:"source"`
}

func (q PriceQuote) Key() string { return q.Symbol }

func (q PriceQuote) Timestamp() (time.Time, string) {
	return ParseTime(q.LastUpdated), q.LastUpdated
}

// PostMetrics are public engagement counters
type PostMetrics struct {
	LikeCount    int `json:"like_count"`
	RetweetCount int `json:"retweet_count"`
	ReplyCount   int `json:"reply_count"`
	QuoteCount   int `json:"quote_count"`
}

// SocialPost is a social media post; its natural key is ID
type SocialPost struct {
	ID             string      `json:"id"`
	Text           string      `json:"text"`
	AuthorUsername string      `json:"author_username"`
	AuthorName     string      `json:"author_name"`
	AuthorVerified bool        `json:"author_verified"`
	CreatedAt      string      `json:"created_at"`
	Metrics        PostMetrics `json:"metrics"`
	URL            string      `json:"url"`
}

func (p SocialPost) Key() string { return p.ID }

func (p SocialPost) Timestamp() (time.Time, string) {
	return ParseTime(p.CreatedAt), p.CreatedAt
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC1123Z,
	time.RFC1123,
}

// ParseTime parses the timestamp formats used by the supported providers; zero when unparseable.
func ParseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// StatusError is returned for non-2xx provider responses
type StatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.Status, e.Body)
}

// NewHTTPClient returns the client shared by an adapter for its lifetime
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// GetJSON performs a GET request and decodes a JSON body into out
func GetJSON(ctx context.Context, client *http.Client, provider, url string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return apperr.New(apperr.KindProviderFailure, provider, fmt.Errorf("error creating request: %w", err))
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return apperr.New(apperr.KindProviderFailure, provider, fmt.Errorf("error making request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperr.New(apperr.KindProviderFailure, provider, &StatusError{Provider: provider, Status: resp.StatusCode, Body: string(body)})
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.New(apperr.KindProviderFailure, provider, fmt.Errorf("error decoding response: %w", err))
	}
	return nil
}

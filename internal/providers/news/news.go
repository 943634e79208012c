package news

import (
	"chat-bot/internal/apperr"
	"chat-bot/internal/providers"
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Default endpoints; tests point adapters at httptest servers instead.
const (
	NewsAPIURL  = "https://newsapi.org/v2/everything"
	NewsDataURL = "https://newsdata.io/api/1/news"
	GNewsURL    = "https://gnews.io/api/v4/search"
	GuardianURL = "https://content.guardianapis.com/search"
)

type base struct {
	name     string
	apiKey   string
	endpoint string
	client   *http.Client
}

func (b *base) Name() string { return b.name }

func (b *base) Configured() bool { return b.apiKey != "" }

// Close releases idle connections
func (b *base) Close() {
	b.client.CloseIdleConnections()
}

func (b *base) get(ctx context.Context, params url.Values, out any) error {
	if !b.Configured() {
		return apperr.Unconfigured(b.name)
	}
	return providers.GetJSON(ctx, b.client, b.name, b.endpoint+"?"+params.Encode(), nil, out)
}

// NewsAPI searches newsapi.org
type NewsAPI struct{ base }

func NewNewsAPI(apiKey, endpoint string, timeout time.Duration) *NewsAPI {
	if endpoint == "" {
		endpoint = NewsAPIURL
	}
	return &NewsAPI{base{name: "newsapi", apiKey: apiKey, endpoint: endpoint, client: providers.NewHTTPClient(timeout)}}
}

func (a *NewsAPI) Fetch(ctx context.Context, query string, limit int) ([]providers.NewsArticle, error) {
	params := url.Values{
		"q":        {query},
		"apiKey":   {a.apiKey},
		"sortBy":   {"publishedAt"},
		"pageSize": {strconv.Itoa(limit)},
		"language": {"en"},
	}
	var resp struct {
		Articles []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			URL         string `json:"url"`
			URLToImage  string `json:"urlToImage"`
			PublishedAt string `json:"publishedAt"`
			Source      struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"articles"`
	}
	if err := a.get(ctx, params, &resp); err != nil {
		return nil, err
	}

	out := make([]providers.NewsArticle, 0, len(resp.Articles))
	for _, art := range resp.Articles {
		out = append(out, providers.NewsArticle{
			Title:       art.Title,
			Description: art.Description,
			URL:         art.URL,
			Source:      orDefault(art.Source.Name, "NewsAPI"),
			PublishedAt: art.PublishedAt,
			ImageURL:    art.URLToImage,
		})
	}
	return out, nil
}

// NewsData searches newsdata.io
type NewsData struct{ base }

func NewNewsData(apiKey, endpoint string, timeout time.Duration) *NewsData {
	if endpoint == "" {
		endpoint = NewsDataURL
	}
	return &NewsData{base{name: "newsdata", apiKey: apiKey, endpoint: endpoint, client: providers.NewHTTPClient(timeout)}}
}

func (a *NewsData) Fetch(ctx context.Context, query string, limit int) ([]providers.NewsArticle, error) {
	params := url.Values{
		"apikey":   {a.apiKey},
		"q":        {query},
		"language": {"en"},
		"size":     {strconv.Itoa(limit)},
	}
	var resp struct {
		Results []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Link        string `json:"link"`
			SourceID    string `json:"source_id"`
			PubDate     string `json:"pubDate"`
			ImageURL    string `json:"image_url"`
		} `json:"results"`
	}
	if err := a.get(ctx, params, &resp); err != nil {
		return nil, err
	}

	out := make([]providers.NewsArticle, 0, len(resp.Results))
	for _, art := range resp.Results {
		out = append(out, providers.NewsArticle{
			Title:       art.Title,
			Description: art.Description,
			URL:         art.Link,
			Source:      orDefault(art.SourceID, "NewsData"),
			PublishedAt: art.PubDate,
			ImageURL:    art.ImageURL,
		})
	}
	return out, nil
}

// GNews searches gnews.io
type GNews struct{ base }

func NewGNews(apiKey, endpoint string, timeout time.Duration) *GNews {
	if endpoint == "" {
		endpoint = GNewsURL
	}
	return &GNews{base{name: "gnews", apiKey: apiKey, endpoint: endpoint, client: providers.NewHTTPClient(timeout)}}
}

func (a *GNews) Fetch(ctx context.Context, query string, limit int) ([]providers.NewsArticle, error) {
	params := url.Values{
		"q":     {query},
		"token": {a.apiKey},
		"lang":  {"en"},
		"max":   {strconv.Itoa(limit)},
	}
	var resp struct {
		Articles []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			URL         string `json:"url"`
			Image       string `json:"image"`
			PublishedAt string `json:"publishedAt"`
			Source      struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"articles"`
	}
	if err := a.get(ctx, params, &resp); err != nil {
		return nil, err
	}

	out := make([]providers.NewsArticle, 0, len(resp.Articles))
	for _, art := range resp.Articles {
		out = append(out, providers.NewsArticle{
			Title:       art.Title,
			Description: art.Description,
			URL:         art.URL,
			Source:      orDefault(art.Source.Name, "GNews"),
			PublishedAt: art.PublishedAt,
			ImageURL:    art.Image,
		})
	}
	return out, nil
}

// Guardian searches the Guardian content API
type Guardian struct{ base }

func NewGuardian(apiKey, endpoint string, timeout time.Duration) *Guardian {
	if endpoint == "" {
		endpoint = GuardianURL
	}
	return &Guardian{base{name: "guardian", apiKey: apiKey, endpoint: endpoint, client: providers.NewHTTPClient(timeout)}}
}

func (a *Guardian) Fetch(ctx context.Context, query string, limit int) ([]providers.NewsArticle, error) {
	params := url.Values{
		"q":           {query},
		"api-key":     {a.apiKey},
		"page-size":   {strconv.Itoa(limit)},
		"show-fields": {"headline,trailText,thumbnail,shortUrl"},
		"order-by":    {"newest"},
	}
	var resp struct {
		Response struct {
			Results []struct {
				WebTitle           string `json:"webTitle"`
				WebURL             string `json:"webUrl"`
				WebPublicationDate string `json:"webPublicationDate"`
				Fields             struct {
					Headline  string `json:"headline"`
					TrailText string `json:"trailText"`
					Thumbnail string `json:"thumbnail"`
					ShortURL  string `json:"shortUrl"`
				} `json:"fields"`
			} `json:"results"`
		} `json:"response"`
	}
	if err := a.get(ctx, params, &resp); err != nil {
		return nil, err
	}

	out := make([]providers.NewsArticle, 0, len(resp.Response.Results))
	for _, art := range resp.Response.Results {
		out = append(out, providers.NewsArticle{
			Title:       orDefault(art.Fields.Headline, art.WebTitle),
			Description: art.Fields.TrailText,
			URL:         orDefault(art.Fields.ShortURL, art.WebURL),
			Source:      "The Guardian",
			PublishedAt: art.WebPublicationDate,
			ImageURL:    art.Fields.Thumbnail,
		})
	}
	return out, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

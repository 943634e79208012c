package social

import (
	"chat-bot/internal/apperr"
	"chat-bot/internal/providers"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const TwitterAPIURL = "https://api.twitter.com/2"

// Twitter searches recent posts and user timelines through the v2 API.
// A query starting with @ is treated as a timeline request.
type Twitter struct {
	bearer  string
	baseURL string
	client  *http.Client
}

func NewTwitter(bearer, baseURL string, timeout time.Duration) *Twitter {
	if baseURL == "" {
		baseURL = TwitterAPIURL
	}
	return &Twitter{bearer: bearer, baseURL: strings.TrimRight(baseURL, "/"), client: providers.NewHTTPClient(timeout)}
}

func (t *Twitter) Name() string { return "twitter" }

func (t *Twitter) Configured() bool { return t.bearer != "" }

func (t *Twitter) Close() { t.client.CloseIdleConnections() }

func (t *Twitter) header() http.Header {
	return http.Header{"Authorization": {"Bearer " + t.bearer}}
}

// clampResults keeps max_results inside the API's accepted range
func clampResults(limit int) string {
	switch {
	case limit < 10:
		limit = 10
	case limit > 100:
		limit = 100
	}
	return strconv.Itoa(limit)
}

func (t *Twitter) Fetch(ctx context.Context, query string, limit int) ([]providers.SocialPost, error) {
	if !t.Configured() {
		return nil, apperr.Unconfigured(t.Name())
	}
	query = strings.TrimSpace(query)
	if strings.HasPrefix(query, "@") {
		return t.UserTimeline(ctx, strings.TrimPrefix(query, "@"), limit)
	}
	return t.Search(ctx, query, limit)
}

type tweet struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	AuthorID      string `json:"author_id"`
	CreatedAt     string `json:"created_at"`
	PublicMetrics struct {
		LikeCount    int `json:"like_count"`
		RetweetCount int `json:"retweet_count"`
		ReplyCount   int `json:"reply_count"`
		QuoteCount   int `json:"quote_count"`
	} `json:"public_metrics"`
}

type twitterUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Verified bool   `json:"verified"`
}

func (tw tweet) post(author twitterUser) providers.SocialPost {
	username := author.Username
	if username == "" {
		username = "unknown"
	}
	return providers.SocialPost{
		ID:             tw.ID,
		Text:           tw.Text,
		AuthorUsername: author.Username,
		AuthorName:     author.Name,
		AuthorVerified: author.Verified,
		CreatedAt:      tw.CreatedAt,
		Metrics: providers.PostMetrics{
			LikeCount:    tw.PublicMetrics.LikeCount,
			RetweetCount: tw.PublicMetrics.RetweetCount,
			ReplyCount:   tw.PublicMetrics.ReplyCount,
			QuoteCount:   tw.PublicMetrics.QuoteCount,
		},
		URL: fmt.Sprintf("https://twitter.com/%s/status/%s", username, tw.ID),
	}
}

// Search runs a recent-search query
func (t *Twitter) Search(ctx context.Context, query string, limit int) ([]providers.SocialPost, error) {
	params := url.Values{
		"query":        {query},
		"max_results":  {clampResults(limit)},
		"tweet.fields": {"created_at,author_id,public_metrics"},
		"user.fields":  {"username,name,verified"},
		"expansions":   {"author_id"},
	}
	var resp struct {
		Data     []tweet `json:"data"`
		Includes struct {
			Users []twitterUser `json:"users"`
		} `json:"includes"`
	}
	if err := providers.GetJSON(ctx, t.client, t.Name(), t.baseURL+"/tweets/search/recent?"+params.Encode(), t.header(), &resp); err != nil {
		return nil, err
	}

	users := make(map[string]twitterUser, len(resp.Includes.Users))
	for _, u := range resp.Includes.Users {
		users[u.ID] = u
	}
	out := make([]providers.SocialPost, 0, len(resp.Data))
	for _, tw := range resp.Data {
		out = append(out, tw.post(users[tw.AuthorID]))
	}
	return truncate(out, limit), nil
}

// UserTimeline returns a user's own recent posts without retweets or replies
func (t *Twitter) UserTimeline(ctx context.Context, username string, limit int) ([]providers.SocialPost, error) {
	var user struct {
		Data twitterUser `json:"data"`
	}
	if err := providers.GetJSON(ctx, t.client, t.Name(), t.baseURL+"/users/by/username/"+url.PathEscape(username), t.header(), &user); err != nil {
		return nil, err
	}
	if user.Data.ID == "" {
		return nil, apperr.New(apperr.KindNotFound, t.Name(), fmt.Errorf("user %s not found", username))
	}
	if user.Data.Username == "" {
		user.Data.Username = username
	}

	params := url.Values{
		"max_results":  {clampResults(limit)},
		"tweet.fields": {"created_at,public_metrics"},
		"exclude":      {"retweets,replies"},
	}
	var resp struct {
		Data []tweet `json:"data"`
	}
	if err := providers.GetJSON(ctx, t.client, t.Name(), t.baseURL+"/users/"+user.Data.ID+"/tweets?"+params.Encode(), t.header(), &resp); err != nil {
		return nil, err
	}

	out := make([]providers.SocialPost, 0, len(resp.Data))
	for _, tw := range resp.Data {
		out = append(out, tw.post(user.Data))
	}
	return truncate(out, limit), nil
}

func truncate(posts []providers.SocialPost, limit int) []providers.SocialPost {
	if limit > 0 && len(posts) > limit {
		return posts[:limit]
	}
	return posts
}

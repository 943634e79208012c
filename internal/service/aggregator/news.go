package aggregator

import (
	"chat-bot/internal/providers"
	"chat-bot/internal/providers/price"
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// NewsResult is the combined answer to a news query
type NewsResult struct {
	Articles    []providers.NewsArticle
	Outcomes    []Outcome
	Quote       *providers.PriceQuote
	QuoteSource string
	Asset       *price.Asset
}

// NewsService combines article search with a price lookup for crypto queries
type NewsService struct {
	news    *Aggregator[providers.NewsArticle]
	prices  []providers.Adapter[providers.PriceQuote]
	social  *Aggregator[providers.SocialPost]
	timeout time.Duration
}

func NewNewsService(timeout time.Duration, news []providers.Adapter[providers.NewsArticle], prices []providers.Adapter[providers.PriceQuote], social []providers.Adapter[providers.SocialPost]) *NewsService {
	return &NewsService{
		news:    New(timeout, news...),
		prices:  prices,
		social:  New(timeout, social...),
		timeout: timeout,
	}
}

// SearchNews searches articles and, when the query names a known coin, fetches its
// price concurrently. A failed price lookup leaves Quote nil.
func (s *NewsService) SearchNews(ctx context.Context, query string, limit int) NewsResult {
	var res NewsResult
	asset, isCrypto := DetectAsset(query)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r := s.news.Search(gctx, query, limit)
		res.Articles, res.Outcomes = r.Records, r.Outcomes
		return nil
	})
	if isCrypto {
		res.Asset = &asset
		g.Go(func() error {
			q, source, err := First(gctx, s.timeout, asset.GeckoID, s.prices...)
			if err == nil {
				res.Quote, res.QuoteSource = &q, source
			}
			return nil
		})
	}
	_ = g.Wait()
	return res
}

// Price runs the price fallback chain for a symbol, id or name
func (s *NewsService) Price(ctx context.Context, query string) (providers.PriceQuote, string, error) {
	return First(ctx, s.timeout, query, s.prices...)
}

// Posts searches social posts
func (s *NewsService) Posts(ctx context.Context, query string, limit int) Result[providers.SocialPost] {
	return s.social.Search(ctx, query, limit)
}

// NewsConfigured reports whether any article source has credentials
func (s *NewsService) NewsConfigured() bool { return len(s.news.Active()) > 0 }

// SocialConfigured reports whether any social source has credentials
func (s *NewsService) SocialConfigured() bool { return len(s.social.Active()) > 0 }

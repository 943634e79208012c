package bot

import (
	"chat-bot/internal/apperr"
	"chat-bot/internal/platform"
	"chat-bot/internal/providers"
	"chat-bot/internal/repository/db"
	"chat-bot/internal/service/access"
	"chat-bot/internal/service/report"
	"context"
	"fmt"
	"strings"
)

const (
	newsUsage = "Please provide a search query.\n" +
		"Usage: /news query\n" +
		"Examples:\n" +
		"• /news bitcoin\n" +
		"• /news stock market\n" +
		"• /news ethereum (for crypto price + news)"
	cryptoUsage = "Please provide a cryptocurrency symbol.\n" +
		"Usage: /crypto symbol\n" +
		"Examples:\n" +
		"• /crypto bitcoin\n" +
		"• /crypto eth"
	tweetsUsage = "Please provide a search query or username.\n" +
		"Usage: /tweets @username or /tweets keyword\n" +
		"Examples:\n" +
		"• /tweets @elonmusk\n" +
		"• /tweets bitcoin"
)

// storedNews is the persisted payload of a news search
type storedNews struct {
	Articles []providers.NewsArticle `json:"articles"`
	Quote    *providers.PriceQuote   `json:"crypto_data,omitempty"`
}

func (b *Bot) cmdNews(ctx context.Context, msg platform.Message, args string) error {
	var query string
	err := b.limited(ctx, msg, db.KindNews, func() error {
		var err error
		if query, err = b.validator.ValidateQuery(args); err != nil {
			return apperr.InvalidInput(db.KindNews, newsUsage)
		}
		return nil
	})
	if err != nil {
		return err
	}

	admin := b.isAdmin(msg.UserID)
	limit := b.Policy.MaxResults(access.TierOf(admin), nil)

	p := b.begin(ctx, msg, fmt.Sprintf("📰 Searching news for: %s...", query))
	res := b.News.SearchNews(ctx, query, limit)

	if len(res.Articles) == 0 && res.Quote == nil {
		if !b.News.NewsConfigured() {
			p.finish(ctx, "❌ News search is not configured on this bot.")
		} else {
			p.finish(ctx, fmt.Sprintf("📰 No news found for: %s\n\nTry different keywords.", query))
		}
		return nil
	}

	rep := report.News{
		Query:       query,
		Articles:    res.Articles,
		Quote:       res.Quote,
		QuoteSource: res.QuoteSource,
		At:          b.now(),
	}
	export := len(res.Articles) > 0 && report.ShouldExport(len(res.Articles), admin)
	b.deliver(ctx, p, rep.Summary(b.opts.SummaryLines), export, rep, "news_"+query, "Complete news results for: "+query)

	b.saveSearch(ctx, msg.UserID, query, db.KindNews, storedNews{
		Articles: res.Articles[:min(b.opts.StoredArticlesCap, len(res.Articles))],
		Quote:    res.Quote,
	})
	return nil
}

func (b *Bot) cmdCrypto(ctx context.Context, msg platform.Message, args string) error {
	symbol := strings.TrimSpace(args)
	err := b.limited(ctx, msg, db.KindCrypto, func() error {
		if symbol == "" || strings.ContainsAny(symbol, " \t\n") {
			return apperr.InvalidInput(db.KindCrypto, cryptoUsage)
		}
		return nil
	})
	if err != nil {
		return err
	}

	p := b.begin(ctx, msg, fmt.Sprintf("💰 Getting %s price data...", strings.ToUpper(symbol)))
	quote, source, err := b.News.Price(ctx, symbol)
	if err != nil {
		if apperr.IsKind(err, apperr.KindUnconfigured) {
			p.finish(ctx, "❌ Price lookup is not configured on this bot.")
		} else {
			p.finish(ctx, fmt.Sprintf("❌ Could not find cryptocurrency: %s\n\nTry a symbol like btc or a name like bitcoin.", symbol))
		}
		return nil
	}

	p.finish(ctx, report.QuoteBlock(quote, source))
	b.saveSearch(ctx, msg.UserID, symbol, db.KindCrypto, quote)
	return nil
}

func (b *Bot) cmdTweets(ctx context.Context, msg platform.Message, args string) error {
	var query string
	err := b.limited(ctx, msg, db.KindTweets, func() error {
		var err error
		if query, err = b.validator.ValidateQuery(args); err != nil {
			return apperr.InvalidInput(db.KindTweets, tweetsUsage)
		}
		if !b.News.SocialConfigured() {
			return apperr.InvalidInput(db.KindTweets, "Twitter search is not configured on this bot.")
		}
		return nil
	})
	if err != nil {
		return err
	}

	p := b.begin(ctx, msg, fmt.Sprintf("🐦 Searching tweets for: %s...", query))
	res := b.News.Posts(ctx, query, b.opts.TweetsLimit)

	rep := report.Posts{Query: query, Posts: res.Records, At: b.now()}
	export := len(res.Records) > 0 && report.ShouldExport(len(res.Records), b.isAdmin(msg.UserID))
	b.deliver(ctx, p, rep.Summary(), export, rep, "tweets", "Tweets for: "+query)

	b.saveSearch(ctx, msg.UserID, query, db.KindTweets, res.Records)
	return nil
}

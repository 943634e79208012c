package aggregator

import (
	"chat-bot/internal/apperr"
	"chat-bot/internal/providers"
	"chat-bot/internal/testutil"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func article(url, published string) providers.NewsArticle {
	return providers.NewsArticle{Title: "t " + url, URL: url, PublishedAt: published}
}

func returning(name string, articles ...providers.NewsArticle) *testutil.MockAdapter[providers.NewsArticle] {
	return &testutil.MockAdapter[providers.NewsArticle]{
		ProviderName: name,
		FetchFunc: func(ctx context.Context, query string, limit int) ([]providers.NewsArticle, error) {
			return articles, nil
		},
	}
}

func TestSearch_PartialFailureMergesSuccessfulProviders(t *testing.T) {
	defer goleak.VerifyNone(t)

	a := returning("a", article("https://x/1", "2025-01-01T10:00:00Z"), article("https://x/2", "2025-01-01T08:00:00Z"))
	b := returning("b", article("https://x/3", "2025-01-01T09:00:00Z"))
	c := returning("c", article("https://x/4", "2025-01-01T11:00:00Z"))
	failing := &testutil.MockAdapter[providers.NewsArticle]{
		ProviderName: "failing",
		FetchFunc: func(ctx context.Context, query string, limit int) ([]providers.NewsArticle, error) {
			return nil, errors.New("boom")
		},
	}
	hanging := &testutil.MockAdapter[providers.NewsArticle]{
		ProviderName: "hanging",
		FetchFunc: func(ctx context.Context, query string, limit int) ([]providers.NewsArticle, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	for _, broken := range []*testutil.MockAdapter[providers.NewsArticle]{failing, hanging} {
		t.Run(broken.ProviderName, func(t *testing.T) {
			agg := New[providers.NewsArticle](50*time.Millisecond, a, broken, b, c)
			res := agg.Search(context.Background(), "q", 10)

			want := Merge(
				[]providers.NewsArticle{article("https://x/1", "2025-01-01T10:00:00Z"), article("https://x/2", "2025-01-01T08:00:00Z")},
				[]providers.NewsArticle{article("https://x/3", "2025-01-01T09:00:00Z")},
				[]providers.NewsArticle{article("https://x/4", "2025-01-01T11:00:00Z")},
			)
			if diff := cmp.Diff(want, res.Records); diff != "" {
				t.Errorf("Search() mismatch (-want +got):\n%s", diff)
			}
			require.Len(t, res.Outcomes, 4)
			assert.Error(t, res.Outcomes[1].Err)
			assert.Zero(t, res.Outcomes[1].Count)
		})
	}
}

func TestMerge_DeduplicatesKeepingFirstSeen(t *testing.T) {
	first := providers.NewsArticle{Title: "from A", URL: "https://same", Source: "A", PublishedAt: "2025-01-01T00:00:00Z"}
	second := providers.NewsArticle{Title: "from B", URL: "https://same", Source: "B", PublishedAt: "2025-02-01T00:00:00Z"}

	got := Merge([]providers.NewsArticle{first}, []providers.NewsArticle{second})
	require.Len(t, got, 1)
	assert.Equal(t, first, got[0])
}

func TestMerge_DropsEmptyKeys(t *testing.T) {
	got := Merge([]providers.NewsArticle{{Title: "no url"}, article("https://x", "")})
	require.Len(t, got, 1)
	assert.Equal(t, "https://x", got[0].URL)
}

func TestSortNewestFirst(t *testing.T) {
	records := []providers.NewsArticle{
		article("u1", "garbage-b"),
		article("u2", "2025-01-01T00:00:00Z"),
		article("u3", ""),
		article("u4", "Tue, 02 Jan 2025 00:00:00 +0000"),
		article("u5", "garbage-c"),
	}
	SortNewestFirst(records)

	var order []string
	for _, r := range records {
		order = append(order, r.URL)
	}
	assert.Equal(t, []string{"u4", "u2", "u5", "u1", "u3"}, order)
}

func TestSearch_ShareAndTruncate(t *testing.T) {
	defer goleak.VerifyNone(t)

	var limits []int
	mk := func(name string, n int) *testutil.MockAdapter[providers.NewsArticle] {
		return &testutil.MockAdapter[providers.NewsArticle]{
			ProviderName: name,
			FetchFunc: func(ctx context.Context, query string, limit int) ([]providers.NewsArticle, error) {
				var out []providers.NewsArticle
				for i := 0; i < n; i++ {
					out = append(out, article(name+string(rune('a'+i)), "2025-01-01T00:00:0"+string(rune('0'+i))+"Z"))
				}
				return out, nil
			},
		}
	}
	a, b, c := mk("a", 4), mk("b", 4), mk("c", 4)
	unconfigured := &testutil.MockAdapter[providers.NewsArticle]{ProviderName: "off", Disabled: true}

	res := New[providers.NewsArticle](time.Second, a, unconfigured, b, c).Search(context.Background(), "q", 10)
	assert.Len(t, res.Records, 10)
	assert.Zero(t, unconfigured.Calls())
	for _, m := range []*testutil.MockAdapter[providers.NewsArticle]{a, b, c} {
		limits = append(limits, m.LastLimit())
	}
	assert.Equal(t, []int{4, 4, 4}, limits)
}

func TestSearch_NoConfiguredAdapters(t *testing.T) {
	res := New[providers.NewsArticle](time.Second, &testutil.MockAdapter[providers.NewsArticle]{Disabled: true}).Search(context.Background(), "q", 5)
	assert.Empty(t, res.Records)
}

func quoteAdapter(name string, q *providers.PriceQuote, err error) *testutil.MockAdapter[providers.PriceQuote] {
	return &testutil.MockAdapter[providers.PriceQuote]{
		ProviderName: name,
		FetchFunc: func(ctx context.Context, query string, limit int) ([]providers.PriceQuote, error) {
			if err != nil {
				return nil, err
			}
			return []providers.PriceQuote{*q}, nil
		},
	}
}

func TestFirst_FallsBackInOrder(t *testing.T) {
	primary := quoteAdapter("cmc", nil, errors.New("down"))
	secondary := quoteAdapter("gecko", &providers.PriceQuote{Symbol: "BTC", Price: 1}, nil)

	q, source, err := First[providers.PriceQuote](context.Background(), time.Second, "bitcoin", primary, secondary)
	require.NoError(t, err)
	assert.Equal(t, "gecko", source)
	assert.Equal(t, "BTC", q.Symbol)
	assert.Equal(t, 1, primary.Calls())
}

func TestFirst_SkipsUnconfigured(t *testing.T) {
	off := &testutil.MockAdapter[providers.PriceQuote]{ProviderName: "cmc", Disabled: true}
	on := quoteAdapter("gecko", &providers.PriceQuote{Symbol: "ETH"}, nil)

	_, source, err := First[providers.PriceQuote](context.Background(), time.Second, "eth", off, on)
	require.NoError(t, err)
	assert.Equal(t, "gecko", source)
	assert.Zero(t, off.Calls())
}

func TestFirst_AllFail(t *testing.T) {
	_, _, err := First[providers.PriceQuote](context.Background(), time.Second, "x",
		quoteAdapter("a", nil, errors.New("a down")), quoteAdapter("b", nil, errors.New("b down")))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, _, err = First[providers.PriceQuote](context.Background(), time.Second, "x")
	assert.Equal(t, apperr.KindUnconfigured, apperr.KindOf(err))
}

func TestDetectAsset(t *testing.T) {
	tests := []struct {
		query  string
		want   string
		wantOK bool
	}{
		{query: "bitcoin price", want: "bitcoin", wantOK: true},
		{query: "ETH vs BTC", want: "bitcoin", wantOK: true},
		{query: "Solana outage", want: "solana", wantOK: true},
		{query: "new solution for sol", want: "solana", wantOK: true},
		{query: "matic rebrand", want: "polygon", wantOK: true},
		{query: "bitcoins", want: "bitcoin", wantOK: true},
		{query: "BTCUSD outlook", want: "bitcoin", wantOK: true},
		{query: "ETHUSDT funding", want: "ethereum", wantOK: true},
		{query: "dogecoins everywhere", want: "dogecoin", wantOK: true},
		{query: "solutions", wantOK: false},
		{query: "weather today", wantOK: false},
		{query: "methodology", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			asset, ok := DetectAsset(tt.query)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, asset.GeckoID)
			}
		})
	}
}

func TestNewsService_SearchNewsWithPrice(t *testing.T) {
	defer goleak.VerifyNone(t)

	news := returning("newsapi", article("https://n/1", "2025-01-01T00:00:00Z"))
	var priceQuery string
	prices := &testutil.MockAdapter[providers.PriceQuote]{
		ProviderName: "gecko",
		FetchFunc: func(ctx context.Context, query string, limit int) ([]providers.PriceQuote, error) {
			priceQuery = query
			return []providers.PriceQuote{{Symbol: "BTC", Price: 50000}}, nil
		},
	}
	svc := NewNewsService(time.Second,
		[]providers.Adapter[providers.NewsArticle]{news},
		[]providers.Adapter[providers.PriceQuote]{prices}, nil)

	res := svc.SearchNews(context.Background(), "bitcoin", 10)
	require.Len(t, res.Articles, 1)
	require.NotNil(t, res.Quote)
	assert.Equal(t, 50000.0, res.Quote.Price)
	assert.Equal(t, "bitcoin", priceQuery)

	res = svc.SearchNews(context.Background(), "elections", 10)
	assert.Nil(t, res.Quote)
	assert.Equal(t, 1, prices.Calls())
}

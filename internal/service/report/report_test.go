package report

import (
	"chat-bot/internal/providers"
	"chat-bot/internal/service/scanner"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2025, 5, 4, 10, 30, 0, 0, time.UTC)

func matches(n int) []scanner.Match {
	out := make([]scanner.Match, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, scanner.Match{
			RoomID:    -1001,
			RoomTitle: "Dev",
			MessageID: int64(n - i),
			Username:  fmt.Sprintf("user%d", i),
			Text:      strings.Repeat("x", 600),
			Date:      at.Add(-time.Duration(i) * time.Minute),
			Term:      "foo",
			Link:      fmt.Sprintf("https://t.me/c/1/%d", n-i),
		})
	}
	return out
}

func TestShouldExport(t *testing.T) {
	tests := []struct {
		count int
		admin bool
		want  bool
	}{
		{count: 10, admin: false, want: false},
		{count: 11, admin: false, want: true},
		{count: 0, admin: true, want: true},
		{count: 3, admin: true, want: true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ShouldExport(tt.count, tt.admin), "count=%d admin=%v", tt.count, tt.admin)
	}
}

func TestSearchSummary_ShowsTopLines(t *testing.T) {
	s := Search{Scope: "current chat", Terms: []string{"foo", "bar"}, Matches: matches(200), TotalFound: 250, At: at}
	out := s.Summary(SummaryLines)

	assert.Contains(t, out, "Terms: foo, bar")
	assert.Contains(t, out, "Found: 250 messages")
	assert.Contains(t, out, "Showing: 10 of 200 results")
	assert.Contains(t, out, "10. @user9")
	assert.NotContains(t, out, "11. ")
	assert.Contains(t, out, strings.Repeat("x", 100)+"...")
	assert.NotContains(t, out, strings.Repeat("x", 101))
}

func TestSearchSummary_Empty(t *testing.T) {
	out := Search{Terms: []string{"zzz"}, RoomsSearched: 4}.Summary(SummaryLines)
	assert.Contains(t, out, "Global Search Results")
	assert.Contains(t, out, "No messages found.")
	assert.Contains(t, out, "Searched 4 chats")
}

func TestSearchDocument(t *testing.T) {
	s := Search{
		Scope:         "all chats",
		Terms:         []string{"foo"},
		Username:      "alice",
		Matches:       matches(2),
		TotalFound:    2,
		RoomsSearched: 3,
		Rooms:         []scanner.RoomSummary{{RoomID: -1001, Title: "Dev", Count: 2}},
		At:            at,
	}
	doc := s.Document()
	assert.Contains(t, doc, "Searched for user: @alice")
	assert.Contains(t, doc, "Search completed: 2025-05-04 10:30:00")
	assert.Contains(t, doc, "Chats searched: 3")
	assert.Contains(t, doc, "Dev: 2 results")
	assert.Contains(t, doc, "Link: https://t.me/c/1/2")
	assert.Contains(t, doc, "User: Unknown (@user0)")
	assert.Contains(t, doc, strings.Repeat("x", 500)+"...")
	assert.NotContains(t, doc, strings.Repeat("x", 501))
}

func TestNewsSummaryWithQuote(t *testing.T) {
	n := News{
		Query: "bitcoin",
		Articles: []providers.NewsArticle{
			{Title: "BTC rallies", URL: "https://n/1"},
			{URL: "https://n/2"},
		},
		Quote:       &providers.PriceQuote{Symbol: "BTC", Name: "Bitcoin", Price: 64123.456, PercentChange24h: -1.5, MarketCap: 1.26e12},
		QuoteSource: "coingecko",
		At:          at,
	}
	out := n.Summary(SummaryLines)
	assert.Contains(t, out, "💰 Bitcoin (BTC)")
	assert.Contains(t, out, "Price: $64,123.46")
	assert.Contains(t, out, "📉 -1.50%")
	assert.Contains(t, out, "Market Cap: $1.3T")
	assert.Contains(t, out, "1. BTC rallies")
	assert.Contains(t, out, "2. No title")

	doc := n.Document()
	assert.Contains(t, doc, "Total Articles: 2")
	assert.Contains(t, doc, "Source: coingecko")
	assert.Contains(t, doc, "Description: No description")
}

func TestPostsRendering(t *testing.T) {
	p := Posts{
		Query: "@golang",
		Posts: []providers.SocialPost{{ID: "1", Text: "Go 1.25 is out", AuthorUsername: "golang", AuthorVerified: true, Metrics: providers.PostMetrics{LikeCount: 5}, URL: "https://twitter.com/golang/status/1"}},
		At:    at,
	}
	assert.Contains(t, p.Summary(), "User Tweets: @golang")
	assert.Contains(t, p.Summary(), "❤️ 5 | 🔄 0")
	assert.Contains(t, p.Document(), "Author: @golang ✓")
	assert.Contains(t, Posts{Query: "go"}.Summary(), "No tweets found")
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "1,234,567.89", Money(1234567.891))
	assert.Equal(t, "999.00", Money(999))
	assert.Equal(t, "0.123457", Money(0.1234567))
	assert.Equal(t, "0.00", Money(0))
	assert.Equal(t, "12.3M", Compact(12.3e6))
}

func TestSplit(t *testing.T) {
	assert.Equal(t, []string{"short"}, Split("short", 4000))

	text := strings.Repeat("a", 30) + "\n" + strings.Repeat("b", 30) + "\n" + strings.Repeat("c", 30)
	chunks := Split(text, 64)
	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("a", 30)+"\n"+strings.Repeat("b", 30), chunks[0])
	assert.Equal(t, strings.Repeat("c", 30), chunks[1])

	// blank line opening the second chunk survives
	spaced := strings.Repeat("a", 30) + "\n" + strings.Repeat("c", 9) + "\n\nbbbbb"
	chunks = Split(spaced, 40)
	require.Len(t, chunks, 2)
	assert.Equal(t, "\nbbbbb", chunks[1])
	assert.Equal(t, spaced, strings.Join(chunks, "\n"))

	paragraphs := strings.Repeat("x", 20) + "\n\n\n" + strings.Repeat("y", 20)
	chunks = Split(paragraphs, 21)
	require.Len(t, chunks, 2)
	assert.Equal(t, "\n"+strings.Repeat("y", 20), chunks[1])
	assert.Equal(t, paragraphs, strings.Join(chunks, "\n"))
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 21)
	}

	long := strings.Repeat("é", 50)
	for _, c := range Split(long, 33) {
		assert.LessOrEqual(t, len(c), 33)
		assert.True(t, strings.ToValidUTF8(c, "?") == c)
	}
	assert.Equal(t, long, strings.Join(Split(long, 33), ""))
}

func TestWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "downloads")
	w := NewWriter(dir)

	path, err := w.Write("search -1001/foo", "content")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "search_-1001_foo_"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))

	w.Remove(path)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	w.Remove(path)
}

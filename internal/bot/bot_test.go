package bot

import (
	"chat-bot/internal/platform"
	"chat-bot/internal/providers"
	"chat-bot/internal/repository/db"
	"chat-bot/internal/repository/memory"
	"chat-bot/internal/service/access"
	"chat-bot/internal/service/aggregator"
	"chat-bot/internal/service/casual"
	"chat-bot/internal/service/llm"
	"chat-bot/internal/service/report"
	"chat-bot/internal/service/scanner"
	"chat-bot/internal/testutil"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	admin     = int64(1)
	alice     = int64(2)
	botUserID = int64(99)
	group     = int64(-1001234567890)
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

type fixedRand struct{ f float64 }

func (r fixedRand) Float64() float64 { return r.f }
func (r fixedRand) IntN(int) int     { return 0 }

type harness struct {
	bot      *Bot
	store    *memory.Store
	msgr     *testutil.MockMessenger
	articles *testutil.MockAdapter[providers.NewsArticle]
	prices   *testutil.MockAdapter[providers.PriceQuote]
	posts    *testutil.MockAdapter[providers.SocialPost]
	gen      *testutil.MockGenerator
	nextID   int64
}

func articles(n int) []providers.NewsArticle {
	out := make([]providers.NewsArticle, n)
	for i := range out {
		out[i] = providers.NewsArticle{
			Title:       fmt.Sprintf("Bitcoin story %d", i+1),
			URL:         fmt.Sprintf("https://news.example/%d", i+1),
			Source:      "Example",
			PublishedAt: now.Add(-time.Duration(i) * time.Hour).Format(time.RFC3339),
		}
	}
	return out
}

func newHarness(t *testing.T, maxReply int) *harness {
	t.Helper()
	cfg := testutil.NewMockConfig()
	store := memory.NewStore().WithClock(clock)

	h := &harness{
		store: store,
		msgr:  &testutil.MockMessenger{},
		articles: &testutil.MockAdapter[providers.NewsArticle]{
			ProviderName: "newsapi",
			FetchFunc: func(ctx context.Context, query string, limit int) ([]providers.NewsArticle, error) {
				return articles(12), nil
			},
		},
		prices: &testutil.MockAdapter[providers.PriceQuote]{
			ProviderName: "coingecko",
			FetchFunc: func(ctx context.Context, query string, limit int) ([]providers.PriceQuote, error) {
				return []providers.PriceQuote{{Symbol: "BTC", Name: "Bitcoin", Price: 65000, PercentChange24h: 1.5}}, nil
			},
		},
		posts: &testutil.MockAdapter[providers.SocialPost]{ProviderName: "twitter", Disabled: true},
		gen: &testutil.MockGenerator{
			CompleteFunc: func(ctx context.Context, preferred, prompt string, maxTokens int) (string, string, error) {
				return "hey there", "qwen", nil
			},
		},
	}

	history := platform.NewStoreHistory(store)
	news := aggregator.NewNewsService(time.Second,
		[]providers.Adapter[providers.NewsArticle]{h.articles},
		[]providers.Adapter[providers.PriceQuote]{h.prices},
		[]providers.Adapter[providers.SocialPost]{h.posts})
	machine := casual.NewMachine(cfg.Casual, h.gen, store, casual.Options{HistoryDays: 20, DefaultBackend: "qwen"}).
		WithRandom(fixedRand{f: 1}).
		WithClock(clock)
	registry := llm.NewRegistry(time.Second, nil,
		&testutil.MockBackend{BackendName: "qwen"},
		&testutil.MockBackend{BackendName: "gpt", Disabled: true})

	opts := OptionsFromConfig(cfg)
	opts.BotUserID = botUserID
	if maxReply > 0 {
		opts.MaxReplySize = maxReply
	}
	h.bot = New(Deps{
		Messenger: h.msgr,
		History:   history,
		Store:     store,
		Limiter:   access.NewLimiter(store, cfg.Bot.AdminIDs, 3, 24*time.Hour).WithClock(clock),
		Policy:    access.DefaultResultPolicy,
		News:      news,
		Scanner:   scanner.NewScanner(history, cfg.Scan),
		Casual:    machine,
		Backends:  registry,
		Reports:   report.NewWriter(t.TempDir()),
	}, opts).WithClock(clock)
	return h
}

func (h *harness) message(userID int64, chatType, text string) platform.Message {
	h.nextID++
	chatID := group
	title := "Dev Chat"
	if chatType == platform.ChatPrivate {
		chatID, title = userID, ""
	}
	return platform.Message{
		ID:        h.nextID,
		ChatID:    chatID,
		ChatTitle: title,
		ChatType:  chatType,
		UserID:    userID,
		Username:  fmt.Sprintf("user%d", userID),
		FirstName: "User",
		Text:      text,
		Date:      now,
	}
}

func (h *harness) send(userID int64, chatType, text string) platform.Message {
	msg := h.message(userID, chatType, text)
	h.bot.Handle(context.Background(), msg)
	return msg
}

func (h *harness) rateCount(t *testing.T, userID int64, command string) int {
	t.Helper()
	n, err := h.store.CountRateSince(context.Background(), userID, command, time.Time{})
	require.NoError(t, err)
	return n
}

func TestNews_UserGetsQuoteAndTenArticles(t *testing.T) {
	h := newHarness(t, 0)

	h.send(alice, platform.ChatPrivate, "/news bitcoin")

	visible := h.msgr.Visible()
	require.Len(t, visible, 1)
	summary := visible[0]
	assert.Contains(t, summary, "💰 Bitcoin (BTC)")
	assert.Contains(t, summary, "10. Bitcoin story 10")
	assert.NotContains(t, summary, "11. ")
	assert.Empty(t, h.msgr.Documents())
	assert.Equal(t, 10, h.articles.LastLimit())
	assert.Equal(t, 1, h.rateCount(t, alice, db.KindNews))

	saved, err := h.store.RecentSearchResults(context.Background(), alice, db.KindNews, 5)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	var payload storedNews
	require.NoError(t, json.Unmarshal([]byte(saved[0].Payload), &payload))
	assert.Len(t, payload.Articles, 10)
	require.NotNil(t, payload.Quote)
	assert.Equal(t, "BTC", payload.Quote.Symbol)
}

func TestNews_AdminExportsFullReport(t *testing.T) {
	h := newHarness(t, 0)

	h.send(admin, platform.ChatPrivate, "/news bitcoin")

	docs := h.msgr.Documents()
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].Content, "NEWS SEARCH RESULTS")
	assert.Contains(t, docs[0].Content, "Total Articles: 12")
	assert.Contains(t, h.msgr.Last(), "📎 Full results attached as file")
	assert.Equal(t, 0, h.rateCount(t, admin, db.KindNews))

	_, err := os.Stat(docs[0].Path)
	assert.True(t, os.IsNotExist(err))
}

func TestNews_FourthRequestIsRateLimited(t *testing.T) {
	h := newHarness(t, 0)

	for i := 0; i < 3; i++ {
		h.send(alice, platform.ChatPrivate, "/news bitcoin")
	}
	calls := h.articles.Calls()

	h.send(alice, platform.ChatPrivate, "/news bitcoin")

	assert.Equal(t, calls, h.articles.Calls())
	assert.Equal(t, 3, h.rateCount(t, alice, db.KindNews))
	assert.Contains(t, h.msgr.Last(), "daily limit")
}

func TestNews_MissingQueryDoesNotConsumeQuota(t *testing.T) {
	h := newHarness(t, 0)

	h.send(alice, platform.ChatPrivate, "/news")

	assert.Contains(t, h.msgr.Last(), "Usage: /news query")
	assert.Equal(t, 0, h.rateCount(t, alice, db.KindNews))
	assert.Zero(t, h.articles.Calls())
}

func TestNews_RateStoreDownAnswersGenerically(t *testing.T) {
	h := newHarness(t, 0)
	appended := 0
	h.bot.Limiter = access.NewLimiter(&testutil.MockRateStore{
		CountRateSinceFunc: func(ctx context.Context, userID int64, command string, since time.Time) (int, error) {
			return 0, errors.New("connection refused")
		},
		AppendRateFunc: func(ctx context.Context, rec db.RateRecord) error {
			appended++
			return nil
		},
	}, []int64{admin}, 3, 24*time.Hour).WithClock(clock)

	h.send(alice, platform.ChatPrivate, "/news bitcoin")

	assert.Contains(t, h.msgr.Last(), "can't reach my database")
	assert.NotContains(t, h.msgr.Last(), "connection refused")
	assert.Zero(t, h.articles.Calls())
	assert.Zero(t, h.prices.Calls())
	assert.Zero(t, appended)
	assert.Equal(t, 0, h.rateCount(t, alice, db.KindNews))

	saved, err := h.store.RecentSearchResults(context.Background(), alice, db.KindNews, 5)
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestCrypto(t *testing.T) {
	h := newHarness(t, 0)

	h.send(alice, platform.ChatPrivate, "/crypto btc")
	assert.Contains(t, h.msgr.Last(), "Price: $65,000.00")
	assert.Equal(t, 1, h.rateCount(t, alice, db.KindCrypto))

	h.prices.FetchFunc = func(ctx context.Context, query string, limit int) ([]providers.PriceQuote, error) {
		return nil, errors.New("not listed")
	}
	h.send(alice, platform.ChatPrivate, "/crypto nocoin")
	assert.Contains(t, h.msgr.Last(), "Could not find cryptocurrency: nocoin")
}

func TestTweets_Unconfigured(t *testing.T) {
	h := newHarness(t, 0)

	h.send(alice, platform.ChatPrivate, "/tweets bitcoin")

	assert.Contains(t, h.msgr.Last(), "Twitter search is not configured")
	assert.Equal(t, 0, h.rateCount(t, alice, db.KindTweets))
	assert.Zero(t, h.posts.Calls())
}

func TestSearch_ExportsClampedReport(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	for i := 1; i <= 250; i++ {
		require.NoError(t, h.store.AppendChatMessage(ctx, db.ChatMessage{
			ChatID:    group,
			ChatTitle: "Dev Chat",
			ChatType:  platform.ChatSupergroup,
			MessageID: int64(i),
			UserID:    7,
			Username:  "ann",
			Text:      fmt.Sprintf("foo message %d", i),
			CreatedAt: now.Add(-time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, h.store.AppendChatMessage(ctx, db.ChatMessage{
		ChatID: group, ChatType: platform.ChatSupergroup, MessageID: 999, UserID: 7, Text: "unrelated", CreatedAt: now,
	}))

	h.send(alice, platform.ChatSupergroup, "/search foo,bar 500")

	summary := h.msgr.Last()
	assert.Contains(t, summary, "Found: 250 messages")
	assert.Contains(t, summary, "Showing: 10 of 200 results")
	assert.Contains(t, summary, "foo message 1\n")
	assert.NotContains(t, summary, "foo message 11")

	docs := h.msgr.Documents()
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].Content, "Total results found: 250")
	assert.Contains(t, docs[0].Content, "Results listed: 200")
	assert.Contains(t, docs[0].Content, "https://t.me/c/1234567890/1")
	_, err := os.Stat(docs[0].Path)
	assert.True(t, os.IsNotExist(err))

	saved, err := h.store.RecentSearchResults(ctx, alice, db.KindSearch, 1)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "foo bar", saved[0].Query)
	var matches []scanner.Match
	require.NoError(t, json.Unmarshal([]byte(saved[0].Payload), &matches))
	assert.Len(t, matches, 50)
	assert.Equal(t, 1, h.rateCount(t, alice, db.KindSearch))
}

func TestSearch_NoMatches(t *testing.T) {
	h := newHarness(t, 0)

	h.send(alice, platform.ChatSupergroup, "/search nothing")

	assert.Contains(t, h.msgr.Last(), "No messages found.")
	assert.Empty(t, h.msgr.Documents())
}

func TestUserSearch_InvalidFormat(t *testing.T) {
	h := newHarness(t, 0)

	h.send(alice, platform.ChatPrivate, "/usaid john bitcoin")

	assert.Contains(t, h.msgr.Last(), "Usage: /usaid @username")
	assert.Equal(t, 0, h.rateCount(t, alice, db.KindUserScan))
}

func TestUserSearch_AcrossRooms(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	for i, chat := range []int64{group, -1009} {
		require.NoError(t, h.store.AppendChatMessage(ctx, db.ChatMessage{
			ChatID: chat, ChatTitle: fmt.Sprintf("Room %d", i), ChatType: platform.ChatSupergroup,
			MessageID: int64(i + 1), UserID: 7, Username: "ann", Text: "bitcoin is up", CreatedAt: now,
		}))
	}
	require.NoError(t, h.store.AppendChatMessage(ctx, db.ChatMessage{
		ChatID: group, ChatType: platform.ChatSupergroup, MessageID: 50, UserID: 8, Username: "bob", Text: "bitcoin too", CreatedAt: now,
	}))

	h.send(admin, platform.ChatPrivate, "/usaid @ann bitcoin")

	summary := h.msgr.Last()
	assert.Contains(t, summary, "User: @ann")
	assert.Contains(t, summary, "Found: 2 messages")
	assert.NotContains(t, summary, "@bob")
}

func TestCasual_PermissionDenied(t *testing.T) {
	h := newHarness(t, 0)

	h.send(alice, platform.ChatSupergroup, "/casual")

	assert.Contains(t, h.msgr.Last(), "Only group administrators")
	_, known := h.bot.Casual.Status(group)
	assert.False(t, known)
}

func TestCasual_ChatMemberLookupFailureDenies(t *testing.T) {
	h := newHarness(t, 0)
	h.msgr.ChatMemberFunc = func(ctx context.Context, chatID, userID int64) (platform.MemberRole, error) {
		return "", errors.New("bad request")
	}

	h.send(alice, platform.ChatSupergroup, "/casual")

	assert.Contains(t, h.msgr.Last(), "Only group administrators")
}

func TestCasual_ToggleAndReply(t *testing.T) {
	h := newHarness(t, 0)
	h.msgr.ChatMemberFunc = func(ctx context.Context, chatID, userID int64) (platform.MemberRole, error) {
		return platform.RoleAdministrator, nil
	}

	h.send(alice, platform.ChatSupergroup, "/casual")
	assert.Contains(t, h.msgr.Last(), "Casual mode enabled")
	assert.Contains(t, h.msgr.Last(), "casual and friendly")
	st, _ := h.bot.Casual.Status(group)
	require.True(t, st.Enabled)

	// Chance misses and no mention: stored, no reply.
	sent := len(h.msgr.Messages())
	h.send(alice, platform.ChatSupergroup, "just chatting")
	assert.Len(t, h.msgr.Messages(), sent)

	msg := h.send(alice, platform.ChatSupergroup, "what do you think helper_bot?")
	messages := h.msgr.Messages()
	require.Len(t, messages, sent+1)
	assert.Equal(t, "hey there", messages[sent].Text)
	assert.Equal(t, msg.ID, messages[sent].ReplyTo)

	stored, err := h.store.ChatMessagesSince(context.Background(), group, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	var own int
	for _, r := range stored {
		if r.UserID == botUserID {
			own++
			assert.Equal(t, "hey there", r.Text)
		}
	}
	assert.Equal(t, 1, own)

	h.send(alice, platform.ChatSupergroup, "/casual")
	assert.Contains(t, h.msgr.Last(), "Casual mode disabled")

	h.bot.Casual.WithRandom(fixedRand{f: 0})
	sent = len(h.msgr.Messages())
	calls := h.gen.Calls()
	for i := 0; i < 5; i++ {
		h.send(alice, platform.ChatSupergroup, "anyone around?")
	}
	assert.Len(t, h.msgr.Messages(), sent)
	assert.Equal(t, calls, h.gen.Calls())
}

func TestCasual_DisabledChatNeverReplies(t *testing.T) {
	h := newHarness(t, 0)
	h.bot.Casual.WithRandom(fixedRand{f: 0})

	for i := 0; i < 5; i++ {
		h.send(alice, platform.ChatSupergroup, "hello helper_bot")
	}

	assert.Empty(t, h.msgr.Messages())
	assert.Zero(t, h.gen.Calls())
	stored, err := h.store.ChatMessagesSince(context.Background(), group, time.Time{}, 0)
	require.NoError(t, err)
	assert.Len(t, stored, 5)
}

func TestCasual_StatusAndReset(t *testing.T) {
	h := newHarness(t, 0)

	h.send(alice, platform.ChatSupergroup, "/casual_status")
	assert.Contains(t, h.msgr.Last(), "currently disabled")

	h.send(admin, platform.ChatSupergroup, "/casual")
	h.send(alice, platform.ChatSupergroup, "one")
	h.send(alice, platform.ChatSupergroup, "/casual_status")
	assert.Contains(t, h.msgr.Last(), "Your interactions: 1/20")

	h.send(alice, platform.ChatSupergroup, "/casual_reset")
	assert.Contains(t, h.msgr.Last(), "Only administrators")

	h.send(admin, platform.ChatSupergroup, "/casual_reset")
	assert.Contains(t, h.msgr.Last(), "interactions reset")
	st, _ := h.bot.Casual.Status(group)
	assert.Empty(t, st.Interactions)
}

func TestPrivateChatHint(t *testing.T) {
	h := newHarness(t, 0)

	h.send(alice, platform.ChatPrivate, "hi")
	assert.Contains(t, h.msgr.Last(), "Use /start")

	h.send(alice, platform.ChatPrivate, "/frobnicate")
	assert.Contains(t, h.msgr.Last(), "Unknown command")

	sent := len(h.msgr.Messages())
	h.send(alice, platform.ChatSupergroup, "/frobnicate")
	assert.Len(t, h.msgr.Messages(), sent)
}

func TestLLM(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	h.send(alice, platform.ChatPrivate, "/llm list")
	assert.Contains(t, h.msgr.Last(), "✅ qwen (current)")
	assert.Contains(t, h.msgr.Last(), "⚪ gpt")

	h.send(alice, platform.ChatPrivate, "/llm set gpt")
	assert.Equal(t, adminOnly, h.msgr.Last())

	h.send(admin, platform.ChatPrivate, "/llm set nope")
	assert.Contains(t, h.msgr.Last(), `Unknown model "nope"`)

	h.send(admin, platform.ChatPrivate, "/llm set GPT")
	assert.Contains(t, h.msgr.Last(), "AI model set to gpt")
	assert.Contains(t, h.msgr.Last(), "no credentials configured")
	u, err := h.store.GetUser(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, "gpt", u.PreferredBackend)

	h.send(admin, platform.ChatPrivate, "/llm")
	assert.Contains(t, h.msgr.Last(), "⚪ gpt (current)")
}

func TestCommandsRegisterUsers(t *testing.T) {
	h := newHarness(t, 0)

	h.send(alice, platform.ChatPrivate, "/ping")

	assert.Contains(t, h.msgr.Last(), "Pong")
	u, err := h.store.GetUser(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, "user2", u.Username)
	assert.Equal(t, db.DefaultBackend, u.PreferredBackend)
}

func TestAdminCommands(t *testing.T) {
	h := newHarness(t, 0)

	h.send(alice, platform.ChatPrivate, "/dialogs")
	assert.Equal(t, adminOnly, h.msgr.Last())
	h.send(alice, platform.ChatPrivate, "/stats")
	assert.Equal(t, adminOnly, h.msgr.Last())

	h.send(alice, platform.ChatSupergroup, "hello")
	h.send(admin, platform.ChatPrivate, "/dialogs")
	assert.Contains(t, h.msgr.Last(), "Accessible Chats (1 total)")
	assert.Contains(t, h.msgr.Last(), "• Dev Chat")

	h.send(admin, platform.ChatPrivate, "/stats")
	stats := h.msgr.Last()
	assert.Contains(t, stats, "Users: 2 total")
	assert.Contains(t, stats, "✅ News search")
	assert.Contains(t, stats, "⚪ Twitter search")
	assert.Contains(t, stats, "✅ AI chat (qwen)")
}

func TestLongRepliesAreSplit(t *testing.T) {
	h := newHarness(t, 200)

	msg := h.send(alice, platform.ChatPrivate, "/help")

	messages := h.msgr.Messages()
	require.Greater(t, len(messages), 1)
	assert.Equal(t, msg.ID, messages[0].ReplyTo)
	var joined strings.Builder
	for i, m := range messages {
		assert.LessOrEqual(t, len(m.Text), 200)
		if i > 0 {
			assert.Zero(t, m.ReplyTo)
		}
		joined.WriteString(m.Text)
	}
	assert.Contains(t, joined.String(), "Command Help")
	assert.Contains(t, joined.String(), "3 uses of each info command per day")
}

func TestJanitor_Purge(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore().WithClock(clock)
	require.NoError(t, store.AppendRate(ctx, db.RateRecord{UserID: alice, Command: db.KindNews, CreatedAt: now.Add(-25 * time.Hour)}))
	require.NoError(t, store.AppendRate(ctx, db.RateRecord{UserID: alice, Command: db.KindNews, CreatedAt: now.Add(-time.Hour)}))
	require.NoError(t, store.AppendChatMessage(ctx, db.ChatMessage{ChatID: group, MessageID: 1, Text: "old", CreatedAt: now.AddDate(0, 0, -31)}))
	require.NoError(t, store.AppendChatMessage(ctx, db.ChatMessage{ChatID: group, MessageID: 2, Text: "new", CreatedAt: now.Add(-time.Hour)}))

	limiter := access.NewLimiter(store, []int64{admin}, 3, 24*time.Hour).WithClock(clock)
	j := NewJanitor(limiter, store, 30).WithClock(clock)

	rates, messages, err := j.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rates)
	assert.Equal(t, int64(1), messages)

	left, err := store.ChatMessagesSince(ctx, group, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "new", left[0].Text)
}

func TestJanitor_PurgeError(t *testing.T) {
	mock := &testutil.MockDatabase{
		DeleteRateBeforeFunc: func(ctx context.Context, before time.Time) (int64, error) {
			return 0, errors.New("connection refused")
		},
	}
	limiter := access.NewLimiter(mock, nil, 3, 24*time.Hour)
	_, _, err := NewJanitor(limiter, mock, 30).Purge(context.Background())
	assert.ErrorContains(t, err, "failed to purge rate records")
}

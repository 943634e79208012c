package casual

import (
	"chat-bot/internal/config"
	"chat-bot/internal/platform"
	"chat-bot/internal/repository/db"
	"chat-bot/internal/repository/memory"
	"chat-bot/internal/testutil"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chat = int64(-100500)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixedRand struct {
	f float64
	n int
}

func (r fixedRand) Float64() float64 { return r.f }
func (r fixedRand) IntN(int) int     { return r.n }

func newMachine(t *testing.T, gen *testutil.MockGenerator, rnd Random) (*Machine, *memory.Store) {
	t.Helper()
	cfg := config.DefaultCasualConfig()
	cfg.Aliases = config.DefaultAliases("helper_bot", nil)
	store := memory.NewStore().WithClock(func() time.Time { return now })
	m := NewMachine(cfg, gen, store, Options{HistoryDays: 20, DefaultBackend: "qwen"}).
		WithRandom(rnd).
		WithClock(func() time.Time { return now })
	return m, store
}

func replying(text string) *testutil.MockGenerator {
	return &testutil.MockGenerator{
		CompleteFunc: func(ctx context.Context, preferred, prompt string, maxTokens int) (string, string, error) {
			return text, preferred, nil
		},
	}
}

func message(user int64, text string) platform.Message {
	return platform.Message{ChatID: chat, UserID: user, Username: "user", Text: text, Date: now}
}

func TestToggle_EmptyHistoryUsesDefaultStyle(t *testing.T) {
	gen := replying("should not be used")
	m, _ := newMachine(t, gen, fixedRand{f: 0})

	st := m.Toggle(context.Background(), chat, "")
	assert.True(t, st.Enabled)
	assert.Equal(t, "casual and friendly", st.Style)
	assert.Equal(t, "qwen", st.Backend)
	assert.Zero(t, gen.Calls())

	st = m.Toggle(context.Background(), chat, "")
	assert.False(t, st.Enabled)
	assert.Equal(t, "casual and friendly", st.Style)

	// disabled chats never reply, even when every draw would hit
	for i := 0; i < 10; i++ {
		_, ok := m.HandleMessage(context.Background(), message(1, "what do you think?"))
		assert.False(t, ok)
	}
	assert.Zero(t, gen.Calls())
}

func TestToggle_InfersStyleOnceAndRetainsIt(t *testing.T) {
	ctx := context.Background()
	gen := replying("  short, meme-heavy banter  ")
	m, store := newMachine(t, gen, fixedRand{f: 1})

	require.NoError(t, store.AppendChatMessage(ctx, db.ChatMessage{ChatID: chat, MessageID: 1, Username: "alice", Text: "hello", CreatedAt: now.Add(-2 * time.Hour)}))
	require.NoError(t, store.AppendChatMessage(ctx, db.ChatMessage{ChatID: chat, MessageID: 2, Username: "bob", Text: "yo", CreatedAt: now.Add(-time.Hour)}))
	require.NoError(t, store.AppendChatMessage(ctx, db.ChatMessage{ChatID: chat, MessageID: 3, Username: "old", Text: "ancient", CreatedAt: now.AddDate(0, 0, -30)}))

	st := m.Toggle(ctx, chat, "deepseek")
	assert.Equal(t, "short, meme-heavy banter", st.Style)
	assert.Equal(t, "deepseek", st.Backend)
	require.Equal(t, 1, gen.Calls())
	assert.Equal(t, "deepseek", gen.LastPreferred())
	assert.Contains(t, gen.LastPrompt(), "alice: hello\nbob: yo")
	assert.NotContains(t, gen.LastPrompt(), "ancient")

	m.Toggle(ctx, chat, "")
	st = m.Toggle(ctx, chat, "")
	assert.True(t, st.Enabled)
	assert.Equal(t, 1, gen.Calls())
}

func TestToggle_InferenceFailureFallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	gen := &testutil.MockGenerator{
		CompleteFunc: func(ctx context.Context, preferred, prompt string, maxTokens int) (string, string, error) {
			return "", "", errors.New("all backends down")
		},
	}
	m, store := newMachine(t, gen, fixedRand{})
	require.NoError(t, store.AppendChatMessage(ctx, db.ChatMessage{ChatID: chat, MessageID: 1, Text: "hi", CreatedAt: now}))

	st := m.Toggle(ctx, chat, "")
	assert.Equal(t, "casual and friendly", st.Style)
	assert.Equal(t, 1, gen.Calls())
}

func TestHandleMessage_CapReachedResetsWithoutReply(t *testing.T) {
	gen := replying("hi")
	m, _ := newMachine(t, gen, fixedRand{f: 0.99})
	m.Toggle(context.Background(), chat, "")

	for i := 0; i < 19; i++ {
		_, ok := m.HandleMessage(context.Background(), message(1, "chatter"))
		require.False(t, ok)
	}
	st, _ := m.Status(chat)
	require.Equal(t, 19, st.Interactions[1])
	require.Equal(t, 19, st.SinceBot)

	_, ok := m.HandleMessage(context.Background(), message(1, "more chatter"))
	assert.False(t, ok)
	st, _ = m.Status(chat)
	assert.Zero(t, st.SinceBot)
	assert.Empty(t, st.Interactions)
	assert.True(t, st.LastBotSpeech.IsZero())
	assert.Zero(t, gen.Calls())
}

func TestHandleMessage_MentionAlwaysReplies(t *testing.T) {
	gen := replying("sup")
	m, _ := newMachine(t, gen, fixedRand{f: 0.99})
	m.Toggle(context.Background(), chat, "gpt")

	reply, ok := m.HandleMessage(context.Background(), message(2, "hey @Helper_Bot you there?"))
	require.True(t, ok)
	assert.Equal(t, "sup", reply)
	assert.Equal(t, "gpt", gen.LastPreferred())
	assert.Contains(t, gen.LastPrompt(), "hey @Helper_Bot you there?")

	// right after speaking, a mention still wins
	_, ok = m.HandleMessage(context.Background(), message(2, "helper_bot again"))
	assert.True(t, ok)

	st, _ := m.Status(chat)
	assert.Zero(t, st.SinceBot)
	assert.Empty(t, st.Interactions)
	assert.Equal(t, now, st.LastBotSpeech)
}

func TestHandleMessage_MinimumGapBeforeChance(t *testing.T) {
	gen := replying("ok")
	m, _ := newMachine(t, gen, fixedRand{f: 0})
	m.Toggle(context.Background(), chat, "")

	_, ok := m.HandleMessage(context.Background(), message(1, "one"))
	assert.False(t, ok)
	_, ok = m.HandleMessage(context.Background(), message(2, "two"))
	assert.False(t, ok)
	_, ok = m.HandleMessage(context.Background(), message(3, "three"))
	assert.True(t, ok)
}

func TestHandleMessage_TriggerWordDoublesChance(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{name: "plain message misses at 15%", text: "nice weather", want: false},
		{name: "trigger word hits at 15%", text: "any RECOMMENDations?", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newMachine(t, replying("ok"), fixedRand{f: 0.15})
			m.Toggle(context.Background(), chat, "")
			m.mu.Lock()
			m.states[chat].SinceBot = 3
			m.mu.Unlock()

			_, ok := m.HandleMessage(context.Background(), message(1, tt.text))
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestReplyChance(t *testing.T) {
	m, _ := newMachine(t, replying(""), fixedRand{})
	tests := []struct {
		sinceBot int
		text     string
		want     float64
	}{
		{sinceBot: 3, text: "hello", want: 0.10},
		{sinceBot: 4, text: "why though", want: 0.20},
		{sinceBot: 5, text: "hello", want: 0.20},
		{sinceBot: 14, text: "anyone?", want: 0.40},
		{sinceBot: 15, text: "hello", want: 0.30},
		{sinceBot: 40, text: "i agree", want: 0.60},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, m.replyChance(tt.sinceBot, tt.text), 1e-9, "sinceBot=%d text=%q", tt.sinceBot, tt.text)
	}
}

func TestHandleMessage_GenerationFailureSendsFiller(t *testing.T) {
	gen := &testutil.MockGenerator{
		CompleteFunc: func(ctx context.Context, preferred, prompt string, maxTokens int) (string, string, error) {
			return "", "", errors.New("timeout")
		},
	}
	m, _ := newMachine(t, gen, fixedRand{f: 0.99, n: 2})
	m.Toggle(context.Background(), chat, "")

	reply, ok := m.HandleMessage(context.Background(), message(1, "@helper_bot hi"))
	require.True(t, ok)
	assert.Equal(t, config.DefaultCasualConfig().Fillers[2], reply)
}

func TestHandleMessage_ContextExcludesIncomingMessage(t *testing.T) {
	ctx := context.Background()
	gen := replying("reply")
	m, store := newMachine(t, gen, fixedRand{f: 0.99})
	m.Toggle(ctx, chat, "")

	for i := 1; i <= 12; i++ {
		require.NoError(t, store.AppendChatMessage(ctx, db.ChatMessage{ChatID: chat, MessageID: int64(i), UserID: 9, Username: "carol", Text: "line", CreatedAt: now.Add(time.Duration(i-20) * time.Minute)}))
	}
	incoming := platform.Message{ID: 12, ChatID: chat, UserID: 9, Username: "carol", Text: "ping helper_bot", Date: now}

	_, ok := m.HandleMessage(ctx, incoming)
	require.True(t, ok)
	assert.Equal(t, 10, strings.Count(gen.LastPrompt(), "carol: line"))
}

func TestResetAndStatus(t *testing.T) {
	m, _ := newMachine(t, replying("x"), fixedRand{f: 0.99})

	st, ok := m.Status(chat)
	assert.False(t, ok)
	assert.False(t, st.Enabled)

	m.Toggle(context.Background(), chat, "")
	m.HandleMessage(context.Background(), message(1, "a"))
	m.HandleMessage(context.Background(), message(1, "b"))
	m.Reset(chat)

	st, ok = m.Status(chat)
	require.True(t, ok)
	assert.Zero(t, st.SinceBot)
	assert.Empty(t, st.Interactions)
	assert.True(t, st.Enabled)
}

package memory

import (
	"chat-bot/internal/apperr"
	"chat-bot/internal/repository/db"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_UpsertUser(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	u, err := s.UpsertUser(ctx, db.User{ID: 1, Username: "bob"})
	require.NoError(t, err)
	assert.Equal(t, db.DefaultBackend, u.PreferredBackend)
	assert.True(t, u.Active)

	require.NoError(t, s.SetPreferredBackend(ctx, 1, "claude"))
	u, err = s.UpsertUser(ctx, db.User{ID: 1, Username: "bobby"})
	require.NoError(t, err)
	assert.Equal(t, "claude", u.PreferredBackend)
	assert.Equal(t, "bobby", u.Username)

	assert.ErrorIs(t, s.SetPreferredBackend(ctx, 99, "gpt"), apperr.ErrNotFound)
	_, err = s.GetUser(ctx, 99)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStore_RateRecords(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore()

	for _, age := range []time.Duration{30 * time.Hour, 5 * time.Hour, time.Hour} {
		require.NoError(t, s.AppendRate(ctx, db.RateRecord{UserID: 1, Command: "news", CreatedAt: now.Add(-age)}))
	}
	require.NoError(t, s.AppendRate(ctx, db.RateRecord{UserID: 1, Command: "crypto", CreatedAt: now}))

	since := now.Add(-24 * time.Hour)
	n, err := s.CountRateSince(ctx, 1, "news", since)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	oldest, ok, err := s.OldestRateSince(ctx, 1, "news", since)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, now.Add(-5*time.Hour), oldest)

	_, ok, err = s.OldestRateSince(ctx, 2, "news", since)
	require.NoError(t, err)
	assert.False(t, ok)

	removed, err := s.DeleteRateBefore(ctx, since)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestStore_ChatMessagesAndRooms(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore()

	add := func(chat int64, title, text string, ago time.Duration) {
		require.NoError(t, s.AppendChatMessage(ctx, db.ChatMessage{ChatID: chat, ChatTitle: title, Text: text, CreatedAt: now.Add(-ago)}))
	}
	add(10, "Alpha", "first", 40*24*time.Hour)
	add(10, "Alpha", "second", 2*time.Hour)
	add(10, "Alpha v2", "third", time.Hour)
	add(20, "Beta", "other", 30*time.Minute)

	msgs, err := s.ChatMessagesSince(ctx, 10, now.Add(-20*24*time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "third", msgs[0].Text)
	assert.NotEmpty(t, msgs[0].ID)

	limited, err := s.ChatMessagesSince(ctx, 10, time.Time{}, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "third", limited[0].Text)

	// a late-arriving older message must not displace the newest one
	add(10, "Alpha", "late", 3*time.Hour)
	limited, err = s.ChatMessagesSince(ctx, 10, time.Time{}, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "third", limited[0].Text)

	rooms, err := s.Rooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, int64(20), rooms[0].ID)
	assert.Equal(t, "Alpha v2", rooms[1].Title)

	removed, err := s.DeleteChatMessagesBefore(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestStore_SearchResults(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.AppendSearchResult(ctx, db.SearchResult{UserID: 1, Query: "a", Kind: db.KindSearch}))
	require.NoError(t, s.AppendSearchResult(ctx, db.SearchResult{UserID: 1, Query: "b", Kind: db.KindNews}))
	require.NoError(t, s.AppendSearchResult(ctx, db.SearchResult{UserID: 1, Query: "c", Kind: db.KindSearch}))
	require.NoError(t, s.AppendSearchResult(ctx, db.SearchResult{UserID: 2, Query: "d", Kind: db.KindSearch}))

	recent, err := s.RecentSearchResults(ctx, 1, db.KindSearch, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].Query)

	recent, err = s.RecentSearchResults(ctx, 1, "", 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "c", recent[0].Query)

	n, err := s.CountSearchResultsSince(ctx, db.KindSearch, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

package handlers

import (
	"chat-bot/internal/auth"
	"chat-bot/internal/repository/db"
	"chat-bot/internal/repository/memory"
	"chat-bot/internal/service/casual"
	"chat-bot/internal/testutil"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeCasual map[int64]casual.Status

func (f fakeCasual) Status(chatID int64) (casual.Status, bool) {
	st, ok := f[chatID]
	return st, ok
}

type server struct {
	srv   *httptest.Server
	token string
}

func newServer(t *testing.T, store db.Database) *server {
	t.Helper()
	a := auth.NewAuthenticator([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	token, err := a.GenerateToken("ops")
	require.NoError(t, err)

	states := fakeCasual{-100: {ChatID: -100, Enabled: true, Style: "dry humour", Backend: "qwen"}}
	srv := httptest.NewServer(NewRouter(NewOperatorHandlers(store, states), a, "*"))
	t.Cleanup(srv.Close)

	return &server{srv: srv, token: token}
}

func (s *server) get(t *testing.T, path string, authorized bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, s.srv.URL+path, nil)
	require.NoError(t, err)
	if authorized {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	s := newServer(t, memory.NewStore())

	resp := s.get(t, "/api/health", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)

	down := newServer(t, &testutil.MockDatabase{
		PingFunc: func(ctx context.Context) error { return errors.New("connection refused") },
	})
	resp = down.get(t, "/api/health", false)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSearches(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.AppendSearchResult(ctx, db.SearchResult{ID: "a", UserID: 7, Query: "bitcoin", Kind: db.KindNews, Payload: `{"articles":[]}`, CreatedAt: now.Add(-time.Hour)}))
	require.NoError(t, store.AppendSearchResult(ctx, db.SearchResult{ID: "b", UserID: 7, Query: "foo", Kind: db.KindSearch, Payload: `[{"text":"foo"}]`, CreatedAt: now}))
	require.NoError(t, store.AppendSearchResult(ctx, db.SearchResult{ID: "c", UserID: 8, Query: "other", Kind: db.KindSearch, Payload: `[]`, CreatedAt: now}))
	s := newServer(t, store)

	t.Run("requires token", func(t *testing.T) {
		resp := s.get(t, "/api/users/7/searches", false)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("all kinds", func(t *testing.T) {
		resp := s.get(t, "/api/users/7/searches", true)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body SearchesResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Len(t, body.Searches, 2)
		assert.Equal(t, "b", body.Searches[0].ID)
		assert.JSONEq(t, `[{"text":"foo"}]`, string(body.Searches[0].Payload))
	})

	t.Run("filtered by kind", func(t *testing.T) {
		resp := s.get(t, "/api/users/7/searches?kind=news&limit=5", true)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body SearchesResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Len(t, body.Searches, 1)
		assert.Equal(t, "bitcoin", body.Searches[0].Query)
	})

	bad := []string{
		"/api/users/abc/searches",
		"/api/users/7/searches?kind=weather",
		"/api/users/7/searches?limit=0",
		"/api/users/7/searches?limit=500",
	}
	for _, path := range bad {
		t.Run(path, func(t *testing.T) {
			resp := s.get(t, path, true)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var body auth.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, "Validation failed", body.Message)
		})
	}
}

func TestRooms(t *testing.T) {
	store := memory.NewStore()
	require.NoError(t, store.AppendChatMessage(context.Background(), db.ChatMessage{
		ChatID: -100, ChatTitle: "Dev Chat", ChatType: "supergroup", MessageID: 1, Text: "hi", CreatedAt: now,
	}))
	s := newServer(t, store)

	resp := s.get(t, "/api/rooms", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body RoomsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Rooms, 1)
	assert.Equal(t, "Dev Chat", body.Rooms[0].Title)
	assert.Equal(t, now.Format(time.RFC3339), body.Rooms[0].LastMessageAt)
}

func TestCasual(t *testing.T) {
	s := newServer(t, memory.NewStore())

	resp := s.get(t, "/api/casual/-100", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st casual.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.True(t, st.Enabled)
	assert.Equal(t, "dry humour", st.Style)

	resp = s.get(t, "/api/casual/-200", true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

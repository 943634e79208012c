package memory

import (
	"chat-bot/internal/apperr"
	"chat-bot/internal/repository/db"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ db.Database = (*Store)(nil)

// Store is an in-memory implementation of db.Database.
// It is not persistent and is meant for local runs and tests.
type Store struct {
	mu       sync.RWMutex
	users    map[int64]*db.User
	rates    []db.RateRecord
	messages map[int64][]db.ChatMessage
	searches []db.SearchResult
	now      func() time.Time
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{
		users:    make(map[int64]*db.User),
		messages: make(map[int64][]db.ChatMessage),
		now:      time.Now,
	}
}

// WithClock overrides the clock used for default timestamps
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) UpsertUser(ctx context.Context, user db.User) (*db.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.users[user.ID]; ok {
		existing.Username = user.Username
		existing.FirstName = user.FirstName
		existing.Active = true
		out := *existing
		return &out, nil
	}

	if user.PreferredBackend == "" {
		user.PreferredBackend = db.DefaultBackend
	}
	if user.JoinedAt.IsZero() {
		user.JoinedAt = s.now()
	}
	user.Active = true
	stored := user
	s.users[user.ID] = &stored
	return &user, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*db.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]db.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]db.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (s *Store) SetPreferredBackend(ctx context.Context, id int64, backend string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return apperr.ErrNotFound
	}
	u.PreferredBackend = backend
	return nil
}

func (s *Store) AppendRate(ctx context.Context, rec db.RateRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	s.rates = append(s.rates, rec)
	return nil
}

func (s *Store) CountRateSince(ctx context.Context, userID int64, command string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.rates {
		if r.UserID == userID && r.Command == command && !r.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *Store) OldestRateSince(ctx context.Context, userID int64, command string, since time.Time) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var oldest time.Time
	found := false
	for _, r := range s.rates {
		if r.UserID != userID || r.Command != command || r.CreatedAt.Before(since) {
			continue
		}
		if !found || r.CreatedAt.Before(oldest) {
			oldest = r.CreatedAt
			found = true
		}
	}
	return oldest, found, nil
}

func (s *Store) DeleteRateBefore(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.rates[:0]
	var removed int64
	for _, r := range s.rates {
		if r.CreatedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.rates = kept
	return removed, nil
}

func (s *Store) AppendChatMessage(ctx context.Context, msg db.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	s.messages[msg.ChatID] = append(s.messages[msg.ChatID], msg)
	return nil
}

func (s *Store) ChatMessagesSince(ctx context.Context, chatID int64, since time.Time, limit int) ([]db.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[chatID]
	out := make([]db.ChatMessage, 0)
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].CreatedAt.Before(since) {
			continue
		}
		out = append(out, msgs[i])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) DeleteChatMessagesBefore(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for chatID, msgs := range s.messages {
		kept := msgs[:0]
		for _, m := range msgs {
			if m.CreatedAt.Before(before) {
				removed++
				continue
			}
			kept = append(kept, m)
		}
		if len(kept) == 0 {
			delete(s.messages, chatID)
			continue
		}
		s.messages[chatID] = kept
	}
	return removed, nil
}

func (s *Store) Rooms(ctx context.Context) ([]db.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]db.Room, 0, len(s.messages))
	for chatID, msgs := range s.messages {
		if len(msgs) == 0 {
			continue
		}
		room := db.Room{ID: chatID}
		for _, m := range msgs {
			if !m.CreatedAt.Before(room.LastMessageAt) {
				room.LastMessageAt = m.CreatedAt
				room.Title = m.ChatTitle
				room.Type = m.ChatType
			}
		}
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].LastMessageAt.Equal(rooms[j].LastMessageAt) {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].LastMessageAt.After(rooms[j].LastMessageAt)
	})
	return rooms, nil
}

func (s *Store) AppendSearchResult(ctx context.Context, res db.SearchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if res.ID == "" {
		res.ID = uuid.New().String()
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = s.now()
	}
	s.searches = append(s.searches, res)
	return nil
}

func (s *Store) RecentSearchResults(ctx context.Context, userID int64, kind string, n int) ([]db.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]db.SearchResult, 0)
	for i := len(s.searches) - 1; i >= 0; i-- {
		if n > 0 && len(out) >= n {
			break
		}
		r := s.searches[i]
		if r.UserID != userID || (kind != "" && r.Kind != kind) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) CountSearchResultsSince(ctx context.Context, kind string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.searches {
		if (kind == "" || r.Kind == kind) && !r.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

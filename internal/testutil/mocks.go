package testutil

import (
	"chat-bot/internal/config"
	"chat-bot/internal/platform"
	"chat-bot/internal/providers"
	"chat-bot/internal/repository/db"
	"context"
	"errors"
	"os"
	"sync"
	"time"
)

// MockDatabase is a mock implementation of db.Database for testing
type MockDatabase struct {
	// User mocks
	UpsertUserFunc          func(ctx context.Context, user db.User) (*db.User, error)
	GetUserFunc             func(ctx context.Context, id int64) (*db.User, error)
	ListUsersFunc           func(ctx context.Context) ([]db.User, error)
	SetPreferredBackendFunc func(ctx context.Context, id int64, backend string) error

	// Rate mocks
	AppendRateFunc       func(ctx context.Context, rec db.RateRecord) error
	CountRateSinceFunc   func(ctx context.Context, userID int64, command string, since time.Time) (int, error)
	OldestRateSinceFunc  func(ctx context.Context, userID int64, command string, since time.Time) (time.Time, bool, error)
	DeleteRateBeforeFunc func(ctx context.Context, before time.Time) (int64, error)

	// Chat history mocks
	AppendChatMessageFunc        func(ctx context.Context, msg db.ChatMessage) error
	ChatMessagesSinceFunc        func(ctx context.Context, chatID int64, since time.Time, limit int) ([]db.ChatMessage, error)
	DeleteChatMessagesBeforeFunc func(ctx context.Context, before time.Time) (int64, error)
	RoomsFunc                    func(ctx context.Context) ([]db.Room, error)

	// Search history mocks
	AppendSearchResultFunc      func(ctx context.Context, res db.SearchResult) error
	RecentSearchResultsFunc     func(ctx context.Context, userID int64, kind string, n int) ([]db.SearchResult, error)
	CountSearchResultsSinceFunc func(ctx context.Context, kind string, since time.Time) (int, error)

	PingFunc func(ctx context.Context) error
}

var _ db.Database = (*MockDatabase)(nil)

var errNotImplemented = errors.New("not implemented")

// User methods
func (m *MockDatabase) UpsertUser(ctx context.Context, user db.User) (*db.User, error) {
	if m.UpsertUserFunc != nil {
		return m.UpsertUserFunc(ctx, user)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) GetUser(ctx context.Context, id int64) (*db.User, error) {
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx, id)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) ListUsers(ctx context.Context) ([]db.User, error) {
	if m.ListUsersFunc != nil {
		return m.ListUsersFunc(ctx)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) SetPreferredBackend(ctx context.Context, id int64, backend string) error {
	if m.SetPreferredBackendFunc != nil {
		return m.SetPreferredBackendFunc(ctx, id, backend)
	}
	return errNotImplemented
}

// Rate methods
func (m *MockDatabase) AppendRate(ctx context.Context, rec db.RateRecord) error {
	if m.AppendRateFunc != nil {
		return m.AppendRateFunc(ctx, rec)
	}
	return errNotImplemented
}

func (m *MockDatabase) CountRateSince(ctx context.Context, userID int64, command string, since time.Time) (int, error) {
	if m.CountRateSinceFunc != nil {
		return m.CountRateSinceFunc(ctx, userID, command, since)
	}
	return 0, errNotImplemented
}

func (m *MockDatabase) OldestRateSince(ctx context.Context, userID int64, command string, since time.Time) (time.Time, bool, error) {
	if m.OldestRateSinceFunc != nil {
		return m.OldestRateSinceFunc(ctx, userID, command, since)
	}
	return time.Time{}, false, errNotImplemented
}

func (m *MockDatabase) DeleteRateBefore(ctx context.Context, before time.Time) (int64, error) {
	if m.DeleteRateBeforeFunc != nil {
		return m.DeleteRateBeforeFunc(ctx, before)
	}
	return 0, errNotImplemented
}

// Chat history methods
func (m *MockDatabase) AppendChatMessage(ctx context.Context, msg db.ChatMessage) error {
	if m.AppendChatMessageFunc != nil {
		return m.AppendChatMessageFunc(ctx, msg)
	}
	return errNotImplemented
}

func (m *MockDatabase) ChatMessagesSince(ctx context.Context, chatID int64, since time.Time, limit int) ([]db.ChatMessage, error) {
	if m.ChatMessagesSinceFunc != nil {
		return m.ChatMessagesSinceFunc(ctx, chatID, since, limit)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) DeleteChatMessagesBefore(ctx context.Context, before time.Time) (int64, error) {
	if m.DeleteChatMessagesBeforeFunc != nil {
		return m.DeleteChatMessagesBeforeFunc(ctx, before)
	}
	return 0, errNotImplemented
}

func (m *MockDatabase) Rooms(ctx context.Context) ([]db.Room, error) {
	if m.RoomsFunc != nil {
		return m.RoomsFunc(ctx)
	}
	return nil, errNotImplemented
}

// Search history methods
func (m *MockDatabase) AppendSearchResult(ctx context.Context, res db.SearchResult) error {
	if m.AppendSearchResultFunc != nil {
		return m.AppendSearchResultFunc(ctx, res)
	}
	return errNotImplemented
}

func (m *MockDatabase) RecentSearchResults(ctx context.Context, userID int64, kind string, n int) ([]db.SearchResult, error) {
	if m.RecentSearchResultsFunc != nil {
		return m.RecentSearchResultsFunc(ctx, userID, kind, n)
	}
	return nil, errNotImplemented
}

func (m *MockDatabase) CountSearchResultsSince(ctx context.Context, kind string, since time.Time) (int, error) {
	if m.CountSearchResultsSinceFunc != nil {
		return m.CountSearchResultsSinceFunc(ctx, kind, since)
	}
	return 0, errNotImplemented
}

func (m *MockDatabase) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

func (m *MockDatabase) Close() error { return nil }

// MockRateStore is a mock implementation of db.RateStore for testing
type MockRateStore struct {
	AppendRateFunc       func(ctx context.Context, rec db.RateRecord) error
	CountRateSinceFunc   func(ctx context.Context, userID int64, command string, since time.Time) (int, error)
	OldestRateSinceFunc  func(ctx context.Context, userID int64, command string, since time.Time) (time.Time, bool, error)
	DeleteRateBeforeFunc func(ctx context.Context, before time.Time) (int64, error)
}

var _ db.RateStore = (*MockRateStore)(nil)

func (m *MockRateStore) AppendRate(ctx context.Context, rec db.RateRecord) error {
	if m.AppendRateFunc != nil {
		return m.AppendRateFunc(ctx, rec)
	}
	return errNotImplemented
}

func (m *MockRateStore) CountRateSince(ctx context.Context, userID int64, command string, since time.Time) (int, error) {
	if m.CountRateSinceFunc != nil {
		return m.CountRateSinceFunc(ctx, userID, command, since)
	}
	return 0, errNotImplemented
}

func (m *MockRateStore) OldestRateSince(ctx context.Context, userID int64, command string, since time.Time) (time.Time, bool, error) {
	if m.OldestRateSinceFunc != nil {
		return m.OldestRateSinceFunc(ctx, userID, command, since)
	}
	return time.Time{}, false, errNotImplemented
}

func (m *MockRateStore) DeleteRateBefore(ctx context.Context, before time.Time) (int64, error) {
	if m.DeleteRateBeforeFunc != nil {
		return m.DeleteRateBeforeFunc(ctx, before)
	}
	return 0, errNotImplemented
}

// MockAdapter is a mock implementation of providers.Adapter for testing.
// It is safe to call from concurrent fan-out goroutines.
type MockAdapter[T providers.Record] struct {
	ProviderName string
	Disabled     bool
	FetchFunc    func(ctx context.Context, query string, limit int) ([]T, error)

	mu        sync.Mutex
	calls     int
	lastLimit int
}

func (m *MockAdapter[T]) Name() string { return m.ProviderName }

func (m *MockAdapter[T]) Configured() bool { return !m.Disabled }

func (m *MockAdapter[T]) Fetch(ctx context.Context, query string, limit int) ([]T, error) {
	m.mu.Lock()
	m.calls++
	m.lastLimit = limit
	m.mu.Unlock()

	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, query, limit)
	}
	return nil, errNotImplemented
}

// Calls returns how many times Fetch ran
func (m *MockAdapter[T]) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastLimit returns the limit of the latest Fetch
func (m *MockAdapter[T]) LastLimit() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastLimit
}

// MockHistory is a mock implementation of platform.History for testing
type MockHistory struct {
	RoomsFunc   func(ctx context.Context) ([]platform.Room, error)
	HistoryFunc func(ctx context.Context, roomID int64, limit int) ([]platform.Message, error)

	mu        sync.Mutex
	lastLimit int
}

var _ platform.History = (*MockHistory)(nil)

func (m *MockHistory) Rooms(ctx context.Context) ([]platform.Room, error) {
	if m.RoomsFunc != nil {
		return m.RoomsFunc(ctx)
	}
	return nil, errNotImplemented
}

func (m *MockHistory) History(ctx context.Context, roomID int64, limit int) ([]platform.Message, error) {
	m.mu.Lock()
	m.lastLimit = limit
	m.mu.Unlock()

	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, roomID, limit)
	}
	return nil, errNotImplemented
}

// LastLimit returns the limit of the latest History call
func (m *MockHistory) LastLimit() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastLimit
}

// MockBackend is a mock generation backend for testing
type MockBackend struct {
	BackendName  string
	Disabled     bool
	CompleteFunc func(ctx context.Context, prompt string, maxTokens int) (string, error)

	mu    sync.Mutex
	calls int
}

func (m *MockBackend) Name() string { return m.BackendName }

func (m *MockBackend) Configured() bool { return !m.Disabled }

func (m *MockBackend) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt, maxTokens)
	}
	return "", errNotImplemented
}

func (m *MockBackend) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockGenerator is a mock of the fallback-aware text generator used by casual mode
type MockGenerator struct {
	CompleteFunc func(ctx context.Context, preferred, prompt string, maxTokens int) (string, string, error)

	mu            sync.Mutex
	calls         int
	lastPrompt    string
	lastPreferred string
}

func (m *MockGenerator) Complete(ctx context.Context, preferred, prompt string, maxTokens int) (string, string, error) {
	m.mu.Lock()
	m.calls++
	m.lastPrompt = prompt
	m.lastPreferred = preferred
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, preferred, prompt, maxTokens)
	}
	return "", "", errNotImplemented
}

func (m *MockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockGenerator) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPrompt
}

func (m *MockGenerator) LastPreferred() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPreferred
}

// SentMessage is a message recorded by MockMessenger
type SentMessage struct {
	ID      int64
	ChatID  int64
	Text    string
	ReplyTo int64
	Edited  bool
	Deleted bool
}

// SentDocument is a document recorded by MockMessenger; Content is read at send time
type SentDocument struct {
	ChatID  int64
	Path    string
	Caption string
	Content string
}

// MockMessenger is a mock implementation of platform.Messenger that records traffic
type MockMessenger struct {
	ChatMemberFunc   func(ctx context.Context, chatID, userID int64) (platform.MemberRole, error)
	SendMessageFunc  func(ctx context.Context, chatID int64, text string, replyTo int64) error
	SendDocumentFunc func(ctx context.Context, chatID int64, path, caption string) error

	mu        sync.Mutex
	nextID    int64
	messages  []*SentMessage
	documents []SentDocument
}

var _ platform.Messenger = (*MockMessenger)(nil)

func (m *MockMessenger) SendMessage(ctx context.Context, chatID int64, text string, replyTo int64) (int64, error) {
	if m.SendMessageFunc != nil {
		if err := m.SendMessageFunc(ctx, chatID, text, replyTo); err != nil {
			return 0, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.messages = append(m.messages, &SentMessage{ID: m.nextID, ChatID: chatID, Text: text, ReplyTo: replyTo})
	return m.nextID, nil
}

func (m *MockMessenger) EditMessage(ctx context.Context, chatID, messageID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg.ChatID == chatID && msg.ID == messageID {
			msg.Text = text
			msg.Edited = true
			return nil
		}
	}
	return errors.New("message not found")
}

func (m *MockMessenger) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg.ChatID == chatID && msg.ID == messageID {
			msg.Deleted = true
			return nil
		}
	}
	return errors.New("message not found")
}

func (m *MockMessenger) SendDocument(ctx context.Context, chatID int64, path, caption string) error {
	if m.SendDocumentFunc != nil {
		if err := m.SendDocumentFunc(ctx, chatID, path, caption); err != nil {
			return err
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents = append(m.documents, SentDocument{ChatID: chatID, Path: path, Caption: caption, Content: string(data)})
	return nil
}

func (m *MockMessenger) ChatMember(ctx context.Context, chatID, userID int64) (platform.MemberRole, error) {
	if m.ChatMemberFunc != nil {
		return m.ChatMemberFunc(ctx, chatID, userID)
	}
	return platform.RoleMember, nil
}

// Visible returns the texts of messages that were not deleted, in send order
func (m *MockMessenger) Visible() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, msg := range m.messages {
		if !msg.Deleted {
			out = append(out, msg.Text)
		}
	}
	return out
}

// Messages returns copies of every sent message
func (m *MockMessenger) Messages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.messages))
	for i, msg := range m.messages {
		out[i] = *msg
	}
	return out
}

// Documents returns every sent document
func (m *MockMessenger) Documents() []SentDocument {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentDocument(nil), m.documents...)
}

// Last returns the newest visible message text, or "" when none
func (m *MockMessenger) Last() string {
	v := m.Visible()
	if len(v) == 0 {
		return ""
	}
	return v[len(v)-1]
}

// NewMockConfig creates an AppConfig with the built-in defaults for testing
func NewMockConfig() *config.AppConfig {
	return &config.AppConfig{
		Bot: config.BotConfig{
			Username:     "helper_bot",
			AdminIDs:     []int64{1},
			MaxReplySize: 4000,
		},
		Database:  config.DatabaseConfig{Backend: "memory"},
		RateLimit: config.RateLimitConfig{Requests: 3, Window: 24 * time.Hour, Backend: "store"},
		Limits: config.LimitsConfig{
			MaxResultsNonAdmin:  10,
			MaxResultsAdmin:     50,
			MaxResultsHardCap:   200,
			MaxTweetsResults:    5,
			SummaryLines:        10,
			ChatHistoryDays:     20,
			ChatRetentionDays:   30,
			StoredMatchesCap:    50,
			StoredArticlesCap:   20,
			JanitorInterval:     time.Hour,
			DefaultNewsArticles: 10,
		},
		Providers: config.ProvidersConfig{Timeout: time.Second},
		LLM:       config.LLMConfig{DefaultBackend: "qwen", Timeout: time.Second},
		Scan: config.ScanConfig{
			RoomOrder:        "listed",
			SingleRoomLimit:  1000,
			PerRoomLimit:     200,
			PerRoomUserLimit: 500,
		},
		Casual: func() *config.CasualConfig {
			c := config.DefaultCasualConfig()
			c.Aliases = config.DefaultAliases("helper_bot", nil)
			return c
		}(),
	}
}

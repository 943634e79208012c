package db

import "time"

// DefaultBackend is the generation backend assigned to new users
const DefaultBackend = "qwen"

// Search result kinds
const (
	KindSearch    = "search"
	KindSearchAll = "searchall"
	KindUserScan  = "usaid"
	KindNews      = "news"
	KindCrypto    = "crypto"
	KindTweets    = "tweets"
)

// User represents a chat platform user known to the bot
type User struct {
	ID               int64
	Username         string
	FirstName        string
	PreferredBackend string
	Active           bool
	JoinedAt         time.Time
}

// RateRecord is one recorded use of a rate-limited command
type RateRecord struct {
	UserID    int64
	Command   string
	CreatedAt time.Time
}

// ChatMessage is a persisted chat message used for style inference and scanning
type ChatMessage struct {
	ID        string
	ChatID    int64
	ChatTitle string
	ChatType  string
	MessageID int64
	UserID    int64
	Username  string
	FirstName string
	Text      string
	CreatedAt time.Time
}

// Room summarizes a chat the bot has seen messages from
type Room struct {
	ID            int64
	Title         string
	Type          string
	LastMessageAt time.Time
}

// SearchResult is a persisted search with its JSON payload
type SearchResult struct {
	ID        string
	UserID    int64
	Query     string
	Kind      string
	Payload   string
	CreatedAt time.Time
}

package db

import (
	"context"
	"time"
)

// UserStore persists users
type UserStore interface {
	// UpsertUser creates the user or refreshes username and first name, keeping the preference.
	UpsertUser(ctx context.Context, user User) (*User, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	SetPreferredBackend(ctx context.Context, id int64, backend string) error
}

// RateStore persists rate-limit usage
type RateStore interface {
	AppendRate(ctx context.Context, rec RateRecord) error
	CountRateSince(ctx context.Context, userID int64, command string, since time.Time) (int, error)
	// OldestRateSince returns the oldest record time at or after since; ok is false when none exists.
	OldestRateSince(ctx context.Context, userID int64, command string, since time.Time) (oldest time.Time, ok bool, err error)
	DeleteRateBefore(ctx context.Context, before time.Time) (int64, error)
}

// ChatStore persists chat history
type ChatStore interface {
	AppendChatMessage(ctx context.Context, msg ChatMessage) error
	// ChatMessagesSince returns up to limit messages newer than since, newest first.
	ChatMessagesSince(ctx context.Context, chatID int64, since time.Time, limit int) ([]ChatMessage, error)
	DeleteChatMessagesBefore(ctx context.Context, before time.Time) (int64, error)
	// Rooms lists chats with stored history, most recently active first.
	Rooms(ctx context.Context) ([]Room, error)
}

// SearchStore persists search history
type SearchStore interface {
	AppendSearchResult(ctx context.Context, res SearchResult) error
	// RecentSearchResults returns the n newest results for the user; empty kind matches all kinds.
	RecentSearchResults(ctx context.Context, userID int64, kind string, n int) ([]SearchResult, error)
	CountSearchResultsSince(ctx context.Context, kind string, since time.Time) (int, error)
}

// Database defines the interface for all persistence operations
type Database interface {
	UserStore
	RateStore
	ChatStore
	SearchStore

	Ping(ctx context.Context) error
	Close() error
}

// Package platform describes the chat platform the bot runs on.
package platform

import (
	"context"
	"errors"
	"time"
)

// Room is a chat the bot can see
type Room struct {
	ID       int64
	Title    string
	Type     string
	Username string
}

// Message is a chat message as seen by the bot
type Message struct {
	ID        int64
	ChatID    int64
	ChatTitle string
	ChatType  string
	UserID    int64
	Username  string
	FirstName string
	Text      string
	Date      time.Time
}

// MemberRole is a user's role in a chat
type MemberRole string

const (
	RoleCreator       MemberRole = "creator"
	RoleAdministrator MemberRole = "administrator"
	RoleMember        MemberRole = "member"
	RoleRestricted    MemberRole = "restricted"
	RoleLeft          MemberRole = "left"
	RoleKicked        MemberRole = "kicked"
)

// IsChatAdmin reports whether the role may change chat settings
func (r MemberRole) IsChatAdmin() bool {
	return r == RoleCreator || r == RoleAdministrator
}

// Chat types
const (
	ChatPrivate    = "private"
	ChatGroup      = "group"
	ChatSupergroup = "supergroup"
	ChatChannel    = "channel"
)

// ErrAccessDenied is returned when the bot cannot read a chat or lacks rights in it
var ErrAccessDenied = errors.New("access denied")

// History reads past messages
type History interface {
	// History returns up to limit messages of room, newest first.
	History(ctx context.Context, roomID int64, limit int) ([]Message, error)
	// Rooms lists the chats available for scanning.
	Rooms(ctx context.Context) ([]Room, error)
}

// Messenger sends and manages bot messages
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, replyTo int64) (int64, error)
	EditMessage(ctx context.Context, chatID, messageID int64, text string) error
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
	SendDocument(ctx context.Context, chatID int64, path, caption string) error
	ChatMember(ctx context.Context, chatID, userID int64) (MemberRole, error)
}

// Client is a full platform client
type Client interface {
	History
	Messenger
}

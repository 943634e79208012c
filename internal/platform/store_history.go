package platform

import (
	"chat-bot/internal/repository/db"
	"context"
	"time"
)

// StoreHistory serves History from persisted chat messages.
// Bots cannot read chat history through the Bot API, so scanning works on what the bot recorded.
type StoreHistory struct {
	store db.ChatStore
}

func NewStoreHistory(store db.ChatStore) *StoreHistory {
	return &StoreHistory{store: store}
}

func (h *StoreHistory) History(ctx context.Context, roomID int64, limit int) ([]Message, error) {
	records, err := h.store.ChatMessagesSince(ctx, roomID, time.Time{}, limit)
	if err != nil {
		return nil, err
	}
	msgs := make([]Message, 0, len(records))
	for _, r := range records {
		msgs = append(msgs, FromRecord(r))
	}
	return msgs, nil
}

func (h *StoreHistory) Rooms(ctx context.Context) ([]Room, error) {
	records, err := h.store.Rooms(ctx)
	if err != nil {
		return nil, err
	}
	rooms := make([]Room, 0, len(records))
	for _, r := range records {
		title := r.Title
		if title == "" {
			title = "Unknown"
		}
		rooms = append(rooms, Room{ID: r.ID, Title: title, Type: r.Type})
	}
	return rooms, nil
}

// FromRecord converts a stored chat message
func FromRecord(r db.ChatMessage) Message {
	return Message{
		ID:        r.MessageID,
		ChatID:    r.ChatID,
		ChatTitle: r.ChatTitle,
		ChatType:  r.ChatType,
		UserID:    r.UserID,
		Username:  r.Username,
		FirstName: r.FirstName,
		Text:      r.Text,
		Date:      r.CreatedAt,
	}
}

// ToRecord converts a platform message for storage
func ToRecord(m Message) db.ChatMessage {
	return db.ChatMessage{
		ChatID:    m.ChatID,
		ChatTitle: m.ChatTitle,
		ChatType:  m.ChatType,
		MessageID: m.ID,
		UserID:    m.UserID,
		Username:  m.Username,
		FirstName: m.FirstName,
		Text:      m.Text,
		CreatedAt: m.Date,
	}
}

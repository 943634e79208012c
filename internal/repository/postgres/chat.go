package postgres

import (
	"chat-bot/internal/apperr"
	"chat-bot/internal/repository/db"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AppendChatMessage stores a chat message for later scanning and style analysis
func (p *PostgresDB) AppendChatMessage(ctx context.Context, msg db.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	query := `
	INSERT INTO chat_history (id, chat_id, chat_title, chat_type, message_id, user_id, username, first_name, text, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := p.conn.ExecContext(ctx, query, msg.ID, msg.ChatID, msg.ChatTitle, msg.ChatType, msg.MessageID,
		msg.UserID, msg.Username, msg.FirstName, msg.Text, msg.CreatedAt)
	if err != nil {
		return apperr.StoreUnavailable("append chat message", err)
	}
	return nil
}

// ChatMessagesSince returns up to limit messages newer than since, newest first
func (p *PostgresDB) ChatMessagesSince(ctx context.Context, chatID int64, since time.Time, limit int) ([]db.ChatMessage, error) {
	query := `
	SELECT id, chat_id, chat_title, chat_type, message_id, user_id, username, first_name, text, created_at
	FROM chat_history
	WHERE chat_id = $1 AND created_at >= $2
	ORDER BY created_at DESC
	`
	args := []any{chatID, since}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := p.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.StoreUnavailable("chat history", err)
	}
	defer rows.Close()

	var msgs []db.ChatMessage
	for rows.Next() {
		var m db.ChatMessage
		if err := rows.Scan(&m.ID, &m.ChatID, &m.ChatTitle, &m.ChatType, &m.MessageID, &m.UserID,
			&m.Username, &m.FirstName, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning chat message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (p *PostgresDB) DeleteChatMessagesBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := p.conn.ExecContext(ctx, `DELETE FROM chat_history WHERE created_at < $1`, before)
	if err != nil {
		return 0, apperr.StoreUnavailable("purge chat history", err)
	}
	return res.RowsAffected()
}

// Rooms lists chats with stored history using each chat's latest title
func (p *PostgresDB) Rooms(ctx context.Context) ([]db.Room, error) {
	query := `
	SELECT DISTINCT ON (chat_id) chat_id, chat_title, chat_type, created_at
	FROM chat_history
	ORDER BY chat_id, created_at DESC
	`
	rows, err := p.conn.QueryContext(ctx, `SELECT * FROM (`+query+`) latest ORDER BY created_at DESC, chat_id`)
	if err != nil {
		return nil, apperr.StoreUnavailable("list rooms", err)
	}
	defer rows.Close()

	var rooms []db.Room
	for rows.Next() {
		var r db.Room
		if err := rows.Scan(&r.ID, &r.Title, &r.Type, &r.LastMessageAt); err != nil {
			return nil, fmt.Errorf("error scanning room: %w", err)
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

package bot

import (
	"chat-bot/internal/platform"
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// requireChatAdmin allows bot admins anywhere and chat admins in groups.
// Permission lookups that fail deny the request.
func (b *Bot) requireChatAdmin(ctx context.Context, msg platform.Message, denied string) bool {
	if msg.ChatType == platform.ChatPrivate || b.isAdmin(msg.UserID) {
		return true
	}
	role, err := b.Messenger.ChatMember(ctx, msg.ChatID, msg.UserID)
	if err != nil {
		b.log.WithError(err).WithFields(logrus.Fields{"chat_id": msg.ChatID, "user_id": msg.UserID}).Warn("Could not check chat admin status")
	}
	if err != nil || !role.IsChatAdmin() {
		b.reply(ctx, msg, denied)
		return false
	}
	return true
}

func (b *Bot) cmdCasual(ctx context.Context, msg platform.Message, args string) error {
	if !b.requireChatAdmin(ctx, msg, "❌ Only group administrators can toggle casual mode.") {
		return nil
	}
	backend := b.preferredBackend(ctx, msg.UserID)

	if st, ok := b.Casual.Status(msg.ChatID); ok && st.Enabled {
		b.Casual.Toggle(ctx, msg.ChatID, backend)
		b.reply(ctx, msg, "💤 Casual mode disabled\n\nI'll no longer participate in conversations automatically.")
		return nil
	}

	p := b.begin(ctx, msg, fmt.Sprintf("🔄 Analyzing chat history...\n\nReading the last %d days of messages to understand the conversational style.", b.opts.HistoryDays))
	st := b.Casual.Toggle(ctx, msg.ChatID, backend)
	p.finish(ctx, fmt.Sprintf("🤖 Casual mode enabled!\n\n"+
		"📊 Chat style:\n%s\n\n"+
		"🧠 AI model: %s\n\n"+
		"How it works:\n"+
		"• Mention me with @%s to get a reply\n"+
		"• I'll respond naturally for up to %d messages per person\n"+
		"• I'll occasionally join conversations based on context",
		truncate(st.Style, 200), st.Backend, b.opts.Username, b.opts.InteractionCap))
	return nil
}

func (b *Bot) cmdCasualStatus(ctx context.Context, msg platform.Message, args string) error {
	st, ok := b.Casual.Status(msg.ChatID)
	if !ok || !st.Enabled {
		b.reply(ctx, msg, "❌ Casual mode is currently disabled in this chat.")
		return nil
	}
	b.reply(ctx, msg, fmt.Sprintf("🤖 Casual Mode Status\n\n"+
		"✅ Enabled in this chat\n\n"+
		"🧠 AI model: %s\n"+
		"📊 Your interactions: %d/%d\n"+
		"💬 Messages since my last reply: %d\n\n"+
		"Style analysis:\n%s\n\n"+
		"Tip: mention @%s to guarantee a response!",
		st.Backend, st.Interactions[msg.UserID], b.opts.InteractionCap, st.SinceBot,
		truncate(st.Style, 300), b.opts.Username))
	return nil
}

func (b *Bot) cmdCasualReset(ctx context.Context, msg platform.Message, args string) error {
	if !b.requireChatAdmin(ctx, msg, "❌ Only administrators can reset casual mode.") {
		return nil
	}
	b.Casual.Reset(msg.ChatID)
	b.reply(ctx, msg, "🔄 Casual mode interactions reset\n\nAll user interaction counters have been cleared.")
	return nil
}

// handleChat stores a plain message and lets casual mode answer it
func (b *Bot) handleChat(ctx context.Context, msg platform.Message) {
	if msg.Text == "" {
		return
	}
	if err := b.Store.AppendChatMessage(ctx, platform.ToRecord(msg)); err != nil {
		b.log.WithError(err).WithField("chat_id", msg.ChatID).Error("Failed to store chat message")
	}

	reply, ok := b.Casual.HandleMessage(ctx, msg)
	if !ok {
		if msg.ChatType == platform.ChatPrivate {
			if st, known := b.Casual.Status(msg.ChatID); !known || !st.Enabled {
				b.reply(ctx, msg, "👋 Hello! Use /start to see my capabilities or /help for command details.")
			}
		}
		return
	}

	id := b.reply(ctx, msg, reply)
	if id == 0 {
		return
	}
	own := platform.Message{
		ID:        id,
		ChatID:    msg.ChatID,
		ChatTitle: msg.ChatTitle,
		ChatType:  msg.ChatType,
		UserID:    b.opts.BotUserID,
		Username:  b.opts.Username,
		Text:      reply,
		Date:      b.now(),
	}
	if err := b.Store.AppendChatMessage(ctx, platform.ToRecord(own)); err != nil {
		b.log.WithError(err).WithField("chat_id", msg.ChatID).Error("Failed to store bot reply")
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

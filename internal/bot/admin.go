package bot

import (
	"chat-bot/internal/apperr"
	"chat-bot/internal/platform"
	"chat-bot/internal/repository/db"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

const (
	adminOnly = "❌ This command is only available to administrators."
	llmUsage  = "Usage:\n• /llm list - show available AI models\n• /llm set <model> - choose your AI model"
	listLimit = 10
)

const helpText = `🆘 Command Help

🔍 Search Commands:
• /search terms,here [count] - Search current chat for terms
• /searchall terms,here [count] - Search all accessible chats
• /usaid @username term1,term2 [count] - Search a user's messages

📰 News Commands:
• /news bitcoin - Get Bitcoin-related news
• /news stock market - Get stock market news
• /crypto btc - Get a crypto price

🐦 Social Media:
• /tweets @username - Get a user's recent tweets
• /tweets bitcoin - Search tweets about Bitcoin

💬 Chat Features:
• /casual - Toggle conversational AI mode
• /casual_status - Show casual mode status
• /casual_reset - Reset interaction counters

⚙️ Settings:
• /llm list - Show available AI models
• /llm set <model> - Set your AI model (admins)
• /stats - Show bot statistics (admins)
• /dialogs - List accessible chats (admins)

📊 Rate Limits:
- Regular users: %d uses of each info command per day
- Admins: unlimited access
- Results over %d lines are attached as text files

💡 Tips:
- Separate multiple terms with commas
- Add a number at the end to change how many results you get`

func (b *Bot) cmdStart(ctx context.Context, msg platform.Message, args string) error {
	if msg.ChatType != platform.ChatPrivate {
		b.reply(ctx, msg, "👋 Hi! I'm now active in this group.\n\n"+
			"🔍 Search: /search term - Find messages in chat\n"+
			"💬 AI Chat: /casual - Enable conversational mode\n"+
			"📰 News: /news query - Get news articles\n"+
			"📊 Crypto: /crypto BTC - Get crypto prices\n"+
			"🐦 Tweets: /tweets @user - Get Twitter content\n\n"+
			"Use /help for the complete command list.")
		return nil
	}

	name := msg.FirstName
	if name == "" {
		name = "there"
	}
	b.reply(ctx, msg, fmt.Sprintf("🤖 Welcome, %s!\n\n"+
		"📡 Search & Crawl:\n"+
		"• Scan chats for specific terms\n"+
		"• Export results to files\n\n"+
		"💬 Casual Chat:\n"+
		"• /casual - Turn on conversational mode\n"+
		"• I'll analyze chat history and match the group's style\n\n"+
		"🔍 User Search:\n"+
		"• /usaid @username search,terms - Find a user's messages\n\n"+
		"📰 News & Information:\n"+
		"• /news query - Get latest news headlines\n"+
		"• /crypto symbol - Crypto prices and market data\n\n"+
		"🐦 Social Media:\n"+
		"• /tweets @username or /tweets keyword\n\n"+
		"Type /help for detailed command information!", name))
	return nil
}

func (b *Bot) cmdHelp(ctx context.Context, msg platform.Message, args string) error {
	b.reply(ctx, msg, fmt.Sprintf(helpText, b.Limiter.Quota(), b.opts.SummaryLines))
	return nil
}

func (b *Bot) cmdPing(ctx context.Context, msg platform.Message, args string) error {
	b.reply(ctx, msg, "🏓 Pong! Bot is running normally.")
	return nil
}

func (b *Bot) cmdDialogs(ctx context.Context, msg platform.Message, args string) error {
	if !b.isAdmin(msg.UserID) {
		b.reply(ctx, msg, adminOnly)
		return nil
	}

	rooms, err := b.History.Rooms(ctx)
	if err != nil {
		return apperr.StoreUnavailable("dialogs", err)
	}
	if len(rooms) == 0 {
		b.reply(ctx, msg, "No accessible chats found.")
		return nil
	}

	var groups, channels []platform.Room
	private := 0
	for _, r := range rooms {
		switch r.Type {
		case platform.ChatGroup, platform.ChatSupergroup:
			groups = append(groups, r)
		case platform.ChatChannel:
			channels = append(channels, r)
		default:
			private++
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 Accessible Chats (%d total)\n\n", len(rooms))
	writeRooms(&sb, "👥 Groups", groups)
	writeRooms(&sb, "📢 Channels", channels)
	fmt.Fprintf(&sb, "💬 Private Chats: %d", private)
	b.reply(ctx, msg, sb.String())
	return nil
}

func writeRooms(sb *strings.Builder, heading string, rooms []platform.Room) {
	if len(rooms) == 0 {
		return
	}
	fmt.Fprintf(sb, "%s (%d):\n", heading, len(rooms))
	for _, r := range rooms[:min(listLimit, len(rooms))] {
		line := "• " + r.Title
		if r.Username != "" {
			line += " (@" + r.Username + ")"
		}
		sb.WriteString(line + "\n")
	}
	if len(rooms) > listLimit {
		fmt.Fprintf(sb, "  ... and %d more\n", len(rooms)-listLimit)
	}
	sb.WriteString("\n")
}

func (b *Bot) cmdStats(ctx context.Context, msg platform.Message, args string) error {
	if !b.isAdmin(msg.UserID) {
		b.reply(ctx, msg, adminOnly)
		return nil
	}

	users, err := b.Store.ListUsers(ctx)
	if err != nil {
		return apperr.StoreUnavailable("stats", err)
	}
	week, err := b.Store.CountSearchResultsSince(ctx, "", b.now().Add(-7*24*time.Hour))
	if err != nil {
		return apperr.StoreUnavailable("stats", err)
	}
	rooms, err := b.Store.Rooms(ctx)
	if err != nil {
		return apperr.StoreUnavailable("stats", err)
	}

	feature := func(on bool) string {
		if on {
			return "✅"
		}
		return "⚪"
	}
	b.reply(ctx, msg, fmt.Sprintf("📊 Bot Statistics\n\n"+
		"👥 Users: %d total\n"+
		"🔍 Activity: %d searches this week\n"+
		"💬 Chats with stored history: %d\n\n"+
		"Features:\n"+
		"%s News search\n"+
		"%s Twitter search\n"+
		"%s AI chat (%s)",
		len(users), week, len(rooms),
		feature(b.News.NewsConfigured()),
		feature(b.News.SocialConfigured()),
		feature(len(b.Backends.Configured()) > 0), strings.Join(b.Backends.Configured(), ", ")))
	return nil
}

func (b *Bot) cmdLLM(ctx context.Context, msg platform.Message, args string) error {
	sub, rest, _ := strings.Cut(strings.TrimSpace(args), " ")
	switch strings.ToLower(sub) {
	case "", "list":
		b.reply(ctx, msg, b.backendList(ctx, msg.UserID))
		return nil
	case "set":
		if !b.isAdmin(msg.UserID) {
			b.reply(ctx, msg, adminOnly)
			return nil
		}
		name := strings.ToLower(strings.TrimSpace(rest))
		if name == "" {
			return apperr.InvalidInput("llm", llmUsage)
		}
		if !slices.Contains(b.Backends.Names(), name) {
			return apperr.InvalidInput("llm", fmt.Sprintf("Unknown model %q. Available: %s", name, strings.Join(b.Backends.Names(), ", ")))
		}
		if err := b.Store.SetPreferredBackend(ctx, msg.UserID, name); err != nil {
			if apperr.IsKind(err, apperr.KindNotFound) {
				return apperr.InvalidInput("llm", "Use /start first, then set your model.")
			}
			return apperr.StoreUnavailable("llm set", err)
		}
		text := fmt.Sprintf("✅ AI model set to %s", name)
		if !slices.Contains(b.Backends.Configured(), name) {
			text += "\n⚠️ This model has no credentials configured; replies will fall back to another model."
		}
		b.reply(ctx, msg, text)
		return nil
	default:
		return apperr.InvalidInput("llm", llmUsage)
	}
}

func (b *Bot) backendList(ctx context.Context, userID int64) string {
	current := b.preferredBackend(ctx, userID)
	if current == "" {
		current = db.DefaultBackend
	}
	configured := b.Backends.Configured()

	var sb strings.Builder
	sb.WriteString("🧠 Available AI models:\n\n")
	for _, name := range b.Backends.Names() {
		mark := "⚪"
		if slices.Contains(configured, name) {
			mark = "✅"
		}
		line := fmt.Sprintf("%s %s", mark, name)
		if name == current {
			line += " (current)"
		}
		sb.WriteString(line + "\n")
	}
	sb.WriteString("\n✅ configured  ⚪ missing credentials")
	return sb.String()
}

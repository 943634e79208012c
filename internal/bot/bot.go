// Package bot dispatches chat commands to the search, news and casual services.
package bot

import (
	"chat-bot/internal/apperr"
	"chat-bot/internal/config"
	"chat-bot/internal/logger"
	"chat-bot/internal/platform"
	"chat-bot/internal/repository/db"
	"chat-bot/internal/service/access"
	"chat-bot/internal/service/aggregator"
	"chat-bot/internal/service/casual"
	"chat-bot/internal/service/report"
	"chat-bot/internal/service/scanner"
	"chat-bot/pkg/validation"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Backends lists the generation backends users may choose from
type Backends interface {
	Names() []string
	Configured() []string
}

// Options are the bot settings that do not belong to a single service
type Options struct {
	Username          string
	BotUserID         int64
	MaxReplySize      int
	SummaryLines      int
	TweetsLimit       int
	StoredMatchesCap  int
	StoredArticlesCap int
	InteractionCap    int
	HistoryDays       int
}

// OptionsFromConfig extracts bot options from the application config
func OptionsFromConfig(cfg *config.AppConfig) Options {
	return Options{
		Username:          cfg.Bot.Username,
		MaxReplySize:      cfg.Bot.MaxReplySize,
		SummaryLines:      cfg.Limits.SummaryLines,
		TweetsLimit:       cfg.Limits.MaxTweetsResults,
		StoredMatchesCap:  cfg.Limits.StoredMatchesCap,
		StoredArticlesCap: cfg.Limits.StoredArticlesCap,
		InteractionCap:    cfg.Casual.InteractionCap,
		HistoryDays:       cfg.Limits.ChatHistoryDays,
	}
}

// Deps are the services the bot dispatches to
type Deps struct {
	Messenger platform.Messenger
	History   platform.History
	Store     db.Database
	Limiter   *access.Limiter
	Policy    access.ResultPolicy
	News      *aggregator.NewsService
	Scanner   *scanner.Scanner
	Casual    *casual.Machine
	Backends  Backends
	Reports   *report.Writer
}

type handlerFunc func(ctx context.Context, msg platform.Message, args string) error

// Bot routes incoming messages. Handle is called sequentially by the update loop.
type Bot struct {
	Deps
	opts      Options
	validator *validation.CommandValidator
	commands  map[string]handlerFunc
	now       func() time.Time
	log       *logrus.Entry
}

func New(deps Deps, opts Options) *Bot {
	if opts.MaxReplySize <= 0 {
		opts.MaxReplySize = 4000
	}
	if opts.SummaryLines <= 0 {
		opts.SummaryLines = report.SummaryLines
	}
	if opts.TweetsLimit <= 0 {
		opts.TweetsLimit = 5
	}
	if opts.StoredMatchesCap <= 0 {
		opts.StoredMatchesCap = 50
	}
	if opts.StoredArticlesCap <= 0 {
		opts.StoredArticlesCap = 20
	}
	b := &Bot{
		Deps:      deps,
		opts:      opts,
		validator: validation.NewCommandValidator(),
		now:       time.Now,
		log:       logger.Component("bot"),
	}
	b.commands = map[string]handlerFunc{
		"start":         b.cmdStart,
		"help":          b.cmdHelp,
		"ping":          b.cmdPing,
		"news":          b.cmdNews,
		"crypto":        b.cmdCrypto,
		"tweets":        b.cmdTweets,
		"search":        b.cmdSearch,
		"searchall":     b.cmdSearchAll,
		"usaid":         b.cmdUserSearch,
		"dialogs":       b.cmdDialogs,
		"casual":        b.cmdCasual,
		"casual_status": b.cmdCasualStatus,
		"casual_reset":  b.cmdCasualReset,
		"llm":           b.cmdLLM,
		"stats":         b.cmdStats,
	}
	return b
}

// WithClock replaces the bot's clock
func (b *Bot) WithClock(now func() time.Time) *Bot {
	b.now = now
	return b
}

// SetIdentity records the bot's own account as reported by the platform.
// Call it before the update loop starts.
func (b *Bot) SetIdentity(userID int64, username string) {
	b.opts.BotUserID = userID
	if username != "" && !strings.EqualFold(username, b.opts.Username) {
		b.log.WithFields(logrus.Fields{
			"configured": b.opts.Username,
			"platform":   username,
		}).Warn("Configured bot username differs from the platform account")
	}
}

// Handle processes one incoming message
func (b *Bot) Handle(ctx context.Context, msg platform.Message) {
	cmd, ok := validation.ParseCommand(msg.Text, b.opts.Username)
	if !ok {
		b.handleChat(ctx, msg)
		return
	}

	handler, ok := b.commands[cmd.Name]
	if !ok {
		if msg.ChatType == platform.ChatPrivate {
			b.reply(ctx, msg, "❓ Unknown command. Use /help to see what I can do.")
		}
		return
	}

	log := b.log.WithFields(logrus.Fields{"command": cmd.Name, "user_id": msg.UserID, "chat_id": msg.ChatID})
	log.Info("Command received")
	b.registerUser(ctx, msg)

	if err := handler(ctx, msg, cmd.Args); err != nil {
		if apperr.KindOf(err) == apperr.KindInternal || apperr.IsKind(err, apperr.KindStoreUnavailable) {
			log.WithError(err).Error("Command failed")
		} else {
			log.WithError(err).Info("Command rejected")
		}
		b.reply(ctx, msg, apperr.UserMessage(err))
	}
}

func (b *Bot) registerUser(ctx context.Context, msg platform.Message) {
	_, err := b.Store.UpsertUser(ctx, db.User{
		ID:        msg.UserID,
		Username:  msg.Username,
		FirstName: msg.FirstName,
	})
	if err != nil {
		b.log.WithError(err).WithField("user_id", msg.UserID).Error("Failed to register user")
	}
}

func (b *Bot) isAdmin(userID int64) bool {
	return b.Limiter.IsAdmin(userID)
}

// preferredBackend returns the user's generation backend, falling back to the default
func (b *Bot) preferredBackend(ctx context.Context, userID int64) string {
	u, err := b.Store.GetUser(ctx, userID)
	if err != nil || u.PreferredBackend == "" {
		return ""
	}
	return u.PreferredBackend
}

// limited runs the rate check, argument parsing and usage recording shared by
// quota-bound commands. parse errors are returned before usage is recorded.
func (b *Bot) limited(ctx context.Context, msg platform.Message, command string, parse func() error) error {
	if err := b.Limiter.Check(ctx, msg.UserID, command); err != nil {
		return err
	}
	if err := parse(); err != nil {
		return err
	}
	return b.Limiter.Record(ctx, msg.UserID, command)
}

// reply sends text to the message's chat, split into platform-sized chunks.
// The first chunk replies to msg.
func (b *Bot) reply(ctx context.Context, msg platform.Message, text string) int64 {
	return b.send(ctx, msg.ChatID, text, msg.ID)
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, replyTo int64) int64 {
	var first int64
	for i, chunk := range report.Split(text, b.opts.MaxReplySize) {
		id, err := b.Messenger.SendMessage(ctx, chatID, chunk, replyTo)
		if err != nil {
			b.log.WithError(err).WithField("chat_id", chatID).Error("Failed to send message")
			return first
		}
		if i == 0 {
			first = id
		}
		replyTo = 0
	}
	return first
}

// progress is a status message that is later replaced by the result
type progress struct {
	b   *Bot
	msg platform.Message
	id  int64
}

func (b *Bot) begin(ctx context.Context, msg platform.Message, text string) *progress {
	return &progress{b: b, msg: msg, id: b.reply(ctx, msg, text)}
}

// finish replaces the status message with text, sending overflow as new messages
func (p *progress) finish(ctx context.Context, text string) {
	chunks := report.Split(text, p.b.opts.MaxReplySize)
	if p.id == 0 || len(chunks) == 0 {
		p.b.reply(ctx, p.msg, text)
		return
	}
	if err := p.b.Messenger.EditMessage(ctx, p.msg.ChatID, p.id, chunks[0]); err != nil {
		p.b.log.WithError(err).Warn("Failed to edit status message")
		p.b.reply(ctx, p.msg, text)
		return
	}
	for _, chunk := range chunks[1:] {
		p.b.send(ctx, p.msg.ChatID, chunk, 0)
	}
}

func (p *progress) drop(ctx context.Context) {
	if p.id == 0 {
		return
	}
	if err := p.b.Messenger.DeleteMessage(ctx, p.msg.ChatID, p.id); err != nil {
		p.b.log.WithError(err).Warn("Failed to delete status message")
	}
}

// renderable is a result that has a chat summary and a full report
type renderable interface {
	Document() string
}

// deliver shows summary in place of the status message. When export is set the
// full report is attached as a file, which is removed after sending.
func (b *Bot) deliver(ctx context.Context, p *progress, summary string, export bool, doc renderable, prefix, caption string) {
	if !export {
		p.finish(ctx, summary)
		return
	}

	path, err := b.Reports.Write(prefix, doc.Document())
	if err != nil {
		b.log.WithError(err).Error("Failed to write report")
		p.finish(ctx, summary)
		return
	}
	defer b.Reports.Remove(path)

	p.drop(ctx)
	b.reply(ctx, p.msg, summary+"\n\n📎 Full results attached as file")
	if err := b.Messenger.SendDocument(ctx, p.msg.ChatID, path, caption); err != nil {
		b.log.WithError(err).WithField("path", path).Error("Failed to send report")
		b.reply(ctx, p.msg, "❌ Could not attach the report file.")
	}
}

// saveSearch persists a search; failures are logged and never reach the user
func (b *Bot) saveSearch(ctx context.Context, userID int64, query, kind string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.log.WithError(err).Error("Failed to encode search result")
		return
	}
	err = b.Store.AppendSearchResult(ctx, db.SearchResult{
		ID:        uuid.NewString(),
		UserID:    userID,
		Query:     query,
		Kind:      kind,
		Payload:   string(data),
		CreatedAt: b.now(),
	})
	if err != nil {
		b.log.WithError(err).WithFields(logrus.Fields{"user_id": userID, "kind": kind}).Error("Failed to save search result")
	}
}

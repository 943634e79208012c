package bot

import (
	"chat-bot/internal/apperr"
	"chat-bot/internal/platform"
	"chat-bot/internal/repository/db"
	"chat-bot/internal/service/access"
	"chat-bot/internal/service/report"
	"chat-bot/internal/service/scanner"
	"chat-bot/pkg/validation"
	"context"
	"fmt"
	"strings"
)

const (
	searchUsage = "Please provide search terms.\n" +
		"Usage: /search term1,term2,term3 [count]\n" +
		"Examples:\n" +
		"• /search bitcoin,crypto,price\n" +
		"• /search bitcoin 50 (limit to 50 results)"
	searchAllUsage = "Please provide search terms.\n" +
		"Usage: /searchall term1,term2,term3 [count]\n" +
		"Examples:\n" +
		"• /searchall bitcoin,crypto,ethereum\n" +
		"• /searchall bitcoin 100 (limit to 100 results)"
	userSearchUsage = "Invalid format.\n" +
		"Usage: /usaid @username search,terms [count]\n" +
		"Examples:\n" +
		"• /usaid @john bitcoin,crypto,price\n" +
		"• /usaid @john bitcoin 50 (limit to 50 results)"
)

// searchRequest is a parsed scan command with its result budget
type searchRequest struct {
	validation.UserSearchArgs
	admin bool
	max   int
}

func (b *Bot) newSearchRequest(userID int64, args validation.UserSearchArgs) searchRequest {
	admin := b.isAdmin(userID)
	return searchRequest{
		UserSearchArgs: args,
		admin:          admin,
		max:            b.Policy.MaxResults(access.TierOf(admin), args.Count),
	}
}

func (b *Bot) cmdSearch(ctx context.Context, msg platform.Message, args string) error {
	var parsed validation.SearchArgs
	err := b.limited(ctx, msg, db.KindSearch, func() error {
		var err error
		if parsed, err = b.validator.ParseSearch(args); err != nil {
			return apperr.InvalidInput(db.KindSearch, searchUsage)
		}
		return nil
	})
	if err != nil {
		return err
	}
	req := b.newSearchRequest(msg.UserID, validation.UserSearchArgs{SearchArgs: parsed})

	p := b.begin(ctx, msg, "🔍 Searching current chat...")
	room := platform.Room{ID: msg.ChatID, Title: msg.ChatTitle, Type: msg.ChatType}
	matches, err := b.Scanner.SearchInRoom(ctx, room, req.Terms, 0)
	if err != nil {
		b.log.WithError(err).WithField("chat_id", msg.ChatID).Warn("Chat search failed")
		p.finish(ctx, apperr.UserMessage(err))
		return nil
	}

	res := scanner.Result{Matches: matches, TotalFound: len(matches)}
	if len(matches) > 0 {
		res.Rooms = []scanner.RoomSummary{{RoomID: room.ID, Title: titleOr(room.Title, "Current Chat"), Type: room.Type, Count: len(matches)}}
	}
	b.finishSearch(ctx, msg, p, req, res, report.Search{Scope: "current chat"},
		fmt.Sprintf("search_%d", msg.ChatID), "Complete search results", db.KindSearch)
	return nil
}

func (b *Bot) cmdSearchAll(ctx context.Context, msg platform.Message, args string) error {
	var parsed validation.SearchArgs
	err := b.limited(ctx, msg, db.KindSearchAll, func() error {
		var err error
		if parsed, err = b.validator.ParseSearch(args); err != nil {
			return apperr.InvalidInput(db.KindSearchAll, searchAllUsage)
		}
		return nil
	})
	if err != nil {
		return err
	}
	req := b.newSearchRequest(msg.UserID, validation.UserSearchArgs{SearchArgs: parsed})

	p := b.begin(ctx, msg, "🔍 Searching across all accessible chats...\nThis may take a few minutes depending on the number of chats.")
	res, err := b.Scanner.SearchAllRooms(ctx, req.Terms, req.max)
	if err != nil {
		b.log.WithError(err).Warn("Global search failed")
		p.finish(ctx, apperr.UserMessage(err))
		return nil
	}

	b.finishSearch(ctx, msg, p, req, res, report.Search{Scope: "all chats"},
		"global_search", "Global search results for: "+strings.Join(req.Terms, ", "), db.KindSearchAll)
	return nil
}

func (b *Bot) cmdUserSearch(ctx context.Context, msg platform.Message, args string) error {
	var parsed validation.UserSearchArgs
	err := b.limited(ctx, msg, db.KindUserScan, func() error {
		var err error
		if parsed, err = b.validator.ParseUserSearch(args); err != nil {
			return apperr.InvalidInput(db.KindUserScan, userSearchUsage)
		}
		return nil
	})
	if err != nil {
		return err
	}
	req := b.newSearchRequest(msg.UserID, parsed)

	p := b.begin(ctx, msg, fmt.Sprintf("🔍 Searching for @%s's messages...\nThis may take a few minutes.", req.Username))
	res, err := b.Scanner.SearchUserAcrossRooms(ctx, req.Username, req.Terms, req.max)
	if err != nil {
		b.log.WithError(err).WithField("target", req.Username).Warn("User search failed")
		p.finish(ctx, apperr.UserMessage(err))
		return nil
	}

	b.finishSearch(ctx, msg, p, req, res, report.Search{Scope: "all chats", Username: req.Username},
		"user_search_"+req.Username, fmt.Sprintf("@%s's messages containing: %s", req.Username, strings.Join(req.Terms, ", ")), db.KindUserScan)
	return nil
}

// finishSearch truncates the scan to the request budget, delivers the summary and
// report, and stores the shown matches.
func (b *Bot) finishSearch(ctx context.Context, msg platform.Message, p *progress, req searchRequest, res scanner.Result, rep report.Search, prefix, caption, kind string) {
	shown := res.Matches[:min(req.max, len(res.Matches))]

	rep.Terms = req.Terms
	rep.Matches = shown
	rep.TotalFound = res.TotalFound
	rep.RoomsSearched = res.RoomsSearched
	rep.Rooms = res.Rooms
	rep.At = b.now()

	export := len(shown) > 0 && report.ShouldExport(res.TotalFound, req.admin)
	b.deliver(ctx, p, rep.Summary(b.opts.SummaryLines), export, rep, prefix, caption)

	query := strings.Join(req.Terms, " ")
	if req.Username != "" {
		query = "@" + req.Username + " " + query
	}
	b.saveSearch(ctx, msg.UserID, query, kind, shown[:min(b.opts.StoredMatchesCap, len(shown))])
}

func titleOr(title, def string) string {
	if title == "" {
		return def
	}
	return title
}

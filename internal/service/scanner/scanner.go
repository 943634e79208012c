package scanner

import (
	"chat-bot/internal/config"
	"chat-bot/internal/logger"
	"chat-bot/internal/platform"
	"context"
	"fmt"
	"math/rand/v2"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Room iteration policies for cross-room scans
const (
	OrderListed     = "listed"
	OrderShuffled   = "shuffled"
	OrderExhaustive = "exhaustive"
)

// Match is one message that matched a search term
type Match struct {
	RoomID    int64     `json:"chat_id"`
	RoomTitle string    `json:"chat_title"`
	RoomType  string    `json:"chat_type"`
	MessageID int64     `json:"message_id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	FirstName string    `json:"first_name"`
	Text      string    `json:"text"`
	Date      time.Time `json:"date"`
	Term      string    `json:"search_term"`
	Link      string    `json:"link,omitempty"`
}

// Author returns @username when known, otherwise the first name
func (m Match) Author() string {
	if m.Username != "" {
		return "@" + m.Username
	}
	if m.FirstName != "" {
		return m.FirstName
	}
	return "Unknown"
}

// RoomSummary counts matches found in one room
type RoomSummary struct {
	RoomID int64  `json:"chat_id"`
	Title  string `json:"title"`
	Type   string `json:"type"`
	Count  int    `json:"count"`
}

// Result is the outcome of a cross-room scan
type Result struct {
	Matches       []Match
	TotalFound    int
	RoomsSearched int
	Rooms         []RoomSummary
}

// Scanner searches chat history for terms
type Scanner struct {
	history platform.History
	cfg     config.ScanConfig
	shuffle func(n int, swap func(i, j int))
	log     *logrus.Entry
}

func NewScanner(history platform.History, cfg config.ScanConfig) *Scanner {
	if cfg.RoomOrder == "" {
		cfg.RoomOrder = OrderListed
	}
	if cfg.SingleRoomLimit <= 0 {
		cfg.SingleRoomLimit = 1000
	}
	if cfg.PerRoomLimit <= 0 {
		cfg.PerRoomLimit = 200
	}
	if cfg.PerRoomUserLimit <= 0 {
		cfg.PerRoomUserLimit = 500
	}
	return &Scanner{
		history: history,
		cfg:     cfg,
		shuffle: rand.Shuffle,
		log:     logger.Component("scanner"),
	}
}

// WithShuffle replaces the random permutation used by the shuffled room order
func (s *Scanner) WithShuffle(shuffle func(n int, swap func(i, j int))) *Scanner {
	s.shuffle = shuffle
	return s
}

// SearchInRoom scans up to limit messages of one room (capped by the single-room ceiling)
// and returns every match, newest first.
func (s *Scanner) SearchInRoom(ctx context.Context, room platform.Room, terms []string, limit int) ([]Match, error) {
	if limit <= 0 || limit > s.cfg.SingleRoomLimit {
		limit = s.cfg.SingleRoomLimit
	}
	matches, err := s.scanRoom(ctx, room, compileTerms(terms), limit, "")
	if err != nil {
		return nil, err
	}
	SortNewestFirst(matches)
	return matches, nil
}

// SearchAllRooms scans every accessible room. Unless the order is exhaustive, the scan
// stops once budget matches have been collected.
func (s *Scanner) SearchAllRooms(ctx context.Context, terms []string, budget int) (Result, error) {
	return s.searchRooms(ctx, compileTerms(terms), budget, s.cfg.PerRoomLimit, "")
}

// SearchUserAcrossRooms is SearchAllRooms restricted to messages written by username
func (s *Scanner) SearchUserAcrossRooms(ctx context.Context, username string, terms []string, budget int) (Result, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return Result{}, fmt.Errorf("empty username")
	}
	return s.searchRooms(ctx, compileTerms(terms), budget, s.cfg.PerRoomUserLimit, username)
}

func (s *Scanner) searchRooms(ctx context.Context, patterns []pattern, budget, perRoom int, username string) (Result, error) {
	rooms, err := s.history.Rooms(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list rooms: %w", err)
	}
	rooms = s.order(rooms)

	var res Result
	for _, room := range rooms {
		if ctx.Err() != nil {
			break
		}
		res.RoomsSearched++
		matches, err := s.scanRoom(ctx, room, patterns, perRoom, username)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"room_id": room.ID,
				"title":   room.Title,
				"error":   err,
			}).Warn("Skipping room")
			continue
		}
		if len(matches) > 0 {
			res.Rooms = append(res.Rooms, RoomSummary{RoomID: room.ID, Title: room.Title, Type: room.Type, Count: len(matches)})
			res.Matches = append(res.Matches, matches...)
		}
		if s.cfg.RoomOrder != OrderExhaustive && budget > 0 && len(res.Matches) >= budget {
			break
		}
	}

	SortNewestFirst(res.Matches)
	res.TotalFound = len(res.Matches)
	return res, nil
}

func (s *Scanner) order(rooms []platform.Room) []platform.Room {
	if s.cfg.RoomOrder != OrderShuffled {
		return rooms
	}
	out := append([]platform.Room(nil), rooms...)
	s.shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func (s *Scanner) scanRoom(ctx context.Context, room platform.Room, patterns []pattern, limit int, username string) ([]Match, error) {
	msgs, err := s.history.History(ctx, room.ID, limit)
	if err != nil {
		return nil, err
	}
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}

	var matches []Match
	for _, msg := range msgs {
		if msg.Text == "" {
			continue
		}
		term, ok := firstMatch(patterns, msg.Text)
		if !ok {
			continue
		}
		if username != "" && !strings.EqualFold(msg.Username, username) {
			continue
		}
		title := room.Title
		if msg.ChatTitle != "" {
			title = msg.ChatTitle
		}
		matches = append(matches, Match{
			RoomID:    room.ID,
			RoomTitle: title,
			RoomType:  room.Type,
			MessageID: msg.ID,
			UserID:    msg.UserID,
			Username:  msg.Username,
			FirstName: msg.FirstName,
			Text:      msg.Text,
			Date:      msg.Date,
			Term:      term,
			Link:      Permalink(room.ID, msg.ID),
		})
	}
	return matches, nil
}

type pattern struct {
	term string
	re   *regexp.Regexp
}

// compileTerms builds case-insensitive matchers; a term that is not a valid
// expression is matched literally.
func compileTerms(terms []string) []pattern {
	patterns := make([]pattern, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + t)
		if err != nil {
			re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(t))
		}
		patterns = append(patterns, pattern{term: t, re: re})
	}
	return patterns
}

func firstMatch(patterns []pattern, text string) (string, bool) {
	for _, p := range patterns {
		if p.re.MatchString(text) {
			return p.term, true
		}
	}
	return "", false
}

// SortNewestFirst orders matches by date descending, keeping scan order on ties
func SortNewestFirst(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Date.After(matches[j].Date)
	})
}

// Permalink builds a t.me link for supergroup and channel messages
func Permalink(roomID, messageID int64) string {
	id := strconv.FormatInt(roomID, 10)
	if !strings.HasPrefix(id, "-100") || messageID == 0 {
		return ""
	}
	return fmt.Sprintf("https://t.me/c/%s/%d", strings.TrimPrefix(id, "-100"), messageID)
}

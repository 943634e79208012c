package casual

import (
	"chat-bot/internal/config"
	"chat-bot/internal/logger"
	"chat-bot/internal/platform"
	"chat-bot/internal/repository/db"
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Generator produces text with a preferred backend and fallbacks
type Generator interface {
	Complete(ctx context.Context, preferred, prompt string, maxTokens int) (text, backend string, err error)
}

// Random is the source of reply decisions and filler choice
type Random interface {
	Float64() float64
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// Decision explains why a message did or did not get a reply
type Decision int

const (
	Disabled Decision = iota
	Mentioned
	CapReached
	TooSoon
	ChanceHit
	ChanceMiss
)

func (d Decision) Reply() bool {
	return d == Mentioned || d == ChanceHit
}

func (d Decision) String() string {
	switch d {
	case Mentioned:
		return "mentioned"
	case CapReached:
		return "cap_reached"
	case TooSoon:
		return "too_soon"
	case ChanceHit:
		return "chance_hit"
	case ChanceMiss:
		return "chance_miss"
	default:
		return "disabled"
	}
}

// State is the conversation state of one chat
type State struct {
	Enabled       bool
	Style         string
	Backend       string
	Interactions  map[int64]int
	SinceBot      int
	LastBotSpeech time.Time
}

// Status is a read-only copy of a chat's state
type Status struct {
	ChatID        int64         `json:"chat_id"`
	Enabled       bool          `json:"enabled"`
	Style         string        `json:"style"`
	Backend       string        `json:"backend"`
	Interactions  map[int64]int `json:"interactions"`
	SinceBot      int           `json:"messages_since_bot"`
	LastBotSpeech time.Time     `json:"last_bot_speech"`
}

// Options carries settings that live outside the casual tuning file
type Options struct {
	HistoryDays    int
	DefaultBackend string
}

// Machine owns per-chat conversation state
type Machine struct {
	mu      sync.Mutex
	states  map[int64]*State
	cfg     *config.CasualConfig
	gen     Generator
	store   db.ChatStore
	opts    Options
	aliases []string
	rnd     Random
	now     func() time.Time
	log     *logrus.Entry
}

func NewMachine(cfg *config.CasualConfig, gen Generator, store db.ChatStore, opts Options) *Machine {
	if opts.HistoryDays <= 0 {
		opts.HistoryDays = 20
	}
	if opts.DefaultBackend == "" {
		opts.DefaultBackend = db.DefaultBackend
	}
	aliases := make([]string, 0, len(cfg.Aliases))
	for _, a := range cfg.Aliases {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			aliases = append(aliases, a)
		}
	}
	return &Machine{
		states:  make(map[int64]*State),
		cfg:     cfg,
		gen:     gen,
		store:   store,
		opts:    opts,
		aliases: aliases,
		rnd:     globalRand{},
		now:     time.Now,
		log:     logger.Component("casual"),
	}
}

// WithRandom replaces the random source
func (m *Machine) WithRandom(r Random) *Machine {
	m.rnd = r
	return m
}

// WithClock replaces the time source
func (m *Machine) WithClock(now func() time.Time) *Machine {
	m.now = now
	return m
}

// Toggle flips casual mode for a chat. Enabling infers the chat style unless one is
// retained from an earlier session; backend becomes the chat's generation preference.
func (m *Machine) Toggle(ctx context.Context, chatID int64, backend string) Status {
	m.mu.Lock()
	st := m.stateLocked(chatID)
	if backend != "" {
		st.Backend = backend
	}
	if st.Enabled {
		st.Enabled = false
		snap := snapshot(chatID, st)
		m.mu.Unlock()
		m.log.WithField("chat_id", chatID).Info("Casual mode disabled")
		return snap
	}
	if st.Style != "" {
		st.Enabled = true
		snap := snapshot(chatID, st)
		m.mu.Unlock()
		return snap
	}
	preferred := st.Backend
	m.mu.Unlock()

	style := m.inferStyle(ctx, chatID, preferred)

	m.mu.Lock()
	defer m.mu.Unlock()
	st.Style = style
	st.Enabled = true
	m.log.WithFields(logrus.Fields{
		"chat_id": chatID,
		"backend": st.Backend,
	}).Info("Casual mode enabled")
	return snapshot(chatID, st)
}

// Status returns the chat's state; ok is false when casual mode was never toggled there
func (m *Machine) Status(chatID int64) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[chatID]
	if !ok {
		return Status{ChatID: chatID, Backend: m.opts.DefaultBackend}, false
	}
	return snapshot(chatID, st), true
}

// Reset clears the chat's counters as if the bot had just spoken
func (m *Machine) Reset(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.states[chatID]; ok {
		resetCounters(st)
	}
}

// HandleMessage updates counters for an incoming message and returns the reply to send, if any.
// Generation failures produce a filler; errors never reach the chat.
func (m *Machine) HandleMessage(ctx context.Context, msg platform.Message) (string, bool) {
	m.mu.Lock()
	st, ok := m.states[msg.ChatID]
	if !ok || !st.Enabled {
		m.mu.Unlock()
		return "", false
	}
	decision := m.decideLocked(st, msg)
	style, backend := st.Style, st.Backend
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{
		"chat_id":  msg.ChatID,
		"user_id":  msg.UserID,
		"decision": decision.String(),
	}).Debug("Casual decision")
	if !decision.Reply() {
		return "", false
	}

	reply := m.generateReply(ctx, msg, style, backend)

	m.mu.Lock()
	resetCounters(st)
	st.LastBotSpeech = m.now()
	m.mu.Unlock()
	return reply, true
}

// decideLocked applies the turn-taking rules. Caller holds m.mu.
func (m *Machine) decideLocked(st *State, msg platform.Message) Decision {
	st.Interactions[msg.UserID]++
	st.SinceBot++

	text := strings.ToLower(msg.Text)
	if m.mentioned(text) {
		return Mentioned
	}
	if st.Interactions[msg.UserID] >= m.cfg.InteractionCap {
		resetCounters(st)
		return CapReached
	}
	if st.SinceBot < m.cfg.MinMessagesSinceBot {
		return TooSoon
	}
	if m.rnd.Float64() < m.replyChance(st.SinceBot, text) {
		return ChanceHit
	}
	return ChanceMiss
}

func (m *Machine) replyChance(sinceBot int, text string) float64 {
	var p float64
	switch {
	case sinceBot < m.cfg.HighActivityBelow:
		p = m.cfg.HighActivityChance
	case sinceBot < m.cfg.NormalActivityBelow:
		p = m.cfg.NormalActivityChance
	default:
		p = m.cfg.LowActivityChance
	}
	for _, w := range m.cfg.TriggerWords {
		if strings.Contains(text, strings.ToLower(w)) {
			return p * m.cfg.TriggerMultiplier
		}
	}
	return p
}

func (m *Machine) mentioned(lowerText string) bool {
	for _, a := range m.aliases {
		if strings.Contains(lowerText, a) {
			return true
		}
	}
	return false
}

func (m *Machine) inferStyle(ctx context.Context, chatID int64, backend string) string {
	since := m.now().AddDate(0, 0, -m.opts.HistoryDays)
	records, err := m.store.ChatMessagesSince(ctx, chatID, since, m.cfg.StyleHistoryLines)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"chat_id": chatID,
			"error":   err,
		}).Warn("Could not read chat history, using default style")
		return m.cfg.DefaultStyle
	}
	if len(records) == 0 {
		return m.cfg.DefaultStyle
	}

	prompt := fmt.Sprintf(stylePrompt, transcript(records))
	style, used, err := m.gen.Complete(ctx, backend, prompt, m.cfg.StyleMaxTokens)
	if err != nil || strings.TrimSpace(style) == "" {
		m.log.WithFields(logrus.Fields{
			"chat_id": chatID,
			"error":   err,
		}).Warn("Style inference failed, using default style")
		return m.cfg.DefaultStyle
	}
	m.log.WithFields(logrus.Fields{
		"chat_id": chatID,
		"backend": used,
		"lines":   len(records),
	}).Info("Inferred chat style")
	return strings.TrimSpace(style)
}

func (m *Machine) generateReply(ctx context.Context, msg platform.Message, style, backend string) string {
	var recentText string
	records, err := m.store.ChatMessagesSince(ctx, msg.ChatID, m.now().Add(-24*time.Hour), m.cfg.ContextMessages+1)
	if err == nil {
		kept := make([]db.ChatMessage, 0, len(records))
		for _, r := range records {
			if r.MessageID == msg.ID && r.UserID == msg.UserID {
				continue
			}
			kept = append(kept, r)
		}
		if len(kept) > m.cfg.ContextMessages {
			kept = kept[:m.cfg.ContextMessages]
		}
		recentText = transcript(kept)
	}

	prompt := fmt.Sprintf(replyPrompt, style, recentText, msg.Text)
	reply, _, err := m.gen.Complete(ctx, backend, prompt, m.cfg.ReplyMaxTokens)
	if err != nil || strings.TrimSpace(reply) == "" {
		m.log.WithFields(logrus.Fields{
			"chat_id": msg.ChatID,
			"error":   err,
		}).Warn("Casual reply failed, sending filler")
		return m.filler()
	}
	return strings.TrimSpace(reply)
}

func (m *Machine) filler() string {
	if len(m.cfg.Fillers) == 0 {
		return "👍"
	}
	return m.cfg.Fillers[m.rnd.IntN(len(m.cfg.Fillers))]
}

func (m *Machine) stateLocked(chatID int64) *State {
	st, ok := m.states[chatID]
	if !ok {
		st = &State{Backend: m.opts.DefaultBackend, Interactions: make(map[int64]int)}
		m.states[chatID] = st
	}
	return st
}

func resetCounters(st *State) {
	st.SinceBot = 0
	st.Interactions = make(map[int64]int)
}

func snapshot(chatID int64, st *State) Status {
	interactions := make(map[int64]int, len(st.Interactions))
	for k, v := range st.Interactions {
		interactions[k] = v
	}
	return Status{
		ChatID:        chatID,
		Enabled:       st.Enabled,
		Style:         st.Style,
		Backend:       st.Backend,
		Interactions:  interactions,
		SinceBot:      st.SinceBot,
		LastBotSpeech: st.LastBotSpeech,
	}
}

// transcript renders records oldest first; records arrive newest first
func transcript(records []db.ChatMessage) string {
	var b strings.Builder
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		name := r.Username
		if name == "" {
			name = r.FirstName
		}
		if name == "" {
			name = "User"
		}
		fmt.Fprintf(&b, "%s: %s\n", name, r.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

const stylePrompt = `Analyze the following chat conversation and describe the communication style, tone, and patterns:

%s

Focus on formality, common topics, humor, typical message length and emotional tone.
Respond with a concise description (2-3 sentences) that can help match this conversational style.`

const replyPrompt = `You are chatting casually in a group chat. Chat style:
%s

Recent conversation:
%s

User just said: "%s"

Respond naturally as a regular member of this chat. Match the style, tone and energy.
Keep it to 1-3 sentences and never mention being an AI.`

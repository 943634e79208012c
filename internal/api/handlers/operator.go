package handlers

import (
	"chat-bot/internal/auth"
	"chat-bot/internal/logger"
	"chat-bot/internal/repository/db"
	"chat-bot/internal/service/casual"
	"chat-bot/pkg/validation"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
	healthTimeout      = 3 * time.Second
)

// Request/Response types

type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

type SearchData struct {
	ID        string          `json:"id"`
	Query     string          `json:"query"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt string          `json:"created_at"`
}

type SearchesResponse struct {
	UserID   int64        `json:"user_id"`
	Searches []SearchData `json:"searches"`
}

type RoomData struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Type          string `json:"type"`
	LastMessageAt string `json:"last_message_at"`
}

type RoomsResponse struct {
	Rooms []RoomData `json:"rooms"`
}

// CasualStatus reads conversation state for a chat
type CasualStatus interface {
	Status(chatID int64) (casual.Status, bool)
}

// OperatorHandlers serves read-only views of the bot's state
type OperatorHandlers struct {
	store     db.Database
	casual    CasualStatus
	validator *validation.APIRequestValidator
	log       *logrus.Entry
}

func NewOperatorHandlers(store db.Database, casual CasualStatus) *OperatorHandlers {
	return &OperatorHandlers{
		store:  store,
		casual: casual,
		validator: validation.NewAPIRequestValidator(
			db.KindSearch, db.KindSearchAll, db.KindUserScan,
			db.KindNews, db.KindCrypto, db.KindTweets,
		),
		log: logger.Component("api"),
	}
}

// HealthHandler reports whether the store answers
func (h *OperatorHandlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.log.WithError(err).Warn("Health check failed")
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "degraded", Store: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Store: "ok"})
}

// SearchesHandler lists a user's most recent stored searches
func (h *OperatorHandlers) SearchesHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := h.validator.ValidateID("user id", r.PathValue("id"))
	if err != nil {
		auth.SendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}
	kind := r.URL.Query().Get("kind")
	if err := h.validator.ValidateKind(kind); err != nil {
		auth.SendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}
	limit, err := h.validator.ValidateLimit(r.URL.Query().Get("limit"), defaultSearchLimit, maxSearchLimit)
	if err != nil {
		auth.SendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	results, err := h.store.RecentSearchResults(r.Context(), userID, kind, limit)
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Error("Error retrieving searches")
		auth.SendError(w, http.StatusInternalServerError, "Error retrieving searches", nil)
		return
	}

	searches := make([]SearchData, 0, len(results))
	for _, res := range results {
		payload := json.RawMessage(res.Payload)
		if !json.Valid(payload) {
			payload = json.RawMessage("null")
		}
		searches = append(searches, SearchData{
			ID:        res.ID,
			Query:     res.Query,
			Kind:      res.Kind,
			Payload:   payload,
			CreatedAt: res.CreatedAt.Format(time.RFC3339),
		})
	}

	h.log.WithFields(logrus.Fields{
		"operator": auth.Operator(r.Context()),
		"user_id":  userID,
		"count":    len(searches),
	}).Debug("Served stored searches")
	writeJSON(w, http.StatusOK, SearchesResponse{UserID: userID, Searches: searches})
}

// RoomsHandler lists chats with stored history
func (h *OperatorHandlers) RoomsHandler(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.store.Rooms(r.Context())
	if err != nil {
		h.log.WithError(err).Error("Error retrieving rooms")
		auth.SendError(w, http.StatusInternalServerError, "Error retrieving rooms", nil)
		return
	}

	out := make([]RoomData, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, RoomData{
			ID:            room.ID,
			Title:         room.Title,
			Type:          room.Type,
			LastMessageAt: room.LastMessageAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, RoomsResponse{Rooms: out})
}

// CasualHandler returns the conversation state of one chat
func (h *OperatorHandlers) CasualHandler(w http.ResponseWriter, r *http.Request) {
	chatID, err := h.validator.ValidateID("chat id", r.PathValue("chat"))
	if err != nil {
		auth.SendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	st, ok := h.casual.Status(chatID)
	if !ok {
		auth.SendError(w, http.StatusNotFound, "Casual mode was never enabled in this chat", fmt.Errorf("chat %d", chatID))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

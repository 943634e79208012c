// Package telegram is a minimal Telegram Bot API client implementing the platform interfaces.
package telegram

import (
	"bytes"
	"chat-bot/internal/apperr"
	"chat-bot/internal/logger"
	"chat-bot/internal/platform"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultAPIBaseURL     = "https://api.telegram.org"
	defaultRequestTimeout = 30 * time.Second
)

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

type Chat struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from"`
	Chat      Chat   `json:"chat"`
	Date      int64  `json:"date"`
	Text      string `json:"text"`
	Caption   string `json:"caption"`
}

type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

type chatMember struct {
	Status string `json:"status"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// APIError is a Bot API error response
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// Unwrap exposes permission failures as platform.ErrAccessDenied
func (e *APIError) Unwrap() error {
	if e.accessDenied() {
		return platform.ErrAccessDenied
	}
	return nil
}

func (e *APIError) accessDenied() bool {
	if e.Code == http.StatusForbidden {
		return true
	}
	d := strings.ToLower(e.Description)
	return strings.Contains(d, "not enough rights") ||
		strings.Contains(d, "chat not found") ||
		strings.Contains(d, "admin_required")
}

// Client talks to the Bot API. History and room listing come from the embedded History.
type Client struct {
	platform.History
	token   string
	baseURL string
	http    *http.Client
	log     *logrus.Entry

	// requestTimeout bounds every API call; getUpdates adds its long-poll timeout on top
	requestTimeout time.Duration
}

func New(token, baseURL string, history platform.History) *Client {
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	return &Client{
		History: history,
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		log:     logger.Component("telegram"),

		requestTimeout: defaultRequestTimeout,
	}
}

// WithRequestTimeout overrides the per-call deadline; non-positive values are ignored
func (c *Client) WithRequestTimeout(d time.Duration) *Client {
	if d > 0 {
		c.requestTimeout = d
	}
	return c
}

// Close releases idle connections
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	return c.callWithin(ctx, c.requestTimeout, method, params, out)
}

func (c *Client) callWithin(ctx context.Context, timeout time.Duration, method string, params any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("error marshaling %s request: %w", method, err)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, method, out)
}

func (c *Client) do(req *http.Request, method string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("error sending %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading %s response: %w", method, err)
	}

	var res apiResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		return fmt.Errorf("error decoding %s response (status %d): %w", method, resp.StatusCode, err)
	}
	if !res.OK {
		apiErr := &APIError{Method: method, Code: res.ErrorCode, Description: res.Description}
		if res.Parameters != nil {
			apiErr.RetryAfter = time.Duration(res.Parameters.RetryAfter) * time.Second
		}
		if apiErr.accessDenied() {
			return apperr.AccessDenied("telegram."+method, apiErr)
		}
		return apiErr
	}
	if out != nil {
		if err := json.Unmarshal(res.Result, out); err != nil {
			return fmt.Errorf("error decoding %s result: %w", method, err)
		}
	}
	return nil
}

// GetMe returns the bot's own account
func (c *Client) GetMe(ctx context.Context) (User, error) {
	var u User
	err := c.call(ctx, "getMe", struct{}{}, &u)
	return u, err
}

// GetUpdates long-polls for new updates
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	params := map[string]any{
		"offset":          offset,
		"timeout":         int(timeout.Seconds()),
		"allowed_updates": []string{"message"},
	}
	var updates []Update
	err := c.callWithin(ctx, timeout+c.requestTimeout, "getUpdates", params, &updates)
	return updates, err
}

// Poll delivers updates to handle in order until ctx is cancelled
func (c *Client) Poll(ctx context.Context, timeout time.Duration, handle func(context.Context, Update)) error {
	var offset int64
	backoff := time.Second
	for {
		updates, err := c.GetUpdates(ctx, offset, timeout)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			wait := backoff
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
				wait = apiErr.RetryAfter
			}
			c.log.WithError(err).WithField("retry_in", wait.String()).Warn("getUpdates failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			backoff = min(backoff*2, 30*time.Second)
			continue
		}
		backoff = time.Second

		for _, u := range updates {
			offset = u.UpdateID + 1
			handle(ctx, u)
		}
	}
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, replyTo int64) (int64, error) {
	params := map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"disable_web_page_preview": true,
	}
	if replyTo != 0 {
		params["reply_parameters"] = map[string]any{
			"message_id":                  replyTo,
			"allow_sending_without_reply": true,
		}
	}
	var msg Message
	if err := c.call(ctx, "sendMessage", params, &msg); err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

func (c *Client) EditMessage(ctx context.Context, chatID, messageID int64, text string) error {
	return c.call(ctx, "editMessageText", map[string]any{
		"chat_id":                  chatID,
		"message_id":               messageID,
		"text":                     text,
		"disable_web_page_preview": true,
	}, nil)
}

func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	return c.call(ctx, "deleteMessage", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}, nil)
}

// SendDocument uploads a local file
func (c *Client) SendDocument(ctx context.Context, chatID int64, path, caption string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open document: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("chat_id", fmt.Sprint(chatID)); err != nil {
		return err
	}
	if caption != "" {
		if err := w.WriteField("caption", caption); err != nil {
			return err
		}
	}
	part, err := w.CreateFormFile("document", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}
	if err := w.Close(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendDocument"), &buf)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.do(req, "sendDocument", nil)
}

func (c *Client) ChatMember(ctx context.Context, chatID, userID int64) (platform.MemberRole, error) {
	var m chatMember
	if err := c.call(ctx, "getChatMember", map[string]any{
		"chat_id": chatID,
		"user_id": userID,
	}, &m); err != nil {
		return "", err
	}
	return platform.MemberRole(m.Status), nil
}

// ToPlatform converts an incoming message; ok is false for messages without a sender
func ToPlatform(m *Message) (platform.Message, bool) {
	if m == nil || m.From == nil {
		return platform.Message{}, false
	}
	title := m.Chat.Title
	if title == "" {
		title = m.Chat.FirstName
	}
	text := m.Text
	if text == "" {
		text = m.Caption
	}
	return platform.Message{
		ID:        m.MessageID,
		ChatID:    m.Chat.ID,
		ChatTitle: title,
		ChatType:  m.Chat.Type,
		UserID:    m.From.ID,
		Username:  m.From.Username,
		FirstName: m.From.FirstName,
		Text:      text,
		Date:      time.Unix(m.Date, 0).UTC(),
	}, true
}

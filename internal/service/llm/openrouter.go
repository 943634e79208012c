package llm

import (
	"bytes"
	"chat-bot/internal/apperr"
	"chat-bot/internal/logger"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
)

const openRouterURL = "https://openrouter.ai/api/v1/chat/completions"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	Stream    bool      `json:"stream"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

type ResponseUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ChatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage *ResponseUsage `json:"usage,omitempty"`
}

// OpenRouter calls the OpenRouter chat completions API directly
type OpenRouter struct {
	name     string
	apiKey   string
	endpoint string
	model    string
	client   *http.Client
}

func NewOpenRouter(name, apiKey, endpoint, model string) *OpenRouter {
	if endpoint == "" {
		endpoint = openRouterURL
	}
	return &OpenRouter{
		name:     name,
		apiKey:   apiKey,
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{},
	}
}

func (p *OpenRouter) Name() string     { return p.name }
func (p *OpenRouter) Configured() bool { return p.apiKey != "" }

// Complete sends a single-turn chat request
func (p *OpenRouter) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if !p.Configured() {
		return "", apperr.Unconfigured("llm." + p.name)
	}

	logger.Log.WithFields(logrus.Fields{
		"backend":    p.name,
		"model":      p.model,
		"max_tokens": maxTokens,
	}).Debug("Calling OpenRouter API")

	reqBody := ChatRequest{
		Model:     p.model,
		Messages:  []Message{{Role: "user", Content: prompt}},
		MaxTokens: maxTokens,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("X-Title", "Chat Bot")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("error decoding response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no response from API")
	}

	if chatResp.Usage != nil {
		logger.Log.WithFields(logrus.Fields{
			"backend":       p.name,
			"total_tokens":  chatResp.Usage.TotalTokens,
			"generation_id": chatResp.ID,
		}).Debug("Captured usage data")
	}
	return chatResp.Choices[0].Message.Content, nil
}

package llm

import (
	"chat-bot/internal/apperr"
	"chat-bot/internal/logger"
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sirupsen/logrus"
)

const (
	openAIBaseURL   = "https://api.openai.com/v1"
	deepSeekBaseURL = "https://api.deepseek.com/v1"
	qwenBaseURL     = "https://dashscope-intl.aliyuncs.com/compatible-mode/v1"
)

// OpenAICompatible serves any backend speaking the OpenAI chat completions protocol
type OpenAICompatible struct {
	name   string
	apiKey string
	model  string
	client openai.Client
}

func NewOpenAICompatible(name, apiKey, baseURL, model string) *OpenAICompatible {
	return &OpenAICompatible{
		name:   name,
		apiKey: apiKey,
		model:  model,
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(baseURL),
			option.WithMaxRetries(0),
		),
	}
}

func (p *OpenAICompatible) Name() string     { return p.name }
func (p *OpenAICompatible) Configured() bool { return p.apiKey != "" }

func (p *OpenAICompatible) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if !p.Configured() {
		return "", apperr.Unconfigured("llm." + p.name)
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}

	logger.Log.WithFields(logrus.Fields{
		"backend": p.name,
		"model":   p.model,
	}).Debug("Calling OpenAI-compatible API")

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%s completion failed: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices", p.name)
	}
	return resp.Choices[0].Message.Content, nil
}

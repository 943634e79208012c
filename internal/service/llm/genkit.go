package llm

import (
	"chat-bot/internal/apperr"
	"chat-bot/internal/logger"
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai"
	"github.com/openai/openai-go"
	"github.com/sirupsen/logrus"
)

const cohereBaseURL = "https://api.cohere.ai/compatibility/v1"

// Genkit serves a backend through a Genkit OpenAI-compatible plugin
type Genkit struct {
	name  string
	model string
	g     *genkit.Genkit
}

// NewGenkit returns an unconfigured backend when apiKey is empty
func NewGenkit(ctx context.Context, name, apiKey, baseURL, model string) *Genkit {
	p := &Genkit{name: name, model: name + "/" + model}
	if apiKey == "" {
		return p
	}

	p.g = genkit.Init(ctx,
		genkit.WithPlugins(&compat_oai.OpenAICompatible{
			Provider: name,
			APIKey:   apiKey,
			BaseURL:  baseURL,
		}),
		genkit.WithDefaultModel(p.model),
	)
	logger.Log.WithFields(logrus.Fields{
		"backend": name,
		"model":   p.model,
	}).Info("Initialized Genkit provider")
	return p
}

func (p *Genkit) Name() string     { return p.name }
func (p *Genkit) Configured() bool { return p.g != nil }

func (p *Genkit) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if !p.Configured() {
		return "", apperr.Unconfigured("llm." + p.name)
	}

	config := &openai.ChatCompletionNewParams{}
	if maxTokens > 0 {
		config.MaxTokens = openai.Int(int64(maxTokens))
	}

	resp, err := genkit.Generate(ctx, p.g,
		ai.WithMessages(ai.NewUserTextMessage(prompt)),
		ai.WithModelName(p.model),
		ai.WithConfig(config),
	)
	if err != nil {
		return "", fmt.Errorf("genkit generation failed: %w", err)
	}
	return resp.Text(), nil
}

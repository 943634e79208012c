package llm

import (
	"chat-bot/internal/apperr"
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Gemini calls the Gemini API through the genai SDK
type Gemini struct {
	name   string
	model  string
	client *genai.Client
}

// NewGemini returns an unconfigured backend when apiKey is empty
func NewGemini(ctx context.Context, name, apiKey, model string) (*Gemini, error) {
	g := &Gemini{name: name, model: model}
	if apiKey == "" {
		return g, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	g.client = client
	return g, nil
}

func (g *Gemini) Name() string     { return g.name }
func (g *Gemini) Configured() bool { return g.client != nil }

func (g *Gemini) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if !g.Configured() {
		return "", apperr.Unconfigured("llm." + g.name)
	}

	cfg := &genai.GenerateContentConfig{}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = int32(maxTokens)
	}
	res, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned empty text")
	}
	return text, nil
}

package llm

import (
	"chat-bot/internal/apperr"
	"chat-bot/internal/config"
	"chat-bot/internal/logger"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// Backend is one text generation service
type Backend interface {
	// Name is the backend's selectable name, e.g. "qwen"
	Name() string
	// Configured reports whether credentials are present
	Configured() bool
	// Complete returns apperr.ErrUnconfigured when the backend has no credentials
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Registry holds the known backends and the fallback order
type Registry struct {
	backends map[string]Backend
	order    []string
	timeout  time.Duration
}

func NewRegistry(timeout time.Duration, order []string, backends ...Backend) *Registry {
	r := &Registry{
		backends: make(map[string]Backend, len(backends)),
		timeout:  timeout,
	}
	for _, b := range backends {
		r.backends[b.Name()] = b
	}
	for _, name := range order {
		if _, ok := r.backends[name]; ok {
			r.order = append(r.order, name)
		}
	}
	// Backends missing from the order are tried last, by name
	var rest []string
	for name := range r.backends {
		if !contains(r.order, name) {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	r.order = append(r.order, rest...)
	return r
}

// NewFromConfig builds every supported backend from the environment config
func NewFromConfig(ctx context.Context, cfg config.LLMConfig, models *config.ModelsConfig) *Registry {
	model := func(backend string) string {
		id, _ := models.ModelFor(backend)
		return id
	}

	backends := []Backend{
		NewOpenAICompatible("gpt", cfg.OpenAIAPIKey, openAIBaseURL, model("gpt")),
		NewOpenAICompatible("deepseek", cfg.DeepSeekAPIKey, deepSeekBaseURL, model("deepseek")),
		NewOpenAICompatible("qwen", cfg.QwenAPIKey, qwenBaseURL, model("qwen")),
		NewOpenRouter("claude", cfg.OpenRouterAPIKey, openRouterURL, model("claude")),
		NewGenkit(ctx, "cohere", cfg.CohereAPIKey, cohereBaseURL, model("cohere")),
	}
	gemini, err := NewGemini(ctx, "gemini", cfg.GeminiAPIKey, model("gemini"))
	if err != nil {
		logger.Log.WithError(err).Warn("Gemini backend disabled")
		gemini = &Gemini{name: "gemini"}
	}
	backends = append(backends, gemini)

	r := NewRegistry(cfg.Timeout, cfg.FallbackOrder, backends...)
	logger.Log.WithFields(logrus.Fields{
		"configured": r.Configured(),
		"order":      r.order,
	}).Info("Generation backends ready")
	return r
}

// Get returns a backend by name
func (r *Registry) Get(name string) (Backend, bool) {
	b, ok := r.backends[name]
	return b, ok
}

// Names lists every registered backend in fallback order
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Configured lists backends that have credentials, in fallback order
func (r *Registry) Configured() []string {
	var names []string
	for _, name := range r.order {
		if r.backends[name].Configured() {
			names = append(names, name)
		}
	}
	return names
}

// Complete tries the preferred backend first and then the rest of the fallback
// order. It returns the text and the backend that produced it.
func (r *Registry) Complete(ctx context.Context, preferred, prompt string, maxTokens int) (string, string, error) {
	chain := r.order
	if _, ok := r.backends[preferred]; ok {
		chain = append([]string{preferred}, without(r.order, preferred)...)
	}

	var lastErr error
	attempted := 0
	for _, name := range chain {
		b := r.backends[name]
		if !b.Configured() {
			continue
		}
		attempted++

		callCtx, cancel := r.callContext(ctx)
		text, err := b.Complete(callCtx, prompt, maxTokens)
		cancel()
		if err == nil && text != "" {
			return text, name, nil
		}
		if err == nil {
			err = errors.New("empty completion")
		}
		lastErr = err
		logger.Log.WithFields(logrus.Fields{
			"backend": name,
			"error":   err,
		}).Warn("Generation backend failed, trying next")
		if ctx.Err() != nil {
			break
		}
	}

	if attempted == 0 {
		return "", "", apperr.Unconfigured("llm.complete")
	}
	return "", "", apperr.New(apperr.KindProviderFailure, "llm.complete", fmt.Errorf("all backends failed: %w", lastErr))
}

func (r *Registry) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func without(list []string, s string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

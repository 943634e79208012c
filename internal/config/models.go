package config

import (
	"encoding/json"
	"os"
	"sort"
)

// Model represents the model served by one generation backend
type Model struct {
	Backend  string `json:"backend"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// ModelsConfig maps backend names to their model ids
type ModelsConfig struct {
	models []Model
}

var defaultModels = []Model{
	{Backend: "qwen", ID: "qwen-plus", Name: "Qwen Plus", Provider: "Alibaba"},
	{Backend: "deepseek", ID: "deepseek-chat", Name: "DeepSeek Chat", Provider: "DeepSeek"},
	{Backend: "gpt", ID: "gpt-4o-mini", Name: "GPT-4o mini", Provider: "OpenAI"},
	{Backend: "gemini", ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", Provider: "Google"},
	{Backend: "claude", ID: "anthropic/claude-3.5-haiku", Name: "Claude 3.5 Haiku", Provider: "OpenRouter"},
	{Backend: "cohere", ID: "command-r-plus", Name: "Command R+", Provider: "Cohere"},
}

// NewModelsConfig creates a new models configuration from a file.
// An empty path yields the built-in defaults; entries in the file override defaults per backend.
func NewModelsConfig(configPath string) (*ModelsConfig, error) {
	models := append([]Model(nil), defaultModels...)
	if configPath == "" {
		return &ModelsConfig{models: models}, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var overrides []Model
	err = json.Unmarshal(data, &overrides)
	if err != nil {
		return nil, err
	}

	for _, o := range overrides {
		replaced := false
		for i := range models {
			if models[i].Backend == o.Backend {
				models[i] = o
				replaced = true
				break
			}
		}
		if !replaced {
			models = append(models, o)
		}
	}

	return &ModelsConfig{models: models}, nil
}

// GetAvailableModels returns the configured models
func (mc *ModelsConfig) GetAvailableModels() []Model {
	return mc.models
}

// Backends returns the configured backend names sorted alphabetically
func (mc *ModelsConfig) Backends() []string {
	names := make([]string, 0, len(mc.models))
	for _, m := range mc.models {
		names = append(names, m.Backend)
	}
	sort.Strings(names)
	return names
}

// IsValidBackend checks if a backend name is configured
func (mc *ModelsConfig) IsValidBackend(backend string) bool {
	_, ok := mc.ModelFor(backend)
	return ok
}

// ModelFor returns the model id used by backend
func (mc *ModelsConfig) ModelFor(backend string) (string, bool) {
	for _, model := range mc.models {
		if model.Backend == backend {
			return model.ID, true
		}
	}
	return "", false
}

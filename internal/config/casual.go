package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CasualConfig tunes the casual conversation mode
type CasualConfig struct {
	InteractionCap       int      `yaml:"interaction_cap"`
	MinMessagesSinceBot  int      `yaml:"min_messages_since_bot"`
	HighActivityBelow    int      `yaml:"high_activity_below"`
	NormalActivityBelow  int      `yaml:"normal_activity_below"`
	HighActivityChance   float64  `yaml:"high_activity_chance"`
	NormalActivityChance float64  `yaml:"normal_activity_chance"`
	LowActivityChance    float64  `yaml:"low_activity_chance"`
	TriggerMultiplier    float64  `yaml:"trigger_multiplier"`
	StyleHistoryLines    int      `yaml:"style_history_lines"`
	ContextMessages      int      `yaml:"context_messages"`
	ReplyMaxTokens       int      `yaml:"reply_max_tokens"`
	StyleMaxTokens       int      `yaml:"style_max_tokens"`
	DefaultStyle         string   `yaml:"default_style"`
	TriggerWords         []string `yaml:"trigger_words"`
	Aliases              []string `yaml:"aliases"`
	Fillers              []string `yaml:"fillers"`
}

// DefaultCasualConfig returns the built-in tuning
func DefaultCasualConfig() *CasualConfig {
	return &CasualConfig{
		InteractionCap:       20,
		MinMessagesSinceBot:  3,
		HighActivityBelow:    5,
		NormalActivityBelow:  15,
		HighActivityChance:   0.10,
		NormalActivityChance: 0.20,
		LowActivityChance:    0.30,
		TriggerMultiplier:    2,
		StyleHistoryLines:    100,
		ContextMessages:      10,
		ReplyMaxTokens:       150,
		StyleMaxTokens:       200,
		DefaultStyle:         "casual and friendly",
		TriggerWords: []string{
			"question", "help", "what", "how", "why", "anyone", "somebody",
			"opinion", "think", "agree", "disagree", "recommend",
		},
		Fillers: []string{
			"Interesting! 🤔",
			"I see what you mean",
			"That's a good point!",
			"Totally agree 👍",
			"Fair enough",
			"Makes sense to me",
			"I hear you",
			"Right on! 💯",
		},
	}
}

// LoadCasualConfig reads YAML tuning from path on top of the defaults.
// An empty path yields the defaults.
func LoadCasualConfig(path string) (*CasualConfig, error) {
	cfg := DefaultCasualConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects tuning the state machine cannot run with
func (c *CasualConfig) Validate() error {
	if c.InteractionCap < 1 {
		return fmt.Errorf("interaction_cap must be positive")
	}
	if c.HighActivityBelow > c.NormalActivityBelow {
		return fmt.Errorf("high_activity_below must not exceed normal_activity_below")
	}
	for _, p := range []float64{c.HighActivityChance, c.NormalActivityChance, c.LowActivityChance} {
		if p < 0 || p > 1 {
			return fmt.Errorf("activity chances must be within [0, 1]")
		}
	}
	if len(c.Fillers) == 0 {
		return fmt.Errorf("at least one filler response is required")
	}
	return nil
}

// DefaultAliases builds the mention set from the bot username and extra aliases
func DefaultAliases(username string, extra []string) []string {
	var aliases []string
	if username != "" {
		aliases = append(aliases, "@"+strings.ToLower(username), strings.ToLower(username))
	}
	for _, a := range extra {
		aliases = append(aliases, strings.ToLower(a))
	}
	return aliases
}

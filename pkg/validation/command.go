package validation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Command is a parsed "/name@bot args" message
type Command struct {
	Name string
	Args string
}

// ParseCommand splits a command message. ok is false for plain text and for
// commands addressed to a different bot.
func ParseCommand(text, botUsername string) (Command, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") || len(text) == 1 {
		return Command{}, false
	}
	head, args, _ := strings.Cut(text[1:], " ")
	name, target, addressed := strings.Cut(head, "@")
	if addressed && botUsername != "" && !strings.EqualFold(target, strings.TrimPrefix(botUsername, "@")) {
		return Command{}, false
	}
	if name == "" {
		return Command{}, false
	}
	return Command{Name: strings.ToLower(name), Args: strings.TrimSpace(args)}, true
}

// SearchArgs are the arguments of a term search
type SearchArgs struct {
	Terms []string
	// Count is nil when the user did not ask for a specific number of results
	Count *int
}

// UserSearchArgs are the arguments of a user-scoped search
type UserSearchArgs struct {
	Username string
	SearchArgs
}

// CommandValidator validates chat command arguments
type CommandValidator struct{}

// NewCommandValidator creates a new CommandValidator
func NewCommandValidator() *CommandValidator {
	return &CommandValidator{}
}

// ValidateQuery requires a non-empty free-text argument
func (v *CommandValidator) ValidateQuery(args string) (string, error) {
	q := strings.TrimSpace(args)
	if q == "" {
		return "", errors.New("query cannot be empty")
	}
	if len(q) > 500 {
		return "", fmt.Errorf("query must be at most 500 characters long, got %d", len(q))
	}
	return q, nil
}

// ParseSearch parses "terms[,terms] [count]". A trailing integer is a count only
// when at least one other word precedes it.
func (v *CommandValidator) ParseSearch(args string) (SearchArgs, error) {
	words := strings.Fields(args)
	if len(words) == 0 {
		return SearchArgs{}, errors.New("search terms cannot be empty")
	}

	var count *int
	if len(words) > 1 {
		if n, ok := parseCount(words[len(words)-1]); ok {
			count = &n
			words = words[:len(words)-1]
		}
	}

	terms := ParseTerms(strings.Join(words, " "))
	if len(terms) == 0 {
		return SearchArgs{}, errors.New("search terms cannot be empty")
	}
	return SearchArgs{Terms: terms, Count: count}, nil
}

// ParseUserSearch parses "@user terms[,terms] [count]"
func (v *CommandValidator) ParseUserSearch(args string) (UserSearchArgs, error) {
	username, rest, ok := strings.Cut(strings.TrimSpace(args), " ")
	if !ok || strings.TrimSpace(rest) == "" {
		return UserSearchArgs{}, errors.New("username and search terms are required")
	}
	username = strings.TrimPrefix(username, "@")
	if err := ValidateUsername(username); err != nil {
		return UserSearchArgs{}, err
	}
	search, err := v.ParseSearch(rest)
	if err != nil {
		return UserSearchArgs{}, err
	}
	return UserSearchArgs{Username: username, SearchArgs: search}, nil
}

// ParseTerms splits comma-separated terms, dropping blanks
func ParseTerms(query string) []string {
	var terms []string
	for _, t := range strings.Split(query, ",") {
		if t = strings.TrimSpace(t); t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

// ValidateUsername checks a platform username without the leading @
func ValidateUsername(username string) error {
	if username == "" {
		return errors.New("username cannot be empty")
	}
	if len(username) > 32 {
		return fmt.Errorf("username must be at most 32 characters long, got %d", len(username))
	}
	for _, r := range username {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return errors.New("username can only contain letters, numbers and underscores")
		}
	}
	return nil
}

// parseCount reads an all-digit word. Values too large for an int saturate so the
// result policy can clamp them like any other oversized request.
func parseCount(s string) (int, bool) {
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if errors.Is(err, strconv.ErrRange) {
		return math.MaxInt, true
	}
	if err != nil {
		return 0, false
	}
	return n, true
}

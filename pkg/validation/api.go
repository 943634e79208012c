package validation

import (
	"fmt"
	"strconv"
)

// APIRequestValidator validates operator API parameters
type APIRequestValidator struct {
	kinds map[string]bool
}

// NewAPIRequestValidator creates a validator accepting the given search kinds
func NewAPIRequestValidator(kinds ...string) *APIRequestValidator {
	v := &APIRequestValidator{kinds: make(map[string]bool, len(kinds))}
	for _, k := range kinds {
		v.kinds[k] = true
	}
	return v
}

// ValidateID parses a platform user or chat id
func (v *APIRequestValidator) ValidateID(name, raw string) (int64, error) {
	if raw == "" {
		return 0, fmt.Errorf("%s cannot be empty", name)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%s must be a non-zero integer, got %q", name, raw)
	}
	return id, nil
}

// ValidateKind accepts an empty kind (all kinds) or a known one
func (v *APIRequestValidator) ValidateKind(kind string) error {
	if kind == "" || v.kinds[kind] {
		return nil
	}
	return fmt.Errorf("unknown search kind %q", kind)
}

// ValidateLimit parses an optional result limit within [1, max]
func (v *APIRequestValidator) ValidateLimit(raw string, def, max int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > max {
		return 0, fmt.Errorf("limit must be between 1 and %d, got %q", max, raw)
	}
	return n, nil
}

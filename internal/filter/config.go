package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/filtermail/filtermail/internal/mailtext"
)

// ErrInvalidConfig marks configuration problems that must prevent a run from
// starting.
var ErrInvalidConfig = errors.New("invalid configuration")

// UpgradeLegacy rewrites an old-style configuration that carries a flat
// blocked_emails list into the filter shape: one rule per address matching
// the From field exactly, scoped to the inbox. Inputs already carrying a
// filters key are returned untouched.
func UpgradeLegacy(raw map[string]any) map[string]any {
	if _, ok := raw["filters"]; ok {
		return raw
	}
	blocked, ok := raw["blocked_emails"].([]any)
	if !ok {
		return raw
	}
	filters := make([]any, 0, len(blocked))
	for _, entry := range blocked {
		addr, ok := entry.(string)
		if !ok {
			continue
		}
		filters = append(filters, map[string]any{
			"search":      addr,
			"from":        true,
			"all_match":   true,
			"exact_match": true,
			"label":       "Inbox",
		})
	}
	raw["filters"] = filters
	delete(raw, "blocked_emails")
	return raw
}

// ValidateConfig checks the resolved configuration record: required keys, a
// syntactically valid user email, a non-empty password, and every filter
// entry normalized through ValidateFilter.
func ValidateConfig(raw map[string]any) (Config, error) {
	for _, key := range []string{"user_email", "user_password", "filters"} {
		if _, ok := raw[key]; !ok {
			return Config{}, fmt.Errorf("%w: missing key %q", ErrInvalidConfig, key)
		}
	}
	email, ok := raw["user_email"].(string)
	if !ok || !mailtext.ValidEmail(email) {
		return Config{}, fmt.Errorf("%w: invalid user email", ErrInvalidConfig)
	}
	password, ok := raw["user_password"].(string)
	if !ok || password == "" {
		return Config{}, fmt.Errorf("%w: invalid password", ErrInvalidConfig)
	}
	entries, ok := raw["filters"].([]any)
	if !ok {
		return Config{}, fmt.Errorf("%w: filters must be a list", ErrInvalidConfig)
	}

	cfg := Config{UserEmail: email, UserPassword: password}
	for i, entry := range entries {
		m, ok := entry.(map[string]any)
		if !ok {
			return Config{}, fmt.Errorf("%w: filters[%d]: expected object, got %T", ErrInvalidConfig, i, entry)
		}
		rule, err := ValidateFilter(m)
		if err != nil {
			return Config{}, fmt.Errorf("filters[%d]: %w", i, err)
		}
		cfg.Filters = append(cfg.Filters, rule)
	}
	return cfg, nil
}

// Parse decodes a JSON settings payload, upgrades legacy shapes, and
// validates the result.
func Parse(data []byte) (Config, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("decode settings: %w", err)
	}
	return ValidateConfig(UpgradeLegacy(raw))
}

// Load reads and parses a settings file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read settings: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("load %s: %w", path, err)
	}
	return cfg, nil
}

// Package llm holds what every language-model client shares.
package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrDisabled is returned by the no-op client. Callers treat it like any
// other failure and keep their deterministic result.
var ErrDisabled = errors.New("llm disabled")

// ErrNoJSON means a reply held no JSON object.
var ErrNoJSON = errors.New("no json object in reply")

// ExtractJSON returns the span from the first '{' to the last '}' of text.
// Models wrap JSON in prose or code fences often enough that this is the
// only parse worth attempting.
func ExtractJSON(text string) (string, error) {
	t := strings.TrimSpace(text)
	start := strings.Index(t, "{")
	end := strings.LastIndex(t, "}")
	if start < 0 || end <= start {
		return "", ErrNoJSON
	}
	return t[start : end+1], nil
}

// DecodeJSON extracts and unmarshals the JSON object in text into v.
func DecodeJSON(text string, v any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("unmarshal reply: %w", err)
	}
	return nil
}

package noop

import (
	"context"

	"tradegraph/internal/llm"
	"tradegraph/internal/logger"
)

// Completer is used when no language model is configured. Every call fails
// with llm.ErrDisabled so callers fall back to their rule-based output.
type Completer struct{}

func New() *Completer {
	return &Completer{}
}

func (Completer) Complete(ctx context.Context, system, prompt string) (string, error) {
	logger.Debug(ctx, "Noop completer called", "prompt_chars", len(prompt))
	return "", llm.ErrDisabled
}
